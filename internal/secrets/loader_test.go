package secrets

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	keyFile := filepath.Join(dir, "key")
	if err := os.WriteFile(keyFile, []byte("  from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	emptyFile := filepath.Join(dir, "empty")
	if err := os.WriteFile(emptyFile, []byte("\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("SCOREIT_TEST_SECRET", " from-env ")

	tests := []struct {
		name    string
		src     Source
		want    string
		wantErr bool
	}{
		{name: "file wins", src: Source{File: keyFile, Env: "SCOREIT_TEST_SECRET", Value: "inline"}, want: "from-file"},
		{name: "env before value", src: Source{Env: "SCOREIT_TEST_SECRET", Value: "inline"}, want: "from-env"},
		{name: "unset env falls back to value", src: Source{Env: "SCOREIT_TEST_UNSET", Value: " inline "}, want: "inline"},
		{name: "empty file", src: Source{File: emptyFile, Value: "inline"}, wantErr: true},
		{name: "missing file", src: Source{File: filepath.Join(dir, "nope")}, wantErr: true},
		{name: "nothing configured", src: Source{Name: "gemini api key"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Load(tt.src)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestLoadOptional(t *testing.T) {
	got, err := LoadOptional(Source{Name: "mongo uri"})
	if err != nil || got != "" {
		t.Fatalf("expected empty secret without error, got %q, %v", got, err)
	}

	_, err = Load(Source{Name: "mongo uri"})
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}

	if _, err := LoadOptional(Source{File: filepath.Join(t.TempDir(), "missing")}); err == nil {
		t.Fatal("expected error for a missing file")
	}
}
