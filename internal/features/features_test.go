package features

import (
	"errors"
	"testing"

	"github.com/spigell/scoreit/internal/candidate"
)

func TestExtract(t *testing.T) {
	t.Parallel()

	job := candidate.Job{
		Skills:         []string{"Python", "AWS"},
		Experience:     4,
		Qualifications: []string{"MSc"},
	}

	tests := []struct {
		name      string
		candidate candidate.Candidate
		job       candidate.Job
		expect    [Size]float64
	}{
		{
			name: "strong match",
			candidate: candidate.Candidate{
				Skills:         []string{"Python", "ML", "AWS"},
				Experience:     5,
				Qualifications: []string{"MSc"},
			},
			job:    job,
			expect: [Size]float64{2, 1, 1},
		},
		{
			name: "no overlap",
			candidate: candidate.Candidate{
				Skills:         []string{"Java", "Spring"},
				Experience:     3,
				Qualifications: []string{"BSc"},
			},
			job:    job,
			expect: [Size]float64{0, 1, 0},
		},
		{
			name:      "missing fields default to empty",
			candidate: candidate.Candidate{},
			job:       candidate.Job{},
			expect:    [Size]float64{0, 0, 0},
		},
		{
			name: "duplicates count once",
			candidate: candidate.Candidate{
				Skills: []string{"Go", "Go", "SQL"},
			},
			job: candidate.Job{
				Skills:     []string{"Go", "Go"},
				Experience: 10,
			},
			expect: [Size]float64{1, 10, 0},
		},
		{
			name: "matching is case sensitive",
			candidate: candidate.Candidate{
				Skills:         []string{"python"},
				Qualifications: []string{"msc"},
			},
			job:    job,
			expect: [Size]float64{0, 4, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Extract(tt.candidate, tt.job).Values()
			if got != tt.expect {
				t.Fatalf("expected %v, got %v", tt.expect, got)
			}
		})
	}
}

func TestExtractIsPure(t *testing.T) {
	c := candidate.Candidate{Skills: []string{"Go", "SQL"}, Experience: 2}
	j := candidate.Job{Skills: []string{"SQL", "Go"}, Experience: 5}

	first := Extract(c, j)
	second := Overlap{}.Extract(c, j)
	if first != second {
		t.Fatalf("expected identical results, got %+v and %+v", first, second)
	}
	if c.Skills[0] != "Go" || j.Skills[0] != "SQL" {
		t.Fatalf("inputs were mutated")
	}
}

func TestFromValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		values  []float64
		want    Vector
		wantErr bool
	}{
		{name: "valid", values: []float64{2, 1, 1}, want: Vector{2, 1, 1}},
		{name: "too short", values: []float64{1, 2}, wantErr: true},
		{name: "too long", values: []float64{1, 2, 0, 4}, wantErr: true},
		{name: "negative", values: []float64{-1, 2, 0}, wantErr: true},
		{name: "fraction", values: []float64{1.5, 2, 0}, wantErr: true},
		{name: "qualification out of range", values: []float64{1, 2, 2}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := FromValues(tt.values)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidVector) {
					t.Fatalf("expected ErrInvalidVector, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestExtractAll(t *testing.T) {
	cands := []candidate.Candidate{
		{Skills: []string{"Go"}},
		{Skills: []string{"Rust"}},
	}
	got := ExtractAll(Overlap{}, cands, candidate.Job{Skills: []string{"Go"}})
	if len(got) != 2 || got[0].SkillOverlap != 1 || got[1].SkillOverlap != 0 {
		t.Fatalf("unexpected vectors: %+v", got)
	}
}
