package query

import (
	"testing"

	"github.com/spigell/scoreit/internal/candidate"
)

func TestBuild(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		job    candidate.Job
		expect string
	}{
		{
			name: "all fields",
			job: candidate.Job{
				Skills:         []string{"Python", "AWS"},
				Experience:     4,
				Qualifications: []string{"MSc"},
			},
			expect: "A candidate with 4 years of experience, skilled in Python, AWS, and holding MSc.",
		},
		{
			name:   "defaults",
			job:    candidate.Job{},
			expect: "A candidate with some experience, skilled in various skills, and holding relevant qualifications.",
		},
		{
			name: "blank skills fall back",
			job: candidate.Job{
				Skills:         []string{" ", ""},
				Experience:     1,
				Qualifications: []string{"BSc", "PhD"},
			},
			expect: "A candidate with 1 years of experience, skilled in various skills, and holding BSc, PhD.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Build(tt.job); got != tt.expect {
				t.Fatalf("expected %q, got %q", tt.expect, got)
			}
		})
	}
}
