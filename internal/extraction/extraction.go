package extraction

import (
	"context"
	"errors"

	"github.com/spigell/scoreit/internal/candidate"
)

var (
	// ErrMalformedResponse means the model answered with something that is not the expected JSON.
	ErrMalformedResponse = errors.New("malformed extraction response")
	ErrEmptyText         = errors.New("job description is empty")
)

// FieldExtractor pulls structured job requirements out of free text.
type FieldExtractor interface {
	Name() string
	Extract(ctx context.Context, text string) (candidate.Job, error)
}

// Completer sends a prompt to a language model and returns its text answer.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// normalize trims and deduplicates list fields and clamps negative experience.
func normalize(job candidate.Job) candidate.Job {
	job.Skills = dedupe(job.Skills)
	job.Qualifications = dedupe(job.Qualifications)
	if job.Experience < 0 {
		job.Experience = 0
	}
	return job
}

func dedupe(values []string) []string {
	cleaned := candidate.Clean(values)
	seen := make(map[string]struct{}, len(cleaned))
	out := make([]string, 0, len(cleaned))
	for _, v := range cleaned {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
