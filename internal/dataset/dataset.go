// Package dataset reads and writes the candidate, job and feedback files used by the CLI.
// Files are YAML unless their extension is .json.
package dataset

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spigell/scoreit/internal/candidate"
	"github.com/spigell/scoreit/internal/features"
	"github.com/spigell/scoreit/internal/model"

	"gopkg.in/yaml.v3"
)

var ErrEmptyFile = errors.New("file contains no entries")

// FeedbackEntry is one labeled feature vector as written in feedback files.
type FeedbackEntry struct {
	Features []float64 `yaml:"features" json:"features"`
	Label    int       `yaml:"label" json:"label"`
}

type candidatesFile struct {
	Candidates []candidate.Document `yaml:"candidates" json:"candidates"`
}

type feedbackFile struct {
	Feedback []FeedbackEntry `yaml:"feedback" json:"feedback"`
}

// LoadCandidates reads either a bare list of candidates or a {candidates: [...]} document.
func LoadCandidates(path string) ([]candidate.Document, error) {
	data, err := read(path)
	if err != nil {
		return nil, err
	}

	var docs []candidate.Document
	if isSequence(path, data) {
		err = decode(path, data, &docs)
	} else {
		var f candidatesFile
		err = decode(path, data, &f)
		docs = f.Candidates
	}
	if err != nil {
		return nil, fmt.Errorf("parsing candidates from %s: %w", path, err)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrEmptyFile)
	}
	return docs, nil
}

// LoadJob reads the structured fields of a single job.
func LoadJob(path string) (candidate.Job, error) {
	data, err := read(path)
	if err != nil {
		return candidate.Job{}, err
	}

	var job candidate.Job
	if err := decode(path, data, &job); err != nil {
		return candidate.Job{}, fmt.Errorf("parsing job from %s: %w", path, err)
	}
	return job, nil
}

// LoadFeedback reads labeled samples from a bare list or a {feedback: [...]} document.
func LoadFeedback(path string) ([]model.Sample, error) {
	data, err := read(path)
	if err != nil {
		return nil, err
	}

	var entries []FeedbackEntry
	if isSequence(path, data) {
		err = decode(path, data, &entries)
	} else {
		var f feedbackFile
		err = decode(path, data, &f)
		entries = f.Feedback
	}
	if err != nil {
		return nil, fmt.Errorf("parsing feedback from %s: %w", path, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrEmptyFile)
	}

	samples, err := Samples(entries)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return samples, nil
}

// Samples validates entries and converts them to model samples.
func Samples(entries []FeedbackEntry) ([]model.Sample, error) {
	samples := make([]model.Sample, 0, len(entries))
	for i, e := range entries {
		v, err := features.FromValues(e.Features)
		if err != nil {
			return nil, fmt.Errorf("feedback entry %d: %w", i, err)
		}
		if e.Label != 0 && e.Label != 1 {
			return nil, fmt.Errorf("feedback entry %d: label must be 0 or 1, got %d", i, e.Label)
		}
		samples = append(samples, model.NewSample(v, e.Label))
	}
	return samples, nil
}

// AppendFeedback adds samples to the feedback file at path, creating it when missing.
func AppendFeedback(path string, samples []model.Sample) error {
	var f feedbackFile

	existing, err := LoadFeedback(path)
	switch {
	case err == nil:
		for _, s := range existing {
			f.Feedback = append(f.Feedback, entry(s))
		}
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, ErrEmptyFile):
	default:
		return err
	}

	for _, s := range samples {
		f.Feedback = append(f.Feedback, entry(s))
	}

	data, err := encode(path, f)
	if err != nil {
		return fmt.Errorf("encoding feedback: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return os.WriteFile(path, data, 0o644)
}

func entry(s model.Sample) FeedbackEntry {
	return FeedbackEntry{Features: s.Features[:], Label: s.Label}
}

func read(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}

func isJSON(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}

func decode(path string, data []byte, v any) error {
	if isJSON(path) {
		return json.Unmarshal(data, v)
	}
	return yaml.Unmarshal(data, v)
}

func encode(path string, v any) ([]byte, error) {
	if isJSON(path) {
		return json.MarshalIndent(v, "", "  ")
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func isSequence(path string, data []byte) bool {
	if isJSON(path) {
		return strings.HasPrefix(strings.TrimSpace(string(data)), "[")
	}
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil || len(node.Content) == 0 {
		return false
	}
	return node.Content[0].Kind == yaml.SequenceNode
}
