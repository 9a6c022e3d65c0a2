package model

import (
	"context"
	"errors"
	"time"

	"github.com/spigell/scoreit/internal/features"
)

var (
	// ErrNotFound is returned by Store.Load when nothing was persisted yet.
	ErrNotFound = errors.New("model snapshot not found")
	// ErrCorrupt is returned by Store.Load when the stored snapshot cannot be decoded.
	ErrCorrupt = errors.New("model snapshot is corrupt")
	// ErrLockTimeout is returned when the training lock could not be acquired in time.
	ErrLockTimeout = errors.New("timed out waiting for the model lock")
)

// Sample is a labeled feature vector in model input order.
type Sample struct {
	Features [features.Size]float64 `json:"features" yaml:"features"`
	Label    int                    `json:"label" yaml:"label"`
}

// NewSample builds a sample from a feature vector.
func NewSample(v features.Vector, label int) Sample {
	return Sample{Features: v.Values(), Label: label}
}

// Snapshot is the persisted model. A published snapshot is never modified.
type Snapshot struct {
	State     State     `json:"state"`
	IsTrained bool      `json:"is_trained"`
	Version   int64     `json:"version"`
	Params    *params   `json:"params,omitempty"`
	Samples   []Sample  `json:"samples,omitempty"`
	// Pending is real feedback kept until it holds both labels. Params are
	// not fitted on it yet.
	Pending   []Sample  `json:"pending,omitempty"`
	Metrics   Metrics   `json:"metrics"`
	TrainedAt time.Time `json:"trained_at"`
}

// Store persists snapshots and provides a lock shared by every process using the same store.
type Store interface {
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, snap *Snapshot) error
	// Lock blocks until the lock is held or ctx is done.
	Lock(ctx context.Context) (unlock func() error, err error)
	Close() error
}
