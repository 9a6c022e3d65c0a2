// Package embeddings turns text into vectors through pluggable providers.
package embeddings

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/spigell/scoreit/internal/metrics"
)

var (
	ErrEmptyInput      = errors.New("empty embedding input")
	ErrInvalidConfig   = errors.New("invalid embeddings config")
	ErrEmbeddingFailed = errors.New("embedding failed")
	ErrInvalidVector   = errors.New("invalid embedding vector")
)

// Embedder encodes text. EncodeBatch returns one vector per text in the same order.
type Embedder interface {
	Encode(ctx context.Context, text string) ([]float32, error)
	EncodeBatch(ctx context.Context, texts []string) ([][]float32, error)
	// Dimension is the vector size, or 0 when unknown until the first call.
	Dimension() int
	Close() error
}

// Validate rejects empty vectors, vectors of the wrong size and non-finite values.
func Validate(vec []float32, dimension int) error {
	if len(vec) == 0 {
		return fmt.Errorf("%w: empty vector", ErrInvalidVector)
	}
	if dimension > 0 && len(vec) != dimension {
		return fmt.Errorf("%w: expected %d dimensions, got %d", ErrInvalidVector, dimension, len(vec))
	}
	for i, v := range vec {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: non-finite value at position %d", ErrInvalidVector, i)
		}
	}
	return nil
}

// Checked validates every vector an Embedder returns and counts failures.
type Checked struct {
	inner    Embedder
	provider string
	metrics  *metrics.Metrics
}

func NewChecked(inner Embedder, provider string, m *metrics.Metrics) *Checked {
	return &Checked{inner: inner, provider: provider, metrics: m}
}

func (c *Checked) Encode(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyInput
	}
	vec, err := c.inner.Encode(ctx, text)
	if err == nil {
		err = Validate(vec, c.inner.Dimension())
	}
	if err != nil {
		c.metrics.RecordEmbeddingError(c.provider)
		return nil, err
	}
	return vec, nil
}

func (c *Checked) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	for i, t := range texts {
		if t == "" {
			return nil, fmt.Errorf("%w: text at position %d", ErrEmptyInput, i)
		}
	}

	vecs, err := c.inner.EncodeBatch(ctx, texts)
	if err == nil && len(vecs) != len(texts) {
		err = fmt.Errorf("%w: got %d vectors for %d texts", ErrEmbeddingFailed, len(vecs), len(texts))
	}
	if err == nil {
		for _, vec := range vecs {
			if err = Validate(vec, c.inner.Dimension()); err != nil {
				break
			}
		}
	}
	if err != nil {
		c.metrics.RecordEmbeddingError(c.provider)
		return nil, err
	}
	return vecs, nil
}

func (c *Checked) Dimension() int {
	return c.inner.Dimension()
}

func (c *Checked) Close() error {
	return c.inner.Close()
}
