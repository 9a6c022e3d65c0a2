//go:build !cgo

package embeddings

import (
	"context"
	"errors"
)

const DefaultFastEmbedModel = "sentence-transformers/all-MiniLM-L6-v2"

// ErrFastEmbedNotAvailable is returned when the binary was built without cgo.
var ErrFastEmbedNotAvailable = errors.New("fastembed: not available (binary built without CGO support, use the tei or gemini provider instead)")

type FastEmbedConfig struct {
	Model     string
	CacheDir  string
	MaxLength int
}

// FastEmbed is a stub for non-cgo builds.
type FastEmbed struct{}

func NewFastEmbed(_ FastEmbedConfig) (*FastEmbed, error) {
	return nil, ErrFastEmbedNotAvailable
}

func (p *FastEmbed) Encode(_ context.Context, _ string) ([]float32, error) {
	return nil, ErrFastEmbedNotAvailable
}

func (p *FastEmbed) EncodeBatch(_ context.Context, _ []string) ([][]float32, error) {
	return nil, ErrFastEmbedNotAvailable
}

func (p *FastEmbed) Dimension() int {
	return 0
}

func (p *FastEmbed) Close() error {
	return nil
}
