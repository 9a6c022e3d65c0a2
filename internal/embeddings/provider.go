package embeddings

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spigell/scoreit/internal/ai/gemini"
	"github.com/spigell/scoreit/internal/logger"
	"github.com/spigell/scoreit/internal/metrics"

	"go.uber.org/zap"
)

const (
	ProviderFastEmbed = "fastembed"
	ProviderTEI       = "tei"
	ProviderGemini    = "gemini"
)

// Config selects and configures an embeddings provider.
type Config struct {
	Provider  string
	Model     string
	CacheDir  string
	MaxLength int
	BaseURL   string
	Token     string
	Timeout   time.Duration
	Dimension int

	// Gemini is used when Provider is "gemini".
	Gemini gemini.Config
}

// New builds the configured provider wrapped with vector validation.
func New(ctx context.Context, cfg Config, log *zap.Logger, m *metrics.Metrics) (Embedder, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = ProviderFastEmbed
	}

	log = logger.WithCommonFields(logger.Component(log, "embeddings"), provider, cfg.Model)

	var (
		inner Embedder
		err   error
	)

	switch provider {
	case ProviderFastEmbed:
		inner, err = NewFastEmbed(FastEmbedConfig{
			Model:     cfg.Model,
			CacheDir:  cfg.CacheDir,
			MaxLength: cfg.MaxLength,
		})
	case ProviderTEI:
		inner, err = NewTEI(TEIConfig{
			BaseURL: cfg.BaseURL,
			Token:   cfg.Token,
			Timeout: cfg.Timeout,
		}, log)
	case ProviderGemini:
		gcfg := cfg.Gemini
		if gcfg.EmbeddingModel == "" {
			gcfg.EmbeddingModel = cfg.Model
		}
		if gcfg.EmbeddingDimension == 0 {
			gcfg.EmbeddingDimension = cfg.Dimension
		}
		inner, err = gemini.NewEmbedder(ctx, gcfg, log)
	default:
		return nil, fmt.Errorf("%w: unknown embeddings provider %q (supported: fastembed, tei, gemini)", ErrInvalidConfig, cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	log.Info("embeddings provider ready", zap.Int("dimension", inner.Dimension()))
	return NewChecked(inner, provider, m), nil
}
