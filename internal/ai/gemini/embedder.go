package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/spigell/scoreit/internal/logger"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// maxEmbedBatch is the largest number of texts sent in one EmbedContent call.
const maxEmbedBatch = 100

// Embedder produces text embeddings with the Gemini embedding models.
type Embedder struct {
	models    contentModels
	modelName string
	outputDim int32
	limiter   *rate.Limiter
	logger    *zap.Logger
	dimension atomic.Int64
}

func NewEmbedder(ctx context.Context, cfg Config, log *zap.Logger) (*Embedder, error) {
	models, err := newModels(ctx, cfg.APIKey)
	if err != nil {
		return nil, err
	}

	model := strings.TrimSpace(cfg.EmbeddingModel)
	if model == "" {
		model = defaultEmbeddingModel
	}

	e := &Embedder{
		models:    models,
		modelName: model,
		outputDim: int32(cfg.EmbeddingDimension),
		limiter:   newLimiter(cfg.RequestsPerMinute),
		logger:    logger.WithCommonFields(log, providerName, model),
	}
	if cfg.EmbeddingDimension > 0 {
		e.dimension.Store(int64(cfg.EmbeddingDimension))
	}
	return e, nil
}

func (e *Embedder) Encode(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EncodeBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *Embedder) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, errors.New("texts cannot be empty")
	}

	var config *genai.EmbedContentConfig
	if e.outputDim > 0 {
		dim := e.outputDim
		config = &genai.EmbedContentConfig{OutputDimensionality: &dim}
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxEmbedBatch {
		end := min(start+maxEmbedBatch, len(texts))

		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("waiting for gemini rate limit: %w", err)
			}
		}

		contents := make([]*genai.Content, 0, end-start)
		for _, text := range texts[start:end] {
			contents = append(contents, &genai.Content{Role: genai.RoleUser, Parts: []*genai.Part{{Text: text}}})
		}

		resp, err := e.models.EmbedContent(ctx, e.modelName, contents, config)
		if err != nil {
			return nil, classify(fmt.Errorf("embed content: %w", err))
		}
		if resp == nil || len(resp.Embeddings) != len(contents) {
			return nil, &Error{Err: fmt.Errorf("gemini returned an unexpected number of embeddings for %d texts", len(contents))}
		}

		for _, emb := range resp.Embeddings {
			if emb == nil {
				return nil, &Error{Err: errors.New("gemini returned an empty embedding")}
			}
			out = append(out, emb.Values)
		}
	}

	if len(out) > 0 {
		e.dimension.CompareAndSwap(0, int64(len(out[0])))
	}
	e.logger.Debug("gemini embed content", zap.Int("texts", len(texts)))
	return out, nil
}

func (e *Embedder) Dimension() int {
	return int(e.dimension.Load())
}

func (e *Embedder) Close() error {
	return nil
}

func (e *Embedder) Model() string {
	return e.modelName
}
