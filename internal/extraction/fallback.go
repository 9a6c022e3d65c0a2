package extraction

import (
	"context"
	"errors"
	"strings"

	"github.com/spigell/scoreit/internal/candidate"
	"github.com/spigell/scoreit/internal/metrics"

	"go.uber.org/zap"
)

// Fallback tries the primary extractor and degrades to the secondary one, then
// to empty fields. Only a cancelled context is returned as an error.
type Fallback struct {
	primary   FieldExtractor
	secondary FieldExtractor
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// NewFallback accepts a nil primary, in which case the secondary always runs.
func NewFallback(primary, secondary FieldExtractor, logger *zap.Logger, m *metrics.Metrics) *Fallback {
	if logger == nil {
		logger = zap.NewNop()
	}
	if secondary == nil {
		secondary = NewRegex(nil)
	}
	return &Fallback{primary: primary, secondary: secondary, logger: logger, metrics: m}
}

func (f *Fallback) Name() string {
	if f.primary == nil {
		return f.secondary.Name()
	}
	return f.primary.Name() + "+" + f.secondary.Name()
}

func (f *Fallback) Extract(ctx context.Context, text string) (candidate.Job, error) {
	if strings.TrimSpace(text) == "" {
		return normalize(candidate.Job{}), nil
	}

	if f.primary != nil {
		job, err := f.primary.Extract(ctx, text)
		if err == nil {
			return job, nil
		}
		if ctx.Err() != nil {
			return candidate.Job{}, ctx.Err()
		}

		reason := "llm_error"
		if errors.Is(err, ErrMalformedResponse) {
			reason = "malformed_response"
		}
		f.metrics.RecordExtractionFallback(reason)
		f.logger.Warn("primary extraction failed, using fallback",
			zap.String("primary", f.primary.Name()),
			zap.String("fallback", f.secondary.Name()),
			zap.String("reason", reason),
			zap.Error(err),
		)
	}

	job, err := f.secondary.Extract(ctx, text)
	if err != nil {
		if ctx.Err() != nil {
			return candidate.Job{}, ctx.Err()
		}
		f.logger.Warn("fallback extraction failed, using empty fields", zap.Error(err))
		return normalize(candidate.Job{}), nil
	}
	return job, nil
}
