package ranking

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spigell/scoreit/internal/candidate"
	"github.com/spigell/scoreit/internal/features"
	"github.com/spigell/scoreit/internal/metrics"
)

// Predictor scores feature vectors in one batch. *model.Model implements it.
type Predictor interface {
	PredictProba(ctx context.Context, vectors []features.Vector) ([]float64, error)
}

// Result pairs a candidate with the probability of being a good match.
type Result struct {
	Candidate candidate.Candidate `json:"candidate"`
	Score     float64             `json:"score"`
}

// Ranker orders candidates by predicted relevance for a job.
type Ranker struct {
	extractor features.Extractor
	predictor Predictor
	metrics   *metrics.Metrics
}

func New(extractor features.Extractor, predictor Predictor, m *metrics.Metrics) *Ranker {
	if extractor == nil {
		extractor = features.Overlap{}
	}
	return &Ranker{extractor: extractor, predictor: predictor, metrics: m}
}

// Rank scores every candidate with one predictor call and sorts by score, highest first.
// Candidates with equal scores keep their input order. The input slice is not modified.
func (r *Ranker) Rank(ctx context.Context, candidates []candidate.Candidate, job candidate.Job) ([]Result, error) {
	if len(candidates) == 0 {
		return []Result{}, nil
	}

	started := time.Now()

	vectors := features.ExtractAll(r.extractor, candidates, job)
	scores, err := r.predictor.PredictProba(ctx, vectors)
	if err != nil {
		return nil, fmt.Errorf("scoring candidates: %w", err)
	}
	if len(scores) != len(candidates) {
		return nil, fmt.Errorf("predictor returned %d scores for %d candidates", len(scores), len(candidates))
	}

	results := make([]Result, len(candidates))
	for i, c := range candidates {
		results[i] = Result{Candidate: c, Score: scores[i]}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	r.metrics.RecordRank(len(candidates), time.Since(started))
	return results, nil
}
