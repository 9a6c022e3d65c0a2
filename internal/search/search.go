package search

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/spigell/scoreit/internal/apperr"
	"github.com/spigell/scoreit/internal/candidate"
	"github.com/spigell/scoreit/internal/embeddings"
	"github.com/spigell/scoreit/internal/extraction"
	"github.com/spigell/scoreit/internal/metrics"
	"github.com/spigell/scoreit/internal/query"
	"github.com/spigell/scoreit/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultTopK = 100
	MaxTopK     = 1000
)

// Processed is a job description turned into something searchable.
type Processed struct {
	Extracted         candidate.Job `json:"extracted"`
	StandardizedQuery string        `json:"standardized_query"`
	Embedding         []float32     `json:"embedding"`
}

// Result is one matched candidate as returned to clients.
type Result struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Title      string   `json:"title"`
	Company    string   `json:"company"`
	Summary    string   `json:"summary"`
	Skills     []string `json:"skills"`
	MatchScore float64  `json:"matchScore"`
	AvatarURL  string   `json:"avatarUrl,omitempty"`
	Location   string   `json:"location,omitempty"`
	Email      string   `json:"email,omitempty"`
}

type Response struct {
	Query             string        `json:"query"`
	ExtractedFeatures candidate.Job `json:"extracted_features"`
	Results           []Result      `json:"results"`
}

// Service runs job descriptions through extraction, embedding and vector search.
type Service struct {
	extractor extraction.FieldExtractor
	embedder  embeddings.Embedder
	store     store.CandidateStore
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

func New(extractor extraction.FieldExtractor, embedder embeddings.Embedder, candidates store.CandidateStore, logger *zap.Logger, m *metrics.Metrics) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		extractor: extractor,
		embedder:  embedder,
		store:     candidates,
		logger:    logger,
		metrics:   m,
	}
}

// ExtractJobFeatures returns the structured fields of a job description.
func (s *Service) ExtractJobFeatures(ctx context.Context, text string) (candidate.Job, error) {
	const op = "search.ExtractJobFeatures"

	if strings.TrimSpace(text) == "" {
		return candidate.Job{}, apperr.InvalidInput(op, "job description text is required", nil)
	}

	job, err := s.extractor.Extract(ctx, text)
	if err != nil {
		if ctx.Err() != nil {
			return candidate.Job{}, err
		}
		return candidate.Job{}, apperr.New(apperr.KindExtraction, op, "could not extract job fields", err)
	}
	return job, nil
}

// ProcessJobDescription extracts fields, builds the standardized query and embeds it.
func (s *Service) ProcessJobDescription(ctx context.Context, text string) (Processed, error) {
	const op = "search.ProcessJobDescription"

	job, err := s.ExtractJobFeatures(ctx, text)
	if err != nil {
		return Processed{}, err
	}

	q := query.Build(job)
	vec, err := s.embedder.Encode(ctx, q)
	if err != nil {
		return Processed{}, apperr.Embedding(op, err)
	}

	return Processed{Extracted: job, StandardizedQuery: q, Embedding: vec}, nil
}

// Search finds the topK stored candidates closest to the job description.
// A zero topK means DefaultTopK.
func (s *Service) Search(ctx context.Context, jobDescription string, topK int) (Response, error) {
	const op = "search.Search"

	if topK == 0 {
		topK = DefaultTopK
	}
	if topK < 1 || topK > MaxTopK {
		return Response{}, apperr.InvalidInput(op, "top_k must be between 1 and 1000", nil)
	}

	processed, err := s.ProcessJobDescription(ctx, jobDescription)
	if err != nil {
		return Response{}, err
	}

	start := time.Now()
	docs, err := s.store.Search(ctx, processed.Embedding, topK)
	if err != nil {
		return Response{}, apperr.UpstreamSearch(op, err)
	}

	results := make([]Result, 0, len(docs))
	for _, d := range docs {
		results = append(results, toResult(d))
	}

	s.metrics.RecordSearch(len(results))
	s.logger.Debug("semantic search finished",
		zap.Int("top_k", topK),
		zap.Int("results", len(results)),
		zap.Duration("took", time.Since(start)),
	)

	return Response{
		Query:             processed.StandardizedQuery,
		ExtractedFeatures: processed.Extracted,
		Results:           results,
	}, nil
}

// Ingest fills in missing ids and summaries, embeds every summary in one
// batch and stores the documents. The stored ids are returned in input order.
func (s *Service) Ingest(ctx context.Context, docs []candidate.Document) ([]string, error) {
	const op = "search.Ingest"

	if len(docs) == 0 {
		return nil, apperr.InvalidInput(op, "at least one candidate is required", nil)
	}

	prepared := make([]candidate.Document, len(docs))
	summaries := make([]string, len(docs))
	for i, d := range docs {
		if strings.TrimSpace(d.ID) == "" {
			d.ID = uuid.NewString()
		}
		if strings.TrimSpace(d.Summary) == "" {
			d.Summary = candidate.BuildSummary(d)
		}
		prepared[i] = d
		summaries[i] = d.Summary
	}

	vecs, err := s.embedder.EncodeBatch(ctx, summaries)
	if err != nil {
		if errors.Is(err, embeddings.ErrEmptyInput) {
			return nil, apperr.InvalidInput(op, "candidate summaries must not be empty", err)
		}
		return nil, apperr.Embedding(op, err)
	}
	if len(vecs) != len(prepared) {
		return nil, apperr.Embedding(op, embeddings.ErrEmbeddingFailed)
	}
	for i := range prepared {
		prepared[i].Embedding = vecs[i]
	}

	ids, err := s.store.Upsert(ctx, prepared)
	if err != nil {
		return nil, apperr.UpstreamSearch(op, err)
	}

	s.logger.Info("candidates ingested", zap.Int("count", len(ids)))
	return ids, nil
}

func toResult(d candidate.Document) Result {
	skills := d.Skills
	if skills == nil {
		skills = []string{}
	}
	return Result{
		ID:         d.ID,
		Name:       d.Name,
		Title:      d.Title,
		Company:    d.Company,
		Summary:    d.Summary,
		Skills:     skills,
		MatchScore: d.Score,
		AvatarURL:  d.AvatarURL,
		Location:   d.Location,
		Email:      d.Email,
	}
}
