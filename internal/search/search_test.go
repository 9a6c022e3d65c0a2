package search

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/spigell/scoreit/internal/apperr"
	"github.com/spigell/scoreit/internal/candidate"
	"github.com/spigell/scoreit/internal/query"
	"github.com/spigell/scoreit/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubExtractor struct {
	job candidate.Job
	err error
}

func (s stubExtractor) Name() string { return "stub" }

func (s stubExtractor) Extract(context.Context, string) (candidate.Job, error) {
	return s.job, s.err
}

// keywordEmbedder maps texts mentioning Go close to each other.
type keywordEmbedder struct {
	err   error
	texts []string
}

func (k *keywordEmbedder) vector(text string) []float32 {
	if strings.Contains(text, "Go") {
		return []float32{1, 0.1, 0}
	}
	return []float32{0, 1, 0.1}
}

func (k *keywordEmbedder) Encode(_ context.Context, text string) ([]float32, error) {
	if k.err != nil {
		return nil, k.err
	}
	k.texts = append(k.texts, text)
	return k.vector(text), nil
}

func (k *keywordEmbedder) EncodeBatch(_ context.Context, texts []string) ([][]float32, error) {
	if k.err != nil {
		return nil, k.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		k.texts = append(k.texts, t)
		out[i] = k.vector(t)
	}
	return out, nil
}

func (k *keywordEmbedder) Dimension() int { return 3 }
func (k *keywordEmbedder) Close() error   { return nil }

type failingStore struct{}

func (failingStore) Search(context.Context, []float32, int) ([]candidate.Document, error) {
	return nil, errors.New("connection refused")
}

func (failingStore) Upsert(context.Context, []candidate.Document) ([]string, error) {
	return nil, errors.New("connection refused")
}

func (failingStore) Close(context.Context) error { return nil }

var goJob = candidate.Job{Skills: []string{"Go"}, Experience: 5, Qualifications: []string{"BSc"}}

func newService(t *testing.T, emb *keywordEmbedder) *Service {
	t.Helper()
	s, err := store.NewChromem(store.ChromemConfig{}, zap.NewNop())
	require.NoError(t, err)
	return New(stubExtractor{job: goJob}, emb, s, zap.NewNop(), nil)
}

func TestProcessJobDescription(t *testing.T) {
	emb := &keywordEmbedder{}
	svc := newService(t, emb)

	out, err := svc.ProcessJobDescription(context.Background(), "We need a Go developer")
	require.NoError(t, err)

	assert.Equal(t, goJob, out.Extracted)
	assert.Equal(t, "A candidate with 5 years of experience, skilled in Go, and holding BSc.", out.StandardizedQuery)
	assert.Equal(t, []float32{1, 0.1, 0}, out.Embedding)
	assert.Equal(t, []string{out.StandardizedQuery}, emb.texts)
}

func TestIngestAndSearch(t *testing.T) {
	ctx := context.Background()
	emb := &keywordEmbedder{}
	svc := newService(t, emb)

	ids, err := svc.Ingest(ctx, []candidate.Document{
		{Name: "Bob", Skills: []string{"Java"}, Experience: 3},
		{ID: "ada", Name: "Ada", Title: "Engineer", Skills: []string{"Go", "SQL"}, Experience: 6, Qualifications: []string{"BSc"}},
	})
	require.NoError(t, err)
	require.Len(t, ids, 2)
	assert.NotEmpty(t, ids[0])
	assert.Equal(t, "ada", ids[1])
	assert.Equal(t, "Bob with 3+ years of experience, skilled in Java, and holding relevant qualifications.", emb.texts[0])

	resp, err := svc.Search(ctx, "We need a Go developer", 0)
	require.NoError(t, err)

	assert.Equal(t, query.Build(goJob), resp.Query)
	assert.Equal(t, goJob, resp.ExtractedFeatures)
	require.Len(t, resp.Results, 2)

	top := resp.Results[0]
	assert.Equal(t, "ada", top.ID)
	assert.Equal(t, "Ada", top.Name)
	assert.Equal(t, "Engineer", top.Title)
	assert.Equal(t, []string{"Go", "SQL"}, top.Skills)
	assert.Contains(t, top.Summary, "skilled in Go, SQL")
	assert.Greater(t, top.MatchScore, resp.Results[1].MatchScore)

	limited, err := svc.Search(ctx, "We need a Go developer", 1)
	require.NoError(t, err)
	assert.Len(t, limited.Results, 1)
}

func TestSearchValidatesTopK(t *testing.T) {
	svc := newService(t, &keywordEmbedder{})

	for _, k := range []int{-1, 1001} {
		_, err := svc.Search(context.Background(), "Go developer", k)
		require.Error(t, err)
		assert.Equal(t, apperr.KindInvalidInput, apperr.KindOf(err), "top_k=%d", k)
	}

	resp, err := svc.Search(context.Background(), "Go developer", MaxTopK)
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
	assert.NotNil(t, resp.Results)
}

func TestSearchErrorKinds(t *testing.T) {
	ctx := context.Background()

	svc := newService(t, &keywordEmbedder{})
	_, err := svc.Search(ctx, "   ", 10)
	assert.Equal(t, apperr.KindInvalidInput, apperr.KindOf(err))

	svc = newService(t, &keywordEmbedder{err: errors.New("model not loaded")})
	_, err = svc.Search(ctx, "Go developer", 10)
	assert.Equal(t, apperr.KindEmbedding, apperr.KindOf(err))

	svc = New(stubExtractor{job: goJob}, &keywordEmbedder{}, failingStore{}, nil, nil)
	_, err = svc.Search(ctx, "Go developer", 10)
	assert.Equal(t, apperr.KindUpstreamSearch, apperr.KindOf(err))
	assert.Equal(t, "candidate search is unavailable", apperr.PublicMessage(err))

	_, err = svc.Ingest(ctx, []candidate.Document{{Name: "Ada"}})
	assert.Equal(t, apperr.KindUpstreamSearch, apperr.KindOf(err))

	svc = New(stubExtractor{err: errors.New("boom")}, &keywordEmbedder{}, failingStore{}, nil, nil)
	_, err = svc.ExtractJobFeatures(ctx, "Go developer")
	assert.Equal(t, apperr.KindExtraction, apperr.KindOf(err))
}

func TestIngestRejectsEmpty(t *testing.T) {
	svc := newService(t, &keywordEmbedder{})
	_, err := svc.Ingest(context.Background(), nil)
	assert.Equal(t, apperr.KindInvalidInput, apperr.KindOf(err))
}
