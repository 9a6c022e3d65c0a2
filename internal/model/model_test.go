package model

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spigell/scoreit/internal/apperr"
	"github.com/spigell/scoreit/internal/features"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newTestModel(t *testing.T, path string) *Model {
	t.Helper()
	store, err := NewFileStore(path)
	require.NoError(t, err)
	m := New(store, Options{}, zap.NewNop(), nil)
	require.NoError(t, m.Open(context.Background()))
	return m
}

func exampleVectors() []features.Vector {
	return []features.Vector{
		{SkillOverlap: 2, ExperienceGap: 1, QualificationMatch: 1},
		{SkillOverlap: 0, ExperienceGap: 1, QualificationMatch: 0},
	}
}

func TestPredictBootstrapsOnColdStart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	core, logs := observer.New(zapcore.InfoLevel)
	store, err := NewFileStore(path)
	require.NoError(t, err)

	m := New(store, Options{}, zap.New(core), nil)
	require.NoError(t, m.Open(context.Background()))
	assert.Equal(t, StateUninitialized, m.State())

	scores, err := m.PredictProba(context.Background(), exampleVectors())
	require.NoError(t, err)
	require.Len(t, scores, 2)

	for _, s := range scores {
		assert.GreaterOrEqual(t, s, 0.0)
		assert.LessOrEqual(t, s, 1.0)
	}
	assert.Greater(t, scores[0], scores[1])
	assert.Equal(t, StateBootstrapped, m.State())
	assert.Equal(t, 1, logs.FilterMessage("model bootstrapped on synthetic data").Len())

	snap, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateBootstrapped, snap.State)
	assert.False(t, snap.IsTrained)
	assert.Len(t, snap.Samples, DefaultBootstrapSamples)
}

func TestBootstrapIsDeterministic(t *testing.T) {
	a := newTestModel(t, filepath.Join(t.TempDir(), "a.json"))
	b := newTestModel(t, filepath.Join(t.TempDir(), "b.json"))

	sa, err := a.PredictProba(context.Background(), exampleVectors())
	require.NoError(t, err)
	sb, err := b.PredictProba(context.Background(), exampleVectors())
	require.NoError(t, err)

	assert.Equal(t, sa, sb)
}

func TestTrainReportsTrainingSetMetrics(t *testing.T) {
	m := newTestModel(t, filepath.Join(t.TempDir(), "model.json"))

	samples := syntheticSamples(200, 7)
	X := make([]features.Vector, len(samples))
	y := make([]int, len(samples))
	for i, s := range samples {
		v, err := features.FromValues(s.Features[:])
		require.NoError(t, err)
		X[i] = v
		y[i] = s.Label
	}

	got, err := m.Train(context.Background(), X, y)
	require.NoError(t, err)
	assert.Greater(t, got.Accuracy, 0.8)
	assert.Greater(t, got.AUC, 0.9)

	scores, err := m.PredictProba(context.Background(), X)
	require.NoError(t, err)
	assert.InDelta(t, got.Accuracy, accuracy(scores, y), 1e-12)
	assert.Equal(t, StateTrained, m.State())
	assert.True(t, m.Status().IsTrained)
}

func TestStateNeverReverts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	m := newTestModel(t, path)

	_, err := m.AddFeedback(context.Background(), []Sample{
		{Features: [features.Size]float64{5, 0, 1}, Label: 1},
		{Features: [features.Size]float64{0, 8, 0}, Label: 0},
	})
	require.NoError(t, err)
	require.Equal(t, StateTrained, m.State())

	require.NoError(t, m.Bootstrap(context.Background()))
	assert.Equal(t, StateTrained, m.State())

	reopened := newTestModel(t, path)
	assert.Equal(t, StateTrained, reopened.State())
	assert.Equal(t, 2, reopened.Status().Samples)

	_, err = reopened.PredictProba(context.Background(), exampleVectors())
	require.NoError(t, err)
	assert.Equal(t, StateTrained, reopened.State())
}

func TestTrainValidation(t *testing.T) {
	m := newTestModel(t, filepath.Join(t.TempDir(), "model.json"))
	v := features.Vector{SkillOverlap: 1}

	tests := []struct {
		name string
		X    []features.Vector
		y    []int
	}{
		{name: "empty", X: nil, y: nil},
		{name: "length mismatch", X: []features.Vector{v, v}, y: []int{1}},
		{name: "single class", X: []features.Vector{v, v}, y: []int{1, 1}},
		{name: "bad label", X: []features.Vector{v, v}, y: []int{1, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Train(context.Background(), tt.X, tt.y)
			require.Error(t, err)
			assert.True(t, apperr.Is(err, apperr.KindInvalidInput), "unexpected error: %v", err)
			assert.Equal(t, 1, strings.Count(err.Error(), "train:"), "message repeated: %v", err)
		})
	}

	assert.Equal(t, StateUninitialized, m.State())
}

func TestAddFeedbackAccumulates(t *testing.T) {
	m := newTestModel(t, filepath.Join(t.TempDir(), "model.json"))

	first := []Sample{
		{Features: [features.Size]float64{4, 1, 1}, Label: 1},
		{Features: [features.Size]float64{0, 6, 0}, Label: 0},
	}
	second := []Sample{
		{Features: [features.Size]float64{3, 0, 1}, Label: 1},
	}

	_, err := m.AddFeedback(context.Background(), first)
	require.NoError(t, err)
	_, err = m.AddFeedback(context.Background(), second)
	require.NoError(t, err)

	status := m.Status()
	assert.Equal(t, 3, status.Samples)
	assert.Equal(t, int64(2), status.Version)

	_, err = m.AddFeedback(context.Background(), nil)
	assert.True(t, apperr.Is(err, apperr.KindInvalidInput))
}

func TestFeedbackOneLabelAtATime(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	m := newTestModel(t, path)
	require.NoError(t, m.Bootstrap(context.Background()))

	_, err := m.AddFeedback(context.Background(), []Sample{
		{Features: [features.Size]float64{3, 1, 1}, Label: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, StateBootstrapped, m.State())
	assert.Equal(t, 1, m.Status().Pending)

	// Pending feedback survives a restart.
	reopened := newTestModel(t, path)
	assert.Equal(t, 1, reopened.Status().Pending)

	_, err = reopened.AddFeedback(context.Background(), []Sample{
		{Features: [features.Size]float64{0, 9, 0}, Label: 0},
	})
	require.NoError(t, err)

	status := reopened.Status()
	assert.Equal(t, StateTrained.String(), status.State)
	assert.Equal(t, 2, status.Samples)
	assert.Equal(t, 0, status.Pending)

	scores, err := reopened.PredictProba(context.Background(), []features.Vector{
		{SkillOverlap: 3, ExperienceGap: 1, QualificationMatch: 1},
		{SkillOverlap: 0, ExperienceGap: 9, QualificationMatch: 0},
	})
	require.NoError(t, err)
	assert.Greater(t, scores[0], scores[1])
}

func TestSingleLabelFeedbackOnColdModel(t *testing.T) {
	m := newTestModel(t, filepath.Join(t.TempDir(), "model.json"))

	_, err := m.AddFeedback(context.Background(), []Sample{
		{Features: [features.Size]float64{4, 0, 1}, Label: 1},
		{Features: [features.Size]float64{2, 1, 1}, Label: 1},
	})
	require.NoError(t, err)

	status := m.Status()
	assert.Equal(t, StateBootstrapped.String(), status.State)
	assert.Equal(t, 2, status.Pending)
	assert.Equal(t, DefaultBootstrapSamples, status.Samples)

	_, err = m.PredictProba(context.Background(), exampleVectors())
	require.NoError(t, err)
}

func TestUnusableSnapshotIsRebuilt(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		wantPending int
	}{
		{name: "trained without params", content: `{"state":"trained","is_trained":true,"version":3}`},
		{name: "truncated", content: `{"state":"trained","ver`},
		{
			name:        "trained samples without params",
			content:     `{"state":"trained","is_trained":true,"version":2,"samples":[{"features":[3,0,1],"label":1},{"features":[0,7,0],"label":0}]}`,
			wantPending: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "model.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			m := newTestModel(t, path)
			assert.Equal(t, StateUninitialized, m.State())

			scores, err := m.PredictProba(context.Background(), exampleVectors())
			require.NoError(t, err)
			require.Len(t, scores, 2)
			assert.Equal(t, StateBootstrapped, m.State())
			assert.Equal(t, tt.wantPending, m.Status().Pending)

			reopened := newTestModel(t, path)
			assert.Equal(t, StateBootstrapped, reopened.State())
		})
	}
}

func TestConcurrentFeedbackKeepsEverySample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	// Two models on one file behave like two processes sharing the store.
	a := newTestModel(t, path)
	b := newTestModel(t, path)

	batch := []Sample{
		{Features: [features.Size]float64{6, 0, 1}, Label: 1},
		{Features: [features.Size]float64{1, 7, 0}, Label: 0},
	}

	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers*2)
	for i := 0; i < writers; i++ {
		for _, m := range []*Model{a, b} {
			wg.Add(1)
			go func(m *Model) {
				defer wg.Done()
				if _, err := m.AddFeedback(context.Background(), batch); err != nil {
					errs <- err
				}
			}(m)
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	store, err := NewFileStore(path)
	require.NoError(t, err)
	snap, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, snap.Samples, writers*2*len(batch))
	assert.Equal(t, int64(writers*2), snap.Version)
}

func TestPredictWhileTraining(t *testing.T) {
	m := newTestModel(t, filepath.Join(t.TempDir(), "model.json"))
	require.NoError(t, m.Bootstrap(context.Background()))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 3; i++ {
			_, err := m.AddFeedback(context.Background(), []Sample{
				{Features: [features.Size]float64{5, 1, 1}, Label: 1},
				{Features: [features.Size]float64{0, 9, 0}, Label: 0},
			})
			assert.NoError(t, err)
		}
	}()

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				scores, err := m.PredictProba(context.Background(), exampleVectors())
				assert.NoError(t, err)
				assert.Len(t, scores, 2)
			}
		}()
	}
	wg.Wait()
}

func TestRocAUC(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		scores []float64
		y      []int
		expect float64
	}{
		{"perfect", []float64{0.1, 0.2, 0.8, 0.9}, []int{0, 0, 1, 1}, 1},
		{"inverted", []float64{0.9, 0.8, 0.2, 0.1}, []int{0, 0, 1, 1}, 0},
		{"all tied", []float64{0.5, 0.5, 0.5, 0.5}, []int{0, 1, 0, 1}, 0.5},
		{"one swap", []float64{0.1, 0.6, 0.5, 0.9}, []int{0, 0, 1, 1}, 0.75},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tt.expect, rocAUC(tt.scores, tt.y), 1e-12)
		})
	}
}

func TestSyntheticSamples(t *testing.T) {
	small := syntheticSamples(5, 1)
	assert.Len(t, small, MinBootstrapSamples)

	samples := syntheticSamples(100, 42)
	assert.Equal(t, samples, syntheticSamples(100, 42))

	var pos, neg int
	for _, s := range samples {
		assert.GreaterOrEqual(t, s.Features[0], 0.0)
		assert.LessOrEqual(t, s.Features[0], 10.0)
		assert.GreaterOrEqual(t, s.Features[1], 0.0)
		assert.LessOrEqual(t, s.Features[1], 10.0)
		assert.Contains(t, []float64{0, 1}, s.Features[2])
		assert.Equal(t, syntheticLabel(s.Features), s.Label)
		if s.Label == 1 {
			pos++
		} else {
			neg++
		}
	}
	assert.Positive(t, pos)
	assert.Positive(t, neg)
}
