package cmd

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/spigell/scoreit/internal/candidate"
	"github.com/spigell/scoreit/internal/model"
	"github.com/spigell/scoreit/internal/ranking"
	"github.com/spigell/scoreit/internal/store"

	"github.com/alicebob/miniredis/v2"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setConfig overrides global viper keys for one test and restores the defaults afterwards.
func setConfig(t *testing.T, values map[string]any) {
	t.Helper()

	defaults := viper.New()
	setDefaults(defaults)

	for key, value := range values {
		viper.Set(key, value)
		t.Cleanup(func() { viper.Set(key, defaults.Get(key)) })
	}
}

func TestDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	var config Config
	require.NoError(t, v.Unmarshal(&config))

	assert.Equal(t, "0.0.0.0", config.Server.Host)
	assert.Equal(t, 8000, config.Server.Port)
	assert.Equal(t, "file", config.Model.Backend)
	assert.Equal(t, model.DefaultRedisKey, config.Model.RedisKey)
	assert.Equal(t, 30*time.Second, config.Model.LockTimeout)
	assert.Equal(t, store.BackendChromem, config.Store.Backend)
	assert.Equal(t, "resumes", config.Store.Mongo.Collection)
	assert.Equal(t, 6334, config.Store.Qdrant.Port)
	assert.Equal(t, "fastembed", config.Embeddings.Provider)
	assert.False(t, config.AI.Enabled)
	require.NotNil(t, config.AI.Gemini)
	assert.Equal(t, 3, config.AI.Gemini.MaxRetries)
}

func TestNewAppFileModel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	setConfig(t, map[string]any{"model.path": path})

	ctx := context.Background()
	a, err := newApp(ctx, appParts{})
	require.NoError(t, err)
	defer a.Close(ctx)

	assert.Equal(t, model.StateBootstrapped, a.Model.State())
	assert.FileExists(t, path)
	assert.Nil(t, a.Search)

	results, err := a.Ranker.Rank(ctx, []candidate.Candidate{
		{Skills: []string{"Go"}, Experience: 5},
		{Skills: []string{"Go", "SQL"}, Experience: 5, Qualifications: []string{"BSc"}},
	}, candidate.Job{Skills: []string{"Go", "SQL"}, Experience: 3, Qualifications: []string{"BSc"}})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
}

func TestNewAppRedisModel(t *testing.T) {
	mr := miniredis.RunT(t)
	setConfig(t, map[string]any{
		"model.backend": "redis",
		"redis.addr":    mr.Addr(),
	})

	ctx := context.Background()
	a, err := newApp(ctx, appParts{})
	require.NoError(t, err)
	defer a.Close(ctx)

	assert.Equal(t, model.StateBootstrapped, a.Model.State())
	assert.True(t, mr.Exists(model.DefaultRedisKey))
}

func TestNewAppErrors(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")

	tests := []struct {
		name   string
		values map[string]any
		parts  appParts
		errMsg string
	}{
		{
			name:   "unknown model backend",
			values: map[string]any{"model.backend": "sqlite"},
			errMsg: "unknown model backend",
		},
		{
			name:   "redis without address",
			values: map[string]any{"model.backend": "redis", "redis.addr": ""},
			errMsg: "redis.addr is required",
		},
		{
			name: "llm extraction without a key",
			values: map[string]any{
				"model.path": filepath.Join(t.TempDir(), "model.json"),
				"ai.enabled": true,
			},
			parts:  appParts{search: true},
			errMsg: "GEMINI_API_KEY",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setConfig(t, tt.values)

			_, err := newApp(context.Background(), tt.parts)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLabelFor(t *testing.T) {
	got, err := labelFor(PromptGood)
	require.NoError(t, err)
	assert.Equal(t, 1, got)

	got, err = labelFor(PromptPoor)
	require.NoError(t, err)
	assert.Equal(t, 0, got)

	got, err = labelFor(PromptSkip)
	require.NoError(t, err)
	assert.Equal(t, -1, got)

	_, err = labelFor(PromptStop)
	assert.ErrorIs(t, err, errStop)

	_, err = labelFor("maybe")
	assert.Error(t, err)
}

func TestSplitSamples(t *testing.T) {
	X, y := splitSamples([]model.Sample{
		{Features: [3]float64{2, 1, 1}, Label: 1},
		{Features: [3]float64{0, 4, 0}, Label: 0},
	})

	require.Len(t, X, 2)
	assert.Equal(t, 2, X[0].SkillOverlap)
	assert.Equal(t, 4, X[1].ExperienceGap)
	assert.Equal(t, 1, X[0].QualificationMatch)
	assert.Equal(t, []int{1, 0}, y)
}

func TestDescribeResult(t *testing.T) {
	got := describeResult(ranking.Result{
		Candidate: candidate.Candidate{Skills: []string{"Go", "SQL"}, Experience: 4},
		Score:     0.8,
	})
	assert.Equal(t, "score 0.800 / skills: Go, SQL / 4 years", got)
}
