package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/spigell/scoreit/internal/ai/gemini"
	"github.com/spigell/scoreit/internal/embeddings"
	"github.com/spigell/scoreit/internal/extraction"
	"github.com/spigell/scoreit/internal/features"
	"github.com/spigell/scoreit/internal/logger"
	"github.com/spigell/scoreit/internal/metrics"
	"github.com/spigell/scoreit/internal/model"
	"github.com/spigell/scoreit/internal/ranking"
	"github.com/spigell/scoreit/internal/retry"
	"github.com/spigell/scoreit/internal/search"
	"github.com/spigell/scoreit/internal/secrets"
	"github.com/spigell/scoreit/internal/store"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// App owns every client a command needs and closes them in reverse order.
type App struct {
	Config  *Config
	Logger  *zap.Logger
	Metrics *metrics.Metrics

	Model  *model.Model
	Ranker *ranking.Ranker
	Search *search.Service

	closers []func(context.Context) error
}

type appParts struct {
	search bool
}

// newApp builds the model and ranker, and the search service when asked for.
// Failures are fatal for commands, so the logger is created before anything else.
func newApp(ctx context.Context, parts appParts) (*App, error) {
	log, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		return nil, fmt.Errorf("creating a logger: %w", err)
	}

	config, err := getConfig()
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:  config,
		Logger:  log,
		Metrics: metrics.New(),
	}
	a.onClose(func(context.Context) error {
		_ = log.Sync()
		return nil
	})

	if err := a.openModel(ctx); err != nil {
		a.Close(ctx)
		return nil, err
	}

	if parts.search {
		if err := a.openSearch(ctx); err != nil {
			a.Close(ctx)
			return nil, err
		}
	}

	return a, nil
}

func (a *App) onClose(fn func(context.Context) error) {
	a.closers = append(a.closers, fn)
}

// Close releases resources. Errors are logged, not returned.
func (a *App) Close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.Logger.Warn("closing resource", zap.Error(err))
		}
	}
	a.closers = nil
}

func (a *App) openModel(ctx context.Context) error {
	cfg := a.Config.Model

	var (
		st  model.Store
		err error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "file":
		st, err = model.NewFileStore(cfg.Path)
	case "redis":
		var client *redis.Client
		client, err = a.redisClient(ctx)
		if err == nil {
			st, err = model.NewRedisStore(client, cfg.RedisKey, cfg.LockTTL)
		}
	default:
		err = fmt.Errorf("unknown model backend %q (supported: file, redis)", cfg.Backend)
	}
	if err != nil {
		return fmt.Errorf("opening model store: %w", err)
	}
	a.onClose(func(context.Context) error { return st.Close() })

	a.Model = model.New(st, model.Options{
		BootstrapSamples: cfg.BootstrapSamples,
		BootstrapSeed:    cfg.BootstrapSeed,
		LockTimeout:      cfg.LockTimeout,
		Train: model.TrainOptions{
			LearningRate: cfg.LearningRate,
			Iterations:   cfg.Iterations,
			C:            cfg.C,
		},
	}, logger.Component(a.Logger, "model"), a.Metrics)

	if err := a.Model.Open(ctx); err != nil {
		return err
	}
	if err := a.Model.Bootstrap(ctx); err != nil {
		return fmt.Errorf("bootstrapping model: %w", err)
	}

	a.Ranker = ranking.New(features.Overlap{}, a.Model, a.Metrics)
	return nil
}

func (a *App) redisClient(ctx context.Context) (*redis.Client, error) {
	cfg := a.Config.Redis
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, errors.New("redis.addr is required for the redis model backend")
	}

	password, err := secrets.LoadOptional(secrets.Source{
		Name:  "redis password",
		File:  cfg.PasswordFile,
		Env:   "REDIS_PASSWORD",
		Value: cfg.Password,
	})
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

func (a *App) openSearch(ctx context.Context) error {
	geminiCfg, err := a.geminiConfig()
	if err != nil {
		return err
	}

	extractor, err := a.extractor(ctx, geminiCfg)
	if err != nil {
		return err
	}

	embedder, err := a.embedder(ctx, geminiCfg)
	if err != nil {
		return err
	}
	a.onClose(func(context.Context) error { return embedder.Close() })

	storeCfg := a.Config.Store
	if strings.EqualFold(storeCfg.Backend, store.BackendMongo) {
		storeCfg.Mongo.URI, err = secrets.Load(secrets.Source{
			Name:  "mongo uri",
			Env:   "MONGO_URI",
			Value: storeCfg.Mongo.URI,
		})
		if err != nil {
			return fmt.Errorf("%w (set store.mongo.uri or MONGO_URI)", err)
		}
	}

	candidates, err := store.New(ctx, storeCfg, a.Logger)
	if err != nil {
		return fmt.Errorf("opening candidate store: %w", err)
	}
	a.onClose(candidates.Close)

	a.Search = search.New(extractor, embedder, candidates, logger.Component(a.Logger, "search"), a.Metrics)
	return nil
}

// geminiConfig resolves the Gemini settings. The API key stays empty when
// Gemini is not used by any component.
func (a *App) geminiConfig() (gemini.Config, error) {
	ai := a.Config.AI
	g := ai.Gemini
	if g == nil {
		g = &GeminiConfig{}
	}

	cfg := gemini.Config{
		Model:             g.Model,
		EmbeddingModel:    g.EmbeddingModel,
		RequestsPerMinute: g.RequestsPerMinute,
		MaxLogLength:      g.MaxLogLength,
	}

	needed := ai.Enabled || strings.EqualFold(a.Config.Embeddings.Provider, embeddings.ProviderGemini)
	if !needed {
		return cfg, nil
	}

	key, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		File:  g.APIKeyFile,
		Env:   "GEMINI_API_KEY",
		Value: g.APIKey,
	})
	if err != nil {
		return cfg, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY)", err)
	}
	cfg.APIKey = key
	return cfg, nil
}

func (a *App) extractor(ctx context.Context, geminiCfg gemini.Config) (extraction.FieldExtractor, error) {
	log := logger.Component(a.Logger, "extraction")
	regex := extraction.NewRegex(a.Config.Extraction.Vocabulary)

	ai := a.Config.AI
	if !ai.Enabled {
		log.Info("llm extraction disabled, using the regex extractor")
		return extraction.NewFallback(nil, regex, log, a.Metrics), nil
	}

	provider := strings.ToLower(strings.TrimSpace(ai.Provider))
	if provider != "" && provider != "gemini" {
		return nil, fmt.Errorf("unsupported ai provider: %s", ai.Provider)
	}

	geminiCfg.JSONOutput = true
	generator, err := gemini.NewGenerator(ctx, geminiCfg, log)
	if err != nil {
		return nil, fmt.Errorf("building gemini generator: %w", err)
	}

	maxRetries := 0
	if ai.Gemini != nil {
		maxRetries = ai.Gemini.MaxRetries
	}
	llm := extraction.NewLLM(generator, retry.Policy{MaxAttempts: maxRetries}, log, geminiCfg.MaxLogLength)
	return extraction.NewFallback(llm, regex, log, a.Metrics), nil
}

func (a *App) embedder(ctx context.Context, geminiCfg gemini.Config) (embeddings.Embedder, error) {
	cfg := a.Config.Embeddings

	token, err := secrets.LoadOptional(secrets.Source{
		Name:  "embeddings token",
		File:  cfg.TokenFile,
		Value: cfg.Token,
	})
	if err != nil {
		return nil, err
	}

	return embeddings.New(ctx, embeddings.Config{
		Provider:  cfg.Provider,
		Model:     cfg.Model,
		CacheDir:  cfg.CacheDir,
		MaxLength: cfg.MaxLength,
		BaseURL:   cfg.BaseURL,
		Token:     token,
		Timeout:   cfg.Timeout,
		Dimension: cfg.Dimension,
		Gemini:    geminiCfg,
	}, a.Logger, a.Metrics)
}

// mustApp is newApp for commands: a failure ends the process.
func mustApp(ctx context.Context, parts appParts) *App {
	a, err := newApp(ctx, parts)
	if err != nil {
		log.Fatalf("starting %s: %s", app, err)
	}
	return a
}
