// Package server exposes the matching service over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/spigell/scoreit/internal/candidate"
	"github.com/spigell/scoreit/internal/features"
	"github.com/spigell/scoreit/internal/metrics"
	"github.com/spigell/scoreit/internal/model"
	"github.com/spigell/scoreit/internal/ranking"
	"github.com/spigell/scoreit/internal/search"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Searcher is the semantic search side of the service.
type Searcher interface {
	ProcessJobDescription(ctx context.Context, text string) (search.Processed, error)
	ExtractJobFeatures(ctx context.Context, text string) (candidate.Job, error)
	Search(ctx context.Context, jobDescription string, topK int) (search.Response, error)
	Ingest(ctx context.Context, docs []candidate.Document) ([]string, error)
}

type Ranker interface {
	Rank(ctx context.Context, candidates []candidate.Candidate, job candidate.Job) ([]ranking.Result, error)
}

// Learner is the feedback model as seen by the API.
type Learner interface {
	AddFeedback(ctx context.Context, samples []model.Sample) (model.Metrics, error)
	Status() model.Status
}

// Deps are the components served by the API.
type Deps struct {
	Search   Searcher
	Ranker   Ranker
	Features features.Extractor
	Model    Learner
	Metrics  *metrics.Metrics
}

// Config holds HTTP server configuration.
type Config struct {
	Host         string   `mapstructure:"host"`
	Port         int      `mapstructure:"port"`
	AllowOrigins []string `mapstructure:"allow-origins"`
	BodyLimit    string   `mapstructure:"body-limit"`
}

func (c Config) withDefaults() Config {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 8000
	}
	if len(c.AllowOrigins) == 0 {
		c.AllowOrigins = []string{"*"}
	}
	if c.BodyLimit == "" {
		c.BodyLimit = "4M"
	}
	return c
}

// Addr is the listen address.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

type Server struct {
	echo   *echo.Echo
	deps   Deps
	logger *zap.Logger
	config Config
}

func New(deps Deps, logger *zap.Logger, cfg Config) (*Server, error) {
	if deps.Search == nil || deps.Ranker == nil || deps.Features == nil || deps.Model == nil {
		return nil, errors.New("server: search, ranker, features and model are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:   e,
		deps:   deps,
		logger: logger,
		config: cfg,
	}

	e.HTTPErrorHandler = s.handleError

	e.Use(middleware.RequestID())
	e.Use(s.observe)
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{AllowOrigins: cfg.AllowOrigins}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))

	s.registerRoutes()

	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	if s.deps.Metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.deps.Metrics.Registry, promhttp.HandlerOpts{})))
	}

	api := s.echo.Group("/api")
	api.POST("/process-job-description", s.handleProcessJobDescription)
	api.POST("/extract-job-features", s.handleExtractJobFeatures)
	api.POST("/semantic-search", s.handleSemanticSearch)
	api.POST("/extract-features", s.handleExtractFeatures)
	api.POST("/rank-candidates", s.handleRankCandidates)
	api.POST("/feedback", s.handleFeedback)
	api.GET("/model", s.handleModel)
	api.POST("/candidates", s.handleCandidates)
}

// observe logs and measures every request. Errors are rendered here so the
// recorded status is the one sent to the client.
func (s *Server) observe(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()

		if err := next(c); err != nil {
			c.Error(err)
		}

		duration := time.Since(start)
		req := c.Request()
		status := c.Response().Status

		route := c.Path()
		if route == "" {
			route = "unmatched"
		}
		s.deps.Metrics.RecordRequest(req.Method, route, status, duration)

		s.logger.Info("http request",
			zap.String("method", req.Method),
			zap.String("uri", req.RequestURI),
			zap.Int("status", status),
			zap.Duration("duration", duration),
			zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
		)
		return nil
	}
}

// Start serves until Shutdown is called. http.ErrServerClosed is not reported.
func (s *Server) Start() error {
	addr := s.config.Addr()
	s.logger.Info("starting http server", zap.String("addr", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}

// ServeHTTP lets the server be mounted or tested without listening.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
