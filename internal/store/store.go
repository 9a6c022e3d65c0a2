package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spigell/scoreit/internal/candidate"

	"go.uber.org/zap"
)

const (
	BackendMongo   = "mongo"
	BackendChromem = "chromem"
	BackendQdrant  = "qdrant"
)

var (
	ErrInvalidConfig  = errors.New("invalid store config")
	ErrEmptyEmbedding = errors.New("document has no embedding")
	ErrMissingID      = errors.New("document has no id")
)

// CandidateStore holds candidate documents and answers nearest-neighbour queries.
type CandidateStore interface {
	// Search returns at most k documents ordered by descending similarity.
	// Score is set on every returned document and Embedding is left empty.
	Search(ctx context.Context, vector []float32, k int) ([]candidate.Document, error)
	// Upsert inserts or replaces documents by id and returns the stored ids.
	Upsert(ctx context.Context, docs []candidate.Document) ([]string, error)
	Close(ctx context.Context) error
}

// NumCandidates is the size of the approximate candidate pool scanned for k results.
func NumCandidates(k int) int {
	return max(2*k, k+50)
}

// Config selects and configures a backend.
type Config struct {
	Backend string `mapstructure:"backend"`

	Mongo   MongoConfig   `mapstructure:"mongo"`
	Chromem ChromemConfig `mapstructure:"chromem"`
	Qdrant  QdrantConfig  `mapstructure:"qdrant"`
}

// New opens the configured backend.
func New(ctx context.Context, cfg Config, log *zap.Logger) (CandidateStore, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("component", "store"))

	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	if backend == "" {
		backend = BackendChromem
	}

	var (
		s   CandidateStore
		err error
	)
	switch backend {
	case BackendMongo:
		s, err = NewMongo(ctx, cfg.Mongo, log)
	case BackendChromem:
		s, err = NewChromem(cfg.Chromem, log)
	case BackendQdrant:
		s, err = NewQdrant(ctx, cfg.Qdrant, log)
	default:
		return nil, fmt.Errorf("%w: unknown backend %q (supported: mongo, chromem, qdrant)", ErrInvalidConfig, cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	log.Info("candidate store ready", zap.String("backend", backend))
	return s, nil
}

func validateForUpsert(docs []candidate.Document) error {
	for i, d := range docs {
		if strings.TrimSpace(d.ID) == "" {
			return fmt.Errorf("document %d: %w", i, ErrMissingID)
		}
		if len(d.Embedding) == 0 {
			return fmt.Errorf("document %q: %w", d.ID, ErrEmptyEmbedding)
		}
	}
	return nil
}
