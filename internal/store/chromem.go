package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spigell/scoreit/internal/candidate"

	"github.com/philippgille/chromem-go"
	"go.uber.org/zap"
)

const (
	defaultChromemCollection = "candidates"
	listSeparator            = "\n"
)

var errNoEmbeddingFunc = errors.New("chromem collection expects precomputed embeddings")

// ChromemConfig configures the embedded store. An empty Path keeps everything in memory.
type ChromemConfig struct {
	Path       string `mapstructure:"path"`
	Compress   bool   `mapstructure:"compress"`
	Collection string `mapstructure:"collection"`
}

type Chromem struct {
	db         *chromem.DB
	collection *chromem.Collection
	logger     *zap.Logger
}

func NewChromem(cfg ChromemConfig, log *zap.Logger) (*Chromem, error) {
	if log == nil {
		log = zap.NewNop()
	}

	var (
		db  *chromem.DB
		err error
	)
	if strings.TrimSpace(cfg.Path) == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(cfg.Path, cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("opening chromem db at %s: %w", cfg.Path, err)
		}
	}

	name := orDefault(cfg.Collection, defaultChromemCollection)
	collection, err := db.GetOrCreateCollection(name, nil, refuseEmbedding)
	if err != nil {
		return nil, fmt.Errorf("getting/creating collection %s: %w", name, err)
	}

	return &Chromem{db: db, collection: collection, logger: log}, nil
}

func refuseEmbedding(context.Context, string) ([]float32, error) {
	return nil, errNoEmbeddingFunc
}

func (c *Chromem) Search(ctx context.Context, vector []float32, k int) ([]candidate.Document, error) {
	if len(vector) == 0 {
		return nil, ErrEmptyEmbedding
	}

	// chromem requires nResults <= document count
	k = min(k, c.collection.Count())
	if k <= 0 {
		return []candidate.Document{}, nil
	}

	results, err := c.collection.QueryEmbedding(ctx, vector, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("querying chromem: %w", err)
	}

	docs := make([]candidate.Document, 0, len(results))
	for _, r := range results {
		d := documentFromMetadata(r.ID, r.Content, r.Metadata)
		d.Score = float64(r.Similarity)
		docs = append(docs, d)
	}

	c.logger.Debug("chromem vector search", zap.Int("k", k), zap.Int("results", len(docs)))
	return docs, nil
}

func (c *Chromem) Upsert(ctx context.Context, docs []candidate.Document) ([]string, error) {
	if err := validateForUpsert(docs); err != nil {
		return nil, err
	}

	chromemDocs := make([]chromem.Document, len(docs))
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
		chromemDocs[i] = chromem.Document{
			ID:        d.ID,
			Content:   d.Summary,
			Metadata:  metadataFromDocument(d),
			Embedding: d.Embedding,
		}
	}

	if err := c.collection.AddDocuments(ctx, chromemDocs, 1); err != nil {
		return nil, fmt.Errorf("adding documents: %w", err)
	}
	return ids, nil
}

func (c *Chromem) Close(context.Context) error {
	return nil
}

func metadataFromDocument(d candidate.Document) map[string]string {
	md := map[string]string{
		"name":           d.Name,
		"title":          d.Title,
		"company":        d.Company,
		"skills":         strings.Join(d.Skills, listSeparator),
		"qualifications": strings.Join(d.Qualifications, listSeparator),
		"experience":     strconv.Itoa(d.Experience),
		"avatarUrl":      d.AvatarURL,
		"location":       d.Location,
		"email":          d.Email,
	}
	for k, v := range md {
		if v == "" {
			delete(md, k)
		}
	}
	return md
}

func documentFromMetadata(id, summary string, md map[string]string) candidate.Document {
	exp, _ := strconv.Atoi(md["experience"])
	return candidate.Document{
		ID:             id,
		Name:           md["name"],
		Title:          md["title"],
		Company:        md["company"],
		Summary:        summary,
		Skills:         splitList(md["skills"]),
		Experience:     exp,
		Qualifications: splitList(md["qualifications"]),
		AvatarURL:      md["avatarUrl"],
		Location:       md["location"],
		Email:          md["email"],
	}
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, listSeparator)
}
