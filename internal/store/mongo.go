package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spigell/scoreit/internal/candidate"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const (
	defaultMongoIndex      = "default"
	defaultMongoPath       = "embedding"
	defaultMongoDatabase   = "candidates"
	defaultMongoCollection = "resumes"
	defaultMongoTimeout    = 10 * time.Second
)

// MongoConfig points at an Atlas collection with a vector search index.
type MongoConfig struct {
	URI            string        `mapstructure:"uri"`
	Database       string        `mapstructure:"database"`
	Collection     string        `mapstructure:"collection"`
	Index          string        `mapstructure:"index"`
	Path           string        `mapstructure:"path"`
	ConnectTimeout time.Duration `mapstructure:"connect-timeout"`
}

type Mongo struct {
	client     *mongo.Client
	collection *mongo.Collection
	index      string
	path       string
	logger     *zap.Logger
}

// mongoRecord is the stored shape. Field names match documents written by
// other tools against the same collection.
type mongoRecord struct {
	ID             any       `bson:"_id,omitempty"`
	Name           string    `bson:"name,omitempty"`
	Title          string    `bson:"title,omitempty"`
	Company        string    `bson:"company,omitempty"`
	Summary        string    `bson:"summary,omitempty"`
	Skills         []string  `bson:"skills,omitempty"`
	Experience     int       `bson:"experience,omitempty"`
	Qualifications []string  `bson:"qualifications,omitempty"`
	AvatarURL      string    `bson:"avatarUrl,omitempty"`
	Location       string    `bson:"location,omitempty"`
	Email          string    `bson:"email,omitempty"`
	Embedding      []float32 `bson:"embedding,omitempty"`
	Score          float64   `bson:"score,omitempty"`
}

func NewMongo(ctx context.Context, cfg MongoConfig, log *zap.Logger) (*Mongo, error) {
	if strings.TrimSpace(cfg.URI) == "" {
		return nil, fmt.Errorf("%w: mongo uri is required", ErrInvalidConfig)
	}

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultMongoTimeout
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI).SetConnectTimeout(timeout))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("pinging mongo: %w", err)
	}

	m := &Mongo{
		client:     client,
		collection: client.Database(orDefault(cfg.Database, defaultMongoDatabase)).Collection(orDefault(cfg.Collection, defaultMongoCollection)),
		index:      orDefault(cfg.Index, defaultMongoIndex),
		path:       orDefault(cfg.Path, defaultMongoPath),
		logger:     log,
	}
	return m, nil
}

func (m *Mongo) Search(ctx context.Context, vector []float32, k int) ([]candidate.Document, error) {
	if len(vector) == 0 {
		return nil, ErrEmptyEmbedding
	}
	if k <= 0 {
		return []candidate.Document{}, nil
	}

	cursor, err := m.collection.Aggregate(ctx, vectorSearchPipeline(m.index, m.path, vector, k))
	if err != nil {
		return nil, fmt.Errorf("running $vectorSearch: %w", err)
	}

	var records []mongoRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("reading $vectorSearch results: %w", err)
	}

	docs := make([]candidate.Document, 0, len(records))
	for _, r := range records {
		docs = append(docs, r.document())
	}

	m.logger.Debug("mongo vector search",
		zap.Int("k", k),
		zap.Int("num_candidates", NumCandidates(k)),
		zap.Int("results", len(docs)),
	)
	return docs, nil
}

func (m *Mongo) Upsert(ctx context.Context, docs []candidate.Document) ([]string, error) {
	if err := validateForUpsert(docs); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		rec := recordFromDocument(d)
		_, err := m.collection.ReplaceOne(ctx, bson.M{"_id": rec.ID}, rec, options.Replace().SetUpsert(true))
		if err != nil {
			return ids, fmt.Errorf("upserting candidate %q: %w", d.ID, err)
		}
		ids = append(ids, d.ID)
	}
	return ids, nil
}

func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func vectorSearchPipeline(index, path string, vector []float32, k int) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$vectorSearch", Value: bson.D{
			{Key: "index", Value: index},
			{Key: "path", Value: path},
			{Key: "queryVector", Value: vector},
			{Key: "numCandidates", Value: NumCandidates(k)},
			{Key: "limit", Value: k},
		}}},
		{{Key: "$project", Value: bson.D{
			{Key: path, Value: 0},
			{Key: "score", Value: bson.D{{Key: "$meta", Value: "vectorSearchScore"}}},
		}}},
	}
}

func (r mongoRecord) document() candidate.Document {
	return candidate.Document{
		ID:             idString(r.ID),
		Name:           r.Name,
		Title:          r.Title,
		Company:        r.Company,
		Summary:        r.Summary,
		Skills:         r.Skills,
		Experience:     r.Experience,
		Qualifications: r.Qualifications,
		AvatarURL:      r.AvatarURL,
		Location:       r.Location,
		Email:          r.Email,
		Score:          r.Score,
	}
}

func recordFromDocument(d candidate.Document) mongoRecord {
	var id any = d.ID
	if oid, err := primitive.ObjectIDFromHex(d.ID); err == nil {
		id = oid
	}

	return mongoRecord{
		ID:             id,
		Name:           d.Name,
		Title:          d.Title,
		Company:        d.Company,
		Summary:        d.Summary,
		Skills:         d.Skills,
		Experience:     d.Experience,
		Qualifications: d.Qualifications,
		AvatarURL:      d.AvatarURL,
		Location:       d.Location,
		Email:          d.Email,
		Embedding:      d.Embedding,
	}
}

// idString renders _id values the way clients see them.
func idString(id any) string {
	switch v := id.(type) {
	case nil:
		return ""
	case primitive.ObjectID:
		return v.Hex()
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
