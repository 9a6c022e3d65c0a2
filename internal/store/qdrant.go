package store

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/spigell/scoreit/internal/candidate"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
)

const (
	defaultQdrantPort       = 6334
	defaultQdrantCollection = "candidates"
	payloadID               = "candidate_id"
)

// idNamespace derives stable point ids for candidate ids that are not UUIDs.
var idNamespace = uuid.MustParse("8f1d6c4e-2b7a-4f0e-9a51-3c2d9e7b6a10")

type QdrantConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	APIKey     string `mapstructure:"api-key"`
	UseTLS     bool   `mapstructure:"use-tls"`
	Collection string `mapstructure:"collection"`
	// VectorSize is used when the collection has to be created. Zero means
	// the size of the first upserted embedding.
	VectorSize int `mapstructure:"vector-size"`
}

type Qdrant struct {
	client     *qdrant.Client
	collection string
	vectorSize int
	logger     *zap.Logger

	mu    sync.Mutex
	ready bool
}

func NewQdrant(ctx context.Context, cfg QdrantConfig, log *zap.Logger) (*Qdrant, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, fmt.Errorf("%w: qdrant host is required", ErrInvalidConfig)
	}
	port := cfg.Port
	if port == 0 {
		port = defaultQdrantPort
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("creating qdrant client: %w", err)
	}

	if _, err := client.HealthCheck(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("qdrant health check: %w", err)
	}

	if !cfg.UseTLS {
		log.Warn("qdrant gRPC connection is not using TLS", zap.String("host", cfg.Host))
	}

	return &Qdrant{
		client:     client,
		collection: orDefault(cfg.Collection, defaultQdrantCollection),
		vectorSize: cfg.VectorSize,
		logger:     log,
	}, nil
}

func (q *Qdrant) Search(ctx context.Context, vector []float32, k int) ([]candidate.Document, error) {
	if len(vector) == 0 {
		return nil, ErrEmptyEmbedding
	}
	if k <= 0 {
		return []candidate.Document{}, nil
	}

	exists, err := q.exists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		return []candidate.Document{}, nil
	}

	points, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("querying collection %s: %w", q.collection, err)
	}

	docs := make([]candidate.Document, 0, len(points))
	for _, p := range points {
		d := documentFromPayload(p.GetPayload())
		d.Score = float64(p.GetScore())
		docs = append(docs, d)
	}

	q.logger.Debug("qdrant vector search", zap.Int("k", k), zap.Int("results", len(docs)))
	return docs, nil
}

func (q *Qdrant) Upsert(ctx context.Context, docs []candidate.Document) ([]string, error) {
	if err := validateForUpsert(docs); err != nil {
		return nil, err
	}
	if err := q.ensureCollection(ctx, len(docs[0].Embedding)); err != nil {
		return nil, err
	}

	points := make([]*qdrant.PointStruct, len(docs))
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(pointID(d.ID)),
			Vectors: qdrant.NewVectors(d.Embedding...),
			Payload: payloadFromDocument(d),
		}
	}

	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return nil, fmt.Errorf("upserting into %s: %w", q.collection, err)
	}
	return ids, nil
}

func (q *Qdrant) Close(context.Context) error {
	return q.client.Close()
}

func (q *Qdrant) exists(ctx context.Context) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.existsLocked(ctx)
}

func (q *Qdrant) existsLocked(ctx context.Context) (bool, error) {
	if q.ready {
		return true, nil
	}
	ok, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return false, fmt.Errorf("checking collection %s: %w", q.collection, err)
	}
	q.ready = ok
	return ok, nil
}

func (q *Qdrant) ensureCollection(ctx context.Context, dim int) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	ok, err := q.existsLocked(ctx)
	if err != nil || ok {
		return err
	}

	size := q.vectorSize
	if size == 0 {
		size = dim
	}

	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(size),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("creating collection %s: %w", q.collection, err)
	}
	q.ready = true
	q.logger.Info("created qdrant collection", zap.String("collection", q.collection), zap.Int("vector_size", size))
	return nil
}

func pointID(id string) string {
	if u, err := uuid.Parse(id); err == nil {
		return u.String()
	}
	return uuid.NewSHA1(idNamespace, []byte(id)).String()
}

func payloadFromDocument(d candidate.Document) map[string]*qdrant.Value {
	payload := map[string]*qdrant.Value{
		payloadID:        stringValue(d.ID),
		"experience":     {Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(d.Experience)}},
		"skills":         listValue(d.Skills),
		"qualifications": listValue(d.Qualifications),
	}
	for key, v := range map[string]string{
		"name":      d.Name,
		"title":     d.Title,
		"company":   d.Company,
		"summary":   d.Summary,
		"avatarUrl": d.AvatarURL,
		"location":  d.Location,
		"email":     d.Email,
	} {
		if v != "" {
			payload[key] = stringValue(v)
		}
	}
	return payload
}

func documentFromPayload(p map[string]*qdrant.Value) candidate.Document {
	str := func(key string) string { return p[key].GetStringValue() }
	return candidate.Document{
		ID:             str(payloadID),
		Name:           str("name"),
		Title:          str("title"),
		Company:        str("company"),
		Summary:        str("summary"),
		Skills:         stringList(p["skills"]),
		Experience:     int(p["experience"].GetIntegerValue()),
		Qualifications: stringList(p["qualifications"]),
		AvatarURL:      str("avatarUrl"),
		Location:       str("location"),
		Email:          str("email"),
	}
}

func stringValue(s string) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: s}}
}

func listValue(values []string) *qdrant.Value {
	list := &qdrant.ListValue{Values: make([]*qdrant.Value, 0, len(values))}
	for _, v := range values {
		list.Values = append(list.Values, stringValue(v))
	}
	return &qdrant.Value{Kind: &qdrant.Value_ListValue{ListValue: list}}
}

func stringList(v *qdrant.Value) []string {
	values := v.GetListValue().GetValues()
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, item := range values {
		out = append(out, item.GetStringValue())
	}
	return out
}
