package embeddings

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const (
	contentType     = "application/json"
	contentEncoding = "gzip"
	defaultTimeout  = 30 * time.Second
	teiBatchSize    = 32
)

// TEIConfig configures a HuggingFace text-embeddings-inference server.
type TEIConfig struct {
	BaseURL   string
	Token     string
	UserAgent string
	Timeout   time.Duration
}

// TEI calls the /embed endpoint of a text-embeddings-inference server.
type TEI struct {
	baseURL   string
	token     string
	userAgent string
	client    *http.Client
	logger    *zap.Logger
	dimension atomic.Int64
}

type teiRequest struct {
	Inputs   []string `json:"inputs"`
	Truncate bool     `json:"truncate"`
}

func NewTEI(cfg TEIConfig, logger *zap.Logger) (*TEI, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("%w: tei base url is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "scoreit"
	}

	return &TEI{
		baseURL:   baseURL,
		token:     cfg.Token,
		userAgent: userAgent,
		client:    &http.Client{Timeout: timeout},
		logger:    logger,
	}, nil
}

func (t *TEI) Encode(ctx context.Context, text string) ([]float32, error) {
	vecs, err := t.EncodeBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EncodeBatch splits texts into server-sized batches and keeps the input order.
func (t *TEI) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += teiBatchSize {
		end := min(start+teiBatchSize, len(texts))

		var batch [][]float32
		if err := t.postJSON(ctx, "/embed", teiRequest{Inputs: texts[start:end], Truncate: true}, &batch); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrEmbeddingFailed, err)
		}
		if len(batch) != end-start {
			return nil, fmt.Errorf("%w: tei returned %d vectors for %d inputs", ErrEmbeddingFailed, len(batch), end-start)
		}
		out = append(out, batch...)
	}

	if len(out) > 0 {
		t.dimension.CompareAndSwap(0, int64(len(out[0])))
	}
	return out, nil
}

func (t *TEI) Dimension() int {
	return int(t.dimension.Load())
}

func (t *TEI) Close() error {
	t.client.CloseIdleConnections()
	return nil
}

func (t *TEI) postJSON(ctx context.Context, path string, payload, target any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}

	req = t.setHeaders(req)
	req.Header.Set("Content-Type", contentType)

	resp, err := t.request(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gzipReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return err
		}
		defer gzipReader.Close()
		reader = gzipReader
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bad status: %s: %s", resp.Status, strings.TrimSpace(string(data)))
	}

	return json.Unmarshal(data, target)
}

func (t *TEI) request(req *http.Request) (*http.Response, error) {
	t.logger.Debug("make request", zap.String("url", req.URL.String()))
	return t.client.Do(req)
}

func (t *TEI) setHeaders(req *http.Request) *http.Request {
	if t.token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", t.token))
	}
	req.Header.Set("User-Agent", t.userAgent)
	req.Header.Set("Accept-Encoding", contentEncoding)
	return req
}
