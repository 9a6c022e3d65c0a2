package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spigell/scoreit/internal/logger"
	"github.com/spigell/scoreit/internal/utils"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

const (
	defaultModel          = "gemini-2.5-flash"
	defaultEmbeddingModel = "text-embedding-004"
	defaultMaxLogLength   = 200
	providerName          = "gemini"
)

// Config describes how to reach the Gemini API.
type Config struct {
	APIKey         string
	Model          string
	EmbeddingModel string
	// EmbeddingDimension asks the API for truncated vectors. Zero keeps the model default.
	EmbeddingDimension int
	// RequestsPerMinute limits outgoing calls. Zero disables the limit.
	RequestsPerMinute int
	// SystemInstruction is sent with every completion when set.
	SystemInstruction string
	// JSONOutput asks the model to answer with application/json.
	JSONOutput   bool
	MaxLogLength int
}

// contentModels is the part of genai.Models the package uses.
type contentModels interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// Generator wraps the Google GenAI client to provide simple prompt-based interactions.
type Generator struct {
	models    contentModels
	modelName string
	system    string
	json      bool
	limiter   *rate.Limiter
	logger    *zap.Logger
	maxLogLen int
}

func newModels(ctx context.Context, apiKey string) (contentModels, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return client.Models, nil
}

func newLimiter(rpm int) *rate.Limiter {
	if rpm <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1)
}

// NewGenerator creates a new Generator configured for the Gemini API backend.
func NewGenerator(ctx context.Context, cfg Config, log *zap.Logger) (*Generator, error) {
	models, err := newModels(ctx, cfg.APIKey)
	if err != nil {
		return nil, err
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}
	maxLogLen := cfg.MaxLogLength
	if maxLogLen <= 0 {
		maxLogLen = defaultMaxLogLength
	}

	return &Generator{
		models:    models,
		modelName: model,
		system:    strings.TrimSpace(cfg.SystemInstruction),
		json:      cfg.JSONOutput,
		limiter:   newLimiter(cfg.RequestsPerMinute),
		logger:    logger.WithCommonFields(log, providerName, model),
		maxLogLen: maxLogLen,
	}, nil
}

// Complete sends the prompt to Gemini and returns the textual response.
// Errors are *Error values that report whether a retry can help.
func (g *Generator) Complete(ctx context.Context, prompt string) (string, error) {
	if g == nil || g.models == nil {
		return "", errors.New("gemini generator is not initialized")
	}

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("prompt must not be empty")
	}

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("waiting for gemini rate limit: %w", err)
		}
	}

	var config *genai.GenerateContentConfig
	if g.system != "" || g.json {
		config = &genai.GenerateContentConfig{}
		if g.system != "" {
			config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: g.system}}}
		}
		if g.json {
			config.ResponseMIMEType = "application/json"
		}
	}

	started := time.Now()
	resp, err := g.models.GenerateContent(ctx, g.modelName, genai.Text(prompt), config)
	if err != nil {
		return "", classify(fmt.Errorf("generate content: %w", err))
	}

	output := responseText(resp)
	if output == "" {
		return "", &Error{Err: errors.New("gemini api returned empty response"), temporary: true}
	}

	g.logger.Debug("gemini generate content",
		zap.Duration("took", time.Since(started)),
		zap.Int("response_length", utf8.RuneCountInString(output)),
		zap.String("response_preview", utils.Preview(output, g.maxLogLen)),
	)

	return output, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}
	return strings.TrimSpace(builder.String())
}

func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	return g.modelName
}
