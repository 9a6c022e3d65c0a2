package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	_ "embed"

	"github.com/spigell/scoreit/internal/candidate"
	"github.com/spigell/scoreit/internal/retry"
	"github.com/spigell/scoreit/internal/utils"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
)

//go:embed prompt.md
var promptTemplate string

const defaultMaxLogLength = 200

// temporary is implemented by completer errors that know whether a retry can help.
type temporary interface {
	Temporary() bool
}

// LLM extracts job fields by asking a language model for JSON.
type LLM struct {
	completer Completer
	policy    retry.Policy
	logger    *zap.Logger
	maxLogLen int
}

// NewLLM wraps the completer with the retry policy. When the policy has no
// Retryable func, malformed answers are retried and completer errors are
// retried unless they report themselves as not temporary.
func NewLLM(completer Completer, policy retry.Policy, logger *zap.Logger, maxLogLength int) *LLM {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if policy.Retryable == nil {
		policy.Retryable = isRetryable
	}
	if policy.OnRetry == nil {
		policy.OnRetry = func(attempt int, err error, wait time.Duration) {
			logger.Warn("llm extraction attempt failed, retrying",
				zap.Int("attempt", attempt),
				zap.Duration("wait", wait),
				zap.Error(err),
			)
		}
	}

	return &LLM{
		completer: completer,
		policy:    policy,
		logger:    logger,
		maxLogLen: maxLogLength,
	}
}

func (e *LLM) Name() string {
	return "llm"
}

func (e *LLM) Extract(ctx context.Context, text string) (candidate.Job, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return candidate.Job{}, ErrEmptyText
	}

	prompt := buildPrompt(text)

	e.logger.Debug("llm extraction request",
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.Preview(prompt, e.maxLogLen)),
	)

	return retry.Do(ctx, e.policy, func(ctx context.Context) (candidate.Job, error) {
		raw, err := e.completer.Complete(ctx, prompt)
		if err != nil {
			return candidate.Job{}, err
		}

		e.logger.Debug("llm extraction response",
			zap.Int("response_length", utf8.RuneCountInString(raw)),
			zap.String("response_preview", utils.Preview(raw, e.maxLogLen)),
		)

		return parseResponse(raw)
	})
}

func isRetryable(err error) bool {
	if errors.Is(err, ErrMalformedResponse) {
		return true
	}
	var t temporary
	if errors.As(err, &t) {
		return t.Temporary()
	}
	return true
}

func buildPrompt(text string) string {
	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "Extract skills, experience and qualifications as JSON from:\n{{JOB_DESCRIPTION}}\n\nJSON Response:"
	}
	return strings.ReplaceAll(template, "{{JOB_DESCRIPTION}}", text)
}

type llmFields struct {
	Skills         []string `mapstructure:"skills"`
	Experience     any      `mapstructure:"experience"`
	Qualifications []string `mapstructure:"qualifications"`
}

func parseResponse(raw string) (candidate.Job, error) {
	cleaned := extractJSON(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return candidate.Job{}, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	var fields llmFields
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &fields,
	})
	if err != nil {
		return candidate.Job{}, err
	}
	if err := decoder.Decode(data); err != nil {
		return candidate.Job{}, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	return normalize(candidate.Job{
		Skills:         fields.Skills,
		Experience:     coerceYears(fields.Experience),
		Qualifications: fields.Qualifications,
	}), nil
}

// extractJSON strips code fences and any prose around the outermost JSON object.
func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start != -1 && end > start {
		raw = raw[start : end+1]
	}
	return strings.TrimSpace(raw)
}

var firstNumber = regexp.MustCompile(`\d+(\.\d+)?`)

func coerceYears(v any) int {
	switch val := v.(type) {
	case float64:
		return roundYears(val)
	case int:
		return val
	case string:
		match := firstNumber.FindString(val)
		if match == "" {
			return 0
		}
		f, err := strconv.ParseFloat(match, 64)
		if err != nil {
			return 0
		}
		return roundYears(f)
	default:
		return 0
	}
}

func roundYears(f float64) int {
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0
	}
	return int(math.Round(f))
}
