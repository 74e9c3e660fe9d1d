// Package extract adapts the language-model client into the three operations
// the pipeline needs: schema-constrained JSON extraction, free-text
// classification, and semantic candidate matching. All failures surface as
// ordinary errors; callers treat them as "no data extracted".
package extract

import (
	"context"
	"encoding/json"
	"reflect"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/ordersync/internal/model"
	"github.com/sells-group/ordersync/pkg/anthropic"
)

const extractSystemPrompt = "Extract structured data from emails. " +
	"Return ONLY valid JSON. Enclose all keys and string values in double quotes. " +
	"Return no more than 5 items. No explanation or extra text."

// trailingComma matches a comma directly before a closing brace or bracket,
// the most common malformation in model JSON output.
var trailingComma = regexp.MustCompile(`,\s*([}\]])`)

// Config tunes the extraction service.
type Config struct {
	Model       string
	MaxTokens   int64
	Temperature float64
	Prompts     PromptSet
}

// Service implements the extraction, classification, and semantic-match
// adapters on top of a single model client.
type Service struct {
	client  anthropic.Client
	model   string
	max     int64
	temp    float64
	prompts PromptSet
}

// New creates a Service. Zero config fields fall back to defaults.
func New(client anthropic.Client, cfg Config) *Service {
	if cfg.Model == "" {
		cfg.Model = "claude-haiku-4-5-20251001"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1500
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = 0.1
	}
	if cfg.Prompts == (PromptSet{}) {
		cfg.Prompts = DefaultPrompts()
	}
	return &Service{
		client:  client,
		model:   cfg.Model,
		max:     cfg.MaxTokens,
		temp:    cfg.Temperature,
		prompts: cfg.Prompts,
	}
}

// Prompts returns the active prompt set.
func (s *Service) Prompts() PromptSet { return s.prompts }

// ExtractJSON sends a schema-constrained prompt and parses the JSON reply
// into a generic row. A literal null reply (the model's "no match" answer)
// returns (nil, nil). Malformed JSON and transport failures return an error;
// the caller treats both as "no data extracted", never as fatal.
func (s *Service) ExtractJSON(ctx context.Context, prompt string) (model.Row, error) {
	resp, err := s.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       s.model,
		MaxTokens:   s.max,
		System:      extractSystemPrompt,
		Messages:    []anthropic.Message{{Role: "user", Content: prompt}},
		Temperature: &s.temp,
	})
	if err != nil {
		return nil, eris.Wrap(err, "extract: model call")
	}
	resp.Usage.LogCost(s.model, "extract")

	cleaned := cleanJSON(resp.Text())
	if cleaned == "" || cleaned == "null" {
		return nil, nil
	}
	cleaned = trailingComma.ReplaceAllString(cleaned, "$1")

	var out map[string]any
	if err := json.Unmarshal([]byte(cleaned), &out); err != nil {
		zap.L().Warn("extract: malformed JSON reply",
			zap.Error(err),
			zap.String("reply_head", head(cleaned, 200)),
		)
		return nil, eris.Wrap(err, "extract: decode reply")
	}
	return model.Row(out), nil
}

// Complete sends a free-text prompt and returns the trimmed completion. Used
// by the classifier.
func (s *Service) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := s.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       s.model,
		MaxTokens:   64,
		Messages:    []anthropic.Message{{Role: "user", Content: prompt}},
		Temperature: &s.temp,
	})
	if err != nil {
		return "", eris.Wrap(err, "extract: completion call")
	}
	resp.Usage.LogCost(s.model, "classify")
	return strings.TrimSpace(resp.Text()), nil
}

// MatchCandidate asks the model to pick the best-matching candidate for an
// item description. The reply is accepted when it is a well-formed object
// carrying an entry_id; (nil, nil) means no confident match.
func (s *Service) MatchCandidate(ctx context.Context, desc string, candidates []model.Row) (model.Row, error) {
	result, err := s.fallbackMatch(ctx, desc, candidates)
	if err != nil || result == nil {
		return nil, err
	}
	if !result.Has("entry_id") {
		return nil, nil
	}
	return result, nil
}

// MatchReturnCandidate is the returns-aware variant: the model's answer is
// accepted only when it identity-matches one of the supplied candidates, and
// the stored candidate (not the model output) is returned.
func (s *Service) MatchReturnCandidate(ctx context.Context, desc string, candidates []model.Row) (model.Row, error) {
	result, err := s.fallbackMatch(ctx, desc, candidates)
	if err != nil || result == nil {
		return nil, err
	}

	if result.Has("entry_id") {
		id := result.String("entry_id")
		for _, c := range candidates {
			if c.String("entry_id") == id {
				zap.L().Debug("extract: semantic return match accepted", zap.String("entry_id", id))
				return c, nil
			}
		}
	}
	for _, c := range candidates {
		if reflect.DeepEqual(map[string]any(c), map[string]any(result)) {
			return c, nil
		}
	}

	zap.L().Debug("extract: semantic match rejected, not among candidates")
	return nil, nil
}

func (s *Service) fallbackMatch(ctx context.Context, desc string, candidates []model.Row) (model.Row, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	encoded, err := json.MarshalIndent(candidates, "", "  ")
	if err != nil {
		return nil, eris.Wrap(err, "extract: encode candidates")
	}
	return s.ExtractJSON(ctx, s.prompts.BuildFallbackMatch(desc, string(encoded)))
}

// cleanJSON strips markdown code fences and any text surrounding the
// outermost JSON object, leaving "null" untouched so callers can recognize
// an explicit no-match reply.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}

func head(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
