// Package llm wraps chat-completion providers behind a single-shot Completer
// used for slot extraction and spoken answer phrasing.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/AtRiskMedia/tractcall-go/pkg/config"
)

// ErrNoProvider is returned when no provider is configured.
var ErrNoProvider = errors.New("llm: no provider configured")

// Completer returns one completion for a system prompt and user text.
type Completer interface {
	Name() string
	Complete(ctx context.Context, system, user string) (string, error)
}

// NewFromConfig builds the provider selected by LLM_PROVIDER. It returns
// nil when the provider is "none" or its API key is missing.
func NewFromConfig() Completer {
	switch strings.ToLower(config.LLMProvider) {
	case "anthropic":
		if config.AnthropicAPIKey == "" {
			return nil
		}
		return NewAnthropicCompleter(config.AnthropicAPIKey, config.AnthropicModel)
	case "openai":
		if config.OpenAIAPIKey == "" {
			return nil
		}
		return NewOpenAICompleter(config.OpenAIAPIKey, config.OpenAIBaseURL, config.OpenAIModel)
	default:
		return nil
	}
}

// DecodeJSON extracts the first JSON object from a model reply, tolerating
// markdown fences and surrounding prose.
func DecodeJSON(raw string, v any) error {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return fmt.Errorf("llm: no JSON object in reply")
	}
	if err := json.Unmarshal([]byte(s[start:end+1]), v); err != nil {
		return fmt.Errorf("llm: decode reply: %w", err)
	}
	return nil
}
