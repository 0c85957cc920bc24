// Package inference turns interaction text into an unweighted
// (valence, arousal) reading. The engine treats every Predictor as an
// opaque, stateless collaborator shared by all sessions.
package inference

import (
	"context"
	"fmt"

	"github.com/lazypower/affect/internal/affect"
	"github.com/lazypower/affect/internal/config"
)

// Predictor is the interface for inference providers. Implementations must
// be safe for concurrent use.
type Predictor interface {
	Predict(ctx context.Context, text string) (affect.Coordinate, error)
}

// NewPredictor creates a predictor based on the config provider setting.
func NewPredictor(cfg config.InferenceConfig) (Predictor, error) {
	switch cfg.Provider {
	case "", "lexicon":
		return NewLexicon(), nil
	case "mock":
		return &Mock{}, nil
	case "ollama":
		url := cfg.OllamaURL
		if url == "" {
			url = "http://localhost:11434"
		}
		model := cfg.Model
		if model == "" {
			model = "llama3.2"
		}
		return NewOllama(url, model), nil
	case "anthropic":
		if cfg.AnthropicKey == "" {
			return nil, fmt.Errorf("anthropic provider requires ANTHROPIC_API_KEY or config")
		}
		model := cfg.Model
		if model == "" {
			model = "claude-haiku-4-5-20251001"
		}
		return NewAnthropic(cfg.AnthropicKey, model), nil
	case "openai":
		if cfg.OpenAIKey == "" {
			return nil, fmt.Errorf("openai provider requires OPENAI_API_KEY or config")
		}
		model := cfg.Model
		if model == "" {
			model = "gpt-4o-mini"
		}
		return NewOpenAI(cfg.OpenAIKey, cfg.OpenAIURL, model), nil
	default:
		return nil, fmt.Errorf("unknown inference provider: %q", cfg.Provider)
	}
}
