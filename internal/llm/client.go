// Package llm adapts hosted and local language models to the query generator interface.
package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/frahmantamala/iam-copilot/internal"
)

const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

type Client interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// New builds the client for cfg.Provider.
func New(cfg internal.LLMConfig, logger *slog.Logger) (Client, error) {
	switch cfg.Provider {
	case ProviderOllama:
		return NewOllamaClient(cfg, logger)
	case ProviderOpenAI:
		return NewOpenAIClient(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
