package llm

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/frahmantamala/iam-copilot/internal"
)

type OllamaClient struct {
	llm         *ollama.LLM
	model       string
	temperature float64
	logger      *slog.Logger
}

func NewOllamaClient(cfg internal.LLMConfig, logger *slog.Logger) (*OllamaClient, error) {
	opts := []ollama.Option{
		ollama.WithModel(cfg.Model),
		ollama.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
	}
	if cfg.NumCtx > 0 {
		opts = append(opts, ollama.WithRunnerNumCtx(cfg.NumCtx))
	}

	llm, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create ollama client: %w", err)
	}

	logger.Info("initializing ollama client", "model", cfg.Model, "base_url", cfg.BaseURL)
	return &OllamaClient{llm: llm, model: cfg.Model, temperature: cfg.Temperature, logger: logger}, nil
}

func (o *OllamaClient) Generate(ctx context.Context, prompt string) (string, error) {
	o.logger.Debug("generating text via ollama", "model", o.model)

	text, err := llms.GenerateFromSinglePrompt(ctx, o.llm, prompt, llms.WithTemperature(o.temperature))
	if err != nil {
		return "", fmt.Errorf("ollama generation failed: %w", err)
	}
	return text, nil
}
