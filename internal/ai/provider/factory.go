// Package provider builds the configured inference client.
package provider

import (
	"fmt"

	"github.com/kiranshivaraju/loglens/internal/ai/anthropic"
	"github.com/kiranshivaraju/loglens/internal/ai/mock"
	"github.com/kiranshivaraju/loglens/internal/ai/ollama"
	"github.com/kiranshivaraju/loglens/internal/ai/openai"
	"github.com/kiranshivaraju/loglens/internal/ai/vllm"
	"github.com/kiranshivaraju/loglens/internal/config"
	"github.com/kiranshivaraju/loglens/pkg/models"
)

// New constructs the appropriate inference client based on config.
// Called once at startup.
func New(cfg config.AIConfig) (models.InferenceClient, error) {
	switch cfg.Provider {
	case "ollama":
		return ollama.NewProvider(cfg.Ollama), nil
	case "vllm":
		return vllm.NewProvider(cfg.VLLM), nil
	case "openai":
		return openai.NewProvider(cfg.OpenAI), nil
	case "anthropic":
		return anthropic.NewProvider(cfg.Anthropic), nil
	case "mock":
		return mock.NewMockClient(), nil
	default:
		return nil, fmt.Errorf("unknown AI provider %q: must be one of ollama, vllm, openai, anthropic, mock", cfg.Provider)
	}
}
