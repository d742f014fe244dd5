package vllm

import (
	"github.com/kiranshivaraju/loglens/internal/ai/openai"
	"github.com/kiranshivaraju/loglens/internal/config"
)

// NewProvider returns a client for vLLM's OpenAI-compatible server.
func NewProvider(cfg config.VLLMConfig) *openai.Provider {
	return openai.NewCompatible("vllm", cfg.BaseURL, "", cfg.Model)
}
