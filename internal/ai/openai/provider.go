package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/kiranshivaraju/loglens/internal/ai"
	"github.com/kiranshivaraju/loglens/internal/config"
	"github.com/kiranshivaraju/loglens/pkg/models"
)

// Provider implements models.InferenceClient against any OpenAI-compatible
// chat completions endpoint.
type Provider struct {
	name    string
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

func NewProvider(cfg config.OpenAIConfig) *Provider {
	return NewCompatible("openai", cfg.BaseURL, cfg.APIKey, cfg.Model)
}

// NewCompatible builds a Provider for a self-hosted OpenAI-compatible server.
// apiKey may be empty.
func NewCompatible(name, baseURL, apiKey, model string) *Provider {
	return &Provider{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{},
	}
}

func (p *Provider) Name() string { return p.name }

func (p *Provider) Complete(ctx context.Context, req models.InferenceRequest) (models.InferenceReply, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}

	body := chatRequest{
		Model: model,
		Messages: []message{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.User},
		},
		MaxTokens:   req.MaxTokens,
		Temperature: 0,
	}

	headers := map[string]string{}
	if p.apiKey != "" {
		headers["Authorization"] = "Bearer " + p.apiKey
	}

	var resp chatResponse
	if err := ai.PostJSON(ctx, p.client, p.baseURL+"/v1/chat/completions", headers, body, &resp); err != nil {
		return models.InferenceReply{}, err
	}
	if len(resp.Choices) == 0 {
		return models.InferenceReply{}, fmt.Errorf("%w: no choices in reply", ai.ErrInvalidResponse)
	}

	return models.InferenceReply{Text: resp.Choices[0].Message.Content, Model: resp.Model}, nil
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Model   string   `json:"model"`
	Choices []choice `json:"choices"`
}

type choice struct {
	Index        int     `json:"index"`
	Message      message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

var _ models.InferenceClient = (*Provider)(nil)
