package anthropic

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/kiranshivaraju/loglens/internal/ai"
	"github.com/kiranshivaraju/loglens/internal/config"
	"github.com/kiranshivaraju/loglens/pkg/models"
)

const apiVersion = "2023-06-01"

// Provider implements models.InferenceClient using Anthropic's Messages API.
type Provider struct {
	cfg    config.AnthropicConfig
	client *http.Client
}

func NewProvider(cfg config.AnthropicConfig) *Provider {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	return &Provider{cfg: cfg, client: &http.Client{}}
}

func (p *Provider) Name() string { return "anthropic" }

func (p *Provider) Complete(ctx context.Context, req models.InferenceRequest) (models.InferenceReply, error) {
	model := req.Model
	if model == "" {
		model = p.cfg.Model
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = p.cfg.MaxTokens
	}

	body := messagesRequest{
		Model:     model,
		MaxTokens: maxTokens,
		System:    req.System,
		Messages:  []message{{Role: "user", Content: req.User}},
	}
	headers := map[string]string{
		"x-api-key":         p.cfg.APIKey,
		"anthropic-version": apiVersion,
	}

	var resp messagesResponse
	url := strings.TrimRight(p.cfg.BaseURL, "/") + "/v1/messages"
	if err := ai.PostJSON(ctx, p.client, url, headers, body, &resp); err != nil {
		return models.InferenceReply{}, err
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return models.InferenceReply{}, fmt.Errorf("%w: no text content (stop_reason %q)", ai.ErrInvalidResponse, resp.StopReason)
	}

	return models.InferenceReply{Text: text.String(), Model: resp.Model}, nil
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Model      string         `json:"model"`
	Content    []contentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

var _ models.InferenceClient = (*Provider)(nil)
