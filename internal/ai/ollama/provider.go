package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/kiranshivaraju/loglens/internal/ai"
	"github.com/kiranshivaraju/loglens/internal/config"
	"github.com/kiranshivaraju/loglens/pkg/models"
)

// Provider implements models.InferenceClient using Ollama's chat API.
type Provider struct {
	cfg    config.OllamaConfig
	client *http.Client
}

func NewProvider(cfg config.OllamaConfig) *Provider {
	return &Provider{cfg: cfg, client: &http.Client{}}
}

func (p *Provider) Name() string { return "ollama" }

func (p *Provider) Complete(ctx context.Context, req models.InferenceRequest) (models.InferenceReply, error) {
	model := req.Model
	if model == "" {
		model = p.cfg.Model
	}

	body := chatRequest{
		Model: model,
		Messages: []message{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.User},
		},
		Stream: false,
		Format: "json",
	}
	if req.MaxTokens > 0 {
		body.Options = &options{NumPredict: req.MaxTokens}
	}

	var resp chatResponse
	url := strings.TrimRight(p.cfg.BaseURL, "/") + "/api/chat"
	if err := ai.PostJSON(ctx, p.client, url, nil, body, &resp); err != nil {
		return models.InferenceReply{}, err
	}
	if resp.Error != "" {
		return models.InferenceReply{}, fmt.Errorf("%w: %s", ai.ErrProviderUnavailable, resp.Error)
	}

	return models.InferenceReply{Text: resp.Message.Content, Model: resp.Model}, nil
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []message `json:"messages"`
	Stream   bool      `json:"stream"`
	Format   string    `json:"format,omitempty"`
	Options  *options  `json:"options,omitempty"`
}

type options struct {
	NumPredict int `json:"num_predict,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Model   string  `json:"model"`
	Message message `json:"message"`
	Done    bool    `json:"done"`
	Error   string  `json:"error"`
}

var _ models.InferenceClient = (*Provider)(nil)
