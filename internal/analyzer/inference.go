package analyzer

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/kiranshivaraju/loglens/internal/ai"
	"github.com/kiranshivaraju/loglens/internal/cache"
	"github.com/kiranshivaraju/loglens/pkg/models"
)

const systemPrompt = `You are a site reliability engineer triaging application logs.
The user message is a JSON summary of one chunk of log lines: the dominant patterns, every
pattern with its occurrence count and severity, and a short description.
Reply with a single JSON object and nothing else, using these keys:
  "explanation": what is happening, in one or two sentences (required)
  "root_cause": the most likely root cause
  "confidence": your certainty as a number between 0 and 1
  "remediation": an array of short imperative steps an operator should take`

var reFence = regexp.MustCompile("(?s)^```[A-Za-z]*\\s*(.*?)\\s*```$")

// InferenceAnalyzer implements AnalyzeChunk with one call to an external
// inference service per chunk. Failures are returned as *ai.InferenceFailure.
type InferenceAnalyzer struct {
	Base

	client    models.InferenceClient
	model     string
	maxTokens int
	limiter   *rate.Limiter
	replies   cache.Cache
	replyTTL  time.Duration
}

// InferenceOption configures an InferenceAnalyzer.
type InferenceOption func(*InferenceAnalyzer)

// WithRateLimiter bounds the rate of inference calls. Waiting for a token
// honours the call's context.
func WithRateLimiter(l *rate.Limiter) InferenceOption {
	return func(a *InferenceAnalyzer) { a.limiter = l }
}

// WithReplyCache caches successfully parsed replies keyed by request hash.
func WithReplyCache(c cache.Cache, ttl time.Duration) InferenceOption {
	return func(a *InferenceAnalyzer) {
		a.replies = c
		a.replyTTL = ttl
	}
}

// WithMaxTokens caps the reply length requested from the service.
func WithMaxTokens(n int) InferenceOption {
	return func(a *InferenceAnalyzer) { a.maxTokens = n }
}

func NewInferenceAnalyzer(client models.InferenceClient, model string, opts ...InferenceOption) *InferenceAnalyzer {
	a := &InferenceAnalyzer{client: client, model: model}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Provider returns the name of the backing inference client.
func (a *InferenceAnalyzer) Provider() string { return a.client.Name() }

func (a *InferenceAnalyzer) AnalyzeChunk(ctx context.Context, chunk models.LogChunk) (models.Analysis, error) {
	patterns := a.ExtractPatterns(chunk)
	c := a.GetContext(patterns)

	req, err := BuildRequest(a.model, c, a.maxTokens)
	if err != nil {
		return models.Analysis{}, ai.NewFailure(a.client.Name(), err)
	}

	reply, err := a.complete(ctx, req)
	if err != nil {
		return models.Analysis{}, ai.NewFailure(a.client.Name(), err)
	}

	parsed, err := ParseReply(reply.Text)
	if err != nil {
		return models.Analysis{}, ai.NewFailure(a.client.Name(), err)
	}

	model := reply.Model
	if model == "" {
		model = req.Model
	}

	return models.Analysis{
		ID:               uuid.New(),
		ChunkID:          chunk.ID,
		Context:          c,
		Explanation:      parsed.Explanation,
		RootCause:        parsed.RootCause,
		Certainty:        parsed.Certainty,
		RemediationSteps: parsed.Remediation,
		Provider:         a.client.Name(),
		Model:            model,
		CreatedAt:        time.Now().UTC(),
	}, nil
}

// complete performs the rate-limited, optionally cached call. Only replies
// that parse are written back to the cache.
func (a *InferenceAnalyzer) complete(ctx context.Context, req models.InferenceRequest) (models.InferenceReply, error) {
	key := ""
	if a.replies != nil {
		key = cache.InferenceReplyKey(RequestHash(req))
		raw, found, err := a.replies.Get(ctx, key)
		if err != nil {
			slog.Warn("inference reply cache read failed", "error", err)
		} else if found {
			var reply models.InferenceReply
			if err := json.Unmarshal(raw, &reply); err == nil {
				return reply, nil
			}
			slog.Warn("discarding corrupt cached inference reply", "key", key)
			if err := a.replies.Delete(ctx, key); err != nil {
				slog.Warn("inference reply cache delete failed", "error", err)
			}
		}
	}

	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return models.InferenceReply{}, ai.ClassifyTransport(ctxErr)
			}
			return models.InferenceReply{}, fmt.Errorf("%w: %v", ai.ErrRateLimited, err)
		}
	}

	start := time.Now()
	reply, err := a.client.Complete(ctx, req)
	if err != nil {
		return models.InferenceReply{}, err
	}
	slog.Debug("inference call completed",
		"provider", a.client.Name(),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if key != "" {
		if _, perr := ParseReply(reply.Text); perr == nil {
			raw, _ := json.Marshal(reply)
			if err := a.replies.Set(ctx, key, raw, a.replyTTL); err != nil {
				slog.Warn("inference reply cache write failed", "error", err)
			}
		}
	}
	return reply, nil
}

// BuildRequest renders the inference request for a context. The same context
// always yields the same request.
func BuildRequest(model string, c models.Context, maxTokens int) (models.InferenceRequest, error) {
	user, err := json.Marshal(c)
	if err != nil {
		return models.InferenceRequest{}, fmt.Errorf("encoding context: %w", err)
	}
	return models.InferenceRequest{
		Model:     model,
		System:    systemPrompt,
		User:      string(user),
		MaxTokens: maxTokens,
	}, nil
}

// RequestHash returns the hex SHA-256 of the request's canonical encoding.
func RequestHash(req models.InferenceRequest) string {
	raw, _ := json.Marshal(req)
	return fmt.Sprintf("%x", sha256.Sum256(raw))
}

// ParsedReply is the structured content of an inference reply.
type ParsedReply struct {
	Explanation string
	RootCause   string
	Certainty   float64
	Remediation []string
}

type replyJSON struct {
	Explanation string   `json:"explanation"`
	RootCause   string   `json:"root_cause"`
	Confidence  *float64 `json:"confidence"`
	Remediation []string `json:"remediation"`
}

// ParseReply interprets reply text. A JSON object (bare or in a fenced code
// block) must carry a non-empty explanation; other non-empty text is taken as
// a free-text explanation with unknown certainty.
func ParseReply(text string) (ParsedReply, error) {
	body := strings.TrimSpace(text)
	if m := reFence.FindStringSubmatch(body); m != nil {
		body = strings.TrimSpace(m[1])
	}
	if body == "" {
		return ParsedReply{}, fmt.Errorf("%w: empty reply", ai.ErrInvalidResponse)
	}

	if !strings.HasPrefix(body, "{") && !strings.HasPrefix(body, "[") {
		return ParsedReply{Explanation: body, Certainty: models.CertaintyUnknown}, nil
	}

	var raw replyJSON
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return ParsedReply{}, fmt.Errorf("%w: %v", ai.ErrInvalidResponse, err)
	}
	explanation := strings.TrimSpace(raw.Explanation)
	if explanation == "" {
		return ParsedReply{}, fmt.Errorf("%w: reply has no explanation", ai.ErrInvalidResponse)
	}

	certainty := models.CertaintyUnknown
	if raw.Confidence != nil {
		certainty = normalizeCertainty(*raw.Confidence)
	}

	return ParsedReply{
		Explanation: explanation,
		RootCause:   strings.TrimSpace(raw.RootCause),
		Certainty:   certainty,
		Remediation: cleanSteps(raw.Remediation),
	}, nil
}

// normalizeCertainty reads values in (1, 100] as percentages.
func normalizeCertainty(v float64) float64 {
	if v > 1 && v <= 100 {
		v /= 100
	}
	return clamp01(v)
}

func cleanSteps(steps []string) []string {
	out := make([]string, 0, len(steps))
	for _, s := range steps {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

var _ Analyzer = (*InferenceAnalyzer)(nil)
