package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/kiranshivaraju/loglens/internal/ai"
	"github.com/kiranshivaraju/loglens/pkg/models"
)

// Remediator produces ordered remediation steps for a successful analysis.
type Remediator interface {
	Remediate(ctx context.Context, a models.Analysis) ([]string, error)
}

type remediationRule struct {
	keywords []string
	steps    []string
}

var defaultRules = []remediationRule{
	{
		keywords: []string{"timeout", "timed out", "deadline exceeded"},
		steps: []string{
			"Check latency and saturation of the downstream dependency named in the failing calls",
			"Review client timeout and retry settings for the affected calls",
		},
	},
	{
		keywords: []string{"connection refused", "connection reset", "no route to host", "unreachable"},
		steps: []string{
			"Verify the target service is running and listening on the expected port",
			"Check network policies, DNS resolution and service discovery for the target",
		},
	},
	{
		keywords: []string{"out of memory", "oomkilled", "cannot allocate memory", "heap exhausted"},
		steps: []string{
			"Inspect memory usage of the affected process and compare it with its limits",
			"Capture a heap profile to locate the allocation growth",
		},
	},
	{
		keywords: []string{"no space left", "disk full", "quota exceeded"},
		steps: []string{
			"Free disk space or expand the volume backing the affected path",
			"Check log rotation and retention settings",
		},
	},
	{
		keywords: []string{"unauthorized", "forbidden", "permission denied", "401", "403"},
		steps: []string{
			"Verify credentials, tokens and certificates used by the caller have not expired",
			"Check role bindings and access policies for the affected identity",
		},
	},
	{
		keywords: []string{"deadlock", "lock wait", "too many connections", "pool exhausted"},
		steps: []string{
			"Inspect database connection pool usage and long-running transactions",
			"Review recent schema or query changes on the affected tables",
		},
	},
	{
		keywords: []string{"panic", "nil pointer", "segmentation fault", "stack trace"},
		steps: []string{
			"Locate the failing code path from the stack trace and roll back the latest release if it is new",
		},
	},
}

// RuleRemediator derives remediation steps from keyword rules. Steps suggested
// by the inference reply come first; rule steps follow in rule order.
type RuleRemediator struct {
	rules []remediationRule
}

func NewRuleRemediator() *RuleRemediator {
	return &RuleRemediator{rules: defaultRules}
}

func (r *RuleRemediator) Remediate(ctx context.Context, a models.Analysis) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, ai.ClassifyTransport(err)
	}

	haystack := remediationHaystack(a)
	steps := make([]string, 0, len(a.RemediationSteps)+2)
	seen := make(map[string]bool)
	add := func(s string) {
		if !seen[s] {
			seen[s] = true
			steps = append(steps, s)
		}
	}

	for _, s := range a.RemediationSteps {
		add(s)
	}
	for _, rule := range r.rules {
		for _, kw := range rule.keywords {
			if strings.Contains(haystack, kw) {
				for _, s := range rule.steps {
					add(s)
				}
				break
			}
		}
	}

	if len(steps) == 0 && a.Context.Severity >= models.SeverityError {
		add("Inspect the lines surrounding the first occurrence of the dominant pattern")
	}
	return steps, nil
}

func remediationHaystack(a models.Analysis) string {
	var b strings.Builder
	for _, p := range a.Context.Dominant {
		b.WriteString(p.Template)
		b.WriteByte('\n')
	}
	b.WriteString(strings.ToLower(a.Explanation))
	b.WriteByte('\n')
	b.WriteString(strings.ToLower(a.RootCause))
	return b.String()
}

const remediationPrompt = `You are a site reliability engineer. The user message is a JSON object describing a
diagnosed problem in application logs. Reply with a JSON object {"steps": [...]} holding at most
five short imperative remediation steps, most important first, and nothing else.`

var reListMarker = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s*`)

// InferenceRemediator asks the inference service for remediation steps in a
// second call. An empty reply falls back to the rule remediator.
type InferenceRemediator struct {
	client   models.InferenceClient
	model    string
	fallback *RuleRemediator
}

func NewInferenceRemediator(client models.InferenceClient, model string) *InferenceRemediator {
	return &InferenceRemediator{client: client, model: model, fallback: NewRuleRemediator()}
}

type remediationInput struct {
	Description string   `json:"description"`
	Severity    string   `json:"severity"`
	Explanation string   `json:"explanation"`
	RootCause   string   `json:"root_cause,omitempty"`
	Dominant    []string `json:"dominant_patterns"`
}

func (r *InferenceRemediator) Remediate(ctx context.Context, a models.Analysis) ([]string, error) {
	in := remediationInput{
		Description: a.Context.Description,
		Severity:    a.Context.Severity.String(),
		Explanation: a.Explanation,
		RootCause:   a.RootCause,
		Dominant:    make([]string, 0, len(a.Context.Dominant)),
	}
	for _, p := range a.Context.Dominant {
		in.Dominant = append(in.Dominant, p.Template)
	}
	user, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("encoding remediation input: %w", err)
	}

	reply, err := r.client.Complete(ctx, models.InferenceRequest{
		Model:  r.model,
		System: remediationPrompt,
		User:   string(user),
	})
	if err != nil {
		return nil, ai.NewFailure(r.client.Name(), err)
	}

	steps := parseSteps(reply.Text)
	if len(steps) == 0 {
		return r.fallback.Remediate(ctx, a)
	}
	return steps, nil
}

// parseSteps accepts {"steps": [...]}, a bare JSON array, or a plain list with
// one step per line.
func parseSteps(text string) []string {
	body := strings.TrimSpace(text)
	if m := reFence.FindStringSubmatch(body); m != nil {
		body = strings.TrimSpace(m[1])
	}

	var obj struct {
		Steps []string `json:"steps"`
	}
	if err := json.Unmarshal([]byte(body), &obj); err == nil && obj.Steps != nil {
		return cleanSteps(obj.Steps)
	}
	var arr []string
	if err := json.Unmarshal([]byte(body), &arr); err == nil {
		return cleanSteps(arr)
	}
	if strings.HasPrefix(body, "{") || strings.HasPrefix(body, "[") {
		return nil
	}

	var steps []string
	for _, line := range strings.Split(body, "\n") {
		if s := strings.TrimSpace(reListMarker.ReplaceAllString(line, "")); s != "" {
			steps = append(steps, s)
		}
	}
	return steps
}
