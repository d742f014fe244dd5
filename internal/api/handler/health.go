package handler

import (
	"context"
	"net/http"

	"github.com/kiranshivaraju/loglens/internal/api/response"
)

// Pinger is any dependency whose connectivity can be probed.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewHealthHandler returns GET /api/v1/health. Every named dependency is
// pinged; any failure reports the service as degraded with a 503.
func NewHealthHandler(deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := make(map[string]string, len(deps))
		degraded := false
		for name, p := range deps {
			checks[name] = "ok"
			if err := p.Ping(r.Context()); err != nil {
				checks[name] = "degraded"
				degraded = true
			}
		}

		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
