package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	mw "github.com/kiranshivaraju/loglens/internal/api/middleware"
	"github.com/kiranshivaraju/loglens/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
// A nil RateLimit disables rate limiting.
type Dependencies struct {
	RateLimit *mw.RateLimit

	HealthHandler   http.HandlerFunc
	IngestHandler   http.HandlerFunc
	FlushHandler    http.HandlerFunc
	MetricsHandler  http.HandlerFunc
	PatternsHandler http.HandlerFunc
	ListAnalyses    http.HandlerFunc
	GetAnalysis     http.HandlerFunc

	// Prometheus is served at /metrics when set.
	Prometheus http.Handler
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	// Unlimited: probes and scrapes
	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))
	if deps.Prometheus != nil {
		r.Method(http.MethodGet, "/metrics", deps.Prometheus)
	}

	r.Group(func(r chi.Router) {
		if deps.RateLimit != nil {
			r.Use(deps.RateLimit.Limit)
		}

		r.Post("/api/v1/logs", orNotImplemented(deps.IngestHandler))
		r.Post("/api/v1/flush", orNotImplemented(deps.FlushHandler))

		r.Get("/api/v1/metrics", orNotImplemented(deps.MetricsHandler))
		r.Get("/api/v1/patterns", orNotImplemented(deps.PatternsHandler))

		r.Get("/api/v1/analyses", orNotImplemented(deps.ListAnalyses))
		r.Get("/api/v1/analyses/{analysisID}", orNotImplemented(deps.GetAnalysis))
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
