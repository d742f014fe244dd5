package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kiranshivaraju/loglens/internal/api/response"
	"github.com/kiranshivaraju/loglens/internal/store"
	"github.com/kiranshivaraju/loglens/pkg/models"
)

const defaultListLimit = 50

// AnalysisReader is the read side of the analysis store.
type AnalysisReader interface {
	GetAnalysis(ctx context.Context, id uuid.UUID) (*models.Analysis, error)
	ListRecent(ctx context.Context, filter store.RecentFilter) ([]models.Analysis, error)
}

// NewListAnalysesHandler returns GET /api/v1/analyses.
// Query params: since (RFC3339), errors_only (bool), signature, limit (1-500).
func NewListAnalysesHandler(s AnalysisReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var f store.RecentFilter

		if v := q.Get("since"); v != "" {
			since, err := time.Parse(time.RFC3339, v)
			if err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "since must be a valid RFC3339 timestamp", nil)
				return
			}
			f.Since = since
		}
		if v := q.Get("errors_only"); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "errors_only must be a boolean", nil)
				return
			}
			f.ErrorsOnly = b
		}
		f.Signature = q.Get("signature")
		if v := q.Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 || n > 500 {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "limit must be between 1 and 500", nil)
				return
			}
			f.Limit = n
		}

		out, err := s.ListRecent(r.Context(), f)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
			return
		}
		limit := f.Limit
		if limit == 0 {
			limit = defaultListLimit
		}
		response.Collection(w, out, response.PaginationMeta{
			Page:  1,
			Limit: limit,
			Total: len(out),
		})
	}
}

// NewGetAnalysisHandler returns GET /api/v1/analyses/{analysisID}.
func NewGetAnalysisHandler(s AnalysisReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "analysisID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "analysisID must be a UUID", nil)
			return
		}

		a, err := s.GetAnalysis(r.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Analysis not found", nil)
			return
		}
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
			return
		}
		response.JSON(w, a)
	}
}
