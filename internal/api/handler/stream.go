package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/kiranshivaraju/loglens/internal/analyzer"
	"github.com/kiranshivaraju/loglens/internal/api/response"
	"github.com/kiranshivaraju/loglens/pkg/models"
)

const (
	maxIngestLines = 10000
	maxIngestBytes = 8 << 20
	maxLineBytes   = 1 << 20
)

// Stream is the part of *analyzer.StreamAnalyzer the HTTP layer uses.
type Stream interface {
	ProcessLog(ctx context.Context, line string) (*models.Analysis, error)
	Flush(ctx context.Context) (*models.Analysis, error)
	Metrics() analyzer.MetricsSnapshot
	PatternCache() []analyzer.PatternCacheEntry
	Stats() analyzer.StreamStats
}

type ingestResponse struct {
	Accepted int               `json:"accepted"`
	Analyses []models.Analysis `json:"analyses"`
	Pending  int               `json:"pending"`
}

// NewIngestHandler returns POST /api/v1/logs. The body is either
// {"lines": [...]} or, for text/plain, one log line per row.
func NewIngestHandler(s Stream) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxIngestBytes)

		lines, err := readLines(r)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
			return
		}
		if len(lines) == 0 {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "lines is required", nil)
			return
		}
		if len(lines) > maxIngestLines {
			response.Error(w, http.StatusRequestEntityTooLarge, "TOO_MANY_LINES",
				"At most 10000 lines per request", map[string]int{"max_lines": maxIngestLines})
			return
		}

		out := ingestResponse{Analyses: []models.Analysis{}}
		for _, line := range lines {
			a, err := s.ProcessLog(r.Context(), line)
			if err != nil {
				writeStreamError(w, err)
				return
			}
			out.Accepted++
			if a != nil {
				out.Analyses = append(out.Analyses, *a)
			}
		}
		out.Pending = s.Stats().Pending

		response.Accepted(w, out)
	}
}

// NewFlushHandler returns POST /api/v1/flush. An empty batch yields
// {"analysis": null}.
func NewFlushHandler(s Stream) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := s.Flush(r.Context())
		if err != nil {
			writeStreamError(w, err)
			return
		}
		response.JSON(w, map[string]any{"analysis": a})
	}
}

// NewMetricsHandler returns GET /api/v1/metrics.
func NewMetricsHandler(s Stream) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		response.JSON(w, map[string]any{
			"analyzer": s.Metrics(),
			"stream":   s.Stats(),
		})
	}
}

// NewPatternsHandler returns GET /api/v1/patterns, most recently used first.
func NewPatternsHandler(s Stream) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		entries := s.PatternCache()
		response.Collection(w, entries, response.PaginationMeta{
			Page:  1,
			Limit: len(entries),
			Total: len(entries),
		})
	}
}

func readLines(r *http.Request) ([]string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "text/plain" {
		var lines []string
		sc := bufio.NewScanner(r.Body)
		sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
		for sc.Scan() {
			line := strings.TrimRight(sc.Text(), "\r")
			if line != "" {
				lines = append(lines, line)
			}
		}
		if err := sc.Err(); err != nil {
			return nil, errors.New("invalid text body")
		}
		return lines, nil
	}

	var req struct {
		Lines []string `json:"lines"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errors.New("invalid JSON body")
	}
	return req.Lines, nil
}

func writeStreamError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, analyzer.ErrCapabilityNotImplemented):
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED",
			"The configured analyzer cannot analyze chunks", nil)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		response.Error(w, http.StatusServiceUnavailable, "REQUEST_CANCELED",
			"The request was canceled before analysis finished", nil)
	default:
		slog.Error("stream processing failed", "error", err)
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"An unexpected error occurred", nil)
	}
}
