package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kiranshivaraju/loglens/pkg/models"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

const analysisColumns = `id, chunk_id, provider, model, explanation, root_cause, certainty,
	confidence_score, performance_impact, remediation_steps, is_error, error_detail, cached,
	context, latency_ns, created_at`

// Publish inserts one analysis.
func (s *PostgresStore) Publish(ctx context.Context, a models.Analysis) error {
	contextJSON, err := json.Marshal(a.Context)
	if err != nil {
		return fmt.Errorf("encode analysis context: %w", err)
	}
	steps := a.RemediationSteps
	if steps == nil {
		steps = []string{}
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO analyses (`+analysisColumns+`, severity, dominant_signature)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		a.ID, a.ChunkID, a.Provider, a.Model, a.Explanation, a.RootCause, a.Certainty,
		a.ConfidenceScore, string(a.PerformanceImpact), steps, a.IsError, a.ErrorDetail, a.Cached,
		contextJSON, a.Latency.Nanoseconds(), a.CreatedAt,
		a.Context.Severity.String(), a.Context.DominantSignature())
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("insert analysis: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetAnalysis(ctx context.Context, id uuid.UUID) (*models.Analysis, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+analysisColumns+` FROM analyses WHERE id = $1`, id)
	a, err := scanAnalysis(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get analysis: %w", err)
	}
	return a, nil
}

// ListRecent returns analyses newest first.
func (s *PostgresStore) ListRecent(ctx context.Context, filter RecentFilter) ([]models.Analysis, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	var conditions []string
	var args []any
	argIdx := 1

	if !filter.Since.IsZero() {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", argIdx))
		args = append(args, filter.Since)
		argIdx++
	}
	if filter.ErrorsOnly {
		conditions = append(conditions, "is_error")
	}
	if filter.Signature != "" {
		conditions = append(conditions, fmt.Sprintf("dominant_signature = $%d", argIdx))
		args = append(args, filter.Signature)
		argIdx++
	}

	query := `SELECT ` + analysisColumns + ` FROM analyses`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC, id LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	defer rows.Close()

	out := make([]models.Analysis, 0)
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, fmt.Errorf("scan analysis: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func scanAnalysis(row pgx.Row) (*models.Analysis, error) {
	var (
		a           models.Analysis
		impact      string
		contextJSON []byte
		latencyNS   int64
	)
	if err := row.Scan(&a.ID, &a.ChunkID, &a.Provider, &a.Model, &a.Explanation, &a.RootCause,
		&a.Certainty, &a.ConfidenceScore, &impact, &a.RemediationSteps, &a.IsError, &a.ErrorDetail,
		&a.Cached, &contextJSON, &latencyNS, &a.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(contextJSON, &a.Context); err != nil {
		return nil, fmt.Errorf("decode analysis context: %w", err)
	}
	a.PerformanceImpact = models.PerformanceImpact(impact)
	a.Latency = time.Duration(latencyNS)
	return &a, nil
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}

var _ Store = (*PostgresStore)(nil)
