package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kiranshivaraju/loglens/internal/store"
	"github.com/kiranshivaraju/loglens/pkg/models"
)

// setupTestDB spins up a Postgres container, runs migrations, and returns a pool + cleanup.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("loglens_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, pgContainer.Terminate(ctx))
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, store.RunMigrations(connStr))
	// Second run is a no-op.
	require.NoError(t, store.RunMigrations(connStr))

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	return pool
}

func sampleAnalysis(sig string, isError bool, createdAt time.Time) models.Analysis {
	p := models.Pattern{Signature: sig, Template: "error db timeout", Example: "ERROR db timeout", Count: 3, Severity: models.SeverityError}
	a := models.Analysis{
		ID:      uuid.New(),
		ChunkID: uuid.New(),
		Context: models.Context{
			Dominant:    []models.Pattern{p},
			Patterns:    []models.Pattern{p},
			Severity:    models.SeverityError,
			Description: "3 lines, 1 distinct patterns, max severity error.",
			TotalLines:  3,
		},
		Explanation:       "database is timing out",
		RootCause:         "connection pool exhausted",
		Certainty:         0.8,
		ConfidenceScore:   0.88,
		PerformanceImpact: models.ImpactHigh,
		RemediationSteps:  []string{"Inspect the pool"},
		Provider:          "mock",
		Model:             "mock-v1",
		Latency:           1500 * time.Millisecond,
		CreatedAt:         createdAt.UTC().Truncate(time.Microsecond),
	}
	if isError {
		detail := "inference failure (timeout)"
		a.IsError = true
		a.ErrorDetail = &detail
		a.ConfidenceScore = 0
		a.RemediationSteps = []string{}
	}
	return a
}

func TestPublishAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := store.NewPostgresStore(setupTestDB(t))
	ctx := context.Background()

	a := sampleAnalysis("sig-1", false, time.Now())
	require.NoError(t, s.Publish(ctx, a))

	got, err := s.GetAnalysis(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ChunkID, got.ChunkID)
	assert.Equal(t, a.Explanation, got.Explanation)
	assert.Equal(t, a.RemediationSteps, got.RemediationSteps)
	assert.Equal(t, a.PerformanceImpact, got.PerformanceImpact)
	assert.Equal(t, a.Latency, got.Latency)
	assert.Equal(t, "sig-1", got.Context.DominantSignature())
	assert.Equal(t, models.SeverityError, got.Context.Severity)
	assert.Nil(t, got.ErrorDetail)
	assert.True(t, a.CreatedAt.Equal(got.CreatedAt))
}

func TestPublish_Degraded(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := store.NewPostgresStore(setupTestDB(t))
	ctx := context.Background()

	a := sampleAnalysis("sig-1", true, time.Now())
	require.NoError(t, s.Publish(ctx, a))

	got, err := s.GetAnalysis(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, got.IsError)
	require.NotNil(t, got.ErrorDetail)
	assert.Equal(t, *a.ErrorDetail, *got.ErrorDetail)
	assert.Empty(t, got.RemediationSteps)
}

func TestPublish_DuplicateID(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := store.NewPostgresStore(setupTestDB(t))
	ctx := context.Background()

	a := sampleAnalysis("sig-1", false, time.Now())
	require.NoError(t, s.Publish(ctx, a))
	assert.ErrorIs(t, s.Publish(ctx, a), store.ErrDuplicateKey)
}

func TestGetAnalysis_NotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := store.NewPostgresStore(setupTestDB(t))

	_, err := s.GetAnalysis(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestListRecent(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := store.NewPostgresStore(setupTestDB(t))
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	require.NoError(t, s.Publish(ctx, sampleAnalysis("sig-a", false, base)))
	require.NoError(t, s.Publish(ctx, sampleAnalysis("sig-b", true, base.Add(10*time.Minute))))
	require.NoError(t, s.Publish(ctx, sampleAnalysis("sig-a", false, base.Add(20*time.Minute))))

	all, err := s.ListRecent(ctx, store.RecentFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.True(t, all[0].CreatedAt.After(all[1].CreatedAt))
	assert.True(t, all[1].CreatedAt.After(all[2].CreatedAt))

	errs, err := s.ListRecent(ctx, store.RecentFilter{ErrorsOnly: true})
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.True(t, errs[0].IsError)

	bySig, err := s.ListRecent(ctx, store.RecentFilter{Signature: "sig-a"})
	require.NoError(t, err)
	assert.Len(t, bySig, 2)

	since, err := s.ListRecent(ctx, store.RecentFilter{Since: base.Add(5 * time.Minute)})
	require.NoError(t, err)
	assert.Len(t, since, 2)

	limited, err := s.ListRecent(ctx, store.RecentFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestListRecent_Empty(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := store.NewPostgresStore(setupTestDB(t))

	out, err := s.ListRecent(context.Background(), store.RecentFilter{})
	require.NoError(t, err)
	assert.NotNil(t, out)
	assert.Empty(t, out)
}

// --- Ping ---

func TestPing(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := store.NewPostgresStore(setupTestDB(t))
	assert.NoError(t, s.Ping(context.Background()))
}
