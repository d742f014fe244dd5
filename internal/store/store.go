package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/kiranshivaraju/loglens/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// Store persists analyses. It satisfies analyzer.Sink through Publish.
type Store interface {
	Ping(ctx context.Context) error
	Publish(ctx context.Context, a models.Analysis) error
	GetAnalysis(ctx context.Context, id uuid.UUID) (*models.Analysis, error)
	ListRecent(ctx context.Context, filter RecentFilter) ([]models.Analysis, error)
}

// RecentFilter narrows ListRecent. Zero values disable a filter; Limit
// defaults to 50 and is capped at 500.
type RecentFilter struct {
	Since      time.Time
	ErrorsOnly bool
	Signature  string
	Limit      int
}
