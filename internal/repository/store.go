package repository

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"

	"github.com/zhejian/shortlink/internal/model"
)

var (
	ErrNotFound      = errors.New("link not found")
	ErrAliasConflict = errors.New("custom alias already exists")
)

var tracer = otel.Tracer("github.com/zhejian/shortlink/internal/repository")

// Store is the persistence contract used by the link service.
type Store interface {
	// Create inserts link and fills in its ID and CreatedAt. A duplicate
	// custom alias yields ErrAliasConflict.
	Create(ctx context.Context, link *model.Link) error
	// GetByAlias returns the link holding alias or ErrNotFound.
	GetByAlias(ctx context.Context, alias string) (*model.Link, error)
	// GetByID returns the link with id or ErrNotFound.
	GetByID(ctx context.Context, id int64) (*model.Link, error)
	// IncrementClicks atomically adds one to the link's click counter.
	IncrementClicks(ctx context.Context, id int64) error
	// Ping checks connectivity of the backing storage.
	Ping(ctx context.Context) error
}
