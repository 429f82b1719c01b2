package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zhejian/shortlink/internal/model"
)

// uniqueViolation is the SQLSTATE for unique constraint failures.
const uniqueViolation = "23505"

// PostgresStore handles database operations for links
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore creates a new Postgres-backed store
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func startSpan(ctx context.Context, name, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append([]attribute.KeyValue{
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", operation),
		attribute.String("db.sql.table", "links"),
	}, attrs...)
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// Create inserts a new link record into the database
func (r *PostgresStore) Create(ctx context.Context, link *model.Link) error {
	ctx, span := startSpan(ctx, "db.insert", "INSERT", attribute.String("custom_alias", link.CustomAlias))
	defer span.End()

	// NULLIF keeps alias-less rows out of the unique index.
	query := `
		INSERT INTO links (long_url, custom_alias)
		VALUES ($1, NULLIF($2, ''))
		RETURNING id, created_at, clicks
	`
	err := r.db.QueryRow(ctx, query, link.LongURL, link.CustomAlias).
		Scan(&link.ID, &link.CreatedAt, &link.Clicks)
	if err != nil {
		span.RecordError(err)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrAliasConflict
		}
		return err
	}

	return nil
}

// GetByAlias retrieves a link by its custom alias
func (r *PostgresStore) GetByAlias(ctx context.Context, alias string) (*model.Link, error) {
	ctx, span := startSpan(ctx, "db.select", "SELECT", attribute.String("custom_alias", alias))
	defer span.End()

	query := `SELECT id, long_url, custom_alias, created_at, clicks
		FROM links
		WHERE custom_alias = $1`
	link, err := scanLink(r.db.QueryRow(ctx, query, alias))
	if err != nil && !errors.Is(err, ErrNotFound) {
		span.RecordError(err)
	}
	return link, err
}

// GetByID retrieves a link by its numeric id
func (r *PostgresStore) GetByID(ctx context.Context, id int64) (*model.Link, error) {
	ctx, span := startSpan(ctx, "db.select", "SELECT", attribute.Int64("link_id", id))
	defer span.End()

	query := `SELECT id, long_url, custom_alias, created_at, clicks
		FROM links
		WHERE id = $1`
	link, err := scanLink(r.db.QueryRow(ctx, query, id))
	if err != nil && !errors.Is(err, ErrNotFound) {
		span.RecordError(err)
	}
	return link, err
}

// IncrementClicks increments the click counter for a link
func (r *PostgresStore) IncrementClicks(ctx context.Context, id int64) error {
	ctx, span := startSpan(ctx, "db.update", "UPDATE", attribute.Int64("link_id", id))
	defer span.End()

	result, err := r.db.Exec(ctx, `UPDATE links SET clicks = clicks + 1 WHERE id = $1`, id)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Ping checks database connectivity
func (r *PostgresStore) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

func scanLink(row pgx.Row) (*model.Link, error) {
	var (
		link  model.Link
		alias *string
	)
	err := row.Scan(&link.ID, &link.LongURL, &alias, &link.CreatedAt, &link.Clicks)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if alias != nil {
		link.CustomAlias = *alias
	}
	return &link, nil
}

var _ Store = (*PostgresStore)(nil)
