package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/zhejian/shortlink/internal/model"
)

// SQLiteStore keeps links in a local SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps an open SQLite handle. The schema must already be
// migrated (see MigrateSQLite).
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func startSQLiteSpan(ctx context.Context, name, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append([]attribute.KeyValue{
		attribute.String("db.system", "sqlite"),
		attribute.String("db.operation", operation),
		attribute.String("db.sql.table", "links"),
	}, attrs...)
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func (r *SQLiteStore) Create(ctx context.Context, link *model.Link) error {
	ctx, span := startSQLiteSpan(ctx, "db.insert", "INSERT", attribute.String("custom_alias", link.CustomAlias))
	defer span.End()

	createdAt := time.Now().UTC()
	query := `
		INSERT INTO links (long_url, custom_alias, created_at)
		VALUES (?, NULLIF(?, ''), ?)
		RETURNING id, clicks
	`
	err := r.db.QueryRowContext(ctx, query, link.LongURL, link.CustomAlias, createdAt).
		Scan(&link.ID, &link.Clicks)
	if err != nil {
		span.RecordError(err)
		var sqlErr *sqlite.Error
		if errors.As(err, &sqlErr) && sqlErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
			return ErrAliasConflict
		}
		return err
	}
	link.CreatedAt = createdAt
	return nil
}

func (r *SQLiteStore) GetByAlias(ctx context.Context, alias string) (*model.Link, error) {
	ctx, span := startSQLiteSpan(ctx, "db.select", "SELECT", attribute.String("custom_alias", alias))
	defer span.End()

	row := r.db.QueryRowContext(ctx, `SELECT id, long_url, custom_alias, created_at, clicks
		FROM links WHERE custom_alias = ?`, alias)
	return scanSQLiteLink(row)
}

func (r *SQLiteStore) GetByID(ctx context.Context, id int64) (*model.Link, error) {
	ctx, span := startSQLiteSpan(ctx, "db.select", "SELECT", attribute.Int64("link_id", id))
	defer span.End()

	row := r.db.QueryRowContext(ctx, `SELECT id, long_url, custom_alias, created_at, clicks
		FROM links WHERE id = ?`, id)
	return scanSQLiteLink(row)
}

// IncrementClicks relies on SQLite's single-writer lock; the update is a
// single statement so concurrent increments serialize without loss.
func (r *SQLiteStore) IncrementClicks(ctx context.Context, id int64) error {
	ctx, span := startSQLiteSpan(ctx, "db.update", "UPDATE", attribute.Int64("link_id", id))
	defer span.End()

	result, err := r.db.ExecContext(ctx, `UPDATE links SET clicks = clicks + 1 WHERE id = ?`, id)
	if err != nil {
		span.RecordError(err)
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteStore) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func scanSQLiteLink(row *sql.Row) (*model.Link, error) {
	var (
		link  model.Link
		alias sql.NullString
	)
	err := row.Scan(&link.ID, &link.LongURL, &alias, &link.CreatedAt, &link.Clicks)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	link.CustomAlias = alias.String
	return &link, nil
}

var _ Store = (*SQLiteStore)(nil)
