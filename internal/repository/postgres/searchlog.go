package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/utafrali/apparel-discovery/internal/scoring"
	"github.com/utafrali/apparel-discovery/pkg/database"
	apperrors "github.com/utafrali/apparel-discovery/pkg/errors"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrations returns the schema owned by the discovery service, rooted so
// that database.RunMigrations sees the .sql files directly.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrations, "migrations")
	if err != nil {
		panic(fmt.Sprintf("embedded migrations: %v", err))
	}
	return sub
}

// SearchLogRepository stores search analytics in search_history.
type SearchLogRepository struct {
	pool database.DBTX
	now  func() time.Time
}

// NewSearchLogRepository creates a new PostgreSQL-backed search history sink.
func NewSearchLogRepository(pool database.DBTX) *SearchLogRepository {
	return &SearchLogRepository{pool: pool, now: time.Now}
}

// RecordSearch inserts an unclicked search row and returns its ID.
func (r *SearchLogRepository) RecordSearch(ctx context.Context, query string, resultCount int, userID string) (id string, err error) {
	stmt := `
		INSERT INTO search_history (id, query, normalized_query, result_count, user_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	ctx, end := database.TraceQuery(ctx, "RecordSearch", stmt)
	defer func() { end(err) }()

	id = uuid.New().String()
	if _, err = r.pool.Exec(ctx, stmt,
		id,
		query,
		scoring.Normalize(query),
		resultCount,
		nullable(userID),
		r.now().UTC(),
	); err != nil {
		return "", fmt.Errorf("insert search history: %w", err)
	}
	return id, nil
}

// RecordClick sets clicked_slug if it is still empty.
func (r *SearchLogRepository) RecordClick(ctx context.Context, recordID, slug string) (err error) {
	stmt := `UPDATE search_history SET clicked_slug = $2 WHERE id = $1 AND clicked_slug IS NULL`

	ctx, end := database.TraceQuery(ctx, "RecordClick", stmt)
	defer func() { end(err) }()

	tag, err := r.pool.Exec(ctx, stmt, recordID, slug)
	if err != nil {
		return fmt.Errorf("update search click: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err = r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM search_history WHERE id = $1)`, recordID).Scan(&exists); err != nil {
		return fmt.Errorf("check search record: %w", err)
	}
	if !exists {
		return apperrors.NotFound("search record", recordID)
	}
	return apperrors.Conflict("click already recorded for search " + recordID)
}

// LatestUnclicked finds the newest unclicked row with the same normalized query.
func (r *SearchLogRepository) LatestUnclicked(ctx context.Context, query, userID string) (id string, err error) {
	stmt := `
		SELECT id FROM search_history
		WHERE normalized_query = $1
		  AND user_id IS NOT DISTINCT FROM $2
		  AND clicked_slug IS NULL
		ORDER BY created_at DESC
		LIMIT 1`

	ctx, end := database.TraceQuery(ctx, "LatestUnclicked", stmt)
	defer func() { end(err) }()

	if err = r.pool.QueryRow(ctx, stmt, scoring.Normalize(query), nullable(userID)).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", apperrors.NotFound("unclicked search", query)
		}
		return "", fmt.Errorf("find unclicked search: %w", err)
	}
	return id, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
