package postgres

import (
	"context"
	"fmt"

	"github.com/utafrali/apparel-discovery/internal/domain"
	"github.com/utafrali/apparel-discovery/pkg/database"
)

// HistoryRepository reads a shopper's orders, wishlist and reviews.
type HistoryRepository struct {
	pool database.DBTX
}

// NewHistoryRepository creates a new PostgreSQL-backed history accessor.
func NewHistoryRepository(pool database.DBTX) *HistoryRepository {
	return &HistoryRepository{pool: pool}
}

// OrdersFor returns the lines of the user's non-cancelled orders, oldest first.
func (r *HistoryRepository) OrdersFor(ctx context.Context, userID string) (lines []domain.OrderLine, err error) {
	query := `
		SELECT oi.product_slug, oi.quantity, oi.unit_price
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		WHERE o.user_id = $1 AND o.status <> 'cancelled'
		ORDER BY o.created_at ASC`

	ctx, end := database.TraceQuery(ctx, "OrdersFor", query)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list order lines: %w", err)
	}
	defer rows.Close()

	lines = []domain.OrderLine{}
	for rows.Next() {
		var l domain.OrderLine
		if err := rows.Scan(&l.ProductSlug, &l.Quantity, &l.Price); err != nil {
			return nil, fmt.Errorf("scan order line: %w", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order lines: %w", err)
	}
	return lines, nil
}

// WishlistFor returns the slugs the user saved, oldest first.
func (r *HistoryRepository) WishlistFor(ctx context.Context, userID string) (slugs []string, err error) {
	query := `SELECT product_slug FROM wishlist_items WHERE user_id = $1 ORDER BY created_at ASC`

	ctx, end := database.TraceQuery(ctx, "WishlistFor", query)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list wishlist: %w", err)
	}
	defer rows.Close()

	slugs = []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan wishlist item: %w", err)
		}
		slugs = append(slugs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wishlist: %w", err)
	}
	return slugs, nil
}

// ReviewsFor returns every rating the user left.
func (r *HistoryRepository) ReviewsFor(ctx context.Context, userID string) (reviews []domain.Review, err error) {
	query := `SELECT product_slug, rating FROM product_reviews WHERE user_id = $1 ORDER BY created_at ASC`

	ctx, end := database.TraceQuery(ctx, "ReviewsFor", query)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	reviews = []domain.Review{}
	for rows.Next() {
		var rv domain.Review
		if err := rows.Scan(&rv.ProductSlug, &rv.Rating); err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		reviews = append(reviews, rv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reviews: %w", err)
	}
	return reviews, nil
}
