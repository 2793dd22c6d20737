// Package postgres implements the discovery collaborators on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/apparel-discovery/internal/domain"
	"github.com/utafrali/apparel-discovery/internal/repository"
	"github.com/utafrali/apparel-discovery/pkg/database"
	apperrors "github.com/utafrali/apparel-discovery/pkg/errors"
)

const productColumns = `slug, title, description, price, collection, images, in_stock,
		       sizes, colors, tags, COALESCE(fabric, ''), COALESCE(care, ''),
		       COALESCE(shipping, ''), featured, popularity, created_at`

// CatalogRepository reads products from the catalog tables.
type CatalogRepository struct {
	pool database.DBTX
}

// NewCatalogRepository creates a new PostgreSQL-backed catalog accessor.
func NewCatalogRepository(pool database.DBTX) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// ListProducts returns products matching filter in catalog order.
func (r *CatalogRepository) ListProducts(ctx context.Context, filter repository.ProductFilter) (products []domain.Product, err error) {
	where, args := buildFilter(filter)
	query := `SELECT ` + productColumns + ` FROM products` + where + ` ORDER BY created_at ASC, slug ASC`

	ctx, end := database.TraceQuery(ctx, "ListProducts", query)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products = []domain.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product rows: %w", err)
	}
	return products, nil
}

// GetProduct returns the product with slug.
func (r *CatalogRepository) GetProduct(ctx context.Context, slug string) (p *domain.Product, err error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE slug = $1`

	ctx, end := database.TraceQuery(ctx, "GetProduct", query)
	defer func() { end(err) }()

	p, err = scanProduct(r.pool.QueryRow(ctx, query, slug))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("product", slug)
		}
		return nil, fmt.Errorf("get product %s: %w", slug, err)
	}
	return p, nil
}

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var p domain.Product
	if err := row.Scan(
		&p.Slug,
		&p.Title,
		&p.Description,
		&p.Price,
		&p.Collection,
		&p.Images,
		&p.InStock,
		&p.Sizes,
		&p.Colors,
		&p.Tags,
		&p.Fabric,
		&p.Care,
		&p.Shipping,
		&p.Featured,
		&p.Popularity,
		&p.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &p, nil
}

// buildFilter renders the filter as a WHERE clause with positional args.
// List fields match case-insensitively against any element.
func buildFilter(f repository.ProductFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	next := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if f.Collection != "" {
		conds = append(conds, "lower(collection) = lower("+next(f.Collection)+")")
	}
	if f.Color != "" {
		conds = append(conds, "EXISTS (SELECT 1 FROM unnest(colors) c WHERE lower(c) = lower("+next(f.Color)+"))")
	}
	if f.Size != "" {
		conds = append(conds, "EXISTS (SELECT 1 FROM unnest(sizes) s WHERE lower(s) = lower("+next(f.Size)+"))")
	}
	if f.InStock != nil {
		conds = append(conds, "in_stock = "+next(*f.InStock))
	}
	if f.Featured != nil {
		conds = append(conds, "featured = "+next(*f.Featured))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
