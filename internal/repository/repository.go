package repository

import (
	"context"
	"strconv"
	"strings"

	"github.com/utafrali/apparel-discovery/internal/domain"
)

// ProductFilter narrows a catalog listing. Nil and empty fields match everything.
type ProductFilter struct {
	Collection string
	Color      string
	Size       string
	InStock    *bool
	Featured   *bool
}

// Matches applies the filter to p. Accessors that cannot push a criterion down
// to their store use it to filter in process.
func (f ProductFilter) Matches(p domain.Product) bool {
	if f.Collection != "" && !strings.EqualFold(p.Collection, f.Collection) {
		return false
	}
	if f.Color != "" && !containsFold(p.Colors, f.Color) {
		return false
	}
	if f.Size != "" && !containsFold(p.Sizes, f.Size) {
		return false
	}
	if f.InStock != nil && p.InStock != *f.InStock {
		return false
	}
	if f.Featured != nil && p.Featured != *f.Featured {
		return false
	}
	return true
}

// CacheKey renders the filter as a stable string for cache keys.
func (f ProductFilter) CacheKey() string {
	var b strings.Builder
	b.WriteString("c=")
	b.WriteString(strings.ToLower(f.Collection))
	b.WriteString("|col=")
	b.WriteString(strings.ToLower(f.Color))
	b.WriteString("|s=")
	b.WriteString(strings.ToLower(f.Size))
	b.WriteString("|stock=")
	b.WriteString(optBool(f.InStock))
	b.WriteString("|feat=")
	b.WriteString(optBool(f.Featured))
	return b.String()
}

func optBool(b *bool) string {
	if b == nil {
		return "*"
	}
	return strconv.FormatBool(*b)
}

func containsFold(values []string, want string) bool {
	for _, v := range values {
		if strings.EqualFold(v, want) {
			return true
		}
	}
	return false
}

// CatalogAccessor reads the product catalog. GetProduct returns an
// apperrors NotFound error for unknown slugs.
type CatalogAccessor interface {
	ListProducts(ctx context.Context, filter ProductFilter) ([]domain.Product, error)
	GetProduct(ctx context.Context, slug string) (*domain.Product, error)
}

// InteractionHistoryAccessor reads what a shopper bought, saved and reviewed.
// Unknown shoppers have empty histories.
type InteractionHistoryAccessor interface {
	OrdersFor(ctx context.Context, userID string) ([]domain.OrderLine, error)
	WishlistFor(ctx context.Context, userID string) ([]string, error)
	ReviewsFor(ctx context.Context, userID string) ([]domain.Review, error)
}

// SearchHistorySink stores search analytics.
type SearchHistorySink interface {
	// RecordSearch stores a new search and returns its ID. userID may be empty.
	RecordSearch(ctx context.Context, query string, resultCount int, userID string) (string, error)
	// RecordClick attaches slug to the search. A record is clicked at most
	// once: a second click is a Conflict and an unknown ID is NotFound.
	RecordClick(ctx context.Context, recordID, slug string) error
	// LatestUnclicked returns the most recent unclicked search with the same
	// normalized query text for userID, or NotFound.
	LatestUnclicked(ctx context.Context, query, userID string) (string, error)
}
