package search

import (
	"sort"
	"strings"

	"github.com/utafrali/apparel-discovery/internal/domain"
)

// SortResults reorders scored results in place for the requested sort. Ties in
// every order fall back to relevance then slug; unknown values mean relevance.
func SortResults(results []domain.SearchResult, order string) {
	var primary func(a, b domain.Product) int

	switch order {
	case domain.SortPriceAsc:
		primary = func(a, b domain.Product) int { return cmpInt64(a.Price, b.Price) }
	case domain.SortPriceDesc:
		primary = func(a, b domain.Product) int { return cmpInt64(b.Price, a.Price) }
	case domain.SortNewest:
		primary = func(a, b domain.Product) int { return b.CreatedAt.Compare(a.CreatedAt) }
	case domain.SortNameAsc:
		primary = func(a, b domain.Product) int {
			return strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
		}
	case domain.SortNameDesc:
		primary = func(a, b domain.Product) int {
			return strings.Compare(strings.ToLower(b.Title), strings.ToLower(a.Title))
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if primary != nil {
			if c := primary(results[i].Product, results[j].Product); c != 0 {
				return c < 0
			}
		}
		return byRelevance(results[i], results[j])
	})
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
