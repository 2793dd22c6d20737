package domain

import "time"

// SearchResult pairs a product with its match score for one query.
// MatchedIn lists contributing fields in ascending order.
type SearchResult struct {
	Product    Product  `json:"product"`
	MatchScore float64  `json:"match_score"`
	MatchedIn  []string `json:"matched_in"`
}

// SearchHistory is the analytics row written for every search. ClickedSlug
// is set at most once.
type SearchHistory struct {
	ID          string    `json:"id"`
	Query       string    `json:"query"`
	ResultCount int       `json:"result_count"`
	ClickedSlug *string   `json:"clicked_slug,omitempty"`
	UserID      *string   `json:"user_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Sort orders accepted by the search endpoint.
const (
	SortRelevance = "relevance"
	SortPriceAsc  = "price_asc"
	SortPriceDesc = "price_desc"
	SortNewest    = "newest"
	SortNameAsc   = "name_asc"
	SortNameDesc  = "name_desc"
)

// ValidSortOptions returns every accepted sort value.
func ValidSortOptions() []string {
	return []string{SortRelevance, SortPriceAsc, SortPriceDesc, SortNewest, SortNameAsc, SortNameDesc}
}

// IsValidSort reports whether sort is accepted. Empty means relevance.
func IsValidSort(sort string) bool {
	if sort == "" {
		return true
	}
	for _, s := range ValidSortOptions() {
		if s == sort {
			return true
		}
	}
	return false
}
