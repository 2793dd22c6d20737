package domain

// RecommendationContext describes one related or personalized request.
type RecommendationContext struct {
	AnchorSlug string
	UserID     string
	Limit      int
	Exclude    map[string]struct{}
}

// Excludes reports whether slug is in the exclusion set.
func (rc RecommendationContext) Excludes(slug string) bool {
	_, ok := rc.Exclude[slug]
	return ok
}

// OrderLine is one purchased item from a shopper's order history.
type OrderLine struct {
	ProductSlug string `json:"product_slug"`
	Quantity    int    `json:"quantity"`
	Price       int64  `json:"price"`
}

// Review is a rating a shopper left for a product.
type Review struct {
	ProductSlug string `json:"product_slug"`
	Rating      int    `json:"rating"`
}

// InteractionHistory bundles everything personalization reads about a shopper.
type InteractionHistory struct {
	Orders   []OrderLine
	Wishlist []string
	Reviews  []Review
}

// Empty reports whether the shopper has no orders, wishlist entries or reviews.
func (h InteractionHistory) Empty() bool {
	return len(h.Orders) == 0 && len(h.Wishlist) == 0 && len(h.Reviews) == 0
}

// PriceBand is the weighted centre of the prices a shopper engaged with.
type PriceBand struct {
	Center int64
	Weight float64
}

// InteractionSignal is the per-shopper affinity aggregate. It is derived on
// demand and never stored.
type InteractionSignal struct {
	Collections map[string]float64
	Tags        map[string]float64
	PriceBand   *PriceBand
}

// IsZero reports whether the signal carries no affinity at all.
func (s InteractionSignal) IsZero() bool {
	return len(s.Collections) == 0 && len(s.Tags) == 0 && s.PriceBand == nil
}

// PersonalizationStatus tags the outcome of a personalized request.
type PersonalizationStatus string

const (
	// StatusNoHistory means the shopper has nothing to personalize from and
	// the caller should show non-personalized defaults.
	StatusNoHistory PersonalizationStatus = "no_history"
	// StatusMatched means Products holds at least one recommendation.
	StatusMatched PersonalizationStatus = "matched"
	// StatusNoMatches means history exists but no candidate scored above zero.
	StatusNoMatches PersonalizationStatus = "no_matches"
)

// Personalization is the tagged result of a personalized request. Products is
// nil for StatusNoHistory and a non-nil, possibly empty slice otherwise.
type Personalization struct {
	Status   PersonalizationStatus `json:"status"`
	Products []Product             `json:"products"`
}

// NoHistory builds the cold-start outcome.
func NoHistory() Personalization {
	return Personalization{Status: StatusNoHistory}
}

// Personalized builds a matched or no-matches outcome from ranked products.
func Personalized(products []Product) Personalization {
	if len(products) == 0 {
		return Personalization{Status: StatusNoMatches, Products: []Product{}}
	}
	return Personalization{Status: StatusMatched, Products: products}
}
