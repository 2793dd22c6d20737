package domain

import "time"

// Product is the read-only catalog record scored by search and recommendations.
// Slug is its identity everywhere: cart lines, wishlists, reviews and orders.
type Product struct {
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Price       int64     `json:"price"`
	Collection  string    `json:"collection"`
	Images      []string  `json:"images"`
	InStock     bool      `json:"in_stock"`
	Sizes       []string  `json:"sizes"`
	Colors      []string  `json:"colors"`
	Tags        []string  `json:"tags"`
	Fabric      string    `json:"fabric,omitempty"`
	Care        string    `json:"care,omitempty"`
	Shipping    string    `json:"shipping,omitempty"`
	Featured    bool      `json:"featured"`
	Popularity  int64     `json:"popularity"`
	CreatedAt   time.Time `json:"created_at"`
}

// Field names reported in SearchResult.MatchedIn.
const (
	FieldTitle       = "title"
	FieldTags        = "tags"
	FieldCollection  = "collection"
	FieldColors      = "colors"
	FieldSizes       = "sizes"
	FieldDescription = "description"
	FieldFabric      = "fabric"
	FieldCare        = "care"
	FieldShipping    = "shipping"
)

// IndexBySlug maps each slug to its product. Later duplicates win.
func IndexBySlug(products []Product) map[string]*Product {
	idx := make(map[string]*Product, len(products))
	for i := range products {
		idx[products[i].Slug] = &products[i]
	}
	return idx
}
