// Package memory provides in-process collaborators used in memory mode and tests.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/utafrali/apparel-discovery/internal/domain"
	"github.com/utafrali/apparel-discovery/internal/repository"
	apperrors "github.com/utafrali/apparel-discovery/pkg/errors"
	"github.com/utafrali/apparel-discovery/pkg/slug"
)

// Catalog is an in-memory CatalogAccessor. Listings preserve insertion order.
type Catalog struct {
	mu       sync.RWMutex
	products []domain.Product
	bySlug   map[string]int
}

// NewCatalog creates a catalog holding products.
func NewCatalog(products ...domain.Product) *Catalog {
	c := &Catalog{bySlug: make(map[string]int)}
	for _, p := range products {
		c.put(p)
	}
	return c
}

// LoadCatalog reads a JSON array of products. Products without a slug get one
// derived from their title.
func LoadCatalog(r io.Reader) (*Catalog, error) {
	var products []domain.Product
	if err := json.NewDecoder(r).Decode(&products); err != nil {
		return nil, fmt.Errorf("decode catalog fixture: %w", err)
	}
	for i := range products {
		if products[i].Slug == "" {
			products[i].Slug = slug.Generate(products[i].Title)
		}
		if !slug.Valid(products[i].Slug) {
			return nil, fmt.Errorf("catalog fixture: invalid slug %q at index %d", products[i].Slug, i)
		}
	}
	return NewCatalog(products...), nil
}

// Upsert adds p or replaces the product with the same slug.
func (c *Catalog) Upsert(_ context.Context, p domain.Product) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.put(p)
	return nil
}

func (c *Catalog) put(p domain.Product) {
	if i, ok := c.bySlug[p.Slug]; ok {
		c.products[i] = p
		return
	}
	c.bySlug[p.Slug] = len(c.products)
	c.products = append(c.products, p)
}

// Delete removes the product with slug, if present.
func (c *Catalog) Delete(_ context.Context, slug string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i, ok := c.bySlug[slug]
	if !ok {
		return nil
	}
	c.products = append(c.products[:i], c.products[i+1:]...)
	delete(c.bySlug, slug)
	for j := i; j < len(c.products); j++ {
		c.bySlug[c.products[j].Slug] = j
	}
	return nil
}

// ListProducts returns copies of the products matching filter.
func (c *Catalog) ListProducts(_ context.Context, filter repository.ProductFilter) ([]domain.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]domain.Product, 0, len(c.products))
	for _, p := range c.products {
		if filter.Matches(p) {
			out = append(out, p)
		}
	}
	return out, nil
}

// GetProduct returns the product with slug or NotFound.
func (c *Catalog) GetProduct(_ context.Context, slug string) (*domain.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	i, ok := c.bySlug[slug]
	if !ok {
		return nil, apperrors.NotFound("product", slug)
	}
	p := c.products[i]
	return &p, nil
}
