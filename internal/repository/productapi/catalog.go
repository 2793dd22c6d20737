// Package productapi reads the catalog from the product service REST API.
package productapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/utafrali/apparel-discovery/internal/domain"
	"github.com/utafrali/apparel-discovery/internal/repository"
	apperrors "github.com/utafrali/apparel-discovery/pkg/errors"
	"github.com/utafrali/apparel-discovery/pkg/httpclient"
)

const (
	upstream = "product-service"
	// pageSize is the largest per_page the product service accepts.
	pageSize = 100
	// maxPages bounds the listing walk against an upstream that never ends.
	maxPages = 10000
)

// HTTPDoer executes HTTP requests. Both httpclient.Client and
// httpclient.CircuitBreakerClient satisfy it.
type HTTPDoer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Catalog is a CatalogAccessor backed by the product service.
type Catalog struct {
	client  HTTPDoer
	baseURL string
}

type listResponse struct {
	Data    []domain.Product `json:"data"`
	HasNext bool             `json:"has_next"`
}

type getResponse struct {
	Data *domain.Product `json:"data"`
}

// NewCatalog creates a catalog reading from baseURL.
func NewCatalog(client HTTPDoer, baseURL string) *Catalog {
	return &Catalog{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

// ListProducts walks every page of the product listing. The product service
// ignores catalog attribute filters, so the filter is also applied in process.
func (c *Catalog) ListProducts(ctx context.Context, filter repository.ProductFilter) ([]domain.Product, error) {
	q := filterQuery(filter)
	q.Set("per_page", strconv.Itoa(pageSize))

	products := []domain.Product{}
	for page := 1; ; page++ {
		if page > maxPages {
			return nil, fmt.Errorf("list products: more than %d pages", maxPages)
		}
		q.Set("page", strconv.Itoa(page))

		var body listResponse
		if err := c.get(ctx, c.baseURL+"/api/v1/products?"+q.Encode(), &body); err != nil {
			return nil, fmt.Errorf("list products page %d: %w", page, err)
		}
		for _, p := range body.Data {
			if filter.Matches(p) {
				products = append(products, p)
			}
		}
		if !body.HasNext || len(body.Data) == 0 {
			return products, nil
		}
	}
}

// GetProduct fetches a single product by slug.
func (c *Catalog) GetProduct(ctx context.Context, slug string) (*domain.Product, error) {
	var body getResponse
	if err := c.get(ctx, c.baseURL+"/api/v1/products/"+url.PathEscape(slug), &body); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("product", slug)
		}
		return nil, fmt.Errorf("get product %s: %w", slug, err)
	}
	if body.Data == nil {
		return nil, apperrors.NotFound("product", slug)
	}
	return body.Data, nil
}

func (c *Catalog) get(ctx context.Context, target string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("call %s: %w", upstream, err)
	}

	if resp.StatusCode != http.StatusOK {
		return httpclient.ParseResponseError(resp, upstream)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", upstream, err)
	}
	return nil
}

func filterQuery(f repository.ProductFilter) url.Values {
	q := url.Values{}
	if f.Collection != "" {
		q.Set("collection", f.Collection)
	}
	if f.Color != "" {
		q.Set("color", f.Color)
	}
	if f.Size != "" {
		q.Set("size", f.Size)
	}
	if f.InStock != nil {
		q.Set("in_stock", strconv.FormatBool(*f.InStock))
	}
	if f.Featured != nil {
		q.Set("featured", strconv.FormatBool(*f.Featured))
	}
	return q
}
