// Package elasticsearch reads the catalog from a product index.
package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/utafrali/apparel-discovery/internal/domain"
	"github.com/utafrali/apparel-discovery/internal/repository"
	apperrors "github.com/utafrali/apparel-discovery/pkg/errors"
)

// DefaultIndexName is used when no index name is configured.
const DefaultIndexName = "apparel_products"

// listPageSize is the number of hits fetched per search_after page.
const listPageSize = 1000

// Catalog is an Elasticsearch-backed CatalogAccessor. Documents are keyed by
// slug and their _source is the product JSON.
type Catalog struct {
	client    *elasticsearch.Client
	indexName string
	logger    *slog.Logger
}

type esSearchResponse struct {
	Hits struct {
		Hits []struct {
			Source domain.Product    `json:"_source"`
			Sort   []json.RawMessage `json:"sort"`
		} `json:"hits"`
	} `json:"hits"`
}

type esGetResponse struct {
	Found  bool           `json:"found"`
	Source domain.Product `json:"_source"`
}

type esErrorResponse struct {
	Error struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
}

// New connects to url and makes sure the index exists.
func New(url, indexName string, logger *slog.Logger) (*Catalog, error) {
	if indexName == "" {
		indexName = DefaultIndexName
	}

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{url}})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}

	c := &Catalog{client: client, indexName: indexName, logger: logger}
	if err := c.ensureIndex(context.Background()); err != nil {
		return nil, fmt.Errorf("ensure index %s: %w", indexName, err)
	}
	return c, nil
}

// Ping checks whether the cluster is reachable.
func (c *Catalog) Ping(ctx context.Context) error {
	res, err := c.client.Ping(c.client.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elasticsearch ping: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping: unexpected status %s", res.Status())
	}
	return nil
}

func (c *Catalog) ensureIndex(ctx context.Context) error {
	res, err := c.client.Indices.Exists([]string{c.indexName}, c.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("check index exists: %w", err)
	}
	_ = res.Body.Close()

	if res.StatusCode == http.StatusOK {
		return nil
	}

	res, err = c.client.Indices.Create(
		c.indexName,
		c.client.Indices.Create.WithBody(strings.NewReader(indexMapping)),
		c.client.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return responseError("create index", res)
	}

	c.logger.Info("elasticsearch index created", slog.String("index", c.indexName))
	return nil
}

// ListProducts runs the filter as term queries and returns every hit in
// catalog order, paging with search_after on (created_at, slug).
func (c *Catalog) ListProducts(ctx context.Context, filter repository.ProductFilter) ([]domain.Product, error) {
	products := []domain.Product{}
	var after []json.RawMessage
	for {
		page, last, err := c.listPage(ctx, filter, after)
		if err != nil {
			return nil, err
		}
		products = append(products, page...)
		if len(page) < listPageSize || last == nil {
			return products, nil
		}
		after = last
	}
}

// listPage fetches one page and returns the sort values of its last hit.
func (c *Catalog) listPage(ctx context.Context, filter repository.ProductFilter, after []json.RawMessage) ([]domain.Product, []json.RawMessage, error) {
	data, err := json.Marshal(buildListQuery(filter, after))
	if err != nil {
		return nil, nil, fmt.Errorf("marshal list query: %w", err)
	}

	res, err := c.client.Search(
		c.client.Search.WithIndex(c.indexName),
		c.client.Search.WithBody(bytes.NewReader(data)),
		c.client.Search.WithContext(ctx),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("elasticsearch list products: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return nil, nil, responseError("elasticsearch list products", res)
	}

	var esResp esSearchResponse
	if err := json.NewDecoder(res.Body).Decode(&esResp); err != nil {
		return nil, nil, fmt.Errorf("decode list response: %w", err)
	}

	hits := esResp.Hits.Hits
	products := make([]domain.Product, 0, len(hits))
	for _, hit := range hits {
		products = append(products, hit.Source)
	}
	if len(hits) == 0 {
		return products, nil, nil
	}
	return products, hits[len(hits)-1].Sort, nil
}

// GetProduct fetches the document whose ID is slug.
func (c *Catalog) GetProduct(ctx context.Context, slug string) (*domain.Product, error) {
	res, err := c.client.Get(c.indexName, slug, c.client.Get.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("elasticsearch get product: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode == http.StatusNotFound {
		return nil, apperrors.NotFound("product", slug)
	}
	if res.IsError() {
		return nil, responseError("elasticsearch get product", res)
	}

	var esResp esGetResponse
	if err := json.NewDecoder(res.Body).Decode(&esResp); err != nil {
		return nil, fmt.Errorf("decode get response: %w", err)
	}
	if !esResp.Found {
		return nil, apperrors.NotFound("product", slug)
	}
	return &esResp.Source, nil
}

// Upsert indexes p under its slug.
func (c *Catalog) Upsert(ctx context.Context, p domain.Product) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal product: %w", err)
	}

	res, err := c.client.Index(
		c.indexName,
		bytes.NewReader(data),
		c.client.Index.WithDocumentID(p.Slug),
		c.client.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch index product: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return responseError("elasticsearch index product", res)
	}
	return nil
}

// Delete removes the document for slug. A missing document is not an error.
func (c *Catalog) Delete(ctx context.Context, slug string) error {
	res, err := c.client.Delete(c.indexName, slug, c.client.Delete.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elasticsearch delete product: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return responseError("elasticsearch delete product", res)
	}
	return nil
}

func buildListQuery(f repository.ProductFilter, after []json.RawMessage) map[string]any {
	var filters []any
	term := func(field string, value any) {
		filters = append(filters, map[string]any{"term": map[string]any{field: value}})
	}

	if f.Collection != "" {
		term("collection", f.Collection)
	}
	if f.Color != "" {
		term("colors", f.Color)
	}
	if f.Size != "" {
		term("sizes", f.Size)
	}
	if f.InStock != nil {
		term("in_stock", *f.InStock)
	}
	if f.Featured != nil {
		term("featured", *f.Featured)
	}

	query := map[string]any{"match_all": map[string]any{}}
	if len(filters) > 0 {
		query = map[string]any{"bool": map[string]any{"filter": filters}}
	}

	body := map[string]any{
		"query":            query,
		"size":             listPageSize,
		"track_total_hits": false,
		"sort": []any{
			map[string]any{"created_at": map[string]any{"order": "asc"}},
			map[string]any{"slug": map[string]any{"order": "asc"}},
		},
	}
	if len(after) > 0 {
		body["search_after"] = after
	}
	return body
}

func responseError(op string, res *esapi.Response) error {
	body, _ := io.ReadAll(res.Body)
	var errResp esErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Type != "" {
		return fmt.Errorf("%s: %s: %s", op, errResp.Error.Type, errResp.Error.Reason)
	}
	return fmt.Errorf("%s: unexpected status %s", op, res.Status())
}
