// Package redis provides a read-through cache in front of a CatalogAccessor.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"github.com/utafrali/apparel-discovery/internal/domain"
	"github.com/utafrali/apparel-discovery/internal/repository"
)

const generationKey = "catalog:gen"

var cacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "discovery_catalog_cache_requests_total",
	Help: "Catalog cache lookups by kind (list, product) and result (hit, miss, error).",
}, []string{"kind", "result"})

// CachedCatalog caches listings and single products. Every key embeds the
// current generation, so Invalidate drops the whole cache with one INCR and
// stale entries simply expire.
type CachedCatalog struct {
	next   repository.CatalogAccessor
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedCatalog wraps next with a cache held in client.
func NewCachedCatalog(next repository.CatalogAccessor, client *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedCatalog {
	return &CachedCatalog{next: next, client: client, ttl: ttl, logger: logger}
}

// ListProducts serves the listing from cache or loads and stores it.
func (c *CachedCatalog) ListProducts(ctx context.Context, filter repository.ProductFilter) ([]domain.Product, error) {
	key, ok := c.key(ctx, "list:"+filter.CacheKey())
	if ok {
		var products []domain.Product
		if c.load(ctx, "list", key, &products) {
			return products, nil
		}
	}

	products, err := c.next.ListProducts(ctx, filter)
	if err != nil {
		return nil, err
	}
	if ok {
		c.store(ctx, key, products)
	}
	return products, nil
}

// GetProduct serves a product from cache or loads and stores it. Misses in the
// underlying catalog are not cached.
func (c *CachedCatalog) GetProduct(ctx context.Context, slug string) (*domain.Product, error) {
	key, ok := c.key(ctx, "product:"+slug)
	if ok {
		var p domain.Product
		if c.load(ctx, "product", key, &p) {
			return &p, nil
		}
	}

	p, err := c.next.GetProduct(ctx, slug)
	if err != nil {
		return nil, err
	}
	if ok {
		c.store(ctx, key, p)
	}
	return p, nil
}

// Invalidate bumps the generation so every cached entry becomes unreachable.
func (c *CachedCatalog) Invalidate(ctx context.Context) error {
	if err := c.client.Incr(ctx, generationKey).Err(); err != nil {
		return fmt.Errorf("redis incr catalog generation: %w", err)
	}
	return nil
}

// Ping checks the cache connection.
func (c *CachedCatalog) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// key builds a generation-scoped key. ok is false when Redis is unreachable,
// in which case the cache is bypassed.
func (c *CachedCatalog) key(ctx context.Context, suffix string) (string, bool) {
	gen, err := c.client.Get(ctx, generationKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		c.logger.WarnContext(ctx, "catalog cache unavailable, bypassing",
			slog.String("error", err.Error()),
		)
		return "", false
	}
	return fmt.Sprintf("catalog:v%d:%s", gen, suffix), true
}

func (c *CachedCatalog) load(ctx context.Context, kind, key string, out any) bool {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			cacheRequests.WithLabelValues(kind, "miss").Inc()
		} else {
			cacheRequests.WithLabelValues(kind, "error").Inc()
			c.logger.WarnContext(ctx, "catalog cache read failed",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
		return false
	}

	if err := json.Unmarshal(data, out); err != nil {
		cacheRequests.WithLabelValues(kind, "error").Inc()
		c.logger.WarnContext(ctx, "catalog cache entry corrupt",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return false
	}

	cacheRequests.WithLabelValues(kind, "hit").Inc()
	return true
}

func (c *CachedCatalog) store(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		c.logger.WarnContext(ctx, "marshal catalog cache entry", slog.String("error", err.Error()))
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "catalog cache write failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}
