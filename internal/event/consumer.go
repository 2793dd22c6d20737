// Package event connects the discovery service to the storefront event bus.
package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/utafrali/apparel-discovery/internal/domain"
	pkgkafka "github.com/utafrali/apparel-discovery/pkg/kafka"
	"github.com/utafrali/apparel-discovery/pkg/slug"
)

// Kafka topics for product events consumed by the discovery service.
var (
	TopicProductCreated = pkgkafka.Topic("product", "created")
	TopicProductUpdated = pkgkafka.Topic("product", "updated")
	TopicProductDeleted = pkgkafka.Topic("product", "deleted")
)

// ProductTopics lists every topic the consumer handles.
func ProductTopics() []string {
	return []string{TopicProductCreated, TopicProductUpdated, TopicProductDeleted}
}

// ProductDeletedData is the payload of a product.deleted event.
type ProductDeletedData struct {
	Slug string `json:"slug"`
}

// CacheInvalidator drops cached catalog reads.
type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

// CatalogWriter mirrors product changes into a catalog the service owns,
// such as the in-memory catalog or the search index.
type CatalogWriter interface {
	Upsert(ctx context.Context, p domain.Product) error
	Delete(ctx context.Context, slug string) error
}

// Consumer applies product events to the local catalog view. Both
// collaborators are optional.
type Consumer struct {
	cache  CacheInvalidator
	writer CatalogWriter
	logger *slog.Logger
}

// NewConsumer creates a product event consumer.
func NewConsumer(cache CacheInvalidator, writer CatalogWriter, logger *slog.Logger) *Consumer {
	return &Consumer{cache: cache, writer: writer, logger: logger}
}

// Handle processes a Kafka event based on its type.
func (c *Consumer) Handle(ctx context.Context, event *pkgkafka.Event) error {
	switch event.EventType {
	case TopicProductCreated, TopicProductUpdated:
		return c.handleProductChanged(ctx, event)
	case TopicProductDeleted:
		return c.handleProductDeleted(ctx, event)
	default:
		c.logger.WarnContext(ctx, "unknown event type received",
			slog.String("event_type", event.EventType),
			slog.String("event_id", event.EventID),
		)
		return nil
	}
}

func (c *Consumer) handleProductChanged(ctx context.Context, event *pkgkafka.Event) error {
	var p domain.Product
	if err := json.Unmarshal(event.Data, &p); err != nil {
		return fmt.Errorf("unmarshal %s data: %w", event.EventType, err)
	}
	if p.Slug == "" {
		p.Slug = slug.Generate(p.Title)
	}
	if !slug.Valid(p.Slug) {
		c.logger.WarnContext(ctx, "skipping product event with invalid slug",
			slog.String("event_id", event.EventID),
			slog.String("slug", p.Slug),
		)
		return nil
	}

	if c.writer != nil {
		if err := c.writer.Upsert(ctx, p); err != nil {
			return fmt.Errorf("upsert product %s: %w", p.Slug, err)
		}
	}
	if err := c.invalidate(ctx); err != nil {
		return err
	}

	c.logger.InfoContext(ctx, "applied product change",
		slog.String("event_type", event.EventType),
		slog.String("slug", p.Slug),
	)
	return nil
}

func (c *Consumer) handleProductDeleted(ctx context.Context, event *pkgkafka.Event) error {
	var data ProductDeletedData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return fmt.Errorf("unmarshal product.deleted data: %w", err)
	}
	if data.Slug == "" {
		return fmt.Errorf("product.deleted event %s has no slug", event.EventID)
	}

	if c.writer != nil {
		if err := c.writer.Delete(ctx, data.Slug); err != nil {
			return fmt.Errorf("delete product %s: %w", data.Slug, err)
		}
	}
	if err := c.invalidate(ctx); err != nil {
		return err
	}

	c.logger.InfoContext(ctx, "applied product deletion", slog.String("slug", data.Slug))
	return nil
}

func (c *Consumer) invalidate(ctx context.Context) error {
	if c.cache == nil {
		return nil
	}
	if err := c.cache.Invalidate(ctx); err != nil {
		return fmt.Errorf("invalidate catalog cache: %w", err)
	}
	return nil
}
