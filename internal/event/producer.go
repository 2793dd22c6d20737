package event

import (
	"context"
	"fmt"
	"log/slog"

	pkgkafka "github.com/utafrali/apparel-discovery/pkg/kafka"
	"github.com/utafrali/apparel-discovery/pkg/logger"
)

// Kafka topics for search analytics events.
var (
	TopicSearchPerformed = pkgkafka.Topic("search", "performed")
	TopicSearchClicked   = pkgkafka.Topic("search", "clicked")
)

// AggregateTypeSearch is the aggregate type of search analytics events.
const AggregateTypeSearch = "search"

// SourceDiscoveryService identifies events emitted by this service.
const SourceDiscoveryService = "discovery-service"

// SearchPerformedData is the payload of a search.performed event.
type SearchPerformedData struct {
	SearchID    string `json:"search_id"`
	Query       string `json:"query"`
	ResultCount int    `json:"result_count"`
	UserID      string `json:"user_id,omitempty"`
}

// SearchClickedData is the payload of a search.clicked event.
type SearchClickedData struct {
	SearchID string `json:"search_id"`
	Slug     string `json:"slug"`
	UserID   string `json:"user_id,omitempty"`
}

// EventPublisher is the subset of *pkgkafka.Producer used here.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes search analytics events.
type Producer struct {
	kafka  EventPublisher
	logger *slog.Logger
}

// NewProducer creates a search analytics producer.
func NewProducer(kafka EventPublisher, logger *slog.Logger) *Producer {
	return &Producer{kafka: kafka, logger: logger}
}

// PublishSearchPerformed publishes a search.performed event.
func (p *Producer) PublishSearchPerformed(ctx context.Context, data SearchPerformedData) error {
	return p.publish(ctx, TopicSearchPerformed, data.SearchID, data)
}

// PublishSearchClicked publishes a search.clicked event.
func (p *Producer) PublishSearchClicked(ctx context.Context, data SearchClickedData) error {
	return p.publish(ctx, TopicSearchClicked, data.SearchID, data)
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID string, data any) error {
	event, err := pkgkafka.NewEvent(topic, aggregateID, AggregateTypeSearch, SourceDiscoveryService, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		event.WithCorrelationID(id)
	}

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}
	return nil
}
