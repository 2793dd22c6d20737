package event

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/apparel-discovery/internal/domain"
	"github.com/utafrali/apparel-discovery/internal/repository"
	"github.com/utafrali/apparel-discovery/internal/repository/memory"
	pkgkafka "github.com/utafrali/apparel-discovery/pkg/kafka"
	"github.com/utafrali/apparel-discovery/pkg/logger"
)

// --- Mocks ---

type mockInvalidator struct {
	mock.Mock
}

func (m *mockInvalidator) Invalidate(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, topic string, event *pkgkafka.Event) error {
	args := m.Called(ctx, topic, event)
	return args.Error(0)
}

// --- Helpers ---

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEvent(eventType string, data any) *pkgkafka.Event {
	dataBytes, _ := json.Marshal(data)
	return &pkgkafka.Event{
		EventID:       "evt-test-123",
		EventType:     eventType,
		AggregateID:   "agg-test-456",
		AggregateType: "product",
		Version:       1,
		Timestamp:     time.Now().UTC(),
		Source:        "product-service",
		Data:          dataBytes,
	}
}

// --- Consumer ---

func TestConsumer_ProductCreated_UpsertsAndInvalidates(t *testing.T) {
	catalog := memory.NewCatalog()
	cache := new(mockInvalidator)
	cache.On("Invalidate", mock.Anything).Return(nil).Once()
	c := NewConsumer(cache, catalog, newTestLogger())

	err := c.Handle(context.Background(), newTestEvent(TopicProductCreated, domain.Product{
		Title: "Lunar Phase Hoodie",
		Price: 11900,
	}))
	require.NoError(t, err)

	p, err := catalog.GetProduct(context.Background(), "lunar-phase-hoodie")
	require.NoError(t, err)
	assert.Equal(t, int64(11900), p.Price)
	cache.AssertExpectations(t)
}

func TestConsumer_ProductUpdated_ReplacesProduct(t *testing.T) {
	catalog := memory.NewCatalog(domain.Product{Slug: "core-tee", Title: "Core Tee", Price: 2900})
	c := NewConsumer(nil, catalog, newTestLogger())

	err := c.Handle(context.Background(), newTestEvent(TopicProductUpdated, domain.Product{
		Slug:  "core-tee",
		Title: "Core Tee",
		Price: 2500,
	}))
	require.NoError(t, err)

	products, err := catalog.ListProducts(context.Background(), repository.ProductFilter{})
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, int64(2500), products[0].Price)
}

func TestConsumer_ProductDeleted(t *testing.T) {
	catalog := memory.NewCatalog(domain.Product{Slug: "core-tee"})
	cache := new(mockInvalidator)
	cache.On("Invalidate", mock.Anything).Return(nil).Once()
	c := NewConsumer(cache, catalog, newTestLogger())

	require.NoError(t, c.Handle(context.Background(), newTestEvent(TopicProductDeleted, ProductDeletedData{Slug: "core-tee"})))

	products, _ := catalog.ListProducts(context.Background(), repository.ProductFilter{})
	assert.Empty(t, products)
	cache.AssertExpectations(t)
}

func TestConsumer_ProductDeleted_MissingSlug(t *testing.T) {
	c := NewConsumer(nil, nil, newTestLogger())
	err := c.Handle(context.Background(), newTestEvent(TopicProductDeleted, map[string]string{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has no slug")
}

func TestConsumer_InvalidateFailureIsReturned(t *testing.T) {
	cache := new(mockInvalidator)
	cache.On("Invalidate", mock.Anything).Return(errors.New("redis down"))
	c := NewConsumer(cache, nil, newTestLogger())

	err := c.Handle(context.Background(), newTestEvent(TopicProductUpdated, domain.Product{Slug: "core-tee"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalidate catalog cache")
}

func TestConsumer_InvalidSlugIsSkipped(t *testing.T) {
	cache := new(mockInvalidator)
	c := NewConsumer(cache, nil, newTestLogger())

	err := c.Handle(context.Background(), newTestEvent(TopicProductCreated, domain.Product{Slug: "Bad Slug"}))
	assert.NoError(t, err)
	cache.AssertNotCalled(t, "Invalidate", mock.Anything)
}

func TestConsumer_MalformedPayload(t *testing.T) {
	c := NewConsumer(nil, nil, newTestLogger())
	event := newTestEvent(TopicProductCreated, nil)
	event.Data = json.RawMessage(`{"slug":`)

	assert.Error(t, c.Handle(context.Background(), event))
}

func TestConsumer_UnknownEventIgnored(t *testing.T) {
	c := NewConsumer(nil, nil, newTestLogger())
	assert.NoError(t, c.Handle(context.Background(), newTestEvent("ecommerce.order.created", nil)))
}

func TestProductTopics(t *testing.T) {
	assert.Equal(t, []string{
		"ecommerce.product.created",
		"ecommerce.product.updated",
		"ecommerce.product.deleted",
	}, ProductTopics())
}

// --- Producer ---

func TestProducer_PublishSearchPerformed(t *testing.T) {
	pub := new(mockPublisher)
	pub.On("Publish", mock.Anything, "ecommerce.search.performed", mock.MatchedBy(func(e *pkgkafka.Event) bool {
		var data SearchPerformedData
		if err := e.UnmarshalData(&data); err != nil {
			return false
		}
		return e.AggregateID == "search-1" &&
			e.AggregateType == AggregateTypeSearch &&
			e.CorrelationID == "corr-1" &&
			data.ResultCount == 2
	})).Return(nil)
	p := NewProducer(pub, newTestLogger())

	ctx := logger.WithCorrelationID(context.Background(), "corr-1")
	err := p.PublishSearchPerformed(ctx, SearchPerformedData{SearchID: "search-1", Query: "hoodie", ResultCount: 2})
	require.NoError(t, err)
	pub.AssertExpectations(t)
}

func TestProducer_PublishSearchClicked_Error(t *testing.T) {
	pub := new(mockPublisher)
	pub.On("Publish", mock.Anything, "ecommerce.search.clicked", mock.Anything).Return(errors.New("broker down"))
	p := NewProducer(pub, newTestLogger())

	err := p.PublishSearchClicked(context.Background(), SearchClickedData{SearchID: "s", Slug: "core-tee"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
}
