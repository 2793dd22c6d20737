// Package service orchestrates the catalog collaborators and the scoring
// engines behind the discovery API.
package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/utafrali/apparel-discovery/internal/domain"
	"github.com/utafrali/apparel-discovery/internal/event"
	"github.com/utafrali/apparel-discovery/internal/recommend"
	"github.com/utafrali/apparel-discovery/internal/repository"
	"github.com/utafrali/apparel-discovery/internal/search"
	apperrors "github.com/utafrali/apparel-discovery/pkg/errors"
	"github.com/utafrali/apparel-discovery/pkg/pagination"
	"github.com/utafrali/apparel-discovery/pkg/slug"
)

const tracerName = "github.com/utafrali/apparel-discovery/internal/service"

// Collaborator names used in 503 messages and metrics.
const (
	collabCatalog   = "catalog"
	collabHistory   = "interaction history"
	collabSearchLog = "search history"
)

// SearchPublisher emits search analytics events.
type SearchPublisher interface {
	PublishSearchPerformed(ctx context.Context, data event.SearchPerformedData) error
	PublishSearchClicked(ctx context.Context, data event.SearchClickedData) error
}

// DiscoveryService implements search, suggestions, click tracking and
// recommendations on top of injected collaborators.
type DiscoveryService struct {
	catalog   repository.CatalogAccessor
	history   repository.InteractionHistoryAccessor
	searchLog repository.SearchHistorySink
	events    SearchPublisher
	search    *search.Engine
	recommend *recommend.Engine
	logger    *slog.Logger
	tracer    trace.Tracer
}

// NewDiscoveryService creates a DiscoveryService. events may be nil.
func NewDiscoveryService(
	catalog repository.CatalogAccessor,
	history repository.InteractionHistoryAccessor,
	searchLog repository.SearchHistorySink,
	events SearchPublisher,
	searchEngine *search.Engine,
	recommendEngine *recommend.Engine,
	logger *slog.Logger,
) *DiscoveryService {
	return &DiscoveryService{
		catalog:   catalog,
		history:   history,
		searchLog: searchLog,
		events:    events,
		search:    searchEngine,
		recommend: recommendEngine,
		logger:    logger,
		tracer:    otel.Tracer(tracerName),
	}
}

// SearchInput holds the parameters of one search request.
type SearchInput struct {
	Query      string
	Sort       string
	Collection string
	Color      string
	Size       string
	InStock    *bool
	Page       int
	PerPage    int
	UserID     string
}

// SearchOutput is one page of ranked results. SearchID is empty when the
// search could not be recorded.
type SearchOutput struct {
	SearchID string                                 `json:"search_id,omitempty"`
	Query    string                                 `json:"query"`
	Sort     string                                 `json:"sort"`
	Results  pagination.Result[domain.SearchResult] `json:"results"`
}

// Search scores the filtered catalog against the query, sorts and paginates
// the matches, and records the search for analytics.
func (s *DiscoveryService) Search(ctx context.Context, in SearchInput) (out *SearchOutput, err error) {
	ctx, span := s.tracer.Start(ctx, "DiscoveryService.Search",
		trace.WithAttributes(attribute.String("search.query", in.Query)))
	defer func() { endSpan(span, err) }()
	start := time.Now()

	if strings.TrimSpace(in.Query) == "" {
		return nil, apperrors.InvalidInput("query is required")
	}
	if !domain.IsValidSort(in.Sort) {
		return nil, apperrors.InvalidInput("sort must be one of " + strings.Join(domain.ValidSortOptions(), ", "))
	}
	if in.Sort == "" {
		in.Sort = domain.SortRelevance
	}

	products, err := s.catalog.ListProducts(ctx, repository.ProductFilter{
		Collection: in.Collection,
		Color:      in.Color,
		Size:       in.Size,
		InStock:    in.InStock,
	})
	if err != nil {
		return nil, s.unavailable(ctx, collabCatalog, err)
	}

	results, err := s.search.Search(products, in.Query)
	if err != nil {
		return nil, err
	}
	search.SortResults(results, in.Sort)

	outcome := "matched"
	if len(results) == 0 {
		outcome = "zero_results"
	}
	searchesTotal.WithLabelValues(outcome).Inc()
	searchDuration.Observe(time.Since(start).Seconds())
	span.SetAttributes(attribute.Int("search.result_count", len(results)))

	searchID := s.recordSearch(ctx, in, len(results))

	return &SearchOutput{
		SearchID: searchID,
		Query:    in.Query,
		Sort:     in.Sort,
		Results:  pagination.Paginate(results, pagination.Params{Page: in.Page, PerPage: in.PerPage}),
	}, nil
}

// recordSearch stores the search and publishes it. Failures are logged only;
// analytics never fail a search.
func (s *DiscoveryService) recordSearch(ctx context.Context, in SearchInput, resultCount int) string {
	id, err := s.searchLog.RecordSearch(ctx, in.Query, resultCount, in.UserID)
	if err != nil {
		collaboratorFailures.WithLabelValues(collabSearchLog).Inc()
		s.logger.WarnContext(ctx, "failed to record search",
			slog.String("query", in.Query),
			slog.String("error", err.Error()),
		)
		return ""
	}

	if s.events != nil {
		if err := s.events.PublishSearchPerformed(ctx, event.SearchPerformedData{
			SearchID:    id,
			Query:       in.Query,
			ResultCount: resultCount,
			UserID:      in.UserID,
		}); err != nil {
			s.logger.WarnContext(ctx, "failed to publish search.performed event",
				slog.String("search_id", id),
				slog.String("error", err.Error()),
			)
		}
	}
	return id
}

// Suggest returns autocomplete suggestions for a partial query. A blank
// partial yields an empty list without touching the catalog.
func (s *DiscoveryService) Suggest(ctx context.Context, partial string) (suggestions []string, err error) {
	ctx, span := s.tracer.Start(ctx, "DiscoveryService.Suggest")
	defer func() { endSpan(span, err) }()

	if strings.TrimSpace(partial) == "" {
		return []string{}, nil
	}

	products, err := s.catalog.ListProducts(ctx, repository.ProductFilter{})
	if err != nil {
		return nil, s.unavailable(ctx, collabCatalog, err)
	}
	return s.search.Suggestions(products, partial), nil
}

// ClickInput identifies the clicked product and the search it came from.
// When SearchID is empty the most recent unclicked search with the same query
// text by the same user is used.
type ClickInput struct {
	SearchID string `json:"search_id" validate:"omitempty,uuid"`
	Query    string `json:"query" validate:"required_without=SearchID,max=200"`
	Slug     string `json:"slug" validate:"required,max=200"`
	UserID   string `json:"-"`
}

// RecordClick attaches the clicked slug to a search record and returns the
// record ID. Each record accepts one click.
func (s *DiscoveryService) RecordClick(ctx context.Context, in ClickInput) (searchID string, err error) {
	ctx, span := s.tracer.Start(ctx, "DiscoveryService.RecordClick")
	defer func() { endSpan(span, err) }()

	if !slug.Valid(in.Slug) {
		return "", apperrors.InvalidInput("slug is malformed")
	}
	if in.SearchID == "" && strings.TrimSpace(in.Query) == "" {
		return "", apperrors.InvalidInput("search_id or query is required")
	}

	attribution := "search_id"
	searchID = in.SearchID
	if searchID == "" {
		attribution = "latest_unclicked"
		searchID, err = s.searchLog.LatestUnclicked(ctx, in.Query, in.UserID)
		if err != nil {
			return "", s.unavailable(ctx, collabSearchLog, err)
		}
	}

	if err := s.searchLog.RecordClick(ctx, searchID, in.Slug); err != nil {
		return "", s.unavailable(ctx, collabSearchLog, err)
	}
	searchClicksTotal.WithLabelValues(attribution).Inc()

	if s.events != nil {
		if err := s.events.PublishSearchClicked(ctx, event.SearchClickedData{
			SearchID: searchID,
			Slug:     in.Slug,
			UserID:   in.UserID,
		}); err != nil {
			s.logger.WarnContext(ctx, "failed to publish search.clicked event",
				slog.String("search_id", searchID),
				slog.String("error", err.Error()),
			)
		}
	}
	return searchID, nil
}

// Related returns up to limit products similar to the anchor slug. The anchor
// and the candidate catalog are fetched concurrently.
func (s *DiscoveryService) Related(ctx context.Context, anchorSlug string, limit int) (products []domain.Product, err error) {
	ctx, span := s.tracer.Start(ctx, "DiscoveryService.Related",
		trace.WithAttributes(attribute.String("product.slug", anchorSlug)))
	defer func() { endSpan(span, err) }()

	if limit < 0 {
		return nil, apperrors.InvalidInput("limit must not be negative")
	}

	var (
		anchor  *domain.Product
		catalog []domain.Product
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := s.catalog.GetProduct(gctx, anchorSlug)
		if err != nil {
			return s.unavailable(gctx, collabCatalog, err)
		}
		anchor = p
		return nil
	})
	g.Go(func() error {
		list, err := s.catalog.ListProducts(gctx, repository.ProductFilter{})
		if err != nil {
			return s.unavailable(gctx, collabCatalog, err)
		}
		catalog = list
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// The listing may predate the anchor lookup; the anchor row wins.
	candidates := make([]domain.Product, 0, len(catalog)+1)
	candidates = append(candidates, *anchor)
	for _, p := range catalog {
		if p.Slug != anchor.Slug {
			candidates = append(candidates, p)
		}
	}

	return s.recommend.RelatedTo(candidates, domain.RecommendationContext{
		AnchorSlug: anchor.Slug,
		Limit:      limit,
	})
}

// Personalized ranks products by the user's interaction history. Catalog,
// orders, wishlist and reviews are fetched concurrently. A user without any
// history gets StatusNoHistory, which callers must treat differently from an
// empty match list.
func (s *DiscoveryService) Personalized(ctx context.Context, userID string, limit int) (result domain.Personalization, err error) {
	ctx, span := s.tracer.Start(ctx, "DiscoveryService.Personalized")
	defer func() { endSpan(span, err) }()

	if limit < 0 {
		return domain.Personalization{}, apperrors.InvalidInput("limit must not be negative")
	}
	if userID == "" {
		personalizationTotal.WithLabelValues(string(domain.StatusNoHistory)).Inc()
		return domain.NoHistory(), nil
	}

	var (
		products []domain.Product
		history  domain.InteractionHistory
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		list, err := s.catalog.ListProducts(gctx, repository.ProductFilter{})
		if err != nil {
			return s.unavailable(gctx, collabCatalog, err)
		}
		products = list
		return nil
	})
	g.Go(func() error {
		orders, err := s.history.OrdersFor(gctx, userID)
		if err != nil {
			return s.unavailable(gctx, collabHistory, err)
		}
		history.Orders = orders
		return nil
	})
	g.Go(func() error {
		wishlist, err := s.history.WishlistFor(gctx, userID)
		if err != nil {
			return s.unavailable(gctx, collabHistory, err)
		}
		history.Wishlist = wishlist
		return nil
	})
	g.Go(func() error {
		reviews, err := s.history.ReviewsFor(gctx, userID)
		if err != nil {
			return s.unavailable(gctx, collabHistory, err)
		}
		history.Reviews = reviews
		return nil
	})
	if err := g.Wait(); err != nil {
		return domain.Personalization{}, err
	}

	result = s.recommend.PersonalizedFor(products, history, domain.RecommendationContext{
		UserID: userID,
		Limit:  limit,
	})
	personalizationTotal.WithLabelValues(string(result.Status)).Inc()
	span.SetAttributes(attribute.String("personalization.status", string(result.Status)))
	return result, nil
}

// Featured returns up to limit featured in-stock products.
func (s *DiscoveryService) Featured(ctx context.Context, limit int) (products []domain.Product, err error) {
	ctx, span := s.tracer.Start(ctx, "DiscoveryService.Featured")
	defer func() { endSpan(span, err) }()

	if limit < 0 {
		return nil, apperrors.InvalidInput("limit must not be negative")
	}

	featured, inStock := true, true
	list, err := s.catalog.ListProducts(ctx, repository.ProductFilter{Featured: &featured, InStock: &inStock})
	if err != nil {
		return nil, s.unavailable(ctx, collabCatalog, err)
	}
	return s.recommend.Featured(list, limit), nil
}

// Recommendations is the home-page recommendation block.
type Recommendations struct {
	Personalized bool                         `json:"personalized"`
	Status       domain.PersonalizationStatus `json:"status"`
	Products     []domain.Product             `json:"products"`
}

// Recommend returns personalized products, or featured products flagged as
// not personalized when the user has no history.
func (s *DiscoveryService) Recommend(ctx context.Context, userID string, limit int) (*Recommendations, error) {
	result, err := s.Personalized(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	if result.Status != domain.StatusNoHistory {
		return &Recommendations{Personalized: true, Status: result.Status, Products: result.Products}, nil
	}

	featured, err := s.Featured(ctx, limit)
	if err != nil {
		return nil, err
	}
	return &Recommendations{Personalized: false, Status: result.Status, Products: featured}, nil
}

// unavailable passes AppErrors through and hides anything else behind a 503.
// A call that failed because its fan-out was already cancelled is not counted
// or logged; the sibling error that cancelled it is the one returned.
func (s *DiscoveryService) unavailable(ctx context.Context, collaborator string, err error) error {
	if apperrors.IsAppError(err) {
		return err
	}
	if ctx.Err() != nil {
		return apperrors.CollaboratorUnavailable(collaborator, err)
	}
	collaboratorFailures.WithLabelValues(collaborator).Inc()
	s.logger.ErrorContext(ctx, "collaborator call failed",
		slog.String("collaborator", collaborator),
		slog.String("error", err.Error()),
	)
	return apperrors.CollaboratorUnavailable(collaborator, err)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
