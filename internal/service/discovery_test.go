package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/apparel-discovery/internal/domain"
	"github.com/utafrali/apparel-discovery/internal/event"
	"github.com/utafrali/apparel-discovery/internal/recommend"
	"github.com/utafrali/apparel-discovery/internal/repository"
	"github.com/utafrali/apparel-discovery/internal/repository/memory"
	"github.com/utafrali/apparel-discovery/internal/scoring"
	"github.com/utafrali/apparel-discovery/internal/search"
	apperrors "github.com/utafrali/apparel-discovery/pkg/errors"
)

// --- Mocks ---

type mockCatalog struct {
	mock.Mock
}

func (m *mockCatalog) ListProducts(ctx context.Context, filter repository.ProductFilter) ([]domain.Product, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Product), args.Error(1)
}

func (m *mockCatalog) GetProduct(ctx context.Context, slug string) (*domain.Product, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

type mockHistory struct {
	mock.Mock
}

func (m *mockHistory) OrdersFor(ctx context.Context, userID string) ([]domain.OrderLine, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]domain.OrderLine), args.Error(1)
}

func (m *mockHistory) WishlistFor(ctx context.Context, userID string) ([]string, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockHistory) ReviewsFor(ctx context.Context, userID string) ([]domain.Review, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]domain.Review), args.Error(1)
}

type mockSearchLog struct {
	mock.Mock
}

func (m *mockSearchLog) RecordSearch(ctx context.Context, query string, resultCount int, userID string) (string, error) {
	args := m.Called(ctx, query, resultCount, userID)
	return args.String(0), args.Error(1)
}

func (m *mockSearchLog) RecordClick(ctx context.Context, recordID, slug string) error {
	args := m.Called(ctx, recordID, slug)
	return args.Error(0)
}

func (m *mockSearchLog) LatestUnclicked(ctx context.Context, query, userID string) (string, error) {
	args := m.Called(ctx, query, userID)
	return args.String(0), args.Error(1)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishSearchPerformed(ctx context.Context, data event.SearchPerformedData) error {
	args := m.Called(ctx, data)
	return args.Error(0)
}

func (m *mockPublisher) PublishSearchClicked(ctx context.Context, data event.SearchClickedData) error {
	args := m.Called(ctx, data)
	return args.Error(0)
}

// --- Helpers ---

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fixtureCatalog() []domain.Product {
	return []domain.Product{
		{Slug: "classic-black-hoodie", Title: "Classic Black Hoodie", Collection: "Core", Tags: []string{"bestseller", "core"}, Price: 8900, InStock: true, Featured: true, Popularity: 90, Colors: []string{"Black"}, Sizes: []string{"S", "M", "L"}},
		{Slug: "lunar-phase-hoodie", Title: "Lunar Phase Hoodie", Collection: "Lunar", Tags: []string{"limited", "new"}, Price: 11900, InStock: true, Featured: true, Popularity: 40, Colors: []string{"Navy"}, Sizes: []string{"M", "L"}},
		{Slug: "lunar-crew", Title: "Lunar Crew", Collection: "Lunar", Tags: []string{"new"}, Price: 7900, InStock: true, Colors: []string{"Grey"}, Sizes: []string{"M"}},
		{Slug: "core-tee", Title: "Core Tee", Collection: "Core", Tags: []string{"core"}, Price: 3500, InStock: true, Colors: []string{"White"}, Sizes: []string{"XS"}},
		{Slug: "archive-hoodie", Title: "Archive Hoodie", Collection: "Archive", Tags: []string{"sale"}, Price: 5900, InStock: false, Featured: true, Popularity: 200},
	}
}

func engines(t *testing.T) (*search.Engine, *recommend.Engine) {
	t.Helper()
	scorer, err := scoring.NewScorer(scoring.DefaultWeights())
	require.NoError(t, err)
	return search.NewEngine(scorer), recommend.NewEngine(scorer, recommend.DefaultSignalWeights())
}

type fixture struct {
	svc       *DiscoveryService
	catalog   *memory.Catalog
	history   *memory.History
	searchLog *memory.SearchLog
	events    *mockPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		catalog:   memory.NewCatalog(fixtureCatalog()...),
		history:   memory.NewHistory(),
		searchLog: memory.NewSearchLog(),
		events:    new(mockPublisher),
	}
	searchEngine, recommendEngine := engines(t)
	f.svc = NewDiscoveryService(f.catalog, f.history, f.searchLog, f.events, searchEngine, recommendEngine, newTestLogger())
	return f
}

func newMockedService(t *testing.T, catalog repository.CatalogAccessor, history repository.InteractionHistoryAccessor, searchLog repository.SearchHistorySink) *DiscoveryService {
	t.Helper()
	searchEngine, recommendEngine := engines(t)
	return NewDiscoveryService(catalog, history, searchLog, nil, searchEngine, recommendEngine, newTestLogger())
}

// waitForCancel blocks a mocked call until its context is cancelled.
func waitForCancel(args mock.Arguments) {
	<-args.Get(0).(context.Context).Done()
}

func slugsOf(products []domain.Product) []string {
	out := make([]string, len(products))
	for i, p := range products {
		out[i] = p.Slug
	}
	return out
}

func resultSlugs(results []domain.SearchResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Product.Slug
	}
	return out
}

// --- Search ---

func TestDiscoveryService_Search_RecordsAndPublishes(t *testing.T) {
	f := newFixture(t)
	f.events.On("PublishSearchPerformed", mock.Anything, mock.MatchedBy(func(d event.SearchPerformedData) bool {
		return d.Query == "hoodie" && d.ResultCount == 3 && d.UserID == "user-1"
	})).Return(nil).Once()

	out, err := f.svc.Search(context.Background(), SearchInput{Query: "hoodie", UserID: "user-1"})
	require.NoError(t, err)

	assert.Equal(t, domain.SortRelevance, out.Sort)
	assert.Equal(t, []string{"archive-hoodie", "classic-black-hoodie", "lunar-phase-hoodie"}, resultSlugs(out.Results.Data))
	require.NotEmpty(t, out.SearchID)

	rec, ok := f.searchLog.Get(out.SearchID)
	require.True(t, ok)
	assert.Equal(t, 3, rec.ResultCount)
	assert.Nil(t, rec.ClickedSlug)
	f.events.AssertExpectations(t)
}

func TestDiscoveryService_Search_SingleTitleMatch(t *testing.T) {
	f := newFixture(t)
	f.events.On("PublishSearchPerformed", mock.Anything, mock.Anything).Return(nil)

	out, err := f.svc.Search(context.Background(), SearchInput{Query: "black"})
	require.NoError(t, err)
	require.Len(t, out.Results.Data, 1)
	assert.Equal(t, "classic-black-hoodie", out.Results.Data[0].Product.Slug)
	assert.Contains(t, out.Results.Data[0].MatchedIn, domain.FieldTitle)
}

func TestDiscoveryService_Search_FilterSortAndPaginate(t *testing.T) {
	f := newFixture(t)
	f.events.On("PublishSearchPerformed", mock.Anything, mock.Anything).Return(nil)
	inStock := true

	out, err := f.svc.Search(context.Background(), SearchInput{
		Query:   "hoodie",
		Sort:    domain.SortPriceDesc,
		InStock: &inStock,
		Page:    2,
		PerPage: 1,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, out.Results.TotalCount)
	assert.Equal(t, 2, out.Results.TotalPages)
	assert.Equal(t, []string{"classic-black-hoodie"}, resultSlugs(out.Results.Data))
	assert.True(t, out.Results.HasPrev)
	assert.False(t, out.Results.HasNext)
}

func TestDiscoveryService_Search_ZeroResultsStillRecorded(t *testing.T) {
	f := newFixture(t)
	f.events.On("PublishSearchPerformed", mock.Anything, mock.Anything).Return(nil)

	out, err := f.svc.Search(context.Background(), SearchInput{Query: "cardigan"})
	require.NoError(t, err)
	assert.NotNil(t, out.Results.Data)
	assert.Empty(t, out.Results.Data)
	assert.NotEmpty(t, out.SearchID)
}

func TestDiscoveryService_Search_InvalidInput(t *testing.T) {
	catalog := new(mockCatalog)
	svc := newMockedService(t, catalog, new(mockHistory), new(mockSearchLog))

	_, err := svc.Search(context.Background(), SearchInput{Query: "   "})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = svc.Search(context.Background(), SearchInput{Query: "hoodie", Sort: "cheapest"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	catalog.AssertNotCalled(t, "ListProducts", mock.Anything, mock.Anything)
}

func TestDiscoveryService_Search_CatalogUnavailable(t *testing.T) {
	catalog := new(mockCatalog)
	catalog.On("ListProducts", mock.Anything, mock.Anything).Return(nil, errors.New("dial tcp 10.0.0.4:5432: connection refused"))
	svc := newMockedService(t, catalog, new(mockHistory), new(mockSearchLog))

	_, err := svc.Search(context.Background(), SearchInput{Query: "hoodie"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrCollaboratorUnavailable)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "catalog is temporarily unavailable", appErr.Message)
}

func TestDiscoveryService_Search_SinkFailureDoesNotFailSearch(t *testing.T) {
	catalog := new(mockCatalog)
	catalog.On("ListProducts", mock.Anything, repository.ProductFilter{}).Return(fixtureCatalog(), nil)
	searchLog := new(mockSearchLog)
	searchLog.On("RecordSearch", mock.Anything, "hoodie", 3, "").Return("", errors.New("insert failed"))
	svc := newMockedService(t, catalog, new(mockHistory), searchLog)

	out, err := svc.Search(context.Background(), SearchInput{Query: "hoodie"})
	require.NoError(t, err)
	assert.Empty(t, out.SearchID)
	assert.Len(t, out.Results.Data, 3)
	searchLog.AssertExpectations(t)
}

func TestDiscoveryService_Search_PublishFailureIsIgnored(t *testing.T) {
	f := newFixture(t)
	f.events.On("PublishSearchPerformed", mock.Anything, mock.Anything).Return(errors.New("broker down"))

	out, err := f.svc.Search(context.Background(), SearchInput{Query: "tee"})
	require.NoError(t, err)
	assert.NotEmpty(t, out.SearchID)
}

// --- Suggest ---

func TestDiscoveryService_Suggest(t *testing.T) {
	f := newFixture(t)

	got, err := f.svc.Suggest(context.Background(), "lun")
	require.NoError(t, err)
	// Title prefixes outrank the collection name.
	assert.Equal(t, []string{"Lunar Crew", "Lunar Phase Hoodie", "Lunar"}, got)
}

func TestDiscoveryService_Suggest_BlankSkipsCatalog(t *testing.T) {
	catalog := new(mockCatalog)
	svc := newMockedService(t, catalog, new(mockHistory), new(mockSearchLog))

	got, err := svc.Suggest(context.Background(), " ")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	catalog.AssertNotCalled(t, "ListProducts", mock.Anything, mock.Anything)
}

// --- RecordClick ---

func TestDiscoveryService_RecordClick_BySearchID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id, _ := f.searchLog.RecordSearch(ctx, "hoodie", 3, "user-1")
	f.events.On("PublishSearchClicked", mock.Anything, event.SearchClickedData{SearchID: id, Slug: "lunar-crew", UserID: "user-1"}).Return(nil).Once()

	got, err := f.svc.RecordClick(ctx, ClickInput{SearchID: id, Slug: "lunar-crew", UserID: "user-1"})
	require.NoError(t, err)
	assert.Equal(t, id, got)

	rec, _ := f.searchLog.Get(id)
	require.NotNil(t, rec.ClickedSlug)
	assert.Equal(t, "lunar-crew", *rec.ClickedSlug)
	f.events.AssertExpectations(t)
}

func TestDiscoveryService_RecordClick_ByLatestUnclickedQuery(t *testing.T) {
	f := newFixture(t)
	f.events.On("PublishSearchClicked", mock.Anything, mock.Anything).Return(nil)
	ctx := context.Background()
	older, _ := f.searchLog.RecordSearch(ctx, "hoodie", 3, "user-1")
	newer, _ := f.searchLog.RecordSearch(ctx, "Hoodie", 3, "user-1")

	got, err := f.svc.RecordClick(ctx, ClickInput{Query: "hoodie", Slug: "core-tee", UserID: "user-1"})
	require.NoError(t, err)
	assert.Equal(t, newer, got)

	got, err = f.svc.RecordClick(ctx, ClickInput{Query: "hoodie", Slug: "core-tee", UserID: "user-1"})
	require.NoError(t, err)
	assert.Equal(t, older, got)

	_, err = f.svc.RecordClick(ctx, ClickInput{Query: "hoodie", Slug: "core-tee", UserID: "user-1"})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestDiscoveryService_RecordClick_SecondClickConflicts(t *testing.T) {
	f := newFixture(t)
	f.events.On("PublishSearchClicked", mock.Anything, mock.Anything).Return(nil)
	ctx := context.Background()
	id, _ := f.searchLog.RecordSearch(ctx, "hoodie", 3, "")

	_, err := f.svc.RecordClick(ctx, ClickInput{SearchID: id, Slug: "core-tee"})
	require.NoError(t, err)

	_, err = f.svc.RecordClick(ctx, ClickInput{SearchID: id, Slug: "lunar-crew"})
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestDiscoveryService_RecordClick_InvalidInput(t *testing.T) {
	searchLog := new(mockSearchLog)
	svc := newMockedService(t, new(mockCatalog), new(mockHistory), searchLog)

	_, err := svc.RecordClick(context.Background(), ClickInput{SearchID: "x", Slug: "Not A Slug"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = svc.RecordClick(context.Background(), ClickInput{Slug: "core-tee"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	searchLog.AssertNotCalled(t, "RecordClick", mock.Anything, mock.Anything, mock.Anything)
}

func TestDiscoveryService_RecordClick_SinkUnavailable(t *testing.T) {
	searchLog := new(mockSearchLog)
	searchLog.On("RecordClick", mock.Anything, "rec-1", "core-tee").Return(errors.New("timeout"))
	svc := newMockedService(t, new(mockCatalog), new(mockHistory), searchLog)

	_, err := svc.RecordClick(context.Background(), ClickInput{SearchID: "rec-1", Slug: "core-tee"})
	assert.ErrorIs(t, err, apperrors.ErrCollaboratorUnavailable)
}

// --- Related ---

func TestDiscoveryService_Related(t *testing.T) {
	f := newFixture(t)

	got, err := f.svc.Related(context.Background(), "lunar-phase-hoodie", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "lunar-crew", got[0].Slug)
	assert.NotContains(t, slugsOf(got), "lunar-phase-hoodie")

	again, err := f.svc.Related(context.Background(), "lunar-phase-hoodie", 2)
	require.NoError(t, err)
	assert.Equal(t, slugsOf(got), slugsOf(again))
}

func TestDiscoveryService_Related_ZeroLimit(t *testing.T) {
	f := newFixture(t)

	got, err := f.svc.Related(context.Background(), "lunar-phase-hoodie", 0)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestDiscoveryService_Related_UnknownAnchor(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Related(context.Background(), "missing", 4)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestDiscoveryService_Related_NegativeLimit(t *testing.T) {
	catalog := new(mockCatalog)
	svc := newMockedService(t, catalog, new(mockHistory), new(mockSearchLog))

	_, err := svc.Related(context.Background(), "core-tee", -1)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	catalog.AssertNotCalled(t, "GetProduct", mock.Anything, mock.Anything)
}

func TestDiscoveryService_Related_CatalogUnavailable(t *testing.T) {
	anchor := fixtureCatalog()[0]
	catalog := new(mockCatalog)
	catalog.On("GetProduct", mock.Anything, anchor.Slug).Return(&anchor, nil)
	catalog.On("ListProducts", mock.Anything, mock.Anything).Return(nil, errors.New("connection reset"))
	svc := newMockedService(t, catalog, new(mockHistory), new(mockSearchLog))

	_, err := svc.Related(context.Background(), anchor.Slug, 4)
	assert.ErrorIs(t, err, apperrors.ErrCollaboratorUnavailable)
}

func TestDiscoveryService_Related_UnknownAnchorDoesNotReportOutage(t *testing.T) {
	catalog := new(mockCatalog)
	catalog.On("GetProduct", mock.Anything, "missing").Return(nil, apperrors.NotFound("product", "missing"))
	catalog.On("ListProducts", mock.Anything, mock.Anything).Run(waitForCancel).Return(nil, context.Canceled)

	var logs bytes.Buffer
	searchEngine, recommendEngine := engines(t)
	svc := NewDiscoveryService(catalog, new(mockHistory), new(mockSearchLog), nil, searchEngine, recommendEngine,
		slog.New(slog.NewJSONHandler(&logs, nil)))
	before := testutil.ToFloat64(collaboratorFailures.WithLabelValues(collabCatalog))

	_, err := svc.Related(context.Background(), "missing", 4)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NotContains(t, logs.String(), "collaborator call failed")
	assert.Equal(t, before, testutil.ToFloat64(collaboratorFailures.WithLabelValues(collabCatalog)))
}

// --- Personalized / Recommend / Featured ---

func TestDiscoveryService_Personalized_LunarBuyer(t *testing.T) {
	f := newFixture(t)
	f.history.AddOrder("user-1", domain.OrderLine{ProductSlug: "lunar-phase-hoodie", Quantity: 1, Price: 11900})

	got, err := f.svc.Personalized(context.Background(), "user-1", 4)
	require.NoError(t, err)
	require.Equal(t, domain.StatusMatched, got.Status)
	assert.Equal(t, "lunar-crew", got.Products[0].Slug)
	assert.NotContains(t, slugsOf(got.Products), "lunar-phase-hoodie")
	assert.NotContains(t, slugsOf(got.Products), "archive-hoodie")
}

func TestDiscoveryService_Personalized_NoHistory(t *testing.T) {
	f := newFixture(t)

	got, err := f.svc.Personalized(context.Background(), "stranger", 4)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusNoHistory, got.Status)
	assert.Nil(t, got.Products)

	anon, err := f.svc.Personalized(context.Background(), "", 4)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusNoHistory, anon.Status)
}

func TestDiscoveryService_Personalized_HistoryUnavailable(t *testing.T) {
	catalog := new(mockCatalog)
	catalog.On("ListProducts", mock.Anything, mock.Anything).Return(fixtureCatalog(), nil)
	history := new(mockHistory)
	history.On("OrdersFor", mock.Anything, "user-1").Return([]domain.OrderLine(nil), errors.New("timeout"))
	history.On("WishlistFor", mock.Anything, "user-1").Return([]string{}, nil).Maybe()
	history.On("ReviewsFor", mock.Anything, "user-1").Return([]domain.Review{}, nil).Maybe()
	svc := newMockedService(t, catalog, history, new(mockSearchLog))

	_, err := svc.Personalized(context.Background(), "user-1", 4)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrCollaboratorUnavailable)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "interaction history is temporarily unavailable", appErr.Message)
}

func TestDiscoveryService_Personalized_CountsOnlyTheFailingCall(t *testing.T) {
	catalog := new(mockCatalog)
	catalog.On("ListProducts", mock.Anything, mock.Anything).Run(waitForCancel).Return(nil, context.Canceled)
	history := new(mockHistory)
	history.On("OrdersFor", mock.Anything, "user-1").Return([]domain.OrderLine(nil), errors.New("timeout"))
	history.On("WishlistFor", mock.Anything, "user-1").Run(waitForCancel).Return([]string(nil), context.Canceled)
	history.On("ReviewsFor", mock.Anything, "user-1").Run(waitForCancel).Return([]domain.Review(nil), context.Canceled)

	var logs bytes.Buffer
	searchEngine, recommendEngine := engines(t)
	svc := NewDiscoveryService(catalog, history, new(mockSearchLog), nil, searchEngine, recommendEngine,
		slog.New(slog.NewJSONHandler(&logs, nil)))
	catalogBefore := testutil.ToFloat64(collaboratorFailures.WithLabelValues(collabCatalog))
	historyBefore := testutil.ToFloat64(collaboratorFailures.WithLabelValues(collabHistory))

	_, err := svc.Personalized(context.Background(), "user-1", 4)
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "interaction history is temporarily unavailable", appErr.Message)
	assert.Equal(t, historyBefore+1, testutil.ToFloat64(collaboratorFailures.WithLabelValues(collabHistory)))
	assert.Equal(t, catalogBefore, testutil.ToFloat64(collaboratorFailures.WithLabelValues(collabCatalog)))
	assert.Equal(t, 1, bytes.Count(logs.Bytes(), []byte("collaborator call failed")))
}

func TestDiscoveryService_Recommend_FallsBackToFeatured(t *testing.T) {
	f := newFixture(t)

	got, err := f.svc.Recommend(context.Background(), "stranger", 4)
	require.NoError(t, err)
	assert.False(t, got.Personalized)
	assert.Equal(t, domain.StatusNoHistory, got.Status)
	assert.Equal(t, []string{"classic-black-hoodie", "lunar-phase-hoodie"}, slugsOf(got.Products))
}

func TestDiscoveryService_Recommend_Personalized(t *testing.T) {
	f := newFixture(t)
	f.history.AddWishlist("user-1", "core-tee")

	got, err := f.svc.Recommend(context.Background(), "user-1", 4)
	require.NoError(t, err)
	assert.True(t, got.Personalized)
	assert.Equal(t, domain.StatusMatched, got.Status)
	assert.Equal(t, "classic-black-hoodie", got.Products[0].Slug)
}

func TestDiscoveryService_Featured(t *testing.T) {
	f := newFixture(t)

	got, err := f.svc.Featured(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"classic-black-hoodie"}, slugsOf(got))

	_, err = f.svc.Featured(context.Background(), -1)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}
