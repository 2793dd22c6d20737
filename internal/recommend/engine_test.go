package recommend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/apparel-discovery/internal/domain"
	"github.com/utafrali/apparel-discovery/internal/scoring"
	apperrors "github.com/utafrali/apparel-discovery/pkg/errors"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	s, err := scoring.NewScorer(scoring.DefaultWeights())
	require.NoError(t, err)
	return NewEngine(s, DefaultSignalWeights())
}

func catalog() []domain.Product {
	return []domain.Product{
		{Slug: "classic-black-hoodie", Title: "Classic Black Hoodie", Collection: "Core", Tags: []string{"bestseller", "core"}, Price: 8900, InStock: true, Colors: []string{"Black"}, Sizes: []string{"S", "M", "L"}},
		{Slug: "lunar-phase-hoodie", Title: "Lunar Phase Hoodie", Collection: "Lunar", Tags: []string{"limited", "new"}, Price: 11900, InStock: true, Colors: []string{"Navy"}, Sizes: []string{"M", "L"}},
		{Slug: "lunar-crew", Title: "Lunar Crew", Collection: "Lunar", Tags: []string{"new"}, Price: 7900, InStock: true, Colors: []string{"Grey"}, Sizes: []string{"M"}},
		{Slug: "eclipse-tee", Title: "Eclipse Tee", Collection: "Graphic", Tags: []string{"limited"}, Price: 4500, InStock: true, Sizes: []string{"XL"}},
		{Slug: "core-tee", Title: "Core Tee", Collection: "Core", Tags: []string{"core"}, Price: 3500, InStock: true, Colors: []string{"White"}, Sizes: []string{"XS"}},
		{Slug: "wool-scarf", Title: "Wool Scarf", Collection: "Accessories", Tags: []string{"winter"}, Price: 2500, InStock: true},
	}
}

func productSlugs(products []domain.Product) []string {
	out := make([]string, len(products))
	for i, p := range products {
		out[i] = p.Slug
	}
	return out
}

func TestEngine_RelatedTo_RanksBySimilarity(t *testing.T) {
	e := newTestEngine(t)

	related, err := e.RelatedTo(catalog(), domain.RecommendationContext{AnchorSlug: "lunar-phase-hoodie", Limit: 10})
	require.NoError(t, err)

	// lunar-crew: collection 10 + "new" 3 + size M 1 = 14
	// eclipse-tee: "limited" 3
	// classic-black-hoodie: sizes 1
	assert.Equal(t, []string{"lunar-crew", "eclipse-tee", "classic-black-hoodie"}, productSlugs(related))
}

func TestEngine_RelatedTo_NeverReturnsAnchor(t *testing.T) {
	e := newTestEngine(t)

	for _, p := range catalog() {
		for _, limit := range []int{0, 1, 3, 100} {
			related, err := e.RelatedTo(catalog(), domain.RecommendationContext{AnchorSlug: p.Slug, Limit: limit})
			require.NoError(t, err)
			assert.NotContains(t, productSlugs(related), p.Slug)
			assert.LessOrEqual(t, len(related), limit)
		}
	}
}

func TestEngine_RelatedTo_IsIdempotent(t *testing.T) {
	e := newTestEngine(t)
	rc := domain.RecommendationContext{AnchorSlug: "classic-black-hoodie", Limit: 4}

	first, err := e.RelatedTo(catalog(), rc)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := e.RelatedTo(catalog(), rc)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestEngine_RelatedTo_TiesBreakBySlug(t *testing.T) {
	e := newTestEngine(t)
	products := []domain.Product{
		{Slug: "anchor", Collection: "Core", Price: 1000},
		{Slug: "zeta", Collection: "Core", Price: 99999},
		{Slug: "alpha", Collection: "Core", Price: 99999},
	}

	related, err := e.RelatedTo(products, domain.RecommendationContext{AnchorSlug: "anchor", Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "zeta"}, productSlugs(related))
}

func TestEngine_RelatedTo_HonoursExcludeSet(t *testing.T) {
	e := newTestEngine(t)
	rc := domain.RecommendationContext{
		AnchorSlug: "lunar-phase-hoodie",
		Limit:      10,
		Exclude:    map[string]struct{}{"lunar-crew": {}},
	}

	related, err := e.RelatedTo(catalog(), rc)
	require.NoError(t, err)
	assert.NotContains(t, productSlugs(related), "lunar-crew")
}

func TestEngine_RelatedTo_IncludesBrandNewProducts(t *testing.T) {
	e := newTestEngine(t)
	products := append(catalog(), domain.Product{Slug: "lunar-beanie", Collection: "Lunar", Price: 1900, InStock: true})

	related, err := e.RelatedTo(products, domain.RecommendationContext{AnchorSlug: "lunar-crew", Limit: 10})
	require.NoError(t, err)
	assert.Contains(t, productSlugs(related), "lunar-beanie")
}

func TestEngine_RelatedTo_Errors(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.RelatedTo(catalog(), domain.RecommendationContext{AnchorSlug: "missing", Limit: 3})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = e.RelatedTo(catalog(), domain.RecommendationContext{AnchorSlug: "lunar-crew", Limit: -1})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestEngine_RelatedTo_FoundButEmpty(t *testing.T) {
	e := newTestEngine(t)

	related, err := e.RelatedTo(catalog(), domain.RecommendationContext{AnchorSlug: "wool-scarf", Limit: 5})
	require.NoError(t, err)
	assert.NotNil(t, related)
	assert.Empty(t, related)
}

func TestEngine_Featured(t *testing.T) {
	e := newTestEngine(t)
	products := []domain.Product{
		{Slug: "b", Featured: true, InStock: true, Popularity: 10},
		{Slug: "a", Featured: true, InStock: true, Popularity: 10},
		{Slug: "c", Featured: true, InStock: true, Popularity: 50},
		{Slug: "d", Featured: true, InStock: false, Popularity: 99},
		{Slug: "e", Featured: false, InStock: true, Popularity: 99},
	}

	assert.Equal(t, []string{"c", "a", "b"}, productSlugs(e.Featured(products, 10)))
	assert.Equal(t, []string{"c"}, productSlugs(e.Featured(products, 1)))
	assert.Empty(t, e.Featured(products, -1))
}
