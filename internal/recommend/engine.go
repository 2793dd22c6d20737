// Package recommend produces related-product and personalized rankings.
// Like search it is pure: collaborators are fetched by the caller and every
// call is a function of its arguments only.
package recommend

import (
	"sort"

	"github.com/utafrali/apparel-discovery/internal/domain"
	"github.com/utafrali/apparel-discovery/internal/scoring"
	apperrors "github.com/utafrali/apparel-discovery/pkg/errors"
)

// SignalWeights sets how strongly each kind of interaction reinforces affinity.
type SignalWeights struct {
	Order     float64 `env:"SIGNAL_ORDER"`
	Wishlist  float64 `env:"SIGNAL_WISHLIST"`
	Review    float64 `env:"SIGNAL_REVIEW"`
	MinRating int     `env:"SIGNAL_MIN_RATING"`
}

// DefaultSignalWeights weights a purchase above a wishlist entry above a
// positive review. Reviews below four stars are ignored.
func DefaultSignalWeights() SignalWeights {
	return SignalWeights{Order: 3, Wishlist: 2, Review: 1, MinRating: 4}
}

// Engine ranks recommendations using the shared scorer.
type Engine struct {
	scorer  *scoring.Scorer
	signals SignalWeights
}

// NewEngine creates an Engine.
func NewEngine(scorer *scoring.Scorer, signals SignalWeights) *Engine {
	return &Engine{scorer: scorer, signals: signals}
}

type scored struct {
	product domain.Product
	score   float64
}

// RelatedTo ranks products by similarity to rc.AnchorSlug. The anchor, any
// slug in rc.Exclude and zero-score candidates are dropped; ties break by
// slug so repeated calls over the same catalog return the same page.
func (e *Engine) RelatedTo(products []domain.Product, rc domain.RecommendationContext) ([]domain.Product, error) {
	if rc.Limit < 0 {
		return nil, apperrors.InvalidInput("limit must not be negative")
	}

	var anchor *domain.Product
	for i := range products {
		if products[i].Slug == rc.AnchorSlug {
			anchor = &products[i]
			break
		}
	}
	if anchor == nil {
		return nil, apperrors.NotFound("product", rc.AnchorSlug)
	}

	candidates := make([]scored, 0, len(products))
	for _, p := range products {
		if p.Slug == anchor.Slug || rc.Excludes(p.Slug) {
			continue
		}
		if s := e.scorer.ScoreSimilarity(*anchor, p); s > 0 {
			candidates = append(candidates, scored{product: p, score: s})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].product.Slug < candidates[j].product.Slug
	})

	return truncate(candidates, rc.Limit), nil
}

// Featured returns in-stock featured products by popularity then slug. It is
// the fallback shown when a shopper has no history.
func (e *Engine) Featured(products []domain.Product, limit int) []domain.Product {
	candidates := make([]scored, 0)
	for _, p := range products {
		if p.Featured && p.InStock {
			candidates = append(candidates, scored{product: p})
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i].product, candidates[j].product
		if a.Popularity != b.Popularity {
			return a.Popularity > b.Popularity
		}
		return a.Slug < b.Slug
	})
	return truncate(candidates, limit)
}

func truncate(candidates []scored, limit int) []domain.Product {
	if limit < 0 {
		limit = 0
	}
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	out := make([]domain.Product, len(candidates))
	for i, c := range candidates {
		out[i] = c.product
	}
	return out
}
