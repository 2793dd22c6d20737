package recommend

import (
	"sort"

	"github.com/utafrali/apparel-discovery/internal/domain"
	"github.com/utafrali/apparel-discovery/internal/scoring"
)

// BuildSignal folds a shopper's orders, wishlist and positive reviews into
// collection, tag and price affinities. Slugs missing from products are
// skipped. Each order line counts once regardless of quantity.
func (e *Engine) BuildSignal(products []domain.Product, history domain.InteractionHistory) domain.InteractionSignal {
	idx := domain.IndexBySlug(products)
	signal := domain.InteractionSignal{
		Collections: make(map[string]float64),
		Tags:        make(map[string]float64),
	}

	var priceSum, priceWeight float64
	reinforce := func(slug string, weight float64, paid int64) {
		p, ok := idx[slug]
		if !ok || weight <= 0 {
			return
		}
		if c := scoring.Normalize(p.Collection); c != "" {
			signal.Collections[c] += weight
		}
		for _, tag := range p.Tags {
			if t := scoring.Normalize(tag); t != "" {
				signal.Tags[t] += weight
			}
		}
		price := p.Price
		if paid > 0 {
			price = paid
		}
		priceSum += weight * float64(price)
		priceWeight += weight
	}

	for _, line := range history.Orders {
		reinforce(line.ProductSlug, e.signals.Order, line.Price)
	}
	for _, slug := range history.Wishlist {
		reinforce(slug, e.signals.Wishlist, 0)
	}
	for _, r := range history.Reviews {
		if r.Rating >= e.signals.MinRating {
			reinforce(r.ProductSlug, e.signals.Review, 0)
		}
	}

	if priceWeight > 0 {
		signal.PriceBand = &domain.PriceBand{
			Center: int64(priceSum/priceWeight + 0.5),
			Weight: priceWeight,
		}
	}
	return signal
}

// ScoreAffinity scores p against a shopper signal: collection affinity plus
// the sum of tag affinities plus a bonus when p sits in the shopper's price band.
func (e *Engine) ScoreAffinity(signal domain.InteractionSignal, p domain.Product) float64 {
	score := signal.Collections[scoring.Normalize(p.Collection)]

	seen := make(map[string]struct{}, len(p.Tags))
	for _, tag := range p.Tags {
		t := scoring.Normalize(tag)
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		score += signal.Tags[t]
	}

	if signal.PriceBand != nil && e.scorer.InPriceBand(signal.PriceBand.Center, p.Price) {
		score += e.scorer.Weights().PriceBand
	}
	return score
}

// PersonalizedFor ranks in-stock products the shopper has neither ordered nor
// wishlisted by affinity, breaking ties by featured flag, popularity and slug.
// A shopper with no history gets StatusNoHistory; history that yields no
// positive candidate gets StatusNoMatches.
func (e *Engine) PersonalizedFor(products []domain.Product, history domain.InteractionHistory, rc domain.RecommendationContext) domain.Personalization {
	if history.Empty() {
		return domain.NoHistory()
	}

	signal := e.BuildSignal(products, history)

	owned := make(map[string]struct{}, len(history.Orders)+len(history.Wishlist))
	for _, line := range history.Orders {
		owned[line.ProductSlug] = struct{}{}
	}
	for _, slug := range history.Wishlist {
		owned[slug] = struct{}{}
	}

	candidates := make([]scored, 0)
	for _, p := range products {
		if !p.InStock || rc.Excludes(p.Slug) {
			continue
		}
		if _, ok := owned[p.Slug]; ok {
			continue
		}
		if s := e.ScoreAffinity(signal, p); s > 0 {
			candidates = append(candidates, scored{product: p, score: s})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.product.Featured != b.product.Featured {
			return a.product.Featured
		}
		if a.product.Popularity != b.product.Popularity {
			return a.product.Popularity > b.product.Popularity
		}
		return a.product.Slug < b.product.Slug
	})

	return domain.Personalized(truncate(candidates, rc.Limit))
}
