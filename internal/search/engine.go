// Package search ranks catalog products against free-text queries and builds
// typeahead suggestions.
package search

import (
	"sort"
	"strings"

	"github.com/utafrali/apparel-discovery/internal/domain"
	"github.com/utafrali/apparel-discovery/internal/scoring"
	apperrors "github.com/utafrali/apparel-discovery/pkg/errors"
)

// DefaultSuggestionLimit caps the number of typeahead suggestions.
const DefaultSuggestionLimit = 6

// Engine is a pure search engine over a catalog snapshot handed in per call.
// It never mutates its inputs and is safe for concurrent use.
type Engine struct {
	scorer          *scoring.Scorer
	suggestionLimit int
}

// Option customises an Engine.
type Option func(*Engine)

// WithSuggestionLimit overrides DefaultSuggestionLimit. Non-positive values are ignored.
func WithSuggestionLimit(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.suggestionLimit = n
		}
	}
}

// NewEngine creates an Engine backed by scorer.
func NewEngine(scorer *scoring.Scorer, opts ...Option) *Engine {
	e := &Engine{scorer: scorer, suggestionLimit: DefaultSuggestionLimit}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Search scores every product against query, out-of-stock ones included, and
// returns the non-zero matches ordered by score descending then slug.
// A blank query is an InvalidInput error.
func (e *Engine) Search(products []domain.Product, query string) ([]domain.SearchResult, error) {
	if scoring.Normalize(query) == "" {
		return nil, apperrors.InvalidInput("search query must not be empty")
	}

	results := make([]domain.SearchResult, 0)
	for _, p := range products {
		score, matched := e.scorer.ScoreTextMatch(query, p)
		if score <= 0 {
			continue
		}
		results = append(results, domain.SearchResult{Product: p, MatchScore: score, MatchedIn: matched})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return byRelevance(results[i], results[j])
	})
	return results, nil
}

type suggestion struct {
	text  string
	norm  string
	score float64
}

// Suggestions returns up to the configured number of completions drawn from
// product titles, tags and collection names that start with or contain
// partial. Candidates are deduplicated by normalized text and ordered by the
// search field weights. A blank partial yields an empty slice.
func (e *Engine) Suggestions(products []domain.Product, partial string) []string {
	q := scoring.Normalize(partial)
	if q == "" {
		return []string{}
	}

	w := e.scorer.Weights()
	best := make(map[string]*suggestion)
	consider := func(raw string, fieldWeight float64) {
		norm := scoring.Normalize(raw)
		m := e.scorer.MatchMultiplier(q, norm)
		if m == 0 || fieldWeight == 0 {
			return
		}
		score := fieldWeight * m
		if cur, ok := best[norm]; ok {
			if score > cur.score {
				cur.score = score
			}
			return
		}
		best[norm] = &suggestion{text: strings.TrimSpace(raw), norm: norm, score: score}
	}

	for _, p := range products {
		consider(p.Title, w.Title)
		for _, tag := range p.Tags {
			consider(tag, w.Tags)
		}
		consider(p.Collection, w.Collection)
	}

	ranked := make([]*suggestion, 0, len(best))
	for _, s := range best {
		ranked = append(ranked, s)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].norm < ranked[j].norm
	})

	if len(ranked) > e.suggestionLimit {
		ranked = ranked[:e.suggestionLimit]
	}
	out := make([]string, len(ranked))
	for i, s := range ranked {
		out[i] = s.text
	}
	return out
}

func byRelevance(a, b domain.SearchResult) bool {
	if a.MatchScore != b.MatchScore {
		return a.MatchScore > b.MatchScore
	}
	return a.Product.Slug < b.Product.Slug
}
