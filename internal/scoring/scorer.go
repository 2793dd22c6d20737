// Package scoring holds the relevance primitives shared by search and
// recommendations. Everything here is pure: no I/O, no clock, no randomness.
package scoring

import (
	"fmt"
	"sort"
	"strings"

	"github.com/utafrali/apparel-discovery/internal/domain"
)

// Scorer computes text-match and similarity scores from a fixed set of weights.
// A Scorer is immutable and safe for concurrent use.
type Scorer struct {
	w Weights
}

// NewScorer validates w and returns a Scorer using it.
func NewScorer(w Weights) (*Scorer, error) {
	if err := w.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scoring weights: %w", err)
	}
	return &Scorer{w: w}, nil
}

// Weights returns the scorer's configuration.
func (s *Scorer) Weights() Weights {
	return s.w
}

// Normalize lowercases s, trims it and collapses runs of whitespace.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// MatchMultiplier grades how normalized query q matches normalized value v:
// exact, prefix, substring or not at all.
func (s *Scorer) MatchMultiplier(q, v string) float64 {
	switch {
	case q == "" || v == "":
		return 0
	case v == q:
		return s.w.ExactMatch
	case strings.HasPrefix(v, q):
		return s.w.PrefixMatch
	case strings.Contains(v, q):
		return s.w.SubstringMatch
	default:
		return 0
	}
}

func (s *Scorer) bestMultiplier(q string, values []string) float64 {
	var best float64
	for _, v := range values {
		if m := s.MatchMultiplier(q, Normalize(v)); m > best {
			best = m
		}
	}
	return best
}

// ScoreTextMatch scores p against query by summing weighted per-field matches.
// List fields contribute their best-matching element once. It returns the
// score and the sorted names of the contributing fields; a blank query scores
// zero.
func (s *Scorer) ScoreTextMatch(query string, p domain.Product) (float64, []string) {
	q := Normalize(query)
	if q == "" {
		return 0, nil
	}

	fields := []struct {
		name   string
		weight float64
		values []string
	}{
		{domain.FieldTitle, s.w.Title, []string{p.Title}},
		{domain.FieldTags, s.w.Tags, p.Tags},
		{domain.FieldCollection, s.w.Collection, []string{p.Collection}},
		{domain.FieldColors, s.w.Colors, p.Colors},
		{domain.FieldSizes, s.w.Sizes, p.Sizes},
		{domain.FieldDescription, s.w.Description, []string{p.Description}},
		{domain.FieldFabric, s.w.Fabric, []string{p.Fabric}},
		{domain.FieldCare, s.w.Care, []string{p.Care}},
		{domain.FieldShipping, s.w.Shipping, []string{p.Shipping}},
	}

	var (
		score   float64
		matched []string
	)
	for _, f := range fields {
		if f.weight == 0 {
			continue
		}
		if m := s.bestMultiplier(q, f.values); m > 0 {
			score += f.weight * m
			matched = append(matched, f.name)
		}
	}
	sort.Strings(matched)
	return score, matched
}

// ScoreSimilarity scores how related b is to anchor a. It is deterministic but
// not symmetric: the price band is measured relative to a's price, so
// ScoreSimilarity(a, b) and ScoreSimilarity(b, a) may differ.
func (s *Scorer) ScoreSimilarity(a, b domain.Product) float64 {
	var score float64

	if ca := Normalize(a.Collection); ca != "" && ca == Normalize(b.Collection) {
		score += s.w.SameCollection
	}

	shared := overlap(a.Tags, b.Tags)
	if s.w.MaxSharedTags >= 0 && shared > s.w.MaxSharedTags {
		shared = s.w.MaxSharedTags
	}
	score += float64(shared) * s.w.SharedTag

	if s.InPriceBand(a.Price, b.Price) {
		score += s.w.PriceBand
	}
	if overlap(a.Colors, b.Colors) > 0 {
		score += s.w.SharedColor
	}
	if overlap(a.Sizes, b.Sizes) > 0 {
		score += s.w.SharedSize
	}

	return score
}

// InPriceBand reports whether price lies within the configured tolerance of
// center, measured as a fraction of center.
func (s *Scorer) InPriceBand(center, price int64) bool {
	diff := price - center
	if diff < 0 {
		diff = -diff
	}
	return float64(diff) <= s.w.PriceTolerance*float64(center)
}

// overlap counts distinct normalized values present in both a and b.
func overlap(a, b []string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(a))
	for _, v := range a {
		if n := Normalize(v); n != "" {
			set[n] = struct{}{}
		}
	}
	count := 0
	for _, v := range b {
		n := Normalize(v)
		if _, ok := set[n]; ok {
			count++
			delete(set, n)
		}
	}
	return count
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
