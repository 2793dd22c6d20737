package scoring

import (
	"errors"
	"fmt"

	"github.com/utafrali/apparel-discovery/internal/domain"
)

// Weights holds every tunable constant used by the scorer. Field weights and
// match multipliers drive text matching; the remaining values drive
// product-to-product similarity.
type Weights struct {
	Title       float64 `env:"WEIGHT_TITLE"`
	Tags        float64 `env:"WEIGHT_TAGS"`
	Collection  float64 `env:"WEIGHT_COLLECTION"`
	Colors      float64 `env:"WEIGHT_COLORS"`
	Sizes       float64 `env:"WEIGHT_SIZES"`
	Description float64 `env:"WEIGHT_DESCRIPTION"`
	Fabric      float64 `env:"WEIGHT_FABRIC"`
	Care        float64 `env:"WEIGHT_CARE"`
	Shipping    float64 `env:"WEIGHT_SHIPPING"`

	ExactMatch     float64 `env:"MATCH_EXACT"`
	PrefixMatch    float64 `env:"MATCH_PREFIX"`
	SubstringMatch float64 `env:"MATCH_SUBSTRING"`

	SameCollection float64 `env:"SIMILARITY_SAME_COLLECTION"`
	SharedTag      float64 `env:"SIMILARITY_SHARED_TAG"`
	MaxSharedTags  int     `env:"SIMILARITY_MAX_SHARED_TAGS"`
	PriceBand      float64 `env:"SIMILARITY_PRICE_BAND"`
	// PriceTolerance is the fraction of the anchor's price within which a
	// candidate counts as the same price band.
	PriceTolerance float64 `env:"SIMILARITY_PRICE_TOLERANCE"`
	SharedColor    float64 `env:"SIMILARITY_SHARED_COLOR"`
	SharedSize     float64 `env:"SIMILARITY_SHARED_SIZE"`
}

// DefaultWeights returns the production weights.
func DefaultWeights() Weights {
	return Weights{
		Title:       10,
		Tags:        8,
		Collection:  6,
		Colors:      5,
		Sizes:       5,
		Description: 3,
		Fabric:      1,
		Care:        1,
		Shipping:    1,

		ExactMatch:     3,
		PrefixMatch:    2,
		SubstringMatch: 1,

		SameCollection: 10,
		SharedTag:      3,
		MaxSharedTags:  3,
		PriceBand:      2,
		PriceTolerance: 0.20,
		SharedColor:    1,
		SharedSize:     1,
	}
}

// Validate rejects negative weights and multipliers that do not rank
// exact above prefix above substring.
func (w Weights) Validate() error {
	var errs []error

	nonNegative := map[string]float64{
		"title": w.Title, "tags": w.Tags, "collection": w.Collection,
		"colors": w.Colors, "sizes": w.Sizes, "description": w.Description,
		"fabric": w.Fabric, "care": w.Care, "shipping": w.Shipping,
		"same collection": w.SameCollection, "shared tag": w.SharedTag,
		"price band": w.PriceBand, "shared color": w.SharedColor, "shared size": w.SharedSize,
	}
	for _, name := range sortedKeys(nonNegative) {
		if nonNegative[name] < 0 {
			errs = append(errs, fmt.Errorf("%s weight must not be negative", name))
		}
	}

	if w.SubstringMatch <= 0 {
		errs = append(errs, errors.New("substring match multiplier must be positive"))
	}
	if w.PrefixMatch <= w.SubstringMatch {
		errs = append(errs, errors.New("prefix match multiplier must exceed substring"))
	}
	if w.ExactMatch <= w.PrefixMatch {
		errs = append(errs, errors.New("exact match multiplier must exceed prefix"))
	}
	if w.MaxSharedTags < 0 {
		errs = append(errs, errors.New("max shared tags must not be negative"))
	}
	if w.PriceTolerance < 0 || w.PriceTolerance > 1 {
		errs = append(errs, errors.New("price tolerance must be between 0 and 1"))
	}

	return errors.Join(errs...)
}

// FieldWeight returns the weight configured for a MatchedIn field name.
func (w Weights) FieldWeight(field string) float64 {
	switch field {
	case domain.FieldTitle:
		return w.Title
	case domain.FieldTags:
		return w.Tags
	case domain.FieldCollection:
		return w.Collection
	case domain.FieldColors:
		return w.Colors
	case domain.FieldSizes:
		return w.Sizes
	case domain.FieldDescription:
		return w.Description
	case domain.FieldFabric:
		return w.Fabric
	case domain.FieldCare:
		return w.Care
	case domain.FieldShipping:
		return w.Shipping
	default:
		return 0
	}
}
