// Package fixture generates deterministic apparel catalogs for local
// development, load tests and the in-memory catalog backend.
package fixture

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/utafrali/apparel-discovery/internal/domain"
	"github.com/utafrali/apparel-discovery/pkg/slug"
)

type collectionDef struct {
	Name   string
	Weight float64 // share of generated products; weights sum to 1.0
	Types  []string
	Tags   []string
}

var collections = []collectionDef{
	{Name: "Core", Weight: 0.30, Types: []string{"Hoodie", "Crew", "Tee", "Jogger"}, Tags: []string{"core", "bestseller", "essentials"}},
	{Name: "Lunar", Weight: 0.15, Types: []string{"Hoodie", "Crew", "Long Sleeve Tee"}, Tags: []string{"limited", "new", "graphic"}},
	{Name: "Trail", Weight: 0.15, Types: []string{"Shell Jacket", "Fleece", "Cargo Pant", "Cap"}, Tags: []string{"outdoor", "technical", "water-resistant"}},
	{Name: "Studio", Weight: 0.15, Types: []string{"Overshirt", "Pleated Trouser", "Knit Polo", "Cardigan"}, Tags: []string{"tailored", "smart", "new"}},
	{Name: "Coastline", Weight: 0.15, Types: []string{"Linen Shirt", "Swim Short", "Tee", "Bucket Hat"}, Tags: []string{"summer", "lightweight", "linen"}},
	{Name: "Archive", Weight: 0.10, Types: []string{"Hoodie", "Jacket", "Tee"}, Tags: []string{"sale", "archive", "last-chance"}},
}

var prefixes = []string{
	"Classic", "Washed", "Heavyweight", "Relaxed", "Cropped",
	"Oversized", "Garment Dyed", "Brushed", "Ribbed", "Boxy",
	"Vintage", "Midweight", "Organic", "Quilted", "Embroidered",
}

var colors = []string{
	"Black", "Navy", "Grey", "White", "Olive",
	"Sand", "Burgundy", "Forest", "Ecru", "Slate",
	"Rust", "Sky", "Charcoal", "Cream", "Indigo",
}

var sizeRuns = map[string][]string{
	"apparel":   {"XS", "S", "M", "L", "XL"},
	"bottoms":   {"28", "30", "32", "34", "36"},
	"accessory": {"One Size"},
}

var fabrics = []string{
	"100% organic cotton", "80% cotton, 20% recycled polyester", "100% linen",
	"Merino wool blend", "Recycled nylon ripstop", "Cotton twill",
}

var careNotes = []string{
	"Machine wash cold, hang dry",
	"Machine wash cold inside out, do not tumble dry",
	"Hand wash only, dry flat",
	"Dry clean recommended",
}

var shippingNotes = []string{
	"Ships in 1-2 business days",
	"Ships in 3-5 business days",
	"Made to order, ships in 2 weeks",
}

var descriptionTemplates = []string{
	"A %s cut for everyday wear, finished with reinforced seams.",
	"Our %s reworked with a softer hand feel and a cleaner silhouette.",
	"Built to layer: this %s pairs with everything in the collection.",
	"A wardrobe staple %s in a garment-dyed finish that softens with wear.",
}

// Options controls catalog generation.
type Options struct {
	Count int
	Seed  uint64
	// Now anchors created_at timestamps; products are spread over the
	// preceding 180 days.
	Now time.Time
}

// Generate builds opts.Count products. The same options always yield the
// same catalog, and every slug is valid and unique.
func Generate(opts Options) []domain.Product {
	if opts.Count <= 0 {
		return []domain.Product{}
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now().UTC()
	}
	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))

	products := make([]domain.Product, 0, opts.Count)
	idx := 0
	for i, c := range collections {
		n := int(float64(opts.Count) * c.Weight)
		if i == len(collections)-1 {
			n = opts.Count - idx
		}
		for j := 0; j < n; j++ {
			products = append(products, generateOne(rng, c, j, idx, opts.Now))
			idx++
		}
	}
	return products
}

func generateOne(rng *rand.Rand, c collectionDef, j, idx int, now time.Time) domain.Product {
	productType := c.Types[j%len(c.Types)]
	prefix := prefixes[rng.IntN(len(prefixes))]
	color := colors[rng.IntN(len(colors))]
	title := fmt.Sprintf("%s %s %s", prefix, color, productType)

	// Price in cents, rounded to the nearest dollar minus one cent.
	price := int64(2500+rng.IntN(22500))/100*100 - 1

	tags := []string{c.Tags[rng.IntN(len(c.Tags))]}
	if extra := c.Tags[rng.IntN(len(c.Tags))]; extra != tags[0] {
		tags = append(tags, extra)
	}

	productColors := []string{color}
	if rng.IntN(3) == 0 {
		if second := colors[rng.IntN(len(colors))]; second != color {
			productColors = append(productColors, second)
		}
	}

	age := time.Duration(rng.IntN(180*24)) * time.Hour
	s := fmt.Sprintf("%s-%d", slug.Generate(title), idx)

	return domain.Product{
		Slug:        s,
		Title:       title,
		Description: fmt.Sprintf(descriptionTemplates[rng.IntN(len(descriptionTemplates))], productType),
		Price:       price,
		Collection:  c.Name,
		Images:      []string{fmt.Sprintf("/images/%s/front.jpg", s), fmt.Sprintf("/images/%s/back.jpg", s)},
		InStock:     rng.IntN(100) < 85,
		Sizes:       append([]string(nil), sizeRuns[sizeRunFor(productType)]...),
		Colors:      productColors,
		Tags:        tags,
		Fabric:      fabrics[rng.IntN(len(fabrics))],
		Care:        careNotes[rng.IntN(len(careNotes))],
		Shipping:    shippingNotes[rng.IntN(len(shippingNotes))],
		Featured:    rng.IntN(100) < 5,
		Popularity:  int64(rng.IntN(500)),
		CreatedAt:   now.Add(-age).Truncate(time.Second),
	}
}

func sizeRunFor(productType string) string {
	switch productType {
	case "Jogger", "Cargo Pant", "Pleated Trouser", "Swim Short":
		return "bottoms"
	case "Cap", "Bucket Hat":
		return "accessory"
	default:
		return "apparel"
	}
}
