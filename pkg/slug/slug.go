package slug

import (
	"regexp"
	"strings"
)

var (
	nonAlnum  = regexp.MustCompile(`[^a-z0-9]+`)
	validSlug = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
)

var accents = strings.NewReplacer(
	"à", "a", "á", "a", "â", "a", "ä", "a", "ã", "a", "å", "a",
	"ç", "c", "è", "e", "é", "e", "ê", "e", "ë", "e",
	"ì", "i", "í", "i", "î", "i", "ï", "i", "ı", "i",
	"ñ", "n", "ò", "o", "ó", "o", "ô", "o", "ö", "o", "ø", "o",
	"ù", "u", "ú", "u", "û", "u", "ü", "u", "ğ", "g", "ş", "s",
)

// Generate derives a URL slug from a product title, e.g.
// "Lunar Phase Hoodie" -> "lunar-phase-hoodie".
func Generate(title string) string {
	s := accents.Replace(strings.ToLower(strings.TrimSpace(title)))
	return strings.Trim(nonAlnum.ReplaceAllString(s, "-"), "-")
}

// Valid reports whether s is a well-formed slug.
func Valid(s string) bool {
	return len(s) <= 200 && validSlug.MatchString(s)
}
