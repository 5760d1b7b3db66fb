package catalog

import (
	"math"
	"strconv"
	"strings"
	"unicode"
)

const fingerprintNameLength = 40

var noiseWords = map[string]bool{
	"set": true, "lot": true, "wholesale": true, "new": true,
	"pcs": true, "pc": true, "piece": true, "pieces": true,
	"hot": true, "sale": true, "free": true, "shipping": true,
	"fashion": true, "style": true, "high": true, "quality": true,
}

// Fingerprint returns the dedup key of a listing: its normalized name
// joined with the whole-dollar cost bucket. Names that differ only by case,
// punctuation or noise words collide when their costs share a bucket.
func Fingerprint(nameEn string, costUSD float64) string {
	return NormalizeName(nameEn) + "_" + strconv.Itoa(int(math.Floor(costUSD)))
}

// NormalizeName lowercases, strips non-alphanumerics and noise words, and
// truncates the remainder.
func NormalizeName(name string) string {
	words := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	var b strings.Builder
	for _, w := range words {
		if noiseWords[w] {
			continue
		}
		b.WriteString(w)
	}

	normalized := []rune(b.String())
	if len(normalized) > fingerprintNameLength {
		normalized = normalized[:fingerprintNameLength]
	}
	return string(normalized)
}

// Seen tracks fingerprints admitted during one sweep
type Seen map[string]struct{}

// Has reports whether the fingerprint was already registered
func (s Seen) Has(fp string) bool {
	_, ok := s[fp]
	return ok
}

// Add registers a fingerprint
func (s Seen) Add(fp string) {
	s[fp] = struct{}{}
}
