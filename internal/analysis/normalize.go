// Package analysis holds the deterministic stages of gap analysis:
// categorization, semantic matching, density, dimensional scoring and
// recommendation ranking. Nothing in this package performs I/O.
package analysis

import (
	"strings"
	"unicode"

	"github.com/kljensen/snowball"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/gap-analysis/internal/model"
)

// snowballLanguages maps ISO 639-1 base languages to snowball stemmers.
var snowballLanguages = map[string]string{
	"en": "english",
	"es": "spanish",
	"fr": "french",
	"ru": "russian",
	"sv": "swedish",
	"no": "norwegian",
	"nb": "norwegian",
	"nn": "norwegian",
	"hu": "hungarian",
}

var englishStopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "for": true, "from": true, "has": true, "in": true,
	"is": true, "it": true, "of": true, "on": true, "or": true, "the": true,
	"to": true, "with": true, "per": true, "its": true, "their": true,
}

// Normalizer folds and stems text for a locale. The zero value is not
// usable; build one with NewNormalizer.
type Normalizer struct {
	tag      language.Tag
	base     string
	stemLang string
}

// NewNormalizer returns a Normalizer for a BCP 47 locale such as "en-US".
// Unknown or empty locales fold text but do not stem.
func NewNormalizer(locale string) *Normalizer {
	tag := language.Make(locale)
	base, _ := tag.Base()
	n := &Normalizer{tag: tag, base: base.String()}
	if locale == "" {
		n.base = "en"
	}
	n.stemLang = snowballLanguages[n.base]
	return n
}

// Fold lowercases s for the locale and strips diacritics.
func (n *Normalizer) Fold(s string) string {
	lower := cases.Lower(n.tag).String(s)
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, lower)
	if err != nil {
		return lower
	}
	return out
}

// Tokens returns the folded, stemmed, de-duplicated tokens of s in order of
// first appearance.
func (n *Normalizer) Tokens(s string) []string {
	words := strings.FieldsFunc(n.Fold(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]bool, len(words))
	out := make([]string, 0, len(words))
	for _, w := range words {
		if n.base == "en" && englishStopwords[w] {
			continue
		}
		stem := n.stem(w)
		if stem == "" || seen[stem] {
			continue
		}
		seen[stem] = true
		out = append(out, stem)
	}
	return out
}

func (n *Normalizer) stem(w string) string {
	if n.stemLang == "" {
		return w
	}
	s, err := snowball.Stem(w, n.stemLang, true)
	if err != nil || s == "" {
		return w
	}
	return s
}

// Key returns the grouping key of an (entity, attribute) pair.
func (n *Normalizer) Key(entity, attribute string) model.PairKey {
	return model.PairKey{
		Entity:    strings.Join(n.Tokens(entity), " "),
		Attribute: strings.Join(n.Tokens(attribute), " "),
	}
}

// PairTokens returns the combined token set of a pair key.
func PairTokens(k model.PairKey) []string {
	return dedupe(strings.Fields(k.Entity + " " + k.Attribute))
}

// Overlap is the Jaccard similarity |A∩B| / |A∪B| of two token sets, so a
// short label contained in a longer one does not score as identical.
// Identical non-empty sets score 1 and disjoint or empty sets score 0.
func Overlap(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]bool, len(a))
	for _, t := range a {
		set[t] = true
	}
	inter := 0
	seen := make(map[string]bool, len(b))
	for _, t := range b {
		if set[t] && !seen[t] {
			inter++
		}
		seen[t] = true
	}
	union := len(set) + len(seen) - inter
	return float64(inter) / float64(union)
}

// NormalizeQuery lowercases, trims and collapses whitespace. Performance
// records match generated queries only when these forms are equal.
func NormalizeQuery(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}

func dedupe(tokens []string) []string {
	seen := make(map[string]bool, len(tokens))
	out := tokens[:0:0]
	for _, t := range tokens {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}
