package mapper

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	apperrors "github.com/Adithya-Monish-Kumar-K/review-term-analytics/pkg/errors"
)

// DefaultAccentMap maps the accented Spanish vowels to plain ones. ñ and ü
// are left alone.
var DefaultAccentMap = map[string]string{
	"á": "a",
	"é": "e",
	"í": "i",
	"ó": "o",
	"ú": "u",
}

// Normalizer turns a raw word into a comparable term. It is safe for
// concurrent use.
type Normalizer struct {
	replacer *strings.Replacer
}

// NewNormalizer builds a Normalizer from an accent map. A nil map selects
// DefaultAccentMap. Keys must be single runes; values must be lowercase and
// free of whitespace and combining marks.
func NewNormalizer(accents map[string]string) (*Normalizer, error) {
	if accents == nil {
		accents = DefaultAccentMap
	}
	folded := make(map[string]string, len(accents))
	for k, v := range accents {
		if utf8.RuneCountInString(k) != 1 {
			return nil, fmt.Errorf("%w: accent map key %q must be a single character", apperrors.ErrInvalidConfig, k)
		}
		for _, r := range v {
			if unicode.IsSpace(r) || unicode.IsMark(r) || unicode.IsUpper(r) {
				return nil, fmt.Errorf("%w: accent map value %q for %q must be lowercase without marks or spaces", apperrors.ErrInvalidConfig, v, k)
			}
		}
		folded[norm.NFC.String(strings.ToLower(k))] = v
	}
	keys := make([]string, 0, len(folded))
	for k := range folded {
		for _, v := range folded {
			if strings.Contains(v, k) {
				return nil, fmt.Errorf("%w: accent map value %q contains mapped character %q", apperrors.ErrInvalidConfig, v, k)
			}
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, k, folded[k])
	}
	return &Normalizer{replacer: strings.NewReplacer(pairs...)}, nil
}

// Normalize lowercases word, composes it to NFC, replaces mapped accents and
// trims surrounding whitespace. The steps repeat until the term stops
// changing, so Normalize(Normalize(w)) == Normalize(w). After the first
// pass a term only changes when NFC composes a combining mark into the
// preceding letter, so every further pass consumes at least one mark.
func (n *Normalizer) Normalize(word string) string {
	term := n.pass(word)
	for {
		next := n.pass(term)
		if next == term {
			return term
		}
		term = next
	}
}

func (n *Normalizer) pass(s string) string {
	s = norm.NFC.String(strings.ToLower(s))
	return strings.TrimSpace(n.replacer.Replace(s))
}
