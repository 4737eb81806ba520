package mapper

import (
	"unicode"

	"github.com/Adithya-Monish-Kumar-K/review-term-analytics/internal/record"
	"github.com/Adithya-Monish-Kumar-K/review-term-analytics/internal/tokenizer"
)

// Filter accepts normalized terms of interest.
type Filter struct {
	stopwords tokenizer.Stopwords
}

// NewFilter builds a Filter. Stopwords are passed through normalizer so they
// compare equal to the normalized terms they are checked against.
func NewFilter(stopwords tokenizer.Stopwords, normalizer *Normalizer) *Filter {
	return &Filter{stopwords: stopwords.Map(normalizer.Normalize)}
}

// Accept reports whether term is neither a stopword nor empty and consists
// only of letters and digits.
func (f *Filter) Accept(term string) bool {
	if !isAlphanumeric(term) {
		return false
	}
	return !f.stopwords.Contains(term)
}

func isAlphanumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// Bucketize classifies a rating. The threshold is inclusive on the negative
// side: score <= threshold is negative.
func Bucketize(score float64, threshold float64) record.Bucket {
	if score <= threshold {
		return record.BucketNegative
	}
	return record.BucketPositive
}
