// Package mapper turns reviews into unit (term, category, bucket)
// observations: every word is normalized, filtered, and emitted with the
// review's category and sentiment bucket.
package mapper

import (
	"github.com/Adithya-Monish-Kumar-K/review-term-analytics/internal/record"
	"github.com/Adithya-Monish-Kumar-K/review-term-analytics/internal/review"
	"github.com/Adithya-Monish-Kumar-K/review-term-analytics/internal/tokenizer"
)

// DefaultThreshold is the rating at or below which a review is negative.
const DefaultThreshold = 3

// TokenizeFunc splits text into words.
type TokenizeFunc func(text string) []string

// Options configures a Mapper. Zero Tokenize selects tokenizer.Tokenize and a
// nil Stopwords selects the built-in Spanish list.
type Options struct {
	Threshold float64
	Stopwords tokenizer.Stopwords
	AccentMap map[string]string
	Tokenize  TokenizeFunc
}

// Mapper holds the read-only state needed to map reviews. A single Mapper
// can be shared by concurrent workers.
type Mapper struct {
	normalizer *Normalizer
	filter     *Filter
	threshold  float64
	tokenize   TokenizeFunc
}

func New(opts Options) (*Mapper, error) {
	normalizer, err := NewNormalizer(opts.AccentMap)
	if err != nil {
		return nil, err
	}
	stopwords := opts.Stopwords
	if stopwords == nil {
		stopwords = tokenizer.Spanish()
	}
	tokenize := opts.Tokenize
	if tokenize == nil {
		tokenize = tokenizer.Tokenize
	}
	return &Mapper{
		normalizer: normalizer,
		filter:     NewFilter(stopwords, normalizer),
		threshold:  opts.Threshold,
		tokenize:   tokenize,
	}, nil
}

// MapTo emits one observation with count 1 per accepted word of r.Content.
// Repeated words are emitted repeatedly. It stops at the first emit error.
func (m *Mapper) MapTo(r review.Review, emit func(record.Observation) error) error {
	bucket := Bucketize(r.Rate, m.threshold)
	for _, word := range m.tokenize(r.Content) {
		term := m.normalizer.Normalize(word)
		if !m.filter.Accept(term) {
			continue
		}
		if err := emit(record.Observation{
			Term:     term,
			Category: r.Category,
			Bucket:   bucket,
			Count:    1,
		}); err != nil {
			return err
		}
	}
	return nil
}

// Map returns the observations for r.
func (m *Mapper) Map(r review.Review) []record.Observation {
	var out []record.Observation
	m.MapTo(r, func(o record.Observation) error {
		out = append(out, o)
		return nil
	})
	return out
}

func (m *Mapper) Normalizer() *Normalizer {
	return m.normalizer
}

func (m *Mapper) Filter() *Filter {
	return m.filter
}
