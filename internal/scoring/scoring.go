// Package scoring turns an Aggregate into per-scope term scores. A term's
// score in a (category, bucket) scope is its share of that scope's count
// multiplied by a corpus-wide weight that shrinks as the term shows up in
// more categories.
package scoring

import (
	"fmt"
	"math"

	"github.com/Adithya-Monish-Kumar-K/review-term-analytics/internal/record"
	"github.com/Adithya-Monish-Kumar-K/review-term-analytics/internal/reducer"
	apperrors "github.com/Adithya-Monish-Kumar-K/review-term-analytics/pkg/errors"
)

// Scope identifies one output table.
type Scope struct {
	Category string
	Bucket   record.Bucket
}

func (s Scope) String() string {
	return s.Category + "/" + string(s.Bucket)
}

// Frequencies maps scope -> term -> share of the scope total.
type Frequencies map[Scope]map[string]float64

// Scores maps scope -> term -> final score.
type Scores map[Scope]map[string]float64

// TermFrequencies computes each term's share of its scope total. Every scope
// present in agg must have a positive total.
func TermFrequencies(agg reducer.Aggregate) (Frequencies, error) {
	out := make(Frequencies)
	for bucket, categories := range agg {
		for category, terms := range categories {
			scope := Scope{Category: category, Bucket: bucket}
			var total int64
			for _, count := range terms {
				total += count
			}
			if total <= 0 {
				return nil, fmt.Errorf("%w: %s", apperrors.ErrEmptyScope, scope)
			}
			tf := make(map[string]float64, len(terms))
			for term, count := range terms {
				tf[term] = float64(count) / float64(total)
			}
			out[scope] = tf
		}
	}
	return out, nil
}

// categorySets records, per term, the categories it appears in under any
// bucket. Only set sizes are read.
func categorySets(agg reducer.Aggregate) map[string]map[string]struct{} {
	sets := make(map[string]map[string]struct{})
	for _, categories := range agg {
		for category, terms := range categories {
			for term := range terms {
				set, ok := sets[term]
				if !ok {
					set = make(map[string]struct{})
					sets[term] = set
				}
				set[category] = struct{}{}
			}
		}
	}
	return sets
}

// Weights computes log(N / |categories containing term|) for every term,
// where N is the number of distinct categories in agg.
func Weights(agg reducer.Aggregate) (map[string]float64, error) {
	total := len(agg.Categories())
	sets := categorySets(agg)
	weights := make(map[string]float64, len(sets))
	for term, set := range sets {
		w, err := Weight(total, len(set))
		if err != nil {
			return nil, fmt.Errorf("term %q: %w", term, err)
		}
		weights[term] = w
	}
	return weights, nil
}

// Weight is the discrimination weight of a term found in n of total
// categories.
func Weight(total, n int) (float64, error) {
	if n <= 0 || total < n {
		return 0, fmt.Errorf("%w: term in %d of %d categories", apperrors.ErrNoCategories, n, total)
	}
	return math.Log(float64(total) / float64(n)), nil
}

// Compute runs both passes and multiplies TF by weight.
func Compute(agg reducer.Aggregate) (Scores, error) {
	tfs, err := TermFrequencies(agg)
	if err != nil {
		return nil, err
	}
	weights, err := Weights(agg)
	if err != nil {
		return nil, err
	}
	scores := make(Scores, len(tfs))
	for scope, terms := range tfs {
		s := make(map[string]float64, len(terms))
		for term, tf := range terms {
			w, ok := weights[term]
			if !ok {
				return nil, fmt.Errorf("%w: no weight for %q", apperrors.ErrNoCategories, term)
			}
			s[term] = tf * w
		}
		scores[scope] = s
	}
	return scores, nil
}
