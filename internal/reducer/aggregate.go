package reducer

import (
	"sort"

	"github.com/Adithya-Monish-Kumar-K/review-term-analytics/internal/record"
)

// Aggregate holds total counts as bucket -> category -> term -> count.
type Aggregate map[record.Bucket]map[string]map[string]int64

func NewAggregate() Aggregate {
	return make(Aggregate)
}

// Add increments the count of (term, category, bucket) by o.Count. Zero
// counts are ignored so no leaf ever holds 0.
func (a Aggregate) Add(o record.Observation) {
	if o.Count == 0 {
		return
	}
	categories, ok := a[o.Bucket]
	if !ok {
		categories = make(map[string]map[string]int64)
		a[o.Bucket] = categories
	}
	terms, ok := categories[o.Category]
	if !ok {
		terms = make(map[string]int64)
		categories[o.Category] = terms
	}
	terms[o.Term] += o.Count
}

// Count returns the total for (term, category, bucket), or 0.
func (a Aggregate) Count(term string, category string, bucket record.Bucket) int64 {
	return a[bucket][category][term]
}

// Merge sums every count of other into a.
func (a Aggregate) Merge(other Aggregate) {
	for bucket, categories := range other {
		for category, terms := range categories {
			for term, count := range terms {
				a.Add(record.Observation{Term: term, Category: category, Bucket: bucket, Count: count})
			}
		}
	}
}

// Buckets returns the buckets present, sorted.
func (a Aggregate) Buckets() []record.Bucket {
	out := make([]record.Bucket, 0, len(a))
	for b := range a {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Categories returns the distinct categories across all buckets, sorted.
func (a Aggregate) Categories() []string {
	seen := make(map[string]struct{})
	for _, categories := range a {
		for c := range categories {
			seen[c] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Size returns the number of (term, category, bucket) entries.
func (a Aggregate) Size() int {
	n := 0
	for _, categories := range a {
		for _, terms := range categories {
			n += len(terms)
		}
	}
	return n
}
