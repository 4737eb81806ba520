// Package ranker orders scored terms into one table per (category, bucket).
package ranker

import (
	"sort"

	"github.com/Adithya-Monish-Kumar-K/review-term-analytics/internal/scoring"
)

type ScoredTerm struct {
	Term  string  `json:"term"`
	Score float64 `json:"score"`
}

type Table struct {
	Scope scoring.Scope
	Rows  []ScoredTerm
}

// Rank sorts the terms of one scope by score descending, ties broken by
// term ascending. limit > 0 keeps only the first limit rows.
func Rank(terms map[string]float64, limit int) []ScoredTerm {
	result := make([]ScoredTerm, 0, len(terms))
	for term, score := range terms {
		result = append(result, ScoredTerm{Term: term, Score: score})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Score != result[j].Score {
			return result[i].Score > result[j].Score
		}
		return result[i].Term < result[j].Term
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}

// Tables ranks every scope. Tables come back ordered by category, then
// bucket, so repeated runs produce the same sequence.
func Tables(scores scoring.Scores, limit int) []Table {
	tables := make([]Table, 0, len(scores))
	for scope, terms := range scores {
		tables = append(tables, Table{Scope: scope, Rows: Rank(terms, limit)})
	}
	sort.Slice(tables, func(i, j int) bool {
		a, b := tables[i].Scope, tables[j].Scope
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		return a.Bucket < b.Bucket
	})
	return tables
}
