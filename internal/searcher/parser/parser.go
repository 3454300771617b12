// Package parser turns raw query text into the idf-weighted query vector
// the ranker scores against.
package parser

import (
	"strings"

	"github.com/Adithya-Monish-Kumar-K/champion-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/champion-search/internal/indexer/tokenizer"
)

// QueryPlan is a tokenised query. Terms keeps every token, in query order,
// repeats included.
type QueryPlan struct {
	Terms    []string
	RawQuery string
}

// Parse tokenises query with analyzer (nil means the plain tokenizer).
// Words such as AND or OR are ordinary terms: queries are never evaluated
// as boolean expressions.
func Parse(query string, analyzer *tokenizer.Analyzer) *QueryPlan {
	plan := &QueryPlan{
		Terms:    make([]string, 0),
		RawQuery: query,
	}
	if strings.TrimSpace(query) == "" {
		return plan
	}
	plan.Terms = analyzer.Tokenize(query)
	return plan
}

// TermWeight is one non-zero-dimension of a QueryVector.
type TermWeight struct {
	Term   string  `json:"term"`
	Weight float64 `json:"weight"`
}

// QueryVector is a sparse query vector. Each term appears once, in order of
// first occurrence in the query.
type QueryVector []TermWeight

// Weight returns the weight of term and whether the term is in the vector.
func (qv QueryVector) Weight(term string) (float64, bool) {
	for _, tw := range qv {
		if tw.Term == term {
			return tw.Weight, true
		}
	}
	return 0, false
}

// Terms returns the vector's terms in order.
func (qv QueryVector) Terms() []string {
	terms := make([]string, len(qv))
	for i, tw := range qv {
		terms[i] = tw.Term
	}
	return terms
}

// Vectorize weights each distinct query term present in idx by
// log10(numDocs / df). Terms the index does not contain are left out. The
// query's own term frequencies are ignored: a term repeated in the query
// counts once.
func Vectorize(terms []string, idx index.Index, dfs index.DocFreqs, numDocs int) QueryVector {
	qv := make(QueryVector, 0, len(terms))
	seen := make(map[string]struct{}, len(terms))
	for _, term := range terms {
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}
		if !idx.Contains(term) {
			continue
		}
		df := dfs[term]
		if df <= 0 {
			continue
		}
		qv = append(qv, TermWeight{
			Term:   term,
			Weight: index.IDF(df, float64(numDocs)),
		})
	}
	return qv
}
