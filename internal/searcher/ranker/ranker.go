// Package ranker scores documents against a query vector and orders them.
package ranker

import (
	"cmp"
	"math"
	"slices"

	"github.com/Adithya-Monish-Kumar-K/champion-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/champion-search/internal/searcher/parser"
)

// ScoreDecimals is the precision scores are rounded to for ordering, so
// floating-point noise cannot reorder results across platforms.
const ScoreDecimals = 6

type ScoredDoc struct {
	DocID int     `json:"doc_id"`
	Score float64 `json:"score"`
}

type scoreEntry struct {
	docID int
	score float64
	// firstTerm is the position in the query vector of the first term that
	// gave this document a non-zero contribution.
	firstTerm int
	// key is score rounded to ScoreDecimals, filled in by Sorted.
	key float64
}

// Scores holds per-document scores produced by a Scorer.
type Scores struct {
	pos     map[int]int
	entries []scoreEntry
	terms   int
}

func newScores(terms int) *Scores {
	return &Scores{
		pos:     make(map[int]int, 64),
		entries: make([]scoreEntry, 0, 64),
		terms:   terms,
	}
}

func (s *Scores) add(docID int, term int, v float64) {
	i, ok := s.pos[docID]
	if !ok {
		i = len(s.entries)
		s.pos[docID] = i
		s.entries = append(s.entries, scoreEntry{docID: docID, firstTerm: s.terms})
	}
	e := &s.entries[i]
	if v != 0 && e.firstTerm > term {
		e.firstTerm = term
	}
	e.score += v
}

// Get returns the score of docID.
func (s *Scores) Get(docID int) (float64, bool) {
	i, ok := s.pos[docID]
	if !ok {
		return 0, false
	}
	return s.entries[i].score, true
}

// Len returns the number of scored documents.
func (s *Scores) Len() int {
	return len(s.entries)
}

// Scorer scores every document reachable from the query's postings in idx.
type Scorer interface {
	Score(qv parser.QueryVector, idx index.Index) *Scores
}

// Cosine is document-length-normalised cosine similarity: the dot product of
// query and document vectors divided by the document length only.
type Cosine struct {
	Lengths index.DocLengths
}

// Score accumulates qw*dw over every posting of every query term, then
// divides each non-zero sum by the document's length. A document whose
// length is 0 scores 0. Every document found in the postings is scored,
// including those that match only some of the query terms.
func (c Cosine) Score(qv parser.QueryVector, idx index.Index) *Scores {
	scores := newScores(len(qv))
	for t, tw := range qv {
		for _, p := range idx[tw.Term] {
			scores.add(p.DocID, t, tw.Weight*p.Weight)
		}
	}
	for i := range scores.entries {
		e := &scores.entries[i]
		if e.score == 0 {
			continue
		}
		length := c.Lengths.Len(e.docID)
		if length == 0 {
			e.score = 0
			continue
		}
		e.score /= length
	}
	return scores
}

// Rank scores the query with scorer and returns documents by descending
// score. limit <= 0 returns every scored document.
func Rank(scorer Scorer, qv parser.QueryVector, idx index.Index, limit int) []ScoredDoc {
	if len(qv) == 0 {
		return []ScoredDoc{}
	}
	return Sorted(scorer.Score(qv, idx), limit)
}

// Sorted orders scores by descending score compared at ScoreDecimals
// precision. Ties go to the document first scored when the postings are
// walked in doc-id order: lower position of the first contributing query
// term, then lower doc id. This is the accumulation order over a full index,
// and it does not change when the postings come from a champion index.
func Sorted(scores *Scores, limit int) []ScoredDoc {
	entries := slices.Clone(scores.entries)
	for i := range entries {
		entries[i].key = Round(entries[i].score)
	}
	slices.SortFunc(entries, func(a, b scoreEntry) int {
		if c := cmp.Compare(b.key, a.key); c != 0 {
			return c
		}
		if c := cmp.Compare(a.firstTerm, b.firstTerm); c != 0 {
			return c
		}
		return cmp.Compare(a.docID, b.docID)
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	result := make([]ScoredDoc, len(entries))
	for i, e := range entries {
		result[i] = ScoredDoc{DocID: e.docID, Score: e.score}
	}
	return result
}

// Round rounds v to ScoreDecimals decimal places.
func Round(v float64) float64 {
	const scale = 1e6
	return math.Round(v*scale) / scale
}
