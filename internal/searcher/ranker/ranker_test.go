package ranker

import (
	"fmt"
	"math"
	"reflect"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/champion-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/champion-search/internal/searcher/parser"
)

func TestRankCosine(t *testing.T) {
	qv := parser.QueryVector{{Term: "a", Weight: 1}}
	idx := index.Index{"a": {{DocID: 0, Weight: 1}, {DocID: 1, Weight: 2}}}
	lengths := index.DocLengths{1, 1}

	got := Rank(Cosine{Lengths: lengths}, qv, idx, 0)
	want := []ScoredDoc{{DocID: 1, Score: 2.0}, {DocID: 0, Score: 1.0}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Rank = %v, want %v", got, want)
	}
}

func TestRankNormalisesByDocumentLengthOnly(t *testing.T) {
	qv := parser.QueryVector{{Term: "a", Weight: 2}, {Term: "b", Weight: 3}}
	idx := index.Index{
		"a": {{DocID: 0, Weight: 1}, {DocID: 1, Weight: 4}},
		"b": {{DocID: 0, Weight: 2}},
	}
	lengths := index.DocLengths{2, 8}
	got := Rank(Cosine{Lengths: lengths}, qv, idx, 0)
	want := []ScoredDoc{{DocID: 0, Score: (2*1 + 3*2) / 2.0}, {DocID: 1, Score: 2 * 4 / 8.0}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Rank = %v, want %v", got, want)
	}
}

func TestRankIsAdditiveNotConjunctive(t *testing.T) {
	qv := parser.QueryVector{{Term: "pop", Weight: 1}, {Term: "song", Weight: 1}}
	idx := index.Index{
		"pop":  {{DocID: 0, Weight: 1}, {DocID: 1, Weight: 1}},
		"song": {{DocID: 1, Weight: 1}, {DocID: 2, Weight: 1}},
	}
	lengths := index.DocLengths{1, 1, 1}
	got := Rank(Cosine{Lengths: lengths}, qv, idx, 0)
	if len(got) != 3 {
		t.Fatalf("documents matching a single term must still be ranked, got %v", got)
	}
	if got[0].DocID != 1 || got[0].Score != 2 {
		t.Fatalf("doc matching both terms should lead, got %v", got)
	}
}

func TestRankZeroLengthGuard(t *testing.T) {
	qv := parser.QueryVector{{Term: "a", Weight: 1}}
	idx := index.Index{"a": {{DocID: 0, Weight: 1}, {DocID: 1, Weight: 3}}}
	lengths := index.DocLengths{0, 3}
	got := Rank(Cosine{Lengths: lengths}, qv, idx, 0)
	want := []ScoredDoc{{DocID: 1, Score: 1}, {DocID: 0, Score: 0}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Rank = %v, want %v", got, want)
	}
	for _, d := range got {
		if math.IsNaN(d.Score) || math.IsInf(d.Score, 0) {
			t.Fatalf("non-finite score %v", d)
		}
	}
}

func TestRankUnknownDocumentLength(t *testing.T) {
	qv := parser.QueryVector{{Term: "a", Weight: 1}}
	idx := index.Index{"a": {{DocID: 7, Weight: 1}}}
	got := Rank(Cosine{Lengths: index.DocLengths{}}, qv, idx, 0)
	if len(got) != 1 || got[0].Score != 0 {
		t.Fatalf("Rank = %v, want doc 7 with score 0", got)
	}
}

func TestRankZeroIDFDocumentsSortLast(t *testing.T) {
	qv := parser.QueryVector{{Term: "common", Weight: 0}, {Term: "rare", Weight: 1}}
	idx := index.Index{
		"common": {{DocID: 0, Weight: 0}, {DocID: 1, Weight: 0}},
		"rare":   {{DocID: 1, Weight: 1}},
	}
	got := Rank(Cosine{Lengths: index.DocLengths{0, 1}}, qv, idx, 0)
	want := []ScoredDoc{{DocID: 1, Score: 1}, {DocID: 0, Score: 0}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Rank = %v, want %v", got, want)
	}
}

func TestRankTiesKeepAccumulationOrder(t *testing.T) {
	qv := parser.QueryVector{{Term: "x", Weight: 1}, {Term: "y", Weight: 1}}
	idx := index.Index{
		"x": {{DocID: 4, Weight: 1}, {DocID: 9, Weight: 1}},
		"y": {{DocID: 2, Weight: 1}},
	}
	lengths := make(index.DocLengths, 10)
	for i := range lengths {
		lengths[i] = 1
	}
	got := Rank(Cosine{Lengths: lengths}, qv, idx, 0)
	want := []ScoredDoc{{DocID: 4, Score: 1}, {DocID: 9, Score: 1}, {DocID: 2, Score: 1}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Rank = %v, want %v", got, want)
	}
}

func TestRankRoundingMergesNoise(t *testing.T) {
	a, b := 0.1, 0.2
	noisy := a + b
	if noisy == 0.3 {
		t.Skip("platform sums 0.1+0.2 exactly")
	}
	scores := newScores(1)
	scores.add(3, 0, noisy)
	scores.add(5, 0, 0.3)
	got := Sorted(scores, 0)
	if got[0].DocID != 3 || got[1].DocID != 5 {
		t.Fatalf("scores equal at 6 decimals must keep accumulation order, got %v", got)
	}
	if got[0].Score != noisy {
		t.Fatalf("returned score should be unrounded, got %v", got[0].Score)
	}
}

func TestRankLimit(t *testing.T) {
	qv := parser.QueryVector{{Term: "a", Weight: 1}}
	postings := make(index.PostingList, 0, 20)
	lengths := make(index.DocLengths, 20)
	for i := 0; i < 20; i++ {
		postings = append(postings, index.Posting{DocID: i, Weight: float64(i)})
		lengths[i] = 1
	}
	idx := index.Index{"a": postings}
	for _, limit := range []int{1, 5, 20, 50} {
		got := Rank(Cosine{Lengths: lengths}, qv, idx, limit)
		if want := min(limit, 20); len(got) != want {
			t.Fatalf("limit %d: got %d results", limit, len(got))
		}
		if got[0].DocID != 19 {
			t.Fatalf("limit %d: top result = %v", limit, got[0])
		}
	}
}

func TestRankEmptyQuery(t *testing.T) {
	got := Rank(Cosine{}, nil, index.Index{"a": {{DocID: 0, Weight: 1}}}, 10)
	if got == nil || len(got) != 0 {
		t.Fatalf("Rank with empty query = %#v, want empty non-nil slice", got)
	}
}

func TestRankMonotonicity(t *testing.T) {
	qv := parser.QueryVector{{Term: "a", Weight: 1.5}, {Term: "b", Weight: 0.5}}
	base := index.Index{
		"a": {{DocID: 0, Weight: 0.9}, {DocID: 1, Weight: 0.4}, {DocID: 2, Weight: 0.7}},
		"b": {{DocID: 1, Weight: 0.3}, {DocID: 3, Weight: 1.2}},
	}
	lengths := index.DocLengths{1, 1, 1, 1}
	position := func(ranked []ScoredDoc, docID int) int {
		for i, d := range ranked {
			if d.DocID == docID {
				return i
			}
		}
		return -1
	}
	before := Rank(Cosine{Lengths: lengths}, qv, base, 0)
	for _, bump := range []float64{0.01, 0.3, 1, 10} {
		boosted := index.Index{
			"a": {{DocID: 0, Weight: 0.9}, {DocID: 1, Weight: 0.4 + bump}, {DocID: 2, Weight: 0.7}},
			"b": base["b"],
		}
		after := Rank(Cosine{Lengths: lengths}, qv, boosted, 0)
		if position(after, 1) > position(before, 1) {
			t.Fatalf("bump %v moved doc 1 from %d to %d", bump, position(before, 1), position(after, 1))
		}
	}
}

func TestRound(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0.1234564, 0.123456},
		{0.1234565001, 0.123457},
		{2, 2},
		{0, 0},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.in), func(t *testing.T) {
			if got := Round(tt.in); got != tt.want {
				t.Fatalf("Round(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestScoresGet(t *testing.T) {
	qv := parser.QueryVector{{Term: "a", Weight: 2}}
	idx := index.Index{"a": {{DocID: 3, Weight: 1}}}
	scores := Cosine{Lengths: index.DocLengths{0, 0, 0, 4}}.Score(qv, idx)
	if v, ok := scores.Get(3); !ok || v != 0.5 {
		t.Fatalf("Get(3) = %v, %v", v, ok)
	}
	if _, ok := scores.Get(0); ok {
		t.Fatalf("doc 0 was never scored")
	}
	if scores.Len() != 1 {
		t.Fatalf("Len = %d", scores.Len())
	}
}
