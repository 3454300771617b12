// Package executor is the query entry point: it tokenises a query,
// vectorises it against the serving snapshot and ranks documents from
// either the full or the champion index.
package executor

import (
	"context"
	"time"

	"github.com/Adithya-Monish-Kumar-K/champion-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/champion-search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/champion-search/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/champion-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/champion-search/pkg/metrics"
)

type SearchResult struct {
	Query        string             `json:"query"`
	UseChampions bool               `json:"use_champions"`
	Terms        []string           `json:"terms"`
	TotalHits    int                `json:"total_hits"`
	Results      []ranker.ScoredDoc `json:"results"`
	Generation   uint64             `json:"generation"`
}

// SnapshotSource hands out the snapshot to query. *indexer.Engine
// implements it.
type SnapshotSource interface {
	Current() (*indexer.Snapshot, error)
}

type Executor struct {
	snapshots SnapshotSource
	metrics   *metrics.Metrics
}

// New creates an Executor over src. m may be nil.
func New(src SnapshotSource, m *metrics.Metrics) *Executor {
	return &Executor{
		snapshots: src,
		metrics:   m,
	}
}

// ForSnapshot creates an Executor that always queries snap.
func ForSnapshot(snap *indexer.Snapshot) *Executor {
	return New(fixedSource{snap: snap}, nil)
}

// Search ranks every matching document.
func (e *Executor) Search(ctx context.Context, query string, useChampions bool) (*SearchResult, error) {
	return e.SearchTop(ctx, query, useChampions, 0)
}

// SearchTop ranks documents and keeps the first limit of them; limit <= 0
// keeps all. TotalHits counts every scored document before truncation.
func (e *Executor) SearchTop(ctx context.Context, query string, useChampions bool, limit int) (*SearchResult, error) {
	snap, err := e.Current()
	if err != nil {
		return nil, err
	}
	return e.SearchIn(ctx, snap, query, useChampions, limit)
}

// Current returns the snapshot queries would run against right now. Callers
// that key anything on the snapshot generation pass it back to SearchIn so
// the key and the results agree.
func (e *Executor) Current() (*indexer.Snapshot, error) {
	return e.snapshots.Current()
}

// SearchIn is SearchTop against a given snapshot.
func (e *Executor) SearchIn(ctx context.Context, snap *indexer.Snapshot, query string, useChampions bool, limit int) (*SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	result := Run(snap, query, useChampions, limit)
	elapsed := time.Since(start)

	mode := modeLabel(useChampions)
	if e.metrics != nil {
		resultType := "hit"
		if result.TotalHits == 0 {
			resultType = "zero_result"
		}
		e.metrics.SearchQueriesTotal.WithLabelValues(mode, resultType).Inc()
		e.metrics.SearchLatency.WithLabelValues(mode).Observe(elapsed.Seconds())
		e.metrics.SearchResultsCount.WithLabelValues(mode).Observe(float64(result.TotalHits))
	}
	logger.FromContext(ctx).Debug("query executed",
		"component", "query-executor",
		"query", query,
		"mode", mode,
		"terms", result.Terms,
		"total_hits", result.TotalHits,
		"returned", len(result.Results),
		"generation", result.Generation,
		"elapsed", elapsed,
	)
	return result, nil
}

// Run executes a query against snap. It reads snap only, so it is safe to
// call from any number of goroutines.
func Run(snap *indexer.Snapshot, query string, useChampions bool, limit int) *SearchResult {
	plan := parser.Parse(query, snap.Analyzer)
	qv := parser.Vectorize(plan.Terms, snap.Index, snap.DocFreqs, snap.NumDocs)
	scorer := ranker.Cosine{Lengths: snap.DocLengths}
	idx := snap.Select(useChampions)

	result := &SearchResult{
		Query:        query,
		UseChampions: useChampions,
		Terms:        qv.Terms(),
		Results:      []ranker.ScoredDoc{},
		Generation:   snap.Generation,
	}
	if len(qv) == 0 {
		return result
	}
	scores := scorer.Score(qv, idx)
	result.TotalHits = scores.Len()
	result.Results = ranker.Sorted(scores, limit)
	return result
}

func modeLabel(useChampions bool) string {
	if useChampions {
		return "champion"
	}
	return "full"
}

type fixedSource struct {
	snap *indexer.Snapshot
}

func (f fixedSource) Current() (*indexer.Snapshot, error) {
	return f.snap, nil
}
