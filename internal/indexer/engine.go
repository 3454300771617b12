// Package indexer builds immutable index snapshots from a corpus and holds
// the snapshot currently being served.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/champion-search/internal/indexer/corpus"
	"github.com/Adithya-Monish-Kumar-K/champion-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/champion-search/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/champion-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/champion-search/pkg/metrics"
)

// Build stages, in execution order.
const (
	StageTokenize   = "tokenize"
	StageDocFreqs   = "doc_freqs"
	StageTFIDF      = "tfidf"
	StageDocLengths = "doc_lengths"
	StageChampions  = "champions"
)

// BuildOptions configures Build.
type BuildOptions struct {
	// ChampionThreshold is the champion list size K. It must be positive.
	ChampionThreshold int
	// Analyzer tokenizes documents, and later queries. Nil means the plain
	// tokenizer.
	Analyzer *tokenizer.Analyzer
	// OnStage, if set, is called after each build stage.
	OnStage func(stage string, elapsed time.Duration)
}

// DefaultBuildOptions returns options with the default champion threshold
// and the plain tokenizer.
func DefaultBuildOptions() BuildOptions {
	return BuildOptions{ChampionThreshold: index.DefaultChampionThreshold}
}

func (o BuildOptions) threshold() (int, error) {
	if o.ChampionThreshold <= 0 {
		return 0, fmt.Errorf("champion threshold %d: %w", o.ChampionThreshold, index.ErrInvalidChampionThreshold)
	}
	return o.ChampionThreshold, nil
}

// Snapshot is an immutable, fully built index. Nothing modifies a Snapshot
// after Build returns it, so any number of goroutines may read it.
type Snapshot struct {
	NumDocs           int
	Index             index.Index
	DocFreqs          index.DocFreqs
	DocLengths        index.DocLengths
	Champions         index.Index
	ChampionThreshold int
	Analyzer          *tokenizer.Analyzer
	Generation        uint64
	// LoadedAt is when the corpus behind this snapshot was read. Edits made
	// after it are not reflected in the snapshot.
	LoadedAt time.Time
	BuiltAt  time.Time
}

// Select returns the champion index when useChampions is set, else the full
// index.
func (s *Snapshot) Select(useChampions bool) index.Index {
	if useChampions {
		return s.Champions
	}
	return s.Index
}

// Build runs the sequential pipeline tokenize → document frequencies →
// tf-idf index → document lengths → champion lists over docs, where a
// document's id is its position in docs.
func Build(docs []string, opts BuildOptions) (*Snapshot, error) {
	k, err := opts.threshold()
	if err != nil {
		return nil, err
	}
	analyzer := opts.Analyzer
	if analyzer == nil {
		analyzer = tokenizer.NewAnalyzer(tokenizer.Options{})
	}
	stage := func(name string, start time.Time) {
		if opts.OnStage != nil {
			opts.OnStage(name, time.Since(start))
		}
	}

	start := time.Now()
	loadedAt := start.UTC()
	tokenized := make([][]string, len(docs))
	for i, doc := range docs {
		tokenized[i] = analyzer.Tokenize(doc)
	}
	stage(StageTokenize, start)

	start = time.Now()
	dfs := index.CountDocFrequencies(tokenized)
	stage(StageDocFreqs, start)

	start = time.Now()
	full := index.BuildTFIDF(tokenized, dfs)
	stage(StageTFIDF, start)

	start = time.Now()
	lengths := index.ComputeDocLengths(full, len(docs))
	stage(StageDocLengths, start)

	start = time.Now()
	champions, err := index.BuildChampions(full, k)
	if err != nil {
		return nil, err
	}
	stage(StageChampions, start)

	return &Snapshot{
		NumDocs:           len(docs),
		Index:             full,
		DocFreqs:          dfs,
		DocLengths:        lengths,
		Champions:         champions,
		ChampionThreshold: k,
		Analyzer:          analyzer,
		LoadedAt:          loadedAt,
		BuiltAt:           time.Now().UTC(),
	}, nil
}

// Engine owns the snapshot being served. Readers call Snapshot and keep the
// pointer for the duration of a query; Rebuild swaps in a new snapshot
// without disturbing them.
type Engine struct {
	current    atomic.Pointer[Snapshot]
	generation atomic.Uint64
	rebuildMu  sync.Mutex
	source     corpus.Source
	opts       BuildOptions
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewEngine creates an Engine that builds from source. m may be nil.
func NewEngine(source corpus.Source, opts BuildOptions, m *metrics.Metrics) (*Engine, error) {
	if _, err := opts.threshold(); err != nil {
		return nil, err
	}
	if opts.Analyzer == nil {
		opts.Analyzer = tokenizer.NewAnalyzer(tokenizer.Options{})
	}
	e := &Engine{
		source:  source,
		opts:    opts,
		metrics: m,
		logger:  slog.Default().With("component", "indexer"),
	}
	if m != nil {
		onStage := opts.OnStage
		e.opts.OnStage = func(stage string, elapsed time.Duration) {
			m.IndexBuildStage.WithLabelValues(stage).Observe(elapsed.Seconds())
			if onStage != nil {
				onStage(stage, elapsed)
			}
		}
	}
	return e, nil
}

// Snapshot returns the snapshot being served, or nil before the first
// successful build.
func (e *Engine) Snapshot() *Snapshot {
	return e.current.Load()
}

// Current is like Snapshot but reports an error when no snapshot exists yet.
func (e *Engine) Current() (*Snapshot, error) {
	snap := e.current.Load()
	if snap == nil {
		return nil, apperrors.ErrIndexNotReady
	}
	return snap, nil
}

// Rebuild loads the corpus, builds a fresh snapshot and swaps it in. A
// failed rebuild, or one whose ctx ends before the new snapshot is installed,
// leaves the previous snapshot serving. Concurrent calls are serialised.
func (e *Engine) Rebuild(ctx context.Context) (*Snapshot, error) {
	e.rebuildMu.Lock()
	defer e.rebuildMu.Unlock()

	start := time.Now()
	docs, err := e.source.Load(ctx)
	if err != nil {
		e.recordBuild("error")
		return nil, fmt.Errorf("loading corpus from %s: %w", e.source.Name(), err)
	}
	if err := ctx.Err(); err != nil {
		e.recordBuild("cancelled")
		return nil, err
	}
	snap, err := Build(docs, e.opts)
	if err != nil {
		e.recordBuild("error")
		return nil, fmt.Errorf("building index: %w", err)
	}
	if err := ctx.Err(); err != nil {
		e.recordBuild("cancelled")
		e.logger.Warn("discarding index snapshot built after cancellation",
			"source", e.source.Name(),
			"documents", snap.NumDocs,
			"duration", time.Since(start),
		)
		return nil, err
	}
	snap.LoadedAt = start.UTC()
	e.install(snap)
	e.logger.Info("index snapshot built",
		"source", e.source.Name(),
		"generation", snap.Generation,
		"documents", snap.NumDocs,
		"terms", len(snap.Index),
		"postings", snap.Index.TotalPostings(),
		"champion_postings", snap.Champions.TotalPostings(),
		"champion_threshold", snap.ChampionThreshold,
		"duration", time.Since(start),
	)
	return snap, nil
}

// Swap installs an externally built snapshot, assigning it the next
// generation, and returns the one it replaced.
func (e *Engine) Swap(snap *Snapshot) *Snapshot {
	e.rebuildMu.Lock()
	defer e.rebuildMu.Unlock()
	prev := e.current.Load()
	e.install(snap)
	return prev
}

// Analyzer returns the analyzer snapshots are built with.
func (e *Engine) Analyzer() *tokenizer.Analyzer {
	return e.opts.Analyzer
}

func (e *Engine) install(snap *Snapshot) {
	snap.Generation = e.generation.Add(1)
	e.current.Store(snap)
	e.recordBuild("ok")
	if e.metrics != nil {
		e.metrics.IndexDocuments.Set(float64(snap.NumDocs))
		e.metrics.IndexTerms.Set(float64(len(snap.Index)))
		e.metrics.IndexPostings.WithLabelValues("full").Set(float64(snap.Index.TotalPostings()))
		e.metrics.IndexPostings.WithLabelValues("champion").Set(float64(snap.Champions.TotalPostings()))
		e.metrics.IndexGeneration.Set(float64(snap.Generation))
	}
}

func (e *Engine) recordBuild(status string) {
	if e.metrics != nil {
		e.metrics.IndexBuildsTotal.WithLabelValues(status).Inc()
	}
}
