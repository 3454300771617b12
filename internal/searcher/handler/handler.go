// Package handler serves the search HTTP API.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/champion-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/champion-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/champion-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/champion-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/champion-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/champion-search/pkg/logger"
)

// Searcher is implemented by *executor.Executor.
type Searcher interface {
	Current() (*indexer.Snapshot, error)
	SearchIn(ctx context.Context, snap *indexer.Snapshot, query string, useChampions bool, limit int) (*executor.SearchResult, error)
}

type Handler struct {
	searcher     Searcher
	cache        *cache.QueryCache
	defaultLimit int
	maxResults   int
	logger       *slog.Logger
}

// New creates a Handler. queryCache may be nil to disable caching.
func New(searcher Searcher, queryCache *cache.QueryCache, cfg config.SearchConfig) *Handler {
	return &Handler{
		searcher:     searcher,
		cache:        queryCache,
		defaultLimit: cfg.DefaultLimit,
		maxResults:   cfg.MaxResults,
		logger:       slog.Default().With("component", "search-handler"),
	}
}

// Search handles GET /api/v1/search?q=...&champions=true|false&limit=N.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)
	params := r.URL.Query()

	if !params.Has("q") {
		h.writeError(w, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "query parameter 'q' is required"))
		return
	}
	query := params.Get("q")

	useChampions := false
	if v := params.Get("champions"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			h.writeError(w, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "champions must be a boolean, got %q", v))
			return
		}
		useChampions = parsed
	}

	limit := h.defaultLimit
	if v := params.Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			h.writeError(w, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "limit must be a positive integer"))
			return
		}
		limit = min(parsed, h.maxResults)
	}

	snap, err := h.searcher.Current()
	if err != nil {
		h.writeError(w, err)
		return
	}
	compute := func() (*executor.SearchResult, error) {
		return h.searcher.SearchIn(ctx, snap, query, useChampions, limit)
	}

	var result *executor.SearchResult
	cacheHit := false
	if h.cache != nil {
		result, cacheHit, err = h.cache.GetOrCompute(ctx, cache.Key(snap, query, useChampions, limit), compute)
	} else {
		result, err = compute()
	}
	if err != nil {
		log.Error("search execution failed", "query", query, "error", err)
		h.writeError(w, err)
		return
	}

	log.Info("search completed",
		"query", query,
		"champions", useChampions,
		"generation", result.Generation,
		"total_hits", result.TotalHits,
		"returned", len(result.Results),
		"cache_hit", cacheHit,
		"latency_ms", time.Since(start).Milliseconds(),
	)
	if h.cache != nil {
		if cacheHit {
			w.Header().Set("X-Cache", "HIT")
		} else {
			w.Header().Set("X-Cache", "MISS")
		}
	}
	h.writeJSON(w, http.StatusOK, result)
}

// IndexInfo describes the serving snapshot.
type IndexInfo struct {
	Generation        uint64    `json:"generation"`
	Documents         int       `json:"documents"`
	Terms             int       `json:"terms"`
	Postings          int       `json:"postings"`
	ChampionPostings  int       `json:"champion_postings"`
	ChampionThreshold int       `json:"champion_threshold"`
	LoadedAt          time.Time `json:"loaded_at"`
	BuiltAt           time.Time `json:"built_at"`
}

// Index handles GET /api/v1/index.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	snap, err := h.searcher.Current()
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, IndexInfo{
		Generation:        snap.Generation,
		Documents:         snap.NumDocs,
		Terms:             len(snap.Index),
		Postings:          snap.Index.TotalPostings(),
		ChampionPostings:  snap.Champions.TotalPostings(),
		ChampionThreshold: snap.ChampionThreshold,
		LoadedAt:          snap.LoadedAt,
		BuiltAt:           snap.BuiltAt,
	})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	stats := h.cache.Stats()
	total := stats.Hits + stats.Misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(stats.Hits) / float64(total) * 100
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":             stats.Hits,
		"misses":           stats.Misses,
		"total":            total,
		"hit_rate":         fmt.Sprintf("%.1f%%", hitRate),
		"circuit":          stats.Circuit,
		"circuit_rejected": stats.CircuitRejected,
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, apperrors.New(apperrors.ErrCacheUnavailable, http.StatusServiceUnavailable, "caching is disabled"))
		return
	}
	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		logger.FromContext(r.Context()).Error("cache invalidation failed", "error", err)
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

// writeError maps err to a status code. Messages of AppErrors reach the
// client; anything else is reported generically.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)
	message := http.StatusText(status)
	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &appErr):
		message = appErr.Message
	case errors.Is(err, apperrors.ErrIndexNotReady):
		message = "index not ready"
	}
	h.writeJSON(w, status, map[string]string{"error": message})
}
