// Package cache stores ranked search results in Redis. Keys are derived from
// the analysed query terms, the retrieval mode, the result limit and the
// snapshot generation, so a rebuilt index never serves results cached from
// the previous one.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/champion-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/champion-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/champion-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/champion-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/champion-search/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/champion-search/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/champion-search/pkg/resilience"
)

const keyPrefix = "search:"

// Store is the subset of *pkgredis.Client the cache uses.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

type QueryCache struct {
	store   Store
	ttl     time.Duration
	group   singleflight.Group
	breaker *resilience.CircuitBreaker
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// Stats is a point-in-time view of cache effectiveness.
type Stats struct {
	Hits            int64  `json:"hits"`
	Misses          int64  `json:"misses"`
	Circuit         string `json:"circuit"`
	CircuitRejected uint64 `json:"circuit_rejected"`
}

// New creates a QueryCache over store. m may be nil.
func New(store Store, cfg config.RedisConfig, m *metrics.Metrics) *QueryCache {
	c := &QueryCache{
		store:   store,
		ttl:     cfg.CacheTTL,
		metrics: m,
		logger:  slog.Default().With("component", "query-cache"),
	}
	c.breaker = resilience.NewCircuitBreaker("redis-cache", resilience.CircuitBreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     15 * time.Second,
		OnStateChange: func(_, to resilience.State) {
			if m != nil {
				m.CacheCircuitState.Set(float64(to))
			}
		},
	})
	return c
}

// Key returns the cache key for query against snap. Queries that analyse to
// the same distinct terms in the same order share a key: repeats do not
// change the query vector, but term order decides ties.
func Key(snap *indexer.Snapshot, query string, useChampions bool, limit int) string {
	seen := make(map[string]struct{})
	var terms []string
	for tok := range snap.Analyzer.Tokens(query) {
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		terms = append(terms, tok)
	}
	raw := fmt.Sprintf("champions=%t|limit=%d|terms=%s", useChampions, limit, strings.Join(terms, "\x1f"))
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%sg%d:%x", keyPrefix, snap.Generation, hash[:16])
}

// Get looks key up. Store failures are logged and reported as misses.
func (c *QueryCache) Get(ctx context.Context, key string) (*executor.SearchResult, bool) {
	var data []byte
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		data, err = c.store.Get(ctx, key)
		if pkgredis.IsNilError(err) {
			data, err = nil, nil
		}
		return err
	})
	if err != nil {
		if !errors.Is(err, resilience.ErrCircuitOpen) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.recordMiss()
		return nil, false
	}
	if data == nil {
		c.recordMiss()
		return nil, false
	}
	var result executor.SearchResult
	if err := json.Unmarshal(data, &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.recordMiss()
		return nil, false
	}
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
	return &result, true
}

// Set stores result under key. Failures are logged, never returned.
func (c *QueryCache) Set(ctx context.Context, key string, result *executor.SearchResult) {
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.store.Set(ctx, key, data, c.ttl)
	})
	if err != nil && !errors.Is(err, resilience.ErrCircuitOpen) {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached result for key, or runs computeFn once per
// key across concurrent callers and caches what it returns. The bool reports
// a cache hit.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	key string,
	computeFn func() (*executor.SearchResult, error),
) (*executor.SearchResult, bool, error) {
	if result, ok := c.Get(ctx, key); ok {
		return result, true, nil
	}
	val, err, _ := c.group.Do(key, func() (any, error) {
		result, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, key, result)
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*executor.SearchResult), false, nil
}

// Invalidate deletes every cached result. It bypasses the circuit breaker,
// and a successful flush closes it since Redis has answered.
func (c *QueryCache) Invalidate(ctx context.Context) (int64, error) {
	deleted, err := c.store.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return deleted, fmt.Errorf("%w: invalidating cache: %w", apperrors.ErrCacheUnavailable, err)
	}
	c.breaker.Reset()
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

func (c *QueryCache) Stats() Stats {
	counts := c.breaker.Counts()
	return Stats{
		Hits:            c.hits.Load(),
		Misses:          c.misses.Load(),
		Circuit:         counts.State.String(),
		CircuitRejected: counts.Rejected,
	}
}

func (c *QueryCache) recordMiss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}
