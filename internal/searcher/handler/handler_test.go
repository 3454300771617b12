package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Adithya-Monish-Kumar-K/champion-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/champion-search/internal/indexer/corpus"
	"github.com/Adithya-Monish-Kumar-K/champion-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/champion-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/champion-search/pkg/config"
)

var docs = []string{
	"Pop love song about a summer city romance.",
	"A Chinese American family moves to the city.",
	"Love, love, love: the pop song that topped every chart!",
	"City lights, city nights, and a love song on the radio.",
}

type mapStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (s *mapStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.data[key]; ok {
		return v, nil
	}
	return nil, redis.Nil
}

func (s *mapStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *mapStore) FlushByPattern(context.Context, string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := int64(len(s.data))
	clear(s.data)
	return n, nil
}

func newHandler(t *testing.T, withCache bool) *Handler {
	t.Helper()
	opts := indexer.DefaultBuildOptions()
	opts.ChampionThreshold = 1
	snap, err := indexer.Build(docs, opts)
	if err != nil {
		t.Fatal(err)
	}
	var qc *cache.QueryCache
	if withCache {
		qc = cache.New(&mapStore{data: map[string][]byte{}}, config.RedisConfig{}, nil)
	}
	return New(executor.ForSnapshot(snap), qc, config.SearchConfig{DefaultLimit: 2, MaxResults: 3})
}

func get(t *testing.T, h http.HandlerFunc, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) executor.SearchResult {
	t.Helper()
	var res executor.SearchResult
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return res
}

func TestSearch(t *testing.T) {
	h := newHandler(t, false)
	rec := get(t, h.Search, "/api/v1/search?q=love+song")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	res := decode(t, rec)
	if len(res.Results) != 2 || res.TotalHits != 3 {
		t.Fatalf("results = %+v, total = %d", res.Results, res.TotalHits)
	}
	if res.UseChampions {
		t.Fatal("champions should default to false")
	}
}

func TestSearchChampionsAndLimit(t *testing.T) {
	h := newHandler(t, false)
	res := decode(t, get(t, h.Search, "/api/v1/search?q=city&champions=true&limit=50"))
	if !res.UseChampions || len(res.Results) != 1 {
		t.Fatalf("champion search with K=1 = %+v", res)
	}
	res = decode(t, get(t, h.Search, "/api/v1/search?q=city+love+pop+song&limit=50"))
	if len(res.Results) != 3 {
		t.Fatalf("limit should clamp to maxResults, got %d results", len(res.Results))
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	h := newHandler(t, false)
	rec := get(t, h.Search, "/api/v1/search?q=")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if res := decode(t, rec); res.Results == nil || len(res.Results) != 0 {
		t.Fatalf("results = %#v", res.Results)
	}
}

func TestSearchBadRequests(t *testing.T) {
	h := newHandler(t, false)
	for _, target := range []string{
		"/api/v1/search",
		"/api/v1/search?q=city&limit=0",
		"/api/v1/search?q=city&limit=ten",
		"/api/v1/search?q=city&champions=maybe",
	} {
		if rec := get(t, h.Search, target); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", target, rec.Code)
		}
	}
}

func TestSearchIndexNotReady(t *testing.T) {
	engine, err := indexer.NewEngine(corpus.Static(docs), indexer.DefaultBuildOptions(), nil)
	if err != nil {
		t.Fatal(err)
	}
	h := New(executor.New(engine, nil), nil, config.SearchConfig{DefaultLimit: 10, MaxResults: 10})
	if rec := get(t, h.Search, "/api/v1/search?q=city"); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if rec := get(t, h.Index, "/api/v1/index"); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("index status = %d, want 503", rec.Code)
	}
}

func TestSearchCached(t *testing.T) {
	h := newHandler(t, true)
	first := get(t, h.Search, "/api/v1/search?q=pop+song")
	second := get(t, h.Search, "/api/v1/search?q=POP+song+pop")
	if first.Header().Get("X-Cache") != "MISS" || second.Header().Get("X-Cache") != "HIT" {
		t.Fatalf("X-Cache = %q then %q", first.Header().Get("X-Cache"), second.Header().Get("X-Cache"))
	}
	a, b := decode(t, first), decode(t, second)
	if len(a.Results) != len(b.Results) || a.Results[0] != b.Results[0] {
		t.Fatalf("cached results %v differ from %v", b.Results, a.Results)
	}

	var stats map[string]any
	rec := get(t, h.CacheStats, "/api/v1/cache/stats")
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatal(err)
	}
	if stats["hits"] != float64(1) || stats["misses"] != float64(1) {
		t.Fatalf("stats = %v", stats)
	}

	rec = httptest.NewRecorder()
	h.CacheInvalidate(rec, httptest.NewRequest(http.MethodPost, "/api/v1/cache/invalidate", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("invalidate status = %d", rec.Code)
	}
	if third := get(t, h.Search, "/api/v1/search?q=pop+song"); third.Header().Get("X-Cache") != "MISS" {
		t.Fatal("invalidated entry was still served")
	}
}

func TestCacheEndpointsDisabled(t *testing.T) {
	h := newHandler(t, false)
	rec := httptest.NewRecorder()
	h.CacheInvalidate(rec, httptest.NewRequest(http.MethodPost, "/api/v1/cache/invalidate", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec := get(t, h.CacheStats, "/api/v1/cache/stats"); rec.Code != http.StatusOK {
		t.Fatalf("stats status = %d", rec.Code)
	}
}

func TestIndex(t *testing.T) {
	h := newHandler(t, false)
	var info IndexInfo
	if err := json.NewDecoder(get(t, h.Index, "/api/v1/index").Body).Decode(&info); err != nil {
		t.Fatal(err)
	}
	if info.Documents != len(docs) || info.ChampionThreshold != 1 || info.Terms == 0 {
		t.Fatalf("info = %+v", info)
	}
	if info.ChampionPostings != info.Terms {
		t.Fatalf("K=1 should keep one posting per term, got %d for %d terms", info.ChampionPostings, info.Terms)
	}
}
