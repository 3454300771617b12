package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/champion-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/champion-search/internal/indexer/corpus"
	"github.com/Adithya-Monish-Kumar-K/champion-search/internal/indexer/reload"
	"github.com/Adithya-Monish-Kumar-K/champion-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/champion-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/champion-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/champion-search/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/champion-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/champion-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/champion-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/champion-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/champion-search/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/champion-search/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/champion-search/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/champion-search/pkg/resilience"
)

func main() {
	flags := pflag.NewFlagSet("searcher", pflag.ContinueOnError)
	configPath := flags.StringP("config", "c", "configs/development.yaml", "path to config file")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "searcher: %v\n", err)
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg); err != nil {
		slog.Error("search service failed", "error", err)
		os.Exit(1)
	}
	slog.Info("search service stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	m := metrics.New(nil)
	checker := health.NewChecker()

	source, closeSource, err := openSource(ctx, cfg, checker)
	if err != nil {
		return err
	}
	defer closeSource()

	opts := indexer.BuildOptions{
		ChampionThreshold: cfg.Index.ChampionThreshold,
		Analyzer:          tokenizer.NewAnalyzer(tokenizer.Options{Stem: cfg.Index.Stem}),
	}
	engine, err := indexer.NewEngine(source, opts, m)
	if err != nil {
		return fmt.Errorf("creating index engine: %w", err)
	}
	err = resilience.WithTimeout(ctx, cfg.Index.RebuildTimeout, "initial-index-build", func(ctx context.Context) error {
		_, err := engine.Rebuild(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("initial index build: %w", err)
	}
	checker.Register("index", func(context.Context) health.ComponentHealth {
		snap := engine.Snapshot()
		if snap == nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: "no snapshot"}
		}
		return health.ComponentHealth{
			Status: health.StatusUp,
			Details: map[string]any{
				"generation": snap.Generation,
				"documents":  snap.NumDocs,
				"terms":      len(snap.Index),
			},
		}
	})

	var queryCache *cache.QueryCache
	if cfg.Search.CacheEnabled {
		redisClient, err := pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			queryCache = cache.New(redisClient, cfg.Redis, m)
			checker.Register("redis", health.PingCheck(redisClient.Ping, health.StatusDegraded))
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	h := handler.New(executor.New(engine, m), queryCache, cfg.Search)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/index", h.Index)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	server := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: middleware.Chain(mux,
			middleware.RequestID,
			middleware.Metrics(m),
			middleware.Timeout(cfg.Server.WriteTimeout),
		),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout + time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("search service listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down search service")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	if cfg.Metrics.Enabled {
		g.Go(func() error {
			return metrics.NewServer(cfg.Metrics.Port).Run(gctx)
		})
	}
	if cfg.Kafka.Enabled {
		reloader := reload.NewHandler(engine, cacheInvalidator(queryCache), cfg.Index.RebuildTimeout)
		consumer := reloader.Consumer(cfg.Kafka, cfg.Kafka.Topics.CorpusReload)
		g.Go(func() error {
			return consumer.Start(gctx)
		})
		slog.Info("corpus reload consumer started", "topic", cfg.Kafka.Topics.CorpusReload)
	}
	return g.Wait()
}

// openSource returns the configured corpus source and a function releasing
// whatever it holds open.
func openSource(ctx context.Context, cfg *config.Config, checker *health.Checker) (corpus.Source, func(), error) {
	switch cfg.Corpus.Source {
	case config.SourcePostgres:
		client, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to corpus database: %w", err)
		}
		checker.Register("postgres", health.PingCheck(client.Ping, health.StatusDegraded))
		slog.Info("corpus source", "kind", "postgres", "table", cfg.Corpus.Table)
		return corpus.NewPostgres(client.DB, cfg.Corpus), func() { _ = client.Close() }, nil
	default:
		slog.Info("corpus source", "kind", "file", "path", cfg.Corpus.Path)
		return corpus.NewFile(cfg.Corpus.Path), func() {}, nil
	}
}

// cacheInvalidator avoids handing reload a typed nil.
func cacheInvalidator(c *cache.QueryCache) reload.Invalidator {
	if c == nil {
		return nil
	}
	return c
}
