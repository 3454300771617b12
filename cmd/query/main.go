// Command query builds an index from a corpus file and prints the top
// results for each query, first from the full index and then from the
// champion lists. With --notify it instead asks running search services to
// reload their corpus.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"github.com/Adithya-Monish-Kumar-K/champion-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/champion-search/internal/indexer/corpus"
	"github.com/Adithya-Monish-Kumar-K/champion-search/internal/indexer/reload"
	"github.com/Adithya-Monish-Kumar-K/champion-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/champion-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/champion-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/champion-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/champion-search/pkg/logger"
)

var defaultQueries = []string{"pop love song", "chinese american", "city"}

type options struct {
	configPath string
	corpusPath string
	champions  int
	stem       bool
	top        int
	notify     bool
	reason     string
	logLevel   string
}

func main() {
	var opts options
	flags := pflag.NewFlagSet("query", pflag.ContinueOnError)
	flags.StringVarP(&opts.configPath, "config", "c", "", "optional config file; flags override it")
	flags.StringVar(&opts.corpusPath, "corpus", "", "newline-delimited corpus, optionally gzipped (default from config)")
	flags.IntVarP(&opts.champions, "champions", "k", 0, "champion list size (default from config)")
	flags.BoolVar(&opts.stem, "stem", false, "stem English terms")
	flags.IntVarP(&opts.top, "top", "n", 10, "results to print per query")
	flags.BoolVar(&opts.notify, "notify", false, "publish a corpus-reload request to Kafka instead of querying")
	flags.StringVar(&opts.reason, "reason", "manual", "reason recorded with --notify")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "log level")
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: query [flags] [query ...]\n\n%s", flags.FlagUsages())
	}
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		os.Exit(2)
	}
	logger.Setup(os.Stderr, opts.logLevel, "text")

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "query: %v\n", err)
		os.Exit(1)
	}
	if flags.Changed("corpus") {
		cfg.Corpus.Path = opts.corpusPath
	}
	if flags.Changed("champions") {
		cfg.Index.ChampionThreshold = opts.champions
	}
	if flags.Changed("stem") {
		cfg.Index.Stem = opts.stem
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.notify {
		err = notify(ctx, cfg.Kafka, opts.reason)
	} else {
		queries := flags.Args()
		if len(queries) == 0 {
			queries = defaultQueries
		}
		err = run(ctx, os.Stdout, cfg, queries, opts.top)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "query: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, w io.Writer, cfg *config.Config, queries []string, top int) error {
	opts := indexer.BuildOptions{
		ChampionThreshold: cfg.Index.ChampionThreshold,
		Analyzer:          tokenizer.NewAnalyzer(tokenizer.Options{Stem: cfg.Index.Stem}),
	}
	engine, err := indexer.NewEngine(corpus.NewFile(cfg.Corpus.Path), opts, nil)
	if err != nil {
		return err
	}
	if _, err := engine.Rebuild(ctx); err != nil {
		return err
	}
	return report(ctx, w, executor.New(engine, nil), queries, top)
}

// report prints, for each query, the top results without and then with
// champion lists as doc_id<TAB>score lines.
func report(ctx context.Context, w io.Writer, exec *executor.Executor, queries []string, top int) error {
	for _, q := range queries {
		for _, useChampions := range []bool{false, true} {
			res, err := exec.SearchTop(ctx, q, useChampions, top)
			if err != nil {
				return fmt.Errorf("query %q: %w", q, err)
			}
			header := "QUERY=" + q
			if useChampions {
				header += " Using Champion List"
			}
			if _, err := fmt.Fprintf(w, "\n\n%s\n", header); err != nil {
				return err
			}
			for _, d := range res.Results {
				if _, err := fmt.Fprintf(w, "%d\t%e\n", d.DocID, d.Score); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func notify(ctx context.Context, cfg config.KafkaConfig, reason string) error {
	producer := kafka.NewProducer(cfg, cfg.Topics.CorpusReload)
	defer producer.Close()
	req := reload.NewRequest(reason, uuid.NewString())
	if err := producer.Publish(ctx, reload.MessageKey, req); err != nil {
		return err
	}
	slog.Info("reload requested", "topic", cfg.Topics.CorpusReload, "request_id", req.RequestID)
	return nil
}
