package corpus

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/champion-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/champion-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/champion-search/pkg/resilience"
)

// Postgres reads documents from a table, one row per document, ordered by
// a configured column so document ids are stable across rebuilds.
type Postgres struct {
	db     *sql.DB
	cfg    config.CorpusConfig
	retry  resilience.RetryConfig
	logger *slog.Logger
}

// NewPostgres creates a Postgres source over db.
func NewPostgres(db *sql.DB, cfg config.CorpusConfig) *Postgres {
	return &Postgres{
		db:     db,
		cfg:    cfg,
		logger: slog.Default().With("component", "corpus-postgres"),
	}
}

func (p *Postgres) Name() string {
	return "postgres:" + p.cfg.Table
}

// Load runs the corpus query, retrying transient failures.
func (p *Postgres) Load(ctx context.Context) ([]string, error) {
	query := buildQuery(p.cfg)
	var docs []string
	err := resilience.Retry(ctx, "corpus-postgres-load", p.retry, func() error {
		var err error
		docs, err = p.load(ctx, query)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrCorpusUnavailable, err)
	}
	p.logger.Info("corpus loaded", "table", p.cfg.Table, "documents", len(docs))
	return docs, nil
}

func (p *Postgres) load(ctx context.Context, query string) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, classify(fmt.Errorf("querying corpus: %w", err))
	}
	defer rows.Close()
	docs := make([]string, 0, 1024)
	for rows.Next() {
		var body sql.NullString
		if err := rows.Scan(&body); err != nil {
			return nil, resilience.Permanent(fmt.Errorf("scanning corpus row: %w", err))
		}
		docs = append(docs, cleanLine(body.String))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating corpus rows: %w", err)
	}
	return docs, nil
}

// classify marks errors a retry cannot fix as permanent: bad SQL, a missing
// table or column, and authentication or permission failures.
func classify(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "42", "28":
			return resilience.Permanent(err)
		}
	}
	return err
}

func buildQuery(cfg config.CorpusConfig) string {
	return fmt.Sprintf("SELECT %s FROM %s ORDER BY %s",
		pq.QuoteIdentifier(cfg.TextColumn),
		pq.QuoteIdentifier(cfg.Table),
		pq.QuoteIdentifier(cfg.OrderColumn),
	)
}
