// Package reload rebuilds the serving index when a corpus-reload request
// arrives on Kafka.
package reload

import (
	"context"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/champion-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/champion-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/champion-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/champion-search/pkg/resilience"
)

// MessageKey is the Kafka key reload requests are published under; a single
// key keeps them ordered on one partition.
const MessageKey = "corpus-reload"

// Request asks the searcher to reload its corpus and rebuild the index.
type Request struct {
	Reason      string    `json:"reason"`
	RequestID   string    `json:"request_id,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

// NewRequest stamps a request with the current time.
func NewRequest(reason, requestID string) Request {
	return Request{
		Reason:      reason,
		RequestID:   requestID,
		RequestedAt: time.Now().UTC(),
	}
}

// Rebuilder is implemented by *indexer.Engine.
type Rebuilder interface {
	Snapshot() *indexer.Snapshot
	Rebuild(ctx context.Context) (*indexer.Snapshot, error)
}

// Invalidator drops cached results after a rebuild. *cache.QueryCache
// implements it.
type Invalidator interface {
	Invalidate(ctx context.Context) (int64, error)
}

type Handler struct {
	engine  Rebuilder
	cache   Invalidator
	timeout time.Duration
	logger  *slog.Logger
}

// NewHandler creates a Handler. cache may be nil; timeout <= 0 means
// rebuilds are not time-limited.
func NewHandler(engine Rebuilder, cache Invalidator, timeout time.Duration) *Handler {
	return &Handler{
		engine:  engine,
		cache:   cache,
		timeout: timeout,
		logger:  slog.Default().With("component", "index-reload"),
	}
}

// Handle is a kafka.MessageHandler. Malformed messages are dropped without
// error since retrying cannot fix them; a failed rebuild is returned so the
// consumer retries it. A request is already satisfied when the serving
// snapshot read its corpus after the request was made.
func (h *Handler) Handle(ctx context.Context, key, value []byte) error {
	req, err := kafka.DecodeJSON[Request](value)
	if err != nil {
		h.logger.Error("dropping malformed reload request", "key", string(key), "error", err)
		return nil
	}
	log := h.logger.With("reason", req.Reason, "request_id", req.RequestID)

	if snap := h.engine.Snapshot(); snap != nil && !req.RequestedAt.IsZero() && snap.LoadedAt.After(req.RequestedAt) {
		log.Info("reload request already satisfied",
			"requested_at", req.RequestedAt,
			"loaded_at", snap.LoadedAt,
			"generation", snap.Generation,
		)
		return nil
	}

	var snap *indexer.Snapshot
	err = resilience.WithTimeout(ctx, h.timeout, "index-rebuild", func(ctx context.Context) error {
		var err error
		snap, err = h.engine.Rebuild(ctx)
		return err
	})
	if err != nil {
		log.Error("index rebuild failed, previous snapshot still serving", "error", err)
		return err
	}
	log.Info("index reloaded", "generation", snap.Generation, "documents", snap.NumDocs)

	if h.cache != nil {
		if _, err := h.cache.Invalidate(ctx); err != nil {
			log.Warn("cache invalidation after reload failed", "error", err)
		}
	}
	return nil
}

// Consumer returns a Kafka consumer that feeds topic into h.
func (h *Handler) Consumer(cfg config.KafkaConfig, topic string) *kafka.Consumer {
	return kafka.NewConsumer(cfg, topic, h.Handle)
}
