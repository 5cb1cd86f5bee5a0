package notify

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/scripture-index/pkg/kafka"
)

// Publisher is satisfied by *kafka.Producer.
type Publisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// KafkaNotifier publishes one IndexEvent per translation, keyed by
// translation id.
type KafkaNotifier struct {
	publisher Publisher
}

func NewKafkaNotifier(p Publisher) *KafkaNotifier {
	return &KafkaNotifier{publisher: p}
}

func (k *KafkaNotifier) Name() string { return "kafka" }

func (k *KafkaNotifier) Notify(ctx context.Context, event IndexEvent) error {
	return k.publisher.Publish(ctx, kafka.Event{
		Key:   event.Translation,
		Value: event,
	})
}

func (k *KafkaNotifier) Close() error {
	if c, ok := k.publisher.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

// PatternFlusher is satisfied by *redis.Client.
type PatternFlusher interface {
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// CacheInvalidator drops cached search results of a reindexed translation.
// Cache keys are laid out as <prefix><translation>:<query...>.
type CacheInvalidator struct {
	client PatternFlusher
	prefix string
	logger *slog.Logger
}

func NewCacheInvalidator(client PatternFlusher, keyPrefix string) *CacheInvalidator {
	return &CacheInvalidator{
		client: client,
		prefix: keyPrefix,
		logger: slog.Default().With("component", "cache-invalidator"),
	}
}

func (c *CacheInvalidator) Name() string { return "redis" }

// Pattern returns the glob matching every cache key of translationID.
func (c *CacheInvalidator) Pattern(translationID string) string {
	return c.prefix + translationID + ":*"
}

func (c *CacheInvalidator) Notify(ctx context.Context, event IndexEvent) error {
	pattern := c.Pattern(event.Translation)
	deleted, err := c.client.FlushByPattern(ctx, pattern)
	if err != nil {
		return fmt.Errorf("invalidating %s: %w", pattern, err)
	}
	c.logger.Info("search cache invalidated",
		"translation", event.Translation,
		"pattern", pattern,
		"keys_deleted", deleted,
	)
	return nil
}

func (c *CacheInvalidator) Close() error {
	if cl, ok := c.client.(interface{ Close() error }); ok {
		return cl.Close()
	}
	return nil
}

// Execer is satisfied by *sql.DB and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// RunRecorder appends one row per indexed translation to the index_runs
// ledger.
//
// It requires an `index_runs` table, created by EnsureSchema:
//
//	CREATE TABLE IF NOT EXISTS index_runs (
//	    id           BIGSERIAL PRIMARY KEY,
//	    translation  TEXT NOT NULL,
//	    language     TEXT NOT NULL,
//	    stemmed      BOOLEAN NOT NULL,
//	    books        INTEGER NOT NULL,
//	    verses       INTEGER NOT NULL,
//	    words        INTEGER NOT NULL,
//	    pointers     INTEGER NOT NULL,
//	    large_lists  INTEGER NOT NULL,
//	    latency_ms   BIGINT NOT NULL,
//	    finished_at  TIMESTAMPTZ NOT NULL
//	);
type RunRecorder struct {
	db Execer
}

const createRunsTable = `CREATE TABLE IF NOT EXISTS index_runs (
    id           BIGSERIAL PRIMARY KEY,
    translation  TEXT NOT NULL,
    language     TEXT NOT NULL,
    stemmed      BOOLEAN NOT NULL,
    books        INTEGER NOT NULL,
    verses       INTEGER NOT NULL,
    words        INTEGER NOT NULL,
    pointers     INTEGER NOT NULL,
    large_lists  INTEGER NOT NULL,
    latency_ms   BIGINT NOT NULL,
    finished_at  TIMESTAMPTZ NOT NULL
)`

const insertRun = `INSERT INTO index_runs
    (translation, language, stemmed, books, verses, words, pointers, large_lists, latency_ms, finished_at)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

func NewRunRecorder(db Execer) *RunRecorder {
	return &RunRecorder{db: db}
}

func (r *RunRecorder) Name() string { return "postgres" }

// EnsureSchema creates the index_runs table if it does not exist.
func (r *RunRecorder) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createRunsTable); err != nil {
		return fmt.Errorf("creating index_runs table: %w", err)
	}
	return nil
}

func (r *RunRecorder) Notify(ctx context.Context, event IndexEvent) error {
	_, err := r.db.ExecContext(ctx, insertRun,
		event.Translation,
		event.Language,
		event.Stemmed,
		event.Books,
		event.Verses,
		event.Words,
		event.Pointers,
		event.LargeLists,
		event.LatencyMs,
		event.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("recording index run for %s: %w", event.Translation, err)
	}
	return nil
}
