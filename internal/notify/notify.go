// Package notify tells downstream systems that a translation's posting files
// were rewritten: an event on Kafka, invalidation of cached search results in
// Redis, and a row in the PostgreSQL run ledger. Notification happens after
// the files are committed, so a failing sink never fails the translation.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/scripture-index/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/scripture-index/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/scripture-index/pkg/resilience"
)

// Notifier is one downstream sink.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, event IndexEvent) error
}

// disableAfter is the number of consecutive failed notifications after which
// a sink is skipped for the rest of the run.
const disableAfter = 3

// Multi fans an event out to every sink in order, retrying each one.
type Multi struct {
	sinks    []Notifier
	retry    resilience.RetryConfig
	metrics  *metrics.Metrics
	logger   *slog.Logger
	mu       sync.Mutex
	failures map[string]int
}

// NewMulti creates a fan-out over sinks. m may be nil.
func NewMulti(cfg config.NotifyConfig, m *metrics.Metrics, sinks ...Notifier) *Multi {
	return &Multi{
		sinks: sinks,
		retry: resilience.RetryConfig{
			MaxAttempts:    cfg.MaxAttempts,
			AttemptTimeout: cfg.Timeout,
		},
		metrics:  m,
		logger:   slog.Default().With("component", "notifier"),
		failures: make(map[string]int),
	}
}

// Len returns the number of configured sinks.
func (n *Multi) Len() int {
	return len(n.sinks)
}

// Notify delivers event to every enabled sink and returns the joined errors
// of the sinks that failed.
func (n *Multi) Notify(ctx context.Context, event IndexEvent) error {
	var errs []error
	for _, sink := range n.sinks {
		if n.disabled(sink.Name()) {
			n.count(sink.Name(), "skipped")
			continue
		}
		err := resilience.Retry(ctx, "notify-"+sink.Name(), n.retry, func(ctx context.Context) error {
			return sink.Notify(ctx, event)
		})
		n.record(sink.Name(), err)
		if err != nil {
			n.logger.Error("notification failed",
				"sink", sink.Name(),
				"translation", event.Translation,
				"error", err,
			)
			errs = append(errs, fmt.Errorf("%s: %w", sink.Name(), err))
			continue
		}
		n.logger.Debug("notification delivered", "sink", sink.Name(), "translation", event.Translation)
	}
	return errors.Join(errs...)
}

// Close closes every sink that holds a connection.
func (n *Multi) Close() error {
	var errs []error
	for _, sink := range n.sinks {
		if c, ok := sink.(interface{ Close() error }); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("closing %s: %w", sink.Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}

func (n *Multi) disabled(name string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.failures[name] >= disableAfter
}

func (n *Multi) record(name string, err error) {
	n.mu.Lock()
	if err == nil {
		n.failures[name] = 0
	} else {
		n.failures[name]++
		if n.failures[name] == disableAfter {
			n.logger.Warn("sink disabled for the rest of the run",
				"sink", name,
				"consecutive_failures", disableAfter,
			)
		}
	}
	n.mu.Unlock()
	if err == nil {
		n.count(name, "ok")
	} else {
		n.count(name, "failed")
	}
}

func (n *Multi) count(name, status string) {
	if n.metrics != nil {
		n.metrics.NotificationsTotal.WithLabelValues(name, status).Inc()
	}
}
