package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/scripture-index/internal/notify"
	"github.com/Adithya-Monish-Kumar-K/scripture-index/internal/pipeline"
	"github.com/Adithya-Monish-Kumar-K/scripture-index/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/scripture-index/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/scripture-index/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/scripture-index/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/scripture-index/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/scripture-index/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/scripture-index/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/scripture-index/pkg/tracing"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting scripture indexer",
		"root", cfg.Corpus.Root,
		"workers", cfg.Indexer.Workers,
		"continue_on_error", cfg.Indexer.ContinueOnError,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)
	checker := health.NewChecker()

	sinks, err := buildSinks(ctx, cfg, checker)
	if err != nil {
		slog.Error("failed to set up notification sinks", "error", err)
		return 1
	}
	notifier := notify.NewMulti(cfg.Notify, m, sinks...)
	defer func() {
		if err := notifier.Close(); err != nil {
			slog.Error("closing notification sinks", "error", err)
		}
	}()

	if notifier.Len() > 0 {
		preflightCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err := checker.Preflight(preflightCtx)
		cancel()
		if err != nil {
			slog.Error("dependency preflight failed", "error", err)
			return 1
		}
	}

	if cfg.Metrics.Enabled {
		shutdown := metrics.StartServer(cfg.Metrics.Port, m, checker)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown error", "error", err)
			}
		}()
	}

	deps := pipeline.Deps{
		Metrics: m,
		Tracer:  tracing.NewTracer(cfg.Tracing.Enabled),
	}
	if notifier.Len() > 0 {
		deps.Notifier = notifier
	}
	driver := pipeline.New(cfg, deps)

	summary, err := driver.Run(ctx)
	if err != nil {
		slog.Error("corpus run halted", "error", err)
		return 1
	}
	if len(summary.Failed) > 0 {
		slog.Error("corpus run finished with failures", "failed", len(summary.Failed))
		return 1
	}
	slog.Info("scripture indexer finished", "indexed", len(summary.Indexed))
	return 0
}

// buildSinks connects every enabled notification sink and registers its
// health check.
func buildSinks(ctx context.Context, cfg *config.Config, checker *health.Checker) ([]notify.Notifier, error) {
	var sinks []notify.Notifier

	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete)
		checker.Register("kafka", health.PingCheck(producer.Ping))
		sinks = append(sinks, notify.NewKafkaNotifier(producer))
	}

	if cfg.Redis.Enabled {
		client, err := redis.NewClient(cfg.Redis)
		if err != nil {
			closeSinks(sinks)
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		checker.Register("redis", health.PingCheck(client.Ping))
		sinks = append(sinks, notify.NewCacheInvalidator(client, cfg.Redis.KeyPrefix))
	}

	if cfg.Postgres.Enabled {
		client, err := postgres.New(cfg.Postgres)
		if err != nil {
			closeSinks(sinks)
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		checker.Register("postgres", health.PingCheck(client.Ping))
		recorder := notify.NewRunRecorder(client.DB)
		if err := recorder.EnsureSchema(ctx); err != nil {
			client.Close()
			closeSinks(sinks)
			return nil, err
		}
		sinks = append(sinks, &closingRecorder{RunRecorder: recorder, client: client})
	}
	return sinks, nil
}

// closingRecorder ties the postgres connection's lifetime to its sink.
type closingRecorder struct {
	*notify.RunRecorder
	client *postgres.Client
}

func (c *closingRecorder) Close() error {
	return c.client.Close()
}

func closeSinks(sinks []notify.Notifier) {
	for _, s := range sinks {
		if c, ok := s.(interface{ Close() error }); ok {
			c.Close()
		}
	}
}
