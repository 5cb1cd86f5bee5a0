// Package pipeline drives a full corpus run: every translation is loaded,
// indexed, written to its own posting directory and announced to the
// configured notifiers.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/scripture-index/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/scripture-index/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/scripture-index/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/scripture-index/internal/indexer/postings"
	"github.com/Adithya-Monish-Kumar-K/scripture-index/internal/indexer/stemmer"
	"github.com/Adithya-Monish-Kumar-K/scripture-index/internal/notify"
	"github.com/Adithya-Monish-Kumar-K/scripture-index/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/scripture-index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/scripture-index/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/scripture-index/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/scripture-index/pkg/tracing"
	"golang.org/x/sync/errgroup"
)

// Notifier receives one event per committed translation. *notify.Multi
// satisfies it.
type Notifier interface {
	Notify(ctx context.Context, event notify.IndexEvent) error
}

// Deps carries the collaborators of a Driver. Nil fields are built from the
// configuration; Notifier, Metrics and Tracer stay disabled when nil.
type Deps struct {
	Loader   *corpus.Loader
	Registry *stemmer.Registry
	Builder  *indexer.Builder
	Writer   *postings.Writer
	Reader   *postings.Reader
	Notifier Notifier
	Metrics  *metrics.Metrics
	Tracer   *tracing.Tracer
}

// Report describes one successfully indexed translation.
type Report struct {
	Translation string
	Language    string
	Build       indexer.BuildStats
	Write       postings.WriteStats
	Verified    bool
	Duration    time.Duration
}

// Summary is the outcome of a corpus run. Skipped lists translations that
// were never completed because the run halted or was cancelled.
type Summary struct {
	Indexed []Report
	Failed  map[string]error
	Skipped []string
}

type Driver struct {
	cfg      config.IndexerConfig
	loader   *corpus.Loader
	registry *stemmer.Registry
	builder  *indexer.Builder
	writer   *postings.Writer
	reader   *postings.Reader
	notifier Notifier
	metrics  *metrics.Metrics
	tracer   *tracing.Tracer
	logger   *slog.Logger
}

func New(cfg *config.Config, deps Deps) *Driver {
	d := &Driver{
		cfg:      cfg.Indexer,
		loader:   deps.Loader,
		registry: deps.Registry,
		builder:  deps.Builder,
		writer:   deps.Writer,
		reader:   deps.Reader,
		notifier: deps.Notifier,
		metrics:  deps.Metrics,
		tracer:   deps.Tracer,
		logger:   slog.Default().With("component", "pipeline"),
	}
	if d.cfg.Workers < 1 {
		d.cfg.Workers = 1
	}
	if d.loader == nil {
		d.loader = corpus.NewLoader(cfg.Corpus)
	}
	if d.registry == nil {
		d.registry = stemmer.NewRegistry()
	}
	if d.builder == nil {
		d.builder = indexer.NewBuilder()
	}
	if d.writer == nil {
		d.writer = postings.NewWriter(cfg.Corpus, cfg.Indexer, d.metrics)
	}
	if d.reader == nil {
		d.reader = postings.NewReader(cfg.Corpus)
	}
	return d
}

// Run indexes every translation under the corpus root. Without
// continueOnError the first failure cancels the run and is returned; with it
// failures are collected in Summary.Failed. A cancelled ctx starts no further
// translation and yields ctx.Err().
func (d *Driver) Run(ctx context.Context) (Summary, error) {
	summary := Summary{Failed: make(map[string]error)}
	ids, err := d.loader.Translations()
	if err != nil {
		return summary, fmt.Errorf("listing translations: %w", err)
	}
	d.logger.Info("corpus run starting",
		"translations", len(ids),
		"workers", d.cfg.Workers,
		"continue_on_error", d.cfg.ContinueOnError,
	)
	start := time.Now()

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.Workers)
	for _, id := range ids {
		if gctx.Err() != nil {
			break
		}
		id := id
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			report, err := d.IndexTranslation(gctx, id)

			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				summary.Indexed = append(summary.Indexed, report)
				return nil
			}
			if gctx.Err() != nil && apperrors.Is(err, context.Canceled) {
				return nil
			}
			summary.Failed[id] = err
			if d.cfg.ContinueOnError {
				return nil
			}
			return err
		})
	}
	err = g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	sort.Slice(summary.Indexed, func(i, j int) bool {
		return summary.Indexed[i].Translation < summary.Indexed[j].Translation
	})
	done := make(map[string]bool, len(summary.Indexed)+len(summary.Failed))
	for _, r := range summary.Indexed {
		done[r.Translation] = true
	}
	for id := range summary.Failed {
		done[id] = true
	}
	for _, id := range ids {
		if !done[id] {
			summary.Skipped = append(summary.Skipped, id)
		}
	}

	d.logger.Info("corpus run finished",
		"indexed", len(summary.Indexed),
		"failed", len(summary.Failed),
		"skipped", len(summary.Skipped),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	for id, ferr := range summary.Failed {
		d.logger.Error("translation failed", "translation", id, "stage", apperrors.StageOf(ferr), "error", ferr)
	}
	return summary, err
}

// IndexTranslation runs the whole pipeline for one translation. Errors are
// *errors.IndexError values naming the failed stage. Notification failures
// are logged and never returned.
func (d *Driver) IndexTranslation(ctx context.Context, id string) (Report, error) {
	ctx = logger.WithTranslation(ctx, id)
	ctx, root := d.tracer.StartSpan(ctx, "translation", id)
	defer root.Finish()

	if d.metrics != nil {
		d.metrics.ActiveTranslations.Inc()
		defer d.metrics.ActiveTranslations.Dec()
	}
	start := time.Now()
	report, err := d.indexTranslation(ctx, id)
	report.Duration = time.Since(start)

	if d.metrics != nil {
		d.metrics.TranslationDuration.Observe(report.Duration.Seconds())
		if err != nil {
			d.metrics.TranslationsIndexed.WithLabelValues("failed").Inc()
		} else {
			d.metrics.TranslationsIndexed.WithLabelValues("ok").Inc()
			d.metrics.VersesIndexed.Add(float64(report.Build.Verses))
		}
	}
	if err != nil {
		root.SetAttr("error", err.Error())
		return report, err
	}

	root.SetAttr("words", report.Build.Terms)
	logger.FromContext(ctx).Info("translation indexed",
		"language", report.Language,
		"stemmed", report.Build.Stemmed,
		"books", report.Build.Books,
		"verses", report.Build.Verses,
		"words", report.Write.Files,
		"pointers", report.Write.Pointers,
		"large_lists", report.Write.Large,
		"verified", report.Verified,
		"duration_ms", report.Duration.Milliseconds(),
	)
	d.notify(ctx, report)
	return report, nil
}

func (d *Driver) indexTranslation(ctx context.Context, id string) (Report, error) {
	report := Report{Translation: id}
	log := logger.FromContext(ctx).With("component", "pipeline")

	_, span := tracing.StartChildSpan(ctx, "load")
	tr, err := d.loader.Load(id)
	span.End()
	if err != nil {
		return report, apperrors.New(id, apperrors.StageLoad, err)
	}
	report.Language = tr.Language
	span.SetAttr("books", len(tr.Books))

	s, err := d.resolveStemmer(tr.Language, log)
	if err != nil {
		return report, apperrors.New(id, apperrors.StageResolve, err)
	}

	buildCtx, span := tracing.StartChildSpan(ctx, "build")
	idx, buildStats, err := d.builder.Build(buildCtx, tr, s)
	span.End()
	if err != nil {
		return report, apperrors.New(id, apperrors.StageBuild, err)
	}
	report.Build = buildStats
	span.SetAttr("terms", buildStats.Terms)

	writeCtx, span := tracing.StartChildSpan(ctx, "write")
	writeStats, err := d.writer.Write(writeCtx, id, idx)
	span.End()
	if err != nil {
		return report, apperrors.New(id, apperrors.StageWrite, err)
	}
	report.Write = writeStats
	span.SetAttr("files", writeStats.Files)

	if d.cfg.VerifyOutput {
		_, span := tracing.StartChildSpan(ctx, "verify")
		err := d.verify(id, idx)
		span.End()
		if err != nil {
			return report, err
		}
		report.Verified = true
	}
	return report, nil
}

// resolveStemmer picks the stemmer for a language identifier. Unsupported
// languages index unstemmed. Near misses fail under strictLanguages and only
// warn otherwise.
func (d *Driver) resolveStemmer(lang string, log *slog.Logger) (stemmer.Stemmer, error) {
	s, err := d.registry.ResolveStrict(lang)
	if err != nil {
		if d.cfg.StrictLanguages {
			return nil, err
		}
		log.Warn("language identifier resembles a supported language, indexing unstemmed",
			"language", lang,
			"error", err,
		)
		return nil, nil
	}
	if s == nil {
		log.Info("no stemmer for language, indexing unstemmed", "language", lang)
	}
	return s, nil
}

// verify re-reads every posting file of the translation and compares it with
// the in-memory list it was written from. Failures are verify-stage errors.
func (d *Driver) verify(id string, idx *index.InvertedIndex) error {
	for _, entry := range idx.Snapshot() {
		got, err := d.reader.ReadWord(id, entry.Term)
		if err != nil {
			return apperrors.New(id, apperrors.StageVerify, fmt.Errorf("%w: %w", apperrors.ErrVerifyFailed, err))
		}
		if !slices.Equal(got, entry.Postings) {
			return apperrors.Newf(id, apperrors.StageVerify, apperrors.ErrVerifyFailed,
				"word %q has %d pointers on disk, expected %d", entry.Term, len(got), len(entry.Postings))
		}
	}
	return nil
}

func (d *Driver) notify(ctx context.Context, report Report) {
	if d.notifier == nil {
		return
	}
	ctx, span := tracing.StartChildSpan(ctx, "notify")
	defer span.End()
	event := notify.IndexEvent{
		Type:        notify.EventTranslationIndexed,
		Translation: report.Translation,
		Language:    report.Language,
		Stemmed:     report.Build.Stemmed,
		Books:       report.Build.Books,
		Verses:      report.Build.Verses,
		Words:       report.Write.Files,
		Pointers:    report.Write.Pointers,
		LargeLists:  report.Write.Large,
		LatencyMs:   report.Duration.Milliseconds(),
		Timestamp:   time.Now().UTC(),
	}
	if err := d.notifier.Notify(ctx, event); err != nil {
		span.SetAttr("error", err.Error())
		logger.FromContext(ctx).Warn("translation indexed but notification incomplete", "error", err)
	}
}
