// Package postings persists a translation's inverted index as one JSON file
// per term and reads those files back.
package postings

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/scripture-index/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/scripture-index/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/scripture-index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/scripture-index/pkg/metrics"
)

const (
	fileExt     = ".json"
	tmpExt      = ".tmp"
	stagingExt  = ".staging"
	previousExt = ".previous"
)

// WriteStats counts what one Write produced.
type WriteStats struct {
	Files    int
	Pointers int
	Large    int
}

// Writer writes posting files under <root>/<translation>/<outputDir>.
type Writer struct {
	root           string
	outputDir      string
	largeThreshold int
	concurrency    int
	metrics        *metrics.Metrics
	logger         *slog.Logger
}

// NewWriter creates a Writer. m may be nil.
func NewWriter(corpusCfg config.CorpusConfig, indexerCfg config.IndexerConfig, m *metrics.Metrics) *Writer {
	concurrency := indexerCfg.WriteConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Writer{
		root:           corpusCfg.Root,
		outputDir:      corpusCfg.OutputDir,
		largeThreshold: indexerCfg.LargePostingThreshold,
		concurrency:    concurrency,
		metrics:        m,
		logger:         slog.Default().With("component", "postings-writer"),
	}
}

// Dir returns the directory holding the posting files of translationID.
func (w *Writer) Dir(translationID string) string {
	return filepath.Join(w.root, translationID, w.outputDir)
}

// Write stores every term of idx in its own file. The files are written into
// a fresh staging directory which then replaces the translation's output
// directory, so words from an earlier build never survive a rebuild and a
// failed build leaves the earlier output untouched. Each file is itself
// written to a temporary name and renamed. The first failure cancels the
// remaining writes and is returned.
func (w *Writer) Write(ctx context.Context, translationID string, idx *index.InvertedIndex) (WriteStats, error) {
	var stats WriteStats
	dir := w.Dir(translationID)
	staging := dir + stagingExt
	if err := os.RemoveAll(staging); err != nil {
		return stats, fmt.Errorf("%w: clearing %s: %w", apperrors.ErrWriteFailed, staging, err)
	}
	if err := os.MkdirAll(staging, 0755); err != nil {
		return stats, fmt.Errorf("%w: creating %s: %w", apperrors.ErrWriteFailed, staging, err)
	}

	entries := idx.Snapshot()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)
	for _, entry := range entries {
		if w.largeThreshold > 0 && len(entry.Postings) >= w.largeThreshold {
			stats.Large++
			w.logger.Warn("large posting list",
				"translation", translationID,
				"word", entry.Term,
				"count", len(entry.Postings),
				"threshold", w.largeThreshold,
			)
			if w.metrics != nil {
				w.metrics.LargePostingLists.Inc()
			}
		}
		if gctx.Err() != nil {
			break
		}
		entry := entry
		g.Go(func() error {
			return writeWord(gctx, staging, entry)
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	if err == nil {
		err = w.commitDir(staging, dir)
	}
	if err != nil {
		os.RemoveAll(staging)
		return stats, fmt.Errorf("%w: %w", apperrors.ErrWriteFailed, err)
	}

	stats.Files = len(entries)
	stats.Pointers = idx.PointerCount()
	if w.metrics != nil {
		w.metrics.PostingFilesWritten.Add(float64(stats.Files))
		w.metrics.PostingsWritten.Add(float64(stats.Pointers))
	}
	w.logger.Info("posting files written",
		"translation", translationID,
		"dir", dir,
		"files", stats.Files,
		"pointers", stats.Pointers,
		"large_lists", stats.Large,
	)
	return stats, nil
}

// commitDir moves staging into place at dir. An existing dir is set aside
// first and removed once the new one is in place. Between the two renames
// dir is briefly absent.
func (w *Writer) commitDir(staging, dir string) error {
	previous := dir + previousExt
	if err := os.RemoveAll(previous); err != nil {
		return fmt.Errorf("clearing %s: %w", previous, err)
	}
	hadPrevious := true
	if err := os.Rename(dir, previous); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("setting aside %s: %w", dir, err)
		}
		hadPrevious = false
	}
	if err := os.Rename(staging, dir); err != nil {
		if hadPrevious {
			os.Rename(previous, dir)
		}
		return fmt.Errorf("committing %s: %w", dir, err)
	}
	if hadPrevious {
		if err := os.RemoveAll(previous); err != nil {
			w.logger.Warn("previous posting directory not removed", "dir", previous, "error", err)
		}
	}
	return nil
}

func writeWord(ctx context.Context, dir string, entry index.TermEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validWord(entry.Term); err != nil {
		return err
	}
	data, err := json.Marshal(entry.Postings)
	if err != nil {
		return fmt.Errorf("marshaling postings for %q: %w", entry.Term, err)
	}
	finalPath := filepath.Join(dir, entry.Term+fileExt)
	tmpPath := finalPath + tmpExt

	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating temp posting file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing postings for %q: %w", entry.Term, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("syncing posting file for %q: %w", entry.Term, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing posting file for %q: %w", entry.Term, err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming posting file for %q: %w", entry.Term, err)
	}
	return nil
}

func validWord(word string) error {
	if word == "" || word == "." || word == ".." ||
		strings.ContainsAny(word, `/\`+"\x00") {
		return fmt.Errorf("%w: %q", apperrors.ErrInvalidWord, word)
	}
	return nil
}
