// Package indexer builds the per-translation inverted index: every verse is
// tokenized and each surviving term gains a pointer to that verse.
package indexer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/scripture-index/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/scripture-index/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/scripture-index/internal/indexer/stemmer"
	"github.com/Adithya-Monish-Kumar-K/scripture-index/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/scripture-index/pkg/errors"
)

// BuildStats summarises one build. Pointers always equals Tokens: every
// non-empty term contributes exactly one pointer.
type BuildStats struct {
	Books    int
	Chapters int
	Verses   int
	Tokens   int
	Pointers int
	Terms    int
	Stemmed  bool
}

type Builder struct {
	logger *slog.Logger
}

func NewBuilder() *Builder {
	return &Builder{
		logger: slog.Default().With("component", "index-builder"),
	}
}

// Build indexes every verse of tr in the order given: books as supplied,
// chapters as stored, verses by position. A nil s indexes raw tokens. A book
// without chapters aborts the build.
func (b *Builder) Build(ctx context.Context, tr corpus.Translation, s stemmer.Stemmer) (*index.InvertedIndex, BuildStats, error) {
	idx := index.NewInvertedIndex()
	tok := tokenizer.New(tr.Language, s)
	stats := BuildStats{Stemmed: tok.Stemming()}

	for _, book := range tr.Books {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}
		if book.Chapters == nil {
			return nil, stats, fmt.Errorf("%w: book %s has no chapters", apperrors.ErrMalformedBook, book.ID)
		}
		stats.Books++
		for _, chapter := range book.Chapters {
			stats.Chapters++
			for i, verse := range chapter.Verses {
				stats.Verses++
				ptr := index.Pointer{
					Book:      book.ID,
					ChapterID: chapter.ID,
					Verse:     i + 1,
				}
				for _, term := range tok.Tokenize(verse) {
					if idx.Add(term, ptr) {
						stats.Tokens++
					}
				}
			}
		}
	}
	stats.Pointers = idx.PointerCount()
	stats.Terms = idx.Len()

	b.logger.Debug("translation index built",
		"translation", tr.ID,
		"language", tr.Language,
		"stemmed", stats.Stemmed,
		"books", stats.Books,
		"verses", stats.Verses,
		"terms", stats.Terms,
		"pointers", stats.Pointers,
	)
	return idx, stats, nil
}
