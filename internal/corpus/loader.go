package corpus

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/scripture-index/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/scripture-index/pkg/errors"
)

// Loader reads translations from the corpus root described by cfg.
type Loader struct {
	cfg    config.CorpusConfig
	logger *slog.Logger
}

func NewLoader(cfg config.CorpusConfig) *Loader {
	return &Loader{
		cfg:    cfg,
		logger: slog.Default().With("component", "corpus-loader"),
	}
}

// Translations lists translation directories under the corpus root in
// lexical order. The manifest entry and any other plain file are skipped.
func (l *Loader) Translations() ([]string, error) {
	entries, err := os.ReadDir(l.cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("reading corpus root %s: %w", l.cfg.Root, err)
	}
	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.Name() == l.cfg.ManifestName {
			continue
		}
		if !entry.IsDir() {
			l.logger.Warn("skipping non-directory corpus entry", "entry", entry.Name())
			continue
		}
		ids = append(ids, entry.Name())
	}
	sort.Strings(ids)
	return ids, nil
}

// Load reads the metadata and every book of one translation.
func (l *Loader) Load(translationID string) (Translation, error) {
	meta, err := l.LoadMetadata(translationID)
	if err != nil {
		return Translation{}, err
	}
	books, err := l.LoadBooks(translationID)
	if err != nil {
		return Translation{}, err
	}
	return Translation{
		ID:       translationID,
		Language: meta.Language,
		Books:    books,
	}, nil
}

// LoadMetadata reads the translation's metadata document. A missing file or
// an empty language field fails with ErrMissingLanguage.
func (l *Loader) LoadMetadata(translationID string) (Metadata, error) {
	path := filepath.Join(l.cfg.Root, translationID, l.cfg.MetadataFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("%w: reading %s: %v", apperrors.ErrMissingLanguage, path, err)
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return Metadata{}, fmt.Errorf("%w: parsing %s: %v", apperrors.ErrMissingLanguage, path, err)
	}
	if strings.TrimSpace(meta.Language) == "" {
		return Metadata{}, fmt.Errorf("%w: %s has no language field", apperrors.ErrMissingLanguage, path)
	}
	return meta, nil
}

// LoadBooks decodes every *.json book document of the translation, ordered
// by file name. The book id is the lower-cased file name up to the first dot.
func (l *Loader) LoadBooks(translationID string) ([]Book, error) {
	dir := filepath.Join(l.cfg.Root, translationID, l.cfg.BooksDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading book directory %s: %w", dir, err)
	}
	books := make([]Book, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".json") {
			continue
		}
		id := BookID(entry.Name())
		book, err := l.loadBook(filepath.Join(dir, entry.Name()), id)
		if err != nil {
			return nil, err
		}
		books = append(books, book)
	}
	l.logger.Debug("books loaded", "translation", translationID, "books", len(books))
	return books, nil
}

func (l *Loader) loadBook(path, id string) (Book, error) {
	f, err := os.Open(path)
	if err != nil {
		return Book{}, fmt.Errorf("opening book %s: %w", path, err)
	}
	defer f.Close()
	return DecodeBook(id, f)
}

// BookID derives a book id from its file name: "Gen.json" becomes "gen".
func BookID(fileName string) string {
	name, _, _ := strings.Cut(fileName, ".")
	return strings.ToLower(name)
}
