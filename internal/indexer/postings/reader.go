package postings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/scripture-index/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/scripture-index/pkg/config"
)

// Reader reads posting files back. There is no word manifest; Words lists
// the output directory.
type Reader struct {
	root      string
	outputDir string
}

func NewReader(cfg config.CorpusConfig) *Reader {
	return &Reader{root: cfg.Root, outputDir: cfg.OutputDir}
}

// Words returns the terms that have a posting file, sorted. Leftover
// temporary files are ignored.
func (r *Reader) Words(translationID string) ([]string, error) {
	dir := filepath.Join(r.root, translationID, r.outputDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading posting directory %s: %w", dir, err)
	}
	words := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, fileExt) {
			continue
		}
		words = append(words, strings.TrimSuffix(name, fileExt))
	}
	sort.Strings(words)
	return words, nil
}

// ReadWord decodes the posting list of word.
func (r *Reader) ReadWord(translationID, word string) (index.PostingList, error) {
	if err := validWord(word); err != nil {
		return nil, err
	}
	path := filepath.Join(r.root, translationID, r.outputDir, word+fileExt)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening posting file: %w", err)
	}
	var postings index.PostingList
	if err := json.Unmarshal(data, &postings); err != nil {
		return nil, fmt.Errorf("parsing postings for %q: %w", word, err)
	}
	return postings, nil
}
