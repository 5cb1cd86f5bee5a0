package postings

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Adithya-Monish-Kumar-K/scripture-index/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/scripture-index/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/scripture-index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/scripture-index/pkg/metrics"
)

func testConfigs(root string, threshold int) (config.CorpusConfig, config.IndexerConfig) {
	cfg := config.Default()
	cfg.Corpus.Root = root
	cfg.Indexer.LargePostingThreshold = threshold
	cfg.Indexer.WriteConcurrency = 4
	return cfg.Corpus, cfg.Indexer
}

func sampleIndex() *index.InvertedIndex {
	x := index.NewInvertedIndex()
	x.Add("the", index.Pointer{Book: "gen", ChapterID: "1", Verse: 1})
	x.Add("begin", index.Pointer{Book: "gen", ChapterID: "1", Verse: 1})
	x.Add("the", index.Pointer{Book: "gen", ChapterID: "1", Verse: 2})
	x.Add("earth", index.Pointer{Book: "gen", ChapterID: "1", Verse: 2})
	return x
}

func TestWriteOneFilePerWord(t *testing.T) {
	root := t.TempDir()
	corpusCfg, indexerCfg := testConfigs(root, 5000)
	w := NewWriter(corpusCfg, indexerCfg, nil)

	stats, err := w.Write(context.Background(), "eng_kjv", sampleIndex())
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if stats.Files != 3 || stats.Pointers != 4 || stats.Large != 0 {
		t.Errorf("stats = %+v", stats)
	}

	data, err := os.ReadFile(filepath.Join(root, "eng_kjv", "indexes_json", "the.json"))
	if err != nil {
		t.Fatalf("reading the.json: %v", err)
	}
	want := `[{"book":"gen","chapterId":"1","verse":1},{"book":"gen","chapterId":"1","verse":2}]`
	if string(data) != want {
		t.Errorf("the.json = %s, want %s", data, want)
	}

	r := NewReader(corpusCfg)
	words, err := r.Words("eng_kjv")
	if err != nil {
		t.Fatalf("Words: %v", err)
	}
	if want := []string{"begin", "earth", "the"}; !reflect.DeepEqual(words, want) {
		t.Errorf("Words = %v, want %v", words, want)
	}
	got, err := r.ReadWord("eng_kjv", "earth")
	if err != nil {
		t.Fatalf("ReadWord: %v", err)
	}
	if !reflect.DeepEqual(got, index.PostingList{{Book: "gen", ChapterID: "1", Verse: 2}}) {
		t.Errorf("ReadWord(earth) = %v", got)
	}

	matches, _ := filepath.Glob(filepath.Join(w.Dir("eng_kjv"), "*"+tmpExt))
	if len(matches) != 0 {
		t.Errorf("temporary files left behind: %v", matches)
	}
}

func TestWriteLargePostingDiagnostic(t *testing.T) {
	root := t.TempDir()
	corpusCfg, indexerCfg := testConfigs(root, 2)
	m := metrics.New(prometheus.NewRegistry())
	w := NewWriter(corpusCfg, indexerCfg, m)

	stats, err := w.Write(context.Background(), "eng_kjv", sampleIndex())
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if stats.Large != 1 {
		t.Errorf("Large = %d, want 1 (only \"the\" reaches the threshold)", stats.Large)
	}
	if got := testutil.ToFloat64(m.LargePostingLists); got != 1 {
		t.Errorf("postings_large_lists_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.PostingsWritten); got != 4 {
		t.Errorf("postings_written_total = %v, want 4", got)
	}
	// The diagnostic never changes output.
	got, err := NewReader(corpusCfg).ReadWord("eng_kjv", "the")
	if err != nil || len(got) != 2 {
		t.Errorf("ReadWord(the) = %v, %v", got, err)
	}
}

func TestWriteInvalidWordFails(t *testing.T) {
	root := t.TempDir()
	corpusCfg, indexerCfg := testConfigs(root, 5000)
	x := sampleIndex()
	x.Add("..", index.Pointer{Book: "gen", ChapterID: "1", Verse: 3})

	_, err := NewWriter(corpusCfg, indexerCfg, nil).Write(context.Background(), "eng_kjv", x)
	if !errors.Is(err, apperrors.ErrWriteFailed) || !errors.Is(err, apperrors.ErrInvalidWord) {
		t.Errorf("err = %v, want ErrWriteFailed wrapping ErrInvalidWord", err)
	}
}

func TestWriteUnwritableDirFails(t *testing.T) {
	root := t.TempDir()
	corpusCfg, indexerCfg := testConfigs(root, 5000)
	// A plain file where the translation directory should be.
	if err := os.WriteFile(filepath.Join(root, "eng_kjv"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := NewWriter(corpusCfg, indexerCfg, nil).Write(context.Background(), "eng_kjv", sampleIndex())
	if !errors.Is(err, apperrors.ErrWriteFailed) {
		t.Errorf("err = %v, want ErrWriteFailed", err)
	}
}

func TestWriteCancelled(t *testing.T) {
	root := t.TempDir()
	corpusCfg, indexerCfg := testConfigs(root, 5000)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewWriter(corpusCfg, indexerCfg, nil).Write(ctx, "eng_kjv", sampleIndex())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestReadWordRejectsTraversal(t *testing.T) {
	r := NewReader(config.CorpusConfig{Root: t.TempDir(), OutputDir: "indexes_json"})
	if _, err := r.ReadWord("eng_kjv", "../metadata"); !errors.Is(err, apperrors.ErrInvalidWord) {
		t.Errorf("err = %v, want ErrInvalidWord", err)
	}
}

func TestRewriteDropsStaleWords(t *testing.T) {
	root := t.TempDir()
	corpusCfg, indexerCfg := testConfigs(root, 5000)
	w := NewWriter(corpusCfg, indexerCfg, nil)

	if _, err := w.Write(context.Background(), "eng_kjv", sampleIndex()); err != nil {
		t.Fatalf("first Write: %v", err)
	}
	rebuilt := index.NewInvertedIndex()
	rebuilt.Add("light", index.Pointer{Book: "gen", ChapterID: "1", Verse: 3})
	if _, err := w.Write(context.Background(), "eng_kjv", rebuilt); err != nil {
		t.Fatalf("second Write: %v", err)
	}

	words, err := NewReader(corpusCfg).Words("eng_kjv")
	if err != nil {
		t.Fatalf("Words: %v", err)
	}
	if want := []string{"light"}; !reflect.DeepEqual(words, want) {
		t.Errorf("Words = %v, want %v", words, want)
	}
	entries, err := os.ReadDir(filepath.Join(root, "eng_kjv"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "indexes_json" {
		t.Errorf("translation dir holds %v, want only indexes_json", entries)
	}
}

func TestFailedRewriteKeepsPreviousOutput(t *testing.T) {
	root := t.TempDir()
	corpusCfg, indexerCfg := testConfigs(root, 5000)
	w := NewWriter(corpusCfg, indexerCfg, nil)

	if _, err := w.Write(context.Background(), "eng_kjv", sampleIndex()); err != nil {
		t.Fatalf("first Write: %v", err)
	}
	broken := index.NewInvertedIndex()
	broken.Add("light", index.Pointer{Book: "gen", ChapterID: "1", Verse: 3})
	broken.Add("a/b", index.Pointer{Book: "gen", ChapterID: "1", Verse: 3})
	if _, err := w.Write(context.Background(), "eng_kjv", broken); !errors.Is(err, apperrors.ErrWriteFailed) {
		t.Fatalf("err = %v, want ErrWriteFailed", err)
	}

	words, err := NewReader(corpusCfg).Words("eng_kjv")
	if err != nil {
		t.Fatalf("Words: %v", err)
	}
	if want := []string{"begin", "earth", "the"}; !reflect.DeepEqual(words, want) {
		t.Errorf("Words = %v, want %v", words, want)
	}
	if _, err := os.Stat(w.Dir("eng_kjv") + stagingExt); !os.IsNotExist(err) {
		t.Errorf("staging directory left behind: %v", err)
	}
}
