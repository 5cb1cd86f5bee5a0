package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/scripture-index/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/scripture-index/internal/indexer/postings"
	"github.com/Adithya-Monish-Kumar-K/scripture-index/internal/indexer/stemmer"
	"github.com/Adithya-Monish-Kumar-K/scripture-index/internal/notify"
	"github.com/Adithya-Monish-Kumar-K/scripture-index/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/scripture-index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/scripture-index/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/scripture-index/pkg/tracing"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

const genesisBook = `{"name": "Genesis", "chapters": {"1": ["In the beginning", "the earth was formless"]}}`

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func addTranslation(t *testing.T, root, id, lang string) {
	t.Helper()
	writeFile(t, filepath.Join(root, id, "metadata.json"), `{"language": "`+lang+`"}`)
	writeFile(t, filepath.Join(root, id, "json", "gen.json"), genesisBook)
}

func testConfig(root string) *config.Config {
	cfg := config.Default()
	cfg.Corpus.Root = root
	cfg.Indexer.VerifyOutput = true
	return cfg
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.IndexEvent
	err    error
}

func (r *recordingNotifier) Notify(ctx context.Context, event notify.IndexEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return r.err
}

func TestRunIndexesCorpus(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "manifest.json"), `{"translations": ["T", "U"]}`)
	addTranslation(t, root, "T", "eng")
	addTranslation(t, root, "U", "xx")

	cfg := testConfig(root)
	m := metrics.New(prometheus.NewRegistry())
	d := New(cfg, Deps{Metrics: m, Tracer: tracing.NewTracer(true)})

	summary, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(summary.Indexed) != 2 || len(summary.Failed) != 0 || len(summary.Skipped) != 0 {
		t.Fatalf("summary = %+v", summary)
	}
	if summary.Indexed[0].Translation != "T" || !summary.Indexed[0].Build.Stemmed {
		t.Errorf("T report = %+v", summary.Indexed[0])
	}
	if summary.Indexed[1].Translation != "U" || summary.Indexed[1].Build.Stemmed {
		t.Errorf("U report = %+v", summary.Indexed[1])
	}
	for _, r := range summary.Indexed {
		if !r.Verified {
			t.Errorf("%s not verified", r.Translation)
		}
	}

	reader := postings.NewReader(cfg.Corpus)
	eng, _ := stemmer.NewRegistry().Resolve("eng")

	stemmed, err := reader.ReadWord("T", eng.Stem("beginning"))
	if err != nil {
		t.Fatalf("ReadWord: %v", err)
	}
	if want := (index.PostingList{{Book: "gen", ChapterID: "1", Verse: 1}}); !reflect.DeepEqual(stemmed, want) {
		t.Errorf("T beginning = %v, want %v", stemmed, want)
	}

	raw, err := reader.ReadWord("U", "the")
	if err != nil {
		t.Fatalf("ReadWord: %v", err)
	}
	want := index.PostingList{
		{Book: "gen", ChapterID: "1", Verse: 1},
		{Book: "gen", ChapterID: "1", Verse: 2},
	}
	if !reflect.DeepEqual(raw, want) {
		t.Errorf("U the = %v, want %v", raw, want)
	}
	if _, err := reader.ReadWord("U", "beginning"); err != nil {
		t.Errorf("unstemmed word missing: %v", err)
	}

	if got := testutil.ToFloat64(m.TranslationsIndexed.WithLabelValues("ok")); got != 2 {
		t.Errorf("translations ok = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.VersesIndexed); got != 4 {
		t.Errorf("verses = %v, want 4", got)
	}
	if got := testutil.ToFloat64(m.ActiveTranslations); got != 0 {
		t.Errorf("active translations = %v, want 0", got)
	}
}

func TestRunHaltsOnFirstFailure(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a", "json", "gen.json"), genesisBook)
	addTranslation(t, root, "b", "eng")

	cfg := testConfig(root)
	summary, err := New(cfg, Deps{}).Run(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, apperrors.ErrMissingLanguage) {
		t.Errorf("err = %v, want ErrMissingLanguage", err)
	}
	if stage := apperrors.StageOf(err); stage != apperrors.StageLoad {
		t.Errorf("stage = %q, want load", stage)
	}
	if !reflect.DeepEqual(summary.Skipped, []string{"b"}) {
		t.Errorf("skipped = %v, want [b]", summary.Skipped)
	}
	if _, statErr := os.Stat(filepath.Join(root, "b", "indexes_json")); !os.IsNotExist(statErr) {
		t.Errorf("b should not have been indexed, stat err = %v", statErr)
	}
}

func TestRunContinueOnError(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a", "metadata.json"), `{"language": "eng"}`)
	writeFile(t, filepath.Join(root, "a", "json", "gen.json"), `{"chapters": {"1": [1]}}`)
	addTranslation(t, root, "b", "eng")

	cfg := testConfig(root)
	cfg.Indexer.ContinueOnError = true
	cfg.Indexer.Workers = 2
	summary, err := New(cfg, Deps{}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(summary.Indexed) != 1 || summary.Indexed[0].Translation != "b" {
		t.Errorf("indexed = %+v", summary.Indexed)
	}
	if !errors.Is(summary.Failed["a"], apperrors.ErrMalformedBook) {
		t.Errorf("failed[a] = %v, want ErrMalformedBook", summary.Failed["a"])
	}
}

func TestRunStrictLanguages(t *testing.T) {
	root := t.TempDir()
	addTranslation(t, root, "T", "English")

	cfg := testConfig(root)
	_, err := New(cfg, Deps{}).Run(context.Background())
	if !errors.Is(err, apperrors.ErrUnrecognizedLanguage) {
		t.Fatalf("err = %v, want ErrUnrecognizedLanguage", err)
	}
	if stage := apperrors.StageOf(err); stage != apperrors.StageResolve {
		t.Errorf("stage = %q, want resolve", stage)
	}

	cfg.Indexer.StrictLanguages = false
	summary, err := New(cfg, Deps{}).Run(context.Background())
	if err != nil {
		t.Fatalf("lenient Run: %v", err)
	}
	if len(summary.Indexed) != 1 || summary.Indexed[0].Build.Stemmed {
		t.Errorf("expected one unstemmed translation, got %+v", summary.Indexed)
	}
}

func TestRunCancelled(t *testing.T) {
	root := t.TempDir()
	addTranslation(t, root, "T", "eng")
	addTranslation(t, root, "U", "xx")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	summary, err := New(testConfig(root), Deps{}).Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if len(summary.Indexed) != 0 {
		t.Errorf("indexed = %+v, want none", summary.Indexed)
	}
	if !reflect.DeepEqual(summary.Skipped, []string{"T", "U"}) {
		t.Errorf("skipped = %v", summary.Skipped)
	}
}

func TestIndexTranslationNotifies(t *testing.T) {
	root := t.TempDir()
	addTranslation(t, root, "T", "eng")

	n := &recordingNotifier{}
	report, err := New(testConfig(root), Deps{Notifier: n}).IndexTranslation(context.Background(), "T")
	if err != nil {
		t.Fatalf("IndexTranslation: %v", err)
	}
	if len(n.events) != 1 {
		t.Fatalf("events = %d, want 1", len(n.events))
	}
	ev := n.events[0]
	if ev.Type != notify.EventTranslationIndexed || ev.Translation != "T" || ev.Language != "eng" {
		t.Errorf("event = %+v", ev)
	}
	if ev.Words != report.Write.Files || ev.Pointers != report.Write.Pointers || ev.Verses != 2 {
		t.Errorf("event counts %+v do not match report %+v", ev, report)
	}
}

func TestNotifierFailureDoesNotFailTranslation(t *testing.T) {
	root := t.TempDir()
	addTranslation(t, root, "T", "eng")

	n := &recordingNotifier{err: errors.New("broker down")}
	if _, err := New(testConfig(root), Deps{Notifier: n}).IndexTranslation(context.Background(), "T"); err != nil {
		t.Fatalf("IndexTranslation: %v", err)
	}
	if len(n.events) != 1 {
		t.Errorf("events = %d, want 1", len(n.events))
	}
}

func TestVerifyDetectsMismatchedPostings(t *testing.T) {
	root := t.TempDir()
	addTranslation(t, root, "U", "xx")

	// The reader looks at a second tree where every word file is empty.
	other := t.TempDir()
	for _, w := range []string{"in", "the", "beginning", "earth", "was", "formless"} {
		writeFile(t, filepath.Join(other, "U", "indexes_json", w+".json"), `[]`)
	}
	otherCfg := testConfig(other)

	_, err := New(testConfig(root), Deps{Reader: postings.NewReader(otherCfg.Corpus)}).IndexTranslation(context.Background(), "U")
	if !apperrors.Is(err, apperrors.ErrVerifyFailed) {
		t.Fatalf("err = %v, want ErrVerifyFailed", err)
	}
	if stage := apperrors.StageOf(err); stage != apperrors.StageVerify {
		t.Errorf("stage = %q, want verify", stage)
	}
	if !strings.Contains(err.Error(), "translation U: verify: ") || !strings.Contains(err.Error(), "pointers on disk, expected") {
		t.Errorf("unexpected message: %v", err)
	}
}

func TestVerifyMissingPostingFile(t *testing.T) {
	root := t.TempDir()
	addTranslation(t, root, "U", "xx")
	otherCfg := testConfig(t.TempDir())

	_, err := New(testConfig(root), Deps{Reader: postings.NewReader(otherCfg.Corpus)}).IndexTranslation(context.Background(), "U")
	if !apperrors.Is(err, apperrors.ErrVerifyFailed) || !apperrors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v, want ErrVerifyFailed wrapping ErrNotExist", err)
	}
	if stage := apperrors.StageOf(err); stage != apperrors.StageVerify {
		t.Errorf("stage = %q, want verify", stage)
	}
}
