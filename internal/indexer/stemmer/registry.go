// Package stemmer maps translation language identifiers to stemming
// strategies. The table is closed: identifiers are ISO 639-3 codes and lookup
// is exact. An identifier missing from the table means "index unstemmed".
package stemmer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kljensen/snowball"
	"golang.org/x/text/language"

	apperrors "github.com/Adithya-Monish-Kumar-K/scripture-index/pkg/errors"
)

// Stemmer reduces a token to its root form.
type Stemmer interface {
	Stem(token string) string
}

// maxStemPasses bounds the fixed-point loop in snowballStemmer.Stem.
const maxStemPasses = 10

// snowballStemmer runs one of the snowball algorithms. Stop words are stemmed
// too so that every token goes through the same reduction.
type snowballStemmer struct {
	algorithm string
}

// Stem applies the algorithm until the output stops changing. A single
// snowball pass can leave a word that stems further ("agreed", "agre", "agr"),
// so the result is always a fixed point and Stem(Stem(w)) == Stem(w).
func (s snowballStemmer) Stem(token string) string {
	if token == "" {
		return ""
	}
	current := token
	for i := 0; i < maxStemPasses; i++ {
		stemmed, err := snowball.Stem(current, s.algorithm, true)
		if err != nil || stemmed == "" || stemmed == current {
			break
		}
		current = stemmed
	}
	return current
}

type entry struct {
	stemmer Stemmer
	// name is the English language name, accepted only as a near miss.
	name string
}

// Registry holds the language table. It is built once at startup and only
// read afterwards.
type Registry struct {
	table map[string]entry
}

// NewRegistry returns the default table of snowball-backed stemmers.
func NewRegistry() *Registry {
	r := &Registry{table: make(map[string]entry)}
	for code, algorithm := range map[string]string{
		"eng": "english",
		"spa": "spanish",
		"fra": "french",
		"rus": "russian",
		"swe": "swedish",
		"nor": "norwegian",
		"hun": "hungarian",
	} {
		r.table[code] = entry{stemmer: snowballStemmer{algorithm: algorithm}, name: algorithm}
	}
	return r
}

// Register adds or replaces the stemmer for id.
func (r *Registry) Register(id string, s Stemmer) {
	name := ""
	if existing, ok := r.table[id]; ok {
		name = existing.name
	}
	r.table[id] = entry{stemmer: s, name: name}
}

// Resolve returns the stemmer registered under exactly id.
func (r *Registry) Resolve(id string) (Stemmer, bool) {
	e, ok := r.table[id]
	if !ok {
		return nil, false
	}
	return e.stemmer, true
}

// ResolveStrict behaves like Resolve but reports identifiers that were
// evidently meant to name a supported language (another ISO form, a case
// variant or the language name) with ErrUnrecognizedLanguage. Identifiers
// unrelated to the table yield (nil, nil).
func (r *Registry) ResolveStrict(id string) (Stemmer, error) {
	if s, ok := r.Resolve(id); ok {
		return s, nil
	}
	if intended, ok := r.nearMiss(id); ok {
		return nil, fmt.Errorf("%w: %q looks like %q, use the exact identifier",
			apperrors.ErrUnrecognizedLanguage, id, intended)
	}
	return nil, nil
}

// Languages returns the registered identifiers in sorted order.
func (r *Registry) Languages() []string {
	ids := make([]string, 0, len(r.table))
	for id := range r.table {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *Registry) nearMiss(id string) (string, bool) {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return "", false
	}
	for code, e := range r.table {
		if strings.EqualFold(trimmed, code) {
			return code, true
		}
		if e.name != "" && strings.EqualFold(trimmed, e.name) {
			return code, true
		}
	}
	tag, err := language.Parse(trimmed)
	if err != nil {
		return "", false
	}
	// Only an explicit subtag counts. "und" and script-only tags like
	// "und-Cyrl" infer a base language and must stay unsupported.
	base, conf := tag.Base()
	if conf != language.Exact {
		return "", false
	}
	if _, ok := r.table[base.ISO3()]; ok {
		return base.ISO3(), true
	}
	return "", false
}
