// Package tokenizer turns verse text into index terms. It keeps ASCII letter
// runs only, lower-cases them with the translation's locale rules, and, when
// a stemmer is supplied, removes in-verse duplicates before stemming.
package tokenizer

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/Adithya-Monish-Kumar-K/scripture-index/internal/indexer/stemmer"
)

// Tokenizer is bound to one translation. It is not safe for concurrent use
// because the underlying cases.Caser keeps state.
type Tokenizer struct {
	caser   cases.Caser
	stemmer stemmer.Stemmer
}

// New returns a Tokenizer that folds case for the given language identifier
// and stems with s. A nil s disables both stemming and deduplication.
func New(lang string, s stemmer.Stemmer) *Tokenizer {
	tag, err := language.Parse(lang)
	if err != nil {
		tag = language.Und
	}
	return &Tokenizer{
		caser:   cases.Lower(tag),
		stemmer: s,
	}
}

// Stemming reports whether tokens are deduplicated and stemmed.
func (t *Tokenizer) Stemming() bool {
	return t.stemmer != nil
}

// Tokenize splits verse into terms. A verse without letters yields a single
// empty term, which callers must drop.
func (t *Tokenizer) Tokenize(verse string) []string {
	sanitized := strings.Join(strings.FieldsFunc(verse, func(r rune) bool {
		return !isASCIILetter(r)
	}), " ")
	words := strings.Split(t.caser.String(sanitized), " ")
	if t.stemmer == nil {
		return words
	}
	words = unique(words)
	for i, w := range words {
		words[i] = t.stemmer.Stem(w)
	}
	return words
}

// unique drops repeated words, keeping first occurrences in order.
func unique(words []string) []string {
	seen := make(map[string]struct{}, len(words))
	out := words[:0]
	for _, w := range words {
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}

func isASCIILetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
