// Package corpus reads the parsed scripture corpus: one directory per
// translation holding per-book JSON documents and a metadata document that
// names the translation's language.
package corpus

// Chapter is one chapter of a book with its verses in order.
type Chapter struct {
	ID     string
	Verses []string
}

// Book is a parsed book document. Chapters keep the order of the source
// document and are nil only when the document had no chapters field.
type Book struct {
	ID       string
	Chapters []Chapter
}

// Metadata is the subset of translation metadata the indexer consumes.
type Metadata struct {
	Language string `json:"language"`
}

// Translation is one edition of the corpus, ready to index.
type Translation struct {
	ID       string
	Language string
	Books    []Book
}

// VerseCount returns the number of verses across all books.
func (t Translation) VerseCount() int {
	n := 0
	for _, b := range t.Books {
		for _, c := range b.Chapters {
			n += len(c.Verses)
		}
	}
	return n
}
