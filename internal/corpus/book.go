package corpus

import (
	"encoding/json"
	"fmt"
	"io"

	apperrors "github.com/Adithya-Monish-Kumar-K/scripture-index/pkg/errors"
)

const chaptersField = "chapters"

// DecodeBook reads a book document of the form
//
//	{"chapters": {"1": ["verse", ...], "2": [...]}, ...}
//
// Chapters are returned in document order. Other top-level fields are
// ignored. A document without a chapters object fails with ErrMalformedBook.
func DecodeBook(id string, r io.Reader) (Book, error) {
	dec := json.NewDecoder(r)
	if err := expectDelim(dec, '{'); err != nil {
		return Book{}, malformed(id, err)
	}
	book := Book{ID: id}
	found := false
	for dec.More() {
		key, err := dec.Token()
		if err != nil {
			return Book{}, malformed(id, err)
		}
		if key != chaptersField {
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return Book{}, malformed(id, err)
			}
			continue
		}
		chapters, err := decodeChapters(dec)
		if err != nil {
			return Book{}, malformed(id, err)
		}
		book.Chapters = chapters
		found = true
	}
	if err := expectDelim(dec, '}'); err != nil {
		return Book{}, malformed(id, err)
	}
	if !found {
		return Book{}, malformed(id, fmt.Errorf("missing %q field", chaptersField))
	}
	return book, nil
}

func decodeChapters(dec *json.Decoder) ([]Chapter, error) {
	if err := expectDelim(dec, '{'); err != nil {
		return nil, fmt.Errorf("%s: %w", chaptersField, err)
	}
	chapters := make([]Chapter, 0)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		chapterID, _ := tok.(string)
		var verses []string
		if err := dec.Decode(&verses); err != nil {
			return nil, fmt.Errorf("chapter %s: %w", chapterID, err)
		}
		chapters = append(chapters, Chapter{ID: chapterID, Verses: verses})
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nil, err
	}
	return chapters, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}

func malformed(id string, err error) error {
	return fmt.Errorf("%w: book %s: %v", apperrors.ErrMalformedBook, id, err)
}
