package index

import "sort"

// InvertedIndex maps a term to every verse it occurs in, for a single
// translation. It is filled by one builder goroutine and handed to the writer
// once complete, so it carries no lock.
type InvertedIndex struct {
	postings map[string]PostingList
	pointers int
}

func NewInvertedIndex() *InvertedIndex {
	return &InvertedIndex{
		postings: make(map[string]PostingList),
	}
}

// Add appends p to the posting list of term. The empty term is rejected and
// Add reports false.
func (x *InvertedIndex) Add(term string, p Pointer) bool {
	if term == "" {
		return false
	}
	x.postings[term] = append(x.postings[term], p)
	x.pointers++
	return true
}

func (x *InvertedIndex) Postings(term string) PostingList {
	return x.postings[term]
}

// Len returns the number of distinct terms.
func (x *InvertedIndex) Len() int {
	return len(x.postings)
}

// PointerCount returns the total number of pointers across all terms.
func (x *InvertedIndex) PointerCount() int {
	return x.pointers
}

// Snapshot returns every term with its posting list, sorted by term. The
// posting lists are shared with the index, not copied.
func (x *InvertedIndex) Snapshot() []TermEntry {
	entries := make([]TermEntry, 0, len(x.postings))
	for term, postings := range x.postings {
		entries = append(entries, TermEntry{
			Term:     term,
			Postings: postings,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Term < entries[j].Term
	})
	return entries
}
