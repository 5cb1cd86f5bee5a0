package index

// Pointer locates one verse. Verse is the 1-based position of the verse in
// its chapter.
type Pointer struct {
	Book      string `json:"book"`
	ChapterID string `json:"chapterId"`
	Verse     int    `json:"verse"`
}

// PostingList holds the pointers for one term in append order.
type PostingList []Pointer

type TermEntry struct {
	Term     string
	Postings PostingList
}
