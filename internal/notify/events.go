package notify

import "time"

type EventType string

const EventTranslationIndexed EventType = "translation_indexed"

// IndexEvent describes a translation whose posting files are committed.
type IndexEvent struct {
	Type        EventType `json:"type"`
	Translation string    `json:"translation"`
	Language    string    `json:"language"`
	Stemmed     bool      `json:"stemmed"`
	Books       int       `json:"books"`
	Verses      int       `json:"verses"`
	Words       int       `json:"words"`
	Pointers    int       `json:"pointers"`
	LargeLists  int       `json:"large_lists"`
	LatencyMs   int64     `json:"latency_ms"`
	Timestamp   time.Time `json:"timestamp"`
}
