package types

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Document is a raw news article handed to the ingestion pipeline.
type Document struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	Source   string `json:"source"`
	Category string `json:"category"`
	Link     string `json:"link,omitempty"`
}

// Text returns the string the chunker works on. A document with neither
// title nor body has no text.
func (d Document) Text() string {
	if strings.TrimSpace(d.Title) == "" && strings.TrimSpace(d.Body) == "" {
		return ""
	}
	return d.Title + ". " + d.Body
}

// Chunk is a word window of a document's text.
type Chunk struct {
	Index int
	Text  string
}

type Payload struct {
	Title      string    `json:"title"`
	Link       string    `json:"link"`
	Content    string    `json:"content"`
	Source     string    `json:"source"`
	Category   string    `json:"category"`
	IngestedAt time.Time `json:"ingestedAt"`
}

// IndexedPoint is the record stored in the vector index, one per chunk.
type IndexedPoint struct {
	ID      uuid.UUID
	Vector  []float32
	Payload Payload
}

// SearchHit is a search result. Score is the cosine similarity in [-1, 1].
type SearchHit struct {
	ID      uuid.UUID
	Payload Payload
	Score   float32
}

type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// Message is one turn of a session.
type Message struct {
	Sender    Sender    `json:"sender"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}
