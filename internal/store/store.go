// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package store

import (
	"context"
	"time"
)

// Record is one embedded chunk of an ingested document.
type Record struct {
	ID        string
	Source    string // base file name of the originating document
	Seq       int    // position within Source, assigned by the store on Add
	Text      string
	Embedding []float32
	CreatedAt time.Time
}

// ScoredRecord is a search hit. Distance is the L2 distance to the query;
// lower is closer.
type ScoredRecord struct {
	Record
	Distance float64
}

// SourceInfo summarizes one ingested document.
type SourceInfo struct {
	Source     string    `json:"source"`
	Chunks     int       `json:"chunks"`
	IngestedAt time.Time `json:"ingested_at"`
}

// VectorStore persists chunk embeddings and serves nearest-neighbour search.
type VectorStore interface {
	// Add appends records. Seq continues from the highest existing Seq of
	// each source, so appended duplicates sort after earlier chunks.
	Add(ctx context.Context, records []Record) error
	Search(ctx context.Context, query []float32, k int) ([]ScoredRecord, error)
	// Chunks returns the records of source in Seq order, without embeddings.
	Chunks(ctx context.Context, source string) ([]Record, error)
	// ListSources reads metadata only and never touches the vector index.
	ListSources(ctx context.Context) ([]SourceInfo, error)
	HasSource(ctx context.Context, source string) (bool, error)
	DeleteBySource(ctx context.Context, source string) (int, error)
	Count(ctx context.Context) (int, error)
	Dimensions() int
	Close() error
}

// Exchange is one completed user/assistant turn.
type Exchange struct {
	ID          string
	SessionID   string
	UserMessage string
	Answer      string
	CreatedAt   time.Time
}

// ConversationStore persists the exchanges behind the conversation memory
// window.
type ConversationStore interface {
	AppendExchange(ctx context.Context, ex *Exchange) error
	// RecentExchanges returns at most limit exchanges, oldest first.
	RecentExchanges(ctx context.Context, sessionID string, limit int) ([]*Exchange, error)
	// TrimExchanges deletes all but the newest keep exchanges of a session.
	TrimExchanges(ctx context.Context, sessionID string, keep int) (int64, error)
	ClearSession(ctx context.Context, sessionID string) error
	Close() error
}
