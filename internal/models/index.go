package models

import "time"

// IndexOp is the kind of change carried by an index event.
type IndexOp string

const (
	IndexUpsert IndexOp = "upsert"
	IndexDelete IndexOp = "delete"
)

// IndexEvent is one row of the entry outbox. Upserts carry a snapshot of the
// entry as written, so applying an event never needs to read the store.
type IndexEvent struct {
	Seq       int64     `json:"seq"`
	UserID    string    `json:"user_id"`
	EntryID   string    `json:"entry_id"`
	Op        IndexOp   `json:"op"`
	Entry     *Entry    `json:"entry,omitempty"`
	Attempts  int       `json:"attempts"`
	CreatedAt time.Time `json:"created_at"`
}

// IndexKey is one back-reference from a search key to an entry.
type IndexKey struct {
	Key       string
	EntryID   string
	CreatedAt time.Time
}

// KeyQuery is the storage-level form of a search: all Keys must match.
type KeyQuery struct {
	Keys  []string
	Range DateRange
	Limit int
}
