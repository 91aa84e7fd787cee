package storage

import (
	"context"
	"time"

	"github.com/julianstephens/dayjot/internal/models"
)

// FireRecord is one delivered reminder occurrence. ExpectedNext is the
// next_fire_at the scheduler read before sending.
type FireRecord struct {
	UserID       string
	ReminderID   string
	ExpectedNext time.Time
	FiredAt      time.Time
	Next         time.Time
	At           time.Time
}

// EntryCursor marks a position in (created_at, id) order for keyset paging.
type EntryCursor struct {
	CreatedAt time.Time
	ID        string
}

// After returns the cursor positioned at e.
func After(e models.Entry) *EntryCursor {
	return &EntryCursor{CreatedAt: e.CreatedAt, ID: e.ID}
}

// Provider is the durable state of the journal: entries, reminders, the
// derived index keys and the outbox of index events. Every entry, index and
// reminder call is scoped by user id.
type Provider interface {
	// Lifecycle
	Init() error
	Load() error
	Close() error
	GetConfigPath() string

	// Entries. Writes insert the matching index event in the same transaction.
	CreateEntry(ctx context.Context, entry models.Entry) error
	GetEntry(ctx context.Context, userID, id string) (models.Entry, error)
	GetEntries(ctx context.Context, userID string, ids []string) ([]models.Entry, error)
	UpdateEntry(ctx context.Context, entry models.Entry) error
	// DeleteEntry reports whether a row was removed.
	DeleteEntry(ctx context.Context, userID, id string) (bool, error)
	// ListEntries returns up to limit entries in r, ascending by (created_at, id),
	// strictly after the cursor when one is given.
	ListEntries(ctx context.Context, userID string, r models.DateRange, after *EntryCursor, limit int) ([]models.Entry, error)
	RecentEntries(ctx context.Context, userID string, limit int) ([]models.Entry, error)
	ListUsers(ctx context.Context) ([]string, error)

	// Index keys
	ReplaceIndexKeys(ctx context.Context, userID, entryID string, keys []models.IndexKey) error
	DeleteIndexKeys(ctx context.Context, userID, entryID string) error
	ReplaceUserIndex(ctx context.Context, userID string, keys []models.IndexKey) error
	UserIndexKeys(ctx context.Context, userID string) ([]models.IndexKey, error)
	// SearchIndex returns entry ids matching every key, newest first.
	SearchIndex(ctx context.Context, userID string, q models.KeyQuery) ([]string, error)

	// Index event outbox
	PendingEvents(ctx context.Context, userID string, limit int) ([]models.IndexEvent, error)
	UsersWithPendingEvents(ctx context.Context) ([]string, error)
	MarkEventDone(ctx context.Context, seq int64) error
	MarkEventFailed(ctx context.Context, seq int64, cause error) error

	// Reminders
	AddReminder(ctx context.Context, r models.Reminder) error
	GetReminder(ctx context.Context, userID, id string) (models.Reminder, error)
	ListReminders(ctx context.Context, userID string) ([]models.Reminder, error)
	UpdateReminder(ctx context.Context, r models.Reminder) error
	// DueReminders returns enabled reminders with next_fire_at <= now, oldest first.
	DueReminders(ctx context.Context, now time.Time, limit int) ([]models.Reminder, error)
	// RecordFire persists a fired occurrence only if next_fire_at still equals
	// f.ExpectedNext, and reports whether the row was updated.
	RecordFire(ctx context.Context, f FireRecord) (bool, error)
}

// Migrator is implemented by stores that can upgrade their schema in place.
type Migrator interface {
	Migrate(logFn func(string)) (int, error)
}
