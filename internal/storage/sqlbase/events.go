package sqlbase

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	json "github.com/goccy/go-json"

	"github.com/julianstephens/dayjot/internal/models"
)

const eventPending = "pending"

func (b *Base) enqueueEvent(ctx context.Context, tx *sql.Tx, ev models.IndexEvent) error {
	payload := ""
	at := time.Now()
	if ev.Entry != nil {
		data, err := json.Marshal(ev.Entry)
		if err != nil {
			return fmt.Errorf("failed to marshal index event: %w", err)
		}
		payload = string(data)
		at = ev.Entry.UpdatedAt
	}
	_, err := tx.ExecContext(ctx, b.rebind(`
		INSERT INTO index_events (user_id, entry_id, op, payload, status, attempts, last_error, created_at)
		VALUES (?, ?, ?, ?, ?, 0, '', ?)`),
		ev.UserID, ev.EntryID, string(ev.Op), payload, eventPending, formatTime(at))
	return b.wrap("enqueue index event", err)
}

// PendingEvents returns the oldest undrained events for a user in commit order.
func (b *Base) PendingEvents(ctx context.Context, userID string, limit int) ([]models.IndexEvent, error) {
	if err := b.ready(); err != nil {
		return nil, err
	}
	rows, err := b.db.QueryContext(ctx, b.rebind(`
		SELECT seq, user_id, entry_id, op, payload, attempts, created_at
		FROM index_events
		WHERE status = ? AND user_id = ?
		ORDER BY seq ASC LIMIT ?`), eventPending, userID, limit)
	if err != nil {
		return nil, b.wrap("list index events", err)
	}
	defer rows.Close()

	var events []models.IndexEvent
	for rows.Next() {
		var (
			ev       models.IndexEvent
			op       string
			payload  string
			tsString string
		)
		if err := rows.Scan(&ev.Seq, &ev.UserID, &ev.EntryID, &op, &payload, &ev.Attempts, &tsString); err != nil {
			return nil, b.wrap("scan index event", err)
		}
		ev.Op = models.IndexOp(op)
		if ev.CreatedAt, err = parseTime(tsString); err != nil {
			return nil, err
		}
		if payload != "" {
			var e models.Entry
			if err := json.Unmarshal([]byte(payload), &e); err != nil {
				return nil, fmt.Errorf("failed to unmarshal index event %d: %w", ev.Seq, err)
			}
			ev.Entry = &e
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, b.wrap("iterate index events", err)
	}
	return events, nil
}

func (b *Base) UsersWithPendingEvents(ctx context.Context) ([]string, error) {
	if err := b.ready(); err != nil {
		return nil, err
	}
	rows, err := b.db.QueryContext(ctx, b.rebind(`
		SELECT DISTINCT user_id FROM index_events WHERE status = ? ORDER BY user_id`), eventPending)
	if err != nil {
		return nil, b.wrap("list users with pending events", err)
	}
	return b.collectStrings(rows, "list users with pending events")
}

// MarkEventDone removes an applied event. Upsert rows carry a snapshot of the
// entry, so nothing is kept once the index has it.
func (b *Base) MarkEventDone(ctx context.Context, seq int64) error {
	if err := b.ready(); err != nil {
		return err
	}
	_, err := b.db.ExecContext(ctx, b.rebind(`DELETE FROM index_events WHERE seq = ?`), seq)
	return b.wrap("mark index event done", err)
}

// pruneEvents drops an entry's undrained events. Index keys are replaced per
// entry, so a following delete event alone leaves the same index state.
func (b *Base) pruneEvents(ctx context.Context, tx *sql.Tx, userID, entryID string) error {
	_, err := tx.ExecContext(ctx, b.rebind(`DELETE FROM index_events WHERE user_id = ? AND entry_id = ? AND status = ?`),
		userID, entryID, eventPending)
	return b.wrap("prune index events", err)
}

// MarkEventFailed records the failure but leaves the event pending so the
// next drain retries it.
func (b *Base) MarkEventFailed(ctx context.Context, seq int64, cause error) error {
	if err := b.ready(); err != nil {
		return err
	}
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	_, err := b.db.ExecContext(ctx, b.rebind(`UPDATE index_events SET attempts = attempts + 1, last_error = ? WHERE seq = ?`), msg, seq)
	return b.wrap("mark index event failed", err)
}
