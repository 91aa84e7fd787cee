package sqlbase

import (
	"context"
	"database/sql"
	"errors"
	"time"

	jerrors "github.com/julianstephens/dayjot/internal/errors"
	"github.com/julianstephens/dayjot/internal/models"
	"github.com/julianstephens/dayjot/internal/storage"
)

const reminderColumns = `id, user_id, label, schedule, timezone, next_fire_at, enabled, last_fired_at, created_at, updated_at`

func scanReminder(row rowScanner) (models.Reminder, error) {
	var (
		r                              models.Reminder
		nextFire, createdAt, updatedAt string
		lastFired                      sql.NullString
	)
	if err := row.Scan(&r.ID, &r.UserID, &r.Label, &r.Schedule, &r.Timezone, &nextFire, &r.Enabled, &lastFired, &createdAt, &updatedAt); err != nil {
		return models.Reminder{}, err
	}

	var err error
	if r.NextFireAt, err = parseTime(nextFire); err != nil {
		return models.Reminder{}, err
	}
	if r.CreatedAt, err = parseTime(createdAt); err != nil {
		return models.Reminder{}, err
	}
	if r.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return models.Reminder{}, err
	}
	if lastFired.Valid && lastFired.String != "" {
		t, err := parseTime(lastFired.String)
		if err != nil {
			return models.Reminder{}, err
		}
		r.LastFiredAt = &t
	}
	return r, nil
}

func (b *Base) AddReminder(ctx context.Context, r models.Reminder) error {
	if err := b.ready(); err != nil {
		return err
	}
	_, err := b.db.ExecContext(ctx, b.rebind(`INSERT INTO reminders (`+reminderColumns+`) VALUES (`+placeholders(10)+`)`),
		r.ID, r.UserID, r.Label, r.Schedule, r.Timezone, formatTime(r.NextFireAt), r.Enabled,
		nullableTime(r.LastFiredAt), formatTime(r.CreatedAt), formatTime(r.UpdatedAt))
	return b.wrap("insert reminder", err)
}

func (b *Base) GetReminder(ctx context.Context, userID, id string) (models.Reminder, error) {
	if err := b.ready(); err != nil {
		return models.Reminder{}, err
	}
	row := b.db.QueryRowContext(ctx, b.rebind(`SELECT `+reminderColumns+` FROM reminders WHERE user_id = ? AND id = ?`), userID, id)
	r, err := scanReminder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Reminder{}, jerrors.NotFound("reminder", id)
	}
	if err != nil {
		return models.Reminder{}, b.wrap("get reminder", err)
	}
	return r, nil
}

func (b *Base) ListReminders(ctx context.Context, userID string) ([]models.Reminder, error) {
	if err := b.ready(); err != nil {
		return nil, err
	}
	rows, err := b.db.QueryContext(ctx, b.rebind(`
		SELECT `+reminderColumns+` FROM reminders WHERE user_id = ?
		ORDER BY created_at ASC, id ASC`), userID)
	if err != nil {
		return nil, b.wrap("list reminders", err)
	}
	return b.collectReminders(rows)
}

func (b *Base) UpdateReminder(ctx context.Context, r models.Reminder) error {
	if err := b.ready(); err != nil {
		return err
	}
	res, err := b.db.ExecContext(ctx, b.rebind(`
		UPDATE reminders
		SET label = ?, schedule = ?, timezone = ?, next_fire_at = ?, enabled = ?, last_fired_at = ?, updated_at = ?
		WHERE user_id = ? AND id = ?`),
		r.Label, r.Schedule, r.Timezone, formatTime(r.NextFireAt), r.Enabled,
		nullableTime(r.LastFiredAt), formatTime(r.UpdatedAt), r.UserID, r.ID)
	if err != nil {
		return b.wrap("update reminder", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return b.wrap("update reminder", err)
	}
	if n == 0 {
		return jerrors.NotFound("reminder", r.ID)
	}
	return nil
}

func (b *Base) DueReminders(ctx context.Context, now time.Time, limit int) ([]models.Reminder, error) {
	if err := b.ready(); err != nil {
		return nil, err
	}
	rows, err := b.db.QueryContext(ctx, b.rebind(`
		SELECT `+reminderColumns+` FROM reminders
		WHERE enabled = ? AND next_fire_at <= ?
		ORDER BY next_fire_at ASC, id ASC LIMIT ?`), true, formatTime(now), limit)
	if err != nil {
		return nil, b.wrap("list due reminders", err)
	}
	return b.collectReminders(rows)
}

// RecordFire is a compare-and-set on next_fire_at, so two schedulers racing
// on the same occurrence persist it once.
func (b *Base) RecordFire(ctx context.Context, f storage.FireRecord) (bool, error) {
	if err := b.ready(); err != nil {
		return false, err
	}
	res, err := b.db.ExecContext(ctx, b.rebind(`
		UPDATE reminders SET next_fire_at = ?, last_fired_at = ?, updated_at = ?
		WHERE user_id = ? AND id = ? AND next_fire_at = ? AND enabled = ?`),
		formatTime(f.Next), formatTime(f.FiredAt), formatTime(f.At),
		f.UserID, f.ReminderID, formatTime(f.ExpectedNext), true)
	if err != nil {
		return false, b.wrap("record reminder fire", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, b.wrap("record reminder fire", err)
	}
	return n == 1, nil
}

func (b *Base) collectReminders(rows *sql.Rows) ([]models.Reminder, error) {
	defer rows.Close()
	var out []models.Reminder
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, b.wrap("scan reminder", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, b.wrap("iterate reminders", err)
	}
	return out, nil
}
