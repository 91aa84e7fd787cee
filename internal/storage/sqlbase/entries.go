package sqlbase

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	json "github.com/goccy/go-json"

	jerrors "github.com/julianstephens/dayjot/internal/errors"
	"github.com/julianstephens/dayjot/internal/models"
	"github.com/julianstephens/dayjot/internal/storage"
)

const entryColumns = `user_id, id, created_at, updated_at, text, mood, rating, media_refs, tags, user_tags`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (models.Entry, error) {
	var (
		e                    models.Entry
		createdAt, updatedAt string
		mood                 string
		rating               sql.NullInt64
		mediaJSON, tagsJSON  string
		userTagsJSON         string
	)
	if err := row.Scan(&e.UserID, &e.ID, &createdAt, &updatedAt, &e.Text, &mood, &rating, &mediaJSON, &tagsJSON, &userTagsJSON); err != nil {
		return models.Entry{}, err
	}

	var err error
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return models.Entry{}, err
	}
	if e.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return models.Entry{}, err
	}
	e.Mood = models.Mood(mood)
	if rating.Valid {
		r := int(rating.Int64)
		e.Rating = &r
	}
	if err := json.Unmarshal([]byte(mediaJSON), &e.MediaRefs); err != nil {
		return models.Entry{}, fmt.Errorf("failed to unmarshal media refs: %w", err)
	}
	if err := json.Unmarshal([]byte(tagsJSON), &e.Tags); err != nil {
		return models.Entry{}, fmt.Errorf("failed to unmarshal tags: %w", err)
	}
	if err := json.Unmarshal([]byte(userTagsJSON), &e.UserTags); err != nil {
		return models.Entry{}, fmt.Errorf("failed to unmarshal user tags: %w", err)
	}
	if len(e.MediaRefs) == 0 {
		e.MediaRefs = nil
	}
	if len(e.Tags) == 0 {
		e.Tags = nil
	}
	if len(e.UserTags) == 0 {
		e.UserTags = nil
	}
	return e, nil
}

func entryArgs(e models.Entry) ([]any, error) {
	media := e.MediaRefs
	if media == nil {
		media = []models.MediaRef{}
	}
	mediaJSON, err := json.Marshal(media)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal media refs: %w", err)
	}
	tagsJSON, err := marshalTags(e.Tags)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tags: %w", err)
	}
	userTagsJSON, err := marshalTags(e.UserTags)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal user tags: %w", err)
	}
	var rating *int64
	if e.Rating != nil {
		r := int64(*e.Rating)
		rating = &r
	}
	return []any{
		e.UserID, e.ID, formatTime(e.CreatedAt), formatTime(e.UpdatedAt),
		e.Text, string(e.Mood), rating, string(mediaJSON), string(tagsJSON), string(userTagsJSON),
	}, nil
}

func marshalTags(tags []string) ([]byte, error) {
	if tags == nil {
		tags = []string{}
	}
	return json.Marshal(tags)
}

func (b *Base) CreateEntry(ctx context.Context, e models.Entry) error {
	args, err := entryArgs(e)
	if err != nil {
		return err
	}
	return b.inTx(ctx, "insert entry", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, b.rebind(`INSERT INTO entries (`+entryColumns+`) VALUES (`+placeholders(10)+`)`), args...); err != nil {
			return b.wrap("insert entry", err)
		}
		return b.enqueueEvent(ctx, tx, models.IndexEvent{UserID: e.UserID, EntryID: e.ID, Op: models.IndexUpsert, Entry: &e})
	})
}

func (b *Base) GetEntry(ctx context.Context, userID, id string) (models.Entry, error) {
	if err := b.ready(); err != nil {
		return models.Entry{}, err
	}
	row := b.db.QueryRowContext(ctx, b.rebind(`SELECT `+entryColumns+` FROM entries WHERE user_id = ? AND id = ?`), userID, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Entry{}, jerrors.NotFound("entry", id)
	}
	if err != nil {
		return models.Entry{}, b.wrap("get entry", err)
	}
	return e, nil
}

func (b *Base) GetEntries(ctx context.Context, userID string, ids []string) ([]models.Entry, error) {
	if err := b.ready(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, 0, len(ids)+1)
	args = append(args, userID)
	for _, id := range ids {
		args = append(args, id)
	}
	rows, err := b.db.QueryContext(ctx, b.rebind(`SELECT `+entryColumns+` FROM entries WHERE user_id = ? AND id IN (`+placeholders(len(ids))+`)`), args...)
	if err != nil {
		return nil, b.wrap("get entries", err)
	}
	return b.collectEntries(rows)
}

func (b *Base) UpdateEntry(ctx context.Context, e models.Entry) error {
	args, err := entryArgs(e)
	if err != nil {
		return err
	}
	return b.inTx(ctx, "update entry", func(tx *sql.Tx) error {
		// created_at is deliberately absent from the SET list
		res, err := tx.ExecContext(ctx, b.rebind(`
			UPDATE entries SET updated_at = ?, text = ?, mood = ?, rating = ?, media_refs = ?, tags = ?, user_tags = ?
			WHERE user_id = ? AND id = ?`),
			args[3], args[4], args[5], args[6], args[7], args[8], args[9], e.UserID, e.ID)
		if err != nil {
			return b.wrap("update entry", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return b.wrap("update entry", err)
		}
		if n == 0 {
			return jerrors.NotFound("entry", e.ID)
		}
		return b.enqueueEvent(ctx, tx, models.IndexEvent{UserID: e.UserID, EntryID: e.ID, Op: models.IndexUpsert, Entry: &e})
	})
}

func (b *Base) DeleteEntry(ctx context.Context, userID, id string) (bool, error) {
	deleted := false
	err := b.inTx(ctx, "delete entry", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, b.rebind(`DELETE FROM entries WHERE user_id = ? AND id = ?`), userID, id)
		if err != nil {
			return b.wrap("delete entry", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return b.wrap("delete entry", err)
		}
		if n == 0 {
			return nil
		}
		deleted = true
		if err := b.pruneEvents(ctx, tx, userID, id); err != nil {
			return err
		}
		return b.enqueueEvent(ctx, tx, models.IndexEvent{UserID: userID, EntryID: id, Op: models.IndexDelete})
	})
	return deleted, err
}

func (b *Base) ListEntries(ctx context.Context, userID string, r models.DateRange, after *storage.EntryCursor, limit int) ([]models.Entry, error) {
	if err := b.ready(); err != nil {
		return nil, err
	}
	var (
		where = []string{"user_id = ?"}
		args  = []any{userID}
	)
	if !r.From.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, formatTime(r.From))
	}
	if !r.To.IsZero() {
		where = append(where, "created_at < ?")
		args = append(args, formatTime(r.To))
	}
	if after != nil {
		where = append(where, "(created_at > ? OR (created_at = ? AND id > ?))")
		ts := formatTime(after.CreatedAt)
		args = append(args, ts, ts, after.ID)
	}
	query := `SELECT ` + entryColumns + ` FROM entries WHERE ` + strings.Join(where, " AND ") + ` ORDER BY created_at ASC, id ASC`
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := b.db.QueryContext(ctx, b.rebind(query), args...)
	if err != nil {
		return nil, b.wrap("list entries", err)
	}
	return b.collectEntries(rows)
}

func (b *Base) RecentEntries(ctx context.Context, userID string, limit int) ([]models.Entry, error) {
	if err := b.ready(); err != nil {
		return nil, err
	}
	rows, err := b.db.QueryContext(ctx, b.rebind(`
		SELECT `+entryColumns+` FROM entries WHERE user_id = ?
		ORDER BY created_at DESC, id DESC LIMIT ?`), userID, limit)
	if err != nil {
		return nil, b.wrap("list recent entries", err)
	}
	return b.collectEntries(rows)
}

func (b *Base) ListUsers(ctx context.Context) ([]string, error) {
	if err := b.ready(); err != nil {
		return nil, err
	}
	rows, err := b.db.QueryContext(ctx, `
		SELECT user_id FROM entries
		UNION
		SELECT user_id FROM index_keys
		ORDER BY user_id`)
	if err != nil {
		return nil, b.wrap("list users", err)
	}
	return b.collectStrings(rows, "list users")
}

func (b *Base) collectEntries(rows *sql.Rows) ([]models.Entry, error) {
	defer rows.Close()
	var entries []models.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, b.wrap("scan entry", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, b.wrap("iterate entries", err)
	}
	return entries, nil
}

func (b *Base) collectStrings(rows *sql.Rows, op string) ([]string, error) {
	defer rows.Close()
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, b.wrap(op, err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, b.wrap(op, err)
	}
	return out, nil
}
