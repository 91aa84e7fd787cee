package sqlbase

import (
	"context"
	"database/sql"
	"strings"

	"github.com/julianstephens/dayjot/internal/models"
)

// datePrefix is the key family every indexed entry carries exactly once.
const datePrefix = "d:"

func (b *Base) ReplaceIndexKeys(ctx context.Context, userID, entryID string, keys []models.IndexKey) error {
	return b.inTx(ctx, "replace index keys", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, b.rebind(`DELETE FROM index_keys WHERE user_id = ? AND entry_id = ?`), userID, entryID); err != nil {
			return b.wrap("replace index keys", err)
		}
		return b.insertKeys(ctx, tx, userID, keys)
	})
}

func (b *Base) DeleteIndexKeys(ctx context.Context, userID, entryID string) error {
	if err := b.ready(); err != nil {
		return err
	}
	_, err := b.db.ExecContext(ctx, b.rebind(`DELETE FROM index_keys WHERE user_id = ? AND entry_id = ?`), userID, entryID)
	return b.wrap("delete index keys", err)
}

func (b *Base) ReplaceUserIndex(ctx context.Context, userID string, keys []models.IndexKey) error {
	return b.inTx(ctx, "replace user index", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, b.rebind(`DELETE FROM index_keys WHERE user_id = ?`), userID); err != nil {
			return b.wrap("replace user index", err)
		}
		return b.insertKeys(ctx, tx, userID, keys)
	})
}

func (b *Base) insertKeys(ctx context.Context, tx *sql.Tx, userID string, keys []models.IndexKey) error {
	if len(keys) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, b.rebind(`INSERT INTO index_keys (user_id, key, entry_id, created_at) VALUES (?, ?, ?, ?)`))
	if err != nil {
		return b.wrap("prepare index insert", err)
	}
	defer stmt.Close()

	for _, k := range keys {
		if _, err := stmt.ExecContext(ctx, userID, k.Key, k.EntryID, formatTime(k.CreatedAt)); err != nil {
			return b.wrap("insert index key", err)
		}
	}
	return nil
}

func (b *Base) UserIndexKeys(ctx context.Context, userID string) ([]models.IndexKey, error) {
	if err := b.ready(); err != nil {
		return nil, err
	}
	rows, err := b.db.QueryContext(ctx, b.rebind(`
		SELECT key, entry_id, created_at FROM index_keys
		WHERE user_id = ? ORDER BY entry_id, key`), userID)
	if err != nil {
		return nil, b.wrap("list index keys", err)
	}
	defer rows.Close()

	var keys []models.IndexKey
	for rows.Next() {
		var (
			k  models.IndexKey
			ts string
		)
		if err := rows.Scan(&k.Key, &k.EntryID, &ts); err != nil {
			return nil, b.wrap("scan index key", err)
		}
		if k.CreatedAt, err = parseTime(ts); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, b.wrap("iterate index keys", err)
	}
	return keys, nil
}

// SearchIndex intersects the posting lists of q.Keys. With no keys every
// indexed entry matches, found through its single date key.
func (b *Base) SearchIndex(ctx context.Context, userID string, q models.KeyQuery) ([]string, error) {
	if err := b.ready(); err != nil {
		return nil, err
	}

	var (
		where = []string{"user_id = ?"}
		args  = []any{userID}
	)
	keys := dedupe(q.Keys)
	if len(keys) == 0 {
		where = append(where, "key LIKE ?")
		args = append(args, datePrefix+"%")
	} else {
		where = append(where, "key IN ("+placeholders(len(keys))+")")
		for _, k := range keys {
			args = append(args, k)
		}
	}
	if !q.Range.From.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, formatTime(q.Range.From))
	}
	if !q.Range.To.IsZero() {
		where = append(where, "created_at < ?")
		args = append(args, formatTime(q.Range.To))
	}

	query := `SELECT entry_id FROM index_keys WHERE ` + strings.Join(where, " AND ") + ` GROUP BY entry_id`
	if len(keys) > 1 {
		query += ` HAVING COUNT(DISTINCT key) = ?`
		args = append(args, len(keys))
	}
	query += ` ORDER BY MAX(created_at) DESC, entry_id DESC`
	if q.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, q.Limit)
	}

	rows, err := b.db.QueryContext(ctx, b.rebind(query), args...)
	if err != nil {
		return nil, b.wrap("search index", err)
	}
	return b.collectStrings(rows, "search index")
}

func dedupe(keys []string) []string {
	if len(keys) < 2 {
		return keys
	}
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
