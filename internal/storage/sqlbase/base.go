// Package sqlbase implements storage.Provider data access over database/sql.
// Dialect packages (sqlite, postgres) own connection lifecycle and migrations.
package sqlbase

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/julianstephens/dayjot/internal/constants"
	jerrors "github.com/julianstephens/dayjot/internal/errors"
)

// Dialect captures the differences between supported SQL engines.
type Dialect struct {
	Name string
	// Numbered selects $1-style bind variables instead of '?'.
	Numbered bool
	// IsTransient classifies driver errors that are worth retrying.
	IsTransient func(error) bool
}

// Base holds the connection shared by all data access methods.
type Base struct {
	db      *sql.DB
	dialect Dialect
}

func NewBase(dialect Dialect) Base {
	return Base{dialect: dialect}
}

// SetDB attaches an open connection.
func (b *Base) SetDB(db *sql.DB) {
	b.db = db
}

// GetDB returns the underlying database connection, or nil before Init/Load.
func (b *Base) GetDB() *sql.DB {
	return b.db
}

func (b *Base) ready() error {
	if b.db == nil {
		return errors.New("storage not loaded")
	}
	return nil
}

// rebind rewrites '?' placeholders for numbered dialects.
func (b *Base) rebind(query string) string {
	if !b.dialect.Numbered {
		return query
	}
	var sb strings.Builder
	sb.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// wrap classifies err for the given operation. Transient failures become
// TransientStorageError so callers can retry them.
func (b *Base) wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, driver.ErrBadConn) || (b.dialect.IsTransient != nil && b.dialect.IsTransient(err)) {
		return jerrors.Transient(op, err)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

// inTx runs fn inside a transaction, rolling back on error.
func (b *Base) inTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	if err := b.ready(); err != nil {
		return err
	}
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return b.wrap(op, err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	return b.wrap(op, tx.Commit())
}

// placeholders returns "?, ?, ..." with n entries.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func formatTime(t time.Time) string {
	return t.UTC().Format(constants.TimestampFormat)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(constants.TimestampFormat, s)
	if err != nil {
		// rows written by hand or older tools may use RFC3339
		t, err = time.Parse(time.RFC3339Nano, s)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

func nullableTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}
