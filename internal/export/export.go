// Package export streams a user's entries as flat records for renderers.
package export

import (
	"context"
	"io"
	"iter"
	"slices"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/julianstephens/dayjot/internal/constants"
	jerrors "github.com/julianstephens/dayjot/internal/errors"
	"github.com/julianstephens/dayjot/internal/index"
	"github.com/julianstephens/dayjot/internal/models"
	"github.com/julianstephens/dayjot/internal/retry"
	"github.com/julianstephens/dayjot/internal/storage"
)

// Filter narrows an export. Keywords, Mood and Tag go through the index;
// a date-only filter reads the store directly.
type Filter struct {
	Keywords []string
	Mood     models.Mood
	Tag      string
	From     *time.Time
	To       *time.Time
}

func (f Filter) query() index.Query {
	return index.Query{Keywords: f.Keywords, Mood: f.Mood, Tag: f.Tag, From: f.From, To: f.To}
}

type Exporter struct {
	store    storage.Provider
	index    *index.Index
	pageSize int
	loc      *time.Location
}

type Option func(*Exporter)

// WithPageSize sets how many entries are read per storage round trip.
func WithPageSize(n int) Option {
	return func(e *Exporter) {
		if n > 0 {
			e.pageSize = n
		}
	}
}

// WithLocation sets the zone used for the record's date and time fields.
func WithLocation(loc *time.Location) Option {
	return func(e *Exporter) {
		if loc != nil {
			e.loc = loc
		}
	}
}

func New(store storage.Provider, ix *index.Index, opts ...Option) *Exporter {
	e := &Exporter{store: store, index: ix, pageSize: constants.ExportPageSize, loc: time.UTC}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Export yields the user's entries matching f in created_at order. Nothing
// is read until iteration starts, and breaking out early leaves no state
// behind; ranging again re-runs the query. An error is yielded once, as the
// final element.
func (x *Exporter) Export(ctx context.Context, userID string, f Filter) iter.Seq2[models.EntryRecord, error] {
	return func(yield func(models.EntryRecord, error) bool) {
		if strings.TrimSpace(userID) == "" {
			yield(models.EntryRecord{}, jerrors.Invalid("user_id", "must not be empty"))
			return
		}
		q := f.query()
		if err := q.Range().Validate(); err != nil {
			yield(models.EntryRecord{}, err)
			return
		}

		var err error
		if q.IsZero() {
			err = x.scanStore(ctx, userID, q.Range(), yield)
		} else {
			err = x.scanIndex(ctx, userID, q, yield)
		}
		if err != nil {
			yield(models.EntryRecord{}, err)
		}
	}
}

type yieldFunc = func(models.EntryRecord, error) bool

func (x *Exporter) scanStore(ctx context.Context, userID string, r models.DateRange, yield yieldFunc) error {
	var after *storage.EntryCursor
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		page, err := retry.Value(ctx, "list entries", func() ([]models.Entry, error) {
			return x.store.ListEntries(ctx, userID, r, after, x.pageSize)
		})
		if err != nil {
			return err
		}
		for _, e := range page {
			if !yield(models.RecordFromEntry(e, x.loc), nil) {
				return nil
			}
		}
		if len(page) < x.pageSize {
			return nil
		}
		after = storage.After(page[len(page)-1])
	}
}

func (x *Exporter) scanIndex(ctx context.Context, userID string, q index.Query, yield yieldFunc) error {
	ids, err := x.index.Search(ctx, userID, q)
	if err != nil {
		return err
	}
	slices.Reverse(ids)

	for chunk := range slices.Chunk(ids, x.pageSize) {
		if err := ctx.Err(); err != nil {
			return err
		}
		entries, err := retry.Value(ctx, "get entries", func() ([]models.Entry, error) {
			return x.store.GetEntries(ctx, userID, chunk)
		})
		if err != nil {
			return err
		}
		byID := make(map[string]models.Entry, len(entries))
		for _, e := range entries {
			byID[e.ID] = e
		}
		for _, id := range chunk {
			// deleted between search and hydration
			e, ok := byID[id]
			if !ok {
				continue
			}
			if !yield(models.RecordFromEntry(e, x.loc), nil) {
				return nil
			}
		}
	}
	return nil
}

// WriteJSONLines renders records as one JSON object per line and returns how
// many were written.
func WriteJSONLines(w io.Writer, records iter.Seq2[models.EntryRecord, error]) (int, error) {
	enc := json.NewEncoder(w)
	n := 0
	for rec, err := range records {
		if err != nil {
			return n, err
		}
		if err := enc.Encode(rec); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
