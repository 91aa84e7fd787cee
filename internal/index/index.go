// Package index maintains the per-user keyword index over journal entries.
// It is a projection of the entry store fed by the store's event outbox.
package index

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/julianstephens/dayjot/internal/constants"
	jerrors "github.com/julianstephens/dayjot/internal/errors"
	"github.com/julianstephens/dayjot/internal/logger"
	"github.com/julianstephens/dayjot/internal/models"
	"github.com/julianstephens/dayjot/internal/retry"
	"github.com/julianstephens/dayjot/internal/storage"
	"github.com/julianstephens/dayjot/internal/syncutil"
)

// maxEventAttempts is how often an event may fail before the user's index is
// rebuilt from the store and the backlog discarded.
const maxEventAttempts = 5

const rebuildConcurrency = 4

// Query narrows a search. All set fields must match.
type Query struct {
	Keywords []string
	From     *time.Time
	To       *time.Time
	Mood     models.Mood
	Tag      string
	Limit    int
}

// IsZero reports whether the query carries no keyword, mood or tag filter.
func (q Query) IsZero() bool {
	for _, kw := range q.Keywords {
		if strings.TrimSpace(kw) != "" {
			return false
		}
	}
	return q.Mood == "" && strings.TrimSpace(q.Tag) == ""
}

// Range returns the query's created_at window.
func (q Query) Range() models.DateRange {
	var r models.DateRange
	if q.From != nil {
		r.From = q.From.UTC()
	}
	if q.To != nil {
		r.To = q.To.UTC()
	}
	return r
}

// RebuildReport describes what a rebuild changed.
type RebuildReport struct {
	UserID  string `json:"user_id"`
	Entries int    `json:"entries"`
	Added   int    `json:"added"`
	Removed int    `json:"removed"`
}

// Drift reports whether the index disagreed with the store.
func (r RebuildReport) Drift() bool {
	return r.Added > 0 || r.Removed > 0
}

type Index struct {
	store storage.Provider
	locks *syncutil.KeyedMutex
	batch int
}

func New(store storage.Provider, locks *syncutil.KeyedMutex) *Index {
	return &Index{store: store, locks: locks, batch: constants.IndexEventBatch}
}

// Apply makes the index reflect one entry change. Keys for the entry are
// replaced wholesale, so applying the same event twice is a no-op.
func (ix *Index) Apply(ctx context.Context, ev models.IndexEvent) error {
	switch ev.Op {
	case models.IndexUpsert:
		if ev.Entry == nil {
			return fmt.Errorf("upsert event %d has no entry snapshot", ev.Seq)
		}
		return retry.Do(ctx, "apply index upsert", func() error {
			return ix.store.ReplaceIndexKeys(ctx, ev.UserID, ev.EntryID, KeysFor(*ev.Entry))
		})
	case models.IndexDelete:
		return retry.Do(ctx, "apply index delete", func() error {
			return ix.store.DeleteIndexKeys(ctx, ev.UserID, ev.EntryID)
		})
	default:
		return fmt.Errorf("unknown index op %q", ev.Op)
	}
}

// Search returns ids of the user's entries matching every filter, most
// recent first. No match is an empty slice, never an error.
func (ix *Index) Search(ctx context.Context, userID string, q Query) ([]string, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, jerrors.Invalid("user_id", "must not be empty")
	}
	r := q.Range()
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if q.Mood != "" && !q.Mood.Valid() {
		return nil, jerrors.Invalid("mood", "unknown mood %q", q.Mood)
	}

	keys, ok := queryKeys(q.Keywords)
	if !ok {
		return []string{}, nil
	}
	if q.Mood != "" {
		keys = append(keys, moodPrefix+string(q.Mood))
	}
	if q.Tag != "" {
		tags := models.NormalizeTags([]string{q.Tag})
		if len(tags) == 0 {
			return []string{}, nil
		}
		keys = append(keys, tagPrefix+tags[0])
	}

	unlock := ix.locks.Lock(userID)
	defer unlock()

	ids, err := retry.Value(ctx, "search index", func() ([]string, error) {
		return ix.store.SearchIndex(ctx, userID, models.KeyQuery{Keys: keys, Range: r, Limit: q.Limit})
	})
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// Sync drains the user's pending events in commit order. It stops at the
// first failing event so later events never overtake it.
func (ix *Index) Sync(ctx context.Context, userID string) error {
	unlock := ix.locks.Lock(userID)
	defer unlock()
	return ix.drainLocked(ctx, userID)
}

func (ix *Index) drainLocked(ctx context.Context, userID string) error {
	for {
		events, err := retry.Value(ctx, "list index events", func() ([]models.IndexEvent, error) {
			return ix.store.PendingEvents(ctx, userID, ix.batch)
		})
		if err != nil {
			return err
		}

		for _, ev := range events {
			if ev.Attempts >= maxEventAttempts {
				logger.Error("Index event keeps failing, rebuilding user index", "user", userID, "seq", ev.Seq, "attempts", ev.Attempts)
				return ix.recoverLocked(ctx, userID)
			}
			if err := ix.Apply(ctx, ev); err != nil {
				if markErr := ix.store.MarkEventFailed(ctx, ev.Seq, err); markErr != nil {
					logger.Error("Failed to record index event failure", "seq", ev.Seq, "error", markErr)
				}
				return fmt.Errorf("failed to apply index event %d: %w", ev.Seq, err)
			}
			if err := retry.Do(ctx, "mark index event done", func() error {
				return ix.store.MarkEventDone(ctx, ev.Seq)
			}); err != nil {
				return err
			}
		}

		if len(events) < ix.batch {
			return nil
		}
	}
}

// recoverLocked replaces the user's index from the store and retires every
// pending event. The user lock excludes writers, so the rebuild already
// reflects each of those events.
func (ix *Index) recoverLocked(ctx context.Context, userID string) error {
	if _, err := ix.rebuildLocked(ctx, userID); err != nil {
		return err
	}
	for {
		events, err := ix.store.PendingEvents(ctx, userID, ix.batch)
		if err != nil {
			return err
		}
		for _, ev := range events {
			if err := ix.store.MarkEventDone(ctx, ev.Seq); err != nil {
				return err
			}
		}
		if len(events) < ix.batch {
			return nil
		}
	}
}

// DrainAll syncs every user with pending events. Per-user failures are
// logged and left for the next pass.
func (ix *Index) DrainAll(ctx context.Context) error {
	users, err := retry.Value(ctx, "list users with pending events", func() ([]string, error) {
		return ix.store.UsersWithPendingEvents(ctx)
	})
	if err != nil {
		return err
	}
	for _, userID := range users {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := ix.Sync(ctx, userID); err != nil {
			logger.Warn("Index drain failed", "user", userID, "error", err)
		}
	}
	return nil
}

// Rebuild recomputes the user's index from the entry store. Drift is healed
// and logged, not returned as an error.
func (ix *Index) Rebuild(ctx context.Context, userID string) (RebuildReport, error) {
	if strings.TrimSpace(userID) == "" {
		return RebuildReport{}, jerrors.Invalid("user_id", "must not be empty")
	}
	unlock := ix.locks.Lock(userID)
	defer unlock()
	return ix.rebuildLocked(ctx, userID)
}

func (ix *Index) rebuildLocked(ctx context.Context, userID string) (RebuildReport, error) {
	report := RebuildReport{UserID: userID}

	var (
		expected []models.IndexKey
		after    *storage.EntryCursor
	)
	for {
		page, err := retry.Value(ctx, "list entries", func() ([]models.Entry, error) {
			return ix.store.ListEntries(ctx, userID, models.DateRange{}, after, constants.StatsPageSize)
		})
		if err != nil {
			return report, err
		}
		for _, e := range page {
			expected = append(expected, KeysFor(e)...)
		}
		report.Entries += len(page)
		if len(page) < constants.StatsPageSize {
			break
		}
		after = storage.After(page[len(page)-1])
	}

	current, err := retry.Value(ctx, "list index keys", func() ([]models.IndexKey, error) {
		return ix.store.UserIndexKeys(ctx, userID)
	})
	if err != nil {
		return report, err
	}

	report.Added, report.Removed = diffKeys(current, expected)
	if !report.Drift() {
		return report, nil
	}

	logger.Warn("Index drift detected, rebuilding", "user", userID, "added", report.Added, "removed", report.Removed)
	err = retry.Do(ctx, "replace user index", func() error {
		return ix.store.ReplaceUserIndex(ctx, userID, expected)
	})
	return report, err
}

// RebuildAll rebuilds every known user with bounded parallelism.
func (ix *Index) RebuildAll(ctx context.Context) ([]RebuildReport, error) {
	users, err := retry.Value(ctx, "list users", func() ([]string, error) {
		return ix.store.ListUsers(ctx)
	})
	if err != nil {
		return nil, err
	}

	var (
		mu      sync.Mutex
		reports = make([]RebuildReport, 0, len(users))
		errs    []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(rebuildConcurrency)
	for _, userID := range users {
		g.Go(func() error {
			report, err := ix.Rebuild(gctx, userID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("user %s: %w", userID, err))
				return nil
			}
			reports = append(reports, report)
			return nil
		})
	}
	_ = g.Wait()
	return reports, errors.Join(errs...)
}

type keyID struct {
	key     string
	entryID string
}

func diffKeys(current, expected []models.IndexKey) (added, removed int) {
	have := make(map[keyID]struct{}, len(current))
	for _, k := range current {
		have[keyID{k.Key, k.EntryID}] = struct{}{}
	}
	want := make(map[keyID]struct{}, len(expected))
	for _, k := range expected {
		id := keyID{k.Key, k.EntryID}
		want[id] = struct{}{}
		if _, ok := have[id]; !ok {
			added++
		}
	}
	for id := range have {
		if _, ok := want[id]; !ok {
			removed++
		}
	}
	return added, removed
}
