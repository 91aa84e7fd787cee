// Package journal is the entry store: per-user creation, retrieval, update,
// deletion and date-ranged listing of journal entries.
package journal

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/julianstephens/dayjot/internal/constants"
	jerrors "github.com/julianstephens/dayjot/internal/errors"
	"github.com/julianstephens/dayjot/internal/logger"
	"github.com/julianstephens/dayjot/internal/models"
	"github.com/julianstephens/dayjot/internal/retry"
	"github.com/julianstephens/dayjot/internal/storage"
	"github.com/julianstephens/dayjot/internal/syncutil"
)

// Syncer drains a user's pending index events. It must take the user lock
// itself; the service calls it after releasing that lock.
type Syncer interface {
	Sync(ctx context.Context, userID string) error
}

type Service struct {
	store  storage.Provider
	locks  *syncutil.KeyedMutex
	syncer Syncer
	clock  func() time.Time
	newID  func() string
	loc    *time.Location
}

type Option func(*Service)

// WithClock overrides the time source used for created_at/updated_at.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

// WithIDGenerator overrides uuid generation.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) { s.newID = fn }
}

// WithSyncer makes writes visible to search before they return.
func WithSyncer(syncer Syncer) Option {
	return func(s *Service) { s.syncer = syncer }
}

// WithLocation sets the zone used to bucket days in statistics.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func New(store storage.Provider, locks *syncutil.KeyedMutex, opts ...Option) *Service {
	s := &Service{
		store: store,
		locks: locks,
		clock: time.Now,
		newID: uuid.NewString,
		loc:   time.UTC,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func checkUser(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return jerrors.Invalid("user_id", "must not be empty")
	}
	return nil
}

func (s *Service) now() time.Time {
	return s.clock().UTC()
}

// sync makes a committed write searchable. The event is already durable, so
// a failure here only delays indexing until the worker drains it.
func (s *Service) sync(ctx context.Context, userID string) {
	if s.syncer == nil {
		return
	}
	if err := s.syncer.Sync(ctx, userID); err != nil {
		logger.Warn("Index sync after write failed", "user", userID, "error", err)
	}
}

func (s *Service) CreateEntry(ctx context.Context, userID string, in models.EntryInput) (models.Entry, error) {
	if err := checkUser(userID); err != nil {
		return models.Entry{}, err
	}

	e := models.NewEntry(userID, in)
	if err := e.Validate(); err != nil {
		return models.Entry{}, err
	}
	e.ID = s.newID()
	e.CreatedAt = s.now()
	e.UpdatedAt = e.CreatedAt

	unlock := s.locks.Lock(userID)
	err := retry.Do(ctx, "create entry", func() error {
		return s.store.CreateEntry(ctx, e)
	})
	unlock()
	if err != nil {
		return models.Entry{}, err
	}

	logger.Debug("Entry created", "user", userID, "entry", e.ID)
	s.sync(ctx, userID)
	return e, nil
}

func (s *Service) GetEntry(ctx context.Context, userID, id string) (models.Entry, error) {
	if err := checkUser(userID); err != nil {
		return models.Entry{}, err
	}
	unlock := s.locks.Lock(userID)
	defer unlock()
	return s.get(ctx, userID, id)
}

// GetEntries loads the user's entries for ids in the order given. Ids that
// no longer exist are skipped, so a stale search hit is not an error.
func (s *Service) GetEntries(ctx context.Context, userID string, ids []string) ([]models.Entry, error) {
	if err := checkUser(userID); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []models.Entry{}, nil
	}

	unlock := s.locks.Lock(userID)
	found, err := retry.Value(ctx, "get entries", func() ([]models.Entry, error) {
		return s.store.GetEntries(ctx, userID, ids)
	})
	unlock()
	if err != nil {
		return nil, err
	}

	byID := make(map[string]models.Entry, len(found))
	for _, e := range found {
		byID[e.ID] = e
	}
	out := make([]models.Entry, 0, len(ids))
	for _, id := range ids {
		if e, ok := byID[id]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Service) get(ctx context.Context, userID, id string) (models.Entry, error) {
	return retry.Value(ctx, "get entry", func() (models.Entry, error) {
		return s.store.GetEntry(ctx, userID, id)
	})
}

// UpdateEntry applies patch to an entry the user owns. id, user_id and
// created_at never change.
func (s *Service) UpdateEntry(ctx context.Context, userID, id string, patch models.EntryPatch) (models.Entry, error) {
	if err := checkUser(userID); err != nil {
		return models.Entry{}, err
	}

	unlock := s.locks.Lock(userID)
	current, err := s.get(ctx, userID, id)
	if err != nil {
		unlock()
		return models.Entry{}, err
	}
	if patch.IsEmpty() {
		unlock()
		return current, nil
	}

	updated := current.Apply(patch)
	updated.UpdatedAt = s.now()
	if updated.UpdatedAt.Before(current.CreatedAt) {
		updated.UpdatedAt = current.CreatedAt
	}
	if err := updated.Validate(); err != nil {
		unlock()
		return models.Entry{}, err
	}

	err = retry.Do(ctx, "update entry", func() error {
		return s.store.UpdateEntry(ctx, updated)
	})
	unlock()
	if err != nil {
		return models.Entry{}, err
	}

	s.sync(ctx, userID)
	return updated, nil
}

// DeleteEntry removes an entry. Deleting an unknown id succeeds and emits no event.
func (s *Service) DeleteEntry(ctx context.Context, userID, id string) error {
	if err := checkUser(userID); err != nil {
		return err
	}

	unlock := s.locks.Lock(userID)
	deleted, err := retry.Value(ctx, "delete entry", func() (bool, error) {
		return s.store.DeleteEntry(ctx, userID, id)
	})
	unlock()
	if err != nil {
		return err
	}
	if deleted {
		logger.Debug("Entry deleted", "user", userID, "entry", id)
		s.sync(ctx, userID)
	}
	return nil
}

// ListByDate returns entries in r ordered by created_at ascending.
func (s *Service) ListByDate(ctx context.Context, userID string, r models.DateRange) ([]models.Entry, error) {
	var out []models.Entry
	err := s.scan(ctx, userID, r, func(e models.Entry) {
		out = append(out, e)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Recent returns the newest entries first. A non-positive limit uses the default.
func (s *Service) Recent(ctx context.Context, userID string, limit int) ([]models.Entry, error) {
	if err := checkUser(userID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = constants.DefaultRecentLimit
	}

	unlock := s.locks.Lock(userID)
	defer unlock()
	return retry.Value(ctx, "list recent entries", func() ([]models.Entry, error) {
		return s.store.RecentEntries(ctx, userID, limit)
	})
}

func (s *Service) ComputeStats(ctx context.Context, userID string, r models.DateRange) (models.Stats, error) {
	stats := models.NewStats(r)
	err := s.scan(ctx, userID, r, func(e models.Entry) {
		stats.Add(e, s.loc)
	})
	if err != nil {
		return models.Stats{}, err
	}
	return stats, nil
}

func (s *Service) MoodSamples(ctx context.Context, userID string, r models.DateRange) ([]models.MoodSample, error) {
	var samples []models.MoodSample
	err := s.scan(ctx, userID, r, func(e models.Entry) {
		if e.Mood == "" {
			return
		}
		samples = append(samples, models.MoodSample{EntryID: e.ID, Mood: e.Mood, At: e.CreatedAt})
	})
	if err != nil {
		return nil, err
	}
	return samples, nil
}

// scan walks r in keyset pages under the user lock.
func (s *Service) scan(ctx context.Context, userID string, r models.DateRange, fn func(models.Entry)) error {
	if err := checkUser(userID); err != nil {
		return err
	}
	if err := r.Validate(); err != nil {
		return err
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	var after *storage.EntryCursor
	for {
		page, err := retry.Value(ctx, "list entries", func() ([]models.Entry, error) {
			return s.store.ListEntries(ctx, userID, r, after, constants.StatsPageSize)
		})
		if err != nil {
			return err
		}
		for _, e := range page {
			fn(e)
		}
		if len(page) < constants.StatsPageSize {
			return nil
		}
		after = storage.After(page[len(page)-1])
	}
}
