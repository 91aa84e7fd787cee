// Package reminder keeps per-user recurring reminders and fires them on
// schedule. Delivery is at-least-once; the persisted next fire time advances
// exactly once per fired occurrence.
package reminder

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/julianstephens/dayjot/internal/constants"
	jerrors "github.com/julianstephens/dayjot/internal/errors"
	"github.com/julianstephens/dayjot/internal/logger"
	"github.com/julianstephens/dayjot/internal/models"
	"github.com/julianstephens/dayjot/internal/notifier"
	"github.com/julianstephens/dayjot/internal/retry"
	"github.com/julianstephens/dayjot/internal/storage"
	"github.com/julianstephens/dayjot/internal/syncutil"
)

type Config struct {
	PollInterval time.Duration
	SendTimeout  time.Duration
	BatchSize    int
	Concurrency  int
}

func (c *Config) setDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = constants.DefaultPollInterval
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = constants.DefaultSendTimeout
	}
	if c.BatchSize <= 0 {
		c.BatchSize = constants.DefaultTickBatch
	}
	if c.Concurrency <= 0 {
		c.Concurrency = constants.DefaultTickConcurrency
	}
}

// TickReport summarizes one pass over due reminders.
type TickReport struct {
	Due       int  `json:"due"`
	Sent      int  `json:"sent"`
	Failed    int  `json:"failed"`
	Conflicts int  `json:"conflicts"`
	Deferred  bool `json:"deferred"`
	// Skipped is set when another tick was still running.
	Skipped bool `json:"skipped"`
}

type Scheduler struct {
	store   storage.Provider
	locks   *syncutil.KeyedMutex
	sender  notifier.Sender
	cfg     Config
	clock   func() time.Time
	newID   func() string
	ticking sync.Mutex
}

type Option func(*Scheduler)

func WithClock(clock func() time.Time) Option {
	return func(s *Scheduler) { s.clock = clock }
}

func WithIDGenerator(fn func() string) Option {
	return func(s *Scheduler) { s.newID = fn }
}

func New(store storage.Provider, locks *syncutil.KeyedMutex, sender notifier.Sender, cfg Config, opts ...Option) *Scheduler {
	cfg.setDefaults()
	s := &Scheduler{
		store:  store,
		locks:  locks,
		sender: sender,
		cfg:    cfg,
		clock:  time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Scheduler) now() time.Time {
	return s.clock().UTC()
}

func checkUser(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return jerrors.Invalid("user_id", "must not be empty")
	}
	return nil
}

// SetReminder creates an enabled reminder whose first fire is the earliest
// occurrence at or after now.
func (s *Scheduler) SetReminder(ctx context.Context, userID, schedule, timezone, label string) (models.Reminder, error) {
	if err := checkUser(userID); err != nil {
		return models.Reminder{}, err
	}
	if timezone == "" {
		timezone = constants.DefaultTimezone
	}
	sched, err := ParseSchedule(schedule, timezone)
	if err != nil {
		return models.Reminder{}, err
	}

	now := s.now()
	r := models.Reminder{
		ID:         s.newID(),
		UserID:     userID,
		Label:      strings.TrimSpace(label),
		Schedule:   sched.Expr,
		Timezone:   timezone,
		NextFireAt: sched.NextAtOrAfter(now),
		Enabled:    true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	unlock := s.locks.Lock(userID)
	defer unlock()
	if err := retry.Do(ctx, "add reminder", func() error {
		return s.store.AddReminder(ctx, r)
	}); err != nil {
		return models.Reminder{}, err
	}

	logger.Info("Reminder set", "user", userID, "reminder", r.ID, "schedule", r.Schedule, "next", r.NextFireAt)
	return r, nil
}

func (s *Scheduler) GetReminder(ctx context.Context, userID, id string) (models.Reminder, error) {
	if err := checkUser(userID); err != nil {
		return models.Reminder{}, err
	}
	unlock := s.locks.Lock(userID)
	defer unlock()
	return s.get(ctx, userID, id)
}

func (s *Scheduler) get(ctx context.Context, userID, id string) (models.Reminder, error) {
	return retry.Value(ctx, "get reminder", func() (models.Reminder, error) {
		return s.store.GetReminder(ctx, userID, id)
	})
}

func (s *Scheduler) ListReminders(ctx context.Context, userID string) ([]models.Reminder, error) {
	if err := checkUser(userID); err != nil {
		return nil, err
	}
	unlock := s.locks.Lock(userID)
	defer unlock()
	return retry.Value(ctx, "list reminders", func() ([]models.Reminder, error) {
		return s.store.ListReminders(ctx, userID)
	})
}

// Reschedule replaces the schedule and recomputes the next fire from now.
// An empty timezone keeps the current one.
func (s *Scheduler) Reschedule(ctx context.Context, userID, id, schedule, timezone string) (models.Reminder, error) {
	return s.modify(ctx, userID, id, func(r *models.Reminder, now time.Time) error {
		if timezone == "" {
			timezone = r.Timezone
		}
		sched, err := ParseSchedule(schedule, timezone)
		if err != nil {
			return err
		}
		r.Schedule = sched.Expr
		r.Timezone = timezone
		r.NextFireAt = sched.NextAtOrAfter(now)
		return nil
	})
}

func (s *Scheduler) DisableReminder(ctx context.Context, userID, id string) (models.Reminder, error) {
	return s.modify(ctx, userID, id, func(r *models.Reminder, _ time.Time) error {
		r.Enabled = false
		return nil
	})
}

// EnableReminder resumes a reminder from now. Occurrences missed while it
// was disabled are not delivered.
func (s *Scheduler) EnableReminder(ctx context.Context, userID, id string) (models.Reminder, error) {
	return s.modify(ctx, userID, id, func(r *models.Reminder, now time.Time) error {
		sched, err := ParseSchedule(r.Schedule, r.Timezone)
		if err != nil {
			return err
		}
		r.Enabled = true
		r.NextFireAt = sched.NextAtOrAfter(now)
		return nil
	})
}

func (s *Scheduler) modify(ctx context.Context, userID, id string, fn func(r *models.Reminder, now time.Time) error) (models.Reminder, error) {
	if err := checkUser(userID); err != nil {
		return models.Reminder{}, err
	}
	unlock := s.locks.Lock(userID)
	defer unlock()

	r, err := s.get(ctx, userID, id)
	if err != nil {
		return models.Reminder{}, err
	}
	now := s.now()
	if err := fn(&r, now); err != nil {
		return models.Reminder{}, err
	}
	r.UpdatedAt = now

	if err := retry.Do(ctx, "update reminder", func() error {
		return s.store.UpdateReminder(ctx, r)
	}); err != nil {
		return models.Reminder{}, err
	}
	return r, nil
}

type tickCounters struct {
	sent, failed, conflicts atomic.Int32
}

// Tick fires every reminder due at now. A tick that starts while another is
// running returns immediately with Skipped set.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) (TickReport, error) {
	if !s.ticking.TryLock() {
		logger.Debug("Previous tick still running, skipping")
		return TickReport{Skipped: true}, nil
	}
	defer s.ticking.Unlock()

	now = now.UTC()
	due, err := retry.Value(ctx, "list due reminders", func() ([]models.Reminder, error) {
		return s.store.DueReminders(ctx, now, s.cfg.BatchSize)
	})
	if err != nil {
		return TickReport{}, err
	}

	var c tickCounters
	g := new(errgroup.Group)
	g.SetLimit(s.cfg.Concurrency)
	for _, r := range due {
		g.Go(func() error {
			s.fire(ctx, r, now, &c)
			return nil
		})
	}
	_ = g.Wait()

	return TickReport{
		Due:       len(due),
		Sent:      int(c.sent.Load()),
		Failed:    int(c.failed.Load()),
		Conflicts: int(c.conflicts.Load()),
		Deferred:  len(due) == s.cfg.BatchSize,
	}, nil
}

// fire sends one occurrence and advances the reminder. Failures leave the
// reminder due so the next tick retries.
func (s *Scheduler) fire(ctx context.Context, r models.Reminder, now time.Time, c *tickCounters) {
	sched, err := ParseSchedule(r.Schedule, r.Timezone)
	if err != nil {
		logger.Error("Stored reminder has an invalid schedule", "reminder", r.ID, "error", err)
		c.failed.Add(1)
		return
	}

	// after an outage only the latest missed occurrence is delivered
	fireTime := sched.LatestAtOrBefore(r.NextFireAt, now)
	next := sched.NextAfter(now)

	sendCtx, cancel := context.WithTimeout(ctx, s.cfg.SendTimeout)
	err = s.sender.Send(sendCtx, notifier.Notification{
		UserID:     r.UserID,
		ReminderID: r.ID,
		Label:      r.Label,
		FireTime:   fireTime,
	})
	cancel()
	if err != nil {
		logger.Warn("Reminder send failed, will retry next tick", "user", r.UserID, "reminder", r.ID, "error", err)
		c.failed.Add(1)
		return
	}

	unlock := s.locks.Lock(r.UserID)
	ok, err := retry.Value(ctx, "record reminder fire", func() (bool, error) {
		return s.store.RecordFire(ctx, storage.FireRecord{
			UserID:       r.UserID,
			ReminderID:   r.ID,
			ExpectedNext: r.NextFireAt,
			FiredAt:      fireTime,
			Next:         next,
			At:           now,
		})
	})
	unlock()
	switch {
	case err != nil:
		// the occurrence stays due and is sent again
		logger.Error("Failed to persist reminder fire", "reminder", r.ID, "error", err)
		c.failed.Add(1)
	case !ok:
		logger.Info("Reminder changed while firing, keeping the newer state", "reminder", r.ID)
		c.conflicts.Add(1)
	default:
		logger.Debug("Reminder fired", "user", r.UserID, "reminder", r.ID, "fire_time", fireTime, "next", next)
		c.sent.Add(1)
	}
}

// Run ticks every PollInterval until ctx is canceled, starting with an
// immediate tick to catch up after a restart. Each tick is bounded by the
// poll interval.
func (s *Scheduler) Run(ctx context.Context) error {
	logger.Info("Reminder scheduler starting", "interval", s.cfg.PollInterval, "batch", s.cfg.BatchSize)
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	s.runTick(ctx)
	for {
		select {
		case <-ctx.Done():
			logger.Info("Reminder scheduler stopping")
			return ctx.Err()
		case <-ticker.C:
			s.runTick(ctx)
		}
	}
}

func (s *Scheduler) runTick(ctx context.Context) {
	tctx, cancel := context.WithTimeout(ctx, s.cfg.PollInterval)
	defer cancel()

	report, err := s.Tick(tctx, s.now())
	if err != nil {
		logger.Error("Reminder tick failed", "error", err)
		return
	}
	if report.Due > 0 {
		logger.Info("Reminder tick", "due", report.Due, "sent", report.Sent, "failed", report.Failed, "conflicts", report.Conflicts, "deferred", report.Deferred)
	}
}
