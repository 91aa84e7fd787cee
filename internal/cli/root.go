package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/julianstephens/dayjot/internal/backup"
	"github.com/julianstephens/dayjot/internal/constants"
	"github.com/julianstephens/dayjot/internal/export"
	"github.com/julianstephens/dayjot/internal/index"
	"github.com/julianstephens/dayjot/internal/journal"
	"github.com/julianstephens/dayjot/internal/logger"
	"github.com/julianstephens/dayjot/internal/models"
	"github.com/julianstephens/dayjot/internal/notifier"
	"github.com/julianstephens/dayjot/internal/reminder"
	"github.com/julianstephens/dayjot/internal/storage"
	"github.com/julianstephens/dayjot/internal/storage/sqlite"
	"github.com/julianstephens/dayjot/internal/syncutil"
)

// Context is handed to every command's Run method.
type Context struct {
	Store     storage.Provider
	Journal   *journal.Service
	Index     *index.Index
	Exporter  *export.Exporter
	Reminders *reminder.Scheduler

	// User is the id commands act on.
	User          string
	Location      *time.Location
	IndexInterval time.Duration
	Out           io.Writer
	Now           func() time.Time

	ctx context.Context
}

type Options struct {
	// Ctx is cancelled when the process is asked to stop.
	Ctx       context.Context
	User      string
	Location  *time.Location
	Sender    notifier.Sender
	Reminders reminder.Config
	Out       io.Writer
	// Clock overrides time.Now for the journal and the scheduler.
	Clock func() time.Time
	// NewID overrides uuid generation for entries and reminders.
	NewID func() string
}

// NewContext wires the services around one store. All of them share a
// single per-user lock table.
func NewContext(store storage.Provider, opts Options) *Context {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Sender == nil {
		opts.Sender = notifier.LogSender{}
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Ctx == nil {
		opts.Ctx = context.Background()
	}
	now := time.Now
	if opts.Clock != nil {
		now = opts.Clock
	}

	locks := syncutil.NewKeyedMutex()
	ix := index.New(store, locks)

	jopts := []journal.Option{journal.WithSyncer(ix), journal.WithLocation(opts.Location)}
	var ropts []reminder.Option
	if opts.Clock != nil {
		jopts = append(jopts, journal.WithClock(opts.Clock))
		ropts = append(ropts, reminder.WithClock(opts.Clock))
	}
	if opts.NewID != nil {
		jopts = append(jopts, journal.WithIDGenerator(opts.NewID))
		ropts = append(ropts, reminder.WithIDGenerator(opts.NewID))
	}

	return &Context{
		Store:         store,
		Journal:       journal.New(store, locks, jopts...),
		Index:         ix,
		Exporter:      export.New(store, ix, export.WithLocation(opts.Location)),
		Reminders:     reminder.New(store, locks, opts.Sender, opts.Reminders, ropts...),
		User:          opts.User,
		Location:      opts.Location,
		IndexInterval: constants.IndexWorkerInterval,
		Out:           opts.Out,
		Now:           now,
		ctx:           opts.Ctx,
	}
}

// Ctx returns the command's root context.
func (c *Context) Ctx() context.Context { return c.ctx }

// PerformAutomaticBackup snapshots a SQLite store and only logs failures.
// Other backends are skipped.
func (c *Context) PerformAutomaticBackup() {
	if _, ok := c.Store.(*sqlite.Store); !ok {
		return
	}
	mgr := backup.NewManager(c.Store.GetConfigPath())
	if _, err := mgr.Create(c.ctx); err != nil {
		logger.Warn("Automatic backup failed", "error", err)
	}
}

func (c *Context) Printf(format string, args ...any) {
	fmt.Fprintf(c.Out, format, args...)
}

func (c *Context) Println(args ...any) {
	fmt.Fprintln(c.Out, args...)
}

// PrintJSON writes v as indented JSON.
func (c *Context) PrintJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	c.Println(string(b))
	return nil
}

// ParseDay resolves "today", "yesterday" or YYYY-MM-DD to midnight in loc.
func ParseDay(s string, now time.Time, loc *time.Location) (time.Time, error) {
	now = now.In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "today":
		return today, nil
	case "yesterday":
		return today.AddDate(0, 0, -1), nil
	}
	t, err := time.ParseInLocation(constants.DateFormat, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (expected YYYY-MM-DD, today or yesterday)", s)
	}
	return t, nil
}

// ParseRange turns optional inclusive from/to days into a half-open range.
func ParseRange(from, to string, now time.Time, loc *time.Location) (models.DateRange, error) {
	var r models.DateRange
	if from != "" {
		t, err := ParseDay(from, now, loc)
		if err != nil {
			return r, err
		}
		r.From = t.UTC()
	}
	if to != "" {
		t, err := ParseDay(to, now, loc)
		if err != nil {
			return r, err
		}
		r.To = t.AddDate(0, 0, 1).UTC()
	}
	return r, r.Validate()
}

// ParseMedia reads "kind:ref" pairs.
func ParseMedia(values []string) ([]models.MediaRef, error) {
	refs := make([]models.MediaRef, 0, len(values))
	for _, v := range values {
		kind, ref, ok := strings.Cut(v, ":")
		if !ok {
			return nil, fmt.Errorf("invalid media %q (expected kind:ref)", v)
		}
		refs = append(refs, models.MediaRef{Kind: models.MediaKind(strings.ToLower(kind)), Ref: ref})
	}
	return refs, nil
}

// FormatEntry renders an entry on one line for listings.
func FormatEntry(e models.Entry, loc *time.Location) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s", e.ID, e.CreatedAt.In(loc).Format(constants.DateFormat+" "+constants.TimeFormat))
	if e.Mood != "" {
		fmt.Fprintf(&b, "  [%s]", e.Mood)
	}
	if e.Rating != nil {
		fmt.Fprintf(&b, "  %d/%d", *e.Rating, models.MaxRating)
	}
	if text := Preview(e.Text, 60); text != "" {
		fmt.Fprintf(&b, "  %s", text)
	}
	if len(e.Tags) > 0 {
		fmt.Fprintf(&b, "  #%s", strings.Join(e.Tags, " #"))
	}
	if len(e.MediaRefs) > 0 {
		fmt.Fprintf(&b, "  (+%d media)", len(e.MediaRefs))
	}
	return b.String()
}

// Preview returns the first line of text cut to max runes.
func Preview(text string, max int) string {
	line, _, _ := strings.Cut(strings.TrimSpace(text), "\n")
	r := []rune(line)
	if len(r) > max {
		return string(r[:max-1]) + "…"
	}
	return line
}
