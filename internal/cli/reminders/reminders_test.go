package reminders

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/julianstephens/dayjot/internal/cli"
	jerrors "github.com/julianstephens/dayjot/internal/errors"
	"github.com/julianstephens/dayjot/internal/notifier"
	"github.com/julianstephens/dayjot/internal/storage/sqlite"
)

type testEnv struct {
	ctx  *cli.Context
	out  *bytes.Buffer
	now  time.Time
	mu   sync.Mutex
	sent []notifier.Notification
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := sqlite.NewStore(filepath.Join(t.TempDir(), "test.db"))
	if err := store.Init(); err != nil {
		t.Fatalf("failed to init store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	env := &testEnv{out: &bytes.Buffer{}, now: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
	seq := 0
	env.ctx = cli.NewContext(store, cli.Options{
		User:     "u1",
		Location: time.UTC,
		Out:      env.out,
		Clock:    func() time.Time { return env.now },
		NewID: func() string {
			seq++
			return fmt.Sprintf("r%d", seq)
		},
		Sender: notifier.SenderFunc(func(_ context.Context, n notifier.Notification) error {
			env.mu.Lock()
			defer env.mu.Unlock()
			env.sent = append(env.sent, n)
			return nil
		}),
	})
	return env
}

func TestReminderSetAndList(t *testing.T) {
	env := setupTestEnv(t)

	set := &ReminderSetCmd{Schedule: "daily 08:00", Timezone: "UTC", Label: "write"}
	if err := set.Run(env.ctx); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if want := "next at 2024-05-02 08:00 UTC"; !strings.Contains(env.out.String(), want) {
		t.Errorf("output %q does not contain %q", env.out.String(), want)
	}
	env.out.Reset()

	if err := (&ReminderListCmd{}).Run(env.ctx); err != nil {
		t.Fatalf("list failed: %v", err)
	}
	out := env.out.String()
	if !strings.Contains(out, "r1") || !strings.Contains(out, "scheduled") || !strings.Contains(out, "write") {
		t.Errorf("unexpected list output: %q", out)
	}
}

func TestReminderSetInvalid(t *testing.T) {
	env := setupTestEnv(t)
	tests := []struct {
		name     string
		schedule string
		tz       string
	}{
		{"garbage", "whenever", "UTC"},
		{"bad clock", "daily 25:00", "UTC"},
		{"bad zone", "daily 08:00", "Mars/Olympus"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := (&ReminderSetCmd{Schedule: tt.schedule, Timezone: tt.tz}).Run(env.ctx)
			if !errors.Is(err, jerrors.ErrInvalidSchedule) && !errors.Is(err, jerrors.ErrValidation) {
				t.Errorf("got %v, want a schedule or validation error", err)
			}
		})
	}
}

func TestReminderTick(t *testing.T) {
	env := setupTestEnv(t)
	if err := (&ReminderSetCmd{Schedule: "daily 08:00", Timezone: "UTC", Label: "journal"}).Run(env.ctx); err != nil {
		t.Fatal(err)
	}
	env.out.Reset()

	env.now = time.Date(2024, 5, 2, 8, 0, 30, 0, time.UTC)
	if err := (&ReminderTickCmd{}).Run(env.ctx); err != nil {
		t.Fatalf("tick failed: %v", err)
	}
	if !strings.Contains(env.out.String(), "Due 1, sent 1") {
		t.Errorf("unexpected tick output: %q", env.out.String())
	}
	env.out.Reset()

	// a second tick at the same instant has nothing to do
	if err := (&ReminderTickCmd{}).Run(env.ctx); err != nil {
		t.Fatalf("tick failed: %v", err)
	}
	if !strings.Contains(env.out.String(), "Due 0, sent 0") {
		t.Errorf("unexpected tick output: %q", env.out.String())
	}

	env.mu.Lock()
	defer env.mu.Unlock()
	if len(env.sent) != 1 || env.sent[0].Label != "journal" {
		t.Errorf("sent = %+v, want one notification", env.sent)
	}
}

func TestReminderDisableEnableReschedule(t *testing.T) {
	env := setupTestEnv(t)
	if err := (&ReminderSetCmd{Schedule: "daily 08:00", Timezone: "UTC"}).Run(env.ctx); err != nil {
		t.Fatal(err)
	}

	if err := (&ReminderDisableCmd{ID: "r1"}).Run(env.ctx); err != nil {
		t.Fatalf("disable failed: %v", err)
	}
	r, err := env.ctx.Reminders.GetReminder(env.ctx.Ctx(), "u1", "r1")
	if err != nil {
		t.Fatal(err)
	}
	if r.Enabled {
		t.Error("reminder still enabled")
	}

	env.now = time.Date(2024, 5, 5, 12, 0, 0, 0, time.UTC)
	if err := (&ReminderEnableCmd{ID: "r1"}).Run(env.ctx); err != nil {
		t.Fatalf("enable failed: %v", err)
	}
	r, _ = env.ctx.Reminders.GetReminder(env.ctx.Ctx(), "u1", "r1")
	if want := time.Date(2024, 5, 6, 8, 0, 0, 0, time.UTC); !r.NextFireAt.Equal(want) {
		t.Errorf("next fire after enable = %s, want %s", r.NextFireAt, want)
	}

	resched := &ReminderRescheduleCmd{ID: "r1", Schedule: "daily 20:00", Timezone: "America/New_York"}
	if err := resched.Run(env.ctx); err != nil {
		t.Fatalf("reschedule failed: %v", err)
	}
	r, _ = env.ctx.Reminders.GetReminder(env.ctx.Ctx(), "u1", "r1")
	// 20:00 EDT is 00:00 UTC the next day
	if want := time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC); !r.NextFireAt.Equal(want) {
		t.Errorf("next fire after reschedule = %s, want %s", r.NextFireAt, want)
	}
}

func TestReminderOtherUser(t *testing.T) {
	env := setupTestEnv(t)
	if err := (&ReminderSetCmd{Schedule: "daily 08:00", Timezone: "UTC"}).Run(env.ctx); err != nil {
		t.Fatal(err)
	}
	env.ctx.User = "u2"
	err := (&ReminderGetCmd{ID: "r1"}).Run(env.ctx)
	if !errors.Is(err, jerrors.ErrNotFound) {
		t.Errorf("got %v, want not found for another user's reminder", err)
	}
}
