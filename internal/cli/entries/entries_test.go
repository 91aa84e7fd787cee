package entries

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"

	"github.com/julianstephens/dayjot/internal/cli"
	jerrors "github.com/julianstephens/dayjot/internal/errors"
	"github.com/julianstephens/dayjot/internal/models"
	"github.com/julianstephens/dayjot/internal/storage/sqlite"
)

type testEnv struct {
	ctx *cli.Context
	out *bytes.Buffer
	now time.Time
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
		Clock: func() time.Time {
			t := env.now
			env.now = env.now.Add(time.Minute)
			return t
		},
		NewID: func() string {
			seq++
			return fmt.Sprintf("id%d", seq)
		},
	})
	return env
}

func (env *testEnv) add(t *testing.T, cmd EntryAddCmd) string {
	t.Helper()
	if err := cmd.Run(env.ctx); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	out := env.out.String()
	env.out.Reset()
	id := strings.TrimSpace(strings.TrimPrefix(out, "✓ Added entry "))
	if id == "" {
		t.Fatalf("unexpected add output: %q", out)
	}
	return id
}

func TestEntryAddAndGet(t *testing.T) {
	env := setupTestEnv(t)
	id := env.add(t, EntryAddCmd{Text: "Sunny walk #outside", Mood: "Happy", Rating: 8, Tag: []string{"weekend"}})

	get := &EntryGetCmd{ID: id}
	if err := get.Run(env.ctx); err != nil {
		t.Fatalf("get failed: %v", err)
	}
	var e models.Entry
	if err := json.Unmarshal(env.out.Bytes(), &e); err != nil {
		t.Fatalf("get output is not JSON: %v\n%s", err, env.out.String())
	}
	if e.Mood != models.MoodHappy {
		t.Errorf("mood = %q, want happy", e.Mood)
	}
	if e.Rating == nil || *e.Rating != 8 {
		t.Errorf("rating = %v, want 8", e.Rating)
	}
	if got := strings.Join(e.Tags, ","); got != "outside,weekend" {
		t.Errorf("tags = %s, want outside,weekend", got)
	}
}

func TestEntryAddValidation(t *testing.T) {
	env := setupTestEnv(t)
	tests := []struct {
		name string
		cmd  EntryAddCmd
	}{
		{"empty", EntryAddCmd{}},
		{"unknown mood", EntryAddCmd{Text: "x", Mood: "grumpy"}},
		{"rating too high", EntryAddCmd{Text: "x", Rating: 11}},
		{"bad media", EntryAddCmd{Media: []string{"photo"}}},
		{"unknown media kind", EntryAddCmd{Media: []string{"video:abc"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cmd.Run(env.ctx); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestEntryEdit(t *testing.T) {
	env := setupTestEnv(t)
	id := env.add(t, EntryAddCmd{Text: "draft", Mood: "tired", Rating: 3})

	if err := (&EntryEditCmd{ID: id}).Run(env.ctx); err == nil {
		t.Fatal("expected an error for an edit without changes")
	}

	text := "final version #done"
	edit := &EntryEditCmd{ID: id, Text: &text, ClearRating: true}
	if err := edit.Run(env.ctx); err != nil {
		t.Fatalf("edit failed: %v", err)
	}
	e, err := env.ctx.Journal.GetEntry(env.ctx.Ctx(), "u1", id)
	if err != nil {
		t.Fatal(err)
	}
	if e.Text != text || e.Rating != nil || e.Mood != models.MoodTired {
		t.Errorf("unexpected entry after edit: %+v", e)
	}
	if !e.UpdatedAt.After(e.CreatedAt) {
		t.Errorf("updated_at %s not after created_at %s", e.UpdatedAt, e.CreatedAt)
	}
}

func TestEntryDelete(t *testing.T) {
	env := setupTestEnv(t)
	id := env.add(t, EntryAddCmd{Text: "temporary"})

	if err := (&EntryDeleteCmd{ID: []string{id}}).Run(env.ctx); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	err := (&EntryGetCmd{ID: id}).Run(env.ctx)
	if !errors.Is(err, jerrors.ErrNotFound) {
		t.Errorf("get after delete: got %v, want not found", err)
	}
	// deleting again is not an error
	if err := (&EntryDeleteCmd{ID: []string{id}}).Run(env.ctx); err != nil {
		t.Errorf("second delete failed: %v", err)
	}
}

func TestEntryListAndRecent(t *testing.T) {
	env := setupTestEnv(t)
	env.add(t, EntryAddCmd{Text: "morning"})
	env.add(t, EntryAddCmd{Text: "evening"})

	if err := (&EntryListCmd{Date: "2024-05-01"}).Run(env.ctx); err != nil {
		t.Fatalf("list failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(env.out.String()), "\n")
	if len(lines) != 2 || !strings.Contains(lines[0], "morning") {
		t.Errorf("unexpected list output:\n%s", env.out.String())
	}
	env.out.Reset()

	if err := (&EntryListCmd{Date: "2024-05-02"}).Run(env.ctx); err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if !strings.Contains(env.out.String(), "No entries") {
		t.Errorf("expected empty message, got %q", env.out.String())
	}
	env.out.Reset()

	if err := (&EntryRecentCmd{Limit: 1}).Run(env.ctx); err != nil {
		t.Fatalf("recent failed: %v", err)
	}
	if out := env.out.String(); !strings.Contains(out, "evening") || strings.Contains(out, "morning") {
		t.Errorf("unexpected recent output: %q", out)
	}
}

func TestSearch(t *testing.T) {
	env := setupTestEnv(t)
	env.add(t, EntryAddCmd{Text: "walked the dog"})
	env.add(t, EntryAddCmd{Text: "the cat and the dog", Mood: "calm"})
	env.add(t, EntryAddCmd{Text: "quiet day"})

	if err := (&SearchCmd{Keywords: []string{"dog"}}).Run(env.ctx); err != nil {
		t.Fatalf("search failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(env.out.String()), "\n")
	if len(lines) != 2 || !strings.Contains(lines[0], "cat") {
		t.Errorf("expected newest match first, got:\n%s", env.out.String())
	}
	env.out.Reset()

	cmd := &SearchCmd{Keywords: []string{"dog"}, FilterFlags: FilterFlags{Mood: "calm"}}
	if err := cmd.Run(env.ctx); err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if n := strings.Count(strings.TrimSpace(env.out.String()), "\n"); n != 0 {
		t.Errorf("expected a single match, got:\n%s", env.out.String())
	}

	if err := (&SearchCmd{}).Run(env.ctx); err == nil {
		t.Error("expected an error for an empty query")
	}
}

func TestStats(t *testing.T) {
	env := setupTestEnv(t)
	env.add(t, EntryAddCmd{Text: "a", Mood: "happy", Rating: 6})
	env.add(t, EntryAddCmd{Text: "b", Mood: "happy", Rating: 8})
	env.add(t, EntryAddCmd{Text: "c", Mood: "sad"})

	if err := (&StatsCmd{JSON: true}).Run(env.ctx); err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	var stats models.Stats
	if err := json.Unmarshal(env.out.Bytes(), &stats); err != nil {
		t.Fatalf("stats output is not JSON: %v", err)
	}
	if stats.EntryCount != 3 || stats.MoodDistribution[models.MoodHappy] != 2 || stats.AverageRating != 7 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestExportToFile(t *testing.T) {
	env := setupTestEnv(t)
	for _, text := range []string{"one #trip", "two", "three #trip"} {
		env.add(t, EntryAddCmd{Text: text})
	}

	path := filepath.Join(t.TempDir(), "out", "trip.jsonl")
	cmd := &ExportCmd{FilterFlags: FilterFlags{Tag: "trip"}, Output: path}
	if err := cmd.Run(env.ctx); err != nil {
		t.Fatalf("export failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d:\n%s", len(lines), data)
	}
	var first models.EntryRecord
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatal(err)
	}
	if first.Text != "one #trip" {
		t.Errorf("expected ascending order, first = %q", first.Text)
	}
	if !strings.Contains(env.out.String(), "Exported 2 entries") {
		t.Errorf("unexpected output: %q", env.out.String())
	}
}
