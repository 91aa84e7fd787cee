package backup

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/julianstephens/dayjot/internal/models"
	"github.com/julianstephens/dayjot/internal/storage/sqlite"
)

var base = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// writeEntry opens the journal at dbPath, adds one entry, and closes it again.
func writeEntry(t *testing.T, dbPath, id string, init bool) {
	t.Helper()
	store := sqlite.NewStore(dbPath)
	var err error
	if init {
		err = store.Init()
	} else {
		err = store.Load()
	}
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	e := models.Entry{ID: id, UserID: "u1", CreatedAt: base, UpdatedAt: base, Text: "entry " + id}
	if err := store.CreateEntry(context.Background(), e); err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}
}

func entryIDs(t *testing.T, dbPath string) []string {
	t.Helper()
	store := sqlite.NewStore(dbPath)
	if err := store.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer store.Close()

	entries, err := store.ListEntries(context.Background(), "u1", models.DateRange{}, nil, 100)
	if err != nil {
		t.Fatalf("ListEntries: %v", err)
	}
	var ids []string
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	return ids
}

func stepClock(start time.Time, step time.Duration) func() time.Time {
	now := start
	return func() time.Time {
		t := now
		now = now.Add(step)
		return t
	}
}

func TestCreate(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "dayjot.db")
	writeEntry(t, dbPath, "e1", true)

	mgr := NewManager(dbPath, WithClock(func() time.Time { return base }))
	info, err := mgr.Create(context.Background())
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if want := filepath.Join(mgr.Dir(), "dayjot-20240601-120000.db"); info.Path != want {
		t.Errorf("path = %s, want %s", info.Path, want)
	}
	if info.Size == 0 {
		t.Error("expected a non-empty snapshot")
	}
	if err := Verify(context.Background(), info.Path); err != nil {
		t.Errorf("Verify() error: %v", err)
	}
	if ids := entryIDs(t, info.Path); len(ids) != 1 || ids[0] != "e1" {
		t.Errorf("snapshot entries = %v, want [e1]", ids)
	}
}

func TestCreateSameSecond(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "dayjot.db")
	writeEntry(t, dbPath, "e1", true)

	mgr := NewManager(dbPath, WithClock(func() time.Time { return base }))
	for i := 0; i < 3; i++ {
		if _, err := mgr.Create(context.Background()); err != nil {
			t.Fatalf("Create() #%d error: %v", i, err)
		}
	}
	all, err := mgr.List()
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 backups, got %d", len(all))
	}
	if all[0].Seq != 2 || all[2].Seq != 0 {
		t.Errorf("unexpected order: %+v", all)
	}
}

func TestRotation(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "dayjot.db")
	writeEntry(t, dbPath, "e1", true)

	mgr := NewManager(dbPath, WithRetention(3), WithClock(stepClock(base, time.Hour)))
	var last Info
	for i := 0; i < 5; i++ {
		info, err := mgr.Create(context.Background())
		if err != nil {
			t.Fatalf("Create() #%d error: %v", i, err)
		}
		last = info
	}

	all, err := mgr.List()
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 backups after rotation, got %d", len(all))
	}
	if all[0].Path != last.Path {
		t.Errorf("newest = %s, want %s", all[0].Path, last.Path)
	}
	if want := base.Add(2 * time.Hour); !all[2].Timestamp.Equal(want) {
		t.Errorf("oldest kept = %s, want %s", all[2].Timestamp, want)
	}
}

func TestListIgnoresForeignFiles(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "dayjot.db")
	mgr := NewManager(dbPath)

	all, err := mgr.List()
	if err != nil {
		t.Fatalf("List() on missing dir: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("expected no backups, got %d", len(all))
	}

	if err := os.MkdirAll(mgr.Dir(), 0o700); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"notes.txt", "dayjot-latest.db", "dayjot-20240601-1200.db"} {
		if err := os.WriteFile(filepath.Join(mgr.Dir(), name), []byte("x"), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	all, err = mgr.List()
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("expected foreign files to be skipped, got %+v", all)
	}
	if _, ok, _ := mgr.Latest(); ok {
		t.Error("Latest() reported a backup")
	}
}

func TestCreateWithoutDatabase(t *testing.T) {
	mgr := NewManager(filepath.Join(t.TempDir(), "missing.db"))
	if _, err := mgr.Create(context.Background()); err == nil {
		t.Fatal("expected an error for a missing database")
	}
}

func TestRestore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "dayjot.db")
	writeEntry(t, dbPath, "e1", true)

	mgr := NewManager(dbPath, WithClock(stepClock(base, time.Minute)))
	snap, err := mgr.Create(context.Background())
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	writeEntry(t, dbPath, "e2", false)
	if ids := entryIDs(t, dbPath); len(ids) != 2 {
		t.Fatalf("expected 2 entries before restore, got %v", ids)
	}

	previous, err := mgr.Restore(context.Background(), snap.Path)
	if err != nil {
		t.Fatalf("Restore() error: %v", err)
	}
	if ids := entryIDs(t, dbPath); len(ids) != 1 || ids[0] != "e1" {
		t.Errorf("restored entries = %v, want [e1]", ids)
	}
	if ids := entryIDs(t, previous.Path); len(ids) != 2 {
		t.Errorf("pre-restore snapshot entries = %v, want 2", ids)
	}
	if _, err := os.Stat(dbPath + ".restore.tmp"); !os.IsNotExist(err) {
		t.Error("temporary restore file left behind")
	}
}

func TestRestoreRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "dayjot.db")
	writeEntry(t, dbPath, "e1", true)

	junk := filepath.Join(dir, "junk.db")
	if err := os.WriteFile(junk, []byte("not a database"), 0o600); err != nil {
		t.Fatal(err)
	}

	mgr := NewManager(dbPath)
	if _, err := mgr.Restore(context.Background(), junk); err == nil {
		t.Fatal("expected Restore() to reject a corrupt file")
	}
	if _, err := mgr.Restore(context.Background(), filepath.Join(dir, "absent.db")); err == nil {
		t.Fatal("expected Restore() to reject a missing file")
	}
	if ids := entryIDs(t, dbPath); len(ids) != 1 {
		t.Errorf("database changed after rejected restore: %v", ids)
	}
}
