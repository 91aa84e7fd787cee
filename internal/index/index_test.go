package index

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jerrors "github.com/julianstephens/dayjot/internal/errors"
	"github.com/julianstephens/dayjot/internal/journal"
	"github.com/julianstephens/dayjot/internal/models"
	"github.com/julianstephens/dayjot/internal/storage/sqlite"
	"github.com/julianstephens/dayjot/internal/syncutil"
)

type harness struct {
	store   *sqlite.Store
	index   *Index
	journal *journal.Service
	now     time.Time
}

func newHarness(t *testing.T, synced bool) *harness {
	t.Helper()
	store := sqlite.NewStore(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, store.Init())
	t.Cleanup(func() { store.Close() })

	locks := syncutil.NewKeyedMutex()
	h := &harness{
		store: store,
		index: New(store, locks),
		now:   time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	seq := 0
	opts := []journal.Option{
		journal.WithClock(func() time.Time { return h.now }),
		journal.WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("E%d", seq)
		}),
	}
	if synced {
		opts = append(opts, journal.WithSyncer(h.index))
	}
	h.journal = journal.New(store, locks, opts...)
	return h
}

func (h *harness) write(t *testing.T, userID string, in models.EntryInput) models.Entry {
	t.Helper()
	e, err := h.journal.CreateEntry(context.Background(), userID, in)
	require.NoError(t, err)
	h.now = h.now.Add(time.Minute)
	return e
}

func TestSearchDogCat(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()

	e1 := h.write(t, "u1", models.EntryInput{Text: "walked the dog"})
	e2 := h.write(t, "u1", models.EntryInput{Text: "the cat and the dog"})

	ids, err := h.index.Search(ctx, "u1", Query{Keywords: []string{"dog"}})
	require.NoError(t, err)
	assert.Equal(t, []string{e2.ID, e1.ID}, ids)

	ids, err = h.index.Search(ctx, "u1", Query{Keywords: []string{"dog", "cat"}})
	require.NoError(t, err)
	assert.Equal(t, []string{e2.ID}, ids)

	require.NoError(t, h.journal.DeleteEntry(ctx, "u1", e1.ID))
	ids, err = h.index.Search(ctx, "u1", Query{Keywords: []string{"dog"}})
	require.NoError(t, err)
	assert.Equal(t, []string{e2.ID}, ids)
}

func TestSearchFilters(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()

	park := h.write(t, "u1", models.EntryInput{Text: "picnic in the park #sunny", Mood: models.MoodHappy})
	h.now = h.now.Add(48 * time.Hour)
	rain := h.write(t, "u1", models.EntryInput{Text: "rain at the park", Mood: models.MoodSad, Tags: []string{"weather"}})
	h.write(t, "u2", models.EntryInput{Text: "park run", Mood: models.MoodHappy})

	tests := []struct {
		name string
		q    Query
		want []string
	}{
		{name: "mood", q: Query{Mood: models.MoodHappy}, want: []string{park.ID}},
		{name: "tag", q: Query{Tag: "#Weather"}, want: []string{rain.ID}},
		{name: "hashtag keyword", q: Query{Keywords: []string{"#sunny"}}, want: []string{park.ID}},
		{name: "keyword and mood", q: Query{Keywords: []string{"park"}, Mood: models.MoodSad}, want: []string{rain.ID}},
		{name: "from", q: Query{Keywords: []string{"park"}, From: ptr(park.CreatedAt.Add(time.Hour))}, want: []string{rain.ID}},
		{name: "to is exclusive", q: Query{To: ptr(rain.CreatedAt)}, want: []string{park.ID}},
		{name: "all", q: Query{}, want: []string{rain.ID, park.ID}},
		{name: "limit", q: Query{Keywords: []string{"park"}, Limit: 1}, want: []string{rain.ID}},
		{name: "stopword only", q: Query{Keywords: []string{"the"}}, want: []string{}},
		{name: "tag without letters", q: Query{Tag: "#"}, want: []string{}},
		{name: "blank tag", q: Query{Tag: "  # "}, want: []string{}},
		{name: "no match", q: Query{Keywords: []string{"snow"}}, want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ids, err := h.index.Search(ctx, "u1", tt.q)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids)
		})
	}

	_, err := h.index.Search(ctx, "u1", Query{Mood: "ecstatic"})
	assert.ErrorIs(t, err, jerrors.ErrValidation)
	_, err = h.index.Search(ctx, "", Query{})
	assert.ErrorIs(t, err, jerrors.ErrValidation)
}

func ptr[T any](v T) *T { return &v }

func TestApplyIsIdempotent(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	e := h.write(t, "u1", models.EntryInput{Text: "quiet evening", Mood: models.MoodCalm})
	ev := models.IndexEvent{Seq: 1, UserID: "u1", EntryID: e.ID, Op: models.IndexUpsert, Entry: &e}

	require.NoError(t, h.index.Apply(ctx, ev))
	once, err := h.store.UserIndexKeys(ctx, "u1")
	require.NoError(t, err)

	require.NoError(t, h.index.Apply(ctx, ev))
	twice, err := h.store.UserIndexKeys(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, once, twice)

	del := models.IndexEvent{Seq: 2, UserID: "u1", EntryID: e.ID, Op: models.IndexDelete}
	require.NoError(t, h.index.Apply(ctx, del))
	require.NoError(t, h.index.Apply(ctx, del))
	keys, err := h.store.UserIndexKeys(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, keys)

	assert.Error(t, h.index.Apply(ctx, models.IndexEvent{Op: models.IndexUpsert, EntryID: "x", UserID: "u1"}))
	assert.Error(t, h.index.Apply(ctx, models.IndexEvent{Op: "merge", EntryID: "x", UserID: "u1"}))
}

func TestSyncDrainsInOrder(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	e := h.write(t, "u1", models.EntryInput{Text: "first words"})
	text := "second words"
	_, err := h.journal.UpdateEntry(ctx, "u1", e.ID, models.EntryPatch{Text: &text})
	require.NoError(t, err)

	ids, err := h.index.Search(ctx, "u1", Query{Keywords: []string{"words"}})
	require.NoError(t, err)
	assert.Empty(t, ids, "nothing is indexed before the outbox drains")

	require.NoError(t, h.index.Sync(ctx, "u1"))

	ids, err = h.index.Search(ctx, "u1", Query{Keywords: []string{"second"}})
	require.NoError(t, err)
	assert.Equal(t, []string{e.ID}, ids)
	ids, err = h.index.Search(ctx, "u1", Query{Keywords: []string{"first"}})
	require.NoError(t, err)
	assert.Empty(t, ids)

	pending, err := h.store.PendingEvents(ctx, "u1", 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSyncRecoversFromPoisonEvent(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	e := h.write(t, "u1", models.EntryInput{Text: "stubborn event"})
	pending, err := h.store.PendingEvents(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	for i := 0; i < maxEventAttempts; i++ {
		require.NoError(t, h.store.MarkEventFailed(ctx, pending[0].Seq, fmt.Errorf("attempt %d", i)))
	}

	require.NoError(t, h.index.Sync(ctx, "u1"))

	ids, err := h.index.Search(ctx, "u1", Query{Keywords: []string{"stubborn"}})
	require.NoError(t, err)
	assert.Equal(t, []string{e.ID}, ids)

	pending, err = h.store.PendingEvents(ctx, "u1", 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestRebuildHealsDrift(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()

	e := h.write(t, "u1", models.EntryInput{Text: "lighthouse visit"})

	report, err := h.index.Rebuild(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, report.Drift())
	assert.Equal(t, 1, report.Entries)

	// stale keys for a vanished entry, and the real entry's keys lost
	require.NoError(t, h.store.ReplaceUserIndex(ctx, "u1", []models.IndexKey{
		{Key: "w:ghost", EntryID: "gone", CreatedAt: h.now},
	}))

	report, err = h.index.Rebuild(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, report.Drift())
	assert.Equal(t, 1, report.Removed)
	assert.Equal(t, len(KeysFor(e)), report.Added)

	ids, err := h.index.Search(ctx, "u1", Query{Keywords: []string{"lighthouse"}})
	require.NoError(t, err)
	assert.Equal(t, []string{e.ID}, ids)
	ids, err = h.index.Search(ctx, "u1", Query{Keywords: []string{"ghost"}})
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestRebuildAll(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	h.write(t, "u1", models.EntryInput{Text: "one"})
	h.write(t, "u2", models.EntryInput{Text: "two entries"})
	h.write(t, "u3", models.EntryInput{Mood: models.MoodNeutral})

	reports, err := h.index.RebuildAll(ctx)
	require.NoError(t, err)
	assert.Len(t, reports, 3)
	for _, r := range reports {
		assert.True(t, r.Drift(), "unsynced users start with an empty index")
	}

	ids, err := h.index.Search(ctx, "u2", Query{Keywords: []string{"entries"}})
	require.NoError(t, err)
	assert.Len(t, ids, 1)
}

func TestWorkerDrainsPendingEvents(t *testing.T) {
	h := newHarness(t, false)

	e := h.write(t, "u1", models.EntryInput{Text: "background indexing"})
	h.write(t, "u2", models.EntryInput{Text: "another user"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewWorker(h.index, 10*time.Millisecond).Run(ctx) }()

	require.Eventually(t, func() bool {
		users, err := h.store.UsersWithPendingEvents(context.Background())
		return err == nil && len(users) == 0
	}, 2*time.Second, 10*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	ids, err := h.index.Search(context.Background(), "u1", Query{Keywords: []string{"background"}})
	require.NoError(t, err)
	assert.Equal(t, []string{e.ID}, ids)
}
