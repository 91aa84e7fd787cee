package models

import (
	"errors"
	"reflect"
	"testing"
	"time"

	jerrors "github.com/julianstephens/dayjot/internal/errors"
)

func intPtr(v int) *int { return &v }

func TestEntryValidate(t *testing.T) {
	tests := []struct {
		name    string
		entry   Entry
		wantErr bool
	}{
		{name: "text only", entry: Entry{UserID: "u1", Text: "Walked the dog"}},
		{name: "mood only", entry: Entry{UserID: "u1", Mood: MoodHappy}},
		{name: "media only", entry: Entry{UserID: "u1", MediaRefs: []MediaRef{{Kind: MediaPhoto, Ref: "file-1"}}}},
		{name: "all empty", entry: Entry{UserID: "u1", Text: "   "}, wantErr: true},
		{name: "tags alone are not content", entry: Entry{UserID: "u1", Tags: []string{"x"}}, wantErr: true},
		{name: "missing user", entry: Entry{Text: "hi"}, wantErr: true},
		{name: "unknown mood", entry: Entry{UserID: "u1", Mood: "ecstatic"}, wantErr: true},
		{name: "bad media kind", entry: Entry{UserID: "u1", MediaRefs: []MediaRef{{Kind: "video", Ref: "x"}}}, wantErr: true},
		{name: "empty media ref", entry: Entry{UserID: "u1", MediaRefs: []MediaRef{{Kind: MediaVoice, Ref: " "}}}, wantErr: true},
		{name: "rating too high", entry: Entry{UserID: "u1", Text: "x", Rating: intPtr(11)}, wantErr: true},
		{name: "rating in range", entry: Entry{UserID: "u1", Text: "x", Rating: intPtr(7)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.entry.Validate()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected validation error, got nil")
				}
				if !errors.Is(err, jerrors.ErrValidation) {
					t.Errorf("expected ErrValidation, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestNewEntryDerivesTags(t *testing.T) {
	e := NewEntry("u1", EntryInput{
		Text: "  Long run by the river #Running #health ",
		Tags: []string{"Outdoors", "#running"},
	})

	if e.Text != "Long run by the river #Running #health" {
		t.Errorf("text not trimmed: %q", e.Text)
	}
	want := []string{"health", "outdoors", "running"}
	if !reflect.DeepEqual(e.Tags, want) {
		t.Errorf("tags = %v, want %v", e.Tags, want)
	}
}

func TestEntryApplyPreservesExplicitTags(t *testing.T) {
	e := NewEntry("u1", EntryInput{Text: "coffee #morning", Tags: []string{"cafe"}})

	text := "tea in the evening #evening"
	updated := e.Apply(EntryPatch{Text: &text})
	want := []string{"cafe", "evening"}
	if !reflect.DeepEqual(updated.Tags, want) {
		t.Errorf("tags = %v, want %v", updated.Tags, want)
	}

	updated = updated.Apply(EntryPatch{Tags: &[]string{}})
	if !reflect.DeepEqual(updated.Tags, []string{"evening"}) {
		t.Errorf("explicit clear should keep only hashtags, got %v", updated.Tags)
	}
	if updated.UserTags != nil {
		t.Errorf("user tags after clear = %v, want none", updated.UserTags)
	}

	// an explicit tag that is also a hashtag survives removing the hashtag
	e = NewEntry("u1", EntryInput{Text: "run #fitness", Tags: []string{"fitness"}})
	if !reflect.DeepEqual(e.Tags, []string{"fitness"}) {
		t.Fatalf("tags = %v, want [fitness]", e.Tags)
	}
	text = "run"
	updated = e.Apply(EntryPatch{Text: &text})
	if !reflect.DeepEqual(updated.Tags, []string{"fitness"}) {
		t.Errorf("tags after dropping the hashtag = %v, want [fitness]", updated.Tags)
	}

	// a tag that only came from the text goes away with it
	e = NewEntry("u1", EntryInput{Text: "run #fitness"})
	if updated := e.Apply(EntryPatch{Text: &text}); updated.Tags != nil {
		t.Errorf("derived tag kept after its hashtag was removed: %v", updated.Tags)
	}
}

func TestEntryApplyRating(t *testing.T) {
	e := Entry{UserID: "u1", Text: "x", Rating: intPtr(3)}

	if got := e.Apply(EntryPatch{Rating: intPtr(8)}); got.Rating == nil || *got.Rating != 8 {
		t.Errorf("expected rating 8, got %v", got.Rating)
	}
	if got := e.Apply(EntryPatch{ClearRating: true}); got.Rating != nil {
		t.Errorf("expected rating cleared, got %v", *got.Rating)
	}
	if *e.Rating != 3 {
		t.Error("Apply must not mutate the receiver")
	}
}

func TestDayRange(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	at := time.Date(2024, 3, 1, 2, 0, 0, 0, time.UTC) // 2024-02-29 21:00 in New York
	r := DayRange(at, loc)

	wantFrom := time.Date(2024, 2, 29, 5, 0, 0, 0, time.UTC)
	if !r.From.Equal(wantFrom) {
		t.Errorf("From = %v, want %v", r.From, wantFrom)
	}
	if !r.Contains(at) {
		t.Error("range should contain the instant it was built from")
	}
	if r.Contains(r.To) {
		t.Error("range must be half-open")
	}
}

func TestDateRangeValidate(t *testing.T) {
	now := time.Now()
	if err := (DateRange{From: now, To: now}).Validate(); err == nil {
		t.Error("expected error for empty range")
	}
	if err := (DateRange{}).Validate(); err != nil {
		t.Errorf("open range should be valid: %v", err)
	}
}

func TestParseMood(t *testing.T) {
	m, err := ParseMood(" Happy ")
	if err != nil || m != MoodHappy {
		t.Errorf("ParseMood = %q, %v", m, err)
	}
	if m, err := ParseMood(""); err != nil || m != "" {
		t.Errorf("empty mood should be allowed, got %q, %v", m, err)
	}
	if _, err := ParseMood("meh"); err == nil {
		t.Error("expected error for unknown mood")
	}
}

func TestStatsAdd(t *testing.T) {
	s := NewStats(DateRange{})
	day := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	s.Add(Entry{CreatedAt: day, Mood: MoodHappy, Rating: intPtr(8)}, time.UTC)
	s.Add(Entry{CreatedAt: day.Add(time.Hour), Mood: MoodHappy, Rating: intPtr(6)}, time.UTC)
	s.Add(Entry{CreatedAt: day.AddDate(0, 0, 1), Mood: MoodSad}, time.UTC)

	if s.EntryCount != 3 || s.DaysWithEntries != 2 {
		t.Errorf("counts = %d entries / %d days", s.EntryCount, s.DaysWithEntries)
	}
	if s.MoodDistribution[MoodHappy] != 2 || s.MoodDistribution[MoodSad] != 1 {
		t.Errorf("mood distribution = %v", s.MoodDistribution)
	}
	if s.RatedEntries != 2 || s.AverageRating != 7 {
		t.Errorf("rating = %d entries avg %v", s.RatedEntries, s.AverageRating)
	}
}

func TestReminderStateAt(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	r := Reminder{Enabled: true, NextFireAt: now.Add(time.Hour)}
	if r.StateAt(now) != ReminderScheduled {
		t.Errorf("expected scheduled, got %s", r.StateAt(now))
	}
	if r.StateAt(now.Add(time.Hour)) != ReminderDue {
		t.Errorf("expected due at next_fire_at, got %s", r.StateAt(now.Add(time.Hour)))
	}
	r.Enabled = false
	if r.StateAt(now.Add(2*time.Hour)) != ReminderDisabled {
		t.Error("expected disabled")
	}
}
