package models

import (
	"regexp"
	"sort"
	"strings"
	"time"

	jerrors "github.com/julianstephens/dayjot/internal/errors"
)

// MediaKind names what a media reference points at.
type MediaKind string

const (
	MediaPhoto    MediaKind = "photo"
	MediaVoice    MediaKind = "voice"
	MediaLocation MediaKind = "location"
)

func (k MediaKind) Valid() bool {
	switch k {
	case MediaPhoto, MediaVoice, MediaLocation:
		return true
	default:
		return false
	}
}

// MediaRef is an opaque reference to media held by the chat transport.
type MediaRef struct {
	Kind MediaKind `json:"kind"`
	Ref  string    `json:"ref"`
}

const (
	MinRating = 1
	MaxRating = 10
)

// Entry is one journal record for a user at a point in time.
type Entry struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	Text      string     `json:"text,omitempty"`
	Mood      Mood       `json:"mood,omitempty"`
	Rating    *int       `json:"rating,omitempty"`
	MediaRefs []MediaRef `json:"media_refs,omitempty"`
	// Tags is the merged set: UserTags plus hashtags found in Text.
	Tags []string `json:"tags,omitempty"`
	// UserTags are the tags supplied explicitly, kept apart so an edit to the
	// text never removes them.
	UserTags []string `json:"user_tags,omitempty"`
}

// EntryInput carries the caller-supplied fields of a new entry.
type EntryInput struct {
	Text      string
	Mood      Mood
	Rating    *int
	MediaRefs []MediaRef
	Tags      []string
}

// EntryPatch describes a partial update. Nil fields are left unchanged; a
// non-nil pointer to a zero value clears the field. ClearRating removes the
// rating and wins over Rating.
type EntryPatch struct {
	Text        *string
	Mood        *Mood
	Rating      *int
	ClearRating bool
	MediaRefs   *[]MediaRef
	Tags        *[]string
}

// IsEmpty reports whether the patch would change nothing.
func (p EntryPatch) IsEmpty() bool {
	return p.Text == nil && p.Mood == nil && p.Rating == nil && !p.ClearRating &&
		p.MediaRefs == nil && p.Tags == nil
}

// NewEntry builds an entry from input with derived tags. Identity and
// timestamps are assigned by the caller.
func NewEntry(userID string, in EntryInput) Entry {
	e := Entry{
		UserID:    userID,
		Text:      strings.TrimSpace(in.Text),
		Mood:      in.Mood,
		Rating:    in.Rating,
		MediaRefs: append([]MediaRef(nil), in.MediaRefs...),
	}
	e.UserTags = nilIfEmpty(NormalizeTags(in.Tags))
	e.deriveTags()
	return e
}

// Apply returns a copy of e with the patch applied. A Tags patch replaces
// UserTags; the merged Tags are always re-derived from the resulting text.
func (e Entry) Apply(p EntryPatch) Entry {
	out := e
	if p.Text != nil {
		out.Text = strings.TrimSpace(*p.Text)
	}
	if p.Mood != nil {
		out.Mood = *p.Mood
	}
	if p.Rating != nil {
		r := *p.Rating
		out.Rating = &r
	}
	if p.ClearRating {
		out.Rating = nil
	}
	if p.MediaRefs != nil {
		out.MediaRefs = append([]MediaRef(nil), (*p.MediaRefs)...)
	}
	if p.Tags != nil {
		out.UserTags = nilIfEmpty(NormalizeTags(*p.Tags))
	} else {
		out.UserTags = append([]string(nil), e.UserTags...)
	}
	out.deriveTags()
	return out
}

func (e *Entry) deriveTags() {
	e.Tags = nilIfEmpty(NormalizeTags(append(append([]string(nil), e.UserTags...), ExtractHashtags(e.Text)...)))
}

func nilIfEmpty(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	return tags
}

// Validate enforces the entry schema. An entry must carry at least one of
// text, mood or media.
func (e *Entry) Validate() error {
	if strings.TrimSpace(e.UserID) == "" {
		return jerrors.Invalid("user_id", "must not be empty")
	}
	if strings.TrimSpace(e.Text) == "" && e.Mood == "" && len(e.MediaRefs) == 0 {
		return jerrors.Invalid("", "entry needs text, a mood, or media")
	}
	if e.Mood != "" && !e.Mood.Valid() {
		return jerrors.Invalid("mood", "unknown mood %q", e.Mood)
	}
	if e.Rating != nil && (*e.Rating < MinRating || *e.Rating > MaxRating) {
		return jerrors.Invalid("rating", "must be between %d and %d, got %d", MinRating, MaxRating, *e.Rating)
	}
	for i, m := range e.MediaRefs {
		if !m.Kind.Valid() {
			return jerrors.Invalid("media_refs", "item %d: unknown kind %q", i, m.Kind)
		}
		if strings.TrimSpace(m.Ref) == "" {
			return jerrors.Invalid("media_refs", "item %d: empty reference", i)
		}
	}
	return nil
}

var hashtagPattern = regexp.MustCompile(`#([\p{L}\p{N}_-]+)`)

// ExtractHashtags returns the #hashtags found in text, without the leading '#'.
func ExtractHashtags(text string) []string {
	matches := hashtagPattern.FindAllStringSubmatch(text, -1)
	tags := make([]string, 0, len(matches))
	for _, m := range matches {
		tags = append(tags, m[1])
	}
	return tags
}

// NormalizeTags lowercases, trims, strips '#', deduplicates and sorts tags.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(t), "#")))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// MoodSample is a derived projection of an entry's mood, used for statistics.
type MoodSample struct {
	EntryID string    `json:"entry_id"`
	Mood    Mood      `json:"mood"`
	At      time.Time `json:"at"`
}

// DateRange is a half-open interval [From, To). Zero bounds are open.
type DateRange struct {
	From time.Time
	To   time.Time
}

// DayRange returns the range covering the calendar day of t in loc.
func DayRange(t time.Time, loc *time.Location) DateRange {
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	return DateRange{From: start.UTC(), To: start.AddDate(0, 0, 1).UTC()}
}

// Contains reports whether t falls inside the range.
func (r DateRange) Contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && !t.Before(r.To) {
		return false
	}
	return true
}

// Validate rejects inverted ranges.
func (r DateRange) Validate() error {
	if !r.From.IsZero() && !r.To.IsZero() && !r.From.Before(r.To) {
		return jerrors.Invalid("range", "from (%s) must be before to (%s)", r.From.Format(time.RFC3339), r.To.Format(time.RFC3339))
	}
	return nil
}
