package models

import (
	"time"
)

// EntryRecord is the flat, format-neutral shape handed to export renderers.
type EntryRecord struct {
	ID        string        `json:"id"`
	Date      string        `json:"date"`
	Time      string        `json:"time"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
	Text      string        `json:"text,omitempty"`
	Mood      string        `json:"mood,omitempty"`
	Rating    int           `json:"rating,omitempty"`
	Tags      []string      `json:"tags,omitempty"`
	Media     []MediaRecord `json:"media,omitempty"`
}

type MediaRecord struct {
	Kind string `json:"kind"`
	Ref  string `json:"ref"`
}

// RecordFromEntry flattens an entry. Date and time are rendered in loc.
func RecordFromEntry(e Entry, loc *time.Location) EntryRecord {
	if loc == nil {
		loc = time.UTC
	}
	local := e.CreatedAt.In(loc)
	rec := EntryRecord{
		ID:        e.ID,
		Date:      local.Format("2006-01-02"),
		Time:      local.Format("15:04:05"),
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
		Text:      e.Text,
		Mood:      string(e.Mood),
		Tags:      append([]string(nil), e.Tags...),
	}
	if e.Rating != nil {
		rec.Rating = *e.Rating
	}
	for _, m := range e.MediaRefs {
		rec.Media = append(rec.Media, MediaRecord{Kind: string(m.Kind), Ref: m.Ref})
	}
	return rec
}
