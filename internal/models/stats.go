package models

import "time"

// Stats summarizes a user's entries over a period.
type Stats struct {
	From             time.Time      `json:"from,omitempty"`
	To               time.Time      `json:"to,omitempty"`
	EntryCount       int            `json:"entry_count"`
	DaysWithEntries  int            `json:"days_with_entries"`
	MoodDistribution map[Mood]int   `json:"mood_distribution"`
	EntriesPerDay    map[string]int `json:"entries_per_day"`
	RatedEntries     int            `json:"rated_entries"`
	AverageRating    float64        `json:"average_rating"`
}

// NewStats returns an empty Stats for the range.
func NewStats(r DateRange) Stats {
	return Stats{
		From:             r.From,
		To:               r.To,
		MoodDistribution: make(map[Mood]int),
		EntriesPerDay:    make(map[string]int),
	}
}

// Add folds one entry into the stats. Days are bucketed in loc.
func (s *Stats) Add(e Entry, loc *time.Location) {
	if loc == nil {
		loc = time.UTC
	}
	s.EntryCount++
	day := e.CreatedAt.In(loc).Format("2006-01-02")
	if s.EntriesPerDay[day] == 0 {
		s.DaysWithEntries++
	}
	s.EntriesPerDay[day]++
	if e.Mood != "" {
		s.MoodDistribution[e.Mood]++
	}
	if e.Rating != nil {
		total := s.AverageRating*float64(s.RatedEntries) + float64(*e.Rating)
		s.RatedEntries++
		s.AverageRating = total / float64(s.RatedEntries)
	}
}
