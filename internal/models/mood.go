package models

import (
	"strings"

	jerrors "github.com/julianstephens/dayjot/internal/errors"
)

// Mood is a value from a fixed, closed set describing emotional state at entry time.
type Mood string

const (
	MoodHappy    Mood = "happy"
	MoodExcited  Mood = "excited"
	MoodGrateful Mood = "grateful"
	MoodCalm     Mood = "calm"
	MoodNeutral  Mood = "neutral"
	MoodTired    Mood = "tired"
	MoodAnxious  Mood = "anxious"
	MoodSad      Mood = "sad"
	MoodAngry    Mood = "angry"
)

// AllMoods lists the closed set in display order.
var AllMoods = []Mood{
	MoodHappy, MoodExcited, MoodGrateful, MoodCalm, MoodNeutral,
	MoodTired, MoodAnxious, MoodSad, MoodAngry,
}

func (m Mood) Valid() bool {
	for _, known := range AllMoods {
		if m == known {
			return true
		}
	}
	return false
}

// ParseMood normalizes user input into a Mood. Empty input yields an empty Mood.
func ParseMood(s string) (Mood, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "", nil
	}
	m := Mood(s)
	if !m.Valid() {
		return "", jerrors.Invalid("mood", "unknown mood %q", s)
	}
	return m, nil
}
