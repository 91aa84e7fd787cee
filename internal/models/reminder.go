package models

import (
	"time"
)

// ReminderState is the derived lifecycle state of a reminder at a given instant.
type ReminderState string

const (
	ReminderScheduled ReminderState = "scheduled"
	ReminderDue       ReminderState = "due"
	ReminderDisabled  ReminderState = "disabled"
)

// Reminder is a recurring schedule describing when to nudge a user to journal.
type Reminder struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Label       string     `json:"label,omitempty"`
	Schedule    string     `json:"schedule"`
	Timezone    string     `json:"timezone"`
	NextFireAt  time.Time  `json:"next_fire_at"`
	Enabled     bool       `json:"enabled"`
	LastFiredAt *time.Time `json:"last_fired_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// StateAt reports the reminder state as seen at now. Fired is transient and
// never observable: a fired reminder is immediately rescheduled.
func (r *Reminder) StateAt(now time.Time) ReminderState {
	if !r.Enabled {
		return ReminderDisabled
	}
	if !r.NextFireAt.After(now) {
		return ReminderDue
	}
	return ReminderScheduled
}
