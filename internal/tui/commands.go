package tui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/julianstephens/dayjot/internal/index"
	"github.com/julianstephens/dayjot/internal/models"
)

type recentLoadedMsg struct {
	entries []models.Entry
}

type searchResultsMsg struct {
	query   string
	entries []models.Entry
}

type remindersLoadedMsg struct {
	reminders []models.Reminder
}

type entrySavedMsg struct {
	entry models.Entry
}

type errMsg struct {
	err error
}

const searchLimit = 100

func (m Model) loadRecent() tea.Cmd {
	d := m.deps
	return func() tea.Msg {
		entries, err := d.Journal.Recent(d.Ctx, d.User, recentLimit)
		if err != nil {
			return errMsg{err}
		}
		return recentLoadedMsg{entries}
	}
}

func (m Model) loadReminders() tea.Cmd {
	d := m.deps
	return func() tea.Msg {
		list, err := d.Reminders.ListReminders(d.Ctx, d.User)
		if err != nil {
			return errMsg{err}
		}
		return remindersLoadedMsg{list}
	}
}

// runSearch queries the index and hydrates hits in the index's order.
func (m Model) runSearch(query string) tea.Cmd {
	d := m.deps
	return func() tea.Msg {
		q, err := ParseQuery(query)
		if err != nil {
			return errMsg{err}
		}
		if q.IsZero() {
			return searchResultsMsg{query: query}
		}
		q.Limit = searchLimit
		ids, err := d.Index.Search(d.Ctx, d.User, q)
		if err != nil {
			return errMsg{err}
		}
		entries, err := d.Journal.GetEntries(d.Ctx, d.User, ids)
		if err != nil {
			return errMsg{err}
		}
		return searchResultsMsg{query: query, entries: entries}
	}
}

// ParseQuery reads the search box: "mood:<mood>" and "tag:<tag>" set
// filters, every other word is a keyword. "#tag" words match tags.
func ParseQuery(s string) (index.Query, error) {
	var q index.Query
	for _, field := range strings.Fields(s) {
		name, value, ok := strings.Cut(field, ":")
		switch {
		case ok && strings.EqualFold(name, "mood"):
			mood, err := models.ParseMood(value)
			if err != nil {
				return q, err
			}
			q.Mood = mood
		case ok && strings.EqualFold(name, "tag"):
			q.Tag = value
		default:
			q.Keywords = append(q.Keywords, field)
		}
	}
	return q, nil
}

func (m Model) saveEntry(in models.EntryInput) tea.Cmd {
	d := m.deps
	return func() tea.Msg {
		e, err := d.Journal.CreateEntry(d.Ctx, d.User, in)
		if err != nil {
			return errMsg{err}
		}
		return entrySavedMsg{e}
	}
}
