// Package tui is a terminal browser for one user's journal: recent entries,
// live index search, reminders, and a form for new entries.
package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/julianstephens/dayjot/internal/index"
	"github.com/julianstephens/dayjot/internal/journal"
	"github.com/julianstephens/dayjot/internal/models"
	"github.com/julianstephens/dayjot/internal/reminder"
	"github.com/julianstephens/dayjot/internal/tui/components/detail"
	"github.com/julianstephens/dayjot/internal/tui/components/entrylist"
)

type SessionState int

const (
	StateRecent SessionState = iota
	StateSearch
	StateReminders
	StateDetail
	StateAddEntry
)

const tabCount = 3

var tabTitles = [tabCount]string{"Recent", "Search", "Reminders"}

// recentLimit bounds the Recent tab.
const recentLimit = 50

// Deps are the services the browser reads from.
type Deps struct {
	Ctx       context.Context
	Journal   *journal.Service
	Index     *index.Index
	Reminders *reminder.Scheduler
	User      string
	Location  *time.Location
}

type EntryFormModel struct {
	Text   string
	Mood   models.Mood
	Tags   string
	Rating string
}

type Model struct {
	deps          Deps
	state         SessionState
	previousState SessionState
	keys          KeyMap
	help          help.Model
	recent        entrylist.Model
	results       entrylist.Model
	search        textinput.Model
	detail        detail.Model
	reminders     []models.Reminder
	form          *huh.Form
	entryForm     *EntryFormModel
	status        string
	err           error
	quitting      bool
	width         int
	height        int
}

func NewModel(deps Deps) Model {
	if deps.Ctx == nil {
		deps.Ctx = context.Background()
	}
	if deps.Location == nil {
		deps.Location = time.Local
	}

	search := textinput.New()
	search.Placeholder = "words, #tag or mood:calm"
	search.Prompt = "/ "
	search.CharLimit = 200

	return Model{
		deps:    deps,
		state:   StateRecent,
		keys:    DefaultKeyMap(),
		help:    help.New(),
		recent:  entrylist.New(nil, deps.Location, "No entries yet. Press 'a' to write one.", 0, 0),
		results: entrylist.New(nil, deps.Location, "Type to search your journal.", 0, 0),
		search:  search,
		detail:  detail.New(deps.Location, 0, 0),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.loadRecent(), m.loadReminders())
}

func (m Model) ShortHelp() []key.Binding {
	switch m.state {
	case StateDetail:
		return []key.Binding{m.keys.Back, m.keys.Up, m.keys.Down, m.keys.Quit}
	case StateSearch:
		return []key.Binding{m.keys.Tab, m.keys.Enter, m.keys.Back}
	}
	return []key.Binding{m.keys.Tab, m.keys.Add, m.keys.Refresh, m.keys.Quit, m.keys.Help}
}

func (m Model) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{m.keys.Tab, m.keys.ShiftTab, m.keys.Quit, m.keys.Help},
		{m.keys.Up, m.keys.Down, m.keys.Enter, m.keys.Back},
		{m.keys.Add, m.keys.Refresh},
	}
}
