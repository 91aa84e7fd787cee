package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/julianstephens/dayjot/internal/tui/components/entrylist"
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.resize()
		return m, nil

	case recentLoadedMsg:
		m.recent.SetEntries(msg.entries)
		m.err = nil
		return m, nil

	case searchResultsMsg:
		// a newer keystroke already replaced this query
		if msg.query != m.search.Value() {
			return m, nil
		}
		m.results.SetEntries(msg.entries)
		if msg.query == "" {
			m.results.SetEmptyText("Type to search your journal.")
		} else {
			m.results.SetEmptyText("No entries match.")
		}
		m.err = nil
		return m, nil

	case remindersLoadedMsg:
		m.reminders = msg.reminders
		return m, nil

	case entrySavedMsg:
		m.status = fmt.Sprintf("Saved entry %s", msg.entry.ID)
		m.err = nil
		m.state = StateRecent
		m.form = nil
		m.entryForm = nil
		return m, tea.Batch(m.loadRecent(), m.runSearch(m.search.Value()))

	case errMsg:
		m.err = msg.err
		if m.state == StateAddEntry && m.form != nil {
			// keep the typed text so the user can fix it
			m.form = newEntryForm(m.entryForm)
			return m, m.form.Init()
		}
		return m, nil

	case entrylist.OpenEntryMsg:
		m.previousState = m.state
		m.detail.SetEntry(msg.Entry)
		m.state = StateDetail
		m.search.Blur()
		return m, nil
	}

	if m.state == StateAddEntry {
		return m.updateForm(msg)
	}

	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m.updateActive(msg)
	}
	if keyMsg.String() == "ctrl+c" {
		m.quitting = true
		return m, tea.Quit
	}

	switch m.state {
	case StateDetail:
		switch {
		case key.Matches(keyMsg, m.keys.Back):
			return m.switchTo(m.previousState)
		case key.Matches(keyMsg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit
		}
		return m.updateActive(msg)

	case StateSearch:
		return m.updateSearch(keyMsg)
	}

	switch {
	case key.Matches(keyMsg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(keyMsg, m.keys.Tab):
		return m.switchTo((m.state + 1) % tabCount)
	case key.Matches(keyMsg, m.keys.ShiftTab):
		return m.switchTo((m.state - 1 + tabCount) % tabCount)
	case key.Matches(keyMsg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(keyMsg, m.keys.Refresh):
		m.status = ""
		return m, tea.Batch(m.loadRecent(), m.loadReminders())
	case key.Matches(keyMsg, m.keys.Add):
		m.previousState = m.state
		m.entryForm = &EntryFormModel{}
		m.form = newEntryForm(m.entryForm)
		m.state = StateAddEntry
		m.err = nil
		return m, m.form.Init()
	}
	return m.updateActive(msg)
}

func (m Model) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && msg.Type == tea.KeyEsc {
		m.state = m.previousState
		m.form = nil
		return m, nil
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}
	switch m.form.State {
	case huh.StateCompleted:
		return m, tea.Batch(cmd, m.saveEntry(m.entryForm.input()))
	case huh.StateAborted:
		m.state = m.previousState
		m.form = nil
	}
	return m, cmd
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Tab):
		return m.switchTo((m.state + 1) % tabCount)
	case key.Matches(msg, m.keys.ShiftTab):
		return m.switchTo((m.state - 1 + tabCount) % tabCount)
	case key.Matches(msg, m.keys.Back):
		if m.search.Value() != "" {
			m.search.SetValue("")
			return m, m.runSearch("")
		}
		return m.switchTo(StateRecent)
	case msg.Type == tea.KeyUp, msg.Type == tea.KeyDown, msg.Type == tea.KeyEnter:
		var cmd tea.Cmd
		m.results, cmd = m.results.Update(msg)
		return m, cmd
	}

	before := m.search.Value()
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	if m.search.Value() != before {
		return m, tea.Batch(cmd, m.runSearch(m.search.Value()))
	}
	return m, cmd
}

func (m Model) updateActive(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.state {
	case StateRecent:
		m.recent, cmd = m.recent.Update(msg)
	case StateSearch:
		m.search, cmd = m.search.Update(msg)
	case StateDetail:
		m.detail, cmd = m.detail.Update(msg)
	}
	return m, cmd
}

func (m Model) switchTo(state SessionState) (tea.Model, tea.Cmd) {
	m.state = state
	m.status = ""
	if state == StateSearch {
		return m, m.search.Focus()
	}
	m.search.Blur()
	return m, nil
}

func (m *Model) resize() {
	w, h := docStyle.GetFrameSize()
	// tabs, status and help lines
	listHeight := m.height - h - 3
	if listHeight < 0 {
		listHeight = 0
	}
	width := m.width - w
	m.recent.SetSize(width, listHeight)
	m.results.SetSize(width, max(listHeight-2, 0))
	m.detail.SetSize(width, listHeight)
	m.search.Width = width - 4
}
