package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch m.state {
	case StateRecent:
		content = m.recent.View()
	case StateSearch:
		content = lipgloss.JoinVertical(lipgloss.Left, m.search.View(), "", m.results.View())
	case StateReminders:
		content = m.viewReminders()
	case StateDetail:
		content = m.detail.View()
	case StateAddEntry:
		content = m.form.View()
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		m.viewTabs(),
		docStyle.Render(content),
		m.viewStatus(),
		m.help.View(m),
	)
}

func (m Model) viewTabs() string {
	active := m.state
	if active == StateDetail || active == StateAddEntry {
		active = m.previousState
	}
	tabs := make([]string, 0, tabCount)
	for i, title := range tabTitles {
		if active == SessionState(i) {
			tabs = append(tabs, activeTabStyle.Render(title))
		} else {
			tabs = append(tabs, inactiveTabStyle.Render(title))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m Model) viewStatus() string {
	if m.err != nil {
		return dangerStyle.Render("Error: " + m.err.Error())
	}
	return statusStyle.Render(m.status)
}

func (m Model) viewReminders() string {
	if len(m.reminders) == 0 {
		return "\n  No reminders. Add one with 'dayjot reminder set'."
	}
	now := time.Now()
	var b strings.Builder
	for _, r := range m.reminders {
		loc, err := time.LoadLocation(r.Timezone)
		if err != nil {
			loc = time.UTC
		}
		line := fmt.Sprintf("%-24s %-10s next %s",
			r.Schedule, r.StateAt(now), r.NextFireAt.In(loc).Format("Mon Jan 2 15:04 MST"))
		if r.Label != "" {
			line += "  " + r.Label
		}
		if !r.Enabled {
			line = disabledStyle.Render(line)
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}
