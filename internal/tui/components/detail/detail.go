package detail

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/julianstephens/dayjot/internal/models"
)

var (
	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Width(10)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Bold(true)

	tagStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205"))
)

// Model shows one entry in a scrollable viewport.
type Model struct {
	viewport viewport.Model
	entry    *models.Entry
	loc      *time.Location
}

func New(loc *time.Location, width, height int) Model {
	if loc == nil {
		loc = time.UTC
	}
	return Model{viewport: viewport.New(width, height), loc: loc}
}

func (m *Model) SetEntry(e models.Entry) {
	m.entry = &e
	m.viewport.SetContent(m.render())
	m.viewport.GotoTop()
}

func (m Model) Entry() (models.Entry, bool) {
	if m.entry == nil {
		return models.Entry{}, false
	}
	return *m.entry, true
}

func (m *Model) render() string {
	e := m.entry
	var b strings.Builder
	row := func(label, value string) {
		b.WriteString(labelStyle.Render(label) + value + "\n")
	}

	b.WriteString(headerStyle.Render(e.CreatedAt.In(m.loc).Format("Monday, January 2 2006 at 15:04")) + "\n\n")
	if e.Mood != "" {
		row("Mood", string(e.Mood))
	}
	if e.Rating != nil {
		row("Rating", fmt.Sprintf("%d/%d", *e.Rating, models.MaxRating))
	}
	if len(e.Tags) > 0 {
		tags := make([]string, len(e.Tags))
		for i, t := range e.Tags {
			tags[i] = tagStyle.Render("#" + t)
		}
		row("Tags", strings.Join(tags, " "))
	}
	for _, ref := range e.MediaRefs {
		row(string(ref.Kind), ref.Ref)
	}
	if !e.UpdatedAt.Equal(e.CreatedAt) {
		row("Edited", e.UpdatedAt.In(m.loc).Format("2006-01-02 15:04"))
	}
	if e.Text != "" {
		b.WriteString("\n" + e.Text + "\n")
	}
	b.WriteString("\n" + labelStyle.Render("ID") + e.ID + "\n")
	return b.String()
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if m.entry == nil {
		return "\n  Nothing selected."
	}
	return m.viewport.View()
}

func (m *Model) SetSize(width, height int) {
	m.viewport.Width = width
	m.viewport.Height = height
	if m.entry != nil {
		m.viewport.SetContent(m.render())
	}
}
