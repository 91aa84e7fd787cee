package entrylist

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/julianstephens/dayjot/internal/models"
)

// OpenEntryMsg asks the parent to show an entry in full.
type OpenEntryMsg struct {
	Entry models.Entry
}

type Item struct {
	Entry models.Entry
	loc   *time.Location
}

func (i Item) Title() string {
	line, _, _ := strings.Cut(strings.TrimSpace(i.Entry.Text), "\n")
	if line == "" {
		switch {
		case i.Entry.Mood != "":
			line = "feeling " + string(i.Entry.Mood)
		case len(i.Entry.MediaRefs) > 0:
			line = fmt.Sprintf("%d attachment(s)", len(i.Entry.MediaRefs))
		}
	}
	return line
}

func (i Item) Description() string {
	parts := []string{i.Entry.CreatedAt.In(i.loc).Format("Mon Jan 2 2006 15:04")}
	if i.Entry.Mood != "" {
		parts = append(parts, string(i.Entry.Mood))
	}
	if i.Entry.Rating != nil {
		parts = append(parts, fmt.Sprintf("%d/%d", *i.Entry.Rating, models.MaxRating))
	}
	if len(i.Entry.Tags) > 0 {
		parts = append(parts, "#"+strings.Join(i.Entry.Tags, " #"))
	}
	return strings.Join(parts, " | ")
}

func (i Item) FilterValue() string { return i.Entry.Text }

type KeyMap struct {
	Open key.Binding
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Open: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "open"),
		),
	}
}

type Model struct {
	list  list.Model
	keys  KeyMap
	loc   *time.Location
	empty string
}

func New(entries []models.Entry, loc *time.Location, empty string, width, height int) Model {
	if loc == nil {
		loc = time.UTC
	}
	l := list.New(items(entries, loc), list.NewDefaultDelegate(), width, height)
	l.SetShowTitle(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.SetShowStatusBar(false)

	keys := DefaultKeyMap()
	l.AdditionalShortHelpKeys = func() []key.Binding { return []key.Binding{keys.Open} }
	return Model{list: l, keys: keys, loc: loc, empty: empty}
}

func items(entries []models.Entry, loc *time.Location) []list.Item {
	out := make([]list.Item, len(entries))
	for i, e := range entries {
		out[i] = Item{Entry: e, loc: loc}
	}
	return out
}

func (m *Model) SetEntries(entries []models.Entry) {
	m.list.SetItems(items(entries, m.loc))
	m.list.ResetSelected()
}

func (m *Model) SetEmptyText(s string) { m.empty = s }

func (m Model) Len() int { return len(m.list.Items()) }

// Selected returns the highlighted entry.
func (m Model) Selected() (models.Entry, bool) {
	i, ok := m.list.SelectedItem().(Item)
	return i.Entry, ok
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && key.Matches(msg, m.keys.Open) {
		if e, ok := m.Selected(); ok {
			return m, func() tea.Msg { return OpenEntryMsg{Entry: e} }
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if len(m.list.Items()) == 0 {
		return "\n  " + m.empty
	}
	return m.list.View()
}

func (m *Model) SetSize(width, height int) {
	m.list.SetSize(width, height)
}
