package system

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/julianstephens/dayjot/internal/cli"
	"github.com/julianstephens/dayjot/internal/tui"
)

type TuiCmd struct{}

func (c *TuiCmd) Run(ctx *cli.Context) error {
	ctx.PerformAutomaticBackup()

	m := tui.NewModel(tui.Deps{
		Ctx:       ctx.Ctx(),
		Journal:   ctx.Journal,
		Index:     ctx.Index,
		Reminders: ctx.Reminders,
		User:      ctx.User,
		Location:  ctx.Location,
	})
	if _, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx.Ctx())).Run(); err != nil {
		return fmt.Errorf("tui exited: %w", err)
	}
	return nil
}
