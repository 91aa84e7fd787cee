package entries

import (
	"github.com/julianstephens/dayjot/internal/cli"
	"github.com/julianstephens/dayjot/internal/models"
)

type EntryGetCmd struct {
	ID string `arg:"" help:"ID of the entry."`
}

func (c *EntryGetCmd) Run(ctx *cli.Context) error {
	e, err := ctx.Journal.GetEntry(ctx.Ctx(), ctx.User, c.ID)
	if err != nil {
		return err
	}
	return ctx.PrintJSON(e)
}

type EntryListCmd struct {
	Date string `arg:"" optional:"" help:"Day to list (YYYY-MM-DD, today or yesterday)." default:"today"`
	JSON bool   `help:"Print entries as JSON."`
}

func (c *EntryListCmd) Run(ctx *cli.Context) error {
	day, err := cli.ParseDay(c.Date, ctx.Now(), ctx.Location)
	if err != nil {
		return err
	}
	entries, err := ctx.Journal.ListByDate(ctx.Ctx(), ctx.User, models.DayRange(day, ctx.Location))
	if err != nil {
		return err
	}
	return printEntries(ctx, entries, c.JSON, "No entries for "+day.Format("2006-01-02")+".")
}

type EntryRecentCmd struct {
	Limit int  `help:"How many entries to show." default:"10" short:"n"`
	JSON  bool `help:"Print entries as JSON."`
}

func (c *EntryRecentCmd) Run(ctx *cli.Context) error {
	entries, err := ctx.Journal.Recent(ctx.Ctx(), ctx.User, c.Limit)
	if err != nil {
		return err
	}
	return printEntries(ctx, entries, c.JSON, "No entries yet.")
}

func printEntries(ctx *cli.Context, entries []models.Entry, asJSON bool, empty string) error {
	if asJSON {
		return ctx.PrintJSON(entries)
	}
	if len(entries) == 0 {
		ctx.Println(empty)
		return nil
	}
	for _, e := range entries {
		ctx.Println(cli.FormatEntry(e, ctx.Location))
	}
	return nil
}
