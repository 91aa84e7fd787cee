package system

import (
	"github.com/julianstephens/dayjot/internal/cli"
	"github.com/julianstephens/dayjot/internal/index"
)

// ReindexCmd rebuilds index keys from the stored entries and reports drift.
type ReindexCmd struct {
	All  bool `help:"Rebuild every user, not just --user."`
	JSON bool `help:"Print the rebuild reports as JSON."`
}

func (c *ReindexCmd) Run(ctx *cli.Context) error {
	var reports []index.RebuildReport
	if c.All {
		all, err := ctx.Index.RebuildAll(ctx.Ctx())
		reports = all
		if err != nil {
			c.print(ctx, reports)
			return err
		}
	} else {
		r, err := ctx.Index.Rebuild(ctx.Ctx(), ctx.User)
		if err != nil {
			return err
		}
		reports = append(reports, r)
	}
	if c.JSON {
		return ctx.PrintJSON(reports)
	}
	c.print(ctx, reports)
	return nil
}

func (c *ReindexCmd) print(ctx *cli.Context, reports []index.RebuildReport) {
	drifted := 0
	for _, r := range reports {
		status := "in sync"
		if r.Drift() {
			status = "repaired"
			drifted++
		}
		ctx.Printf("%-24s %5d entries  +%d -%d keys  %s\n", r.UserID, r.Entries, r.Added, r.Removed, status)
	}
	ctx.Printf("✓ Rebuilt %d user(s), %d had drifted\n", len(reports), drifted)
}
