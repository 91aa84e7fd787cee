package entries

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/julianstephens/dayjot/internal/cli"
	"github.com/julianstephens/dayjot/internal/export"
)

type ExportCmd struct {
	Keywords    []string `arg:"" optional:"" help:"Only entries containing all of these words."`
	FilterFlags `embed:""`
	Output      string `help:"Write JSON lines to this file instead of stdout." short:"o" type:"path"`
}

func (c *ExportCmd) Run(ctx *cli.Context) error {
	mood, from, to, err := c.resolve(ctx.Now(), ctx.Location)
	if err != nil {
		return err
	}
	f := export.Filter{Keywords: c.Keywords, Mood: mood, Tag: c.Tag, From: from, To: to}

	var w io.Writer = ctx.Out
	if c.Output != "" {
		if err := os.MkdirAll(filepath.Dir(c.Output), 0o700); err != nil {
			return err
		}
		file, err := os.OpenFile(c.Output, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", c.Output, err)
		}
		defer file.Close()
		w = file
	}

	n, err := export.WriteJSONLines(w, ctx.Exporter.Export(ctx.Ctx(), ctx.User, f))
	if err != nil {
		return fmt.Errorf("export stopped after %d entries: %w", n, err)
	}
	if c.Output != "" {
		ctx.Printf("✓ Exported %d entries to %s\n", n, c.Output)
	}
	return nil
}
