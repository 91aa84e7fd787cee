package system

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/julianstephens/dayjot/internal/cli"
	"github.com/julianstephens/dayjot/internal/index"
	"github.com/julianstephens/dayjot/internal/logger"
)

// RunCmd keeps the reminder scheduler and the index worker alive until the
// process is interrupted.
type RunCmd struct {
	NoBackup bool `help:"Skip the automatic backup taken at startup."`
}

func (c *RunCmd) Run(ctx *cli.Context) error {
	if !c.NoBackup {
		ctx.PerformAutomaticBackup()
	}

	// heal anything left pending by a previous crash before serving
	if err := ctx.Index.DrainAll(ctx.Ctx()); err != nil {
		logger.Warn("Initial index drain failed", "error", err)
	}

	logger.Info("dayjot running", "store", ctx.Store.GetConfigPath())
	g, gctx := errgroup.WithContext(ctx.Ctx())
	g.Go(func() error {
		return ctx.Reminders.Run(gctx)
	})
	g.Go(func() error {
		return index.NewWorker(ctx.Index, ctx.IndexInterval).Run(gctx)
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		logger.Info("dayjot stopped")
		return nil
	}
	return err
}
