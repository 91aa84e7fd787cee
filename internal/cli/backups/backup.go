package backups

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/huh"

	"github.com/julianstephens/dayjot/internal/backup"
	"github.com/julianstephens/dayjot/internal/cli"
	"github.com/julianstephens/dayjot/internal/storage/sqlite"
)

var errNotSQLite = errors.New("backups are only supported for SQLite storage; use pg_dump for PostgreSQL")

func manager(ctx *cli.Context) (*backup.Manager, error) {
	if _, ok := ctx.Store.(*sqlite.Store); !ok {
		return nil, errNotSQLite
	}
	return backup.NewManager(ctx.Store.GetConfigPath()), nil
}

type BackupCreateCmd struct{}

func (c *BackupCreateCmd) Run(ctx *cli.Context) error {
	mgr, err := manager(ctx)
	if err != nil {
		return err
	}
	info, err := mgr.Create(ctx.Ctx())
	if err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}
	ctx.Printf("✓ Backup created: %s\n", filepath.Base(info.Path))
	return nil
}

type BackupListCmd struct{}

func (c *BackupListCmd) Run(ctx *cli.Context) error {
	mgr, err := manager(ctx)
	if err != nil {
		return err
	}
	all, err := mgr.List()
	if err != nil {
		return fmt.Errorf("failed to list backups: %w", err)
	}
	if len(all) == 0 {
		ctx.Println("No backups found.")
		ctx.Printf("Backups are stored in: %s\n", mgr.Dir())
		return nil
	}

	ctx.Printf("Available backups (%d):\n\n", len(all))
	for _, b := range all {
		ctx.Printf("  %s  %s  (%.1f KB)\n",
			b.Timestamp.Local().Format("2006-01-02 15:04:05"), filepath.Base(b.Path), float64(b.Size)/1024.0)
	}
	ctx.Printf("\nBackup directory: %s\n", mgr.Dir())
	return nil
}

type BackupRestoreCmd struct {
	BackupFile string `arg:"" optional:"" help:"Path or file name of the backup. Defaults to the newest."`
	Yes        bool   `help:"Skip the confirmation prompt." short:"y"`
}

// confirm is swapped out in tests.
var confirm = func(title string) (bool, error) {
	var ok bool
	err := huh.NewConfirm().
		Title(title).
		Description("A backup of the current database is taken first.").
		Affirmative("Restore").
		Negative("Cancel").
		Value(&ok).
		Run()
	return ok, err
}

func (c *BackupRestoreCmd) resolve(mgr *backup.Manager) (string, error) {
	if c.BackupFile == "" {
		latest, ok, err := mgr.Latest()
		if err != nil {
			return "", err
		}
		if !ok {
			return "", fmt.Errorf("no backups found in %s", mgr.Dir())
		}
		return latest.Path, nil
	}
	if !filepath.IsAbs(c.BackupFile) {
		candidate := filepath.Join(mgr.Dir(), c.BackupFile)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	if _, err := os.Stat(c.BackupFile); err != nil {
		return "", fmt.Errorf("backup file not found: %s", c.BackupFile)
	}
	return c.BackupFile, nil
}

func (c *BackupRestoreCmd) Run(ctx *cli.Context) error {
	mgr, err := manager(ctx)
	if err != nil {
		return err
	}
	path, err := c.resolve(mgr)
	if err != nil {
		return err
	}
	if err := backup.Verify(ctx.Ctx(), path); err != nil {
		return fmt.Errorf("%s is not a usable backup: %w", filepath.Base(path), err)
	}

	if !c.Yes {
		ok, err := confirm(fmt.Sprintf("Replace the current database with %s?", filepath.Base(path)))
		if err != nil {
			return err
		}
		if !ok {
			ctx.Println("Restore cancelled.")
			return nil
		}
	}

	if err := ctx.Store.Close(); err != nil {
		ctx.Printf("Warning: failed to close database connection: %v\n", err)
	}
	previous, err := mgr.Restore(ctx.Ctx(), path)
	if err != nil {
		return fmt.Errorf("restore failed: %w", err)
	}
	if previous.Path != "" {
		ctx.Printf("Saved the previous database as %s\n", filepath.Base(previous.Path))
	}
	ctx.Println("✓ Database restored. Restart any running dayjot processes.")
	return nil
}
