package system

import (
	"errors"
	"fmt"

	"github.com/julianstephens/dayjot/internal/backup"
	"github.com/julianstephens/dayjot/internal/cli"
	"github.com/julianstephens/dayjot/internal/keyring"
	"github.com/julianstephens/dayjot/internal/notifier"
	"github.com/julianstephens/dayjot/internal/storage/sqlite"
)

type DoctorCmd struct{}

func (cmd *DoctorCmd) Run(ctx *cli.Context) error {
	ctx.Println("Running diagnostics...")
	ctx.Println()

	failed := false
	if err := ctx.Store.Load(); err != nil {
		ctx.Println("❌ Database: FAIL")
		ctx.Printf("   %v\n", err)
		failed = true
	} else {
		ctx.Println("✓ Database reachable, schema current: OK")

		users, err := ctx.Store.UsersWithPendingEvents(ctx.Ctx())
		switch {
		case err != nil:
			ctx.Printf("❌ Index outbox: FAIL\n   %v\n", err)
			failed = true
		case len(users) > 0:
			ctx.Printf("⚠ Index outbox: %d user(s) with pending events; 'dayjot reindex --all' repairs them\n", len(users))
		default:
			ctx.Println("✓ Index outbox: empty")
		}
	}

	if _, ok := ctx.Store.(*sqlite.Store); ok {
		latest, ok, err := backup.NewManager(ctx.Store.GetConfigPath()).Latest()
		switch {
		case err != nil:
			ctx.Printf("⚠ Backups: %v\n", err)
		case !ok:
			ctx.Println("⚠ Backups: none yet; run 'dayjot backup create'")
		default:
			ctx.Printf("✓ Backups: latest %s\n", latest.Timestamp.Local().Format("2006-01-02 15:04"))
		}
	}

	if keyring.IsAvailable() {
		ctx.Println("✓ OS keyring: available")
	} else {
		ctx.Println("⚠ OS keyring: unavailable")
	}

	if notifier.NewTraySender().Available() {
		ctx.Println("✓ Tray notifier: running")
	} else {
		ctx.Println("ℹ Tray notifier: not running")
	}

	ctx.Println()
	if failed {
		return errors.New("one or more checks failed")
	}
	ctx.Println(fmt.Sprintf("All checks passed for %s", ctx.Store.GetConfigPath()))
	return nil
}
