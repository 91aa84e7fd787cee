package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/julianstephens/dayjot/internal/cli"
	"github.com/julianstephens/dayjot/internal/cli/backups"
	"github.com/julianstephens/dayjot/internal/cli/entries"
	"github.com/julianstephens/dayjot/internal/cli/reminders"
	"github.com/julianstephens/dayjot/internal/cli/system"
	"github.com/julianstephens/dayjot/internal/constants"
	jerrors "github.com/julianstephens/dayjot/internal/errors"
	"github.com/julianstephens/dayjot/internal/keyring"
	"github.com/julianstephens/dayjot/internal/logger"
	"github.com/julianstephens/dayjot/internal/notifier"
	"github.com/julianstephens/dayjot/internal/reminder"
	"github.com/julianstephens/dayjot/internal/storage"
	"github.com/julianstephens/dayjot/internal/storage/postgres"
	"github.com/julianstephens/dayjot/internal/storage/sqlite"
)

var CLI struct {
	Version  kong.VersionFlag
	Config   string `help:"SQLite database path or PostgreSQL connection string. PostgreSQL passwords belong in the keyring or ${conn_env}, never here." default:"${default_config}" env:"DAYJOT_CONFIG"`
	User     string `help:"User id that commands act on." default:"local" env:"DAYJOT_USER"`
	Timezone string `help:"IANA timezone used to show and parse dates." default:"${timezone}" env:"DAYJOT_TZ"`
	Debug    bool   `help:"Log debug output to stderr." env:"DAYJOT_DEBUG"`

	PollInterval    time.Duration `help:"How often the scheduler looks for due reminders." default:"1m" env:"DAYJOT_POLL_INTERVAL"`
	SendTimeout     time.Duration `help:"Upper bound on one notification send." default:"10s" env:"DAYJOT_SEND_TIMEOUT"`
	TickBatch       int           `help:"Most reminders handled per tick." default:"500" env:"DAYJOT_TICK_BATCH"`
	TickConcurrency int           `help:"Concurrent sends per tick." default:"16" env:"DAYJOT_TICK_CONCURRENCY"`
	WebhookURL      string        `help:"Deliver reminders by POSTing JSON here." env:"DAYJOT_WEBHOOK_URL"`
	WebhookSecret   string        `help:"Shared secret sent with webhook deliveries. Falls back to the keyring." env:"DAYJOT_WEBHOOK_SECRET"`

	Init    system.InitCmd    `cmd:"" help:"Initialize dayjot storage."`
	Migrate system.MigrateCmd `cmd:"" help:"Run database migrations."`
	Doctor  system.DoctorCmd  `cmd:"" help:"Run health checks."`
	Tui     system.TuiCmd     `cmd:"" help:"Browse the journal interactively." default:"1"`
	Run     system.RunCmd     `cmd:"" help:"Run the reminder scheduler and index worker until interrupted."`
	Reindex system.ReindexCmd `cmd:"" help:"Rebuild the search index from stored entries."`
	Keyring system.KeyringCmd `cmd:"" help:"Manage secrets in the OS keyring."`

	Entry struct {
		Add    entries.EntryAddCmd    `cmd:"" help:"Write a new entry."`
		Get    entries.EntryGetCmd    `cmd:"" help:"Show one entry as JSON."`
		Edit   entries.EntryEditCmd   `cmd:"" help:"Change an entry."`
		Delete entries.EntryDeleteCmd `cmd:"" help:"Delete entries."`
		List   entries.EntryListCmd   `cmd:"" help:"List the entries of one day." default:"1"`
		Recent entries.EntryRecentCmd `cmd:"" help:"List the most recent entries."`
	} `cmd:"" help:"Manage journal entries."`
	Search   entries.SearchCmd     `cmd:"" help:"Search entries by keyword, mood or tag."`
	Stats    entries.StatsCmd      `cmd:"" help:"Summarize entries over a period."`
	Export   entries.ExportCmd     `cmd:"" help:"Export entries as JSON lines."`
	Reminder reminders.ReminderCmd `cmd:"" help:"Manage reminders."`

	Backup struct {
		Create  backups.BackupCreateCmd  `cmd:"" help:"Create a manual backup." default:"1"`
		List    backups.BackupListCmd    `cmd:"" help:"List available backups."`
		Restore backups.BackupRestoreCmd `cmd:"" help:"Restore from a backup."`
	} `cmd:"" help:"Manage database backups."`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name(constants.AppName),
		kong.Description("Journal store and reminder scheduler"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Configuration(kong.JSON, "/etc/dayjot/config.json", "~/.config/dayjot/config.json"),
		kong.Vars{
			"version":        constants.Version,
			"default_config": constants.DefaultConfigPath,
			"conn_env":       constants.ConnectionEnvVar,
			"timezone":       defaultTimezone(),
		},
	)
	command := ctx.Command()

	store, err := openStore(CLI.Config)
	if err != nil {
		fmt.Fprintln(os.Stderr, jerrors.Format(err))
		os.Exit(1)
	}

	configDir := filepath.Dir(store.GetConfigPath())
	if _, ok := store.(*postgres.Store); ok {
		configDir = expandHome(filepath.Dir(constants.DefaultConfigPath))
	}
	if err := logger.Init(logger.Config{
		Debug:     CLI.Debug,
		ConfigDir: configDir,
		Stderr:    command == "run",
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize logger: %v\n", err)
	}

	loc, err := time.LoadLocation(CLI.Timezone)
	if err != nil {
		jerrors.Fatal(fmt.Errorf("invalid --timezone %q: %w", CLI.Timezone, err))
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appCtx := cli.NewContext(store, cli.Options{
		Ctx:      sigCtx,
		User:     CLI.User,
		Location: loc,
		Sender:   selectSender(),
		Reminders: reminder.Config{
			PollInterval: CLI.PollInterval,
			SendTimeout:  CLI.SendTimeout,
			BatchSize:    CLI.TickBatch,
			Concurrency:  CLI.TickConcurrency,
		},
	})

	if needsLoad(command) {
		if err := store.Load(); err != nil {
			jerrors.Fatal(err)
		}
	}
	err = ctx.Run(appCtx)
	if cerr := store.Close(); cerr != nil {
		logger.Warn("Failed to close storage", "error", cerr)
	}
	jerrors.Fatal(err)
}

// needsLoad reports whether the command expects an initialized store.
func needsLoad(command string) bool {
	name, _, _ := strings.Cut(command, " ")
	switch name {
	case "init", "migrate", "doctor", "keyring":
		return false
	}
	return true
}

// openStore picks the backend. With the default path, a connection string in
// the environment or the keyring wins over the local SQLite file; those are
// the only places a password-bearing string is accepted.
func openStore(config string) (storage.Provider, error) {
	if config == constants.DefaultConfigPath {
		if connStr := os.Getenv(constants.ConnectionEnvVar); connStr != "" {
			return postgres.New(connStr), nil
		}
		if connStr, err := keyring.GetConnectionString(); err == nil {
			return postgres.New(connStr), nil
		} else if !errors.Is(err, keyring.ErrNotFound) && !errors.Is(err, keyring.ErrKeyringUnavailable) {
			logger.Debug("Keyring lookup failed", "error", err)
		}
	}

	if postgres.IsConnString(config) || strings.Contains(config, "host=") {
		if _, err := postgres.ValidateConnString(config); err != nil {
			if errors.Is(err, postgres.ErrEmbeddedCredentials) {
				return nil, fmt.Errorf("PostgreSQL connection strings with embedded passwords are not allowed on the command line; "+
					"store it with 'dayjot keyring set' or export %s", constants.ConnectionEnvVar)
			}
			return nil, err
		}
		return postgres.New(config), nil
	}
	return sqlite.NewStore(expandHome(config)), nil
}

// selectSender prefers an explicit webhook, then a running tray app, then
// logging only.
func selectSender() notifier.Sender {
	if CLI.WebhookURL != "" {
		secret := CLI.WebhookSecret
		if secret == "" {
			if s, err := keyring.GetWebhookSecret(); err == nil {
				secret = s
			}
		}
		sender, err := notifier.NewWebhookSender(CLI.WebhookURL, secret)
		if err != nil {
			jerrors.Fatal(err)
		}
		return sender
	}
	if tray := notifier.NewTraySender(); tray.Available() {
		return tray
	}
	return notifier.LogSender{}
}

func defaultTimezone() string {
	if tz := os.Getenv("TZ"); tz != "" {
		if _, err := time.LoadLocation(tz); err == nil {
			return tz
		}
	}
	return constants.DefaultTimezone
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
