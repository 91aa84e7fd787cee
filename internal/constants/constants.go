package constants

import "time"

const (
	AppName            = "dayjot"
	DefaultKeyringUser = "database-connection"
	DefaultConfigPath  = "~/.config/dayjot/dayjot.db"
	Version            = "v0.1.0"

	// ConnectionEnvVar may hold a PostgreSQL connection string, including its password.
	ConnectionEnvVar = "DAYJOT_DB_CONNECTION"

	// DateFormat is the standard date format used throughout the application (YYYY-MM-DD)
	DateFormat = "2006-01-02"

	// TimeFormat is the standard time format used throughout the application (HH:MM)
	TimeFormat = "15:04"

	// TimestampFormat is the fixed-width UTC layout used for stored timestamps so that
	// lexical order matches chronological order in both SQL dialects.
	TimestampFormat = "2006-01-02T15:04:05.000000000Z"

	// Backup constants
	MaxBackups       = 14
	BackupDirName    = "backups"
	BackupFilePrefix = "dayjot-"
	BackupFileSuffix = ".db"

	// Journal constants
	DefaultRecentLimit = 10
	ExportPageSize     = 100
	StatsPageSize      = 500

	// Storage retry constants
	StorageMaxRetries     = 3
	StorageRetryInitial   = 50 * time.Millisecond
	StorageRetryMaxWait   = time.Second
	StorageRetryMaxElapse = 5 * time.Second

	// Index worker constants
	IndexWorkerInterval = 5 * time.Second
	IndexEventBatch     = 200

	// Reminder constants
	DefaultPollInterval    = time.Minute
	DefaultSendTimeout     = 10 * time.Second
	DefaultTickBatch       = 500
	DefaultTickConcurrency = 16
	DefaultTimezone        = "UTC"

	// Notify constants
	NotifierLockfileName   = "dayjot-notifier.lock"
	NotificationDurationMs = 5000
	TrayAppIdentifier      = "com.julianstephens.dayjot"
	TrayProcessPrefix      = "dayjot-tray"
	WebhookSecretHeader    = "X-Dayjot-Secret"
)
