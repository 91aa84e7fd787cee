package system

import (
	"errors"
	"fmt"
	"strings"

	"github.com/julianstephens/dayjot/internal/cli"
	"github.com/julianstephens/dayjot/internal/keyring"
	"github.com/julianstephens/dayjot/internal/storage/postgres"
)

type KeyringCmd struct {
	Set     KeyringSetCmd     `cmd:"" help:"Store the PostgreSQL connection string."`
	Get     KeyringGetCmd     `cmd:"" help:"Show the stored connection string with the password masked."`
	Delete  KeyringDeleteCmd  `cmd:"" help:"Remove the stored connection string."`
	Status  KeyringStatusCmd  `cmd:"" help:"Check keyring availability." default:"1"`
	Webhook KeyringWebhookCmd `cmd:"" help:"Manage the reminder webhook secret."`
}

// KeyringSetCmd stores database connection credentials in the OS keyring
type KeyringSetCmd struct {
	ConnectionString string `arg:"" help:"PostgreSQL connection string to store in keyring"`
}

func (cmd *KeyringSetCmd) Run(ctx *cli.Context) error {
	if !postgres.IsConnString(cmd.ConnectionString) && !strings.Contains(cmd.ConnectionString, "host=") {
		return errors.New("connection string must be a valid PostgreSQL connection string")
	}

	if _, err := postgres.ValidateConnString(cmd.ConnectionString); err != nil {
		if !errors.Is(err, postgres.ErrEmbeddedCredentials) {
			return fmt.Errorf("invalid connection string: %w", err)
		}
		// the keyring is the intended home for a password-bearing string
		ctx.Println("Note: the connection string contains a password; it is stored encrypted in the OS keyring.")
	}

	if err := keyring.SetConnectionString(cmd.ConnectionString); err != nil {
		return fmt.Errorf("failed to store connection string in keyring: %w", err)
	}
	ctx.Println("✓ Connection string stored in OS keyring")
	ctx.Println("  dayjot uses it whenever --config is left at its default")
	return nil
}

type KeyringGetCmd struct{}

func (cmd *KeyringGetCmd) Run(ctx *cli.Context) error {
	connStr, err := keyring.GetConnectionString()
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return errors.New("no connection string found in keyring. Use 'dayjot keyring set' to store one")
		}
		return fmt.Errorf("failed to retrieve connection string from keyring: %w", err)
	}
	ctx.Println(MaskPassword(connStr))
	return nil
}

type KeyringDeleteCmd struct{}

func (cmd *KeyringDeleteCmd) Run(ctx *cli.Context) error {
	if err := keyring.DeleteConnectionString(); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return errors.New("no connection string found in keyring")
		}
		return fmt.Errorf("failed to delete connection string from keyring: %w", err)
	}
	ctx.Println("✓ Connection string deleted from OS keyring")
	return nil
}

type KeyringStatusCmd struct{}

func (cmd *KeyringStatusCmd) Run(ctx *cli.Context) error {
	if !keyring.IsAvailable() {
		ctx.Println("❌ OS keyring is not available on this system")
		return keyring.ErrKeyringUnavailable
	}
	ctx.Println("✓ OS keyring is available")
	report := func(what string, err error) {
		switch {
		case err == nil:
			ctx.Printf("✓ %s is stored\n", what)
		case errors.Is(err, keyring.ErrNotFound):
			ctx.Printf("ℹ No %s stored\n", strings.ToLower(what))
		default:
			ctx.Printf("⚠ %s: %v\n", what, err)
		}
	}
	_, err := keyring.GetConnectionString()
	report("Connection string", err)
	_, err = keyring.GetWebhookSecret()
	report("Webhook secret", err)
	return nil
}

type KeyringWebhookCmd struct {
	Set    KeyringWebhookSetCmd    `cmd:"" help:"Store the shared secret sent with webhook notifications."`
	Delete KeyringWebhookDeleteCmd `cmd:"" help:"Remove the webhook secret."`
}

type KeyringWebhookSetCmd struct {
	Secret string `arg:"" help:"Shared secret."`
}

func (cmd *KeyringWebhookSetCmd) Run(ctx *cli.Context) error {
	if strings.TrimSpace(cmd.Secret) == "" {
		return errors.New("secret must not be empty")
	}
	if err := keyring.SetWebhookSecret(cmd.Secret); err != nil {
		return fmt.Errorf("failed to store webhook secret: %w", err)
	}
	ctx.Println("✓ Webhook secret stored in OS keyring")
	return nil
}

type KeyringWebhookDeleteCmd struct{}

func (cmd *KeyringWebhookDeleteCmd) Run(ctx *cli.Context) error {
	if err := keyring.DeleteWebhookSecret(); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return errors.New("no webhook secret found in keyring")
		}
		return fmt.Errorf("failed to delete webhook secret: %w", err)
	}
	ctx.Println("✓ Webhook secret deleted from OS keyring")
	return nil
}

// MaskPassword hides the password in URL and key=value connection strings.
func MaskPassword(connStr string) string {
	if postgres.IsConnString(connStr) {
		scheme, rest, _ := strings.Cut(connStr, "://")
		if at := strings.LastIndex(rest, "@"); at != -1 {
			if user, _, hasPass := strings.Cut(rest[:at], ":"); hasPass {
				return scheme + "://" + user + ":****" + rest[at:]
			}
		}
		return connStr
	}
	if !strings.Contains(connStr, "password=") {
		return connStr
	}
	fields := strings.Fields(connStr)
	for i, f := range fields {
		if strings.HasPrefix(f, "password=") {
			fields[i] = "password=****"
		}
	}
	return strings.Join(fields, " ")
}
