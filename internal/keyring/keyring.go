// Package keyring stores dayjot secrets in the OS keyring: the database
// connection string and the webhook shared secret.
package keyring

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"

	"github.com/julianstephens/dayjot/internal/constants"
)

const (
	connectionAccount = constants.DefaultKeyringUser
	webhookAccount    = "webhook-secret"
	probeAccount      = "test-availability"
)

var (
	ErrNotFound           = errors.New("credentials not found in keyring")
	ErrKeyringUnavailable = errors.New("OS keyring is not available")
)

func get(account string) (string, error) {
	v, err := keyring.Get(constants.AppName, account)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrKeyringUnavailable, err)
	}
	return v, nil
}

func set(account, what, value string) error {
	if value == "" {
		return fmt.Errorf("%s cannot be empty", what)
	}
	if err := keyring.Set(constants.AppName, account, value); err != nil {
		return fmt.Errorf("failed to store %s in keyring: %w", what, err)
	}
	return nil
}

func del(account, what string) error {
	err := keyring.Delete(constants.AppName, account)
	if errors.Is(err, keyring.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete %s from keyring: %w", what, err)
	}
	return nil
}

// GetConnectionString returns ErrNotFound if nothing is stored.
func GetConnectionString() (string, error) { return get(connectionAccount) }

func SetConnectionString(connStr string) error {
	return set(connectionAccount, "connection string", connStr)
}

func DeleteConnectionString() error { return del(connectionAccount, "connection string") }

// GetWebhookSecret returns the secret sent with webhook reminders.
func GetWebhookSecret() (string, error) { return get(webhookAccount) }

func SetWebhookSecret(secret string) error {
	return set(webhookAccount, "webhook secret", secret)
}

func DeleteWebhookSecret() error { return del(webhookAccount, "webhook secret") }

// IsAvailable is a best-effort probe: a read that fails with anything other
// than "not found" means there is no usable keyring.
func IsAvailable() bool {
	_, err := keyring.Get(constants.AppName, probeAccount)
	return err == nil || errors.Is(err, keyring.ErrNotFound)
}
