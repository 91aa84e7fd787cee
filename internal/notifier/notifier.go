// Package notifier delivers reminder notifications to the outside world.
package notifier

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	json "github.com/goccy/go-json"

	"github.com/julianstephens/dayjot/internal/constants"
	"github.com/julianstephens/dayjot/internal/logger"
)

// Notification is one fired reminder occurrence.
type Notification struct {
	UserID     string    `json:"user_id"`
	ReminderID string    `json:"reminder_id"`
	Label      string    `json:"label,omitempty"`
	FireTime   time.Time `json:"fire_time"`
}

// Text is the human readable message for the notification.
func (n Notification) Text() string {
	if n.Label != "" {
		return n.Label
	}
	return "Time to write in your journal"
}

// Sender delivers a notification. Implementations must honor ctx cancellation;
// the scheduler bounds each call with a deadline.
type Sender interface {
	Send(ctx context.Context, n Notification) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, n Notification) error

func (f SenderFunc) Send(ctx context.Context, n Notification) error { return f(ctx, n) }

// LogSender writes notifications to the application log. It is the fallback
// when no webhook or tray app is configured.
type LogSender struct{}

func (LogSender) Send(_ context.Context, n Notification) error {
	logger.Info("Reminder fired",
		"user", n.UserID,
		"reminder", n.ReminderID,
		"fire_time", n.FireTime.UTC().Format(time.RFC3339),
		"text", n.Text())
	return nil
}

// postJSON sends payload to url and treats any 2xx response as delivered.
func postJSON(ctx context.Context, client *http.Client, url, secret string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set(constants.WebhookSecretHeader, secret)
	}

	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode >= 200 && res.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, res.Body)
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
	return fmt.Errorf("notification failed with status %d: %s", res.StatusCode, string(body))
}
