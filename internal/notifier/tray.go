package notifier

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/mitchellh/go-ps"

	"github.com/julianstephens/dayjot/internal/constants"
)

var (
	userConfigDirFunc = os.UserConfigDir
	findProcessFunc   = ps.FindProcess
)

type trayPayload struct {
	Text       string `json:"text"`
	DurationMs uint32 `json:"duration_ms"`
}

// TraySender hands notifications to the desktop tray app, discovered through
// the lockfile it writes on startup ("port|pid|secret").
type TraySender struct {
	client *http.Client
}

func NewTraySender() *TraySender {
	return &TraySender{client: &http.Client{}}
}

func (t *TraySender) Send(ctx context.Context, n Notification) error {
	dir, err := TrayConfigDir()
	if err != nil {
		return err
	}

	port, secret, err := readLockfile(filepath.Join(dir, constants.NotifierLockfileName))
	if err != nil {
		return err
	}

	payload := trayPayload{Text: n.Text(), DurationMs: constants.NotificationDurationMs}
	return postJSON(ctx, t.client, fmt.Sprintf("http://127.0.0.1:%d", port), secret, payload)
}

// Available reports whether a tray app is running and reachable.
func (t *TraySender) Available() bool {
	dir, err := TrayConfigDir()
	if err != nil {
		return false
	}
	_, _, err = readLockfile(filepath.Join(dir, constants.NotifierLockfileName))
	return err == nil
}

// TrayConfigDir returns the tray app's config directory, honoring a custom
// lockfile_dir from its settings.json.
func TrayConfigDir() (string, error) {
	configDir, err := userConfigDirFunc()
	if err != nil {
		return "", fmt.Errorf("failed to get user config dir: %w", err)
	}
	trayDir := filepath.Join(configDir, constants.TrayAppIdentifier)

	data, err := os.ReadFile(filepath.Join(trayDir, "settings.json"))
	if err != nil {
		return trayDir, nil
	}
	var store struct {
		Settings struct {
			LockfileDir *string `json:"lockfile_dir"`
		} `json:"settings"`
	}
	if err := json.Unmarshal(data, &store); err == nil && store.Settings.LockfileDir != nil && *store.Settings.LockfileDir != "" {
		return *store.Settings.LockfileDir, nil
	}
	return trayDir, nil
}

func readLockfile(path string) (int, string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return 0, "", fmt.Errorf("%s is not running", constants.TrayProcessPrefix)
	}

	parts := strings.Split(strings.TrimSpace(string(content)), "|")
	if len(parts) != 3 {
		return 0, "", errors.New("lockfile is malformed")
	}

	port, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, "", errors.New("invalid port number in lockfile")
	}
	if port < 1 || port > 65535 {
		return 0, "", fmt.Errorf("port number %d is outside valid range (1-65535)", port)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, "", errors.New("invalid process ID in lockfile")
	}

	secret := strings.TrimSpace(parts[2])
	if secret == "" {
		return 0, "", errors.New("secret in lockfile is empty")
	}

	process, err := findProcessFunc(pid)
	if err != nil || process == nil {
		return 0, "", fmt.Errorf("%s process not running", constants.TrayProcessPrefix)
	}
	if !strings.HasPrefix(process.Executable(), constants.TrayProcessPrefix) {
		return 0, "", fmt.Errorf("process with PID %d is not %s (is %s)", pid, constants.TrayProcessPrefix, process.Executable())
	}

	return port, secret, nil
}
