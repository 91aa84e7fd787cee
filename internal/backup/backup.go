// Package backup keeps rotating snapshots of a SQLite journal database.
package backup

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"time"

	_ "modernc.org/sqlite"

	"github.com/julianstephens/dayjot/internal/constants"
	"github.com/julianstephens/dayjot/internal/logger"
)

const stampLayout = "20060102-150405"

var namePattern = regexp.MustCompile(`^` + regexp.QuoteMeta(constants.BackupFilePrefix) +
	`(\d{8}-\d{6})(?:-(\d+))?` + regexp.QuoteMeta(constants.BackupFileSuffix) + `$`)

// Info describes one snapshot on disk.
type Info struct {
	Path      string    `json:"path"`
	Timestamp time.Time `json:"timestamp"`
	Seq       int       `json:"-"`
	Size      int64     `json:"size"`
}

type Manager struct {
	dbPath    string
	backupDir string
	keep      int
	now       func() time.Time
}

type Option func(*Manager)

// WithRetention sets how many snapshots survive rotation.
func WithRetention(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.keep = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager stores snapshots in a directory next to dbPath.
func NewManager(dbPath string, opts ...Option) *Manager {
	m := &Manager{
		dbPath:    dbPath,
		backupDir: filepath.Join(filepath.Dir(dbPath), constants.BackupDirName),
		keep:      constants.MaxBackups,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) Dir() string { return m.backupDir }

// Create snapshots the database and prunes snapshots beyond the retention
// limit. A failed prune is logged, not returned.
func (m *Manager) Create(ctx context.Context) (Info, error) {
	info, err := m.create(ctx)
	if err != nil {
		return Info{}, err
	}
	if err := m.rotate(); err != nil {
		logger.Warn("Failed to rotate backups", "dir", m.backupDir, "error", err)
	}
	return info, nil
}

func (m *Manager) create(ctx context.Context) (Info, error) {
	if _, err := os.Stat(m.dbPath); err != nil {
		return Info{}, fmt.Errorf("database not found at %s: %w", m.dbPath, err)
	}
	if err := os.MkdirAll(m.backupDir, 0o700); err != nil {
		return Info{}, fmt.Errorf("failed to create backup directory: %w", err)
	}

	stamp := m.now().UTC()
	path, seq, err := m.freeName(stamp)
	if err != nil {
		return Info{}, err
	}
	if err := snapshot(ctx, m.dbPath, path); err != nil {
		return Info{}, fmt.Errorf("failed to snapshot database: %w", err)
	}
	fi, err := os.Stat(path)
	if err != nil {
		return Info{}, err
	}
	logger.Info("Created backup", "path", path, "bytes", fi.Size())
	return Info{Path: path, Timestamp: stamp.Truncate(time.Second), Seq: seq, Size: fi.Size()}, nil
}

// freeName picks the first unused name for stamp, adding a counter when
// several snapshots land in the same second.
func (m *Manager) freeName(stamp time.Time) (string, int, error) {
	base := constants.BackupFilePrefix + stamp.Format(stampLayout)
	for seq := 0; seq < 100; seq++ {
		name := base + constants.BackupFileSuffix
		if seq > 0 {
			name = fmt.Sprintf("%s-%d%s", base, seq, constants.BackupFileSuffix)
		}
		path := filepath.Join(m.backupDir, name)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path, seq, nil
		}
	}
	return "", 0, fmt.Errorf("no free backup name for %s", base)
}

// snapshot writes a consistent copy with VACUUM INTO, which is safe while
// other connections hold the database in WAL mode.
func snapshot(ctx context.Context, src, dst string) error {
	db, err := sql.Open("sqlite", "file:"+src+"?mode=ro")
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, "VACUUM INTO ?", dst)
	return err
}

// List returns snapshots newest first. Files that do not follow the naming
// scheme are ignored.
func (m *Manager) List() ([]Info, error) {
	entries, err := os.ReadDir(m.backupDir)
	if os.IsNotExist(err) {
		return []Info{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	out := []Info{}
	for _, de := range entries {
		if de.IsDir() {
			continue
		}
		match := namePattern.FindStringSubmatch(de.Name())
		if match == nil {
			continue
		}
		stamp, err := time.ParseInLocation(stampLayout, match[1], time.UTC)
		if err != nil {
			continue
		}
		seq := 0
		if match[2] != "" {
			seq, _ = strconv.Atoi(match[2])
		}
		fi, err := de.Info()
		if err != nil {
			continue
		}
		out = append(out, Info{
			Path:      filepath.Join(m.backupDir, de.Name()),
			Timestamp: stamp,
			Seq:       seq,
			Size:      fi.Size(),
		})
	}
	slices.SortFunc(out, func(a, b Info) int {
		if c := b.Timestamp.Compare(a.Timestamp); c != 0 {
			return c
		}
		return b.Seq - a.Seq
	})
	return out, nil
}

// Latest returns the newest snapshot, or false when there is none.
func (m *Manager) Latest() (Info, bool, error) {
	all, err := m.List()
	if err != nil || len(all) == 0 {
		return Info{}, false, err
	}
	return all[0], true, nil
}

func (m *Manager) rotate() error {
	all, err := m.List()
	if err != nil {
		return err
	}
	if len(all) <= m.keep {
		return nil
	}
	for _, old := range all[m.keep:] {
		if err := os.Remove(old.Path); err != nil {
			return fmt.Errorf("failed to remove %s: %w", old.Path, err)
		}
		logger.Debug("Removed old backup", "path", old.Path)
	}
	return nil
}

// Restore replaces the database with the snapshot at path. The current
// database is snapshotted first, outside rotation, so a bad restore can be
// undone. The store must be closed while this runs.
func (m *Manager) Restore(ctx context.Context, path string) (Info, error) {
	if err := Verify(ctx, path); err != nil {
		return Info{}, fmt.Errorf("backup %s is not usable: %w", path, err)
	}

	var previous Info
	if _, err := os.Stat(m.dbPath); err == nil {
		previous, err = m.create(ctx)
		if err != nil {
			return Info{}, fmt.Errorf("failed to save current database before restore: %w", err)
		}
	}

	tmp := m.dbPath + ".restore.tmp"
	if err := copyFile(path, tmp); err != nil {
		os.Remove(tmp)
		return Info{}, fmt.Errorf("failed to stage backup: %w", err)
	}
	// stale WAL frames from the old database would be replayed onto the new one
	for _, suffix := range []string{"-wal", "-shm"} {
		if err := os.Remove(m.dbPath + suffix); err != nil && !os.IsNotExist(err) {
			os.Remove(tmp)
			return Info{}, fmt.Errorf("failed to clear %s: %w", suffix, err)
		}
	}
	if err := os.Rename(tmp, m.dbPath); err != nil {
		os.Remove(tmp)
		return Info{}, fmt.Errorf("failed to restore database: %w", err)
	}
	logger.Info("Restored database", "from", path, "previous", previous.Path)
	return previous, nil
}

// Verify checks that path is a SQLite database carrying a dayjot schema.
func Verify(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return err
	}
	defer db.Close()

	var version int
	if err := db.QueryRowContext(ctx, "SELECT version FROM schema_version").Scan(&version); err != nil {
		return fmt.Errorf("no schema version: %w", err)
	}
	if version < 1 {
		return fmt.Errorf("schema version %d is not initialized", version)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
