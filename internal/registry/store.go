package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/mod/semver"

	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/defs"
	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/fsutil"
)

// renameFile is the final step of every registry write.
var renameFile = os.Rename

// Options configures a Store.
type Options struct {
	// Path is the registry file. The lock and backup directory live beside it.
	Path string

	// Backups is the number of backups retained.
	Backups int

	// LockWait bounds how long Update waits for another process.
	LockWait time.Duration

	// LockStale is the age after which a held lock is reclaimed.
	LockStale time.Duration

	Logger *slog.Logger
	Now    func() time.Time
}

// Store reads and writes the registry file.
type Store struct {
	path      string
	backupDir string
	retain    int
	lock      *locker
	logger    *slog.Logger
	now       func() time.Time
}

// NewStore creates a Store for opts.Path.
func NewStore(opts Options) *Store {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Backups < 1 {
		opts.Backups = 10
	}
	if opts.LockWait <= 0 {
		opts.LockWait = 5 * time.Second
	}
	if opts.LockStale <= 0 {
		opts.LockStale = 30 * time.Second
	}

	dir := filepath.Dir(opts.Path)
	return &Store{
		path:      opts.Path,
		backupDir: filepath.Join(dir, defs.BackupsDir),
		retain:    opts.Backups,
		logger:    opts.Logger,
		now:       opts.Now,
		lock: &locker{
			path:   filepath.Join(dir, defs.RegistryLock),
			wait:   opts.LockWait,
			stale:  opts.LockStale,
			now:    opts.Now,
			logger: opts.Logger,
		},
	}
}

// Path returns the registry file location.
func (s *Store) Path() string {
	return s.path
}

// BackupDir returns the directory holding registry backups.
func (s *Store) BackupDir() string {
	return s.backupDir
}

// Load reads the registry. A missing file yields an empty registry. An
// unparseable file is replaced by the newest parseable backup, keeping the
// corrupt file aside; with no usable backup a *CorruptError is returned and
// nothing on disk is changed.
func (s *Store) Load() (*Registry, error) {
	return s.load(false)
}

// load reads the registry. locked reports whether the caller already holds
// the registry lock; without it, a backup recovery takes the lock before
// writing.
func (s *Store) load(locked bool) (*Registry, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}

	reg, parseErr := s.decode(data)
	if parseErr == nil {
		return reg, nil
	}
	if errors.Is(parseErr, ErrUnsupportedVersion) {
		return nil, parseErr
	}

	if !locked {
		return s.recoverLocked(parseErr)
	}
	s.logger.Warn("registry file is corrupt, trying backups", "path", s.path, "error", parseErr)
	if reg, ok := s.recover(data); ok {
		return reg, nil
	}
	return nil, &CorruptError{Path: s.path, BackupDir: s.backupDir, Err: parseErr}
}

// recoverLocked repeats the load under the registry lock, so the restore
// write cannot interleave with an Update. If the lock is busy the registry
// is left for the lock holder, whose own load recovers it.
func (s *Store) recoverLocked(parseErr error) (*Registry, error) {
	lock, err := s.lock.acquire(context.Background())
	if err != nil {
		s.logger.Warn("registry file is corrupt and the lock is busy", "path", s.path, "error", err)
		return nil, &CorruptError{Path: s.path, BackupDir: s.backupDir, Err: parseErr}
	}
	defer func() {
		if relErr := lock.Release(); relErr != nil {
			s.logger.Warn("failed to release registry lock", "error", relErr)
		}
	}()
	return s.load(true)
}

// recover restores the newest parseable backup over the corrupt file.
func (s *Store) recover(corrupt []byte) (*Registry, bool) {
	backups, err := s.Backups()
	if err != nil {
		return nil, false
	}

	for _, b := range backups {
		data, err := os.ReadFile(b.Path)
		if err != nil {
			continue
		}
		reg, err := s.decode(data)
		if err != nil {
			continue
		}

		aside := s.path + defs.CorruptSuffix + s.now().UTC().Format(backupTimeLayout)
		if err := fsutil.WriteAtomic(aside, corrupt, 0o600); err != nil {
			s.logger.Warn("failed to preserve corrupt registry", "path", aside, "error", err)
			return nil, false
		}
		if err := fsutil.WriteAtomicWith(s.path, data, 0o644, renameFile); err != nil {
			s.logger.Warn("failed to restore registry backup", "backup", b.Name, "error", err)
			return nil, false
		}
		s.logger.Warn("registry restored from backup",
			"backup", b.Name,
			"corrupt_copy", aside,
		)
		return reg, true
	}
	return nil, false
}

func (s *Store) decode(data []byte) (*Registry, error) {
	reg := New()
	if err := json.Unmarshal(data, reg); err != nil {
		return nil, err
	}

	if reg.Version == "" {
		reg.Version = CurrentVersion
	}
	v := "v" + reg.Version
	if !semver.IsValid(v) {
		return nil, fmt.Errorf("invalid registry version %q", reg.Version)
	}
	if semver.Compare(semver.Major(v), semver.Major("v"+CurrentVersion)) > 0 {
		return nil, fmt.Errorf("%w: %s (supported: %s)", ErrUnsupportedVersion, reg.Version, CurrentVersion)
	}

	if reg.ActiveProject != "" {
		if _, ok := reg.Projects[reg.ActiveProject]; !ok {
			s.logger.Warn("active project has no registry entry, clearing", "active_project", reg.ActiveProject)
			reg.ActiveProject = ""
		}
	}
	return reg, nil
}

// Save backs up the current file and atomically replaces it with reg.
func (s *Store) Save(reg *Registry) error {
	if reg.ActiveProject != "" {
		if _, ok := reg.Projects[reg.ActiveProject]; !ok {
			return fmt.Errorf("save registry: active project %q: %w", reg.ActiveProject, ErrNotFound)
		}
	}
	// A file written by a newer minor release keeps its version.
	if reg.Version == "" || semver.Compare("v"+reg.Version, "v"+CurrentVersion) < 0 {
		reg.Version = CurrentVersion
	}

	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal registry: %w", err)
	}

	if err := s.backup(); err != nil {
		return err
	}

	if err := fsutil.WriteAtomicWith(s.path, append(data, '\n'), 0o644, renameFile); err != nil {
		return fmt.Errorf("save registry: %w", err)
	}
	return nil
}

// Update runs fn against the current registry under the advisory lock and
// saves the result when fn succeeds. Nothing is written when fn fails.
func (s *Store) Update(ctx context.Context, fn func(*Registry) error) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create registry directory: %w", err)
	}

	lock, err := s.lock.acquire(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if relErr := lock.Release(); relErr != nil {
			s.logger.Warn("failed to release registry lock", "error", relErr)
		}
	}()

	reg, err := s.load(true)
	if err != nil {
		return err
	}
	if err := fn(reg); err != nil {
		return err
	}
	return s.Save(reg)
}

// Get loads the registry and returns the named record.
func (s *Store) Get(name string) (*ProjectRecord, error) {
	reg, err := s.Load()
	if err != nil {
		return nil, err
	}
	return reg.Get(name)
}

// Restore replaces the registry with the named backup. The current file is
// itself backed up first.
func (s *Store) Restore(ctx context.Context, name string) error {
	b, err := s.findBackup(name)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(b.Path)
	if err != nil {
		return fmt.Errorf("read backup: %w", err)
	}
	if _, err := s.decode(data); err != nil {
		return fmt.Errorf("backup %s is not a valid registry: %w", name, err)
	}

	lock, err := s.lock.acquire(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = lock.Release() }()

	if err := s.backup(); err != nil {
		return err
	}
	if err := fsutil.WriteAtomicWith(s.path, data, 0o644, renameFile); err != nil {
		return fmt.Errorf("restore registry: %w", err)
	}
	s.logger.Info("registry restored", "backup", name)
	return nil
}
