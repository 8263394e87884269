package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/fsutil"
)

const (
	backupPrefix     = "registry-"
	backupSuffix     = ".json"
	backupTimeLayout = "20060102T150405.000000000Z"
)

// BackupInfo describes one registry backup.
type BackupInfo struct {
	Name    string
	Path    string
	TakenAt time.Time
	Size    int64
}

// backup copies the current registry file into the backup directory and
// prunes old copies. It is a no-op when no registry file exists yet.
func (s *Store) backup() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read registry for backup: %w", err)
	}

	name := backupPrefix + s.now().UTC().Format(backupTimeLayout) + backupSuffix
	if err := fsutil.WriteAtomic(filepath.Join(s.backupDir, name), data, 0o644); err != nil {
		return fmt.Errorf("write registry backup: %w", err)
	}
	return s.pruneBackups()
}

// pruneBackups keeps the newest s.retain backups.
func (s *Store) pruneBackups() error {
	backups, err := s.Backups()
	if err != nil {
		return err
	}
	for _, b := range backups[min(len(backups), s.retain):] {
		if err := os.Remove(b.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("failed to prune registry backup", "path", b.Path, "error", err)
		}
	}
	return nil
}

// Backups lists registry backups, newest first.
func (s *Store) Backups() ([]BackupInfo, error) {
	entries, err := os.ReadDir(s.backupDir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list registry backups: %w", err)
	}

	var out []BackupInfo
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, backupPrefix) || !strings.HasSuffix(name, backupSuffix) {
			continue
		}
		stamp := strings.TrimSuffix(strings.TrimPrefix(name, backupPrefix), backupSuffix)
		takenAt, err := time.Parse(backupTimeLayout, stamp)
		if err != nil {
			continue
		}
		var size int64
		if info, err := e.Info(); err == nil {
			size = info.Size()
		}
		out = append(out, BackupInfo{
			Name:    name,
			Path:    filepath.Join(s.backupDir, name),
			TakenAt: takenAt,
			Size:    size,
		})
	}

	slices.SortFunc(out, func(a, b BackupInfo) int {
		return b.TakenAt.Compare(a.TakenAt)
	})
	return out, nil
}

// findBackup resolves a backup by file name.
func (s *Store) findBackup(name string) (BackupInfo, error) {
	backups, err := s.Backups()
	if err != nil {
		return BackupInfo{}, err
	}
	for _, b := range backups {
		if b.Name == name {
			return b, nil
		}
	}
	return BackupInfo{}, fmt.Errorf("%w: %s", ErrBackupNotFound, name)
}
