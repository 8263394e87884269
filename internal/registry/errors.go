package registry

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for registry operations.
var (
	// ErrNotFound indicates the named project is not registered.
	ErrNotFound = errors.New("registry: project not found")

	// ErrCorruptRegistry indicates the registry file could not be parsed
	// and no usable backup exists.
	ErrCorruptRegistry = errors.New("registry: registry file is corrupt")

	// ErrLocked indicates another process holds the registry lock.
	ErrLocked = errors.New("registry: registry is locked by another process")

	// ErrInvalidName indicates a project name that is not a valid slug.
	ErrInvalidName = errors.New("registry: invalid project name")

	// ErrInvalidPath indicates a project path that is not absolute.
	ErrInvalidPath = errors.New("registry: project path must be absolute")

	// ErrUnsupportedVersion indicates a registry written by a newer release.
	ErrUnsupportedVersion = errors.New("registry: unsupported registry version")

	// ErrBackupNotFound indicates an unknown backup name.
	ErrBackupNotFound = errors.New("registry: backup not found")
)

// NotFoundError reports an unknown project name together with the closest
// registered names.
type NotFoundError struct {
	Name        string
	Suggestions []string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	msg := fmt.Sprintf("registry: project %q not found", e.Name)
	if len(e.Suggestions) > 0 {
		msg += "; did you mean: " + strings.Join(e.Suggestions, ", ") + "?"
	}
	return msg
}

// Is reports whether target is ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// CorruptError is returned when the registry cannot be parsed and no
// backup could be restored. The file on disk is left untouched.
type CorruptError struct {
	Path      string
	BackupDir string
	Err       error
}

// Error implements the error interface.
func (e *CorruptError) Error() string {
	return fmt.Sprintf("registry: %s is corrupt: %v", e.Path, e.Err)
}

// Unwrap returns the parse error.
func (e *CorruptError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrCorruptRegistry.
func (e *CorruptError) Is(target error) bool {
	return target == ErrCorruptRegistry
}

// Remediation tells the user how to recover.
func (e *CorruptError) Remediation() string {
	return fmt.Sprintf("inspect backups in %s and run 'orchestrator registry restore <backup>', or fix %s by hand",
		e.BackupDir, e.Path)
}
