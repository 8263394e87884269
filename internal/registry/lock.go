package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/resilience"
)

const reclaimSuffix = ".reclaim"

// lockInfo is written into the lock file for diagnostics and staleness.
type lockInfo struct {
	PID        int       `json:"pid"`
	Host       string    `json:"host"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// FileLock is an advisory lock held through an exclusively created file.
type FileLock struct {
	path string
}

// Release removes the lock file.
func (l *FileLock) Release() error {
	if l == nil || l.path == "" {
		return nil
	}
	err := os.Remove(l.path)
	l.path = ""
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("release registry lock: %w", err)
	}
	return nil
}

// locker acquires the registry lock with a bounded wait.
type locker struct {
	path   string
	wait   time.Duration
	stale  time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// acquire waits up to l.wait for the lock. A lock older than l.stale is
// reclaimed with a warning.
func (l *locker) acquire(ctx context.Context) (*FileLock, error) {
	var lock *FileLock
	policy := resilience.WaitPolicy(l.wait, 25*time.Millisecond, ErrLocked)

	err := resilience.Retry(ctx, policy, func() error {
		var err error
		lock, err = l.tryAcquire()
		return err
	})
	if err != nil {
		if errors.Is(err, ErrLocked) {
			return nil, fmt.Errorf("%w (waited %s; remove %s if no orchestrator process is running)", err, l.wait, l.path)
		}
		return nil, err
	}
	return lock, nil
}

func (l *locker) tryAcquire() (*FileLock, error) {
	lock, err := l.create()
	if !errors.Is(err, os.ErrExist) {
		return lock, err
	}

	holder, age, ok := l.inspect()
	if ok && age > l.stale {
		return l.reclaim()
	}
	return nil, fmt.Errorf("%w: held by pid %d", ErrLocked, holder.PID)
}

// create takes the lock if no lock file exists. It returns an error
// wrapping os.ErrExist otherwise.
func (l *locker) create() (*FileLock, error) {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if errors.Is(err, os.ErrExist) {
		return nil, err
	}
	if err != nil {
		return nil, resilience.Permanent(fmt.Errorf("create registry lock: %w", err))
	}
	host, _ := os.Hostname()
	info := lockInfo{PID: os.Getpid(), Host: host, AcquiredAt: l.now().UTC()}
	encErr := json.NewEncoder(f).Encode(info)
	closeErr := f.Close()
	if encErr != nil || closeErr != nil {
		_ = os.Remove(l.path)
		return nil, resilience.Permanent(fmt.Errorf("write registry lock: %w", errors.Join(encErr, closeErr)))
	}
	return &FileLock{path: l.path}, nil
}

// @MX:WARN: [AUTO] only the holder of the reclaim guard may remove a stale lock
// @MX:REASON: two processes removing the same stale file would both go on to acquire
// reclaim removes a stale lock and takes it. Reclaimers are serialized by
// an exclusively created guard file, and the staleness is checked again
// under the guard, so a lock another reclaimer already replaced survives.
func (l *locker) reclaim() (*FileLock, error) {
	guard := l.path + reclaimSuffix
	g, err := os.OpenFile(guard, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if errors.Is(err, os.ErrExist) {
		// A reclaimer that died leaves its guard behind.
		if st, statErr := os.Stat(guard); statErr == nil && l.now().Sub(st.ModTime()) > l.stale {
			_ = os.Remove(guard)
		}
		return nil, fmt.Errorf("%w: stale lock is being reclaimed", ErrLocked)
	}
	if err != nil {
		return nil, resilience.Permanent(fmt.Errorf("create reclaim guard: %w", err))
	}
	_ = g.Close()
	defer func() { _ = os.Remove(guard) }()

	holder, age, ok := l.inspect()
	if !ok || age <= l.stale {
		return nil, fmt.Errorf("%w: held by pid %d", ErrLocked, holder.PID)
	}
	l.logger.Warn("reclaiming stale registry lock",
		"path", l.path,
		"holder_pid", holder.PID,
		"holder_host", holder.Host,
		"age", age.Round(time.Millisecond).String(),
	)
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, resilience.Permanent(fmt.Errorf("remove stale registry lock: %w", err))
	}

	lock, err := l.create()
	if errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("%w: lock taken while reclaiming", ErrLocked)
	}
	return lock, err
}

// inspect reports the lock holder and the lock age. The age falls back to
// the file modification time when the contents are unreadable.
func (l *locker) inspect() (lockInfo, time.Duration, bool) {
	st, err := os.Stat(l.path)
	if err != nil {
		return lockInfo{}, 0, false
	}

	var info lockInfo
	data, err := os.ReadFile(l.path)
	if err == nil && json.Unmarshal(data, &info) == nil && !info.AcquiredAt.IsZero() {
		return info, l.now().Sub(info.AcquiredAt), true
	}
	return info, l.now().Sub(st.ModTime()), true
}
