// Package lockfile guards the state directory against concurrent LeadChat
// processes. The lock is an flock on a pidfile, so it drops with the process
// even on a crash.
package lockfile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// LockFileName is the pidfile created inside the state directory.
const LockFileName = "leadchat.lock"

// Lock is a held state-directory lock.
type Lock struct {
	file     *os.File
	path     string
	acquired bool
}

// AcquireLock takes an exclusive lock on the state directory, creating it if
// needed. When another process holds the lock, the returned error is a
// *LockError describing the holder.
func AcquireLock(stateDir string) (*Lock, error) {
	lockPath := filepath.Join(stateDir, LockFileName)
	slog.Debug("lockfile.AcquireLock: locking state directory", "path", lockPath)

	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory %s: %w", stateDir, err)
	}

	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file %s: %w", lockPath, err)
	}

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		file.Close()
		holder := describeHolder(lockPath)
		slog.Error("lockfile.AcquireLock: state directory already locked", "path", lockPath, "holder", holder)
		return nil, &LockError{LockPath: lockPath, Holder: holder, Cause: err}
	}

	if _, err := fmt.Fprintf(file, "pid=%d\n", os.Getpid()); err != nil {
		syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
		file.Close()
		return nil, fmt.Errorf("failed to write pid to %s: %w", lockPath, err)
	}
	if err := file.Sync(); err != nil {
		slog.Warn("lockfile.AcquireLock: failed to sync lock file", "error", err, "path", lockPath)
	}

	slog.Info("lockfile.AcquireLock: state directory locked", "path", lockPath, "pid", os.Getpid())
	return &Lock{file: file, path: lockPath, acquired: true}, nil
}

// Release drops the lock and removes the pidfile. Safe to call repeatedly.
func (l *Lock) Release() error {
	if !l.acquired || l.file == nil {
		return nil
	}

	if err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN); err != nil {
		slog.Error("lockfile.Release: failed to unlock", "error", err, "path", l.path)
	}
	if err := l.file.Close(); err != nil {
		slog.Error("lockfile.Release: failed to close lock file", "error", err, "path", l.path)
	}
	if err := os.Remove(l.path); err != nil {
		slog.Debug("lockfile.Release: failed to remove lock file", "error", err, "path", l.path)
	}

	l.acquired = false
	l.file = nil
	slog.Info("lockfile.Release: state directory unlocked", "path", l.path)
	return nil
}

// LockError reports a state directory already locked by another process.
type LockError struct {
	LockPath string
	Holder   string
	Cause    error
}

func (e *LockError) Error() string {
	msg := fmt.Sprintf("state directory is locked by another LeadChat process (lock file %s", e.LockPath)
	if e.Holder != "" {
		msg += ", held by " + e.Holder
	}
	msg += "); if no other instance is running, remove the stale lock file and retry"
	return msg
}

func (e *LockError) Unwrap() error {
	return e.Cause
}

// describeHolder reads the pidfile to name the process holding the lock.
func describeHolder(lockPath string) string {
	data, err := os.ReadFile(lockPath)
	if err != nil || len(data) == 0 {
		return ""
	}
	pid := extractPID(string(data))
	if pid <= 0 {
		return strings.TrimSpace(string(data))
	}
	if isProcessRunning(pid) {
		return fmt.Sprintf("PID %d (running)", pid)
	}
	return fmt.Sprintf("PID %d (not running, stale lock)", pid)
}

// extractPID pulls the pid out of "pid=NNNN" pidfile content.
func extractPID(content string) int {
	const prefix = "pid="
	idx := strings.Index(content, prefix)
	if idx == -1 {
		return 0
	}
	rest := content[idx+len(prefix):]
	end := 0
	for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
		end++
	}
	pid, err := strconv.Atoi(rest[:end])
	if err != nil {
		return 0
	}
	return pid
}

// isProcessRunning probes a pid with signal 0.
func isProcessRunning(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
