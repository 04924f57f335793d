package upgrade

import (
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/cockroachdb/errors"
)

// ErrUpgradeInProgress is returned when another live process holds the lock.
// Lock contention is terminal; callers never poll or wait.
var ErrUpgradeInProgress = errors.New("another upgrade is already in progress")

// lockFileMode is the permission mode for lock files.
const lockFileMode = 0o644

// maxLockAttempts bounds the create/inspect/retry cycle. Two passes cover
// the single legitimate stale-lock retry; the third guards against a rapid
// re-create race by failing fast instead of spinning.
const maxLockAttempts = 3

// LockManager provides PID-file mutual exclusion over an install directory.
//
// Takeover rules: a lock held by a dead PID is stale and is reclaimed; a lock
// holding the caller's own parent PID is handed over regardless of liveness
// (the parent spawned this process to finish the install and may still be
// alive). The parent match is a weak-trust heuristic with no session proof;
// PID reuse could in principle cause a false takeover.
type LockManager struct {
	pid   int
	ppid  int
	alive func(pid int) bool
}

// NewLockManager creates a LockManager for the current process.
func NewLockManager() *LockManager {
	return &LockManager{
		pid:   os.Getpid(),
		ppid:  os.Getppid(),
		alive: processAlive,
	}
}

// NewLockManagerForProcess creates a LockManager with explicit PIDs and
// liveness probe (for testing).
func NewLockManagerForProcess(pid, ppid int, alive func(pid int) bool) *LockManager {
	return &LockManager{pid: pid, ppid: ppid, alive: alive}
}

// Acquire takes the lock at lockPath or fails fast. Exactly one of two
// racing processes proceeds; the loser gets ErrUpgradeInProgress unless the
// holder is stale or is the caller's parent.
func (m *LockManager) Acquire(lockPath string) error {
	for range maxLockAttempts {
		err := m.createLock(lockPath)
		if err == nil {
			return nil
		}

		if !errors.Is(err, os.ErrExist) {
			return errors.Wrapf(err, "creating lock file %s", lockPath)
		}

		holder, readErr := readLockPID(lockPath)
		if readErr != nil {
			if errors.Is(readErr, os.ErrNotExist) {
				// Holder released between our create and read; retry.
				continue
			}

			return errors.Wrapf(readErr, "reading lock file %s", lockPath)
		}

		if holder == m.ppid {
			// Parent handoff: the holder spawned us to finish its install.
			return m.overwriteLock(lockPath)
		}

		if holder > 0 && m.alive(holder) {
			return errors.Wrapf(ErrUpgradeInProgress, "lock %s held by pid %d", lockPath, holder)
		}

		if err := os.Remove(lockPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return errors.Wrapf(err, "removing stale lock file %s", lockPath)
		}
	}

	return errors.Wrapf(ErrUpgradeInProgress, "lock %s contended", lockPath)
}

// Release deletes the lock file. Best effort: a missing file is not an error.
func (m *LockManager) Release(lockPath string) error {
	if err := os.Remove(lockPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Wrapf(err, "removing lock file %s", lockPath)
	}

	return nil
}

// createLock atomically creates the lock file with the caller's PID.
func (m *LockManager) createLock(lockPath string) error {
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, lockFileMode)
	if err != nil {
		return err
	}

	_, writeErr := f.WriteString(strconv.Itoa(m.pid))

	if closeErr := f.Close(); writeErr == nil {
		writeErr = closeErr
	}

	if writeErr != nil {
		_ = os.Remove(lockPath)

		return writeErr
	}

	return nil
}

// overwriteLock rewrites the lock file with the caller's PID (takeover).
func (m *LockManager) overwriteLock(lockPath string) error {
	if err := os.WriteFile(lockPath, []byte(strconv.Itoa(m.pid)), lockFileMode); err != nil {
		return errors.Wrapf(err, "taking over lock file %s", lockPath)
	}

	return nil
}

// readLockPID reads the holder PID from an existing lock file.
// Unparseable content reads as PID 0, which is never alive, so a corrupt
// lock is treated as stale rather than fatal.
func readLockPID(lockPath string) (int, error) {
	//nolint:gosec // G304: lockPath is derived from the install path
	raw, err := os.ReadFile(lockPath)
	if err != nil {
		return 0, err
	}

	pid, convErr := strconv.Atoi(strings.TrimSpace(string(raw)))
	if convErr != nil {
		return 0, nil
	}

	return pid, nil
}

// processAlive probes liveness by signaling PID 0. Permission denied still
// counts as alive (the process exists under another user); any other failure
// counts as dead.
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	sigErr := proc.Signal(syscall.Signal(0))
	if sigErr == nil {
		return true
	}

	return errors.Is(sigErr, os.ErrPermission) || errors.Is(sigErr, syscall.EPERM)
}
