package backup

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"xtrabackup-runner/internal/logging"
)

// CycleLock is an advisory lock guarding the backup root against overlapping
// invocations from a misconfigured trigger. The lock file sits next to the
// backup root (<datadir>.lock) and holds the owning pid and cycle ID.
type CycleLock struct {
	path   string
	logger *logging.Logger
}

// NewCycleLock creates a lock for the configured backup root.
func NewCycleLock(cfg *Config, logger *logging.Logger) *CycleLock {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}

	return &CycleLock{
		path:   cfg.BackupRoot() + ".lock",
		logger: logger,
	}
}

// Acquire takes the lock, returning a release function. A lock held by a
// live process means another cycle is running and the error carries the
// holder's pid; a lock whose recorded pid is dead is broken and re-acquired.
func (cl *CycleLock) Acquire(cycleID string) (func(), error) {
	for attempt := 0; attempt < 2; attempt++ {
		file, err := os.OpenFile(cl.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			fmt.Fprintf(file, "%d %s %s\n", os.Getpid(), cycleID, time.Now().UTC().Format(time.RFC3339))
			file.Close()

			path := cl.path
			return func() {
				if rerr := os.Remove(path); rerr != nil && !os.IsNotExist(rerr) {
					cl.logger.Warnf("Failed to release cycle lock %s: %v", path, rerr)
				}
			}, nil
		}
		if !os.IsExist(err) {
			return nil, NewLockError(fmt.Sprintf("cannot create lock file %s", cl.path), err)
		}

		pid, holderCycle, rerr := cl.readHolder()
		if rerr != nil {
			return nil, rerr
		}
		if pid > 0 && processAlive(pid) {
			return nil, NewLockError(
				fmt.Sprintf("another cycle is running (pid %d)", pid), nil).
				WithContext("holder_pid", pid).
				WithContext("holder_cycle", holderCycle)
		}

		// Holder is gone; the lock is stale. Break it and retry once.
		cl.logger.Warnf("Breaking stale cycle lock %s (pid %d is dead)", cl.path, pid)
		if rmErr := os.Remove(cl.path); rmErr != nil && !os.IsNotExist(rmErr) {
			return nil, NewLockError("cannot break stale lock file", rmErr)
		}
	}

	return nil, NewLockError("lock contention did not resolve", nil)
}

// readHolder parses the pid and cycle ID recorded in the lock file. A lock
// file that vanishes or cannot be parsed reports pid 0, which counts as dead.
func (cl *CycleLock) readHolder() (int, string, error) {
	data, err := os.ReadFile(cl.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, "", nil
		}
		return 0, "", NewLockError("cannot read existing lock file", err)
	}

	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return 0, "", nil
	}

	pid, perr := strconv.Atoi(fields[0])
	if perr != nil {
		return 0, "", nil
	}

	cycleID := ""
	if len(fields) > 1 {
		cycleID = fields[1]
	}

	return pid, cycleID, nil
}

// processAlive reports whether a process with the given pid exists. Signal 0
// performs the existence check without delivering anything; EPERM still means
// the process is there.
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	return err == syscall.EPERM
}
