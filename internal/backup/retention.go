package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"xtrabackup-runner/internal/logging"
)

// RetentionManager deletes archives beyond the configured retention count.
type RetentionManager struct {
	cfg    *Config
	logger *logging.Logger
}

// NewRetentionManager creates a new retention manager.
func NewRetentionManager(cfg *Config, logger *logging.Logger) *RetentionManager {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}

	return &RetentionManager{
		cfg:    cfg,
		logger: logger,
	}
}

// SweepResult describes one retention sweep over the archive root.
type SweepResult struct {
	Deleted    []string `json:"deleted"`
	FreedBytes int64    `json:"freed_bytes"`
	Remaining  int      `json:"remaining"`
}

type archiveCandidate struct {
	name  string
	size  int64
	stamp time.Time
}

// Sweep deletes regular files under the archive root until at most
// retention_count remain. Files that do not parse as
// <archive_prefix><timestamp> go first, in lexicographic order, then
// recognized archives ordered by the timestamp embedded in their name, oldest
// first. Subdirectories are never counted and never touched, and file
// modification times are never consulted.
func (rm *RetentionManager) Sweep(ctx context.Context) (*SweepResult, error) {
	start := time.Now()
	root := rm.cfg.ArchiveRoot()
	keep := rm.cfg.Archive.RetentionCount

	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return &SweepResult{}, nil
		}
		return nil, NewIOError("failed to read archive root", err)
	}

	var strays []archiveCandidate
	var recognized []archiveCandidate
	total := 0
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		total++

		var size int64
		if info, ierr := entry.Info(); ierr == nil {
			size = info.Size()
		}

		if stamp, ok := ParseArchiveTimestamp(entry.Name(), rm.cfg.Naming.ArchivePrefix); ok {
			recognized = append(recognized, archiveCandidate{name: entry.Name(), size: size, stamp: stamp})
		} else {
			strays = append(strays, archiveCandidate{name: entry.Name(), size: size})
		}
	}

	sort.Slice(strays, func(i, j int) bool { return strays[i].name < strays[j].name })
	sort.Slice(recognized, func(i, j int) bool { return recognized[i].stamp.Before(recognized[j].stamp) })

	victims := make([]archiveCandidate, 0, len(strays)+len(recognized))
	victims = append(victims, strays...)
	victims = append(victims, recognized...)

	result := &SweepResult{}
	for _, victim := range victims {
		if total <= keep {
			break
		}
		if cerr := ctx.Err(); cerr != nil {
			return result, cerr
		}

		if err := os.Remove(filepath.Join(root, victim.name)); err != nil {
			return result, NewIOError(fmt.Sprintf("failed to delete archive %s", victim.name), err)
		}
		total--
		result.Deleted = append(result.Deleted, victim.name)
		result.FreedBytes += victim.size
		rm.logger.Debugf("Deleted archive %s (%d bytes)", victim.name, victim.size)
	}
	result.Remaining = total

	rm.logger.LogRetentionSweep(len(result.Deleted), result.Remaining, time.Since(start))

	return result, nil
}

// ParseArchiveTimestamp extracts the timestamp embedded in an archive file
// name of the form <prefix><timestamp>[.<ext>]. The extension is not
// validated, so archives sealed under older format settings still parse.
// Staged .partial files never count as archives.
func ParseArchiveTimestamp(name, prefix string) (time.Time, bool) {
	if !strings.HasPrefix(name, prefix) {
		return time.Time{}, false
	}
	if strings.HasSuffix(name, partialSuffix) {
		return time.Time{}, false
	}

	rest := name[len(prefix):]
	if len(rest) < len(ArchiveTimestampLayout) {
		return time.Time{}, false
	}

	stamp := rest[:len(ArchiveTimestampLayout)]
	tail := rest[len(ArchiveTimestampLayout):]
	if tail != "" && !strings.HasPrefix(tail, ".") {
		return time.Time{}, false
	}

	parsed, err := time.Parse(ArchiveTimestampLayout, stamp)
	if err != nil {
		return time.Time{}, false
	}

	return parsed, true
}

// ListArchives returns the recognized archives under root, ordered by their
// embedded timestamp, oldest first. A missing root yields an empty listing.
func ListArchives(root, prefix string) ([]ArchiveEntry, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, NewIOError("failed to read archive root", err)
	}

	var archives []ArchiveEntry
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		stamp, ok := ParseArchiveTimestamp(entry.Name(), prefix)
		if !ok {
			continue
		}

		var size int64
		if info, ierr := entry.Info(); ierr == nil {
			size = info.Size()
		}

		archives = append(archives, ArchiveEntry{
			Name:      entry.Name(),
			Path:      filepath.Join(root, entry.Name()),
			SizeBytes: size,
			Timestamp: stamp,
		})
	}

	sort.Slice(archives, func(i, j int) bool { return archives[i].Timestamp.Before(archives[j].Timestamp) })

	return archives, nil
}
