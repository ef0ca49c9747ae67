package backup

import (
	"time"
)

// CollectChainStatus reads the current chain and archive state without
// modifying anything. It backs the status command and dry runs.
func CollectChainStatus(cfg *Config, now time.Time) (ChainStatus, error) {
	snapshot, err := NewInspector(cfg.Naming).Inspect(cfg.BackupRoot())
	if err != nil {
		return ChainStatus{}, err
	}

	status := ChainStatus{
		BackupRoot:       cfg.BackupRoot(),
		HasBase:          snapshot.HasBase,
		IncrementalCount: snapshot.IncrementalCount,
		NewestEntry:      snapshot.NewestEntry,
		ArchiveRoot:      cfg.ArchiveRoot(),
	}

	if !snapshot.NewestEntry.IsZero() {
		status.ChainAge = now.Sub(snapshot.NewestEntry)
		status.Stale = status.ChainAge > cfg.MaxBackupAge()
	}

	archives, err := ListArchives(cfg.ArchiveRoot(), cfg.Naming.ArchivePrefix)
	if err != nil {
		return ChainStatus{}, err
	}
	status.Archives = archives
	for _, archive := range archives {
		status.ArchiveBytes += archive.SizeBytes
	}

	return status, nil
}
