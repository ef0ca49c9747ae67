package backup

import (
	"time"
)

// Snapshot describes the state of the backup root at the start of a cycle.
// It is a pure observation: taking it never modifies the filesystem.
type Snapshot struct {
	// HasBase is true when a directory named like the configured base
	// folder exists directly under the backup root.
	HasBase bool `json:"has_base"`
	// IncrementalCount is the number of incrementals implied by the
	// largest recognized inc_<N> suffix (largest N plus one). Gaps in
	// the sequence do not reduce it.
	IncrementalCount int `json:"incremental_count"`
	// NewestEntry is the most recent modification time over all entries
	// directly under the backup root, regardless of whether they are
	// recognized backup folders. Zero when the root is empty or missing.
	NewestEntry time.Time `json:"newest_entry"`
}

// NextSuffix returns the suffix the next incremental would use.
func (s Snapshot) NextSuffix() int {
	return s.IncrementalCount
}

// CycleDecision is the action the engine chose for this cycle
type CycleDecision string

const (
	// DecisionStartFresh wipes the backup root and takes a full backup.
	DecisionStartFresh CycleDecision = "start_fresh"
	// DecisionIncremental extends the current chain with one incremental.
	DecisionIncremental CycleDecision = "incremental"
	// DecisionSealThenStartFresh archives the current chain, then wipes
	// the root and takes a full backup.
	DecisionSealThenStartFresh CycleDecision = "seal_then_start_fresh"
)

// DecisionReason records why the engine chose its decision
type DecisionReason string

const (
	ReasonNoBase         DecisionReason = "no_base"
	ReasonChainContinues DecisionReason = "chain_continues"
	ReasonStaleChain     DecisionReason = "stale_chain"
	ReasonCountTrigger   DecisionReason = "count_trigger"
	ReasonTimeTrigger    DecisionReason = "time_trigger"
)

// CycleStatus is the terminal state of a cycle
type CycleStatus string

const (
	// CycleStatusBackupAdded means a backup folder was added to the chain.
	CycleStatusBackupAdded CycleStatus = "backup_added"
	// CycleStatusArchivedAndBaseAdded means the old chain was sealed into
	// an archive and a fresh base was taken.
	CycleStatusArchivedAndBaseAdded CycleStatus = "archived_and_base_added"
	// CycleStatusFailed means the cycle did not complete; the process
	// exits non-zero.
	CycleStatusFailed CycleStatus = "cycle_failed"
)

// CycleResult is the outcome of one engine run
type CycleResult struct {
	CycleID   string         `json:"cycle_id"`
	Status    CycleStatus    `json:"status"`
	Decision  CycleDecision  `json:"decision"`
	Reason    DecisionReason `json:"reason"`
	TargetDir string         `json:"target_dir,omitempty"`
	Archive   *ArchiveInfo   `json:"archive,omitempty"`
	StartedAt time.Time      `json:"started_at"`
	Duration  time.Duration  `json:"duration"`
	Err       error          `json:"-"`
}

// Failed reports whether the cycle ended in failure
func (r CycleResult) Failed() bool {
	return r.Status == CycleStatusFailed
}

// ArchiveInfo describes a sealed archive
type ArchiveInfo struct {
	Path      string    `json:"path"`
	SizeBytes int64     `json:"size_bytes"`
	Format    string    `json:"format"`
	Encrypted bool      `json:"encrypted"`
	SealedAt  time.Time `json:"sealed_at"`
	// Replicas lists offsite targets the archive was copied to.
	Replicas []string `json:"replicas,omitempty"`
}

// ArchiveEntry is one recognized archive file in the archive directory.
// Timestamp is parsed from the file name, never from file metadata.
type ArchiveEntry struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	SizeBytes int64     `json:"size_bytes"`
	Timestamp time.Time `json:"timestamp"`
}

// ChainStatus is the summary shown by the status command
type ChainStatus struct {
	BackupRoot       string         `json:"backup_root"`
	HasBase          bool           `json:"has_base"`
	IncrementalCount int            `json:"incremental_count"`
	NewestEntry      time.Time      `json:"newest_entry"`
	ChainAge         time.Duration  `json:"chain_age"`
	Stale            bool           `json:"stale"`
	ArchiveRoot      string         `json:"archive_root"`
	Archives         []ArchiveEntry `json:"archives"`
	ArchiveBytes     int64          `json:"archive_bytes"`
}
