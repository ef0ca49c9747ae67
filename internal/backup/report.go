package backup

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"xtrabackup-runner/internal/logging"
)

// CycleReport is the JSON document written after each invocation. It is
// observational output only; the engine never reads reports back.
type CycleReport struct {
	CycleID    string         `json:"cycle_id"`
	Hostname   string         `json:"hostname"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Duration   string         `json:"duration"`
	Decision   CycleDecision  `json:"decision"`
	Reason     DecisionReason `json:"reason"`
	Status     CycleStatus    `json:"status"`
	TargetDir  string         `json:"target_dir,omitempty"`
	Error      string         `json:"error,omitempty"`
	ErrorType  string         `json:"error_type,omitempty"`

	Snapshot SnapshotReport `json:"snapshot"`
	Archive  *ArchiveInfo   `json:"archive,omitempty"`
	Phases   []PhaseReport  `json:"phases"`
}

// SnapshotReport captures the chain state before and after the cycle.
type SnapshotReport struct {
	Before Snapshot `json:"before"`
	After  Snapshot `json:"after"`
}

// PhaseReport records the duration and outcome of one cycle phase.
type PhaseReport struct {
	Name     string    `json:"name"`
	Started  time.Time `json:"started"`
	Duration string    `json:"duration"`
	Success  bool      `json:"success"`
	Error    string    `json:"error,omitempty"`
}

// ReportCollector accumulates phase timings during a cycle and writes the
// final report document. Write failures are logged, never fatal: a backup
// that succeeded stays succeeded even when the report cannot land.
type ReportCollector struct {
	cfg    *Config
	logger *logging.Logger

	mu     sync.Mutex
	report CycleReport
}

// NewReportCollector creates a collector for one cycle.
func NewReportCollector(cfg *Config, logger *logging.Logger, cycleID string) *ReportCollector {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}

	hostname, _ := os.Hostname()

	return &ReportCollector{
		cfg:    cfg,
		logger: logger,
		report: CycleReport{
			CycleID:   cycleID,
			Hostname:  hostname,
			StartedAt: time.Now().UTC(),
		},
	}
}

// Phase runs fn, recording its duration and outcome under name.
func (rc *ReportCollector) Phase(name string, fn func() error) error {
	started := time.Now().UTC()
	err := fn()

	rc.mu.Lock()
	rc.report.Phases = append(rc.report.Phases, PhaseReport{
		Name:     name,
		Started:  started,
		Duration: time.Since(started).String(),
		Success:  err == nil,
		Error:    errString(err),
	})
	rc.mu.Unlock()

	return err
}

// RecordSnapshots stores the before/after chain state.
func (rc *ReportCollector) RecordSnapshots(before, after Snapshot) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.report.Snapshot = SnapshotReport{Before: before, After: after}
}

// RecordResult stores the cycle outcome.
func (rc *ReportCollector) RecordResult(result CycleResult) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	rc.report.Decision = result.Decision
	rc.report.Reason = result.Reason
	rc.report.Status = result.Status
	rc.report.TargetDir = result.TargetDir
	rc.report.Archive = result.Archive
	if result.Err != nil {
		rc.report.Error = result.Err.Error()
		var cycleErr *CycleError
		if errors.As(result.Err, &cycleErr) {
			rc.report.ErrorType = string(cycleErr.Type)
		}
	}
}

// Write finalizes the report and writes it to the report directory as
// cycle_<timestamp>_<id>.json. Disabled reporting is a no-op.
func (rc *ReportCollector) Write() {
	if !rc.cfg.Report.Enabled {
		return
	}

	rc.mu.Lock()
	rc.report.FinishedAt = time.Now().UTC()
	rc.report.Duration = rc.report.FinishedAt.Sub(rc.report.StartedAt).String()
	report := rc.report
	rc.mu.Unlock()

	dir := rc.cfg.ReportDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		rc.logger.Warnf("Cannot create report directory %s: %v", dir, err)
		return
	}

	name := fmt.Sprintf("cycle_%s_%s.json", report.StartedAt.Format("20060102_150405"), report.CycleID)
	path := filepath.Join(dir, name)

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		rc.logger.Warnf("Cannot marshal cycle report: %v", err)
		return
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		rc.logger.Warnf("Cannot write cycle report %s: %v", path, err)
		return
	}

	rc.logger.Debugf("Cycle report written: %s", path)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
