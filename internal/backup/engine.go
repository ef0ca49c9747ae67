package backup

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"xtrabackup-runner/internal/execution"
	"xtrabackup-runner/internal/logging"
)

// Sealer archives the current chain. Satisfied by Archiver; substituted in
// engine tests.
type Sealer interface {
	SealAndRotate(ctx context.Context) (*ArchiveInfo, error)
}

// PreflightFunc checks the database is reachable before a backup is
// attempted. Nil skips the check.
type PreflightFunc func(ctx context.Context) error

// Engine runs one backup cycle: inspect the chain, decide the action,
// supervise the backup tool, and seal/rotate when a trigger fires. All
// durable state lives in the backup and archive directories; the engine
// holds nothing across invocations.
type Engine struct {
	cfg       *Config
	logger    *logging.Logger
	inspector *Inspector
	runner    execution.Runner
	sealer    Sealer
	lock      *CycleLock

	replicator *OffsiteReplicator
	notifier   *Notifier
	preflight  PreflightFunc

	// mirror receives a live copy of the tool's output when configured.
	mirror io.Writer
	now    func() time.Time
}

// NewEngine wires an engine from the configuration.
func NewEngine(cfg *Config, logger *logging.Logger) (*Engine, error) {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}

	archiver, err := NewArchiver(cfg, logger)
	if err != nil {
		return nil, err
	}

	var mirror io.Writer
	if cfg.Logging.MirrorChildOutput {
		mirror = os.Stdout
	}

	return &Engine{
		cfg:        cfg,
		logger:     logger,
		inspector:  NewInspector(cfg.Naming),
		runner:     execution.NewSupervisor(logger),
		sealer:     archiver,
		lock:       NewCycleLock(cfg, logger),
		replicator: NewOffsiteReplicator(&cfg.Offsite, logger),
		notifier:   NewNotifier(cfg.Notifications, logger),
		mirror:     mirror,
		now:        time.Now,
	}, nil
}

// SetPreflight installs the optional pre-cycle connectivity check.
func (e *Engine) SetPreflight(fn PreflightFunc) {
	e.preflight = fn
}

// Decide computes the action for the observed chain state. It is a pure
// function of the snapshot, the configuration and the clock.
func Decide(snapshot Snapshot, cfg *Config, now time.Time) (CycleDecision, DecisionReason) {
	if !snapshot.HasBase {
		return DecisionStartFresh, ReasonNoBase
	}

	// Staleness wins over everything: an incremental chain must never span
	// a gap longer than the configured maximum, archiving or not.
	if !snapshot.NewestEntry.IsZero() && now.Sub(snapshot.NewestEntry) > cfg.MaxBackupAge() {
		if cfg.Archive.Enabled {
			return DecisionSealThenStartFresh, ReasonStaleChain
		}
		// No archiving: the stale chain is discarded, not sealed.
		return DecisionStartFresh, ReasonStaleChain
	}

	if cfg.Archive.Enabled {
		if cfg.Archive.CountTriggerEnabled && snapshot.IncrementalCount >= cfg.Archive.MaxBackupsBeforeArchive {
			return DecisionSealThenStartFresh, ReasonCountTrigger
		}
		// Fires on every invocation within the configured hour; operators
		// control the cadence through their trigger schedule.
		if cfg.Archive.TimeTriggerEnabled && now.UTC().Hour() == cfg.Archive.ArchiveAtUTCHour {
			return DecisionSealThenStartFresh, ReasonTimeTrigger
		}
	}

	return DecisionIncremental, ReasonChainContinues
}

// RunCycle executes one complete cycle and reports its outcome. The returned
// result always carries a terminal status; the Err field explains failures.
func (e *Engine) RunCycle(ctx context.Context) CycleResult {
	cycleID := uuid.New().String()[:8]
	start := e.now()

	result := CycleResult{
		CycleID:   cycleID,
		StartedAt: start,
	}

	report := NewReportCollector(e.cfg, e.logger, cycleID)
	defer func() {
		report.RecordResult(result)
		report.Write()
		if err := e.notifier.NotifyResult(ctx, result); err != nil {
			e.logger.Warnf("Notification delivery incomplete: %v", err)
		}
	}()

	release, err := e.lock.Acquire(cycleID)
	if err != nil {
		return e.fail(&result, err)
	}
	defer release()

	if e.preflight != nil {
		if err := report.Phase("preflight", func() error { return e.preflight(ctx) }); err != nil {
			return e.fail(&result, err)
		}
	}

	before, err := e.inspector.Inspect(e.cfg.BackupRoot())
	if err != nil {
		return e.fail(&result, err)
	}

	decision, reason := Decide(before, e.cfg, e.now())
	result.Decision = decision
	result.Reason = reason
	e.logger.LogCycleDecision(string(decision), string(reason), before.HasBase, before.IncrementalCount)

	switch decision {
	case DecisionSealThenStartFresh:
		var info *ArchiveInfo
		err := report.Phase("seal", func() error {
			sealed, serr := e.sealer.SealAndRotate(ctx)
			info = sealed
			return serr
		})
		if err != nil {
			return e.fail(&result, err)
		}
		result.Archive = info

		if err := report.Phase("offsite", func() error {
			return e.replicator.Replicate(ctx, info)
		}); err != nil {
			// Replication is best effort; the seal already succeeded.
			e.logger.Warnf("Offsite replication incomplete: %v", err)
		}

		if err := e.runBase(ctx, &result, report); err != nil {
			return e.fail(&result, err)
		}
		result.Status = CycleStatusArchivedAndBaseAdded

	case DecisionStartFresh:
		if before.HasBase || before.IncrementalCount > 0 {
			// Stale chain with archiving disabled: discard it.
			if err := report.Phase("discard_stale", func() error {
				return ResetBackupRoot(e.cfg)
			}); err != nil {
				return e.fail(&result, err)
			}
			e.logger.Warnf("Discarded stale backup chain (archiving disabled)")
		}
		if err := e.runBase(ctx, &result, report); err != nil {
			return e.fail(&result, err)
		}
		result.Status = CycleStatusBackupAdded

	case DecisionIncremental:
		if err := e.runIncremental(ctx, before, &result, report); err != nil {
			return e.fail(&result, err)
		}
		result.Status = CycleStatusBackupAdded
	}

	after, ierr := e.inspector.Inspect(e.cfg.BackupRoot())
	if ierr == nil {
		report.RecordSnapshots(before, after)
	}

	result.Duration = e.now().Sub(start)
	return result
}

// runBase takes a full backup into the base folder.
func (e *Engine) runBase(ctx context.Context, result *CycleResult, report *ReportCollector) error {
	target := filepath.Join(e.cfg.BackupRoot(), e.cfg.Naming.BaseDirName)
	result.TargetDir = target

	return report.Phase("base_backup", func() error {
		return e.supervise(ctx, execution.Request{
			Kind:      execution.KindBase,
			TargetDir: target,
		}, target)
	})
}

// runIncremental extends the chain by one folder, based on the newest
// existing backup.
func (e *Engine) runIncremental(ctx context.Context, snapshot Snapshot, result *CycleResult, report *ReportCollector) error {
	root := e.cfg.BackupRoot()
	target := filepath.Join(root, e.cfg.Naming.IncrementalName(snapshot.NextSuffix()))
	result.TargetDir = target

	basedir := filepath.Join(root, e.cfg.Naming.BaseDirName)
	if snapshot.IncrementalCount > 0 {
		basedir = filepath.Join(root, e.cfg.Naming.IncrementalName(snapshot.IncrementalCount-1))
	}

	return report.Phase("incremental_backup", func() error {
		return e.supervise(ctx, execution.Request{
			Kind:        execution.KindIncremental,
			TargetDir:   target,
			BasedirPath: basedir,
		}, target)
	})
}

// supervise fills the request from configuration, runs the tool, and maps
// the outcome. On anything but success the partial target folder is removed
// so the chain's numbering invariant holds.
func (e *Engine) supervise(ctx context.Context, req execution.Request, target string) error {
	if err := os.MkdirAll(e.cfg.BackupRoot(), 0o755); err != nil {
		return NewIOError("cannot create backup root", err)
	}

	req.Username = e.cfg.Connection.Username
	req.Password = e.cfg.Connection.Password
	req.Host = e.cfg.Connection.Host
	req.Port = e.cfg.Connection.Port
	req.Binary = e.cfg.General.Binary
	req.UseSudo = e.cfg.General.UseSudo
	req.ExtraParams = e.cfg.General.ExtraParams
	req.HandshakeTimeout = e.cfg.CommandTimeout()
	req.Mirror = e.mirror

	runResult, err := e.runner.Run(ctx, execution.BuildCommand(req))
	if err != nil {
		e.cleanupPartial(target)
		return NewToolExecutionError("backup command could not be run", err)
	}

	e.logger.LogToolRun(target, string(runResult.Outcome), runResult.Duration, nil)

	switch runResult.Outcome {
	case execution.OutcomeSuccess:
		return nil
	case execution.OutcomeTimeout:
		e.cleanupPartial(target)
		return NewTimeoutError(
			fmt.Sprintf("password prompt not seen within %s", e.cfg.CommandTimeout()), nil).
			WithContext("target", target)
	case execution.OutcomeAuthRejected:
		e.cleanupPartial(target)
		return NewAuthRejectedError("database rejected the configured credentials", nil).
			WithContext("target", target)
	default:
		e.cleanupPartial(target)
		return NewToolExecutionError(
			fmt.Sprintf("backup tool failed (exit %d)", runResult.ExitCode), nil).
			WithContext("target", target).
			WithContext("output_tail", tailForContext(runResult.OutputTail))
	}
}

// cleanupPartial removes whatever the failed tool left at target. Removal is
// guarded to paths under the configured backup directory.
func (e *Engine) cleanupPartial(target string) {
	if _, err := os.Stat(target); os.IsNotExist(err) {
		return
	}
	if err := removeWithin(e.cfg.Paths.BackupDir, target); err != nil {
		e.logger.Warnf("Could not remove partial backup folder %s: %v", target, err)
	}
}

// fail finalizes a failed result.
func (e *Engine) fail(result *CycleResult, err error) CycleResult {
	result.Status = CycleStatusFailed
	result.Err = err
	result.Duration = e.now().Sub(result.StartedAt)
	e.logger.WithFields(map[string]interface{}{
		"cycle_id": result.CycleID,
		"decision": string(result.Decision),
		"reason":   string(result.Reason),
		"error":    err.Error(),
	}).Error("Backup cycle failed")
	return *result
}

// tailForContext trims the output tail to a size that keeps error events
// readable.
func tailForContext(tail string) string {
	const max = 2048
	if len(tail) <= max {
		return tail
	}
	return tail[len(tail)-max:]
}
