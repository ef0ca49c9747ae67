// Package application wires the configuration, engine and CLI surfaces
// together and owns process-level concerns: signals, exit codes, and
// operator-facing error output.
package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"xtrabackup-runner/internal/backup"
	"xtrabackup-runner/internal/confirmation"
	"xtrabackup-runner/internal/database"
	"xtrabackup-runner/internal/display"
	appErrors "xtrabackup-runner/internal/errors"
	"xtrabackup-runner/internal/logging"
)

// Exit codes for the run-cycle command.
const (
	ExitSuccess      = 0
	ExitFailure      = 1
	ExitAuthRejected = 2
	ExitLockHeld     = 3
)

// Options holds per-invocation flags layered on top of the configuration.
type Options struct {
	DryRun  bool
	Verbose bool
	Quiet   bool
	// PasswordPrompt supplies the database password when the
	// configuration asks for an interactive prompt. When nil, the
	// terminal is asked.
	PasswordPrompt func(prompt string) (string, error)
}

// Application represents the running tool
type Application struct {
	cfg             *backup.Config
	opts            Options
	engine          *backup.Engine
	logger         *logging.Logger
	displayService *display.Service
	statusView     *display.StatusView
}

// New creates an application from a validated configuration.
func New(cfg *backup.Config, opts Options) (*Application, error) {
	logger, err := buildLogger(cfg, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	displayConfig := display.DefaultDisplayConfig()
	displayConfig.QuietMode = opts.Quiet
	displayConfig.ApplyEnvironment()
	displayService := display.NewService(displayConfig)

	if cfg.Connection.PromptPassword && cfg.Connection.Password == "" {
		prompt := opts.PasswordPrompt
		if prompt == nil {
			prompt = confirmation.NewConfirmationService(displayService).PromptPassword
		}
		password, err := prompt(fmt.Sprintf("Password for %s@%s: ",
			cfg.Connection.Username, cfg.Connection.Host))
		if err != nil {
			return nil, fmt.Errorf("failed to read password: %w", err)
		}
		cfg.Connection.Password = password
	}

	engine, err := backup.NewEngine(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	if cfg.Preflight.Enabled {
		preflight := database.NewPreflight(cfg, logger)
		engine.SetPreflight(preflight.Check)
	}

	return &Application{
		cfg:            cfg,
		opts:           opts,
		engine:         engine,
		logger:         logger,
		displayService: displayService,
		statusView:     display.NewStatusView(displayService),
	}, nil
}

func buildLogger(cfg *backup.Config, opts Options) (*logging.Logger, error) {
	level := logging.LogLevel(cfg.Logging.Level)
	if opts.Quiet {
		level = logging.LogLevelQuiet
	} else if opts.Verbose {
		level = logging.LogLevelVerbose
	}

	logConfig := logging.Config{
		Level:  level,
		Format: cfg.Logging.Format,
	}
	switch {
	case !cfg.Logging.Enabled:
		logConfig.Output = io.Discard
	case cfg.Logging.LogToFile:
		logConfig.LogFile = cfg.Logging.LogFile
	}

	return logging.NewLogger(logConfig)
}

// RunCycle executes one backup cycle (or a dry run) and returns the
// process exit code.
func (app *Application) RunCycle() int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer app.watchSignals(cancel)()

	if app.opts.DryRun {
		return app.runDry()
	}

	result := app.engine.RunCycle(ctx)
	app.statusView.RenderCycleResult(result)

	if result.Failed() {
		app.explainFailure(result.Err)
		return exitCodeFor(result.Err)
	}
	return ExitSuccess
}

// runDry inspects the chain and reports the decision the engine would
// take, without touching anything.
func (app *Application) runDry() int {
	status, err := backup.CollectChainStatus(app.cfg, time.Now())
	if err != nil {
		app.displayService.Error(fmt.Sprintf("Cannot inspect backup root: %v", err))
		return ExitFailure
	}

	snapshot := backup.Snapshot{
		HasBase:          status.HasBase,
		IncrementalCount: status.IncrementalCount,
		NewestEntry:      status.NewestEntry,
	}
	decision, reason := backup.Decide(snapshot, app.cfg, time.Now())

	app.statusView.RenderChainStatus(status)
	app.displayService.PrintHeader("Dry Run")
	app.displayService.PrintKeyValue("Decision", string(decision))
	app.displayService.PrintKeyValue("Reason", string(reason))
	return ExitSuccess
}

// Status collects and renders the chain and archive state.
func (app *Application) Status() int {
	status, err := backup.CollectChainStatus(app.cfg, time.Now())
	if err != nil {
		app.displayService.Error(fmt.Sprintf("Cannot inspect backup root: %v", err))
		return ExitFailure
	}

	app.statusView.RenderChainStatus(status)
	return ExitSuccess
}

// ChainStatus exposes the raw status for commands that prompt on it.
func (app *Application) ChainStatus() (backup.ChainStatus, error) {
	return backup.CollectChainStatus(app.cfg, time.Now())
}

// SealNow archives the current chain immediately, regardless of triggers.
// The caller is expected to have confirmed the operation.
func (app *Application) SealNow() int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer app.watchSignals(cancel)()

	archiver, err := backup.NewArchiver(app.cfg, app.logger)
	if err != nil {
		app.displayService.Error(fmt.Sprintf("Cannot seal: %v", err))
		return ExitFailure
	}

	lock := backup.NewCycleLock(app.cfg, app.logger)
	release, err := lock.Acquire("manual-seal")
	if err != nil {
		app.displayService.Error(fmt.Sprintf("Cannot seal: %v", err))
		return ExitLockHeld
	}
	defer release()

	spinner := app.displayService.StartSpinner("Sealing chain")
	info, err := archiver.SealAndRotate(ctx)
	if err != nil {
		app.displayService.StopSpinner(spinner, "")
		app.displayService.Error(fmt.Sprintf("Seal failed: %v", err))
		return ExitFailure
	}
	app.displayService.StopSpinner(spinner, "")

	// Same contract as the engine's seal path: replication is best
	// effort once the archive has landed.
	replicator := backup.NewOffsiteReplicator(&app.cfg.Offsite, app.logger)
	if err := replicator.Replicate(ctx, info); err != nil {
		app.displayService.Warning(fmt.Sprintf("Offsite replication incomplete: %v", err))
	}

	app.displayService.Success(fmt.Sprintf("Chain sealed into %s (%s)",
		info.Path, display.FormatBytes(info.SizeBytes)))
	return ExitSuccess
}

// DisplayService exposes the display surface for CLI commands.
func (app *Application) DisplayService() *display.Service {
	return app.displayService
}

// GetLogger returns the application logger
func (app *Application) GetLogger() *logging.Logger {
	return app.logger
}

// watchSignals arms a shutdown handler that cancels the cycle context
// on SIGINT/SIGTERM, so the supervised tool is killed and partial
// folders are swept by the engine's normal failure path. The returned
// stop function disarms the handler once the run is over.
func (app *Application) watchSignals(cancel context.CancelFunc) func() {
	handler := appErrors.NewGracefulShutdownHandler()
	handler.RegisterShutdownFunc(func() error {
		app.logger.Warn("Received shutdown signal, cancelling cycle")
		cancel()
		return nil
	})
	handler.Start()
	return handler.Stop
}

// explainFailure writes troubleshooting hints for common failure classes.
func (app *Application) explainFailure(err error) {
	var cycleErr *backup.CycleError
	if !errors.As(err, &cycleErr) {
		return
	}

	switch cycleErr.Type {
	case backup.CycleErrorTypeAuthRejected:
		fmt.Fprintf(os.Stderr, "\nTroubleshooting hints:\n")
		fmt.Fprintf(os.Stderr, "- Verify connection.username and connection.password\n")
		fmt.Fprintf(os.Stderr, "- Check the backup user's privileges (RELOAD, BACKUP_ADMIN)\n")
		fmt.Fprintf(os.Stderr, "- Confirm the user may connect from this host\n")

	case backup.CycleErrorTypeTimeout:
		fmt.Fprintf(os.Stderr, "\nTroubleshooting hints:\n")
		fmt.Fprintf(os.Stderr, "- The tool never asked for a password within the handshake window\n")
		fmt.Fprintf(os.Stderr, "- Run the backup command manually to see where it hangs\n")
		fmt.Fprintf(os.Stderr, "- Increase general.command_timeout_seconds for slow hosts\n")

	case backup.CycleErrorTypeIO:
		fmt.Fprintf(os.Stderr, "\nTroubleshooting hints:\n")
		fmt.Fprintf(os.Stderr, "- Check free disk space under %s\n", app.cfg.Paths.BackupDir)
		fmt.Fprintf(os.Stderr, "- Verify directory permissions for the backup user\n")
		if cycleErr.Context["subsystem"] == "lock" {
			fmt.Fprintf(os.Stderr, "- Another cycle may be running; check the lock file\n")
		}

	case backup.CycleErrorTypeToolExecution:
		fmt.Fprintf(os.Stderr, "\nTroubleshooting hints:\n")
		fmt.Fprintf(os.Stderr, "- Inspect the tool output above for the underlying error\n")
		fmt.Fprintf(os.Stderr, "- Confirm %s matches your server version\n", app.cfg.General.Binary)
	}
}

// exitCodeFor maps failure classes onto process exit codes so timers and
// monitoring can distinguish them.
func exitCodeFor(err error) int {
	switch {
	case backup.IsAuthRejected(err):
		return ExitAuthRejected
	default:
		var cycleErr *backup.CycleError
		if errors.As(err, &cycleErr) && cycleErr.Context["subsystem"] == "lock" {
			return ExitLockHeld
		}
		return ExitFailure
	}
}
