package cmd

import (
	"fmt"

	"xtrabackup-runner/internal/application"
	"xtrabackup-runner/internal/backup"
	"xtrabackup-runner/internal/config"
	"xtrabackup-runner/internal/display"

	"github.com/spf13/cobra"
)

// checkCmd probes the host before the first scheduled cycle runs: config,
// directories, tool binary, lock and encryption material.
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the host is ready to run backup cycles",
	Long: `Check validates the configuration and probes the environment it points
at: backup and archive directories are created and write-tested, the backup
tool binary is resolved on PATH, a held cycle lock is reported, and archive
encryption key material is exercised when encryption is enabled.

Run this once after installing or reconfiguring the runner. The command exits
non-zero when any probe fails; warnings alone do not fail it.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := validateFlags(); err != nil {
			return err
		}

		// Load leniently so a broken config is reported by the checker
		// instead of aborting the command.
		cfg, err := backup.NewConfigLoader(configPath()).LoadConfigLenient()
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}

		checker := config.NewEnvironmentChecker(cfg, verbose)
		result, err := checker.Check()
		if err != nil {
			return fmt.Errorf("environment check aborted: %w", err)
		}

		renderCheckResult(result)

		if !result.Success {
			exitCode = application.ExitFailure
		}
		return nil
	},
}

func renderCheckResult(result *config.CheckResult) {
	displayConfig := display.DefaultDisplayConfig()
	displayConfig.QuietMode = quiet
	displayConfig.ApplyEnvironment()
	ds := display.NewService(displayConfig)

	ds.PrintHeader("Environment Check")
	ds.PrintKeyValue("Configuration", checkMark(result.ConfigValid))
	ds.PrintKeyValue("Directories", checkMark(result.DirectoriesOK))
	ds.PrintKeyValue("Backup tool", checkMark(result.ToolOK))
	ds.PrintKeyValue("Cycle lock", checkMark(result.LockFree))
	ds.PrintKeyValue("Encryption", checkMark(result.EncryptionOK))

	for _, warning := range result.Warnings {
		ds.Warning(warning)
	}
	for _, failure := range result.Errors {
		ds.Error(failure)
	}
	for _, fix := range result.RecommendedFixes {
		ds.Info(fix)
	}

	if result.Success {
		ds.Success("Host is ready to run backup cycles")
	} else {
		ds.Error("Host is not ready; fix the errors above and re-run check")
	}
}

func checkMark(ok bool) string {
	if ok {
		return "ok"
	}
	return "failed"
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
