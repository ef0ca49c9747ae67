// Package config provides environment checks and legacy configuration
// migration for the runner.
package config

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"xtrabackup-runner/internal/backup"
)

// EnvironmentChecker verifies a host is ready to run backup cycles
type EnvironmentChecker struct {
	config  *backup.Config
	verbose bool
}

// NewEnvironmentChecker creates a checker for the given configuration
func NewEnvironmentChecker(config *backup.Config, verbose bool) *EnvironmentChecker {
	return &EnvironmentChecker{
		config:  config,
		verbose: verbose,
	}
}

// CheckResult represents the result of an environment check
type CheckResult struct {
	Success          bool
	ConfigValid      bool
	DirectoriesOK    bool
	ToolOK           bool
	LockFree         bool
	EncryptionOK     bool
	Warnings         []string
	Errors           []string
	RecommendedFixes []string
}

// Check validates the configuration and probes the host environment. It
// never modifies the backup chain; directory probes only touch temp files.
func (ec *EnvironmentChecker) Check() (*CheckResult, error) {
	result := &CheckResult{
		Success:       true,
		ConfigValid:   true,
		DirectoriesOK: true,
		ToolOK:        true,
		LockFree:      true,
		EncryptionOK:  true,
	}

	if err := ec.config.Validate(); err != nil {
		result.Success = false
		result.ConfigValid = false
		result.Errors = append(result.Errors, fmt.Sprintf("Configuration invalid: %v", err))
	}

	if err := ec.checkDirectories(result); err != nil {
		result.Success = false
		result.DirectoriesOK = false
		result.Errors = append(result.Errors, fmt.Sprintf("Directory check failed: %v", err))
	}

	if err := ec.checkTool(result); err != nil {
		result.Success = false
		result.ToolOK = false
		result.Errors = append(result.Errors, fmt.Sprintf("Backup tool check failed: %v", err))
	}

	ec.checkLock(result)

	if err := ec.checkEncryption(); err != nil {
		result.Success = false
		result.EncryptionOK = false
		result.Errors = append(result.Errors, fmt.Sprintf("Encryption check failed: %v", err))
	}

	ec.generateRecommendations(result)

	return result, nil
}

// checkDirectories verifies the backup and archive directories are
// creatable and writable.
func (ec *EnvironmentChecker) checkDirectories(result *CheckResult) error {
	dirs := []string{ec.config.Paths.BackupDir, ec.config.BackupRoot()}
	if ec.config.Archive.Enabled {
		dirs = append(dirs, ec.config.ArchiveRoot())
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("cannot create %s: %w", dir, err)
		}

		probe := filepath.Join(dir, ".write_probe")
		if err := os.WriteFile(probe, []byte("probe"), 0o600); err != nil {
			return fmt.Errorf("%s is not writable: %w", dir, err)
		}
		os.Remove(probe)

		if ec.verbose {
			fmt.Printf("Directory writable: %s\n", dir)
		}
	}

	return nil
}

// checkTool verifies the backup binary (and sudo when configured) resolves
// on PATH.
func (ec *EnvironmentChecker) checkTool(result *CheckResult) error {
	path, err := exec.LookPath(ec.config.General.Binary)
	if err != nil {
		return fmt.Errorf("%s not found on PATH", ec.config.General.Binary)
	}
	if ec.verbose {
		fmt.Printf("Backup tool: %s\n", path)
	}

	if ec.config.General.UseSudo {
		if _, err := exec.LookPath("sudo"); err != nil {
			return fmt.Errorf("use_sudo is set but sudo not found on PATH")
		}
	}

	return nil
}

// checkLock reports a held cycle lock as a warning, since it may belong to
// a cycle that is legitimately running right now.
func (ec *EnvironmentChecker) checkLock(result *CheckResult) {
	lockPath := ec.config.BackupRoot() + ".lock"
	if _, err := os.Stat(lockPath); err == nil {
		result.LockFree = false
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("Lock file %s exists; a cycle may be running", lockPath))
	}
}

// checkEncryption verifies the configured key source actually yields a key.
func (ec *EnvironmentChecker) checkEncryption() error {
	if !ec.config.Encryption.Enabled {
		return nil
	}

	enc := backup.NewArchiveEncryption(&ec.config.Encryption)
	if _, _, err := enc.Seal([]byte("probe")); err != nil {
		return fmt.Errorf("cannot seal with configured key: %w", err)
	}
	return nil
}

func (ec *EnvironmentChecker) generateRecommendations(result *CheckResult) {
	if !result.ToolOK {
		result.RecommendedFixes = append(result.RecommendedFixes,
			"Install Percona XtraBackup and verify it is on PATH for the user running the cycle")
	}
	if !result.DirectoriesOK {
		result.RecommendedFixes = append(result.RecommendedFixes,
			"Create the backup directory and grant write permission to the backup user")
	}
	if !result.LockFree {
		result.RecommendedFixes = append(result.RecommendedFixes,
			"If no cycle is running, the next run will break the stale lock automatically")
	}
	if ec.config.Connection.Password == "" && !ec.config.Connection.PromptPassword {
		result.Warnings = append(result.Warnings,
			"No database password configured; the backup tool will be fed an empty password")
	}
}
