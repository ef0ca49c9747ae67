package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"xtrabackup-runner/internal/backup"
)

// MigrationTool converts configuration exported from the legacy Python
// automator into a runner configuration file. The legacy tool kept its
// settings as a literal dict in its source; operators export that dict as
// JSON and feed it here.
type MigrationTool struct {
	dryRun  bool
	verbose bool
}

// NewMigrationTool creates a configuration migration tool
func NewMigrationTool(dryRun, verbose bool) *MigrationTool {
	return &MigrationTool{
		dryRun:  dryRun,
		verbose: verbose,
	}
}

// MigrationResult represents the result of a configuration migration
type MigrationResult struct {
	SourcePath string
	TargetPath string
	Success    bool
	Warnings   []string
	Error      error
}

// legacyConfig mirrors the legacy tool's config dict, misspellings
// included.
type legacyConfig struct {
	DB struct {
		Username string `json:"un"`
		Password string `json:"pw"`
		Host     string `json:"host"`
		Port     string `json:"port"`
	} `json:"db"`
	FolderNames struct {
		BaseDir    string `json:"base_dir"`
		DataDir    string `json:"datadir"`
		ArchiveDir string `json:"archivedir"`
	} `json:"folder_names"`
	FileNames struct {
		BaseFolderName    string `json:"basefolder_name"`
		IncrementalPrefix string `json:"incrementalfolder_perfix"`
		ArchiveNamePrefix string `json:"archive_name_prefix"`
	} `json:"file_names"`
	GeneralSettings struct {
		CommandTimeoutSeconds    int      `json:"backup_command_timeout_seconds"`
		MaxTimeBetweenBackupsSec int      `json:"max_time_between_backups_seconds"`
		AdditionalParams         []string `json:"additional_bu_command_params"`
	} `json:"general_settings"`
	ArchiveSettings struct {
		AllowArchive          bool   `json:"allow_archive"`
		ZipFormat             string `json:"archive_zip_format"`
		ArchivedCount         int    `json:"archived_bu_count"`
		EnforceMaxNumBackups  bool   `json:"enforce_max_num_bu_before_archive"`
		MaxNumBackupsCount    int    `json:"max_num_bu_before_archive_count"`
		EnforceArchiveAtTime  bool   `json:"enforce_archive_at_time"`
		ArchiveAtUTC24Hour    int    `json:"archive_at_utc_24_hour"`
	} `json:"archive_settings"`
	LogSettings struct {
		IsEnabled         bool   `json:"is_enabled"`
		LogChildToScreen  bool   `json:"log_child_process_to_screen"`
		IsLogToFile       bool   `json:"is_log_to_file"`
		DefaultLogPath    string `json:"default_log_path"`
		DefaultLogFile    string `json:"default_log_file"`
	} `json:"log_settings"`
}

// Migrate reads a legacy JSON export and writes an equivalent runner
// configuration to targetPath. In dry-run mode nothing is written.
func (mt *MigrationTool) Migrate(sourcePath, targetPath string) MigrationResult {
	result := MigrationResult{
		SourcePath: sourcePath,
		TargetPath: targetPath,
	}

	data, err := os.ReadFile(sourcePath)
	if err != nil {
		result.Error = fmt.Errorf("failed to read legacy configuration: %w", err)
		return result
	}

	var legacy legacyConfig
	if err := json.Unmarshal(data, &legacy); err != nil {
		result.Error = fmt.Errorf("failed to parse legacy configuration: %w", err)
		return result
	}

	cfg, warnings := mt.convert(legacy)
	result.Warnings = warnings

	if err := cfg.Validate(); err != nil {
		result.Error = fmt.Errorf("migrated configuration is invalid: %w", err)
		return result
	}

	if mt.dryRun {
		if mt.verbose {
			fmt.Printf("Dry run: would write %s\n", targetPath)
		}
		result.Success = true
		return result
	}

	if existing, err := os.Stat(targetPath); err == nil && existing.Size() > 0 {
		backupPath := fmt.Sprintf("%s.bak.%s", targetPath, time.Now().Format("20060102_150405"))
		if err := os.Rename(targetPath, backupPath); err != nil {
			result.Error = fmt.Errorf("failed to back up existing configuration: %w", err)
			return result
		}
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("Existing configuration moved to %s", backupPath))
	}

	loader := backup.NewConfigLoader(targetPath)
	if err := loader.SaveConfig(cfg); err != nil {
		result.Error = fmt.Errorf("failed to write configuration: %w", err)
		return result
	}

	result.Success = true
	if mt.verbose {
		fmt.Printf("Migrated %s to %s\n", sourcePath, targetPath)
	}
	return result
}

// convert maps legacy fields onto the runner configuration. Unset legacy
// fields keep the runner defaults.
func (mt *MigrationTool) convert(legacy legacyConfig) (*backup.Config, []string) {
	var warnings []string

	cfg := &backup.Config{}
	cfg.SetDefaults()

	if legacy.DB.Username != "" {
		cfg.Connection.Username = legacy.DB.Username
	}
	if legacy.DB.Password != "" {
		cfg.Connection.Password = legacy.DB.Password
	}
	// The legacy source shipped with these literals in place of real
	// credentials.
	if legacy.DB.Username == "YOURUSER" || legacy.DB.Password == "YOURPASS" {
		warnings = append(warnings,
			"Legacy placeholder credentials carried over; set connection.username and connection.password")
	}
	if legacy.DB.Host != "" {
		cfg.Connection.Host = legacy.DB.Host
	}
	if legacy.DB.Port != "" {
		cfg.Connection.Port = legacy.DB.Port
	}

	// The legacy tool concatenated paths, so its directory values carry
	// trailing slashes.
	if legacy.FolderNames.BaseDir != "" {
		cfg.Paths.BackupDir = filepath.Clean(legacy.FolderNames.BaseDir)
	}
	if legacy.FolderNames.DataDir != "" {
		cfg.Paths.DataDirName = filepath.Clean(legacy.FolderNames.DataDir)
	}
	if legacy.FolderNames.ArchiveDir != "" {
		cfg.Paths.ArchiveDirName = filepath.Clean(legacy.FolderNames.ArchiveDir)
	}

	if legacy.FileNames.BaseFolderName != "" {
		cfg.Naming.BaseDirName = legacy.FileNames.BaseFolderName
	}
	if legacy.FileNames.IncrementalPrefix != "" {
		cfg.Naming.IncrementalPrefix = legacy.FileNames.IncrementalPrefix
	}
	if legacy.FileNames.ArchiveNamePrefix != "" {
		cfg.Naming.ArchivePrefix = legacy.FileNames.ArchiveNamePrefix
	}

	if legacy.GeneralSettings.CommandTimeoutSeconds > 0 {
		cfg.General.CommandTimeoutSeconds = legacy.GeneralSettings.CommandTimeoutSeconds
	}
	if legacy.GeneralSettings.MaxTimeBetweenBackupsSec > 0 {
		cfg.General.MaxBackupAgeSeconds = legacy.GeneralSettings.MaxTimeBetweenBackupsSec
	}
	if len(legacy.GeneralSettings.AdditionalParams) > 0 {
		cfg.General.ExtraParams = legacy.GeneralSettings.AdditionalParams
	}

	cfg.Archive.Enabled = legacy.ArchiveSettings.AllowArchive
	cfg.Archive.Format, warnings = mt.convertFormat(legacy.ArchiveSettings.ZipFormat, warnings)
	if legacy.ArchiveSettings.ArchivedCount > 0 {
		cfg.Archive.RetentionCount = legacy.ArchiveSettings.ArchivedCount
	}
	cfg.Archive.CountTriggerEnabled = legacy.ArchiveSettings.EnforceMaxNumBackups
	if legacy.ArchiveSettings.MaxNumBackupsCount > 0 {
		cfg.Archive.MaxBackupsBeforeArchive = legacy.ArchiveSettings.MaxNumBackupsCount
	}
	cfg.Archive.TimeTriggerEnabled = legacy.ArchiveSettings.EnforceArchiveAtTime
	cfg.Archive.ArchiveAtUTCHour = legacy.ArchiveSettings.ArchiveAtUTC24Hour

	cfg.Logging.MirrorChildOutput = legacy.LogSettings.LogChildToScreen
	cfg.Logging.Enabled = legacy.LogSettings.IsEnabled
	cfg.Logging.LogToFile = legacy.LogSettings.IsEnabled && legacy.LogSettings.IsLogToFile
	if cfg.Logging.LogToFile && legacy.LogSettings.DefaultLogPath != "" {
		cfg.Logging.LogFile = filepath.Join(legacy.LogSettings.DefaultLogPath, legacy.LogSettings.DefaultLogFile)
	}

	return cfg, warnings
}

// convertFormat maps the legacy shutil format names onto archive formats.
func (mt *MigrationTool) convertFormat(legacyFormat string, warnings []string) (string, []string) {
	switch legacyFormat {
	case "", "gztar":
		return "tar.gz", warnings
	case "tar":
		return "tar", warnings
	default:
		warnings = append(warnings,
			fmt.Sprintf("Unsupported legacy archive format %q, using tar.gz", legacyFormat))
		return "tar.gz", warnings
	}
}
