package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xtrabackup-runner/internal/backup"
)

const legacyExport = `{
  "db": {
    "un": "backup_user",
    "pw": "backup_pass",
    "host": "db.internal",
    "port": "3307"
  },
  "folder_names": {
    "base_dir": "/data/backups/",
    "datadir": "mysql/",
    "archivedir": "archive/"
  },
  "file_names": {
    "basefolder_name": "base",
    "incrementalfolder_perfix": "inc_",
    "archive_name_prefix": "database_backup_"
  },
  "general_settings": {
    "backup_command_timeout_seconds": 45,
    "max_time_between_backups_seconds": 72000,
    "additional_bu_command_params": ["no-server-version-check"]
  },
  "archive_settings": {
    "allow_archive": true,
    "archive_zip_format": "gztar",
    "archived_bu_count": 5,
    "enforce_max_num_bu_before_archive": true,
    "max_num_bu_before_archive_count": 4,
    "enforce_archive_at_time": true,
    "archive_at_utc_24_hour": 6
  },
  "log_settings": {
    "is_enabled": true,
    "log_child_process_to_screen": true,
    "is_log_to_file": true,
    "default_log_path": "/var/log/",
    "default_log_file": "xtrabackupautomator.log"
  }
}`

func writeLegacy(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "legacy.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestMigrateLegacyConfiguration(t *testing.T) {
	source := writeLegacy(t, legacyExport)
	target := filepath.Join(t.TempDir(), "config.yaml")

	result := NewMigrationTool(false, false).Migrate(source, target)
	require.NoError(t, result.Error)
	assert.True(t, result.Success)
	assert.Empty(t, result.Warnings)

	cfg, err := backup.NewConfigLoader(target).LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "backup_user", cfg.Connection.Username)
	assert.Equal(t, "backup_pass", cfg.Connection.Password)
	assert.Equal(t, "db.internal", cfg.Connection.Host)
	assert.Equal(t, "3307", cfg.Connection.Port)

	assert.Equal(t, "/data/backups", cfg.Paths.BackupDir)
	assert.Equal(t, "mysql", cfg.Paths.DataDirName)
	assert.Equal(t, "archive", cfg.Paths.ArchiveDirName)

	// The legacy misspelled key maps onto the incremental prefix.
	assert.Equal(t, "inc_", cfg.Naming.IncrementalPrefix)
	assert.Equal(t, "database_backup_", cfg.Naming.ArchivePrefix)

	assert.Equal(t, 45, cfg.General.CommandTimeoutSeconds)
	assert.Equal(t, 72000, cfg.General.MaxBackupAgeSeconds)
	assert.Equal(t, []string{"no-server-version-check"}, cfg.General.ExtraParams)

	assert.True(t, cfg.Archive.Enabled)
	assert.Equal(t, "tar.gz", cfg.Archive.Format)
	assert.Equal(t, 5, cfg.Archive.RetentionCount)
	assert.True(t, cfg.Archive.CountTriggerEnabled)
	assert.Equal(t, 4, cfg.Archive.MaxBackupsBeforeArchive)
	assert.True(t, cfg.Archive.TimeTriggerEnabled)
	assert.Equal(t, 6, cfg.Archive.ArchiveAtUTCHour)

	assert.True(t, cfg.Logging.MirrorChildOutput)
	assert.True(t, cfg.Logging.Enabled)
	assert.True(t, cfg.Logging.LogToFile)
	assert.Equal(t, "/var/log/xtrabackupautomator.log", cfg.Logging.LogFile)
}

func TestMigratePlaceholderCredentialsWarn(t *testing.T) {
	source := writeLegacy(t, `{
  "db": {"un": "YOURUSER", "pw": "YOURPASS", "host": "localhost", "port": "3306"},
  "archive_settings": {"allow_archive": true, "enforce_archive_at_time": true, "archive_at_utc_24_hour": 6}
}`)
	target := filepath.Join(t.TempDir(), "config.yaml")

	result := NewMigrationTool(false, false).Migrate(source, target)
	require.NoError(t, result.Error)
	require.NotEmpty(t, result.Warnings)
	assert.Contains(t, result.Warnings[0], "placeholder credentials")
}

func TestMigrateUnknownFormatWarns(t *testing.T) {
	source := writeLegacy(t, `{
  "db": {"un": "backup_user", "pw": "backup_pass", "host": "localhost", "port": "3306"},
  "archive_settings": {"allow_archive": true, "archive_zip_format": "bztar", "enforce_archive_at_time": true, "archive_at_utc_24_hour": 6}
}`)
	target := filepath.Join(t.TempDir(), "config.yaml")

	result := NewMigrationTool(false, false).Migrate(source, target)
	require.NoError(t, result.Error)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "bztar")

	cfg, err := backup.NewConfigLoader(target).LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "tar.gz", cfg.Archive.Format)
}

func TestMigrateDryRunWritesNothing(t *testing.T) {
	source := writeLegacy(t, legacyExport)
	target := filepath.Join(t.TempDir(), "config.yaml")

	result := NewMigrationTool(true, false).Migrate(source, target)
	require.NoError(t, result.Error)
	assert.True(t, result.Success)

	_, err := os.Stat(target)
	assert.True(t, os.IsNotExist(err))
}

func TestMigratePreservesExistingTarget(t *testing.T) {
	source := writeLegacy(t, legacyExport)
	dir := t.TempDir()
	target := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(target, []byte("keep: me\n"), 0o600))

	result := NewMigrationTool(false, false).Migrate(source, target)
	require.NoError(t, result.Error)

	// The old file survives under a timestamped name.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var backups int
	for _, e := range entries {
		if e.Name() != "config.yaml" {
			backups++
		}
	}
	assert.Equal(t, 1, backups)
}

func TestMigrateMissingSource(t *testing.T) {
	result := NewMigrationTool(false, false).Migrate(
		filepath.Join(t.TempDir(), "nope.json"),
		filepath.Join(t.TempDir(), "config.yaml"))
	assert.Error(t, result.Error)
	assert.False(t, result.Success)
}

func TestMigrateMalformedSource(t *testing.T) {
	source := writeLegacy(t, "{not json")
	result := NewMigrationTool(false, false).Migrate(source, filepath.Join(t.TempDir(), "config.yaml"))
	assert.Error(t, result.Error)
}
