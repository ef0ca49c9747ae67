package backup

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConfigLoader_LoadConfig(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "config.yaml")

	configYAML := `
connection:
  username: backup
  password: secret
  prompt_password: false
  host: db.internal
  port: "3307"
paths:
  backup_dir: /srv/backups
archive:
  retention_count: 3
  count_trigger_enabled: true
  max_backups_before_archive: 2
`
	if err := os.WriteFile(configPath, []byte(configYAML), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	loader := NewConfigLoader(configPath)
	config, err := loader.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if config.Connection.Username != "backup" {
		t.Errorf("Expected username backup, got %s", config.Connection.Username)
	}

	if config.Connection.Host != "db.internal" {
		t.Errorf("Expected host db.internal, got %s", config.Connection.Host)
	}

	if config.Paths.BackupDir != "/srv/backups" {
		t.Errorf("Expected backup dir /srv/backups, got %s", config.Paths.BackupDir)
	}

	if config.Archive.RetentionCount != 3 {
		t.Errorf("Expected retention count 3, got %d", config.Archive.RetentionCount)
	}

	if !config.Archive.CountTriggerEnabled {
		t.Error("Expected count trigger to be enabled")
	}

	// Values absent from the file keep their defaults
	if config.Paths.DataDirName != "mysql" {
		t.Errorf("Expected default datadir name, got %s", config.Paths.DataDirName)
	}

	if config.General.CommandTimeoutSeconds != 30 {
		t.Errorf("Expected default command timeout, got %d", config.General.CommandTimeoutSeconds)
	}
}

func TestConfigLoader_LoadConfig_NonExistentFile(t *testing.T) {
	loader := NewConfigLoader("/nonexistent/config.yaml")
	config, err := loader.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() with missing file should fall back to defaults, got error: %v", err)
	}

	if config.Connection.Host != "localhost" {
		t.Errorf("Expected default host, got %s", config.Connection.Host)
	}

	if !config.Archive.Enabled {
		t.Error("Expected archiving enabled by default")
	}
}

func TestConfigLoader_LoadConfig_WithEnvironmentOverrides(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "config.yaml")

	configYAML := `
connection:
  host: db.internal
`
	if err := os.WriteFile(configPath, []byte(configYAML), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	os.Setenv("XTRABACKUP_RUNNER_HOST", "db.override")
	os.Setenv("XTRABACKUP_RUNNER_RETENTION_COUNT", "9")
	defer func() {
		os.Unsetenv("XTRABACKUP_RUNNER_HOST")
		os.Unsetenv("XTRABACKUP_RUNNER_RETENTION_COUNT")
	}()

	loader := NewConfigLoader(configPath)
	config, err := loader.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if config.Connection.Host != "db.override" {
		t.Errorf("Expected environment to override host, got %s", config.Connection.Host)
	}

	if config.Archive.RetentionCount != 9 {
		t.Errorf("Expected environment to override retention count, got %d", config.Archive.RetentionCount)
	}
}

func TestConfigLoader_LoadConfig_InvalidConfig(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "config.yaml")

	configYAML := `
archive:
  retention_count: -5
`
	if err := os.WriteFile(configPath, []byte(configYAML), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	loader := NewConfigLoader(configPath)
	if _, err := loader.LoadConfig(); err == nil {
		t.Error("Expected validation error for negative retention count")
	}
}

func TestConfigLoader_SaveConfig(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "nested", "config.yaml")

	config := &Config{}
	config.SetDefaults()
	config.Connection.Host = "db.saved"

	loader := NewConfigLoader(configPath)
	if err := loader.SaveConfig(config); err != nil {
		t.Fatalf("SaveConfig() error = %v", err)
	}

	reloaded, err := loader.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() after save error = %v", err)
	}

	if reloaded.Connection.Host != "db.saved" {
		t.Errorf("Expected saved host, got %s", reloaded.Connection.Host)
	}
}

func TestConfigLoader_SaveConfig_InvalidConfig(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "config.yaml")

	config := &Config{}
	config.SetDefaults()
	config.Archive.RetentionCount = -1

	loader := NewConfigLoader(configPath)
	if err := loader.SaveConfig(config); err == nil {
		t.Error("Expected SaveConfig to reject invalid configuration")
	}
}

func TestLoadConfigFromBytes(t *testing.T) {
	configYAML := `
connection:
  username: backup
general:
  command_timeout_seconds: 60
`
	config, err := LoadConfigFromBytes([]byte(configYAML))
	if err != nil {
		t.Fatalf("LoadConfigFromBytes() error = %v", err)
	}

	if config.Connection.Username != "backup" {
		t.Errorf("Expected username backup, got %s", config.Connection.Username)
	}

	if config.General.CommandTimeoutSeconds != 60 {
		t.Errorf("Expected command timeout 60, got %d", config.General.CommandTimeoutSeconds)
	}
}

func TestLoadConfigFromBytes_InvalidYAML(t *testing.T) {
	if _, err := LoadConfigFromBytes([]byte("{{not yaml")); err == nil {
		t.Error("Expected error for invalid YAML")
	}
}

func TestGenerateDefaultConfigYAML(t *testing.T) {
	data, err := GenerateDefaultConfigYAML()
	if err != nil {
		t.Fatalf("GenerateDefaultConfigYAML() error = %v", err)
	}

	if !strings.Contains(string(data), "archive_at_utc_hour: 6") {
		t.Error("Expected generated YAML to document the archive hour default")
	}

	// The generated template must round-trip through the loader
	config, err := LoadConfigFromBytes(data)
	if err != nil {
		t.Fatalf("Generated config does not load: %v", err)
	}

	if config.Archive.RetentionCount != 7 {
		t.Errorf("Expected retention count 7 from template, got %d", config.Archive.RetentionCount)
	}

	if config.Naming.ArchivePrefix != "database_backup_" {
		t.Errorf("Expected archive prefix from template, got %s", config.Naming.ArchivePrefix)
	}

	if config.Report.Enabled {
		t.Error("Expected reporting to be off in the template")
	}

	if config.Connection.PromptPassword {
		t.Error("Expected prompt_password to be off in the template")
	}
}
