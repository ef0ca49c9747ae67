package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xtrabackup-runner/internal/application"
)

// runCommand executes the CLI with the given args and returns the combined
// cobra output. Flag variables are reset first because cobra keeps parsed
// values between Execute calls.
func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cfgFile = ""
	dryRun = false
	verbose = false
	quiet = false
	statusJSON = false
	exitCode = application.ExitSuccess

	buf := &bytes.Buffer{}
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return buf.String(), err
}

func writeRunnerConfig(t *testing.T, backupDir string) string {
	t.Helper()

	content := fmt.Sprintf(`connection:
  username: backup
  password: secret
  host: localhost
  port: "3306"
paths:
  backup_dir: %s
  datadir_name: mysql
  archive_dir_name: archive
general:
  binary: xtrabackup
  use_sudo: false
  command_timeout_seconds: 30
  max_backup_age_seconds: 72000
archive:
  enabled: true
  format: tar.gz
  retention_count: 3
  time_trigger_enabled: false
logging:
  level: quiet
  format: text
  log_to_file: false
`, backupDir)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestVersionCommand(t *testing.T) {
	SetVersionInfo("1.2.3", "2026-01-01", "abcdef0", "go1.24")

	out, err := runCommand(t, "version")
	require.NoError(t, err)

	assert.Contains(t, out, "xtrabackup-runner version 1.2.3")
	assert.Contains(t, out, "Commit: abcdef0")
}

func TestVerboseAndQuietAreExclusive(t *testing.T) {
	_, err := runCommand(t, "status", "--verbose", "--quiet")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mutually exclusive")
}

func TestConfigInitWritesFile(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.yaml")

	out, err := runCommand(t, "config", "init", "--output", target)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote default configuration")

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(data), "connection:")
	assert.Contains(t, string(data), "archive:")
}

func TestConfigInitRefusesOverwrite(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(target, []byte("existing"), 0600))

	_, err := runCommand(t, "config", "init", "--output", target)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	// The existing file is untouched.
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "existing", string(data))

	_, err = runCommand(t, "config", "init", "--output", target, "--force")
	require.NoError(t, err)
}

func TestConfigInitToStdout(t *testing.T) {
	out, err := runCommand(t, "config", "init", "--output", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "xtrabackup-runner configuration")
}

func TestConfigValidate(t *testing.T) {
	backupDir := t.TempDir()
	cfgPath := writeRunnerConfig(t, backupDir)

	out, err := runCommand(t, "config", "validate", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration is valid")
	assert.Contains(t, out, filepath.Join(backupDir, "mysql"))
}

func TestConfigValidateReportsProblems(t *testing.T) {
	content := `connection:
  username: ""
  port: "not-a-port"
`
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0600))

	_, err := runCommand(t, "config", "validate", "--config", cfgPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection.username")
	assert.Contains(t, err.Error(), "connection.port")
}

func TestConfigShowRedactsSecrets(t *testing.T) {
	cfgPath := writeRunnerConfig(t, t.TempDir())

	out, err := runCommand(t, "config", "show", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "username: backup")
	assert.Contains(t, out, redactedValue)
	assert.NotContains(t, out, "secret")
}

func TestConfigMigrate(t *testing.T) {
	legacy := `{
		"db": {"un": "backup", "pw": "hunter2", "host": "127.0.0.1", "port": "3306"},
		"archive_settings": {"allow_archive": true, "archive_zip_format": "gztar", "archived_bu_count": 5}
	}`
	dir := t.TempDir()
	source := filepath.Join(dir, "legacy.json")
	target := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(source, []byte(legacy), 0600))

	out, err := runCommand(t, "config", "migrate", source, target)
	require.NoError(t, err)
	assert.Contains(t, out, "Migrated")

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(data), "username: backup")
	assert.Contains(t, string(data), "format: tar.gz")
	assert.Contains(t, string(data), "retention_count: 5")
}

func TestConfigMigrateDryRun(t *testing.T) {
	legacy := `{"db": {"un": "backup", "pw": "hunter2", "host": "127.0.0.1", "port": "3306"}}`
	dir := t.TempDir()
	source := filepath.Join(dir, "legacy.json")
	target := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(source, []byte(legacy), 0600))

	out, err := runCommand(t, "config", "migrate", "--dry-run", source, target)
	require.NoError(t, err)
	assert.Contains(t, out, "Dry run")
	assert.NoFileExists(t, target)
}

func TestStatusOnEmptyHost(t *testing.T) {
	cfgPath := writeRunnerConfig(t, t.TempDir())

	_, err := runCommand(t, "status", "--config", cfgPath, "--quiet")
	require.NoError(t, err)
	assert.Equal(t, application.ExitSuccess, exitCode)
}

func TestStatusJSON(t *testing.T) {
	backupDir := t.TempDir()
	cfgPath := writeRunnerConfig(t, backupDir)

	root := filepath.Join(backupDir, "mysql")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "base"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "inc_1"), 0755))

	out, err := runCommand(t, "status", "--json", "--config", cfgPath)
	require.NoError(t, err)

	var status struct {
		HasBase          bool `json:"has_base"`
		IncrementalCount int  `json:"incremental_count"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.True(t, status.HasBase)
	assert.Equal(t, 1, status.IncrementalCount)
}

func TestDryRunDoesNotTouchChain(t *testing.T) {
	backupDir := t.TempDir()
	cfgPath := writeRunnerConfig(t, backupDir)

	_, err := runCommand(t, "--dry-run", "--quiet", "--config", cfgPath)
	require.NoError(t, err)
	assert.Equal(t, application.ExitSuccess, exitCode)

	// A dry run must not create the backup root.
	assert.NoDirExists(t, filepath.Join(backupDir, "mysql"))
}

func TestSealWithoutBase(t *testing.T) {
	cfgPath := writeRunnerConfig(t, t.TempDir())

	_, err := runCommand(t, "seal", "--yes", "--config", cfgPath, "--quiet")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to seal")
}

func TestSealOnSeededChain(t *testing.T) {
	backupDir := t.TempDir()
	cfgPath := writeRunnerConfig(t, backupDir)

	root := filepath.Join(backupDir, "mysql")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "base"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "base", "ibdata1"), []byte("data"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "inc_1"), 0755))

	_, err := runCommand(t, "seal", "--yes", "--config", cfgPath, "--quiet")
	require.NoError(t, err)
	assert.Equal(t, application.ExitSuccess, exitCode)

	// The chain is gone and one archive exists.
	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)

	archives, err := os.ReadDir(filepath.Join(backupDir, "archive"))
	require.NoError(t, err)
	require.Len(t, archives, 1)
	assert.Contains(t, archives[0].Name(), "database_backup_")
}

func TestCheckOnPreparedHost(t *testing.T) {
	backupDir := t.TempDir()
	cfgPath := writeRunnerConfig(t, backupDir)

	tool := filepath.Join(t.TempDir(), "xtrabackup")
	require.NoError(t, os.WriteFile(tool, []byte("#!/bin/sh\nexit 0\n"), 0755))
	t.Setenv("PATH", filepath.Dir(tool)+string(os.PathListSeparator)+os.Getenv("PATH"))

	_, err := runCommand(t, "check", "--config", cfgPath, "--quiet")
	require.NoError(t, err)
	assert.Equal(t, application.ExitSuccess, exitCode)
}
