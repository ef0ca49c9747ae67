package backup

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ConfigLoader handles loading and parsing runner configuration
type ConfigLoader struct {
	configPath string
}

// NewConfigLoader creates a new configuration loader
func NewConfigLoader(configPath string) *ConfigLoader {
	return &ConfigLoader{
		configPath: configPath,
	}
}

// LoadConfig loads the runner configuration from file and environment variables
func (cl *ConfigLoader) LoadConfig() (*Config, error) {
	config := &Config{}

	// Set defaults first
	config.SetDefaults()

	// Load from file if it exists
	if cl.configPath != "" {
		if err := cl.loadFromFile(config); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// Override with environment variables
	config.LoadFromEnvironment()

	// Validate the final configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// LoadConfigLenient loads the configuration without validating it. Commands
// that diagnose a broken configuration use this; everything else should call
// LoadConfig.
func (cl *ConfigLoader) LoadConfigLenient() (*Config, error) {
	config := &Config{}
	config.SetDefaults()

	if cl.configPath != "" {
		if err := cl.loadFromFile(config); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	config.LoadFromEnvironment()

	return config, nil
}

// loadFromFile loads configuration from a YAML file
func (cl *ConfigLoader) loadFromFile(config *Config) error {
	// Check if file exists
	if _, err := os.Stat(cl.configPath); os.IsNotExist(err) {
		// File doesn't exist, use defaults
		return nil
	}

	// Read the file
	data, err := os.ReadFile(cl.configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", cl.configPath, err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}

	return nil
}

// SaveConfig saves the runner configuration to a YAML file
func (cl *ConfigLoader) SaveConfig(config *Config) error {
	// Validate configuration before saving
	if err := config.Validate(); err != nil {
		return fmt.Errorf("cannot save invalid configuration: %w", err)
	}

	// Create directory if it doesn't exist
	dir := filepath.Dir(cl.configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Marshal to YAML
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	// Write to file
	if err := os.WriteFile(cl.configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadConfigFromBytes loads configuration from YAML bytes
func LoadConfigFromBytes(data []byte) (*Config, error) {
	config := &Config{}
	config.SetDefaults()

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	// Load environment variables
	config.LoadFromEnvironment()

	// Validate
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// GenerateDefaultConfigYAML generates a default configuration as YAML with comments
func GenerateDefaultConfigYAML() ([]byte, error) {
	configYAML := `# xtrabackup-runner configuration
# One backup cycle runs per invocation; schedule invocations with cron.

# Database credentials handed to xtrabackup. The password is written to the
# tool's stdin, never to its command line. Prefer setting it via the
# XTRABACKUP_RUNNER_PASSWORD environment variable.
connection:
  username: YOURUSER
  password: YOURPASS
  # Leave password empty and set prompt_password to be asked at startup
  # instead of keeping the password on disk.
  prompt_password: false
  host: localhost
  port: "3306"

# Directory layout. The live chain (base + incrementals) lives under
# <backup_dir>/<datadir_name>, sealed archives under
# <backup_dir>/<archive_dir_name>.
paths:
  backup_dir: /data/backups
  datadir_name: mysql
  archive_dir_name: archive

# Names the runner recognizes on disk.
naming:
  base_dir_name: base
  incremental_prefix: inc_
  archive_prefix: database_backup_

general:
  # Backup tool binary; resolved on PATH unless absolute.
  binary: xtrabackup
  use_sudo: true

  # Deadline for the password handshake and each tool run.
  command_timeout_seconds: 30

  # A chain whose newest entry is older than this is considered stale
  # and gets sealed (or discarded when archiving is disabled).
  max_backup_age_seconds: 72000

  # Extra long flags appended to every invocation, without leading dashes.
  extra_params:
    - no-server-version-check

archive:
  # When false, chains are never sealed; a stale chain is discarded and
  # restarted instead.
  enabled: true

  # Archive container: tar.gz, tar.zst, tar.lz4 or tar.
  format: tar.gz

  # Number of archives kept after each seal. Older archives and stray
  # files in the archive directory are deleted.
  retention_count: 7

  # Seal once the chain holds this many incrementals.
  count_trigger_enabled: false
  max_backups_before_archive: 4

  # Seal during this UTC hour. Fires on every cycle that runs within the
  # hour, so keep cron cadence at one run per hour or slower.
  time_trigger_enabled: true
  archive_at_utc_hour: 6

logging:
  enabled: true
  # quiet, normal, verbose or debug
  level: normal
  # text or json
  format: text
  log_to_file: true
  log_file: /var/log/xtrabackup-runner.log
  # Stream the tool's own output into the log at debug level.
  mirror_child_output: true

# Optional connectivity check before the cycle starts.
preflight:
  enabled: false
  ping_timeout_seconds: 5
  fail_on_unreachable: false

# Optional archive encryption (AES-256-GCM).
encryption:
  enabled: false
  # env, file or passphrase
  key_source: env
  key_env_var: XTRABACKUP_RUNNER_ENCRYPTION_KEY
  # key_file: /etc/xtrabackup-runner/archive.key
  # passphrase_env_var: XTRABACKUP_RUNNER_PASSPHRASE

# Optional replication of sealed archives to a second location.
# Upload failures are logged and retried but never fail the cycle.
offsite:
  enabled: false
  # local, s3, azure or gcs
  provider: s3
  retry_attempts: 3
  # local:
  #   path: /mnt/nfs/mysql-archives
  # s3:
  #   bucket: my-archive-bucket
  #   region: us-east-1
  #   access_key: ""
  #   secret_key: ""
  #   prefix: mysql/
  # azure:
  #   account_name: myaccount
  #   account_key: ""
  #   container: archives
  # gcs:
  #   bucket: my-archive-bucket
  #   credentials_path: /path/to/credentials.json
  #   project_id: my-project

# Optional cycle outcome notifications.
notifications:
  enabled: false
  # info, warning, error or critical
  min_severity: warning
  # webhook:
  #   url: https://example.com/hooks/backup
  #   timeout_seconds: 10
  # slack:
  #   webhook_url: https://hooks.slack.com/services/XXX
  #   channel: "#backups"
  #   username: xtrabackup-runner
  # file:
  #   path: /var/log/xtrabackup-runner-alerts.log

# Per-cycle JSON report, off by default. Written to <backup_dir>/reports
# unless dir is set.
report:
  enabled: false
  dir: ""
`

	return []byte(configYAML), nil
}
