package backup

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config represents the complete runner configuration
type Config struct {
	Connection    ConnectionConfig    `yaml:"connection"`
	Paths         PathsConfig         `yaml:"paths"`
	Naming        NamingConfig        `yaml:"naming"`
	General       GeneralConfig       `yaml:"general"`
	Archive       ArchiveConfig       `yaml:"archive"`
	Logging       LoggingConfig       `yaml:"logging"`
	Preflight     PreflightConfig     `yaml:"preflight"`
	Encryption    EncryptionConfig    `yaml:"encryption"`
	Offsite       OffsiteConfig       `yaml:"offsite"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Report        ReportConfig        `yaml:"report"`
}

// ConnectionConfig holds the database credentials handed to xtrabackup
type ConnectionConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	// PromptPassword asks for the password on the terminal at startup
	// when Password is empty, so it never has to live on disk.
	PromptPassword bool   `yaml:"prompt_password"`
	Host           string `yaml:"host"`
	// Port is kept as a string because it is only ever spliced into
	// command lines and DSNs.
	Port string `yaml:"port"`
}

// PathsConfig holds the directory layout
type PathsConfig struct {
	// BackupDir is the parent of both the backup root and the archive
	// directory.
	BackupDir string `yaml:"backup_dir"`
	// DataDirName is the name of the backup root under BackupDir. The
	// live chain (base + incrementals) lives here.
	DataDirName string `yaml:"datadir_name"`
	// ArchiveDirName is the name of the archive directory under BackupDir.
	ArchiveDirName string `yaml:"archive_dir_name"`
}

// NamingConfig holds the names the inspector and archiver recognize
type NamingConfig struct {
	BaseDirName       string `yaml:"base_dir_name"`
	IncrementalPrefix string `yaml:"incremental_prefix"`
	ArchivePrefix     string `yaml:"archive_prefix"`
}

// GeneralConfig holds tool invocation settings
type GeneralConfig struct {
	Binary                string   `yaml:"binary"`
	UseSudo               bool     `yaml:"use_sudo"`
	CommandTimeoutSeconds int      `yaml:"command_timeout_seconds"`
	MaxBackupAgeSeconds   int      `yaml:"max_backup_age_seconds"`
	ExtraParams           []string `yaml:"extra_params"`
}

// ArchiveConfig holds seal triggers and retention settings
type ArchiveConfig struct {
	Enabled                 bool   `yaml:"enabled"`
	Format                  string `yaml:"format"`
	RetentionCount          int    `yaml:"retention_count"`
	CountTriggerEnabled     bool   `yaml:"count_trigger_enabled"`
	MaxBackupsBeforeArchive int    `yaml:"max_backups_before_archive"`
	TimeTriggerEnabled      bool   `yaml:"time_trigger_enabled"`
	ArchiveAtUTCHour        int    `yaml:"archive_at_utc_hour"`
}

// LoggingConfig holds log output settings
type LoggingConfig struct {
	// Enabled is the master switch; false silences the runner's own
	// log output entirely.
	Enabled           bool   `yaml:"enabled"`
	Level             string `yaml:"level"`
	Format            string `yaml:"format"`
	LogToFile         bool   `yaml:"log_to_file"`
	LogFile           string `yaml:"log_file"`
	MirrorChildOutput bool   `yaml:"mirror_child_output"`
}

// PreflightConfig holds the optional pre-cycle connectivity check
type PreflightConfig struct {
	Enabled            bool `yaml:"enabled"`
	PingTimeoutSeconds int  `yaml:"ping_timeout_seconds"`
	// FailOnUnreachable turns an unreachable server into a cycle failure
	// instead of a warning. Credential rejections always fail the cycle.
	FailOnUnreachable bool `yaml:"fail_on_unreachable"`
}

// EncryptionConfig defines archive encryption settings
type EncryptionConfig struct {
	Enabled bool `yaml:"enabled"`
	// KeySource is "env", "file" or "passphrase".
	KeySource string `yaml:"key_source"`
	// KeyEnvVar names the environment variable holding a hex-encoded
	// 32-byte key (when key_source is env).
	KeyEnvVar string `yaml:"key_env_var"`
	// KeyFile is the path to a file holding a raw 32-byte key (when
	// key_source is file).
	KeyFile string `yaml:"key_file"`
	// PassphraseEnvVar names the environment variable holding a
	// passphrase to derive the key from (when key_source is passphrase).
	PassphraseEnvVar string `yaml:"passphrase_env_var"`

	// KeyRetriever overrides key lookup; used by tests and custom key
	// management.
	KeyRetriever func() ([]byte, error) `yaml:"-"`
}

// OffsiteProvider identifies an offsite replication backend
type OffsiteProvider string

const (
	OffsiteProviderLocal OffsiteProvider = "local"
	OffsiteProviderS3    OffsiteProvider = "s3"
	OffsiteProviderAzure OffsiteProvider = "azure"
	OffsiteProviderGCS   OffsiteProvider = "gcs"
)

// OffsiteConfig defines optional archive replication
type OffsiteConfig struct {
	Enabled       bool            `yaml:"enabled"`
	Provider      OffsiteProvider `yaml:"provider"`
	RetryAttempts int             `yaml:"retry_attempts"`
	Local         *LocalTarget    `yaml:"local,omitempty"`
	S3            *S3Target       `yaml:"s3,omitempty"`
	Azure         *AzureTarget    `yaml:"azure,omitempty"`
	GCS           *GCSTarget      `yaml:"gcs,omitempty"`
}

// LocalTarget replicates archives to another mounted path (NFS, second disk)
type LocalTarget struct {
	Path        string      `yaml:"path"`
	Permissions os.FileMode `yaml:"permissions"`
}

// S3Target replicates archives to an S3 bucket
type S3Target struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Prefix    string `yaml:"prefix"`
}

// AzureTarget replicates archives to an Azure Blob container
type AzureTarget struct {
	AccountName string `yaml:"account_name"`
	AccountKey  string `yaml:"account_key"`
	Container   string `yaml:"container"`
}

// GCSTarget replicates archives to a Google Cloud Storage bucket
type GCSTarget struct {
	Bucket          string `yaml:"bucket"`
	CredentialsPath string `yaml:"credentials_path"`
	ProjectID       string `yaml:"project_id"`
	Prefix          string `yaml:"prefix"`
}

// NotificationsConfig defines cycle outcome notifications
type NotificationsConfig struct {
	Enabled     bool                  `yaml:"enabled"`
	MinSeverity string                `yaml:"min_severity"`
	Webhook     *WebhookChannelConfig `yaml:"webhook,omitempty"`
	Slack       *SlackChannelConfig   `yaml:"slack,omitempty"`
	File        *FileChannelConfig    `yaml:"file,omitempty"`
}

// WebhookChannelConfig posts cycle alerts to an HTTP endpoint
type WebhookChannelConfig struct {
	URL            string            `yaml:"url"`
	TimeoutSeconds int               `yaml:"timeout_seconds"`
	Headers        map[string]string `yaml:"headers,omitempty"`
}

// SlackChannelConfig posts cycle alerts to a Slack incoming webhook
type SlackChannelConfig struct {
	WebhookURL string `yaml:"webhook_url"`
	Channel    string `yaml:"channel"`
	Username   string `yaml:"username"`
}

// FileChannelConfig appends cycle alerts to a local file
type FileChannelConfig struct {
	Path string `yaml:"path"`
}

// ReportConfig defines the per-cycle JSON report
type ReportConfig struct {
	Enabled bool `yaml:"enabled"`
	// Dir defaults to <backup_dir>/reports when empty.
	Dir string `yaml:"dir"`
}

// BackupRoot returns the directory holding the live chain
func (c *Config) BackupRoot() string {
	return filepath.Join(c.Paths.BackupDir, c.Paths.DataDirName)
}

// ArchiveRoot returns the directory holding sealed archives
func (c *Config) ArchiveRoot() string {
	return filepath.Join(c.Paths.BackupDir, c.Paths.ArchiveDirName)
}

// ReportDir returns the directory cycle reports are written to
func (c *Config) ReportDir() string {
	if c.Report.Dir != "" {
		return c.Report.Dir
	}
	return filepath.Join(c.Paths.BackupDir, "reports")
}

// CommandTimeout returns the tool deadline as a duration
func (c *Config) CommandTimeout() time.Duration {
	return time.Duration(c.General.CommandTimeoutSeconds) * time.Second
}

// MaxBackupAge returns the staleness threshold as a duration
func (c *Config) MaxBackupAge() time.Duration {
	return time.Duration(c.General.MaxBackupAgeSeconds) * time.Second
}

// PingTimeout returns the preflight deadline as a duration
func (c *Config) PingTimeout() time.Duration {
	return time.Duration(c.Preflight.PingTimeoutSeconds) * time.Second
}

// Validate validates the complete configuration
func (c *Config) Validate() error {
	var errors ValidationErrors

	sections := []struct {
		name     string
		validate func() error
	}{
		{"connection", c.Connection.Validate},
		{"paths", c.Paths.Validate},
		{"naming", c.Naming.Validate},
		{"general", c.General.Validate},
		{"archive", c.Archive.Validate},
		{"logging", c.Logging.Validate},
		{"preflight", c.Preflight.Validate},
		{"encryption", c.Encryption.Validate},
		{"offsite", c.Offsite.Validate},
		{"notifications", c.Notifications.Validate},
	}

	for _, section := range sections {
		if err := section.validate(); err != nil {
			if validationErrs, ok := err.(ValidationErrors); ok {
				errors = append(errors, validationErrs...)
			} else {
				errors.Add(section.name, err.Error(), nil)
			}
		}
	}

	if errors.HasErrors() {
		return errors
	}

	return nil
}

// SetDefaults sets default values for the complete configuration.
// The defaults reproduce the behavior the tool has always shipped with.
func (c *Config) SetDefaults() {
	c.Connection.SetDefaults()
	c.Paths.SetDefaults()
	c.Naming.SetDefaults()
	c.General.SetDefaults()
	c.Archive.SetDefaults()
	c.Logging.SetDefaults()
	c.Preflight.SetDefaults()
	c.Encryption.SetDefaults()
	c.Offsite.SetDefaults()
	c.Notifications.SetDefaults()
	c.Report.SetDefaults()
}

// LoadFromEnvironment loads configuration values from environment variables
func (c *Config) LoadFromEnvironment() {
	c.Connection.LoadFromEnvironment()
	c.Paths.LoadFromEnvironment()
	c.General.LoadFromEnvironment()
	c.Archive.LoadFromEnvironment()
	c.Logging.LoadFromEnvironment()
	c.Encryption.LoadFromEnvironment()
	c.Offsite.LoadFromEnvironment()
	c.Notifications.LoadFromEnvironment()
}

// Validate validates the connection configuration
func (cc *ConnectionConfig) Validate() error {
	var errors ValidationErrors

	if cc.Username == "" {
		errors.Add("connection.username", "username must not be empty", cc.Username)
	}

	if cc.Host == "" {
		errors.Add("connection.host", "host must not be empty", cc.Host)
	}

	if cc.Port == "" {
		errors.Add("connection.port", "port must not be empty", cc.Port)
	} else if _, err := strconv.Atoi(cc.Port); err != nil {
		errors.Add("connection.port", "port must be numeric", cc.Port)
	}

	if errors.HasErrors() {
		return errors
	}

	return nil
}

// SetDefaults sets default values for the connection configuration
func (cc *ConnectionConfig) SetDefaults() {
	if cc.Username == "" {
		cc.Username = "YOURUSER"
	}

	if cc.Host == "" {
		cc.Host = "localhost"
	}

	if cc.Port == "" {
		cc.Port = "3306"
	}
}

// LoadFromEnvironment loads connection configuration from environment variables
func (cc *ConnectionConfig) LoadFromEnvironment() {
	if val := os.Getenv("XTRABACKUP_RUNNER_USERNAME"); val != "" {
		cc.Username = val
	}

	if val := os.Getenv("XTRABACKUP_RUNNER_PASSWORD"); val != "" {
		cc.Password = val
	}

	if val := os.Getenv("XTRABACKUP_RUNNER_HOST"); val != "" {
		cc.Host = val
	}

	if val := os.Getenv("XTRABACKUP_RUNNER_PORT"); val != "" {
		cc.Port = val
	}
}

// Validate validates the paths configuration
func (pc *PathsConfig) Validate() error {
	var errors ValidationErrors

	if pc.BackupDir == "" {
		errors.Add("paths.backup_dir", "backup directory must not be empty", pc.BackupDir)
	}

	if pc.DataDirName == "" {
		errors.Add("paths.datadir_name", "datadir name must not be empty", pc.DataDirName)
	} else if strings.ContainsRune(pc.DataDirName, os.PathSeparator) {
		errors.Add("paths.datadir_name", "datadir name must be a bare directory name", pc.DataDirName)
	}

	if pc.ArchiveDirName == "" {
		errors.Add("paths.archive_dir_name", "archive dir name must not be empty", pc.ArchiveDirName)
	} else if strings.ContainsRune(pc.ArchiveDirName, os.PathSeparator) {
		errors.Add("paths.archive_dir_name", "archive dir name must be a bare directory name", pc.ArchiveDirName)
	}

	if pc.DataDirName != "" && pc.DataDirName == pc.ArchiveDirName {
		errors.Add("paths.archive_dir_name", "archive dir must differ from the datadir", pc.ArchiveDirName)
	}

	if errors.HasErrors() {
		return errors
	}

	return nil
}

// SetDefaults sets default values for the paths configuration
func (pc *PathsConfig) SetDefaults() {
	if pc.BackupDir == "" {
		pc.BackupDir = "/data/backups"
	}

	if pc.DataDirName == "" {
		pc.DataDirName = "mysql"
	}

	if pc.ArchiveDirName == "" {
		pc.ArchiveDirName = "archive"
	}
}

// LoadFromEnvironment loads paths configuration from environment variables
func (pc *PathsConfig) LoadFromEnvironment() {
	if val := os.Getenv("XTRABACKUP_RUNNER_BACKUP_DIR"); val != "" {
		pc.BackupDir = val
	}

	if val := os.Getenv("XTRABACKUP_RUNNER_DATADIR_NAME"); val != "" {
		pc.DataDirName = val
	}

	if val := os.Getenv("XTRABACKUP_RUNNER_ARCHIVE_DIR_NAME"); val != "" {
		pc.ArchiveDirName = val
	}
}

// Validate validates the naming configuration
func (nc *NamingConfig) Validate() error {
	var errors ValidationErrors

	if nc.BaseDirName == "" {
		errors.Add("naming.base_dir_name", "base dir name must not be empty", nc.BaseDirName)
	}

	if nc.IncrementalPrefix == "" {
		errors.Add("naming.incremental_prefix", "incremental prefix must not be empty", nc.IncrementalPrefix)
	}

	if nc.ArchivePrefix == "" {
		errors.Add("naming.archive_prefix", "archive prefix must not be empty", nc.ArchivePrefix)
	}

	if errors.HasErrors() {
		return errors
	}

	return nil
}

// SetDefaults sets default values for the naming configuration
func (nc *NamingConfig) SetDefaults() {
	if nc.BaseDirName == "" {
		nc.BaseDirName = "base"
	}

	if nc.IncrementalPrefix == "" {
		nc.IncrementalPrefix = "inc_"
	}

	if nc.ArchivePrefix == "" {
		nc.ArchivePrefix = "database_backup_"
	}
}

// Validate validates the general configuration
func (gc *GeneralConfig) Validate() error {
	var errors ValidationErrors

	if gc.Binary == "" {
		errors.Add("general.binary", "binary must not be empty", gc.Binary)
	}

	if gc.CommandTimeoutSeconds <= 0 {
		errors.Add("general.command_timeout_seconds", "command timeout must be positive", gc.CommandTimeoutSeconds)
	}

	if gc.MaxBackupAgeSeconds <= 0 {
		errors.Add("general.max_backup_age_seconds", "max backup age must be positive", gc.MaxBackupAgeSeconds)
	}

	if errors.HasErrors() {
		return errors
	}

	return nil
}

// SetDefaults sets default values for the general configuration
func (gc *GeneralConfig) SetDefaults() {
	if gc.Binary == "" {
		gc.Binary = "xtrabackup"
	}

	gc.UseSudo = true

	if gc.CommandTimeoutSeconds == 0 {
		gc.CommandTimeoutSeconds = 30
	}

	if gc.MaxBackupAgeSeconds == 0 {
		gc.MaxBackupAgeSeconds = 72000 // 20 hours
	}

	if gc.ExtraParams == nil {
		gc.ExtraParams = []string{"no-server-version-check"}
	}
}

// LoadFromEnvironment loads general configuration from environment variables
func (gc *GeneralConfig) LoadFromEnvironment() {
	if val := os.Getenv("XTRABACKUP_RUNNER_BINARY"); val != "" {
		gc.Binary = val
	}

	if val := os.Getenv("XTRABACKUP_RUNNER_USE_SUDO"); val != "" {
		gc.UseSudo = strings.ToLower(val) == "true"
	}

	if val := os.Getenv("XTRABACKUP_RUNNER_COMMAND_TIMEOUT_SECONDS"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			gc.CommandTimeoutSeconds = parsed
		}
	}

	if val := os.Getenv("XTRABACKUP_RUNNER_MAX_BACKUP_AGE_SECONDS"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			gc.MaxBackupAgeSeconds = parsed
		}
	}
}

// Validate validates the archive configuration
func (ac *ArchiveConfig) Validate() error {
	var errors ValidationErrors

	if ac.Format != "" && !IsSupportedArchiveFormat(ac.Format) {
		errors.Add("archive.format", "unsupported archive format", ac.Format)
	}

	if ac.RetentionCount < 0 {
		errors.Add("archive.retention_count", "retention count must not be negative", ac.RetentionCount)
	}

	if ac.CountTriggerEnabled && ac.MaxBackupsBeforeArchive < 1 {
		errors.Add("archive.max_backups_before_archive", "count trigger threshold must be at least 1", ac.MaxBackupsBeforeArchive)
	}

	if ac.TimeTriggerEnabled && (ac.ArchiveAtUTCHour < 0 || ac.ArchiveAtUTCHour > 23) {
		errors.Add("archive.archive_at_utc_hour", "archive hour must be between 0 and 23", ac.ArchiveAtUTCHour)
	}

	if errors.HasErrors() {
		return errors
	}

	return nil
}

// SetDefaults sets default values for the archive configuration
func (ac *ArchiveConfig) SetDefaults() {
	ac.Enabled = true

	if ac.Format == "" {
		ac.Format = "tar.gz"
	}

	if ac.RetentionCount == 0 {
		ac.RetentionCount = 7
	}

	if ac.MaxBackupsBeforeArchive == 0 {
		ac.MaxBackupsBeforeArchive = 4
	}

	ac.TimeTriggerEnabled = true
	if ac.ArchiveAtUTCHour == 0 {
		ac.ArchiveAtUTCHour = 6
	}
}

// LoadFromEnvironment loads archive configuration from environment variables
func (ac *ArchiveConfig) LoadFromEnvironment() {
	if val := os.Getenv("XTRABACKUP_RUNNER_ARCHIVE_ENABLED"); val != "" {
		ac.Enabled = strings.ToLower(val) == "true"
	}

	if val := os.Getenv("XTRABACKUP_RUNNER_ARCHIVE_FORMAT"); val != "" {
		ac.Format = val
	}

	if val := os.Getenv("XTRABACKUP_RUNNER_RETENTION_COUNT"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			ac.RetentionCount = parsed
		}
	}

	if val := os.Getenv("XTRABACKUP_RUNNER_ARCHIVE_AT_UTC_HOUR"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			ac.ArchiveAtUTCHour = parsed
		}
	}
}

// Validate validates the logging configuration
func (lc *LoggingConfig) Validate() error {
	var errors ValidationErrors

	switch lc.Level {
	case "quiet", "normal", "verbose", "debug":
	default:
		errors.Add("logging.level", "level must be quiet, normal, verbose or debug", lc.Level)
	}

	switch lc.Format {
	case "text", "json":
	default:
		errors.Add("logging.format", "format must be text or json", lc.Format)
	}

	if lc.LogToFile && lc.LogFile == "" {
		errors.Add("logging.log_file", "log file path required when log_to_file is set", lc.LogFile)
	}

	if errors.HasErrors() {
		return errors
	}

	return nil
}

// SetDefaults sets default values for the logging configuration
func (lc *LoggingConfig) SetDefaults() {
	lc.Enabled = true

	if lc.Level == "" {
		lc.Level = "normal"
	}

	if lc.Format == "" {
		lc.Format = "text"
	}

	lc.LogToFile = true
	if lc.LogFile == "" {
		lc.LogFile = "/var/log/xtrabackup-runner.log"
	}

	lc.MirrorChildOutput = true
}

// LoadFromEnvironment loads logging configuration from environment variables
func (lc *LoggingConfig) LoadFromEnvironment() {
	if val := os.Getenv("XTRABACKUP_RUNNER_LOG_LEVEL"); val != "" {
		lc.Level = val
	}

	if val := os.Getenv("XTRABACKUP_RUNNER_LOG_FILE"); val != "" {
		lc.LogToFile = true
		lc.LogFile = val
	}
}

// Validate validates the preflight configuration
func (pc *PreflightConfig) Validate() error {
	var errors ValidationErrors

	if pc.Enabled && pc.PingTimeoutSeconds <= 0 {
		errors.Add("preflight.ping_timeout_seconds", "ping timeout must be positive", pc.PingTimeoutSeconds)
	}

	if errors.HasErrors() {
		return errors
	}

	return nil
}

// SetDefaults sets default values for the preflight configuration
func (pc *PreflightConfig) SetDefaults() {
	if pc.PingTimeoutSeconds == 0 {
		pc.PingTimeoutSeconds = 5
	}
}

// Validate validates the encryption configuration
func (ec *EncryptionConfig) Validate() error {
	var errors ValidationErrors

	if ec.Enabled {
		switch ec.KeySource {
		case "env":
			if ec.KeyEnvVar == "" {
				errors.Add("encryption.key_env_var", "key environment variable name required for env key source", ec.KeyEnvVar)
			}
		case "file":
			if ec.KeyFile == "" {
				errors.Add("encryption.key_file", "key file path required for file key source", ec.KeyFile)
			}
		case "passphrase":
			if ec.PassphraseEnvVar == "" {
				errors.Add("encryption.passphrase_env_var", "passphrase environment variable name required for passphrase key source", ec.PassphraseEnvVar)
			}
		default:
			errors.Add("encryption.key_source", "key source must be env, file or passphrase", ec.KeySource)
		}
	}

	if errors.HasErrors() {
		return errors
	}

	return nil
}

// SetDefaults sets default values for the encryption configuration
func (ec *EncryptionConfig) SetDefaults() {
	if ec.KeySource == "" {
		ec.KeySource = "env"
		ec.KeyEnvVar = "XTRABACKUP_RUNNER_ENCRYPTION_KEY"
	}
}

// LoadFromEnvironment loads encryption configuration from environment variables
func (ec *EncryptionConfig) LoadFromEnvironment() {
	if val := os.Getenv("XTRABACKUP_RUNNER_ENCRYPTION_ENABLED"); val != "" {
		ec.Enabled = strings.ToLower(val) == "true"
	}

	if val := os.Getenv("XTRABACKUP_RUNNER_ENCRYPTION_KEY_SOURCE"); val != "" {
		ec.KeySource = val
	}

	if val := os.Getenv("XTRABACKUP_RUNNER_ENCRYPTION_KEY_FILE"); val != "" {
		ec.KeyFile = val
	}
}

// GetEncryptionKey retrieves the encryption key based on the configuration.
// Passphrase-derived keys are handled at seal time because they need a
// fresh salt; this returns nil for that source.
func (ec *EncryptionConfig) GetEncryptionKey() ([]byte, error) {
	if !ec.Enabled {
		return nil, nil
	}

	// Use custom function if provided (for testing or custom key management)
	if ec.KeyRetriever != nil {
		return ec.KeyRetriever()
	}

	switch ec.KeySource {
	case "env":
		keyStr := os.Getenv(ec.KeyEnvVar)
		if keyStr == "" {
			return nil, fmt.Errorf("encryption key not found in environment variable %s", ec.KeyEnvVar)
		}
		// Expect key to be hex-encoded
		key, err := hex.DecodeString(keyStr)
		if err != nil {
			return nil, fmt.Errorf("failed to decode hex key from environment variable: %w", err)
		}
		if len(key) != 32 {
			return nil, fmt.Errorf("encryption key must be 32 bytes for AES-256, got %d bytes", len(key))
		}
		return key, nil

	case "file":
		keyData, err := os.ReadFile(ec.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read encryption key from file %s: %w", ec.KeyFile, err)
		}
		if len(keyData) != 32 {
			return nil, fmt.Errorf("encryption key file must contain 32 bytes for AES-256, got %d bytes", len(keyData))
		}
		return keyData, nil

	case "passphrase":
		return nil, nil

	default:
		return nil, fmt.Errorf("invalid key source: %s", ec.KeySource)
	}
}

// Passphrase returns the configured passphrase for key derivation
func (ec *EncryptionConfig) Passphrase() (string, error) {
	if ec.KeySource != "passphrase" {
		return "", nil
	}
	pass := os.Getenv(ec.PassphraseEnvVar)
	if pass == "" {
		return "", fmt.Errorf("passphrase not found in environment variable %s", ec.PassphraseEnvVar)
	}
	return pass, nil
}

// Validate validates the offsite configuration
func (oc *OffsiteConfig) Validate() error {
	var errors ValidationErrors

	if !oc.Enabled {
		return nil
	}

	if oc.RetryAttempts < 0 {
		errors.Add("offsite.retry_attempts", "retry attempts must not be negative", oc.RetryAttempts)
	}

	switch oc.Provider {
	case OffsiteProviderLocal:
		if oc.Local == nil || oc.Local.Path == "" {
			errors.Add("offsite.local.path", "target path required for local provider", nil)
		}
	case OffsiteProviderS3:
		if oc.S3 == nil || oc.S3.Bucket == "" {
			errors.Add("offsite.s3.bucket", "bucket required for s3 provider", nil)
		}
	case OffsiteProviderAzure:
		if oc.Azure == nil || oc.Azure.AccountName == "" || oc.Azure.AccountKey == "" || oc.Azure.Container == "" {
			errors.Add("offsite.azure", "account_name, account_key and container required for azure provider", nil)
		}
	case OffsiteProviderGCS:
		if oc.GCS == nil || oc.GCS.Bucket == "" {
			errors.Add("offsite.gcs.bucket", "bucket required for gcs provider", nil)
		}
	default:
		errors.Add("offsite.provider", "provider must be local, s3, azure or gcs", oc.Provider)
	}

	if errors.HasErrors() {
		return errors
	}

	return nil
}

// SetDefaults sets default values for the offsite configuration
func (oc *OffsiteConfig) SetDefaults() {
	if oc.RetryAttempts == 0 {
		oc.RetryAttempts = 3
	}

	if oc.Provider == OffsiteProviderS3 && oc.S3 != nil && oc.S3.Region == "" {
		oc.S3.Region = "us-east-1"
	}

	if oc.Provider == OffsiteProviderGCS && oc.GCS != nil && oc.GCS.CredentialsPath == "" {
		oc.GCS.CredentialsPath = os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")
	}

	if oc.Provider == OffsiteProviderLocal && oc.Local != nil && oc.Local.Permissions == 0 {
		oc.Local.Permissions = 0755
	}
}

// LoadFromEnvironment loads offsite configuration from environment variables
func (oc *OffsiteConfig) LoadFromEnvironment() {
	if val := os.Getenv("XTRABACKUP_RUNNER_OFFSITE_PROVIDER"); val != "" {
		oc.Provider = OffsiteProvider(strings.ToLower(val))
	}

	if val := os.Getenv("XTRABACKUP_RUNNER_S3_BUCKET"); val != "" {
		if oc.S3 == nil {
			oc.S3 = &S3Target{}
		}
		oc.S3.Bucket = val
	}

	if val := os.Getenv("XTRABACKUP_RUNNER_S3_REGION"); val != "" {
		if oc.S3 == nil {
			oc.S3 = &S3Target{}
		}
		oc.S3.Region = val
	}

	if val := os.Getenv("XTRABACKUP_RUNNER_S3_ACCESS_KEY"); val != "" {
		if oc.S3 == nil {
			oc.S3 = &S3Target{}
		}
		oc.S3.AccessKey = val
	}

	if val := os.Getenv("XTRABACKUP_RUNNER_S3_SECRET_KEY"); val != "" {
		if oc.S3 == nil {
			oc.S3 = &S3Target{}
		}
		oc.S3.SecretKey = val
	}

	if val := os.Getenv("XTRABACKUP_RUNNER_AZURE_ACCOUNT_NAME"); val != "" {
		if oc.Azure == nil {
			oc.Azure = &AzureTarget{}
		}
		oc.Azure.AccountName = val
	}

	if val := os.Getenv("XTRABACKUP_RUNNER_AZURE_ACCOUNT_KEY"); val != "" {
		if oc.Azure == nil {
			oc.Azure = &AzureTarget{}
		}
		oc.Azure.AccountKey = val
	}

	if val := os.Getenv("XTRABACKUP_RUNNER_AZURE_CONTAINER"); val != "" {
		if oc.Azure == nil {
			oc.Azure = &AzureTarget{}
		}
		oc.Azure.Container = val
	}

	if val := os.Getenv("XTRABACKUP_RUNNER_GCS_BUCKET"); val != "" {
		if oc.GCS == nil {
			oc.GCS = &GCSTarget{}
		}
		oc.GCS.Bucket = val
	}

	if val := os.Getenv("XTRABACKUP_RUNNER_GCS_CREDENTIALS_PATH"); val != "" {
		if oc.GCS == nil {
			oc.GCS = &GCSTarget{}
		}
		oc.GCS.CredentialsPath = val
	}
}

// Validate validates the notifications configuration
func (nc *NotificationsConfig) Validate() error {
	var errors ValidationErrors

	if !nc.Enabled {
		return nil
	}

	switch nc.MinSeverity {
	case "info", "warning", "error", "critical":
	default:
		errors.Add("notifications.min_severity", "severity must be info, warning, error or critical", nc.MinSeverity)
	}

	if nc.Webhook == nil && nc.Slack == nil && nc.File == nil {
		errors.Add("notifications", "at least one channel must be configured", nil)
	}

	if nc.Webhook != nil && nc.Webhook.URL == "" {
		errors.Add("notifications.webhook.url", "webhook URL must not be empty", nil)
	}

	if nc.Slack != nil && nc.Slack.WebhookURL == "" {
		errors.Add("notifications.slack.webhook_url", "slack webhook URL must not be empty", nil)
	}

	if nc.File != nil && nc.File.Path == "" {
		errors.Add("notifications.file.path", "file path must not be empty", nil)
	}

	if errors.HasErrors() {
		return errors
	}

	return nil
}

// SetDefaults sets default values for the notifications configuration
func (nc *NotificationsConfig) SetDefaults() {
	if nc.MinSeverity == "" {
		nc.MinSeverity = "warning"
	}

	if nc.Webhook != nil && nc.Webhook.TimeoutSeconds == 0 {
		nc.Webhook.TimeoutSeconds = 10
	}
}

// LoadFromEnvironment loads notifications configuration from environment variables
func (nc *NotificationsConfig) LoadFromEnvironment() {
	if val := os.Getenv("XTRABACKUP_RUNNER_WEBHOOK_URL"); val != "" {
		if nc.Webhook == nil {
			nc.Webhook = &WebhookChannelConfig{TimeoutSeconds: 10}
		}
		nc.Webhook.URL = val
	}

	if val := os.Getenv("XTRABACKUP_RUNNER_SLACK_WEBHOOK_URL"); val != "" {
		if nc.Slack == nil {
			nc.Slack = &SlackChannelConfig{}
		}
		nc.Slack.WebhookURL = val
	}
}

// SetDefaults sets default values for the report configuration.
// Reporting is opt-in, so the zero value is already the default.
func (rc *ReportConfig) SetDefaults() {}
