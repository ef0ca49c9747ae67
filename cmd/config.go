package cmd

import (
	"fmt"
	"os"

	"xtrabackup-runner/internal/backup"
	"xtrabackup-runner/internal/config"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	initOutputPath string
	initForce      bool
	migrateDryRun  bool
)

const redactedValue = "********"

// configCmd groups the configuration management subcommands.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the runner configuration",
}

// createConfigInitCommand writes an annotated default configuration.
func createConfigInitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a commented default configuration file",
		Long: `Init writes the annotated default configuration. Use --output to choose
the destination; "-" writes to stdout. An existing file is never overwritten
unless --force is given.

Examples:
  xtrabackup-runner config init --output /etc/xtrabackup-runner/config.yaml
  xtrabackup-runner config init --output - > config.yaml`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := backup.GenerateDefaultConfigYAML()
			if err != nil {
				return fmt.Errorf("failed to generate default configuration: %w", err)
			}

			if initOutputPath == "-" {
				fmt.Fprint(cmd.OutOrStdout(), string(data))
				return nil
			}

			if _, err := os.Stat(initOutputPath); err == nil && !initForce {
				return fmt.Errorf("%s already exists; use --force to overwrite", initOutputPath)
			}

			if err := os.WriteFile(initOutputPath, data, 0600); err != nil {
				return fmt.Errorf("failed to write configuration: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote default configuration to %s\n", initOutputPath)
			fmt.Fprintln(cmd.OutOrStdout(), "Set the database credentials before the first cycle runs.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&initOutputPath, "output", "o", "xtrabackup-runner.yaml", "destination path, or - for stdout")
	cmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing file")
	return cmd
}

// createConfigValidateCommand checks the effective configuration.
func createConfigValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the effective configuration",
		Long: `Validate loads the configuration the runner would use, including
environment variable overrides, and reports every validation problem at once.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Configuration is valid\n")
			fmt.Fprintf(cmd.OutOrStdout(), "Backup root:  %s\n", cfg.BackupRoot())
			fmt.Fprintf(cmd.OutOrStdout(), "Archive root: %s\n", cfg.ArchiveRoot())
			return nil
		},
	}
}

// createConfigShowCommand prints the effective configuration with secrets
// redacted.
func createConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets redacted",
		Long: `Show prints the configuration the runner would use after defaults, the
config file and environment overrides are merged. Passwords and storage keys
are redacted.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := backup.NewConfigLoader(configPath()).LoadConfigLenient()
			if err != nil {
				return fmt.Errorf("configuration error: %w", err)
			}

			redactSecrets(cfg)

			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("failed to render configuration: %w", err)
			}

			fmt.Fprint(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}

func redactSecrets(cfg *backup.Config) {
	if cfg.Connection.Password != "" {
		cfg.Connection.Password = redactedValue
	}
	if cfg.Offsite.S3 != nil && cfg.Offsite.S3.SecretKey != "" {
		cfg.Offsite.S3.SecretKey = redactedValue
	}
	if cfg.Offsite.Azure != nil && cfg.Offsite.Azure.AccountKey != "" {
		cfg.Offsite.Azure.AccountKey = redactedValue
	}
}

// createConfigMigrateCommand converts a legacy JSON config export.
func createConfigMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate <legacy.json> <config.yaml>",
		Short: "Convert a legacy JSON configuration export",
		Long: `Migrate reads a JSON export of the legacy tool's configuration and
writes the equivalent runner configuration. Legacy settings with no runner
counterpart are reported as warnings; an existing target file is preserved
with a .bak suffix.

Example:
  xtrabackup-runner config migrate legacy-config.json /etc/xtrabackup-runner/config.yaml`,
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			tool := config.NewMigrationTool(migrateDryRun, verbose)
			result := tool.Migrate(args[0], args[1])

			out := cmd.OutOrStdout()
			for _, warning := range result.Warnings {
				fmt.Fprintf(out, "warning: %s\n", warning)
			}

			if !result.Success {
				return fmt.Errorf("migration failed: %w", result.Error)
			}

			if migrateDryRun {
				fmt.Fprintf(out, "Dry run: %s would be written from %s\n", result.TargetPath, result.SourcePath)
			} else {
				fmt.Fprintf(out, "Migrated %s to %s\n", result.SourcePath, result.TargetPath)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&migrateDryRun, "dry-run", false, "report the conversion without writing the target file")
	return cmd
}

func init() {
	configCmd.AddCommand(createConfigInitCommand())
	configCmd.AddCommand(createConfigValidateCommand())
	configCmd.AddCommand(createConfigShowCommand())
	configCmd.AddCommand(createConfigMigrateCommand())
	rootCmd.AddCommand(configCmd)
}
