package cmd

import (
	"fmt"
	"os"

	"xtrabackup-runner/internal/application"
	"xtrabackup-runner/internal/backup"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// CLI flag variables
var (
	dryRun  bool
	verbose bool
	quiet   bool
)

// exitCode is set by commands whose outcome maps to a process exit code.
// Execute turns it into os.Exit after cobra returns.
var exitCode int

// rootCmd runs one backup cycle when called without a subcommand. Scheduling
// is cron's job; the runner decides what the cycle should do and does it.
var rootCmd = &cobra.Command{
	Use:   "xtrabackup-runner",
	Short: "Run one MySQL xtrabackup cycle against the local backup chain",
	Long: `xtrabackup-runner maintains a chain of physical MySQL backups: one full
base backup plus incrementals layered on top of it. Each invocation runs
exactly one cycle: it inspects the chain on disk, decides whether to start a
fresh base, append an incremental, or seal the chain into an archive first,
and then supervises the xtrabackup run.

Schedule invocations with cron. A stale or complete chain is sealed into a
compressed archive before a new base is taken; old archives are pruned per
the configured retention count.

Examples:
  # Run one cycle with the default config search path
  xtrabackup-runner

  # Run one cycle against an explicit config
  xtrabackup-runner --config /etc/xtrabackup-runner/config.yaml

  # Show what the cycle would do without touching the chain
  xtrabackup-runner --dry-run

  # Cron-friendly invocation: only errors reach the terminal
  xtrabackup-runner --quiet`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := validateFlags(); err != nil {
			return err
		}

		app, err := buildApplication()
		if err != nil {
			return err
		}

		exitCode = app.RunCycle()
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(application.ExitFailure)
	}
	if exitCode != application.ExitSuccess {
		os.Exit(exitCode)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is /etc/xtrabackup-runner/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress non-error output")

	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "report the cycle decision without running the backup tool")

	viper.BindPFlag("dry_run", rootCmd.Flags().Lookup("dry-run"))
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
}

// initConfig resolves the config file path. The runner's own loader parses
// the file; viper only handles the search path and environment overrides for
// the operation flags.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath("/etc/xtrabackup-runner")
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("XTRABACKUP_RUNNER")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if verbose {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}

// configPath returns the config file the runner should load, which may not
// exist; the loader falls back to defaults plus environment in that case.
func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return viper.ConfigFileUsed()
}

// validateFlags validates CLI flags and their combinations
func validateFlags() error {
	if verbose && quiet {
		return fmt.Errorf("--verbose and --quiet flags are mutually exclusive")
	}
	return nil
}

// loadConfig loads and validates the effective runner configuration.
func loadConfig() (*backup.Config, error) {
	cfg, err := backup.NewConfigLoader(configPath()).LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	return cfg, nil
}

// buildApplication wires the application from the effective configuration
// and the shared operation flags. Environment variables with the
// XTRABACKUP_RUNNER prefix override flag defaults.
func buildApplication() (*application.Application, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	opts := application.Options{
		DryRun:  dryRun || viper.GetBool("dry_run"),
		Verbose: verbose || viper.GetBool("verbose"),
		Quiet:   quiet || viper.GetBool("quiet"),
	}

	app, err := application.New(cfg, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize application: %w", err)
	}
	return app, nil
}

// Version information (set by main package)
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
	goVersion = "unknown"
)

// SetVersionInfo sets the version information from build flags
func SetVersionInfo(v, bt, gc, gv string) {
	version = v
	buildTime = bt
	gitCommit = gc
	goVersion = gv
}

// createVersionCommand creates the version subcommand
func createVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "xtrabackup-runner version %s\n", version)
			fmt.Fprintf(out, "Built: %s\n", buildTime)
			fmt.Fprintf(out, "Commit: %s\n", gitCommit)
			fmt.Fprintf(out, "Go version: %s\n", goVersion)
		},
	}
}

func init() {
	rootCmd.AddCommand(createVersionCommand())
}
