package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var statusJSON bool

// statusCmd reports on the chain and archives without touching either.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of the backup chain and sealed archives",
	Long: `Status inspects the backup root and the archive directory and reports
what a cycle would find: whether a base backup exists, how many incrementals
sit on top of it, how old the newest entry is, and which archives are kept.

The chain is flagged as stale when its newest entry is older than the
configured maximum backup age; the next cycle will seal (or discard) a stale
chain instead of extending it.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := validateFlags(); err != nil {
			return err
		}

		app, err := buildApplication()
		if err != nil {
			return err
		}

		if statusJSON {
			status, err := app.ChainStatus()
			if err != nil {
				return fmt.Errorf("cannot inspect backup root: %w", err)
			}
			data, err := json.MarshalIndent(status, "", "  ")
			if err != nil {
				return fmt.Errorf("cannot render status: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		}

		exitCode = app.Status()
		return nil
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "print the status as JSON for scripting")
	rootCmd.AddCommand(statusCmd)
}
