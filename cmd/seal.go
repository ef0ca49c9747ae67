package cmd

import (
	"fmt"

	"xtrabackup-runner/internal/confirmation"

	"github.com/spf13/cobra"
)

var sealAutoApprove bool

// sealCmd archives the live chain on demand, outside the normal triggers.
// Useful before maintenance windows or when rotating storage.
var sealCmd = &cobra.Command{
	Use:   "seal",
	Short: "Seal the current backup chain into an archive now",
	Long: `Seal packs the live chain (base plus incrementals) into a compressed
archive, empties the backup root, and prunes old archives per the configured
retention count. The next cycle starts a fresh base.

The command prompts for confirmation unless --yes is given. Sealing takes the
cycle lock, so it cannot race a concurrently running cycle.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := validateFlags(); err != nil {
			return err
		}

		app, err := buildApplication()
		if err != nil {
			return err
		}

		status, err := app.ChainStatus()
		if err != nil {
			return fmt.Errorf("cannot inspect backup root: %w", err)
		}
		if !status.HasBase {
			return fmt.Errorf("nothing to seal: no base backup in %s", status.BackupRoot)
		}

		confirmer := confirmation.NewConfirmationService(app.DisplayService())
		approved, err := confirmer.ConfirmSeal(status, sealAutoApprove)
		if err != nil {
			return fmt.Errorf("confirmation failed: %w", err)
		}
		if !approved {
			app.DisplayService().Info("Seal cancelled")
			return nil
		}

		exitCode = app.SealNow()
		return nil
	},
}

func init() {
	sealCmd.Flags().BoolVarP(&sealAutoApprove, "yes", "y", false, "seal without asking for confirmation")
	rootCmd.AddCommand(sealCmd)
}
