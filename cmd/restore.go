package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"memstore-backup/internal/backup"
)

// Restore flag variables
var (
	restoreMode             string
	restoreComponents       []string
	restoreSkipVerification bool
	restoreFromOffsite      bool
)

var restoreCmd = &cobra.Command{
	Use:   "restore <backup-id>",
	Short: "Restore backend state from a backup",
	Long: `Restore the backends from a stored backup.

Before anything is written, the backup tree checksum is recomputed and
compared against the manifest. A corrupted backup aborts the restore with
the live data untouched. After each component is restored, its live state
checksum is compared against the one recorded at backup time.

Restoring replaces the live data of every selected component. The command
prompts for confirmation unless --auto-approve is given.

Examples:
  # Full restore with verification
  memstore-backup restore backup-20260825120000-deadbeef

  # Restore only the graph backend
  memstore-backup restore backup-20260825120000-deadbeef --components graph_store --mode selective

  # Pull the backup down from offsite storage first
  memstore-backup restore backup-20260825120000-deadbeef --from-offsite`,
	Args: cobra.ExactArgs(1),
	RunE: runRestore,
}

func init() {
	rootCmd.AddCommand(restoreCmd)

	restoreCmd.Flags().StringVar(&restoreMode, "mode", "full", "restore mode (full, selective, disaster-recovery)")
	restoreCmd.Flags().StringSliceVar(&restoreComponents, "components", []string{}, "components to restore (default all in the backup)")
	restoreCmd.Flags().BoolVar(&restoreSkipVerification, "skip-verification", false, "skip the post-restore checksum comparison")
	restoreCmd.Flags().BoolVar(&restoreFromOffsite, "from-offsite", false, "download the backup from offsite storage if not present locally")
}

func runRestore(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}

	mode, err := parseRestoreMode(restoreMode)
	if err != nil {
		return err
	}

	backupID := args[0]

	if !autoApprove {
		dialog := rt.display.NewConfirmationDialog("Restoring replaces the live backend data").
			AddDetail("backup: " + backupID).
			AddDetail("mode: " + string(mode))
		if len(restoreComponents) > 0 {
			dialog.AddDetail("components: " + strings.Join(restoreComponents, ", "))
		}
		confirmed, err := dialog.Show()
		if err != nil {
			return err
		}
		if !confirmed {
			rt.display.Info("Restore cancelled")
			return nil
		}
	}

	ctx, cancel := rt.operationContext(cmd)
	defer cancel()

	result, err := rt.restore.Restore(ctx, backupID, backup.RestoreOptions{
		Mode:             mode,
		Components:       restoreComponents,
		SkipVerification: restoreSkipVerification || !rt.config.Backup.Validation.VerifyAfterRestore,
		FromOffsite:      restoreFromOffsite,
	})
	if err != nil {
		return err
	}

	if err := rt.saveBackends(); err != nil {
		return err
	}

	for _, message := range result.Errors {
		rt.display.Error(message)
	}
	for name, verified := range result.Verification {
		if verified {
			rt.display.Success(fmt.Sprintf("%s: restored and verified", name))
		} else {
			rt.display.Warning(fmt.Sprintf("%s: restored but verification failed", name))
		}
	}

	if !result.Success() {
		return backup.NewPartialFailureError(
			fmt.Sprintf("restore of backup %s did not fully succeed", backupID), nil)
	}

	rt.display.Success(fmt.Sprintf("Restored %d components from backup %s",
		len(result.RestoredComponents), backupID))
	return nil
}

func parseRestoreMode(value string) (backup.RestoreMode, error) {
	switch strings.ToLower(value) {
	case "full":
		return backup.RestoreModeFull, nil
	case "selective":
		return backup.RestoreModeSelective, nil
	case "disaster-recovery":
		return backup.RestoreModeDisasterRecovery, nil
	case "point-in-time":
		return backup.RestoreModePointInTime, nil
	default:
		return "", fmt.Errorf("invalid restore mode %q (expected full, selective, disaster-recovery, or point-in-time)", value)
	}
}
