package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"memstore-backup/internal/backup"
	"memstore-backup/internal/display"
)

// Backup flag variables
var (
	backupDescription string
	backupTags        []string
	backupComponents  []string
	backupKind        string
	backupParent      string
	backupFailFast    bool

	listFormat string
	listKind   string
	listStatus string
	listLimit  int

	pruneDryRun bool
)

// backupCmd groups backup management subcommands
var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Manage backups of the memory store backends",
	Long: `Create, list, verify, delete, and prune backups.

Every backup exports each backend through its component handler into a
per-backup directory, records a pre-backup state checksum, and seals the
tree with a manifest carrying per-component and whole-tree checksums.

Examples:
  # Create a full backup
  memstore-backup backup create --description "nightly"

  # Create a backup of the vector backend only, failing fast
  memstore-backup backup create --components vector_store --fail-fast

  # List completed backups as JSON
  memstore-backup backup list --status COMPLETED --format json

  # Verify a backup's checksums
  memstore-backup backup verify backup-20260825120000-deadbeef

  # Apply the retention policy, deleting nothing yet
  memstore-backup backup prune --dry-run`,
}

var backupCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new backup of the configured backends",
	Long: `Create a new backup.

Each configured component is exported independently. A failing component
marks the backup COMPLETED_WITH_ERRORS but does not stop the others unless
--fail-fast is given. The backup is replicated offsite when a cloud storage
provider is configured.`,
	RunE: runBackupCreate,
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List existing backups",
	RunE:  runBackupList,
}

var backupVerifyCmd = &cobra.Command{
	Use:   "verify <backup-id>",
	Short: "Verify a backup's integrity",
	Long: `Verify a backup by recomputing the backup tree checksum against the
manifest and running each component handler's own verification.`,
	Args: cobra.ExactArgs(1),
	RunE: runBackupVerify,
}

var backupDeleteCmd = &cobra.Command{
	Use:   "delete <backup-id>",
	Short: "Delete a backup",
	Args:  cobra.ExactArgs(1),
	RunE:  runBackupDelete,
}

var backupPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Apply the retention policy to stored backups",
	RunE:  runBackupPrune,
}

func init() {
	rootCmd.AddCommand(backupCmd)

	backupCmd.AddCommand(backupCreateCmd)
	backupCmd.AddCommand(backupListCmd)
	backupCmd.AddCommand(backupVerifyCmd)
	backupCmd.AddCommand(backupDeleteCmd)
	backupCmd.AddCommand(backupPruneCmd)

	backupCreateCmd.Flags().StringVar(&backupDescription, "description", "", "backup description")
	backupCreateCmd.Flags().StringSliceVar(&backupTags, "tags", []string{}, "backup tags in key=value format")
	backupCreateCmd.Flags().StringSliceVar(&backupComponents, "components", []string{}, "components to back up (default all)")
	backupCreateCmd.Flags().StringVar(&backupKind, "kind", "full", "backup kind (full, incremental, differential, snapshot)")
	backupCreateCmd.Flags().StringVar(&backupParent, "parent", "", "parent backup ID for incremental or differential backups")
	backupCreateCmd.Flags().BoolVar(&backupFailFast, "fail-fast", false, "abort on the first failing component")

	backupListCmd.Flags().StringVar(&listFormat, "format", "table", "output format (table, json, yaml)")
	backupListCmd.Flags().StringVar(&listKind, "kind", "", "filter by backup kind")
	backupListCmd.Flags().StringVar(&listStatus, "status", "", "filter by status")
	backupListCmd.Flags().IntVar(&listLimit, "limit", 50, "maximum number of backups to list")

	backupPruneCmd.Flags().BoolVar(&pruneDryRun, "dry-run", false, "report what would be deleted without deleting")
}

func runBackupCreate(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}

	tags, err := parseTags(backupTags)
	if err != nil {
		return err
	}

	kind, err := parseBackupKind(backupKind)
	if err != nil {
		return err
	}

	ctx, cancel := rt.operationContext(cmd)
	defer cancel()

	manifest, err := rt.orchestrator.CreateBackup(ctx, backup.BackupConfig{
		Kind:           kind,
		ParentBackupID: backupParent,
		Components:     backupComponents,
		FailFast:       backupFailFast,
		Description:    backupDescription,
		Tags:           tags,
	})
	if err != nil {
		if manifest != nil {
			rt.display.Warning(fmt.Sprintf("Backup %s finished with errors", manifest.BackupID))
			for name, component := range manifest.Components {
				if component.Error != "" {
					rt.display.Error(fmt.Sprintf("  %s: %s", name, component.Error))
				}
			}
		}
		return err
	}

	rt.display.Success(fmt.Sprintf("Backup %s created (%d components, %s)",
		manifest.BackupID, len(manifest.Components), formatBytes(manifest.Size)))

	if rt.config.Backup.Validation.VerifyAfterBackup {
		result, err := rt.orchestrator.VerifyBackup(ctx, manifest.BackupID)
		if err != nil {
			return err
		}
		for _, warning := range result.Warnings {
			rt.display.Warning(warning)
		}
		for _, message := range result.Errors {
			rt.display.Error(message)
		}
		if !result.Valid {
			return backup.NewCorruptionError(
				fmt.Sprintf("backup %s failed post-creation verification", manifest.BackupID), nil)
		}
		rt.display.Success(fmt.Sprintf("Backup %s verified", manifest.BackupID))
	}

	return nil
}

func runBackupList(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}

	format, err := display.ParseOutputFormat(listFormat)
	if err != nil {
		return err
	}

	filter, err := buildBackupFilter()
	if err != nil {
		return err
	}

	manifests, err := rt.orchestrator.ListBackups(filter)
	if err != nil {
		return err
	}
	if listLimit > 0 && len(manifests) > listLimit {
		manifests = manifests[:listLimit]
	}

	if format != display.FormatTable {
		return rt.display.PrintStructured(format, manifests)
	}

	if len(manifests) == 0 {
		rt.display.Info("No backups found")
		return nil
	}

	rows := make([][]string, 0, len(manifests))
	for _, manifest := range manifests {
		rows = append(rows, []string{
			manifest.BackupID,
			string(manifest.Kind),
			string(manifest.Status),
			manifest.CreatedAt.Format(time.RFC3339),
			fmt.Sprintf("%d", len(manifest.Components)),
			formatBytes(manifest.Size),
			manifest.Description,
		})
	}
	rt.display.PrintTable(
		[]string{"BACKUP ID", "KIND", "STATUS", "CREATED", "COMPONENTS", "SIZE", "DESCRIPTION"},
		rows,
	)
	return nil
}

func runBackupVerify(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := rt.operationContext(cmd)
	defer cancel()

	result, err := rt.orchestrator.VerifyBackup(ctx, args[0])
	if err != nil {
		return err
	}

	for _, warning := range result.Warnings {
		rt.display.Warning(warning)
	}
	for _, message := range result.Errors {
		rt.display.Error(message)
	}

	if !result.Valid {
		return backup.NewCorruptionError(fmt.Sprintf("backup %s failed verification", args[0]), nil)
	}

	rt.display.Success(fmt.Sprintf("Backup %s verified", args[0]))
	return nil
}

func runBackupDelete(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}

	if !autoApprove {
		confirmed, err := rt.display.NewConfirmationDialog(
			fmt.Sprintf("This permanently deletes backup %s", args[0])).Show()
		if err != nil {
			return err
		}
		if !confirmed {
			rt.display.Info("Delete cancelled")
			return nil
		}
	}

	ctx, cancel := rt.operationContext(cmd)
	defer cancel()

	if err := rt.orchestrator.DeleteBackup(ctx, args[0]); err != nil {
		return err
	}

	rt.display.Success(fmt.Sprintf("Backup %s deleted", args[0]))
	return nil
}

func runBackupPrune(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := rt.operationContext(cmd)
	defer cancel()

	manager := backup.NewRetentionManager(rt.orchestrator, &rt.config.Backup.Retention, rt.logger)
	result, err := manager.Apply(ctx, pruneDryRun)
	if err != nil {
		return err
	}

	verb := "Deleted"
	if result.DryRun {
		verb = "Would delete"
	}
	rt.display.Info(fmt.Sprintf("%s %d backups, kept %d, freeing %s",
		verb, len(result.Deleted), len(result.Kept), formatBytes(result.SpaceFreed)))
	for _, backupID := range result.Deleted {
		rt.display.Info("  " + backupID)
	}
	return nil
}

// Helper functions

// parseTags parses tag strings in key=value format
func parseTags(tagStrings []string) (map[string]string, error) {
	tags := make(map[string]string)
	for _, tagStr := range tagStrings {
		parts := strings.SplitN(tagStr, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid tag format '%s', expected key=value", tagStr)
		}
		tags[parts[0]] = parts[1]
	}
	return tags, nil
}

func parseBackupKind(value string) (backup.BackupKind, error) {
	switch backup.BackupKind(strings.ToUpper(value)) {
	case backup.BackupKindFull:
		return backup.BackupKindFull, nil
	case backup.BackupKindIncremental:
		return backup.BackupKindIncremental, nil
	case backup.BackupKindDifferential:
		return backup.BackupKindDifferential, nil
	case backup.BackupKindSnapshot:
		return backup.BackupKindSnapshot, nil
	default:
		return "", fmt.Errorf("invalid backup kind %q (expected full, incremental, differential, or snapshot)", value)
	}
}

func buildBackupFilter() (backup.BackupFilter, error) {
	filter := backup.BackupFilter{}

	if listKind != "" {
		kind, err := parseBackupKind(listKind)
		if err != nil {
			return filter, err
		}
		filter.Kind = kind
	}

	if listStatus != "" {
		status := backup.BackupStatus(strings.ToUpper(listStatus))
		filter.Status = &status
	}

	return filter, nil
}
