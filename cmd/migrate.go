package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"memstore-backup/internal/migration"
)

// Migration flag variables
var (
	migrateTargetDimension  int
	migrateBatchSize        int
	migrateMaxConcurrency   int
	migrateDryRun           bool
	migrateCheckIdempotency bool
)

var migrateDimensionCmd = &cobra.Command{
	Use:   "migrate-dimension <collection>",
	Short: "Migrate a vector collection to a new dimension",
	Long: `Migrate every vector in a collection to a new dimension.

Vectors are truncated or zero-padded to the target dimension and written to
a staging collection, which replaces the source only after every batch
succeeds. A failed or cancelled run never leaves the source half-migrated.
If the collection already has the target dimension the run completes
without touching anything.

With --dry-run, writes are intercepted into an in-memory view and the
backend is never touched; the reported after-checksum reflects the state
the migration would produce. With --check-idempotency, the dry run is
executed twice and the after-checksums compared; a divergence means the
migration reads state it also writes, which is fatal.

Examples:
  # Preview a migration
  memstore-backup migrate-dimension documents --target-dimension 1536 --dry-run

  # Prove the migration is deterministic before running it
  memstore-backup migrate-dimension documents --target-dimension 1536 --check-idempotency

  # Run it for real
  memstore-backup migrate-dimension documents --target-dimension 1536`,
	Args: cobra.ExactArgs(1),
	RunE: runMigrateDimension,
}

func init() {
	rootCmd.AddCommand(migrateDimensionCmd)

	migrateDimensionCmd.Flags().IntVar(&migrateTargetDimension, "target-dimension", 0, "target vector dimension (required)")
	migrateDimensionCmd.Flags().IntVar(&migrateBatchSize, "batch-size", migration.DefaultBatchSize, "points migrated per batch")
	migrateDimensionCmd.Flags().IntVar(&migrateMaxConcurrency, "max-concurrency", migration.DefaultMaxConcurrency, "batches migrated concurrently")
	migrateDimensionCmd.Flags().BoolVar(&migrateDryRun, "dry-run", false, "intercept writes and report what would change")
	migrateDimensionCmd.Flags().BoolVar(&migrateCheckIdempotency, "check-idempotency", false, "run the migration twice in dry-run mode and compare outcomes")

	_ = migrateDimensionCmd.MarkFlagRequired("target-dimension")
}

func runMigrateDimension(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}

	config := migration.DimensionConfig{
		Collection:      args[0],
		TargetDimension: migrateTargetDimension,
		BatchSize:       migrateBatchSize,
		MaxConcurrency:  migrateMaxConcurrency,
		DryRun:          migrateDryRun,
	}

	migrator := migration.NewDimensionMigrator(rt.vectorStore, rt.engine, rt.logger)

	ctx, cancel := rt.operationContext(cmd)
	defer cancel()

	if migrateCheckIdempotency {
		check, err := migrator.CheckIdempotency(ctx, config)
		if err != nil {
			return err
		}
		rt.display.Success(fmt.Sprintf("Migration of %s to dimension %d is idempotent (checksum %s)",
			config.Collection, config.TargetDimension, check.FirstRun.AfterChecksum))
		return nil
	}

	if !migrateDryRun && !autoApprove {
		confirmed, err := rt.display.NewConfirmationDialog(
			fmt.Sprintf("This rewrites every vector in collection %s to dimension %d",
				config.Collection, config.TargetDimension)).Show()
		if err != nil {
			return err
		}
		if !confirmed {
			rt.display.Info("Migration cancelled")
			return nil
		}
	}

	result, err := migrator.Run(ctx, config)
	if err != nil {
		if result != nil {
			reportMigration(rt, result)
		}
		return err
	}

	if !result.DryRun {
		if err := rt.saveBackends(); err != nil {
			return err
		}
	}

	reportMigration(rt, result)
	return nil
}

func reportMigration(rt *runtime, result *migration.Result) {
	prefix := ""
	if result.DryRun {
		prefix = "[dry run] "
	}

	if result.AlreadyMigrated {
		rt.display.Info(fmt.Sprintf("%sCollection %s already has dimension %d",
			prefix, result.Collection, result.TargetDim))
		return
	}

	line := fmt.Sprintf("%sMigrated %s from dimension %d to %d: %d points, %d succeeded, %d failed (%s)",
		prefix, result.Collection, result.SourceDim, result.TargetDim,
		result.Processed, result.Succeeded, result.Failed, result.Duration.Round(0))

	if result.Success() {
		rt.display.Success(line)
	} else {
		rt.display.Error(line)
	}
	for _, message := range result.Errors {
		rt.display.Error("  " + message)
	}
}
