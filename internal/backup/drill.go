package backup

import (
	"context"
	"time"

	"memstore-backup/internal/checksum"
	"memstore-backup/internal/logging"
)

// DrillConfig controls a disaster recovery drill
type DrillConfig struct {
	// Components limits the drill to the named components. Empty drills
	// everything.
	Components []string

	// AllowedDifferences lists checksum difference keys tolerated by the
	// comparison phase, for state known to change across a restore cycle.
	// Empty by default: a passing drill means a byte-faithful round trip.
	AllowedDifferences []string

	Description string
}

// DisasterRecoveryDrill proves that backups actually restore. It runs the
// full cycle against the live system: back up, record the state checksum,
// restore from the backup just taken, and compare state before and after.
//
// A drill mutates the backends it exercises. Run it against systems where a
// restore cycle is acceptable.
type DisasterRecoveryDrill struct {
	orchestrator *Orchestrator
	restore      *RestoreOrchestrator
	registry     *HandlerRegistry
	engine       ChecksumEngine
	logger       *logging.Logger
}

// NewDisasterRecoveryDrill creates a drill runner
func NewDisasterRecoveryDrill(orchestrator *Orchestrator, restore *RestoreOrchestrator, engine ChecksumEngine, logger *logging.Logger) *DisasterRecoveryDrill {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &DisasterRecoveryDrill{
		orchestrator: orchestrator,
		restore:      restore,
		registry:     orchestrator.Registry(),
		engine:       engine,
		logger:       logger,
	}
}

// Run executes the four drill phases in order. A failing phase stops the
// drill; the phases already run stay in the result for diagnosis.
func (d *DisasterRecoveryDrill) Run(ctx context.Context, config DrillConfig) (*DrillResult, error) {
	result := &DrillResult{
		DrillID:   GenerateIDWithPrefix("drill"),
		StartedAt: time.Now().UTC(),
	}

	// Phase one: take a backup. The drill demands a clean one; a partial
	// backup would make the comparison meaningless.
	manifest, err := d.runBackupPhase(ctx, config, result)
	if err != nil {
		return d.finish(result, err)
	}
	result.BackupID = manifest.BackupID

	// Phase two: record the live state checksum before restore touches it.
	before, err := d.runChecksumPhase(ctx, config, result)
	if err != nil {
		return d.finish(result, err)
	}

	// Phase three: restore from the backup just taken.
	if err := d.runRestorePhase(ctx, manifest.BackupID, config, result); err != nil {
		return d.finish(result, err)
	}

	// Phase four: compare state before and after the cycle.
	if err := d.runComparePhase(ctx, config, before, result); err != nil {
		return d.finish(result, err)
	}

	result.Passed = len(result.UnexpectedDiffs) == 0
	return d.finish(result, nil)
}

func (d *DisasterRecoveryDrill) runBackupPhase(ctx context.Context, config DrillConfig, result *DrillResult) (*BackupManifest, error) {
	start := time.Now()

	manifest, err := d.orchestrator.CreateBackup(ctx, BackupConfig{
		Kind:        BackupKindSnapshot,
		Components:  config.Components,
		FailFast:    true,
		Description: config.Description,
		Tags:        map[string]string{"drill": "true"},
	})

	d.recordPhase(result, DrillPhaseBackup, start, err)
	d.logger.LogDrillPhase(result.DrillID, string(DrillPhaseBackup), time.Since(start), err)

	return manifest, err
}

func (d *DisasterRecoveryDrill) runChecksumPhase(ctx context.Context, config DrillConfig, result *DrillResult) (*checksum.Data, error) {
	start := time.Now()

	before, err := d.currentState(ctx, config.Components)

	d.recordPhase(result, DrillPhaseChecksum, start, err)
	d.logger.LogDrillPhase(result.DrillID, string(DrillPhaseChecksum), time.Since(start), err)

	return before, err
}

func (d *DisasterRecoveryDrill) runRestorePhase(ctx context.Context, backupID string, config DrillConfig, result *DrillResult) error {
	start := time.Now()

	restoreResult, err := d.restore.Restore(ctx, backupID, RestoreOptions{
		Mode:       RestoreModeDisasterRecovery,
		Components: config.Components,
	})
	if err == nil && !restoreResult.Success() {
		err = NewPartialFailureError("drill restore did not fully succeed", nil).
			WithContext("restore_errors", restoreResult.Errors)
	}

	d.recordPhase(result, DrillPhaseRestore, start, err)
	d.logger.LogDrillPhase(result.DrillID, string(DrillPhaseRestore), time.Since(start), err)

	return err
}

func (d *DisasterRecoveryDrill) runComparePhase(ctx context.Context, config DrillConfig, before *checksum.Data, result *DrillResult) error {
	start := time.Now()

	after, err := d.currentState(ctx, config.Components)
	if err == nil {
		var comparison *checksum.Comparison
		comparison, err = d.engine.Compare(before, after)
		if err == nil {
			result.Comparison = comparison
			result.UnexpectedDiffs = filterAllowed(comparison, config.AllowedDifferences)
		}
	}

	d.recordPhase(result, DrillPhaseCompare, start, err)
	d.logger.LogDrillPhase(result.DrillID, string(DrillPhaseCompare), time.Since(start), err)

	return err
}

func (d *DisasterRecoveryDrill) currentState(ctx context.Context, componentNames []string) (*checksum.Data, error) {
	handlers, err := d.registry.Select(componentNames)
	if err != nil {
		return nil, err
	}

	components := make(map[string]string)
	recordCounts := make(map[string]int64)
	for _, handler := range handlers {
		fingerprint, count, err := handler.CurrentStateChecksum(ctx)
		if err != nil {
			return nil, err
		}
		components[handler.Name()] = fingerprint
		recordCounts[handler.Name()] = count
	}

	return d.engine.BuildData(components, recordCounts)
}

func (d *DisasterRecoveryDrill) recordPhase(result *DrillResult, phase DrillPhase, start time.Time, err error) {
	phaseResult := DrillPhaseResult{Phase: phase, Duration: time.Since(start)}
	if err != nil {
		phaseResult.Error = err.Error()
	}
	result.Phases = append(result.Phases, phaseResult)
}

func (d *DisasterRecoveryDrill) finish(result *DrillResult, err error) (*DrillResult, error) {
	result.CompletedAt = time.Now().UTC()
	return result, err
}

func filterAllowed(comparison *checksum.Comparison, allowed []string) []string {
	allowedSet := make(map[string]bool, len(allowed))
	for _, key := range allowed {
		allowedSet[key] = true
	}

	var unexpected []string
	for _, key := range comparison.DifferenceKeys() {
		if !allowedSet[key] {
			unexpected = append(unexpected, key)
		}
	}
	return unexpected
}
