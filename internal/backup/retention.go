package backup

import (
	"context"
	"sort"
	"time"

	"memstore-backup/internal/logging"
)

// RetentionResult describes the outcome of a retention pass
type RetentionResult struct {
	EvaluatedAt time.Time `json:"evaluated_at"`
	Deleted     []string  `json:"deleted"`
	Kept        []string  `json:"kept"`
	SpaceFreed  int64     `json:"space_freed"`
	DryRun      bool      `json:"dry_run"`
}

// RetentionManager prunes old backups according to the retention policy.
// Every pass keeps at least the newest backup regardless of policy.
type RetentionManager struct {
	orchestrator *Orchestrator
	config       *RetentionConfig
	logger       *logging.Logger
}

// NewRetentionManager creates a retention manager
func NewRetentionManager(orchestrator *Orchestrator, config *RetentionConfig, logger *logging.Logger) *RetentionManager {
	if config == nil {
		config = &RetentionConfig{}
		config.SetDefaults()
	}
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &RetentionManager{
		orchestrator: orchestrator,
		config:       config,
		logger:       logger,
	}
}

// Apply evaluates the retention policy against all stored backups and deletes
// the ones no rule keeps. With dryRun the result reports what would be
// deleted without touching anything.
func (rm *RetentionManager) Apply(ctx context.Context, dryRun bool) (*RetentionResult, error) {
	manifests, err := rm.orchestrator.ListBackups(BackupFilter{})
	if err != nil {
		return nil, err
	}

	result := &RetentionResult{
		EvaluatedAt: time.Now().UTC(),
		DryRun:      dryRun,
	}

	toDelete, toKeep := rm.applyRetentionRules(manifests)
	for _, manifest := range toKeep {
		result.Kept = append(result.Kept, manifest.BackupID)
	}

	for _, manifest := range toDelete {
		if !dryRun {
			if err := rm.orchestrator.DeleteBackup(ctx, manifest.BackupID); err != nil {
				rm.logger.WithFields(map[string]interface{}{
					"backup_id": manifest.BackupID,
					"error":     err.Error(),
				}).Warn("Failed to delete backup during retention pass")
				result.Kept = append(result.Kept, manifest.BackupID)
				continue
			}
		}
		result.Deleted = append(result.Deleted, manifest.BackupID)
		result.SpaceFreed += manifest.Size
	}

	rm.logger.WithFields(map[string]interface{}{
		"deleted":     len(result.Deleted),
		"kept":        len(result.Kept),
		"space_freed": result.SpaceFreed,
		"dry_run":     dryRun,
	}).Info("Retention policy applied")

	return result, nil
}

// applyRetentionRules partitions manifests, newest first, into deletion
// candidates and keepers. A backup survives if any configured rule keeps it.
func (rm *RetentionManager) applyRetentionRules(manifests []*BackupManifest) ([]*BackupManifest, []*BackupManifest) {
	if len(manifests) == 0 {
		return nil, nil
	}

	sort.Slice(manifests, func(i, j int) bool {
		return manifests[i].CreatedAt.After(manifests[j].CreatedAt)
	})

	keepMap := make(map[string]bool)

	// The newest backup is never deleted
	keepMap[manifests[0].BackupID] = true

	if rm.config.MaxBackups > 0 {
		for i := 0; i < len(manifests) && i < rm.config.MaxBackups; i++ {
			keepMap[manifests[i].BackupID] = true
		}
	}

	if rm.config.MaxAge > 0 {
		cutoff := time.Now().Add(-rm.config.MaxAge)
		for _, manifest := range manifests {
			if manifest.CreatedAt.After(cutoff) {
				keepMap[manifest.BackupID] = true
			}
		}
	}

	if rm.config.KeepDaily > 0 {
		rm.applyPeriodicRetention(manifests, keepMap, rm.config.KeepDaily, 24*time.Hour)
	}
	if rm.config.KeepWeekly > 0 {
		rm.applyPeriodicRetention(manifests, keepMap, rm.config.KeepWeekly, 7*24*time.Hour)
	}
	if rm.config.KeepMonthly > 0 {
		rm.applyPeriodicRetention(manifests, keepMap, rm.config.KeepMonthly, 30*24*time.Hour)
	}

	var toDelete, toKeep []*BackupManifest
	for _, manifest := range manifests {
		if keepMap[manifest.BackupID] || rm.shouldProtect(manifest) {
			toKeep = append(toKeep, manifest)
		} else {
			toDelete = append(toDelete, manifest)
		}
	}

	return toDelete, toKeep
}

// applyPeriodicRetention keeps the newest backup from each of the most recent
// keepCount periods.
func (rm *RetentionManager) applyPeriodicRetention(manifests []*BackupManifest, keepMap map[string]bool, keepCount int, period time.Duration) {
	now := time.Now()
	buckets := make(map[int][]*BackupManifest)

	for _, manifest := range manifests {
		index := int(now.Sub(manifest.CreatedAt) / period)
		buckets[index] = append(buckets[index], manifest)
	}

	indexes := make([]int, 0, len(buckets))
	for index := range buckets {
		indexes = append(indexes, index)
	}
	sort.Ints(indexes)

	kept := 0
	for _, index := range indexes {
		if kept >= keepCount {
			break
		}

		bucket := buckets[index]
		sort.Slice(bucket, func(i, j int) bool {
			return bucket[i].CreatedAt.After(bucket[j].CreatedAt)
		})
		keepMap[bucket[0].BackupID] = true
		kept++
	}
}

func (rm *RetentionManager) shouldProtect(manifest *BackupManifest) bool {
	if manifest.Tags["protected"] == "true" {
		return true
	}

	// Keep pre-migration backups around for a week in case of rollback
	if manifest.Tags["type"] == "pre-migration" && time.Since(manifest.CreatedAt) < 7*24*time.Hour {
		return true
	}

	// Keep failed backups briefly for debugging
	if manifest.Status == BackupStatusFailed && time.Since(manifest.CreatedAt) < 24*time.Hour {
		return true
	}

	return false
}
