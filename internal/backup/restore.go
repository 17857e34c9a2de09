package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"memstore-backup/internal/checksum"
	"memstore-backup/internal/logging"
)

// RestoreOptions controls a restore run
type RestoreOptions struct {
	// Mode records why the restore is happening; it does not change the
	// mechanics, only the reporting.
	Mode RestoreMode

	// Components limits the restore to the named components. Empty means
	// every component the backup completed.
	Components []string

	// SkipVerification disables the post-restore state checksum comparison.
	SkipVerification bool

	// FromOffsite fetches the backup tree from offsite storage when it is
	// not present locally.
	FromOffsite bool
}

// RestoreOrchestrator rebuilds backend state from a stored backup.
//
// The corruption gate runs first: the backup tree's checksum is recomputed
// and compared against the manifest before a single write reaches any
// backend. A corrupted backup aborts the run outright; restoring from it
// could destroy the last good state.
type RestoreOrchestrator struct {
	registry *HandlerRegistry
	store    ManifestStore
	engine   ChecksumEngine
	logger   *logging.Logger
	offsite  OffsiteProvider
}

// NewRestoreOrchestrator creates a restore orchestrator
func NewRestoreOrchestrator(registry *HandlerRegistry, store ManifestStore, engine ChecksumEngine, logger *logging.Logger) *RestoreOrchestrator {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &RestoreOrchestrator{
		registry: registry,
		store:    store,
		engine:   engine,
		logger:   logger,
	}
}

// SetOffsiteProvider enables fetching backups from offsite storage
func (r *RestoreOrchestrator) SetOffsiteProvider(provider OffsiteProvider) {
	r.offsite = provider
}

// Restore rebuilds the backends from backupID. Recoverable per-component
// failures are accumulated in the result rather than aborting the run; only
// corruption and other fatal errors stop it. Callers decide success through
// result.Success().
//
// Components a backup skipped as unchanged are resolved through the parent
// chain: each ancestor tree passes the corruption gate before its data is
// used.
func (r *RestoreOrchestrator) Restore(ctx context.Context, backupID string, opts RestoreOptions) (*RestoreResult, error) {
	start := time.Now()

	mode := opts.Mode
	if mode == "" {
		mode = RestoreModeFull
	}

	result := &RestoreResult{
		BackupID:     backupID,
		Mode:         mode,
		StartedAt:    time.Now().UTC(),
		Verification: make(VerificationResults),
	}

	manifest, err := r.loadManifest(ctx, backupID, opts)
	if err != nil {
		return nil, err
	}

	// Corruption gate. Nothing is written to any backend until the stored
	// tree proves it still matches the manifest. Parent trees consulted for
	// skipped components pass the same gate before their data is used.
	verified := make(map[string]bool)
	if err := r.verifyTree(manifest, verified); err != nil {
		return nil, err
	}

	components, err := r.selectComponents(manifest, opts.Components)
	if err != nil {
		return nil, err
	}

	result.PreRestoreChecksum = r.liveState(ctx, components)

	for _, name := range components {
		if err := r.restoreComponent(ctx, manifest, name, opts, verified, result); err != nil {
			if IsFatal(err) {
				result.PostRestoreChecksum = r.liveState(ctx, components)
				result.CompletedAt = time.Now().UTC()
				r.logger.LogRestoreRun(backupID, result.RestoredComponents, len(result.Errors), time.Since(start), err)
				return result, err
			}
			result.AddError(name, err)
		}
	}

	result.PostRestoreChecksum = r.liveState(ctx, components)
	result.CompletedAt = time.Now().UTC()
	r.logger.LogRestoreRun(backupID, result.RestoredComponents, len(result.Errors), time.Since(start), nil)

	return result, nil
}

func (r *RestoreOrchestrator) restoreComponent(ctx context.Context, manifest *BackupManifest, name string, opts RestoreOptions, verified map[string]bool, result *RestoreResult) error {
	meta, exists := manifest.Components[name]
	if !exists {
		return NewNotFoundError(fmt.Sprintf("backup does not contain component %s", name), nil)
	}

	source := manifest
	switch meta.Status {
	case ComponentStatusCompleted:
	case ComponentStatusSkipped:
		parent, parentMeta, err := r.resolveThroughParents(ctx, manifest, name, opts, verified)
		if err != nil {
			return err
		}
		source, meta = parent, parentMeta
	default:
		reason := meta.Error
		if reason == "" {
			reason = "status " + string(meta.Status)
		}
		return NewValidationError(
			fmt.Sprintf("component %s was not exported successfully: %s", name, reason), nil)
	}

	handler, err := r.registry.Get(name)
	if err != nil {
		return err
	}

	componentDir := filepath.Join(r.store.BackupDir(source.BackupID), name)
	restored, err := handler.RestoreBackup(ctx, componentDir)
	if err != nil {
		return err
	}

	result.RestoredComponents = append(result.RestoredComponents, name)

	r.logger.WithFields(map[string]interface{}{
		"component": name,
		"source":    source.BackupID,
		"records":   restored,
	}).Debug("Component restored")

	if opts.SkipVerification {
		return nil
	}

	// Verification compares the live state fingerprint against the one the
	// backup recorded at export time. A mismatch is reported, not fatal;
	// the caller sees it in the verification results.
	fingerprint, _, err := handler.CurrentStateChecksum(ctx)
	if err != nil {
		result.Verification[name] = false
		result.AddError(name, NewConnectivityError("post-restore verification unavailable", err))
		return nil
	}

	expected := meta.Checksum
	verifiedOK := expected == "" || fingerprint == expected
	result.Verification[name] = verifiedOK
	if !verifiedOK {
		result.AddError(name, NewValidationError(
			fmt.Sprintf("restored state checksum %s does not match backup checksum %s", fingerprint, expected), nil))
	}

	return nil
}

// resolveThroughParents walks the parent chain until it finds the backup that
// actually exported a component the requested backup skipped. Every manifest
// visited passes the corruption gate before its data is eligible.
func (r *RestoreOrchestrator) resolveThroughParents(ctx context.Context, manifest *BackupManifest, name string, opts RestoreOptions, verified map[string]bool) (*BackupManifest, *ComponentMeta, error) {
	seen := map[string]bool{manifest.BackupID: true}
	current := manifest

	for {
		parentID := current.ParentBackupID
		if parentID == "" {
			return nil, nil, NewCorruptionError(
				fmt.Sprintf("component %s was skipped by backup %s, which has no parent to restore it from",
					name, current.BackupID), nil)
		}
		if seen[parentID] {
			return nil, nil, NewCorruptionError(
				fmt.Sprintf("backup %s has a cyclic parent chain", manifest.BackupID), nil)
		}
		seen[parentID] = true

		parent, err := r.loadManifest(ctx, parentID, opts)
		if err != nil {
			return nil, nil, NewNotFoundError(
				fmt.Sprintf("component %s lives in parent backup %s, which is not available", name, parentID), err)
		}
		if err := r.verifyTree(parent, verified); err != nil {
			return nil, nil, err
		}

		meta := parent.Components[name]
		switch {
		case meta == nil:
			return nil, nil, NewCorruptionError(
				fmt.Sprintf("component %s was skipped by backup %s but parent backup %s never exported it",
					name, manifest.BackupID, parentID), nil)
		case meta.Status == ComponentStatusCompleted:
			return parent, meta, nil
		case meta.Status == ComponentStatusSkipped:
			current = parent
		default:
			return nil, nil, NewCorruptionError(
				fmt.Sprintf("component %s was skipped by backup %s but parent backup %s failed to export it: %s",
					name, manifest.BackupID, parentID, meta.Error), nil)
		}
	}
}

// verifyTree runs the corruption gate over one backup tree, at most once per
// run. A mismatch marks the backup corrupted before aborting.
func (r *RestoreOrchestrator) verifyTree(manifest *BackupManifest, verified map[string]bool) error {
	if verified[manifest.BackupID] || manifest.TreeChecksum == "" {
		verified[manifest.BackupID] = true
		return nil
	}

	dir := r.store.BackupDir(manifest.BackupID)
	computed, err := r.engine.DirectoryFingerprint(dir, manifestFileName)
	if err != nil {
		return NewStorageError("failed to fingerprint backup tree before restore", err)
	}
	if computed != manifest.TreeChecksum {
		manifest.Status = BackupStatusCorrupted
		_ = r.store.SaveManifest(manifest)
		return NewCorruptionError(
			fmt.Sprintf("backup %s is corrupted: tree checksum %s does not match manifest %s",
				manifest.BackupID, computed, manifest.TreeChecksum), nil)
	}

	verified[manifest.BackupID] = true
	return nil
}

// liveState fingerprints the named components' current backend state. It is
// best effort: unreachable components are left out rather than failing the
// restore.
func (r *RestoreOrchestrator) liveState(ctx context.Context, components []string) *checksum.Data {
	fingerprints := make(map[string]string)
	recordCounts := make(map[string]int64)

	for _, name := range components {
		handler, err := r.registry.Get(name)
		if err != nil {
			continue
		}
		fingerprint, count, err := handler.CurrentStateChecksum(ctx)
		if err != nil {
			r.logger.WithFields(map[string]interface{}{
				"component": name,
				"error":     err.Error(),
			}).Warn("Live state checksum unavailable for component")
			continue
		}
		fingerprints[name] = fingerprint
		recordCounts[name] = count
	}

	data, err := r.engine.BuildData(fingerprints, recordCounts)
	if err != nil {
		r.logger.Warnf("Failed to assemble live state checksum: %v", err)
		return nil
	}

	return data
}

func (r *RestoreOrchestrator) selectComponents(manifest *BackupManifest, requested []string) ([]string, error) {
	if len(requested) == 0 {
		names := r.registry.Names()
		var present []string
		for _, name := range names {
			if _, exists := manifest.Components[name]; exists {
				present = append(present, name)
			}
		}
		if len(present) == 0 {
			return nil, NewValidationError("backup contains no restorable components", nil)
		}
		return present, nil
	}

	for _, name := range requested {
		if _, exists := manifest.Components[name]; !exists {
			return nil, NewNotFoundError(fmt.Sprintf("backup does not contain component %s", name), nil)
		}
	}
	return requested, nil
}

func (r *RestoreOrchestrator) loadManifest(ctx context.Context, backupID string, opts RestoreOptions) (*BackupManifest, error) {
	manifest, err := r.store.LoadManifest(backupID)
	if err == nil {
		return manifest, nil
	}

	if !opts.FromOffsite || r.offsite == nil || !IsErrorType(err, BackupErrorTypeNotFound) {
		return nil, err
	}

	dir := r.store.BackupDir(backupID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, NewStorageError("failed to create directory for offsite download", err)
	}
	if _, err := r.offsite.Download(ctx, backupID, dir); err != nil {
		return nil, err
	}

	return r.store.LoadManifest(backupID)
}
