package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"memstore-backup/internal/checksum"
	"memstore-backup/internal/logging"
)

const systemSnapshotFileName = "system_metadata.json"

// Orchestrator coordinates backup creation across all registered component
// handlers. A failing component never takes the run down with it unless
// fail-fast is requested: the failure is recorded in the manifest and the
// remaining components still get exported.
type Orchestrator struct {
	registry    *HandlerRegistry
	store       ManifestStore
	engine      ChecksumEngine
	logger      *logging.Logger
	offsite     OffsiteProvider
	toolVersion string
}

// NewOrchestrator creates a backup orchestrator
func NewOrchestrator(registry *HandlerRegistry, store ManifestStore, engine ChecksumEngine, logger *logging.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &Orchestrator{
		registry: registry,
		store:    store,
		engine:   engine,
		logger:   logger,
	}
}

// SetOffsiteProvider enables replication of completed backups to offsite storage
func (o *Orchestrator) SetOffsiteProvider(provider OffsiteProvider) {
	o.offsite = provider
}

// SetToolVersion records the tool version stamped into system metadata
func (o *Orchestrator) SetToolVersion(version string) {
	o.toolVersion = version
}

// CreateBackup runs a full backup: pre-backup checksum, per-component
// export, tree checksum, manifest persistence, and optional offsite
// replication. Configuration errors fail before any component is touched.
func (o *Orchestrator) CreateBackup(ctx context.Context, config BackupConfig) (*BackupManifest, error) {
	start := time.Now()

	if err := config.Validate(); err != nil {
		return nil, NewConfigurationError("invalid backup configuration", err)
	}

	handlers, err := o.registry.Select(config.Components)
	if err != nil {
		return nil, err
	}
	if len(handlers) == 0 {
		return nil, NewConfigurationError("no component handlers registered", nil)
	}

	var parent *BackupManifest
	if config.Kind == BackupKindIncremental || config.Kind == BackupKindDifferential {
		parent, err = o.store.LoadManifest(config.ParentBackupID)
		if err != nil {
			return nil, NewConfigurationError(
				fmt.Sprintf("parent backup %s is not available", config.ParentBackupID), err)
		}
	}

	backupID := GenerateBackupID()
	dir := o.store.BackupDir(backupID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, NewStorageError("failed to create backup directory", err)
	}

	kind := config.Kind
	if kind == "" {
		kind = BackupKindFull
	}

	manifest := &BackupManifest{
		BackupID:        backupID,
		Kind:            kind,
		ParentBackupID:  config.ParentBackupID,
		CreatedAt:       time.Now().UTC(),
		CreatedBy:       currentUser(),
		Description:     config.Description,
		Tags:            config.Tags,
		Status:          BackupStatusRunning,
		Components:      make(map[string]*ComponentMeta),
		SystemMetadata:  o.captureSystemMetadata(),
		StorageLocation: dir,
	}

	preBackup := o.preBackupChecksum(ctx, handlers)

	var failed []string
	var completed []string
	var skipped []string
	for _, handler := range handlers {
		if meta := unchangedSinceParent(parent, handler.Name(), preBackup); meta != nil {
			manifest.Components[handler.Name()] = meta
			skipped = append(skipped, handler.Name())
			continue
		}

		meta, err := o.exportComponent(ctx, handler, dir)
		manifest.Components[handler.Name()] = meta

		if err != nil {
			failed = append(failed, handler.Name())
			if config.FailFast {
				manifest.Status = BackupStatusFailed
				manifest.CompletedAt = time.Now().UTC()
				_ = o.store.SaveManifest(manifest)
				o.logger.LogBackupRun(backupID, completed, failed, time.Since(start), err)
				return manifest, err
			}
			continue
		}

		completed = append(completed, handler.Name())
		size, files := componentStats(dir, handler.Name())
		manifest.Size += size
		manifest.FileCount += files
	}

	switch {
	case len(completed) == 0 && len(skipped) == 0:
		manifest.Status = BackupStatusFailed
	case len(failed) > 0:
		manifest.Status = BackupStatusCompletedWithError
	default:
		manifest.Status = BackupStatusCompleted
	}

	// The system snapshot goes on disk before the tree is fingerprinted, so
	// the pre-backup checksum is itself protected by the corruption gate.
	snapshot := &SystemSnapshot{
		Components:        handlerNames(handlers),
		PreBackupChecksum: preBackup,
		System:            manifest.SystemMetadata,
		WrittenAt:         time.Now().UTC(),
	}
	if err := writeJSONFile(filepath.Join(dir, systemSnapshotFileName), snapshot); err != nil {
		manifest.Status = BackupStatusFailed
		manifest.CompletedAt = time.Now().UTC()
		_ = o.store.SaveManifest(manifest)
		return manifest, NewStorageError("failed to write system snapshot", err)
	}
	// The snapshot file is sealed under the tree checksum too.
	manifest.FileCount++

	treeChecksum, err := o.engine.DirectoryFingerprint(dir, manifestFileName)
	if err != nil {
		manifest.Status = BackupStatusFailed
		manifest.CompletedAt = time.Now().UTC()
		_ = o.store.SaveManifest(manifest)
		return manifest, NewStorageError("failed to fingerprint backup tree", err)
	}
	manifest.TreeChecksum = treeChecksum
	manifest.CompletedAt = time.Now().UTC()

	if err := o.store.SaveManifest(manifest); err != nil {
		return manifest, err
	}

	if len(completed) == 0 && len(skipped) == 0 {
		err := NewPartialFailureError("every component failed to export", nil)
		o.logger.LogBackupRun(backupID, completed, failed, time.Since(start), err)
		return manifest, err
	}

	if o.offsite != nil && manifest.Status == BackupStatusCompleted {
		if replica, err := o.offsite.Upload(ctx, backupID, dir); err != nil {
			// Offsite replication is best effort; the local backup stands.
			o.logger.WithFields(map[string]interface{}{
				"backup_id": backupID,
				"error":     err.Error(),
			}).Warn("Offsite replication failed")
		} else {
			// The manifest sits outside its own tree checksum, so recording
			// the replica details does not invalidate the backup.
			manifest.CompressedSize = replica.Bytes
			manifest.CompressionType = replica.Compression
			manifest.EncryptionEnabled = replica.Encrypted
			if err := o.store.SaveManifest(manifest); err != nil {
				o.logger.Warnf("Failed to record offsite replica details: %v", err)
			}
		}
	}

	o.logger.LogBackupRun(backupID, completed, failed, time.Since(start), nil)

	if len(failed) > 0 {
		return manifest, NewPartialFailureError(
			fmt.Sprintf("backup completed with %d failed components", len(failed)), nil)
	}

	return manifest, nil
}

// preBackupChecksum fingerprints every reachable component before export.
// Unreachable components are left out; their export will record the failure.
func (o *Orchestrator) preBackupChecksum(ctx context.Context, handlers []ComponentHandler) *checksum.Data {
	components := make(map[string]string)
	recordCounts := make(map[string]int64)

	for _, handler := range handlers {
		fingerprint, count, err := handler.CurrentStateChecksum(ctx)
		if err != nil {
			o.logger.WithFields(map[string]interface{}{
				"component": handler.Name(),
				"error":     err.Error(),
			}).Warn("Pre-backup checksum unavailable for component")
			continue
		}
		components[handler.Name()] = fingerprint
		recordCounts[handler.Name()] = count
	}

	data, err := o.engine.BuildData(components, recordCounts)
	if err != nil {
		o.logger.Warnf("Failed to assemble pre-backup checksum: %v", err)
		return nil
	}

	return data
}

func (o *Orchestrator) exportComponent(ctx context.Context, handler ComponentHandler, dir string) (*ComponentMeta, error) {
	componentDir := filepath.Join(dir, handler.Name())

	meta, err := handler.CreateBackup(ctx, componentDir)
	if err != nil {
		o.logger.WithFields(map[string]interface{}{
			"component": handler.Name(),
			"error":     err.Error(),
		}).Error("Component export failed")

		return &ComponentMeta{
			Name:   handler.Name(),
			Status: ComponentStatusFailed,
			Error:  err.Error(),
		}, err
	}

	return meta, nil
}

// VerifyBackup re-checks a stored backup: the tree checksum against the
// manifest and every component's files against its component manifest.
func (o *Orchestrator) VerifyBackup(ctx context.Context, backupID string) (*ValidationResult, error) {
	manifest, err := o.store.LoadManifest(backupID)
	if err != nil {
		return nil, err
	}

	result := &ValidationResult{
		Valid:         true,
		ChecksumValid: true,
		CheckedAt:     time.Now().UTC(),
	}

	dir := o.store.BackupDir(backupID)
	treeChecksum, err := o.engine.DirectoryFingerprint(dir, manifestFileName)
	if err != nil {
		result.Valid = false
		result.ChecksumValid = false
		result.Errors = append(result.Errors, fmt.Sprintf("failed to fingerprint backup tree: %v", err))
		return result, nil
	}

	if manifest.TreeChecksum != "" && treeChecksum != manifest.TreeChecksum {
		result.Valid = false
		result.ChecksumValid = false
		result.Errors = append(result.Errors,
			fmt.Sprintf("tree checksum mismatch: manifest %s, computed %s", manifest.TreeChecksum, treeChecksum))
	}

	// Completed backups carry a system snapshot; a failed run may have
	// aborted before writing one.
	if manifest.Status == BackupStatusCompleted || manifest.Status == BackupStatusCompletedWithError {
		if _, err := o.LoadSystemSnapshot(backupID); err != nil {
			result.Valid = false
			result.Errors = append(result.Errors, fmt.Sprintf("system snapshot unreadable: %v", err))
		}
	}

	for name, component := range manifest.Components {
		if component.Status == ComponentStatusSkipped {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("component %s was unchanged; its data lives in parent backup %s", name, manifest.ParentBackupID))
			continue
		}
		if component.Status != ComponentStatusCompleted {
			result.Warnings = append(result.Warnings, fmt.Sprintf("component %s was not exported: %s", name, component.Error))
			continue
		}

		handler, err := o.registry.Get(name)
		if err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("no handler available to verify component %s", name))
			continue
		}

		if err := handler.VerifyBackup(ctx, filepath.Join(dir, name)); err != nil {
			result.Valid = false
			result.Errors = append(result.Errors, fmt.Sprintf("component %s failed verification: %v", name, err))
		}
	}

	return result, nil
}

// ListBackups returns manifests matching the filter, newest first
func (o *Orchestrator) ListBackups(filter BackupFilter) ([]*BackupManifest, error) {
	manifests, err := o.store.ListManifests()
	if err != nil {
		return nil, err
	}

	var matched []*BackupManifest
	for _, manifest := range manifests {
		if matchesFilter(manifest, filter) {
			matched = append(matched, manifest)
		}
	}

	return matched, nil
}

// DeleteBackup removes a backup locally and, when replication is enabled,
// offsite as well
func (o *Orchestrator) DeleteBackup(ctx context.Context, backupID string) error {
	if err := o.store.DeleteBackup(backupID); err != nil {
		return err
	}

	if o.offsite != nil {
		if err := o.offsite.Delete(ctx, backupID); err != nil {
			o.logger.WithFields(map[string]interface{}{
				"backup_id": backupID,
				"error":     err.Error(),
			}).Warn("Failed to delete offsite replica")
		}
	}

	return nil
}

// Store exposes the underlying manifest store
func (o *Orchestrator) Store() ManifestStore {
	return o.store
}

// Registry exposes the handler registry
func (o *Orchestrator) Registry() *HandlerRegistry {
	return o.registry
}

// LoadSystemSnapshot reads the system snapshot written next to a backup's
// manifest
func (o *Orchestrator) LoadSystemSnapshot(backupID string) (*SystemSnapshot, error) {
	var snapshot SystemSnapshot
	path := filepath.Join(o.store.BackupDir(backupID), systemSnapshotFileName)
	if err := readJSONFile(path, &snapshot); err != nil {
		return nil, NewCorruptionError(
			fmt.Sprintf("missing or malformed system snapshot for backup %s", backupID), err)
	}
	return &snapshot, nil
}

// Helper methods

func handlerNames(handlers []ComponentHandler) []string {
	names := make([]string, 0, len(handlers))
	for _, handler := range handlers {
		names = append(names, handler.Name())
	}
	return names
}

func (o *Orchestrator) captureSystemMetadata() *SystemMetadata {
	hostname, _ := os.Hostname()
	return &SystemMetadata{
		Hostname:    hostname,
		Platform:    runtime.GOOS + "/" + runtime.GOARCH,
		ToolVersion: o.toolVersion,
		CapturedAt:  time.Now().UTC(),
	}
}

// unchangedSinceParent decides whether an incremental export can skip a
// component. It can when the parent exported it successfully and the live
// state fingerprint still matches the parent's recorded checksum; the
// skipped entry carries the parent's checksum so verification stays possible
// through the chain. Any doubt falls back to a full export.
func unchangedSinceParent(parent *BackupManifest, name string, pre *checksum.Data) *ComponentMeta {
	if parent == nil || pre == nil {
		return nil
	}

	parentMeta := parent.Components[name]
	if parentMeta == nil || parentMeta.Status != ComponentStatusCompleted || parentMeta.Checksum == "" {
		return nil
	}

	current, ok := pre.Components[name]
	if !ok || current != parentMeta.Checksum {
		return nil
	}

	return &ComponentMeta{
		Name:        name,
		Status:      ComponentStatusSkipped,
		RecordCount: parentMeta.RecordCount,
		Checksum:    parentMeta.Checksum,
	}
}

func matchesFilter(manifest *BackupManifest, filter BackupFilter) bool {
	if filter.Kind != "" && manifest.Kind != filter.Kind {
		return false
	}
	if filter.Status != nil && manifest.Status != *filter.Status {
		return false
	}
	if filter.CreatedAfter != nil && !manifest.CreatedAt.After(*filter.CreatedAfter) {
		return false
	}
	if filter.CreatedBefore != nil && !manifest.CreatedAt.Before(*filter.CreatedBefore) {
		return false
	}
	for key, value := range filter.Tags {
		if manifest.Tags[key] != value {
			return false
		}
	}
	return true
}

func currentUser() string {
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	if user := os.Getenv("USERNAME"); user != "" {
		return user
	}
	return "unknown"
}

func componentStats(dir, component string) (size, files int64) {
	_ = filepath.WalkDir(filepath.Join(dir, component), func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		files++
		if info, err := d.Info(); err == nil {
			size += info.Size()
		}
		return nil
	})
	return size, files
}
