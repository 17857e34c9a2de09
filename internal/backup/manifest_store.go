package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const manifestFileName = "manifest.json"

// LocalManifestStore keeps backup trees and their manifests on the local
// file system. Each backup lives under <basePath>/<backupID>/ with the
// manifest at its root next to the per-component directories.
type LocalManifestStore struct {
	basePath    string
	permissions os.FileMode
}

// NewLocalManifestStore creates a manifest store rooted at config.BasePath
func NewLocalManifestStore(config *LocalConfig) (*LocalManifestStore, error) {
	if config == nil {
		return nil, NewValidationError("local storage configuration is required", nil)
	}

	if err := config.Validate(); err != nil {
		return nil, NewValidationError("invalid local storage configuration", err)
	}

	store := &LocalManifestStore{
		basePath:    config.BasePath,
		permissions: config.Permissions,
	}

	if err := os.MkdirAll(store.basePath, store.permissions); err != nil {
		return nil, NewStorageError("failed to create base directory", err)
	}

	return store, nil
}

// SaveManifest validates and persists a manifest into its backup directory.
// The write is atomic: a half-written manifest is never observable.
func (s *LocalManifestStore) SaveManifest(manifest *BackupManifest) error {
	if manifest == nil {
		return NewValidationError("manifest cannot be nil", nil)
	}

	if err := manifest.Validate(); err != nil {
		return NewValidationError("invalid backup manifest", err)
	}

	dir := s.BackupDir(manifest.BackupID)
	if err := os.MkdirAll(dir, s.permissions); err != nil {
		return NewStorageError("failed to create backup directory", err)
	}

	if err := writeJSONFile(filepath.Join(dir, manifestFileName), manifest); err != nil {
		return NewStorageError("failed to write backup manifest", err)
	}

	return nil
}

// LoadManifest reads and validates the manifest for a backup
func (s *LocalManifestStore) LoadManifest(backupID string) (*BackupManifest, error) {
	if backupID == "" {
		return nil, NewValidationError("backup ID cannot be empty", nil)
	}

	path := filepath.Join(s.BackupDir(backupID), manifestFileName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, NewNotFoundError(fmt.Sprintf("backup %s not found", backupID), err)
	}
	if err != nil {
		return nil, NewStorageError("failed to read backup manifest", err)
	}

	var manifest BackupManifest
	if err := manifest.FromJSON(data); err != nil {
		return nil, NewCorruptionError(fmt.Sprintf("manifest for backup %s is unreadable", backupID), err)
	}

	return &manifest, nil
}

// ListManifests returns every readable manifest, newest first. Directories
// without a valid manifest are skipped rather than failing the listing.
func (s *LocalManifestStore) ListManifests() ([]*BackupManifest, error) {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, NewStorageError("failed to list backup directory", err)
	}

	var manifests []*BackupManifest
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		manifest, err := s.LoadManifest(entry.Name())
		if err != nil {
			continue
		}
		manifests = append(manifests, manifest)
	}

	sort.Slice(manifests, func(i, j int) bool {
		return manifests[i].CreatedAt.After(manifests[j].CreatedAt)
	})

	return manifests, nil
}

// DeleteBackup removes a backup tree and its manifest
func (s *LocalManifestStore) DeleteBackup(backupID string) error {
	if backupID == "" {
		return NewValidationError("backup ID cannot be empty", nil)
	}

	dir := s.BackupDir(backupID)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return NewNotFoundError(fmt.Sprintf("backup %s not found", backupID), err)
	}

	if err := os.RemoveAll(dir); err != nil {
		return NewStorageError("failed to delete backup directory", err)
	}

	return nil
}

// BackupDir returns the directory path for a specific backup
func (s *LocalManifestStore) BackupDir(backupID string) string {
	return filepath.Join(s.basePath, sanitizeBackupID(backupID))
}

// BasePath returns the root directory holding all backups
func (s *LocalManifestStore) BasePath() string {
	return s.basePath
}

// HealthCheck verifies that the backup directory is writable
func (s *LocalManifestStore) HealthCheck() error {
	testFile := filepath.Join(s.basePath, ".health_check")

	if err := os.WriteFile(testFile, []byte("health_check"), 0644); err != nil {
		return NewStorageError("backup directory is not writable", err)
	}
	if _, err := os.ReadFile(testFile); err != nil {
		return NewStorageError("backup directory is not readable", err)
	}

	_ = os.Remove(testFile)
	return nil
}

// sanitizeBackupID removes path separators so a backup ID cannot escape the
// base directory
func sanitizeBackupID(backupID string) string {
	sanitized := strings.ReplaceAll(backupID, "/", "_")
	sanitized = strings.ReplaceAll(sanitized, "\\", "_")
	sanitized = strings.ReplaceAll(sanitized, "..", "_")
	return sanitized
}
