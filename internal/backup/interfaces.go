package backup

import (
	"context"

	"memstore-backup/internal/checksum"
)

// ComponentHandler exports and restores one storage backend. Each backend
// gets its own implementation; the orchestrators only see this interface.
type ComponentHandler interface {
	// Name returns the component identifier used in manifests and checksums.
	Name() string

	// CreateBackup exports the component's state into dir and returns its
	// metadata. Connectivity failures return a connectivity error so the
	// orchestrator can skip the component instead of aborting.
	CreateBackup(ctx context.Context, dir string) (*ComponentMeta, error)

	// RestoreBackup loads the component's state from dir back into the
	// backend, replacing current contents.
	RestoreBackup(ctx context.Context, dir string) (int64, error)

	// VerifyBackup checks that the exported files under dir are complete
	// and internally consistent without touching the backend.
	VerifyBackup(ctx context.Context, dir string) error

	// CurrentStateChecksum fingerprints the component's live state.
	CurrentStateChecksum(ctx context.Context) (fingerprint string, recordCount int64, err error)
}

// OffsiteProvider replicates backup trees to and from remote storage.
// Providers operate on whole backup directories keyed by backup ID.
type OffsiteProvider interface {
	// Upload replicates the backup tree rooted at dir to offsite storage
	// and describes the stored replica.
	Upload(ctx context.Context, backupID string, dir string) (*ReplicaInfo, error)

	// Download fetches a replicated backup tree into dir.
	Download(ctx context.Context, backupID string, dir string) (int64, error)

	// Delete removes a replicated backup from offsite storage.
	Delete(ctx context.Context, backupID string) error

	// List returns the backup IDs present in offsite storage.
	List(ctx context.Context) ([]string, error)
}

// ManifestStore persists and retrieves backup manifests alongside backup trees
type ManifestStore interface {
	SaveManifest(manifest *BackupManifest) error
	LoadManifest(backupID string) (*BackupManifest, error)
	ListManifests() ([]*BackupManifest, error)
	DeleteBackup(backupID string) error
	BackupDir(backupID string) string
}

// ChecksumEngine is the subset of checksum computation the orchestrators need
type ChecksumEngine interface {
	DirectoryFingerprint(root string, exclude ...string) (string, error)
	BuildData(components map[string]string, recordCounts map[string]int64) (*checksum.Data, error)
	Compare(before, after *checksum.Data) (*checksum.Comparison, error)
}
