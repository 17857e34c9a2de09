package backup

import (
	"os"
	"time"

	"memstore-backup/internal/checksum"
)

// BackupManifest describes one complete backup: which components it holds,
// the state checksum captured before export, and the checksum of the written
// tree. The manifest is the unit of trust during restore.
type BackupManifest struct {
	BackupID       string                    `json:"backup_id"`
	Kind           BackupKind                `json:"kind"`
	ParentBackupID string                    `json:"parent_backup_id,omitempty"`
	CreatedAt      time.Time                 `json:"created_at"`
	CompletedAt    time.Time                 `json:"completed_at,omitempty"`
	CreatedBy      string                    `json:"created_by"`
	Description    string                    `json:"description,omitempty"`
	Tags           map[string]string         `json:"tags,omitempty"`
	Status         BackupStatus              `json:"status"`
	Components     map[string]*ComponentMeta `json:"components"`
	TreeChecksum   string                    `json:"tree_checksum,omitempty"`
	SystemMetadata *SystemMetadata           `json:"system_metadata,omitempty"`
	Size           int64                     `json:"size"`
	FileCount      int64                     `json:"file_count"`

	// Offsite replica details, filled in after a successful upload.
	CompressedSize    int64           `json:"compressed_size,omitempty"`
	CompressionType   CompressionType `json:"compression_type,omitempty"`
	EncryptionEnabled bool            `json:"encryption_enabled,omitempty"`

	StorageLocation string `json:"storage_location"`
}

// ComponentMeta records the outcome of exporting one component into a backup
type ComponentMeta struct {
	Name        string          `json:"name"`
	Status      ComponentStatus `json:"status"`
	RecordCount int64           `json:"record_count"`
	Files       []string        `json:"files,omitempty"`
	Checksum    string          `json:"checksum,omitempty"`
	Error       string          `json:"error,omitempty"`
	Duration    time.Duration   `json:"duration_ns,omitempty"`
}

// SystemMetadata captures the environment a backup was taken from. Restores
// into a different environment still work; the metadata exists for diagnosis.
type SystemMetadata struct {
	Hostname        string            `json:"hostname"`
	Platform        string            `json:"platform"`
	ToolVersion     string            `json:"tool_version"`
	BackendVersions map[string]string `json:"backend_versions,omitempty"`
	CapturedAt      time.Time         `json:"captured_at"`
}

// SystemSnapshot is written next to the manifest as its own file. It holds
// the pre-backup state checksum, which deliberately does not live in the
// manifest: the snapshot is part of the checksummed backup tree, so the
// corruption gate covers it, while the manifest stays outside its own hash.
type SystemSnapshot struct {
	Components        []string        `json:"components"`
	PreBackupChecksum *checksum.Data  `json:"pre_backup_checksum,omitempty"`
	System            *SystemMetadata `json:"system,omitempty"`
	WrittenAt         time.Time       `json:"written_at"`
}

// RestoreResult accumulates the outcome of one restore run. Restore never
// aborts on a recoverable per-component failure; it records the error and
// continues, so the caller always gets the full picture.
type RestoreResult struct {
	BackupID           string              `json:"backup_id"`
	Mode               RestoreMode         `json:"mode"`
	StartedAt          time.Time           `json:"started_at"`
	CompletedAt        time.Time           `json:"completed_at"`
	RestoredComponents []string            `json:"restored_components"`
	Errors             []string            `json:"errors,omitempty"`
	Verification       VerificationResults `json:"verification,omitempty"`

	// Live-state checksums captured before the first write and after the
	// last, so a restore leaves an auditable before/after record.
	PreRestoreChecksum  *checksum.Data `json:"pre_restore_checksum,omitempty"`
	PostRestoreChecksum *checksum.Data `json:"post_restore_checksum,omitempty"`
}

// VerificationResults holds per-component post-restore verification outcomes
type VerificationResults map[string]bool

// AllVerified returns true when every verified component passed. An empty
// result set counts as verified.
func (v VerificationResults) AllVerified() bool {
	for _, ok := range v {
		if !ok {
			return false
		}
	}
	return true
}

// Success reports whether the restore met the success criteria: at least one
// component restored, no accumulated errors, and all verifications passed.
func (r *RestoreResult) Success() bool {
	return len(r.RestoredComponents) > 0 && len(r.Errors) == 0 && r.Verification.AllVerified()
}

// AddError records a restore error without aborting the run
func (r *RestoreResult) AddError(component string, err error) {
	r.Errors = append(r.Errors, component+": "+err.Error())
}

// DrillResult is the outcome of a disaster recovery drill
type DrillResult struct {
	DrillID         string               `json:"drill_id"`
	BackupID        string               `json:"backup_id,omitempty"`
	StartedAt       time.Time            `json:"started_at"`
	CompletedAt     time.Time            `json:"completed_at"`
	Phases          []DrillPhaseResult   `json:"phases"`
	Comparison      *checksum.Comparison `json:"comparison,omitempty"`
	UnexpectedDiffs []string             `json:"unexpected_differences,omitempty"`
	Passed          bool                 `json:"passed"`
}

// DrillPhaseResult records one phase of a drill
type DrillPhaseResult struct {
	Phase    DrillPhase    `json:"phase"`
	Duration time.Duration `json:"duration_ns"`
	Error    string        `json:"error,omitempty"`
}

// BackupConfig contains configuration for backup creation
type BackupConfig struct {
	Kind           BackupKind
	ParentBackupID string
	Components     []string
	FailFast       bool
	Description    string
	Tags           map[string]string
}

// StorageConfig defines offsite storage provider configuration
type StorageConfig struct {
	Provider StorageProviderType `yaml:"provider"`
	Local    *LocalConfig        `yaml:"local,omitempty"`
	S3       *S3Config           `yaml:"s3,omitempty"`
	Azure    *AzureConfig        `yaml:"azure,omitempty"`
	GCS      *GCSConfig          `yaml:"gcs,omitempty"`
}

// LocalConfig for local file system storage
type LocalConfig struct {
	BasePath    string      `yaml:"base_path"`
	Permissions os.FileMode `yaml:"permissions"`
}

// S3Config for Amazon S3 storage
type S3Config struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

// AzureConfig for Azure Blob Storage
type AzureConfig struct {
	AccountName   string `yaml:"account_name"`
	AccountKey    string `yaml:"account_key"`
	ContainerName string `yaml:"container_name"`
}

// GCSConfig for Google Cloud Storage
type GCSConfig struct {
	Bucket          string `yaml:"bucket"`
	CredentialsPath string `yaml:"credentials_path"`
	ProjectID       string `yaml:"project_id"`
}

// BackupFilter for filtering backup lists
type BackupFilter struct {
	Kind          BackupKind
	Status        *BackupStatus
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	Tags          map[string]string
}

// ValidationResult contains backup validation results
type ValidationResult struct {
	Valid         bool      `json:"valid"`
	Errors        []string  `json:"errors,omitempty"`
	Warnings      []string  `json:"warnings,omitempty"`
	CheckedAt     time.Time `json:"checked_at"`
	ChecksumValid bool      `json:"checksum_valid"`
}

// Enums and constants

type BackupStatus string

const (
	BackupStatusPending            BackupStatus = "PENDING"
	BackupStatusRunning            BackupStatus = "RUNNING"
	BackupStatusCompleted          BackupStatus = "COMPLETED"
	BackupStatusCompletedWithError BackupStatus = "COMPLETED_WITH_ERRORS"
	BackupStatusFailed             BackupStatus = "FAILED"
	BackupStatusCorrupted          BackupStatus = "CORRUPTED"
)

type BackupKind string

const (
	BackupKindFull         BackupKind = "FULL"
	BackupKindIncremental  BackupKind = "INCREMENTAL"
	BackupKindDifferential BackupKind = "DIFFERENTIAL"
	BackupKindSnapshot     BackupKind = "SNAPSHOT"
)

type ComponentStatus string

const (
	ComponentStatusCompleted ComponentStatus = "COMPLETED"
	ComponentStatusFailed    ComponentStatus = "FAILED"
	ComponentStatusSkipped   ComponentStatus = "SKIPPED"
)

type RestoreMode string

const (
	RestoreModeFull             RestoreMode = "FULL"
	RestoreModePointInTime      RestoreMode = "POINT_IN_TIME"
	RestoreModeSelective        RestoreMode = "SELECTIVE"
	RestoreModeDisasterRecovery RestoreMode = "DISASTER_RECOVERY"
)

type DrillPhase string

const (
	DrillPhaseBackup   DrillPhase = "BACKUP"
	DrillPhaseChecksum DrillPhase = "CHECKSUM"
	DrillPhaseRestore  DrillPhase = "RESTORE"
	DrillPhaseCompare  DrillPhase = "COMPARE"
)

type CompressionType string

const (
	CompressionTypeNone CompressionType = "NONE"
	CompressionTypeGzip CompressionType = "GZIP"
	CompressionTypeLZ4  CompressionType = "LZ4"
	CompressionTypeZstd CompressionType = "ZSTD"
)

type StorageProviderType string

const (
	StorageProviderLocal StorageProviderType = "LOCAL"
	StorageProviderS3    StorageProviderType = "S3"
	StorageProviderAzure StorageProviderType = "AZURE"
	StorageProviderGCS   StorageProviderType = "GCS"
)
