package backup

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Validate validates the BackupManifest struct
func (m *BackupManifest) Validate() error {
	var errors ValidationErrors

	if m.BackupID == "" {
		errors.Add("backup_id", "backup ID is required", m.BackupID)
	}

	if m.Kind == "" {
		errors.Add("kind", "backup kind is required", m.Kind)
	} else if !isValidBackupKind(m.Kind) {
		errors.Add("kind", "invalid backup kind", m.Kind)
	}

	if m.Kind == BackupKindIncremental || m.Kind == BackupKindDifferential {
		if m.ParentBackupID == "" {
			errors.Add("parent_backup_id", "parent backup ID is required for incremental and differential backups", m.ParentBackupID)
		}
	}

	if m.CreatedAt.IsZero() {
		errors.Add("created_at", "creation timestamp is required", m.CreatedAt)
	}

	if m.Status == "" {
		errors.Add("status", "backup status is required", m.Status)
	} else if !isValidBackupStatus(m.Status) {
		errors.Add("status", "invalid backup status", m.Status)
	}

	if len(m.Components) == 0 {
		errors.Add("components", "at least one component is required", nil)
	}
	for name, component := range m.Components {
		if component == nil {
			errors.Add("components", "component metadata is required", name)
			continue
		}
		if component.Name != name {
			errors.Add("components", fmt.Sprintf("component key %s does not match name %s", name, component.Name), nil)
		}
		if component.Status == ComponentStatusFailed && component.Error == "" {
			errors.Add("components", fmt.Sprintf("failed component %s must record its error", name), nil)
		}
	}

	if m.Size < 0 {
		errors.Add("size", "backup size cannot be negative", m.Size)
	}

	if m.CompressionType != "" && !isValidCompressionType(m.CompressionType) {
		errors.Add("compression_type", "invalid compression type", m.CompressionType)
	}

	if m.StorageLocation == "" {
		errors.Add("storage_location", "storage location is required", m.StorageLocation)
	}

	if errors.HasErrors() {
		return errors
	}

	return nil
}

// ToJSON serializes the BackupManifest to JSON
func (m *BackupManifest) ToJSON() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

// FromJSON deserializes JSON data into a BackupManifest
func (m *BackupManifest) FromJSON(data []byte) error {
	if err := json.Unmarshal(data, m); err != nil {
		return NewValidationError("failed to unmarshal backup manifest JSON", err)
	}
	return m.Validate()
}

// FailedComponents returns the names of components that failed during export
func (m *BackupManifest) FailedComponents() []string {
	var failed []string
	for name, component := range m.Components {
		if component != nil && component.Status == ComponentStatusFailed {
			failed = append(failed, name)
		}
	}
	return failed
}

// CompletedComponents returns the names of components exported successfully
func (m *BackupManifest) CompletedComponents() []string {
	var completed []string
	for name, component := range m.Components {
		if component != nil && component.Status == ComponentStatusCompleted {
			completed = append(completed, name)
		}
	}
	return completed
}

// ToJSON serializes the RestoreResult to JSON
func (r *RestoreResult) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// ToJSON serializes the DrillResult to JSON
func (d *DrillResult) ToJSON() ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}

// GenerateBackupID generates a unique backup ID
func GenerateBackupID() string {
	return GenerateIDWithPrefix("backup")
}

// GenerateIDWithPrefix generates a unique ID with a custom prefix. The
// timestamp prefix keeps IDs sortable by creation time; the UUID suffix
// keeps them unique within a second.
func GenerateIDWithPrefix(prefix string) string {
	timestamp := time.Now().UTC().Format("20060102-150405")
	id := uuid.New().String()
	shortUUID := strings.ReplaceAll(id, "-", "")[:8]

	return fmt.Sprintf("%s-%s-%s", prefix, timestamp, shortUUID)
}

// CalculateDataChecksum calculates a checksum for arbitrary data
func CalculateDataChecksum(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// GenerateSecureRandomBytes generates cryptographically secure random bytes
func GenerateSecureRandomBytes(length int) ([]byte, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return nil, NewEncryptionError("failed to generate secure random bytes", err)
	}
	return bytes, nil
}

// Helper functions for validation

func isValidCompressionType(ct CompressionType) bool {
	switch ct {
	case CompressionTypeNone, CompressionTypeGzip, CompressionTypeLZ4, CompressionTypeZstd:
		return true
	default:
		return false
	}
}

func isValidBackupStatus(status BackupStatus) bool {
	switch status {
	case BackupStatusPending, BackupStatusRunning, BackupStatusCompleted,
		BackupStatusCompletedWithError, BackupStatusFailed, BackupStatusCorrupted:
		return true
	default:
		return false
	}
}

func isValidBackupKind(kind BackupKind) bool {
	switch kind {
	case BackupKindFull, BackupKindIncremental, BackupKindDifferential, BackupKindSnapshot:
		return true
	default:
		return false
	}
}

func isValidStorageProviderType(provider StorageProviderType) bool {
	switch provider {
	case StorageProviderLocal, StorageProviderS3, StorageProviderAzure, StorageProviderGCS:
		return true
	default:
		return false
	}
}

// Validate validates the BackupConfig struct
func (bc *BackupConfig) Validate() error {
	var errors ValidationErrors

	if bc.Kind != "" && !isValidBackupKind(bc.Kind) {
		errors.Add("kind", "invalid backup kind", bc.Kind)
	}

	if bc.Kind == BackupKindIncremental || bc.Kind == BackupKindDifferential {
		if bc.ParentBackupID == "" {
			errors.Add("parent_backup_id", "parent backup ID is required for incremental and differential backups", bc.ParentBackupID)
		}
	}

	if err := ValidateDescription(bc.Description); err != nil {
		errors.Add("description", err.Error(), len(bc.Description))
	}

	if err := ValidateTags(bc.Tags); err != nil {
		errors.Add("tags", err.Error(), nil)
	}

	if errors.HasErrors() {
		return errors
	}

	return nil
}

// Validate validates the StorageConfig struct
func (sc *StorageConfig) Validate() error {
	var errors ValidationErrors

	if !isValidStorageProviderType(sc.Provider) {
		errors.Add("provider", "invalid storage provider type", sc.Provider)
		return errors
	}

	switch sc.Provider {
	case StorageProviderLocal:
		if sc.Local == nil {
			errors.Add("local", "local storage configuration is required", nil)
		} else if err := sc.Local.Validate(); err != nil {
			if validationErrs, ok := err.(ValidationErrors); ok {
				errors = append(errors, validationErrs...)
			} else {
				errors.Add("local", err.Error(), nil)
			}
		}
	case StorageProviderS3:
		if sc.S3 == nil {
			errors.Add("s3", "S3 storage configuration is required", nil)
		} else if err := sc.S3.Validate(); err != nil {
			if validationErrs, ok := err.(ValidationErrors); ok {
				errors = append(errors, validationErrs...)
			} else {
				errors.Add("s3", err.Error(), nil)
			}
		}
	case StorageProviderAzure:
		if sc.Azure == nil {
			errors.Add("azure", "Azure storage configuration is required", nil)
		} else if err := sc.Azure.Validate(); err != nil {
			if validationErrs, ok := err.(ValidationErrors); ok {
				errors = append(errors, validationErrs...)
			} else {
				errors.Add("azure", err.Error(), nil)
			}
		}
	case StorageProviderGCS:
		if sc.GCS == nil {
			errors.Add("gcs", "GCS storage configuration is required", nil)
		} else if err := sc.GCS.Validate(); err != nil {
			if validationErrs, ok := err.(ValidationErrors); ok {
				errors = append(errors, validationErrs...)
			} else {
				errors.Add("gcs", err.Error(), nil)
			}
		}
	}

	if errors.HasErrors() {
		return errors
	}

	return nil
}

// Validate validates the LocalConfig struct
func (lc *LocalConfig) Validate() error {
	var errors ValidationErrors

	if lc.BasePath == "" {
		errors.Add("base_path", "base path is required for local storage", lc.BasePath)
	}

	if lc.Permissions == 0 {
		lc.Permissions = 0755 // Set default permissions
	}

	if errors.HasErrors() {
		return errors
	}

	return nil
}

// Validate validates the S3Config struct
func (s3c *S3Config) Validate() error {
	var errors ValidationErrors

	if s3c.Bucket == "" {
		errors.Add("bucket", "S3 bucket name is required", s3c.Bucket)
	}

	if s3c.Region == "" {
		errors.Add("region", "S3 region is required", s3c.Region)
	}

	if s3c.AccessKey == "" {
		errors.Add("access_key", "S3 access key is required", s3c.AccessKey)
	}

	if s3c.SecretKey == "" {
		errors.Add("secret_key", "S3 secret key is required", s3c.SecretKey)
	}

	if errors.HasErrors() {
		return errors
	}

	return nil
}

// Validate validates the AzureConfig struct
func (ac *AzureConfig) Validate() error {
	var errors ValidationErrors

	if ac.AccountName == "" {
		errors.Add("account_name", "Azure account name is required", ac.AccountName)
	}

	if ac.AccountKey == "" {
		errors.Add("account_key", "Azure account key is required", ac.AccountKey)
	}

	if ac.ContainerName == "" {
		errors.Add("container_name", "Azure container name is required", ac.ContainerName)
	}

	if errors.HasErrors() {
		return errors
	}

	return nil
}

// Validate validates the GCSConfig struct
func (gc *GCSConfig) Validate() error {
	var errors ValidationErrors

	if gc.Bucket == "" {
		errors.Add("bucket", "GCS bucket name is required", gc.Bucket)
	}

	if gc.CredentialsPath == "" {
		errors.Add("credentials_path", "GCS credentials path is required", gc.CredentialsPath)
	}

	if gc.ProjectID == "" {
		errors.Add("project_id", "GCS project ID is required", gc.ProjectID)
	}

	if errors.HasErrors() {
		return errors
	}

	return nil
}
