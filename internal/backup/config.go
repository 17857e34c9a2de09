package backup

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// BackupSystemConfig represents the complete backup system configuration
type BackupSystemConfig struct {
	Storage     StorageConfig     `yaml:"storage"`
	Retention   RetentionConfig   `yaml:"retention"`
	Compression CompressionConfig `yaml:"compression"`
	Encryption  EncryptionConfig  `yaml:"encryption"`
	Validation  ValidationConfig  `yaml:"validation"`
}

// RetentionConfig defines backup retention policies
type RetentionConfig struct {
	MaxBackups      int           `yaml:"max_backups"`
	MaxAge          time.Duration `yaml:"max_age"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
	KeepDaily       int           `yaml:"keep_daily"`
	KeepWeekly      int           `yaml:"keep_weekly"`
	KeepMonthly     int           `yaml:"keep_monthly"`
}

// CompressionConfig defines how offsite archives are compressed
type CompressionConfig struct {
	Enabled   bool            `yaml:"enabled"`
	Algorithm CompressionType `yaml:"algorithm"`
	Level     int             `yaml:"level"`
}

// EncryptionConfig defines how offsite archives are encrypted. KeySource
// selects where the AES-256 key comes from: "env" (hex in an environment
// variable), "file" (raw bytes on disk), or "passphrase" (PBKDF2-derived
// from a passphrase in an environment variable plus a configured salt).
type EncryptionConfig struct {
	Enabled          bool   `yaml:"enabled"`
	KeySource        string `yaml:"key_source"`
	KeyPath          string `yaml:"key_path"`
	KeyEnvVar        string `yaml:"key_env_var"`
	PassphraseEnvVar string `yaml:"passphrase_env_var"`
	Salt             string `yaml:"salt"`

	// KeyRetriever overrides the configured key source when set. Used by
	// tests and embedders with their own key management.
	KeyRetriever func() ([]byte, error) `yaml:"-"`
}

// ValidationConfig controls post-operation verification and the overall
// operation deadline applied by the CLI.
type ValidationConfig struct {
	VerifyAfterBackup  bool          `yaml:"verify_after_backup"`
	VerifyAfterRestore bool          `yaml:"verify_after_restore"`
	OperationTimeout   time.Duration `yaml:"operation_timeout"`
}

// Validate validates the BackupSystemConfig
func (bsc *BackupSystemConfig) Validate() error {
	var errors ValidationErrors

	collect := func(section string, err error) {
		if err == nil {
			return
		}
		if validationErrs, ok := err.(ValidationErrors); ok {
			errors = append(errors, validationErrs...)
			return
		}
		errors.Add(section, err.Error(), nil)
	}

	collect("storage", bsc.Storage.Validate())
	collect("retention", bsc.Retention.Validate())
	collect("compression", bsc.Compression.Validate())
	collect("encryption", bsc.Encryption.Validate())
	collect("validation", bsc.Validation.Validate())

	if errors.HasErrors() {
		return errors
	}

	return nil
}

// SetDefaults sets default values for the backup system configuration
func (bsc *BackupSystemConfig) SetDefaults() {
	bsc.Storage.SetDefaults()
	bsc.Retention.SetDefaults()
	bsc.Compression.SetDefaults()
	bsc.Encryption.SetDefaults()
	bsc.Validation.SetDefaults()
}

// LoadFromEnvironment loads configuration values from environment variables
func (bsc *BackupSystemConfig) LoadFromEnvironment() {
	bsc.Storage.LoadFromEnvironment()
	bsc.Retention.LoadFromEnvironment()
	bsc.Compression.LoadFromEnvironment()
	bsc.Encryption.LoadFromEnvironment()
	bsc.Validation.LoadFromEnvironment()
}

// Environment override helpers. Invalid values are ignored so a bad variable
// never silently zeroes a configured setting.

func envString(name string, target *string) {
	if val := os.Getenv(name); val != "" {
		*target = val
	}
}

func envBool(name string, target *bool) {
	if val := os.Getenv(name); val != "" {
		*target = strings.ToLower(val) == "true"
	}
}

func envInt(name string, target *int) {
	if val := os.Getenv(name); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			*target = parsed
		}
	}
}

func envDuration(name string, target *time.Duration) {
	if val := os.Getenv(name); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			*target = parsed
		}
	}
}

// Validate validates the RetentionConfig
func (rc *RetentionConfig) Validate() error {
	var errors ValidationErrors

	if rc.MaxBackups < 0 {
		errors.Add("max_backups", "max backups cannot be negative", rc.MaxBackups)
	}

	if rc.MaxAge < 0 {
		errors.Add("max_age", "max age cannot be negative", rc.MaxAge)
	}

	if rc.CleanupInterval < 0 {
		errors.Add("cleanup_interval", "cleanup interval cannot be negative", rc.CleanupInterval)
	}

	if rc.KeepDaily < 0 {
		errors.Add("keep_daily", "keep daily cannot be negative", rc.KeepDaily)
	}

	if rc.KeepWeekly < 0 {
		errors.Add("keep_weekly", "keep weekly cannot be negative", rc.KeepWeekly)
	}

	if rc.KeepMonthly < 0 {
		errors.Add("keep_monthly", "keep monthly cannot be negative", rc.KeepMonthly)
	}

	// Ensure at least one retention policy is set
	if rc.MaxBackups == 0 && rc.MaxAge == 0 && rc.KeepDaily == 0 && rc.KeepWeekly == 0 && rc.KeepMonthly == 0 {
		errors.Add("retention", "at least one retention policy must be configured", nil)
	}

	if errors.HasErrors() {
		return errors
	}

	return nil
}

// SetDefaults sets default values for retention configuration
func (rc *RetentionConfig) SetDefaults() {
	if rc.MaxBackups == 0 && rc.MaxAge == 0 && rc.KeepDaily == 0 && rc.KeepWeekly == 0 && rc.KeepMonthly == 0 {
		rc.MaxBackups = 10
	}

	if rc.CleanupInterval == 0 {
		rc.CleanupInterval = 24 * time.Hour
	}
}

// LoadFromEnvironment loads retention configuration from environment variables
func (rc *RetentionConfig) LoadFromEnvironment() {
	envInt("MEMSTORE_BACKUP_MAX_BACKUPS", &rc.MaxBackups)
	envDuration("MEMSTORE_BACKUP_MAX_AGE", &rc.MaxAge)
	envDuration("MEMSTORE_BACKUP_CLEANUP_INTERVAL", &rc.CleanupInterval)
	envInt("MEMSTORE_BACKUP_KEEP_DAILY", &rc.KeepDaily)
	envInt("MEMSTORE_BACKUP_KEEP_WEEKLY", &rc.KeepWeekly)
	envInt("MEMSTORE_BACKUP_KEEP_MONTHLY", &rc.KeepMonthly)
}

// Validate validates the CompressionConfig
func (cc *CompressionConfig) Validate() error {
	var errors ValidationErrors

	if cc.Enabled {
		if !isValidCompressionType(cc.Algorithm) {
			errors.Add("algorithm", "invalid compression algorithm", cc.Algorithm)
		}

		switch cc.Algorithm {
		case CompressionTypeGzip:
			if cc.Level < 1 || cc.Level > 9 {
				errors.Add("level", "gzip compression level must be between 1 and 9", cc.Level)
			}
		case CompressionTypeLZ4:
			if cc.Level < 1 || cc.Level > 12 {
				errors.Add("level", "lz4 compression level must be between 1 and 12", cc.Level)
			}
		case CompressionTypeZstd:
			if cc.Level < 1 || cc.Level > 22 {
				errors.Add("level", "zstd compression level must be between 1 and 22", cc.Level)
			}
		}
	}

	if errors.HasErrors() {
		return errors
	}

	return nil
}

// SetDefaults sets default values for compression configuration
func (cc *CompressionConfig) SetDefaults() {
	if cc.Enabled && cc.Algorithm == "" {
		cc.Algorithm = CompressionTypeGzip
	}

	if cc.Enabled && cc.Level == 0 {
		switch cc.Algorithm {
		case CompressionTypeGzip:
			cc.Level = 6
		case CompressionTypeLZ4:
			cc.Level = 1
		case CompressionTypeZstd:
			cc.Level = 3
		}
	}
}

// LoadFromEnvironment loads compression configuration from environment variables
func (cc *CompressionConfig) LoadFromEnvironment() {
	envBool("MEMSTORE_BACKUP_COMPRESSION_ENABLED", &cc.Enabled)
	envInt("MEMSTORE_BACKUP_COMPRESSION_LEVEL", &cc.Level)

	if val := os.Getenv("MEMSTORE_BACKUP_COMPRESSION_ALGORITHM"); val != "" {
		cc.Algorithm = CompressionType(strings.ToUpper(val))
	}
}

// Validate validates the EncryptionConfig
func (ec *EncryptionConfig) Validate() error {
	var errors ValidationErrors

	if !ec.Enabled {
		return nil
	}

	switch ec.KeySource {
	case "":
		errors.Add("key_source", "key source is required when encryption is enabled", ec.KeySource)
	case "env":
		if ec.KeyEnvVar == "" {
			errors.Add("key_env_var", "key environment variable name is required for env key source", ec.KeyEnvVar)
		}
	case "file":
		if ec.KeyPath == "" {
			errors.Add("key_path", "key file path is required for file key source", ec.KeyPath)
		}
	case "passphrase":
		if ec.PassphraseEnvVar == "" {
			errors.Add("passphrase_env_var", "passphrase environment variable name is required for passphrase key source", ec.PassphraseEnvVar)
		}
		if salt, err := hex.DecodeString(ec.Salt); err != nil {
			errors.Add("salt", "salt must be hex-encoded", ec.Salt)
		} else if len(salt) < 16 {
			errors.Add("salt", "salt must be at least 16 bytes", ec.Salt)
		}
	default:
		errors.Add("key_source", "invalid key source, must be 'env', 'file', or 'passphrase'", ec.KeySource)
	}

	if errors.HasErrors() {
		return errors
	}

	return nil
}

// SetDefaults sets default values for encryption configuration
func (ec *EncryptionConfig) SetDefaults() {
	if ec.Enabled && ec.KeySource == "" {
		ec.KeySource = "env"
		ec.KeyEnvVar = "MEMSTORE_BACKUP_ENCRYPTION_KEY"
	}
}

// LoadFromEnvironment loads encryption configuration from environment variables
func (ec *EncryptionConfig) LoadFromEnvironment() {
	envBool("MEMSTORE_BACKUP_ENCRYPTION_ENABLED", &ec.Enabled)
	envString("MEMSTORE_BACKUP_ENCRYPTION_KEY_SOURCE", &ec.KeySource)
	envString("MEMSTORE_BACKUP_ENCRYPTION_KEY_PATH", &ec.KeyPath)
	envString("MEMSTORE_BACKUP_ENCRYPTION_KEY_ENV_VAR", &ec.KeyEnvVar)
	envString("MEMSTORE_BACKUP_ENCRYPTION_PASSPHRASE_ENV_VAR", &ec.PassphraseEnvVar)
	envString("MEMSTORE_BACKUP_ENCRYPTION_SALT", &ec.Salt)
}

// GetEncryptionKey resolves the AES-256 key from the configured source
func (ec *EncryptionConfig) GetEncryptionKey() ([]byte, error) {
	if !ec.Enabled {
		return nil, nil
	}

	if ec.KeyRetriever != nil {
		return ec.KeyRetriever()
	}

	switch ec.KeySource {
	case "env":
		return loadKeyFromEnv(ec.KeyEnvVar)

	case "file":
		return loadKeyFromFile(ec.KeyPath)

	case "passphrase":
		passphrase := os.Getenv(ec.PassphraseEnvVar)
		if passphrase == "" {
			return nil, NewEncryptionError(
				fmt.Sprintf("environment variable %s is not set", ec.PassphraseEnvVar), nil)
		}
		salt, err := hex.DecodeString(ec.Salt)
		if err != nil {
			return nil, NewEncryptionError("salt is not valid hex", err)
		}
		return deriveKeyFromPassphrase(passphrase, salt), nil

	default:
		return nil, NewEncryptionError(
			fmt.Sprintf("invalid key source: %s", ec.KeySource), nil)
	}
}

// Validate validates the ValidationConfig
func (vc *ValidationConfig) Validate() error {
	var errors ValidationErrors

	if vc.OperationTimeout < 0 {
		errors.Add("operation_timeout", "operation timeout cannot be negative", vc.OperationTimeout)
	}

	if errors.HasErrors() {
		return errors
	}

	return nil
}

// SetDefaults sets default values for validation configuration. Defaults run
// before file and environment overrides, so both verification toggles start
// on and can still be switched off explicitly.
func (vc *ValidationConfig) SetDefaults() {
	vc.VerifyAfterBackup = true
	vc.VerifyAfterRestore = true

	if vc.OperationTimeout == 0 {
		vc.OperationTimeout = 30 * time.Minute
	}
}

// LoadFromEnvironment loads validation configuration from environment variables
func (vc *ValidationConfig) LoadFromEnvironment() {
	envBool("MEMSTORE_BACKUP_VERIFY_AFTER_BACKUP", &vc.VerifyAfterBackup)
	envBool("MEMSTORE_BACKUP_VERIFY_AFTER_RESTORE", &vc.VerifyAfterRestore)
	envDuration("MEMSTORE_BACKUP_OPERATION_TIMEOUT", &vc.OperationTimeout)
}

// SetDefaults sets default values for storage configuration
func (sc *StorageConfig) SetDefaults() {
	if sc.Provider == "" {
		sc.Provider = StorageProviderLocal
	}

	switch sc.Provider {
	case StorageProviderLocal:
		if sc.Local == nil {
			sc.Local = &LocalConfig{}
		}
		sc.Local.SetDefaults()
	case StorageProviderS3:
		if sc.S3 == nil {
			sc.S3 = &S3Config{}
		}
		sc.S3.SetDefaults()
	case StorageProviderAzure:
		if sc.Azure == nil {
			sc.Azure = &AzureConfig{}
		}
		sc.Azure.SetDefaults()
	case StorageProviderGCS:
		if sc.GCS == nil {
			sc.GCS = &GCSConfig{}
		}
		sc.GCS.SetDefaults()
	}
}

// LoadFromEnvironment loads storage configuration from environment variables
func (sc *StorageConfig) LoadFromEnvironment() {
	if val := os.Getenv("MEMSTORE_BACKUP_STORAGE_PROVIDER"); val != "" {
		sc.Provider = StorageProviderType(strings.ToUpper(val))
	}

	switch sc.Provider {
	case StorageProviderLocal:
		if sc.Local == nil {
			sc.Local = &LocalConfig{}
		}
		sc.Local.LoadFromEnvironment()
	case StorageProviderS3:
		if sc.S3 == nil {
			sc.S3 = &S3Config{}
		}
		sc.S3.LoadFromEnvironment()
	case StorageProviderAzure:
		if sc.Azure == nil {
			sc.Azure = &AzureConfig{}
		}
		sc.Azure.LoadFromEnvironment()
	case StorageProviderGCS:
		if sc.GCS == nil {
			sc.GCS = &GCSConfig{}
		}
		sc.GCS.LoadFromEnvironment()
	}
}

// SetDefaults sets default values for local storage configuration
func (lc *LocalConfig) SetDefaults() {
	if lc.BasePath == "" {
		lc.BasePath = "./backups"
	}

	if lc.Permissions == 0 {
		lc.Permissions = 0755
	}
}

// LoadFromEnvironment loads local storage configuration from environment variables
func (lc *LocalConfig) LoadFromEnvironment() {
	envString("MEMSTORE_BACKUP_LOCAL_BASE_PATH", &lc.BasePath)

	if val := os.Getenv("MEMSTORE_BACKUP_LOCAL_PERMISSIONS"); val != "" {
		if parsed, err := strconv.ParseUint(val, 8, 32); err == nil {
			lc.Permissions = os.FileMode(parsed)
		}
	}
}

// SetDefaults sets default values for S3 storage configuration
func (s3c *S3Config) SetDefaults() {
	if s3c.Region == "" {
		s3c.Region = "us-east-1"
	}
}

// LoadFromEnvironment loads S3 storage configuration from environment variables
func (s3c *S3Config) LoadFromEnvironment() {
	envString("MEMSTORE_BACKUP_S3_BUCKET", &s3c.Bucket)
	envString("MEMSTORE_BACKUP_S3_REGION", &s3c.Region)
	envString("MEMSTORE_BACKUP_S3_ACCESS_KEY", &s3c.AccessKey)
	envString("MEMSTORE_BACKUP_S3_SECRET_KEY", &s3c.SecretKey)
}

// SetDefaults sets default values for Azure storage configuration
func (ac *AzureConfig) SetDefaults() {
	// Azure doesn't have meaningful defaults beyond what's required
}

// LoadFromEnvironment loads Azure storage configuration from environment variables
func (ac *AzureConfig) LoadFromEnvironment() {
	envString("MEMSTORE_BACKUP_AZURE_ACCOUNT_NAME", &ac.AccountName)
	envString("MEMSTORE_BACKUP_AZURE_ACCOUNT_KEY", &ac.AccountKey)
	envString("MEMSTORE_BACKUP_AZURE_CONTAINER_NAME", &ac.ContainerName)
}

// SetDefaults sets default values for GCS storage configuration
func (gc *GCSConfig) SetDefaults() {
	if gc.CredentialsPath == "" {
		gc.CredentialsPath = os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")
	}
}

// LoadFromEnvironment loads GCS storage configuration from environment variables
func (gc *GCSConfig) LoadFromEnvironment() {
	envString("MEMSTORE_BACKUP_GCS_BUCKET", &gc.Bucket)
	envString("MEMSTORE_BACKUP_GCS_CREDENTIALS_PATH", &gc.CredentialsPath)
	envString("MEMSTORE_BACKUP_GCS_PROJECT_ID", &gc.ProjectID)
}
