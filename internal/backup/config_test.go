package backup

import (
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackupSystemConfigDefaults(t *testing.T) {
	var config BackupSystemConfig
	config.SetDefaults()

	assert.Equal(t, StorageProviderLocal, config.Storage.Provider)
	assert.Equal(t, "./backups", config.Storage.Local.BasePath)
	assert.Equal(t, 10, config.Retention.MaxBackups)
	assert.Equal(t, 24*time.Hour, config.Retention.CleanupInterval)
	assert.True(t, config.Validation.VerifyAfterBackup)
	assert.True(t, config.Validation.VerifyAfterRestore)
	assert.Equal(t, 30*time.Minute, config.Validation.OperationTimeout)

	require.NoError(t, config.Validate())
}

func TestCompressionConfigDefaultLevels(t *testing.T) {
	tests := []struct {
		algorithm CompressionType
		level     int
	}{
		{CompressionTypeGzip, 6},
		{CompressionTypeLZ4, 1},
		{CompressionTypeZstd, 3},
	}

	for _, tt := range tests {
		t.Run(string(tt.algorithm), func(t *testing.T) {
			config := CompressionConfig{Enabled: true, Algorithm: tt.algorithm}
			config.SetDefaults()
			assert.Equal(t, tt.level, config.Level)
			assert.NoError(t, config.Validate())
		})
	}

	// Disabled compression is never validated or defaulted.
	disabled := CompressionConfig{}
	disabled.SetDefaults()
	assert.Empty(t, disabled.Algorithm)
	assert.NoError(t, disabled.Validate())
}

func TestCompressionConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  CompressionConfig
		wantErr bool
	}{
		{"gzip in range", CompressionConfig{Enabled: true, Algorithm: CompressionTypeGzip, Level: 9}, false},
		{"gzip out of range", CompressionConfig{Enabled: true, Algorithm: CompressionTypeGzip, Level: 10}, true},
		{"lz4 in range", CompressionConfig{Enabled: true, Algorithm: CompressionTypeLZ4, Level: 12}, false},
		{"zstd out of range", CompressionConfig{Enabled: true, Algorithm: CompressionTypeZstd, Level: 23}, true},
		{"unknown algorithm", CompressionConfig{Enabled: true, Algorithm: "BROTLI", Level: 1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRetentionConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  RetentionConfig
		wantErr bool
	}{
		{"count policy", RetentionConfig{MaxBackups: 5}, false},
		{"age policy", RetentionConfig{MaxAge: 24 * time.Hour}, false},
		{"no policy", RetentionConfig{}, true},
		{"negative count", RetentionConfig{MaxBackups: -1}, true},
		{"negative age", RetentionConfig{MaxAge: -time.Hour}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEncryptionConfigValidate(t *testing.T) {
	salt := hex.EncodeToString([]byte("sixteen-byte-salt"))

	tests := []struct {
		name    string
		config  EncryptionConfig
		wantErr bool
	}{
		{"disabled", EncryptionConfig{}, false},
		{"env source", EncryptionConfig{Enabled: true, KeySource: "env", KeyEnvVar: "KEY"}, false},
		{"env source without variable", EncryptionConfig{Enabled: true, KeySource: "env"}, true},
		{"file source", EncryptionConfig{Enabled: true, KeySource: "file", KeyPath: "/tmp/key"}, false},
		{"file source without path", EncryptionConfig{Enabled: true, KeySource: "file"}, true},
		{"passphrase source", EncryptionConfig{Enabled: true, KeySource: "passphrase", PassphraseEnvVar: "PASS", Salt: salt}, false},
		{"passphrase without variable", EncryptionConfig{Enabled: true, KeySource: "passphrase", Salt: salt}, true},
		{"passphrase with short salt", EncryptionConfig{Enabled: true, KeySource: "passphrase", PassphraseEnvVar: "PASS", Salt: "abcd"}, true},
		{"passphrase with non-hex salt", EncryptionConfig{Enabled: true, KeySource: "passphrase", PassphraseEnvVar: "PASS", Salt: "not hex"}, true},
		{"missing source", EncryptionConfig{Enabled: true}, true},
		{"unknown source", EncryptionConfig{Enabled: true, KeySource: "vault"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEncryptionConfigDefaults(t *testing.T) {
	config := EncryptionConfig{Enabled: true}
	config.SetDefaults()

	assert.Equal(t, "env", config.KeySource)
	assert.Equal(t, "MEMSTORE_BACKUP_ENCRYPTION_KEY", config.KeyEnvVar)
}

func TestValidationConfigValidate(t *testing.T) {
	valid := ValidationConfig{OperationTimeout: time.Minute}
	assert.NoError(t, valid.Validate())

	negative := ValidationConfig{OperationTimeout: -time.Minute}
	assert.Error(t, negative.Validate())
}

func TestBackupSystemConfigLoadFromEnvironment(t *testing.T) {
	t.Setenv("MEMSTORE_BACKUP_MAX_BACKUPS", "3")
	t.Setenv("MEMSTORE_BACKUP_MAX_AGE", "72h")
	t.Setenv("MEMSTORE_BACKUP_COMPRESSION_ENABLED", "true")
	t.Setenv("MEMSTORE_BACKUP_COMPRESSION_ALGORITHM", "zstd")
	t.Setenv("MEMSTORE_BACKUP_COMPRESSION_LEVEL", "5")
	t.Setenv("MEMSTORE_BACKUP_ENCRYPTION_ENABLED", "true")
	t.Setenv("MEMSTORE_BACKUP_ENCRYPTION_KEY_SOURCE", "passphrase")
	t.Setenv("MEMSTORE_BACKUP_ENCRYPTION_PASSPHRASE_ENV_VAR", "MEMSTORE_PASS")
	t.Setenv("MEMSTORE_BACKUP_ENCRYPTION_SALT", hex.EncodeToString([]byte("sixteen-byte-salt")))
	t.Setenv("MEMSTORE_BACKUP_VERIFY_AFTER_BACKUP", "false")
	t.Setenv("MEMSTORE_BACKUP_OPERATION_TIMEOUT", "10m")

	var config BackupSystemConfig
	config.SetDefaults()
	config.LoadFromEnvironment()

	assert.Equal(t, 3, config.Retention.MaxBackups)
	assert.Equal(t, 72*time.Hour, config.Retention.MaxAge)
	assert.True(t, config.Compression.Enabled)
	assert.Equal(t, CompressionTypeZstd, config.Compression.Algorithm)
	assert.Equal(t, 5, config.Compression.Level)
	assert.True(t, config.Encryption.Enabled)
	assert.Equal(t, "passphrase", config.Encryption.KeySource)
	assert.Equal(t, "MEMSTORE_PASS", config.Encryption.PassphraseEnvVar)
	assert.False(t, config.Validation.VerifyAfterBackup)
	assert.True(t, config.Validation.VerifyAfterRestore)
	assert.Equal(t, 10*time.Minute, config.Validation.OperationTimeout)

	require.NoError(t, config.Validate())
}

func TestEnvironmentIgnoresInvalidValues(t *testing.T) {
	t.Setenv("MEMSTORE_BACKUP_MAX_BACKUPS", "not a number")
	t.Setenv("MEMSTORE_BACKUP_OPERATION_TIMEOUT", "soon")

	var config BackupSystemConfig
	config.SetDefaults()
	config.LoadFromEnvironment()

	assert.Equal(t, 10, config.Retention.MaxBackups)
	assert.Equal(t, 30*time.Minute, config.Validation.OperationTimeout)
}

func TestStorageConfigValidate(t *testing.T) {
	missing := StorageConfig{Provider: StorageProviderS3}
	assert.Error(t, missing.Validate())

	invalid := StorageConfig{Provider: "FTP"}
	assert.Error(t, invalid.Validate())

	local := StorageConfig{Provider: StorageProviderLocal, Local: &LocalConfig{BasePath: "/backups"}}
	assert.NoError(t, local.Validate())
}
