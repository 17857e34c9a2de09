package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"memstore-backup/internal/backup"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestAppConfigDefaults(t *testing.T) {
	config := &AppConfig{}
	config.SetDefaults()

	assert.Equal(t, "embedded", config.Backends.Vector.Provider)
	assert.Equal(t, "./data/vector-store.json", config.Backends.Vector.Path)
	assert.Equal(t, "embedded", config.Backends.Graph.Provider)
	assert.Equal(t, "./data/graph-store.json", config.Backends.Graph.Path)
	assert.Equal(t, "normal", config.Logging.Level)
	assert.Equal(t, "text", config.Logging.Format)

	assert.NoError(t, config.Validate())
}

func TestBackendsConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  BackendsConfig
		wantErr bool
	}{
		{
			name: "valid embedded",
			config: BackendsConfig{
				Vector: VectorBackendConfig{Provider: "embedded", Path: "/tmp/v.json"},
				Graph:  GraphBackendConfig{Provider: "embedded", Path: "/tmp/g.json"},
			},
			wantErr: false,
		},
		{
			name: "unsupported vector provider",
			config: BackendsConfig{
				Vector: VectorBackendConfig{Provider: "qdrant", Endpoint: "http://localhost:6333"},
				Graph:  GraphBackendConfig{Provider: "embedded", Path: "/tmp/g.json"},
			},
			wantErr: true,
		},
		{
			name: "embedded without path",
			config: BackendsConfig{
				Vector: VectorBackendConfig{Provider: "embedded"},
				Graph:  GraphBackendConfig{Provider: "embedded", Path: "/tmp/g.json"},
			},
			wantErr: true,
		},
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

func TestLoggingConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  LoggingConfig
		wantErr bool
	}{
		{"empty", LoggingConfig{}, false},
		{"normal text", LoggingConfig{Level: "normal", Format: "text"}, false},
		{"debug json", LoggingConfig{Level: "debug", Format: "json"}, false},
		{"bad level", LoggingConfig{Level: "loud"}, true},
		{"bad format", LoggingConfig{Format: "xml"}, true},
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

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "memstore-backup.yaml")

	content := `
backends:
  vector:
    path: /var/lib/memstore/vector.json
  graph:
    path: /var/lib/memstore/graph.json
backup:
  storage:
    provider: local
    local:
      base_path: /var/backups/memstore
      permissions: 0755
  retention:
    max_backups: 5
    max_age: 168h
  compression:
    enabled: true
    algorithm: zstd
    level: 3
logging:
  level: verbose
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	config, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/memstore/vector.json", config.Backends.Vector.Path)
	assert.Equal(t, "/var/lib/memstore/graph.json", config.Backends.Graph.Path)
	assert.Equal(t, backup.StorageProviderLocal, config.Backup.Storage.Provider)
	require.NotNil(t, config.Backup.Storage.Local)
	assert.Equal(t, "/var/backups/memstore", config.Backup.Storage.Local.BasePath)
	assert.Equal(t, 5, config.Backup.Retention.MaxBackups)
	assert.Equal(t, 168*time.Hour, config.Backup.Retention.MaxAge)
	assert.True(t, config.Backup.Compression.Enabled)
	assert.Equal(t, backup.CompressionTypeZstd, config.Backup.Compression.Algorithm)
	assert.Equal(t, 3, config.Backup.Compression.Level)
	assert.Equal(t, "verbose", config.Logging.Level)
	assert.Equal(t, "json", config.Logging.Format)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.Error(t, err)
	assert.True(t, backup.IsErrorType(err, backup.BackupErrorTypeConfiguration))
}

func TestLoadMalformedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backends: [unclosed"), 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, backup.IsErrorType(err, backup.BackupErrorTypeConfiguration))
}

func TestLoadEnvironmentOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "memstore-backup.yaml")
	content := `
backends:
  vector:
    path: /from/file/vector.json
logging:
  level: normal
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	t.Setenv("MEMSTORE_BACKUP_VECTOR_PATH", "/from/env/vector.json")
	t.Setenv("MEMSTORE_BACKUP_LOG_LEVEL", "debug")

	config, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/from/env/vector.json", config.Backends.Vector.Path)
	assert.Equal(t, "debug", config.Logging.Level)
}

func TestLoadInvalidConfigurationFailsFast(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "memstore-backup.yaml")
	content := `
backends:
  vector:
    provider: unsupported
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, backup.IsErrorType(err, backup.BackupErrorTypeConfiguration))
	assert.True(t, backup.IsFatal(err))
}

func TestGenerateConfigTemplate(t *testing.T) {
	template := GenerateConfigTemplate()

	var parsed map[string]interface{}
	require.NoError(t, yaml.Unmarshal([]byte(template), &parsed))

	assert.Contains(t, parsed, "backends")
	assert.Contains(t, parsed, "backup")
	assert.Contains(t, parsed, "logging")
}

func TestLoggerConfig(t *testing.T) {
	lc := LoggingConfig{Level: "verbose", Format: "json", File: "/tmp/run.log"}
	loggerConfig := lc.LoggerConfig()

	assert.Equal(t, "json", loggerConfig.Format)
	assert.Equal(t, "/tmp/run.log", loggerConfig.LogFile)
}
