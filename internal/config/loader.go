package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"memstore-backup/internal/backup"
)

// EnvPrefix is the prefix of every environment variable the tool reads
const EnvPrefix = "MEMSTORE_BACKUP"

// Load reads the configuration from file, environment, and defaults, in
// ascending precedence: defaults < config file < environment. An empty
// configPath searches the standard locations; a missing file is not an
// error, a malformed one is.
func Load(configPath string) (*AppConfig, error) {
	v := viper.New()
	setupViper(v, configPath)

	if err := v.ReadInConfig(); err != nil {
		if configPath != "" {
			return nil, backup.NewConfigurationError(
				fmt.Sprintf("failed to read configuration file %s", configPath), err)
		}
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, backup.NewConfigurationError("failed to read configuration file", err)
		}
	}

	config := &AppConfig{}
	config.SetDefaults()
	applyViper(v, config)
	config.LoadFromEnvironment()

	if err := config.Validate(); err != nil {
		return nil, backup.NewConfigurationError("invalid configuration", err)
	}

	return config, nil
}

func setupViper(v *viper.Viper, configPath string) {
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("memstore-backup")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if homeDir, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(homeDir, ".config", "memstore-backup"))
			v.AddConfigPath(homeDir)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// applyViper copies every set key from viper into the configuration. Keys
// that are not set keep their defaults.
func applyViper(v *viper.Viper, config *AppConfig) {
	applyBackends(v, &config.Backends)
	applyBackup(v, &config.Backup)
	applyLogging(v, &config.Logging)
}

func applyBackends(v *viper.Viper, backends *BackendsConfig) {
	setString(v, "backends.vector.provider", &backends.Vector.Provider)
	setString(v, "backends.vector.path", &backends.Vector.Path)
	setString(v, "backends.vector.endpoint", &backends.Vector.Endpoint)
	setString(v, "backends.vector.api_key", &backends.Vector.APIKey)
	setString(v, "backends.graph.provider", &backends.Graph.Provider)
	setString(v, "backends.graph.path", &backends.Graph.Path)
	setString(v, "backends.graph.endpoint", &backends.Graph.Endpoint)
	setString(v, "backends.graph.username", &backends.Graph.Username)
	setString(v, "backends.graph.password", &backends.Graph.Password)
}

func applyBackup(v *viper.Viper, system *backup.BackupSystemConfig) {
	if v.IsSet("backup.storage.provider") {
		provider := strings.ToUpper(v.GetString("backup.storage.provider"))
		switch provider {
		case "LOCAL":
			system.Storage.Provider = backup.StorageProviderLocal
			system.Storage.Local = &backup.LocalConfig{
				BasePath:    v.GetString("backup.storage.local.base_path"),
				Permissions: os.FileMode(v.GetInt("backup.storage.local.permissions")),
			}
		case "S3":
			system.Storage.Provider = backup.StorageProviderS3
			system.Storage.S3 = &backup.S3Config{
				Bucket:    v.GetString("backup.storage.s3.bucket"),
				Region:    v.GetString("backup.storage.s3.region"),
				AccessKey: v.GetString("backup.storage.s3.access_key"),
				SecretKey: v.GetString("backup.storage.s3.secret_key"),
			}
		case "AZURE":
			system.Storage.Provider = backup.StorageProviderAzure
			system.Storage.Azure = &backup.AzureConfig{
				AccountName:   v.GetString("backup.storage.azure.account_name"),
				AccountKey:    v.GetString("backup.storage.azure.account_key"),
				ContainerName: v.GetString("backup.storage.azure.container_name"),
			}
		case "GCS":
			system.Storage.Provider = backup.StorageProviderGCS
			system.Storage.GCS = &backup.GCSConfig{
				Bucket:          v.GetString("backup.storage.gcs.bucket"),
				CredentialsPath: v.GetString("backup.storage.gcs.credentials_path"),
				ProjectID:       v.GetString("backup.storage.gcs.project_id"),
			}
		}
	}
	if system.Storage.Provider == backup.StorageProviderLocal && v.IsSet("backup.storage.local.base_path") {
		if system.Storage.Local == nil {
			system.Storage.Local = &backup.LocalConfig{Permissions: 0755}
		}
		system.Storage.Local.BasePath = v.GetString("backup.storage.local.base_path")
	}

	setInt(v, "backup.retention.max_backups", &system.Retention.MaxBackups)
	setDuration(v, "backup.retention.max_age", &system.Retention.MaxAge)
	setDuration(v, "backup.retention.cleanup_interval", &system.Retention.CleanupInterval)
	setInt(v, "backup.retention.keep_daily", &system.Retention.KeepDaily)
	setInt(v, "backup.retention.keep_weekly", &system.Retention.KeepWeekly)
	setInt(v, "backup.retention.keep_monthly", &system.Retention.KeepMonthly)

	setBool(v, "backup.compression.enabled", &system.Compression.Enabled)
	if v.IsSet("backup.compression.algorithm") {
		system.Compression.Algorithm = backup.CompressionType(strings.ToUpper(v.GetString("backup.compression.algorithm")))
	}
	setInt(v, "backup.compression.level", &system.Compression.Level)

	setBool(v, "backup.encryption.enabled", &system.Encryption.Enabled)
	setString(v, "backup.encryption.key_source", &system.Encryption.KeySource)
	setString(v, "backup.encryption.key_path", &system.Encryption.KeyPath)
	setString(v, "backup.encryption.key_env_var", &system.Encryption.KeyEnvVar)
	setString(v, "backup.encryption.passphrase_env_var", &system.Encryption.PassphraseEnvVar)
	setString(v, "backup.encryption.salt", &system.Encryption.Salt)

	setBool(v, "backup.validation.verify_after_backup", &system.Validation.VerifyAfterBackup)
	setBool(v, "backup.validation.verify_after_restore", &system.Validation.VerifyAfterRestore)
	setDuration(v, "backup.validation.operation_timeout", &system.Validation.OperationTimeout)
}

func applyLogging(v *viper.Viper, logging *LoggingConfig) {
	setString(v, "logging.level", &logging.Level)
	setString(v, "logging.format", &logging.Format)
	setString(v, "logging.file", &logging.File)
	setBool(v, "logging.show_caller", &logging.ShowCaller)
}

func setString(v *viper.Viper, key string, target *string) {
	if v.IsSet(key) {
		*target = v.GetString(key)
	}
}

func setInt(v *viper.Viper, key string, target *int) {
	if v.IsSet(key) {
		*target = v.GetInt(key)
	}
}

func setBool(v *viper.Viper, key string, target *bool) {
	if v.IsSet(key) {
		*target = v.GetBool(key)
	}
}

func setDuration(v *viper.Viper, key string, target *time.Duration) {
	if v.IsSet(key) {
		*target = v.GetDuration(key)
	}
}
