package config

import (
	"os"
	"strings"

	"memstore-backup/internal/backup"
	"memstore-backup/internal/logging"
)

// AppConfig is the complete tool configuration: the two backends under
// protection, the backup system itself, and logging.
type AppConfig struct {
	Backends BackendsConfig            `yaml:"backends"`
	Backup   backup.BackupSystemConfig `yaml:"backup"`
	Logging  LoggingConfig             `yaml:"logging"`
}

// BackendsConfig groups the protected backends
type BackendsConfig struct {
	Vector VectorBackendConfig `yaml:"vector"`
	Graph  GraphBackendConfig  `yaml:"graph"`
}

// VectorBackendConfig selects and configures the vector-store backend
type VectorBackendConfig struct {
	// Provider is the backend kind. Only "embedded" ships today.
	Provider string `yaml:"provider"`

	// Path is the embedded store's state file
	Path string `yaml:"path"`

	// Endpoint and APIKey are reserved for remote providers
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"api_key"`
}

// GraphBackendConfig selects and configures the graph-store backend
type GraphBackendConfig struct {
	Provider string `yaml:"provider"`
	Path     string `yaml:"path"`
	Endpoint string `yaml:"endpoint"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// LoggingConfig configures the structured logger
type LoggingConfig struct {
	Level      string `yaml:"level"`  // quiet, normal, verbose, debug
	Format     string `yaml:"format"` // text, json
	File       string `yaml:"file"`
	ShowCaller bool   `yaml:"show_caller"`
}

// Validate validates the complete configuration. Configuration errors fail
// fast, before any backend I/O.
func (ac *AppConfig) Validate() error {
	var errors backup.ValidationErrors

	if err := ac.Backends.Validate(); err != nil {
		if validationErrs, ok := err.(backup.ValidationErrors); ok {
			errors = append(errors, validationErrs...)
		} else {
			errors.Add("backends", err.Error(), nil)
		}
	}

	if err := ac.Backup.Validate(); err != nil {
		if validationErrs, ok := err.(backup.ValidationErrors); ok {
			errors = append(errors, validationErrs...)
		} else {
			errors.Add("backup", err.Error(), nil)
		}
	}

	if err := ac.Logging.Validate(); err != nil {
		if validationErrs, ok := err.(backup.ValidationErrors); ok {
			errors = append(errors, validationErrs...)
		} else {
			errors.Add("logging", err.Error(), nil)
		}
	}

	if errors.HasErrors() {
		return errors
	}
	return nil
}

// SetDefaults sets default values for the complete configuration
func (ac *AppConfig) SetDefaults() {
	ac.Backends.SetDefaults()
	ac.Backup.SetDefaults()
	ac.Logging.SetDefaults()
}

// LoadFromEnvironment loads configuration values from environment variables
func (ac *AppConfig) LoadFromEnvironment() {
	ac.Backends.LoadFromEnvironment()
	ac.Backup.LoadFromEnvironment()
	ac.Logging.LoadFromEnvironment()
}

// Validate validates the backend selection
func (bc *BackendsConfig) Validate() error {
	var errors backup.ValidationErrors

	switch bc.Vector.Provider {
	case "embedded":
		if bc.Vector.Path == "" {
			errors.Add("backends.vector.path", "embedded vector store requires a state file path", nil)
		}
	default:
		errors.Add("backends.vector.provider", "unsupported vector provider", bc.Vector.Provider)
	}

	switch bc.Graph.Provider {
	case "embedded":
		if bc.Graph.Path == "" {
			errors.Add("backends.graph.path", "embedded graph store requires a state file path", nil)
		}
	default:
		errors.Add("backends.graph.provider", "unsupported graph provider", bc.Graph.Provider)
	}

	if errors.HasErrors() {
		return errors
	}
	return nil
}

// SetDefaults sets default values for the backend configuration
func (bc *BackendsConfig) SetDefaults() {
	if bc.Vector.Provider == "" {
		bc.Vector.Provider = "embedded"
	}
	if bc.Vector.Path == "" {
		bc.Vector.Path = "./data/vector-store.json"
	}
	if bc.Graph.Provider == "" {
		bc.Graph.Provider = "embedded"
	}
	if bc.Graph.Path == "" {
		bc.Graph.Path = "./data/graph-store.json"
	}
}

// LoadFromEnvironment loads backend settings from environment variables
func (bc *BackendsConfig) LoadFromEnvironment() {
	if v := os.Getenv("MEMSTORE_BACKUP_VECTOR_PROVIDER"); v != "" {
		bc.Vector.Provider = v
	}
	if v := os.Getenv("MEMSTORE_BACKUP_VECTOR_PATH"); v != "" {
		bc.Vector.Path = v
	}
	if v := os.Getenv("MEMSTORE_BACKUP_VECTOR_ENDPOINT"); v != "" {
		bc.Vector.Endpoint = v
	}
	if v := os.Getenv("MEMSTORE_BACKUP_VECTOR_API_KEY"); v != "" {
		bc.Vector.APIKey = v
	}
	if v := os.Getenv("MEMSTORE_BACKUP_GRAPH_PROVIDER"); v != "" {
		bc.Graph.Provider = v
	}
	if v := os.Getenv("MEMSTORE_BACKUP_GRAPH_PATH"); v != "" {
		bc.Graph.Path = v
	}
	if v := os.Getenv("MEMSTORE_BACKUP_GRAPH_ENDPOINT"); v != "" {
		bc.Graph.Endpoint = v
	}
	if v := os.Getenv("MEMSTORE_BACKUP_GRAPH_USERNAME"); v != "" {
		bc.Graph.Username = v
	}
	if v := os.Getenv("MEMSTORE_BACKUP_GRAPH_PASSWORD"); v != "" {
		bc.Graph.Password = v
	}
}

// Validate validates the logging configuration
func (lc *LoggingConfig) Validate() error {
	var errors backup.ValidationErrors

	switch lc.Level {
	case "", "quiet", "normal", "verbose", "debug":
	default:
		errors.Add("logging.level", "level must be one of quiet, normal, verbose, debug", lc.Level)
	}

	switch lc.Format {
	case "", "text", "json":
	default:
		errors.Add("logging.format", "format must be text or json", lc.Format)
	}

	if errors.HasErrors() {
		return errors
	}
	return nil
}

// SetDefaults sets default values for the logging configuration
func (lc *LoggingConfig) SetDefaults() {
	if lc.Level == "" {
		lc.Level = "normal"
	}
	if lc.Format == "" {
		lc.Format = "text"
	}
}

// LoadFromEnvironment loads logging settings from environment variables
func (lc *LoggingConfig) LoadFromEnvironment() {
	if v := os.Getenv("MEMSTORE_BACKUP_LOG_LEVEL"); v != "" {
		lc.Level = strings.ToLower(v)
	}
	if v := os.Getenv("MEMSTORE_BACKUP_LOG_FORMAT"); v != "" {
		lc.Format = strings.ToLower(v)
	}
	if v := os.Getenv("MEMSTORE_BACKUP_LOG_FILE"); v != "" {
		lc.File = v
	}
}

// LoggerConfig converts the logging section into a logger configuration
func (lc *LoggingConfig) LoggerConfig() logging.Config {
	return logging.Config{
		Level:      logging.LogLevel(lc.Level),
		Format:     lc.Format,
		LogFile:    lc.File,
		ShowCaller: lc.ShowCaller,
	}
}
