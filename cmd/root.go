package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"memstore-backup/internal/backup"
	"memstore-backup/internal/checksum"
	"memstore-backup/internal/config"
	"memstore-backup/internal/display"
	"memstore-backup/internal/logging"
	"memstore-backup/internal/store"
)

var cfgFile string

// CLI flag variables
var (
	verbose          bool
	quiet            bool
	autoApprove      bool
	logFile          string
	noColor          bool
	operationTimeout time.Duration
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "memstore-backup",
	Short: "Backup, restore, and verify the memory store's vector and graph backends",
	Long: `memstore-backup is the data-integrity tool for a multi-backend memory
store. It produces consistent, verifiable backups of the vector and graph
backends, restores them with checksum-gated correctness, proves backups
restorable with disaster recovery drills, and runs idempotency-checked
structural migrations.

Examples:
  # Create a backup of every backend
  memstore-backup backup create --description "nightly"

  # List backups
  memstore-backup backup list --format json

  # Verify a backup against its recorded checksums
  memstore-backup backup verify backup-20260825120000-deadbeef

  # Restore a backup (prompts before clearing live data)
  memstore-backup restore backup-20260825120000-deadbeef

  # Prove backups restorable end to end
  memstore-backup drill

  # Re-dimension a vector collection, dry run first
  memstore-backup migrate-dimension documents --target-dimension 1536 --dry-run`,
	SilenceUsage: true,
}

// Execute runs the root command. It is called once from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default searches ./memstore-backup.yaml and ~/.config/memstore-backup/)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress non-error output")
	rootCmd.PersistentFlags().BoolVar(&autoApprove, "auto-approve", false, "skip interactive confirmations")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also write logs to this file")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable color output")
	rootCmd.PersistentFlags().DurationVar(&operationTimeout, "timeout", 0, "operation deadline (default from backup.validation.operation_timeout)")

	rootCmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	rootCmd.AddCommand(createVersionCommand())
}

// loadConfig reads the configuration and applies global flag overrides
func loadConfig() (*config.AppConfig, error) {
	appConfig, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	if verbose {
		appConfig.Logging.Level = "verbose"
	}
	if quiet {
		appConfig.Logging.Level = "quiet"
	}
	if logFile != "" {
		appConfig.Logging.File = logFile
	}

	return appConfig, nil
}

// runtime bundles everything a subcommand needs: the opened backends, the
// checksum engine, orchestrators, and display.
type runtime struct {
	config       *config.AppConfig
	logger       *logging.Logger
	display      *display.Service
	engine       *checksum.Engine
	vectorStore  *store.EmbeddedVectorStore
	graphStore   *store.EmbeddedGraphStore
	registry     *backup.HandlerRegistry
	orchestrator *backup.Orchestrator
	restore      *backup.RestoreOrchestrator
}

// newRuntime opens the configured backends and wires the orchestrators
func newRuntime(cmd *cobra.Command) (*runtime, error) {
	appConfig, err := loadConfig()
	if err != nil {
		return nil, err
	}

	if noColor {
		display.DisableColors()
	}

	logger, err := logging.NewLogger(appConfig.Logging.LoggerConfig())
	if err != nil {
		return nil, err
	}

	vectorStore, err := store.OpenEmbeddedVectorStore(appConfig.Backends.Vector.Path)
	if err != nil {
		return nil, backup.NewConnectivityError("failed to open vector store", err).
			WithComponent(backup.VectorComponentName)
	}

	graphStore, err := store.OpenEmbeddedGraphStore(appConfig.Backends.Graph.Path)
	if err != nil {
		return nil, backup.NewConnectivityError("failed to open graph store", err).
			WithComponent(backup.GraphComponentName)
	}

	engine := checksum.NewEngine()

	registry := backup.NewHandlerRegistry()
	if err := registry.Register(backup.NewVectorHandler(vectorStore, engine, logger)); err != nil {
		return nil, err
	}
	if err := registry.Register(backup.NewGraphHandler(graphStore, engine, logger)); err != nil {
		return nil, err
	}

	// Backups always land on local disk first; a cloud provider only adds
	// offsite replication on top.
	localConfig := appConfig.Backup.Storage.Local
	if localConfig == nil {
		localConfig = &backup.LocalConfig{}
		localConfig.SetDefaults()
	}
	manifestStore, err := backup.NewLocalManifestStore(localConfig)
	if err != nil {
		return nil, err
	}

	orchestrator := backup.NewOrchestrator(registry, manifestStore, engine, logger)
	orchestrator.SetToolVersion(version)

	offsite, err := backup.NewOffsiteProvider(cmd.Context(), &appConfig.Backup, logger)
	if err != nil {
		return nil, err
	}

	restore := backup.NewRestoreOrchestrator(registry, manifestStore, engine, logger)
	if offsite != nil {
		orchestrator.SetOffsiteProvider(offsite)
		restore.SetOffsiteProvider(offsite)
	}

	return &runtime{
		config:       appConfig,
		logger:       logger,
		display:      display.NewService(),
		engine:       engine,
		vectorStore:  vectorStore,
		graphStore:   graphStore,
		registry:     registry,
		orchestrator: orchestrator,
		restore:      restore,
	}, nil
}

// operationContext derives the context an operation runs under. The --timeout
// flag wins over the configured operation timeout; zero disables the deadline.
func (r *runtime) operationContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	timeout := operationTimeout
	if timeout <= 0 {
		timeout = r.config.Backup.Validation.OperationTimeout
	}
	if timeout <= 0 {
		return context.WithCancel(cmd.Context())
	}
	return context.WithTimeout(cmd.Context(), timeout)
}

// saveBackends persists the embedded stores after mutating operations
func (r *runtime) saveBackends() error {
	if err := r.vectorStore.Save(); err != nil {
		return backup.NewStorageError("failed to persist vector store", err)
	}
	if err := r.graphStore.Save(); err != nil {
		return backup.NewStorageError("failed to persist graph store", err)
	}
	return nil
}

// formatBytes renders a byte count in human readable form
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// Version information (set by main package)
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
	goVersion = "unknown"
)

// SetVersionInfo sets the version information from build flags
func SetVersionInfo(v, bt, gc, gv string) {
	version = v
	buildTime = bt
	gitCommit = gc
	goVersion = gv
}

// createVersionCommand creates the version subcommand
func createVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("memstore-backup version %s\n", version)
			fmt.Printf("Built: %s\n", buildTime)
			fmt.Printf("Commit: %s\n", gitCommit)
			fmt.Printf("Go version: %s\n", goVersion)
		},
	}
}
