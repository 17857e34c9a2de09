package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// LogLevel represents the logging level
type LogLevel string

const (
	// LogLevelQuiet suppresses all output except critical errors
	LogLevelQuiet LogLevel = "quiet"
	// LogLevelNormal shows standard operational messages
	LogLevelNormal LogLevel = "normal"
	// LogLevelVerbose shows detailed operational information
	LogLevelVerbose LogLevel = "verbose"
	// LogLevelDebug shows all debug information
	LogLevelDebug LogLevel = "debug"
)

// Logger provides structured logging capabilities
type Logger struct {
	logger *logrus.Logger
	level  LogLevel
}

// Config holds logger configuration
type Config struct {
	Level      LogLevel
	Output     io.Writer
	Format     string // "text" or "json"
	ShowCaller bool
	LogFile    string
}

// NewLogger creates a new logger with the specified configuration
func NewLogger(config Config) (*Logger, error) {
	logger := logrus.New()

	// Set output
	if config.Output != nil {
		logger.SetOutput(config.Output)
	} else {
		logger.SetOutput(os.Stdout)
	}

	// Set format
	switch config.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
		})
	default:
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
			DisableColors:   false,
		})
	}

	// Set log level based on our custom levels
	switch config.Level {
	case LogLevelQuiet:
		logger.SetLevel(logrus.ErrorLevel)
	case LogLevelNormal:
		logger.SetLevel(logrus.InfoLevel)
	case LogLevelVerbose:
		logger.SetLevel(logrus.DebugLevel)
	case LogLevelDebug:
		logger.SetLevel(logrus.TraceLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}

	// Enable caller reporting if requested
	if config.ShowCaller {
		logger.SetReportCaller(true)
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
			CallerPrettyfier: func(f *runtime.Frame) (string, string) {
				filename := filepath.Base(f.File)
				return fmt.Sprintf("%s()", f.Function), fmt.Sprintf("%s:%d", filename, f.Line)
			},
		})
	}

	// Set up file logging if specified
	if config.LogFile != "" {
		file, err := os.OpenFile(config.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", config.LogFile, err)
		}

		// Use multi-writer to write to both file and stdout
		if config.Output == nil {
			logger.SetOutput(io.MultiWriter(os.Stdout, file))
		} else {
			logger.SetOutput(io.MultiWriter(config.Output, file))
		}
	}

	return &Logger{
		logger: logger,
		level:  config.Level,
	}, nil
}

// NewDefaultLogger creates a logger with default configuration
func NewDefaultLogger() *Logger {
	config := Config{
		Level:      LogLevelNormal,
		Output:     os.Stdout,
		Format:     "text",
		ShowCaller: false,
	}

	logger, _ := NewLogger(config)
	return logger
}

// WithContext returns a logger with context fields
func (l *Logger) WithContext(ctx context.Context) *logrus.Entry {
	entry := l.logger.WithContext(ctx)

	// Add request ID if available in context
	if requestID := ctx.Value("request_id"); requestID != nil {
		entry = entry.WithField("request_id", requestID)
	}

	return entry
}

// WithFields returns a logger with additional fields
func (l *Logger) WithFields(fields map[string]interface{}) *logrus.Entry {
	return l.logger.WithFields(fields)
}

// WithField returns a logger with a single additional field
func (l *Logger) WithField(key string, value interface{}) *logrus.Entry {
	return l.logger.WithField(key, value)
}

// Backup operation logging methods

// LogBackendConnection logs backend connection attempts
func (l *Logger) LogBackendConnection(backend string, endpoint string, success bool, duration time.Duration, err error) {
	fields := logrus.Fields{
		"operation": "backend_connection",
		"backend":   backend,
		"endpoint":  SanitizeEndpoint(endpoint),
		"duration":  duration.String(),
		"success":   success,
	}

	if success {
		l.logger.WithFields(fields).Info("Backend connection established")
	} else {
		if err != nil {
			fields["error"] = err.Error()
		}
		l.logger.WithFields(fields).Error("Backend connection failed")
	}
}

// LogBackupRun logs the outcome of a backup run
func (l *Logger) LogBackupRun(backupID string, components []string, failed []string, duration time.Duration, err error) {
	fields := logrus.Fields{
		"operation":  "backup",
		"backup_id":  backupID,
		"components": strings.Join(components, ","),
		"duration":   duration.String(),
	}

	if len(failed) > 0 {
		fields["failed_components"] = strings.Join(failed, ",")
	}

	if err != nil {
		fields["error"] = err.Error()
		l.logger.WithFields(fields).Error("Backup failed")
	} else if len(failed) > 0 {
		l.logger.WithFields(fields).Warn("Backup completed with component failures")
	} else {
		l.logger.WithFields(fields).Info("Backup completed")
	}
}

// LogRestoreRun logs the outcome of a restore run
func (l *Logger) LogRestoreRun(backupID string, restored []string, errorCount int, duration time.Duration, err error) {
	fields := logrus.Fields{
		"operation":   "restore",
		"backup_id":   backupID,
		"restored":    strings.Join(restored, ","),
		"error_count": errorCount,
		"duration":    duration.String(),
	}

	if err != nil {
		fields["error"] = err.Error()
		l.logger.WithFields(fields).Error("Restore failed")
	} else if errorCount > 0 {
		l.logger.WithFields(fields).Warn("Restore completed with errors")
	} else {
		l.logger.WithFields(fields).Info("Restore completed")
	}
}

// LogChecksumComputation logs checksum computation over live or backup state
func (l *Logger) LogChecksumComputation(target string, overall string, duration time.Duration, err error) {
	fields := logrus.Fields{
		"operation": "checksum",
		"target":    target,
		"duration":  duration.String(),
	}

	if err != nil {
		fields["error"] = err.Error()
		l.logger.WithFields(fields).Error("Checksum computation failed")
	} else {
		fields["checksum"] = overall
		if l.level == LogLevelVerbose || l.level == LogLevelDebug {
			l.logger.WithFields(fields).Debug("Checksum computed")
		}
	}
}

// LogDrillPhase logs completion of one disaster recovery drill phase
func (l *Logger) LogDrillPhase(drillID string, phase string, duration time.Duration, err error) {
	fields := logrus.Fields{
		"operation": "drill",
		"drill_id":  drillID,
		"phase":     phase,
		"duration":  duration.String(),
	}

	if err != nil {
		fields["error"] = err.Error()
		l.logger.WithFields(fields).Error("Drill phase failed")
	} else {
		l.logger.WithFields(fields).Info("Drill phase completed")
	}
}

// LogMigrationRun logs the outcome of a dimension migration run
func (l *Logger) LogMigrationRun(jobID string, collection string, migrated, failed int64, dryRun bool, duration time.Duration, err error) {
	fields := logrus.Fields{
		"operation":  "migration",
		"job_id":     jobID,
		"collection": collection,
		"migrated":   migrated,
		"failed":     failed,
		"dry_run":    dryRun,
		"duration":   duration.String(),
	}

	if err != nil {
		fields["error"] = err.Error()
		l.logger.WithFields(fields).Error("Migration failed")
	} else if failed > 0 {
		l.logger.WithFields(fields).Warn("Migration completed with failed points")
	} else {
		l.logger.WithFields(fields).Info("Migration completed")
	}
}

// LogOffsiteTransfer logs replication of a backup to or from offsite storage
func (l *Logger) LogOffsiteTransfer(provider string, backupID string, direction string, bytes int64, duration time.Duration, err error) {
	fields := logrus.Fields{
		"operation": "offsite_transfer",
		"provider":  provider,
		"backup_id": backupID,
		"direction": direction,
		"bytes":     bytes,
		"duration":  duration.String(),
	}

	if err != nil {
		fields["error"] = err.Error()
		l.logger.WithFields(fields).Error("Offsite transfer failed")
	} else {
		l.logger.WithFields(fields).Info("Offsite transfer completed")
	}
}

// Standard logging methods

// Info logs an info message
func (l *Logger) Info(msg string) {
	l.logger.Info(msg)
}

// Infof logs a formatted info message
func (l *Logger) Infof(format string, args ...interface{}) {
	l.logger.Infof(format, args...)
}

// Debug logs a debug message
func (l *Logger) Debug(msg string) {
	l.logger.Debug(msg)
}

// Debugf logs a formatted debug message
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.logger.Debugf(format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string) {
	l.logger.Warn(msg)
}

// Warnf logs a formatted warning message
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.logger.Warnf(format, args...)
}

// Error logs an error message
func (l *Logger) Error(msg string) {
	l.logger.Error(msg)
}

// Errorf logs a formatted error message
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.logger.Errorf(format, args...)
}

// Fatal logs a fatal message and exits
func (l *Logger) Fatal(msg string) {
	l.logger.Fatal(msg)
}

// Fatalf logs a formatted fatal message and exits
func (l *Logger) Fatalf(format string, args ...interface{}) {
	l.logger.Fatalf(format, args...)
}

// GetLevel returns the current log level
func (l *Logger) GetLevel() LogLevel {
	return l.level
}

// SetLevel sets the log level
func (l *Logger) SetLevel(level LogLevel) {
	l.level = level
	switch level {
	case LogLevelQuiet:
		l.logger.SetLevel(logrus.ErrorLevel)
	case LogLevelNormal:
		l.logger.SetLevel(logrus.InfoLevel)
	case LogLevelVerbose:
		l.logger.SetLevel(logrus.DebugLevel)
	case LogLevelDebug:
		l.logger.SetLevel(logrus.TraceLevel)
	}
}

// IsLevelEnabled checks if a log level is enabled
func (l *Logger) IsLevelEnabled(level LogLevel) bool {
	switch level {
	case LogLevelQuiet:
		return l.logger.IsLevelEnabled(logrus.ErrorLevel)
	case LogLevelNormal:
		return l.logger.IsLevelEnabled(logrus.InfoLevel)
	case LogLevelVerbose:
		return l.logger.IsLevelEnabled(logrus.DebugLevel)
	case LogLevelDebug:
		return l.logger.IsLevelEnabled(logrus.TraceLevel)
	default:
		return false
	}
}

// LogOperationStart logs the start of an operation and returns a function to log completion
func (l *Logger) LogOperationStart(operation string, fields map[string]interface{}) func(error) {
	startTime := time.Now()

	logFields := logrus.Fields{
		"operation": operation,
		"status":    "started",
	}

	// Add additional fields
	for k, v := range fields {
		logFields[k] = v
	}

	l.logger.WithFields(logFields).Debug("Operation started")

	return func(err error) {
		duration := time.Since(startTime)
		logFields["status"] = "completed"
		logFields["duration"] = duration.String()

		if err != nil {
			logFields["error"] = err.Error()
			logFields["success"] = false
			l.logger.WithFields(logFields).Error("Operation failed")
		} else {
			logFields["success"] = true
			l.logger.WithFields(logFields).Info("Operation completed")
		}
	}
}

// CreateContextWithRequestID creates a context with a request ID for tracing
func CreateContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, "request_id", requestID)
}

// GetRequestIDFromContext extracts request ID from context
func GetRequestIDFromContext(ctx context.Context) string {
	if requestID := ctx.Value("request_id"); requestID != nil {
		if id, ok := requestID.(string); ok {
			return id
		}
	}
	return ""
}

// SanitizeEndpoint masks credentials embedded in a backend endpoint URL
// before it reaches the logs.
func SanitizeEndpoint(endpoint string) string {
	schemeEnd := strings.Index(endpoint, "://")
	if schemeEnd == -1 {
		return endpoint
	}

	rest := endpoint[schemeEnd+3:]
	at := strings.Index(rest, "@")
	if at == -1 {
		return endpoint
	}

	userinfo := rest[:at]
	if colon := strings.Index(userinfo, ":"); colon != -1 {
		userinfo = userinfo[:colon] + ":***"
	}

	return endpoint[:schemeEnd+3] + userinfo + rest[at:]
}
