package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
)

// Version is reported in the startup line.
const Version = "0.1.0"

var (
	// Logger is the global logger instance
	Logger *log.Logger

	logFile *os.File
)

// Dir returns the default log directory, ~/.feedview/logs.
func Dir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".feedview", "logs"), nil
}

// Init opens today's log file in the default directory.
func Init() error {
	dir, err := Dir()
	if err != nil {
		return err
	}
	return InitDir(dir)
}

// InitDir opens feedview-YYYY-MM-DD.log under dir and points Logger at it.
// The terminal belongs to the TUI, so nothing is written to stderr.
func InitDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	name := fmt.Sprintf("feedview-%s.log", time.Now().Format("2006-01-02"))
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	logFile = f

	Logger = log.NewWithOptions(logFile, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Level:           log.DebugLevel,
	})

	Logger.Info("feedview started", "version", Version, "pid", os.Getpid())
	return nil
}

// Close flushes the shutdown line and closes the log file.
func Close() {
	if Logger != nil {
		Logger.Info("feedview shutting down")
	}
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	Logger = nil
}

// Info logs an info message
func Info(msg string, keyvals ...interface{}) {
	if Logger != nil {
		Logger.Info(msg, keyvals...)
	}
}

// Debug logs a debug message
func Debug(msg string, keyvals ...interface{}) {
	if Logger != nil {
		Logger.Debug(msg, keyvals...)
	}
}

// Warn logs a warning message
func Warn(msg string, keyvals ...interface{}) {
	if Logger != nil {
		Logger.Warn(msg, keyvals...)
	}
}

// Error logs an error message
func Error(msg string, keyvals ...interface{}) {
	if Logger != nil {
		Logger.Error(msg, keyvals...)
	}
}

// WithPrefix returns a logger with a prefix, or nil before Init.
func WithPrefix(prefix string) *log.Logger {
	if Logger != nil {
		return Logger.WithPrefix(prefix)
	}
	return nil
}
