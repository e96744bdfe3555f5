// Package logging provides structured logging for export/import runs on
// top of logrus.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger wraps logrus with domain-specific helpers so operation logging
// stays uniform across the services and the CLI.
type Logger struct {
	*logrus.Logger
}

// Config controls logger construction.
type Config struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"` // "text" or "json"
	Output io.Writer
}

// New creates a configured logger. Unknown levels fall back to info; the
// default output is stderr so command output on stdout stays parseable.
func New(cfg Config) *Logger {
	l := logrus.New()

	level, err := logrus.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	if strings.EqualFold(cfg.Format, "json") {
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05Z07:00"})
	} else {
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	if cfg.Output != nil {
		l.SetOutput(cfg.Output)
	} else {
		l.SetOutput(os.Stderr)
	}

	return &Logger{Logger: l}
}

// Default returns an info-level text logger.
func Default() *Logger {
	return New(Config{Level: "info", Format: "text"})
}

// LogOperationStart records the start of a top-level operation with its
// parameters.
func (l *Logger) LogOperationStart(operation string, fields map[string]interface{}) {
	entry := l.WithField("operation", operation)
	for k, v := range fields {
		entry = entry.WithField(k, v)
	}
	entry.Info("operation started")
}

// LogExport records the outcome of exporting one entity type.
func (l *Logger) LogExport(component, model string, count int, success bool) {
	entry := l.WithFields(logrus.Fields{
		"component": component,
		"model":     model,
		"count":     count,
	})
	if success {
		entry.Info("entity exported")
	} else {
		entry.Warn("entity export finished with errors")
	}
}

// LogImport records the outcome of importing one entity type's records.
func (l *Logger) LogImport(component, model string, created, updated, skipped, errorCount int, dryRun bool) {
	entry := l.WithFields(logrus.Fields{
		"component": component,
		"model":     model,
		"created":   created,
		"updated":   updated,
		"skipped":   skipped,
		"errors":    errorCount,
		"dry_run":   dryRun,
	})
	if errorCount > 0 {
		entry.Warn("entity import finished with errors")
	} else {
		entry.Info("entity imported")
	}
}

// LogCompatibility records a compatibility verdict for one component.
func (l *Logger) LogCompatibility(component, status string, warningCount, errorCount int) {
	entry := l.WithFields(logrus.Fields{
		"component": component,
		"status":    status,
		"warnings":  warningCount,
		"errors":    errorCount,
	})
	switch {
	case errorCount > 0:
		entry.Error("compatibility check failed")
	case warningCount > 0:
		entry.Warn("compatibility check passed with warnings")
	default:
		entry.Info("compatibility check passed")
	}
}

// LogArchive records an archive transfer.
func (l *Logger) LogArchive(action, provider, key string, size int64) {
	l.WithFields(logrus.Fields{
		"action":   action,
		"provider": provider,
		"key":      key,
		"bytes":    size,
	}).Info("archive transfer")
}
