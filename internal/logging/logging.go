// Package logging provides the structured logger shared by quoteflow components.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Field names used across packages.
const (
	FieldRunID  = "run_id"
	FieldGroup  = "group"
	FieldStepID = "step_id"
	FieldTool   = "tool"
)

// pkgLogger is the process-wide logger returned by Default.
var pkgLogger *logrus.Logger
var pkgLoggerMu sync.RWMutex

// SetDefault sets the process-wide logger.
func SetDefault(l *logrus.Logger) {
	pkgLoggerMu.Lock()
	defer pkgLoggerMu.Unlock()
	pkgLogger = l
}

// Default returns the process-wide logger, or a discarding logger if none is set.
func Default() *logrus.Logger {
	pkgLoggerMu.RLock()
	l := pkgLogger
	pkgLoggerMu.RUnlock()

	if l == nil {
		return Nop()
	}
	return l
}

// Nop returns a logger that discards everything.
func Nop() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// Logger is a logrus logger that may own a log file.
type Logger struct {
	*logrus.Logger

	mu   sync.Mutex
	file *os.File
}

// Options configures New.
type Options struct {
	// Level is a logrus level name. Empty means info.
	Level string
	// Path is the log file. Empty writes to Output.
	Path string
	// Output is used when Path is empty. Nil means stderr.
	Output io.Writer
	// JSON selects the JSON formatter.
	JSON bool
}

// New creates a logger. Parent directories of Path are created as needed.
func New(opts Options) (*Logger, error) {
	base := logrus.New()

	level := logrus.InfoLevel
	if opts.Level != "" {
		parsed, err := logrus.ParseLevel(opts.Level)
		if err != nil {
			return nil, fmt.Errorf("parse log level: %w", err)
		}
		level = parsed
	}
	base.SetLevel(level)

	if opts.JSON {
		base.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, DisableColors: opts.Path != ""})
	}

	logger := &Logger{Logger: base}

	switch {
	case opts.Path != "":
		dir := filepath.Dir(opts.Path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(opts.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		logger.file = f
		base.SetOutput(f)
		base.Infof("=== quoteflow log started at %s ===", time.Now().Format(time.RFC3339))
	case opts.Output != nil:
		base.SetOutput(opts.Output)
	default:
		base.SetOutput(os.Stderr)
	}

	return logger, nil
}

// NewForProject creates a debug-level file logger in dir/.quoteflow/logs.
// Returns a discarding logger if the file cannot be opened.
func NewForProject(dir string) *Logger {
	logPath := filepath.Join(dir, ".quoteflow", "logs", "quoteflow.log")
	logger, err := New(Options{Level: "debug", Path: logPath})
	if err != nil {
		return &Logger{Logger: Nop()}
	}
	return logger
}

// Close closes the log file, if any.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	l.Logger.SetOutput(io.Discard)
	return err
}
