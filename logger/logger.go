// Package logger holds the process-wide structured logger.
//
// Records go to a log file in the state directory, optionally mirrored to a
// second writer (stderr when the server runs in the foreground). Components
// take a child logger with WithComponent; each client connection adds its
// connID with WithConnection.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/zhubert/appctl/paths"
)

// Format selects the record encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Options configures Setup.
type Options struct {
	// Path is the log file. Empty selects DefaultLogPath.
	Path string
	// Format defaults to FormatText.
	Format Format
	// Debug lowers the level to slog.LevelDebug.
	Debug bool
	// Mirror, if set, receives a copy of every record.
	Mirror io.Writer
}

var (
	mu      sync.Mutex
	root    *slog.Logger
	file    *os.File
	path    string
	level   = new(slog.LevelVar)
	started bool
)

// DefaultLogPath returns <state>/logs/appctl.log.
func DefaultLogPath() (string, error) {
	dir, err := paths.LogsDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "appctl.log"), nil
}

// Setup opens the log file and installs the root logger. Calling it again
// replaces the previous configuration and closes the old file.
func Setup(opts Options) error {
	mu.Lock()
	defer mu.Unlock()
	return setupLocked(opts)
}

func setupLocked(opts Options) error {
	if opts.Path == "" {
		p, err := DefaultLogPath()
		if err != nil {
			return err
		}
		opts.Path = p
	}

	if err := os.MkdirAll(filepath.Dir(opts.Path), 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(opts.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", opts.Path, err)
	}

	var w io.Writer = f
	if opts.Mirror != nil {
		w = io.MultiWriter(f, opts.Mirror)
	}

	setLevel(opts.Debug)
	handlerOpts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	switch opts.Format {
	case FormatJSON:
		h = slog.NewJSONHandler(w, handlerOpts)
	case FormatText, "":
		h = slog.NewTextHandler(w, handlerOpts)
	default:
		f.Close()
		return fmt.Errorf("unknown log format %q", opts.Format)
	}

	closeFileLocked()
	file = f
	path = opts.Path
	root = slog.New(h)
	started = true

	root.Debug("logger initialized", "path", path, "format", opts.Format)
	return nil
}

// SetDebug switches between debug and info level without reopening the file.
func SetDebug(enabled bool) {
	setLevel(enabled)
}

func setLevel(debug bool) {
	if debug {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}
}

// DebugEnabled reports whether debug records are emitted.
func DebugEnabled() bool {
	return level.Level() <= slog.LevelDebug
}

// Path returns the current log file, or "" before Setup.
func Path() string {
	mu.Lock()
	defer mu.Unlock()
	return path
}

// Get returns the root logger, setting up the default file on first use.
// If that fails the process-wide slog default is returned.
func Get() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()

	if !started {
		if err := setupLocked(Options{Debug: DebugEnabled()}); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
			started = true
		}
	}
	if root == nil {
		return slog.Default()
	}
	return root
}

// WithComponent returns a logger tagged with component.
func WithComponent(component string) *slog.Logger {
	return Get().With("component", component)
}

// WithConnection returns a logger tagged with a client connection ID.
func WithConnection(connID string) *slog.Logger {
	return Get().With("connID", connID)
}

// Close flushes and closes the log file. Later records fall back to the slog
// default until Setup is called again.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	closeFileLocked()
	root = nil
}

func closeFileLocked() {
	if file != nil {
		file.Close()
		file = nil
	}
}

// Reset returns the package to its initial state. Tests only.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	closeFileLocked()
	root = nil
	path = ""
	started = false
	level.Set(slog.LevelInfo)
}
