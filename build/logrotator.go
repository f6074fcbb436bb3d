// Copyright (c) 2019 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package build

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/btcsuite/btclog"
	"github.com/jrick/logrotate/rotator"
)

// RotatingLogWriter is a wrapper around the log rotator that writes every
// message to stdout and, once initialized, to a rolling log file.  All
// subsystem loggers created through GenSubLogger share one backend.
type RotatingLogWriter struct {
	backend *btclog.Backend

	mu               sync.Mutex
	rotator          *rotator.Rotator
	subsystemLoggers map[string]btclog.Logger
}

// NewRotatingLogWriter creates a new file rotating log writer.  Log messages
// are written to stdout until InitLogRotator is called.
func NewRotatingLogWriter() *RotatingLogWriter {
	w := &RotatingLogWriter{
		subsystemLoggers: make(map[string]btclog.Logger),
	}
	w.backend = btclog.NewBackend(w)
	return w
}

// Write writes the byte slice to stdout and the rotator.  It implements the
// io.Writer interface.
func (w *RotatingLogWriter) Write(b []byte) (int, error) {
	os.Stdout.Write(b)

	w.mu.Lock()
	r := w.rotator
	w.mu.Unlock()

	if r != nil {
		return r.Write(b)
	}
	return len(b), nil
}

// InitLogRotator initializes the log file rotator to write logs to logFile and
// create roll files in the same directory.  It must be called before the
// package-global log rotator variables are used.
func (w *RotatingLogWriter) InitLogRotator(logFile string, maxLogFileSize,
	maxLogFiles int) error {

	logDir, _ := filepath.Split(logFile)
	if logDir != "" {
		if err := os.MkdirAll(logDir, 0700); err != nil {
			return fmt.Errorf("failed to create log directory: %w",
				err)
		}
	}

	r, err := rotator.New(
		logFile, int64(maxLogFileSize*1024), false, maxLogFiles,
	)
	if err != nil {
		return fmt.Errorf("failed to create file rotator: %w", err)
	}

	w.mu.Lock()
	w.rotator = r
	w.mu.Unlock()

	return nil
}

// GenSubLogger creates a new sub logger that shares the writer's backend.
func (w *RotatingLogWriter) GenSubLogger(tag string) btclog.Logger {
	return w.backend.Logger(tag)
}

// RegisterSubLogger remembers the logger of a subsystem so its level can be
// changed later.
func (w *RotatingLogWriter) RegisterSubLogger(subsystem string,
	logger btclog.Logger) {

	w.mu.Lock()
	w.subsystemLoggers[subsystem] = logger
	w.mu.Unlock()
}

// SupportedSubsystems returns a sorted slice of the registered subsystems.
func (w *RotatingLogWriter) SupportedSubsystems() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	subsystems := make([]string, 0, len(w.subsystemLoggers))
	for subsysID := range w.subsystemLoggers {
		subsystems = append(subsystems, subsysID)
	}
	sort.Strings(subsystems)

	return subsystems
}

// SetLogLevel sets the logging level for the provided subsystem.  Invalid
// subsystems are ignored.
func (w *RotatingLogWriter) SetLogLevel(subsystemID string, logLevel string) {
	w.mu.Lock()
	logger, ok := w.subsystemLoggers[subsystemID]
	w.mu.Unlock()
	if !ok {
		return
	}

	// Defaults to info if the log level is invalid.
	level, _ := btclog.LevelFromString(logLevel)
	logger.SetLevel(level)
}

// SetLogLevels sets the log level for all registered subsystem loggers.
func (w *RotatingLogWriter) SetLogLevels(logLevel string) {
	for _, subsystemID := range w.SupportedSubsystems() {
		w.SetLogLevel(subsystemID, logLevel)
	}
}

// ParseAndSetDebugLevels applies a debug level list.  It is either a
// single level for all subsystems, or a comma separated list of
// subsystem=level pairs, for example "LDGR=debug,HDRC=trace".
func (w *RotatingLogWriter) ParseAndSetDebugLevels(levels string) error {
	if !strings.Contains(levels, "=") && !strings.Contains(levels, ",") {
		if _, ok := btclog.LevelFromString(levels); !ok {
			return fmt.Errorf("invalid debug level %q", levels)
		}
		w.SetLogLevels(levels)
		return nil
	}

	known := w.SupportedSubsystems()
	for _, pair := range strings.Split(levels, ",") {
		subsysID, level, ok := strings.Cut(pair, "=")
		if !ok {
			return fmt.Errorf("debug level pair %q is not "+
				"subsystem=level", pair)
		}
		if !slices.Contains(known, subsysID) {
			return fmt.Errorf("unknown subsystem %q, supported "+
				"subsystems are %v", subsysID, known)
		}
		if _, ok := btclog.LevelFromString(level); !ok {
			return fmt.Errorf("invalid debug level %q for %s", level,
				subsysID)
		}
		w.SetLogLevel(subsysID, level)
	}
	return nil
}

// Close closes the underlying log rotator if it has been created.
func (w *RotatingLogWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.rotator != nil {
		return w.rotator.Close()
	}
	return nil
}
