// Copyright (c) 2015 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package build

import (
	"os"

	"github.com/btcsuite/btclog"
)

// LogType indicates the type of logging specified by the build flag.
type LogType byte

const (
	// LogTypeNone indicates no logging.
	LogTypeNone LogType = iota

	// LogTypeStdOut all logging is written directly to stdout.
	LogTypeStdOut

	// LogTypeDefault logs through the sub logger constructor handed in by
	// the caller, usually one sharing a RotatingLogWriter backend.
	LogTypeDefault
)

// String returns a human readable identifier for the logging type.
func (t LogType) String() string {
	switch t {
	case LogTypeNone:
		return "none"
	case LogTypeStdOut:
		return "stdout"
	case LogTypeDefault:
		return "default"
	default:
		return "unknown"
	}
}

// NewSubLogger returns the logger of subsystem for the compiled deployment.
//
// Production builds and development builds with default logging use
// genSubLogger, so library packages that pass nil from init stay silent until
// the binary hands them a logger through UseLogger.  Development builds
// tagged stdlog write straight to stdout at LogLevel, which is what unit
// tests want.  Every other combination is disabled.
func NewSubLogger(subsystem string,
	genSubLogger func(string) btclog.Logger) btclog.Logger {

	useGen := Deployment == Production ||
		(Deployment == Development && LoggingType == LogTypeDefault)
	switch {
	case useGen && genSubLogger != nil:
		return genSubLogger(subsystem)

	case Deployment == Development && LoggingType == LogTypeStdOut:
		logger := btclog.NewBackend(os.Stdout).Logger(subsystem)
		level, _ := btclog.LevelFromString(LogLevel)
		logger.SetLevel(level)
		return logger

	default:
		return btclog.Disabled
	}
}
