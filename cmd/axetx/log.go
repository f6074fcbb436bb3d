// Copyright (c) 2013-2015 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"github.com/axerunners/axewallet/build"
	"github.com/axerunners/axewallet/coinchooser"
	"github.com/axerunners/axewallet/headerchain"
	"github.com/axerunners/axewallet/ledger"
	"github.com/axerunners/axewallet/txcodec"
	"github.com/axerunners/axewallet/wallet"
	"github.com/btcsuite/btclog"
)

const (
	defaultLogFilename    = "axetx.log"
	defaultMaxLogFileSize = 10 * 1024
	defaultMaxLogFiles    = 3
)

// logWriter is the writer all subsystem loggers share.  Messages go to
// stdout, and to a rolling file once initLogRotator was called.
var logWriter = build.NewRotatingLogWriter()

// log is the logger of the command itself.
var log btclog.Logger

// subsystemLoggers maps each subsystem identifier to the function handing
// its package the logger.  When adding new subsystems, add them here.
var subsystemLoggers = map[string]func(btclog.Logger){
	"AXTX": func(l btclog.Logger) { log = l },
	"TXCD": txcodec.UseLogger,
	"HDRC": headerchain.UseLogger,
	"LDGR": ledger.UseLogger,
	"CHSR": coinchooser.UseLogger,
	"WLLT": wallet.UseLogger,
}

// subsystemOrder lists the subsystems in the order their loggers are set.
// wallet.UseLogger also replaces the ledger and chooser loggers, so those
// come after it.
var subsystemOrder = []string{"AXTX", "TXCD", "HDRC", "WLLT", "LDGR", "CHSR"}

// initLogging creates a logger for every subsystem and applies the debug
// level specification.
func initLogging(debugLevel string) error {
	for _, subsystemID := range subsystemOrder {
		logger := build.NewSubLogger(subsystemID, logWriter.GenSubLogger)
		logWriter.RegisterSubLogger(subsystemID, logger)
		subsystemLoggers[subsystemID](logger)
	}
	return logWriter.ParseAndSetDebugLevels(debugLevel)
}

// initLogRotator starts writing logs to logFile as well.
func initLogRotator(logFile string) error {
	return logWriter.InitLogRotator(
		logFile, defaultMaxLogFileSize, defaultMaxLogFiles,
	)
}

// pickNoun returns the singular or plural form of a noun depending
// on the count n.
func pickNoun(n int, singular, plural string) string {
	if n == 1 {
		return singular
	}
	return plural
}
