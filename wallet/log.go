// Copyright (c) 2015 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"github.com/axerunners/axewallet/build"
	"github.com/axerunners/axewallet/coinchooser"
	"github.com/axerunners/axewallet/ledger"
	"github.com/btcsuite/btclog"
)

// log is a logger that is initialized with no output filters.  This
// means the package will not perform any logging by default until the caller
// requests it.
var log btclog.Logger

// The default amount of logging is none.
func init() {
	log = build.NewSubLogger("WLLT", nil)
}

// DisableLog disables all library log output.  Logging output is disabled
// by default until either UseLogger or SetLogWriter are called.
func DisableLog() {
	UseLogger(btclog.Disabled)
}

// UseLogger uses a specified Logger to output package logging info.
// This should be used in preference to SetLogWriter if the caller is also
// using btclog.  The ledger and coin chooser log through the same logger.
func UseLogger(logger btclog.Logger) {
	log = logger

	ledger.UseLogger(logger)
	coinchooser.UseLogger(logger)
}
