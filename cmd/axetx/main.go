// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Command axetx inspects Axe transactions and header files and plans spends
// offline.
//
// Usage:
//
//	axetx [options] decode <hex|->
//	axetx [options] verify-headers <file>
//	axetx [options] plan-spend <utxo file> <address:amount|address:!>...
//	axetx [options] balance <ledger db>
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/axerunners/axewallet/build"
	"github.com/axerunners/axewallet/internal/cfgutil"
	"github.com/axerunners/axewallet/netparams"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcwallet/wallet/txrules"
	"github.com/jessevdk/go-flags"
)

var (
	appDataDir   = btcutil.AppDataDir("axetx", false)
	newlineBytes = []byte{'\n'}
)

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format, args...)
	os.Stderr.Write(newlineBytes)
	os.Exit(1)
}

func errContext(err error, context string) error {
	return fmt.Errorf("%s: %w", context, err)
}

// Flags.
var opts = struct {
	TestNet      bool                    `long:"testnet" description:"Use the Axe test network"`
	DebugLevel   string                  `short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} or a list of <subsystem>=<level> pairs"`
	LogDir       *cfgutil.ExplicitString `long:"logdir" description:"Also write logs to this directory"`
	FeeRate      *cfgutil.AmountFlag     `long:"feerate" description:"Transaction fee per kilobyte"`
	Policy       string                  `long:"policy" description:"Coin selection policy {Privacy, Random}"`
	ChangeAddr   string                  `long:"change" description:"Address receiving change"`
	HeaderDriver string                  `long:"headerdriver" description:"Header database driver {sqlite, pgx}"`
	HeaderDB     string                  `long:"headerdb" description:"Header database DSN, headers are kept in memory when empty"`
	StartHeight  int32                   `long:"start" description:"Height of the first header in the header file"`
}{
	DebugLevel:   "info",
	LogDir:       cfgutil.NewExplicitString(filepath.Join(appDataDir, "logs")),
	FeeRate:      cfgutil.NewAmountFlag(txrules.DefaultRelayFeePerKb),
	Policy:       "Privacy",
	HeaderDriver: "sqlite",
}

// activeNet is the network selected by the flags.
var activeNet = &netparams.MainNetParams

// commands maps each command name to its handler and the number of
// arguments it needs at least.
var commands = map[string]struct {
	minArgs int
	run     func(ctx context.Context, args []string) error
}{
	"decode":         {1, decodeTx},
	"verify-headers": {1, verifyHeaders},
	"plan-spend":     {2, planSpend},
	"balance":        {1, showBalance},
}

func main() {
	args, err := flags.Parse(&opts)
	if err != nil {
		os.Exit(1)
	}
	if opts.TestNet {
		activeNet = &netparams.TestNetParams
	}
	if opts.FeeRate.Amount > 1e8 {
		fatalf("Fee rate `%v/kB` is exceptionally high", opts.FeeRate.Amount)
	}

	if err := initLogging(opts.DebugLevel); err != nil {
		fatalf("%v", err)
	}
	if opts.LogDir.ExplicitlySet() {
		logDir := cfgutil.CleanAndExpandPath(opts.LogDir.Value)
		logFile := filepath.Join(logDir, defaultLogFilename)
		if err := initLogRotator(logFile); err != nil {
			fatalf("%v", err)
		}
	}
	defer logWriter.Close()
	log.Debugf("Running %v build with %v logging on %s", build.Deployment,
		build.LoggingType, activeNet.Name)

	if len(args) == 0 {
		fatalf("A command is required")
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fatalf("Unknown command `%s`", args[0])
	}
	if len(args)-1 < cmd.minArgs {
		fatalf("Command `%s` needs at least %d %s", args[0],
			cmd.minArgs, pickNoun(cmd.minArgs, "argument", "arguments"))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := cmd.run(ctx, args[1:]); err != nil {
		logWriter.Close()
		fatalf("%v", err)
	}
}
