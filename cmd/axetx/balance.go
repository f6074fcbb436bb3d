// Copyright (c) 2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/axerunners/axewallet/internal/cfgutil"
	"github.com/axerunners/axewallet/ledger"
	"github.com/axerunners/axewallet/wallet"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcwallet/walletdb"

	// Register the bolt walletdb driver under name "bdb".
	_ "github.com/btcsuite/btcwallet/walletdb/bdb"
)

const dbTimeout = 10 * time.Second

// heightString describes a mined height or one of the unmined markers.
func heightString(height int32) string {
	switch height {
	case ledger.HeightLocal:
		return "local"
	case ledger.HeightUnconfParent:
		return "unconfirmed parent"
	case ledger.HeightUnconfirmed:
		return "unconfirmed"
	default:
		return fmt.Sprintf("%d", height)
	}
}

// showBalance prints the balance and history stored in a ledger database.
func showBalance(_ context.Context, args []string) error {
	dbPath := cfgutil.CleanAndExpandPath(args[0])
	exists, err := cfgutil.FileExists(dbPath)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("ledger database %s does not exist", dbPath)
	}

	db, err := walletdb.Open("bdb", dbPath, true, dbTimeout)
	if err != nil {
		return errContext(err, "cannot open ledger database")
	}
	defer db.Close()

	store, err := ledger.OpenBoltStore(db, activeNet.Params)
	if err != nil {
		return err
	}
	w, err := wallet.New(wallet.Config{
		Params: activeNet,
		Store:  store,
	})
	if err != nil {
		return err
	}

	bal, err := w.Balance(nil)
	if err != nil {
		return err
	}
	fmt.Printf("confirmed:   %v\n", bal.Confirmed)
	fmt.Printf("unconfirmed: %v\n", bal.Unconfirmed)
	fmt.Printf("immature:    %v\n", bal.Immature)

	history, err := w.History(nil)
	if err != nil {
		return err
	}
	if len(history) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "\ntxid\theight\tdelta\tbalance")
	for _, item := range history {
		delta := item.Delta.UnwrapOr(0)
		balance := item.Balance.UnwrapOr(0)
		deltaStr, balanceStr := "?", "?"
		if item.Delta.IsSome() {
			deltaStr = btcutil.Amount(delta).String()
		}
		if item.Balance.IsSome() {
			balanceStr = btcutil.Amount(balance).String()
		}
		fmt.Fprintf(tw, "%v\t%s\t%s\t%s\n", item.TxID,
			heightString(item.Mined.Height), deltaStr, balanceStr)
	}
	return tw.Flush()
}
