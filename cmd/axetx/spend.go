// Copyright (c) 2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/axerunners/axewallet/coinchooser"
	"github.com/axerunners/axewallet/ledger"
	"github.com/axerunners/axewallet/txcodec"
	"github.com/axerunners/axewallet/wallet"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
)

// parseUtxoLine parses a line of the form "txid:vout address value height".
// The value is in duffs.
func parseUtxoLine(line string) (ledger.Utxo, error) {
	fields := strings.Fields(line)
	if len(fields) != 4 {
		return ledger.Utxo{}, fmt.Errorf("expected 4 fields, got %d",
			len(fields))
	}
	op, err := wire.NewOutPointFromString(fields[0])
	if err != nil {
		return ledger.Utxo{}, err
	}
	addr, err := btcutil.DecodeAddress(fields[1], activeNet.Params)
	if err != nil {
		return ledger.Utxo{}, err
	}
	if !addr.IsForNet(activeNet.Params) {
		return ledger.Utxo{}, fmt.Errorf("address %s is not for %s",
			fields[1], activeNet.Name)
	}
	value, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil || value <= 0 {
		return ledger.Utxo{}, fmt.Errorf("invalid value %q", fields[2])
	}
	height, err := strconv.ParseInt(fields[3], 10, 32)
	if err != nil {
		return ledger.Utxo{}, fmt.Errorf("invalid height %q", fields[3])
	}
	return ledger.Utxo{
		OutPoint: *op,
		Address:  addr.EncodeAddress(),
		Value:    value,
		Height:   int32(height),
	}, nil
}

func readUtxos(path string) ([]ledger.Utxo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var utxos []ledger.Utxo
	scanner := bufio.NewScanner(f)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		u, err := parseUtxoLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		utxos = append(utxos, u)
	}
	return utxos, scanner.Err()
}

// parseOutput parses "address:amount", where an amount of "!" spends
// everything that is left.
func parseOutput(s string) (*txcodec.TxOut, error) {
	i := strings.LastIndexByte(s, ':')
	if i < 0 {
		return nil, fmt.Errorf("output %q is not address:amount", s)
	}
	addr, err := btcutil.DecodeAddress(s[:i], activeNet.Params)
	if err != nil {
		return nil, err
	}
	if s[i+1:] == "!" {
		return txcodec.NewTxOut(addr, txcodec.MaxValue)
	}
	f, err := strconv.ParseFloat(s[i+1:], 64)
	if err != nil {
		return nil, err
	}
	amount, err := btcutil.NewAmount(f)
	if err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, fmt.Errorf("output amount %v is not positive", amount)
	}
	return txcodec.NewTxOut(addr, int64(amount))
}

// planSpend builds an unsigned transaction paying the outputs from the
// coins in a utxo file.  No keys are involved.
func planSpend(_ context.Context, args []string) error {
	coins, err := readUtxos(args[0])
	if err != nil {
		return errContext(err, "cannot read utxos")
	}
	outputs := make([]*txcodec.TxOut, 0, len(args)-1)
	for _, arg := range args[1:] {
		out, err := parseOutput(arg)
		if err != nil {
			return errContext(err, "invalid output")
		}
		outputs = append(outputs, out)
	}

	var changeAddr btcutil.Address
	if opts.ChangeAddr != "" {
		changeAddr, err = btcutil.DecodeAddress(
			opts.ChangeAddr, activeNet.Params,
		)
		if err != nil {
			return errContext(err, "invalid change address")
		}
	}

	w, err := wallet.New(wallet.Config{
		Params: activeNet,
		Chooser: coinchooser.New(coinchooser.Config{
			Policy: coinchooser.PolicyByName(opts.Policy),
		}),
		FeePerKb: opts.FeeRate.Amount,
	})
	if err != nil {
		return err
	}
	for i := range coins {
		addr, _ := btcutil.DecodeAddress(coins[i].Address,
			activeNet.Params)
		if err := w.WatchAddress(addr); err != nil {
			return err
		}
	}

	tx, err := w.MakeUnsignedTransaction(coins, outputs, nil, changeAddr)
	if err != nil {
		return errContext(err, "cannot plan spend")
	}
	log.Infof("Planned spend of %d %s with fee %v", len(tx.Inputs),
		pickNoun(len(tx.Inputs), "coin", "coins"),
		btcutil.Amount(tx.Fee()))

	writeTx(os.Stdout, tx)
	fmt.Println(tx.String())
	return nil
}
