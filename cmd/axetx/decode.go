// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/axerunners/axewallet/txcodec"
	"github.com/btcsuite/btcd/btcutil"
)

// readArg returns arg, or the first line of stdin when arg is "-".
func readArg(arg string) (string, error) {
	if arg != "-" {
		return arg, nil
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// decodeTx prints the contents of a complete or partial transaction.
func decodeTx(_ context.Context, args []string) error {
	s, err := readArg(args[0])
	if err != nil {
		return errContext(err, "cannot read transaction")
	}
	tx, err := txcodec.ParseHex(s, activeNet.Params, false)
	if err != nil {
		return errContext(err, "cannot decode transaction")
	}
	writeTx(os.Stdout, tx)
	return nil
}

func writeTx(w io.Writer, tx *txcodec.Tx) {
	if txid, err := tx.TxID(); err == nil {
		fmt.Fprintf(w, "txid:     %v\n", txid)
	}
	have, need := tx.SignatureCount()
	fmt.Fprintf(w, "version:  %d\n", tx.Version)
	fmt.Fprintf(w, "type:     %v\n", tx.Type)
	fmt.Fprintf(w, "locktime: %d\n", tx.LockTime)
	fmt.Fprintf(w, "signed:   %d/%d\n", have, need)
	if size, err := tx.EstimatedSize(); err == nil {
		fmt.Fprintf(w, "size:     %d bytes (estimated)\n", size)
	}

	fmt.Fprintf(w, "inputs:\n")
	for i, in := range tx.Inputs {
		fmt.Fprintf(w, "  %d %v %v", i, in.Kind, in.PreviousOutPoint)
		if in.Address != nil {
			fmt.Fprintf(w, " %s", in.Address.EncodeAddress())
		}
		if in.Value != 0 {
			fmt.Fprintf(w, " %v", btcutil.Amount(in.Value))
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "outputs:\n")
	for i, out := range tx.Outputs {
		fmt.Fprintf(w, "  %d %v %s\n", i, btcutil.Amount(out.Value),
			out.AddressString())
	}

	if tx.ExtraPayload != nil {
		fmt.Fprintf(w, "payload:  %v %x\n", tx.ExtraPayload.TxType(),
			tx.ExtraPayload.Bytes())
	}
	if tx.InputValue() > 0 {
		fmt.Fprintf(w, "fee:      %v\n", btcutil.Amount(tx.Fee()))
	}
}
