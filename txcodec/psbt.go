// Copyright (c) 2020 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txcodec

import (
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/wire"
)

// MsgTx converts a standard transaction to its wire form.  Signature scripts
// are included for complete inputs and left empty otherwise.
func (tx *Tx) MsgTx() (*wire.MsgTx, error) {
	if tx.Type != TxTypeStandard {
		return nil, ErrNotLegacy
	}

	msgTx := wire.NewMsgTx(tx.Version)
	msgTx.LockTime = tx.LockTime
	for _, in := range tx.Inputs {
		var script []byte
		if in.IsComplete() {
			var err error
			script, err = in.inputScript(false)
			if err != nil {
				return nil, err
			}
		}
		txIn := wire.NewTxIn(&in.PreviousOutPoint, script, nil)
		txIn.Sequence = in.Sequence
		msgTx.AddTxIn(txIn)
	}
	for _, out := range tx.Outputs {
		if out.IsMax() {
			return nil, ErrMaxValueOutput
		}
		msgTx.AddTxOut(wire.NewTxOut(out.Value, out.PkScript))
	}
	return msgTx, nil
}

// ToPSBT exports the unsigned transaction as a BIP174 packet for external
// signers.  Each input records the redeem script of multisig spends.
func (tx *Tx) ToPSBT() (*psbt.Packet, error) {
	msgTx, err := tx.MsgTx()
	if err != nil {
		return nil, err
	}
	for _, txIn := range msgTx.TxIn {
		txIn.SignatureScript = nil
	}

	packet, err := psbt.NewFromUnsignedTx(msgTx)
	if err != nil {
		return nil, err
	}
	for i, in := range tx.Inputs {
		if in.Kind == KindP2SH {
			packet.Inputs[i].RedeemScript = in.RedeemScript
		}
	}
	return packet, nil
}
