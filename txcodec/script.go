// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txcodec

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
)

// OutputType describes how an output script is addressed.
type OutputType uint8

const (
	// OutputAddress is a pay to pubkey hash or pay to script hash output.
	OutputAddress OutputType = iota

	// OutputPubKey is a bare pay to pubkey output.
	OutputPubKey

	// OutputScript is any other script.  It carries no address.
	OutputScript
)

// String returns the output type as a human-readable name.
func (t OutputType) String() string {
	switch t {
	case OutputAddress:
		return "address"
	case OutputPubKey:
		return "pubkey"
	case OutputScript:
		return "script"
	default:
		return fmt.Sprintf("Unknown OutputType (%d)", uint8(t))
	}
}

// noSignature marks a missing signature inside the partial serialization.
const noSignature = 0xff

// ClassifyScript decodes an output script.  Unrecognized scripts are reported
// as OutputScript with a nil address.
func ClassifyScript(pkScript []byte,
	params *chaincfg.Params) (OutputType, btcutil.Address) {

	class, addrs, _, err := txscript.ExtractPkScriptAddrs(pkScript, params)
	if err != nil || len(addrs) != 1 {
		return OutputScript, nil
	}

	switch class {
	case txscript.PubKeyTy:
		return OutputPubKey, addrs[0]
	case txscript.PubKeyHashTy, txscript.ScriptHashTy:
		return OutputAddress, addrs[0]
	default:
		return OutputScript, nil
	}
}

// scriptOp is a single decoded script instruction.
type scriptOp struct {
	opcode byte
	data   []byte
}

// isPush reports whether the instruction only pushes data.  OP_0 counts as an
// empty push.
func (op scriptOp) isPush() bool {
	return op.opcode <= txscript.OP_PUSHDATA4
}

// decodeScript splits a script into instructions.
func decodeScript(script []byte) ([]scriptOp, error) {
	var ops []scriptOp
	tokenizer := txscript.MakeScriptTokenizer(0, script)
	for tokenizer.Next() {
		ops = append(ops, scriptOp{
			opcode: tokenizer.Opcode(),
			data:   tokenizer.Data(),
		})
	}
	if err := tokenizer.Err(); err != nil {
		return nil, err
	}
	return ops, nil
}

// pushData returns the canonical push of data.
func pushData(data []byte) []byte {
	script, err := txscript.NewScriptBuilder().AddData(data).Script()
	if err != nil {
		// Only elements above the push size limit fail, which none
		// of our pushes can reach.
		panic(err)
	}
	return script
}

// multisigScript returns the m of n redeem script over the passed keys.  The
// keys are pushed as-is so that extended keys produce the placeholder form.
func multisigScript(pubKeys [][]byte, m int) ([]byte, error) {
	n := len(pubKeys)
	if m < 1 || m > n || n > 15 {
		return nil, fmt.Errorf("invalid multisig parameters m=%d n=%d",
			m, n)
	}

	builder := txscript.NewScriptBuilder().AddInt64(int64(m))
	for _, key := range pubKeys {
		builder.AddData(key)
	}
	builder.AddInt64(int64(n)).AddOp(txscript.OP_CHECKMULTISIG)
	return builder.Script()
}

var errNotMultisig = errors.New("redeem script is not a multisig script")

// parseMultisig decodes an m of n redeem script.  The re-encoding has to match
// the input exactly, otherwise the script is rejected.
func parseMultisig(redeemScript []byte) (int, [][]byte, error) {
	ops, err := decodeScript(redeemScript)
	if err != nil || len(ops) < 4 {
		return 0, nil, errNotMultisig
	}

	m := int(ops[0].opcode) - int(txscript.OP_1) + 1
	n := int(ops[len(ops)-2].opcode) - int(txscript.OP_1) + 1
	if m < 1 || n < 1 || m > 16 || n > 16 || len(ops) != n+3 {
		return 0, nil, errNotMultisig
	}
	if ops[len(ops)-1].opcode != txscript.OP_CHECKMULTISIG {
		return 0, nil, errNotMultisig
	}

	xPubKeys := make([][]byte, 0, n)
	for _, op := range ops[1 : len(ops)-2] {
		if !op.isPush() {
			return 0, nil, errNotMultisig
		}
		xPubKeys = append(xPubKeys, op.data)
	}

	script, err := multisigScript(xPubKeys, m)
	if err != nil || !bytes.Equal(script, redeemScript) {
		return 0, nil, errNotMultisig
	}
	return m, xPubKeys, nil
}

// parseScriptSig fills in the kind, keys and signatures of a non-coinbase
// input from its signature script.  Scripts that match none of the known
// templates leave the input as KindUnknown.
func parseScriptSig(in *TxIn, params *chaincfg.Params) {
	script := in.ScriptSig
	ops, err := decodeScript(script)
	if err != nil {
		log.Debugf("Cannot find address in input script %x: %v",
			script, err)
		return
	}

	switch {
	// Pay to pubkey spends push a lone signature.
	case len(ops) == 1 && ops[0].isPush():
		sig := ops[0].data
		if len(sig) == 0 || sig[0] == 0 {
			break
		}
		in.Kind = KindP2PK
		in.Signatures = [][]byte{sig}
		in.NumSig = 1
		return

	// Pay to pubkey hash spends push a signature and then the public
	// key.
	case len(ops) == 2 && ops[0].isPush() && ops[1].isPush():
		xPubKey := ops[1].data
		pubKey, addr, err := xPubKeyToAddress(xPubKey, params)
		if err != nil {
			log.Debugf("Cannot find address in input script "+
				"(p2pkh?) %x: %v", script, err)
			return
		}
		in.Kind = KindP2PKH
		in.Signatures = parseSigs([][]byte{ops[0].data})
		in.XPubKeys = [][]byte{xPubKey}
		in.PubKeys = [][]byte{pubKey}
		in.NumSig = 1
		in.Address = addr
		return

	// Pay to script hash multisig spends are OP_0, the signatures and the
	// redeem script.
	case len(ops) >= 2 && ops[0].opcode == txscript.OP_0 &&
		allPushes(ops[1:]):

		redeem := ops[len(ops)-1].data
		m, xPubKeys, err := parseMultisig(redeem)
		if err != nil {
			log.Debugf("Cannot find address in input script "+
				"(p2sh?) %x", script)
			return
		}

		pubKeys := make([][]byte, len(xPubKeys))
		for i, x := range xPubKeys {
			pubKeys[i] = safeParsePubKey(x, params)
		}
		sanitized, err := multisigScript(pubKeys, m)
		if err != nil {
			return
		}
		addr, err := btcutil.NewAddressScriptHash(sanitized, params)
		if err != nil {
			return
		}

		sigs := make([][]byte, 0, len(ops)-2)
		for _, op := range ops[1 : len(ops)-1] {
			sigs = append(sigs, op.data)
		}

		in.Kind = KindP2SH
		in.NumSig = m
		in.Signatures = parseSigs(sigs)
		in.XPubKeys = xPubKeys
		in.PubKeys = pubKeys
		in.RedeemScript = sanitized
		in.Address = addr
		return

	// Placeholder for inputs of imported addresses whose key is not
	// known yet.
	case len(ops) == 3 && ops[0].opcode == txscript.OP_INVALIDOPCODE &&
		ops[1].opcode == txscript.OP_0 && ops[2].isPush():

		xPubKey := ops[2].data
		_, addr, err := xPubKeyToAddress(xPubKey, params)
		if err != nil {
			return
		}
		in.Kind = KindAddress
		in.Address = addr
		in.NumSig = 1
		in.XPubKeys = [][]byte{xPubKey}
		in.PubKeys = nil
		in.Signatures = [][]byte{nil}
		return
	}

	log.Debugf("Cannot find address in input script (unknown) %x", script)
}

func allPushes(ops []scriptOp) bool {
	for _, op := range ops {
		if !op.isPush() {
			return false
		}
	}
	return true
}

// parseSigs maps placeholder signatures to nil.
func parseSigs(sigs [][]byte) [][]byte {
	out := make([][]byte, len(sigs))
	for i, sig := range sigs {
		if len(sig) == 1 && sig[0] == noSignature {
			continue
		}
		out[i] = sig
	}
	return out
}

// hexKey is a map key for raw key material.
func hexKey(b []byte) string {
	return hex.EncodeToString(b)
}
