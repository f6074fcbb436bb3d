// Copyright (c) 2015-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txcodec

import (
	"bytes"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// MaxValue is the output value sentinel meaning "send everything that is
// left".  It must be replaced before the transaction is serialized.
const MaxValue int64 = -1

// TxOut is a transaction output.
type TxOut struct {
	Type     OutputType
	Value    int64
	PkScript []byte

	// Address is the destination of address and pubkey outputs, nil for
	// raw scripts.  Pubkey outputs carry a *btcutil.AddressPubKey.
	Address btcutil.Address
}

// NewTxOut returns an output paying value to addr.
func NewTxOut(addr btcutil.Address, value int64) (*TxOut, error) {
	pkScript, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, err
	}

	typ := OutputAddress
	if _, ok := addr.(*btcutil.AddressPubKey); ok {
		typ = OutputPubKey
	}
	return &TxOut{
		Type:     typ,
		Value:    value,
		PkScript: pkScript,
		Address:  addr,
	}, nil
}

// NewScriptTxOut returns an output paying value to an arbitrary script.
func NewScriptTxOut(pkScript []byte, value int64,
	params *chaincfg.Params) *TxOut {

	typ, addr := ClassifyScript(pkScript, params)
	return &TxOut{
		Type:     typ,
		Value:    value,
		PkScript: pkScript,
		Address:  addr,
	}
}

// IsMax reports whether the output still carries the MaxValue sentinel.
func (o *TxOut) IsMax() bool {
	return o.Value == MaxValue
}

// AddressString returns the encoded destination, the hex key of pubkey
// outputs, or the hex script of anything else.
func (o *TxOut) AddressString() string {
	switch {
	case o.Type == OutputPubKey && o.Address != nil:
		return "PUBKEY " + o.Address.String()
	case o.Address != nil:
		return o.Address.EncodeAddress()
	default:
		return "SCRIPT " + hexKey(o.PkScript)
	}
}

// serializeOutput appends the wire encoding of the output.
func serializeOutput(buf *bytes.Buffer, o *TxOut) {
	putUint64(buf, uint64(o.Value))
	_ = wire.WriteVarBytes(buf, 0, o.PkScript)
}

// EstimatedOutputSize returns the serialized size of an output paying to
// addr.
func EstimatedOutputSize(addr btcutil.Address) (int, error) {
	pkScript, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return 0, err
	}

	// 8 byte value, 1 byte script length, script.
	return 9 + len(pkScript), nil
}
