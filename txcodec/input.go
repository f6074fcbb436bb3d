// Copyright (c) 2015-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txcodec

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// InputKind tags the shape of an input's signature script.
type InputKind uint8

const (
	// KindUnknown inputs carry a script that matches no known template.
	// The raw script is preserved.
	KindUnknown InputKind = iota

	// KindCoinbase inputs spend the null outpoint.
	KindCoinbase

	// KindP2PKH inputs spend a pay to pubkey hash output.
	KindP2PKH

	// KindP2SH inputs spend an m of n multisig pay to script hash output.
	KindP2SH

	// KindP2PK inputs spend a bare pay to pubkey output.
	KindP2PK

	// KindAddress inputs are placeholders for imported addresses whose
	// public key is not yet known.
	KindAddress
)

var inputKindStrings = map[InputKind]string{
	KindUnknown:  "unknown",
	KindCoinbase: "coinbase",
	KindP2PKH:    "p2pkh",
	KindP2SH:     "p2sh",
	KindP2PK:     "p2pk",
	KindAddress:  "address",
}

// String returns the kind as a human-readable name.
func (k InputKind) String() string {
	if s, ok := inputKindStrings[k]; ok {
		return s
	}
	return fmt.Sprintf("Unknown InputKind (%d)", uint8(k))
}

// DefaultSequence is the sequence number of inputs created by the wallet.
const DefaultSequence = wire.MaxTxInSequenceNum - 1

// Size estimates for signature material.
const (
	estimatedSigSize       = 0x48
	compressedPubKeySize   = 0x21
	uncompressedPubKeySize = 0x41
)

// TxIn is a transaction input.  Which fields are meaningful depends on Kind.
type TxIn struct {
	Kind             InputKind
	PreviousOutPoint wire.OutPoint
	Sequence         uint32

	// ScriptSig is the saved signature script.  It is used as-is for
	// coinbase and unknown inputs, and for complete inputs of the other
	// kinds.  A nil script forces it to be rebuilt from the signatures.
	ScriptSig []byte

	// XPubKeys are the keys as they appear in the script, possibly in an
	// extended encoding.  PubKeys are the resolved keys in signing order.
	// When PubKeys is nil it is derived from XPubKeys and both lists are
	// sorted by resolved key.
	XPubKeys [][]byte
	PubKeys  [][]byte

	// Signatures holds one slot per signer.  A nil slot is a missing
	// signature.
	Signatures [][]byte
	NumSig     int

	RedeemScript   []byte
	PreimageScript []byte
	Address        btcutil.Address

	// Value is the amount of the spent output when known.
	Value int64
}

// NewTxIn returns a single key pay to pubkey hash input awaiting its
// signature.
func NewTxIn(prevOut wire.OutPoint, pubKey []byte, addr btcutil.Address,
	value int64) *TxIn {

	return &TxIn{
		Kind:             KindP2PKH,
		PreviousOutPoint: prevOut,
		Sequence:         DefaultSequence,
		XPubKeys:         [][]byte{pubKey},
		Signatures:       [][]byte{nil},
		NumSig:           1,
		Address:          addr,
		Value:            value,
	}
}

// NewAddressTxIn returns a placeholder input for an address whose key is
// not known to the wallet.
func NewAddressTxIn(prevOut wire.OutPoint, addr btcutil.Address,
	value int64) (*TxIn, error) {

	script, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, err
	}
	xPubKey := append([]byte{xPubKeyAddress}, script...)

	return &TxIn{
		Kind:             KindAddress,
		PreviousOutPoint: prevOut,
		Sequence:         DefaultSequence,
		XPubKeys:         [][]byte{xPubKey},
		Signatures:       [][]byte{nil},
		NumSig:           1,
		Address:          addr,
		Value:            value,
	}, nil
}

// IsCoinbase reports whether the input spends the null outpoint.
func (in *TxIn) IsCoinbase() bool {
	return in.Kind == KindCoinbase
}

// OutPointString returns the "txid:n" key of the spent output.
func (in *TxIn) OutPointString() string {
	return in.PreviousOutPoint.String()
}

// sortedPubKeys returns the resolved and encoded keys in signing order,
// deriving and sorting them on first use.
func (in *TxIn) sortedPubKeys() ([][]byte, [][]byte) {
	if in.Kind == KindCoinbase {
		return nil, nil
	}
	if in.PubKeys != nil {
		return in.PubKeys, in.XPubKeys
	}

	type pair struct{ pub, x []byte }
	pairs := make([]pair, len(in.XPubKeys))
	for i, x := range in.XPubKeys {
		pub, err := xPubKeyToPubKey(x)
		if err != nil {
			pub = x
		}
		pairs[i] = pair{pub, x}
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		if c := bytes.Compare(pairs[i].pub, pairs[j].pub); c != 0 {
			return c < 0
		}
		return bytes.Compare(pairs[i].x, pairs[j].x) < 0
	})

	in.PubKeys = make([][]byte, len(pairs))
	in.XPubKeys = make([][]byte, len(pairs))
	for i, p := range pairs {
		in.PubKeys[i] = p.pub
		in.XPubKeys[i] = p.x
	}
	return in.PubKeys, in.XPubKeys
}

// signatureCount returns the number of present signatures.
func (in *TxIn) signatureCount() int {
	n := 0
	for _, sig := range in.Signatures {
		if sig != nil {
			n++
		}
	}
	return n
}

// IsComplete reports whether the input carries all required signatures.
func (in *TxIn) IsComplete() bool {
	if in.Kind == KindCoinbase || in.NumSig == 0 {
		return true
	}
	return in.signatureCount() == in.NumSig
}

// estimatePubKeySize guesses the serialized size of the input's keys.
func (in *TxIn) estimatePubKeySize() int {
	var key []byte
	switch {
	case len(in.PubKeys) > 0:
		key = in.PubKeys[0]
	case len(in.XPubKeys) > 0:
		key = in.XPubKeys[0]
	}
	if len(key) > 0 && (key[0] == 0x04 || key[0] == xPubKeyOldMPK) {
		return uncompressedPubKeySize
	}
	return compressedPubKeySize
}

// sigList returns the keys and signature pushes used to build the script.
func (in *TxIn) sigList(estimate bool) ([][]byte, [][]byte) {
	if in.Kind == KindCoinbase {
		return nil, nil
	}

	if estimate {
		pkSize := in.estimatePubKeySize()
		numKeys := len(in.XPubKeys)
		if numKeys == 0 {
			numKeys = 1
		}
		pks := make([][]byte, numKeys)
		for i := range pks {
			pks[i] = make([]byte, pkSize)
		}
		sigs := make([][]byte, in.NumSig)
		for i := range sigs {
			sigs[i] = make([]byte, estimatedSigSize)
		}
		return pks, sigs
	}

	pubKeys, xPubKeys := in.sortedPubKeys()
	if in.signatureCount() == in.NumSig {
		sigs := make([][]byte, 0, in.NumSig)
		for _, sig := range in.Signatures {
			if sig != nil {
				sigs = append(sigs, sig)
			}
		}
		return pubKeys, sigs
	}

	sigs := make([][]byte, len(in.Signatures))
	for i, sig := range in.Signatures {
		if sig == nil {
			sig = []byte{noSignature}
		}
		sigs[i] = sig
	}
	return xPubKeys, sigs
}

// inputScript builds the signature script of the input.  With estimate set,
// signatures and keys are replaced by zero filled stand-ins of typical size.
func (in *TxIn) inputScript(estimate bool) ([]byte, error) {
	if in.Kind == KindCoinbase {
		return in.ScriptSig, nil
	}
	if in.ScriptSig != nil && in.IsComplete() {
		return in.ScriptSig, nil
	}

	pubKeys, sigs := in.sigList(estimate)
	var script []byte
	for _, sig := range sigs {
		script = append(script, pushData(sig)...)
	}

	// Only pay to pubkey hash spends can be told from an address, so a
	// placeholder for anything else is estimated by its signatures alone.
	kind := in.Kind
	if kind == KindAddress && estimate {
		if _, ok := in.Address.(*btcutil.AddressPubKeyHash); !ok {
			return script, nil
		}
		kind = KindP2PKH
	}

	switch kind {
	case KindP2PK:

	case KindP2SH:
		redeem, err := multisigScript(pubKeys, in.NumSig)
		if err != nil {
			return nil, err
		}
		script = append([]byte{txscript.OP_0}, script...)
		script = append(script, pushData(redeem)...)

	case KindP2PKH:
		if len(pubKeys) == 0 {
			return nil, fmt.Errorf("p2pkh input %v has no key",
				in.PreviousOutPoint)
		}
		script = append(script, pushData(pubKeys[0])...)

	case KindAddress:
		if len(pubKeys) == 0 {
			return nil, fmt.Errorf("address input %v has no key",
				in.PreviousOutPoint)
		}
		script = []byte{txscript.OP_INVALIDOPCODE, txscript.OP_0}
		script = append(script, pushData(pubKeys[0])...)

	case KindUnknown:
		return in.ScriptSig, nil
	}

	return script, nil
}

// preimageScript returns the script committed to when signing the input.
func (in *TxIn) preimageScript() ([]byte, error) {
	if in.PreimageScript != nil {
		return in.PreimageScript, nil
	}

	pubKeys, _ := in.sortedPubKeys()
	switch in.Kind {
	case KindP2PKH:
		if in.Address == nil {
			return nil, fmt.Errorf("p2pkh input %v has no address",
				in.PreviousOutPoint)
		}
		return txscript.PayToAddrScript(in.Address)

	case KindP2SH:
		return multisigScript(pubKeys, in.NumSig)

	case KindP2PK:
		if len(pubKeys) == 0 {
			return nil, fmt.Errorf("p2pk input %v has no key",
				in.PreviousOutPoint)
		}
		return txscript.NewScriptBuilder().AddData(pubKeys[0]).
			AddOp(txscript.OP_CHECKSIG).Script()
	}

	return nil, fmt.Errorf("cannot sign input of kind %v", in.Kind)
}

// serializeInput appends the wire encoding of the input with the passed
// signature script.
func serializeInput(buf *bytes.Buffer, in *TxIn, script []byte) {
	buf.Write(in.PreviousOutPoint.Hash[:])
	putUint32(buf, in.PreviousOutPoint.Index)
	_ = wire.WriteVarBytes(buf, 0, script)
	putUint32(buf, in.Sequence)
}

// isNullOutPoint reports whether hash is all zeroes.
func isNullOutPoint(hash *chainhash.Hash) bool {
	return *hash == chainhash.Hash{}
}
