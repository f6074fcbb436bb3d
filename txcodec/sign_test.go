// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txcodec

import (
	"bytes"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
)

// testKey returns a deterministic private key.
func testKey(seed byte) *btcec.PrivateKey {
	b := bytes.Repeat([]byte{seed}, 32)
	priv, _ := btcec.PrivKeyFromBytes(b)
	return priv
}

func testP2PKH(t *testing.T, priv *btcec.PrivateKey) (btcutil.Address,
	[]byte) {

	addr, err := btcutil.NewAddressPubKeyHash(
		btcutil.Hash160(priv.PubKey().SerializeCompressed()), testParams,
	)
	require.NoError(t, err)
	pkScript, err := txscript.PayToAddrScript(addr)
	require.NoError(t, err)
	return addr, pkScript
}

func testOutPoint(b byte, index uint32) wire.OutPoint {
	return wire.OutPoint{Hash: chainhash.Hash{b}, Index: index}
}

// verifyInput runs the script engine over input idx of a complete tx.
func verifyInput(t *testing.T, tx *Tx, idx int, pkScript []byte,
	value int64) {

	t.Helper()

	msgTx, err := tx.MsgTx()
	require.NoError(t, err)

	fetcher := txscript.NewCannedPrevOutputFetcher(pkScript, value)
	vm, err := txscript.NewEngine(
		pkScript, msgTx, idx, txscript.StandardVerifyFlags, nil,
		txscript.NewTxSigHashes(msgTx, fetcher), value, fetcher,
	)
	require.NoError(t, err)
	require.NoError(t, vm.Execute())
}

// reparse serializes tx and parses it back.
func reparse(t *testing.T, tx *Tx) (*Tx, []byte) {
	t.Helper()

	b, err := tx.Serialize()
	require.NoError(t, err)
	parsed, err := Parse(b, testParams, false)
	require.NoError(t, err)

	again, err := parsed.Serialize()
	require.NoError(t, err)
	require.Equal(t, b, again)

	return parsed, b
}

func unsignedP2PKHTx(t *testing.T, priv *btcec.PrivateKey) (*Tx, []byte) {
	addr, pkScript := testP2PKH(t, priv)
	in := NewTxIn(
		testOutPoint(1, 0), priv.PubKey().SerializeCompressed(), addr,
		50_000,
	)

	dest, _ := testP2PKH(t, testKey(0x77))
	out, err := NewTxOut(dest, 40_000)
	require.NoError(t, err)

	return NewTx([]*TxIn{in}, []*TxOut{out}, 0, true), pkScript
}

// TestSignP2PKH signs a pay to pubkey hash spend, passes it through the
// partial format and checks the result with the script engine.
func TestSignP2PKH(t *testing.T) {
	t.Parallel()

	priv := testKey(0x11)
	tx, pkScript := unsignedP2PKHTx(t, priv)
	require.False(t, tx.IsComplete())
	require.True(t, tx.Partial())

	_, err := tx.TxID()
	require.ErrorIs(t, err, ErrIncomplete)

	parsed, b := reparse(t, tx)
	require.True(t, bytes.HasPrefix(b, partialMagic))
	require.Equal(t, KindP2PKH, parsed.Inputs[0].Kind)
	require.Equal(t, [][]byte{nil}, parsed.Inputs[0].Signatures)
	require.Equal(t, tx.Inputs[0].XPubKeys, parsed.Inputs[0].XPubKeys)

	keys := KeyMap{}
	keys.Add(priv)
	require.NoError(t, parsed.Sign(keys))
	require.True(t, parsed.IsComplete())

	signed, err := parsed.Serialize()
	require.NoError(t, err)
	require.False(t, bytes.HasPrefix(signed, partialMagic))

	parsed.Inputs[0].Value = 50_000
	verifyInput(t, parsed, 0, pkScript, 50_000)

	msgTx, err := parsed.MsgTx()
	require.NoError(t, err)
	txid, err := parsed.TxID()
	require.NoError(t, err)
	require.Equal(t, msgTx.TxHash(), txid)
}

// TestUpdateSignatures checks that an external signature lands in the slot
// of the key that produced it.
func TestUpdateSignatures(t *testing.T) {
	t.Parallel()

	priv := testKey(0x12)
	tx, _ := unsignedP2PKHTx(t, priv)
	_, b := reparse(t, tx)

	signer, err := Parse(b, testParams, false)
	require.NoError(t, err)
	keys := KeyMap{}
	keys.Add(priv)
	require.NoError(t, signer.Sign(keys))

	target, err := Parse(b, testParams, false)
	require.NoError(t, err)

	err = target.UpdateSignatures([][]byte{{0x01}, {0x02}})
	require.ErrorIs(t, err, ErrSignatureCount)

	sig := signer.Inputs[0].Signatures[0]
	require.NoError(t, target.UpdateSignatures([][]byte{sig}))
	require.True(t, target.IsComplete())

	want, err := signer.Serialize()
	require.NoError(t, err)
	got, err := target.Serialize()
	require.NoError(t, err)
	require.Equal(t, want, got)
}

// TestSignMultisig partially signs a 2 of 3 multisig spend, completes it
// with a signature merged from another copy and verifies the result.
func TestSignMultisig(t *testing.T) {
	t.Parallel()

	k1, k2, k3 := testKey(0x21), testKey(0x22), testKey(0x23)
	xPubKeys := [][]byte{
		k3.PubKey().SerializeCompressed(),
		k1.PubKey().SerializeCompressed(),
		k2.PubKey().SerializeCompressed(),
	}

	keysIn := &TxIn{Kind: KindP2SH, XPubKeys: xPubKeys}
	sorted, _ := keysIn.sortedPubKeys()
	for i := 1; i < len(sorted); i++ {
		require.Negative(t, bytes.Compare(sorted[i-1], sorted[i]))
	}
	redeem, err := multisigScript(sorted, 2)
	require.NoError(t, err)
	addr, err := btcutil.NewAddressScriptHash(redeem, testParams)
	require.NoError(t, err)
	pkScript, err := txscript.PayToAddrScript(addr)
	require.NoError(t, err)

	in := &TxIn{
		Kind:             KindP2SH,
		PreviousOutPoint: testOutPoint(2, 1),
		Sequence:         DefaultSequence,
		XPubKeys:         xPubKeys,
		Signatures:       make([][]byte, 3),
		NumSig:           2,
		Address:          addr,
		Value:            100_000,
	}
	dest, _ := testP2PKH(t, testKey(0x78))
	out, err := NewTxOut(dest, 90_000)
	require.NoError(t, err)
	tx := NewTx([]*TxIn{in}, []*TxOut{out}, 0, true)

	parsed, b := reparse(t, tx)
	require.Equal(t, KindP2SH, parsed.Inputs[0].Kind)
	require.Equal(t, 2, parsed.Inputs[0].NumSig)
	require.Equal(t, redeem, parsed.Inputs[0].RedeemScript)
	require.Equal(t, addr.EncodeAddress(),
		parsed.Inputs[0].Address.EncodeAddress())

	// First signer.
	keys1 := KeyMap{}
	keys1.Add(k1)
	require.NoError(t, parsed.Sign(keys1))
	have, need := parsed.SignatureCount()
	require.Equal(t, 1, have)
	require.Equal(t, 2, need)

	half, _ := reparse(t, parsed)
	require.Equal(t, 1, half.Inputs[0].signatureCount())

	// Second signer works on its own copy.
	other, err := Parse(b, testParams, false)
	require.NoError(t, err)
	keys3 := KeyMap{}
	keys3.Add(k3)
	require.NoError(t, other.Sign(keys3))

	var sig3 []byte
	for _, sig := range other.Inputs[0].Signatures {
		if sig != nil {
			sig3 = sig
		}
	}
	require.NotNil(t, sig3)

	require.NoError(t, half.UpdateSignatures([][]byte{sig3}))
	require.True(t, half.IsComplete())

	verifyInput(t, half, 0, pkScript, 100_000)
}

// TestAddressPlaceholder checks the placeholder input of imported addresses.
func TestAddressPlaceholder(t *testing.T) {
	t.Parallel()

	addr, _ := testP2PKH(t, testKey(0x31))
	in, err := NewAddressTxIn(testOutPoint(3, 0), addr, 10_000)
	require.NoError(t, err)

	dest, _ := testP2PKH(t, testKey(0x79))
	out, err := NewTxOut(dest, 9_000)
	require.NoError(t, err)
	tx := NewTx([]*TxIn{in}, []*TxOut{out}, 0, true)

	parsed, _ := reparse(t, tx)
	pin := parsed.Inputs[0]
	require.Equal(t, KindAddress, pin.Kind)
	require.Equal(t, addr.EncodeAddress(), pin.Address.EncodeAddress())
	require.Equal(t, []byte{txscript.OP_INVALIDOPCODE, txscript.OP_0},
		pin.ScriptSig[:2])

	// Placeholders of pay to pubkey hash addresses are estimated as a
	// signed pay to pubkey hash spend.
	weight, err := EstimatedInputWeight(pin)
	require.NoError(t, err)
	require.Equal(t, 4*148, weight)
}

// TestEstimatedSize checks the size of an unsigned single input spend.
func TestEstimatedSize(t *testing.T) {
	t.Parallel()

	tx, _ := unsignedP2PKHTx(t, testKey(0x13))

	total, err := tx.EstimatedTotalSize()
	require.NoError(t, err)
	require.Equal(t, 192, total)

	weight, err := tx.EstimatedWeight()
	require.NoError(t, err)
	require.Equal(t, 4*192, weight)

	size, err := tx.EstimatedSize()
	require.NoError(t, err)
	require.Equal(t, 192, size)

	weight, err = EstimatedInputWeight(tx.Inputs[0])
	require.NoError(t, err)
	require.Equal(t, 4*148, weight)

	outSize, err := EstimatedOutputSize(tx.Outputs[0].Address)
	require.NoError(t, err)
	require.Equal(t, 34, outSize)

	// A max output can be estimated but not serialized.
	tx.Outputs[0].Value = MaxValue
	_, err = tx.EstimatedSize()
	require.NoError(t, err)
	_, err = tx.Serialize()
	require.ErrorIs(t, err, ErrMaxValueOutput)
}

// TestCoinbase checks that coinbase inputs are kept verbatim.
func TestCoinbase(t *testing.T) {
	t.Parallel()

	raw := hexToBytes("01000000" + "01" +
		"0000000000000000000000000000000000000000000000000000000000000000" +
		"ffffffff" + "0403aabbcc" + "ffffffff" + "01" +
		"00f2052a01000000" + "1976a914479ed307831d0ac19ebc5f63de7d5f1a430ddb9d88ac" +
		"00000000")

	tx, err := Parse(raw, testParams, true)
	require.NoError(t, err)
	require.True(t, tx.IsCoinbase())
	require.True(t, tx.IsComplete())
	require.Equal(t, OutputAddress, tx.Outputs[0].Type)

	b, err := tx.Serialize()
	require.NoError(t, err)
	require.Equal(t, raw, b)
}

// TestToPSBT checks the export of unsigned standard transactions.
func TestToPSBT(t *testing.T) {
	t.Parallel()

	tx, _ := unsignedP2PKHTx(t, testKey(0x14))
	packet, err := tx.ToPSBT()
	require.NoError(t, err)
	require.Len(t, packet.UnsignedTx.TxIn, 1)
	require.Empty(t, packet.UnsignedTx.TxIn[0].SignatureScript)
	require.Equal(t, tx.Inputs[0].PreviousOutPoint,
		packet.UnsignedTx.TxIn[0].PreviousOutPoint)

	special := NewSpecialTx(nil, nil, 0, &SubTxTopup{Version: 1})
	_, err = special.ToPSBT()
	require.ErrorIs(t, err, ErrNotLegacy)
}
