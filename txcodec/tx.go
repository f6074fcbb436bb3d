// Copyright (c) 2015-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txcodec

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"sort"

	"github.com/axerunners/axewallet/netparams"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// partialMagic prefixes the serialization of transactions that still miss
// signatures.  It is followed by a one byte format version.
var partialMagic = []byte("EPTF\xff")

const (
	partialFormatVersion = 0

	// DefaultVersion is the version of transactions built by NewTx.
	DefaultVersion = 2

	// specialTxMinVersion is the lowest version at which the upper half
	// of the version field is read as a special transaction type.
	specialTxMinVersion = 3

	// minInputSize and minOutputSize bound element counts against the
	// remaining input.
	minInputSize  = 32 + 4 + 1 + 4
	minOutputSize = 8 + 1

	maxPayloadSize = 1 << 20
)

// Tx is a decoded transaction that may be partially signed.
type Tx struct {
	// Version is the full signed version of standard transactions and
	// the low 16 bits of special ones.
	Version      int32
	Type         TxType
	Inputs       []*TxIn
	Outputs      []*TxOut
	LockTime     uint32
	ExtraPayload Payload

	// partial is set when the transaction was decoded from, or created
	// for, the partial serialization format.
	partial bool
}

// NewTx creates an unsigned transaction.  Inputs and outputs are put in BIP69
// order unless sorting is disabled.
func NewTx(inputs []*TxIn, outputs []*TxOut, lockTime uint32,
	bip69 bool) *Tx {

	tx := &Tx{
		Version:  DefaultVersion,
		Inputs:   inputs,
		Outputs:  outputs,
		LockTime: lockTime,
		partial:  true,
	}
	if bip69 {
		tx.BIP69Sort(true, true)
	}
	return tx
}

// NewSpecialTx creates an unsigned special transaction carrying payload.
func NewSpecialTx(inputs []*TxIn, outputs []*TxOut, lockTime uint32,
	payload Payload) *Tx {

	tx := NewTx(inputs, outputs, lockTime, true)
	tx.Version = specialTxMinVersion
	tx.Type = payload.TxType()
	tx.ExtraPayload = payload
	return tx
}

// ParseHex decodes a hex encoded transaction.
func ParseHex(s string, params *chaincfg.Params, forceFull bool) (*Tx, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, serError(ErrShortRead, "invalid hex", err)
	}
	return Parse(b, params, forceFull)
}

// Parse decodes a transaction in network or partial format.  Signature
// scripts are only decomposed into keys and signatures on a full parse,
// which partial transactions always get.
func Parse(b []byte, params *chaincfg.Params, forceFull bool) (*Tx, error) {
	partial := false
	if bytes.HasPrefix(b, partialMagic) {
		if len(b) < len(partialMagic)+1 {
			return nil, serError(ErrShortRead,
				"missing partial format version", io.ErrUnexpectedEOF)
		}
		if v := b[len(partialMagic)]; v != partialFormatVersion {
			e := ErrPartialFormat
			e.Description = fmt.Sprintf("unknown tx partial "+
				"serialization format version: %d", v)
			return nil, e
		}
		partial = true
		b = b[len(partialMagic)+1:]
	}

	r := bytes.NewReader(b)
	tx, err := readTx(r, params, forceFull || partial)
	if err != nil {
		return nil, err
	}
	if r.Len() != 0 {
		return nil, ErrExtraJunkAtEnd
	}
	tx.partial = partial

	return tx, nil
}

func readTx(r *bytes.Reader, params *chaincfg.Params, full bool) (*Tx, error) {
	var header uint32
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, serError(ErrShortRead, "reading version", err)
	}

	tx := &Tx{
		Version: int32(header),
		Type:    TxType(header >> 16),
	}
	if tx.Type != TxTypeStandard {
		tx.Version = int32(header & 0xffff)
		if tx.Version < specialTxMinVersion {
			tx.Version = int32(header)
			tx.Type = TxTypeStandard
		}
	}

	numIn, err := readCount(r, minInputSize, "input count")
	if err != nil {
		return nil, err
	}
	tx.Inputs = make([]*TxIn, 0, numIn)
	for i := uint64(0); i < numIn; i++ {
		in, err := readInput(r, params, full)
		if err != nil {
			return nil, err
		}
		tx.Inputs = append(tx.Inputs, in)
	}

	numOut, err := readCount(r, minOutputSize, "output count")
	if err != nil {
		return nil, err
	}
	tx.Outputs = make([]*TxOut, 0, numOut)
	for i := uint64(0); i < numOut; i++ {
		out, err := readOutput(r, params)
		if err != nil {
			return nil, err
		}
		tx.Outputs = append(tx.Outputs, out)
	}

	if err := binary.Read(r, binary.LittleEndian, &tx.LockTime); err != nil {
		return nil, serError(ErrShortRead, "reading lock time", err)
	}

	if tx.Type != TxTypeStandard {
		data, err := readVarBytes(r, "extra payload")
		if err != nil {
			return nil, err
		}
		tx.ExtraPayload, err = decodePayload(tx.Type, data)
		if err != nil {
			return nil, err
		}
	}

	return tx, nil
}

func readInput(r *bytes.Reader, params *chaincfg.Params,
	full bool) (*TxIn, error) {

	in := &TxIn{}
	if _, err := io.ReadFull(r, in.PreviousOutPoint.Hash[:]); err != nil {
		return nil, serError(ErrShortRead, "reading prevout hash", err)
	}
	err := binary.Read(r, binary.LittleEndian, &in.PreviousOutPoint.Index)
	if err != nil {
		return nil, serError(ErrShortRead, "reading prevout index", err)
	}
	in.ScriptSig, err = readVarBytes(r, "signature script")
	if err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.LittleEndian, &in.Sequence); err != nil {
		return nil, serError(ErrShortRead, "reading sequence", err)
	}

	in.Kind = KindUnknown
	if isNullOutPoint(&in.PreviousOutPoint.Hash) {
		in.Kind = KindCoinbase
	}
	if full && in.Kind != KindCoinbase && len(in.ScriptSig) > 0 {
		parseScriptSig(in, params)
	}

	return in, nil
}

func readOutput(r *bytes.Reader, params *chaincfg.Params) (*TxOut, error) {
	var value int64
	if err := binary.Read(r, binary.LittleEndian, &value); err != nil {
		return nil, serError(ErrShortRead, "reading output value", err)
	}
	if value < 0 {
		e := ErrOutputValue
		e.Description = "invalid output amount (negative)"
		return nil, e
	}
	if value > netparams.MaxSupply {
		e := ErrOutputValue
		e.Description = "invalid output amount (too large)"
		return nil, e
	}

	pkScript, err := readVarBytes(r, "output script")
	if err != nil {
		return nil, err
	}
	return NewScriptTxOut(pkScript, value, params), nil
}

// readCount reads a compact size element count and checks that the remaining
// input could hold that many elements of at least minSize bytes.
func readCount(r *bytes.Reader, minSize int, field string) (uint64, error) {
	n, err := wire.ReadVarInt(r, 0)
	if err != nil {
		return 0, serError(ErrShortRead, "reading "+field, err)
	}
	if n > uint64(r.Len()/minSize) {
		return 0, serError(ErrOversizedField, fmt.Sprintf("%s %d "+
			"exceeds remaining %d bytes", field, n, r.Len()), nil)
	}
	return n, nil
}

// readVarBytes reads a compact size prefixed byte string.  Empty strings are
// returned as a non-nil slice.
func readVarBytes(r *bytes.Reader, field string) ([]byte, error) {
	n, err := wire.ReadVarInt(r, 0)
	if err != nil {
		return nil, serError(ErrShortRead, "reading "+field+" length",
			err)
	}
	if n > uint64(r.Len()) || n > maxPayloadSize {
		return nil, serError(ErrOversizedField, fmt.Sprintf("%s length "+
			"%d exceeds remaining %d bytes", field, n, r.Len()), nil)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, serError(ErrShortRead, "reading "+field, err)
	}
	return b, nil
}

// Partial reports whether Serialize would emit the partial format.
func (tx *Tx) Partial() bool {
	return tx.partial && !tx.IsComplete()
}

// Serialize returns the transaction encoding.  Transactions decoded from or
// created for the partial format keep the partial prefix until they are
// complete.
func (tx *Tx) Serialize() ([]byte, error) {
	network, err := tx.serialize(false)
	if err != nil {
		return nil, err
	}
	if !tx.Partial() {
		return network, nil
	}

	b := make([]byte, 0, len(partialMagic)+1+len(network))
	b = append(b, partialMagic...)
	b = append(b, partialFormatVersion)
	return append(b, network...), nil
}

// SerializeNetwork returns the encoding relayed to the network.
func (tx *Tx) SerializeNetwork() ([]byte, error) {
	return tx.serialize(false)
}

// String returns the hex encoded serialization.
func (tx *Tx) String() string {
	b, err := tx.Serialize()
	if err != nil {
		return fmt.Sprintf("<unserializable tx: %v>", err)
	}
	return hex.EncodeToString(b)
}

// serialize writes the network encoding.  With estimate set, every non-final
// signature script is replaced by its size estimate stand-in.
func (tx *Tx) serialize(estimate bool) ([]byte, error) {
	var buf bytes.Buffer
	if err := tx.writeHeader(&buf); err != nil {
		return nil, err
	}

	if err := wire.WriteVarInt(&buf, 0, uint64(len(tx.Inputs))); err != nil {
		return nil, err
	}
	for _, in := range tx.Inputs {
		script, err := in.inputScript(estimate)
		if err != nil {
			return nil, err
		}
		serializeInput(&buf, in, script)
	}

	if err := tx.writeOutputs(&buf, estimate); err != nil {
		return nil, err
	}

	putUint32(&buf, tx.LockTime)
	tx.writePayload(&buf)

	return buf.Bytes(), nil
}

func (tx *Tx) writeHeader(buf *bytes.Buffer) error {
	if tx.Type == TxTypeStandard {
		putUint32(buf, uint32(tx.Version))
		return nil
	}
	if tx.Version < specialTxMinVersion || tx.Version > 0xffff {
		return fmt.Errorf("special tx version %d out of range",
			tx.Version)
	}
	putUint16(buf, uint16(tx.Version))
	putUint16(buf, uint16(tx.Type))
	return nil
}

func (tx *Tx) writeOutputs(buf *bytes.Buffer, estimate bool) error {
	if err := wire.WriteVarInt(buf, 0, uint64(len(tx.Outputs))); err != nil {
		return err
	}
	for _, out := range tx.Outputs {
		if out.IsMax() && !estimate {
			return ErrMaxValueOutput
		}
		serializeOutput(buf, out)
	}
	return nil
}

func (tx *Tx) writePayload(buf *bytes.Buffer) {
	if tx.Type == TxTypeStandard {
		return
	}
	var payload []byte
	if tx.ExtraPayload != nil {
		payload = tx.ExtraPayload.Bytes()
	}
	_ = wire.WriteVarBytes(buf, 0, payload)
}

// TxID returns the transaction hash.  Only complete transactions have one.
func (tx *Tx) TxID() (chainhash.Hash, error) {
	if !tx.IsComplete() {
		return chainhash.Hash{}, ErrIncomplete
	}
	b, err := tx.serialize(false)
	if err != nil {
		return chainhash.Hash{}, err
	}
	return chainhash.DoubleHashH(b), nil
}

// SignatureCount returns the number of present and required signatures over
// all non-coinbase inputs.
func (tx *Tx) SignatureCount() (int, int) {
	var have, need int
	for _, in := range tx.Inputs {
		if in.Kind == KindCoinbase {
			continue
		}
		have += in.signatureCount()
		need += in.NumSig
	}
	return have, need
}

// IsComplete reports whether every input is fully signed.
func (tx *Tx) IsComplete() bool {
	have, need := tx.SignatureCount()
	return have == need
}

// IsFinal reports whether no input opts into replacement or lock time
// semantics through a lowered sequence number.
func (tx *Tx) IsFinal() bool {
	for _, in := range tx.Inputs {
		if in.Sequence < DefaultSequence {
			return false
		}
	}
	return true
}

// IsCoinbase reports whether the transaction is a coinbase.
func (tx *Tx) IsCoinbase() bool {
	return len(tx.Inputs) == 1 && tx.Inputs[0].Kind == KindCoinbase
}

// InputValue sums the known values of the spent outputs.
func (tx *Tx) InputValue() int64 {
	var sum int64
	for _, in := range tx.Inputs {
		sum += in.Value
	}
	return sum
}

// OutputValue sums the output values.
func (tx *Tx) OutputValue() int64 {
	var sum int64
	for _, out := range tx.Outputs {
		sum += out.Value
	}
	return sum
}

// Fee returns the input value not claimed by outputs.
func (tx *Tx) Fee() int64 {
	return tx.InputValue() - tx.OutputValue()
}

// AddInputs appends inputs, keeping the inputs in BIP69 order.
func (tx *Tx) AddInputs(inputs ...*TxIn) {
	tx.Inputs = append(tx.Inputs, inputs...)
	tx.BIP69Sort(true, false)
}

// AddOutputs appends outputs, keeping the outputs in BIP69 order.
func (tx *Tx) AddOutputs(outputs ...*TxOut) {
	tx.Outputs = append(tx.Outputs, outputs...)
	tx.BIP69Sort(false, true)
}

// BIP69Sort orders inputs by spent txid and index and outputs by value and
// script.
func (tx *Tx) BIP69Sort(inputs, outputs bool) {
	if inputs {
		sort.SliceStable(tx.Inputs, func(i, j int) bool {
			a := &tx.Inputs[i].PreviousOutPoint
			b := &tx.Inputs[j].PreviousOutPoint
			if ha, hb := a.Hash.String(), b.Hash.String(); ha != hb {
				return ha < hb
			}
			return a.Index < b.Index
		})
	}
	if outputs {
		sort.SliceStable(tx.Outputs, func(i, j int) bool {
			a, b := tx.Outputs[i], tx.Outputs[j]
			if a.Value != b.Value {
				return a.Value < b.Value
			}
			return bytes.Compare(a.PkScript, b.PkScript) < 0
		})
	}
}

// OutputsTo returns the indexes of the outputs paying to addr.
func (tx *Tx) OutputsTo(addr btcutil.Address) []uint32 {
	var idx []uint32
	for i, out := range tx.Outputs {
		if out.Address != nil &&
			out.Address.EncodeAddress() == addr.EncodeAddress() {

			idx = append(idx, uint32(i))
		}
	}
	return idx
}

// HasAddress reports whether addr is paid by an output or spent by an
// input.
func (tx *Tx) HasAddress(addr btcutil.Address) bool {
	if len(tx.OutputsTo(addr)) > 0 {
		return true
	}
	for _, in := range tx.Inputs {
		if in.Address != nil &&
			in.Address.EncodeAddress() == addr.EncodeAddress() {

			return true
		}
	}
	return false
}

// RemoveSignatures drops all signatures so the transaction can be signed
// again.
func (tx *Tx) RemoveSignatures() {
	for _, in := range tx.Inputs {
		for i := range in.Signatures {
			in.Signatures[i] = nil
		}
		if in.Kind != KindCoinbase && in.Kind != KindUnknown {
			in.ScriptSig = nil
		}
	}
}
