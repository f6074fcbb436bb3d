// Copyright (c) 2019 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txcodec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// TxType is the DIP2 special transaction type carried in the upper 16 bits of
// the version field.
type TxType uint16

// Special transaction types understood by the network.
const (
	TxTypeStandard          TxType = 0
	TxTypeProRegTx          TxType = 1
	TxTypeProUpServTx       TxType = 2
	TxTypeProUpRegTx        TxType = 3
	TxTypeProUpRevTx        TxType = 4
	TxTypeCbTx              TxType = 5
	TxTypeSubTxRegister     TxType = 8
	TxTypeSubTxTopup        TxType = 9
	TxTypeSubTxResetKey     TxType = 10
	TxTypeSubTxCloseAccount TxType = 11
)

var txTypeStrings = map[TxType]string{
	TxTypeStandard:          "Standard",
	TxTypeProRegTx:          "ProRegTx",
	TxTypeProUpServTx:       "ProUpServTx",
	TxTypeProUpRegTx:        "ProUpRegTx",
	TxTypeProUpRevTx:        "ProUpRevTx",
	TxTypeCbTx:              "CbTx",
	TxTypeSubTxRegister:     "SubTxRegister",
	TxTypeSubTxTopup:        "SubTxTopup",
	TxTypeSubTxResetKey:     "SubTxResetKey",
	TxTypeSubTxCloseAccount: "SubTxCloseAccount",
}

// String returns the name of the transaction type.
func (t TxType) String() string {
	if s, ok := txTypeStrings[t]; ok {
		return s
	}
	return fmt.Sprintf("Unknown TxType (%d)", uint16(t))
}

// Payload is the extra data appended to a special transaction after the lock
// time.
type Payload interface {
	// TxType returns the special transaction type the payload belongs to.
	TxType() TxType

	// Bytes returns the payload serialization without the length prefix.
	Bytes() []byte
}

// RawPayload holds a payload this package does not decode.  It is carried
// byte for byte so that re-serialization is exact.
type RawPayload struct {
	Type TxType
	Data []byte
}

// TxType returns the transaction type of the payload.
func (p *RawPayload) TxType() TxType { return p.Type }

// Bytes returns the raw payload.
func (p *RawPayload) Bytes() []byte { return p.Data }

// CbTx is the DIP4 coinbase payload committing to the masternode list.
type CbTx struct {
	Version           uint16
	Height            uint32
	MerkleRootMNList  chainhash.Hash
	MerkleRootQuorums chainhash.Hash
}

// TxType returns TxTypeCbTx.
func (p *CbTx) TxType() TxType { return TxTypeCbTx }

// Bytes serializes the payload.  The quorum merkle root is only present from
// payload version 2 onwards.
func (p *CbTx) Bytes() []byte {
	var buf bytes.Buffer
	putUint16(&buf, p.Version)
	putUint32(&buf, p.Height)
	buf.Write(p.MerkleRootMNList[:])
	if p.Version > 1 {
		buf.Write(p.MerkleRootQuorums[:])
	}
	return buf.Bytes()
}

// SubTxTopup is the DIP5 payload funding a registered user.
type SubTxTopup struct {
	Version   uint16
	RegTxHash chainhash.Hash
}

// TxType returns TxTypeSubTxTopup.
func (p *SubTxTopup) TxType() TxType { return TxTypeSubTxTopup }

// Bytes serializes the payload.
func (p *SubTxTopup) Bytes() []byte {
	var buf bytes.Buffer
	putUint16(&buf, p.Version)
	buf.Write(p.RegTxHash[:])
	return buf.Bytes()
}

// SubTxRegister is the DIP5 payload registering a blockchain user.
type SubTxRegister struct {
	Version    uint16
	UserName   []byte
	PubKey     [48]byte
	PayloadSig [96]byte
}

// TxType returns TxTypeSubTxRegister.
func (p *SubTxRegister) TxType() TxType { return TxTypeSubTxRegister }

// Bytes serializes the payload.
func (p *SubTxRegister) Bytes() []byte {
	var buf bytes.Buffer
	putUint16(&buf, p.Version)
	_ = wire.WriteVarBytes(&buf, 0, p.UserName)
	buf.Write(p.PubKey[:])
	buf.Write(p.PayloadSig[:])
	return buf.Bytes()
}

// ProUpRevTx is the DIP3 payload revoking a masternode registration.
type ProUpRevTx struct {
	Version    uint16
	ProTxHash  chainhash.Hash
	Reason     uint16
	InputsHash chainhash.Hash
	PayloadSig [96]byte
}

// TxType returns TxTypeProUpRevTx.
func (p *ProUpRevTx) TxType() TxType { return TxTypeProUpRevTx }

// Bytes serializes the payload.
func (p *ProUpRevTx) Bytes() []byte {
	var buf bytes.Buffer
	putUint16(&buf, p.Version)
	buf.Write(p.ProTxHash[:])
	putUint16(&buf, p.Reason)
	buf.Write(p.InputsHash[:])
	buf.Write(p.PayloadSig[:])
	return buf.Bytes()
}

// UpdateInputsHash commits the payload to the outpoints spent by tx.
func (p *ProUpRevTx) UpdateInputsHash(tx *Tx) {
	var buf bytes.Buffer
	for _, in := range tx.Inputs {
		buf.Write(in.PreviousOutPoint.Hash[:])
		putUint32(&buf, in.PreviousOutPoint.Index)
	}
	p.InputsHash = chainhash.DoubleHashH(buf.Bytes())
}

// payloadDecoders maps the fully decoded special types to their readers.
var payloadDecoders = map[TxType]func(r io.Reader) (Payload, error){
	TxTypeCbTx: func(r io.Reader) (Payload, error) {
		p := &CbTx{}
		if err := readElements(r, &p.Version, &p.Height,
			p.MerkleRootMNList[:]); err != nil {

			return nil, err
		}
		if p.Version > 1 {
			if _, err := io.ReadFull(r, p.MerkleRootQuorums[:]); err != nil {
				return nil, err
			}
		}
		return p, nil
	},
	TxTypeSubTxTopup: func(r io.Reader) (Payload, error) {
		p := &SubTxTopup{}
		err := readElements(r, &p.Version, p.RegTxHash[:])
		return p, err
	},
	TxTypeSubTxRegister: func(r io.Reader) (Payload, error) {
		p := &SubTxRegister{}
		if err := readElements(r, &p.Version); err != nil {
			return nil, err
		}
		name, err := wire.ReadVarBytes(r, 0, maxPayloadSize, "userName")
		if err != nil {
			return nil, err
		}
		p.UserName = name
		err = readElements(r, p.PubKey[:], p.PayloadSig[:])
		return p, err
	},
	TxTypeProUpRevTx: func(r io.Reader) (Payload, error) {
		p := &ProUpRevTx{}
		err := readElements(r, &p.Version, p.ProTxHash[:], &p.Reason,
			p.InputsHash[:], p.PayloadSig[:])
		return p, err
	},
}

// decodePayload decodes the extra payload of a special transaction.  Types
// without a registered decoder are preserved as a RawPayload.
func decodePayload(t TxType, data []byte) (Payload, error) {
	decode, ok := payloadDecoders[t]
	if !ok {
		return &RawPayload{Type: t, Data: data}, nil
	}

	r := bytes.NewReader(data)
	p, err := decode(r)
	if err != nil {
		return nil, serError(ErrPayloadMismatch,
			fmt.Sprintf("malformed %v payload", t), err)
	}
	if r.Len() != 0 {
		return nil, serError(ErrPayloadMismatch,
			fmt.Sprintf("%d unread bytes in %v payload", r.Len(), t),
			nil)
	}
	return p, nil
}

// readElements reads little endian integers and fixed size byte slices in
// order.
func readElements(r io.Reader, elements ...interface{}) error {
	for _, e := range elements {
		var err error
		switch e := e.(type) {
		case []byte:
			_, err = io.ReadFull(r, e)
		default:
			err = binary.Read(r, binary.LittleEndian, e)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func putUint16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

func putUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func putUint64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}
