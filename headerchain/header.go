// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package headerchain

import (
	"bytes"
	"fmt"

	"github.com/axerunners/axewallet/netparams"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// HashFunc computes the identity of a serialized 80-byte block header.  The
// same hash links a header to its parent and is compared against the
// difficulty target.  The live Axe network uses X11, which callers supply.
type HashFunc func(header []byte) chainhash.Hash

// DoubleSHA256 is the default HashFunc.
func DoubleSHA256(header []byte) chainhash.Hash {
	return chainhash.DoubleHashH(header)
}

// Header is a block header together with the height it claims.
type Header struct {
	wire.BlockHeader

	Height int32
}

// Bytes returns the 80-byte serialization of the header.
func (h *Header) Bytes() []byte {
	return serializeHeader(&h.BlockHeader)
}

func serializeHeader(h *wire.BlockHeader) []byte {
	var buf bytes.Buffer
	buf.Grow(netparams.HeaderSize)

	// Writes to a bytes.Buffer cannot fail.
	_ = h.Serialize(&buf)
	return buf.Bytes()
}

// ParseHeader decodes an 80-byte header and tags it with height.
func ParseHeader(b []byte, height int32) (*Header, error) {
	if len(b) != netparams.HeaderSize {
		str := fmt.Sprintf("invalid header length %d", len(b))
		return nil, headerError(ErrBadChunk, str, nil)
	}

	h := &Header{Height: height}
	if err := h.BlockHeader.Deserialize(bytes.NewReader(b)); err != nil {
		return nil, headerError(ErrBadChunk, "cannot decode header", err)
	}
	return h, nil
}

// ParseChunk decodes a run of concatenated headers, the first of which sits
// at height start.
func ParseChunk(start int32, data []byte) ([]Header, error) {
	if len(data)%netparams.HeaderSize != 0 {
		str := fmt.Sprintf("chunk length %d is not a multiple of %d",
			len(data), netparams.HeaderSize)
		return nil, headerError(ErrBadChunk, str, nil)
	}

	n := len(data) / netparams.HeaderSize
	headers := make([]Header, 0, n)
	for i := 0; i < n; i++ {
		raw := data[i*netparams.HeaderSize : (i+1)*netparams.HeaderSize]
		h, err := ParseHeader(raw, start+int32(i))
		if err != nil {
			return nil, err
		}
		headers = append(headers, *h)
	}
	return headers, nil
}
