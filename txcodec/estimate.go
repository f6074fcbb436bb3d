// Copyright (c) 2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txcodec

import "bytes"

// VirtualSize converts a weight to virtual bytes, rounding up.
func VirtualSize(weight int) int {
	return (weight + 3) / 4
}

// EstimatedTotalSize returns the serialized size of the transaction.  While
// signatures are missing, their size is estimated.
func (tx *Tx) EstimatedTotalSize() (int, error) {
	b, err := tx.serialize(!tx.IsComplete())
	if err != nil {
		return 0, err
	}
	return len(b), nil
}

// EstimatedBaseSize returns the size without witness data.  Axe has no
// witness data so it equals the total size.
func (tx *Tx) EstimatedBaseSize() (int, error) {
	return tx.EstimatedTotalSize()
}

// EstimatedWeight returns the estimated weight of the transaction.
func (tx *Tx) EstimatedWeight() (int, error) {
	total, err := tx.EstimatedTotalSize()
	if err != nil {
		return 0, err
	}
	base, err := tx.EstimatedBaseSize()
	if err != nil {
		return 0, err
	}
	return 3*base + total, nil
}

// EstimatedSize returns the estimated virtual size of the transaction.
func (tx *Tx) EstimatedSize() (int, error) {
	weight, err := tx.EstimatedWeight()
	if err != nil {
		return 0, err
	}
	return VirtualSize(weight), nil
}

// EstimatedInputWeight returns the weight an input adds once signed.
func EstimatedInputWeight(in *TxIn) (int, error) {
	script, err := in.inputScript(true)
	if err != nil {
		return 0, err
	}
	var buf bytes.Buffer
	serializeInput(&buf, in, script)
	return 4 * buf.Len(), nil
}
