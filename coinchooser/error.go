// Copyright (c) 2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package coinchooser

import "errors"

var (
	// ErrNotEnoughFunds is returned when no combination of the offered
	// coins pays for the outputs and the fee.
	ErrNotEnoughFunds = errors.New("not enough funds")

	// ErrNoChangeAddress is returned when change has nowhere to go: no
	// change address was given and the first input has no address.
	ErrNoChangeAddress = errors.New("no address to send change to")
)
