// Copyright (c) 2015 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package zero clears key material held in memory.
package zero

// Bytes sets all bytes in the passed slice to zero.  This is used to
// explicitly clear private key secrets and WIF payloads once they were
// turned into keys.
func Bytes(b []byte) {
	clear(b)
}

