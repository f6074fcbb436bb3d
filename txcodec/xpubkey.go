// Copyright (c) 2019 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txcodec

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// Leading bytes of the key encodings found in partially signed inputs.
const (
	// xPubKeyBIP32 prefixes a serialized extended public key followed by
	// a two element derivation path.
	xPubKeyBIP32 = 0xff

	// xPubKeyOldMPK prefixes an old style 64 byte master public key
	// followed by a two element derivation path.
	xPubKeyOldMPK = 0xfe

	// xPubKeyAddress prefixes the output script of an address whose key
	// is not known.
	xPubKeyAddress = 0xfd

	serializedXKeyLen = 78
	oldMPKLen         = 64
)

var errUnknownXPubKey = errors.New("cannot parse pubkey")

// xPubKeyToAddress resolves a key found in an input script to the public key
// it stands for and the pay to pubkey hash address of that key.  Address
// placeholders resolve to themselves and the address of their script.
func xPubKeyToAddress(xPubKey []byte,
	params *chaincfg.Params) ([]byte, btcutil.Address, error) {

	if len(xPubKey) == 0 {
		return nil, nil, errUnknownXPubKey
	}

	if xPubKey[0] == xPubKeyAddress {
		_, addr := ClassifyScript(xPubKey[1:], params)
		if addr == nil {
			return nil, nil, fmt.Errorf("no address in placeholder "+
				"script %x", xPubKey[1:])
		}
		return xPubKey, addr, nil
	}

	pubKey, err := xPubKeyToPubKey(xPubKey)
	if err != nil {
		return nil, nil, err
	}
	addr, err := btcutil.NewAddressPubKeyHash(
		btcutil.Hash160(pubKey), params,
	)
	if err != nil {
		return nil, nil, err
	}
	return pubKey, addr, nil
}

// xPubKeyToPubKey returns the serialized public key an encoded key stands
// for.
func xPubKeyToPubKey(xPubKey []byte) ([]byte, error) {
	if len(xPubKey) == 0 {
		return nil, errUnknownXPubKey
	}

	switch xPubKey[0] {
	case 0x02, 0x03, 0x04:
		if _, err := btcec.ParsePubKey(xPubKey); err != nil {
			return nil, err
		}
		return xPubKey, nil

	case xPubKeyBIP32:
		return bip32PubKey(xPubKey[1:])

	case xPubKeyOldMPK:
		return oldMPKPubKey(xPubKey[1:])

	case xPubKeyAddress:
		return xPubKey, nil
	}

	return nil, fmt.Errorf("%w: prefix %02x", errUnknownXPubKey, xPubKey[0])
}

// safeParsePubKey returns the resolved public key, or the encoded key itself
// when it cannot be resolved.
func safeParsePubKey(xPubKey []byte, params *chaincfg.Params) []byte {
	pubKey, err := xPubKeyToPubKey(xPubKey)
	if err != nil {
		return xPubKey
	}
	return pubKey
}

// derivationPath decodes the trailing derivation indexes of an extended key
// encoding.  Indexes are two byte little endian values, with 0xffff escaping a
// four byte index.
func derivationPath(b []byte, width int) ([]uint32, error) {
	var path []uint32
	for len(b) > 0 {
		if len(b) < width {
			return nil, errUnknownXPubKey
		}

		var n uint32
		if width == 2 {
			n = uint32(binary.LittleEndian.Uint16(b))
			b = b[2:]
			if n == 0xffff {
				if len(b) < 4 {
					return nil, errUnknownXPubKey
				}
				n = binary.LittleEndian.Uint32(b)
				b = b[4:]
			}
		} else {
			n = binary.LittleEndian.Uint32(b)
			b = b[4:]
		}
		path = append(path, n)
	}
	if len(path) != 2 {
		return nil, fmt.Errorf("expected 2 derivation indexes, got %d",
			len(path))
	}
	return path, nil
}

// bip32PubKey derives the compressed child key of an extended public key.
func bip32PubKey(b []byte) ([]byte, error) {
	if len(b) < serializedXKeyLen {
		return nil, errUnknownXPubKey
	}
	path, err := derivationPath(b[serializedXKeyLen:], 2)
	if err != nil {
		return nil, err
	}

	xkey := b[:serializedXKeyLen]
	key, err := hdkeychain.NewKeyFromString(
		base58.CheckEncode(xkey[1:], xkey[0]),
	)
	if err != nil {
		return nil, err
	}
	for _, index := range path {
		key, err = key.Derive(index)
		if err != nil {
			return nil, err
		}
	}

	pub, err := key.ECPubKey()
	if err != nil {
		return nil, err
	}
	return pub.SerializeCompressed(), nil
}

// oldMPKPubKey derives the uncompressed key of an old style master public key
// as mpk + sha256d("n:change:" || mpk) * G.
func oldMPKPubKey(b []byte) ([]byte, error) {
	if len(b) < oldMPKLen {
		return nil, errUnknownXPubKey
	}
	path, err := derivationPath(b[oldMPKLen:], 4)
	if err != nil {
		return nil, err
	}
	forChange, n := path[0], path[1]
	mpk := b[:oldMPKLen]

	master, err := btcec.ParsePubKey(append([]byte{0x04}, mpk...))
	if err != nil {
		return nil, err
	}

	seq := append([]byte(fmt.Sprintf("%d:%d:", n, forChange)), mpk...)
	var z secp256k1.ModNScalar
	z.SetByteSlice(chainhash.DoubleHashB(seq))

	var offset, base, sum secp256k1.JacobianPoint
	secp256k1.ScalarBaseMultNonConst(&z, &offset)
	master.AsJacobian(&base)
	secp256k1.AddNonConst(&base, &offset, &sum)
	sum.ToAffine()

	pub := secp256k1.NewPublicKey(&sum.X, &sum.Y)
	return pub.SerializeUncompressed(), nil
}
