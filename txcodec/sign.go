// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txcodec

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// KeyStore looks up the private key for a public key, given either in its
// resolved form or in the encoding found in the input.
type KeyStore interface {
	PrivKey(pubKey []byte) (*btcec.PrivateKey, bool)
}

// KeyMap is a KeyStore backed by a map from hex encoded key to private key.
type KeyMap map[string]*btcec.PrivateKey

// PrivKey returns the key stored for pubKey.
func (m KeyMap) PrivKey(pubKey []byte) (*btcec.PrivateKey, bool) {
	k, ok := m[hexKey(pubKey)]
	return k, ok
}

// Add stores priv under both serializations of its public key.
func (m KeyMap) Add(priv *btcec.PrivateKey) {
	pub := priv.PubKey()
	m[hexKey(pub.SerializeCompressed())] = priv
	m[hexKey(pub.SerializeUncompressed())] = priv
}

// SerializePreimage returns the data committed to by a SIGHASH_ALL signature
// of input idx.  The signed input carries its spend script, all others carry
// an empty script.
func (tx *Tx) SerializePreimage(idx int) ([]byte, error) {
	if idx < 0 || idx >= len(tx.Inputs) {
		return nil, fmt.Errorf("input index %d out of range", idx)
	}

	var buf bytes.Buffer
	if err := tx.writeHeader(&buf); err != nil {
		return nil, err
	}

	if err := wire.WriteVarInt(&buf, 0, uint64(len(tx.Inputs))); err != nil {
		return nil, err
	}
	for k, in := range tx.Inputs {
		var script []byte
		if k == idx {
			var err error
			script, err = in.preimageScript()
			if err != nil {
				return nil, err
			}
		}
		serializeInput(&buf, in, script)
	}

	if err := tx.writeOutputs(&buf, false); err != nil {
		return nil, err
	}

	putUint32(&buf, tx.LockTime)
	tx.writePayload(&buf)
	putUint32(&buf, uint32(txscript.SigHashAll))

	return buf.Bytes(), nil
}

// sigHash returns the double sha256 of the preimage of input idx.
func (tx *Tx) sigHash(idx int) ([]byte, error) {
	preimage, err := tx.SerializePreimage(idx)
	if err != nil {
		return nil, err
	}
	return chainhash.DoubleHashB(preimage), nil
}

// Sign adds every signature the key store can produce.  Inputs that are
// already complete are left alone.
func (tx *Tx) Sign(keys KeyStore) error {
	for i, in := range tx.Inputs {
		pubKeys, xPubKeys := in.sortedPubKeys()
		for j := range pubKeys {
			if in.IsComplete() {
				break
			}
			if j >= len(in.Signatures) || in.Signatures[j] != nil {
				continue
			}

			priv, ok := keys.PrivKey(pubKeys[j])
			if !ok && j < len(xPubKeys) {
				priv, ok = keys.PrivKey(xPubKeys[j])
			}
			if !ok {
				continue
			}

			log.Debugf("Adding signature for %x", pubKeys[j])
			sig, err := tx.signInput(i, priv)
			if err != nil {
				return err
			}
			in.addSignature(j, sig)
		}
	}

	log.Debugf("Transaction complete: %v", tx.IsComplete())
	return nil
}

// signInput returns the DER signature with sighash byte for input idx.
func (tx *Tx) signInput(idx int, priv *btcec.PrivateKey) ([]byte, error) {
	hash, err := tx.sigHash(idx)
	if err != nil {
		return nil, err
	}
	sig := ecdsa.Sign(priv, hash).Serialize()
	return append(sig, byte(txscript.SigHashAll)), nil
}

func (in *TxIn) addSignature(pos int, sig []byte) {
	in.Signatures[pos] = sig
	in.ScriptSig = nil
}

// UpdateSignatures merges externally produced signatures, one per input.  The
// slot of each signature is found by recovering the signing key.
func (tx *Tx) UpdateSignatures(sigs [][]byte) error {
	if tx.IsComplete() {
		return nil
	}
	if len(sigs) != len(tx.Inputs) {
		return fmt.Errorf("%w: expected %d, got %d", ErrSignatureCount,
			len(tx.Inputs), len(sigs))
	}

	for i, in := range tx.Inputs {
		sig := sigs[i]
		if len(sig) < 2 || in.hasSignature(sig) {
			continue
		}
		pubKeys, _ := in.sortedPubKeys()

		hash, err := tx.sigHash(i)
		if err != nil {
			return err
		}
		j, err := recoverSlot(sig[:len(sig)-1], hash, pubKeys)
		if err != nil {
			log.Debugf("Signature for input %d matches no key: %v",
				i, err)
			continue
		}

		log.Debugf("Adding sig %d %d %x", i, j, pubKeys[j])
		in.addSignature(j, sig)
	}
	return nil
}

func (in *TxIn) hasSignature(sig []byte) bool {
	for _, s := range in.Signatures {
		if bytes.Equal(s, sig) {
			return true
		}
	}
	return false
}

var errNoMatchingKey = errors.New("no matching public key")

// recoverSlot returns the index in pubKeys of the key that produced the DER
// signature over hash.
func recoverSlot(der, hash []byte, pubKeys [][]byte) (int, error) {
	sig, err := ecdsa.ParseDERSignature(der)
	if err != nil {
		return 0, err
	}
	compact, err := compactFromDER(der)
	if err != nil {
		return 0, err
	}

	for recID := byte(0); recID < 4; recID++ {
		compact[0] = 27 + 4 + recID
		pub, _, err := ecdsa.RecoverCompact(compact, hash)
		if err != nil {
			// Not every recovery id yields a point on the curve.
			continue
		}

		for j, key := range pubKeys {
			if !bytes.Equal(key, pub.SerializeCompressed()) &&
				!bytes.Equal(key, pub.SerializeUncompressed()) {

				continue
			}
			if !sig.Verify(hash, pub) {
				continue
			}
			return j, nil
		}
	}
	return 0, errNoMatchingKey
}

// compactFromDER converts a DER signature into the 65 byte compact form
// with a zero header byte.
func compactFromDER(der []byte) ([]byte, error) {
	// 0x30 <len> 0x02 <rlen> <r> 0x02 <slen> <s>
	if len(der) < 8 || der[0] != 0x30 || der[2] != 0x02 {
		return nil, errors.New("malformed DER signature")
	}
	rLen := int(der[3])
	if 4+rLen+2 > len(der) || der[4+rLen] != 0x02 {
		return nil, errors.New("malformed DER signature")
	}
	sLen := int(der[5+rLen])
	if 6+rLen+sLen > len(der) {
		return nil, errors.New("malformed DER signature")
	}
	rBytes := bytes.TrimLeft(der[4:4+rLen], "\x00")
	sBytes := bytes.TrimLeft(der[6+rLen:6+rLen+sLen], "\x00")
	if len(rBytes) > 32 || len(sBytes) > 32 {
		return nil, errors.New("malformed DER signature")
	}

	var r, s secp256k1.ModNScalar
	if overflow := r.SetByteSlice(rBytes); overflow {
		return nil, errors.New("signature R overflows")
	}
	if overflow := s.SetByteSlice(sBytes); overflow {
		return nil, errors.New("signature S overflows")
	}

	compact := make([]byte, 65)
	r.PutBytesUnchecked(compact[1:33])
	s.PutBytesUnchecked(compact[33:65])
	return compact, nil
}
