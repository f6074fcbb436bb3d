// Copyright (c) 2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"sync"

	"github.com/axerunners/axewallet/internal/zero"
	"github.com/axerunners/axewallet/txcodec"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
)

// KeyRing holds the keys of a wallet.  Key derivation and encryption live
// outside this package; a KeyRing only maps addresses to keys.
type KeyRing interface {
	txcodec.KeyStore

	// PubKey returns the public key paid to by addr.
	PubKey(addr btcutil.Address) ([]byte, bool)

	// Addresses lists every address of the ring in import order.
	Addresses() []btcutil.Address
}

// MemKeyRing is a KeyRing of imported private keys kept in memory.  Each key
// is watched through its compressed pay to pubkey hash address.
type MemKeyRing struct {
	params *chaincfg.Params

	mu      sync.RWMutex
	keys    txcodec.KeyMap
	privs   []*btcec.PrivateKey
	pubKeys map[string][]byte
	addrs   []btcutil.Address
}

// A compile-time assertion to ensure MemKeyRing meets the KeyRing interface.
var _ KeyRing = (*MemKeyRing)(nil)

// NewMemKeyRing returns an empty key ring for the network of params.
func NewMemKeyRing(params *chaincfg.Params) *MemKeyRing {
	return &MemKeyRing{
		params:  params,
		keys:    make(txcodec.KeyMap),
		pubKeys: make(map[string][]byte),
	}
}

// ImportKey adds priv to the ring and returns its address.  Importing a key
// twice is not an error.
func (r *MemKeyRing) ImportKey(priv *btcec.PrivateKey) (btcutil.Address,
	error) {

	pubKey := priv.PubKey().SerializeCompressed()
	addr, err := btcutil.NewAddressPubKeyHash(
		btcutil.Hash160(pubKey), r.params,
	)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	encoded := addr.EncodeAddress()
	if _, ok := r.pubKeys[encoded]; ok {
		return addr, nil
	}
	r.keys.Add(priv)
	r.privs = append(r.privs, priv)
	r.pubKeys[encoded] = pubKey
	r.addrs = append(r.addrs, addr)
	return addr, nil
}

// ImportSecret imports the private key with the 32 byte secret.  The secret
// is cleared before returning.
func (r *MemKeyRing) ImportSecret(secret []byte) (btcutil.Address, error) {
	defer zero.Bytes(secret)

	priv, _ := btcec.PrivKeyFromBytes(secret)
	return r.ImportKey(priv)
}

// ImportWIF imports a key in wallet import format.  The key must be encoded
// for the network of the ring.
func (r *MemKeyRing) ImportWIF(wif string) (btcutil.Address, error) {
	decoded, err := btcutil.DecodeWIF(wif)
	if err != nil {
		return nil, err
	}
	if !decoded.IsForNet(r.params) {
		return nil, ErrWrongNetwork
	}
	return r.ImportKey(decoded.PrivKey)
}

// PrivKey returns the private key of pubKey.
func (r *MemKeyRing) PrivKey(pubKey []byte) (*btcec.PrivateKey, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.keys.PrivKey(pubKey)
}

// PubKey returns the public key paid to by addr.
func (r *MemKeyRing) PubKey(addr btcutil.Address) ([]byte, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pubKey, ok := r.pubKeys[addr.EncodeAddress()]
	return pubKey, ok
}

// Addresses lists the addresses of the imported keys.
func (r *MemKeyRing) Addresses() []btcutil.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]btcutil.Address(nil), r.addrs...)
}

// Close wipes every private key from memory and empties the ring.
func (r *MemKeyRing) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, priv := range r.privs {
		priv.Zero()
	}
	r.privs = nil
	r.keys = make(txcodec.KeyMap)
	r.pubKeys = make(map[string][]byte)
	r.addrs = nil
}
