// Copyright (c) 2013-2015 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package netparams

import (
	"math/big"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

const (
	// Coin is the number of duffs in one AXE.
	Coin = 100_000_000

	// TotalCoinSupplyLimit is the hard supply ceiling in whole coins.  No
	// single output may carry more than this.
	TotalCoinSupplyLimit = 18_920_902

	// MaxSupply is TotalCoinSupplyLimit expressed in duffs.
	MaxSupply int64 = TotalCoinSupplyLimit * Coin

	// CoinbaseMaturity is the number of blocks a coinbase output must wait
	// before it becomes spendable.
	CoinbaseMaturity = 100

	// HeaderSize is the size of a serialized block header.
	HeaderSize = 80

	// ChunkSize is the number of headers the indexing servers hand out in
	// one batch.
	ChunkSize = 2016
)

// Axe network magic values.
const (
	MainNet wire.BitcoinNet = 0xbd6b0cbf
	TestNet wire.BitcoinNet = 0xffcae2ce
	RegTest wire.BitcoinNet = 0xdcb7c1fc
)

var (
	// mainPowLimit is the highest proof of work value an Axe block can
	// have on the main network.  It is 0xfffff << 216.
	mainPowLimit = new(big.Int).Lsh(big.NewInt(0xfffff), 216)

	// regTestPowLimit is the highest proof of work value a block can have
	// on the regression test network.  It is 2^255 - 1.
	regTestPowLimit = new(big.Int).Sub(
		new(big.Int).Lsh(big.NewInt(1), 255), big.NewInt(1),
	)
)

// Params is used to group parameters for the Axe networks.  The embedded
// chaincfg.Params carries everything btcutil needs for address encoding.  The
// remaining fields drive header validation.
type Params struct {
	*chaincfg.Params

	// ElectrumPort is the default port of the indexing servers.
	ElectrumPort string

	// DGWActivationHeight is the first height whose bits are checked
	// against the Dark Gravity Wave v3 retarget.
	DGWActivationHeight int32

	// DGWPastBlocks is the averaging window of the retarget.
	DGWPastBlocks int32

	// SkipPoWCheck disables bits and proof of work checks, mirroring the
	// relaxed rules of the test networks.
	SkipPoWCheck bool

	// GenesisHash is the identity of the block at height zero.
	GenesisHash chainhash.Hash

	// DIP3ActivationHeight is the height deterministic masternode lists
	// become active.
	DIP3ActivationHeight int32
}

// TargetTimespan returns the timespan the retarget window should cover.
func (p *Params) TargetTimespan() int64 {
	return int64(p.DGWPastBlocks) * int64(p.TargetTimePerBlock/time.Second)
}

// newHashFromStr converts the passed big-endian hex string into a
// chainhash.Hash.  It only differs from the one available in chainhash in
// that it panics on an error since it will only be called with hard-coded,
// and therefore known good, hashes.
func newHashFromStr(hexStr string) chainhash.Hash {
	hash, err := chainhash.NewHashFromStr(hexStr)
	if err != nil {
		panic(err)
	}
	return *hash
}

var mainNetChainParams = chaincfg.Params{
	Name:        "mainnet",
	Net:         MainNet,
	DefaultPort: "9937",

	PowLimit:           mainPowLimit,
	PowLimitBits:       0x1e0ffff0,
	CoinbaseMaturity:   CoinbaseMaturity,
	TargetTimePerBlock: 150 * time.Second,

	PubKeyHashAddrID: 0x37, // starts with P
	ScriptHashAddrID: 0x10, // starts with 7
	PrivateKeyID:     0xcc,

	HDPrivateKeyID: [4]byte{0x04, 0x88, 0xad, 0xe4}, // xprv
	HDPublicKeyID:  [4]byte{0x04, 0x88, 0xb2, 0x1e}, // xpub
	HDCoinType:     4242,
}

var testNetChainParams = chaincfg.Params{
	Name:        "testnet",
	Net:         TestNet,
	DefaultPort: "19937",

	PowLimit:           mainPowLimit,
	PowLimitBits:       0x1e0ffff0,
	CoinbaseMaturity:   CoinbaseMaturity,
	TargetTimePerBlock: 150 * time.Second,

	PubKeyHashAddrID: 0x8c, // starts with y
	ScriptHashAddrID: 0x13, // starts with 8 or 9
	PrivateKeyID:     0xef,

	HDPrivateKeyID: [4]byte{0x04, 0x35, 0x83, 0x94}, // tprv
	HDPublicKeyID:  [4]byte{0x04, 0x35, 0x87, 0xcf}, // tpub
	HDCoinType:     1,
}

var regTestChainParams = chaincfg.Params{
	Name:        "regtest",
	Net:         RegTest,
	DefaultPort: "19994",

	PowLimit:           regTestPowLimit,
	PowLimitBits:       0x207fffff,
	CoinbaseMaturity:   CoinbaseMaturity,
	TargetTimePerBlock: 150 * time.Second,

	PubKeyHashAddrID: 0x8c,
	ScriptHashAddrID: 0x13,
	PrivateKeyID:     0xef,

	HDPrivateKeyID: [4]byte{0x04, 0x35, 0x83, 0x94},
	HDPublicKeyID:  [4]byte{0x04, 0x35, 0x87, 0xcf},
	HDCoinType:     1,
}

// MainNetParams contains parameters specific to the Axe main network.
var MainNetParams = Params{
	Params:               &mainNetChainParams,
	ElectrumPort:         "50002",
	DGWActivationHeight:  68589,
	DGWPastBlocks:        24,
	GenesisHash:          newHashFromStr("00000c33631ca6f2f61368991ce2dc03306b5bb50bf7cede5cfbba6db38e52e6"),
	DIP3ActivationHeight: 213696,
}

// TestNetParams contains parameters specific to the Axe test network.
var TestNetParams = Params{
	Params:               &testNetChainParams,
	ElectrumPort:         "51002",
	DGWActivationHeight:  68589,
	DGWPastBlocks:        24,
	SkipPoWCheck:         true,
	GenesisHash:          newHashFromStr("000005b709662e7bc5e89c71d3aba6c9d4623b4bbf44ac205caec55f4cefb483"),
	DIP3ActivationHeight: 7000,
}

// RegTestParams contains parameters specific to the regression test network.
// Like the test network it skips bits and proof of work checks.
var RegTestParams = Params{
	Params:               &regTestChainParams,
	ElectrumPort:         "51002",
	DGWActivationHeight:  68589,
	DGWPastBlocks:        24,
	SkipPoWCheck:         true,
	GenesisHash:          newHashFromStr("2026b8850f3774a0536152ba868c4dcbde9aef5ffc28a5d23f76f80e9b46e565"),
	DIP3ActivationHeight: 7000,
}

// ByName returns the parameters of the named network, or nil when the name is
// unknown.
func ByName(name string) *Params {
	switch name {
	case MainNetParams.Name:
		return &MainNetParams
	case TestNetParams.Name:
		return &TestNetParams
	case RegTestParams.Name:
		return &RegTestParams
	default:
		return nil
	}
}
