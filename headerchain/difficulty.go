// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package headerchain

import (
	"fmt"
	"math/big"

	"github.com/axerunners/axewallet/netparams"
	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/wire"
)

// BitsToTarget converts compact difficulty bits into a target.  Exponents
// outside [0x03, 0x1e] and mantissas outside [0x8000, 0x7fffff] are
// rejected.
func BitsToTarget(bits uint32) (*big.Int, error) {
	exponent := bits >> 24
	if exponent < 0x03 || exponent > 0x1e {
		str := fmt.Sprintf("bits %08x: exponent %#x not in "+
			"[0x03, 0x1e]", bits, exponent)
		return nil, headerError(ErrInvalidBits, str, nil)
	}
	mantissa := bits & 0xffffff
	if mantissa < 0x8000 || mantissa > 0x7fffff {
		str := fmt.Sprintf("bits %08x: mantissa %#x not in "+
			"[0x8000, 0x7fffff]", bits, mantissa)
		return nil, headerError(ErrInvalidBits, str, nil)
	}
	return blockchain.CompactToBig(bits), nil
}

// TargetToBits converts a target to its compact representation.
func TargetToBits(target *big.Int) uint32 {
	return blockchain.BigToCompact(target)
}

// headerLookup returns the header at a height, or an ErrMissingHeader error.
type headerLookup func(height int32) (*wire.BlockHeader, error)

// calcTarget returns the target a header at height must meet.  Before the
// Dark Gravity Wave activation height every header may use the proof of
// work limit.
func calcTarget(params *netparams.Params, height int32,
	lookup headerLookup) (*big.Int, error) {

	if height < params.DGWActivationHeight {
		return new(big.Int).Set(params.PowLimit), nil
	}
	return darkGravityWave(params, height, lookup)
}

// darkGravityWave implements the v3 retarget: the targets of the previous
// DGWPastBlocks headers are averaged and scaled by how long that window
// actually took, clamped to a factor of three either way.
func darkGravityWave(params *netparams.Params, height int32,
	lookup headerLookup) (*big.Int, error) {

	var (
		avg                 *big.Int
		lastTime, firstTime int64
	)
	for count := int32(1); count <= params.DGWPastBlocks; count++ {
		h, err := lookup(height - count)
		if err != nil {
			return nil, err
		}
		target, err := BitsToTarget(h.Bits)
		if err != nil {
			return nil, err
		}

		if count == 1 {
			avg = target
			lastTime = h.Timestamp.Unix()
		}
		// avg = (avg*count + target) / (count+1)
		avg = new(big.Int).Mul(avg, big.NewInt(int64(count)))
		avg.Add(avg, target)
		avg.Div(avg, big.NewInt(int64(count)+1))

		firstTime = h.Timestamp.Unix()
	}

	targetTimespan := params.TargetTimespan()
	actualTimespan := lastTime - firstTime
	if actualTimespan < targetTimespan/3 {
		actualTimespan = targetTimespan / 3
	}
	if actualTimespan > targetTimespan*3 {
		actualTimespan = targetTimespan * 3
	}

	newTarget := avg.Mul(avg, big.NewInt(actualTimespan))
	newTarget.Div(newTarget, big.NewInt(targetTimespan))

	if newTarget.Cmp(params.PowLimit) > 0 {
		return new(big.Int).Set(params.PowLimit), nil
	}

	// Not every target can be represented in 32 bits.
	return blockchain.CompactToBig(blockchain.BigToCompact(newTarget)), nil
}

// requiredBits is the compact form of calcTarget.  The proof of work limit
// keeps its canonical network encoding.
func requiredBits(params *netparams.Params, height int32,
	lookup headerLookup) (uint32, error) {

	if height < params.DGWActivationHeight {
		return params.PowLimitBits, nil
	}
	target, err := darkGravityWave(params, height, lookup)
	if err != nil {
		return 0, err
	}
	return TargetToBits(target), nil
}
