// Copyright (c) 2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package coinchooser

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"github.com/axerunners/axewallet/txcodec"
	"github.com/btcsuite/btcd/btcutil"
)

// maxAttempts bounds the random permutations tried per coin selection.
const maxAttempts = 100

// Policy decides how coins are grouped into buckets and how candidate
// bucket sets are scored.
type Policy interface {
	Key(c *Coin) string
	Penalty(tx *txcodec.Tx) PenaltyFunc
}

var (
	// Privacy spends all coins of an address together.  It penalizes
	// change far from the output amounts, and large change.
	Privacy Policy = privacyPolicy{}

	// Random treats every coin on its own and scores all sufficient
	// sets alike.
	Random Policy = randomPolicy{}
)

var policies = map[string]Policy{
	"Privacy": Privacy,
	"Random":  Random,
}

// PolicyByName returns the named policy, or Privacy for unknown names.
func PolicyByName(name string) Policy {
	if p, ok := policies[name]; ok {
		return p
	}
	return Privacy
}

type privacyPolicy struct{}

func (privacyPolicy) Key(c *Coin) string {
	if c.Input.Address == nil {
		return c.Input.OutPointString()
	}
	return c.Input.Address.EncodeAddress()
}

func (privacyPolicy) Penalty(tx *txcodec.Tx) PenaltyFunc {
	var minOut, maxOut int64
	for i, o := range tx.Outputs {
		if i == 0 || o.Value < minOut {
			minOut = o.Value
		}
		if o.Value > maxOut {
			maxOut = o.Value
		}
	}
	minChange := float64(minOut) * 0.75
	maxChange := float64(maxOut) * 1.33
	spent := sumOutputs(tx.Outputs)

	return func(buckets []*Bucket) float64 {
		badness := float64(len(buckets) - 1)

		// Change includes the fee here.
		change := float64(sumValues(buckets) - spent)
		switch {
		case change < minChange:
			badness += (minChange - change) / (minChange + 10000)

		case change > maxChange:
			badness += (change - maxChange) / (maxChange + 10000)

			// 5 coins of excess weigh as much as one more input.
			badness += change / (btcutil.SatoshiPerBitcoin * 5)
		}
		return badness
	}
}

type randomPolicy struct{}

func (randomPolicy) Key(c *Coin) string {
	return c.Input.OutPointString()
}

func (randomPolicy) Penalty(*txcodec.Tx) PenaltyFunc {
	return func([]*Bucket) float64 { return 0 }
}

// Config configures a Chooser.
type Config struct {
	// Policy defaults to Privacy.
	Policy Policy

	// OutputRounding lets the last change output lose up to two decimal
	// places to the fee so it looks like the other outputs.
	OutputRounding bool
}

// Chooser selects coins and computes change.  It holds no state between
// calls and is safe for concurrent use.
type Chooser struct {
	policy         Policy
	outputRounding bool
}

// New returns a Chooser for cfg.
func New(cfg Config) *Chooser {
	policy := cfg.Policy
	if policy == nil {
		policy = Privacy
	}
	return &Chooser{policy: policy, outputRounding: cfg.OutputRounding}
}

// candidatesAny returns sets of buckets that are sufficient: every single
// bucket that is, and the shortest sufficient prefixes of random
// permutations of buckets.
func candidatesAny(p *PRNG, buckets []*Bucket,
	sufficient SufficientFunc) ([][]*Bucket, error) {

	if len(buckets) == 0 {
		return nil, ErrNotEnoughFunds
	}

	var sets [][]int
	seen := make(map[string]struct{})
	add := func(set []int) {
		key := fmt.Sprint(set)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		sets = append(sets, set)
	}

	for n, b := range buckets {
		if sufficient([]*Bucket{b}, b.Value) {
			add([]int{n})
		}
	}

	attempts := min(maxAttempts, (len(buckets)-1)*10+1)
	perm := make([]int, len(buckets))
	for i := range perm {
		perm[i] = i
	}
	for i := 0; i < attempts; i++ {
		p.Shuffle(len(perm), func(a, b int) {
			perm[a], perm[b] = perm[b], perm[a]
		})

		var (
			bkts  []*Bucket
			sum   int64
			found bool
		)
		for count, n := range perm {
			bkts = append(bkts, buckets[n])
			sum += buckets[n].Value
			if sufficient(bkts, sum) {
				set := append([]int(nil), perm[:count+1]...)
				sort.Ints(set)
				add(set)
				found = true
				break
			}
		}
		if !found {
			return nil, ErrNotEnoughFunds
		}
	}

	candidates := make([][]*Bucket, 0, len(sets))
	for _, set := range sets {
		bkts := make([]*Bucket, 0, len(set))
		for _, n := range set {
			bkts = append(bkts, buckets[n])
		}
		candidates = append(candidates, StripUnneeded(bkts, sufficient))
	}
	return candidates, nil
}

// candidatesPreferConfirmed returns candidate sets drawing on confirmed
// buckets first.  Only when they do not suffice are buckets with
// unconfirmed coins considered, and then all confirmed buckets are part of
// every set.  Buckets holding coins with unconfirmed parents or local coins
// come last in the same way.
func candidatesPreferConfirmed(p *PRNG, buckets []*Bucket,
	sufficient SufficientFunc) ([][]*Bucket, error) {

	// Fixed inputs may pay for everything.
	if sufficient(nil, 0) {
		return [][]*Bucket{nil}, nil
	}

	var tiers [3][]*Bucket
	for _, b := range buckets {
		switch {
		case b.MinHeight > 0:
			tiers[0] = append(tiers[0], b)
		case b.MinHeight == 0:
			tiers[1] = append(tiers[1], b)
		default:
			tiers[2] = append(tiers[2], b)
		}
	}

	var (
		selected    []*Bucket
		selectedSum int64
	)
	for _, tier := range tiers {
		sfunds := func(bkts []*Bucket, sum int64) bool {
			all := append(selected[:len(selected):len(selected)],
				bkts...)
			return sufficient(all, sum+selectedSum)
		}

		candidates, err := candidatesAny(p, tier, sfunds)
		switch {
		case errors.Is(err, ErrNotEnoughFunds):
			selected = append(selected, tier...)
			selectedSum += sumValues(tier)
			continue

		case err != nil:
			return nil, err
		}

		for i, c := range candidates {
			all := append(selected[:len(selected):len(selected)],
				c...)
			candidates[i] = StripUnneeded(all, sufficient)
		}
		return candidates, nil
	}
	return nil, ErrNotEnoughFunds
}

// pickWinner returns the candidate with the lowest penalty, the first one
// on a tie.
func pickWinner(total int, candidates [][]*Bucket,
	penalty PenaltyFunc) []*Bucket {

	best := 0
	bestPenalty := penalty(candidates[0])
	for i := 1; i < len(candidates); i++ {
		if pen := penalty(candidates[i]); pen < bestPenalty {
			best, bestPenalty = i, pen
		}
	}
	log.Debugf("Bucket sets: %d", total)
	log.Debugf("Winning penalty: %v", bestPenalty)
	return candidates[best]
}

// ChooseBuckets returns the sufficient set of buckets with the lowest
// penalty.
func (c *Chooser) ChooseBuckets(p *PRNG, buckets []*Bucket,
	sufficient SufficientFunc, penalty PenaltyFunc) ([]*Bucket, error) {

	candidates, err := candidatesAny(p, buckets, sufficient)
	if err != nil {
		return nil, err
	}
	return pickWinner(len(buckets), candidates, penalty), nil
}

// ChooseBucketsPreferConfirmed is like ChooseBuckets but only falls back to
// buckets with unconfirmed coins when the confirmed ones do not suffice.
func (c *Chooser) ChooseBucketsPreferConfirmed(p *PRNG, buckets []*Bucket,
	sufficient SufficientFunc, penalty PenaltyFunc) ([]*Bucket, error) {

	candidates, err := candidatesPreferConfirmed(p, buckets, sufficient)
	if err != nil {
		return nil, err
	}
	return pickWinner(len(buckets), candidates, penalty), nil
}

// MakeTx selects coins to pay outputs on top of the fixed inputs and adds
// change.  Change below dustThreshold is left to the fee.  Change goes to
// the first input's address when changeAddrs is empty.  A non-nil payload
// makes a special transaction.
func (c *Chooser) MakeTx(coins []*Coin, inputs []*txcodec.TxIn,
	outputs []*txcodec.TxOut, changeAddrs []btcutil.Address,
	feeEstimator FeeEstimator, dustThreshold int64,
	payload txcodec.Payload) (*txcodec.Tx, error) {

	p := NewPRNGFromCoins(coins)

	// Buckets are built in outpoint order so the choice does not depend
	// on the order coins were passed in.
	coins = append([]*Coin(nil), coins...)
	sort.Slice(coins, func(i, j int) bool {
		a := coins[i].Input.PreviousOutPoint
		b := coins[j].Input.PreviousOutPoint
		if a.Hash != b.Hash {
			return bytes.Compare(a.Hash[:], b.Hash[:]) < 0
		}
		return a.Index < b.Index
	})

	// The callers' slices are not modified.
	ins := append([]*txcodec.TxIn(nil), inputs...)
	outs := append([]*txcodec.TxOut(nil), outputs...)
	var tx *txcodec.Tx
	if payload != nil {
		tx = txcodec.NewSpecialTx(ins, outs, 0, payload)
	} else {
		tx = txcodec.NewTx(ins, outs, 0, true)
	}

	inputValue := tx.InputValue()
	spent := sumOutputs(outs)
	baseWeight, err := tx.EstimatedWeight()
	if err != nil {
		return nil, err
	}

	feeForWeight := func(weight int) int64 {
		return feeEstimator(txcodec.VirtualSize(weight))
	}
	txWeight := func(buckets []*Bucket) int {
		weight := baseWeight
		for _, b := range buckets {
			weight += b.Weight
		}
		return weight
	}
	sufficient := func(buckets []*Bucket, valueSum int64) bool {
		total := inputValue + valueSum
		if total < spent {
			return false
		}
		return total >= spent+feeForWeight(txWeight(buckets))
	}

	buckets, err := Bucketize(coins, c.policy.Key)
	if err != nil {
		return nil, err
	}
	chosen, err := c.ChooseBucketsPreferConfirmed(
		p, buckets, sufficient, c.policy.Penalty(tx),
	)
	if err != nil {
		return nil, err
	}

	descs := make([]string, 0, len(chosen))
	for _, b := range chosen {
		for _, coin := range b.Coins {
			tx.AddInputs(coin.Input)
		}
		descs = append(descs, b.Desc)
	}
	weight := txWeight(chosen)

	if len(changeAddrs) == 0 {
		if len(tx.Inputs) == 0 || tx.Inputs[0].Address == nil {
			return nil, ErrNoChangeAddress
		}
		changeAddrs = []btcutil.Address{tx.Inputs[0].Address}
	}

	outputSize, err := txcodec.EstimatedOutputSize(changeAddrs[0])
	if err != nil {
		return nil, err
	}
	fee := func(count int) int64 {
		return feeForWeight(weight + count*4*outputSize)
	}
	change, err := c.ChangeOutputs(p, tx, changeAddrs, fee, dustThreshold)
	if err != nil {
		return nil, err
	}
	tx.AddOutputs(change...)

	log.Infof("Using %d inputs", len(tx.Inputs))
	log.Debugf("Using buckets: %v", descs)

	return tx, nil
}
