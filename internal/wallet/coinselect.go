package wallet

import (
	"errors"
	"fmt"
	"sort"

	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/pkg/types"
)

// Coin selection errors.
var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNoCoins           = errors.New("no coins available")
)

// Coin represents an unspent P2PKH output owned by the wallet.
type Coin struct {
	Outpoint types.Outpoint
	Value    uint64
	// KeyIndex is the external-chain index that controls this coin.
	KeyIndex uint32
}

// SelectFundingCoin picks the single coin that funds a transaction of the
// given target amount. The pool builders each consume exactly one P2PKH
// outpoint, so selection is the smallest coin covering the target, which
// minimizes change.
func SelectFundingCoin(coins []Coin, target uint64) (Coin, error) {
	if len(coins) == 0 {
		return Coin{}, ErrNoCoins
	}
	if target == 0 {
		return Coin{}, fmt.Errorf("target must be positive")
	}

	candidates := make([]Coin, 0, len(coins))
	for _, c := range coins {
		if c.Value > 0 {
			candidates = append(candidates, c)
		}
	}
	if len(candidates) == 0 {
		return Coin{}, ErrNoCoins
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Value < candidates[j].Value
	})

	// Sorted ascending, so the first match is the smallest that fits.
	for _, c := range candidates {
		if c.Value >= target {
			return c, nil
		}
	}

	var total uint64
	for _, c := range candidates {
		total += c.Value
	}
	return Coin{}, fmt.Errorf("%w: have %d, need %d in a single coin", ErrInsufficientFunds, total, target)
}
