package domain

import (
	"errors"
	"math/big"
)

const (
	// MinOddsBps and MaxOddsBps bound the implied probability an Offer
	// creator may choose, mirroring the contract's own range check.
	MinOddsBps = 500
	MaxOddsBps = 9500

	bpsDenominator = 10_000
)

var (
	ErrOddsOutOfRange = errors.New("odds out of range")
	ErrInvalidStake   = errors.New("invalid stake")
)

// TakerStake computes the counterparty stake an Offer requires, given the
// creator's stake, the side the creator holds, and the implied probability in
// basis points. Rounds up so the taker can never underpay by a wei.
func TakerStake(creatorWei *big.Int, creatorSideYes bool, oddsBps uint16) (*big.Int, error) {
	if oddsBps < MinOddsBps || oddsBps > MaxOddsBps {
		return nil, ErrOddsOutOfRange
	}
	if creatorWei == nil || creatorWei.Sign() <= 0 {
		return nil, ErrInvalidStake
	}

	p := big.NewInt(int64(oddsBps))
	q := big.NewInt(bpsDenominator - int64(oddsBps))

	var num *big.Int
	var den *big.Int
	if creatorSideYes {
		num = new(big.Int).Mul(creatorWei, p)
		den = q
	} else {
		num = new(big.Int).Mul(creatorWei, q)
		den = p
	}
	return ceilDiv(num, den), nil
}

func ceilDiv(n, d *big.Int) *big.Int {
	out := new(big.Int).Add(n, new(big.Int).Sub(d, big.NewInt(1)))
	return out.Div(out, d)
}
