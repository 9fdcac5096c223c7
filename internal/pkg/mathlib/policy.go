package mathlib

import (
	"fmt"
	"math/big"
)

// Rounding selects the rounding direction of a conversion.
type Rounding int

const (
	RoundDown Rounding = iota
	RoundUp
)

// MulDiv dispatches to MulDivDown or MulDivUp.
func MulDiv(x, y, d *big.Int, rounding Rounding) (*big.Int, error) {
	if rounding == RoundUp {
		return MulDivUp(x, y, d)
	}
	return MulDivDown(x, y, d)
}

// ApplyMargin scales amount by (1 + margin), margin in WAD, rounding down so
// the result never exceeds amount * (1 + margin).
func ApplyMargin(amount, margin *big.Int) (*big.Int, error) {
	if margin.Sign() < 0 {
		return nil, fmt.Errorf("margin must be non-negative, got %s", margin)
	}
	return MulDivDown(amount, new(big.Int).Add(WAD, margin), WAD)
}

// SharePriceE27 returns assets/shares scaled by RAY.
func SharePriceE27(assets, shares *big.Int, rounding Rounding) (*big.Int, error) {
	if shares.Sign() == 0 {
		return nil, fmt.Errorf("share price undefined for zero shares")
	}
	return MulDiv(assets, RAY, shares, rounding)
}

// MaxSharePriceE27 is the highest price (assets per share, RAY) the user accepts
// when paying assets for shares. Rounded down.
func MaxSharePriceE27(assets, shares, tolerance *big.Int) (*big.Int, error) {
	if shares.Sign() == 0 {
		return nil, fmt.Errorf("share price undefined for zero shares")
	}
	num, err := MulDivDown(assets, new(big.Int).Add(WAD, tolerance), WAD)
	if err != nil {
		return nil, err
	}
	return MulDivDown(num, RAY, shares)
}

// MinSharePriceE27 is the lowest price (assets per share, RAY) the user accepts
// when receiving assets for shares. Rounded up.
func MinSharePriceE27(assets, shares, tolerance *big.Int) (*big.Int, error) {
	if shares.Sign() == 0 {
		return nil, fmt.Errorf("share price undefined for zero shares")
	}
	if tolerance.Cmp(WAD) > 0 {
		return nil, fmt.Errorf("tolerance above 100%%: %s", tolerance)
	}
	num, err := MulDivUp(assets, new(big.Int).Sub(WAD, tolerance), WAD)
	if err != nil {
		return nil, err
	}
	return MulDivUp(num, RAY, shares)
}
