// Package mathlib provides fixed-point helpers shared by the simulation engine.
//
// Amounts are carried as *big.Int so they plug straight into go-ethereum ABI
// packing. Multiplications that mirror on-chain arithmetic run on 256-bit
// integers so an overflow is reported the same way the contracts would revert.
package mathlib

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"
)

var (
	// WAD is the 18-decimal fixed-point unit.
	WAD = big.NewInt(1e18)

	// RAY is the 27-decimal fixed-point unit used by share-price bounds.
	RAY = new(big.Int).Exp(big.NewInt(10), big.NewInt(27), nil)

	// MaxUint256 is the "entire balance/position" sentinel.
	MaxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
)

// ErrOverflow is returned when a result does not fit in 256 bits.
var ErrOverflow = errors.New("uint256 overflow")

// IsMax reports whether amount is the max sentinel.
func IsMax(amount *big.Int) bool {
	return amount != nil && amount.Cmp(MaxUint256) == 0
}

// Zero returns a new zero value.
func Zero() *big.Int {
	return new(big.Int)
}

// Copy returns a copy of x, treating nil as zero.
func Copy(x *big.Int) *big.Int {
	if x == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(x)
}

func toU256(x *big.Int) (*uint256.Int, error) {
	if x == nil {
		return new(uint256.Int), nil
	}
	if x.Sign() < 0 {
		return nil, errors.New("negative operand")
	}
	v, overflow := uint256.FromBig(x)
	if overflow {
		return nil, ErrOverflow
	}
	return v, nil
}

// MulDivDown returns floor(x * y / d) computed with a 512-bit intermediate.
func MulDivDown(x, y, d *big.Int) (*big.Int, error) {
	return mulDiv(x, y, d, false)
}

// MulDivUp returns ceil(x * y / d).
func MulDivUp(x, y, d *big.Int) (*big.Int, error) {
	return mulDiv(x, y, d, true)
}

func mulDiv(x, y, d *big.Int, roundUp bool) (*big.Int, error) {
	ux, err := toU256(x)
	if err != nil {
		return nil, err
	}
	uy, err := toU256(y)
	if err != nil {
		return nil, err
	}
	ud, err := toU256(d)
	if err != nil {
		return nil, err
	}
	if ud.IsZero() {
		return nil, errors.New("division by zero")
	}

	if roundUp {
		// ceil(x*y/d) = floor((x*y + d - 1) / d), done on the 512-bit product.
		product := new(big.Int).Mul(ux.ToBig(), uy.ToBig())
		product.Add(product, new(big.Int).Sub(ud.ToBig(), big.NewInt(1)))
		q := product.Div(product, ud.ToBig())
		if q.BitLen() > 256 {
			return nil, ErrOverflow
		}
		return q, nil
	}

	q, overflow := new(uint256.Int).MulDivOverflow(ux, uy, ud)
	if overflow {
		return nil, ErrOverflow
	}
	return q.ToBig(), nil
}

// WMulDown returns x * y / WAD rounded down.
func WMulDown(x, y *big.Int) (*big.Int, error) {
	return MulDivDown(x, y, WAD)
}

// WDivDown returns x * WAD / y rounded down.
func WDivDown(x, y *big.Int) (*big.Int, error) {
	return MulDivDown(x, WAD, y)
}

// WDivUp returns x * WAD / y rounded up.
func WDivUp(x, y *big.Int) (*big.Int, error) {
	return MulDivUp(x, WAD, y)
}

// WTaylorCompounded returns the sum of the first three non-zero terms of the
// Taylor expansion of e^(rate*elapsed) - 1, in WAD.
func WTaylorCompounded(rate, elapsed *big.Int) (*big.Int, error) {
	firstTerm := new(big.Int).Mul(rate, elapsed)
	twoWad := new(big.Int).Mul(big.NewInt(2), WAD)
	secondTerm, err := MulDivDown(firstTerm, firstTerm, twoWad)
	if err != nil {
		return nil, err
	}
	threeWad := new(big.Int).Mul(big.NewInt(3), WAD)
	thirdTerm, err := MulDivDown(secondTerm, firstTerm, threeWad)
	if err != nil {
		return nil, err
	}
	sum := new(big.Int).Add(firstTerm, secondTerm)
	return sum.Add(sum, thirdTerm), nil
}

// Min returns the smaller of a and b.
func Min(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}

// Max returns the larger of a and b.
func Max(a, b *big.Int) *big.Int {
	if a.Cmp(b) >= 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}

// ZeroFloorSub returns max(a - b, 0).
func ZeroFloorSub(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return new(big.Int)
	}
	return new(big.Int).Sub(a, b)
}

// Sum adds all values, treating nil as zero.
func Sum(values ...*big.Int) *big.Int {
	total := new(big.Int)
	for _, v := range values {
		if v != nil {
			total.Add(total, v)
		}
	}
	return total
}
