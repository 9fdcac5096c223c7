package entity

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Holding is a user's balance of one token plus the allowances it granted.
type Holding struct {
	User       common.Address
	Token      common.Address
	Balance    *big.Int
	Allowances map[common.Address]*big.Int
}

// NewHolding creates a holding with no allowances.
func NewHolding(user, token common.Address, balance *big.Int) *Holding {
	return &Holding{
		User:       user,
		Token:      token,
		Balance:    copyInt(balance),
		Allowances: make(map[common.Address]*big.Int),
	}
}

// Allowance returns the allowance granted to spender, zero when unknown.
func (h *Holding) Allowance(spender common.Address) *big.Int {
	if a, ok := h.Allowances[spender]; ok && a != nil {
		return new(big.Int).Set(a)
	}
	return new(big.Int)
}

// Clone returns a deep copy.
func (h *Holding) Clone() *Holding {
	c := NewHolding(h.User, h.Token, h.Balance)
	for spender, amount := range h.Allowances {
		c.Allowances[spender] = copyInt(amount)
	}
	return c
}
