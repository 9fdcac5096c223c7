package entity

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// User holds protocol-level account state.
type User struct {
	Address common.Address
	// Nonce is the protocol authorization nonce consumed by signed authorizations.
	Nonce *big.Int
	// IsAdapterAuthorized reports whether the bundler adapter may manage the
	// user's positions (borrow, withdraw collateral) on their behalf.
	IsAdapterAuthorized bool
}

// Clone returns a deep copy.
func (u *User) Clone() *User {
	c := *u
	c.Nonce = copyInt(u.Nonce)
	return &c
}

func copyInt(x *big.Int) *big.Int {
	if x == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(x)
}
