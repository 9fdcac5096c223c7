package entity

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Position is a user's state in one market.
type Position struct {
	User         common.Address
	MarketID     MarketID
	SupplyShares *big.Int
	BorrowShares *big.Int
	Collateral   *big.Int
}

// NewEmptyPosition returns a zeroed position.
func NewEmptyPosition(user common.Address, id MarketID) *Position {
	return &Position{
		User:         user,
		MarketID:     id,
		SupplyShares: new(big.Int),
		BorrowShares: new(big.Int),
		Collateral:   new(big.Int),
	}
}

// Clone returns a deep copy.
func (p *Position) Clone() *Position {
	return &Position{
		User:         p.User,
		MarketID:     p.MarketID,
		SupplyShares: copyInt(p.SupplyShares),
		BorrowShares: copyInt(p.BorrowShares),
		Collateral:   copyInt(p.Collateral),
	}
}
