// Package position_change reports how an action moves an account's vault or
// market position between two simulation states.
package position_change

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/stl-lend/internal/domain/entity"
	"github.com/archon-research/stl-lend/internal/domain/simulation"
	"github.com/archon-research/stl-lend/internal/pkg/mathlib"
)

// DefaultMaxLtvMargin (WAD) is kept below the liquidation LTV when
// reporting how much more can be borrowed.
var DefaultMaxLtvMargin = big.NewInt(5e16)

// Change is a before/after pair.
type Change struct {
	Before *big.Int `json:"before"`
	After  *big.Int `json:"after"`
}

// Delta returns After - Before.
func (c Change) Delta() *big.Int {
	return new(big.Int).Sub(c.After, c.Before)
}

type VaultPositionChange struct {
	Vault   common.Address `json:"vault"`
	Balance Change         `json:"balance"`
}

type MarketPositionChange struct {
	MarketID          entity.MarketID `json:"marketId"`
	Collateral        Change          `json:"collateral"`
	Loan              Change          `json:"loan"`
	Ltv               Change          `json:"ltv"`
	AvailableToBorrow Change          `json:"availableToBorrow"`
}

// PositionChange holds exactly one of Vault and Market.
type PositionChange struct {
	Vault  *VaultPositionChange  `json:"vault,omitempty"`
	Market *MarketPositionChange `json:"market,omitempty"`
}

// VaultChange reports account's vault balance in assets, valued at each
// state's own exchange rate.
func VaultChange(vault, account common.Address, initial, final *simulation.State) (*VaultPositionChange, error) {
	before, err := vaultBalance(vault, account, initial)
	if err != nil {
		return nil, fmt.Errorf("initial state: %w", err)
	}
	after, err := vaultBalance(vault, account, final)
	if err != nil {
		return nil, fmt.Errorf("final state: %w", err)
	}
	return &VaultPositionChange{Vault: vault, Balance: Change{Before: before, After: after}}, nil
}

func vaultBalance(vault, account common.Address, s *simulation.State) (*big.Int, error) {
	v, err := s.Vault(vault)
	if err != nil {
		return nil, err
	}
	return v.ToAssets(s.Balance(account, vault), mathlib.RoundDown)
}

// MarketChange reports account's position in market id. maxLtvMargin is
// subtracted from the liquidation LTV to size the borrowable amount; nil
// uses DefaultMaxLtvMargin.
func MarketChange(id entity.MarketID, account common.Address, initial, final *simulation.State, maxLtvMargin *big.Int) (*MarketPositionChange, error) {
	if maxLtvMargin == nil {
		maxLtvMargin = DefaultMaxLtvMargin
	}
	before, err := marketSnapshot(id, account, initial, maxLtvMargin)
	if err != nil {
		return nil, fmt.Errorf("initial state: %w", err)
	}
	after, err := marketSnapshot(id, account, final, maxLtvMargin)
	if err != nil {
		return nil, fmt.Errorf("final state: %w", err)
	}
	return &MarketPositionChange{
		MarketID:          id,
		Collateral:        Change{Before: before.collateral, After: after.collateral},
		Loan:              Change{Before: before.loan, After: after.loan},
		Ltv:               Change{Before: before.ltv, After: after.ltv},
		AvailableToBorrow: Change{Before: before.available, After: after.available},
	}, nil
}

type marketPosition struct {
	collateral *big.Int
	loan       *big.Int
	ltv        *big.Int
	available  *big.Int
}

func marketSnapshot(id entity.MarketID, account common.Address, s *simulation.State, margin *big.Int) (marketPosition, error) {
	m, err := s.Market(id)
	if err != nil {
		return marketPosition{}, err
	}
	p, ok := s.Positions[simulation.PositionKey{User: account, MarketID: id}]
	if !ok {
		p = entity.NewEmptyPosition(account, id)
	}

	loan, err := m.ToBorrowAssets(p.BorrowShares, mathlib.RoundUp)
	if err != nil {
		return marketPosition{}, err
	}
	ltv, err := m.Ltv(p.Collateral, p.BorrowShares)
	if err != nil {
		return marketPosition{}, err
	}
	if ltv == nil {
		ltv = new(big.Int)
	}
	maxBorrow, err := m.MaxBorrowAssets(p.Collateral, mathlib.ZeroFloorSub(m.Params.Lltv, margin))
	if err != nil {
		return marketPosition{}, err
	}
	available := new(big.Int)
	if maxBorrow != nil {
		available = mathlib.ZeroFloorSub(maxBorrow, loan)
	}
	return marketPosition{
		collateral: new(big.Int).Set(p.Collateral),
		loan:       loan,
		ltv:        ltv,
		available:  available,
	}, nil
}
