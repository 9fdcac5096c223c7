package entity

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/stl-lend/internal/pkg/mathlib"
)

// Vault is the state of an ERC-4626 vault allocating its asset across markets.
type Vault struct {
	Address         common.Address
	Asset           common.Address
	Name            string
	Symbol          string
	DecimalsOffset  uint8
	TotalSupply     *big.Int
	TotalAssets     *big.Int
	LastTotalAssets *big.Int
	// Fee is the performance fee on interest, in WAD.
	Fee          *big.Int
	FeeRecipient common.Address
	SupplyQueue  []MarketID
	// WithdrawQueue lists every market the vault holds a position in.
	WithdrawQueue []MarketID
}

// Clone returns a deep copy.
func (v *Vault) Clone() *Vault {
	c := *v
	c.TotalSupply = copyInt(v.TotalSupply)
	c.TotalAssets = copyInt(v.TotalAssets)
	c.LastTotalAssets = copyInt(v.LastTotalAssets)
	c.Fee = copyInt(v.Fee)
	c.SupplyQueue = append([]MarketID(nil), v.SupplyQueue...)
	c.WithdrawQueue = append([]MarketID(nil), v.WithdrawQueue...)
	return &c
}

func (v *Vault) virtualShares() *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(v.DecimalsOffset)), nil)
}

// ToShares converts assets to vault shares.
func (v *Vault) ToShares(assets *big.Int, rounding mathlib.Rounding) (*big.Int, error) {
	return mathlib.MulDiv(assets,
		new(big.Int).Add(v.TotalSupply, v.virtualShares()),
		new(big.Int).Add(v.TotalAssets, big.NewInt(1)),
		rounding)
}

// ToAssets converts vault shares to assets.
func (v *Vault) ToAssets(shares *big.Int, rounding mathlib.Rounding) (*big.Int, error) {
	return mathlib.MulDiv(shares,
		new(big.Int).Add(v.TotalAssets, big.NewInt(1)),
		new(big.Int).Add(v.TotalSupply, v.virtualShares()),
		rounding)
}

// Accrue returns a copy of the vault with total assets recomputed from its
// positions in the (already accrued) markets, minting performance fee shares.
// Every market of the withdraw queue must be present with the vault's position.
func (v *Vault) Accrue(markets map[MarketID]*Market, positions map[MarketID]*Position) (*Vault, error) {
	newTotalAssets := new(big.Int)
	for _, id := range v.WithdrawQueue {
		market, ok := markets[id]
		if !ok {
			return nil, fmt.Errorf("vault %s: market %s not in snapshot", v.Address.Hex(), id.Hex())
		}
		position, ok := positions[id]
		if !ok {
			return nil, fmt.Errorf("vault %s: position in market %s not in snapshot", v.Address.Hex(), id.Hex())
		}
		assets, err := market.ToSupplyAssets(position.SupplyShares, mathlib.RoundDown)
		if err != nil {
			return nil, fmt.Errorf("vault %s: converting supply shares: %w", v.Address.Hex(), err)
		}
		newTotalAssets.Add(newTotalAssets, assets)
	}

	next := v.Clone()
	interest := mathlib.ZeroFloorSub(newTotalAssets, v.LastTotalAssets)
	if interest.Sign() > 0 && v.Fee.Sign() > 0 {
		feeAssets, err := mathlib.WMulDown(interest, v.Fee)
		if err != nil {
			return nil, fmt.Errorf("vault %s: computing fee: %w", v.Address.Hex(), err)
		}
		feeShares, err := mathlib.MulDivDown(feeAssets,
			new(big.Int).Add(v.TotalSupply, v.virtualShares()),
			new(big.Int).Add(new(big.Int).Sub(newTotalAssets, feeAssets), big.NewInt(1)))
		if err != nil {
			return nil, fmt.Errorf("vault %s: computing fee shares: %w", v.Address.Hex(), err)
		}
		next.TotalSupply.Add(next.TotalSupply, feeShares)
	}
	next.TotalAssets = newTotalAssets
	next.LastTotalAssets = new(big.Int).Set(newTotalAssets)
	return next, nil
}
