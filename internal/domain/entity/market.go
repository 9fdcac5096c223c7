package entity

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/archon-research/stl-lend/internal/pkg/mathlib"
)

// OraclePriceScale is the scale of collateral prices quoted in loan tokens.
var OraclePriceScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(36), nil)

// MarketID identifies a market: keccak256 of its ABI-encoded params.
type MarketID common.Hash

// Hex returns the 0x-prefixed hex form.
func (id MarketID) Hex() string {
	return common.Hash(id).Hex()
}

func (id MarketID) String() string {
	return id.Hex()
}

// HexToMarketID parses a market id.
func HexToMarketID(s string) MarketID {
	return MarketID(common.HexToHash(s))
}

// MarketParams are the immutable parameters of a market.
type MarketParams struct {
	LoanToken       common.Address
	CollateralToken common.Address
	Oracle          common.Address
	Irm             common.Address
	Lltv            *big.Int
}

var marketParamsArgs = func() abi.Arguments {
	addressTy, _ := abi.NewType("address", "", nil)
	uintTy, _ := abi.NewType("uint256", "", nil)
	return abi.Arguments{
		{Type: addressTy}, {Type: addressTy}, {Type: addressTy}, {Type: addressTy}, {Type: uintTy},
	}
}()

// ID computes the market id from the params.
func (p MarketParams) ID() (MarketID, error) {
	encoded, err := marketParamsArgs.Pack(p.LoanToken, p.CollateralToken, p.Oracle, p.Irm, p.Lltv)
	if err != nil {
		return MarketID{}, fmt.Errorf("encoding market params: %w", err)
	}
	return MarketID(crypto.Keccak256Hash(encoded)), nil
}

// Market is the accounting state of one isolated lending market.
type Market struct {
	ID                MarketID
	Params            MarketParams
	TotalSupplyAssets *big.Int
	TotalSupplyShares *big.Int
	TotalBorrowAssets *big.Int
	TotalBorrowShares *big.Int
	LastUpdate        uint64
	// Fee is the protocol fee on interest, in WAD.
	Fee *big.Int
	// Price is the collateral price in loan tokens scaled by OraclePriceScale.
	// Nil when the oracle could not be read.
	Price *big.Int
	// BorrowRate is the per-second borrow rate in WAD at LastUpdate.
	BorrowRate *big.Int
}

// Clone returns a deep copy.
func (m *Market) Clone() *Market {
	c := *m
	c.Params.Lltv = copyInt(m.Params.Lltv)
	c.TotalSupplyAssets = copyInt(m.TotalSupplyAssets)
	c.TotalSupplyShares = copyInt(m.TotalSupplyShares)
	c.TotalBorrowAssets = copyInt(m.TotalBorrowAssets)
	c.TotalBorrowShares = copyInt(m.TotalBorrowShares)
	c.Fee = copyInt(m.Fee)
	c.BorrowRate = copyInt(m.BorrowRate)
	if m.Price != nil {
		c.Price = new(big.Int).Set(m.Price)
	}
	return &c
}

// Accrue returns a copy of the market with interest accrued up to timestamp.
func (m *Market) Accrue(timestamp uint64) (*Market, error) {
	if timestamp < m.LastUpdate {
		return nil, fmt.Errorf("cannot accrue market %s to %d: last update %d is later", m.ID.Hex(), timestamp, m.LastUpdate)
	}
	next := m.Clone()
	elapsed := timestamp - m.LastUpdate
	next.LastUpdate = timestamp
	if elapsed == 0 || next.BorrowRate.Sign() == 0 || next.TotalBorrowAssets.Sign() == 0 {
		return next, nil
	}

	growth, err := mathlib.WTaylorCompounded(next.BorrowRate, new(big.Int).SetUint64(elapsed))
	if err != nil {
		return nil, fmt.Errorf("compounding borrow rate: %w", err)
	}
	interest, err := mathlib.WMulDown(next.TotalBorrowAssets, growth)
	if err != nil {
		return nil, fmt.Errorf("computing interest: %w", err)
	}
	next.TotalBorrowAssets.Add(next.TotalBorrowAssets, interest)
	next.TotalSupplyAssets.Add(next.TotalSupplyAssets, interest)

	if next.Fee.Sign() != 0 {
		feeAmount, err := mathlib.WMulDown(interest, next.Fee)
		if err != nil {
			return nil, fmt.Errorf("computing fee: %w", err)
		}
		feeShares, err := mathlib.ToSharesDown(feeAmount, new(big.Int).Sub(next.TotalSupplyAssets, feeAmount), next.TotalSupplyShares)
		if err != nil {
			return nil, fmt.Errorf("computing fee shares: %w", err)
		}
		next.TotalSupplyShares.Add(next.TotalSupplyShares, feeShares)
	}
	return next, nil
}

// Liquidity is the amount of loan token that can be borrowed or withdrawn.
func (m *Market) Liquidity() *big.Int {
	return mathlib.ZeroFloorSub(m.TotalSupplyAssets, m.TotalBorrowAssets)
}

// Utilization is total borrow over total supply in WAD, zero for an empty market.
func (m *Market) Utilization() *big.Int {
	if m.TotalSupplyAssets.Sign() == 0 {
		if m.TotalBorrowAssets.Sign() > 0 {
			return new(big.Int).Set(mathlib.MaxUint256)
		}
		return new(big.Int)
	}
	u, err := mathlib.WDivDown(m.TotalBorrowAssets, m.TotalSupplyAssets)
	if err != nil {
		return new(big.Int).Set(mathlib.MaxUint256)
	}
	return u
}

func (m *Market) ToSupplyAssets(shares *big.Int, rounding mathlib.Rounding) (*big.Int, error) {
	if rounding == mathlib.RoundUp {
		return mathlib.ToAssetsUp(shares, m.TotalSupplyAssets, m.TotalSupplyShares)
	}
	return mathlib.ToAssetsDown(shares, m.TotalSupplyAssets, m.TotalSupplyShares)
}

func (m *Market) ToSupplyShares(assets *big.Int, rounding mathlib.Rounding) (*big.Int, error) {
	if rounding == mathlib.RoundUp {
		return mathlib.ToSharesUp(assets, m.TotalSupplyAssets, m.TotalSupplyShares)
	}
	return mathlib.ToSharesDown(assets, m.TotalSupplyAssets, m.TotalSupplyShares)
}

func (m *Market) ToBorrowAssets(shares *big.Int, rounding mathlib.Rounding) (*big.Int, error) {
	if rounding == mathlib.RoundUp {
		return mathlib.ToAssetsUp(shares, m.TotalBorrowAssets, m.TotalBorrowShares)
	}
	return mathlib.ToAssetsDown(shares, m.TotalBorrowAssets, m.TotalBorrowShares)
}

func (m *Market) ToBorrowShares(assets *big.Int, rounding mathlib.Rounding) (*big.Int, error) {
	if rounding == mathlib.RoundUp {
		return mathlib.ToSharesUp(assets, m.TotalBorrowAssets, m.TotalBorrowShares)
	}
	return mathlib.ToSharesDown(assets, m.TotalBorrowAssets, m.TotalBorrowShares)
}

// CollateralValue returns collateral valued in loan tokens, nil without a price.
func (m *Market) CollateralValue(collateral *big.Int) (*big.Int, error) {
	if m.Price == nil {
		return nil, nil
	}
	return mathlib.MulDivDown(collateral, m.Price, OraclePriceScale)
}

// MaxBorrowAssets returns the debt ceiling for the given collateral at the
// given LTV (WAD). Nil without a price.
func (m *Market) MaxBorrowAssets(collateral, ltv *big.Int) (*big.Int, error) {
	value, err := m.CollateralValue(collateral)
	if err != nil || value == nil {
		return nil, err
	}
	return mathlib.WMulDown(value, ltv)
}

// Ltv returns the loan-to-value of a position in WAD. Nil when undefined
// (no price or no collateral value).
func (m *Market) Ltv(collateral, borrowShares *big.Int) (*big.Int, error) {
	value, err := m.CollateralValue(collateral)
	if err != nil || value == nil {
		return nil, err
	}
	borrowed, err := m.ToBorrowAssets(borrowShares, mathlib.RoundUp)
	if err != nil {
		return nil, err
	}
	if value.Sign() == 0 {
		return nil, nil
	}
	return mathlib.WDivUp(borrowed, value)
}

// IsHealthy reports whether the debt is within the liquidation LTV.
// A position without debt is always healthy; with debt and no price it is not.
func (m *Market) IsHealthy(collateral, borrowShares *big.Int) (bool, error) {
	if borrowShares.Sign() == 0 {
		return true, nil
	}
	maxBorrow, err := m.MaxBorrowAssets(collateral, m.Params.Lltv)
	if err != nil {
		return false, err
	}
	if maxBorrow == nil {
		return false, nil
	}
	borrowed, err := m.ToBorrowAssets(borrowShares, mathlib.RoundUp)
	if err != nil {
		return false, err
	}
	return borrowed.Cmp(maxBorrow) <= 0, nil
}
