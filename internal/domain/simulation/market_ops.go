package simulation

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/stl-lend/internal/domain/entity"
	"github.com/archon-research/stl-lend/internal/pkg/mathlib"
)

func (s *State) positionOrEmpty(user common.Address, id entity.MarketID) *entity.Position {
	key := PositionKey{User: user, MarketID: id}
	p, ok := s.Positions[key]
	if !ok {
		p = entity.NewEmptyPosition(user, id)
		s.Positions[key] = p
	}
	return p
}

func (s *State) checkHealth(m *entity.Market, p *entity.Position) error {
	healthy, err := m.IsHealthy(p.Collateral, p.BorrowShares)
	if err != nil {
		return err
	}
	if !healthy {
		return newError(ErrInsufficientCollateral, "insufficient collateral for %s in market %s", p.User.Hex(), m.ID.Hex())
	}
	return nil
}

// SupplyCollateral moves collateral from `from` into onBehalf's position.
// The max sentinel supplies from's whole balance. Returns the amount supplied.
func (s *State) SupplyCollateral(id entity.MarketID, from, onBehalf common.Address, assets *big.Int) (*big.Int, error) {
	m, err := s.Market(id)
	if err != nil {
		return nil, err
	}
	amount := s.resolveAmount(from, m.Params.CollateralToken, assets)
	if amount.Sign() == 0 {
		return nil, newError(ErrZeroAssets, "cannot supply zero collateral")
	}
	if err := s.Debit(from, m.Params.CollateralToken, amount); err != nil {
		return nil, err
	}
	p := s.positionOrEmpty(onBehalf, id)
	p.Collateral.Add(p.Collateral, amount)
	return amount, nil
}

// WithdrawCollateral moves collateral out of onBehalf's position to receiver.
func (s *State) WithdrawCollateral(id entity.MarketID, onBehalf, receiver common.Address, assets *big.Int) error {
	m, err := s.Market(id)
	if err != nil {
		return err
	}
	p, err := s.Position(onBehalf, id)
	if err != nil {
		return err
	}
	if p.Collateral.Cmp(assets) < 0 {
		return newError(ErrInsufficientPosition, "cannot withdraw %s collateral: position holds %s", assets, p.Collateral)
	}
	p.Collateral.Sub(p.Collateral, assets)
	if err := s.checkHealth(m, p); err != nil {
		return err
	}
	s.Credit(receiver, m.Params.CollateralToken, assets)
	return nil
}

// Borrow opens debt for onBehalf and sends the assets to receiver.
// Returns the borrow shares minted.
func (s *State) Borrow(id entity.MarketID, onBehalf, receiver common.Address, assets *big.Int) (*big.Int, error) {
	m, err := s.Market(id)
	if err != nil {
		return nil, err
	}
	if assets.Sign() == 0 {
		return nil, newError(ErrZeroAssets, "cannot borrow zero assets")
	}
	shares, err := m.ToBorrowShares(assets, mathlib.RoundUp)
	if err != nil {
		return nil, err
	}
	m.TotalBorrowAssets.Add(m.TotalBorrowAssets, assets)
	m.TotalBorrowShares.Add(m.TotalBorrowShares, shares)
	if m.TotalBorrowAssets.Cmp(m.TotalSupplyAssets) > 0 {
		return nil, newError(ErrInsufficientLiquidity, "insufficient liquidity in market %s", id.Hex())
	}
	p := s.positionOrEmpty(onBehalf, id)
	p.BorrowShares.Add(p.BorrowShares, shares)
	if err := s.checkHealth(m, p); err != nil {
		return nil, err
	}
	s.Credit(receiver, m.Params.LoanToken, assets)
	return shares, nil
}

// Repay reduces onBehalf's debt, paid by `from`. Exactly one of assets and
// shares must be non-zero; the max sentinel on assets repays with from's
// whole balance. Returns the assets and shares repaid.
func (s *State) Repay(id entity.MarketID, from, onBehalf common.Address, assets, shares *big.Int) (*big.Int, *big.Int, error) {
	m, err := s.Market(id)
	if err != nil {
		return nil, nil, err
	}
	p, err := s.Position(onBehalf, id)
	if err != nil {
		return nil, nil, err
	}

	var repaidAssets, repaidShares *big.Int
	if shares.Sign() > 0 {
		repaidShares = new(big.Int).Set(shares)
		if repaidAssets, err = m.ToBorrowAssets(repaidShares, mathlib.RoundUp); err != nil {
			return nil, nil, err
		}
	} else {
		repaidAssets = s.resolveAmount(from, m.Params.LoanToken, assets)
		if repaidShares, err = m.ToBorrowShares(repaidAssets, mathlib.RoundDown); err != nil {
			return nil, nil, err
		}
	}
	if repaidAssets.Sign() == 0 {
		return nil, nil, newError(ErrZeroAssets, "cannot repay zero")
	}
	if p.BorrowShares.Cmp(repaidShares) < 0 {
		return nil, nil, newError(ErrInsufficientPosition, "repay exceeds debt of %s", onBehalf.Hex())
	}
	if err := s.Debit(from, m.Params.LoanToken, repaidAssets); err != nil {
		return nil, nil, err
	}
	p.BorrowShares.Sub(p.BorrowShares, repaidShares)
	m.TotalBorrowShares.Sub(m.TotalBorrowShares, repaidShares)
	m.TotalBorrowAssets = mathlib.ZeroFloorSub(m.TotalBorrowAssets, repaidAssets)
	return repaidAssets, repaidShares, nil
}

// MarketSupply adds supply on behalf of a lender without touching holdings.
// Vault allocations go through here.
func (s *State) MarketSupply(id entity.MarketID, onBehalf common.Address, assets *big.Int) error {
	m, err := s.Market(id)
	if err != nil {
		return err
	}
	shares, err := m.ToSupplyShares(assets, mathlib.RoundDown)
	if err != nil {
		return err
	}
	m.TotalSupplyAssets.Add(m.TotalSupplyAssets, assets)
	m.TotalSupplyShares.Add(m.TotalSupplyShares, shares)
	p := s.positionOrEmpty(onBehalf, id)
	p.SupplyShares.Add(p.SupplyShares, shares)
	return nil
}

// MarketWithdraw removes supply of a lender without touching holdings.
func (s *State) MarketWithdraw(id entity.MarketID, onBehalf common.Address, assets *big.Int) error {
	m, err := s.Market(id)
	if err != nil {
		return err
	}
	p, err := s.Position(onBehalf, id)
	if err != nil {
		return err
	}
	shares, err := m.ToSupplyShares(assets, mathlib.RoundUp)
	if err != nil {
		return err
	}
	if p.SupplyShares.Cmp(shares) < 0 {
		return newError(ErrInsufficientPosition, "cannot withdraw %s from market %s: supply too small", assets, id.Hex())
	}
	if m.Liquidity().Cmp(assets) < 0 {
		return newError(ErrInsufficientLiquidity, "insufficient liquidity in market %s", id.Hex())
	}
	p.SupplyShares.Sub(p.SupplyShares, shares)
	m.TotalSupplyShares.Sub(m.TotalSupplyShares, shares)
	m.TotalSupplyAssets.Sub(m.TotalSupplyAssets, assets)
	return nil
}

// SupplyAssets returns a lender's supply in a market, in assets.
func (s *State) SupplyAssets(user common.Address, id entity.MarketID) (*big.Int, error) {
	m, err := s.Market(id)
	if err != nil {
		return nil, err
	}
	p, ok := s.Positions[PositionKey{User: user, MarketID: id}]
	if !ok {
		return new(big.Int), nil
	}
	return m.ToSupplyAssets(p.SupplyShares, mathlib.RoundDown)
}
