package operations

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/stl-lend/internal/domain/entity"
	"github.com/archon-research/stl-lend/internal/domain/simulation"
	"github.com/archon-research/stl-lend/internal/pkg/bundler"
	"github.com/archon-research/stl-lend/internal/pkg/mathlib"
)

// SupplyCollateral supplies the adapter's collateral to OnBehalf's position.
// The max sentinel supplies the adapter's whole balance.
type SupplyCollateral struct {
	MarketID entity.MarketID
	Assets   *big.Int
	OnBehalf common.Address
}

func (op SupplyCollateral) Name() string { return "supply collateral" }

func (op SupplyCollateral) simulate(s *simulation.State, e *env) (*Step, error) {
	params, err := marketParams(s, op.MarketID)
	if err != nil {
		return nil, err
	}
	if _, err := s.SupplyCollateral(op.MarketID, e.adapterAddr(), op.OnBehalf, op.Assets); err != nil {
		return nil, err
	}
	return &Step{
		calls: single(func() (bundler.Call, error) {
			return e.adapter.MorphoSupplyCollateral(params, op.Assets, op.OnBehalf)
		}),
	}, nil
}

// Borrow borrows on OnBehalf's position, which must have authorized the adapter.
type Borrow struct {
	MarketID entity.MarketID
	Assets   *big.Int
	Receiver common.Address
	OnBehalf common.Address
}

func (op Borrow) Name() string { return "borrow" }

func (op Borrow) simulate(s *simulation.State, e *env) (*Step, error) {
	params, err := marketParams(s, op.MarketID)
	if err != nil {
		return nil, err
	}
	if err := requireAuthorized(s, op.OnBehalf); err != nil {
		return nil, err
	}
	shares, err := s.Borrow(op.MarketID, op.OnBehalf, op.Receiver, op.Assets)
	if err != nil {
		return nil, err
	}
	bound, err := mathlib.MinSharePriceE27(op.Assets, shares, e.opts.SlippageTolerance)
	if err != nil {
		return nil, err
	}
	return &Step{
		SharePriceE27: bound,
		calls: single(func() (bundler.Call, error) {
			return e.adapter.MorphoBorrow(params, op.Assets, new(big.Int), bound, op.Receiver)
		}),
	}, nil
}

// Repay repays OnBehalf's debt with the adapter's loan tokens. Exactly one of
// Assets and Shares is set. The max sentinel on Assets repays with the
// adapter's whole balance.
type Repay struct {
	MarketID entity.MarketID
	Assets   *big.Int
	Shares   *big.Int
	OnBehalf common.Address
}

func (op Repay) Name() string { return "repay" }

func (op Repay) simulate(s *simulation.State, e *env) (*Step, error) {
	params, err := marketParams(s, op.MarketID)
	if err != nil {
		return nil, err
	}
	assets, shares := orZero(op.Assets), orZero(op.Shares)
	repaidAssets, repaidShares, err := s.Repay(op.MarketID, e.adapterAddr(), op.OnBehalf, assets, shares)
	if err != nil {
		return nil, err
	}
	bound, err := mathlib.MaxSharePriceE27(repaidAssets, repaidShares, e.opts.SlippageTolerance)
	if err != nil {
		return nil, err
	}
	return &Step{
		SharePriceE27: bound,
		calls: single(func() (bundler.Call, error) {
			return e.adapter.MorphoRepay(params, assets, shares, bound, op.OnBehalf)
		}),
	}, nil
}

// WithdrawCollateral withdraws collateral from OnBehalf's position, which
// must have authorized the adapter.
type WithdrawCollateral struct {
	MarketID entity.MarketID
	Assets   *big.Int
	Receiver common.Address
	OnBehalf common.Address
}

func (op WithdrawCollateral) Name() string { return "withdraw collateral" }

func (op WithdrawCollateral) simulate(s *simulation.State, e *env) (*Step, error) {
	params, err := marketParams(s, op.MarketID)
	if err != nil {
		return nil, err
	}
	if err := requireAuthorized(s, op.OnBehalf); err != nil {
		return nil, err
	}
	if err := s.WithdrawCollateral(op.MarketID, op.OnBehalf, op.Receiver, op.Assets); err != nil {
		return nil, err
	}
	return &Step{
		calls: single(func() (bundler.Call, error) {
			return e.adapter.MorphoWithdrawCollateral(params, op.Assets, op.Receiver)
		}),
	}, nil
}

func requireAuthorized(s *simulation.State, user common.Address) error {
	u, err := s.User(user)
	if err != nil {
		return err
	}
	if !u.IsAdapterAuthorized {
		return simulation.NewError(simulation.ErrUnauthorized, "%s has not authorized the adapter", user.Hex())
	}
	return nil
}

func orZero(x *big.Int) *big.Int {
	if x == nil {
		return new(big.Int)
	}
	return x
}
