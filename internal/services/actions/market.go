package actions

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel/attribute"

	"github.com/archon-research/stl-lend/internal/domain/entity"
	"github.com/archon-research/stl-lend/internal/domain/simulation"
	"github.com/archon-research/stl-lend/internal/pkg/blockchain"
	"github.com/archon-research/stl-lend/internal/pkg/mathlib"
	"github.com/archon-research/stl-lend/internal/services/operations"
	"github.com/archon-research/stl-lend/internal/services/position_change"
	"github.com/archon-research/stl-lend/internal/services/simulation_builder"
	"github.com/archon-research/stl-lend/internal/services/subbundles"
)

type MarketSupplyCollateralBorrowParams struct {
	ChainID  int64
	Account  common.Address
	MarketID entity.MarketID
	// CollateralAmount may be zero, or the max sentinel for the whole balance.
	CollateralAmount *big.Int
	// BorrowAmount may be zero. The max sentinel is not supported.
	BorrowAmount *big.Int
	// AllocatingVaults may be reallocated into the market through the public
	// allocator when the borrow would push it above the target utilization.
	AllocatingVaults          []common.Address
	AllowWrappingNativeAssets bool
	Block                     *big.Int
}

type MarketRepayWithdrawCollateralParams struct {
	ChainID  int64
	Account  common.Address
	MarketID entity.MarketID
	// RepayAmount may be zero, or the max sentinel to close the debt.
	RepayAmount *big.Int
	// WithdrawAmount may be zero, or the max sentinel for all collateral.
	WithdrawAmount *big.Int
	Block          *big.Int
}

func marketAttrs(chainID int64, id entity.MarketID) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int64("chain.id", chainID),
		attribute.String("market.id", id.Hex()),
	}
}

// BuildMarketSupplyCollateralBorrowAction supplies collateral then borrows
// against it, in one bundle.
func (s *Service) BuildMarketSupplyCollateralBorrowAction(ctx context.Context, p MarketSupplyCollateralBorrowParams) (*Action, error) {
	if err := validateLegs("collateral amount", p.CollateralAmount, "borrow amount", p.BorrowAmount); err != nil {
		return nil, err
	}
	if mathlib.IsMax(p.BorrowAmount) {
		return nil, invalid("borrow amount", "borrow amount cannot be max")
	}
	if err := validateAddress("account", p.Account); err != nil {
		return nil, err
	}

	return s.run(ctx, "market_supply_collateral_borrow", marketAttrs(p.ChainID, p.MarketID), func(ctx context.Context) (*Action, error) {
		snap, err := s.read(ctx, p.Account, func(ctx context.Context) (*simulation.State, error) {
			return s.builder.BuildMarketWithReallocation(ctx, simulation_builder.Input{
				ChainID:          p.ChainID,
				Account:          p.Account,
				Market:           &p.MarketID,
				AllocatingVaults: p.AllocatingVaults,
				Block:            p.Block,
			}, p.BorrowAmount)
		})
		if err != nil {
			return nil, err
		}
		working := snap.initial.Clone()
		params, err := marketParams(working, p.MarketID)
		if err != nil {
			return nil, err
		}

		var subs []subbundles.Subbundle
		var ops []operations.Operation
		if p.CollateralAmount.Sign() > 0 {
			adapter, err := adapterAddress(working)
			if err != nil {
				return nil, err
			}
			transfer, moved, err := subbundles.InputTransfer(working, subbundles.InputTransferParams{
				Account:   p.Account,
				Token:     params.CollateralToken,
				Amount:    p.CollateralAmount,
				Recipient: adapter,
				Config:    s.transferConfig(p.AllowWrappingNativeAssets),
			})
			if err != nil {
				return nil, err
			}
			subs = append(subs, transfer)
			assets := moved
			if mathlib.IsMax(p.CollateralAmount) {
				assets = mathlib.MaxUint256
			}
			ops = append(ops, operations.SupplyCollateral{MarketID: p.MarketID, Assets: assets, OnBehalf: p.Account})
		}
		if p.BorrowAmount.Sign() > 0 {
			ops = append(ops, operations.Borrow{
				MarketID: p.MarketID,
				Assets:   p.BorrowAmount,
				Receiver: p.Account,
				OnBehalf: p.Account,
			})
		}

		sub, err := subbundles.FromOperations(working, ops, s.operationOptions(snap, p.Account))
		if err != nil {
			return nil, err
		}
		action := bundled(working.ChainID, subbundles.Concat(append(subs, sub)...))
		return s.withMarketChange(action, p.MarketID, p.Account, snap.initial, working)
	})
}

// BuildMarketRepayWithdrawCollateralAction repays debt then withdraws
// collateral, in one bundle. A full repay is expressed in borrow shares so
// the debt closes exactly.
func (s *Service) BuildMarketRepayWithdrawCollateralAction(ctx context.Context, p MarketRepayWithdrawCollateralParams) (*Action, error) {
	if err := validateLegs("repay amount", p.RepayAmount, "withdraw amount", p.WithdrawAmount); err != nil {
		return nil, err
	}
	if err := validateAddress("account", p.Account); err != nil {
		return nil, err
	}

	return s.run(ctx, "market_repay_withdraw_collateral", marketAttrs(p.ChainID, p.MarketID), func(ctx context.Context) (*Action, error) {
		snap, err := s.read(ctx, p.Account, func(ctx context.Context) (*simulation.State, error) {
			return s.builder.Build(ctx, simulation_builder.Input{
				ChainID: p.ChainID,
				Account: p.Account,
				Market:  &p.MarketID,
				Block:   p.Block,
			})
		})
		if err != nil {
			return nil, err
		}
		working := snap.initial.Clone()
		market, err := working.Market(p.MarketID)
		if err != nil {
			return nil, err
		}
		position, err := working.Position(p.Account, p.MarketID)
		if err != nil {
			return nil, err
		}

		var subs []subbundles.Subbundle
		var ops []operations.Operation
		if p.RepayAmount.Sign() > 0 {
			transferAmount := p.RepayAmount
			repay := operations.Repay{MarketID: p.MarketID, Assets: p.RepayAmount, OnBehalf: p.Account}
			if mathlib.IsMax(p.RepayAmount) {
				if transferAmount, err = s.fullRepayTransfer(working, market, position, p.Account); err != nil {
					return nil, err
				}
				repay = operations.Repay{MarketID: p.MarketID, Shares: new(big.Int).Set(position.BorrowShares), OnBehalf: p.Account}
			}
			adapter, err := adapterAddress(working)
			if err != nil {
				return nil, err
			}
			transfer, _, err := subbundles.InputTransfer(working, subbundles.InputTransferParams{
				Account:   p.Account,
				Token:     market.Params.LoanToken,
				Amount:    transferAmount,
				Recipient: adapter,
				Config:    s.transferConfig(false),
			})
			if err != nil {
				return nil, err
			}
			subs = append(subs, transfer)
			ops = append(ops, repay)
		}
		if p.WithdrawAmount.Sign() > 0 {
			assets := p.WithdrawAmount
			if mathlib.IsMax(assets) {
				assets = new(big.Int).Set(position.Collateral)
			}
			ops = append(ops, operations.WithdrawCollateral{
				MarketID: p.MarketID,
				Assets:   assets,
				Receiver: p.Account,
				OnBehalf: p.Account,
			})
		}

		sub, err := subbundles.FromOperations(working, ops, s.operationOptions(snap, p.Account))
		if err != nil {
			return nil, err
		}
		action := bundled(working.ChainID, subbundles.Concat(append(subs, sub)...))
		return s.withMarketChange(action, p.MarketID, p.Account, snap.initial, working)
	})
}

// fullRepayTransfer sizes the loan token pulled in for a full repay: the debt
// plus slippage headroom for interest accrued before execution, capped at the
// wallet balance. The unused part is skimmed back.
func (s *Service) fullRepayTransfer(state *simulation.State, market *entity.Market, position *entity.Position, account common.Address) (*big.Int, error) {
	if position.BorrowShares.Sign() == 0 {
		return nil, simulation.NewError(simulation.ErrInsufficientPosition, "no debt to repay")
	}
	owed, err := market.ToBorrowAssets(position.BorrowShares, mathlib.RoundUp)
	if err != nil {
		return nil, err
	}
	withMargin, err := mathlib.ApplyMargin(owed, s.config.SlippageTolerance)
	if err != nil {
		return nil, err
	}
	balance := state.Balance(account, market.Params.LoanToken)
	if balance.Cmp(owed) < 0 {
		return nil, simulation.NewError(simulation.ErrInsufficientBalance,
			"insufficient balance to repay: have %s, owe %s", balance, owed)
	}
	return mathlib.Min(withMargin, balance), nil
}

func (s *Service) withMarketChange(action *Action, id entity.MarketID, account common.Address, initial, final *simulation.State) (*Action, error) {
	change, err := position_change.MarketChange(id, account, initial, final, s.config.MaxLtvMargin)
	if err != nil {
		return nil, err
	}
	action.PositionChange = &position_change.PositionChange{Market: change}
	return action, nil
}

func marketParams(state *simulation.State, id entity.MarketID) (entity.MarketParams, error) {
	m, err := state.Market(id)
	if err != nil {
		return entity.MarketParams{}, err
	}
	return m.Params, nil
}

func adapterAddress(state *simulation.State) (common.Address, error) {
	addrs, err := blockchain.GetChainAddresses(state.ChainID)
	if err != nil {
		return common.Address{}, err
	}
	return addrs.GeneralAdapter1, nil
}
