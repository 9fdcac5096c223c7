package operations

import (
	"bytes"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/stl-lend/internal/domain/entity"
	"github.com/archon-research/stl-lend/internal/domain/simulation"
	"github.com/archon-research/stl-lend/internal/pkg/mathlib"
)

// Populate returns ops with the implicit operations they depend on: the
// adapter authorization ahead of the first borrow or collateral withdrawal,
// and public reallocations ahead of borrows that would push a market above
// the target utilization. s is not modified.
func Populate(s *simulation.State, ops []Operation, opts Options) ([]Operation, error) {
	e, err := newEnv(s, opts)
	if err != nil {
		return nil, err
	}
	scratch := s.Clone()
	out := make([]Operation, 0, len(ops))

	apply := func(op Operation) error {
		if _, err := op.simulate(scratch, e); err != nil {
			return fmt.Errorf("%s: %w", op.Name(), err)
		}
		out = append(out, op)
		return nil
	}

	for _, op := range ops {
		var onBehalf common.Address
		switch o := op.(type) {
		case Borrow:
			onBehalf = o.OnBehalf
			if opts.TargetUtilization != nil {
				reallocations, err := planReallocations(scratch, e, o.MarketID, o.Assets, opts.TargetUtilization)
				if err != nil {
					return nil, err
				}
				out = append(out, reallocations...)
			}
		case WithdrawCollateral:
			onBehalf = o.OnBehalf
		}

		if onBehalf != (common.Address{}) {
			u, err := scratch.User(onBehalf)
			if err != nil {
				return nil, err
			}
			if !u.IsAdapterAuthorized {
				if err := apply(Authorize{Account: onBehalf}); err != nil {
					return nil, err
				}
			}
		}
		if err := apply(op); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// planReallocations pulls liquidity into market from the vaults allocating
// to it until borrowing assets keeps utilization at or below target. Each
// planned reallocation is applied to s so that later legs see its effect.
// Vaults are visited in address order and their sources in withdraw queue
// order. Planning stops early when flow caps or spare liquidity run out;
// the borrow itself then decides whether liquidity suffices.
func planReallocations(s *simulation.State, e *env, market entity.MarketID, assets, target *big.Int) ([]Operation, error) {
	m, err := s.Market(market)
	if err != nil {
		return nil, err
	}
	required, err := mathlib.WDivUp(new(big.Int).Add(m.TotalBorrowAssets, assets), target)
	if err != nil {
		return nil, err
	}
	needed := mathlib.ZeroFloorSub(required, m.TotalSupplyAssets)
	if needed.Sign() == 0 {
		return nil, nil
	}

	vaults := make([]common.Address, 0, len(s.Vaults))
	for addr := range s.Vaults {
		vaults = append(vaults, addr)
	}
	sort.Slice(vaults, func(i, j int) bool { return bytes.Compare(vaults[i][:], vaults[j][:]) < 0 })

	var out []Operation
	for _, addr := range vaults {
		if needed.Sign() == 0 {
			break
		}
		cfg, ok := s.VaultMarketConfigs[simulation.VaultMarketKey{Vault: addr, MarketID: market}]
		if !ok || !cfg.Enabled || cfg.PublicAllocator == nil {
			continue
		}
		supplied, err := s.SupplyAssets(addr, market)
		if err != nil {
			return nil, err
		}
		inflow := mathlib.Min(mathlib.Min(cfg.PublicAllocator.MaxIn, mathlib.ZeroFloorSub(cfg.Cap, supplied)), needed)
		if inflow.Sign() == 0 {
			continue
		}

		withdrawals, err := reallocationSources(s, s.Vaults[addr], market, inflow, target)
		if err != nil {
			return nil, err
		}
		if len(withdrawals) == 0 {
			continue
		}
		op := Reallocate{Vault: addr, Withdrawals: withdrawals, SupplyMarket: market, Fee: mathlib.Copy(cfg.PublicAllocatorFee)}
		if _, err := op.simulate(s, e); err != nil {
			return nil, fmt.Errorf("%s: %w", op.Name(), err)
		}
		for _, w := range withdrawals {
			needed = mathlib.ZeroFloorSub(needed, w.Amount)
		}
		out = append(out, op)
	}
	return out, nil
}

// reallocationSources picks up to amount of v's liquidity outside market.
// A source only gives what it holds above the target utilization.
func reallocationSources(s *simulation.State, v *entity.Vault, market entity.MarketID, amount, target *big.Int) ([]simulation.Withdrawal, error) {
	remaining := new(big.Int).Set(amount)
	var out []simulation.Withdrawal
	for _, id := range v.WithdrawQueue {
		if remaining.Sign() == 0 {
			break
		}
		if id == market {
			continue
		}
		cfg, ok := s.VaultMarketConfigs[simulation.VaultMarketKey{Vault: v.Address, MarketID: id}]
		if !ok || cfg.PublicAllocator == nil {
			continue
		}
		src, err := s.Market(id)
		if err != nil {
			return nil, err
		}
		supplied, err := s.SupplyAssets(v.Address, id)
		if err != nil {
			return nil, err
		}
		floor, err := mathlib.WDivUp(src.TotalBorrowAssets, target)
		if err != nil {
			return nil, err
		}
		spare := mathlib.Min(mathlib.ZeroFloorSub(src.TotalSupplyAssets, floor), src.Liquidity())
		take := mathlib.Min(mathlib.Min(cfg.PublicAllocator.MaxOut, supplied), mathlib.Min(spare, remaining))
		if take.Sign() == 0 {
			continue
		}
		out = append(out, simulation.Withdrawal{MarketID: id, Amount: take})
		remaining.Sub(remaining, take)
	}
	return out, nil
}

// Finalize appends a skim to the account for every token the operations
// route through the adapter, so nothing is left behind once the bundle
// executes. Tokens already skimmed explicitly are not skimmed twice.
func Finalize(s *simulation.State, ops []Operation, opts Options) ([]Operation, error) {
	e, err := newEnv(s, opts)
	if err != nil {
		return nil, err
	}
	adapter := e.adapterAddr()

	var tokens []common.Address
	seen := make(map[common.Address]bool)
	add := func(token common.Address) {
		if !seen[token] {
			seen[token] = true
			tokens = append(tokens, token)
		}
	}
	skimmed := make(map[common.Address]bool)

	for _, op := range ops {
		switch o := op.(type) {
		case VaultDeposit:
			v, err := s.Vault(o.Vault)
			if err != nil {
				return nil, err
			}
			add(v.Asset)
		case VaultWithdraw:
			if o.Receiver == adapter {
				v, err := s.Vault(o.Vault)
				if err != nil {
					return nil, err
				}
				add(v.Asset)
			}
		case VaultRedeem:
			if o.Receiver == adapter {
				v, err := s.Vault(o.Vault)
				if err != nil {
					return nil, err
				}
				add(v.Asset)
			}
		case SupplyCollateral:
			params, err := marketParams(s, o.MarketID)
			if err != nil {
				return nil, err
			}
			add(params.CollateralToken)
		case Repay:
			params, err := marketParams(s, o.MarketID)
			if err != nil {
				return nil, err
			}
			add(params.LoanToken)
		case Borrow:
			if o.Receiver == adapter {
				params, err := marketParams(s, o.MarketID)
				if err != nil {
					return nil, err
				}
				add(params.LoanToken)
			}
		case WithdrawCollateral:
			if o.Receiver == adapter {
				params, err := marketParams(s, o.MarketID)
				if err != nil {
					return nil, err
				}
				add(params.CollateralToken)
			}
		case Skim:
			skimmed[o.Token] = true
		}
	}

	out := append([]Operation(nil), ops...)
	for _, token := range tokens {
		if !skimmed[token] {
			out = append(out, Skim{Token: token, Recipient: opts.Account})
		}
	}
	return out, nil
}
