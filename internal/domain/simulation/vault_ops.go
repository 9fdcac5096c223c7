package simulation

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/stl-lend/internal/domain/entity"
	"github.com/archon-research/stl-lend/internal/pkg/mathlib"
)

// VaultMaxDeposit returns how much the vault can still accept across the caps
// of its supply queue.
func (s *State) VaultMaxDeposit(vaultAddr common.Address) (*big.Int, error) {
	v, err := s.Vault(vaultAddr)
	if err != nil {
		return nil, err
	}
	total := new(big.Int)
	for _, id := range v.SupplyQueue {
		cfg, err := s.VaultMarketConfig(vaultAddr, id)
		if err != nil {
			return nil, err
		}
		supplied, err := s.SupplyAssets(vaultAddr, id)
		if err != nil {
			return nil, err
		}
		total.Add(total, mathlib.ZeroFloorSub(cfg.Cap, supplied))
	}
	return total, nil
}

// VaultLiquidity returns how much the vault can pay out right now from the
// markets of its withdraw queue.
func (s *State) VaultLiquidity(vaultAddr common.Address) (*big.Int, error) {
	v, err := s.Vault(vaultAddr)
	if err != nil {
		return nil, err
	}
	total := new(big.Int)
	for _, id := range v.WithdrawQueue {
		m, err := s.Market(id)
		if err != nil {
			return nil, err
		}
		supplied, err := s.SupplyAssets(vaultAddr, id)
		if err != nil {
			return nil, err
		}
		total.Add(total, mathlib.Min(supplied, m.Liquidity()))
	}
	return total, nil
}

func (s *State) allocate(v *entity.Vault, assets *big.Int) error {
	remaining := new(big.Int).Set(assets)
	for _, id := range v.SupplyQueue {
		if remaining.Sign() == 0 {
			break
		}
		cfg, err := s.VaultMarketConfig(v.Address, id)
		if err != nil {
			return err
		}
		supplied, err := s.SupplyAssets(v.Address, id)
		if err != nil {
			return err
		}
		toSupply := mathlib.Min(mathlib.ZeroFloorSub(cfg.Cap, supplied), remaining)
		if toSupply.Sign() == 0 {
			continue
		}
		if err := s.MarketSupply(id, v.Address, toSupply); err != nil {
			return err
		}
		remaining.Sub(remaining, toSupply)
	}
	if remaining.Sign() > 0 {
		return newError(ErrVaultCapReached, "vault %s cannot accept %s more: all caps reached", v.Symbol, remaining)
	}
	return nil
}

func (s *State) deallocate(v *entity.Vault, assets *big.Int) error {
	remaining := new(big.Int).Set(assets)
	for _, id := range v.WithdrawQueue {
		if remaining.Sign() == 0 {
			break
		}
		m, err := s.Market(id)
		if err != nil {
			return err
		}
		supplied, err := s.SupplyAssets(v.Address, id)
		if err != nil {
			return err
		}
		toWithdraw := mathlib.Min(mathlib.Min(supplied, m.Liquidity()), remaining)
		if toWithdraw.Sign() == 0 {
			continue
		}
		if err := s.MarketWithdraw(id, v.Address, toWithdraw); err != nil {
			return err
		}
		remaining.Sub(remaining, toWithdraw)
	}
	if remaining.Sign() > 0 {
		return newError(ErrInsufficientLiquidity, "vault %s lacks liquidity for %s", v.Symbol, assets)
	}
	return nil
}

// VaultDeposit deposits assets from `from` into the vault, minting shares to
// receiver. The max sentinel deposits from's whole balance.
// Returns the assets deposited and shares minted.
func (s *State) VaultDeposit(vaultAddr, from, receiver common.Address, assets *big.Int) (*big.Int, *big.Int, error) {
	v, err := s.Vault(vaultAddr)
	if err != nil {
		return nil, nil, err
	}
	amount := s.resolveAmount(from, v.Asset, assets)
	maxDeposit, err := s.VaultMaxDeposit(vaultAddr)
	if err != nil {
		return nil, nil, err
	}
	if amount.Cmp(maxDeposit) > 0 {
		return nil, nil, newError(ErrVaultCapReached, "vault %s can accept at most %s", v.Symbol, maxDeposit)
	}
	shares, err := v.ToShares(amount, mathlib.RoundDown)
	if err != nil {
		return nil, nil, err
	}
	if shares.Sign() == 0 {
		return nil, nil, newError(ErrZeroShares, "deposit of %s into %s would mint zero shares", amount, v.Symbol)
	}
	if err := s.Debit(from, v.Asset, amount); err != nil {
		return nil, nil, err
	}
	if err := s.allocate(v, amount); err != nil {
		return nil, nil, err
	}
	v.TotalAssets.Add(v.TotalAssets, amount)
	v.LastTotalAssets.Add(v.LastTotalAssets, amount)
	v.TotalSupply.Add(v.TotalSupply, shares)
	s.Credit(receiver, vaultAddr, shares)
	return amount, shares, nil
}

// VaultWithdraw withdraws assets from owner's shares to receiver. caller is
// the address executing the withdrawal; when it is not owner it spends the
// owner's share allowance. Returns the shares burned.
func (s *State) VaultWithdraw(vaultAddr, caller, owner, receiver common.Address, assets *big.Int) (*big.Int, error) {
	v, err := s.Vault(vaultAddr)
	if err != nil {
		return nil, err
	}
	if assets.Sign() == 0 {
		return nil, newError(ErrZeroAssets, "cannot withdraw zero assets")
	}
	shares, err := v.ToShares(assets, mathlib.RoundUp)
	if err != nil {
		return nil, err
	}
	if err := s.burnVaultShares(v, caller, owner, assets, shares); err != nil {
		return nil, err
	}
	s.Credit(receiver, v.Asset, assets)
	return shares, nil
}

// VaultRedeem burns owner's shares for assets sent to receiver. The max
// sentinel redeems owner's whole share balance. Returns assets and shares.
func (s *State) VaultRedeem(vaultAddr, caller, owner, receiver common.Address, shares *big.Int) (*big.Int, *big.Int, error) {
	v, err := s.Vault(vaultAddr)
	if err != nil {
		return nil, nil, err
	}
	amount := s.resolveAmount(owner, vaultAddr, shares)
	assets, err := v.ToAssets(amount, mathlib.RoundDown)
	if err != nil {
		return nil, nil, err
	}
	if assets.Sign() == 0 {
		return nil, nil, newError(ErrZeroAssets, "redeeming %s shares of %s returns zero assets", amount, v.Symbol)
	}
	if err := s.burnVaultShares(v, caller, owner, assets, amount); err != nil {
		return nil, nil, err
	}
	s.Credit(receiver, v.Asset, assets)
	return assets, amount, nil
}

func (s *State) burnVaultShares(v *entity.Vault, caller, owner common.Address, assets, shares *big.Int) error {
	if caller != owner {
		if err := s.spendAllowance(v.Address, owner, caller, shares); err != nil {
			return err
		}
	}
	if err := s.Debit(owner, v.Address, shares); err != nil {
		return err
	}
	if err := s.deallocate(v, assets); err != nil {
		return err
	}
	v.TotalSupply = mathlib.ZeroFloorSub(v.TotalSupply, shares)
	v.TotalAssets = mathlib.ZeroFloorSub(v.TotalAssets, assets)
	v.LastTotalAssets = mathlib.ZeroFloorSub(v.LastTotalAssets, assets)
	return nil
}

// Withdrawal is one leg of a public reallocation.
type Withdrawal struct {
	MarketID entity.MarketID
	Amount   *big.Int
}

// Reallocate moves the vault's liquidity from the withdrawal markets into
// the supply market, enforcing caps and public allocator flow caps.
func (s *State) Reallocate(vaultAddr common.Address, withdrawals []Withdrawal, supplyMarket entity.MarketID) error {
	v, err := s.Vault(vaultAddr)
	if err != nil {
		return err
	}
	target, err := s.VaultMarketConfig(vaultAddr, supplyMarket)
	if err != nil {
		return err
	}
	if target.PublicAllocator == nil {
		return newError(ErrFlowCapExceeded, "vault %s has no public allocator flow caps", v.Symbol)
	}

	total := new(big.Int)
	for _, w := range withdrawals {
		if w.MarketID == supplyMarket {
			return newError(ErrFlowCapExceeded, "cannot reallocate market %s into itself", w.MarketID.Hex())
		}
		src, err := s.VaultMarketConfig(vaultAddr, w.MarketID)
		if err != nil {
			return err
		}
		if src.PublicAllocator == nil || src.PublicAllocator.MaxOut.Cmp(w.Amount) < 0 {
			return newError(ErrFlowCapExceeded, "max outflow exceeded for market %s", w.MarketID.Hex())
		}
		if err := s.MarketWithdraw(w.MarketID, vaultAddr, w.Amount); err != nil {
			return err
		}
		src.PublicAllocator.MaxOut.Sub(src.PublicAllocator.MaxOut, w.Amount)
		src.PublicAllocator.MaxIn.Add(src.PublicAllocator.MaxIn, w.Amount)
		total.Add(total, w.Amount)
	}

	if target.PublicAllocator.MaxIn.Cmp(total) < 0 {
		return newError(ErrFlowCapExceeded, "max inflow exceeded for market %s", supplyMarket.Hex())
	}
	supplied, err := s.SupplyAssets(vaultAddr, supplyMarket)
	if err != nil {
		return err
	}
	if new(big.Int).Add(supplied, total).Cmp(target.Cap) > 0 {
		return newError(ErrVaultCapReached, "reallocation exceeds cap of vault %s on market %s", v.Symbol, supplyMarket.Hex())
	}
	if err := s.MarketSupply(supplyMarket, vaultAddr, total); err != nil {
		return err
	}
	target.PublicAllocator.MaxIn.Sub(target.PublicAllocator.MaxIn, total)
	target.PublicAllocator.MaxOut.Add(target.PublicAllocator.MaxOut, total)
	return nil
}
