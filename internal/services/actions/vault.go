package actions

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel/attribute"

	"github.com/archon-research/stl-lend/internal/domain/simulation"
	"github.com/archon-research/stl-lend/internal/pkg/bundler"
	"github.com/archon-research/stl-lend/internal/pkg/mathlib"
	"github.com/archon-research/stl-lend/internal/services/operations"
	"github.com/archon-research/stl-lend/internal/services/position_change"
	"github.com/archon-research/stl-lend/internal/services/simulation_builder"
	"github.com/archon-research/stl-lend/internal/services/subbundles"
)

type VaultSupplyParams struct {
	ChainID int64
	Account common.Address
	Vault   common.Address
	// Amount of vault asset, or the max sentinel for the whole balance.
	Amount *big.Int
	// UseBundler routes the deposit through the bundler with slippage
	// protection. Otherwise the account deposits directly.
	UseBundler bool
	// AllowWrappingNativeAssets covers a wrapped-native shortfall from the
	// native balance. Bundler route only.
	AllowWrappingNativeAssets bool
	// Block pins reads; nil reads the latest block.
	Block *big.Int
}

type VaultWithdrawParams struct {
	ChainID int64
	Account common.Address
	Vault   common.Address
	// Amount of vault asset, or the max sentinel to redeem every share.
	Amount     *big.Int
	UseBundler bool
	Block      *big.Int
}

func (s *Service) vaultSnapshot(ctx context.Context, chainID int64, account, vault common.Address, block *big.Int) (snapshot, error) {
	return s.read(ctx, account, func(ctx context.Context) (*simulation.State, error) {
		return s.builder.Build(ctx, simulation_builder.Input{
			ChainID: chainID,
			Account: account,
			Vault:   &vault,
			Block:   block,
		})
	})
}

// BuildVaultSupplyAction deposits into a vault.
func (s *Service) BuildVaultSupplyAction(ctx context.Context, p VaultSupplyParams) (*Action, error) {
	if err := validateAmount("amount", p.Amount); err != nil {
		return nil, err
	}
	if err := validateDistinct("account", p.Account, "vault", p.Vault); err != nil {
		return nil, err
	}

	attrs := []attribute.KeyValue{
		attribute.Int64("chain.id", p.ChainID),
		attribute.String("vault", p.Vault.Hex()),
		attribute.Bool("bundler", p.UseBundler),
	}
	return s.run(ctx, "vault_supply", attrs, func(ctx context.Context) (*Action, error) {
		snap, err := s.vaultSnapshot(ctx, p.ChainID, p.Account, p.Vault, p.Block)
		if err != nil {
			return nil, err
		}
		working := snap.initial.Clone()

		var action *Action
		if p.UseBundler {
			action, err = s.bundledVaultSupply(working, snap, p)
		} else {
			action, err = directVaultSupply(working, p)
		}
		if err != nil {
			return nil, err
		}

		change, err := position_change.VaultChange(p.Vault, p.Account, snap.initial, working)
		if err != nil {
			return nil, err
		}
		action.PositionChange = &position_change.PositionChange{Vault: change}
		return action, nil
	})
}

func (s *Service) bundledVaultSupply(working *simulation.State, snap snapshot, p VaultSupplyParams) (*Action, error) {
	v, err := working.Vault(p.Vault)
	if err != nil {
		return nil, err
	}
	adapter, err := adapterAddress(working)
	if err != nil {
		return nil, err
	}
	transfer, moved, err := subbundles.InputTransfer(working, subbundles.InputTransferParams{
		Account:   p.Account,
		Token:     v.Asset,
		Amount:    p.Amount,
		Recipient: adapter,
		Config:    s.transferConfig(p.AllowWrappingNativeAssets),
	})
	if err != nil {
		return nil, err
	}

	// A full transfer deposits whatever reached the adapter.
	assets := moved
	if mathlib.IsMax(p.Amount) {
		assets = mathlib.MaxUint256
	}
	deposit, err := subbundles.FromOperations(working, []operations.Operation{
		operations.VaultDeposit{Vault: p.Vault, Assets: assets, Receiver: p.Account},
	}, s.operationOptions(snap, p.Account))
	if err != nil {
		return nil, err
	}
	return bundled(working.ChainID, subbundles.Concat(transfer, deposit)), nil
}

func directVaultSupply(working *simulation.State, p VaultSupplyParams) (*Action, error) {
	v, err := working.Vault(p.Vault)
	if err != nil {
		return nil, err
	}
	amount := p.Amount
	if mathlib.IsMax(amount) {
		amount = working.Balance(p.Account, v.Asset)
	}
	approvals, err := operations.ApprovalRequirements(working, p.Account, v.Asset, p.Vault, amount)
	if err != nil {
		return nil, err
	}
	if _, _, err := working.VaultDeposit(p.Vault, p.Account, p.Account, amount); err != nil {
		return nil, err
	}
	deposit := operations.TransactionRequirement{
		Name: fmt.Sprintf("Deposit into %s", v.Symbol),
		Tx: func() (bundler.Transaction, error) {
			return bundler.VaultDeposit(p.Vault, amount, p.Account)
		},
	}
	return direct(append(approvals, deposit)), nil
}

// BuildVaultWithdrawAction withdraws from a vault. A full withdrawal redeems
// the account's shares so that no dust is left.
func (s *Service) BuildVaultWithdrawAction(ctx context.Context, p VaultWithdrawParams) (*Action, error) {
	if err := validateAmount("amount", p.Amount); err != nil {
		return nil, err
	}
	if err := validateDistinct("account", p.Account, "vault", p.Vault); err != nil {
		return nil, err
	}

	attrs := []attribute.KeyValue{
		attribute.Int64("chain.id", p.ChainID),
		attribute.String("vault", p.Vault.Hex()),
		attribute.Bool("bundler", p.UseBundler),
		attribute.Bool("max", mathlib.IsMax(p.Amount)),
	}
	return s.run(ctx, "vault_withdraw", attrs, func(ctx context.Context) (*Action, error) {
		snap, err := s.vaultSnapshot(ctx, p.ChainID, p.Account, p.Vault, p.Block)
		if err != nil {
			return nil, err
		}
		working := snap.initial.Clone()

		var action *Action
		if p.UseBundler {
			action, err = s.bundledVaultWithdraw(working, snap, p)
		} else {
			action, err = directVaultWithdraw(working, p)
		}
		if err != nil {
			return nil, err
		}

		change, err := position_change.VaultChange(p.Vault, p.Account, snap.initial, working)
		if err != nil {
			return nil, err
		}
		action.PositionChange = &position_change.PositionChange{Vault: change}
		return action, nil
	})
}

func (s *Service) bundledVaultWithdraw(working *simulation.State, snap snapshot, p VaultWithdrawParams) (*Action, error) {
	var op operations.Operation
	if mathlib.IsMax(p.Amount) {
		op = operations.VaultRedeem{
			Vault:    p.Vault,
			Shares:   working.Balance(p.Account, p.Vault),
			Receiver: p.Account,
			Owner:    p.Account,
		}
	} else {
		op = operations.VaultWithdraw{Vault: p.Vault, Assets: p.Amount, Receiver: p.Account, Owner: p.Account}
	}
	sub, err := subbundles.FromOperations(working, []operations.Operation{op}, s.operationOptions(snap, p.Account))
	if err != nil {
		return nil, err
	}
	return bundled(working.ChainID, sub), nil
}

func directVaultWithdraw(working *simulation.State, p VaultWithdrawParams) (*Action, error) {
	v, err := working.Vault(p.Vault)
	if err != nil {
		return nil, err
	}
	if mathlib.IsMax(p.Amount) {
		shares := working.Balance(p.Account, p.Vault)
		if _, _, err := working.VaultRedeem(p.Vault, p.Account, p.Account, p.Account, shares); err != nil {
			return nil, err
		}
		return direct([]operations.TransactionRequirement{{
			Name: fmt.Sprintf("Redeem %s", v.Symbol),
			Tx: func() (bundler.Transaction, error) {
				return bundler.VaultRedeem(p.Vault, shares, p.Account, p.Account)
			},
		}}), nil
	}

	if _, err := working.VaultWithdraw(p.Vault, p.Account, p.Account, p.Account, p.Amount); err != nil {
		return nil, err
	}
	return direct([]operations.TransactionRequirement{{
		Name: fmt.Sprintf("Withdraw from %s", v.Symbol),
		Tx: func() (bundler.Transaction, error) {
			return bundler.VaultWithdraw(p.Vault, p.Amount, p.Account, p.Account)
		},
	}}), nil
}
