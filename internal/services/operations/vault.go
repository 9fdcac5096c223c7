package operations

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/stl-lend/internal/domain/simulation"
	"github.com/archon-research/stl-lend/internal/pkg/bundler"
	"github.com/archon-research/stl-lend/internal/pkg/mathlib"
)

// VaultDeposit deposits the adapter's assets into a vault. The max sentinel
// deposits the adapter's whole balance at execution time.
type VaultDeposit struct {
	Vault    common.Address
	Assets   *big.Int
	Receiver common.Address
}

func (op VaultDeposit) Name() string { return "vault deposit" }

func (op VaultDeposit) simulate(s *simulation.State, e *env) (*Step, error) {
	assets, shares, err := s.VaultDeposit(op.Vault, e.adapterAddr(), op.Receiver, op.Assets)
	if err != nil {
		return nil, err
	}
	bound, err := mathlib.MaxSharePriceE27(assets, shares, e.opts.SlippageTolerance)
	if err != nil {
		return nil, err
	}
	return &Step{
		SharePriceE27: bound,
		calls: single(func() (bundler.Call, error) {
			return e.adapter.Erc4626Deposit(op.Vault, op.Assets, bound, op.Receiver)
		}),
	}, nil
}

// VaultWithdraw withdraws assets from Owner's vault shares.
type VaultWithdraw struct {
	Vault    common.Address
	Assets   *big.Int
	Receiver common.Address
	Owner    common.Address
}

func (op VaultWithdraw) Name() string { return "vault withdraw" }

func (op VaultWithdraw) simulate(s *simulation.State, e *env) (*Step, error) {
	v, err := s.Vault(op.Vault)
	if err != nil {
		return nil, err
	}
	if mathlib.IsMax(op.Assets) {
		return nil, fmt.Errorf("max withdraw must be expressed as a redeem")
	}
	quoted, err := v.ToShares(op.Assets, mathlib.RoundUp)
	if err != nil {
		return nil, err
	}
	approvals, err := shareApprovals(s, e, op.Vault, op.Owner, quoted)
	if err != nil {
		return nil, err
	}
	shares, err := s.VaultWithdraw(op.Vault, e.adapterAddr(), op.Owner, op.Receiver, op.Assets)
	if err != nil {
		return nil, err
	}
	bound, err := mathlib.MinSharePriceE27(op.Assets, shares, e.opts.SlippageTolerance)
	if err != nil {
		return nil, err
	}
	return &Step{
		SharePriceE27: bound,
		transactions:  approvals,
		calls: single(func() (bundler.Call, error) {
			return e.adapter.Erc4626Withdraw(op.Vault, op.Assets, bound, op.Receiver, op.Owner)
		}),
	}, nil
}

// VaultRedeem burns Owner's vault shares. The max sentinel redeems the
// owner's share balance, resolved at build time.
type VaultRedeem struct {
	Vault    common.Address
	Shares   *big.Int
	Receiver common.Address
	Owner    common.Address
}

func (op VaultRedeem) Name() string { return "vault redeem" }

func (op VaultRedeem) simulate(s *simulation.State, e *env) (*Step, error) {
	shares := op.Shares
	if mathlib.IsMax(shares) {
		shares = s.Balance(op.Owner, op.Vault)
	}
	approvals, err := shareApprovals(s, e, op.Vault, op.Owner, shares)
	if err != nil {
		return nil, err
	}
	assets, redeemed, err := s.VaultRedeem(op.Vault, e.adapterAddr(), op.Owner, op.Receiver, shares)
	if err != nil {
		return nil, err
	}
	bound, err := mathlib.MinSharePriceE27(assets, redeemed, e.opts.SlippageTolerance)
	if err != nil {
		return nil, err
	}
	return &Step{
		SharePriceE27: bound,
		transactions:  approvals,
		calls: single(func() (bundler.Call, error) {
			return e.adapter.Erc4626Redeem(op.Vault, redeemed, bound, op.Receiver, op.Owner)
		}),
	}, nil
}

// shareApprovals lets the adapter spend owner's vault shares.
func shareApprovals(s *simulation.State, e *env, vault, owner common.Address, shares *big.Int) ([]TransactionRequirement, error) {
	if owner == e.adapterAddr() {
		return nil, nil
	}
	return ApprovalRequirements(s, owner, vault, e.adapterAddr(), shares)
}
