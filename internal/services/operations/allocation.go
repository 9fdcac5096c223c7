package operations

import (
	"context"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/stl-lend/internal/domain/entity"
	"github.com/archon-research/stl-lend/internal/domain/simulation"
	"github.com/archon-research/stl-lend/internal/pkg/bundler"
	"github.com/archon-research/stl-lend/internal/pkg/mathlib"
	"github.com/archon-research/stl-lend/internal/ports/outbound"
)

// Reallocate moves a vault's liquidity into SupplyMarket through the public
// allocator. Fee is paid in native tokens by the account.
type Reallocate struct {
	Vault        common.Address
	Withdrawals  []simulation.Withdrawal
	SupplyMarket entity.MarketID
	Fee          *big.Int
}

func (op Reallocate) Name() string { return "reallocate" }

func (op Reallocate) simulate(s *simulation.State, e *env) (*Step, error) {
	withdrawals := append([]simulation.Withdrawal(nil), op.Withdrawals...)
	sort.Slice(withdrawals, func(i, j int) bool {
		return common.Hash(withdrawals[i].MarketID).Big().Cmp(common.Hash(withdrawals[j].MarketID).Big()) < 0
	})

	encoded := make([]bundler.Withdrawal, 0, len(withdrawals))
	for _, w := range withdrawals {
		params, err := marketParams(s, w.MarketID)
		if err != nil {
			return nil, err
		}
		encoded = append(encoded, bundler.Withdrawal{MarketParams: params, Amount: new(big.Int).Set(w.Amount)})
	}
	supplyParams, err := marketParams(s, op.SupplyMarket)
	if err != nil {
		return nil, err
	}

	if err := s.Reallocate(op.Vault, withdrawals, op.SupplyMarket); err != nil {
		return nil, err
	}
	fee := orZero(op.Fee)
	if fee.Sign() > 0 && s.IsTracked(e.opts.Account, entity.NativeAddress) {
		if err := s.Debit(e.opts.Account, entity.NativeAddress, fee); err != nil {
			return nil, err
		}
	}

	return &Step{
		calls: single(func() (bundler.Call, error) {
			return bundler.ReallocateTo(e.addrs.PublicAllocator, op.Vault, fee, encoded, supplyParams)
		}),
	}, nil
}

// Authorize grants the adapter permission to manage Account's positions.
// Accounts that can sign do it through a signed message submitted inside the
// bundle; contracts send a setAuthorization transaction beforehand.
type Authorize struct {
	Account common.Address
}

func (op Authorize) Name() string { return "authorize adapter" }

func (op Authorize) simulate(s *simulation.State, e *env) (*Step, error) {
	u, err := s.User(op.Account)
	if err != nil {
		return nil, err
	}
	if u.IsAdapterAuthorized {
		return &Step{}, nil
	}
	auth := bundler.Authorization{
		Authorizer:   op.Account,
		Authorized:   e.adapterAddr(),
		IsAuthorized: true,
		Nonce:        new(big.Int).Set(u.Nonce),
		Deadline:     new(big.Int).Set(e.opts.AuthorizationDeadline),
	}
	if err := s.Authorize(op.Account); err != nil {
		return nil, err
	}

	if e.opts.AccountIsContract {
		return &Step{
			transactions: []TransactionRequirement{{
				Name: "Authorize bundler adapter",
				Tx: func() (bundler.Transaction, error) {
					return bundler.SetAuthorization(e.addrs.Morpho, auth.Authorized, true)
				},
			}},
		}, nil
	}

	var sig *bundler.Signature
	typed := bundler.AuthorizationTypedData(e.chainID, e.addrs.Morpho, auth)
	return &Step{
		signatures: []SignatureRequirement{{
			Name: "Authorize bundler adapter",
			Sign: func(ctx context.Context, signer outbound.Signer) error {
				if signer.Address() != op.Account {
					return fmt.Errorf("signer %s cannot sign for %s", signer.Address().Hex(), op.Account.Hex())
				}
				raw, err := signer.SignTypedData(ctx, typed)
				if err != nil {
					return fmt.Errorf("signing authorization: %w", err)
				}
				split, err := bundler.SplitSignature(raw)
				if err != nil {
					return err
				}
				sig = &split
				return nil
			},
		}},
		calls: single(func() (bundler.Call, error) {
			if sig == nil {
				return bundler.Call{}, fmt.Errorf("authorization of %s is not signed", op.Account.Hex())
			}
			return bundler.SetAuthorizationWithSig(e.addrs.Morpho, auth, *sig, true)
		}),
	}, nil
}

// Skim sends whatever the adapter holds of Token to Recipient. The transfer
// tolerates an empty balance.
type Skim struct {
	Token     common.Address
	Recipient common.Address
}

func (op Skim) Name() string { return "skim" }

func (op Skim) simulate(s *simulation.State, e *env) (*Step, error) {
	if balance := s.Balance(e.adapterAddr(), op.Token); balance.Sign() > 0 {
		if err := s.Transfer(op.Token, e.adapterAddr(), op.Recipient, balance); err != nil {
			return nil, err
		}
	}
	return &Step{
		calls: single(func() (bundler.Call, error) {
			c, err := e.adapter.Erc20Transfer(op.Token, op.Recipient, mathlib.MaxUint256)
			if err != nil {
				return bundler.Call{}, err
			}
			c.SkipRevert = true
			return c, nil
		}),
	}, nil
}
