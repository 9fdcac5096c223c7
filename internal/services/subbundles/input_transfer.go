package subbundles

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/stl-lend/internal/domain/entity"
	"github.com/archon-research/stl-lend/internal/domain/simulation"
	"github.com/archon-research/stl-lend/internal/pkg/blockchain"
	"github.com/archon-research/stl-lend/internal/pkg/bundler"
	"github.com/archon-research/stl-lend/internal/pkg/mathlib"
	"github.com/archon-research/stl-lend/internal/services/operations"
)

var (
	// DefaultNativeGasReserve is the native balance (0.005 ETH) never swept
	// into a wrap, left for gas.
	DefaultNativeGasReserve = big.NewInt(5e15)
	// DefaultRebasingMargin (WAD, 0.03%) inflates the approval of a full
	// transfer of a rebasing token.
	DefaultRebasingMargin = big.NewInt(3e14)
)

type InputTransferConfig struct {
	// TokenIsRebasing forces the rebasing treatment on top of the registry flag.
	TokenIsRebasing bool
	// AllowWrappingNativeAssets lets a wrapped-native transfer draw on the
	// account's native balance.
	AllowWrappingNativeAssets bool
	// NativeGasReserve defaults to DefaultNativeGasReserve.
	NativeGasReserve *big.Int
	// RebasingMargin defaults to DefaultRebasingMargin.
	RebasingMargin *big.Int
}

type InputTransferParams struct {
	Account common.Address
	Token   common.Address
	// Amount is a positive amount or the max sentinel.
	Amount    *big.Int
	Recipient common.Address
	Config    InputTransferConfig
}

// InputTransfer moves Amount of Token from the account to the recipient
// through the general adapter, wrapping native assets to cover a shortfall
// of wrapped-native when allowed. It returns the subbundle and the amount
// moved as observed at build time. state is updated.
func InputTransfer(state *simulation.State, p InputTransferParams) (Subbundle, *big.Int, error) {
	addrs, err := blockchain.GetChainAddresses(state.ChainID)
	if err != nil {
		return Subbundle{}, nil, err
	}
	if p.Amount == nil || p.Amount.Sign() <= 0 {
		return Subbundle{}, nil, fmt.Errorf("transfer amount must be positive")
	}
	reserve := p.Config.NativeGasReserve
	if reserve == nil {
		reserve = DefaultNativeGasReserve
	}
	margin := p.Config.RebasingMargin
	if margin == nil {
		margin = DefaultRebasingMargin
	}
	adapter := bundler.AdapterCalls{Adapter: addrs.GeneralAdapter1}
	isMax := mathlib.IsMax(p.Amount)
	rebasing := p.Config.TokenIsRebasing || addrs.IsRebasing(p.Token)

	tokenBalance := state.Balance(p.Account, p.Token)
	wrapping := p.Config.AllowWrappingNativeAssets && p.Token == addrs.WrappedNative
	usableNative := new(big.Int)
	if wrapping {
		usableNative = mathlib.ZeroFloorSub(state.Balance(p.Account, entity.NativeAddress), reserve)
	}

	var erc20Amount, wrapAmount *big.Int
	if isMax {
		erc20Amount = tokenBalance
		wrapAmount = usableNative
	} else {
		erc20Amount = mathlib.Min(p.Amount, tokenBalance)
		wrapAmount = mathlib.Min(new(big.Int).Sub(p.Amount, erc20Amount), usableNative)
	}
	total := new(big.Int).Add(erc20Amount, wrapAmount)
	if !isMax && total.Cmp(p.Amount) < 0 {
		return Subbundle{}, nil, simulation.NewError(simulation.ErrInsufficientBalance,
			"insufficient %s balance: have %s, need %s", symbol(state, p.Token), total, p.Amount)
	}
	if total.Sign() == 0 {
		return Subbundle{}, nil, simulation.NewError(simulation.ErrInsufficientBalance,
			"no %s balance to transfer", symbol(state, p.Token))
	}

	var out Subbundle
	if wrapAmount.Sign() > 0 {
		if err := state.WrapNative(addrs.WrappedNative, p.Account, p.Recipient, wrapAmount); err != nil {
			return Subbundle{}, nil, err
		}
		wrapped := new(big.Int).Set(wrapAmount)
		out.calls = append(out.calls, func() ([]bundler.Call, error) {
			wrap, err := adapter.WrapNative(wrapped, p.Recipient)
			if err != nil {
				return nil, err
			}
			return []bundler.Call{bundler.NativeTransfer(addrs.GeneralAdapter1, wrapped), wrap}, nil
		})
	}

	if erc20Amount.Sign() > 0 {
		approval := erc20Amount
		transfer := new(big.Int).Set(erc20Amount)
		if isMax && rebasing {
			if approval, err = mathlib.ApplyMargin(erc20Amount, margin); err != nil {
				return Subbundle{}, nil, err
			}
			transfer = mathlib.MaxUint256
		}
		approvals, err := operations.ApprovalRequirements(state, p.Account, p.Token, addrs.GeneralAdapter1, approval)
		if err != nil {
			return Subbundle{}, nil, err
		}
		out.TransactionRequirements = append(out.TransactionRequirements, approvals...)
		if err := state.TransferFrom(p.Token, p.Account, addrs.GeneralAdapter1, p.Recipient, erc20Amount); err != nil {
			return Subbundle{}, nil, err
		}
		out.calls = append(out.calls, func() ([]bundler.Call, error) {
			c, err := adapter.Erc20TransferFrom(p.Token, p.Recipient, transfer)
			if err != nil {
				return nil, err
			}
			return []bundler.Call{c}, nil
		})
	}
	return out, total, nil
}

func symbol(state *simulation.State, token common.Address) string {
	if t, ok := state.Tokens[token]; ok && t.Symbol != "" {
		return t.Symbol
	}
	return token.Hex()
}
