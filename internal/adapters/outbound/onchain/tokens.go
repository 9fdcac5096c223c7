package onchain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/stl-lend/internal/domain/entity"
)

// FetchTokens reads ERC-20 metadata. Tokens whose name or symbol cannot be
// decoded as strings keep empty values; decimals are required.
func (r *Reader) FetchTokens(ctx context.Context, tokens []common.Address, blockNumber *big.Int) ([]*entity.Token, error) {
	out := make([]*entity.Token, len(tokens))
	var b batch
	for i, addr := range tokens {
		if addr == entity.NativeAddress {
			out[i] = entity.NativeToken(r.addrs.NativeSymbol)
			continue
		}
		t := &entity.Token{Address: addr}
		out[i] = t
		b.add(addr, r.erc20ABI, "decimals", false, func(values []any) error {
			t.Decimals = values[0].(uint8)
			return nil
		})
		b.add(addr, r.erc20ABI, "symbol", true, func(values []any) error {
			if values != nil {
				t.Symbol = values[0].(string)
			}
			return nil
		})
		b.add(addr, r.erc20ABI, "name", true, func(values []any) error {
			if values != nil {
				t.Name = values[0].(string)
			}
			return nil
		})
	}
	if err := r.run(ctx, &b, blockNumber); err != nil {
		return nil, fmt.Errorf("fetching tokens: %w", err)
	}
	return out, nil
}

// FetchHoldings reads balances of every (user, token), users outermost, with
// allowances to each spender. Native balances come from the multicall
// contract and carry no allowances.
func (r *Reader) FetchHoldings(ctx context.Context, users, tokens, spenders []common.Address, blockNumber *big.Int) ([]*entity.Holding, error) {
	out := make([]*entity.Holding, 0, len(users)*len(tokens))
	var b batch
	for _, user := range users {
		for _, token := range tokens {
			h := entity.NewHolding(user, token, new(big.Int))
			out = append(out, h)
			setBalance := func(values []any) error {
				balance, err := bigOut(values, 0)
				if err != nil {
					return err
				}
				h.Balance = balance
				return nil
			}
			if token == entity.NativeAddress {
				b.add(r.multicaller.Address(), r.multicallABI, "getEthBalance", false, setBalance, user)
				continue
			}
			b.add(token, r.erc20ABI, "balanceOf", false, setBalance, user)
			for _, spender := range spenders {
				b.add(token, r.erc20ABI, "allowance", false, func(values []any) error {
					allowance, err := bigOut(values, 0)
					if err != nil {
						return err
					}
					h.Allowances[spender] = allowance
					return nil
				}, user, spender)
			}
		}
	}
	if err := r.run(ctx, &b, blockNumber); err != nil {
		return nil, fmt.Errorf("fetching holdings: %w", err)
	}
	return out, nil
}
