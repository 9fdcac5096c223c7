package onchain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/stl-lend/internal/domain/entity"
)

// irmMarket mirrors the Market struct the IRM receives.
type irmMarket struct {
	TotalSupplyAssets *big.Int
	TotalSupplyShares *big.Int
	TotalBorrowAssets *big.Int
	TotalBorrowShares *big.Int
	LastUpdate        *big.Int
	Fee               *big.Int
}

// FetchMarkets reads market totals and params, then oracle prices and IRM
// borrow rates in a second round.
func (r *Reader) FetchMarkets(ctx context.Context, ids []entity.MarketID, blockNumber *big.Int) ([]*entity.Market, error) {
	markets := make([]*entity.Market, len(ids))
	var b batch
	for i, id := range ids {
		m := &entity.Market{ID: id}
		markets[i] = m
		b.add(r.addrs.Morpho, r.morphoABI, "market", false, func(values []any) error {
			outs := make([]*big.Int, 6)
			for j := range outs {
				v, err := bigOut(values, j)
				if err != nil {
					return err
				}
				outs[j] = v
			}
			m.TotalSupplyAssets, m.TotalSupplyShares = outs[0], outs[1]
			m.TotalBorrowAssets, m.TotalBorrowShares = outs[2], outs[3]
			m.LastUpdate = outs[4].Uint64()
			m.Fee = outs[5]
			return nil
		}, [32]byte(id))
		b.add(r.addrs.Morpho, r.morphoABI, "idToMarketParams", false, func(values []any) error {
			lltv, err := bigOut(values, 4)
			if err != nil {
				return err
			}
			m.Params = entity.MarketParams{
				LoanToken:       values[0].(common.Address),
				CollateralToken: values[1].(common.Address),
				Oracle:          values[2].(common.Address),
				Irm:             values[3].(common.Address),
				Lltv:            lltv,
			}
			return nil
		}, [32]byte(id))
	}
	if err := r.run(ctx, &b, blockNumber); err != nil {
		return nil, fmt.Errorf("fetching markets: %w", err)
	}

	var rates batch
	for _, m := range markets {
		if m.LastUpdate == 0 {
			return nil, fmt.Errorf("market %s does not exist", m.ID.Hex())
		}
		m.BorrowRate = new(big.Int)
		if m.Params.Oracle != (common.Address{}) {
			rates.add(m.Params.Oracle, r.oracleABI, "price", true, func(values []any) error {
				if values == nil {
					r.logger.Warn("oracle price unavailable", "market", m.ID.Hex(), "oracle", m.Params.Oracle.Hex())
					return nil
				}
				price, err := bigOut(values, 0)
				if err != nil {
					return err
				}
				m.Price = price
				return nil
			})
		}
		if m.Params.Irm != (common.Address{}) {
			state := irmMarket{
				TotalSupplyAssets: m.TotalSupplyAssets,
				TotalSupplyShares: m.TotalSupplyShares,
				TotalBorrowAssets: m.TotalBorrowAssets,
				TotalBorrowShares: m.TotalBorrowShares,
				LastUpdate:        new(big.Int).SetUint64(m.LastUpdate),
				Fee:               m.Fee,
			}
			rates.add(m.Params.Irm, r.irmABI, "borrowRateView", false, func(values []any) error {
				rate, err := bigOut(values, 0)
				if err != nil {
					return err
				}
				m.BorrowRate = rate
				return nil
			}, m.Params, state)
		}
	}
	if err := r.run(ctx, &rates, blockNumber); err != nil {
		return nil, fmt.Errorf("fetching market prices and rates: %w", err)
	}
	return markets, nil
}

// FetchPositions reads every (user, market) position, users outermost.
func (r *Reader) FetchPositions(ctx context.Context, users []common.Address, ids []entity.MarketID, blockNumber *big.Int) ([]*entity.Position, error) {
	positions := make([]*entity.Position, 0, len(users)*len(ids))
	var b batch
	for _, user := range users {
		for _, id := range ids {
			p := entity.NewEmptyPosition(user, id)
			positions = append(positions, p)
			b.add(r.addrs.Morpho, r.morphoABI, "position", false, func(values []any) error {
				outs := make([]*big.Int, 3)
				for j := range outs {
					v, err := bigOut(values, j)
					if err != nil {
						return err
					}
					outs[j] = v
				}
				p.SupplyShares, p.BorrowShares, p.Collateral = outs[0], outs[1], outs[2]
				return nil
			}, [32]byte(id), user)
		}
	}
	if err := r.run(ctx, &b, blockNumber); err != nil {
		return nil, fmt.Errorf("fetching positions: %w", err)
	}
	return positions, nil
}

// FetchUsers reads each user's authorization nonce and whether the general
// adapter is authorized on their behalf.
func (r *Reader) FetchUsers(ctx context.Context, users []common.Address, blockNumber *big.Int) ([]*entity.User, error) {
	out := make([]*entity.User, len(users))
	var b batch
	for i, addr := range users {
		u := &entity.User{Address: addr, Nonce: new(big.Int)}
		out[i] = u
		b.add(r.addrs.Morpho, r.morphoABI, "nonce", false, func(values []any) error {
			nonce, err := bigOut(values, 0)
			if err != nil {
				return err
			}
			u.Nonce = nonce
			return nil
		}, addr)
		b.add(r.addrs.Morpho, r.morphoABI, "isAuthorized", false, func(values []any) error {
			u.IsAdapterAuthorized = values[0].(bool)
			return nil
		}, addr, r.addrs.GeneralAdapter1)
	}
	if err := r.run(ctx, &b, blockNumber); err != nil {
		return nil, fmt.Errorf("fetching users: %w", err)
	}
	return out, nil
}
