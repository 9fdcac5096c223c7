package onchain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/stl-lend/internal/domain/entity"
)

// FetchVaults reads vault totals and fee settings, then both queues.
func (r *Reader) FetchVaults(ctx context.Context, vaults []common.Address, blockNumber *big.Int) ([]*entity.Vault, error) {
	out := make([]*entity.Vault, len(vaults))
	supplyLens := make([]int64, len(vaults))
	withdrawLens := make([]int64, len(vaults))

	var b batch
	for i, addr := range vaults {
		v := &entity.Vault{Address: addr}
		out[i] = v
		setBig := func(dst **big.Int) decodeFunc {
			return func(values []any) error {
				x, err := bigOut(values, 0)
				if err != nil {
					return err
				}
				*dst = x
				return nil
			}
		}
		setLen := func(dst *int64) decodeFunc {
			return func(values []any) error {
				x, err := bigOut(values, 0)
				if err != nil {
					return err
				}
				if !x.IsInt64() {
					return fmt.Errorf("queue length %s out of range", x)
				}
				*dst = x.Int64()
				return nil
			}
		}

		b.add(addr, r.vaultABI, "asset", false, func(values []any) error {
			v.Asset = values[0].(common.Address)
			return nil
		})
		b.add(addr, r.vaultABI, "totalSupply", false, setBig(&v.TotalSupply))
		b.add(addr, r.vaultABI, "totalAssets", false, setBig(&v.TotalAssets))
		b.add(addr, r.vaultABI, "lastTotalAssets", false, setBig(&v.LastTotalAssets))
		b.add(addr, r.vaultABI, "fee", false, setBig(&v.Fee))
		b.add(addr, r.vaultABI, "feeRecipient", false, func(values []any) error {
			v.FeeRecipient = values[0].(common.Address)
			return nil
		})
		b.add(addr, r.vaultABI, "DECIMALS_OFFSET", false, func(values []any) error {
			v.DecimalsOffset = values[0].(uint8)
			return nil
		})
		b.add(addr, r.vaultABI, "supplyQueueLength", false, setLen(&supplyLens[i]))
		b.add(addr, r.vaultABI, "withdrawQueueLength", false, setLen(&withdrawLens[i]))
		b.add(addr, r.erc20ABI, "name", true, func(values []any) error {
			if values != nil {
				v.Name = values[0].(string)
			}
			return nil
		})
		b.add(addr, r.erc20ABI, "symbol", true, func(values []any) error {
			if values != nil {
				v.Symbol = values[0].(string)
			}
			return nil
		})
	}
	if err := r.run(ctx, &b, blockNumber); err != nil {
		return nil, fmt.Errorf("fetching vaults: %w", err)
	}

	var queues batch
	for i, v := range out {
		v.SupplyQueue = make([]entity.MarketID, supplyLens[i])
		v.WithdrawQueue = make([]entity.MarketID, withdrawLens[i])
		for j := range v.SupplyQueue {
			queues.add(v.Address, r.vaultABI, "supplyQueue", false, func(values []any) error {
				v.SupplyQueue[j] = entity.MarketID(values[0].([32]byte))
				return nil
			}, big.NewInt(int64(j)))
		}
		for j := range v.WithdrawQueue {
			queues.add(v.Address, r.vaultABI, "withdrawQueue", false, func(values []any) error {
				v.WithdrawQueue[j] = entity.MarketID(values[0].([32]byte))
				return nil
			}, big.NewInt(int64(j)))
		}
	}
	if err := r.run(ctx, &queues, blockNumber); err != nil {
		return nil, fmt.Errorf("fetching vault queues: %w", err)
	}
	return out, nil
}

// FetchVaultMarketConfigs reads caps and public allocator settings for every
// (vault, market), vaults outermost. Vaults without a public allocator get a
// nil PublicAllocator.
func (r *Reader) FetchVaultMarketConfigs(ctx context.Context, vaults []common.Address, ids []entity.MarketID, blockNumber *big.Int) ([]*entity.VaultMarketConfig, error) {
	out := make([]*entity.VaultMarketConfig, 0, len(vaults)*len(ids))
	fees := make(map[common.Address]*big.Int, len(vaults))
	allocatorEnabled := make(map[common.Address]bool, len(vaults))

	var b batch
	for _, vault := range vaults {
		b.add(r.addrs.PublicAllocator, r.publicAllocatorABI, "fee", true, func(values []any) error {
			fee := new(big.Int)
			if values != nil {
				fee = values[0].(*big.Int)
			}
			fees[vault] = fee
			return nil
		}, vault)
		b.add(vault, r.vaultABI, "isAllocator", true, func(values []any) error {
			allocatorEnabled[vault] = values != nil && values[0].(bool)
			return nil
		}, r.addrs.PublicAllocator)

		for _, id := range ids {
			cfg := &entity.VaultMarketConfig{Vault: vault, MarketID: id, Cap: new(big.Int)}
			out = append(out, cfg)
			b.add(vault, r.vaultABI, "config", false, func(values []any) error {
				capValue, err := bigOut(values, 0)
				if err != nil {
					return err
				}
				cfg.Cap = capValue
				cfg.Enabled = values[1].(bool)
				return nil
			}, [32]byte(id))
			b.add(r.addrs.PublicAllocator, r.publicAllocatorABI, "flowCaps", true, func(values []any) error {
				if values == nil {
					return nil
				}
				maxIn, err := bigOut(values, 0)
				if err != nil {
					return err
				}
				maxOut, err := bigOut(values, 1)
				if err != nil {
					return err
				}
				cfg.PublicAllocator = &entity.PublicAllocatorConfig{MaxIn: maxIn, MaxOut: maxOut}
				return nil
			}, vault, [32]byte(id))
		}
	}
	if err := r.run(ctx, &b, blockNumber); err != nil {
		return nil, fmt.Errorf("fetching vault market configs: %w", err)
	}

	for _, cfg := range out {
		cfg.PublicAllocatorFee = fees[cfg.Vault]
		if !allocatorEnabled[cfg.Vault] {
			cfg.PublicAllocator = nil
		}
	}
	return out, nil
}

// FetchVaultUsers reads the allocator role of every (vault, user).
func (r *Reader) FetchVaultUsers(ctx context.Context, vaults, users []common.Address, blockNumber *big.Int) ([]*entity.VaultUser, error) {
	out := make([]*entity.VaultUser, 0, len(vaults)*len(users))
	var b batch
	for _, vault := range vaults {
		for _, user := range users {
			vu := &entity.VaultUser{Vault: vault, User: user}
			out = append(out, vu)
			b.add(vault, r.vaultABI, "isAllocator", false, func(values []any) error {
				vu.IsAllocator = values[0].(bool)
				return nil
			}, user)
		}
	}
	if err := r.run(ctx, &b, blockNumber); err != nil {
		return nil, fmt.Errorf("fetching vault users: %w", err)
	}
	return out, nil
}
