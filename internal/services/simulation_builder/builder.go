// Package simulation_builder assembles a consistent snapshot of protocol state
// for one action build.
//
// Reads fan out in parallel over the working sets of markets, vaults, users
// and tokens. The reference block is read only after every entity so that its
// timestamp is never older than any market's last update; every market is then
// accrued to that timestamp.
package simulation_builder

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/archon-research/stl-lend/internal/domain/entity"
	"github.com/archon-research/stl-lend/internal/domain/simulation"
	"github.com/archon-research/stl-lend/internal/pkg/blockchain"
	"github.com/archon-research/stl-lend/internal/pkg/mathlib"
	"github.com/archon-research/stl-lend/internal/ports/outbound"
)

// Config holds configuration for the builder.
type Config struct {
	// TargetUtilization (WAD) above which a borrow pulls liquidity from
	// allocating vaults.
	TargetUtilization *big.Int
	Logger            *slog.Logger
}

func configDefaults() Config {
	return Config{
		TargetUtilization: big.NewInt(900_000_000_000_000_000),
		Logger:            slog.Default(),
	}
}

// Input selects what a snapshot covers. Exactly one of Market and Vault is set.
type Input struct {
	ChainID int64
	Account common.Address

	Market *entity.MarketID
	// RequiresPublicReallocation adds AllocatingVaults to a market snapshot.
	RequiresPublicReallocation bool
	AllocatingVaults           []common.Address

	Vault *common.Address

	ExtraTokens []common.Address

	// Block pins every read; nil reads at the latest block.
	Block *big.Int
}

// Builder builds simulation states from a ProtocolReader.
type Builder struct {
	config Config
	reader outbound.ProtocolReader
	logger *slog.Logger
}

// NewBuilder creates a builder reading through reader.
func NewBuilder(config Config, reader outbound.ProtocolReader) (*Builder, error) {
	if reader == nil {
		return nil, fmt.Errorf("reader cannot be nil")
	}
	defaults := configDefaults()
	if config.TargetUtilization == nil {
		config.TargetUtilization = defaults.TargetUtilization
	}
	if config.Logger == nil {
		config.Logger = defaults.Logger
	}
	return &Builder{
		config: config,
		reader: reader,
		logger: config.Logger.With("component", "simulation-builder"),
	}, nil
}

// TargetUtilization returns the configured reallocation threshold.
func (b *Builder) TargetUtilization() *big.Int {
	return new(big.Int).Set(b.config.TargetUtilization)
}

// Build fetches and accrues every entity the action needs.
func (b *Builder) Build(ctx context.Context, in Input) (*simulation.State, error) {
	addrs, err := blockchain.GetChainAddresses(in.ChainID)
	if err != nil {
		return nil, err
	}
	if (in.Market == nil) == (in.Vault == nil) {
		return nil, fmt.Errorf("exactly one of market and vault must be set")
	}

	var marketIDs idSet
	var vaultAddrs addressSet
	if in.Vault != nil {
		vaultAddrs.add(*in.Vault)
	} else {
		marketIDs.add(*in.Market)
		if in.RequiresPublicReallocation {
			vaultAddrs.add(in.AllocatingVaults...)
		}
	}

	// Vault queues decide which markets the fan-out reads.
	var vaults []*entity.Vault
	if len(vaultAddrs.items) > 0 {
		if vaults, err = b.reader.FetchVaults(ctx, vaultAddrs.items, in.Block); err != nil {
			return nil, fmt.Errorf("fetching vaults: %w", err)
		}
	}
	for _, v := range vaults {
		marketIDs.add(v.SupplyQueue...)
		marketIDs.add(v.WithdrawQueue...)
	}

	var userAddrs addressSet
	userAddrs.add(in.Account, addrs.GeneralAdapter1)
	userAddrs.add(vaultAddrs.items...)

	var (
		markets    []*entity.Market
		users      []*entity.User
		positions  []*entity.Position
		configs    []*entity.VaultMarketConfig
		vaultUsers []*entity.VaultUser
		ids        = marketIDs.items
		userList   = userAddrs.items
		vaultList  = vaultAddrs.items
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		markets, err = b.reader.FetchMarkets(gctx, ids, in.Block)
		return wrap("fetching markets", err)
	})
	g.Go(func() (err error) {
		users, err = b.reader.FetchUsers(gctx, userList, in.Block)
		return wrap("fetching users", err)
	})
	g.Go(func() (err error) {
		positions, err = b.reader.FetchPositions(gctx, userList, ids, in.Block)
		return wrap("fetching positions", err)
	})
	if len(vaultList) > 0 {
		g.Go(func() (err error) {
			configs, err = b.reader.FetchVaultMarketConfigs(gctx, vaultList, ids, in.Block)
			return wrap("fetching vault market configs", err)
		})
		g.Go(func() (err error) {
			vaultUsers, err = b.reader.FetchVaultUsers(gctx, vaultList, userList, in.Block)
			return wrap("fetching vault users", err)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	tokenAddrs, err := b.tokenSet(in, addrs, markets, vaults)
	if err != nil {
		return nil, err
	}
	spenders := spenderSet(addrs, vaultList)

	var (
		tokens   []*entity.Token
		holdings []*entity.Holding
	)
	g, gctx = errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		tokens, err = b.reader.FetchTokens(gctx, tokenAddrs, in.Block)
		return wrap("fetching tokens", err)
	})
	g.Go(func() (err error) {
		holdings, err = b.reader.FetchHoldings(gctx, userList, tokenAddrs, spenders, in.Block)
		return wrap("fetching holdings", err)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// The block must be read last: its timestamp bounds every lastUpdate above.
	block, err := b.reader.FetchBlock(ctx, in.Block)
	if err != nil {
		return nil, fmt.Errorf("fetching block: %w", err)
	}

	state := simulation.New(in.ChainID, block)
	for _, m := range markets {
		accrued := m
		if m.LastUpdate < block.Timestamp {
			if accrued, err = m.Accrue(block.Timestamp); err != nil {
				return nil, fmt.Errorf("accruing market %s: %w", m.ID.Hex(), err)
			}
		}
		state.PutMarket(accrued)
	}
	if err := state.CheckAccrued(); err != nil {
		return nil, err
	}
	for _, p := range positions {
		state.PutPosition(p)
	}
	for _, u := range users {
		state.Users[u.Address] = u
	}
	for _, t := range tokens {
		state.Tokens[t.Address] = t
	}
	for _, h := range holdings {
		state.PutHolding(h)
	}
	for _, c := range configs {
		state.PutVaultMarketConfig(c)
	}
	for _, vu := range vaultUsers {
		state.PutVaultUser(vu)
	}
	for _, v := range vaults {
		state.Vaults[v.Address] = b.accrueVault(state, v)
	}

	b.logger.Debug("simulation state built",
		"chain", in.ChainID,
		"block", block.Number,
		"markets", len(state.Markets),
		"vaults", len(state.Vaults),
		"holdings", len(state.Holdings))
	return state, nil
}

// accrueVault recomputes the vault's total assets from the accrued markets.
// Failure keeps the vault as read.
func (b *Builder) accrueVault(state *simulation.State, v *entity.Vault) *entity.Vault {
	positions := make(map[entity.MarketID]*entity.Position, len(v.WithdrawQueue))
	for _, id := range v.WithdrawQueue {
		if p, ok := state.Positions[simulation.PositionKey{User: v.Address, MarketID: id}]; ok {
			positions[id] = p
		}
	}
	accrued, err := v.Accrue(state.Markets, positions)
	if err != nil {
		b.logger.Warn("keeping vault un-accrued", "vault", v.Address.Hex(), "error", err)
		return v
	}
	return accrued
}

// tokenSet derives the tokens whose holdings the action needs.
func (b *Builder) tokenSet(in Input, addrs blockchain.ChainAddresses, markets []*entity.Market, vaults []*entity.Vault) ([]common.Address, error) {
	var set addressSet
	if in.Vault != nil {
		for _, v := range vaults {
			if v.Address == *in.Vault {
				set.add(v.Asset, v.Address)
			}
		}
		set.add(entity.NativeAddress, addrs.WrappedNative)
	} else {
		var target *entity.Market
		for _, m := range markets {
			if m.ID == *in.Market {
				target = m
			}
		}
		if target == nil {
			return nil, fmt.Errorf("market %s missing from fetched markets", in.Market.Hex())
		}
		set.add(target.Params.LoanToken, target.Params.CollateralToken)
		if target.Params.LoanToken == addrs.WrappedNative || target.Params.CollateralToken == addrs.WrappedNative {
			set.add(entity.NativeAddress)
		}
		if in.RequiresPublicReallocation {
			// Reallocation fees are paid in the native asset.
			set.add(entity.NativeAddress)
		}
	}
	set.add(in.ExtraTokens...)
	return set.items, nil
}

// spenderSet lists the allowances a build may inspect: the bundler adapter,
// Permit2 where deployed, and the vaults for direct deposits.
func spenderSet(addrs blockchain.ChainAddresses, vaults []common.Address) []common.Address {
	var set addressSet
	set.add(addrs.GeneralAdapter1)
	if addrs.Permit2 != (common.Address{}) {
		set.add(addrs.Permit2)
	}
	set.add(vaults...)
	return set.items
}

// BuildMarketWithReallocation builds a market snapshot and, when borrowing
// additionalBorrow would push utilization above the target, rebuilds it with
// the allocating vaults included.
func (b *Builder) BuildMarketWithReallocation(ctx context.Context, in Input, additionalBorrow *big.Int) (*simulation.State, error) {
	if in.Market == nil {
		return nil, fmt.Errorf("market must be set")
	}
	in.RequiresPublicReallocation = false
	state, err := b.Build(ctx, in)
	if err != nil {
		return nil, err
	}
	if len(in.AllocatingVaults) == 0 || additionalBorrow == nil || additionalBorrow.Sign() == 0 {
		return state, nil
	}

	market, err := state.Market(*in.Market)
	if err != nil {
		return nil, err
	}
	above, err := exceedsUtilization(market, additionalBorrow, b.config.TargetUtilization)
	if err != nil {
		return nil, err
	}
	if !above {
		return state, nil
	}

	b.logger.Debug("utilization above target, rebuilding with allocating vaults",
		"market", in.Market.Hex(), "vaults", len(in.AllocatingVaults))
	in.RequiresPublicReallocation = true
	in.Block = new(big.Int).SetUint64(state.Block.Number)
	return b.Build(ctx, in)
}

// exceedsUtilization reports whether (borrow + additional) / supply > target.
func exceedsUtilization(m *entity.Market, additional, target *big.Int) (bool, error) {
	borrow := new(big.Int).Add(m.TotalBorrowAssets, additional)
	if m.TotalSupplyAssets.Sign() == 0 {
		return borrow.Sign() > 0, nil
	}
	utilization, err := mathlib.WDivUp(borrow, m.TotalSupplyAssets)
	if err != nil {
		return false, err
	}
	return utilization.Cmp(target) > 0, nil
}

func wrap(msg string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}
