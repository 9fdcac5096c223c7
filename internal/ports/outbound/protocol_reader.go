// Package outbound defines the outbound port interfaces.
package outbound

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/stl-lend/internal/domain/entity"
)

// ProtocolReader reads lending protocol entities from chain. Every fetch takes
// the block to read at; nil means latest. Cross-product fetches return one
// entity per pair, in row-major order of their arguments.
type ProtocolReader interface {
	// FetchVaults reads vault state including supply and withdraw queues.
	FetchVaults(ctx context.Context, vaults []common.Address, blockNumber *big.Int) ([]*entity.Vault, error)

	// FetchMarkets reads market params, totals, oracle price and borrow rate.
	FetchMarkets(ctx context.Context, ids []entity.MarketID, blockNumber *big.Int) ([]*entity.Market, error)

	// FetchUsers reads authorization nonce and adapter authorization.
	FetchUsers(ctx context.Context, users []common.Address, blockNumber *big.Int) ([]*entity.User, error)

	// FetchPositions reads every (user, market) position.
	FetchPositions(ctx context.Context, users []common.Address, ids []entity.MarketID, blockNumber *big.Int) ([]*entity.Position, error)

	// FetchTokens reads ERC-20 metadata. The native pseudo-address is allowed.
	FetchTokens(ctx context.Context, tokens []common.Address, blockNumber *big.Int) ([]*entity.Token, error)

	// FetchHoldings reads every (user, token) balance along with the user's
	// allowances to each spender.
	FetchHoldings(ctx context.Context, users, tokens, spenders []common.Address, blockNumber *big.Int) ([]*entity.Holding, error)

	// FetchVaultMarketConfigs reads every (vault, market) cap and public
	// allocator settings.
	FetchVaultMarketConfigs(ctx context.Context, vaults []common.Address, ids []entity.MarketID, blockNumber *big.Int) ([]*entity.VaultMarketConfig, error)

	// FetchVaultUsers reads every (vault, user) role.
	FetchVaultUsers(ctx context.Context, vaults, users []common.Address, blockNumber *big.Int) ([]*entity.VaultUser, error)

	// FetchBlock reads the block header at number, or the latest when nil.
	FetchBlock(ctx context.Context, blockNumber *big.Int) (entity.Block, error)

	// IsContract reports whether account has deployed code.
	IsContract(ctx context.Context, account common.Address) (bool, error)
}
