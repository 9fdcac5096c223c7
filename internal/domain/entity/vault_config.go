package entity

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// PublicAllocatorConfig bounds how much liquidity anyone may move in or out of
// a vault's market through the public allocator.
type PublicAllocatorConfig struct {
	MaxIn  *big.Int
	MaxOut *big.Int
}

// VaultMarketConfig is a vault's allocation settings for one market.
type VaultMarketConfig struct {
	Vault    common.Address
	MarketID MarketID
	Cap      *big.Int
	Enabled  bool
	// PublicAllocator is nil when the vault has no public allocator flow caps.
	PublicAllocator *PublicAllocatorConfig
	// PublicAllocatorFee is the native-asset fee charged per reallocation.
	PublicAllocatorFee *big.Int
}

// Clone returns a deep copy.
func (c *VaultMarketConfig) Clone() *VaultMarketConfig {
	out := *c
	out.Cap = copyInt(c.Cap)
	out.PublicAllocatorFee = copyInt(c.PublicAllocatorFee)
	if c.PublicAllocator != nil {
		out.PublicAllocator = &PublicAllocatorConfig{
			MaxIn:  copyInt(c.PublicAllocator.MaxIn),
			MaxOut: copyInt(c.PublicAllocator.MaxOut),
		}
	}
	return &out
}

// VaultUser is a user's role on a vault.
type VaultUser struct {
	Vault       common.Address
	User        common.Address
	IsAllocator bool
}
