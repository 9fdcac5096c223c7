package blockchain

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// ConfigurationError reports a chain or address the engine cannot work with.
// It is not recoverable by retrying.
type ConfigurationError struct {
	ChainID int64
	Reason  string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("chain %d: %s", e.ChainID, e.Reason)
}

// ChainAddresses are the protocol deployments on one chain.
type ChainAddresses struct {
	Name                string
	NativeSymbol        string
	Morpho              common.Address
	Bundler3            common.Address
	GeneralAdapter1     common.Address
	PublicAllocator     common.Address
	WrappedNative       common.Address
	// Permit2 is the permit-style allowance contract; zero when not deployed.
	Permit2             common.Address
	RewardsDistributor  common.Address
	// RevokeBeforeApprove lists tokens whose approve reverts when changing a
	// non-zero allowance to another non-zero value.
	RevokeBeforeApprove map[common.Address]bool
	// RebasingTokens lists tokens whose balance grows without transfers.
	RebasingTokens      map[common.Address]bool
}

var ChainRegistry = map[int64]ChainAddresses{
	1: {
		Name:               "mainnet",
		NativeSymbol:       "ETH",
		Morpho:             common.HexToAddress("0xBBBBBbbBBb9cC5e90e3b3Af64bdAF62C37EEFFCb"),
		Bundler3:           common.HexToAddress("0x6566194141eefa99Af43Bb5Aa71460Ca2Dc90245"),
		GeneralAdapter1:    common.HexToAddress("0x4A6c312ec70E8747a587EE860a0353cd42Be0aE0"),
		PublicAllocator:    common.HexToAddress("0xfd32fA2ca22c76dD6E550706Ad913FC6CE91c75D"),
		WrappedNative:      common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"),
		Permit2:            common.HexToAddress("0x000000000022D473030F116dDEE9F6B43aC78BA3"),
		RewardsDistributor: common.HexToAddress("0x3Ef3D8bA38EBe18DB133cEc108f4D14CE00Dd9Ae"),
		RevokeBeforeApprove: map[common.Address]bool{
			common.HexToAddress("0xdAC17F958D2ee523a2206206994597C13D831ec7"): true, // USDT
		},
		RebasingTokens: map[common.Address]bool{
			common.HexToAddress("0xae7ab96520DE3A18E5e111B5EaAb095312D7fE84"): true, // stETH
		},
	},
	8453: {
		Name:                "base",
		NativeSymbol:        "ETH",
		Morpho:              common.HexToAddress("0xBBBBBbbBBb9cC5e90e3b3Af64bdAF62C37EEFFCb"),
		Bundler3:            common.HexToAddress("0x6BFd8137e702540E7A42B74178A4a49Ba43920C4"),
		GeneralAdapter1:     common.HexToAddress("0xb98c948CFA24072e58935BC004a8A7b376AE746A"),
		PublicAllocator:     common.HexToAddress("0xA090dD1a701408Df1d4d0B85b716c87565f90467"),
		WrappedNative:       common.HexToAddress("0x4200000000000000000000000000000000000006"),
		Permit2:             common.HexToAddress("0x000000000022D473030F116dDEE9F6B43aC78BA3"),
		RewardsDistributor:  common.HexToAddress("0x3Ef3D8bA38EBe18DB133cEc108f4D14CE00Dd9Ae"),
		RevokeBeforeApprove: map[common.Address]bool{},
		RebasingTokens:      map[common.Address]bool{},
	},
}

// GetChainAddresses returns the deployments for a chain, failing for chains
// that are unsupported or missing a required contract.
func GetChainAddresses(chainID int64) (ChainAddresses, error) {
	addrs, ok := ChainRegistry[chainID]
	if !ok {
		return ChainAddresses{}, &ConfigurationError{ChainID: chainID, Reason: "unsupported chain"}
	}
	required := map[string]common.Address{
		"morpho":           addrs.Morpho,
		"bundler3":         addrs.Bundler3,
		"general adapter":  addrs.GeneralAdapter1,
		"wrapped native":   addrs.WrappedNative,
		"public allocator": addrs.PublicAllocator,
	}
	for name, addr := range required {
		if addr == (common.Address{}) {
			return ChainAddresses{}, &ConfigurationError{ChainID: chainID, Reason: "missing " + name + " address"}
		}
	}
	return addrs, nil
}

// RequiresRevoke reports whether token must be approved to zero first.
func (c ChainAddresses) RequiresRevoke(token common.Address) bool {
	return c.RevokeBeforeApprove[token]
}

// IsRebasing reports whether token is flagged as rebasing.
func (c ChainAddresses) IsRebasing(token common.Address) bool {
	return c.RebasingTokens[token]
}
