package mathlib

import "math/big"

var (
	// VirtualShares and VirtualAssets offset market share conversions so the
	// first depositor cannot inflate the share price.
	VirtualShares = big.NewInt(1e6)
	VirtualAssets = big.NewInt(1)
)

// ToSharesDown converts assets to shares, rounding down.
func ToSharesDown(assets, totalAssets, totalShares *big.Int) (*big.Int, error) {
	return MulDivDown(assets, new(big.Int).Add(totalShares, VirtualShares), new(big.Int).Add(totalAssets, VirtualAssets))
}

// ToSharesUp converts assets to shares, rounding up.
func ToSharesUp(assets, totalAssets, totalShares *big.Int) (*big.Int, error) {
	return MulDivUp(assets, new(big.Int).Add(totalShares, VirtualShares), new(big.Int).Add(totalAssets, VirtualAssets))
}

// ToAssetsDown converts shares to assets, rounding down.
func ToAssetsDown(shares, totalAssets, totalShares *big.Int) (*big.Int, error) {
	return MulDivDown(shares, new(big.Int).Add(totalAssets, VirtualAssets), new(big.Int).Add(totalShares, VirtualShares))
}

// ToAssetsUp converts shares to assets, rounding up.
func ToAssetsUp(shares, totalAssets, totalShares *big.Int) (*big.Int, error) {
	return MulDivUp(shares, new(big.Int).Add(totalAssets, VirtualAssets), new(big.Int).Add(totalShares, VirtualShares))
}
