// Package entity contains the protocol entities the simulation engine reasons about:
// markets, vaults, positions, holdings and the supporting token/user records.
// Entities are plain values; conversions and accrual mirror the onchain math.
package entity

// Supported chain IDs.
const (
	ChainIDMainnet = 1
	ChainIDBase    = 8453
)

// ChainIDToName maps chain IDs to their names.
var ChainIDToName = map[int64]string{
	ChainIDMainnet: "mainnet",
	ChainIDBase:    "base",
}

// ChainNameToID maps chain names to their chain IDs.
var ChainNameToID = map[string]int64{
	"mainnet": ChainIDMainnet,
	"base":    ChainIDBase,
}
