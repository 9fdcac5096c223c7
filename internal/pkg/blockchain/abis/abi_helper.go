package abis

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

func ParseABI(abiJSON string) (*abi.ABI, error) {
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

// marketParamsTuple is the MarketParams struct shared by Morpho, the adapter
// and the public allocator.
const marketParamsTuple = `{
	"components": [
		{"name": "loanToken", "type": "address"},
		{"name": "collateralToken", "type": "address"},
		{"name": "oracle", "type": "address"},
		{"name": "irm", "type": "address"},
		{"name": "lltv", "type": "uint256"}
	],
	"name": "marketParams",
	"type": "tuple"
}`
