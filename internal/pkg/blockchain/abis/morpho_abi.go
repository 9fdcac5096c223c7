package abis

import "github.com/ethereum/go-ethereum/accounts/abi"

// GetMorphoABI returns the subset of the Morpho singleton used to read
// markets and positions and to manage authorizations.
func GetMorphoABI() (*abi.ABI, error) {
	return ParseABI(`[
		{
			"inputs": [{"name": "id", "type": "bytes32"}],
			"name": "market",
			"outputs": [
				{"name": "totalSupplyAssets", "type": "uint128"},
				{"name": "totalSupplyShares", "type": "uint128"},
				{"name": "totalBorrowAssets", "type": "uint128"},
				{"name": "totalBorrowShares", "type": "uint128"},
				{"name": "lastUpdate", "type": "uint128"},
				{"name": "fee", "type": "uint128"}
			],
			"stateMutability": "view",
			"type": "function"
		},
		{
			"inputs": [{"name": "id", "type": "bytes32"}],
			"name": "idToMarketParams",
			"outputs": [
				{"name": "loanToken", "type": "address"},
				{"name": "collateralToken", "type": "address"},
				{"name": "oracle", "type": "address"},
				{"name": "irm", "type": "address"},
				{"name": "lltv", "type": "uint256"}
			],
			"stateMutability": "view",
			"type": "function"
		},
		{
			"inputs": [
				{"name": "id", "type": "bytes32"},
				{"name": "user", "type": "address"}
			],
			"name": "position",
			"outputs": [
				{"name": "supplyShares", "type": "uint256"},
				{"name": "borrowShares", "type": "uint128"},
				{"name": "collateral", "type": "uint128"}
			],
			"stateMutability": "view",
			"type": "function"
		},
		{
			"inputs": [{"name": "authorizer", "type": "address"}],
			"name": "nonce",
			"outputs": [{"name": "", "type": "uint256"}],
			"stateMutability": "view",
			"type": "function"
		},
		{
			"inputs": [
				{"name": "authorizer", "type": "address"},
				{"name": "authorized", "type": "address"}
			],
			"name": "isAuthorized",
			"outputs": [{"name": "", "type": "bool"}],
			"stateMutability": "view",
			"type": "function"
		},
		{
			"inputs": [
				{"name": "authorized", "type": "address"},
				{"name": "newIsAuthorized", "type": "bool"}
			],
			"name": "setAuthorization",
			"outputs": [],
			"stateMutability": "nonpayable",
			"type": "function"
		},
		{
			"inputs": [
				{
					"components": [
						{"name": "authorizer", "type": "address"},
						{"name": "authorized", "type": "address"},
						{"name": "isAuthorized", "type": "bool"},
						{"name": "nonce", "type": "uint256"},
						{"name": "deadline", "type": "uint256"}
					],
					"name": "authorization",
					"type": "tuple"
				},
				{
					"components": [
						{"name": "v", "type": "uint8"},
						{"name": "r", "type": "bytes32"},
						{"name": "s", "type": "bytes32"}
					],
					"name": "signature",
					"type": "tuple"
				}
			],
			"name": "setAuthorizationWithSig",
			"outputs": [],
			"stateMutability": "nonpayable",
			"type": "function"
		}
	]`)
}

// GetIrmABI returns the interest rate model view used to read borrow rates.
func GetIrmABI() (*abi.ABI, error) {
	return ParseABI(`[
		{
			"inputs": [
				` + marketParamsTuple + `,
				{
					"components": [
						{"name": "totalSupplyAssets", "type": "uint128"},
						{"name": "totalSupplyShares", "type": "uint128"},
						{"name": "totalBorrowAssets", "type": "uint128"},
						{"name": "totalBorrowShares", "type": "uint128"},
						{"name": "lastUpdate", "type": "uint128"},
						{"name": "fee", "type": "uint128"}
					],
					"name": "market",
					"type": "tuple"
				}
			],
			"name": "borrowRateView",
			"outputs": [{"name": "", "type": "uint256"}],
			"stateMutability": "view",
			"type": "function"
		}
	]`)
}

// GetMorphoOracleABI returns the market oracle interface.
func GetMorphoOracleABI() (*abi.ABI, error) {
	return ParseABI(`[
		{
			"inputs": [],
			"name": "price",
			"outputs": [{"name": "", "type": "uint256"}],
			"stateMutability": "view",
			"type": "function"
		}
	]`)
}
