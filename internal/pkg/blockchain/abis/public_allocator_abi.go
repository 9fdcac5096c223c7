package abis

import "github.com/ethereum/go-ethereum/accounts/abi"

func GetPublicAllocatorABI() (*abi.ABI, error) {
	return ParseABI(`[
		{
			"inputs": [{"name": "vault", "type": "address"}],
			"name": "fee",
			"outputs": [{"name": "", "type": "uint256"}],
			"stateMutability": "view",
			"type": "function"
		},
		{
			"inputs": [
				{"name": "vault", "type": "address"},
				{"name": "id", "type": "bytes32"}
			],
			"name": "flowCaps",
			"outputs": [
				{"name": "maxIn", "type": "uint128"},
				{"name": "maxOut", "type": "uint128"}
			],
			"stateMutability": "view",
			"type": "function"
		},
		{
			"inputs": [
				{"name": "vault", "type": "address"},
				{
					"components": [
						` + marketParamsTuple + `,
						{"name": "amount", "type": "uint128"}
					],
					"name": "withdrawals",
					"type": "tuple[]"
				},
				{
					"components": [
						{"name": "loanToken", "type": "address"},
						{"name": "collateralToken", "type": "address"},
						{"name": "oracle", "type": "address"},
						{"name": "irm", "type": "address"},
						{"name": "lltv", "type": "uint256"}
					],
					"name": "supplyMarketParams",
					"type": "tuple"
				}
			],
			"name": "reallocateTo",
			"outputs": [],
			"stateMutability": "payable",
			"type": "function"
		}
	]`)
}
