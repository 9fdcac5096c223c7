package abis

import "github.com/ethereum/go-ethereum/accounts/abi"

func GetBundler3ABI() (*abi.ABI, error) {
	return ParseABI(`[
		{
			"inputs": [
				{
					"components": [
						{"name": "to", "type": "address"},
						{"name": "data", "type": "bytes"},
						{"name": "value", "type": "uint256"},
						{"name": "skipRevert", "type": "bool"},
						{"name": "callbackHash", "type": "bytes32"}
					],
					"name": "bundle",
					"type": "tuple[]"
				}
			],
			"name": "multicall",
			"outputs": [],
			"stateMutability": "payable",
			"type": "function"
		}
	]`)
}
