package abis

import "github.com/ethereum/go-ethereum/accounts/abi"

// GetMerklDistributorABI returns the rewards distributor claim entrypoint.
func GetMerklDistributorABI() (*abi.ABI, error) {
	return ParseABI(`[
		{
			"inputs": [
				{"name": "users", "type": "address[]"},
				{"name": "tokens", "type": "address[]"},
				{"name": "amounts", "type": "uint256[]"},
				{"name": "proofs", "type": "bytes32[][]"}
			],
			"name": "claim",
			"outputs": [],
			"stateMutability": "nonpayable",
			"type": "function"
		}
	]`)
}
