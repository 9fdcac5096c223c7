package abis

import "github.com/ethereum/go-ethereum/accounts/abi"

// GetMetaMorphoABI returns the vault views and ERC-4626 entrypoints. ERC-20
// views (name, symbol, balanceOf, allowance) come from GetERC20ABI.
func GetMetaMorphoABI() (*abi.ABI, error) {
	return ParseABI(`[
		{"inputs": [], "name": "asset", "outputs": [{"name": "", "type": "address"}], "stateMutability": "view", "type": "function"},
		{"inputs": [], "name": "totalSupply", "outputs": [{"name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
		{"inputs": [], "name": "totalAssets", "outputs": [{"name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
		{"inputs": [], "name": "lastTotalAssets", "outputs": [{"name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
		{"inputs": [], "name": "fee", "outputs": [{"name": "", "type": "uint96"}], "stateMutability": "view", "type": "function"},
		{"inputs": [], "name": "feeRecipient", "outputs": [{"name": "", "type": "address"}], "stateMutability": "view", "type": "function"},
		{"inputs": [], "name": "DECIMALS_OFFSET", "outputs": [{"name": "", "type": "uint8"}], "stateMutability": "view", "type": "function"},
		{"inputs": [], "name": "supplyQueueLength", "outputs": [{"name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
		{"inputs": [], "name": "withdrawQueueLength", "outputs": [{"name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
		{"inputs": [{"name": "", "type": "uint256"}], "name": "supplyQueue", "outputs": [{"name": "", "type": "bytes32"}], "stateMutability": "view", "type": "function"},
		{"inputs": [{"name": "", "type": "uint256"}], "name": "withdrawQueue", "outputs": [{"name": "", "type": "bytes32"}], "stateMutability": "view", "type": "function"},
		{
			"inputs": [{"name": "", "type": "bytes32"}],
			"name": "config",
			"outputs": [
				{"name": "cap", "type": "uint184"},
				{"name": "enabled", "type": "bool"},
				{"name": "removableAt", "type": "uint64"}
			],
			"stateMutability": "view",
			"type": "function"
		},
		{"inputs": [{"name": "", "type": "address"}], "name": "isAllocator", "outputs": [{"name": "", "type": "bool"}], "stateMutability": "view", "type": "function"},
		{
			"inputs": [
				{"name": "assets", "type": "uint256"},
				{"name": "receiver", "type": "address"}
			],
			"name": "deposit",
			"outputs": [{"name": "shares", "type": "uint256"}],
			"stateMutability": "nonpayable",
			"type": "function"
		},
		{
			"inputs": [
				{"name": "assets", "type": "uint256"},
				{"name": "receiver", "type": "address"},
				{"name": "owner", "type": "address"}
			],
			"name": "withdraw",
			"outputs": [{"name": "shares", "type": "uint256"}],
			"stateMutability": "nonpayable",
			"type": "function"
		},
		{
			"inputs": [
				{"name": "shares", "type": "uint256"},
				{"name": "receiver", "type": "address"},
				{"name": "owner", "type": "address"}
			],
			"name": "redeem",
			"outputs": [{"name": "assets", "type": "uint256"}],
			"stateMutability": "nonpayable",
			"type": "function"
		}
	]`)
}
