package abis

import "github.com/ethereum/go-ethereum/accounts/abi"

// GetGeneralAdapter1ABI returns the adapter entrypoints the bundler routes
// through.
func GetGeneralAdapter1ABI() (*abi.ABI, error) {
	return ParseABI(`[
		{
			"inputs": [
				{"name": "token", "type": "address"},
				{"name": "receiver", "type": "address"},
				{"name": "amount", "type": "uint256"}
			],
			"name": "erc20TransferFrom",
			"outputs": [],
			"stateMutability": "nonpayable",
			"type": "function"
		},
		{
			"inputs": [
				{"name": "token", "type": "address"},
				{"name": "receiver", "type": "address"},
				{"name": "amount", "type": "uint256"}
			],
			"name": "erc20Transfer",
			"outputs": [],
			"stateMutability": "nonpayable",
			"type": "function"
		},
		{
			"inputs": [
				{"name": "receiver", "type": "address"},
				{"name": "amount", "type": "uint256"}
			],
			"name": "nativeTransfer",
			"outputs": [],
			"stateMutability": "nonpayable",
			"type": "function"
		},
		{
			"inputs": [
				{"name": "amount", "type": "uint256"},
				{"name": "receiver", "type": "address"}
			],
			"name": "wrapNative",
			"outputs": [],
			"stateMutability": "nonpayable",
			"type": "function"
		},
		{
			"inputs": [
				{"name": "vault", "type": "address"},
				{"name": "assets", "type": "uint256"},
				{"name": "maxSharePriceE27", "type": "uint256"},
				{"name": "receiver", "type": "address"}
			],
			"name": "erc4626Deposit",
			"outputs": [],
			"stateMutability": "nonpayable",
			"type": "function"
		},
		{
			"inputs": [
				{"name": "vault", "type": "address"},
				{"name": "assets", "type": "uint256"},
				{"name": "minSharePriceE27", "type": "uint256"},
				{"name": "receiver", "type": "address"},
				{"name": "owner", "type": "address"}
			],
			"name": "erc4626Withdraw",
			"outputs": [],
			"stateMutability": "nonpayable",
			"type": "function"
		},
		{
			"inputs": [
				{"name": "vault", "type": "address"},
				{"name": "shares", "type": "uint256"},
				{"name": "minSharePriceE27", "type": "uint256"},
				{"name": "receiver", "type": "address"},
				{"name": "owner", "type": "address"}
			],
			"name": "erc4626Redeem",
			"outputs": [],
			"stateMutability": "nonpayable",
			"type": "function"
		},
		{
			"inputs": [
				` + marketParamsTuple + `,
				{"name": "assets", "type": "uint256"},
				{"name": "onBehalf", "type": "address"},
				{"name": "data", "type": "bytes"}
			],
			"name": "morphoSupplyCollateral",
			"outputs": [],
			"stateMutability": "nonpayable",
			"type": "function"
		},
		{
			"inputs": [
				` + marketParamsTuple + `,
				{"name": "assets", "type": "uint256"},
				{"name": "shares", "type": "uint256"},
				{"name": "minSharePriceE27", "type": "uint256"},
				{"name": "receiver", "type": "address"}
			],
			"name": "morphoBorrow",
			"outputs": [],
			"stateMutability": "nonpayable",
			"type": "function"
		},
		{
			"inputs": [
				` + marketParamsTuple + `,
				{"name": "assets", "type": "uint256"},
				{"name": "shares", "type": "uint256"},
				{"name": "maxSharePriceE27", "type": "uint256"},
				{"name": "onBehalf", "type": "address"},
				{"name": "data", "type": "bytes"}
			],
			"name": "morphoRepay",
			"outputs": [],
			"stateMutability": "nonpayable",
			"type": "function"
		},
		{
			"inputs": [
				` + marketParamsTuple + `,
				{"name": "assets", "type": "uint256"},
				{"name": "receiver", "type": "address"}
			],
			"name": "morphoWithdrawCollateral",
			"outputs": [],
			"stateMutability": "nonpayable",
			"type": "function"
		}
	]`)
}
