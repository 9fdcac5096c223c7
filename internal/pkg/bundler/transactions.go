package bundler

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

func transaction(to common.Address, data []byte) Transaction {
	return Transaction{To: to, Data: data, Value: new(big.Int)}
}

// Approve sets spender's allowance of token.
func Approve(token, spender common.Address, amount *big.Int) (Transaction, error) {
	data, err := pack(erc20ABI, "approve", spender, amount)
	if err != nil {
		return Transaction{}, err
	}
	return transaction(token, data), nil
}

// SetAuthorization authorizes (or revokes) an address on Morpho from the
// sender. Contract accounts use it instead of a signed authorization.
func SetAuthorization(morpho, authorized common.Address, isAuthorized bool) (Transaction, error) {
	data, err := pack(morphoABI, "setAuthorization", authorized, isAuthorized)
	if err != nil {
		return Transaction{}, err
	}
	return transaction(morpho, data), nil
}

// VaultDeposit deposits directly into an ERC-4626 vault, without slippage
// protection.
func VaultDeposit(vault common.Address, assets *big.Int, receiver common.Address) (Transaction, error) {
	data, err := pack(vaultABI, "deposit", assets, receiver)
	if err != nil {
		return Transaction{}, err
	}
	return transaction(vault, data), nil
}

func VaultWithdraw(vault common.Address, assets *big.Int, receiver, owner common.Address) (Transaction, error) {
	data, err := pack(vaultABI, "withdraw", assets, receiver, owner)
	if err != nil {
		return Transaction{}, err
	}
	return transaction(vault, data), nil
}

func VaultRedeem(vault common.Address, shares *big.Int, receiver, owner common.Address) (Transaction, error) {
	data, err := pack(vaultABI, "redeem", shares, receiver, owner)
	if err != nil {
		return Transaction{}, err
	}
	return transaction(vault, data), nil
}

// Claim claims rewards from the distributor. All slices have equal length.
func Claim(distributor common.Address, users, tokens []common.Address, amounts []*big.Int, proofs [][][32]byte) (Transaction, error) {
	data, err := pack(distributorABI, "claim", users, tokens, amounts, proofs)
	if err != nil {
		return Transaction{}, err
	}
	return transaction(distributor, data), nil
}
