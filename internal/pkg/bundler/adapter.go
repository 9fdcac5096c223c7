package bundler

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/stl-lend/internal/domain/entity"
)

// AdapterCalls encodes GeneralAdapter1 entrypoints for one adapter address.
type AdapterCalls struct {
	Adapter common.Address
}

func (a AdapterCalls) call(method string, args ...any) (Call, error) {
	data, err := pack(adapterABI, method, args...)
	if err != nil {
		return Call{}, err
	}
	return Call{To: a.Adapter, Data: data, Value: new(big.Int)}, nil
}

// Erc20TransferFrom pulls amount of token from the initiator to receiver.
func (a AdapterCalls) Erc20TransferFrom(token, receiver common.Address, amount *big.Int) (Call, error) {
	return a.call("erc20TransferFrom", token, receiver, amount)
}

// Erc20Transfer sends the adapter's token balance to receiver. The max
// sentinel sends the whole balance.
func (a AdapterCalls) Erc20Transfer(token, receiver common.Address, amount *big.Int) (Call, error) {
	return a.call("erc20Transfer", token, receiver, amount)
}

// WrapNative wraps the adapter's native balance and sends it to receiver.
func (a AdapterCalls) WrapNative(amount *big.Int, receiver common.Address) (Call, error) {
	return a.call("wrapNative", amount, receiver)
}

func (a AdapterCalls) Erc4626Deposit(vault common.Address, assets, maxSharePriceE27 *big.Int, receiver common.Address) (Call, error) {
	return a.call("erc4626Deposit", vault, assets, maxSharePriceE27, receiver)
}

func (a AdapterCalls) Erc4626Withdraw(vault common.Address, assets, minSharePriceE27 *big.Int, receiver, owner common.Address) (Call, error) {
	return a.call("erc4626Withdraw", vault, assets, minSharePriceE27, receiver, owner)
}

func (a AdapterCalls) Erc4626Redeem(vault common.Address, shares, minSharePriceE27 *big.Int, receiver, owner common.Address) (Call, error) {
	return a.call("erc4626Redeem", vault, shares, minSharePriceE27, receiver, owner)
}

func (a AdapterCalls) MorphoSupplyCollateral(params entity.MarketParams, assets *big.Int, onBehalf common.Address) (Call, error) {
	return a.call("morphoSupplyCollateral", params, assets, onBehalf, []byte{})
}

// MorphoBorrow borrows either assets or shares; the other must be zero.
func (a AdapterCalls) MorphoBorrow(params entity.MarketParams, assets, shares, minSharePriceE27 *big.Int, receiver common.Address) (Call, error) {
	return a.call("morphoBorrow", params, assets, shares, minSharePriceE27, receiver)
}

// MorphoRepay repays either assets or shares; the other must be zero.
func (a AdapterCalls) MorphoRepay(params entity.MarketParams, assets, shares, maxSharePriceE27 *big.Int, onBehalf common.Address) (Call, error) {
	return a.call("morphoRepay", params, assets, shares, maxSharePriceE27, onBehalf, []byte{})
}

func (a AdapterCalls) MorphoWithdrawCollateral(params entity.MarketParams, assets *big.Int, receiver common.Address) (Call, error) {
	return a.call("morphoWithdrawCollateral", params, assets, receiver)
}

// NativeTransfer forwards native value from the bundler to recipient.
func NativeTransfer(recipient common.Address, amount *big.Int) Call {
	return Call{To: recipient, Data: []byte{}, Value: new(big.Int).Set(amount)}
}

// ReallocateTo calls the public allocator, paying fee in native value.
func ReallocateTo(publicAllocator, vault common.Address, fee *big.Int, withdrawals []Withdrawal, supplyMarket entity.MarketParams) (Call, error) {
	data, err := pack(publicAllocatorABI, "reallocateTo", vault, withdrawals, supplyMarket)
	if err != nil {
		return Call{}, err
	}
	return Call{To: publicAllocator, Data: data, Value: new(big.Int).Set(value(fee))}, nil
}

// SetAuthorizationWithSig submits a signed Morpho authorization. skipRevert
// lets the bundle proceed when the signature was already consumed.
func SetAuthorizationWithSig(morpho common.Address, auth Authorization, sig Signature, skipRevert bool) (Call, error) {
	data, err := pack(morphoABI, "setAuthorizationWithSig", auth, sig)
	if err != nil {
		return Call{}, err
	}
	return Call{To: morpho, Data: data, Value: new(big.Int), SkipRevert: skipRevert}, nil
}
