package entity

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// NativeAddress is the pseudo-address used for the chain's native asset.
var NativeAddress = common.HexToAddress("0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE")

// Token holds ERC-20 metadata.
type Token struct {
	Address  common.Address
	Symbol   string
	Name     string
	Decimals uint8
}

// NewToken creates a new Token entity.
func NewToken(address common.Address, symbol, name string, decimals uint8) (*Token, error) {
	if address == (common.Address{}) {
		return nil, fmt.Errorf("token address must not be zero")
	}
	return &Token{
		Address:  address,
		Symbol:   symbol,
		Name:     name,
		Decimals: decimals,
	}, nil
}

// NativeToken returns the native asset entry for a chain.
func NativeToken(symbol string) *Token {
	return &Token{
		Address:  NativeAddress,
		Symbol:   symbol,
		Name:     symbol,
		Decimals: 18,
	}
}

// IsNative reports whether the token is the native asset.
func (t *Token) IsNative() bool {
	return t.Address == NativeAddress
}
