// Package bundler encodes calls routed through the Bundler3 multicall and the
// standalone transactions that surround a bundle (approvals, authorizations,
// direct vault operations, reward claims).
package bundler

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/stl-lend/internal/domain/entity"
)

// Call is one entry of a Bundler3 multicall.
type Call struct {
	To           common.Address
	Data         []byte
	Value        *big.Int
	SkipRevert   bool
	CallbackHash [32]byte
}

// Transaction is a ready-to-send transaction payload.
type Transaction struct {
	To    common.Address
	Data  []byte
	Value *big.Int
}

// Withdrawal is one source market of a public reallocation.
type Withdrawal struct {
	MarketParams entity.MarketParams
	Amount       *big.Int
}

// Authorization is Morpho's signed authorization message.
type Authorization struct {
	Authorizer   common.Address
	Authorized   common.Address
	IsAuthorized bool
	Nonce        *big.Int
	Deadline     *big.Int
}

// Signature is an ECDSA signature split into its components.
type Signature struct {
	V uint8
	R [32]byte
	S [32]byte
}

func value(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
