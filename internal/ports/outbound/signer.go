package outbound

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// Signer produces EIP-712 signatures for the account executing an action.
type Signer interface {
	Address() common.Address

	// SignTypedData returns the 65-byte [R || S || V] signature with V in {27, 28}.
	SignTypedData(ctx context.Context, typedData apitypes.TypedData) ([]byte, error)
}
