package outbound

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ChainClient is the subset of an Ethereum RPC client used outside multicalls.
// *ethclient.Client satisfies it.
type ChainClient interface {
	// HeaderByNumber returns the header at number, or the latest when nil.
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)

	// CodeAt returns the deployed bytecode at account.
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
}
