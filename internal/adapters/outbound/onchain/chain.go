package onchain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/stl-lend/internal/domain/entity"
)

// FetchBlock reads the header at blockNumber, or the latest when nil.
func (r *Reader) FetchBlock(ctx context.Context, blockNumber *big.Int) (entity.Block, error) {
	header, err := r.client.HeaderByNumber(ctx, blockNumber)
	if err != nil {
		return entity.Block{}, fmt.Errorf("fetching block header: %w", err)
	}
	if header == nil || header.Number == nil {
		return entity.Block{}, fmt.Errorf("fetching block header: empty response")
	}
	block, err := entity.NewBlock(header.Number.Uint64(), header.Time)
	if err != nil {
		return entity.Block{}, err
	}
	return *block, nil
}

// IsContract reports whether account has code at the latest block.
func (r *Reader) IsContract(ctx context.Context, account common.Address) (bool, error) {
	code, err := r.client.CodeAt(ctx, account, nil)
	if err != nil {
		return false, fmt.Errorf("fetching code of %s: %w", account.Hex(), err)
	}
	return len(code) > 0, nil
}
