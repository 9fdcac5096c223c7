package testutil

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// MockChainClient implements outbound.ChainClient for testing.
type MockChainClient struct {
	mu sync.Mutex

	HeaderByNumberFn func(ctx context.Context, number *big.Int) (*types.Header, error)
	CodeAtFn         func(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)

	// Contracts lists accounts with code when CodeAtFn is nil.
	Contracts map[common.Address]bool

	HeaderCalls int
}

func NewMockChainClient() *MockChainClient {
	return &MockChainClient{Contracts: make(map[common.Address]bool)}
}

func (m *MockChainClient) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	m.mu.Lock()
	m.HeaderCalls++
	m.mu.Unlock()
	if m.HeaderByNumberFn != nil {
		return m.HeaderByNumberFn(ctx, number)
	}
	return nil, errors.New("HeaderByNumber not mocked")
}

func (m *MockChainClient) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	if m.CodeAtFn != nil {
		return m.CodeAtFn(ctx, account, blockNumber)
	}
	if m.Contracts[account] {
		return []byte{0x60, 0x80}, nil
	}
	return nil, nil
}
