package testutil

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// MockSigner returns a fixed well-formed signature for Addr.
type MockSigner struct {
	Addr common.Address
	Err  error

	mu    sync.Mutex
	Typed []apitypes.TypedData
}

func NewMockSigner(addr common.Address) *MockSigner {
	return &MockSigner{Addr: addr}
}

func (m *MockSigner) Address() common.Address {
	return m.Addr
}

func (m *MockSigner) SignTypedData(_ context.Context, typed apitypes.TypedData) ([]byte, error) {
	m.mu.Lock()
	m.Typed = append(m.Typed, typed)
	m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	sig := make([]byte, 65)
	sig[0], sig[32], sig[64] = 0x01, 0x02, 27
	return sig, nil
}

// SignCount returns the number of signing requests received.
func (m *MockSigner) SignCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Typed)
}
