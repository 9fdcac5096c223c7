package testutil

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/stl-lend/internal/domain/entity"
	"github.com/archon-research/stl-lend/internal/domain/simulation"
	"github.com/archon-research/stl-lend/internal/ports/outbound"
)

var _ outbound.ProtocolReader = (*MockProtocolReader)(nil)

// MockProtocolReader serves reads from a source snapshot standing in for the
// chain. Returned entities are copies, so builds never alias Source.
type MockProtocolReader struct {
	mu sync.Mutex

	Source    *simulation.State
	Contracts map[common.Address]bool

	// Errors makes the named fetch ("FetchMarkets", ...) fail.
	Errors map[string]error

	// Calls records fetch names in completion order.
	Calls []string
	// Blocks records the block argument of every fetch.
	Blocks []*big.Int
}

// NewMockProtocolReader serves reads from source.
func NewMockProtocolReader(source *simulation.State) *MockProtocolReader {
	return &MockProtocolReader{
		Source:    source,
		Contracts: make(map[common.Address]bool),
		Errors:    make(map[string]error),
	}
}

func (m *MockProtocolReader) record(name string, block *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, name)
	m.Blocks = append(m.Blocks, block)
	return m.Errors[name]
}

// CallIndex returns the position of the first call named name, or -1.
func (m *MockProtocolReader) CallIndex(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, c := range m.Calls {
		if c == name {
			return i
		}
	}
	return -1
}

func (m *MockProtocolReader) FetchVaults(_ context.Context, vaults []common.Address, block *big.Int) ([]*entity.Vault, error) {
	if err := m.record("FetchVaults", block); err != nil {
		return nil, err
	}
	out := make([]*entity.Vault, len(vaults))
	for i, addr := range vaults {
		v, err := m.Source.Vault(addr)
		if err != nil {
			return nil, err
		}
		out[i] = v.Clone()
	}
	return out, nil
}

func (m *MockProtocolReader) FetchMarkets(_ context.Context, ids []entity.MarketID, block *big.Int) ([]*entity.Market, error) {
	if err := m.record("FetchMarkets", block); err != nil {
		return nil, err
	}
	out := make([]*entity.Market, len(ids))
	for i, id := range ids {
		mk, err := m.Source.Market(id)
		if err != nil {
			return nil, fmt.Errorf("market %s does not exist", id.Hex())
		}
		out[i] = mk.Clone()
	}
	return out, nil
}

func (m *MockProtocolReader) FetchUsers(_ context.Context, users []common.Address, block *big.Int) ([]*entity.User, error) {
	if err := m.record("FetchUsers", block); err != nil {
		return nil, err
	}
	out := make([]*entity.User, len(users))
	for i, addr := range users {
		if u, ok := m.Source.Users[addr]; ok {
			out[i] = u.Clone()
			continue
		}
		out[i] = &entity.User{Address: addr, Nonce: new(big.Int)}
	}
	return out, nil
}

func (m *MockProtocolReader) FetchPositions(_ context.Context, users []common.Address, ids []entity.MarketID, block *big.Int) ([]*entity.Position, error) {
	if err := m.record("FetchPositions", block); err != nil {
		return nil, err
	}
	out := make([]*entity.Position, 0, len(users)*len(ids))
	for _, user := range users {
		for _, id := range ids {
			if p, ok := m.Source.Positions[simulation.PositionKey{User: user, MarketID: id}]; ok {
				out = append(out, p.Clone())
				continue
			}
			out = append(out, entity.NewEmptyPosition(user, id))
		}
	}
	return out, nil
}

func (m *MockProtocolReader) FetchTokens(_ context.Context, tokens []common.Address, block *big.Int) ([]*entity.Token, error) {
	if err := m.record("FetchTokens", block); err != nil {
		return nil, err
	}
	out := make([]*entity.Token, len(tokens))
	for i, addr := range tokens {
		t, err := m.Source.Token(addr)
		if err != nil {
			return nil, err
		}
		c := *t
		out[i] = &c
	}
	return out, nil
}

func (m *MockProtocolReader) FetchHoldings(_ context.Context, users, tokens, spenders []common.Address, block *big.Int) ([]*entity.Holding, error) {
	if err := m.record("FetchHoldings", block); err != nil {
		return nil, err
	}
	out := make([]*entity.Holding, 0, len(users)*len(tokens))
	for _, user := range users {
		for _, token := range tokens {
			h := entity.NewHolding(user, token, m.Source.Balance(user, token))
			if src, ok := m.Source.Holdings[simulation.HoldingKey{User: user, Token: token}]; ok && token != entity.NativeAddress {
				for _, spender := range spenders {
					h.Allowances[spender] = src.Allowance(spender)
				}
			}
			out = append(out, h)
		}
	}
	return out, nil
}

func (m *MockProtocolReader) FetchVaultMarketConfigs(_ context.Context, vaults []common.Address, ids []entity.MarketID, block *big.Int) ([]*entity.VaultMarketConfig, error) {
	if err := m.record("FetchVaultMarketConfigs", block); err != nil {
		return nil, err
	}
	out := make([]*entity.VaultMarketConfig, 0, len(vaults)*len(ids))
	for _, vault := range vaults {
		for _, id := range ids {
			if c, ok := m.Source.VaultMarketConfigs[simulation.VaultMarketKey{Vault: vault, MarketID: id}]; ok {
				out = append(out, c.Clone())
				continue
			}
			out = append(out, &entity.VaultMarketConfig{Vault: vault, MarketID: id, Cap: new(big.Int), PublicAllocatorFee: new(big.Int)})
		}
	}
	return out, nil
}

func (m *MockProtocolReader) FetchVaultUsers(_ context.Context, vaults, users []common.Address, block *big.Int) ([]*entity.VaultUser, error) {
	if err := m.record("FetchVaultUsers", block); err != nil {
		return nil, err
	}
	out := make([]*entity.VaultUser, 0, len(vaults)*len(users))
	for _, vault := range vaults {
		for _, user := range users {
			vu := &entity.VaultUser{Vault: vault, User: user}
			if src, ok := m.Source.VaultUsers[simulation.VaultUserKey{Vault: vault, User: user}]; ok {
				vu.IsAllocator = src.IsAllocator
			}
			out = append(out, vu)
		}
	}
	return out, nil
}

func (m *MockProtocolReader) FetchBlock(_ context.Context, block *big.Int) (entity.Block, error) {
	if err := m.record("FetchBlock", block); err != nil {
		return entity.Block{}, err
	}
	return m.Source.Block, nil
}

func (m *MockProtocolReader) IsContract(_ context.Context, account common.Address) (bool, error) {
	if err := m.record("IsContract", nil); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Contracts[account], nil
}
