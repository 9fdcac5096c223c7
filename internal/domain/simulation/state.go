// Package simulation holds the in-memory snapshot of onchain state that action
// builds reason about, and the hypothetical mutations applied to it.
//
// A State is confined to a single build. Builders clone the initial snapshot
// and mutate the clone; the two are compared to report position changes.
package simulation

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/stl-lend/internal/domain/entity"
)

// PositionKey indexes positions by (user, market).
type PositionKey struct {
	User     common.Address
	MarketID entity.MarketID
}

// HoldingKey indexes holdings by (user, token).
type HoldingKey struct {
	User  common.Address
	Token common.Address
}

// VaultMarketKey indexes vault allocation configs by (vault, market).
type VaultMarketKey struct {
	Vault    common.Address
	MarketID entity.MarketID
}

// VaultUserKey indexes vault roles by (vault, user).
type VaultUserKey struct {
	Vault common.Address
	User  common.Address
}

// State is a consistent snapshot of protocol state at one block.
type State struct {
	ChainID            int64
	Block              entity.Block
	Markets            map[entity.MarketID]*entity.Market
	Vaults             map[common.Address]*entity.Vault
	Users              map[common.Address]*entity.User
	Tokens             map[common.Address]*entity.Token
	Positions          map[PositionKey]*entity.Position
	Holdings           map[HoldingKey]*entity.Holding
	VaultMarketConfigs map[VaultMarketKey]*entity.VaultMarketConfig
	VaultUsers         map[VaultUserKey]*entity.VaultUser
}

// New returns an empty state for a chain at a block.
func New(chainID int64, block entity.Block) *State {
	return &State{
		ChainID:            chainID,
		Block:              block,
		Markets:            make(map[entity.MarketID]*entity.Market),
		Vaults:             make(map[common.Address]*entity.Vault),
		Users:              make(map[common.Address]*entity.User),
		Tokens:             make(map[common.Address]*entity.Token),
		Positions:          make(map[PositionKey]*entity.Position),
		Holdings:           make(map[HoldingKey]*entity.Holding),
		VaultMarketConfigs: make(map[VaultMarketKey]*entity.VaultMarketConfig),
		VaultUsers:         make(map[VaultUserKey]*entity.VaultUser),
	}
}

// Clone returns a deep copy that can be mutated independently.
func (s *State) Clone() *State {
	c := New(s.ChainID, s.Block)
	for k, v := range s.Markets {
		c.Markets[k] = v.Clone()
	}
	for k, v := range s.Vaults {
		c.Vaults[k] = v.Clone()
	}
	for k, v := range s.Users {
		c.Users[k] = v.Clone()
	}
	for k, v := range s.Tokens {
		t := *v
		c.Tokens[k] = &t
	}
	for k, v := range s.Positions {
		c.Positions[k] = v.Clone()
	}
	for k, v := range s.Holdings {
		c.Holdings[k] = v.Clone()
	}
	for k, v := range s.VaultMarketConfigs {
		c.VaultMarketConfigs[k] = v.Clone()
	}
	for k, v := range s.VaultUsers {
		vu := *v
		c.VaultUsers[k] = &vu
	}
	return c
}

// Market returns the market with the given id.
func (s *State) Market(id entity.MarketID) (*entity.Market, error) {
	m, ok := s.Markets[id]
	if !ok {
		return nil, newError(ErrUnknownEntity, "unknown market %s", id.Hex())
	}
	return m, nil
}

// Vault returns the vault at addr.
func (s *State) Vault(addr common.Address) (*entity.Vault, error) {
	v, ok := s.Vaults[addr]
	if !ok {
		return nil, newError(ErrUnknownEntity, "unknown vault %s", addr.Hex())
	}
	return v, nil
}

// User returns the user record for addr.
func (s *State) User(addr common.Address) (*entity.User, error) {
	u, ok := s.Users[addr]
	if !ok {
		return nil, newError(ErrUnknownEntity, "unknown user %s", addr.Hex())
	}
	return u, nil
}

// Token returns token metadata.
func (s *State) Token(addr common.Address) (*entity.Token, error) {
	t, ok := s.Tokens[addr]
	if !ok {
		return nil, newError(ErrUnknownEntity, "unknown token %s", addr.Hex())
	}
	return t, nil
}

// Position returns the user's position in a market.
func (s *State) Position(user common.Address, id entity.MarketID) (*entity.Position, error) {
	p, ok := s.Positions[PositionKey{User: user, MarketID: id}]
	if !ok {
		return nil, newError(ErrUnknownEntity, "unknown position of %s in market %s", user.Hex(), id.Hex())
	}
	return p, nil
}

// Holding returns the user's holding of a token.
func (s *State) Holding(user, token common.Address) (*entity.Holding, error) {
	h, ok := s.Holdings[HoldingKey{User: user, Token: token}]
	if !ok {
		return nil, newError(ErrUnknownEntity, "unknown holding of %s in %s", user.Hex(), s.tokenLabel(token))
	}
	return h, nil
}

// VaultMarketConfig returns a vault's config for a market.
func (s *State) VaultMarketConfig(vault common.Address, id entity.MarketID) (*entity.VaultMarketConfig, error) {
	c, ok := s.VaultMarketConfigs[VaultMarketKey{Vault: vault, MarketID: id}]
	if !ok {
		return nil, newError(ErrUnknownEntity, "unknown config of vault %s for market %s", vault.Hex(), id.Hex())
	}
	return c, nil
}

// PutMarket stores a market under its id.
func (s *State) PutMarket(m *entity.Market) {
	s.Markets[m.ID] = m
}

// PutPosition stores a position.
func (s *State) PutPosition(p *entity.Position) {
	s.Positions[PositionKey{User: p.User, MarketID: p.MarketID}] = p
}

// PutHolding stores a holding.
func (s *State) PutHolding(h *entity.Holding) {
	s.Holdings[HoldingKey{User: h.User, Token: h.Token}] = h
}

// PutVaultMarketConfig stores a vault market config.
func (s *State) PutVaultMarketConfig(c *entity.VaultMarketConfig) {
	s.VaultMarketConfigs[VaultMarketKey{Vault: c.Vault, MarketID: c.MarketID}] = c
}

// PutVaultUser stores a vault user record.
func (s *State) PutVaultUser(u *entity.VaultUser) {
	s.VaultUsers[VaultUserKey{Vault: u.Vault, User: u.User}] = u
}

func (s *State) tokenLabel(token common.Address) string {
	if t, ok := s.Tokens[token]; ok && t.Symbol != "" {
		return t.Symbol
	}
	return token.Hex()
}

// CheckAccrued verifies that no market was updated after the snapshot block.
func (s *State) CheckAccrued() error {
	for id, m := range s.Markets {
		if m.LastUpdate > s.Block.Timestamp {
			return fmt.Errorf("market %s last updated at %d after block timestamp %d", id.Hex(), m.LastUpdate, s.Block.Timestamp)
		}
	}
	return nil
}
