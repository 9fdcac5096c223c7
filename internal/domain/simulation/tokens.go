package simulation

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/stl-lend/internal/domain/entity"
	"github.com/archon-research/stl-lend/internal/pkg/mathlib"
)

// IsTracked reports whether the snapshot holds a balance for (user, token).
func (s *State) IsTracked(user, token common.Address) bool {
	_, ok := s.Holdings[HoldingKey{User: user, Token: token}]
	return ok
}

// Balance returns the user's balance of token, zero when untracked.
func (s *State) Balance(user, token common.Address) *big.Int {
	if h, ok := s.Holdings[HoldingKey{User: user, Token: token}]; ok {
		return new(big.Int).Set(h.Balance)
	}
	return new(big.Int)
}

// Debit removes amount from a tracked holding.
func (s *State) Debit(user, token common.Address, amount *big.Int) error {
	h, err := s.Holding(user, token)
	if err != nil {
		return err
	}
	if h.Balance.Cmp(amount) < 0 {
		return newError(ErrInsufficientBalance, "insufficient %s balance: have %s, need %s",
			s.tokenLabel(token), h.Balance, amount)
	}
	h.Balance.Sub(h.Balance, amount)
	return nil
}

// Credit adds amount to a holding. Untracked recipients are ignored: the
// snapshot only follows the addresses the build cares about.
func (s *State) Credit(user, token common.Address, amount *big.Int) {
	if h, ok := s.Holdings[HoldingKey{User: user, Token: token}]; ok {
		h.Balance.Add(h.Balance, amount)
	}
}

// Transfer moves amount of token from one address to another.
func (s *State) Transfer(token, from, to common.Address, amount *big.Int) error {
	if err := s.Debit(from, token, amount); err != nil {
		return err
	}
	s.Credit(to, token, amount)
	return nil
}

// TransferFrom moves amount on behalf of owner, spending spender's allowance.
func (s *State) TransferFrom(token, owner, spender, to common.Address, amount *big.Int) error {
	if err := s.spendAllowance(token, owner, spender, amount); err != nil {
		return err
	}
	return s.Transfer(token, owner, to, amount)
}

func (s *State) spendAllowance(token, owner, spender common.Address, amount *big.Int) error {
	h, err := s.Holding(owner, token)
	if err != nil {
		return err
	}
	allowance := h.Allowance(spender)
	if mathlib.IsMax(allowance) {
		return nil
	}
	if allowance.Cmp(amount) < 0 {
		return newError(ErrInsufficientAllowance, "insufficient %s allowance for %s: have %s, need %s",
			s.tokenLabel(token), spender.Hex(), allowance, amount)
	}
	h.Allowances[spender] = allowance.Sub(allowance, amount)
	return nil
}

// Approve sets owner's allowance of token to spender.
func (s *State) Approve(owner, token, spender common.Address, amount *big.Int) error {
	h, err := s.Holding(owner, token)
	if err != nil {
		return err
	}
	h.Allowances[spender] = new(big.Int).Set(amount)
	return nil
}

// WrapNative turns from's native balance into wrapped tokens held by to.
func (s *State) WrapNative(wrapped, from, to common.Address, amount *big.Int) error {
	if err := s.Debit(from, entity.NativeAddress, amount); err != nil {
		return err
	}
	s.Credit(to, wrapped, amount)
	return nil
}

// Authorize marks the adapter as authorized to manage user's positions and
// consumes one authorization nonce.
func (s *State) Authorize(user common.Address) error {
	u, err := s.User(user)
	if err != nil {
		return err
	}
	u.IsAdapterAuthorized = true
	u.Nonce = new(big.Int).Add(u.Nonce, big.NewInt(1))
	return nil
}

// resolveAmount resolves the max sentinel to the holder's balance.
func (s *State) resolveAmount(holder, token common.Address, amount *big.Int) *big.Int {
	if mathlib.IsMax(amount) {
		return s.Balance(holder, token)
	}
	return new(big.Int).Set(amount)
}
