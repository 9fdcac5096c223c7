package simulation

import (
	"errors"
	"fmt"
)

// Kinds of simulation failures. Match with errors.Is.
var (
	ErrUnknownEntity          = errors.New("unknown entity")
	ErrInsufficientBalance    = errors.New("insufficient balance")
	ErrInsufficientAllowance  = errors.New("insufficient allowance")
	ErrInsufficientLiquidity  = errors.New("insufficient liquidity")
	ErrInsufficientCollateral = errors.New("insufficient collateral")
	ErrInsufficientPosition   = errors.New("insufficient position")
	ErrZeroShares             = errors.New("zero shares")
	ErrZeroAssets             = errors.New("zero assets")
	ErrVaultCapReached        = errors.New("vault cap reached")
	ErrUnauthorized           = errors.New("unauthorized")
	ErrFlowCapExceeded        = errors.New("flow cap exceeded")
)

// SimulationError is a failure of a hypothetical operation. Message is short
// and safe to show to a user.
type SimulationError struct {
	Kind    error
	Message string
}

func (e *SimulationError) Error() string {
	return e.Message
}

func (e *SimulationError) Unwrap() error {
	return e.Kind
}

// NewError creates a SimulationError of the given kind.
func NewError(kind error, format string, args ...any) *SimulationError {
	return &SimulationError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func newError(kind error, format string, args ...any) *SimulationError {
	return NewError(kind, format, args...)
}
