package actions

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/stl-lend/internal/pkg/mathlib"
)

// ValidationError is an invalid input. Message is meant to be shown as is.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// validateAmount accepts the max sentinel or a positive amount.
func validateAmount(field string, amount *big.Int) error {
	if err := validateNonNegative(field, amount); err != nil {
		return err
	}
	if amount.Sign() == 0 {
		return invalid(field, "%s must be greater than 0", field)
	}
	return nil
}

// validateNonNegative accepts zero, the max sentinel or a positive amount.
func validateNonNegative(field string, amount *big.Int) error {
	if amount == nil {
		return invalid(field, "%s is required", field)
	}
	if amount.Sign() < 0 {
		return invalid(field, "%s cannot be negative", field)
	}
	if amount.Cmp(mathlib.MaxUint256) > 0 {
		return invalid(field, "%s is too large", field)
	}
	return nil
}

// validateLegs checks the two amounts of a two-leg market action.
func validateLegs(first string, a *big.Int, second string, b *big.Int) error {
	if err := validateNonNegative(first, a); err != nil {
		return err
	}
	if err := validateNonNegative(second, b); err != nil {
		return err
	}
	if a.Sign() == 0 && b.Sign() == 0 {
		return invalid(first, "%s and %s cannot both be 0", first, second)
	}
	return nil
}

func validateAddress(field string, addr common.Address) error {
	if addr == (common.Address{}) {
		return invalid(field, "%s cannot be the zero address", field)
	}
	return nil
}

func validateDistinct(first string, a common.Address, second string, b common.Address) error {
	if err := validateAddress(first, a); err != nil {
		return err
	}
	if err := validateAddress(second, b); err != nil {
		return err
	}
	if a == b {
		return invalid(second, "%s and %s must be different", first, second)
	}
	return nil
}
