// Package subbundles groups the requirements and bundler calls of one step
// of an action. Subbundles are built against a working simulation state in
// execution order, so each one observes the effects of the previous ones.
package subbundles

import (
	"github.com/archon-research/stl-lend/internal/domain/simulation"
	"github.com/archon-research/stl-lend/internal/pkg/bundler"
	"github.com/archon-research/stl-lend/internal/services/operations"
)

// Subbundle is an ordered group of requirements and deferred bundler calls.
type Subbundle struct {
	SignatureRequirements   []operations.SignatureRequirement
	TransactionRequirements []operations.TransactionRequirement

	calls []func() ([]bundler.Call, error)
}

// BundlerCalls encodes the calls of the subbundle, in order.
func (s Subbundle) BundlerCalls() ([]bundler.Call, error) {
	var out []bundler.Call
	for _, build := range s.calls {
		c, err := build()
		if err != nil {
			return nil, err
		}
		out = append(out, c...)
	}
	return out, nil
}

// IsEmpty reports whether the subbundle requires and does nothing.
func (s Subbundle) IsEmpty() bool {
	return len(s.SignatureRequirements) == 0 && len(s.TransactionRequirements) == 0 && len(s.calls) == 0
}

// Concat joins subbundles, keeping requirements and calls in order.
func Concat(subs ...Subbundle) Subbundle {
	var out Subbundle
	for _, s := range subs {
		out.SignatureRequirements = append(out.SignatureRequirements, s.SignatureRequirements...)
		out.TransactionRequirements = append(out.TransactionRequirements, s.TransactionRequirements...)
		out.calls = append(out.calls, s.calls...)
	}
	return out
}

// FromOperations runs ops through the operation pipeline against state,
// which ends up reflecting every operation.
func FromOperations(state *simulation.State, ops []operations.Operation, opts operations.Options) (Subbundle, error) {
	bundle, err := operations.Run(state, ops, opts)
	if err != nil {
		return Subbundle{}, err
	}
	return Subbundle{
		SignatureRequirements:   bundle.Signatures,
		TransactionRequirements: bundle.Transactions,
		calls:                   []func() ([]bundler.Call, error){bundle.Calls},
	}, nil
}
