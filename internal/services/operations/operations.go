// Package operations turns abstract protocol operations into bundler calls.
//
// The pipeline has four stages. Populate inserts the implicit steps an
// operation list needs (adapter authorization, public reallocations).
// Finalize appends skims so the adapter ends the bundle empty. Simulate
// applies each operation to the working state in order and records the
// slippage bounds quoted at that point. Encode gathers the resulting
// signature and transaction requirements and the deferred bundler calls.
//
// Every operation is executed by the general adapter inside one Bundler3
// multicall.
package operations

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/stl-lend/internal/domain/entity"
	"github.com/archon-research/stl-lend/internal/domain/simulation"
	"github.com/archon-research/stl-lend/internal/pkg/blockchain"
	"github.com/archon-research/stl-lend/internal/pkg/bundler"
	"github.com/archon-research/stl-lend/internal/ports/outbound"
)

// DefaultAuthorizationValidity is how long a signed authorization stays valid
// after the snapshot block when Options.AuthorizationDeadline is unset.
const DefaultAuthorizationValidity = 3600

// Operation is one protocol operation executed by the adapter.
type Operation interface {
	Name() string
	simulate(s *simulation.State, e *env) (*Step, error)
}

// Options configure a pipeline run.
type Options struct {
	// Account initiates the bundle and owns the positions it touches.
	Account common.Address
	// AccountIsContract routes authorizations through transactions, since
	// contracts cannot sign.
	AccountIsContract bool
	// SlippageTolerance (WAD) widens every share price bound.
	SlippageTolerance *big.Int
	// TargetUtilization (WAD) above which a borrow triggers reallocations.
	// Nil disables reallocation.
	TargetUtilization *big.Int
	// AuthorizationDeadline (unix seconds) of signed authorizations.
	AuthorizationDeadline *big.Int
}

// SignatureRequirement is an off-chain signature the account must produce
// before the bundle can be encoded.
type SignatureRequirement struct {
	Name string
	Sign func(ctx context.Context, signer outbound.Signer) error
}

// TransactionRequirement is a transaction that must land before the bundle.
type TransactionRequirement struct {
	Name string
	Tx   func() (bundler.Transaction, error)
}

// Step is a simulated operation.
type Step struct {
	Operation Operation
	// SharePriceE27 is the slippage bound encoded in the call, nil when the
	// operation carries none.
	SharePriceE27 *big.Int

	signatures   []SignatureRequirement
	transactions []TransactionRequirement
	calls        func() ([]bundler.Call, error)
}

// Bundle is the encoded output of a pipeline run.
type Bundle struct {
	Signatures   []SignatureRequirement
	Transactions []TransactionRequirement
	// Calls builds the bundler calls. It fails until every signature is collected.
	Calls func() ([]bundler.Call, error)
}

type env struct {
	opts    Options
	addrs   blockchain.ChainAddresses
	adapter bundler.AdapterCalls
	chainID int64
}

func newEnv(s *simulation.State, opts Options) (*env, error) {
	addrs, err := blockchain.GetChainAddresses(s.ChainID)
	if err != nil {
		return nil, err
	}
	if opts.Account == (common.Address{}) {
		return nil, fmt.Errorf("account is required")
	}
	if opts.SlippageTolerance == nil {
		opts.SlippageTolerance = new(big.Int)
	}
	if opts.AuthorizationDeadline == nil {
		opts.AuthorizationDeadline = new(big.Int).SetUint64(s.Block.Timestamp + DefaultAuthorizationValidity)
	}
	return &env{
		opts:    opts,
		addrs:   addrs,
		adapter: bundler.AdapterCalls{Adapter: addrs.GeneralAdapter1},
		chainID: s.ChainID,
	}, nil
}

func (e *env) adapterAddr() common.Address {
	return e.addrs.GeneralAdapter1
}

// Simulate applies ops to s in order. s is mutated.
func Simulate(s *simulation.State, ops []Operation, opts Options) ([]Step, error) {
	e, err := newEnv(s, opts)
	if err != nil {
		return nil, err
	}
	steps := make([]Step, 0, len(ops))
	for _, op := range ops {
		step, err := op.simulate(s, e)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op.Name(), err)
		}
		step.Operation = op
		steps = append(steps, *step)
	}
	return steps, nil
}

// Encode collects the requirements of steps, in step order, and defers call
// encoding until signatures are available.
func Encode(steps []Step) Bundle {
	var b Bundle
	builders := make([]func() ([]bundler.Call, error), 0, len(steps))
	for _, step := range steps {
		b.Signatures = append(b.Signatures, step.signatures...)
		b.Transactions = append(b.Transactions, step.transactions...)
		if step.calls != nil {
			builders = append(builders, step.calls)
		}
	}
	b.Calls = func() ([]bundler.Call, error) {
		var calls []bundler.Call
		for _, build := range builders {
			c, err := build()
			if err != nil {
				return nil, err
			}
			calls = append(calls, c...)
		}
		return calls, nil
	}
	return b
}

// Run populates, finalizes, simulates and encodes ops against s.
func Run(s *simulation.State, ops []Operation, opts Options) (Bundle, error) {
	populated, err := Populate(s, ops, opts)
	if err != nil {
		return Bundle{}, err
	}
	finalized, err := Finalize(s, populated, opts)
	if err != nil {
		return Bundle{}, err
	}
	steps, err := Simulate(s, finalized, opts)
	if err != nil {
		return Bundle{}, err
	}
	return Encode(steps), nil
}

func single(build func() (bundler.Call, error)) func() ([]bundler.Call, error) {
	return func() ([]bundler.Call, error) {
		c, err := build()
		if err != nil {
			return nil, err
		}
		return []bundler.Call{c}, nil
	}
}

func marketParams(s *simulation.State, id entity.MarketID) (entity.MarketParams, error) {
	m, err := s.Market(id)
	if err != nil {
		return entity.MarketParams{}, err
	}
	return m.Params, nil
}
