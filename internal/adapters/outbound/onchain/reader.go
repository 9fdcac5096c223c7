// Package onchain reads lending protocol state through batched eth_calls.
//
// Every fetch is one or two multicall rounds regardless of how many entities
// are requested. Reads that must succeed abort the whole fetch when they
// revert; optional reads (oracle prices, token metadata) degrade to defaults.
package onchain

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/stl-lend/internal/pkg/blockchain"
	"github.com/archon-research/stl-lend/internal/pkg/blockchain/abis"
	"github.com/archon-research/stl-lend/internal/ports/outbound"
)

var _ outbound.ProtocolReader = (*Reader)(nil)

// Reader implements outbound.ProtocolReader for one chain.
type Reader struct {
	multicaller outbound.Multicaller
	client      outbound.ChainClient
	addrs       blockchain.ChainAddresses
	logger      *slog.Logger

	erc20ABI           *abi.ABI
	morphoABI          *abi.ABI
	irmABI             *abi.ABI
	oracleABI          *abi.ABI
	vaultABI           *abi.ABI
	publicAllocatorABI *abi.ABI
	multicallABI       *abi.ABI
}

// NewReader creates a reader for chainID.
func NewReader(multicaller outbound.Multicaller, client outbound.ChainClient, chainID int64, logger *slog.Logger) (*Reader, error) {
	if multicaller == nil {
		return nil, fmt.Errorf("multicaller is required")
	}
	if client == nil {
		return nil, fmt.Errorf("chain client is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	addrs, err := blockchain.GetChainAddresses(chainID)
	if err != nil {
		return nil, err
	}

	r := &Reader{
		multicaller: multicaller,
		client:      client,
		addrs:       addrs,
		logger:      logger.With("component", "onchain-reader", "chain", addrs.Name),
	}
	loaders := []struct {
		target **abi.ABI
		load   func() (*abi.ABI, error)
	}{
		{&r.erc20ABI, abis.GetERC20ABI},
		{&r.morphoABI, abis.GetMorphoABI},
		{&r.irmABI, abis.GetIrmABI},
		{&r.oracleABI, abis.GetMorphoOracleABI},
		{&r.vaultABI, abis.GetMetaMorphoABI},
		{&r.publicAllocatorABI, abis.GetPublicAllocatorABI},
		{&r.multicallABI, abis.GetMulticall3ABI},
	}
	for _, l := range loaders {
		if *l.target, err = l.load(); err != nil {
			return nil, fmt.Errorf("loading ABI: %w", err)
		}
	}
	return r, nil
}

// decodeFunc receives the unpacked outputs of a successful call, or nil when
// an optional call reverted.
type decodeFunc func(values []any) error

type pendingCall struct {
	label    string
	abi      *abi.ABI
	method   string
	optional bool
	decode   decodeFunc
}

// batch accumulates calls for one multicall round.
type batch struct {
	calls   []outbound.Call
	pending []pendingCall
	err     error
}

func (b *batch) add(target common.Address, contractABI *abi.ABI, method string, optional bool, decode decodeFunc, args ...any) {
	if b.err != nil {
		return
	}
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		b.err = fmt.Errorf("packing %s: %w", method, err)
		return
	}
	b.calls = append(b.calls, outbound.Call{Target: target, AllowFailure: true, CallData: data})
	b.pending = append(b.pending, pendingCall{
		label:    fmt.Sprintf("%s on %s", method, target.Hex()),
		abi:      contractABI,
		method:   method,
		optional: optional,
		decode:   decode,
	})
}

func (r *Reader) run(ctx context.Context, b *batch, blockNumber *big.Int) error {
	if b.err != nil {
		return b.err
	}
	if len(b.calls) == 0 {
		return nil
	}

	results, err := r.multicaller.Execute(ctx, b.calls, blockNumber)
	if err != nil {
		return fmt.Errorf("executing multicall of %d calls: %w", len(b.calls), err)
	}
	if len(results) != len(b.calls) {
		return fmt.Errorf("expected %d multicall results, got %d", len(b.calls), len(results))
	}

	for i, res := range results {
		p := b.pending[i]
		if !res.Success {
			if !p.optional {
				return fmt.Errorf("%s reverted", p.label)
			}
			if err := p.decode(nil); err != nil {
				return fmt.Errorf("decoding %s: %w", p.label, err)
			}
			continue
		}
		values, err := p.abi.Unpack(p.method, res.ReturnData)
		if err != nil {
			if !p.optional {
				return fmt.Errorf("unpacking %s: %w", p.label, err)
			}
			r.logger.Debug("ignoring undecodable optional call", "call", p.label, "error", err)
			values = nil
		}
		if err := p.decode(values); err != nil {
			return fmt.Errorf("decoding %s: %w", p.label, err)
		}
	}
	return nil
}

func bigOut(values []any, i int) (*big.Int, error) {
	v, ok := values[i].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("output %d: expected *big.Int, got %T", i, values[i])
	}
	return v, nil
}
