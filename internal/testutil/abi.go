package testutil

import (
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"

	"github.com/archon-research/stl-lend/internal/pkg/blockchain/abis"
)

// MustABI loads an ABI, failing the test on error.
func MustABI(t *testing.T, load func() (*abi.ABI, error)) *abi.ABI {
	t.Helper()
	parsed, err := load()
	if err != nil {
		t.Fatalf("loading ABI: %v", err)
	}
	return parsed
}

// PackOutputs ABI-encodes values as the return data of method.
func PackOutputs(t *testing.T, parsed *abi.ABI, method string, values ...any) []byte {
	t.Helper()
	m, ok := parsed.Methods[method]
	if !ok {
		t.Fatalf("method %s not in ABI", method)
	}
	data, err := m.Outputs.Pack(values...)
	if err != nil {
		t.Fatalf("packing %s outputs: %v", method, err)
	}
	return data
}

// UnpackInputs decodes calldata (selector included) of method.
func UnpackInputs(t *testing.T, parsed *abi.ABI, method string, calldata []byte) []any {
	t.Helper()
	if len(calldata) < 4 {
		t.Fatalf("calldata too short: %d bytes", len(calldata))
	}
	m, ok := parsed.Methods[method]
	if !ok {
		t.Fatalf("method %s not in ABI", method)
	}
	values, err := m.Inputs.Unpack(calldata[4:])
	if err != nil {
		t.Fatalf("unpacking %s inputs: %v", method, err)
	}
	return values
}

// MulticallResult matches the multicall3 aggregate3 output tuple.
type MulticallResult struct {
	Success    bool
	ReturnData []byte
}

// PackMulticallAggregate3 ABI-encodes results as aggregate3 return data.
func PackMulticallAggregate3(t *testing.T, results []MulticallResult) []byte {
	t.Helper()
	return PackOutputs(t, MustABI(t, abis.GetMulticall3ABI), "aggregate3", results)
}
