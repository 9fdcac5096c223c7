package multicall

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/stl-lend/internal/pkg/blockchain"
	"github.com/archon-research/stl-lend/internal/pkg/blockchain/abis"
	"github.com/archon-research/stl-lend/internal/pkg/retry"
	"github.com/archon-research/stl-lend/internal/ports/outbound"
	"github.com/archon-research/stl-lend/internal/testutil"
)

// echoCaller answers aggregate3 by echoing each call's calldata back as its
// return data. Failures queued in errs are returned first.
type echoCaller struct {
	t       *testing.T
	calls   int
	batches []int
	errs    []error
}

func (c *echoCaller) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	c.calls++
	if len(c.errs) > 0 {
		err := c.errs[0]
		c.errs = c.errs[1:]
		return nil, err
	}
	parsed := testutil.MustABI(c.t, abis.GetMulticall3ABI)
	inputs := testutil.UnpackInputs(c.t, parsed, "aggregate3", msg.Data)
	raw := inputs[0].([]struct {
		Target       common.Address `json:"target"`
		AllowFailure bool           `json:"allowFailure"`
		CallData     []byte         `json:"callData"`
	})
	c.batches = append(c.batches, len(raw))
	results := make([]testutil.MulticallResult, len(raw))
	for i, call := range raw {
		results[i] = testutil.MulticallResult{Success: !call.AllowFailure, ReturnData: call.CallData}
	}
	return testutil.PackMulticallAggregate3(c.t, results), nil
}

func testCalls(n int) []outbound.Call {
	calls := make([]outbound.Call, n)
	for i := range calls {
		calls[i] = outbound.Call{
			Target:   common.BigToAddress(big.NewInt(int64(i + 1))),
			CallData: []byte{byte(i), 0xaa},
		}
	}
	return calls
}

func fastRetry() retry.Config {
	return retry.Config{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}
}

func TestClient_ExecuteBatches(t *testing.T) {
	caller := &echoCaller{t: t}
	client, err := NewClient(caller, blockchain.Multicall3, Config{MaxBatchSize: 2, RequestsPerSecond: 1000, Burst: 10, Retry: fastRetry()})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	calls := testCalls(5)
	calls[3].AllowFailure = true
	results, err := client.Execute(context.Background(), calls, big.NewInt(100))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if len(results) != 5 {
		t.Fatalf("got %d results, want 5", len(results))
	}
	if want := []int{2, 2, 1}; len(caller.batches) != 3 || caller.batches[0] != want[0] || caller.batches[2] != want[2] {
		t.Errorf("batches = %v, want %v", caller.batches, want)
	}
	for i, r := range results {
		if !bytes.Equal(r.ReturnData, calls[i].CallData) {
			t.Errorf("result %d out of order: %x", i, r.ReturnData)
		}
		if r.Success == calls[i].AllowFailure {
			t.Errorf("result %d success = %v", i, r.Success)
		}
	}
}

func TestClient_ExecuteEmpty(t *testing.T) {
	caller := &echoCaller{t: t}
	client, err := NewClient(caller, blockchain.Multicall3, Config{})
	if err != nil {
		t.Fatal(err)
	}
	results, err := client.Execute(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(results) != 0 || caller.calls != 0 {
		t.Errorf("expected no RPC for empty calls, got %d results and %d calls", len(results), caller.calls)
	}
}

func TestClient_RetriesTransientErrors(t *testing.T) {
	caller := &echoCaller{t: t, errs: []error{context.DeadlineExceeded}}
	client, err := NewClient(caller, blockchain.Multicall3, Config{RequestsPerSecond: 1000, Retry: fastRetry()})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := client.Execute(context.Background(), testCalls(1), nil); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if caller.calls != 2 {
		t.Errorf("calls = %d, want 2", caller.calls)
	}
}

func TestClient_DoesNotRetryPermanentErrors(t *testing.T) {
	permanent := errors.New("execution reverted")
	caller := &echoCaller{t: t, errs: []error{permanent}}
	client, err := NewClient(caller, blockchain.Multicall3, Config{RequestsPerSecond: 1000, Retry: fastRetry()})
	if err != nil {
		t.Fatal(err)
	}
	_, err = client.Execute(context.Background(), testCalls(1), nil)
	if !errors.Is(err, permanent) {
		t.Fatalf("expected wrapped permanent error, got %v", err)
	}
	if caller.calls != 1 {
		t.Errorf("calls = %d, want 1", caller.calls)
	}
}

func TestNewClient_RequiresCaller(t *testing.T) {
	if _, err := NewClient(nil, blockchain.Multicall3, Config{}); err == nil {
		t.Fatal("expected error for nil caller")
	}
}
