package multicall

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/time/rate"

	"github.com/archon-research/stl-lend/internal/pkg/blockchain/abis"
	"github.com/archon-research/stl-lend/internal/pkg/retry"
	"github.com/archon-research/stl-lend/internal/ports/outbound"
)

var _ outbound.Multicaller = (*Client)(nil)

// Config controls batching and pacing of aggregate3 calls.
type Config struct {
	// MaxBatchSize splits larger call lists into several aggregate3 calls.
	MaxBatchSize int
	// RequestsPerSecond and Burst bound the eth_call rate.
	RequestsPerSecond float64
	Burst             int
	Retry             retry.Config
	Logger            *slog.Logger
}

func configDefaults() Config {
	return Config{
		MaxBatchSize:      500,
		RequestsPerSecond: 20,
		Burst:             5,
		Retry:             retry.DefaultConfig(),
		Logger:            slog.Default(),
	}
}

// Client batches calls through the Multicall3 aggregate3 entrypoint.
type Client struct {
	caller    ethereum.ContractCaller
	address   common.Address
	abi       *abi.ABI
	limiter   *rate.Limiter
	batchSize int
	retry     retry.Config
	logger    *slog.Logger
}

// NewClient creates a multicall client. *ethclient.Client is a ContractCaller.
func NewClient(caller ethereum.ContractCaller, multicall3Address common.Address, config Config) (*Client, error) {
	if caller == nil {
		return nil, fmt.Errorf("contract caller is required")
	}
	multicallABI, err := abis.GetMulticall3ABI()
	if err != nil {
		return nil, fmt.Errorf("failed to load multicall3 ABI: %w", err)
	}

	defaults := configDefaults()
	if config.MaxBatchSize <= 0 {
		config.MaxBatchSize = defaults.MaxBatchSize
	}
	if config.RequestsPerSecond <= 0 {
		config.RequestsPerSecond = defaults.RequestsPerSecond
	}
	if config.Burst <= 0 {
		config.Burst = defaults.Burst
	}
	if config.Retry == (retry.Config{}) {
		config.Retry = defaults.Retry
	}
	if config.Logger == nil {
		config.Logger = defaults.Logger
	}

	return &Client{
		caller:    caller,
		address:   multicall3Address,
		abi:       multicallABI,
		limiter:   rate.NewLimiter(rate.Limit(config.RequestsPerSecond), config.Burst),
		batchSize: config.MaxBatchSize,
		retry:     config.Retry,
		logger:    config.Logger.With("component", "multicall"),
	}, nil
}

func (c *Client) Address() common.Address {
	return c.address
}

// Execute runs calls at blockNumber (nil for latest) and returns one result
// per call, in order.
func (c *Client) Execute(ctx context.Context, calls []outbound.Call, blockNumber *big.Int) ([]outbound.Result, error) {
	results := make([]outbound.Result, 0, len(calls))
	for start := 0; start < len(calls); start += c.batchSize {
		end := min(start+c.batchSize, len(calls))
		batch, err := c.executeBatch(ctx, calls[start:end], blockNumber)
		if err != nil {
			return nil, err
		}
		results = append(results, batch...)
	}
	return results, nil
}

func (c *Client) executeBatch(ctx context.Context, calls []outbound.Call, blockNumber *big.Int) ([]outbound.Result, error) {
	data, err := c.abi.Pack("aggregate3", calls)
	if err != nil {
		return nil, fmt.Errorf("failed to pack multicall: %w", err)
	}

	msg := ethereum.CallMsg{
		To:   &c.address,
		Data: data,
	}

	onRetry := func(attempt int, err error, backoff time.Duration) {
		c.logger.Warn("retrying multicall",
			"attempt", attempt,
			"backoff", backoff,
			"block", blockNumberString(blockNumber),
			"error", err)
	}
	result, err := retry.Do(ctx, c.retry, retry.IsTransientRPCError, onRetry, func() ([]byte, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		return c.caller.CallContract(ctx, msg, blockNumber)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to call multicall contract at address=%s block=%s calls=%d: %w",
			c.address.Hex(), blockNumberString(blockNumber), len(calls), err)
	}

	unpacked, err := c.abi.Unpack("aggregate3", result)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack multicall response at block=%s: %w",
			blockNumberString(blockNumber), err)
	}

	resultsRaw, ok := unpacked[0].([]struct {
		Success    bool   `json:"success"`
		ReturnData []byte `json:"returnData"`
	})
	if !ok {
		return nil, fmt.Errorf("unexpected aggregate3 output type %T", unpacked[0])
	}
	if len(resultsRaw) != len(calls) {
		return nil, fmt.Errorf("multicall returned %d results for %d calls", len(resultsRaw), len(calls))
	}

	results := make([]outbound.Result, len(resultsRaw))
	for i, r := range resultsRaw {
		results[i] = outbound.Result{
			Success:    r.Success,
			ReturnData: r.ReturnData,
		}
	}
	return results, nil
}

func blockNumberString(blockNumber *big.Int) string {
	if blockNumber == nil {
		return "latest"
	}
	return blockNumber.String()
}
