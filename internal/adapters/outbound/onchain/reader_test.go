package onchain

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/archon-research/stl-lend/internal/domain/entity"
	"github.com/archon-research/stl-lend/internal/pkg/blockchain/abis"
	"github.com/archon-research/stl-lend/internal/ports/outbound"
	"github.com/archon-research/stl-lend/internal/testutil"
)

// handler answers one decoded call. Returning nil outputs makes it revert.
type handler func(target common.Address, inputs []any) []any

// fakeChain routes multicall calls to per-method handlers.
type fakeChain struct {
	t        *testing.T
	abis     []*abi.ABI
	handlers map[string]handler
}

func newFakeChain(t *testing.T) *fakeChain {
	return &fakeChain{
		t: t,
		abis: []*abi.ABI{
			testutil.MustABI(t, abis.GetMorphoABI),
			testutil.MustABI(t, abis.GetIrmABI),
			testutil.MustABI(t, abis.GetMorphoOracleABI),
			testutil.MustABI(t, abis.GetMetaMorphoABI),
			testutil.MustABI(t, abis.GetPublicAllocatorABI),
			testutil.MustABI(t, abis.GetERC20ABI),
			testutil.MustABI(t, abis.GetMulticall3ABI),
		},
		handlers: make(map[string]handler),
	}
}

func (f *fakeChain) on(method string, h handler) {
	f.handlers[method] = h
}

func (f *fakeChain) execute(ctx context.Context, calls []outbound.Call, blockNumber *big.Int) ([]outbound.Result, error) {
	results := make([]outbound.Result, len(calls))
	for i, call := range calls {
		method, parsed := f.lookup(call.CallData[:4])
		h, ok := f.handlers[method.Name]
		if !ok {
			f.t.Fatalf("no handler for %s", method.Name)
		}
		inputs, err := method.Inputs.Unpack(call.CallData[4:])
		if err != nil {
			f.t.Fatalf("unpacking %s inputs: %v", method.Name, err)
		}
		outputs := h(call.Target, inputs)
		if outputs == nil {
			if !call.AllowFailure {
				return nil, errors.New("execution reverted")
			}
			continue
		}
		results[i] = outbound.Result{Success: true, ReturnData: testutil.PackOutputs(f.t, parsed, method.Name, outputs...)}
	}
	return results, nil
}

func (f *fakeChain) lookup(selector []byte) (*abi.Method, *abi.ABI) {
	for _, parsed := range f.abis {
		if m, err := parsed.MethodById(selector); err == nil {
			return m, parsed
		}
	}
	f.t.Fatalf("unknown selector %x", selector)
	return nil, nil
}

func newTestReader(t *testing.T, chain *fakeChain, client *testutil.MockChainClient) *Reader {
	t.Helper()
	mc := testutil.NewMockMulticaller()
	mc.ExecuteFn = chain.execute
	r, err := NewReader(mc, client, testutil.ChainID, nil)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	return r
}

func TestNewReader_UnsupportedChain(t *testing.T) {
	_, err := NewReader(testutil.NewMockMulticaller(), testutil.NewMockChainClient(), 12345, nil)
	if err == nil || !strings.Contains(err.Error(), "unsupported chain") {
		t.Fatalf("expected unsupported chain error, got %v", err)
	}
}

func TestReader_FetchMarkets(t *testing.T) {
	params := testutil.WethUSDCParams()
	id := testutil.MarketID(t, params)
	noOracle := params
	noOracle.Lltv = big.NewInt(945_000_000_000_000_000)
	idNoOracle := testutil.MarketID(t, noOracle)

	chain := newFakeChain(t)
	chain.on("market", func(_ common.Address, in []any) []any {
		return []any{big.NewInt(1000), big.NewInt(1000e6), big.NewInt(500), big.NewInt(500e6), big.NewInt(1_700_000_000), big.NewInt(0)}
	})
	chain.on("idToMarketParams", func(_ common.Address, in []any) []any {
		p := params
		if entity.MarketID(in[0].([32]byte)) == idNoOracle {
			p = noOracle
		}
		return []any{p.LoanToken, p.CollateralToken, p.Oracle, p.Irm, p.Lltv}
	})
	chain.on("price", func(common.Address, []any) []any {
		return nil
	})
	chain.on("borrowRateView", func(_ common.Address, in []any) []any {
		return []any{big.NewInt(1_000_000_000)}
	})

	r := newTestReader(t, chain, testutil.NewMockChainClient())
	markets, err := r.FetchMarkets(context.Background(), []entity.MarketID{id, idNoOracle}, big.NewInt(100))
	if err != nil {
		t.Fatalf("FetchMarkets: %v", err)
	}
	if len(markets) != 2 {
		t.Fatalf("got %d markets", len(markets))
	}
	m := markets[0]
	if m.ID != id || m.Params.CollateralToken != testutil.WETH {
		t.Errorf("market 0 = %+v", m.Params)
	}
	if m.TotalBorrowShares.Int64() != 500e6 || m.LastUpdate != 1_700_000_000 {
		t.Errorf("totals = %s / %d", m.TotalBorrowShares, m.LastUpdate)
	}
	if m.Price != nil {
		t.Errorf("price = %s, want nil for reverting oracle", m.Price)
	}
	if m.BorrowRate.Int64() != 1_000_000_000 {
		t.Errorf("borrow rate = %s", m.BorrowRate)
	}
	if markets[1].Params.Lltv.Cmp(noOracle.Lltv) != 0 {
		t.Errorf("market 1 lltv = %s", markets[1].Params.Lltv)
	}
}

func TestReader_FetchMarkets_Missing(t *testing.T) {
	chain := newFakeChain(t)
	chain.on("market", func(common.Address, []any) []any {
		return []any{big.NewInt(0), big.NewInt(0), big.NewInt(0), big.NewInt(0), big.NewInt(0), big.NewInt(0)}
	})
	chain.on("idToMarketParams", func(common.Address, []any) []any {
		return []any{common.Address{}, common.Address{}, common.Address{}, common.Address{}, big.NewInt(0)}
	})

	r := newTestReader(t, chain, testutil.NewMockChainClient())
	_, err := r.FetchMarkets(context.Background(), []entity.MarketID{entity.HexToMarketID("0x01")}, nil)
	if err == nil || !strings.Contains(err.Error(), "does not exist") {
		t.Fatalf("expected missing market error, got %v", err)
	}
}

func TestReader_FetchVaults(t *testing.T) {
	idA := testutil.MarketID(t, testutil.WethUSDCParams())
	idB := testutil.MarketID(t, testutil.WstethUSDCParams())

	chain := newFakeChain(t)
	chain.on("asset", func(common.Address, []any) []any { return []any{testutil.USDC} })
	chain.on("totalSupply", func(common.Address, []any) []any { return []any{big.NewInt(5e17)} })
	chain.on("totalAssets", func(common.Address, []any) []any { return []any{big.NewInt(5e11)} })
	chain.on("lastTotalAssets", func(common.Address, []any) []any { return []any{big.NewInt(49e10)} })
	chain.on("fee", func(common.Address, []any) []any { return []any{big.NewInt(1e17)} })
	chain.on("feeRecipient", func(common.Address, []any) []any { return []any{testutil.Other} })
	chain.on("DECIMALS_OFFSET", func(common.Address, []any) []any { return []any{uint8(12)} })
	chain.on("supplyQueueLength", func(common.Address, []any) []any { return []any{big.NewInt(1)} })
	chain.on("withdrawQueueLength", func(common.Address, []any) []any { return []any{big.NewInt(2)} })
	chain.on("supplyQueue", func(common.Address, []any) []any { return []any{[32]byte(idA)} })
	chain.on("withdrawQueue", func(_ common.Address, in []any) []any {
		if in[0].(*big.Int).Int64() == 0 {
			return []any{[32]byte(idB)}
		}
		return []any{[32]byte(idA)}
	})
	chain.on("name", func(common.Address, []any) []any { return nil })
	chain.on("symbol", func(common.Address, []any) []any { return []any{"steakUSDC"} })

	r := newTestReader(t, chain, testutil.NewMockChainClient())
	vaults, err := r.FetchVaults(context.Background(), []common.Address{testutil.Vault}, nil)
	if err != nil {
		t.Fatalf("FetchVaults: %v", err)
	}
	v := vaults[0]
	if v.Asset != testutil.USDC || v.DecimalsOffset != 12 || v.Symbol != "steakUSDC" || v.Name != "" {
		t.Errorf("vault = %+v", v)
	}
	if len(v.SupplyQueue) != 1 || v.SupplyQueue[0] != idA {
		t.Errorf("supply queue = %v", v.SupplyQueue)
	}
	if len(v.WithdrawQueue) != 2 || v.WithdrawQueue[0] != idB || v.WithdrawQueue[1] != idA {
		t.Errorf("withdraw queue = %v", v.WithdrawQueue)
	}
}

func TestReader_FetchHoldings(t *testing.T) {
	adapter := testutil.Adapter()
	chain := newFakeChain(t)
	chain.on("getEthBalance", func(common.Address, []any) []any { return []any{big.NewInt(5e18)} })
	chain.on("balanceOf", func(target common.Address, in []any) []any {
		return []any{big.NewInt(2000e6)}
	})
	chain.on("allowance", func(_ common.Address, in []any) []any {
		if in[1].(common.Address) == adapter {
			return []any{big.NewInt(100)}
		}
		return []any{big.NewInt(0)}
	})

	r := newTestReader(t, chain, testutil.NewMockChainClient())
	holdings, err := r.FetchHoldings(context.Background(),
		[]common.Address{testutil.Account},
		[]common.Address{testutil.USDC, entity.NativeAddress},
		[]common.Address{adapter, testutil.Vault}, nil)
	if err != nil {
		t.Fatalf("FetchHoldings: %v", err)
	}
	if len(holdings) != 2 {
		t.Fatalf("got %d holdings", len(holdings))
	}
	usdc := holdings[0]
	if usdc.Balance.Int64() != 2000e6 || usdc.Allowance(adapter).Int64() != 100 || usdc.Allowance(testutil.Vault).Sign() != 0 {
		t.Errorf("usdc holding = %+v", usdc)
	}
	native := holdings[1]
	if native.Token != entity.NativeAddress || native.Balance.Cmp(big.NewInt(5e18)) != 0 || len(native.Allowances) != 0 {
		t.Errorf("native holding = %+v", native)
	}
}

func TestReader_FetchVaultMarketConfigs(t *testing.T) {
	id := testutil.MarketID(t, testutil.WethUSDCParams())
	chain := newFakeChain(t)
	chain.on("fee", func(common.Address, []any) []any { return []any{big.NewInt(1e15)} })
	chain.on("isAllocator", func(common.Address, []any) []any { return []any{true} })
	chain.on("config", func(common.Address, []any) []any { return []any{big.NewInt(1e12), true, uint64(0)} })
	chain.on("flowCaps", func(common.Address, []any) []any { return []any{big.NewInt(10), big.NewInt(20)} })

	r := newTestReader(t, chain, testutil.NewMockChainClient())
	configs, err := r.FetchVaultMarketConfigs(context.Background(), []common.Address{testutil.Vault}, []entity.MarketID{id}, nil)
	if err != nil {
		t.Fatalf("FetchVaultMarketConfigs: %v", err)
	}
	cfg := configs[0]
	if cfg.Cap.Int64() != 1e12 || !cfg.Enabled {
		t.Errorf("config = %+v", cfg)
	}
	if cfg.PublicAllocator == nil || cfg.PublicAllocator.MaxIn.Int64() != 10 || cfg.PublicAllocator.MaxOut.Int64() != 20 {
		t.Errorf("flow caps = %+v", cfg.PublicAllocator)
	}
	if cfg.PublicAllocatorFee.Int64() != 1e15 {
		t.Errorf("fee = %s", cfg.PublicAllocatorFee)
	}
}

func TestReader_FetchUsersAndPositions(t *testing.T) {
	id := testutil.MarketID(t, testutil.WethUSDCParams())
	chain := newFakeChain(t)
	chain.on("nonce", func(common.Address, []any) []any { return []any{big.NewInt(7)} })
	chain.on("isAuthorized", func(common.Address, []any) []any { return []any{true} })
	chain.on("position", func(_ common.Address, in []any) []any {
		if in[1].(common.Address) == testutil.Account {
			return []any{big.NewInt(0), big.NewInt(100), big.NewInt(1e18)}
		}
		return []any{big.NewInt(0), big.NewInt(0), big.NewInt(0)}
	})

	r := newTestReader(t, chain, testutil.NewMockChainClient())
	users, err := r.FetchUsers(context.Background(), []common.Address{testutil.Account}, nil)
	if err != nil {
		t.Fatalf("FetchUsers: %v", err)
	}
	if users[0].Nonce.Int64() != 7 || !users[0].IsAdapterAuthorized {
		t.Errorf("user = %+v", users[0])
	}

	positions, err := r.FetchPositions(context.Background(), []common.Address{testutil.Account, testutil.Vault}, []entity.MarketID{id}, nil)
	if err != nil {
		t.Fatalf("FetchPositions: %v", err)
	}
	if len(positions) != 2 || positions[0].BorrowShares.Int64() != 100 || positions[1].User != testutil.Vault {
		t.Errorf("positions = %+v", positions)
	}
}

func TestReader_FetchBlockAndIsContract(t *testing.T) {
	client := testutil.NewMockChainClient()
	client.HeaderByNumberFn = func(ctx context.Context, number *big.Int) (*types.Header, error) {
		return &types.Header{Number: big.NewInt(20_000_000), Time: 1_700_000_012}, nil
	}
	client.Contracts[testutil.Vault] = true

	r := newTestReader(t, newFakeChain(t), client)
	block, err := r.FetchBlock(context.Background(), nil)
	if err != nil {
		t.Fatalf("FetchBlock: %v", err)
	}
	if block.Number != 20_000_000 || block.Timestamp != 1_700_000_012 {
		t.Errorf("block = %+v", block)
	}

	isContract, err := r.IsContract(context.Background(), testutil.Vault)
	if err != nil || !isContract {
		t.Errorf("IsContract(vault) = %v, %v", isContract, err)
	}
	isContract, err = r.IsContract(context.Background(), testutil.Account)
	if err != nil || isContract {
		t.Errorf("IsContract(account) = %v, %v", isContract, err)
	}
}
