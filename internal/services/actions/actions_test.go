package actions

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/stl-lend/internal/pkg/blockchain"
	"github.com/archon-research/stl-lend/internal/pkg/mathlib"
	"github.com/archon-research/stl-lend/internal/services/simulation_builder"
	"github.com/archon-research/stl-lend/internal/testutil"
)

var mainnet = blockchain.ChainRegistry[testutil.ChainID]

type harness struct {
	fixture *testutil.Fixture
	reader  *testutil.MockProtocolReader
	metrics *testutil.MockMetricsRecorder
	service *Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	f := testutil.NewFixture(t)
	reader := testutil.NewMockProtocolReader(f.State)
	builder, err := simulation_builder.NewBuilder(simulation_builder.Config{}, reader)
	if err != nil {
		t.Fatalf("creating builder: %v", err)
	}
	metrics := &testutil.MockMetricsRecorder{}
	service, err := NewService(Config{}, builder, reader, metrics)
	if err != nil {
		t.Fatalf("creating service: %v", err)
	}
	return &harness{fixture: f, reader: reader, metrics: metrics, service: service}
}

func requestNames(a *Action) []string {
	names := make([]string, len(a.TransactionRequests))
	for i, r := range a.TransactionRequests {
		names[i] = r.Name
	}
	return names
}

func assertRequests(t *testing.T, a *Action, signatures int, transactions ...string) {
	t.Helper()
	if a.Status != StatusSuccess {
		t.Fatalf("expected success, got %s: %s", a.Status, a.Message)
	}
	if len(a.SignatureRequests) != signatures {
		t.Errorf("expected %d signature requests, got %d", signatures, len(a.SignatureRequests))
	}
	got := requestNames(a)
	if strings.Join(got, ",") != strings.Join(transactions, ",") {
		t.Errorf("expected transactions %v, got %v", transactions, got)
	}
}

func TestNewService_RequiresDependencies(t *testing.T) {
	reader := testutil.NewMockProtocolReader(nil)
	builder, err := simulation_builder.NewBuilder(simulation_builder.Config{}, reader)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewService(Config{}, nil, reader, nil); err == nil {
		t.Error("expected error for nil builder")
	}
	if _, err := NewService(Config{}, builder, nil, nil); err == nil {
		t.Error("expected error for nil reader")
	}
	if _, err := NewService(Config{}, builder, reader, nil); err != nil {
		t.Errorf("metrics should be optional: %v", err)
	}
}

func TestValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	f := h.fixture

	tests := []struct {
		name    string
		build   func() (*Action, error)
		message string
	}{
		{
			name: "zero supply",
			build: func() (*Action, error) {
				return h.service.BuildVaultSupplyAction(ctx, VaultSupplyParams{ChainID: 1, Account: testutil.Account, Vault: testutil.Vault, Amount: new(big.Int)})
			},
			message: "amount must be greater than 0",
		},
		{
			name: "negative withdraw",
			build: func() (*Action, error) {
				return h.service.BuildVaultWithdrawAction(ctx, VaultWithdrawParams{ChainID: 1, Account: testutil.Account, Vault: testutil.Vault, Amount: big.NewInt(-1)})
			},
			message: "amount cannot be negative",
		},
		{
			name: "account is vault",
			build: func() (*Action, error) {
				return h.service.BuildVaultSupplyAction(ctx, VaultSupplyParams{ChainID: 1, Account: testutil.Vault, Vault: testutil.Vault, Amount: big.NewInt(1)})
			},
			message: "account and vault must be different",
		},
		{
			name: "zero account",
			build: func() (*Action, error) {
				return h.service.BuildVaultSupplyAction(ctx, VaultSupplyParams{ChainID: 1, Vault: testutil.Vault, Amount: big.NewInt(1)})
			},
			message: "account cannot be the zero address",
		},
		{
			name: "both legs zero on borrow",
			build: func() (*Action, error) {
				return h.service.BuildMarketSupplyCollateralBorrowAction(ctx, MarketSupplyCollateralBorrowParams{
					ChainID: 1, Account: testutil.Account, MarketID: f.MarketA,
					CollateralAmount: new(big.Int), BorrowAmount: new(big.Int),
				})
			},
			message: "collateral amount and borrow amount cannot both be 0",
		},
		{
			name: "negative collateral",
			build: func() (*Action, error) {
				return h.service.BuildMarketSupplyCollateralBorrowAction(ctx, MarketSupplyCollateralBorrowParams{
					ChainID: 1, Account: testutil.Account, MarketID: f.MarketA,
					CollateralAmount: big.NewInt(-5), BorrowAmount: big.NewInt(1),
				})
			},
			message: "collateral amount cannot be negative",
		},
		{
			name: "max borrow",
			build: func() (*Action, error) {
				return h.service.BuildMarketSupplyCollateralBorrowAction(ctx, MarketSupplyCollateralBorrowParams{
					ChainID: 1, Account: testutil.Account, MarketID: f.MarketA,
					CollateralAmount: new(big.Int), BorrowAmount: mathlib.MaxUint256,
				})
			},
			message: "borrow amount cannot be max",
		},
		{
			name: "both legs zero on repay",
			build: func() (*Action, error) {
				return h.service.BuildMarketRepayWithdrawCollateralAction(ctx, MarketRepayWithdrawCollateralParams{
					ChainID: 1, Account: testutil.Account, MarketID: f.MarketA,
					RepayAmount: new(big.Int), WithdrawAmount: new(big.Int),
				})
			},
			message: "repay amount and withdraw amount cannot both be 0",
		},
		{
			name: "negative withdraw collateral",
			build: func() (*Action, error) {
				return h.service.BuildMarketRepayWithdrawCollateralAction(ctx, MarketRepayWithdrawCollateralParams{
					ChainID: 1, Account: testutil.Account, MarketID: f.MarketA,
					RepayAmount: big.NewInt(1), WithdrawAmount: big.NewInt(-1),
				})
			},
			message: "withdraw amount cannot be negative",
		},
		{
			name: "mismatched rewards",
			build: func() (*Action, error) {
				return h.service.BuildClaimRewardsAction(ctx, ClaimRewardsParams{
					ChainID: 1, Account: testutil.Account,
					Tokens:  []common.Address{testutil.USDC, testutil.WETH},
					Amounts: []*big.Int{big.NewInt(1)},
					Proofs:  [][][32]byte{{}, {}},
				})
			},
			message: "tokens, amounts and proofs must have the same length",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			action, err := tt.build()
			if action != nil {
				t.Errorf("expected no action, got %+v", action)
			}
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if vErr.Message != tt.message {
				t.Errorf("expected message %q, got %q", tt.message, vErr.Message)
			}
		})
	}
	if len(h.reader.Calls) != 0 {
		t.Errorf("validation failures must not read the chain, got %v", h.reader.Calls)
	}
}

func TestBuildVaultSupplyAction_DirectPartialSupply(t *testing.T) {
	h := newHarness(t)
	action, err := h.service.BuildVaultSupplyAction(context.Background(), VaultSupplyParams{
		ChainID: testutil.ChainID,
		Account: testutil.Account,
		Vault:   testutil.Vault,
		Amount:  testutil.Units(1000, 6),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertRequests(t, action, 0, "Approve USDC", "Deposit into steakUSDC")

	for _, r := range action.TransactionRequests {
		tx, err := r.Tx()
		if err != nil {
			t.Fatalf("%s: %v", r.Name, err)
		}
		want := testutil.Vault
		if r.Name == "Approve USDC" {
			want = testutil.USDC
		}
		if tx.To != want {
			t.Errorf("%s: expected target %s, got %s", r.Name, want.Hex(), tx.To.Hex())
		}
	}

	change := action.PositionChange.Vault
	if change.Balance.Before.Sign() != 0 {
		t.Errorf("expected empty position before, got %s", change.Balance.Before)
	}
	if change.Balance.After.Cmp(testutil.Units(1000, 6)) != 0 {
		t.Errorf("expected 1000 USDC after, got %s", change.Balance.After)
	}
	if got := h.metrics.Built; len(got) != 1 || got[0].Status != "success" {
		t.Errorf("expected one successful build recorded, got %+v", got)
	}
}

func TestBuildVaultSupplyAction_Bundled(t *testing.T) {
	tests := []struct {
		name      string
		allowance *big.Int
		want      []string
	}{
		{name: "needs approval", allowance: new(big.Int), want: []string{"Approve USDC", "Execute bundle"}},
		{name: "allowance covers", allowance: mathlib.MaxUint256, want: []string{"Execute bundle"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.fixture.SetAllowance(testutil.Account, testutil.USDC, testutil.Adapter(), tt.allowance)

			action, err := h.service.BuildVaultSupplyAction(context.Background(), VaultSupplyParams{
				ChainID:    testutil.ChainID,
				Account:    testutil.Account,
				Vault:      testutil.Vault,
				Amount:     testutil.Units(1000, 6),
				UseBundler: true,
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			assertRequests(t, action, 0, tt.want...)

			bundle := action.TransactionRequests[len(action.TransactionRequests)-1]
			tx, err := bundle.Tx()
			if err != nil {
				t.Fatalf("encoding bundle: %v", err)
			}
			if tx.To != mainnet.Bundler3 {
				t.Errorf("expected bundler target, got %s", tx.To.Hex())
			}
			if action.PositionChange.Vault.Balance.Delta().Cmp(testutil.Units(1000, 6)) != 0 {
				t.Errorf("expected +1000 USDC, got %s", action.PositionChange.Vault.Balance.Delta())
			}
		})
	}
}

func TestBuildVaultWithdrawAction_MaxRedeemsShares(t *testing.T) {
	tests := []struct {
		name       string
		useBundler bool
		want       []string
	}{
		{name: "bundled", useBundler: true, want: []string{"Approve steakUSDC", "Execute bundle"}},
		{name: "direct", want: []string{"Redeem steakUSDC"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.fixture.SetBalance(testutil.Account, testutil.Vault, testutil.Units(1000, 18))

			action, err := h.service.BuildVaultWithdrawAction(context.Background(), VaultWithdrawParams{
				ChainID:    testutil.ChainID,
				Account:    testutil.Account,
				Vault:      testutil.Vault,
				Amount:     mathlib.MaxUint256,
				UseBundler: tt.useBundler,
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			assertRequests(t, action, 0, tt.want...)
			change := action.PositionChange.Vault.Balance
			if change.Before.Cmp(testutil.Units(1000, 6)) != 0 || change.After.Sign() != 0 {
				t.Errorf("expected 1000 -> 0, got %s -> %s", change.Before, change.After)
			}
		})
	}
}

func TestBuildVaultWithdrawAction_Partial(t *testing.T) {
	h := newHarness(t)
	h.fixture.SetBalance(testutil.Account, testutil.Vault, testutil.Units(1000, 18))

	action, err := h.service.BuildVaultWithdrawAction(context.Background(), VaultWithdrawParams{
		ChainID: testutil.ChainID,
		Account: testutil.Account,
		Vault:   testutil.Vault,
		Amount:  testutil.Units(400, 6),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertRequests(t, action, 0, "Withdraw from steakUSDC")
	if got := action.PositionChange.Vault.Balance.After; got.Cmp(testutil.Units(600, 6)) != 0 {
		t.Errorf("expected 600 USDC left, got %s", got)
	}
}

func TestBuildMarketSupplyCollateralBorrowAction(t *testing.T) {
	tests := []struct {
		name       string
		isContract bool
		signatures int
		want       []string
	}{
		{name: "eoa signs authorization", signatures: 1, want: []string{"Approve WETH", "Execute bundle"}},
		{name: "contract sends authorization", isContract: true, want: []string{"Approve WETH", "Authorize bundler adapter", "Execute bundle"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.reader.Contracts[testutil.Account] = tt.isContract

			action, err := h.service.BuildMarketSupplyCollateralBorrowAction(context.Background(), MarketSupplyCollateralBorrowParams{
				ChainID:          testutil.ChainID,
				Account:          testutil.Account,
				MarketID:         h.fixture.MarketA,
				CollateralAmount: testutil.Units(1, 18),
				BorrowAmount:     testutil.Units(1000, 6),
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			assertRequests(t, action, tt.signatures, tt.want...)

			bundle := action.TransactionRequests[len(action.TransactionRequests)-1]
			if tt.signatures > 0 {
				if _, err := bundle.Tx(); err == nil {
					t.Fatal("expected bundle encoding to wait for the signature")
				}
				if err := action.SignatureRequests[0].Sign(context.Background(), testutil.NewMockSigner(testutil.Account)); err != nil {
					t.Fatalf("signing: %v", err)
				}
			}
			tx, err := bundle.Tx()
			if err != nil {
				t.Fatalf("encoding bundle: %v", err)
			}
			if tx.To != mainnet.Bundler3 {
				t.Errorf("expected bundler target, got %s", tx.To.Hex())
			}

			change := action.PositionChange.Market
			if change.Collateral.Delta().Cmp(testutil.Units(1, 18)) != 0 {
				t.Errorf("expected +1 WETH collateral, got %s", change.Collateral.Delta())
			}
			if change.Loan.After.Cmp(testutil.Units(1000, 6)) != 0 {
				t.Errorf("expected 1000 USDC debt, got %s", change.Loan.After)
			}
		})
	}
}

func TestBuildMarketRepayWithdrawCollateralAction_FullRepay(t *testing.T) {
	h := newHarness(t)
	h.fixture.SetPosition(testutil.Account, h.fixture.MarketA, nil, testutil.Units(100, 12), testutil.Units(1, 18))

	action, err := h.service.BuildMarketRepayWithdrawCollateralAction(context.Background(), MarketRepayWithdrawCollateralParams{
		ChainID:        testutil.ChainID,
		Account:        testutil.Account,
		MarketID:       h.fixture.MarketA,
		RepayAmount:    mathlib.MaxUint256,
		WithdrawAmount: new(big.Int),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertRequests(t, action, 0, "Approve USDC", "Execute bundle")

	change := action.PositionChange.Market
	if change.Loan.Before.Cmp(testutil.Units(100, 6)) != 0 {
		t.Errorf("expected 100 USDC debt before, got %s", change.Loan.Before)
	}
	if change.Loan.After.Sign() != 0 {
		t.Errorf("expected debt fully closed, got %s", change.Loan.After)
	}
	if change.Collateral.Delta().Sign() != 0 {
		t.Errorf("collateral should be untouched, got %s", change.Collateral.Delta())
	}
}

func TestBuildMarketRepayWithdrawCollateralAction_CloseEverything(t *testing.T) {
	h := newHarness(t)
	h.fixture.State.Users[testutil.Account].IsAdapterAuthorized = true
	h.fixture.SetPosition(testutil.Account, h.fixture.MarketA, nil, testutil.Units(100, 12), testutil.Units(1, 18))

	action, err := h.service.BuildMarketRepayWithdrawCollateralAction(context.Background(), MarketRepayWithdrawCollateralParams{
		ChainID:        testutil.ChainID,
		Account:        testutil.Account,
		MarketID:       h.fixture.MarketA,
		RepayAmount:    mathlib.MaxUint256,
		WithdrawAmount: mathlib.MaxUint256,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertRequests(t, action, 0, "Approve USDC", "Execute bundle")
	change := action.PositionChange.Market
	if change.Loan.After.Sign() != 0 || change.Collateral.After.Sign() != 0 {
		t.Errorf("expected empty position, got loan %s collateral %s", change.Loan.After, change.Collateral.After)
	}
}

func TestBuildMarketRepayWithdrawCollateralAction_NoDebt(t *testing.T) {
	h := newHarness(t)
	action, err := h.service.BuildMarketRepayWithdrawCollateralAction(context.Background(), MarketRepayWithdrawCollateralParams{
		ChainID:        testutil.ChainID,
		Account:        testutil.Account,
		MarketID:       h.fixture.MarketA,
		RepayAmount:    mathlib.MaxUint256,
		WithdrawAmount: new(big.Int),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if action.Status != StatusError || action.Message != "no debt to repay" {
		t.Errorf("expected error action, got %+v", action)
	}
}

func TestBuild_SimulationFailureBecomesErrorAction(t *testing.T) {
	h := newHarness(t)
	action, err := h.service.BuildVaultSupplyAction(context.Background(), VaultSupplyParams{
		ChainID: testutil.ChainID,
		Account: testutil.Account,
		Vault:   testutil.Vault,
		Amount:  testutil.Units(5000, 6),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if action.Status != StatusError {
		t.Fatalf("expected error status, got %s", action.Status)
	}
	if !strings.Contains(action.Message, "insufficient USDC balance") {
		t.Errorf("expected a balance message, got %q", action.Message)
	}
	if len(action.TransactionRequests) != 0 {
		t.Errorf("error actions carry no requests, got %d", len(action.TransactionRequests))
	}
	if got := h.metrics.Failures; len(got) != 1 || got[0].Kind != "insufficient balance" {
		t.Errorf("expected one simulation failure recorded, got %+v", got)
	}
}

func TestBuild_ReadFailureIsGeneric(t *testing.T) {
	h := newHarness(t)
	h.reader.Errors["FetchVaults"] = errors.New("connection refused")

	action, err := h.service.BuildVaultSupplyAction(context.Background(), VaultSupplyParams{
		ChainID: testutil.ChainID,
		Account: testutil.Account,
		Vault:   testutil.Vault,
		Amount:  testutil.Units(1, 6),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if action.Status != StatusError || action.Message != genericFailureMessage {
		t.Errorf("expected generic error action, got %+v", action)
	}
}

func TestBuild_UnsupportedChain(t *testing.T) {
	h := newHarness(t)
	_, err := h.service.BuildVaultSupplyAction(context.Background(), VaultSupplyParams{
		ChainID: 999,
		Account: testutil.Account,
		Vault:   testutil.Vault,
		Amount:  testutil.Units(1, 6),
	})
	var cfgErr *blockchain.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Errorf("expected ConfigurationError, got %v", err)
	}
}

func TestBuildClaimRewardsAction(t *testing.T) {
	h := newHarness(t)
	action, err := h.service.BuildClaimRewardsAction(context.Background(), ClaimRewardsParams{
		ChainID: testutil.ChainID,
		Account: testutil.Account,
		Tokens:  []common.Address{testutil.USDC},
		Amounts: []*big.Int{testutil.Units(5, 6)},
		Proofs:  [][][32]byte{{{0x01}, {0x02}}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertRequests(t, action, 0, "Claim rewards")
	tx, err := action.TransactionRequests[0].Tx()
	if err != nil {
		t.Fatalf("encoding claim: %v", err)
	}
	if tx.To != mainnet.RewardsDistributor {
		t.Errorf("expected distributor target, got %s", tx.To.Hex())
	}
	if action.PositionChange != nil {
		t.Error("claims report no position change")
	}
	if len(h.reader.Calls) != 0 {
		t.Errorf("claims need no reads, got %v", h.reader.Calls)
	}
}
