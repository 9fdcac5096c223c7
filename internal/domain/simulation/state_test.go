package simulation_test

import (
	"errors"
	"math/big"
	"testing"

	"github.com/archon-research/stl-lend/internal/domain/entity"
	"github.com/archon-research/stl-lend/internal/domain/simulation"
	"github.com/archon-research/stl-lend/internal/pkg/mathlib"
	"github.com/archon-research/stl-lend/internal/testutil"
)

func assertKind(t *testing.T, err, kind error) {
	t.Helper()
	if !errors.Is(err, kind) {
		t.Fatalf("expected %v, got %v", kind, err)
	}
	var simErr *simulation.SimulationError
	if !errors.As(err, &simErr) {
		t.Fatalf("expected *SimulationError, got %T", err)
	}
	if simErr.Message == "" {
		t.Error("SimulationError.Message is empty")
	}
}

func TestState_CloneIsIndependent(t *testing.T) {
	f := testutil.NewFixture(t)
	clone := f.State.Clone()

	if err := clone.Transfer(testutil.USDC, testutil.Account, testutil.Adapter(), testutil.Units(500, 6)); err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if _, err := clone.Borrow(f.MarketA, testutil.Account, testutil.Account, big.NewInt(0)); err == nil {
		t.Fatal("expected zero borrow to fail")
	}
	clone.Markets[f.MarketA].TotalSupplyAssets.SetInt64(0)
	clone.Vaults[testutil.Vault].SupplyQueue[0] = f.MarketB

	if got := f.State.Balance(testutil.Account, testutil.USDC); got.Cmp(testutil.Units(2000, 6)) != 0 {
		t.Errorf("original balance = %s, want 2000e6", got)
	}
	if got := f.State.Markets[f.MarketA].TotalSupplyAssets; got.Cmp(testutil.Units(1_000_000, 6)) != 0 {
		t.Errorf("original supply = %s", got)
	}
	if f.State.Vaults[testutil.Vault].SupplyQueue[0] != f.MarketA {
		t.Error("original supply queue was mutated")
	}
}

func TestState_UnknownEntities(t *testing.T) {
	f := testutil.NewFixture(t)
	unknown := entity.HexToMarketID("0x01")

	_, err := f.State.Market(unknown)
	assertKind(t, err, simulation.ErrUnknownEntity)

	_, err = f.State.Vault(testutil.Other)
	assertKind(t, err, simulation.ErrUnknownEntity)

	_, err = f.State.Holding(testutil.Other, testutil.USDC)
	assertKind(t, err, simulation.ErrUnknownEntity)
}

func TestState_CheckAccrued(t *testing.T) {
	f := testutil.NewFixture(t)
	if err := f.State.CheckAccrued(); err != nil {
		t.Fatalf("CheckAccrued: %v", err)
	}
	f.State.Markets[f.MarketA].LastUpdate = testutil.BlockTimestamp + 1
	if err := f.State.CheckAccrued(); err == nil {
		t.Fatal("expected error for market updated after block")
	}
}

func TestState_Transfer(t *testing.T) {
	tests := []struct {
		name        string
		amount      *big.Int
		wantErr     error
		wantAccount *big.Int
		wantAdapter *big.Int
	}{
		{
			name:        "partial",
			amount:      testutil.Units(500, 6),
			wantAccount: testutil.Units(1500, 6),
			wantAdapter: testutil.Units(500, 6),
		},
		{
			name:        "whole balance",
			amount:      testutil.Units(2000, 6),
			wantAccount: big.NewInt(0),
			wantAdapter: testutil.Units(2000, 6),
		},
		{
			name:    "insufficient balance",
			amount:  testutil.Units(2001, 6),
			wantErr: simulation.ErrInsufficientBalance,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := testutil.NewFixture(t)
			err := f.State.Transfer(testutil.USDC, testutil.Account, testutil.Adapter(), tt.amount)
			if tt.wantErr != nil {
				assertKind(t, err, tt.wantErr)
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := f.State.Balance(testutil.Account, testutil.USDC); got.Cmp(tt.wantAccount) != 0 {
				t.Errorf("account balance = %s, want %s", got, tt.wantAccount)
			}
			if got := f.State.Balance(testutil.Adapter(), testutil.USDC); got.Cmp(tt.wantAdapter) != 0 {
				t.Errorf("adapter balance = %s, want %s", got, tt.wantAdapter)
			}
		})
	}
}

func TestState_TransferFromSpendsAllowance(t *testing.T) {
	f := testutil.NewFixture(t)
	adapter := testutil.Adapter()

	err := f.State.TransferFrom(testutil.USDC, testutil.Account, adapter, adapter, testutil.Units(100, 6))
	assertKind(t, err, simulation.ErrInsufficientAllowance)

	f.SetAllowance(testutil.Account, testutil.USDC, adapter, testutil.Units(150, 6))
	if err := f.State.TransferFrom(testutil.USDC, testutil.Account, adapter, adapter, testutil.Units(100, 6)); err != nil {
		t.Fatalf("TransferFrom: %v", err)
	}
	h, _ := f.State.Holding(testutil.Account, testutil.USDC)
	if got := h.Allowance(adapter); got.Cmp(testutil.Units(50, 6)) != 0 {
		t.Errorf("allowance = %s, want 50e6", got)
	}

	f.SetAllowance(testutil.Account, testutil.USDC, adapter, mathlib.MaxUint256)
	if err := f.State.TransferFrom(testutil.USDC, testutil.Account, adapter, adapter, testutil.Units(100, 6)); err != nil {
		t.Fatalf("TransferFrom with max allowance: %v", err)
	}
	if got := h.Allowance(adapter); !mathlib.IsMax(got) {
		t.Errorf("max allowance was decremented to %s", got)
	}
}

func TestState_WrapNative(t *testing.T) {
	f := testutil.NewFixture(t)
	adapter := testutil.Adapter()

	if err := f.State.WrapNative(testutil.WETH, testutil.Account, adapter, testutil.Units(2, 18)); err != nil {
		t.Fatalf("WrapNative: %v", err)
	}
	if got := f.State.Balance(testutil.Account, entity.NativeAddress); got.Cmp(testutil.Units(3, 18)) != 0 {
		t.Errorf("native balance = %s, want 3e18", got)
	}
	if got := f.State.Balance(adapter, testutil.WETH); got.Cmp(testutil.Units(2, 18)) != 0 {
		t.Errorf("adapter WETH = %s, want 2e18", got)
	}
}

func TestState_Authorize(t *testing.T) {
	f := testutil.NewFixture(t)
	if err := f.State.Authorize(testutil.Account); err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	u, _ := f.State.User(testutil.Account)
	if !u.IsAdapterAuthorized {
		t.Error("user not authorized")
	}
	if u.Nonce.Int64() != 1 {
		t.Errorf("nonce = %s, want 1", u.Nonce)
	}
}
