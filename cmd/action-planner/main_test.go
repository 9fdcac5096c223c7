package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/archon-research/stl-lend/internal/pkg/bundler"
	"github.com/archon-research/stl-lend/internal/pkg/mathlib"
	"github.com/archon-research/stl-lend/internal/ports/outbound"
	"github.com/archon-research/stl-lend/internal/services/actions"
	"github.com/archon-research/stl-lend/internal/testutil"
)

var (
	testAccount = common.HexToAddress("0x1000000000000000000000000000000000000001")
	testTarget  = common.HexToAddress("0x2000000000000000000000000000000000000002")
)

// signedAction mimics a bundle depending on a signature collected earlier.
func signedAction() *actions.Action {
	signed := false
	return &actions.Action{
		Status: actions.StatusSuccess,
		SignatureRequests: []actions.SignatureRequest{{
			Name: "Authorize bundler adapter",
			Sign: func(ctx context.Context, s outbound.Signer) error {
				if _, err := s.SignTypedData(ctx, apitypes.TypedData{PrimaryType: "Authorization"}); err != nil {
					return err
				}
				signed = true
				return nil
			},
		}},
		TransactionRequests: []actions.TransactionRequest{{
			Name: "Execute bundle",
			Tx: func() (bundler.Transaction, error) {
				if !signed {
					return bundler.Transaction{}, errors.New("authorization is not signed")
				}
				return bundler.Transaction{To: testTarget, Data: []byte{0xab, 0xcd}, Value: big.NewInt(1000)}, nil
			},
		}},
	}
}

func TestRenderPlan(t *testing.T) {
	tests := []struct {
		name       string
		signer     outbound.Signer
		wantSigned bool
		wantTxErr  string
	}{
		{name: "with signer", signer: testutil.NewMockSigner(testAccount), wantSigned: true},
		{name: "without signer", wantTxErr: "authorization is not signed"},
		{name: "signer fails", signer: &testutil.MockSigner{Addr: testAccount, Err: errors.New("locked")}, wantTxErr: "authorization is not signed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := renderPlan(context.Background(), signedAction(), tt.signer)

			if len(p.Signatures) != 1 || p.Signatures[0].Signed != tt.wantSigned {
				t.Fatalf("signatures = %+v", p.Signatures)
			}
			if len(p.Transactions) != 1 {
				t.Fatalf("expected 1 transaction, got %d", len(p.Transactions))
			}
			tx := p.Transactions[0]
			if tt.wantTxErr != "" {
				if tx.Error != tt.wantTxErr || tx.To != nil {
					t.Errorf("transaction = %+v, want error %q", tx, tt.wantTxErr)
				}
				return
			}
			if tx.Error != "" || tx.To == nil || *tx.To != testTarget {
				t.Fatalf("transaction = %+v", tx)
			}
			if tx.Value == nil || tx.Value.ToInt().Int64() != 1000 {
				t.Errorf("value = %v, want 1000", tx.Value)
			}
		})
	}
}

func TestWritePlan_JSON(t *testing.T) {
	var buf bytes.Buffer
	action := &actions.Action{Status: actions.StatusError, Message: "Insufficient balance"}
	if err := writePlan(context.Background(), &buf, action, nil); err != nil {
		t.Fatalf("writePlan: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if decoded["status"] != "error" || decoded["message"] != "Insufficient balance" {
		t.Errorf("decoded = %v", decoded)
	}
	if _, ok := decoded["positionChange"]; ok {
		t.Error("positionChange should be omitted when nil")
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		raw      string
		decimals uint8
		want     *big.Int
		wantErr  bool
	}{
		{"1000", 6, big.NewInt(1_000_000_000), false},
		{"0.5", 18, big.NewInt(500_000_000_000_000_000), false},
		{"MAX", 6, mathlib.MaxUint256, false},
		{"max", 18, mathlib.MaxUint256, false},
		{"1.0000001", 6, nil, true},
		{"", 6, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := parseAmount(tt.raw, tt.decimals)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %s", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseAmount: %v", err)
			}
			if got.Cmp(tt.want) != 0 {
				t.Errorf("parseAmount(%q) = %s, want %s", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParseMarketID(t *testing.T) {
	id, err := parseMarketID("0x" + strings.Repeat("ab", 32))
	if err != nil {
		t.Fatalf("parseMarketID: %v", err)
	}
	if id.Hex() != "0x"+strings.Repeat("ab", 32) {
		t.Errorf("id = %s", id.Hex())
	}
	for _, bad := range []string{"", "0x1234", "nothex"} {
		if _, err := parseMarketID(bad); err == nil {
			t.Errorf("parseMarketID(%q): expected error", bad)
		}
	}
}

func TestResolveAccount(t *testing.T) {
	if got, err := resolveAccount(testTarget.Hex(), testutil.NewMockSigner(testAccount)); err != nil || got != testTarget {
		t.Errorf("flag: got %s, %v", got.Hex(), err)
	}
	if got, err := resolveAccount("", testutil.NewMockSigner(testAccount)); err != nil || got != testAccount {
		t.Errorf("signer: got %s, %v", got.Hex(), err)
	}
	if _, err := resolveAccount("", nil); err == nil {
		t.Error("expected error without flag or signer")
	}
	if _, err := resolveAccount("0x12", nil); err == nil {
		t.Error("expected error for malformed account")
	}
}

func TestReadClaims(t *testing.T) {
	node := "0x" + strings.Repeat("11", 32)
	path := filepath.Join(t.TempDir(), "claims.json")
	body := `[{"token":"` + testTarget.Hex() + `","amount":"1500","proof":["` + node + `"]}]`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("writing claims: %v", err)
	}

	claims, err := readClaims(path)
	if err != nil {
		t.Fatalf("readClaims: %v", err)
	}
	var params actions.ClaimRewardsParams
	if err := claims.fill(&params); err != nil {
		t.Fatalf("fill: %v", err)
	}
	if len(params.Tokens) != 1 || params.Tokens[0] != testTarget {
		t.Errorf("tokens = %v", params.Tokens)
	}
	if params.Amounts[0].Int64() != 1500 {
		t.Errorf("amount = %s, want 1500", params.Amounts[0])
	}
	if len(params.Proofs[0]) != 1 || params.Proofs[0][0][0] != 0x11 {
		t.Errorf("proofs = %v", params.Proofs)
	}
}

func TestRewardClaimsFill_Errors(t *testing.T) {
	tests := []struct {
		name  string
		claim rewardClaim
	}{
		{"bad amount", rewardClaim{Token: testTarget, Amount: "1e3"}},
		{"short proof node", rewardClaim{Token: testTarget, Amount: "1", Proof: []hexutil.Bytes{{0x01}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var params actions.ClaimRewardsParams
			if err := (rewardClaims{tt.claim}).fill(&params); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestRootCommand_Subcommands(t *testing.T) {
	root := newRootCommand(&bytes.Buffer{})
	want := []string{"borrow", "claim-rewards", "repay", "vault-supply", "vault-withdraw"}
	var got []string
	for _, c := range root.Commands() {
		got = append(got, c.Name())
	}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("subcommands = %v, want %v", got, want)
	}
}

func TestAppDecimalsLookup(t *testing.T) {
	f := testutil.NewFixture(t)
	a := &app{reader: testutil.NewMockProtocolReader(f.State)}
	ctx := context.Background()

	decimals, err := a.vaultAssetDecimals(ctx, testutil.Vault)
	if err != nil {
		t.Fatalf("vaultAssetDecimals: %v", err)
	}
	if decimals != 6 {
		t.Errorf("vault asset decimals = %d, want 6", decimals)
	}

	params, err := a.marketParams(ctx, f.MarketA)
	if err != nil {
		t.Fatalf("marketParams: %v", err)
	}
	got, err := a.tokenDecimals(ctx, params.CollateralToken, params.LoanToken)
	if err != nil {
		t.Fatalf("tokenDecimals: %v", err)
	}
	if got[0] != 18 || got[1] != 6 {
		t.Errorf("decimals = %v, want [18 6]", got)
	}
}
