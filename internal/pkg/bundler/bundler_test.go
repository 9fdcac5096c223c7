package bundler

import (
	"bytes"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/archon-research/stl-lend/internal/domain/entity"
	"github.com/archon-research/stl-lend/internal/pkg/blockchain"
	"github.com/archon-research/stl-lend/internal/pkg/blockchain/abis"
	"github.com/archon-research/stl-lend/internal/testutil"
)

var (
	testToken    = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	testReceiver = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testAdapter  = AdapterCalls{Adapter: common.HexToAddress("0x4A6c312ec70E8747a587EE860a0353cd42Be0aE0")}
)

func TestEncode(t *testing.T) {
	transfer, err := testAdapter.Erc20TransferFrom(testToken, testAdapter.Adapter, big.NewInt(1000))
	if err != nil {
		t.Fatal(err)
	}
	calls := []Call{
		NativeTransfer(testAdapter.Adapter, big.NewInt(5)),
		transfer,
		{To: testReceiver, Data: []byte{0x01}, Value: big.NewInt(7)},
	}

	tx, err := Encode(1, calls)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if tx.To != blockchain.ChainRegistry[1].Bundler3 {
		t.Errorf("To = %s, want bundler3", tx.To.Hex())
	}
	if tx.Value.Int64() != 12 {
		t.Errorf("Value = %s, want 12", tx.Value)
	}

	bundlerABI := testutil.MustABI(t, abis.GetBundler3ABI)
	inputs := testutil.UnpackInputs(t, bundlerABI, "multicall", tx.Data)
	decoded := inputs[0].([]struct {
		To           common.Address `json:"to"`
		Data         []byte         `json:"data"`
		Value        *big.Int       `json:"value"`
		SkipRevert   bool           `json:"skipRevert"`
		CallbackHash [32]byte       `json:"callbackHash"`
	})
	if len(decoded) != len(calls) {
		t.Fatalf("decoded %d calls, want %d", len(decoded), len(calls))
	}
	for i, call := range calls {
		if decoded[i].To != call.To || !bytes.Equal(decoded[i].Data, call.Data) || decoded[i].Value.Cmp(call.Value) != 0 {
			t.Errorf("call %d does not round-trip", i)
		}
	}
}

func TestEncode_EmptyBundleHasZeroValue(t *testing.T) {
	tx, err := Encode(8453, nil)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if tx.Value.Sign() != 0 {
		t.Errorf("Value = %s, want 0", tx.Value)
	}
	if tx.To != blockchain.ChainRegistry[8453].Bundler3 {
		t.Errorf("To = %s", tx.To.Hex())
	}
}

func TestEncode_UnsupportedChain(t *testing.T) {
	_, err := Encode(10, nil)
	var cfgErr *blockchain.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestApprove(t *testing.T) {
	tx, err := Approve(testToken, testAdapter.Adapter, big.NewInt(42))
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if tx.To != testToken {
		t.Errorf("To = %s, want token", tx.To.Hex())
	}
	if !bytes.Equal(tx.Data[:4], common.FromHex("0x095ea7b3")) {
		t.Errorf("selector = %x, want approve", tx.Data[:4])
	}
	inputs := testutil.UnpackInputs(t, testutil.MustABI(t, abis.GetERC20ABI), "approve", tx.Data)
	if inputs[0].(common.Address) != testAdapter.Adapter || inputs[1].(*big.Int).Int64() != 42 {
		t.Errorf("approve inputs = %v", inputs)
	}
}

func TestAdapterCalls_MorphoBorrow(t *testing.T) {
	params := entity.MarketParams{
		LoanToken:       testToken,
		CollateralToken: common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"),
		Oracle:          common.HexToAddress("0x01"),
		Irm:             common.HexToAddress("0x02"),
		Lltv:            big.NewInt(860_000_000_000_000_000),
	}
	call, err := testAdapter.MorphoBorrow(params, big.NewInt(100), big.NewInt(0), big.NewInt(1), testReceiver)
	if err != nil {
		t.Fatalf("MorphoBorrow: %v", err)
	}
	if call.To != testAdapter.Adapter {
		t.Errorf("To = %s", call.To.Hex())
	}
	inputs := testutil.UnpackInputs(t, testutil.MustABI(t, abis.GetGeneralAdapter1ABI), "morphoBorrow", call.Data)
	if got := inputs[1].(*big.Int); got.Int64() != 100 {
		t.Errorf("assets = %s", got)
	}
	if got := inputs[4].(common.Address); got != testReceiver {
		t.Errorf("receiver = %s", got.Hex())
	}
}

func TestReallocateTo_CarriesFee(t *testing.T) {
	params := entity.MarketParams{LoanToken: testToken, Lltv: big.NewInt(0)}
	call, err := ReallocateTo(common.HexToAddress("0xfd32fA2ca22c76dD6E550706Ad913FC6CE91c75D"), testReceiver,
		big.NewInt(1e15), []Withdrawal{{MarketParams: params, Amount: big.NewInt(10)}}, params)
	if err != nil {
		t.Fatalf("ReallocateTo: %v", err)
	}
	if call.Value.Int64() != 1e15 {
		t.Errorf("Value = %s, want fee", call.Value)
	}
}

func TestSplitSignature(t *testing.T) {
	sig := make([]byte, 65)
	sig[0] = 0xaa
	sig[32] = 0xbb
	sig[64] = 1

	got, err := SplitSignature(sig)
	if err != nil {
		t.Fatalf("SplitSignature: %v", err)
	}
	if got.V != 28 || got.R[0] != 0xaa || got.S[0] != 0xbb {
		t.Errorf("SplitSignature = %+v", got)
	}

	if _, err := SplitSignature(sig[:64]); err == nil {
		t.Error("expected error for short signature")
	}
	sig[64] = 5
	if _, err := SplitSignature(sig); err == nil {
		t.Error("expected error for bad recovery id")
	}
}

func TestAuthorizationTypedData_Hashes(t *testing.T) {
	auth := Authorization{
		Authorizer:   testReceiver,
		Authorized:   testAdapter.Adapter,
		IsAuthorized: true,
		Nonce:        big.NewInt(3),
		Deadline:     big.NewInt(1_700_003_600),
	}
	morpho := blockchain.ChainRegistry[1].Morpho

	hash1, _, err := apitypes.TypedDataAndHash(AuthorizationTypedData(1, morpho, auth))
	if err != nil {
		t.Fatalf("hashing typed data: %v", err)
	}
	hash2, _, err := apitypes.TypedDataAndHash(AuthorizationTypedData(1, morpho, auth))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(hash1, hash2) {
		t.Error("typed data hash is not deterministic")
	}

	auth.Nonce = big.NewInt(4)
	hash3, _, err := apitypes.TypedDataAndHash(AuthorizationTypedData(1, morpho, auth))
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(hash1, hash3) {
		t.Error("nonce does not affect hash")
	}
}
