package testutil

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/stl-lend/internal/domain/entity"
	"github.com/archon-research/stl-lend/internal/domain/simulation"
	"github.com/archon-research/stl-lend/internal/pkg/blockchain"
)

// Fixture addresses. Token addresses are the mainnet deployments so registry
// flags (revocation, rebasing) apply to them.
var (
	Account = common.HexToAddress("0x1111111111111111111111111111111111111111")
	Other   = common.HexToAddress("0x3333333333333333333333333333333333333333")
	Vault   = common.HexToAddress("0x2222222222222222222222222222222222222222")
	Oracle  = common.HexToAddress("0x000000000000000000000000000000000000a11c")
	Irm     = common.HexToAddress("0x000000000000000000000000000000000000b1b1")

	USDC   = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	USDT   = common.HexToAddress("0xdAC17F958D2ee523a2206206994597C13D831ec7")
	WETH   = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	WstETH = common.HexToAddress("0x7f39C581F595B53c5cb19bD0b3f8dA6c935E2Ca0")
	StETH  = common.HexToAddress("0xae7ab96520DE3A18E5e111B5EaAb095312D7fE84")
)

const (
	ChainID        = int64(1)
	BlockNumber    = uint64(20_000_000)
	BlockTimestamp = uint64(1_700_000_000)
)

// Adapter returns the mainnet general adapter address.
func Adapter() common.Address {
	return blockchain.ChainRegistry[ChainID].GeneralAdapter1
}

// Units returns n * 10^decimals.
func Units(n int64, decimals int) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
}

// BigInt parses a base-10 integer, failing the test on bad input.
func BigInt(t *testing.T, s string) *big.Int {
	t.Helper()
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		t.Fatalf("invalid integer %q", s)
	}
	return v
}

// WethUSDCParams is the WETH-collateral / USDC-loan market.
func WethUSDCParams() entity.MarketParams {
	return entity.MarketParams{
		LoanToken:       USDC,
		CollateralToken: WETH,
		Oracle:          Oracle,
		Irm:             Irm,
		Lltv:            big.NewInt(860_000_000_000_000_000),
	}
}

// WstethUSDCParams is the wstETH-collateral / USDC-loan market.
func WstethUSDCParams() entity.MarketParams {
	return entity.MarketParams{
		LoanToken:       USDC,
		CollateralToken: WstETH,
		Oracle:          Oracle,
		Irm:             Irm,
		Lltv:            big.NewInt(860_000_000_000_000_000),
	}
}

// MarketID computes the id of params, failing the test on error.
func MarketID(t *testing.T, params entity.MarketParams) entity.MarketID {
	t.Helper()
	id, err := params.ID()
	if err != nil {
		t.Fatalf("computing market id: %v", err)
	}
	return id
}

// Fixture is a consistent mainnet snapshot with two USDC markets, a USDC
// vault allocating to both, and an account holding USDC, WETH and ETH.
type Fixture struct {
	State   *simulation.State
	MarketA entity.MarketID // WETH / USDC, 1M supplied, 500k borrowed
	MarketB entity.MarketID // wstETH / USDC, 500k supplied, 100k borrowed
}

// NewFixture builds the default snapshot.
//
// Market prices are 3000 USDC per WETH and 3500 USDC per wstETH. The vault
// supplies 200k USDC to market A and 300k to market B.
func NewFixture(t *testing.T) *Fixture {
	t.Helper()
	adapter := Adapter()
	f := &Fixture{
		State:   simulation.New(ChainID, entity.Block{Number: BlockNumber, Timestamp: BlockTimestamp}),
		MarketA: MarketID(t, WethUSDCParams()),
		MarketB: MarketID(t, WstethUSDCParams()),
	}
	s := f.State

	s.PutMarket(newMarket(f.MarketA, WethUSDCParams(), 1_000_000, 500_000, Units(3000, 24)))
	s.PutMarket(newMarket(f.MarketB, WstethUSDCParams(), 500_000, 100_000, Units(3500, 24)))

	s.Vaults[Vault] = &entity.Vault{
		Address:         Vault,
		Asset:           USDC,
		Name:            "Steakhouse USDC",
		Symbol:          "steakUSDC",
		DecimalsOffset:  12,
		TotalSupply:     Units(500_000, 18),
		TotalAssets:     Units(500_000, 6),
		LastTotalAssets: Units(500_000, 6),
		Fee:             new(big.Int),
		SupplyQueue:     []entity.MarketID{f.MarketA, f.MarketB},
		WithdrawQueue:   []entity.MarketID{f.MarketA, f.MarketB},
	}

	tokens := []*entity.Token{
		{Address: USDC, Symbol: "USDC", Name: "USD Coin", Decimals: 6},
		{Address: WETH, Symbol: "WETH", Name: "Wrapped Ether", Decimals: 18},
		{Address: WstETH, Symbol: "wstETH", Name: "Wrapped liquid staked Ether", Decimals: 18},
		{Address: Vault, Symbol: "steakUSDC", Name: "Steakhouse USDC", Decimals: 18},
		entity.NativeToken("ETH"),
	}
	for _, tok := range tokens {
		s.Tokens[tok.Address] = tok
	}

	for _, user := range []common.Address{Account, adapter, Vault} {
		s.Users[user] = &entity.User{Address: user, Nonce: new(big.Int)}
		for _, id := range []entity.MarketID{f.MarketA, f.MarketB} {
			s.PutPosition(entity.NewEmptyPosition(user, id))
		}
		for _, tok := range tokens {
			s.PutHolding(entity.NewHolding(user, tok.Address, new(big.Int)))
		}
		s.PutVaultUser(&entity.VaultUser{Vault: Vault, User: user})
	}

	f.SetPosition(Vault, f.MarketA, Units(200_000, 12), nil, nil)
	f.SetPosition(Vault, f.MarketB, Units(300_000, 12), nil, nil)

	for _, id := range []entity.MarketID{f.MarketA, f.MarketB} {
		s.PutVaultMarketConfig(&entity.VaultMarketConfig{
			Vault:    Vault,
			MarketID: id,
			Cap:      Units(1_000_000, 6),
			Enabled:  true,
			PublicAllocator: &entity.PublicAllocatorConfig{
				MaxIn:  Units(100_000, 6),
				MaxOut: Units(100_000, 6),
			},
			PublicAllocatorFee: Units(1, 15),
		})
	}

	f.SetBalance(Account, USDC, Units(2000, 6))
	f.SetBalance(Account, WETH, Units(10, 18))
	f.SetBalance(Account, entity.NativeAddress, Units(5, 18))
	return f
}

func newMarket(id entity.MarketID, params entity.MarketParams, supply, borrow int64, price *big.Int) *entity.Market {
	return &entity.Market{
		ID:                id,
		Params:            params,
		TotalSupplyAssets: Units(supply, 6),
		TotalSupplyShares: Units(supply, 12),
		TotalBorrowAssets: Units(borrow, 6),
		TotalBorrowShares: Units(borrow, 12),
		LastUpdate:        BlockTimestamp,
		Fee:               new(big.Int),
		Price:             price,
		BorrowRate:        new(big.Int),
	}
}

// SetBalance overwrites a holding balance, creating the holding if needed.
func (f *Fixture) SetBalance(user, token common.Address, amount *big.Int) {
	h, err := f.State.Holding(user, token)
	if err != nil {
		f.State.PutHolding(entity.NewHolding(user, token, new(big.Int).Set(amount)))
		return
	}
	h.Balance = new(big.Int).Set(amount)
}

// SetAllowance overwrites owner's allowance of token to spender.
func (f *Fixture) SetAllowance(owner, token, spender common.Address, amount *big.Int) {
	h, err := f.State.Holding(owner, token)
	if err != nil {
		h = entity.NewHolding(owner, token, new(big.Int))
		f.State.PutHolding(h)
	}
	h.Allowances[spender] = new(big.Int).Set(amount)
}

// SetPosition overwrites a position and keeps market totals consistent.
// Nil amounts are left unchanged.
func (f *Fixture) SetPosition(user common.Address, id entity.MarketID, supplyShares, borrowShares, collateral *big.Int) {
	p, err := f.State.Position(user, id)
	if err != nil {
		p = entity.NewEmptyPosition(user, id)
		f.State.PutPosition(p)
	}
	m := f.State.Markets[id]
	if borrowShares != nil && m != nil {
		delta := new(big.Int).Sub(borrowShares, p.BorrowShares)
		assets := new(big.Int).Div(delta, Units(1, 6))
		m.TotalBorrowShares.Add(m.TotalBorrowShares, delta)
		m.TotalBorrowAssets.Add(m.TotalBorrowAssets, assets)
	}
	if supplyShares != nil {
		p.SupplyShares = new(big.Int).Set(supplyShares)
	}
	if borrowShares != nil {
		p.BorrowShares = new(big.Int).Set(borrowShares)
	}
	if collateral != nil {
		p.Collateral = new(big.Int).Set(collateral)
	}
}
