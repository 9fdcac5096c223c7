package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"github.com/archon-research/stl-lend/internal/config"
	"github.com/archon-research/stl-lend/internal/domain/entity"
	"github.com/archon-research/stl-lend/internal/pkg/mathlib"
	"github.com/archon-research/stl-lend/internal/services/actions"
)

// maxAmount is the keyword for "everything" in amount flags.
const maxAmount = "max"

// runAction wires the services, builds one action and prints its plan.
func runAction(cmd *cobra.Command, flags *globalFlags, out io.Writer, build func(ctx context.Context, a *app) (*actions.Action, error)) error {
	ctx := cmd.Context()
	a, err := setup(ctx, flags, out)
	if err != nil {
		return err
	}
	defer a.close()

	action, err := build(ctx, a)
	if err != nil {
		return err
	}
	return writePlan(ctx, a.out, action, a.signer)
}

func newVaultSupplyCommand(flags *globalFlags, out io.Writer) *cobra.Command {
	var (
		vault, amount string
		direct, wrap  bool
	)
	cmd := &cobra.Command{
		Use:   "vault-supply",
		Short: "Deposit into a vault",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAction(cmd, flags, out, func(ctx context.Context, a *app) (*actions.Action, error) {
				vaultAddr, err := parseAddress("vault", vault)
				if err != nil {
					return nil, err
				}
				decimals, err := a.vaultAssetDecimals(ctx, vaultAddr)
				if err != nil {
					return nil, err
				}
				assets, err := parseAmount(amount, decimals)
				if err != nil {
					return nil, err
				}
				return a.actions.BuildVaultSupplyAction(ctx, actions.VaultSupplyParams{
					ChainID:                   a.cfg.ChainID,
					Account:                   a.account,
					Vault:                     vaultAddr,
					Amount:                    assets,
					UseBundler:                !direct,
					AllowWrappingNativeAssets: wrap,
					Block:                     a.block,
				})
			})
		},
	}
	cmd.Flags().StringVar(&vault, "vault", "", "vault address")
	cmd.Flags().StringVar(&amount, "amount", "", `amount of the vault asset, or "max"`)
	cmd.Flags().BoolVar(&direct, "direct", false, "deposit directly instead of through the bundler")
	cmd.Flags().BoolVar(&wrap, "wrap", false, "allow wrapping native assets to cover the deposit")
	_ = cmd.MarkFlagRequired("vault")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func newVaultWithdrawCommand(flags *globalFlags, out io.Writer) *cobra.Command {
	var (
		vault, amount string
		direct        bool
	)
	cmd := &cobra.Command{
		Use:   "vault-withdraw",
		Short: "Withdraw from a vault",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAction(cmd, flags, out, func(ctx context.Context, a *app) (*actions.Action, error) {
				vaultAddr, err := parseAddress("vault", vault)
				if err != nil {
					return nil, err
				}
				decimals, err := a.vaultAssetDecimals(ctx, vaultAddr)
				if err != nil {
					return nil, err
				}
				assets, err := parseAmount(amount, decimals)
				if err != nil {
					return nil, err
				}
				return a.actions.BuildVaultWithdrawAction(ctx, actions.VaultWithdrawParams{
					ChainID:    a.cfg.ChainID,
					Account:    a.account,
					Vault:      vaultAddr,
					Amount:     assets,
					UseBundler: !direct,
					Block:      a.block,
				})
			})
		},
	}
	cmd.Flags().StringVar(&vault, "vault", "", "vault address")
	cmd.Flags().StringVar(&amount, "amount", "", `amount of the vault asset, or "max"`)
	cmd.Flags().BoolVar(&direct, "direct", false, "withdraw directly instead of through the bundler")
	_ = cmd.MarkFlagRequired("vault")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func newBorrowCommand(flags *globalFlags, out io.Writer) *cobra.Command {
	var (
		market, collateral, borrow string
		allocating                 []string
		wrap                       bool
	)
	cmd := &cobra.Command{
		Use:   "borrow",
		Short: "Supply collateral to a market and borrow against it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAction(cmd, flags, out, func(ctx context.Context, a *app) (*actions.Action, error) {
				id, err := parseMarketID(market)
				if err != nil {
					return nil, err
				}
				params, err := a.marketParams(ctx, id)
				if err != nil {
					return nil, err
				}
				decimals, err := a.tokenDecimals(ctx, params.CollateralToken, params.LoanToken)
				if err != nil {
					return nil, err
				}
				collateralAssets, err := parseAmount(collateral, decimals[0])
				if err != nil {
					return nil, fmt.Errorf("collateral: %w", err)
				}
				borrowAssets, err := parseAmount(borrow, decimals[1])
				if err != nil {
					return nil, fmt.Errorf("borrow: %w", err)
				}
				vaults := make([]common.Address, 0, len(allocating))
				for _, v := range allocating {
					addr, err := parseAddress("allocating-vault", v)
					if err != nil {
						return nil, err
					}
					vaults = append(vaults, addr)
				}
				return a.actions.BuildMarketSupplyCollateralBorrowAction(ctx, actions.MarketSupplyCollateralBorrowParams{
					ChainID:                   a.cfg.ChainID,
					Account:                   a.account,
					MarketID:                  id,
					CollateralAmount:          collateralAssets,
					BorrowAmount:              borrowAssets,
					AllocatingVaults:          vaults,
					AllowWrappingNativeAssets: wrap,
					Block:                     a.block,
				})
			})
		},
	}
	cmd.Flags().StringVar(&market, "market", "", "market id")
	cmd.Flags().StringVar(&collateral, "collateral", "0", `collateral to supply, or "max"`)
	cmd.Flags().StringVar(&borrow, "borrow", "0", "loan token amount to borrow")
	cmd.Flags().StringSliceVar(&allocating, "allocating-vault", nil, "vault allowed to reallocate liquidity into the market (repeatable)")
	cmd.Flags().BoolVar(&wrap, "wrap", false, "allow wrapping native assets to cover the collateral")
	_ = cmd.MarkFlagRequired("market")
	return cmd
}

func newRepayCommand(flags *globalFlags, out io.Writer) *cobra.Command {
	var market, repay, withdraw string
	cmd := &cobra.Command{
		Use:   "repay",
		Short: "Repay debt and withdraw collateral from a market",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAction(cmd, flags, out, func(ctx context.Context, a *app) (*actions.Action, error) {
				id, err := parseMarketID(market)
				if err != nil {
					return nil, err
				}
				params, err := a.marketParams(ctx, id)
				if err != nil {
					return nil, err
				}
				decimals, err := a.tokenDecimals(ctx, params.LoanToken, params.CollateralToken)
				if err != nil {
					return nil, err
				}
				repayAssets, err := parseAmount(repay, decimals[0])
				if err != nil {
					return nil, fmt.Errorf("repay: %w", err)
				}
				withdrawAssets, err := parseAmount(withdraw, decimals[1])
				if err != nil {
					return nil, fmt.Errorf("withdraw: %w", err)
				}
				return a.actions.BuildMarketRepayWithdrawCollateralAction(ctx, actions.MarketRepayWithdrawCollateralParams{
					ChainID:        a.cfg.ChainID,
					Account:        a.account,
					MarketID:       id,
					RepayAmount:    repayAssets,
					WithdrawAmount: withdrawAssets,
					Block:          a.block,
				})
			})
		},
	}
	cmd.Flags().StringVar(&market, "market", "", "market id")
	cmd.Flags().StringVar(&repay, "repay", "0", `loan token amount to repay, or "max"`)
	cmd.Flags().StringVar(&withdraw, "withdraw", "0", `collateral to withdraw, or "max"`)
	_ = cmd.MarkFlagRequired("market")
	return cmd
}

// rewardClaim is one entry of the claims file, as published by the rewards
// distributor's merkle tree.
type rewardClaim struct {
	Token  common.Address  `json:"token"`
	Amount string          `json:"amount"`
	Proof  []hexutil.Bytes `json:"proof"`
}

func newClaimRewardsCommand(flags *globalFlags, out io.Writer) *cobra.Command {
	var claimsPath, distributor string
	cmd := &cobra.Command{
		Use:   "claim-rewards",
		Short: "Claim accrued rewards from the rewards distributor",
		RunE: func(cmd *cobra.Command, _ []string) error {
			claims, err := readClaims(claimsPath)
			if err != nil {
				return err
			}
			return runAction(cmd, flags, out, func(ctx context.Context, a *app) (*actions.Action, error) {
				params := actions.ClaimRewardsParams{ChainID: a.cfg.ChainID, Account: a.account}
				if distributor != "" {
					if params.Distributor, err = parseAddress("distributor", distributor); err != nil {
						return nil, err
					}
				}
				if err := claims.fill(&params); err != nil {
					return nil, err
				}
				return a.actions.BuildClaimRewardsAction(ctx, params)
			})
		},
	}
	cmd.Flags().StringVar(&claimsPath, "claims", "", "JSON file with the claims to submit")
	cmd.Flags().StringVar(&distributor, "distributor", "", "rewards distributor (defaults to the chain's)")
	_ = cmd.MarkFlagRequired("claims")
	return cmd
}

type rewardClaims []rewardClaim

func readClaims(path string) (rewardClaims, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading claims: %w", err)
	}
	var claims rewardClaims
	if err := json.Unmarshal(raw, &claims); err != nil {
		return nil, fmt.Errorf("decoding claims: %w", err)
	}
	return claims, nil
}

// fill copies the claims into params. Amounts are raw base units.
func (c rewardClaims) fill(params *actions.ClaimRewardsParams) error {
	for i, claim := range c {
		amount, ok := new(big.Int).SetString(strings.TrimSpace(claim.Amount), 10)
		if !ok {
			return fmt.Errorf("claim %d: invalid amount %q", i, claim.Amount)
		}
		proof := make([][32]byte, len(claim.Proof))
		for j, node := range claim.Proof {
			if len(node) != 32 {
				return fmt.Errorf("claim %d: proof node %d is %d bytes, want 32", i, j, len(node))
			}
			copy(proof[j][:], node)
		}
		params.Tokens = append(params.Tokens, claim.Token)
		params.Amounts = append(params.Amounts, amount)
		params.Proofs = append(params.Proofs, proof)
	}
	return nil
}

// vaultAssetDecimals reads the decimals of the vault's underlying asset.
func (a *app) vaultAssetDecimals(ctx context.Context, vault common.Address) (uint8, error) {
	vaults, err := a.reader.FetchVaults(ctx, []common.Address{vault}, a.block)
	if err != nil {
		return 0, fmt.Errorf("fetching vault: %w", err)
	}
	if len(vaults) != 1 {
		return 0, fmt.Errorf("vault %s not found", vault.Hex())
	}
	decimals, err := a.tokenDecimals(ctx, vaults[0].Asset)
	if err != nil {
		return 0, err
	}
	return decimals[0], nil
}

func (a *app) marketParams(ctx context.Context, id entity.MarketID) (entity.MarketParams, error) {
	markets, err := a.reader.FetchMarkets(ctx, []entity.MarketID{id}, a.block)
	if err != nil {
		return entity.MarketParams{}, fmt.Errorf("fetching market: %w", err)
	}
	if len(markets) != 1 {
		return entity.MarketParams{}, fmt.Errorf("market %s not found", id.Hex())
	}
	return markets[0].Params, nil
}

// tokenDecimals reads the decimals of tokens, in order.
func (a *app) tokenDecimals(ctx context.Context, tokens ...common.Address) ([]uint8, error) {
	fetched, err := a.reader.FetchTokens(ctx, tokens, a.block)
	if err != nil {
		return nil, fmt.Errorf("fetching tokens: %w", err)
	}
	if len(fetched) != len(tokens) {
		return nil, fmt.Errorf("fetched %d tokens, want %d", len(fetched), len(tokens))
	}
	decimals := make([]uint8, len(fetched))
	for i, t := range fetched {
		decimals[i] = t.Decimals
	}
	return decimals, nil
}

// parseAmount converts a decimal token amount to base units. "max" maps to
// the maximum uint256, which builders treat as the whole balance or debt.
func parseAmount(raw string, decimals uint8) (*big.Int, error) {
	raw = strings.TrimSpace(raw)
	if strings.EqualFold(raw, maxAmount) {
		return new(big.Int).Set(mathlib.MaxUint256), nil
	}
	return config.ToBaseUnits(raw, decimals)
}

func parseAddress(name, raw string) (common.Address, error) {
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("invalid %s address %q", name, raw)
	}
	return common.HexToAddress(raw), nil
}

func parseMarketID(raw string) (entity.MarketID, error) {
	b, err := hexutil.Decode(raw)
	if err != nil || len(b) != 32 {
		return entity.MarketID{}, fmt.Errorf("invalid market id %q", raw)
	}
	return entity.MarketID(common.BytesToHash(b)), nil
}
