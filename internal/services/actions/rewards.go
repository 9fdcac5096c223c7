package actions

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel/attribute"

	"github.com/archon-research/stl-lend/internal/pkg/blockchain"
	"github.com/archon-research/stl-lend/internal/pkg/bundler"
)

type ClaimRewardsParams struct {
	ChainID int64
	Account common.Address
	// Distributor defaults to the chain's rewards distributor.
	Distributor common.Address
	Tokens      []common.Address
	// Amounts are the cumulative claimable amounts of the Merkle tree.
	Amounts []*big.Int
	Proofs  [][][32]byte
}

// BuildClaimRewardsAction claims accrued rewards from the distributor. It
// needs no simulation state.
func (s *Service) BuildClaimRewardsAction(ctx context.Context, p ClaimRewardsParams) (*Action, error) {
	if err := validateAddress("account", p.Account); err != nil {
		return nil, err
	}
	if len(p.Tokens) == 0 {
		return nil, invalid("tokens", "at least one reward token is required")
	}
	if len(p.Amounts) != len(p.Tokens) || len(p.Proofs) != len(p.Tokens) {
		return nil, invalid("tokens", "tokens, amounts and proofs must have the same length")
	}
	for _, amount := range p.Amounts {
		if err := validateAmount("reward amount", amount); err != nil {
			return nil, err
		}
	}

	attrs := []attribute.KeyValue{
		attribute.Int64("chain.id", p.ChainID),
		attribute.Int("rewards.tokens", len(p.Tokens)),
	}
	return s.run(ctx, "claim_rewards", attrs, func(ctx context.Context) (*Action, error) {
		distributor := p.Distributor
		if distributor == (common.Address{}) {
			addrs, err := blockchain.GetChainAddresses(p.ChainID)
			if err != nil {
				return nil, err
			}
			if addrs.RewardsDistributor == (common.Address{}) {
				return nil, &blockchain.ConfigurationError{ChainID: p.ChainID, Reason: "missing rewards distributor address"}
			}
			distributor = addrs.RewardsDistributor
		}

		users := make([]common.Address, len(p.Tokens))
		for i := range users {
			users[i] = p.Account
		}
		return &Action{
			Status: StatusSuccess,
			TransactionRequests: []TransactionRequest{{
				Name: "Claim rewards",
				Tx: func() (bundler.Transaction, error) {
					return bundler.Claim(distributor, users, p.Tokens, p.Amounts, p.Proofs)
				},
			}},
		}, nil
	})
}
