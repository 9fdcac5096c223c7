package operations

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/stl-lend/internal/domain/simulation"
	"github.com/archon-research/stl-lend/internal/pkg/blockchain"
	"github.com/archon-research/stl-lend/internal/pkg/bundler"
)

// ApprovalRequirements returns the transactions raising owner's allowance of
// token to spender to amount. None are needed when the current allowance
// covers amount. Tokens that reject changing a non-zero allowance are first
// reset to zero.
func ApprovalRequirements(s *simulation.State, owner, token, spender common.Address, amount *big.Int) ([]TransactionRequirement, error) {
	holding, err := s.Holding(owner, token)
	if err != nil {
		return nil, err
	}
	current := holding.Allowance(spender)
	if current.Cmp(amount) >= 0 {
		return nil, nil
	}

	addrs, err := blockchain.GetChainAddresses(s.ChainID)
	if err != nil {
		return nil, err
	}
	symbol := token.Hex()
	if t, ok := s.Tokens[token]; ok && t.Symbol != "" {
		symbol = t.Symbol
	}

	var out []TransactionRequirement
	if current.Sign() > 0 && addrs.RequiresRevoke(token) {
		out = append(out, TransactionRequirement{
			Name: fmt.Sprintf("Revoke %s approval", symbol),
			Tx: func() (bundler.Transaction, error) {
				return bundler.Approve(token, spender, new(big.Int))
			},
		})
	}
	approved := new(big.Int).Set(amount)
	out = append(out, TransactionRequirement{
		Name: fmt.Sprintf("Approve %s", symbol),
		Tx: func() (bundler.Transaction, error) {
			return bundler.Approve(token, spender, approved)
		},
	})

	if err := s.Approve(owner, token, spender, amount); err != nil {
		return nil, err
	}
	return out, nil
}
