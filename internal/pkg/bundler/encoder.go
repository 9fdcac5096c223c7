package bundler

import (
	"fmt"
	"math/big"

	"github.com/archon-research/stl-lend/internal/pkg/blockchain"
)

// Encode wraps calls into a single Bundler3 multicall transaction whose value
// is the sum of the calls' values.
func Encode(chainID int64, calls []Call) (Transaction, error) {
	addrs, err := blockchain.GetChainAddresses(chainID)
	if err != nil {
		return Transaction{}, err
	}

	total := new(big.Int)
	bundle := make([]Call, len(calls))
	for i, call := range calls {
		call.Value = value(call.Value)
		if call.Data == nil {
			call.Data = []byte{}
		}
		total.Add(total, call.Value)
		bundle[i] = call
	}

	data, err := pack(bundler3ABI, "multicall", bundle)
	if err != nil {
		return Transaction{}, fmt.Errorf("encoding bundle of %d calls: %w", len(calls), err)
	}
	return Transaction{To: addrs.Bundler3, Data: data, Value: total}, nil
}
