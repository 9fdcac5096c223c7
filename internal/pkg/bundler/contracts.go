package bundler

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"

	"github.com/archon-research/stl-lend/internal/pkg/blockchain/abis"
)

type contractABIs struct {
	bundler3        *abi.ABI
	adapter         *abi.ABI
	erc20           *abi.ABI
	morpho          *abi.ABI
	vault           *abi.ABI
	publicAllocator *abi.ABI
	distributor     *abi.ABI
}

var loadABIs = sync.OnceValues(func() (*contractABIs, error) {
	var (
		c   contractABIs
		err error
	)
	loaders := []struct {
		name   string
		target **abi.ABI
		load   func() (*abi.ABI, error)
	}{
		{"bundler3", &c.bundler3, abis.GetBundler3ABI},
		{"general adapter", &c.adapter, abis.GetGeneralAdapter1ABI},
		{"erc20", &c.erc20, abis.GetERC20ABI},
		{"morpho", &c.morpho, abis.GetMorphoABI},
		{"vault", &c.vault, abis.GetMetaMorphoABI},
		{"public allocator", &c.publicAllocator, abis.GetPublicAllocatorABI},
		{"rewards distributor", &c.distributor, abis.GetMerklDistributorABI},
	}
	for _, l := range loaders {
		if *l.target, err = l.load(); err != nil {
			return nil, fmt.Errorf("loading %s ABI: %w", l.name, err)
		}
	}
	return &c, nil
})

func pack(pick func(*contractABIs) *abi.ABI, method string, args ...any) ([]byte, error) {
	c, err := loadABIs()
	if err != nil {
		return nil, err
	}
	data, err := pick(c).Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", method, err)
	}
	return data, nil
}

func bundler3ABI(c *contractABIs) *abi.ABI        { return c.bundler3 }
func adapterABI(c *contractABIs) *abi.ABI         { return c.adapter }
func erc20ABI(c *contractABIs) *abi.ABI           { return c.erc20 }
func morphoABI(c *contractABIs) *abi.ABI          { return c.morpho }
func vaultABI(c *contractABIs) *abi.ABI           { return c.vault }
func publicAllocatorABI(c *contractABIs) *abi.ABI { return c.publicAllocator }
func distributorABI(c *contractABIs) *abi.ABI     { return c.distributor }
