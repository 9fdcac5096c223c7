package simulation_builder

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/stl-lend/internal/domain/entity"
)

// addressSet keeps insertion order so reads are deterministic.
type addressSet struct {
	items []common.Address
	seen  map[common.Address]struct{}
}

func (s *addressSet) add(addrs ...common.Address) {
	if s.seen == nil {
		s.seen = make(map[common.Address]struct{})
	}
	for _, a := range addrs {
		if a == (common.Address{}) {
			continue
		}
		if _, ok := s.seen[a]; ok {
			continue
		}
		s.seen[a] = struct{}{}
		s.items = append(s.items, a)
	}
}

type idSet struct {
	items []entity.MarketID
	seen  map[entity.MarketID]struct{}
}

func (s *idSet) add(ids ...entity.MarketID) {
	if s.seen == nil {
		s.seen = make(map[entity.MarketID]struct{})
	}
	for _, id := range ids {
		if _, ok := s.seen[id]; ok {
			continue
		}
		s.seen[id] = struct{}{}
		s.items = append(s.items, id)
	}
}
