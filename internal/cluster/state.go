package cluster

import (
	"sort"

	"github.com/arya-analytics/pulse/internal/address"
	"github.com/arya-analytics/pulse/internal/node"
)

type state struct {
	self  node.Record
	seeds map[address.Address]struct{}
	peers node.Group
}

func newState(self node.Record, seeds []address.Address) *state {
	s := &state{self: self, seeds: make(map[address.Address]struct{}, len(seeds)), peers: make(node.Group)}
	s.addSeeds(seeds...)
	return s
}

func (s *state) addSeeds(seeds ...address.Address) (added int) {
	for _, seed := range seeds {
		if s.isSelf(seed) {
			continue
		}
		if _, ok := s.seeds[seed]; !ok {
			s.seeds[seed] = struct{}{}
			added++
		}
	}
	return added
}

// isSelf reports whether addr is the host's own address. A host that doesn't
// know its own externally visible host only matches on an exact address.
func (s *state) isSelf(addr address.Address) bool { return addr == s.self.Addr }

func (s *state) seedList() []address.Address {
	seeds := make([]address.Address, 0, len(s.seeds))
	for seed := range s.seeds {
		seeds = append(seeds, seed)
	}
	sort.Slice(seeds, func(i, j int) bool { return seeds[i].Less(seeds[j]) })
	return seeds
}
