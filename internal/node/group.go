package node

import (
	"sort"
	"time"

	"github.com/arya-analytics/pulse/internal/address"
)

// Group is a peer table keyed by address.
type Group map[address.Address]Record

func (g Group) Where(cond func(address.Address, Record) bool) Group {
	out := make(Group, len(g))
	for addr, r := range g {
		if cond(addr, r) {
			out[addr] = r
		}
	}
	return out
}

func (g Group) WhereNot(addrs ...address.Address) Group {
	return g.Where(func(addr address.Address, _ Record) bool {
		for _, a := range addrs {
			if a == addr {
				return false
			}
		}
		return true
	})
}

func (g Group) WhereUp() Group {
	return g.Where(func(_ address.Address, r Record) bool { return !r.Down() })
}

func (g Group) WhereDown() Group {
	return g.Where(func(_ address.Address, r Record) bool { return r.Down() })
}

// WhereFresh returns the up records contacted strictly after cutoff.
func (g Group) WhereFresh(cutoff time.Time) Group {
	return g.Where(func(_ address.Address, r Record) bool {
		return !r.Down() && r.LastContact.After(cutoff)
	})
}

// Addresses returns the group's addresses in ascending order.
func (g Group) Addresses() []address.Address {
	addrs := make([]address.Address, 0, len(g))
	for addr := range g {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i].Less(addrs[j]) })
	return addrs
}

// Identities returns the group's identities ordered by address.
func (g Group) Identities() []Identity {
	ids := make([]Identity, 0, len(g))
	for _, addr := range g.Addresses() {
		ids = append(ids, g[addr].Identity)
	}
	return ids
}

func (g Group) Copy() Group { return g.Where(func(address.Address, Record) bool { return true }) }
