// Package clustermock drives a set of agents through complete protocol rounds
// over a lossless in-process network, encoding and decoding every datagram.
package clustermock

import (
	"sort"
	"time"

	"github.com/arya-analytics/pulse/internal/address"
	"github.com/arya-analytics/pulse/internal/cluster"
	"github.com/arya-analytics/pulse/internal/cluster/gossip"
	"github.com/cockroachdb/errors"
)

type Network struct {
	Config cluster.Config
	// Unspecified makes agents announce themselves with an unspecified host, so
	// their peers learn it from the observed sender address.
	Unspecified bool
	Agents      map[address.Address]*cluster.Agent
	Events      map[address.Address][]cluster.Event
	// Datagrams counts every datagram sent through the network.
	Datagrams int
	dead      map[address.Address]bool
}

func NewNetwork(cfg cluster.Config) *Network {
	return &Network{
		Config: cfg,
		Agents: make(map[address.Address]*cluster.Agent),
		Events: make(map[address.Address][]cluster.Event),
		dead:   make(map[address.Address]bool),
	}
}

// New adds an agent reachable at addr. Seeds equal to addr are dropped, since
// an agent with an unspecified host can't recognize them as its own.
func (n *Network) New(addr address.Address, seeds []address.Address, now time.Time) (*cluster.Agent, error) {
	self := addr
	if n.Unspecified {
		self = addr.WithHost(address.Unspecified)
	}
	others := make([]address.Address, 0, len(seeds))
	for _, seed := range seeds {
		if seed != addr {
			others = append(others, seed)
		}
	}
	a, err := cluster.New(self, others, now, n.Config)
	if err != nil {
		return nil, err
	}
	n.Agents[addr] = a
	return a, nil
}

// Kill stops an agent from sending or receiving.
func (n *Network) Kill(addr address.Address) { n.dead[addr] = true }

func (n *Network) Revive(addr address.Address) { delete(n.dead, addr) }

// Round runs a discovery, gossip and detection round on every live agent in
// address order, delivering datagrams synchronously.
func (n *Network) Round(now time.Time) error {
	for _, from := range n.live() {
		a := n.Agents[from]
		for _, seed := range a.Discover() {
			if err := n.send(from, seed, gossip.Announce(a.Self().Identity), now); err != nil {
				return err
			}
		}
		if a.IsReady() {
			a.AdvanceClock(now)
			for _, env := range a.BuildGossipPayload(now) {
				if err := n.send(from, env.To, env.Message, now); err != nil {
					return err
				}
			}
		}
		n.record(from, a.DetectFailures(now))
		n.record(from, a.Evict(now))
	}
	return nil
}

func (n *Network) send(from, to address.Address, msg gossip.Message, now time.Time) error {
	b, err := gossip.Encode(msg)
	if err != nil {
		return errors.Wrapf(err, "%s -> %s", from, to)
	}
	n.Datagrams++
	a, ok := n.Agents[to]
	if !ok || n.dead[to] {
		return nil
	}
	in, err := gossip.Decode(b)
	if err != nil {
		return errors.Wrapf(err, "%s -> %s", from, to)
	}
	n.record(to, a.MergeInbound(gossip.PatchOrigin(in, from), now))
	return nil
}

func (n *Network) record(addr address.Address, events []cluster.Event) {
	n.Events[addr] = append(n.Events[addr], events...)
}

func (n *Network) live() []address.Address {
	addrs := make([]address.Address, 0, len(n.Agents))
	for addr := range n.Agents {
		if !n.dead[addr] {
			addrs = append(addrs, addr)
		}
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i].Less(addrs[j]) })
	return addrs
}
