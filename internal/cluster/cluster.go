// Package cluster implements the membership state machine: a peer table merged
// from heartbeats, a timeout based failure detector, and the anti-entropy
// payloads that spread the local view.
//
// An Agent is not safe for concurrent use. It is owned by a single loop that
// calls its operations and routes the returned events; none of its operations
// block.
package cluster

import (
	"time"

	"github.com/arya-analytics/pulse/internal/address"
	"github.com/arya-analytics/pulse/internal/node"
	"go.uber.org/zap"
)

// Agent owns the host's own record, its seed set and its peer table.
type Agent struct {
	Config
	state *state
}

// New creates an agent for the host at self. The host's heartbeat starts at
// zero so peers holding a record from a previous run accept it as a rejoin.
func New(self address.Address, seeds []address.Address, now time.Time, cfg Config) (*Agent, error) {
	cfg = cfg.Merge(DefaultConfig())
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &Agent{Config: cfg, state: newState(node.NewRecord(self, now, node.Reset), seeds)}
	a.Logger.Debug("agent created",
		zap.Stringer("self", self),
		zap.Int("seeds", len(a.state.seeds)),
		zap.Duration("pingCutoff", cfg.PingCutoff),
		zap.Duration("failCutoff", cfg.FailCutoff),
	)
	return a, nil
}

// AdvanceClock increments the host's heartbeat. It must be called once per
// round before BuildGossipPayload so peers observe increasing heartbeats.
func (a *Agent) AdvanceClock(now time.Time) {
	a.state.self.Beat = a.state.self.Beat.Increment()
	a.state.self.LastContact = now
}

// Discover returns the seeds that are not tracked as up peers, in address
// order. Seeds that are down are returned so they can be retried.
func (a *Agent) Discover() []address.Address {
	var unseen []address.Address
	for _, seed := range a.state.seedList() {
		if r, ok := a.state.peers[seed]; !ok || r.Down() {
			unseen = append(unseen, seed)
		}
	}
	return unseen
}

// IsReady returns true once at least one peer has been observed.
func (a *Agent) IsReady() bool { return len(a.state.peers) > 0 }

func (a *Agent) Self() node.Record { return a.state.self }

// Peers returns a copy of the peer table.
func (a *Agent) Peers() node.Group { return a.state.peers.Copy() }

func (a *Agent) Seeds() []address.Address { return a.state.seedList() }

// AddSeeds adds addresses to the seed set and returns how many were new. The
// host's own address is never added.
func (a *Agent) AddSeeds(seeds ...address.Address) int { return a.state.addSeeds(seeds...) }
