package cluster

import (
	"time"

	"github.com/arya-analytics/pulse/internal/cluster/gossip"
	"github.com/arya-analytics/pulse/internal/node"
	"go.uber.org/zap"
)

// MergeInbound applies a received message. Failure detection runs first so
// that a burst of inbound traffic never delays a down declaration.
func (a *Agent) MergeInbound(msg gossip.Message, now time.Time) []Event {
	events := a.DetectFailures(now)
	for _, id := range msg.Identities {
		if e, ok := a.Touch(id, now); ok {
			events = append(events, e)
		}
	}
	return events
}

// Touch merges a single identity into the peer table. A known peer is updated
// only when the heartbeat supersedes the recorded one, which also revives a
// down peer. An unknown peer is inserted and reported as Appended.
func (a *Agent) Touch(id node.Identity, now time.Time) (Event, bool) {
	if a.state.isSelf(id.Addr) {
		return Event{}, false
	}
	r, ok := a.state.peers[id.Addr]
	if !ok {
		r = node.NewRecord(id.Addr, now, id.Beat)
		a.state.peers[id.Addr] = r
		return Event{Kind: Appended, Record: r}, true
	}
	if !id.Beat.Supersedes(r.Beat) {
		return Event{}, false
	}
	if r.Down() {
		a.Logger.Debug("peer revived", zap.Stringer("peer", id.Addr), zap.Uint64("beat", uint64(id.Beat)))
	}
	r.Beat, r.LastContact, r.SuspectedSince = id.Beat, now, time.Time{}
	a.state.peers[id.Addr] = r
	return Event{}, false
}

// DetectFailures declares every up peer silent for at least PingCutoff +
// FailCutoff down. It never revives a peer.
func (a *Agent) DetectFailures(now time.Time) []Event {
	var (
		events   []Event
		deadline = now.Add(-a.Deadline())
	)
	for _, addr := range a.state.peers.Addresses() {
		r := a.state.peers[addr]
		if r.Down() || r.LastContact.After(deadline) {
			continue
		}
		r.SuspectedSince = now
		a.state.peers[addr] = r
		events = append(events, Event{Kind: Removed, Record: r})
	}
	return events
}

// Evict deletes the records of peers that have been down for at least
// EvictAfter. It is a no-op when EvictAfter is zero.
func (a *Agent) Evict(now time.Time) []Event {
	if a.EvictAfter == 0 {
		return nil
	}
	var (
		events []Event
		cutoff = now.Add(-a.EvictAfter)
	)
	for _, addr := range a.state.peers.WhereDown().Addresses() {
		r := a.state.peers[addr]
		if r.SuspectedSince.After(cutoff) {
			continue
		}
		delete(a.state.peers, addr)
		events = append(events, Event{Kind: Evicted, Record: r})
	}
	return events
}
