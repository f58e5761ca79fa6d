package cluster

import (
	"time"

	"github.com/arya-analytics/pulse/internal/address"
	"github.com/arya-analytics/pulse/internal/cluster/gossip"
	"github.com/arya-analytics/pulse/internal/node"
)

// Envelope is a message addressed to a peer.
type Envelope struct {
	To      address.Address
	Message gossip.Message
}

// BuildGossipPayload pushes the fresh view to every fresh peer. The fresh view
// is the host plus every up peer contacted within PingCutoff; each recipient
// receives the view minus its own identity. A view that doesn't fit in one
// datagram is split across several list messages to the same recipient.
func (a *Agent) BuildGossipPayload(now time.Time) []Envelope {
	fresh := a.state.peers.WhereFresh(now.Add(-a.PingCutoff))
	var envelopes []Envelope
	for _, to := range fresh.Addresses() {
		ids := append([]node.Identity{a.state.self.Identity}, fresh.WhereNot(to).Identities()...)
		for _, chunk := range chunk(ids, gossip.MaxListEntries) {
			envelopes = append(envelopes, Envelope{To: to, Message: gossip.List(chunk...)})
		}
	}
	return envelopes
}

func chunk(ids []node.Identity, size int) [][]node.Identity {
	chunks := make([][]node.Identity, 0, (len(ids)+size-1)/size)
	for len(ids) > size {
		chunks = append(chunks, ids[:size:size])
		ids = ids[size:]
	}
	return append(chunks, ids)
}
