// Package pulse runs a gossip based membership and failure detection node. A
// Node owns a membership agent and drives it from a single loop: it announces
// itself to seeds, merges heartbeats and peer lists received over an
// unreliable datagram transport, pushes its view to fresh peers and declares
// silent peers down.
package pulse

import (
	"github.com/arya-analytics/pulse/internal/address"
	"github.com/arya-analytics/pulse/internal/cluster"
	"github.com/arya-analytics/pulse/internal/cluster/store"
	"github.com/arya-analytics/pulse/internal/node"
	"github.com/arya-analytics/pulse/transport"
	"github.com/cockroachdb/errors"
)

type (
	Address   = address.Address
	Heartbeat = node.Heartbeat
	Identity  = node.Identity
	Record    = node.Record
	Group     = node.Group
	Event     = cluster.Event
	EventKind = cluster.EventKind
	// State is a snapshot of the host's record and its peer table.
	State     = store.State
	Transport = transport.Transport
)

const (
	Appended = cluster.Appended
	Removed  = cluster.Removed
	Evicted  = cluster.Evicted
)

var (
	// ErrTransport marks transport failures that stop the loop.
	ErrTransport = errors.New("transport failure")
	// ErrClock is returned when the clock reads before the unix epoch.
	ErrClock = errors.New("clock before unix epoch")
)

// ParseAddress parses "host:port" with an IPv4 host.
func ParseAddress(s string) (Address, error) { return address.Parse(s) }

// Observer receives the events of every loop iteration, in order. Observe is
// called from the loop and must not block.
type Observer interface {
	Observe(events []Event)
}

// Health is notified when the node gains or loses its last peer.
type Health interface {
	SetReady(ready bool)
}
