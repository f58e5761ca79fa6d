// Package mock implements an in-memory datagram network for multi-node tests.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/arya-analytics/pulse/internal/address"
	"github.com/arya-analytics/pulse/transport"
	"github.com/cockroachdb/errors"
)

// InboxSize is the number of datagrams a route buffers before dropping.
const InboxSize = 256

// Entry records a datagram sent through the network.
type Entry struct {
	From, To  address.Address
	Payload   []byte
	Delivered bool
}

// Network routes datagrams between in-memory transports. Like UDP, it drops
// datagrams it can't deliver instead of failing the send.
type Network struct {
	mu          sync.Mutex
	routes      map[address.Address]*Transport
	partitioned map[address.Address]bool
	Entries     []Entry
}

func NewNetwork() *Network {
	return &Network{
		routes:      make(map[address.Address]*Transport),
		partitioned: make(map[address.Address]bool),
	}
}

// Route returns a transport bound at addr, replacing any closed transport that
// was bound there before.
func (n *Network) Route(addr address.Address) *Transport {
	n.mu.Lock()
	defer n.mu.Unlock()
	t := &Transport{net: n, addr: addr, inbox: make(chan datagram, InboxSize), closed: make(chan struct{})}
	n.routes[addr] = t
	return t
}

// Partition drops every datagram sent to or from the given addresses until
// they are healed.
func (n *Network) Partition(addrs ...address.Address) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, addr := range addrs {
		n.partitioned[addr] = true
	}
}

func (n *Network) Heal(addrs ...address.Address) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, addr := range addrs {
		delete(n.partitioned, addr)
	}
}

// Delivered returns the number of datagrams delivered from one address to
// another.
func (n *Network) Delivered(from, to address.Address) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	count := 0
	for _, e := range n.Entries {
		if e.Delivered && e.From == from && e.To == to {
			count++
		}
	}
	return count
}

func (n *Network) send(from, to address.Address, payload []byte) {
	n.mu.Lock()
	defer n.mu.Unlock()
	dg := datagram{from: from, payload: append([]byte(nil), payload...)}
	e := Entry{From: from, To: to, Payload: dg.payload}
	if t, ok := n.routes[to]; ok && !t.isClosed() && !n.partitioned[from] && !n.partitioned[to] {
		select {
		case t.inbox <- dg:
			e.Delivered = true
		default:
		}
	}
	n.Entries = append(n.Entries, e)
}

type datagram struct {
	from    address.Address
	payload []byte
}

// Transport is a route on a Network. It implements transport.Transport.
type Transport struct {
	net    *Network
	addr   address.Address
	inbox  chan datagram
	closed chan struct{}
	once   sync.Once
}

var _ transport.Transport = (*Transport)(nil)

func (t *Transport) Send(_ context.Context, to address.Address, payload []byte) error {
	if t.isClosed() {
		return errors.Wrapf(transport.ErrClosed, "send to %s", to)
	}
	t.net.send(t.addr, to, payload)
	return nil
}

func (t *Transport) Receive(ctx context.Context, buf []byte, timeout time.Duration) (int, address.Address, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case dg := <-t.inbox:
		return copy(buf, dg.payload), dg.from, nil
	case <-timer.C:
		return 0, address.Address{}, transport.ErrTimeout
	case <-t.closed:
		return 0, address.Address{}, errors.Wrap(transport.ErrClosed, "receive")
	case <-ctx.Done():
		return 0, address.Address{}, ctx.Err()
	}
}

func (t *Transport) Address() address.Address { return t.addr }

func (t *Transport) Close() error {
	t.once.Do(func() { close(t.closed) })
	return nil
}

func (t *Transport) isClosed() bool {
	select {
	case <-t.closed:
		return true
	default:
		return false
	}
}
