// Package mock builds clusters of nodes joined over an in-memory network.
package mock

import (
	"context"

	"github.com/arya-analytics/pulse"
	"github.com/arya-analytics/pulse/internal/address"
	tmock "github.com/arya-analytics/pulse/transport/mock"
	"github.com/cockroachdb/errors"
)

// Builder joins every node it builds to the first one.
type Builder struct {
	Network        *tmock.Network
	Host           uint32
	PortRangeStart uint16
	DefaultOptions []pulse.Option
	Nodes          []*pulse.Node
}

// New joins a node at the next port, seeded with the first node built.
func (b *Builder) New(ctx context.Context, opts ...pulse.Option) (*pulse.Node, error) {
	addr := b.Addr(len(b.Nodes))
	var seeds []pulse.Address
	if len(b.Nodes) > 0 {
		seeds = append(seeds, b.Nodes[0].Address())
	}
	opts = append(append([]pulse.Option{pulse.WithTransport(b.Network.Route(addr))}, b.DefaultOptions...), opts...)
	n, err := pulse.Join(ctx, addr.Port, seeds, opts...)
	if err != nil {
		return nil, err
	}
	b.Nodes = append(b.Nodes, n)
	return n, nil
}

// Addr returns the address of the i-th node.
func (b *Builder) Addr(i int) pulse.Address { return address.New(b.Host, b.PortRangeStart+uint16(i)) }

// Close closes every node built.
func (b *Builder) Close() error {
	var err error
	for _, n := range b.Nodes {
		err = errors.CombineErrors(err, n.Close())
	}
	return err
}
