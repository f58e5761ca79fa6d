// Package transport defines the datagram transport the membership loop sends
// and receives encoded messages over.
package transport

import (
	"context"
	"time"

	"github.com/arya-analytics/pulse/internal/address"
	"github.com/cockroachdb/errors"
)

var (
	// ErrTimeout is returned by Receive when no datagram arrived within the
	// timeout. It is not a failure.
	ErrTimeout = errors.New("receive timed out")
	// ErrClosed is returned by operations on a closed transport.
	ErrClosed = errors.New("transport closed")
)

// Transport is an unreliable datagram transport. Datagrams may be lost,
// duplicated or reordered.
type Transport interface {
	// Send transmits a single datagram to the given address.
	Send(ctx context.Context, to address.Address, payload []byte) error
	// Receive blocks for at most timeout waiting for a datagram, copies it into
	// buf and returns its length and the observed sender address.
	Receive(ctx context.Context, buf []byte, timeout time.Duration) (int, address.Address, error)
	// Address returns the local address the transport is bound to.
	Address() address.Address
	Close() error
}
