// Package udp implements transport.Transport over an IPv4 UDP socket.
package udp

import (
	"context"
	"net"
	"time"

	"github.com/arya-analytics/pulse/internal/address"
	"github.com/arya-analytics/pulse/transport"
	"github.com/cockroachdb/errors"
)

type Transport struct {
	conn *net.UDPConn
	addr address.Address
}

var _ transport.Transport = (*Transport)(nil)

// Listen binds a socket on every IPv4 interface at port. A zero port binds an
// ephemeral port.
func Listen(port uint16) (*Transport, error) {
	return ListenAddr(address.New(address.Unspecified, port))
}

// ListenAddr binds a socket at addr. An unspecified host binds every IPv4
// interface.
func ListenAddr(addr address.Address) (*Transport, error) {
	conn, err := net.ListenUDP("udp4", addr.UDPAddr())
	if err != nil {
		return nil, errors.Wrapf(err, "listen on %s", addr)
	}
	local, err := address.FromUDPAddr(conn.LocalAddr().(*net.UDPAddr))
	if err != nil {
		return nil, errors.CombineErrors(err, conn.Close())
	}
	return &Transport{conn: conn, addr: local}, nil
}

func (t *Transport) Send(ctx context.Context, to address.Address, payload []byte) error {
	if deadline, ok := ctx.Deadline(); ok {
		if err := t.conn.SetWriteDeadline(deadline); err != nil {
			return errors.Wrap(err, "set write deadline")
		}
	}
	if _, err := t.conn.WriteToUDPAddrPort(payload, to.AddrPort()); err != nil {
		return t.translate(errors.Wrapf(err, "send to %s", to))
	}
	return nil
}

func (t *Transport) Receive(ctx context.Context, buf []byte, timeout time.Duration) (int, address.Address, error) {
	deadline, bounded := time.Now().Add(timeout), false
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline, bounded = d, true
	}
	if err := t.conn.SetReadDeadline(deadline); err != nil {
		return 0, address.Address{}, t.translate(errors.Wrap(err, "set read deadline"))
	}
	n, from, err := t.conn.ReadFromUDPAddrPort(buf)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			if err := ctx.Err(); err != nil {
				return 0, address.Address{}, err
			}
			if bounded {
				return 0, address.Address{}, context.DeadlineExceeded
			}
			return 0, address.Address{}, transport.ErrTimeout
		}
		return 0, address.Address{}, t.translate(errors.Wrap(err, "receive"))
	}
	addr, err := address.FromAddrPort(from)
	if err != nil {
		return 0, address.Address{}, err
	}
	return n, addr, nil
}

func (t *Transport) Address() address.Address { return t.addr }

func (t *Transport) Close() error { return t.conn.Close() }

func (t *Transport) translate(err error) error {
	if errors.Is(err, net.ErrClosed) {
		return errors.Mark(err, transport.ErrClosed)
	}
	return err
}
