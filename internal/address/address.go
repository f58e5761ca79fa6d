// Package address implements the fixed-width network endpoint used to identify
// cluster members on the wire.
package address

import (
	"encoding/binary"
	"net"
	"net/netip"
	"strconv"

	"github.com/cockroachdb/errors"
)

var (
	// ErrUnsupportedFamily is returned when converting an endpoint that is not
	// an IPv4 (or IPv4-mapped IPv6) address.
	ErrUnsupportedFamily = errors.New("unsupported address family")
	// ErrInvalid is returned when a string cannot be parsed into an Address.
	ErrInvalid = errors.New("invalid address")
)

// Unspecified is the host value that asks the receiver of a datagram to fill in
// the host it observed the datagram from.
const Unspecified uint32 = 0

// Address is an IPv4 host and port. It is comparable and can be used as a map
// key.
type Address struct {
	Host uint32
	Port uint16
}

func New(host uint32, port uint16) Address { return Address{Host: host, Port: port} }

// FromAddrPort converts a netip.AddrPort. IPv4-mapped IPv6 addresses are
// unmapped first.
func FromAddrPort(ap netip.AddrPort) (Address, error) {
	ip := ap.Addr().Unmap()
	if !ip.Is4() {
		return Address{}, errors.Wrapf(ErrUnsupportedFamily, "%s", ap)
	}
	b := ip.As4()
	return Address{Host: binary.BigEndian.Uint32(b[:]), Port: ap.Port()}, nil
}

func FromUDPAddr(addr *net.UDPAddr) (Address, error) {
	if addr == nil {
		return Address{}, errors.Wrap(ErrInvalid, "nil udp address")
	}
	return FromAddrPort(addr.AddrPort())
}

// Parse parses "host:port" where host is an IPv4 literal. An empty host (":7000")
// yields the unspecified host.
func Parse(s string) (Address, error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return Address{}, errors.Mark(errors.Wrapf(err, "parse %q", s), ErrInvalid)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return Address{}, errors.Mark(errors.Wrapf(err, "parse port %q", portStr), ErrInvalid)
	}
	if host == "" {
		return Address{Host: Unspecified, Port: uint16(port)}, nil
	}
	ip, err := netip.ParseAddr(host)
	if err != nil {
		return Address{}, errors.Mark(errors.Wrapf(err, "parse host %q", host), ErrInvalid)
	}
	return FromAddrPort(netip.AddrPortFrom(ip, uint16(port)))
}

// ParseHost parses an IPv4 literal into its host value.
func ParseHost(s string) (uint32, error) {
	ip, err := netip.ParseAddr(s)
	if err != nil {
		return 0, errors.Mark(errors.Wrapf(err, "parse host %q", s), ErrInvalid)
	}
	a, err := FromAddrPort(netip.AddrPortFrom(ip, 0))
	return a.Host, err
}

func (a Address) AddrPort() netip.AddrPort {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], a.Host)
	return netip.AddrPortFrom(netip.AddrFrom4(b), a.Port)
}

func (a Address) UDPAddr() *net.UDPAddr { return net.UDPAddrFromAddrPort(a.AddrPort()) }

func (a Address) Unspecified() bool { return a.Host == Unspecified }

// WithHost returns a copy of the address with its host replaced.
func (a Address) WithHost(host uint32) Address { return Address{Host: host, Port: a.Port} }

// Less orders addresses by host, then port.
func (a Address) Less(b Address) bool {
	return a.Host < b.Host || (a.Host == b.Host && a.Port < b.Port)
}

func (a Address) String() string { return a.AddrPort().String() }
