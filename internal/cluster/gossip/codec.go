package gossip

import (
	"encoding/binary"

	"github.com/arya-analytics/pulse/internal/address"
	"github.com/arya-analytics/pulse/internal/node"
	"github.com/cockroachdb/errors"
)

const (
	// MaxDatagramSize is the largest datagram Encode will produce.
	MaxDatagramSize = 128
	// IdentitySize is the encoded size of a node.Identity.
	IdentitySize = 4 + 2 + 8
	kindSize     = 1
	countSize    = 4
	// MaxListEntries is the number of identities that fit in a list datagram.
	MaxListEntries = (MaxDatagramSize - kindSize - countSize) / IdentitySize
)

var (
	// ErrDecode marks every failure to decode a datagram.
	ErrDecode = errors.New("gossip: malformed datagram")
	// ErrCapacity is returned when a message does not fit in a datagram.
	ErrCapacity = errors.New("gossip: message exceeds datagram capacity")
	// ErrMalformed is returned when encoding a message that violates its kind's
	// shape.
	ErrMalformed = errors.New("gossip: malformed message")
)

// Size returns the encoded size of msg in bytes.
func Size(msg Message) int {
	if msg.Kind == KindAnnounce {
		return kindSize + IdentitySize
	}
	return kindSize + countSize + len(msg.Identities)*IdentitySize
}

func Encode(msg Message) ([]byte, error) {
	switch msg.Kind {
	case KindAnnounce:
		if len(msg.Identities) != 1 {
			return nil, errors.Wrapf(ErrMalformed, "announce with %d identities", len(msg.Identities))
		}
	case KindList:
		if len(msg.Identities) > MaxListEntries {
			return nil, errors.Wrapf(
				ErrCapacity,
				"list of %d identities needs %d bytes, max %d",
				len(msg.Identities), Size(msg), MaxDatagramSize,
			)
		}
	default:
		return nil, errors.Wrapf(ErrMalformed, "unknown %s", msg.Kind)
	}
	b := make([]byte, 0, Size(msg))
	b = append(b, byte(msg.Kind))
	if msg.Kind == KindList {
		b = binary.BigEndian.AppendUint32(b, uint32(len(msg.Identities)))
	}
	for _, id := range msg.Identities {
		b = AppendIdentity(b, id)
	}
	return b, nil
}

func Decode(b []byte) (Message, error) {
	if len(b) < kindSize {
		return Message{}, errors.Wrap(ErrDecode, "empty datagram")
	}
	kind, b := Kind(b[0]), b[kindSize:]
	switch kind {
	case KindAnnounce:
		id, err := DecodeIdentity(b)
		if err != nil {
			return Message{}, errors.Wrap(err, "announce")
		}
		return Announce(id), nil
	case KindList:
		if len(b) < countSize {
			return Message{}, errors.Wrapf(ErrDecode, "list count truncated at %d bytes", len(b))
		}
		count, b := binary.BigEndian.Uint32(b), b[countSize:]
		if count > MaxListEntries {
			return Message{}, errors.Wrapf(ErrDecode, "list count %d exceeds %d", count, MaxListEntries)
		}
		if len(b) < int(count)*IdentitySize {
			return Message{}, errors.Wrapf(
				ErrDecode,
				"list of %d identities truncated at %d bytes",
				count, len(b),
			)
		}
		ids := make([]node.Identity, count)
		for i := range ids {
			ids[i], _ = DecodeIdentity(b[i*IdentitySize:])
		}
		return List(ids...), nil
	}
	return Message{}, errors.Wrapf(ErrDecode, "unknown kind %d", byte(kind))
}

// AppendIdentity appends the 14 byte big-endian encoding of id to b.
func AppendIdentity(b []byte, id node.Identity) []byte {
	b = binary.BigEndian.AppendUint32(b, id.Addr.Host)
	b = binary.BigEndian.AppendUint16(b, id.Addr.Port)
	return binary.BigEndian.AppendUint64(b, uint64(id.Beat))
}

// DecodeIdentity decodes the identity at the start of b.
func DecodeIdentity(b []byte) (node.Identity, error) {
	if len(b) < IdentitySize {
		return node.Identity{}, errors.Wrapf(ErrDecode, "identity truncated at %d bytes", len(b))
	}
	return node.Identity{
		Addr: address.New(binary.BigEndian.Uint32(b), binary.BigEndian.Uint16(b[4:])),
		Beat: node.Heartbeat(binary.BigEndian.Uint64(b[6:])),
	}, nil
}
