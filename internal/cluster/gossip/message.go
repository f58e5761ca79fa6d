// Package gossip implements the datagram envelope exchanged by the membership
// protocol and its binary codec.
package gossip

import (
	"fmt"
	"strings"

	"github.com/arya-analytics/pulse/internal/address"
	"github.com/arya-analytics/pulse/internal/node"
)

// Kind is the first byte of every datagram.
type Kind byte

const (
	// KindAnnounce carries a single identity, sent to seeds.
	KindAnnounce Kind = iota
	// KindList carries a batch of identities, sent during gossip rounds.
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindAnnounce:
		return "announce"
	case KindList:
		return "list"
	}
	return fmt.Sprintf("kind(%d)", byte(k))
}

// Message is the wire envelope. An announce holds exactly one identity.
type Message struct {
	Kind       Kind
	Identities []node.Identity
}

func Announce(id node.Identity) Message {
	return Message{Kind: KindAnnounce, Identities: []node.Identity{id}}
}

func List(ids ...node.Identity) Message {
	if ids == nil {
		ids = []node.Identity{}
	}
	return Message{Kind: KindList, Identities: ids}
}

// PatchOrigin returns a copy of msg where every identity with an unspecified
// host carries the host the datagram was observed from.
func PatchOrigin(msg Message, observed address.Address) Message {
	out := Message{Kind: msg.Kind, Identities: make([]node.Identity, len(msg.Identities))}
	for i, id := range msg.Identities {
		if id.Addr.Unspecified() {
			id.Addr = id.Addr.WithHost(observed.Host)
		}
		out.Identities[i] = id
	}
	return out
}

func (msg Message) String() string {
	ids := make([]string, len(msg.Identities))
	for i, id := range msg.Identities {
		ids[i] = id.String()
	}
	return fmt.Sprintf("%s[%s]", msg.Kind, strings.Join(ids, " "))
}
