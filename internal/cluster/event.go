package cluster

import (
	"fmt"

	"github.com/arya-analytics/pulse/internal/node"
)

type EventKind uint8

const (
	// Appended is emitted when an address is first observed.
	Appended EventKind = iota + 1
	// Removed is emitted when the failure detector declares a peer down.
	Removed
	// Evicted is emitted when a down peer's record is deleted.
	Evicted
)

func (k EventKind) String() string {
	switch k {
	case Appended:
		return "appended"
	case Removed:
		return "removed"
	case Evicted:
		return "evicted"
	}
	return fmt.Sprintf("event(%d)", uint8(k))
}

// Event is a peer table transition. Agents return events to their caller and
// never keep them.
type Event struct {
	Kind   EventKind
	Record node.Record
}

func (e Event) String() string { return fmt.Sprintf("%s %s", e.Kind, e.Record) }
