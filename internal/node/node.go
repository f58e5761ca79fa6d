// Package node holds the value types exchanged and tracked by the membership
// protocol.
package node

import (
	"fmt"
	"time"

	"github.com/arya-analytics/pulse/internal/address"
)

// Identity is an address paired with its owner's heartbeat. It is the unit
// carried on the wire.
type Identity struct {
	Addr address.Address
	Beat Heartbeat
}

func (i Identity) String() string { return fmt.Sprintf("%s@%d", i.Addr, i.Beat) }

// Record is an Identity plus local bookkeeping.
type Record struct {
	Identity
	// LastContact is the last time a fresher heartbeat for the address was
	// accepted.
	LastContact time.Time
	// SuspectedSince is zero while the record is alive and holds the instant
	// the failure detector declared it down otherwise.
	SuspectedSince time.Time
}

func NewRecord(addr address.Address, now time.Time, beat Heartbeat) Record {
	return Record{Identity: Identity{Addr: addr, Beat: beat}, LastContact: now}
}

func (r Record) Down() bool { return !r.SuspectedSince.IsZero() }

func (r Record) String() string {
	if r.Down() {
		return fmt.Sprintf("%s down since %s", r.Identity, r.SuspectedSince.Format(time.RFC3339Nano))
	}
	return r.Identity.String()
}
