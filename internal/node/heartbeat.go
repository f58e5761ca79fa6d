package node

// Heartbeat is a counter incremented only by the node that owns an address. It
// is the only evidence of liveness compared during merges.
type Heartbeat uint64

// Reset is the heartbeat value that signals a rejoin. It supersedes any
// recorded heartbeat regardless of staleness.
const Reset Heartbeat = 0

// Supersedes returns true if h should replace the recorded heartbeat cur.
func (h Heartbeat) Supersedes(cur Heartbeat) bool { return h == Reset || h > cur }

func (h Heartbeat) Increment() Heartbeat { return h + 1 }
