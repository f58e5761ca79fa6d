// Package store publishes copies of an agent's state to readers outside the
// loop that owns the agent.
package store

import (
	"sync"

	"github.com/arya-analytics/pulse/internal/node"
)

type State struct {
	Host  node.Record
	Peers node.Group
}

func (s State) copy() State { return State{Host: s.Host, Peers: s.Peers.Copy()} }

// Store holds the most recently published State. It is safe for concurrent
// use.
type Store struct {
	mu    sync.RWMutex
	state State
	subs  []chan<- State
}

func New() *Store { return &Store{state: State{Peers: make(node.Group)}} }

// SetState publishes a copy of s and notifies subscribers without blocking.
func (st *Store) SetState(s State) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.state = s.copy()
	for _, sub := range st.subs {
		select {
		case sub <- st.state.copy():
		default:
		}
	}
}

// GetState returns a copy of the published State.
func (st *Store) GetState() State {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.state.copy()
}

// OnChange registers a channel that receives a copy of every published State.
// Publications are dropped when the channel is full.
func (st *Store) OnChange(ch chan<- State) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.subs = append(st.subs, ch)
}

// Unsubscribe stops notifying ch. Unknown channels are ignored.
func (st *Store) Unsubscribe(ch chan<- State) {
	st.mu.Lock()
	defer st.mu.Unlock()
	for i, sub := range st.subs {
		if sub == ch {
			st.subs = append(st.subs[:i:i], st.subs[i+1:]...)
			return
		}
	}
}
