package pulse

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/arya-analytics/pulse/internal/address"
	"github.com/arya-analytics/pulse/internal/cluster"
	"github.com/arya-analytics/pulse/internal/cluster/gossip"
	"github.com/arya-analytics/pulse/internal/cluster/store"
	"github.com/arya-analytics/pulse/internal/metrics"
	"github.com/arya-analytics/pulse/transport"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Node drives a membership agent. Run owns the agent; every other method is
// safe to call concurrently with it.
type Node struct {
	// ID identifies this run of the node in logs.
	ID uuid.UUID
	*options
	logger    *zap.Logger
	self      address.Address
	local     map[uint32]bool
	agent     *cluster.Agent
	store     *store.Store
	observers []Observer
	closers   []io.Closer
	buf       []byte
	ready     bool

	lastGossip, lastDiscovery time.Time

	// set by Join when the node runs in the background.
	stop    context.CancelFunc
	done    chan struct{}
	runErr  error
	closeMu sync.Mutex
	closed  bool
}

// Self returns the host's most recently published record.
func (n *Node) Self() Record { return n.store.GetState().Host }

// Peers returns the most recently published peer table.
func (n *Node) Peers() Group { return n.store.GetState().Peers }

// Watch delivers every published state to ch. States are dropped while ch is
// full.
func (n *Node) Watch(ch chan<- State) { n.store.OnChange(ch) }

// Unwatch stops delivering states to a channel passed to Watch.
func (n *Node) Unwatch(ch chan<- State) { n.store.Unsubscribe(ch) }

// Address returns the address the node announces itself with.
func (n *Node) Address() Address { return n.self }

// Run drives the node until ctx is cancelled or the transport fails. Seeds are
// refreshed from the configured source in a separate goroutine so the loop only
// ever blocks on receive.
func (n *Node) Run(ctx context.Context) error {
	n.logger.Info("starting membership loop")
	defer n.logger.Info("stopped membership loop")
	g, ctx := errgroup.WithContext(ctx)
	refreshed := make(chan []address.Address, 1)
	if n.source != nil || n.registry != nil {
		g.Go(func() error {
			n.refreshSeeds(ctx, refreshed)
			return nil
		})
	}
	g.Go(func() error { return n.loop(ctx, refreshed) })
	return g.Wait()
}

func (n *Node) loop(ctx context.Context, refreshed <-chan []address.Address) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case seeds := <-refreshed:
			if added := n.agent.AddSeeds(withoutSelf(n.self, n.local, seeds)...); added > 0 {
				n.logger.Debug("added seeds", zap.Int("count", added))
			}
		default:
		}
		if err := n.iterate(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

// iterate runs a single pass of the loop: announce to unseen seeds when the
// discovery interval elapsed, receive at most one datagram, gossip when the
// gossip interval elapsed, then detect and evict.
func (n *Node) iterate(ctx context.Context) error {
	var events []Event
	now := n.clock()
	if due(n.lastDiscovery, n.discoveryInterval, now) {
		n.lastDiscovery = now
		n.announce(ctx)
	}

	received, err := n.receive(ctx)
	if err != nil {
		return err
	}
	now = n.clock()
	if received != nil {
		events = append(events, n.agent.MergeInbound(*received, now)...)
	}

	if due(n.lastGossip, n.gossipInterval, now) {
		n.lastGossip = now
		if n.agent.IsReady() {
			n.gossip(ctx, now)
		}
	}

	events = append(events, n.agent.DetectFailures(now)...)
	events = append(events, n.agent.Evict(now)...)
	n.publish(events)
	return nil
}

func (n *Node) announce(ctx context.Context) {
	msg := gossip.Announce(n.agent.Self().Identity)
	for _, to := range n.agent.Discover() {
		n.send(ctx, to, msg)
	}
}

func (n *Node) gossip(ctx context.Context, now time.Time) {
	start := time.Now()
	n.agent.AdvanceClock(now)
	for _, env := range n.agent.BuildGossipPayload(now) {
		n.send(ctx, env.To, env.Message)
	}
	if n.metrics != nil {
		n.metrics.Round(time.Since(start))
	}
}

// send encodes and transmits msg. Failures are logged and counted, never
// retried: the next round carries the same information.
func (n *Node) send(ctx context.Context, to address.Address, msg gossip.Message) {
	b, err := gossip.Encode(msg)
	if err != nil {
		n.logger.Error("failed to encode message", zap.Stringer("msg", msg), zap.Error(err))
		n.countDatagram(metrics.Outbound, metrics.Dropped)
		return
	}
	if err := n.transport.Send(ctx, to, b); err != nil {
		n.logger.Warn("failed to send message", zap.Stringer("to", to), zap.Error(err))
		n.countDatagram(metrics.Outbound, metrics.Failed)
		return
	}
	n.logger.Debug("sent", zap.Stringer("to", to), zap.Stringer("msg", msg))
	n.countDatagram(metrics.Outbound, metrics.OK)
}

// receive waits up to the read timeout for a datagram. It returns a nil
// message on timeout or when the datagram is discarded, and an error only when
// the loop can't continue.
func (n *Node) receive(ctx context.Context) (*gossip.Message, error) {
	size, from, err := n.transport.Receive(ctx, n.buf, n.readTimeout)
	if err != nil {
		switch {
		case errors.Is(err, transport.ErrTimeout):
			return nil, nil
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case errors.Is(err, transport.ErrClosed):
			return nil, errors.Mark(err, ErrTransport)
		}
		n.logger.Warn("failed to receive datagram", zap.Error(err))
		n.countDatagram(metrics.Inbound, metrics.Failed)
		return nil, nil
	}
	msg, err := gossip.Decode(n.buf[:size])
	if err != nil {
		n.logger.Debug("discarding datagram", zap.Stringer("from", from), zap.Error(err))
		n.countDatagram(metrics.Inbound, metrics.Dropped)
		if n.metrics != nil {
			n.metrics.DecodeError()
		}
		return nil, nil
	}
	msg = gossip.PatchOrigin(msg, from)
	n.logger.Debug("received", zap.Stringer("from", from), zap.Stringer("msg", msg))
	n.countDatagram(metrics.Inbound, metrics.OK)
	return &msg, nil
}

// publish makes the agent's state visible outside the loop, then routes the
// events of the iteration to every observer.
func (n *Node) publish(events []Event) {
	s := State{Host: n.agent.Self(), Peers: n.agent.Peers()}
	n.store.SetState(s)
	if n.metrics != nil {
		n.metrics.SetPeers(s.Peers)
	}
	for _, obs := range n.observers {
		obs.Observe(events)
	}
	if ready := n.agent.IsReady(); n.health != nil && ready != n.ready {
		n.health.SetReady(ready)
	}
	n.ready = n.agent.IsReady()
}

func (n *Node) countDatagram(direction, result string) {
	if n.metrics != nil {
		n.metrics.Datagram(direction, result)
	}
}

// refreshSeeds polls the seed source and registers the node every discovery
// interval, handing new seeds to the loop. A pending batch the loop hasn't
// consumed yet is replaced.
func (n *Node) refreshSeeds(ctx context.Context, out chan []address.Address) {
	ticker := time.NewTicker(n.discoveryInterval)
	defer ticker.Stop()
	for {
		n.refreshOnce(ctx, out)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (n *Node) refreshOnce(ctx context.Context, out chan []address.Address) {
	ctx, cancel := context.WithTimeout(ctx, n.discoveryInterval)
	defer cancel()
	var seeds []address.Address
	if n.registry != nil {
		if n.self.Unspecified() {
			n.logger.Warn("not registering a node without an advertised host")
		} else if err := n.registry.Register(ctx, n.self); err != nil {
			n.logger.Warn("failed to register", zap.Error(err))
		}
		s, err := n.registry.Seeds(ctx)
		if err != nil {
			n.logger.Warn("failed to list registered seeds", zap.Error(err))
		}
		seeds = append(seeds, s...)
	}
	if n.source != nil {
		s, err := n.source.Seeds(ctx)
		if err != nil {
			n.logger.Warn("failed to refresh seeds", zap.Error(err))
		}
		seeds = append(seeds, s...)
	}
	if len(seeds) == 0 {
		return
	}
	select {
	case <-out:
	default:
	}
	out <- seeds
}

// Close stops a node started by Join and releases the transport, registry and
// journal. Calling Close more than once returns nil.
func (n *Node) Close() error {
	n.closeMu.Lock()
	defer n.closeMu.Unlock()
	if n.closed {
		return nil
	}
	n.closed = true
	var err error
	if n.stop != nil {
		n.stop()
		<-n.done
		err = n.runErr
	}
	for _, c := range n.closers {
		err = errors.CombineErrors(err, c.Close())
	}
	if n.health != nil {
		n.health.SetReady(false)
	}
	return err
}

func due(last time.Time, interval time.Duration, now time.Time) bool {
	return last.IsZero() || now.Sub(last) >= interval
}
