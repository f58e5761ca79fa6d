package pulse

import (
	"context"
	"io"
	"net"
	"time"

	"github.com/arya-analytics/pulse/internal/address"
	"github.com/arya-analytics/pulse/internal/cluster"
	"github.com/arya-analytics/pulse/internal/cluster/gossip"
	"github.com/arya-analytics/pulse/internal/cluster/store"
	"github.com/arya-analytics/pulse/transport/udp"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Open builds a node listening on port. The node does nothing until Run is
// called.
func Open(ctx context.Context, port uint16, opts ...Option) (*Node, error) {
	o := newOptions(opts...)
	if err := validateOptions(o); err != nil {
		return nil, abort(o, err)
	}

	now := o.clock()
	if now.Before(time.Unix(0, 0)) {
		return nil, abort(o, errors.Wrapf(ErrClock, "clock reads %s", now))
	}

	if err := openTransport(o, port); err != nil {
		return nil, abort(o, err)
	}

	id := uuid.New()
	self := o.transport.Address()
	if o.advertiseHost != address.Unspecified {
		self = self.WithHost(o.advertiseHost)
	}
	logger := o.logger.With(zap.String("instance", id.String()), zap.Stringer("addr", self))

	cfg := o.cluster
	cfg.Logger = logger.Named("cluster")
	var local map[uint32]bool
	if self.Unspecified() {
		local = interfaceHosts()
	}
	agent, err := cluster.New(self, withoutSelf(self, local, o.seeds), now, cfg)
	if err != nil {
		return nil, abort(o, err)
	}

	n := &Node{
		ID:        id,
		options:   o,
		logger:    logger,
		self:      self,
		local:     local,
		agent:     agent,
		store:     store.New(),
		observers: observers(logger, o),
		closers:   closers(o),
		buf:       make([]byte, gossip.MaxDatagramSize),
	}
	n.publish(nil)
	logger.Info("opened node",
		zap.Int("seeds", len(agent.Seeds())),
		zap.Duration("pingCutoff", o.cluster.PingCutoff),
		zap.Duration("failCutoff", o.cluster.FailCutoff),
		zap.Duration("gossipInterval", o.gossipInterval),
		zap.Duration("discoveryInterval", o.discoveryInterval),
	)
	return n, nil
}

func openTransport(o *options, port uint16) error {
	if o.transport != nil {
		return nil
	}
	t, err := udp.Listen(port)
	if err != nil {
		return errors.Mark(err, ErrTransport)
	}
	o.transport = t
	return nil
}

func observers(logger *zap.Logger, o *options) []Observer {
	obs := []Observer{logObserver{logger: logger}}
	if o.metrics != nil {
		obs = append(obs, o.metrics)
	}
	if o.journal != nil {
		obs = append(obs, o.journal)
	}
	return append(obs, o.observers...)
}

func closers(o *options) []io.Closer {
	var c []io.Closer
	if o.transport != nil {
		c = append(c, o.transport)
	}
	if o.registry != nil {
		c = append(c, o.registry)
	}
	if o.journal != nil {
		c = append(c, o.journal)
	}
	return c
}

// abort releases everything Open took ownership of through options.
func abort(o *options, err error) error {
	for _, c := range closers(o) {
		err = errors.CombineErrors(err, c.Close())
	}
	return err
}

// withoutSelf drops seeds that address the host itself. When the host is
// unspecified, a seed on the host's port at one of the local hosts is the host.
func withoutSelf(self address.Address, local map[uint32]bool, seeds []address.Address) []address.Address {
	out := make([]address.Address, 0, len(seeds))
	for _, s := range seeds {
		if s == self || (s.Port == self.Port && local[s.Host]) {
			continue
		}
		out = append(out, s)
	}
	return out
}

func interfaceHosts() map[uint32]bool {
	hosts := map[uint32]bool{address.New(0x7F000001, 0).Host: true}
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return hosts
	}
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		if host, err := address.ParseHost(ipNet.IP.String()); err == nil {
			hosts[host] = true
		}
	}
	return hosts
}
