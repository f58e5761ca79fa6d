package pulse

import (
	"time"

	"github.com/arya-analytics/pulse/internal/address"
	"github.com/arya-analytics/pulse/internal/cluster"
	"github.com/arya-analytics/pulse/internal/journal"
	"github.com/arya-analytics/pulse/internal/metrics"
	"github.com/arya-analytics/pulse/internal/seed"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

type Option func(*options)

type options struct {
	// logger is the root logger every component derives its logger from.
	logger *zap.Logger
	// transport sends and receives datagrams. Defaults to a UDP socket bound on
	// every interface at the node's port.
	transport Transport
	// seeds are the addresses the node announces itself to until it tracks
	// them as up peers.
	seeds []address.Address
	// source is polled every discovery interval for additional seeds.
	source seed.Source
	// registry is a source the node also registers its own address with.
	registry seed.Registry
	// advertiseHost is the host peers reach this node at. When unset, the node
	// announces an unspecified host and peers fill in the host they observe.
	advertiseHost uint32
	// cluster holds the cutoffs and eviction threshold of the agent.
	cluster cluster.Config
	// gossipInterval is the time between gossip rounds.
	gossipInterval time.Duration
	// discoveryInterval is the time between announcements to unseen seeds.
	discoveryInterval time.Duration
	// readTimeout bounds how long a single receive blocks the loop.
	readTimeout time.Duration
	clock       func() time.Time
	observers   []Observer
	health      Health
	metrics     *metrics.Metrics
	journal     *journal.Journal
}

func newOptions(opts ...Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	mergeDefaultOptions(o)
	return o
}

func validateOptions(o *options) error {
	if err := o.cluster.Validate(); err != nil {
		return err
	}
	if o.gossipInterval <= 0 {
		return errors.Newf("gossip interval must be positive, got %s", o.gossipInterval)
	}
	if o.discoveryInterval <= 0 {
		return errors.Newf("discovery interval must be positive, got %s", o.discoveryInterval)
	}
	if o.readTimeout <= 0 {
		return errors.Newf("read timeout must be positive, got %s", o.readTimeout)
	}
	if o.readTimeout > o.gossipInterval {
		return errors.Newf("read timeout %s must not exceed the gossip interval %s", o.readTimeout, o.gossipInterval)
	}
	return nil
}

func mergeDefaultOptions(o *options) {
	def := defaultOptions()

	// |||| LOGGER ||||

	if o.logger == nil {
		o.logger = def.logger
	}

	// |||| CLUSTER ||||

	o.cluster = o.cluster.Merge(def.cluster)

	// |||| INTERVALS ||||

	if o.gossipInterval == 0 {
		o.gossipInterval = o.cluster.Deadline() / 5
	}
	if o.readTimeout == 0 {
		o.readTimeout = o.gossipInterval / 5
	}
	if o.discoveryInterval == 0 {
		o.discoveryInterval = def.discoveryInterval
	}

	// |||| CLOCK ||||

	if o.clock == nil {
		o.clock = def.clock
	}
}

func defaultOptions() *options {
	return &options{
		logger:            zap.NewNop(),
		cluster:           cluster.DefaultConfig(),
		discoveryInterval: 10 * time.Second,
		clock:             time.Now,
	}
}

func WithLogger(logger *zap.Logger) Option { return func(o *options) { o.logger = logger } }

// WithTransport replaces the default UDP transport. The node closes it.
func WithTransport(t Transport) Option { return func(o *options) { o.transport = t } }

func WithSeeds(seeds ...Address) Option {
	return func(o *options) { o.seeds = append(o.seeds, seeds...) }
}

// WithSeedSource polls source for seeds every discovery interval.
func WithSeedSource(source seed.Source) Option { return func(o *options) { o.source = source } }

// WithRegistry registers the node with r every discovery interval and polls it
// for seeds. The node closes it.
func WithRegistry(r seed.Registry) Option { return func(o *options) { o.registry = r } }

func WithAdvertiseHost(host uint32) Option { return func(o *options) { o.advertiseHost = host } }

func WithCutoffs(ping, fail time.Duration) Option {
	return func(o *options) { o.cluster.PingCutoff, o.cluster.FailCutoff = ping, fail }
}

// WithEvictAfter deletes peers that stay down for longer than d.
func WithEvictAfter(d time.Duration) Option { return func(o *options) { o.cluster.EvictAfter = d } }

func WithIntervals(gossip, discovery time.Duration) Option {
	return func(o *options) { o.gossipInterval, o.discoveryInterval = gossip, discovery }
}

func WithReadTimeout(d time.Duration) Option { return func(o *options) { o.readTimeout = d } }

func WithClock(clock func() time.Time) Option { return func(o *options) { o.clock = clock } }

func WithObserver(obs Observer) Option {
	return func(o *options) { o.observers = append(o.observers, obs) }
}

func WithHealth(h Health) Option { return func(o *options) { o.health = h } }

// WithMetrics observes events with m and feeds it datagram and round
// statistics.
func WithMetrics(m *metrics.Metrics) Option { return func(o *options) { o.metrics = m } }

// WithJournal appends every event to j. The node closes it.
func WithJournal(j *journal.Journal) Option { return func(o *options) { o.journal = j } }
