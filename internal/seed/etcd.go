package seed

import (
	"context"
	"sync"
	"time"

	"github.com/arya-analytics/pulse/internal/address"
	"github.com/cockroachdb/errors"
	"go.etcd.io/etcd/api/v3/v3rpc/rpctypes"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
)

// EtcdKV is the subset of clientv3.KV used by Etcd.
type EtcdKV interface {
	Get(ctx context.Context, key string, opts ...clientv3.OpOption) (*clientv3.GetResponse, error)
	Put(ctx context.Context, key, val string, opts ...clientv3.OpOption) (*clientv3.PutResponse, error)
}

// EtcdLease is the subset of clientv3.Lease used by Etcd.
type EtcdLease interface {
	Grant(ctx context.Context, ttl int64) (*clientv3.LeaseGrantResponse, error)
	KeepAliveOnce(ctx context.Context, id clientv3.LeaseID) (*clientv3.LeaseKeepAliveResponse, error)
	Revoke(ctx context.Context, id clientv3.LeaseID) (*clientv3.LeaseRevokeResponse, error)
}

type EtcdConfig struct {
	KV    EtcdKV
	Lease EtcdLease
	// Prefix is the key prefix nodes register under.
	Prefix string
	// TTL is the lifetime of a registration that is not refreshed.
	TTL    time.Duration
	Logger *zap.Logger
}

func (cfg EtcdConfig) Merge(def EtcdConfig) EtcdConfig {
	if cfg.Prefix == "" {
		cfg.Prefix = def.Prefix
	}
	if cfg.TTL == 0 {
		cfg.TTL = def.TTL
	}
	if cfg.Logger == nil {
		cfg.Logger = def.Logger
	}
	return cfg
}

func (cfg EtcdConfig) Validate() error {
	if cfg.KV == nil || cfg.Lease == nil {
		return errors.New("etcd kv and lease clients must be set")
	}
	if cfg.TTL < time.Second {
		return errors.Newf("etcd ttl must be at least one second, got %s", cfg.TTL)
	}
	return nil
}

func DefaultEtcdConfig() EtcdConfig {
	return EtcdConfig{Prefix: "/pulse/nodes/", TTL: 30 * time.Second, Logger: zap.NewNop()}
}

// Etcd discovers seeds from keys under a prefix and registers the host under a
// leased key.
type Etcd struct {
	EtcdConfig
	mu    sync.Mutex
	lease clientv3.LeaseID
	key   string
}

var _ Registry = (*Etcd)(nil)

// NewEtcd wraps an etcd client. *clientv3.Client satisfies both EtcdKV and
// EtcdLease.
func NewEtcd(cfg EtcdConfig) (*Etcd, error) {
	cfg = cfg.Merge(DefaultEtcdConfig())
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Etcd{EtcdConfig: cfg}, nil
}

func (e *Etcd) Seeds(ctx context.Context) ([]address.Address, error) {
	res, err := e.KV.Get(ctx, e.Prefix, clientv3.WithPrefix())
	if err != nil {
		return nil, errors.Wrapf(err, "list %s", e.Prefix)
	}
	entries := make([]string, len(res.Kvs))
	for i, kv := range res.Kvs {
		entries[i] = string(kv.Value)
	}
	return parse(e.Logger, entries), nil
}

// Register puts the host's key with a lease on the first call and keeps the
// lease alive on later calls. An expired lease is replaced.
func (e *Etcd) Register(ctx context.Context, addr address.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	key := e.Prefix + addr.String()
	if e.lease != clientv3.NoLease && e.key == key {
		_, err := e.Lease.KeepAliveOnce(ctx, e.lease)
		if err == nil {
			return nil
		}
		if !errors.Is(err, rpctypes.ErrLeaseNotFound) {
			return errors.Wrapf(err, "keep alive lease %x", int64(e.lease))
		}
		e.Logger.Warn("etcd lease expired, registering again", zap.String("key", key))
	}
	grant, err := e.Lease.Grant(ctx, int64(e.TTL/time.Second))
	if err != nil {
		return errors.Wrap(err, "grant lease")
	}
	if _, err := e.KV.Put(ctx, key, addr.String(), clientv3.WithLease(grant.ID)); err != nil {
		return errors.Wrapf(err, "put %s", key)
	}
	e.lease, e.key = grant.ID, key
	e.Logger.Debug("registered with etcd", zap.String("key", key), zap.Int64("lease", int64(grant.ID)))
	return nil
}

// Close revokes the registration lease, deleting the host's key.
func (e *Etcd) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lease == clientv3.NoLease {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := e.Lease.Revoke(ctx, e.lease)
	e.lease = clientv3.NoLease
	return errors.Wrap(err, "revoke lease")
}
