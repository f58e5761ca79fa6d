package seed

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/arya-analytics/pulse/internal/address"
	"github.com/cockroachdb/errors"
	"github.com/go-redis/redis/v9"
	"go.uber.org/zap"
)

// RedisClient is the subset of redis.Cmdable used by Redis.
type RedisClient interface {
	ZAdd(ctx context.Context, key string, members ...redis.Z) *redis.IntCmd
	ZRangeByScore(ctx context.Context, key string, opt *redis.ZRangeBy) *redis.StringSliceCmd
	ZRemRangeByScore(ctx context.Context, key, min, max string) *redis.IntCmd
	ZRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
}

type RedisConfig struct {
	Client RedisClient
	// Key is the sorted set nodes register in.
	Key string
	// TTL is the lifetime of a registration that is not refreshed.
	TTL    time.Duration
	Logger *zap.Logger
	// Now is the clock registrations expire against.
	Now func() time.Time
}

func (cfg RedisConfig) Merge(def RedisConfig) RedisConfig {
	if cfg.Key == "" {
		cfg.Key = def.Key
	}
	if cfg.TTL == 0 {
		cfg.TTL = def.TTL
	}
	if cfg.Logger == nil {
		cfg.Logger = def.Logger
	}
	if cfg.Now == nil {
		cfg.Now = def.Now
	}
	return cfg
}

func (cfg RedisConfig) Validate() error {
	if cfg.Client == nil {
		return errors.New("redis client must be set")
	}
	if cfg.TTL <= 0 {
		return errors.Newf("redis ttl must be positive, got %s", cfg.TTL)
	}
	return nil
}

func DefaultRedisConfig() RedisConfig {
	return RedisConfig{Key: "pulse:nodes", TTL: 30 * time.Second, Logger: zap.NewNop(), Now: time.Now}
}

// Redis keeps registrations in a sorted set scored by their expiry time in unix
// milliseconds.
type Redis struct {
	RedisConfig
	mu         sync.Mutex
	registered string
}

var _ Registry = (*Redis)(nil)

// NewRedis wraps a redis client. *redis.Client satisfies RedisClient.
func NewRedis(cfg RedisConfig) (*Redis, error) {
	cfg = cfg.Merge(DefaultRedisConfig())
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Redis{RedisConfig: cfg}, nil
}

// Seeds trims expired registrations and returns the rest.
func (r *Redis) Seeds(ctx context.Context) ([]address.Address, error) {
	now := strconv.FormatInt(r.Now().UnixMilli(), 10)
	if err := r.Client.ZRemRangeByScore(ctx, r.Key, "-inf", now).Err(); err != nil {
		return nil, errors.Wrapf(err, "trim %s", r.Key)
	}
	entries, err := r.Client.ZRangeByScore(ctx, r.Key, &redis.ZRangeBy{Min: "(" + now, Max: "+inf"}).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "list %s", r.Key)
	}
	return parse(r.Logger, entries), nil
}

func (r *Redis) Register(ctx context.Context, addr address.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	member := redis.Z{Score: float64(r.Now().Add(r.TTL).UnixMilli()), Member: addr.String()}
	if err := r.Client.ZAdd(ctx, r.Key, member).Err(); err != nil {
		return errors.Wrapf(err, "register %s", addr)
	}
	r.registered = addr.String()
	return nil
}

func (r *Redis) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.registered == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := r.Client.ZRem(ctx, r.Key, r.registered).Err()
	r.registered = ""
	return errors.Wrapf(err, "deregister from %s", r.Key)
}
