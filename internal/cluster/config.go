package cluster

import (
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

type Config struct {
	// PingCutoff is how long after its last contact a peer stops being included
	// in gossip payloads.
	PingCutoff time.Duration
	// FailCutoff is the additional silence, after PingCutoff, before a peer is
	// declared down.
	FailCutoff time.Duration
	// EvictAfter is how long a peer stays down before its record is deleted.
	// Zero retains down records forever.
	EvictAfter time.Duration
	// Logger
	Logger *zap.Logger
}

func (cfg Config) Merge(def Config) Config {
	if cfg.PingCutoff == 0 {
		cfg.PingCutoff = def.PingCutoff
	}
	if cfg.FailCutoff == 0 {
		cfg.FailCutoff = def.FailCutoff
	}
	if cfg.EvictAfter == 0 {
		cfg.EvictAfter = def.EvictAfter
	}
	if cfg.Logger == nil {
		cfg.Logger = def.Logger
	}
	return cfg
}

func (cfg Config) Validate() error {
	if cfg.PingCutoff <= 0 {
		return errors.Newf("ping cutoff must be positive, got %s", cfg.PingCutoff)
	}
	if cfg.FailCutoff <= 0 {
		return errors.Newf("fail cutoff must be positive, got %s", cfg.FailCutoff)
	}
	if cfg.EvictAfter < 0 {
		return errors.Newf("eviction threshold must not be negative, got %s", cfg.EvictAfter)
	}
	if cfg.Logger == nil {
		return errors.New("logger must be set")
	}
	return nil
}

// Deadline returns the total silence after which a peer is declared down.
func (cfg Config) Deadline() time.Duration { return cfg.PingCutoff + cfg.FailCutoff }

func DefaultConfig() Config {
	return Config{
		PingCutoff: 500 * time.Millisecond,
		FailCutoff: 1000 * time.Millisecond,
		Logger:     zap.NewNop(),
	}
}
