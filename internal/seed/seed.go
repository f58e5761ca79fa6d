// Package seed provides the sources a node refreshes its seed set from, and the
// registries it advertises itself through.
package seed

import (
	"context"

	"github.com/arya-analytics/pulse/internal/address"
	"go.uber.org/zap"
)

// Source returns addresses a node should announce itself to.
type Source interface {
	Seeds(ctx context.Context) ([]address.Address, error)
}

// Registry is a Source that nodes also register their own address with.
type Registry interface {
	Source
	// Register advertises addr. It is called periodically and must refresh any
	// expiring registration.
	Register(ctx context.Context, addr address.Address) error
	// Close withdraws the registration.
	Close() error
}

// Static is a fixed list of seeds.
type Static []address.Address

func (s Static) Seeds(context.Context) ([]address.Address, error) {
	return append([]address.Address(nil), s...), nil
}

// parse converts registry entries into addresses, logging and skipping any
// that don't parse.
func parse(logger *zap.Logger, entries []string) []address.Address {
	addrs := make([]address.Address, 0, len(entries))
	for _, e := range entries {
		addr, err := address.Parse(e)
		if err != nil || addr.Unspecified() {
			logger.Warn("skipping malformed seed entry", zap.String("entry", e), zap.Error(err))
			continue
		}
		addrs = append(addrs, addr)
	}
	return addrs
}
