package mock

import (
	"time"

	"github.com/arya-analytics/pulse"
	tmock "github.com/arya-analytics/pulse/transport/mock"
)

// NewMemBuilder returns a builder on a fresh in-memory network with cutoffs
// short enough for tests.
func NewMemBuilder(defaultOpts ...pulse.Option) *Builder {
	return &Builder{
		Network:        tmock.NewNetwork(),
		Host:           0x7F000001,
		PortRangeStart: 22546,
		DefaultOptions: append([]pulse.Option{
			pulse.WithCutoffs(50*time.Millisecond, 100*time.Millisecond),
			pulse.WithIntervals(30*time.Millisecond, 50*time.Millisecond),
		}, defaultOpts...),
	}
}
