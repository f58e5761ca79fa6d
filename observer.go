package pulse

import "go.uber.org/zap"

// logObserver logs every membership transition.
type logObserver struct {
	logger *zap.Logger
}

func (o logObserver) Observe(events []Event) {
	for _, e := range events {
		o.logger.Info("peer "+e.Kind.String(),
			zap.Stringer("peer", e.Record.Addr),
			zap.Uint64("beat", uint64(e.Record.Beat)),
		)
	}
}
