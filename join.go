package pulse

import (
	"context"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// Join opens a node, runs it in the background and blocks until it tracks at
// least one up peer. A node joined without seeds bootstraps a new cluster and
// returns immediately. Close stops the node.
func Join(ctx context.Context, port uint16, seeds []Address, opts ...Option) (*Node, error) {
	n, err := Open(ctx, port, append(opts, WithSeeds(seeds...))...)
	if err != nil {
		return nil, err
	}
	// The loop owns the agent once Run starts.
	bootstrap := len(n.agent.Seeds()) == 0
	states := make(chan State, 1)
	n.Watch(states)
	defer n.Unwatch(states)

	runCtx, cancel := context.WithCancel(context.Background())
	n.stop, n.done = cancel, make(chan struct{})
	go func() {
		defer close(n.done)
		n.runErr = n.Run(runCtx)
	}()

	if bootstrap {
		return n, nil
	}
	for {
		select {
		case s := <-states:
			if len(s.Peers.WhereUp()) > 0 {
				n.logger.Info("joined cluster", zap.Int("peers", len(s.Peers)))
				return n, nil
			}
		case <-n.done:
			err := n.Close()
			if err == nil {
				err = errors.New("node stopped")
			}
			return nil, errors.Wrap(err, "join")
		case <-ctx.Done():
			return nil, errors.CombineErrors(ctx.Err(), n.Close())
		}
	}
}
