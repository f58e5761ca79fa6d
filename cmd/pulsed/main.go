// Command pulsed runs a membership node with optional seed discovery through
// etcd or redis, a prometheus endpoint, a gRPC health endpoint and an event
// journal.
package main

import (
	"context"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arya-analytics/pulse"
	"github.com/arya-analytics/pulse/internal/admin"
	"github.com/arya-analytics/pulse/internal/journal"
	"github.com/arya-analytics/pulse/internal/metrics"
	"github.com/arya-analytics/pulse/internal/seed"
	"github.com/cockroachdb/errors"
	"github.com/go-redis/redis/v9"
	"github.com/joho/godotenv"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "pulsed: load .env:", err)
		os.Exit(2)
	}
	cfg, err := parseConfig(os.Args[1:], os.Getenv)
	if err != nil {
		fmt.Fprintln(os.Stderr, "pulsed:", err)
		os.Exit(2)
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(cfg.logLevel)
	logger, err := zcfg.Build()
	if err != nil {
		fmt.Fprintln(os.Stderr, "pulsed: build logger:", err)
		os.Exit(2)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("pulsed failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config, logger *zap.Logger) error {
	opts := []pulse.Option{
		pulse.WithLogger(logger),
		pulse.WithSeeds(cfg.seeds...),
		pulse.WithAdvertiseHost(cfg.advertiseHost),
		pulse.WithCutoffs(cfg.pingCutoff, cfg.failCutoff),
		pulse.WithEvictAfter(cfg.evictAfter),
		pulse.WithIntervals((cfg.pingCutoff+cfg.failCutoff)/5, cfg.discovery),
	}

	registry, err := openRegistry(cfg, logger)
	if err != nil {
		return err
	}
	if registry != nil {
		opts = append(opts, pulse.WithRegistry(registry))
	}

	var m *metrics.Metrics
	if cfg.metricsAddr != "" {
		m = metrics.New()
		opts = append(opts, pulse.WithMetrics(m))
	}

	var adminSrv *admin.Server
	if cfg.adminAddr != "" {
		adminSrv = admin.New(logger.Named("admin"))
		opts = append(opts, pulse.WithHealth(adminSrv))
	}

	if cfg.journalDir != "" {
		j, err := journal.Open(journal.Config{Dir: cfg.journalDir, Logger: logger.Named("journal")})
		if err != nil {
			if registry != nil {
				err = errors.CombineErrors(err, registry.Close())
			}
			return err
		}
		opts = append(opts, pulse.WithJournal(j))
	}

	// Open releases the registry and journal itself when it fails.
	n, err := pulse.Open(ctx, cfg.port, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if err := n.Close(); err != nil {
			logger.Error("failed to close node", zap.Error(err))
		}
	}()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return n.Run(ctx) })
	if m != nil {
		srv := &http.Server{Addr: cfg.metricsAddr, Handler: m.Handler(), ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			logger.Info("serving metrics", zap.String("addr", cfg.metricsAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return errors.Wrap(err, "serve metrics")
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(sctx)
		})
	}
	if adminSrv != nil {
		lis, err := net.Listen("tcp", cfg.adminAddr)
		if err != nil {
			return errors.Wrapf(err, "listen on %s", cfg.adminAddr)
		}
		g.Go(func() error { return adminSrv.Serve(lis) })
		g.Go(func() error {
			<-ctx.Done()
			adminSrv.Shutdown()
			return nil
		})
	}
	return g.Wait()
}

// openRegistry connects to etcd or redis when either is configured. Etcd wins
// when both are.
func openRegistry(cfg config, logger *zap.Logger) (seed.Registry, error) {
	ttl := 3 * cfg.discovery
	switch {
	case len(cfg.etcd) > 0:
		client, err := clientv3.New(clientv3.Config{Endpoints: cfg.etcd, DialTimeout: 5 * time.Second})
		if err != nil {
			return nil, errors.Wrap(err, "connect to etcd")
		}
		reg, err := seed.NewEtcd(seed.EtcdConfig{KV: client, Lease: client, TTL: ttl, Logger: logger.Named("etcd")})
		if err != nil {
			return nil, errors.CombineErrors(err, client.Close())
		}
		return closeWith(reg, client), nil
	case cfg.redis != "":
		client := redis.NewClient(&redis.Options{Addr: cfg.redis})
		reg, err := seed.NewRedis(seed.RedisConfig{Client: client, TTL: ttl, Logger: logger.Named("redis")})
		if err != nil {
			return nil, errors.CombineErrors(err, client.Close())
		}
		return closeWith(reg, client), nil
	}
	return nil, nil
}

type closer interface{ Close() error }

// registryCloser closes the client a registry was built on after the
// registry itself.
type registryCloser struct {
	seed.Registry
	client closer
}

func closeWith(r seed.Registry, client closer) seed.Registry { return registryCloser{Registry: r, client: client} }

func (r registryCloser) Close() error { return errors.CombineErrors(r.Registry.Close(), r.client.Close()) }
