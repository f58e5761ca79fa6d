package main

import (
	"flag"
	"strconv"
	"strings"
	"time"

	"github.com/arya-analytics/pulse"
	"github.com/arya-analytics/pulse/internal/address"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap/zapcore"
)

// envPrefix prefixes the environment variable backing each flag, e.g. -port is
// read from PULSE_PORT.
const envPrefix = "PULSE_"

type config struct {
	port          uint16
	seeds         []pulse.Address
	advertiseHost uint32
	pingCutoff    time.Duration
	failCutoff    time.Duration
	evictAfter    time.Duration
	discovery     time.Duration
	etcd          []string
	redis         string
	metricsAddr   string
	adminAddr     string
	journalDir    string
	logLevel      zapcore.Level
}

// parseConfig parses args. Every flag defaults to its environment variable
// when set, then to the built-in default.
func parseConfig(args []string, getenv func(string) string) (config, error) {
	var (
		cfg   config
		err   error
		envOr = func(name, def string) string { return orDefault(getenv(envName(name)), def) }
		durs  = make(map[string]time.Duration)
	)
	for name, def := range map[string]time.Duration{
		"ping":      500 * time.Millisecond,
		"fail":      time.Second,
		"evict":     0,
		"discovery": 10 * time.Second,
	} {
		if durs[name], err = durationEnv(getenv, name, def); err != nil {
			return cfg, err
		}
	}
	defPort, err := strconv.ParseUint(envOr("port", "7000"), 10, 16)
	if err != nil {
		return cfg, errors.Wrapf(err, "parse %s", envName("port"))
	}

	var (
		fs        = flag.NewFlagSet("pulsed", flag.ContinueOnError)
		port      = fs.Uint("port", uint(defPort), "UDP port to gossip on")
		seeds     = fs.String("seeds", envOr("seeds", ""), "comma separated seed addresses (host:port)")
		advertise = fs.String("advertise", envOr("advertise", ""), "IPv4 host peers reach this node at")
		ping      = fs.Duration("ping", durs["ping"], "silence after which a peer is no longer gossiped")
		fail      = fs.Duration("fail", durs["fail"], "additional silence after which a peer is declared down")
		evict     = fs.Duration("evict", durs["evict"], "time a peer stays down before it is forgotten (0 keeps it)")
		discovery = fs.Duration("discovery", durs["discovery"], "interval between seed announcements and refreshes")
		etcd      = fs.String("etcd", envOr("etcd", ""), "comma separated etcd endpoints used for seed discovery")
		redis     = fs.String("redis", envOr("redis", ""), "redis address used for seed discovery")
		metrics   = fs.String("metrics", envOr("metrics", ""), "listen address of the prometheus endpoint")
		admin     = fs.String("admin", envOr("admin", ""), "listen address of the gRPC health endpoint")
		journal   = fs.String("journal", envOr("journal", ""), "directory of the membership event journal")
		level     = fs.String("log-level", envOr("log-level", "info"), "log level")
	)
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	if *port > 1<<16-1 {
		return cfg, errors.Newf("port %d out of range", *port)
	}
	cfg.port = uint16(*port)
	cfg.pingCutoff, cfg.failCutoff, cfg.evictAfter, cfg.discovery = *ping, *fail, *evict, *discovery
	cfg.redis, cfg.metricsAddr, cfg.adminAddr, cfg.journalDir = *redis, *metrics, *admin, *journal
	cfg.etcd = split(*etcd)
	for _, s := range split(*seeds) {
		addr, err := address.Parse(s)
		if err != nil {
			return cfg, err
		}
		cfg.seeds = append(cfg.seeds, addr)
	}
	if *advertise != "" {
		if cfg.advertiseHost, err = address.ParseHost(*advertise); err != nil {
			return cfg, err
		}
	}
	if cfg.logLevel, err = zapcore.ParseLevel(*level); err != nil {
		return cfg, errors.Wrap(err, "parse log level")
	}
	return cfg, nil
}

func envName(flag string) string {
	return envPrefix + strings.ToUpper(strings.ReplaceAll(flag, "-", "_"))
}

func durationEnv(getenv func(string) string, name string, def time.Duration) (time.Duration, error) {
	v := getenv(envName(name))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	return d, errors.Wrapf(err, "parse %s", envName(name))
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func split(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
