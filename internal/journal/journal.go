// Package journal keeps an append-only history of membership events in a pebble
// database.
package journal

import (
	"encoding/binary"
	"sync"
	"time"

	"github.com/arya-analytics/pulse/internal/cluster"
	"github.com/arya-analytics/pulse/internal/cluster/gossip"
	"github.com/arya-analytics/pulse/internal/node"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"go.uber.org/zap"
)

// ErrCorrupt is returned when a stored entry can't be decoded.
var ErrCorrupt = errors.New("corrupt journal entry")

const (
	keySize   = 16
	valueSize = 1 + gossip.IdentitySize + 8 + 8
)

type Config struct {
	// Dir is the directory the database lives in.
	Dir string
	// FS is the filesystem the database is stored on. Use vfs.NewMem() for an
	// in-memory journal.
	FS     vfs.FS
	Logger *zap.Logger
	// Now timestamps appended entries.
	Now func() time.Time
}

func (cfg Config) Merge(def Config) Config {
	if cfg.Dir == "" {
		cfg.Dir = def.Dir
	}
	if cfg.FS == nil {
		cfg.FS = def.FS
	}
	if cfg.Logger == nil {
		cfg.Logger = def.Logger
	}
	if cfg.Now == nil {
		cfg.Now = def.Now
	}
	return cfg
}

func (cfg Config) Validate() error {
	if cfg.Dir == "" {
		return errors.New("journal directory must be set")
	}
	return nil
}

func DefaultConfig() Config {
	return Config{FS: vfs.Default, Logger: zap.NewNop(), Now: time.Now}
}

// Entry is an event and the time it was appended.
type Entry struct {
	At    time.Time
	Event cluster.Event
}

type Journal struct {
	Config
	db  *pebble.DB
	mu  sync.Mutex
	seq uint64
}

func Open(cfg Config) (*Journal, error) {
	cfg = cfg.Merge(DefaultConfig())
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	db, err := pebble.Open(cfg.Dir, &pebble.Options{FS: cfg.FS})
	if err != nil {
		return nil, errors.Wrapf(err, "open journal at %s", cfg.Dir)
	}
	j := &Journal{Config: cfg, db: db}
	if err := j.recoverSeq(); err != nil {
		return nil, errors.CombineErrors(err, db.Close())
	}
	return j, nil
}

// recoverSeq continues the sequence after the newest stored key so reopening
// never overwrites entries appended within the same nanosecond.
func (j *Journal) recoverSeq() error {
	iter, err := j.db.NewIter(nil)
	if err != nil {
		return err
	}
	if iter.Last() && len(iter.Key()) == keySize {
		j.seq = binary.BigEndian.Uint64(iter.Key()[8:]) + 1
	}
	return iter.Close()
}

// Observe appends events in order. Write failures are logged, since observers
// can't fail the loop.
func (j *Journal) Observe(events []cluster.Event) {
	if len(events) == 0 {
		return
	}
	if err := j.Append(events...); err != nil {
		j.Logger.Error("failed to journal events", zap.Error(err))
	}
}

func (j *Journal) Append(events ...cluster.Event) (err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	now := j.Now()
	b := j.db.NewBatch()
	defer func() { err = errors.CombineErrors(err, b.Close()) }()
	for _, e := range events {
		if err := b.Set(encodeKey(now, j.seq), encodeEvent(e), nil); err != nil {
			return err
		}
		j.seq++
	}
	return errors.Wrap(b.Commit(pebble.Sync), "commit journal batch")
}

// Recent returns up to n entries, newest first.
func (j *Journal) Recent(n int) ([]Entry, error) {
	iter, err := j.db.NewIter(nil)
	if err != nil {
		return nil, err
	}
	var entries []Entry
	for valid := iter.Last(); valid && len(entries) < n; valid = iter.Prev() {
		e, err := decodeEntry(iter.Key(), iter.Value())
		if err != nil {
			return nil, errors.CombineErrors(err, iter.Close())
		}
		entries = append(entries, e)
	}
	return entries, errors.CombineErrors(iter.Error(), iter.Close())
}

// Prune deletes every entry appended before the given time.
func (j *Journal) Prune(before time.Time) error {
	return errors.Wrap(
		j.db.DeleteRange(encodeKey(time.Unix(0, 0), 0), encodeKey(before, 0), pebble.Sync),
		"prune journal",
	)
}

func (j *Journal) Close() error { return j.db.Close() }

func encodeKey(at time.Time, seq uint64) []byte {
	b := make([]byte, 0, keySize)
	b = binary.BigEndian.AppendUint64(b, uint64(at.UnixNano()))
	return binary.BigEndian.AppendUint64(b, seq)
}

func encodeEvent(e cluster.Event) []byte {
	b := make([]byte, 0, valueSize)
	b = append(b, byte(e.Kind))
	b = gossip.AppendIdentity(b, e.Record.Identity)
	b = binary.BigEndian.AppendUint64(b, unixNano(e.Record.LastContact))
	return binary.BigEndian.AppendUint64(b, unixNano(e.Record.SuspectedSince))
}

func decodeEntry(key, value []byte) (Entry, error) {
	if len(key) != keySize || len(value) != valueSize {
		return Entry{}, errors.Wrapf(ErrCorrupt, "key %x has %d value bytes", key, len(value))
	}
	kind := cluster.EventKind(value[0])
	if kind < cluster.Appended || kind > cluster.Evicted {
		return Entry{}, errors.Wrapf(ErrCorrupt, "key %x has unknown kind %d", key, value[0])
	}
	id, err := gossip.DecodeIdentity(value[1:])
	if err != nil {
		return Entry{}, errors.Mark(err, ErrCorrupt)
	}
	rest := value[1+gossip.IdentitySize:]
	return Entry{
		At: time.Unix(0, int64(binary.BigEndian.Uint64(key))),
		Event: cluster.Event{Kind: kind, Record: node.Record{
			Identity:       id,
			LastContact:    fromUnixNano(binary.BigEndian.Uint64(rest)),
			SuspectedSince: fromUnixNano(binary.BigEndian.Uint64(rest[8:])),
		}},
	}, nil
}

// unixNano encodes the zero time as 0.
func unixNano(t time.Time) uint64 {
	if t.IsZero() {
		return 0
	}
	return uint64(t.UnixNano())
}

func fromUnixNano(n uint64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, int64(n))
}
