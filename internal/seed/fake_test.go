package seed_test

import (
	"context"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/go-redis/redis/v9"
	"go.etcd.io/etcd/api/v3/mvccpb"
	"go.etcd.io/etcd/api/v3/v3rpc/rpctypes"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// fakeEtcd keeps keys in memory. Puts are attached to the most recently
// granted lease.
type fakeEtcd struct {
	keys       map[string]string
	leases     map[clientv3.LeaseID][]string
	next       clientv3.LeaseID
	keepAlives int
}

func newFakeEtcd() *fakeEtcd {
	return &fakeEtcd{keys: make(map[string]string), leases: make(map[clientv3.LeaseID][]string)}
}

func (f *fakeEtcd) Get(_ context.Context, key string, opts ...clientv3.OpOption) (*clientv3.GetResponse, error) {
	op := clientv3.OpGet(key, opts...)
	end := string(op.RangeBytes())
	var matched []string
	for k := range f.keys {
		if k == key || (end != "" && k >= key && k < end) {
			matched = append(matched, k)
		}
	}
	sort.Strings(matched)
	res := &clientv3.GetResponse{}
	for _, k := range matched {
		res.Kvs = append(res.Kvs, &mvccpb.KeyValue{Key: []byte(k), Value: []byte(f.keys[k])})
	}
	return res, nil
}

func (f *fakeEtcd) Put(_ context.Context, key, val string, _ ...clientv3.OpOption) (*clientv3.PutResponse, error) {
	f.keys[key] = val
	if f.next != clientv3.NoLease {
		f.leases[f.next] = append(f.leases[f.next], key)
	}
	return &clientv3.PutResponse{}, nil
}

func (f *fakeEtcd) Grant(_ context.Context, ttl int64) (*clientv3.LeaseGrantResponse, error) {
	f.next++
	f.leases[f.next] = nil
	return &clientv3.LeaseGrantResponse{ID: f.next, TTL: ttl}, nil
}

func (f *fakeEtcd) KeepAliveOnce(_ context.Context, id clientv3.LeaseID) (*clientv3.LeaseKeepAliveResponse, error) {
	if _, ok := f.leases[id]; !ok {
		return nil, rpctypes.ErrLeaseNotFound
	}
	f.keepAlives++
	return &clientv3.LeaseKeepAliveResponse{ID: id}, nil
}

func (f *fakeEtcd) Revoke(_ context.Context, id clientv3.LeaseID) (*clientv3.LeaseRevokeResponse, error) {
	f.expire(id)
	return &clientv3.LeaseRevokeResponse{}, nil
}

func (f *fakeEtcd) expire(id clientv3.LeaseID) {
	for _, k := range f.leases[id] {
		delete(f.keys, k)
	}
	delete(f.leases, id)
}

// fakeRedis implements the sorted set commands on a single in-memory set per
// key.
type fakeRedis struct {
	mu   sync.Mutex
	sets map[string]map[string]float64
}

func newFakeRedis() *fakeRedis { return &fakeRedis{sets: make(map[string]map[string]float64)} }

func (f *fakeRedis) set(key string) map[string]float64 {
	if f.sets[key] == nil {
		f.sets[key] = make(map[string]float64)
	}
	return f.sets[key]
}

func (f *fakeRedis) ZAdd(_ context.Context, key string, members ...redis.Z) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, added := f.set(key), 0
	for _, m := range members {
		member := m.Member.(string)
		if _, ok := s[member]; !ok {
			added++
		}
		s[member] = m.Score
	}
	return redis.NewIntResult(int64(added), nil)
}

func (f *fakeRedis) ZRangeByScore(_ context.Context, key string, opt *redis.ZRangeBy) *redis.StringSliceCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.set(key)
	var members []string
	for m, score := range s {
		if inRange(score, opt.Min, opt.Max) {
			members = append(members, m)
		}
	}
	sort.Slice(members, func(i, j int) bool { return s[members[i]] < s[members[j]] })
	return redis.NewStringSliceResult(members, nil)
}

func (f *fakeRedis) ZRemRangeByScore(_ context.Context, key, min, max string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, removed := f.set(key), 0
	for m, score := range s {
		if inRange(score, min, max) {
			delete(s, m)
			removed++
		}
	}
	return redis.NewIntResult(int64(removed), nil)
}

func (f *fakeRedis) ZRem(_ context.Context, key string, members ...interface{}) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, removed := f.set(key), 0
	for _, m := range members {
		if _, ok := s[m.(string)]; ok {
			delete(s, m.(string))
			removed++
		}
	}
	return redis.NewIntResult(int64(removed), nil)
}

func inRange(score float64, min, max string) bool {
	lo, loExclusive := bound(min)
	hi, hiExclusive := bound(max)
	if score < lo || (loExclusive && score == lo) {
		return false
	}
	return score < hi || (!hiExclusive && score == hi)
}

func bound(s string) (float64, bool) {
	switch s {
	case "-inf":
		return math.Inf(-1), false
	case "+inf":
		return math.Inf(1), false
	}
	exclusive := strings.HasPrefix(s, "(")
	v, err := strconv.ParseFloat(strings.TrimPrefix(s, "("), 64)
	if err != nil {
		panic(err)
	}
	return v, exclusive
}
