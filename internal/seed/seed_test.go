package seed_test

import (
	"context"
	"time"

	"github.com/arya-analytics/pulse/internal/address"
	"github.com/arya-analytics/pulse/internal/seed"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var (
	ctx = context.Background()
	a   = address.New(0x0A000001, 7000)
	b   = address.New(0x0A000002, 7000)
)

var _ = Describe("Static", func() {
	It("Should return a copy of its seeds", func() {
		s := seed.Static{a, b}
		seeds, err := s.Seeds(ctx)
		Expect(err).ToNot(HaveOccurred())
		Expect(seeds).To(Equal([]address.Address{a, b}))
		seeds[0] = b
		Expect(s[0]).To(Equal(a))
	})
})

var _ = Describe("Etcd", func() {
	var (
		client *fakeEtcd
		reg    *seed.Etcd
	)
	BeforeEach(func() {
		client = newFakeEtcd()
		var err error
		reg, err = seed.NewEtcd(seed.EtcdConfig{KV: client, Lease: client, TTL: 10 * time.Second})
		Expect(err).ToNot(HaveOccurred())
	})

	It("Should reject a config without a client", func() {
		_, err := seed.NewEtcd(seed.EtcdConfig{})
		Expect(err).To(HaveOccurred())
	})

	It("Should register under the prefix and list registered nodes", func() {
		Expect(reg.Register(ctx, a)).To(Succeed())
		Expect(client.keys).To(HaveKeyWithValue("/pulse/nodes/10.0.0.1:7000", "10.0.0.1:7000"))
		client.keys["/pulse/nodes/10.0.0.2:7000"] = "10.0.0.2:7000"
		client.keys["/other/10.0.0.3:7000"] = "10.0.0.3:7000"
		seeds, err := reg.Seeds(ctx)
		Expect(err).ToNot(HaveOccurred())
		Expect(seeds).To(Equal([]address.Address{a, b}))
	})

	It("Should keep the lease alive on later registrations", func() {
		Expect(reg.Register(ctx, a)).To(Succeed())
		Expect(reg.Register(ctx, a)).To(Succeed())
		Expect(client.keepAlives).To(Equal(1))
		Expect(client.leases).To(HaveLen(1))
	})

	It("Should register again when the lease expired", func() {
		Expect(reg.Register(ctx, a)).To(Succeed())
		client.expire(1)
		Expect(client.keys).To(BeEmpty())
		Expect(reg.Register(ctx, a)).To(Succeed())
		Expect(client.keys).To(HaveKey("/pulse/nodes/10.0.0.1:7000"))
	})

	It("Should skip malformed entries", func() {
		client.keys["/pulse/nodes/bad"] = "not an address"
		client.keys["/pulse/nodes/unspecified"] = ":7000"
		client.keys["/pulse/nodes/10.0.0.2:7000"] = "10.0.0.2:7000"
		seeds, err := reg.Seeds(ctx)
		Expect(err).ToNot(HaveOccurred())
		Expect(seeds).To(Equal([]address.Address{b}))
	})

	It("Should withdraw the registration on close", func() {
		Expect(reg.Register(ctx, a)).To(Succeed())
		Expect(reg.Close()).To(Succeed())
		Expect(client.keys).To(BeEmpty())
		Expect(reg.Close()).To(Succeed())
	})
})

var _ = Describe("Redis", func() {
	var (
		client *fakeRedis
		reg    *seed.Redis
		now    time.Time
	)
	BeforeEach(func() {
		client = newFakeRedis()
		now = time.UnixMilli(1_000_000)
		var err error
		reg, err = seed.NewRedis(seed.RedisConfig{
			Client: client,
			TTL:    10 * time.Second,
			Now:    func() time.Time { return now },
		})
		Expect(err).ToNot(HaveOccurred())
	})

	It("Should register with an expiry score", func() {
		Expect(reg.Register(ctx, a)).To(Succeed())
		Expect(client.sets["pulse:nodes"]).To(HaveKeyWithValue("10.0.0.1:7000", float64(1_010_000)))
	})

	It("Should list live registrations and trim expired ones", func() {
		Expect(reg.Register(ctx, a)).To(Succeed())
		now = now.Add(5 * time.Second)
		Expect(reg.Register(ctx, b)).To(Succeed())
		seeds, err := reg.Seeds(ctx)
		Expect(err).ToNot(HaveOccurred())
		Expect(seeds).To(Equal([]address.Address{a, b}))
		now = now.Add(5 * time.Second)
		seeds, err = reg.Seeds(ctx)
		Expect(err).ToNot(HaveOccurred())
		Expect(seeds).To(Equal([]address.Address{b}))
		Expect(client.sets["pulse:nodes"]).ToNot(HaveKey("10.0.0.1:7000"))
	})

	It("Should skip malformed members", func() {
		client.set("pulse:nodes")["garbage"] = float64(now.Add(time.Minute).UnixMilli())
		Expect(reg.Register(ctx, a)).To(Succeed())
		seeds, err := reg.Seeds(ctx)
		Expect(err).ToNot(HaveOccurred())
		Expect(seeds).To(Equal([]address.Address{a}))
	})

	It("Should deregister on close", func() {
		Expect(reg.Register(ctx, a)).To(Succeed())
		Expect(reg.Close()).To(Succeed())
		Expect(client.sets["pulse:nodes"]).To(BeEmpty())
	})

	It("Should deregister while another goroutine keeps registering", func() {
		done := make(chan struct{})
		go func() {
			defer GinkgoRecover()
			defer close(done)
			for i := 0; i < 100; i++ {
				Expect(reg.Register(ctx, a)).To(Succeed())
			}
		}()
		for i := 0; i < 100; i++ {
			Expect(reg.Close()).To(Succeed())
		}
		Eventually(done).Should(BeClosed())
		Expect(reg.Close()).To(Succeed())
		Expect(client.sets["pulse:nodes"]).To(BeEmpty())
	})
})
