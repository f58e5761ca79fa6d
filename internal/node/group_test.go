package node_test

import (
	"time"

	"github.com/arya-analytics/pulse/internal/address"
	"github.com/arya-analytics/pulse/internal/node"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Group", func() {
	var (
		t0 = time.UnixMilli(1000)
		g  node.Group
	)
	BeforeEach(func() {
		down := node.NewRecord(address.New(1, 3), t0, 4)
		down.SuspectedSince = t0.Add(time.Second)
		g = node.Group{
			address.New(1, 1): node.NewRecord(address.New(1, 1), t0, 1),
			address.New(1, 2): node.NewRecord(address.New(1, 2), t0.Add(500*time.Millisecond), 2),
			address.New(1, 3): down,
		}
	})
	Describe("Filters", func() {
		It("Should split up and down records", func() {
			Expect(g.WhereUp()).To(HaveLen(2))
			Expect(g.WhereDown()).To(HaveKey(address.New(1, 3)))
		})
		It("Should exclude the given addresses", func() {
			Expect(g.WhereNot(address.New(1, 1), address.New(1, 3))).To(HaveLen(1))
		})
		It("Should keep only up records contacted after the cutoff", func() {
			fresh := g.WhereFresh(t0)
			Expect(fresh).To(HaveLen(1))
			Expect(fresh).To(HaveKey(address.New(1, 2)))
		})
	})
	Describe("Ordering", func() {
		It("Should return addresses and identities in address order", func() {
			Expect(g.Addresses()).To(Equal([]address.Address{
				address.New(1, 1), address.New(1, 2), address.New(1, 3),
			}))
			Expect(g.Identities()[1]).To(Equal(node.Identity{Addr: address.New(1, 2), Beat: 2}))
		})
	})
	Describe("Copy", func() {
		It("Should not share storage with the original", func() {
			c := g.Copy()
			delete(c, address.New(1, 1))
			Expect(g).To(HaveLen(3))
		})
	})
})
