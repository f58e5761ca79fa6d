package pulse_test

import (
	"context"

	"github.com/arya-analytics/pulse"
	"github.com/arya-analytics/pulse/mock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Membership", func() {
	var (
		ctx       = context.Background()
		builder   *mock.Builder
		recorders []*recorder
	)
	BeforeEach(func() {
		builder = mock.NewMemBuilder()
		recorders = nil
		for i := 0; i < 3; i++ {
			r := &recorder{}
			_, err := builder.New(ctx, pulse.WithObserver(r))
			Expect(err).ToNot(HaveOccurred())
			recorders = append(recorders, r)
		}
	})
	AfterEach(func() { Expect(builder.Close()).To(Succeed()) })

	It("Should converge every node on the full membership", func() {
		for _, n := range builder.Nodes {
			Eventually(func() int { return upPeers(n) }).Should(Equal(2))
			Expect(n.Peers()).ToNot(HaveKey(n.Address()))
		}
		Expect(recorders[1].count(pulse.Appended, builder.Addr(2))).To(Equal(1))
	})

	It("Should advance the host heartbeat while gossiping", func() {
		n := builder.Nodes[0]
		Eventually(func() int { return upPeers(n) }).Should(Equal(2))
		beat := n.Self().Beat
		Eventually(func() pulse.Heartbeat { return n.Self().Beat }).Should(BeNumerically(">", beat))
	})

	It("Should declare a partitioned node down and bring it back once healed", func() {
		for _, n := range builder.Nodes {
			Eventually(func() int { return upPeers(n) }).Should(Equal(2))
		}
		isolated := builder.Addr(2)
		// A peer only ever seen at beat zero is refreshed by every relay of
		// that beat, so the survivors must hold a later one before the cut.
		for _, n := range builder.Nodes[:2] {
			Eventually(func() pulse.Heartbeat { return n.Peers()[isolated].Beat }).Should(BeNumerically(">", 0))
		}
		builder.Network.Partition(isolated)
		for _, n := range builder.Nodes[:2] {
			Eventually(func() bool { return n.Peers()[isolated].Down() }).Should(BeTrue())
		}
		Eventually(func() int { return upPeers(builder.Nodes[2]) }).Should(BeZero())
		Eventually(func() int { return recorders[0].count(pulse.Removed, isolated) }).Should(Equal(1))

		builder.Network.Heal(isolated)
		for _, n := range builder.Nodes {
			Eventually(func() int { return upPeers(n) }).Should(Equal(2))
		}
	})
})
