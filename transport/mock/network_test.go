package mock_test

import (
	"context"
	"time"

	"github.com/arya-analytics/pulse/internal/address"
	"github.com/arya-analytics/pulse/transport"
	"github.com/arya-analytics/pulse/transport/mock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Network", func() {
	var (
		ctx  = context.Background()
		net  *mock.Network
		a, b *mock.Transport
		buf  []byte
	)
	BeforeEach(func() {
		net = mock.NewNetwork()
		a = net.Route(address.New(0x7F000001, 7000))
		b = net.Route(address.New(0x7F000002, 7000))
		buf = make([]byte, 128)
	})

	It("Should deliver a datagram with the sender address", func() {
		Expect(a.Send(ctx, b.Address(), []byte("hello"))).To(Succeed())
		n, from, err := b.Receive(ctx, buf, time.Second)
		Expect(err).ToNot(HaveOccurred())
		Expect(string(buf[:n])).To(Equal("hello"))
		Expect(from).To(Equal(a.Address()))
		Expect(net.Delivered(a.Address(), b.Address())).To(Equal(1))
	})

	It("Should copy the payload on send", func() {
		payload := []byte{1, 2, 3}
		Expect(a.Send(ctx, b.Address(), payload)).To(Succeed())
		payload[0] = 9
		n, _, err := b.Receive(ctx, buf, time.Second)
		Expect(err).ToNot(HaveOccurred())
		Expect(buf[:n]).To(Equal([]byte{1, 2, 3}))
	})

	It("Should time out when nothing arrives", func() {
		_, _, err := b.Receive(ctx, buf, time.Millisecond)
		Expect(err).To(MatchError(transport.ErrTimeout))
	})

	It("Should drop datagrams to unknown routes silently", func() {
		Expect(a.Send(ctx, address.New(0x7F000009, 1), []byte{1})).To(Succeed())
		Expect(net.Entries).To(HaveLen(1))
		Expect(net.Entries[0].Delivered).To(BeFalse())
	})

	It("Should drop traffic to and from a partitioned route until healed", func() {
		net.Partition(b.Address())
		Expect(a.Send(ctx, b.Address(), []byte{1})).To(Succeed())
		Expect(b.Send(ctx, a.Address(), []byte{2})).To(Succeed())
		_, _, err := b.Receive(ctx, buf, time.Millisecond)
		Expect(err).To(MatchError(transport.ErrTimeout))
		_, _, err = a.Receive(ctx, buf, time.Millisecond)
		Expect(err).To(MatchError(transport.ErrTimeout))
		net.Heal(b.Address())
		Expect(a.Send(ctx, b.Address(), []byte{3})).To(Succeed())
		n, _, err := b.Receive(ctx, buf, time.Second)
		Expect(err).ToNot(HaveOccurred())
		Expect(buf[:n]).To(Equal([]byte{3}))
	})

	It("Should stop a closed transport", func() {
		Expect(b.Close()).To(Succeed())
		Expect(b.Close()).To(Succeed())
		Expect(a.Send(ctx, b.Address(), []byte{1})).To(Succeed())
		Expect(net.Delivered(a.Address(), b.Address())).To(BeZero())
		_, _, err := b.Receive(ctx, buf, time.Second)
		Expect(err).To(HaveOccurred())
		Expect(b.Send(ctx, a.Address(), []byte{1})).ToNot(Succeed())
	})

	It("Should return the context error when cancelled", func() {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, _, err := b.Receive(cctx, buf, time.Second)
		Expect(err).To(MatchError(context.Canceled))
	})
})
