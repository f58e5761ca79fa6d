package admin_test

import (
	"context"
	"net"

	"github.com/arya-analytics/pulse/internal/admin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

var _ = Describe("Admin", func() {
	var (
		ctx    = context.Background()
		srv    *admin.Server
		conn   *grpc.ClientConn
		client healthpb.HealthClient
		done   chan error
	)
	BeforeEach(func() {
		lis := bufconn.Listen(1 << 16)
		srv = admin.New(nil)
		done = make(chan error, 1)
		go func() { done <- srv.Serve(lis) }()
		var err error
		conn, err = grpc.NewClient(
			"passthrough:///bufnet",
			grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
				return lis.DialContext(ctx)
			}),
			grpc.WithTransportCredentials(insecure.NewCredentials()),
		)
		Expect(err).ToNot(HaveOccurred())
		client = healthpb.NewHealthClient(conn)
	})
	AfterEach(func() {
		Expect(conn.Close()).To(Succeed())
		srv.Shutdown()
		Eventually(done).Should(Receive(BeNil()))
	})
	status := func() healthpb.HealthCheckResponse_ServingStatus {
		res, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: admin.Service})
		Expect(err).ToNot(HaveOccurred())
		return res.Status
	}

	It("Should report not serving until the node is ready", func() {
		Expect(status()).To(Equal(healthpb.HealthCheckResponse_NOT_SERVING))
		srv.SetReady(true)
		Expect(status()).To(Equal(healthpb.HealthCheckResponse_SERVING))
		srv.SetReady(false)
		Expect(status()).To(Equal(healthpb.HealthCheckResponse_NOT_SERVING))
	})

	It("Should report the server itself as serving", func() {
		res, err := client.Check(ctx, &healthpb.HealthCheckRequest{})
		Expect(err).ToNot(HaveOccurred())
		Expect(res.Status).To(Equal(healthpb.HealthCheckResponse_SERVING))
	})
})
