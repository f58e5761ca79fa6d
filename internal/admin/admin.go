// Package admin serves the gRPC health service reporting whether the node has
// joined a cluster, with server reflection for tooling such as grpcurl.
package admin

import (
	"net"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// Service is the health service name that tracks membership readiness.
const Service = "pulse.Membership"

type Server struct {
	Logger *zap.Logger
	grpc   *grpc.Server
	health *health.Server
}

func New(logger *zap.Logger, opts ...grpc.ServerOption) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{Logger: logger, grpc: grpc.NewServer(opts...), health: health.NewServer()}
	healthpb.RegisterHealthServer(s.grpc, s.health)
	reflection.Register(s.grpc)
	s.health.SetServingStatus(Service, healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// SetReady reports the membership service as serving once the node tracks at
// least one peer.
func (s *Server) SetReady(ready bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if ready {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(Service, status)
}

// Serve blocks serving on lis until Shutdown is called.
func (s *Server) Serve(lis net.Listener) error {
	s.Logger.Info("serving admin", zap.Stringer("addr", lis.Addr()))
	if err := s.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return errors.Wrap(err, "serve admin")
	}
	return nil
}

// Shutdown marks every service not serving and stops the server gracefully.
func (s *Server) Shutdown() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
