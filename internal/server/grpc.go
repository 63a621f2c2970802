package server

import (
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// HealthService is the gRPC side-channel for orchestrator probes.
type HealthService struct {
	grpc   *grpc.Server
	health *health.Server
	logger *slog.Logger
}

func NewHealthService(logger *slog.Logger) *HealthService {
	grpcServer := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)
	// Reflection for grpcurl
	reflection.Register(grpcServer)
	return &HealthService{grpc: grpcServer, health: hs, logger: logger}
}

// Serve blocks serving on lis. The overall status starts as SERVING.
func (s *HealthService) Serve(lis net.Listener) error {
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.logger.Info("grpc health listening", "addr", lis.Addr().String())
	return s.grpc.Serve(lis)
}

// SetServing flips the overall status, e.g. when the store becomes unreachable.
func (s *HealthService) SetServing(ok bool) {
	status := healthpb.HealthCheckResponse_SERVING
	if !ok {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", status)
}

// Stop reports NOT_SERVING to probes, then drains open streams.
func (s *HealthService) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
