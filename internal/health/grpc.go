package health

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the gRPC health service name reported alongside the
// overall ("") status.
const ServiceName = "faultline"

// GRPCServer exposes the monitor through the standard gRPC health protocol.
// Only a critical report (safe mode or a burst of critical faults) is
// NOT_SERVING; degraded still serves.
type GRPCServer struct {
	monitor  *Monitor
	server   *grpc.Server
	health   *grpchealth.Server
	port     int
	interval time.Duration
}

// NewGRPCServer creates the gRPC health server.
func NewGRPCServer(monitor *Monitor, port int) *GRPCServer {
	s := &GRPCServer{
		monitor:  monitor,
		server:   grpc.NewServer(),
		health:   grpchealth.NewServer(),
		port:     port,
		interval: 5 * time.Second,
	}
	healthpb.RegisterHealthServer(s.server, s.health)
	s.sync()
	return s
}

// Start listens on the configured port and serves until Stop.
func (s *GRPCServer) Start() error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return s.Serve(lis)
}

// Serve serves on lis.
func (s *GRPCServer) Serve(lis net.Listener) error {
	return s.server.Serve(lis)
}

// Watch refreshes the serving status until ctx is done.
func (s *GRPCServer) Watch(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sync()
		}
	}
}

func (s *GRPCServer) sync() {
	status := healthpb.HealthCheckResponse_SERVING
	if s.monitor.CheckHealth().SystemStatus == StatusCritical {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
	slog.Debug("gRPC health status updated", "status", status.String())
}

// Stop marks every service NOT_SERVING and drains connections.
func (s *GRPCServer) Stop() {
	s.health.Shutdown()
	s.server.GracefulStop()
}
