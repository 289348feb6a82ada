package grpchealth

import (
	"context"
	"fmt"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/LeonardoBeccarini/bloomwatch/pkg/logger"
)

// Server exposes the standard gRPC health service so sibling services and
// the container orchestrator can probe readiness over gRPC. Services
// start NOT_SERVING and flip to SERVING once their backfill is done.
type Server struct {
	health *health.Server
	grpc   *grpc.Server
}

func NewServer() *Server {
	s := &Server{
		health: health.NewServer(),
		grpc:   grpc.NewServer(),
	}
	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// SetServing flips the named service (and the aggregate "" service)
// between SERVING and NOT_SERVING.
func (s *Server) SetServing(service string, up bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if up {
		st = healthpb.HealthCheckResponse_SERVING
	}
	if service != "" {
		s.health.SetServingStatus(service, st)
	}
	s.health.SetServingStatus("", st)
}

// Start listens on addr and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	log := logger.WithComponent("grpchealth")
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("grpchealth: listen %s: %w", addr, err)
	}

	go func() {
		<-ctx.Done()
		s.health.Shutdown()
		s.grpc.GracefulStop()
	}()

	log.Info().Str("addr", addr).Msg("gRPC health server listening")
	if err := s.grpc.Serve(lis); err != nil {
		return fmt.Errorf("grpchealth: serve: %w", err)
	}
	return nil
}

// Probe dials addr and checks the named service once. It returns nil only
// when the remote reports SERVING.
func Probe(ctx context.Context, addr, service string) error {
	dctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("grpchealth: dial %s: %w", addr, err)
	}
	defer conn.Close()

	resp, err := healthpb.NewHealthClient(conn).Check(dctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return fmt.Errorf("grpchealth: check %s: %w", addr, err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("grpchealth: %s reports %s", addr, resp.GetStatus())
	}
	return nil
}
