// Package grpcx exposes the standard gRPC health service reporting whether
// the session hub loop is running.
package grpcx

import (
	"context"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/cwrk-planet/session-hub/pkg/logger"
)

// ServiceName is the health service key probes should ask for.
const ServiceName = "sessionhub.v1.SessionHub"

const stopTimeout = 10 * time.Second

type Server struct {
	addr   string
	gs     *grpc.Server
	health *health.Server
}

func NewServer(addr string) *Server {
	gs := grpc.NewServer(
		grpc.ChainUnaryInterceptor(UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(StreamServerInterceptor()),
	)
	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(gs, hs)
	reflection.Register(gs)

	return &Server{addr: addr, gs: gs, health: hs}
}

func (s *Server) SetServing(serving bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(ServiceName, st)
}

// Watch reports the hub serving from the moment started closes until done
// closes. A hub that never starts stays not serving.
func (s *Server) Watch(ctx context.Context, started, done <-chan struct{}) {
	select {
	case <-started:
	case <-done:
		return
	case <-ctx.Done():
		return
	}
	s.SetServing(true)
	select {
	case <-done:
		s.SetServing(false)
	case <-ctx.Done():
	}
}

func (s *Server) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, lis)
}

// Serve blocks until ctx is done or the server fails.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		logger.L().Info("grpc listen", slog.String("addr", lis.Addr().String()))
		errCh <- s.gs.Serve(lis)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	// health watchers hold streams open, so GracefulStop gets a deadline
	s.health.Shutdown()
	stopped := make(chan struct{})
	go func() {
		s.gs.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(stopTimeout):
		s.gs.Stop()
	}
	return nil
}
