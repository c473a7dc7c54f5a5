package grpcx

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/md-rashed-zaman/apptdesk/libs/runtime"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// NewServer returns a gRPC server with tracing and request-id propagation installed.
func NewServer(extra ...grpc.ServerOption) *grpc.Server {
	opts := []grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(UnaryServerRequestIDInterceptor()),
	}
	return grpc.NewServer(append(opts, extra...)...)
}

// HealthReporter keeps the grpc.health.v1 status in line with the readiness checks.
type HealthReporter struct {
	srv      *health.Server
	checks   []runtime.ReadyCheck
	interval time.Duration
	logger   *slog.Logger
}

func RegisterHealth(s *grpc.Server, logger *slog.Logger, interval time.Duration, checks ...runtime.ReadyCheck) *HealthReporter {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	return &HealthReporter{srv: hs, checks: checks, interval: interval, logger: logger}
}

// Refresh runs the checks once and publishes the overall ("") status.
func (h *HealthReporter) Refresh(ctx context.Context) {
	status := healthpb.HealthCheckResponse_SERVING
	if failures := runtime.CheckAll(ctx, h.checks...); len(failures) > 0 {
		status = healthpb.HealthCheckResponse_NOT_SERVING
		if h.logger != nil {
			h.logger.Warn("grpc health not serving", "failures", strings.Join(failures, "; "))
		}
	}
	h.srv.SetServingStatus("", status)
}

// Run refreshes until ctx is done, then marks the server as shutting down.
func (h *HealthReporter) Run(ctx context.Context) {
	h.Refresh(ctx)
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.srv.Shutdown()
			return
		case <-ticker.C:
			h.Refresh(ctx)
		}
	}
}

// Serve runs s on addr until ctx is cancelled, then stops it gracefully.
func Serve(ctx context.Context, logger *slog.Logger, s *grpc.Server, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		s.GracefulStop()
	}()
	logger.Info("grpc server starting", "addr", addr)
	if err := s.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	logger.Info("grpc server stopped")
	return nil
}
