// Package grpcapi exposes the standard gRPC health service so orchestrators
// can probe the engine and its dependencies.
package grpcapi

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sort"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// Probe reports whether one dependency is usable.
type Probe func(ctx context.Context) error

type Server struct {
	*grpc.Server

	health *health.Server
	probes map[string]Probe
	logger *slog.Logger
}

// NewServer registers the health service. Each probe is published under its
// own service name; the empty name is SERVING only when every probe passes.
func NewServer(probes map[string]Probe, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "grpc")
	s := &Server{
		health: health.NewServer(),
		probes: probes,
		logger: logger,
	}
	s.Server = grpc.NewServer(grpc.ChainUnaryInterceptor(recoverer(logger), requestLogger(logger)))
	healthpb.RegisterHealthServer(s.Server, s.health)
	for name := range probes {
		s.health.SetServingStatus(name, healthpb.HealthCheckResponse_NOT_SERVING)
	}
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// Check runs every probe once and publishes the results.
func (s *Server) Check(ctx context.Context) bool {
	names := make([]string, 0, len(s.probes))
	for name := range s.probes {
		names = append(names, name)
	}
	sort.Strings(names)

	healthy := true
	for _, name := range names {
		st := healthpb.HealthCheckResponse_SERVING
		if err := s.probes[name](ctx); err != nil {
			healthy = false
			st = healthpb.HealthCheckResponse_NOT_SERVING
			s.logger.Warn("health probe failed", "probe", name, "error", err)
		}
		s.health.SetServingStatus(name, st)
	}
	overall := healthpb.HealthCheckResponse_SERVING
	if !healthy {
		overall = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", overall)
	return healthy
}

// Watch re-runs the probes every interval until ctx is done.
func (s *Server) Watch(ctx context.Context, interval time.Duration) {
	s.Check(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			probeCtx, cancel := context.WithTimeout(ctx, interval)
			s.Check(probeCtx)
			cancel()
		}
	}
}

// Stop marks everything NOT_SERVING and drains in-flight calls.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.Server.GracefulStop()
}

func recoverer(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if p := recover(); p != nil {
				logger.Error("grpc handler panicked",
					"method", info.FullMethod,
					"panic", p,
					"stack", string(debug.Stack()),
				)
				err = status.Error(codes.Internal, "internal error")
			}
		}()
		return handler(ctx, req)
	}
}

func requestLogger(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Debug("grpc request",
			"method", info.FullMethod,
			"code", status.Code(err).String(),
			"duration", time.Since(start),
		)
		return resp, err
	}
}
