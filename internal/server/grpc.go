// Package server exposes the product search services over HTTP and gRPC.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
)

// SearchServiceName is the health-check service name reported alongside the
// overall server status.
const SearchServiceName = "prodsearch.v1.Search"

// GRPCServer wraps a gRPC server exposing health checks, with lifecycle management
type GRPCServer struct {
	server    *grpc.Server
	health    *health.Server
	readiness ReadinessChecker
	interval  time.Duration
	listener  net.Listener
	logger    *slog.Logger
	port      int
	stop      chan struct{}
	stopOnce  sync.Once
}

// GRPCServerConfig holds configuration for the gRPC server
type GRPCServerConfig struct {
	Port           int
	Logger         *slog.Logger
	Readiness      ReadinessChecker
	HealthInterval time.Duration // how often readiness is re-probed
}

// NewGRPCServer creates a new gRPC server with interceptors. It serves the
// standard grpc.health.v1 service, whose status follows index readiness, and
// server reflection.
func NewGRPCServer(cfg GRPCServerConfig) *GRPCServer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	server := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			recoveryUnaryInterceptor(logger),
			loggingUnaryInterceptor(logger),
		),
		grpc.ChainStreamInterceptor(
			recoveryStreamInterceptor(logger),
			loggingStreamInterceptor(logger),
		),
	)

	healthSrv := health.NewServer()
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	healthSrv.SetServingStatus(SearchServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(server, healthSrv)
	logger.Info("registered gRPC health service")

	// Enable reflection for development/debugging
	reflection.Register(server)

	interval := cfg.HealthInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}

	return &GRPCServer{
		server:    server,
		health:    healthSrv,
		readiness: cfg.Readiness,
		interval:  interval,
		logger:    logger,
		port:      cfg.Port,
		stop:      make(chan struct{}),
	}
}

// UpdateHealth probes readiness once and publishes the result.
func (s *GRPCServer) UpdateHealth(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	st := healthpb.HealthCheckResponse_SERVING
	if s.readiness != nil {
		if err := s.readiness.Ready(ctx); err != nil {
			st = healthpb.HealthCheckResponse_NOT_SERVING
			s.logger.Debug("index not ready", "error", err)
		}
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(SearchServiceName, st)
	return st
}

func (s *GRPCServer) watchHealth() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		ctx, cancel := context.WithTimeout(context.Background(), s.interval)
		s.UpdateHealth(ctx)
		cancel()

		select {
		case <-ticker.C:
		case <-s.stop:
			return
		}
	}
}

// Start starts the gRPC server
func (s *GRPCServer) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener

	s.logger.Info("starting gRPC server", "address", addr)

	go s.watchHealth()

	if err := s.server.Serve(listener); err != nil {
		return fmt.Errorf("gRPC server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the gRPC server
func (s *GRPCServer) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down gRPC server")

	s.stopOnce.Do(func() { close(s.stop) })
	s.health.Shutdown()

	// Create a channel to signal when GracefulStop completes
	stopped := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(stopped)
	}()

	// Wait for graceful stop or context cancellation
	select {
	case <-stopped:
		s.logger.Info("gRPC server stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("graceful shutdown timeout, forcing stop")
		s.server.Stop()
		return ctx.Err()
	}
}

// GetServer returns the underlying gRPC server
func (s *GRPCServer) GetServer() *grpc.Server {
	return s.server
}

// loggingUnaryInterceptor logs unary RPC calls. Health probes log at debug level.
func loggingUnaryInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logCall(ctx, logger, "gRPC request", info.FullMethod, start, err)
		return resp, err
	}
}

// loggingStreamInterceptor logs streaming RPC calls such as health Watch
func loggingStreamInterceptor(logger *slog.Logger) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		err := handler(srv, ss)
		logCall(ss.Context(), logger, "gRPC stream", info.FullMethod, start, err)
		return err
	}
}

func logCall(ctx context.Context, logger *slog.Logger, msg, method string, start time.Time, err error) {
	level := slog.LevelInfo
	if strings.HasPrefix(method, "/grpc.health.v1.Health/") && err == nil {
		level = slog.LevelDebug
	}
	logger.Log(ctx, level, msg,
		"method", method,
		"code", status.Code(err).String(),
		"duration", time.Since(start),
		"error", err,
	)
}

// recoveryUnaryInterceptor recovers from panics in unary handlers
func recoveryUnaryInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer recoverPanic(logger, info.FullMethod, &err)
		return handler(ctx, req)
	}
}

// recoveryStreamInterceptor recovers from panics in stream handlers
func recoveryStreamInterceptor(logger *slog.Logger) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) (err error) {
		defer recoverPanic(logger, info.FullMethod, &err)
		return handler(srv, ss)
	}
}

// recoverPanic must be deferred directly so recover sees the panic.
func recoverPanic(logger *slog.Logger, method string, err *error) {
	if r := recover(); r != nil {
		logger.Error("panic recovered in gRPC handler",
			"method", method,
			"panic", r,
			"stack", string(debug.Stack()),
		)
		*err = status.Errorf(codes.Internal, "internal server error")
	}
}
