// Package grpc runs the gRPC side-car listener. It serves the standard
// grpc.health.v1.Health service, whose status follows a readiness probe
// (the database ping), plus server reflection for grpcurl.
//
//	srv, err := grpc.Start(config.GRPCPort(), database.Ping)
//	defer srv.Stop()
package grpc

import (
	"context"
	"fmt"
	"net"
	"runtime/debug"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"github.com/rrnagar/marketplace/pkg/logger"
	"github.com/rrnagar/marketplace/pkg/metrics"
)

// ServiceName is the health service name clients can query besides "".
const ServiceName = "rrnagar.Marketplace"

var (
	handledTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rrnagar",
		Subsystem: "grpc",
		Name:      "server_handled_total",
		Help:      "gRPC calls completed by method and code.",
	}, []string{"method", "code"})

	handlingSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "rrnagar",
		Subsystem: "grpc",
		Name:      "server_handling_seconds",
		Help:      "gRPC response latency in seconds.",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"method"})
)

func init() {
	metrics.MustRegister(handledTotal, handlingSeconds)
}

// Probe reports whether the service can serve traffic.
type Probe func(ctx context.Context) error

func recoveryInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("grpc: panic recovered", "method", info.FullMethod, "panic", r, "stack", string(debug.Stack()))
			err = status.Errorf(codes.Internal, "internal server error")
		}
	}()
	return handler(ctx, req)
}

func observeInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	code := status.Code(err)

	handledTotal.WithLabelValues(info.FullMethod, code.String()).Inc()
	handlingSeconds.WithLabelValues(info.FullMethod).Observe(time.Since(start).Seconds())
	logger.Debug("grpc: request", "method", info.FullMethod, "code", code.String(), "duration", time.Since(start).String())
	return resp, err
}

type Server struct {
	srv    *grpc.Server
	health *health.Server
	lis    net.Listener
	cancel context.CancelFunc
	done   chan struct{}
}

// Start listens on port and serves until Stop. The probe runs every 10s
// and flips the health status between SERVING and NOT_SERVING.
func Start(port string, probe Probe) (*Server, error) {
	lis, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return nil, fmt.Errorf("grpc: listen on :%s: %w", port, err)
	}
	return Serve(lis, probe, 10*time.Second), nil
}

// Serve is Start with an existing listener and probe interval.
func Serve(lis net.Listener, probe Probe, every time.Duration) *Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(recoveryInterceptor, observeInterceptor))
	hs := health.NewServer()
	grpc_health_v1.RegisterHealthServer(srv, hs)
	reflection.Register(srv)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{srv: srv, health: hs, lis: lis, cancel: cancel, done: make(chan struct{})}
	s.check(ctx, probe)
	go s.watch(ctx, probe, every)

	go func() {
		logger.Info("grpc: listening", "addr", lis.Addr().String())
		if err := srv.Serve(lis); err != nil {
			logger.Error("grpc: serve error", "error", err)
		}
	}()
	return s
}

func (s *Server) watch(ctx context.Context, probe Probe, every time.Duration) {
	defer close(s.done)
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.check(ctx, probe)
		}
	}
}

func (s *Server) check(ctx context.Context, probe Probe) {
	st := grpc_health_v1.HealthCheckResponse_SERVING
	if probe != nil {
		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := probe(pctx)
		cancel()
		if err != nil {
			st = grpc_health_v1.HealthCheckResponse_NOT_SERVING
			logger.Warn("grpc: readiness probe failed", "error", err)
		}
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
}

func (s *Server) Addr() net.Addr { return s.lis.Addr() }

// Stop marks the service NOT_SERVING and drains in-flight RPCs.
func (s *Server) Stop() {
	if s == nil {
		return
	}
	s.cancel()
	<-s.done
	s.health.Shutdown()
	s.srv.GracefulStop()
	logger.Info("grpc: stopped")
}
