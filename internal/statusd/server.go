package statusd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/GoSim-25-26J-441/q2k-calibrator/internal/metrics"
	"github.com/GoSim-25-26J-441/q2k-calibrator/internal/store"
	"github.com/GoSim-25-26J-441/q2k-calibrator/pkg/logger"
)

// ServiceName is the health-checked gRPC service.
const ServiceName = "q2kcal.Calibration"

const shutdownTimeout = 10 * time.Second

// Config wires a Server. An empty address disables that listener.
type Config struct {
	HTTPAddr string
	GRPCAddr string
	Ledger   store.Store
	Metrics  *metrics.Collector
	Logger   *slog.Logger
}

type Server struct {
	cfg    Config
	http   *HTTPServer
	health *health.Server
	log    *slog.Logger
}

func New(cfg Config) (*Server, error) {
	if cfg.Ledger == nil {
		return nil, fmt.Errorf("statusd: ledger is required")
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Component("statusd")
	}
	s := &Server{
		cfg:    cfg,
		http:   NewHTTPServer(cfg.Ledger, cfg.Metrics),
		health: health.NewServer(),
		log:    log,
	}
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return s, nil
}

// SetServing flips the health of ServiceName; it is SERVING while a
// calibration runs.
func (s *Server) SetServing(serving bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(ServiceName, st)
}

// Serve listens on the configured addresses until ctx ends.
func (s *Server) Serve(ctx context.Context) error {
	var httpLis, grpcLis net.Listener
	var err error
	if s.cfg.HTTPAddr != "" {
		if httpLis, err = net.Listen("tcp", s.cfg.HTTPAddr); err != nil {
			return fmt.Errorf("failed to listen for HTTP on %s: %w", s.cfg.HTTPAddr, err)
		}
	}
	if s.cfg.GRPCAddr != "" {
		if grpcLis, err = net.Listen("tcp", s.cfg.GRPCAddr); err != nil {
			if httpLis != nil {
				httpLis.Close()
			}
			return fmt.Errorf("failed to listen for gRPC on %s: %w", s.cfg.GRPCAddr, err)
		}
	}
	return s.ServeListeners(ctx, httpLis, grpcLis)
}

// ServeListeners serves on already open listeners; either may be nil. It
// returns nil once ctx ends and both servers have stopped.
func (s *Server) ServeListeners(ctx context.Context, httpLis, grpcLis net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	if grpcLis != nil {
		grpcServer := grpc.NewServer()
		healthpb.RegisterHealthServer(grpcServer, s.health)
		g.Go(func() error {
			s.log.Info("gRPC server listening", "addr", grpcLis.Addr().String())
			if err := grpcServer.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return fmt.Errorf("gRPC server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			s.health.Shutdown()
			grpcServer.GracefulStop()
			return nil
		})
	}

	if httpLis != nil {
		httpSrv := &http.Server{
			Handler:           s.http.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       120 * time.Second,
			MaxHeaderBytes:    1 << 20,
		}
		g.Go(func() error {
			s.log.Info("HTTP server listening", "addr", httpLis.Addr().String())
			if err := httpSrv.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("HTTP server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			if err := httpSrv.Shutdown(shutdownCtx); err != nil {
				s.log.Error("HTTP shutdown error", "error", err)
			}
			return nil
		})
	}

	return g.Wait()
}

// Handler exposes the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.http.Handler() }
