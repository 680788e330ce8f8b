package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"google.golang.org/grpc"

	api "github.com/oshokin/tourist-safety/internal/api/grpc/simulation"
	"github.com/oshokin/tourist-safety/internal/config"
	"github.com/oshokin/tourist-safety/internal/logger"
	"github.com/oshokin/tourist-safety/internal/observability"
	"github.com/oshokin/tourist-safety/internal/service/common"
	"github.com/oshokin/tourist-safety/internal/service/simulator"
	"github.com/oshokin/tourist-safety/internal/version"
)

// Executable is the base name of the server binary.
const Executable = "safety-server"

// Options controls the safety-server process and configuration.
type Options struct {
	// ConfigPath specifies the path to settings YAML file; empty uses the embedded defaults.
	ConfigPath string
	// ListenAddress provides an optional listen address override for the gRPC server.
	ListenAddress string
	// MetricsAddress overrides the metrics listen address; "-" disables metrics.
	MetricsAddress string
	// AllowMultiple skips the single-instance guard.
	AllowMultiple bool
	// Ready, when set, receives the bound gRPC address once the server accepts calls.
	Ready func(address string)
}

// ErrNoServerAddress indicates missing server configuration.
var ErrNoServerAddress = errors.New("no server address configured")

// metricsShutdownTimeout bounds the metrics endpoint shutdown.
const metricsShutdownTimeout = 5 * time.Second

// Run starts the simulation session, the gRPC server and the metrics endpoint
// and blocks until ctx is canceled or the server stops.
//
//nolint:funlen // Startup and shutdown read best in one place.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, Executable)

	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	if level, ok := logger.ParseLogLevel(settings.LogLevel); ok {
		logger.SetLevel(level)
	}

	if !opts.AllowMultiple {
		if err = common.EnsureSingleInstance(common.ExecutableName(Executable)); err != nil {
			return err
		}
	}

	listenAddress, err := resolveListenAddress(settings.ServerAddress, opts.ListenAddress)
	if err != nil {
		return fmt.Errorf("resolve listen address: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	collector, err := observability.NewCollector(registry)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	session, err := simulator.New(ctx, settings, simulator.WithCollector(collector))
	if err != nil {
		return fmt.Errorf("initialise session: %w", err)
	}

	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", listenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", listenAddress, err)
	}

	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(collector.UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(collector.StreamServerInterceptor()),
	)
	api.Register(grpcServer, api.NewServer(session))

	metricsServer := newMetricsServer(resolveMetricsAddress(settings.MetricsAddress, opts.MetricsAddress), collector)

	go session.Run(ctx)

	if metricsServer != nil {
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.ErrorKV(ctx, "Metrics endpoint failed", "error", err)
			}
		}()
	}

	logger.InfoKV(ctx, "Simulator server listening",
		"listen_address", lis.Addr().String(),
		"session", session.ID(),
		"version", version.Short(),
		"metrics", metricsServer != nil)

	// Done channel is closed after GracefulStop finishes to ensure we block
	// until the server fully stops before returning.
	done := make(chan struct{})

	go func() {
		<-ctx.Done()
		logger.Info(ctx, "Shutting down gRPC server")

		// Watch streams only end when their subscriptions close.
		session.Close()
		grpcServer.GracefulStop()

		if metricsServer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), metricsShutdownTimeout)
			_ = metricsServer.Shutdown(shutdownCtx)

			cancel()
		}

		close(done)
	}()

	if opts.Ready != nil {
		opts.Ready(lis.Addr().String())
	}

	if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve gRPC: %w", err)
	}

	<-done
	logger.Info(ctx, "GRPC server stopped")

	return nil
}

// resolveListenAddress determines the listen address for the gRPC server.
// If override is provided, uses it directly. Otherwise extracts port from configAddr.
func resolveListenAddress(configAddr, override string) (string, error) {
	if override != "" {
		return override, nil
	}

	if configAddr == "" {
		return "", ErrNoServerAddress
	}

	_, port, err := net.SplitHostPort(configAddr)
	if err != nil {
		return "", fmt.Errorf("invalid server address format %q: %w", configAddr, err)
	}

	// Bind on all interfaces.
	return ":" + port, nil
}

// resolveMetricsAddress applies the override; "-" disables the endpoint.
func resolveMetricsAddress(configAddr, override string) string {
	switch override {
	case "":
		return configAddr
	case "-":
		return ""
	default:
		return override
	}
}

func newMetricsServer(address string, collector *observability.Collector) *http.Server {
	if address == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	return &http.Server{
		Addr:              address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
