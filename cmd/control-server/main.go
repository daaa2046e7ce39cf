package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"

	"github.com/signalsfoundry/maritime-simulator/internal/config"
	"github.com/signalsfoundry/maritime-simulator/internal/control"
	"github.com/signalsfoundry/maritime-simulator/internal/logging"
	"github.com/signalsfoundry/maritime-simulator/internal/observability"
	simrun "github.com/signalsfoundry/maritime-simulator/internal/sim/run"
	"github.com/signalsfoundry/maritime-simulator/internal/stream"
	"github.com/signalsfoundry/maritime-simulator/timectrl"
)

// Config holds everything the control server needs to start.
type Config struct {
	ListenAddress string
	HTTPAddress   string
	LogLevel      string
	LogFormat     string
	World         config.WorldConfig
	TickInterval  time.Duration
	Accelerated   bool
	MaxDuration   int
}

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	cfg, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	log := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	lis, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		log.Error(context.Background(), "failed to listen for gRPC", logging.String("addr", cfg.ListenAddress), logging.Err(err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log, lis); err != nil {
		log.Error(context.Background(), "control server failed", logging.Err(err))
		os.Exit(1)
	}
}

// parseFlags builds the server config. Environment variables supply the
// defaults and flags override them; a malformed variable is an error even
// when a flag would override it.
func parseFlags(fs *flag.FlagSet, args []string) (Config, error) {
	world := config.WorldConfigFromEnv()
	cfg := Config{World: world}

	tick, tickErr := config.Duration(config.EnvTickInterval, timectrl.DefaultInterval)
	accelerated, accErr := config.Bool(config.EnvAccelerated, false)
	maxDuration, maxErr := config.Int(config.EnvMaxDuration, simrun.DefaultMaxDuration)
	if err := errors.Join(tickErr, accErr, maxErr); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.ListenAddress, "grpc-addr", config.String("SIM_GRPC_ADDR", ":50051"), "TCP address the run control gRPC server listens on")
	fs.StringVar(&cfg.HTTPAddress, "http-addr", config.String("SIM_HTTP_ADDR", ":9090"), "HTTP address for /metrics and the /ws snapshot stream; empty disables it")
	fs.StringVar(&cfg.LogLevel, "log-level", config.String("SIM_LOG_LEVEL", "info"), "debug, info, warn or error")
	fs.StringVar(&cfg.LogFormat, "log-format", config.String("SIM_LOG_FORMAT", "text"), "text or json")
	fs.StringVar(&cfg.World.ScenarioPath, "scenario", world.ScenarioPath, "scenario JSON file; empty uses the built-in crossing")
	fs.StringVar(&cfg.World.TerrainPath, "terrain", world.TerrainPath, "PNG map used for navigability; empty means open water")
	fs.StringVar(&cfg.World.TerrainBounds, "bounds", world.TerrainBounds, "world rectangle covered by the map as minX,minY,maxX,maxY")
	fs.StringVar(&cfg.World.TerrainClassifier, "classifier", world.TerrainClassifier, "water colour rule: blue-dominance or threshold")
	fs.DurationVar(&cfg.TickInterval, "tick", tick, "real-time tick interval")
	fs.BoolVar(&cfg.Accelerated, "accelerated", accelerated, "tick as fast as possible instead of on the interval")
	fs.IntVar(&cfg.MaxDuration, "max-duration", maxDuration, "longest finite run accepted at commit, in ticks")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// run serves the control API on lis until ctx is cancelled.
func run(ctx context.Context, cfg Config, log logging.Logger, lis net.Listener) error {
	tracingCfg, err := observability.TracingConfigFromEnv()
	if err != nil {
		return fmt.Errorf("tracing config: %w", err)
	}
	shutdownTracing, err := observability.InitTracing(ctx, tracingCfg, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	world, err := config.LoadWorld(ctx, cfg.World, log)
	if err != nil {
		return err
	}

	metrics, err := observability.NewMetrics(prometheus.NewRegistry())
	if err != nil {
		return err
	}

	hub := stream.NewHub(
		stream.WithLogger(log),
		stream.WithClientGauge(metrics.Control.SetStreamClients),
	)

	mode := timectrl.RealTime
	if cfg.Accelerated {
		mode = timectrl.Accelerated
	}
	ctrl := simrun.New(world.Terrain,
		simrun.WithScenario(world.Scenario),
		simrun.WithTickInterval(cfg.TickInterval),
		simrun.WithMode(mode),
		simrun.WithMaxDuration(cfg.MaxDuration),
		simrun.WithLogger(log),
		simrun.WithMetricsRecorder(metrics.Run),
		simrun.WithTickObserver(hub.Publish),
	)

	server := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			control.RequestIDUnaryServerInterceptor(log),
			control.TracingUnaryServerInterceptor(),
			metrics.Control.UnaryServerInterceptor(),
		),
	)
	control.RegisterRunControlServer(server, control.NewServer(ctrl, log))

	httpSrv := serveHTTP(cfg.HTTPAddress, metrics, hub, log)

	serveErr := make(chan error, 1)
	log.Info(ctx, "starting run control gRPC server",
		logging.String("addr", lis.Addr().String()),
		logging.String("mode", mode.String()),
		logging.Duration("tick_interval", cfg.TickInterval),
	)
	go func() {
		serveErr <- server.Serve(lis)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc serve: %w", err)
		}
	}

	log.Info(context.Background(), "shutting down run control server")
	server.GracefulStop()
	_, _ = ctrl.Reset(context.Background())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if httpSrv != nil {
		_ = httpSrv.Shutdown(shutdownCtx)
	}
	return nil
}

func serveHTTP(addr string, metrics *observability.Metrics, hub *stream.Hub, log logging.Logger) *http.Server {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/ws", hub)

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "http server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving metrics and snapshot stream", logging.String("addr", addr))
	return srv
}
