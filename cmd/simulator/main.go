package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/signalsfoundry/maritime-simulator/internal/config"
	"github.com/signalsfoundry/maritime-simulator/internal/logging"
	"github.com/signalsfoundry/maritime-simulator/internal/observability"
	"github.com/signalsfoundry/maritime-simulator/internal/sim/run"
	"github.com/signalsfoundry/maritime-simulator/model"
	"github.com/signalsfoundry/maritime-simulator/timectrl"
)

type options struct {
	World        config.WorldConfig
	Ticks        int
	Seed         int64
	HasSeed      bool
	TickInterval time.Duration
	Accelerated  bool
	Every        int
	JSON         bool
}

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	opts, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	log := logging.NewFromEnv()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracingCfg, err := observability.TracingConfigFromEnv()
	if err != nil {
		log.Error(ctx, "invalid tracing config", logging.Err(err))
		os.Exit(2)
	}
	shutdownTracing, err := observability.InitTracing(ctx, tracingCfg, log)
	if err != nil {
		log.Error(ctx, "failed to init tracing", logging.Err(err))
		os.Exit(1)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	snap, err := simulate(ctx, opts, os.Stdout, log)
	if err != nil {
		log.Error(context.Background(), "simulation failed", logging.Err(err))
		os.Exit(1)
	}
	if opts.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(snap)
		return
	}
	printSummary(os.Stdout, snap)
}

// parseFlags builds the run options. Environment variables supply the
// defaults and flags override them. Any -seed given on the command line is
// used as is, including 0; without it the run picks a seed from the clock.
func parseFlags(fs *flag.FlagSet, args []string) (options, error) {
	world := config.WorldConfigFromEnv()
	opts := options{World: world}

	tick, tickErr := config.Duration(config.EnvTickInterval, timectrl.DefaultInterval)
	accelerated, accErr := config.Bool(config.EnvAccelerated, true)
	if err := errors.Join(tickErr, accErr); err != nil {
		return options{}, err
	}

	fs.IntVar(&opts.Ticks, "ticks", 500, "run duration in ticks; 0 runs until interrupted")
	fs.Int64Var(&opts.Seed, "seed", 0, "random seed; omit to pick one from the clock")
	fs.DurationVar(&opts.TickInterval, "tick", tick, "tick interval in real-time mode")
	fs.BoolVar(&opts.Accelerated, "accelerated", accelerated, "run in accelerated mode (vs real-time)")
	fs.StringVar(&opts.World.ScenarioPath, "scenario", world.ScenarioPath, "scenario JSON file; empty uses the built-in crossing")
	fs.StringVar(&opts.World.TerrainPath, "terrain", world.TerrainPath, "PNG map used for navigability; empty means open water")
	fs.StringVar(&opts.World.TerrainBounds, "bounds", world.TerrainBounds, "world rectangle covered by the map as minX,minY,maxX,maxY")
	fs.StringVar(&opts.World.TerrainClassifier, "classifier", world.TerrainClassifier, "water colour rule: blue-dominance or threshold")
	fs.IntVar(&opts.Every, "every", 10, "print a fleet line every N ticks; 0 prints only the summary")
	fs.BoolVar(&opts.JSON, "json", false, "print the final snapshot as JSON")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "seed" {
			opts.HasSeed = true
		}
	})
	return opts, nil
}

// simulate runs one headless run to completion, or until ctx is cancelled,
// and returns the final snapshot.
func simulate(ctx context.Context, opts options, out io.Writer, log logging.Logger) (model.RunSnapshot, error) {
	world, err := config.LoadWorld(ctx, opts.World, log)
	if err != nil {
		return model.RunSnapshot{}, err
	}

	mode := timectrl.RealTime
	if opts.Accelerated {
		mode = timectrl.Accelerated
	}
	ctrl := run.New(world.Terrain,
		run.WithScenario(world.Scenario),
		run.WithTickInterval(opts.TickInterval),
		run.WithMode(mode),
		run.WithLogger(log),
		run.WithTickObserver(fleetPrinter(out, opts.Every)),
	)

	st, err := ctrl.Commit(ctx, model.RunConfig{DurationTicks: opts.Ticks, Seed: opts.Seed, HasSeed: opts.HasSeed})
	if err != nil {
		return model.RunSnapshot{}, err
	}
	fmt.Fprintf(out, "Starting simulation: run=%s ticks=%s seed=%d mode=%v\n", st.RunID, durationLabel(opts.Ticks), st.Seed, mode)

	if _, err := ctrl.Start(ctx); err != nil {
		return model.RunSnapshot{}, err
	}
	if _, err := ctrl.Wait(ctx); err != nil {
		if _, endErr := ctrl.End(context.Background()); endErr != nil {
			return model.RunSnapshot{}, endErr
		}
	}
	return ctrl.Snapshot(), nil
}

func durationLabel(ticks int) string {
	if ticks == 0 {
		return "endless"
	}
	return fmt.Sprint(ticks)
}

// fleetPrinter writes one line per vessel every n ticks.
func fleetPrinter(out io.Writer, n int) run.TickObserver {
	var last uint64
	return func(s model.RunSnapshot) {
		tick := s.Status.Tick
		if n <= 0 || tick == 0 || tick == last || tick%uint64(n) != 0 {
			return
		}
		last = tick
		fmt.Fprintf(out, "[%s] live=%d\n", s.Status.TickLabel(), s.Status.LiveVessels)
		for _, v := range s.Vessels {
			fmt.Fprintf(out, "  %-12s %-8s (%7.3f, %7.3f) wp %d/%d\n",
				v.ID, v.State, v.Position.X, v.Position.Y, v.Waypoint, v.RouteLen)
		}
	}
}

func printSummary(out io.Writer, s model.RunSnapshot) {
	fmt.Fprintf(out, "Simulation %s at tick %s (%s).\n", s.Status.State, s.Status.TickLabel(), s.Status.Outcome)
	fmt.Fprintf(out, "Spawned: %d, still live: %d\n", s.Summary.Spawned, s.Status.LiveVessels)

	states := make([]string, 0, len(s.Summary.Departures))
	for st := range s.Summary.Departures {
		states = append(states, string(st))
	}
	sort.Strings(states)
	for _, st := range states {
		fmt.Fprintf(out, "  %-9s %d\n", st+":", s.Summary.Departures[model.VesselState(st)])
	}
}
