package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lao-tseu-is-alive/go-petri-sim/pkg/simulation"
	"github.com/tochemey/goakt/v3/actor"
	"github.com/tochemey/goakt/v3/log"
	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

func main() {
	configFile := flag.String("config", "", "path to a JSON configuration file (defaults are used when empty)")
	ticks := flag.Int("ticks", -1, "number of ticks to run, overrides the configuration when >= 0")
	flag.Parse()

	cfg := simulation.DefaultConfig()
	if *configFile != "" {
		loaded, err := simulation.LoadConfig(*configFile)
		if err != nil {
			log.DefaultLogger.Fatalf("failed to load configuration: %v", err)
		}
		cfg = loaded
	}
	if *ticks >= 0 {
		cfg.Ticks = *ticks
	}

	logger := log.New(cfg.Level(), os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scenario, err := simulation.NewScenario(cfg, logger)
	if err != nil {
		logger.Fatalf("failed to build scenario: %v", err)
	}

	system, err := actor.NewActorSystem("petri-sim", actor.WithLogger(logger))
	if err != nil {
		logger.Fatalf("failed to create actor system: %v", err)
	}
	if err := system.Start(ctx); err != nil {
		logger.Fatalf("failed to start actor system: %v", err)
	}
	defer func() {
		if err := system.Stop(context.Background()); err != nil {
			logger.Errorf("actor system stop: %v", err)
		}
	}()

	worldPID, err := system.Spawn(ctx, "world", simulation.NewWorldActor(scenario, nil))
	if err != nil {
		logger.Errorf("failed to spawn world: %v", err)
		return
	}

	tick := durationpb.New(time.Duration(cfg.DeltaTime * float64(time.Second)))
	start := time.Now()
	for i := 0; i < cfg.Ticks; i++ {
		if ctx.Err() != nil {
			logger.Warnf("interrupted after %d ticks", i)
			break
		}
		if err := actor.Tell(ctx, worldPID, tick); err != nil {
			logger.Errorf("tick %d: %v", i, err)
			return
		}
	}

	// the ask is queued behind every tick sent above
	reply, err := actor.Ask(context.Background(), worldPID, &emptypb.Empty{}, time.Minute)
	if err != nil {
		logger.Errorf("failed to fetch final snapshot: %v", err)
		return
	}
	st, ok := reply.(*structpb.Struct)
	if !ok {
		logger.Errorf("unexpected snapshot reply %T", reply)
		return
	}
	snap := simulation.SnapshotFromProto(st)
	logger.Infof("run %s done in %s: tick %d | cells %d | grounded %d | buckets %d | mean height %.3f | mean sensing %v",
		snap.RunID, time.Since(start).Round(time.Millisecond), snap.Tick, snap.Cells,
		snap.Grounded, snap.Buckets, snap.MeanHeight, snap.MeanSensing)
}
