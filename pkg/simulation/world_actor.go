package simulation

import (
	"time"

	"github.com/tochemey/goakt/v3/actor"
	"github.com/tochemey/goakt/v3/goaktpb"
	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/emptypb"
)

// WorldActor drives a Scenario from its mailbox, one tick per message, so
// ticks never overlap.
//
// Messages:
//   - *durationpb.Duration: run one tick; a zero duration uses the configured delta time
//   - *emptypb.Empty: reply with the current snapshot as a *structpb.Struct
type WorldActor struct {
	scenario   *Scenario
	snapshotCh chan<- *Snapshot

	// --- Benchmark Stats ---
	ticksCount  int
	lastLogTime time.Time
}

var _ actor.Actor = (*WorldActor)(nil)

// NewWorldActor wraps scenario. snapshotCh is optional: when set, a snapshot
// is pushed after every tick unless the reader is busy.
func NewWorldActor(scenario *Scenario, snapshotCh chan<- *Snapshot) *WorldActor {
	return &WorldActor{
		scenario:    scenario,
		snapshotCh:  snapshotCh,
		lastLogTime: time.Now(),
	}
}

func (w *WorldActor) PreStart(ctx *actor.Context) error {
	ctx.ActorSystem().Logger().Infof("world %s is starting with %d cells",
		w.scenario.World.RunID(), w.scenario.World.Len())
	return nil
}

func (w *WorldActor) Receive(ctx *actor.ReceiveContext) {
	switch msg := ctx.Message().(type) {
	case *goaktpb.PostStart:
		ctx.Logger().Debugf("world %s started", w.scenario.World.RunID())

	case *durationpb.Duration:
		dt := msg.AsDuration().Seconds()
		if dt > 0 {
			w.scenario.World.Step(dt)
		} else {
			w.scenario.Step()
		}
		w.ticksCount++
		w.logBenchmarks(ctx)
		w.pushSnapshot()

	case *emptypb.Empty:
		reply, err := w.scenario.Snapshot().ToProto()
		if err != nil {
			ctx.Err(err)
			return
		}
		ctx.Response(reply)

	default:
		ctx.Unhandled()
	}
}

func (w *WorldActor) logBenchmarks(ctx *actor.ReceiveContext) {
	if time.Since(w.lastLogTime) >= time.Second {
		snap := w.scenario.Snapshot()
		ctx.Logger().Infof("📊 TICK RATE: %d/sec | tick %d | cells %d | grounded %d | buckets %d",
			w.ticksCount, snap.Tick, snap.Cells, snap.Grounded, snap.Buckets)
		w.ticksCount = 0
		w.lastLogTime = time.Now()
	}
}

func (w *WorldActor) pushSnapshot() {
	if w.snapshotCh == nil {
		return
	}
	select {
	case w.snapshotCh <- w.scenario.Snapshot():
	default:
		// reader busy, skip this one
	}
}

func (w *WorldActor) PostStop(ctx *actor.Context) error {
	ctx.ActorSystem().Logger().Infof("world %s stopped at tick %d",
		w.scenario.World.RunID(), w.scenario.World.Tick())
	return nil
}
