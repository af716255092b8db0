package simulation

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lao-tseu-is-alive/go-petri-sim/pkg/cell"
	"github.com/lao-tseu-is-alive/go-petri-sim/pkg/geometry"
	"github.com/tochemey/goakt/v3/log"
)

var (
	// ErrUnknownCell is returned when an ID does not designate a live entity.
	ErrUnknownCell = errors.New("unknown cell")
	// ErrNotAPlugin is returned by Register for values implementing no hook.
	ErrNotAPlugin = errors.New("value implements no world hook")
)

// UpdateHook is called once per tick, before any force is applied.
// Detection and aggregation passes belong here.
type UpdateHook interface {
	BeginUpdate(cells []cell.Cell)
}

// ForceHook is called once per tick, after every UpdateHook returned.
type ForceHook interface {
	ApplyForces(cells []cell.Cell)
}

// PostStepHook is called once per tick, after integration.
type PostStepHook interface {
	EndUpdate(cells []cell.Cell)
}

type slot struct {
	entity     *Entity
	generation uint32
}

// World owns the entities and runs the two phase plugin contract:
// every UpdateHook of every plugin, then every ForceHook, then integration.
type World struct {
	runID string

	slots []slot
	free  []uint32
	live  []cell.Cell
	dirty bool

	updateHooks []UpdateHook
	forceHooks  []ForceHook
	postHooks   []PostStepHook

	gravity geometry.Vector3D
	tick    uint64
	logger  log.Logger
}

// NewWorld creates an empty world. gravity is applied to every entity as
// mass * gravity each tick.
func NewWorld(gravity geometry.Vector3D, logger log.Logger) *World {
	if logger == nil {
		logger = log.DiscardLogger
	}
	return &World{
		runID:   uuid.NewString(),
		gravity: gravity,
		logger:  logger,
	}
}

// RunID identifies this world instance in logs and snapshots.
func (w *World) RunID() string { return w.runID }

// Tick returns the number of completed steps.
func (w *World) Tick() uint64 { return w.tick }

// Len returns the number of live entities.
func (w *World) Len() int { return len(w.Cells()) }

// Register adds a plugin. Its hooks run in registration order.
func (w *World) Register(plugin any) error {
	found := false
	if h, ok := plugin.(UpdateHook); ok {
		w.updateHooks = append(w.updateHooks, h)
		found = true
	}
	if h, ok := plugin.(ForceHook); ok {
		w.forceHooks = append(w.forceHooks, h)
		found = true
	}
	if h, ok := plugin.(PostStepHook); ok {
		w.postHooks = append(w.postHooks, h)
		found = true
	}
	if !found {
		return fmt.Errorf("%w: %T", ErrNotAPlugin, plugin)
	}
	return nil
}

// Spawn inserts e and returns its handle. Freed slots are reused with a new
// generation.
func (w *World) Spawn(e *Entity) cell.ID {
	var idx uint32
	if n := len(w.free); n > 0 {
		idx = w.free[n-1]
		w.free = w.free[:n-1]
		w.slots[idx].generation++
	} else {
		idx = uint32(len(w.slots))
		w.slots = append(w.slots, slot{})
	}
	w.slots[idx].entity = e
	e.id = cell.ID{Index: idx, Generation: w.slots[idx].generation}
	w.dirty = true
	return e.id
}

// Get returns the entity designated by id.
func (w *World) Get(id cell.ID) (*Entity, bool) {
	if int(id.Index) >= len(w.slots) {
		return nil, false
	}
	s := w.slots[id.Index]
	if s.entity == nil || s.generation != id.Generation {
		return nil, false
	}
	return s.entity, true
}

// Remove deletes the entity designated by id.
func (w *World) Remove(id cell.ID) error {
	if _, ok := w.Get(id); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCell, id)
	}
	w.slots[id.Index].entity = nil
	w.free = append(w.free, id.Index)
	w.dirty = true
	return nil
}

// Cells returns the live entities in slot order.
// The slice is shared and must not be modified. A Spawn or Remove builds a new
// one on the next call, so a slice handed out earlier, including the one a
// running Step iterates, is never rewritten. Cells spawned by a hook join the
// world at the next tick.
func (w *World) Cells() []cell.Cell {
	if w.dirty || w.live == nil {
		w.live = make([]cell.Cell, 0, len(w.slots)-len(w.free))
		for _, s := range w.slots {
			if s.entity != nil {
				w.live = append(w.live, s.entity)
			}
		}
		w.dirty = false
	}
	return w.live
}

// Entities returns the live entities in slot order.
func (w *World) Entities() []*Entity {
	out := make([]*Entity, 0, len(w.slots))
	for _, s := range w.slots {
		if s.entity != nil {
			out = append(out, s.entity)
		}
	}
	return out
}

// Step advances the world by dt.
func (w *World) Step(dt float64) {
	cells := w.Cells()

	for _, h := range w.updateHooks {
		h.BeginUpdate(cells)
	}

	if !w.gravity.IsZero() {
		for _, c := range cells {
			e := c.(*Entity)
			e.ReceiveForce(w.gravity.Mul(e.Mass))
		}
	}
	for _, h := range w.forceHooks {
		h.ApplyForces(cells)
	}

	for _, c := range cells {
		c.(*Entity).UpdatePhysics(dt)
	}

	for _, h := range w.postHooks {
		h.EndUpdate(cells)
	}
	w.tick++
}
