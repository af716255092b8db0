package simulation

import (
	"errors"
	"testing"

	"github.com/lao-tseu-is-alive/go-petri-sim/pkg/cell"
	"github.com/lao-tseu-is-alive/go-petri-sim/pkg/containment"
	"github.com/lao-tseu-is-alive/go-petri-sim/pkg/geometry"
	"github.com/lao-tseu-is-alive/go-petri-sim/pkg/signaling"
)

// recorder logs the phase calls it receives.
type recorder struct {
	name  string
	calls *[]string
}

func (r recorder) BeginUpdate([]cell.Cell) { *r.calls = append(*r.calls, r.name+":update") }
func (r recorder) ApplyForces([]cell.Cell) { *r.calls = append(*r.calls, r.name+":forces") }
func (r recorder) EndUpdate([]cell.Cell)   { *r.calls = append(*r.calls, r.name+":end") }

func TestWorld_TwoPhaseOrder(t *testing.T) {
	var calls []string
	w := NewWorld(geometry.Vector3D{}, nil)
	for _, name := range []string{"a", "b"} {
		if err := w.Register(recorder{name: name, calls: &calls}); err != nil {
			t.Fatalf("Register(%s): %v", name, err)
		}
	}

	w.Step(1)

	want := []string{"a:update", "b:update", "a:forces", "b:forces", "a:end", "b:end"}
	if len(calls) != len(want) {
		t.Fatalf("calls = %v; want %v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("call #%d = %s; want %s", i, calls[i], want[i])
		}
	}
	if w.Tick() != 1 {
		t.Errorf("Tick() = %d; want 1", w.Tick())
	}
}

func TestWorld_RegisterRejectsNonPlugins(t *testing.T) {
	w := NewWorld(geometry.Vector3D{}, nil)
	if err := w.Register(42); !errors.Is(err, ErrNotAPlugin) {
		t.Errorf("Register(42) error = %v; want ErrNotAPlugin", err)
	}
}

func TestWorld_GenerationalHandles(t *testing.T) {
	w := NewWorld(geometry.Vector3D{}, nil)
	a := w.Spawn(NewEntity(geometry.Vector3D{X: 1}, 1, 1))
	b := w.Spawn(NewEntity(geometry.Vector3D{X: 2}, 1, 1))

	if w.Len() != 2 {
		t.Fatalf("Len() = %d; want 2", w.Len())
	}
	if err := w.Remove(a); err != nil {
		t.Fatalf("Remove(%s): %v", a, err)
	}
	if err := w.Remove(a); !errors.Is(err, ErrUnknownCell) {
		t.Errorf("second Remove(%s) error = %v; want ErrUnknownCell", a, err)
	}

	c := w.Spawn(NewEntity(geometry.Vector3D{X: 3}, 1, 1))
	if c.Index != a.Index || c.Generation != a.Generation+1 {
		t.Errorf("reused handle = %s; want slot %d generation %d", c, a.Index, a.Generation+1)
	}
	if _, ok := w.Get(a); ok {
		t.Errorf("stale handle %s still resolves", a)
	}
	if e, ok := w.Get(c); !ok || e.Pos.X != 3 {
		t.Errorf("Get(%s) = %v, %v; want the new entity", c, e, ok)
	}
	if e, ok := w.Get(b); !ok || e.ID() != b {
		t.Errorf("Get(%s) = %v, %v", b, e, ok)
	}
	if _, ok := w.Get(cell.ID{Index: 99}); ok {
		t.Error("out of range handle resolves")
	}
	if w.Len() != 2 {
		t.Errorf("Len() = %d; want 2", w.Len())
	}
}

// spawner adds and removes cells from inside the update phase.
type spawner struct {
	w       *World
	victim  cell.ID
	forces  []int
	updates []int
}

func (s *spawner) BeginUpdate(cells []cell.Cell) {
	s.updates = append(s.updates, len(cells))
	if s.w.Tick() == 0 {
		_ = s.w.Remove(s.victim)
		s.w.Spawn(NewEntity(geometry.Vector3D{X: 10}, 1, 0))
		s.w.Spawn(NewEntity(geometry.Vector3D{X: 20}, 1, 0))
	}
}

func (s *spawner) ApplyForces(cells []cell.Cell) {
	s.forces = append(s.forces, len(cells))
	for _, c := range cells {
		c.Body().ReceiveForce(geometry.Vector3D{Y: 1})
	}
}

func TestWorld_HooksMaySpawnAndRemove(t *testing.T) {
	w := NewWorld(geometry.Vector3D{}, nil)
	a := w.Spawn(NewEntity(geometry.Vector3D{X: 1}, 1, 0))
	w.Spawn(NewEntity(geometry.Vector3D{X: 2}, 1, 0))
	s := &spawner{w: w, victim: a}
	if err := w.Register(s); err != nil {
		t.Fatal(err)
	}

	before := w.Cells()
	w.Step(1)

	if len(before) != 2 || before[0].Position().X != 1 {
		t.Errorf("slice handed out before the step was rewritten: %d cells", len(before))
	}
	w.Step(1)

	if want := []int{2, 3}; s.updates[0] != want[0] || s.updates[1] != want[1] {
		t.Errorf("update phase saw %v cells; want %v", s.updates, want)
	}
	if want := []int{2, 3}; s.forces[0] != want[0] || s.forces[1] != want[1] {
		t.Errorf("force phase saw %v cells; want %v", s.forces, want)
	}
	if w.Len() != 3 {
		t.Errorf("Len() = %d; want 3", w.Len())
	}
}

func TestWorld_Integration(t *testing.T) {
	w := NewWorld(geometry.Vector3D{Y: -10}, nil)
	e := NewEntity(geometry.Vector3D{Y: 100}, 1, 0)
	e.Mass = 2
	w.Spawn(e)
	e.ReceiveForce(geometry.Vector3D{X: 4})

	w.Step(0.5)

	// F = (4, -20), a = (2, -10), v = a*dt, p += v*dt
	if want := (geometry.Vector3D{X: 1, Y: -5}); !e.Vel.Eq(want) {
		t.Errorf("velocity = %v; want %v", e.Vel, want)
	}
	if want := (geometry.Vector3D{X: 0.5, Y: 97.5}); !e.Pos.Eq(want) {
		t.Errorf("position = %v; want %v", e.Pos, want)
	}
	if !e.Force.IsZero() {
		t.Errorf("force not reset: %v", e.Force)
	}
}

func TestWorld_SignalingAndContainmentTogether(t *testing.T) {
	agg, err := signaling.NewAggregator(10, []float64{100})
	if err != nil {
		t.Fatalf("NewAggregator: %v", err)
	}
	dish, err := containment.NewPetriDish(containment.DefaultDishConfig())
	if err != nil {
		t.Fatalf("NewPetriDish: %v", err)
	}
	w := NewWorld(geometry.Vector3D{}, nil)
	if err := w.Register(agg); err != nil {
		t.Fatal(err)
	}
	if err := w.Register(dish); err != nil {
		t.Fatal(err)
	}

	p1 := NewEntity(geometry.Vector3D{X: 0}, 5, 1)
	p1.Production[0] = 1
	p2 := NewEntity(geometry.Vector3D{X: 5}, 5, 1)
	p2.Production[0] = 1
	sensor := NewEntity(geometry.Vector3D{X: 100}, 5, 1)
	grounded := NewEntity(geometry.Vector3D{X: 200, Y: 4}, 5, 1)
	for _, e := range []*Entity{p1, p2, sensor, grounded} {
		w.Spawn(e)
	}

	w.Step(0)

	want := 2.0 / ((97.5*97.5)/100 + 1)
	if diff := sensor.Sensing[0] - want; diff > 1e-12 || diff < -1e-12 {
		t.Errorf("sensed = %v; want %v", sensor.Sensing[0], want)
	}
	// p1, p2 and sensor sit on the floor plane, all four are grounded
	if dish.ContactCount() != 4 {
		t.Errorf("ContactCount = %d; want 4", dish.ContactCount())
	}
	if sensor.Pos.Y != 0.01 {
		t.Errorf("sensor height = %v; want snapped to 0.01", sensor.Pos.Y)
	}
	if !dish.Grounded(grounded.ID()) {
		t.Error("entity 4 above the floor should be grounded")
	}
}

func TestEntity_MoleculeAccessors(t *testing.T) {
	e := NewEntity(geometry.Vector3D{}, 1, 2)
	e.Production[1] = 3

	if got := e.MoleculeProduction(1); got != 3 {
		t.Errorf("MoleculeProduction(1) = %v; want 3", got)
	}
	if got := e.MoleculeProduction(5); got != 0 {
		t.Errorf("MoleculeProduction(5) = %v; want 0", got)
	}
	e.SetMoleculeSensing(3, 7)
	if len(e.Sensing) != 4 || e.Sensing[3] != 7 {
		t.Errorf("Sensing = %v; want grown to 4 with [3] = 7", e.Sensing)
	}
}

func BenchmarkWorld_Step(b *testing.B) {
	cfg := DefaultConfig()
	cfg.NumCells = 1000
	s, err := NewScenario(cfg, nil)
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.Step()
	}
}
