package simulation

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/lao-tseu-is-alive/go-petri-sim/pkg/cell"
	"github.com/lao-tseu-is-alive/go-petri-sim/pkg/containment"
	"github.com/lao-tseu-is-alive/go-petri-sim/pkg/geometry"
	"github.com/lao-tseu-is-alive/go-petri-sim/pkg/signaling"
	"github.com/tochemey/goakt/v3/log"
	"google.golang.org/protobuf/types/known/structpb"
)

// Scenario is a World wired with the signaling and containment plugins.
type Scenario struct {
	World     *World
	Signaling *signaling.Aggregator
	Dish      *containment.PetriDish
	cfg       *Config
}

// Snapshot is a summary of the scenario after a tick.
type Snapshot struct {
	RunID       string
	Tick        uint64
	Cells       int
	Grounded    int
	Buckets     int
	MeanSensing []float64 // per molecule
	MeanHeight  float64   // above the dish floor
}

// NewScenario builds the world described by cfg and spawns its population.
func NewScenario(cfg *Config, logger log.Logger) (*Scenario, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.DiscardLogger
	}

	agg, err := signaling.NewAggregator(cfg.GridSize, cfg.MoleculeRanges,
		signaling.WithWorkers(cfg.SignalingWorkers),
		signaling.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create signaling plugin: %w", err)
	}

	k, damping := cfg.Stiffness, cfg.Damping
	dish, err := containment.NewPetriDish(cfg.Dish,
		containment.WithStiffnessDamping(func(cell.Cell) (float64, float64) { return k, damping }),
		containment.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create containment plugin: %w", err)
	}

	w := NewWorld(cfg.Gravity, logger)
	for _, p := range []any{agg, dish} {
		if err := w.Register(p); err != nil {
			return nil, err
		}
	}

	s := &Scenario{World: w, Signaling: agg, Dish: dish, cfg: cfg}
	s.spawnPopulation()
	logger.Infof("scenario %s: %d cells, %d molecules, dish radius %.1f",
		w.RunID(), w.Len(), agg.NbMol(), dish.Radius())
	return s, nil
}

// spawnPopulation drops NumCells entities above the dish floor, uniformly
// over 90% of its footprint. Cell i produces molecule i % nbMol.
func (s *Scenario) spawnPopulation() {
	cfg := s.cfg
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	nbMol := len(cfg.MoleculeRanges)

	up := s.Dish.Up()
	// any two unit vectors spanning the floor plane
	u := up.Cross(geometry.Vector3D{X: 1})
	if u.LenSqr() < geometry.Epsilon {
		u = up.Cross(geometry.Vector3D{Z: 1})
	}
	u = u.Normalize()
	v := up.Cross(u)

	for i := 0; i < cfg.NumCells; i++ {
		r := cfg.Dish.Radius * 0.9 * math.Sqrt(rng.Float64())
		theta := rng.Float64() * 2 * math.Pi
		h := cfg.SpawnHeight + rng.Float64()*2*cfg.CellRadius
		pos := s.Dish.Center().
			Add(u.Mul(r * math.Cos(theta))).
			Add(v.Mul(r * math.Sin(theta))).
			Add(up.Mul(h))

		e := NewEntity(pos, cfg.CellRadius, nbMol)
		e.Production[i%nbMol] = cfg.ProductionRate
		s.World.Spawn(e)
	}
}

// Step advances the scenario by its configured delta time.
func (s *Scenario) Step() {
	s.World.Step(s.cfg.DeltaTime)
}

// Snapshot summarizes the current state.
func (s *Scenario) Snapshot() *Snapshot {
	nbMol := s.Signaling.NbMol()
	snap := &Snapshot{
		RunID:       s.World.RunID(),
		Tick:        s.World.Tick(),
		Grounded:    s.Dish.ContactCount(),
		Buckets:     s.Signaling.Grid().Len(),
		MeanSensing: make([]float64, nbMol),
	}

	center, up := s.Dish.Center(), s.Dish.Up()
	for _, e := range s.World.Entities() {
		snap.Cells++
		snap.MeanHeight += e.Pos.Sub(center).Dot(up)
		for m := 0; m < nbMol && m < len(e.Sensing); m++ {
			snap.MeanSensing[m] += e.Sensing[m]
		}
	}
	if snap.Cells > 0 {
		n := float64(snap.Cells)
		snap.MeanHeight /= n
		for m := range snap.MeanSensing {
			snap.MeanSensing[m] /= n
		}
	}
	return snap
}

// ToProto converts the snapshot into a protobuf Struct, the reply type of the
// world actor.
func (s *Snapshot) ToProto() (*structpb.Struct, error) {
	sensing := make([]any, len(s.MeanSensing))
	for i, v := range s.MeanSensing {
		sensing[i] = v
	}
	return structpb.NewStruct(map[string]any{
		"runId":       s.RunID,
		"tick":        float64(s.Tick),
		"cells":       s.Cells,
		"grounded":    s.Grounded,
		"buckets":     s.Buckets,
		"meanSensing": sensing,
		"meanHeight":  s.MeanHeight,
	})
}

// SnapshotFromProto is the inverse of ToProto.
func SnapshotFromProto(p *structpb.Struct) *Snapshot {
	f := p.GetFields()
	snap := &Snapshot{
		RunID:      f["runId"].GetStringValue(),
		Tick:       uint64(f["tick"].GetNumberValue()),
		Cells:      int(f["cells"].GetNumberValue()),
		Grounded:   int(f["grounded"].GetNumberValue()),
		Buckets:    int(f["buckets"].GetNumberValue()),
		MeanHeight: f["meanHeight"].GetNumberValue(),
	}
	for _, v := range f["meanSensing"].GetListValue().GetValues() {
		snap.MeanSensing = append(snap.MeanSensing, v.GetNumberValue())
	}
	return snap
}
