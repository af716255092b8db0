package simulation

import (
	"github.com/lao-tseu-is-alive/go-petri-sim/pkg/cell"
	"github.com/lao-tseu-is-alive/go-petri-sim/pkg/geometry"
)

// Entity is the concrete cell living in the World.
// It is its own body: forces received during a tick are accumulated in Force
// and consumed by the world integrator.
type Entity struct {
	id     cell.ID
	Pos    geometry.Vector3D
	Vel    geometry.Vector3D
	Force  geometry.Vector3D
	Mass   float64
	Radius float64

	// Production[m] is emitted every tick, Sensing[m] is overwritten by the
	// signaling pass.
	Production []float64
	Sensing    []float64
}

var (
	_ cell.Cell = (*Entity)(nil)
	_ cell.Body = (*Entity)(nil)
)

// NewEntity creates an entity at pos for nbMol molecule types.
func NewEntity(pos geometry.Vector3D, radius float64, nbMol int) *Entity {
	return &Entity{
		Pos:        pos,
		Mass:       1,
		Radius:     radius,
		Production: make([]float64, nbMol),
		Sensing:    make([]float64, nbMol),
	}
}

// ID returns the handle given by the World at spawn time.
func (e *Entity) ID() cell.ID { return e.id }

// Position returns the center of the entity.
func (e *Entity) Position() geometry.Vector3D { return e.Pos }

// BoundingRadius returns the radius of the entity.
func (e *Entity) BoundingRadius() float64 { return e.Radius }

// Body returns the entity itself.
func (e *Entity) Body() cell.Body { return e }

// MoleculeProduction returns the production of molecule m, 0 when unknown.
func (e *Entity) MoleculeProduction(m int) float64 {
	if m < 0 || m >= len(e.Production) {
		return 0
	}
	return e.Production[m]
}

// SetMoleculeSensing stores the sensed value of molecule m, growing the
// sensing slice when needed.
func (e *Entity) SetMoleculeSensing(m int, value float64) {
	if m < 0 {
		return
	}
	if m >= len(e.Sensing) {
		e.Sensing = append(e.Sensing, make([]float64, m+1-len(e.Sensing))...)
	}
	e.Sensing[m] = value
}

// Velocity returns the current velocity.
func (e *Entity) Velocity() geometry.Vector3D { return e.Vel }

// SetVelocity overrides the velocity.
func (e *Entity) SetVelocity(v geometry.Vector3D) { e.Vel = v }

// SetPosition overrides the position.
func (e *Entity) SetPosition(p geometry.Vector3D) { e.Pos = p }

// ReceiveForce accumulates f until the next integration.
func (e *Entity) ReceiveForce(f geometry.Vector3D) { e.Force = e.Force.Add(f) }

// UpdatePhysics integrates the accumulated force over dt (semi implicit Euler)
// and resets it.
func (e *Entity) UpdatePhysics(dt float64) {
	mass := e.Mass
	if mass <= 0 {
		mass = 1
	}
	e.Vel = e.Vel.Add(e.Force.Mul(dt / mass))
	e.Pos = e.Pos.Add(e.Vel.Mul(dt))
	e.Force = geometry.Vector3D{}
}
