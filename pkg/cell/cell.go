// Package cell defines the capabilities the simulation plugins require from a
// cell. The plugins never own cells: they hold handles and interfaces and let
// the host world decide their lifetime.
package cell

import (
	"fmt"

	"github.com/lao-tseu-is-alive/go-petri-sim/pkg/geometry"
)

// ID is a stable generational handle for a cell.
// Index is the slot in the host arena, Generation is bumped every time the
// slot is reused, so a stale ID never designates a newer cell.
type ID struct {
	Index      uint32
	Generation uint32
}

// String implements the fmt.Stringer interface.
func (id ID) String() string {
	return fmt.Sprintf("cell#%d.%d", id.Index, id.Generation)
}

// Body is the mechanical part of a cell, integrated by the host world.
type Body interface {
	Velocity() geometry.Vector3D
	SetVelocity(v geometry.Vector3D)
	SetPosition(p geometry.Vector3D)
	// ReceiveForce accumulates f for the current tick.
	ReceiveForce(f geometry.Vector3D)
}

// Cell is the capability set consumed by the signaling and containment plugins.
type Cell interface {
	ID() ID
	Position() geometry.Vector3D
	// MoleculeProduction returns how much of molecule m the cell emits this tick.
	MoleculeProduction(m int) float64
	// SetMoleculeSensing stores the concentration of molecule m sensed this tick.
	SetMoleculeSensing(m int, value float64)
	BoundingRadius() float64
	Body() Body
}
