// Package containment keeps cells inside a cylindrical petri dish.
// Only the dish floor is modeled: a cell touching the floor inside the dish
// footprint gets a damped spring pushing it back along the floor normal.
// Lateral walls are not modeled.
package containment

import (
	"errors"
	"fmt"

	"github.com/lao-tseu-is-alive/go-petri-sim/pkg/cell"
	"github.com/lao-tseu-is-alive/go-petri-sim/pkg/geometry"
	"github.com/tochemey/goakt/v3/log"
)

// ErrInvalidConfig is wrapped by every constructor validation failure.
var ErrInvalidConfig = errors.New("invalid containment configuration")

// exitMargin sets the hysteresis band: a contact is only released once the
// projected squared distance from the center exceeds radius^2 / exitMargin.
const exitMargin = 0.95

// DishConfig describes the capped cylinder.
type DishConfig struct {
	Center geometry.Vector3D `json:"center"`
	Up     geometry.Vector3D `json:"up"`
	Radius float64           `json:"radius"`
	Height float64           `json:"height"`
	// MinDistance is the height a sunk cell is snapped back to.
	MinDistance float64 `json:"minDistance"`
}

// DefaultDishConfig returns a 500 wide, 100 high dish centered on the origin
// with Y as up axis.
func DefaultDishConfig() DishConfig {
	return DishConfig{
		Center:      geometry.Vector3D{},
		Up:          geometry.Vector3D{Y: 1},
		Radius:      500,
		Height:      100,
		MinDistance: 0.01,
	}
}

// Validate checks the dish geometry.
func (c DishConfig) Validate() error {
	if !(c.Radius > 0) {
		return fmt.Errorf("%w: dish radius must be > 0, got %v", ErrInvalidConfig, c.Radius)
	}
	if !(c.Height > 0) {
		return fmt.Errorf("%w: dish height must be > 0, got %v", ErrInvalidConfig, c.Height)
	}
	if !(c.MinDistance > 0) {
		return fmt.Errorf("%w: dish min distance must be > 0, got %v", ErrInvalidConfig, c.MinDistance)
	}
	if c.Up.IsZero() {
		return fmt.Errorf("%w: dish up vector must not be zero", ErrInvalidConfig)
	}
	return nil
}

// StiffnessDamping returns the (k, c) spring parameters for a new contact.
type StiffnessDamping func(c cell.Cell) (k, damping float64)

// DefaultStiffnessDamping gives every contact k = 1 and c = 1.
func DefaultStiffnessDamping(cell.Cell) (float64, float64) {
	return 1.0, 1.0
}

type contact struct {
	spring Spring
	seen   uint64
}

// PetriDish tracks floor contacts with hysteresis and applies the matching
// spring forces. BeginUpdate must run for every cell before ApplyForces.
type PetriDish struct {
	cfg      DishConfig
	up       geometry.Vector3D
	radiusSq float64
	getKC    StiffnessDamping
	logger   log.Logger

	ground map[cell.ID]*contact
	pass   uint64
}

// Option configures a PetriDish.
type Option func(*PetriDish)

// WithLogger sets the logger used by the dish.
func WithLogger(logger log.Logger) Option {
	return func(d *PetriDish) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithStiffnessDamping overrides the per cell spring parameters.
func WithStiffnessDamping(fn StiffnessDamping) Option {
	return func(d *PetriDish) {
		if fn != nil {
			d.getKC = fn
		}
	}
}

// NewPetriDish validates cfg and returns a dish without any contact.
func NewPetriDish(cfg DishConfig, opts ...Option) (*PetriDish, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	d := &PetriDish{
		cfg:      cfg,
		up:       cfg.Up.Normalize(),
		radiusSq: cfg.Radius * cfg.Radius,
		getKC:    DefaultStiffnessDamping,
		logger:   log.DiscardLogger,
		ground:   make(map[cell.ID]*contact),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Radius returns the dish radius.
func (d *PetriDish) Radius() float64 { return d.cfg.Radius }

// Height returns the dish wall height.
func (d *PetriDish) Height() float64 { return d.cfg.Height }

// Center returns the center of the dish floor.
func (d *PetriDish) Center() geometry.Vector3D { return d.cfg.Center }

// Up returns the unit floor normal.
func (d *PetriDish) Up() geometry.Vector3D { return d.up }

// ContactCount returns the number of cells currently grounded.
func (d *PetriDish) ContactCount() int {
	return len(d.ground)
}

// Grounded reports whether the cell id currently has a floor contact.
func (d *PetriDish) Grounded(id cell.ID) bool {
	_, ok := d.ground[id]
	return ok
}

// Spring returns a copy of the spring attached to id.
func (d *PetriDish) Spring(id cell.ID) (Spring, bool) {
	if gc, ok := d.ground[id]; ok {
		return gc.spring, true
	}
	return Spring{}, false
}

// BeginUpdate is the detection phase: it opens contacts for cells touching
// the floor inside the footprint and releases the ones that left it.
func (d *PetriDish) BeginUpdate(cells []cell.Cell) {
	d.pass++
	for _, c := range cells {
		id := c.ID()
		pos := c.Position()
		rad := c.BoundingRadius()
		proj := pos.ProjectOnPlane(d.cfg.Center, d.up)
		floorSq := proj.DistanceSquaredTo(d.cfg.Center)

		gc, grounded := d.ground[id]
		if grounded {
			gc.seen = d.pass
		}

		touching := pos.DistanceSquaredTo(proj) < rad*rad
		if touching && floorSq < d.radiusSq && !grounded {
			k, damping := d.getKC(c)
			d.ground[id] = &contact{spring: NewSpring(k, damping, rad), seen: d.pass}
			d.logger.Debugf("containment: %s grounded at %s", id, proj)
			continue
		}
		if grounded && floorSq > d.radiusSq/exitMargin {
			delete(d.ground, id)
			d.logger.Debugf("containment: %s left the dish floor at %s", id, proj)
		}
	}

	// cells removed by the host since the last pass
	for id, gc := range d.ground {
		if gc.seen != d.pass {
			delete(d.ground, id)
			d.logger.Debugf("containment: dropped contact of missing %s", id)
		}
	}
}

// ApplyForces is the force phase: every grounded cell receives its spring
// force along the floor normal. A cell at or below the floor is snapped back
// to MinDistance above it with zero velocity first.
func (d *PetriDish) ApplyForces(cells []cell.Cell) {
	if len(d.ground) == 0 {
		return
	}
	minDist := d.cfg.MinDistance
	for _, c := range cells {
		gc, ok := d.ground[c.ID()]
		if !ok {
			continue
		}
		body := c.Body()
		pos := c.Position()
		proj := pos.ProjectOnPlane(d.cfg.Center, d.up)

		// cells may grow or shrink between ticks
		gc.spring.RestLength = c.BoundingRadius()

		dir := pos.Sub(proj)
		length := pos.DistanceTo(proj)
		if length <= minDist || dir.Dot(d.up) <= 0 {
			body.SetPosition(proj.Add(d.up.Mul(minDist)))
			body.SetVelocity(geometry.Vector3D{})
			dir = c.Position().Sub(proj)
			length = minDist
			d.logger.Debugf("containment: %s snapped back above the floor", c.ID())
		}
		dir = dir.Mul(1 / length)

		speed := body.Velocity().Dot(dir)
		f := gc.spring.ComputeForce(length, speed)
		body.ReceiveForce(dir.Mul(f))
	}
}
