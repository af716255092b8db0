// Package signaling implements an instantaneous, grid based molecule signaling
// approximation. No diffusion happens and nothing accumulates between ticks:
// producing cells are grouped in buckets, each bucket is reduced to one
// production weighted centroid per molecule, and every cell senses the sum of
// all centroids attenuated by a smooth inverse square falloff.
//
// The cost of the sensing pass is O(cells x buckets). A bucket size much
// larger than the cells gives fewer buckets (faster, less precise); a bucket
// size below the cell size degrades to the O(n^2) pairwise sum.
package signaling

import (
	"errors"
	"fmt"

	"github.com/lao-tseu-is-alive/go-petri-sim/pkg/cell"
	"github.com/lao-tseu-is-alive/go-petri-sim/pkg/geometry"
	"github.com/tochemey/goakt/v3/log"
	"golang.org/x/sync/errgroup"
)

// ErrInvalidConfig is wrapped by every constructor validation failure.
var ErrInvalidConfig = errors.New("invalid signaling configuration")

// MoleculeCentroid is the production weighted center of one molecule in a bucket.
// Position is the zero vector when Total is 0.
type MoleculeCentroid struct {
	Position geometry.Vector3D
	Total    float64
}

// BucketCentroids holds one centroid per molecule for a grid bucket.
type BucketCentroids struct {
	Key       BucketKey
	Molecules []MoleculeCentroid
}

// Aggregator is the per tick signaling pass. It is meant to be registered as
// an update hook of the host world.
type Aggregator struct {
	grid      *Grid
	ranges    []float64
	centroids []BucketCentroids
	workers   int
	logger    log.Logger
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithLogger sets the logger used by the aggregator.
func WithLogger(logger log.Logger) Option {
	return func(a *Aggregator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithWorkers spreads the sensing pass over n goroutines. n <= 1 keeps it on
// the calling goroutine.
func WithWorkers(n int) Option {
	return func(a *Aggregator) {
		a.workers = n
	}
}

// NewAggregator creates an aggregator using buckets of side gridSize.
// ranges[m] is the falloff range of molecule m, len(ranges) the number of
// molecule types.
func NewAggregator(gridSize float64, ranges []float64, opts ...Option) (*Aggregator, error) {
	grid, err := NewGrid(gridSize)
	if err != nil {
		return nil, err
	}
	if len(ranges) == 0 {
		return nil, fmt.Errorf("%w: at least one molecule range is required", ErrInvalidConfig)
	}
	for m, r := range ranges {
		if !(r > 0) {
			return nil, fmt.Errorf("%w: range of molecule %d must be > 0, got %v", ErrInvalidConfig, m, r)
		}
	}

	a := &Aggregator{
		grid:    grid,
		ranges:  append([]float64(nil), ranges...),
		workers: 1,
		logger:  log.DiscardLogger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// NbMol returns the number of molecule types.
func (a *Aggregator) NbMol() int {
	return len(a.ranges)
}

// Range returns the falloff range of molecule m.
func (a *Aggregator) Range(m int) float64 {
	return a.ranges[m]
}

// Grid exposes the bucket partition built during the last update.
func (a *Aggregator) Grid() *Grid {
	return a.grid
}

// Centroids returns the bucket centroids computed during the last update.
// The slice is replaced, never modified, by the next update.
func (a *Aggregator) Centroids() []BucketCentroids {
	return a.centroids
}

// BeginUpdate runs the full signaling pass over cells: grid rebuild, centroid
// aggregation and sensing write-back.
func (a *Aggregator) BeginUpdate(cells []cell.Cell) {
	a.grid.Clear()
	for _, c := range cells {
		a.grid.Insert(c)
	}

	a.centroids = a.aggregate()

	a.sense(cells)
	a.logger.Debugf("signaling: %d cells in %d buckets", len(cells), a.grid.Len())
}

// aggregate builds a fresh centroid list from the current grid content.
func (a *Aggregator) aggregate() []BucketCentroids {
	nbMol := len(a.ranges)
	out := make([]BucketCentroids, 0, a.grid.Len())

	for key, members := range a.grid.Buckets() {
		mols := make([]MoleculeCentroid, nbMol)
		for _, c := range members {
			p := c.Position()
			for m := range mols {
				prod := c.MoleculeProduction(m)
				mols[m].Position = mols[m].Position.Add(p.Mul(prod))
				mols[m].Total += prod
			}
		}
		// one normalization per bucket and molecule
		for m := range mols {
			if mols[m].Total <= 0 {
				mols[m].Position = geometry.Vector3D{}
				continue
			}
			mols[m].Position, _ = mols[m].Position.Div(mols[m].Total)
		}
		out = append(out, BucketCentroids{Key: key, Molecules: mols})
	}
	return out
}

// sense writes the sensed concentration of every molecule on every cell.
// Cells are split in disjoint chunks, the errgroup only bounds the number of
// concurrent workers.
func (a *Aggregator) sense(cells []cell.Cell) {
	if a.workers <= 1 || len(cells) < 2 {
		a.senseRange(cells)
		return
	}

	var g errgroup.Group
	g.SetLimit(a.workers)
	chunk := (len(cells) + a.workers - 1) / a.workers
	for start := 0; start < len(cells); start += chunk {
		part := cells[start:min(start+chunk, len(cells))]
		g.Go(func() error {
			a.senseRange(part)
			return nil
		})
	}
	_ = g.Wait()
}

func (a *Aggregator) senseRange(cells []cell.Cell) {
	for _, c := range cells {
		p := c.Position()
		for m := range a.ranges {
			c.SetMoleculeSensing(m, a.SensedAt(p, m))
		}
	}
}

// SensedAt returns the concentration of molecule m at p using the centroids
// of the last update.
func (a *Aggregator) SensedAt(p geometry.Vector3D, m int) float64 {
	rng := a.ranges[m]
	sensed := 0.0
	for i := range a.centroids {
		mc := a.centroids[i].Molecules[m]
		if mc.Total == 0 {
			continue
		}
		sensed += Falloff(mc.Total, mc.Position.DistanceSquaredTo(p), rng)
	}
	return sensed
}

// Falloff is the bounded attenuation of a production total seen at squared
// distance sqDist: total / (sqDist/rng + 1). It equals total at distance 0 and
// decreases strictly with distance.
func Falloff(total, sqDist, rng float64) float64 {
	return total / (sqDist/rng + 1)
}
