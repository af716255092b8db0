package signaling

import (
	"fmt"
	"iter"
	"math"

	"github.com/lao-tseu-is-alive/go-petri-sim/pkg/cell"
	"github.com/lao-tseu-is-alive/go-petri-sim/pkg/geometry"
)

// BucketKey identifies a grid bucket: floor(position / cellSize) on each axis.
type BucketKey struct {
	X, Y, Z int
}

// Grid is a sparse spatial hash of cell centers.
// Only occupied buckets are stored. Buckets are iterated in the order they were
// first filled since the last Clear, which keeps the float summations of the
// aggregator deterministic for a given cell order.
type Grid struct {
	cellSize float64
	index    map[BucketKey]int
	keys     []BucketKey
	buckets  [][]cell.Cell
}

// NewGrid creates an empty grid whose buckets are cubes of side cellSize.
func NewGrid(cellSize float64) (*Grid, error) {
	if !(cellSize > 0) {
		return nil, fmt.Errorf("%w: grid cell size must be > 0, got %v", ErrInvalidConfig, cellSize)
	}
	return &Grid{
		cellSize: cellSize,
		index:    make(map[BucketKey]int),
	}, nil
}

// KeyOf returns the key of the bucket containing p.
func (g *Grid) KeyOf(p geometry.Vector3D) BucketKey {
	return BucketKey{
		X: int(math.Floor(p.X / g.cellSize)),
		Y: int(math.Floor(p.Y / g.cellSize)),
		Z: int(math.Floor(p.Z / g.cellSize)),
	}
}

// Clear empties every bucket.
// Bucket slices are truncated rather than dropped so their capacity is reused
// on the next fill, like the world grid rebuild does every tick.
func (g *Grid) Clear() {
	for i := range g.buckets {
		clear(g.buckets[i])
		g.buckets[i] = g.buckets[i][:0]
	}
	g.buckets = g.buckets[:0]
	g.keys = g.keys[:0]
	clear(g.index)
}

// Insert places c in the bucket containing its center.
func (g *Grid) Insert(c cell.Cell) {
	key := g.KeyOf(c.Position())
	if i, ok := g.index[key]; ok {
		g.buckets[i] = append(g.buckets[i], c)
		return
	}
	g.index[key] = len(g.keys)
	g.keys = append(g.keys, key)
	if len(g.buckets) < cap(g.buckets) {
		// reuse a previously allocated bucket slice
		g.buckets = g.buckets[:len(g.buckets)+1]
		g.buckets[len(g.buckets)-1] = append(g.buckets[len(g.buckets)-1], c)
		return
	}
	g.buckets = append(g.buckets, []cell.Cell{c})
}

// Len returns the number of non-empty buckets.
func (g *Grid) Len() int {
	return len(g.keys)
}

// Bucket returns the cells stored under key, or nil.
// The returned slice is only valid until the next Clear.
func (g *Grid) Bucket(key BucketKey) []cell.Cell {
	if i, ok := g.index[key]; ok {
		return g.buckets[i]
	}
	return nil
}

// Buckets yields every non-empty bucket with its cells.
func (g *Grid) Buckets() iter.Seq2[BucketKey, []cell.Cell] {
	return func(yield func(BucketKey, []cell.Cell) bool) {
		for i, key := range g.keys {
			if !yield(key, g.buckets[i]) {
				return
			}
		}
	}
}
