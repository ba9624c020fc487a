// Package voxelize rasterizes a triangulated surface into a solid voxel
// occupancy grid. The engine marks every cell overlapped by a face
// (surface rasterization) and then classifies the remaining cells by
// parity ray casting along grid columns (interior fill). Both passes
// are order-independent, so repeated runs on the same mesh and pitch
// produce bit-identical grids.
package voxelize

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"

	"anatomesh/internal/models"
	"anatomesh/pkg/geometry"
)

// DefaultMaxCells bounds grid memory at one byte per cell; 1<<27 cells
// is a 512^3 grid.
const DefaultMaxCells = 1 << 27

// surfaceBias controls the inward nudge applied to faces before
// rasterization: each face retreats by this fraction of the pitch along
// its negated normal and shrinks by the same fraction toward its
// centroid. A face lying exactly on a cell wall then claims the
// interior cell instead of both, keeping the padding border empty for
// axis-aligned geometry.
const surfaceBias = 1e-7

var (
	// ErrInvalidPitch is returned for a zero, negative or non-finite
	// pitch.
	ErrInvalidPitch = errors.New("pitch must be a positive finite value")

	// ErrEmptyMesh is returned for a mesh without vertices or faces.
	ErrEmptyMesh = errors.New("mesh has no vertices or faces")

	// ErrGridTooLarge is returned before allocation when the requested
	// pitch would produce a grid above the configured cell ceiling.
	ErrGridTooLarge = errors.New("voxel grid exceeds cell limit")
)

// Options tunes the voxelization engine. The zero value uses defaults.
type Options struct {
	// MaxCells caps nx*ny*nz. Zero means DefaultMaxCells.
	MaxCells int

	// Workers is the number of goroutines for the rasterization and
	// fill passes. Zero means runtime.NumCPU().
	Workers int
}

func (o Options) maxCells() int {
	if o.MaxCells <= 0 {
		return DefaultMaxCells
	}
	return o.MaxCells
}

func (o Options) workers() int {
	if o.Workers <= 0 {
		return runtime.NumCPU()
	}
	return o.Workers
}

// Voxelize rasterizes the mesh into an occupancy grid with cubic cells
// of edge length pitch. The grid covers the mesh's axis-aligned
// bounding box expanded by one cell of padding on every side.
func Voxelize(m *models.Mesh, pitch float64, opts Options) (*models.VoxelGrid, error) {
	if pitch <= 0 || math.IsNaN(pitch) || math.IsInf(pitch, 0) {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidPitch, pitch)
	}
	if m.IsEmpty() {
		return nil, ErrEmptyMesh
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid mesh: %w", err)
	}

	min, max := m.Bounds()
	extent := max.Sub(min)
	nx := interiorCells(extent.X, pitch) + 2
	ny := interiorCells(extent.Y, pitch) + 2
	nz := interiorCells(extent.Z, pitch) + 2

	cells := nx * ny * nz
	if limit := opts.maxCells(); cells > limit {
		return nil, fmt.Errorf("%w: %dx%dx%d = %d cells, limit %d", ErrGridTooLarge, nx, ny, nz, cells, limit)
	}

	origin := min.Sub(geometry.Vector{X: pitch, Y: pitch, Z: pitch})
	grid := models.NewVoxelGrid(origin, pitch, nx, ny, nz)

	tris := biasedTriangles(m, pitch)
	rasterizeSurface(grid, tris, opts.workers())
	fillInterior(grid, opts.workers())

	return grid, nil
}

// interiorCells returns how many cells the extent spans, at least one.
// The small relative slack keeps an extent that is an exact multiple of
// the pitch from gaining a spurious extra layer to rounding.
func interiorCells(extent, pitch float64) int {
	n := int(math.Ceil(extent/pitch - 1e-9))
	if n < 1 {
		n = 1
	}
	return n
}

// biasedTriangles returns the mesh faces nudged inward: translated by
// -normal*surfaceBias*pitch and shrunk toward their centroids by the
// same fraction. Degenerate faces pass through with the shrink only.
func biasedTriangles(m *models.Mesh, pitch float64) []geometry.Triangle {
	tris := make([]geometry.Triangle, len(m.Faces))
	for i := range m.Faces {
		t := m.Triangle(i)
		c := t.Centroid()
		shift := t.UnitNormal().Scale(-surfaceBias * pitch)
		inward := func(v geometry.Vector) geometry.Vector {
			return c.Add(v.Sub(c).Scale(1 - surfaceBias)).Add(shift)
		}
		tris[i] = geometry.Triangle{A: inward(t.A), B: inward(t.B), C: inward(t.C)}
	}
	return tris
}

// cellBin is one broad-phase bucket: a candidate cell with the faces
// whose bounding boxes reach it.
type cellBin struct {
	x, y, z int
	faces   []int32
}

// cellKey hashes a cell index triple into the spatial hash key.
func cellKey(x, y, z int) uint64 {
	var b [12]byte
	binary.LittleEndian.PutUint32(b[0:4], uint32(int32(x)))
	binary.LittleEndian.PutUint32(b[4:8], uint32(int32(y)))
	binary.LittleEndian.PutUint32(b[8:12], uint32(int32(z)))
	return xxhash.Sum64(b[:])
}

// rasterizeSurface marks every cell whose box overlaps any face. A
// uniform spatial hash keyed by cell index narrows the exact
// separating-axis test to faces whose bounding boxes touch the cell,
// and lets a cell stop at its first hit.
func rasterizeSurface(grid *models.VoxelGrid, tris []geometry.Triangle, workers int) {
	bins := make(map[uint64][]*cellBin)
	binList := make([]*cellBin, 0)

	for fi, t := range tris {
		tmin, tmax := t.Bounds()
		x0, y0, z0 := grid.CellOf(tmin)
		x1, y1, z1 := grid.CellOf(tmax)
		x0, y0, z0 = clampCell(grid, x0, y0, z0)
		x1, y1, z1 = clampCell(grid, x1, y1, z1)
		for z := z0; z <= z1; z++ {
			for y := y0; y <= y1; y++ {
				for x := x0; x <= x1; x++ {
					key := cellKey(x, y, z)
					var bin *cellBin
					for _, b := range bins[key] {
						if b.x == x && b.y == y && b.z == z {
							bin = b
							break
						}
					}
					if bin == nil {
						bin = &cellBin{x: x, y: y, z: z}
						bins[key] = append(bins[key], bin)
						binList = append(binList, bin)
					}
					bin.faces = append(bin.faces, int32(fi))
				}
			}
		}
	}

	// Stable work order; each bin owns a distinct cell so workers write
	// disjoint indices.
	sort.Slice(binList, func(i, j int) bool {
		a, b := binList[i], binList[j]
		if a.z != b.z {
			return a.z < b.z
		}
		if a.y != b.y {
			return a.y < b.y
		}
		return a.x < b.x
	})

	half := geometry.Vector{X: grid.Pitch / 2, Y: grid.Pitch / 2, Z: grid.Pitch / 2}

	var wg sync.WaitGroup
	chunk := (len(binList) + workers - 1) / workers
	for w := 0; w < workers; w++ {
		start := w * chunk
		if start >= len(binList) {
			break
		}
		end := start + chunk
		if end > len(binList) {
			end = len(binList)
		}
		wg.Add(1)
		go func(bins []*cellBin) {
			defer wg.Done()
			for _, b := range bins {
				center := grid.CellCenter(b.x, b.y, b.z)
				for _, fi := range b.faces {
					if geometry.TriangleIntersectsBox(tris[fi], center, half) {
						grid.Set(b.x, b.y, b.z, true)
						break
					}
				}
			}
		}(binList[start:end])
	}
	wg.Wait()
}

func clampCell(g *models.VoxelGrid, x, y, z int) (int, int, int) {
	x = clamp(x, 0, g.NX-1)
	y = clamp(y, 0, g.NY-1)
	z = clamp(z, 0, g.NZ-1)
	return x, y, z
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// fillInterior classifies non-surface cells by parity ray casting: for
// every (y,z) column a ray along +x toggles inside/outside each time a
// surface-cell run ends. Cells after an odd number of crossings are
// committed once the next crossing arrives; a span still open at the
// column end is outside and stays empty. Columns are independent, so
// the pass parallelizes over z.
func fillInterior(grid *models.VoxelGrid, workers int) {
	surface := make([]bool, len(grid.Cells))
	copy(surface, grid.Cells)

	var wg sync.WaitGroup
	chunk := (grid.NZ + workers - 1) / workers
	for w := 0; w < workers; w++ {
		z0 := w * chunk
		if z0 >= grid.NZ {
			break
		}
		z1 := z0 + chunk
		if z1 > grid.NZ {
			z1 = grid.NZ
		}
		wg.Add(1)
		go func(z0, z1 int) {
			defer wg.Done()
			for z := z0; z < z1; z++ {
				for y := 0; y < grid.NY; y++ {
					fillColumn(grid, surface, y, z)
				}
			}
		}(z0, z1)
	}
	wg.Wait()
}

func fillColumn(grid *models.VoxelGrid, surface []bool, y, z int) {
	inside := false
	inRun := false
	spanStart := -1
	base := grid.Index(0, y, z)
	for x := 0; x < grid.NX; x++ {
		if surface[base+x] {
			if !inRun {
				inRun = true
				if inside && spanStart >= 0 {
					for i := spanStart; i < x; i++ {
						grid.Cells[base+i] = true
					}
				}
				spanStart = -1
			}
			continue
		}
		if inRun {
			inRun = false
			inside = !inside
			if inside {
				spanStart = x
			}
		}
	}
}
