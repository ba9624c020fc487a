// Package isosurface extracts a triangulated surface from a 3D scalar
// field with the marching cubes algorithm. Each 2x2x2 cell of grid
// samples is classified against the iso-value and triangulated from the
// case tables; vertices are placed on cell edges by linear
// interpolation and welded across cell boundaries afterwards.
//
// Triangle winding is consistent: face normals point from higher scalar
// values toward lower ones, so for a field that is bright inside an
// anatomical structure the normals face outward.
package isosurface

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"

	"anatomesh/internal/models"
	"anatomesh/pkg/geometry"
)

// DefaultWeldTolerance is the vertex welding radius as a fraction of
// the smallest voxel spacing. Duplicate vertices on shared cell edges
// differ only by floating-point noise, so the radius can stay far below
// any real feature size.
const DefaultWeldTolerance = 1e-4

// ErrInvalidIsoValue is returned for a NaN or infinite iso-value.
var ErrInvalidIsoValue = errors.New("iso-value must be finite")

// Options tunes the extraction. The zero value uses defaults.
type Options struct {
	// WeldTolerance is the welding radius as a fraction of the smallest
	// voxel spacing. Zero means DefaultWeldTolerance.
	WeldTolerance float64

	// Workers is the number of goroutines marching cell layers. Zero
	// means runtime.NumCPU().
	Workers int
}

func (o Options) weldTolerance() float64 {
	if o.WeldTolerance <= 0 {
		return DefaultWeldTolerance
	}
	return o.WeldTolerance
}

func (o Options) workers() int {
	if o.Workers <= 0 {
		return runtime.NumCPU()
	}
	return o.Workers
}

// Extract runs marching cubes over the volume at the given iso-value
// and returns an indexed triangle mesh in world coordinates. An
// iso-value outside the volume's scalar range, or a volume too small to
// contain a cell, yields a valid empty mesh rather than an error.
func Extract(vol *models.Volume, iso float64, opts Options) (*models.Mesh, error) {
	if math.IsNaN(iso) || math.IsInf(iso, 0) {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidIsoValue, iso)
	}
	if vol.Width < 2 || vol.Height < 2 || vol.Depth < 2 {
		return &models.Mesh{}, nil
	}
	if lo, hi := vol.Range(); iso < lo || iso > hi {
		return &models.Mesh{}, nil
	}

	// March cell layers in parallel. Each layer collects its triangles
	// locally; concatenating layers in z order keeps the output
	// deterministic regardless of scheduling.
	layers := make([][]rawTriangle, vol.Depth-1)
	var wg sync.WaitGroup
	workers := opts.workers()
	chunk := (len(layers) + workers - 1) / workers
	for w := 0; w < workers; w++ {
		z0 := w * chunk
		if z0 >= len(layers) {
			break
		}
		z1 := z0 + chunk
		if z1 > len(layers) {
			z1 = len(layers)
		}
		wg.Add(1)
		go func(z0, z1 int) {
			defer wg.Done()
			for z := z0; z < z1; z++ {
				layers[z] = marchLayer(vol, iso, z)
			}
		}(z0, z1)
	}
	wg.Wait()

	minSpacing := math.Min(vol.Spacing[0], math.Min(vol.Spacing[1], vol.Spacing[2]))
	return weld(layers, opts.weldTolerance()*minSpacing), nil
}

type rawTriangle [3]geometry.Vector

// cornerOffsets maps cube corner number to grid point offset, matching
// the edge numbering of the case tables.
var cornerOffsets = [8][3]int{
	{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0},
	{0, 0, 1}, {1, 0, 1}, {1, 1, 1}, {0, 1, 1},
}

// edgeCorners maps edge number to its two cube corners.
var edgeCorners = [12][2]int{
	{0, 1}, {1, 2}, {2, 3}, {3, 0},
	{4, 5}, {5, 6}, {6, 7}, {7, 4},
	{0, 4}, {1, 5}, {2, 6}, {3, 7},
}

// marchLayer triangulates every cell between grid layers z and z+1.
func marchLayer(vol *models.Volume, iso float64, z int) []rawTriangle {
	var out []rawTriangle
	var val [8]float64
	var pos [8]geometry.Vector
	var verts [12]geometry.Vector

	for y := 0; y < vol.Height-1; y++ {
		for x := 0; x < vol.Width-1; x++ {
			index := 0
			for c, off := range cornerOffsets {
				gx, gy, gz := x+off[0], y+off[1], z+off[2]
				val[c] = vol.At(gx, gy, gz)
				pos[c] = geometry.Vector{
					X: vol.Origin.X + float64(gx)*vol.Spacing[0],
					Y: vol.Origin.Y + float64(gy)*vol.Spacing[1],
					Z: vol.Origin.Z + float64(gz)*vol.Spacing[2],
				}
				if val[c] < iso {
					index |= 1 << c
				}
			}

			edges := edgeTable[index]
			if edges == 0 {
				continue
			}
			for e := 0; e < 12; e++ {
				if edges&(1<<e) == 0 {
					continue
				}
				a, b := edgeCorners[e][0], edgeCorners[e][1]
				verts[e] = interpolate(pos[a], pos[b], val[a], val[b], iso)
			}

			tri := triTable[index]
			for i := 0; tri[i] != -1; i += 3 {
				out = append(out, rawTriangle{
					verts[tri[i]], verts[tri[i+1]], verts[tri[i+2]],
				})
			}
		}
	}
	return out
}

// interpolate places a vertex on the edge between p1 and p2 where the
// field crosses the iso-value. When both samples equal the iso-value
// the midpoint is used.
func interpolate(p1, p2 geometry.Vector, v1, v2, iso float64) geometry.Vector {
	d := v2 - v1
	if d == 0 {
		return p1.Add(p2).Scale(0.5)
	}
	t := (iso - v1) / d
	return p1.Add(p2.Sub(p1).Scale(t))
}

// weld deduplicates triangle corners into a shared vertex list by
// snapping coordinates to a lattice of the given cell size. Shared-edge
// duplicates from adjacent cells land on the same lattice point, so the
// result is an indexed mesh with topologically connected faces.
func weld(layers [][]rawTriangle, cell float64) *models.Mesh {
	mesh := &models.Mesh{}
	seen := make(map[[3]int64]int)

	lookup := func(v geometry.Vector) int {
		key := [3]int64{
			int64(math.Round(v.X / cell)),
			int64(math.Round(v.Y / cell)),
			int64(math.Round(v.Z / cell)),
		}
		if i, ok := seen[key]; ok {
			return i
		}
		i := len(mesh.Vertices)
		mesh.Vertices = append(mesh.Vertices, v)
		seen[key] = i
		return i
	}

	for _, layer := range layers {
		for _, t := range layer {
			a := lookup(t[0])
			b := lookup(t[1])
			c := lookup(t[2])
			// Welding can collapse a sliver triangle whose corners all
			// snap together; drop it.
			if a == b || b == c || a == c {
				continue
			}
			mesh.Faces = append(mesh.Faces, [3]int{a, b, c})
		}
	}
	return mesh
}
