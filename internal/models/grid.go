package models

import (
	"math"

	"anatomesh/pkg/geometry"
)

// VoxelGrid is a discretized occupancy grid: a dense boolean 3D array
// with cubic cells of edge length Pitch. Origin is the world coordinate
// of the minimum corner of cell (0,0,0). Cells are stored in x-fastest
// order, matching index z*NX*NY + y*NX + x.
//
// The grid is produced by the voxelization engine and treated as
// read-only afterwards; Pitch never changes after construction.
type VoxelGrid struct {
	Origin     geometry.Vector
	Pitch      float64
	NX, NY, NZ int
	Cells      []bool
}

// NewVoxelGrid allocates an empty grid. Dimensions below 1 are clamped
// to 1 so the grid invariant holds even for degenerate extents.
func NewVoxelGrid(origin geometry.Vector, pitch float64, nx, ny, nz int) *VoxelGrid {
	if nx < 1 {
		nx = 1
	}
	if ny < 1 {
		ny = 1
	}
	if nz < 1 {
		nz = 1
	}
	return &VoxelGrid{
		Origin: origin,
		Pitch:  pitch,
		NX:     nx,
		NY:     ny,
		NZ:     nz,
		Cells:  make([]bool, nx*ny*nz),
	}
}

// Index returns the flat index of cell (x,y,z).
func (g *VoxelGrid) Index(x, y, z int) int {
	return z*g.NX*g.NY + y*g.NX + x
}

// At reports whether cell (x,y,z) is occupied. Out-of-range cells are
// empty.
func (g *VoxelGrid) At(x, y, z int) bool {
	if x < 0 || y < 0 || z < 0 || x >= g.NX || y >= g.NY || z >= g.NZ {
		return false
	}
	return g.Cells[g.Index(x, y, z)]
}

// Set marks cell (x,y,z) occupied or empty.
func (g *VoxelGrid) Set(x, y, z int, occupied bool) {
	g.Cells[g.Index(x, y, z)] = occupied
}

// CellCenter returns the world coordinate of the center of cell (x,y,z).
func (g *VoxelGrid) CellCenter(x, y, z int) geometry.Vector {
	return geometry.Vector{
		X: g.Origin.X + (float64(x)+0.5)*g.Pitch,
		Y: g.Origin.Y + (float64(y)+0.5)*g.Pitch,
		Z: g.Origin.Z + (float64(z)+0.5)*g.Pitch,
	}
}

// CellOf returns the index of the cell containing the world point p.
// The result may lie outside the grid; callers clamp as needed.
func (g *VoxelGrid) CellOf(p geometry.Vector) (x, y, z int) {
	x = int(math.Floor((p.X - g.Origin.X) / g.Pitch))
	y = int(math.Floor((p.Y - g.Origin.Y) / g.Pitch))
	z = int(math.Floor((p.Z - g.Origin.Z) / g.Pitch))
	return x, y, z
}

// Count returns the number of occupied cells.
func (g *VoxelGrid) Count() int {
	n := 0
	for _, c := range g.Cells {
		if c {
			n++
		}
	}
	return n
}

// OccupiedVolume returns the world-space volume covered by occupied
// cells.
func (g *VoxelGrid) OccupiedVolume() float64 {
	return float64(g.Count()) * g.Pitch * g.Pitch * g.Pitch
}

// ToVolume reinterprets the occupancy grid as a 0/1 scalar field with
// the grid's pitch as isotropic spacing, sampled at cell centers. This
// is the adapter that lets an occupancy grid feed back into iso-surface
// extraction: the 0.5 surface then falls on the original cell walls.
func (g *VoxelGrid) ToVolume() *Volume {
	half := g.Pitch / 2
	v := &Volume{
		Data:    make([]float64, len(g.Cells)),
		Width:   g.NX,
		Height:  g.NY,
		Depth:   g.NZ,
		Spacing: [3]float64{g.Pitch, g.Pitch, g.Pitch},
		Origin:  geometry.Vector{X: g.Origin.X + half, Y: g.Origin.Y + half, Z: g.Origin.Z + half},
	}
	for i, c := range g.Cells {
		if c {
			v.Data[i] = 1
		}
	}
	return v
}
