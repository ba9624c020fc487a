package models

import (
	"testing"

	"anatomesh/pkg/geometry"
)

// TestMeshValidate verifies face index bounds checking.
func TestMeshValidate(t *testing.T) {
	m := &Mesh{
		Vertices: []geometry.Vector{{}, {X: 1}, {Y: 1}},
		Faces:    [][3]int{{0, 1, 2}},
	}
	if err := m.Validate(); err != nil {
		t.Errorf("Expected valid mesh, got %v", err)
	}

	m.Faces = append(m.Faces, [3]int{0, 1, 3})
	if err := m.Validate(); err == nil {
		t.Error("Expected out-of-range face index to be rejected")
	}
	m.Faces[1] = [3]int{0, -1, 2}
	if err := m.Validate(); err == nil {
		t.Error("Expected negative face index to be rejected")
	}
}

// TestMeshCloneIsDeep verifies that mutating a clone leaves the
// original untouched.
func TestMeshCloneIsDeep(t *testing.T) {
	m := &Mesh{
		Vertices: []geometry.Vector{{}, {X: 1}, {Y: 1}},
		Faces:    [][3]int{{0, 1, 2}},
	}
	c := m.Clone()
	c.Vertices[0].X = 99
	c.Faces[0][0] = 2

	if m.Vertices[0].X != 0 || m.Faces[0][0] != 0 {
		t.Error("Clone shares storage with the original")
	}
}

// TestVoxelGridIndexing verifies the x-fastest cell layout and
// out-of-range reads.
func TestVoxelGridIndexing(t *testing.T) {
	g := NewVoxelGrid(geometry.Vector{}, 1, 3, 4, 5)

	if len(g.Cells) != 60 {
		t.Fatalf("Expected 60 cells, got %d", len(g.Cells))
	}
	g.Set(2, 3, 4, true)
	if !g.Cells[4*12+3*3+2] {
		t.Error("Set wrote to the wrong flat index")
	}
	if !g.At(2, 3, 4) {
		t.Error("At did not read back the set cell")
	}
	if g.At(-1, 0, 0) || g.At(3, 0, 0) || g.At(0, 0, 5) {
		t.Error("Out-of-range cells must read as empty")
	}
}

// TestVoxelGridDegenerateDims verifies that dimensions are clamped to
// at least one cell.
func TestVoxelGridDegenerateDims(t *testing.T) {
	g := NewVoxelGrid(geometry.Vector{}, 1, 0, -2, 3)
	if g.NX != 1 || g.NY != 1 || g.NZ != 3 {
		t.Errorf("Expected clamped dims 1x1x3, got %dx%dx%d", g.NX, g.NY, g.NZ)
	}
}

// TestCellGeometry verifies the world-space mapping of cells.
func TestCellGeometry(t *testing.T) {
	g := NewVoxelGrid(geometry.Vector{X: 10, Y: 20, Z: 30}, 2, 4, 4, 4)

	c := g.CellCenter(0, 0, 0)
	if c != (geometry.Vector{X: 11, Y: 21, Z: 31}) {
		t.Errorf("CellCenter = %v", c)
	}
	x, y, z := g.CellOf(geometry.Vector{X: 13.9, Y: 20, Z: 35})
	if x != 1 || y != 0 || z != 2 {
		t.Errorf("CellOf = (%d,%d,%d), want (1,0,2)", x, y, z)
	}
}

// TestToVolume verifies the cell-centered 0/1 scalar field adapter.
func TestToVolume(t *testing.T) {
	g := NewVoxelGrid(geometry.Vector{}, 0.5, 2, 2, 2)
	g.Set(1, 0, 1, true)

	v := g.ToVolume()
	if v.Width != 2 || v.Height != 2 || v.Depth != 2 {
		t.Fatalf("Unexpected volume dims %dx%dx%d", v.Width, v.Height, v.Depth)
	}
	if v.Spacing != [3]float64{0.5, 0.5, 0.5} {
		t.Errorf("Unexpected spacing %v", v.Spacing)
	}
	// Samples sit at cell centers.
	if v.Origin != (geometry.Vector{X: 0.25, Y: 0.25, Z: 0.25}) {
		t.Errorf("Unexpected origin %v", v.Origin)
	}
	if v.At(1, 0, 1) != 1 || v.At(0, 0, 0) != 0 {
		t.Error("Occupancy did not map to the 0/1 field")
	}
}

// TestVolumeRange verifies min/max scanning including the empty case.
func TestVolumeRange(t *testing.T) {
	v := &Volume{Data: []float64{3, -1, 7, 2}, Width: 4, Height: 1, Depth: 1}
	lo, hi := v.Range()
	if lo != -1 || hi != 7 {
		t.Errorf("Range = %g..%g, want -1..7", lo, hi)
	}

	empty := &Volume{}
	if lo, hi := empty.Range(); lo != 0 || hi != 0 {
		t.Errorf("Empty range = %g..%g, want 0..0", lo, hi)
	}
}
