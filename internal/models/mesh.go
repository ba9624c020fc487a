// Package models defines the value-like artifacts exchanged between the
// conversion pipeline stages: meshes, slices, volumes and voxel grids.
// Artifacts share no mutable state; every stage consumes its input by
// reference and produces a new owned artifact.
package models

import (
	"fmt"

	"anatomesh/pkg/geometry"
)

// Mesh is a triangulated boundary surface: an ordered vertex list and
// an ordered list of triangular faces indexing into it. Duplicate
// vertices are permitted and never deduplicated implicitly.
type Mesh struct {
	Vertices []geometry.Vector
	Faces    [][3]int
}

// IsEmpty reports whether the mesh has no vertices or no faces.
func (m *Mesh) IsEmpty() bool {
	return len(m.Vertices) == 0 || len(m.Faces) == 0
}

// Validate checks that every face references exactly three valid vertex
// indices.
func (m *Mesh) Validate() error {
	for i, f := range m.Faces {
		for _, v := range f {
			if v < 0 || v >= len(m.Vertices) {
				return fmt.Errorf("face %d references vertex %d, mesh has %d vertices", i, v, len(m.Vertices))
			}
		}
	}
	return nil
}

// Triangle returns the triangle for face i.
func (m *Mesh) Triangle(i int) geometry.Triangle {
	f := m.Faces[i]
	return geometry.Triangle{
		A: m.Vertices[f[0]],
		B: m.Vertices[f[1]],
		C: m.Vertices[f[2]],
	}
}

// Bounds returns the axis-aligned bounding box over all vertices. For a
// mesh without vertices both corners are the zero vector.
func (m *Mesh) Bounds() (min, max geometry.Vector) {
	if len(m.Vertices) == 0 {
		return geometry.Vector{}, geometry.Vector{}
	}
	min = m.Vertices[0]
	max = m.Vertices[0]
	for _, v := range m.Vertices[1:] {
		min = min.Min(v)
		max = max.Max(v)
	}
	return min, max
}

// Clone returns a deep copy of the mesh. Repair works on a clone so the
// caller's mesh is never mutated.
func (m *Mesh) Clone() *Mesh {
	c := &Mesh{
		Vertices: make([]geometry.Vector, len(m.Vertices)),
		Faces:    make([][3]int, len(m.Faces)),
	}
	copy(c.Vertices, m.Vertices)
	copy(c.Faces, m.Faces)
	return c
}
