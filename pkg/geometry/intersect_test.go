package geometry

import (
	"math"
	"testing"
)

// TestTriangleIntersectsBox verifies the separating axis test with
// triangles clearly inside, clearly outside and touching the box.
func TestTriangleIntersectsBox(t *testing.T) {
	center := Vector{}
	half := Vector{X: 1, Y: 1, Z: 1}

	cases := []struct {
		name string
		tri  Triangle
		want bool
	}{
		{
			name: "triangle inside box",
			tri: Triangle{
				A: Vector{X: -0.5, Y: -0.5},
				B: Vector{X: 0.5, Y: -0.5},
				C: Vector{Y: 0.5},
			},
			want: true,
		},
		{
			name: "triangle far outside box",
			tri: Triangle{
				A: Vector{X: 5, Y: 5, Z: 5},
				B: Vector{X: 6, Y: 5, Z: 5},
				C: Vector{X: 5, Y: 6, Z: 5},
			},
			want: false,
		},
		{
			name: "triangle plane misses corner",
			tri: Triangle{
				A: Vector{X: 4},
				B: Vector{Y: 4},
				C: Vector{Z: 4},
			},
			want: false,
		},
		{
			name: "triangle cuts through box",
			tri: Triangle{
				A: Vector{X: -5, Y: 0.2, Z: 0.2},
				B: Vector{X: 5, Y: 0.2, Z: 0.2},
				C: Vector{X: 0, Y: 0.3, Z: -0.2},
			},
			want: true,
		},
		{
			name: "triangle touching box face",
			tri: Triangle{
				A: Vector{X: 1, Y: -0.5, Z: -0.5},
				B: Vector{X: 1, Y: 0.5, Z: -0.5},
				C: Vector{X: 1, Y: 0, Z: 0.5},
			},
			want: true,
		},
		{
			name: "large triangle enclosing box",
			tri: Triangle{
				A: Vector{X: -10, Y: -10},
				B: Vector{X: 10, Y: -10},
				C: Vector{Y: 10},
			},
			want: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := TriangleIntersectsBox(tc.tri, center, half); got != tc.want {
				t.Errorf("TriangleIntersectsBox = %v, want %v", got, tc.want)
			}
		})
	}
}

// TestRayIntersectsTriangle verifies hits, misses and the behavior for
// rays pointing away from the triangle.
func TestRayIntersectsTriangle(t *testing.T) {
	tri := Triangle{
		A: Vector{X: -1, Y: -1, Z: 2},
		B: Vector{X: 1, Y: -1, Z: 2},
		C: Vector{Y: 1, Z: 2},
	}

	// Ray straight up through the triangle interior.
	dist, hit := RayIntersectsTriangle(Vector{}, Vector{Z: 1}, tri)
	if !hit {
		t.Fatal("Expected ray to hit the triangle")
	}
	if math.Abs(dist-2) > 1e-12 {
		t.Errorf("Expected hit distance 2, got %g", dist)
	}

	// Ray pointing away from the triangle must miss.
	if _, hit := RayIntersectsTriangle(Vector{}, Vector{Z: -1}, tri); hit {
		t.Error("Expected ray pointing away to miss")
	}

	// Ray offset beyond the triangle's extent must miss.
	if _, hit := RayIntersectsTriangle(Vector{X: 5}, Vector{Z: 1}, tri); hit {
		t.Error("Expected offset ray to miss")
	}

	// Ray parallel to the triangle plane must miss.
	if _, hit := RayIntersectsTriangle(Vector{}, Vector{X: 1}, tri); hit {
		t.Error("Expected parallel ray to miss")
	}

	// A degenerate triangle never intersects.
	degenerate := Triangle{
		A: Vector{Z: 2},
		B: Vector{X: 1, Z: 2},
		C: Vector{X: 2, Z: 2},
	}
	if _, hit := RayIntersectsTriangle(Vector{}, Vector{Z: 1}, degenerate); hit {
		t.Error("Expected degenerate triangle to be skipped")
	}
}

// TestVectorOperations verifies the basic vector algebra used
// throughout the geometry kernel.
func TestVectorOperations(t *testing.T) {
	a := Vector{X: 1, Y: 2, Z: 3}
	b := Vector{X: 4, Y: 5, Z: 6}

	if got := a.Add(b); got != (Vector{X: 5, Y: 7, Z: 9}) {
		t.Errorf("Add = %v", got)
	}
	if got := b.Sub(a); got != (Vector{X: 3, Y: 3, Z: 3}) {
		t.Errorf("Sub = %v", got)
	}
	if got := a.Dot(b); got != 32 {
		t.Errorf("Dot = %g, want 32", got)
	}
	if got := a.Cross(b); got != (Vector{X: -3, Y: 6, Z: -3}) {
		t.Errorf("Cross = %v", got)
	}
	if got := (Vector{X: 3, Y: 4}).Length(); got != 5 {
		t.Errorf("Length = %g, want 5", got)
	}
	n := (Vector{X: 0, Y: 0, Z: 7}).Normalize()
	if n != (Vector{Z: 1}) {
		t.Errorf("Normalize = %v", n)
	}
	if got := (Vector{}).Normalize(); got != (Vector{}) {
		t.Errorf("Normalize of zero vector = %v, want zero", got)
	}
}

// TestTriangleNormal verifies that the normal follows the right-hand
// rule over the vertex winding.
func TestTriangleNormal(t *testing.T) {
	tri := Triangle{
		A: Vector{},
		B: Vector{X: 1},
		C: Vector{Y: 1},
	}
	n := tri.UnitNormal()
	if math.Abs(n.Z-1) > 1e-12 || math.Abs(n.X) > 1e-12 || math.Abs(n.Y) > 1e-12 {
		t.Errorf("Expected +z normal, got %v", n)
	}
}
