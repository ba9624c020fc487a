package geometry

import "math"

// rayEpsilon guards the ray/triangle test against near-parallel and
// degenerate configurations.
const rayEpsilon = 1e-12

// TriangleIntersectsBox reports whether the triangle overlaps the
// axis-aligned box given by its center and half extents. The test is
// the exact separating-axis test: 9 edge-cross-axis tests, 3 box face
// normal tests and the triangle plane test. Boundary-touching
// configurations count as intersecting, so a face lying exactly on a
// cell wall still occupies the cell.
func TriangleIntersectsBox(t Triangle, center, halfExtents Vector) bool {
	// Move the box to the origin.
	v0 := t.A.Sub(center)
	v1 := t.B.Sub(center)
	v2 := t.C.Sub(center)

	f0 := v1.Sub(v0)
	f1 := v2.Sub(v1)
	f2 := v0.Sub(v2)

	h := halfExtents

	// 9 cross-product axes e_i x f_j. Each axis has one zero component,
	// so the projections are written out directly.
	axes := [9]Vector{
		{0, -f0.Z, f0.Y}, {0, -f1.Z, f1.Y}, {0, -f2.Z, f2.Y}, // e0 x f_j
		{f0.Z, 0, -f0.X}, {f1.Z, 0, -f1.X}, {f2.Z, 0, -f2.X}, // e1 x f_j
		{-f0.Y, f0.X, 0}, {-f1.Y, f1.X, 0}, {-f2.Y, f2.X, 0}, // e2 x f_j
	}
	for _, a := range axes {
		p0 := a.Dot(v0)
		p1 := a.Dot(v1)
		p2 := a.Dot(v2)
		r := h.X*math.Abs(a.X) + h.Y*math.Abs(a.Y) + h.Z*math.Abs(a.Z)
		if math.Min(p0, math.Min(p1, p2)) > r || math.Max(p0, math.Max(p1, p2)) < -r {
			return false
		}
	}

	// 3 box face normals, i.e. AABB overlap of the triangle.
	if math.Max(v0.X, math.Max(v1.X, v2.X)) < -h.X || math.Min(v0.X, math.Min(v1.X, v2.X)) > h.X {
		return false
	}
	if math.Max(v0.Y, math.Max(v1.Y, v2.Y)) < -h.Y || math.Min(v0.Y, math.Min(v1.Y, v2.Y)) > h.Y {
		return false
	}
	if math.Max(v0.Z, math.Max(v1.Z, v2.Z)) < -h.Z || math.Min(v0.Z, math.Min(v1.Z, v2.Z)) > h.Z {
		return false
	}

	// Triangle plane test.
	n := f0.Cross(f1)
	d := n.Dot(v0)
	r := h.X*math.Abs(n.X) + h.Y*math.Abs(n.Y) + h.Z*math.Abs(n.Z)
	return math.Abs(d) <= r
}

// RayIntersectsTriangle computes the intersection of a ray with a
// triangle using the Moller-Trumbore test. It returns the distance
// along the (not necessarily unit) direction and true when the ray hits
// the triangle at t >= 0. Degenerate triangles and near-parallel rays
// report no intersection rather than failing.
func RayIntersectsTriangle(origin, direction Vector, t Triangle) (float64, bool) {
	e1 := t.B.Sub(t.A)
	e2 := t.C.Sub(t.A)

	p := direction.Cross(e2)
	det := e1.Dot(p)
	if math.Abs(det) < rayEpsilon {
		return 0, false
	}
	invDet := 1 / det

	s := origin.Sub(t.A)
	u := s.Dot(p) * invDet
	if u < 0 || u > 1 {
		return 0, false
	}

	q := s.Cross(e1)
	v := direction.Dot(q) * invDet
	if v < 0 || u+v > 1 {
		return 0, false
	}

	dist := e2.Dot(q) * invDet
	if dist < 0 {
		return 0, false
	}
	return dist, true
}
