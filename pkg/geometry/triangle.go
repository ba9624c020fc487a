package geometry

// Triangle is a triangle in 3D space defined by its three corners.
type Triangle struct {
	A, B, C Vector
}

// Normal returns the (unnormalized) face normal of the triangle using
// counterclockwise winding. A degenerate triangle yields the zero
// vector.
func (t Triangle) Normal() Vector {
	return t.B.Sub(t.A).Cross(t.C.Sub(t.A))
}

// UnitNormal returns the unit face normal, or the zero vector for a
// degenerate triangle.
func (t Triangle) UnitNormal() Vector {
	return t.Normal().Normalize()
}

// Centroid returns the center of mass of the triangle.
func (t Triangle) Centroid() Vector {
	return t.A.Add(t.B).Add(t.C).Scale(1.0 / 3.0)
}

// Bounds returns the axis-aligned bounding box of the triangle.
func (t Triangle) Bounds() (min, max Vector) {
	min = t.A.Min(t.B).Min(t.C)
	max = t.A.Max(t.B).Max(t.C)
	return min, max
}
