package repair

import (
	"errors"
	"testing"

	"anatomesh/internal/models"
	"anatomesh/pkg/geometry"
)

// cubeMesh builds a closed unit cube of 12 triangles with outward
// winding.
func cubeMesh() *models.Mesh {
	return &models.Mesh{
		Vertices: []geometry.Vector{
			{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 1, Y: 1, Z: 0}, {X: 0, Y: 1, Z: 0},
			{X: 0, Y: 0, Z: 1}, {X: 1, Y: 0, Z: 1}, {X: 1, Y: 1, Z: 1}, {X: 0, Y: 1, Z: 1},
		},
		Faces: [][3]int{
			{0, 2, 1}, {0, 3, 2},
			{4, 5, 6}, {4, 6, 7},
			{0, 1, 5}, {0, 5, 4},
			{2, 3, 7}, {2, 7, 6},
			{0, 4, 7}, {0, 7, 3},
			{1, 2, 6}, {1, 6, 5},
		},
	}
}

// TestAnalyzeClosedMesh verifies that a watertight mesh reports no
// defects.
func TestAnalyzeClosedMesh(t *testing.T) {
	report := Analyze(cubeMesh())

	if !report.Watertight() {
		t.Errorf("Expected closed cube to be watertight: %+v", report)
	}
	if len(report.BoundaryLoops) != 0 {
		t.Errorf("Expected no boundary loops, got %d", len(report.BoundaryLoops))
	}
	if len(report.NonManifoldEdges) != 0 {
		t.Errorf("Expected no non-manifold edges, got %d", len(report.NonManifoldEdges))
	}
}

// TestRepairTriangularHole verifies that removing one triangle leaves a
// 3-vertex boundary loop that repair closes with exactly one face.
func TestRepairTriangularHole(t *testing.T) {
	m := cubeMesh()
	m.Faces = m.Faces[:len(m.Faces)-1]

	report := Analyze(m)
	if report.Watertight() {
		t.Fatal("Expected open mesh to report defects")
	}
	if len(report.BoundaryLoops) != 1 {
		t.Fatalf("Expected 1 boundary loop, got %d", len(report.BoundaryLoops))
	}
	if len(report.BoundaryLoops[0]) != 3 {
		t.Errorf("Expected loop of 3 vertices, got %d", len(report.BoundaryLoops[0]))
	}

	repaired, rep, err := Repair(m)
	if err != nil {
		t.Fatalf("Repair failed: %v", err)
	}
	// A loop of N vertices closes with exactly N-2 triangles.
	if rep.AddedFaces != 1 {
		t.Errorf("Expected 1 added face, got %d", rep.AddedFaces)
	}
	if len(repaired.Faces) != 12 {
		t.Errorf("Expected 12 faces after repair, got %d", len(repaired.Faces))
	}
	if !Analyze(repaired).Watertight() {
		t.Error("Expected repaired mesh to be watertight")
	}

	// The input mesh must not be modified.
	if len(m.Faces) != 11 {
		t.Errorf("Input mesh was modified: %d faces", len(m.Faces))
	}
}

// TestRepairQuadHole verifies hole closing on a 4-vertex loop left by
// removing both triangles of one cube face.
func TestRepairQuadHole(t *testing.T) {
	m := cubeMesh()
	// Drop the top face pair.
	m.Faces = append(m.Faces[:2:2], m.Faces[4:]...)

	repaired, rep, err := Repair(m)
	if err != nil {
		t.Fatalf("Repair failed: %v", err)
	}
	if rep.AddedFaces != 2 {
		t.Errorf("Expected 2 added faces for a quad loop, got %d", rep.AddedFaces)
	}
	if !Analyze(repaired).Watertight() {
		t.Error("Expected repaired mesh to be watertight")
	}
}

// TestRepairIdempotent verifies that repairing an already repaired mesh
// changes nothing.
func TestRepairIdempotent(t *testing.T) {
	m := cubeMesh()
	m.Faces = m.Faces[:len(m.Faces)-1]

	once, _, err := Repair(m)
	if err != nil {
		t.Fatalf("First repair failed: %v", err)
	}
	twice, rep, err := Repair(once)
	if err != nil {
		t.Fatalf("Second repair failed: %v", err)
	}
	if rep.AddedFaces != 0 {
		t.Errorf("Expected no added faces on second repair, got %d", rep.AddedFaces)
	}
	if len(twice.Faces) != len(once.Faces) {
		t.Errorf("Second repair changed face count: %d -> %d", len(once.Faces), len(twice.Faces))
	}
}

// TestRepairNonManifold verifies that an edge shared by three faces is
// flagged and surfaced as a Failure without being patched.
func TestRepairNonManifold(t *testing.T) {
	m := cubeMesh()
	// A fin triangle hanging off the 0-1 edge makes it used three times.
	m.Vertices = append(m.Vertices, geometry.Vector{X: 0.5, Y: -1, Z: 0.5})
	m.Faces = append(m.Faces, [3]int{0, 1, 8})

	_, report, err := Repair(m)
	if err == nil {
		t.Fatal("Expected non-manifold mesh to fail repair")
	}
	var failure *Failure
	if !errors.As(err, &failure) {
		t.Fatalf("Expected *Failure, got %T", err)
	}
	if !failure.NonManifold {
		t.Error("Expected failure to be flagged non-manifold")
	}
	if len(report.NonManifoldEdges) == 0 {
		t.Error("Expected non-manifold edges in the report")
	}
	found := false
	for _, e := range report.NonManifoldEdges {
		if e == NewEdge(0, 1) {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected edge (0,1) to be flagged, got %v", report.NonManifoldEdges)
	}
}

// TestRepairDeterministic verifies that repeated repair of the same
// mesh produces identical face lists.
func TestRepairDeterministic(t *testing.T) {
	build := func() *models.Mesh {
		m := cubeMesh()
		// Two holes at once.
		m.Faces = append(m.Faces[:2:2], m.Faces[4:len(m.Faces)-1]...)
		return m
	}

	first, _, err := Repair(build())
	if err != nil {
		t.Fatalf("Repair failed: %v", err)
	}
	for run := 0; run < 5; run++ {
		next, _, err := Repair(build())
		if err != nil {
			t.Fatalf("Repair run %d failed: %v", run, err)
		}
		if len(next.Faces) != len(first.Faces) {
			t.Fatalf("Run %d: face count %d != %d", run, len(next.Faces), len(first.Faces))
		}
		for i := range next.Faces {
			if next.Faces[i] != first.Faces[i] {
				t.Fatalf("Run %d: face %d differs: %v != %v", run, i, next.Faces[i], first.Faces[i])
			}
		}
	}
}
