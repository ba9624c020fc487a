// Package repair detects and closes boundary defects in triangulated
// surfaces before voxelization. Voxelizing a shell with open boundary
// loops lets the interior fill leak, so every closable hole is
// triangulated shut first. Non-manifold edges are only ever flagged,
// never resolved automatically.
package repair

import (
	"fmt"
	"sort"

	"anatomesh/internal/models"
	"anatomesh/pkg/geometry"
)

// Edge is an unordered pair of vertex indices with V0 < V1. Edges are
// derived transiently from faces and never stored on the mesh.
type Edge struct {
	V0, V1 int
}

// NewEdge returns the normalized edge for the vertex pair (a, b).
func NewEdge(a, b int) Edge {
	if a > b {
		a, b = b, a
	}
	return Edge{V0: a, V1: b}
}

// Report summarizes what the repair stage found and did.
type Report struct {
	// BoundaryLoops holds the closed boundary loops that were found, as
	// vertex index cycles in boundary-walk order.
	BoundaryLoops [][]int

	// NonManifoldEdges lists edges shared by more than two faces. These
	// are never auto-resolved.
	NonManifoldEdges []Edge

	// OpenChains holds boundary edge runs that do not close into a loop
	// and therefore cannot be triangulated.
	OpenChains [][]int

	// AddedFaces is the number of triangles appended to close loops.
	AddedFaces int
}

// Watertight reports whether the analysis found no defects at all.
func (r *Report) Watertight() bool {
	return len(r.BoundaryLoops) == 0 && len(r.NonManifoldEdges) == 0 && len(r.OpenChains) == 0
}

// Failure is returned when the mesh has defects that repair cannot
// close: non-manifold edges or boundary edges that do not form closed
// loops. The partially repaired mesh is still returned alongside it so
// the caller can choose best-effort voxelization.
type Failure struct {
	// Edges lists the offending edges.
	Edges []Edge

	// NonManifold is true when the defect is an edge with more than two
	// adjacent faces rather than an unclosable boundary.
	NonManifold bool
}

func (f *Failure) Error() string {
	kind := "unclosable boundary"
	if f.NonManifold {
		kind = "non-manifold edges"
	}
	return fmt.Sprintf("mesh repair failed: %s (%d offending edges)", kind, len(f.Edges))
}

// edgeUse tracks how many faces use an edge and the directed form of
// its single use while it looks like a boundary edge.
type edgeUse struct {
	count    int
	from, to int
}

// Analyze builds the edge-to-face-count map for the mesh and classifies
// every edge: manifold (2 adjacent faces), boundary (1) or non-manifold
// (>2). Boundary edges are grouped into loops by walking shared
// vertices.
func Analyze(m *models.Mesh) *Report {
	uses := countEdges(m)

	report := &Report{}

	var boundary []Edge
	for e, u := range uses {
		switch {
		case u.count > 2:
			report.NonManifoldEdges = append(report.NonManifoldEdges, e)
		case u.count == 1:
			boundary = append(boundary, e)
		}
	}
	sort.Slice(report.NonManifoldEdges, func(i, j int) bool {
		a, b := report.NonManifoldEdges[i], report.NonManifoldEdges[j]
		if a.V0 != b.V0 {
			return a.V0 < b.V0
		}
		return a.V1 < b.V1
	})
	sort.Slice(boundary, func(i, j int) bool {
		a, b := boundary[i], boundary[j]
		if a.V0 != b.V0 {
			return a.V0 < b.V0
		}
		return a.V1 < b.V1
	})

	// Directed boundary edges, keyed by their start vertex. A start
	// vertex with more than one outgoing boundary edge means two holes
	// meet there; the walk treats such edges as unclosable.
	next := make(map[int]int)
	conflicted := make(map[int]bool)
	for _, e := range boundary {
		u := uses[e]
		if _, dup := next[u.from]; dup {
			conflicted[u.from] = true
		}
		next[u.from] = u.to
	}

	// Walk loops. Deterministic start order keeps repeated runs
	// bit-identical downstream.
	visited := make(map[int]bool)
	for _, e := range boundary {
		u := uses[e]
		start := u.from
		if visited[start] {
			continue
		}
		loop := []int{start}
		visited[start] = true
		cur := u.to
		closed := false
		for {
			if cur == start {
				closed = true
				break
			}
			if visited[cur] || conflicted[cur] {
				break
			}
			loop = append(loop, cur)
			visited[cur] = true
			n, ok := next[cur]
			if !ok {
				break
			}
			cur = n
		}
		if closed && len(loop) >= 3 {
			report.BoundaryLoops = append(report.BoundaryLoops, loop)
		} else {
			report.OpenChains = append(report.OpenChains, loop)
		}
	}

	return report
}

// Repair closes every closable boundary loop of the mesh with a
// triangle fan and returns the repaired copy. The input mesh is never
// mutated. A watertight mesh passes through with zero added faces, so
// running Repair twice is idempotent.
//
// When defects remain that cannot be closed, the partially repaired
// mesh and its report are returned together with a *Failure; the caller
// decides whether best-effort output is acceptable.
func Repair(m *models.Mesh) (*models.Mesh, *Report, error) {
	report := Analyze(m)

	repaired := m.Clone()
	for _, loop := range report.BoundaryLoops {
		report.AddedFaces += closeLoop(repaired, loop)
	}

	if len(report.NonManifoldEdges) > 0 {
		return repaired, report, &Failure{Edges: report.NonManifoldEdges, NonManifold: true}
	}
	if len(report.OpenChains) > 0 {
		var edges []Edge
		for _, chain := range report.OpenChains {
			for i := 0; i+1 < len(chain); i++ {
				edges = append(edges, NewEdge(chain[i], chain[i+1]))
			}
		}
		return repaired, report, &Failure{Edges: edges}
	}
	return repaired, report, nil
}

// countEdges builds the edge-to-face-count map over all faces, keeping
// the directed form of single-use edges for loop walking.
func countEdges(m *models.Mesh) map[Edge]edgeUse {
	uses := make(map[Edge]edgeUse, 3*len(m.Faces))
	for _, f := range m.Faces {
		for j := 0; j < 3; j++ {
			a, b := f[j], f[(j+1)%3]
			e := NewEdge(a, b)
			u := uses[e]
			u.count++
			u.from, u.to = a, b
			uses[e] = u
		}
	}
	return uses
}

// closeLoop triangulates a closed N-vertex boundary loop with a fan
// anchored at the loop vertex nearest the loop centroid, appending
// exactly N-2 triangles. The fan winding reverses the boundary walk
// direction so the patch orients consistently with the surrounding
// surface.
func closeLoop(m *models.Mesh, loop []int) int {
	n := len(loop)
	if n < 3 {
		return 0
	}

	centroid := geometry.Vector{}
	for _, v := range loop {
		centroid = centroid.Add(m.Vertices[v])
	}
	centroid = centroid.Scale(1 / float64(n))

	anchor := 0
	best := m.Vertices[loop[0]].Sub(centroid).Length()
	for i := 1; i < n; i++ {
		if d := m.Vertices[loop[i]].Sub(centroid).Length(); d < best {
			best = d
			anchor = i
		}
	}

	// Rotate so the anchor leads, preserving walk order.
	rotated := make([]int, 0, n)
	rotated = append(rotated, loop[anchor:]...)
	rotated = append(rotated, loop[:anchor]...)

	for i := 1; i+1 < n; i++ {
		m.Faces = append(m.Faces, [3]int{rotated[0], rotated[i+1], rotated[i]})
	}
	return n - 2
}
