package meshio

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"anatomesh/internal/models"
	"anatomesh/pkg/geometry"
)

// ReadOBJ reads a Wavefront OBJ stream into a mesh. Only vertex and
// face statements are interpreted; texture coordinates, normals, groups
// and materials are skipped. Faces with more than three vertices are
// fan-triangulated.
func ReadOBJ(r io.Reader) (*models.Mesh, error) {
	mesh := &models.Mesh{}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		switch fields[0] {
		case "v":
			if len(fields) < 4 {
				return nil, fmt.Errorf("line %d: malformed vertex", line)
			}
			var c [3]float64
			for k := 0; k < 3; k++ {
				v, err := strconv.ParseFloat(fields[k+1], 64)
				if err != nil {
					return nil, fmt.Errorf("line %d: %w", line, err)
				}
				c[k] = v
			}
			mesh.Vertices = append(mesh.Vertices, geometry.Vector{X: c[0], Y: c[1], Z: c[2]})
		case "f":
			if len(fields) < 4 {
				return nil, fmt.Errorf("line %d: face has %d vertices, want at least 3", line, len(fields)-1)
			}
			idx := make([]int, len(fields)-1)
			for i, f := range fields[1:] {
				v, err := objIndex(f, len(mesh.Vertices))
				if err != nil {
					return nil, fmt.Errorf("line %d: %w", line, err)
				}
				idx[i] = v
			}
			for i := 1; i < len(idx)-1; i++ {
				mesh.Faces = append(mesh.Faces, [3]int{idx[0], idx[i], idx[i+1]})
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return mesh, nil
}

// objIndex resolves a face vertex reference ("7", "7/1", "7//3") to a
// zero-based vertex index. OBJ indices are one-based; negative indices
// count back from the most recently declared vertex.
func objIndex(field string, numVerts int) (int, error) {
	if i := strings.IndexByte(field, '/'); i >= 0 {
		field = field[:i]
	}
	v, err := strconv.Atoi(field)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		v += numVerts
	} else {
		v--
	}
	if v < 0 || v >= numVerts {
		return 0, fmt.Errorf("vertex index %s out of range, have %d vertices", field, numVerts)
	}
	return v, nil
}

// WriteOBJ writes the mesh as Wavefront OBJ with one-based face
// indices.
func WriteOBJ(w io.Writer, m *models.Mesh) error {
	bw := bufio.NewWriter(w)
	for _, v := range m.Vertices {
		if _, err := fmt.Fprintf(bw, "v %g %g %g\n", v.X, v.Y, v.Z); err != nil {
			return err
		}
	}
	for _, f := range m.Faces {
		if _, err := fmt.Fprintf(bw, "f %d %d %d\n", f[0]+1, f[1]+1, f[2]+1); err != nil {
			return err
		}
	}
	return bw.Flush()
}
