package meshio

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"anatomesh/internal/models"
	"anatomesh/pkg/geometry"
)

const stlHeaderSize = 80

// ReadSTL reads a binary or ASCII STL stream into an indexed mesh.
// Vertices repeated across facets are merged by exact coordinate
// equality; stored facet normals are discarded and recomputed from
// winding on export.
func ReadSTL(r io.Reader) (*models.Mesh, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(6)
	if err != nil {
		return nil, fmt.Errorf("failed to read STL header: %w", err)
	}
	// ASCII files open with the keyword "solid". A binary file whose
	// free-form header happens to start the same way is caught below
	// when no "facet" keyword follows.
	if bytes.HasPrefix(head, []byte("solid")) {
		data, err := io.ReadAll(br)
		if err != nil {
			return nil, err
		}
		if bytes.Contains(data, []byte("facet")) {
			return readASCIISTL(bytes.NewReader(data))
		}
		return readBinarySTL(bytes.NewReader(data))
	}
	return readBinarySTL(br)
}

func readBinarySTL(r io.Reader) (*models.Mesh, error) {
	var header struct {
		Comment [stlHeaderSize]byte
		NumTris uint32
	}
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("failed to read binary STL header: %w", err)
	}

	mesh := &models.Mesh{}
	vertIndex := make(map[[3]float32]int)
	// 12 floats (normal + 3 vertices) plus the attribute byte count.
	buf := make([]byte, 4*12+2)
	for i := uint32(0); i < header.NumTris; i++ {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("failed to read facet %d of %d: %w", i, header.NumTris, err)
		}
		var face [3]int
		for v := 0; v < 3; v++ {
			var c [3]float32
			for k := 0; k < 3; k++ {
				// The leading 12 bytes are the stored normal.
				off := 12 + 12*v + 4*k
				c[k] = math.Float32frombits(binary.LittleEndian.Uint32(buf[off:]))
			}
			idx, ok := vertIndex[c]
			if !ok {
				idx = len(mesh.Vertices)
				mesh.Vertices = append(mesh.Vertices, geometry.Vector{
					X: float64(c[0]), Y: float64(c[1]), Z: float64(c[2]),
				})
				vertIndex[c] = idx
			}
			face[v] = idx
		}
		mesh.Faces = append(mesh.Faces, face)
	}
	return mesh, nil
}

func readASCIISTL(r io.Reader) (*models.Mesh, error) {
	mesh := &models.Mesh{}
	vertIndex := make(map[[3]float64]int)
	var face []int

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "vertex":
			if len(fields) != 4 {
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
			idx, ok := vertIndex[c]
			if !ok {
				idx = len(mesh.Vertices)
				mesh.Vertices = append(mesh.Vertices, geometry.Vector{X: c[0], Y: c[1], Z: c[2]})
				vertIndex[c] = idx
			}
			face = append(face, idx)
		case "endfacet":
			if len(face) != 3 {
				return nil, fmt.Errorf("line %d: facet has %d vertices, want 3", line, len(face))
			}
			mesh.Faces = append(mesh.Faces, [3]int{face[0], face[1], face[2]})
			face = face[:0]
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return mesh, nil
}

// WriteSTL writes the mesh as binary STL. Facet normals are computed
// from the vertex winding.
func WriteSTL(w io.Writer, m *models.Mesh) error {
	bw := bufio.NewWriter(w)

	var header [stlHeaderSize]byte
	copy(header[:], "Binary STL generated by anatomesh")
	if _, err := bw.Write(header[:]); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint32(len(m.Faces))); err != nil {
		return err
	}

	buf := make([]byte, 4*12+2)
	for i := range m.Faces {
		t := m.Triangle(i)
		n := t.UnitNormal()
		putVec(buf[0:], n)
		putVec(buf[12:], t.A)
		putVec(buf[24:], t.B)
		putVec(buf[36:], t.C)
		buf[48], buf[49] = 0, 0
		if _, err := bw.Write(buf); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func putVec(b []byte, v geometry.Vector) {
	binary.LittleEndian.PutUint32(b[0:], math.Float32bits(float32(v.X)))
	binary.LittleEndian.PutUint32(b[4:], math.Float32bits(float32(v.Y)))
	binary.LittleEndian.PutUint32(b[8:], math.Float32bits(float32(v.Z)))
}
