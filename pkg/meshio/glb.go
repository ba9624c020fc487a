package meshio

import (
	"errors"
	"math"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"anatomesh/internal/models"
)

// ErrEmptyExport is returned when asked to export a mesh with no faces;
// a glTF primitive cannot be empty.
var ErrEmptyExport = errors.New("cannot export empty mesh")

// WriteGLB exports the mesh as binary glTF with per-vertex smooth
// normals and a neutral matte material, suitable for dropping into any
// glTF viewer.
func WriteGLB(path string, m *models.Mesh) error {
	if m.IsEmpty() {
		return ErrEmptyExport
	}

	positions := make([][3]float32, len(m.Vertices))
	for i, v := range m.Vertices {
		positions[i] = [3]float32{float32(v.X), float32(v.Y), float32(v.Z)}
	}

	indices := make([]uint32, 0, len(m.Faces)*3)
	for _, f := range m.Faces {
		indices = append(indices, uint32(f[0]), uint32(f[1]), uint32(f[2]))
	}

	// Smooth normals: accumulate area-weighted face normals per vertex,
	// then normalize.
	acc := make([][3]float64, len(m.Vertices))
	for i := range m.Faces {
		n := m.Triangle(i).Normal()
		for _, v := range m.Faces[i] {
			acc[v][0] += n.X
			acc[v][1] += n.Y
			acc[v][2] += n.Z
		}
	}
	normals := make([][3]float32, len(m.Vertices))
	for i, n := range acc {
		l := n[0]*n[0] + n[1]*n[1] + n[2]*n[2]
		if l > 0 {
			inv := 1 / math.Sqrt(l)
			normals[i] = [3]float32{
				float32(n[0] * inv), float32(n[1] * inv), float32(n[2] * inv),
			}
		} else {
			normals[i] = [3]float32{0, 0, 1}
		}
	}

	doc := gltf.NewDocument()
	doc.Asset.Generator = "anatomesh"

	posAccessor := modeler.WritePosition(doc, positions)
	normalAccessor := modeler.WriteNormal(doc, normals)
	indicesAccessor := modeler.WriteIndices(doc, indices)

	prim := &gltf.Primitive{
		Attributes: gltf.PrimitiveAttributes{
			gltf.POSITION: posAccessor,
			gltf.NORMAL:   normalAccessor,
		},
		Indices: gltf.Index(indicesAccessor),
	}

	doc.Materials = []*gltf.Material{{
		PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
			BaseColorFactor: &[4]float64{0.8, 0.8, 0.8, 1},
			MetallicFactor:  gltf.Float(0),
			RoughnessFactor: gltf.Float(1),
		},
		AlphaMode: gltf.AlphaOpaque,
	}}
	prim.Material = gltf.Index(0)

	doc.Meshes = []*gltf.Mesh{{Name: "Surface", Primitives: []*gltf.Primitive{prim}}}
	doc.Nodes = []*gltf.Node{{Mesh: gltf.Index(0)}}
	doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, 0)

	return gltf.SaveBinary(doc, path)
}
