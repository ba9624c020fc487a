package meshio

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/qmuntal/gltf"

	"anatomesh/internal/models"
)

// TestWriteGLB verifies that GLB export produces a binary glTF
// container.
func TestWriteGLB(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tetra.glb")
	if err := WriteGLB(path, tetraMesh()); err != nil {
		t.Fatalf("WriteGLB failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read output: %v", err)
	}
	if len(data) < 12 || string(data[:4]) != "glTF" {
		t.Errorf("Output is not a GLB container")
	}
}

// TestWriteGLBDocument verifies the exported scene graph: accessor
// indices, attribute wiring and element counts survive a reload.
func TestWriteGLBDocument(t *testing.T) {
	mesh := tetraMesh()
	path := filepath.Join(t.TempDir(), "tetra.glb")
	if err := WriteGLB(path, mesh); err != nil {
		t.Fatalf("WriteGLB failed: %v", err)
	}

	doc, err := gltf.Open(path)
	if err != nil {
		t.Fatalf("Exported GLB did not reload: %v", err)
	}
	if len(doc.Meshes) != 1 || len(doc.Meshes[0].Primitives) != 1 {
		t.Fatalf("Expected one mesh with one primitive, got %d/%d",
			len(doc.Meshes), len(doc.Meshes[0].Primitives))
	}
	prim := doc.Meshes[0].Primitives[0]

	pos, ok := prim.Attributes[gltf.POSITION]
	if !ok {
		t.Fatal("Primitive is missing the POSITION attribute")
	}
	if got := doc.Accessors[pos].Count; got != len(mesh.Vertices) {
		t.Errorf("Expected %d positions, got %d", len(mesh.Vertices), got)
	}
	norm, ok := prim.Attributes[gltf.NORMAL]
	if !ok {
		t.Fatal("Primitive is missing the NORMAL attribute")
	}
	if got := doc.Accessors[norm].Count; got != len(mesh.Vertices) {
		t.Errorf("Expected %d normals, got %d", len(mesh.Vertices), got)
	}
	if prim.Indices == nil {
		t.Fatal("Primitive has no index accessor")
	}
	if got := doc.Accessors[*prim.Indices].Count; got != len(mesh.Faces)*3 {
		t.Errorf("Expected %d indices, got %d", len(mesh.Faces)*3, got)
	}

	if len(doc.Scenes) == 0 || len(doc.Scenes[0].Nodes) != 1 {
		t.Fatal("Expected the default scene to reference one node")
	}
	node := doc.Nodes[doc.Scenes[0].Nodes[0]]
	if node.Mesh == nil || *node.Mesh != 0 {
		t.Error("Scene node does not reference the exported mesh")
	}
	if prim.Material == nil || len(doc.Materials) != 1 {
		t.Error("Primitive is not bound to the exported material")
	}
}

// TestWriteGLBEmptyMesh verifies that an empty mesh cannot be
// exported.
func TestWriteGLBEmptyMesh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.glb")
	err := WriteGLB(path, &models.Mesh{})
	if !errors.Is(err, ErrEmptyExport) {
		t.Errorf("Expected ErrEmptyExport, got %v", err)
	}
}

// TestMeshFormatDispatch verifies extension-based codec selection and
// rejection of unknown formats.
func TestMeshFormatDispatch(t *testing.T) {
	dir := t.TempDir()
	mesh := tetraMesh()

	for _, name := range []string{"m.stl", "m.obj", "m.glb", "M.STL"} {
		path := filepath.Join(dir, name)
		if err := WriteMesh(path, mesh); err != nil {
			t.Fatalf("WriteMesh %s failed: %v", name, err)
		}
	}

	for _, name := range []string{"m.stl", "m.obj"} {
		got, err := ReadMesh(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("ReadMesh %s failed: %v", name, err)
		}
		if len(got.Faces) != len(mesh.Faces) {
			t.Errorf("%s: expected %d faces, got %d", name, len(mesh.Faces), len(got.Faces))
		}
	}

	if err := WriteMesh(filepath.Join(dir, "m.ply"), mesh); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Expected ErrUnsupportedFormat, got %v", err)
	}
	if _, err := ReadMesh(filepath.Join(dir, "m.glb")); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Expected GLB read to be unsupported, got %v", err)
	}
	if _, err := ReadMesh(filepath.Join(dir, "missing.stl")); err == nil {
		t.Error("Expected missing file to fail")
	}
}
