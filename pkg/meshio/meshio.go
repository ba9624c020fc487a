// Package meshio reads and writes triangle meshes in the exchange
// formats the pipeline speaks: binary and ASCII STL, Wavefront OBJ and
// binary glTF. The format is chosen by file extension.
package meshio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"anatomesh/internal/models"
)

// ErrUnsupportedFormat is returned for a file extension no codec
// handles.
var ErrUnsupportedFormat = errors.New("unsupported mesh format")

// ReadMesh loads a mesh from the given path, picking the codec from the
// file extension. STL and OBJ are readable; GLB is export-only.
func ReadMesh(path string) (*models.Mesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open mesh file: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".stl":
		m, err := ReadSTL(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read STL %s: %w", path, err)
		}
		return m, nil
	case ".obj":
		m, err := ReadOBJ(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read OBJ %s: %w", path, err)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// WriteMesh saves a mesh to the given path, picking the codec from the
// file extension.
func WriteMesh(path string, m *models.Mesh) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".stl":
		return writeFile(path, m, WriteSTL)
	case ".obj":
		return writeFile(path, m, WriteOBJ)
	case ".glb":
		return WriteGLB(path, m)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

func writeFile(path string, m *models.Mesh, write func(w io.Writer, m *models.Mesh) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create mesh file: %w", err)
	}
	if err := write(f, m); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return nil
}
