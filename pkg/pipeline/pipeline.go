// Package pipeline orchestrates the two conversion directions end to
// end: mesh file to voxel grid artifact, and slice stack (or grid
// artifact) to surface mesh file. Each stage consumes the previous
// stage's artifact and either completes or fails the whole run; no
// partial artifacts are written.
package pipeline

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"anatomesh/pkg/gridio"
	"anatomesh/pkg/isosurface"
	"anatomesh/pkg/meshio"
)

// logger returns the given logger or the logrus standard logger.
func logger(l logrus.FieldLogger) logrus.FieldLogger {
	if l != nil {
		return l
	}
	return logrus.StandardLogger()
}

// GridToMesh converts a stored voxel grid artifact back into a surface
// mesh, closing the round trip: the occupancy grid is reinterpreted as
// a 0/1 scalar field and the 0.5 iso-surface is extracted from it.
func GridToMesh(gridPath, outputFile string, opts isosurface.Options, log logrus.FieldLogger) error {
	l := logger(log)

	l.WithField("input", gridPath).Info("loading voxel grid artifact")
	grid, err := gridio.ReadGrid(gridPath)
	if err != nil {
		return fmt.Errorf("failed to load grid: %w", err)
	}
	l.WithFields(logrus.Fields{
		"cells":    fmt.Sprintf("%dx%dx%d", grid.NX, grid.NY, grid.NZ),
		"occupied": grid.Count(),
		"pitch":    grid.Pitch,
	}).Info("grid loaded")

	mesh, err := isosurface.Extract(grid.ToVolume(), 0.5, opts)
	if err != nil {
		return fmt.Errorf("failed to extract surface: %w", err)
	}
	l.WithFields(logrus.Fields{
		"vertices": len(mesh.Vertices),
		"faces":    len(mesh.Faces),
	}).Info("surface extracted")

	if err := meshio.WriteMesh(outputFile, mesh); err != nil {
		return fmt.Errorf("failed to write mesh: %w", err)
	}
	l.WithField("output", outputFile).Info("mesh written")
	return nil
}
