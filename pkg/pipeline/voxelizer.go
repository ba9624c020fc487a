package pipeline

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"anatomesh/internal/models"
	"anatomesh/pkg/gridio"
	"anatomesh/pkg/meshio"
	"anatomesh/pkg/repair"
	"anatomesh/pkg/visualization"
	"anatomesh/pkg/voxelize"
)

// ErrMeshNotWatertight is returned when repair cannot close the input
// mesh and partial results are not allowed.
var ErrMeshNotWatertight = errors.New("mesh could not be made watertight")

// VoxelizeParams holds the configuration for the mesh-to-grid
// direction.
type VoxelizeParams struct {
	// InputFile is the path of the surface mesh to voxelize (STL or
	// OBJ).
	InputFile string

	// OutputFile is the path of the grid artifact to write.
	OutputFile string

	// Pitch is the cubic voxel edge length in world units.
	Pitch float64

	// MaxGridCells caps the total cell count of the output grid. Zero
	// means the engine default.
	MaxGridCells int

	// NumCores is the number of goroutines for the parallel passes.
	// Zero means all available cores.
	NumCores int

	// AllowPartialRepair lets voxelization proceed when repair leaves
	// unclosed defects. The grid then reflects the partially repaired
	// surface and interior fill may leak.
	AllowPartialRepair bool

	// SaveProjections writes a maximum-intensity projection preview per
	// axis next to the output artifact.
	SaveProjections bool

	// Logger receives stage progress. Nil means the standard logger.
	Logger logrus.FieldLogger
}

// Voxelizer runs the mesh-to-grid pipeline: ingest, validate, repair,
// rasterize, fill and export.
type Voxelizer struct {
	params *VoxelizeParams
	log    logrus.FieldLogger

	report *repair.Report
	grid   *models.VoxelGrid
}

// NewVoxelizer creates a voxelizer with the provided parameters.
func NewVoxelizer(params *VoxelizeParams) *Voxelizer {
	return &Voxelizer{params: params, log: logger(params.Logger)}
}

// Report returns the repair report of the last Process run, or nil.
func (v *Voxelizer) Report() *repair.Report {
	return v.report
}

// Grid returns the grid produced by the last Process run, or nil.
func (v *Voxelizer) Grid() *models.VoxelGrid {
	return v.grid
}

// Process runs the complete mesh-to-grid pipeline.
func (v *Voxelizer) Process() error {
	v.report = nil
	v.grid = nil

	v.log.WithField("input", v.params.InputFile).Info("loading mesh")
	mesh, err := meshio.ReadMesh(v.params.InputFile)
	if err != nil {
		return fmt.Errorf("failed to load mesh: %w", err)
	}
	if err := mesh.Validate(); err != nil {
		return fmt.Errorf("invalid mesh: %w", err)
	}
	v.log.WithFields(logrus.Fields{
		"vertices": len(mesh.Vertices),
		"faces":    len(mesh.Faces),
	}).Info("mesh loaded")

	repaired, report, err := repair.Repair(mesh)
	v.report = report
	if err != nil {
		var failure *repair.Failure
		if !errors.As(err, &failure) {
			return fmt.Errorf("repair failed: %w", err)
		}
		if !v.params.AllowPartialRepair {
			return fmt.Errorf("%w: %v", ErrMeshNotWatertight, failure)
		}
		v.log.WithField("defects", len(failure.Edges)).
			Warn("proceeding with partially repaired mesh; interior fill may leak")
	}
	if report.AddedFaces > 0 {
		v.log.WithFields(logrus.Fields{
			"holes":      len(report.BoundaryLoops),
			"addedFaces": report.AddedFaces,
		}).Info("closed boundary loops")
	}

	v.log.WithField("pitch", v.params.Pitch).Info("voxelizing")
	grid, err := voxelize.Voxelize(repaired, v.params.Pitch, voxelize.Options{
		MaxCells: v.params.MaxGridCells,
		Workers:  v.params.NumCores,
	})
	if err != nil {
		return fmt.Errorf("voxelization failed: %w", err)
	}
	v.grid = grid
	v.log.WithFields(logrus.Fields{
		"cells":    fmt.Sprintf("%dx%dx%d", grid.NX, grid.NY, grid.NZ),
		"occupied": grid.Count(),
		"volume":   grid.OccupiedVolume(),
	}).Info("grid built")

	if err := gridio.WriteGrid(v.params.OutputFile, grid); err != nil {
		return fmt.Errorf("failed to write grid: %w", err)
	}
	v.log.WithField("output", v.params.OutputFile).Info("grid artifact written")

	if v.params.SaveProjections {
		if err := v.saveProjections(grid); err != nil {
			return fmt.Errorf("failed to save projections: %w", err)
		}
	}
	return nil
}

// saveProjections writes one maximum-intensity projection PNG per axis
// next to the output artifact.
func (v *Voxelizer) saveProjections(grid *models.VoxelGrid) error {
	base := strings.TrimSuffix(v.params.OutputFile, filepath.Ext(v.params.OutputFile))
	for _, axis := range []string{"x", "y", "z"} {
		proj, err := voxelize.MaxProjection(grid, axis)
		if err != nil {
			return err
		}
		name := fmt.Sprintf("%s_mip_%s.png", base, axis)
		if err := visualization.SavePNG(visualization.SliceImage(proj), name); err != nil {
			return err
		}
		v.log.WithField("output", name).Debug("projection written")
	}
	return nil
}
