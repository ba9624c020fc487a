package pipeline

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"

	// Slice stacks arrive as plain grayscale images.
	_ "image/jpeg"
	_ "image/png"

	"github.com/sirupsen/logrus"

	"anatomesh/internal/models"
	"anatomesh/pkg/isosurface"
	"anatomesh/pkg/meshio"
	"anatomesh/pkg/volume"
)

// ErrNoSlices is returned when the input directory holds no readable
// slice images.
var ErrNoSlices = errors.New("no slice images found")

// ReconstructParams holds the configuration for the slice-stack-to-mesh
// direction.
type ReconstructParams struct {
	// InputDir is the directory containing the 2D slice images, PNG or
	// JPEG, ordered alphanumerically by filename.
	InputDir string

	// OutputFile is the path of the mesh to write; the extension picks
	// the format (STL, OBJ or GLB).
	OutputFile string

	// SliceGap is the physical distance between consecutive slices in
	// world units. Slice positions are filename order times this gap.
	SliceGap float64

	// PixelSpacing is the in-plane physical size of a pixel. Zero means
	// square pixels of size SliceGap.
	PixelSpacing float64

	// IsoValue is the scalar threshold for surface extraction, on the
	// normalized 0..1 intensity scale.
	IsoValue float64

	// SpacingTolerance is the allowed relative deviation of inter-slice
	// spacing from its mean. Zero means the assembler default.
	SpacingTolerance float64

	// WeldTolerance is the vertex welding radius as a fraction of the
	// smallest voxel spacing. Zero means the extractor default.
	WeldTolerance float64

	// NumCores is the number of goroutines for the extraction pass.
	// Zero means all available cores.
	NumCores int

	// Logger receives stage progress. Nil means the standard logger.
	Logger logrus.FieldLogger
}

// Reconstructor runs the slice-stack-to-mesh pipeline: ingest, order,
// assemble, extract and export.
type Reconstructor struct {
	params *ReconstructParams
	log    logrus.FieldLogger

	vol *models.Volume
}

// NewReconstructor creates a reconstructor with the provided
// parameters.
func NewReconstructor(params *ReconstructParams) *Reconstructor {
	return &Reconstructor{params: params, log: logger(params.Logger)}
}

// Volume returns the assembled scalar field of the last Process run, or
// nil.
func (r *Reconstructor) Volume() *models.Volume {
	return r.vol
}

// Process runs the complete slice-stack-to-mesh pipeline.
func (r *Reconstructor) Process() error {
	r.vol = nil

	r.log.WithField("input", r.params.InputDir).Info("loading slice stack")
	slices, err := r.loadSlices()
	if err != nil {
		return fmt.Errorf("failed to load slices: %w", err)
	}
	r.log.WithField("slices", len(slices)).Info("slices loaded")

	vol, err := volume.Assemble(slices, volume.Options{
		SpacingTolerance: r.params.SpacingTolerance,
	})
	if err != nil {
		return fmt.Errorf("failed to assemble volume: %w", err)
	}
	r.vol = vol
	r.log.WithFields(logrus.Fields{
		"dims":    fmt.Sprintf("%dx%dx%d", vol.Width, vol.Height, vol.Depth),
		"spacing": fmt.Sprintf("%gx%gx%g", vol.Spacing[0], vol.Spacing[1], vol.Spacing[2]),
	}).Info("volume assembled")

	mesh, err := isosurface.Extract(vol, r.params.IsoValue, isosurface.Options{
		WeldTolerance: r.params.WeldTolerance,
		Workers:       r.params.NumCores,
	})
	if err != nil {
		return fmt.Errorf("failed to extract surface: %w", err)
	}
	r.log.WithFields(logrus.Fields{
		"isoValue": r.params.IsoValue,
		"vertices": len(mesh.Vertices),
		"faces":    len(mesh.Faces),
	}).Info("surface extracted")

	if err := meshio.WriteMesh(r.params.OutputFile, mesh); err != nil {
		return fmt.Errorf("failed to write mesh: %w", err)
	}
	r.log.WithField("output", r.params.OutputFile).Info("mesh written")
	return nil
}

// loadSlices reads every PNG and JPEG in the input directory in
// alphanumeric filename order, converting each to a normalized
// grayscale slice positioned at filename order times the slice gap.
func (r *Reconstructor) loadSlices() ([]*models.Slice, error) {
	entries, err := os.ReadDir(r.params.InputDir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".png", ".jpg", ".jpeg":
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoSlices, r.params.InputDir)
	}
	sort.Strings(names)

	pixelSpacing := r.params.PixelSpacing
	if pixelSpacing <= 0 {
		pixelSpacing = r.params.SliceGap
	}

	slices := make([]*models.Slice, len(names))
	for i, name := range names {
		img, err := loadImage(filepath.Join(r.params.InputDir, name))
		if err != nil {
			return nil, fmt.Errorf("slice %s: %w", name, err)
		}
		slices[i] = imageToSlice(img, name, pixelSpacing, float64(i)*r.params.SliceGap)
	}
	return slices, nil
}

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	return img, err
}

// imageToSlice converts an image to a grayscale slice with intensities
// normalized to 0..1.
func imageToSlice(img image.Image, source string, pixelSpacing, position float64) *models.Slice {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	s := &models.Slice{
		Data:         make([]float64, w*h),
		Width:        w,
		Height:       h,
		PixelSpacing: [2]float64{pixelSpacing, pixelSpacing},
		Position:     position,
		Source:       source,
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			cr, cg, cb, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			// Rec. 601 luma over the 16-bit channel range.
			s.Data[y*w+x] = (0.299*float64(cr) + 0.587*float64(cg) + 0.114*float64(cb)) / 65535
		}
	}
	return s
}
