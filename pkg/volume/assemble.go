// Package volume assembles a heterogeneous stack of 2D scalar slices
// into a single uniformly spaced 3D scalar field, validating ordering,
// geometry and spacing along the way.
package volume

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"sort"

	"golang.org/x/image/draw"
	"gonum.org/v1/gonum/stat"

	"anatomesh/internal/models"
	"anatomesh/pkg/geometry"
)

// DefaultSpacingTolerance is the allowed relative deviation of
// inter-slice spacing from its mean. Acquisition spacing is rarely
// perfectly uniform; deviations beyond this indicate a missing or
// corrupt slice.
const DefaultSpacingTolerance = 0.01

var (
	// ErrInsufficientSlices is returned for stacks with fewer than two
	// slices.
	ErrInsufficientSlices = errors.New("slice stack needs at least 2 slices")

	// ErrUnorderedSliceStack is returned when a slice has no comparable
	// position key or two slices share the same position.
	ErrUnorderedSliceStack = errors.New("slice stack cannot be ordered")

	// ErrInconsistentSliceGeometry is returned when slices disagree on
	// in-plane resolution or physical extent.
	ErrInconsistentSliceGeometry = errors.New("inconsistent slice geometry")

	// ErrNonUniformSpacing is returned when inter-slice spacing varies
	// beyond the configured tolerance.
	ErrNonUniformSpacing = errors.New("non-uniform slice spacing")
)

// Options tunes volume assembly. The zero value uses defaults.
type Options struct {
	// SpacingTolerance is the allowed relative spacing deviation. Zero
	// means DefaultSpacingTolerance.
	SpacingTolerance float64
}

func (o Options) spacingTolerance() float64 {
	if o.SpacingTolerance <= 0 {
		return DefaultSpacingTolerance
	}
	return o.SpacingTolerance
}

// Assemble sorts the slices by their position key, verifies uniform
// geometry and spacing, and stacks them into a 3D scalar field. Slices
// whose pixel grid differs from the reference slice but whose physical
// extent matches are resampled in-plane; anything else is rejected.
// The input slices are not modified.
func Assemble(slices []*models.Slice, opts Options) (*models.Volume, error) {
	if len(slices) < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrInsufficientSlices, len(slices))
	}

	ordered := make([]*models.Slice, len(slices))
	copy(ordered, slices)
	for _, s := range ordered {
		if math.IsNaN(s.Position) || math.IsInf(s.Position, 0) {
			return nil, fmt.Errorf("%w: slice %q has no comparable position", ErrUnorderedSliceStack, s.Source)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Position < ordered[j].Position
	})
	for i := 1; i < len(ordered); i++ {
		if ordered[i].Position == ordered[i-1].Position {
			return nil, fmt.Errorf("%w: duplicate position %g (%q, %q)",
				ErrUnorderedSliceStack, ordered[i].Position, ordered[i-1].Source, ordered[i].Source)
		}
	}

	ref := ordered[0]
	if ref.Width <= 0 || ref.Height <= 0 {
		return nil, fmt.Errorf("%w: slice %q is empty", ErrInconsistentSliceGeometry, ref.Source)
	}
	if ref.PixelSpacing[0] <= 0 || ref.PixelSpacing[1] <= 0 {
		return nil, fmt.Errorf("%w: slice %q has non-positive pixel spacing", ErrInconsistentSliceGeometry, ref.Source)
	}

	// Bring every slice onto the reference pixel grid.
	planes := make([][]float64, len(ordered))
	for i, s := range ordered {
		p, err := conform(s, ref)
		if err != nil {
			return nil, err
		}
		planes[i] = p
	}

	// Spacing from consecutive position deltas, checked against the
	// configured tolerance around the mean.
	deltas := make([]float64, len(ordered)-1)
	for i := 1; i < len(ordered); i++ {
		deltas[i-1] = ordered[i].Position - ordered[i-1].Position
	}
	mean := stat.Mean(deltas, nil)
	tol := opts.spacingTolerance()
	for i, d := range deltas {
		if math.Abs(d-mean) > tol*mean {
			return nil, fmt.Errorf("%w: gap %g between slices %d and %d, mean %g, tolerance %.2g%%",
				ErrNonUniformSpacing, d, i, i+1, mean, tol*100)
		}
	}

	size := ref.Width * ref.Height
	vol := &models.Volume{
		Data:    make([]float64, size*len(ordered)),
		Width:   ref.Width,
		Height:  ref.Height,
		Depth:   len(ordered),
		Spacing: [3]float64{ref.PixelSpacing[0], ref.PixelSpacing[1], mean},
		Origin:  geometry.Vector{Z: ordered[0].Position},
	}
	for z, p := range planes {
		copy(vol.Data[z*size:(z+1)*size], p)
	}
	return vol, nil
}

// extentTolerance is the relative slack when comparing the physical
// extent of a slice against the reference plane.
const extentTolerance = 1e-6

// conform returns the slice's data on the reference pixel grid,
// resampling bilinearly when the pixel counts differ but the physical
// extent agrees.
func conform(s, ref *models.Slice) ([]float64, error) {
	if len(s.Data) != s.Width*s.Height {
		return nil, fmt.Errorf("%w: slice %q has %d samples for %dx%d pixels",
			ErrInconsistentSliceGeometry, s.Source, len(s.Data), s.Width, s.Height)
	}
	if s.Width == ref.Width && s.Height == ref.Height &&
		nearlyEqual(s.PixelSpacing[0], ref.PixelSpacing[0]) &&
		nearlyEqual(s.PixelSpacing[1], ref.PixelSpacing[1]) {
		out := make([]float64, len(s.Data))
		copy(out, s.Data)
		return out, nil
	}

	// Same physical footprint on a different pixel grid is resampled;
	// a different footprint is a hard geometry mismatch.
	sw := float64(s.Width) * s.PixelSpacing[0]
	sh := float64(s.Height) * s.PixelSpacing[1]
	rw := float64(ref.Width) * ref.PixelSpacing[0]
	rh := float64(ref.Height) * ref.PixelSpacing[1]
	if !nearlyEqual(sw, rw) || !nearlyEqual(sh, rh) {
		return nil, fmt.Errorf("%w: slice %q covers %gx%g, reference covers %gx%g",
			ErrInconsistentSliceGeometry, s.Source, sw, sh, rw, rh)
	}
	return resample(s, ref.Width, ref.Height), nil
}

func nearlyEqual(a, b float64) bool {
	scale := math.Max(math.Abs(a), math.Abs(b))
	return math.Abs(a-b) <= extentTolerance*math.Max(scale, 1)
}

// resample maps the slice onto a w x h pixel grid with bilinear
// filtering. Intensities are normalized into 16-bit gray for the
// filter and mapped back to the original scalar range afterwards.
func resample(s *models.Slice, w, h int) []float64 {
	lo, hi := s.Data[0], s.Data[0]
	for _, v := range s.Data[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	span := hi - lo
	if span == 0 {
		out := make([]float64, w*h)
		for i := range out {
			out[i] = lo
		}
		return out
	}

	src := image.NewGray16(image.Rect(0, 0, s.Width, s.Height))
	for y := 0; y < s.Height; y++ {
		for x := 0; x < s.Width; x++ {
			g := uint16((s.At(x, y) - lo) / span * 65535)
			src.SetGray16(x, y, color.Gray16{Y: g})
		}
	}

	dst := image.NewGray16(image.Rect(0, 0, w, h))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	out := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			g := dst.Gray16At(x, y).Y
			out[y*w+x] = lo + float64(g)/65535*span
		}
	}
	return out
}
