package models

import "anatomesh/pkg/geometry"

// Slice is a single 2D scalar-intensity image within a stack, together
// with the acquisition metadata needed to place it in 3D: its physical
// position along the stacking axis and the in-plane pixel spacing.
// Position doubles as the acquisition-order key used to sort the stack.
type Slice struct {
	// Data holds the scalar intensities in row-major order.
	Data []float64

	// Width and Height are the in-plane pixel dimensions.
	Width  int
	Height int

	// PixelSpacing is the physical size of a pixel in (column, row)
	// order, in world units.
	PixelSpacing [2]float64

	// Position is the physical position of the slice along the stacking
	// axis. Slices are sorted by this key.
	Position float64

	// Source identifies where the slice came from, typically a filename.
	// Diagnostic only.
	Source string
}

// At returns the intensity at pixel (x,y).
func (s *Slice) At(x, y int) float64 {
	return s.Data[y*s.Width+x]
}

// Volume is an ordered slice stack resampled onto a uniform 3D grid.
// Data is stored with the stacking axis slowest: index z*Width*Height +
// y*Width + x. Spacing may differ per axis; axis order is (x, y, z)
// with z the stacking axis.
type Volume struct {
	Data    []float64
	Width   int
	Height  int
	Depth   int
	Spacing [3]float64
	Origin  geometry.Vector
}

// At returns the scalar value at grid point (x,y,z).
func (v *Volume) At(x, y, z int) float64 {
	return v.Data[z*v.Width*v.Height+y*v.Width+x]
}

// Range returns the minimum and maximum scalar values in the volume.
func (v *Volume) Range() (min, max float64) {
	if len(v.Data) == 0 {
		return 0, 0
	}
	min, max = v.Data[0], v.Data[0]
	for _, s := range v.Data[1:] {
		if s < min {
			min = s
		}
		if s > max {
			max = s
		}
	}
	return min, max
}
