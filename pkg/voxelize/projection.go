package voxelize

import (
	"fmt"

	"anatomesh/internal/models"
)

// MaxProjection flattens the occupancy grid along one axis into a 2D
// maximum-intensity projection: a pixel is 1 when any cell along the
// projection ray is occupied. The result is a derived view for preview
// rendering, not a stored artifact.
func MaxProjection(g *models.VoxelGrid, axis string) (*models.Slice, error) {
	var w, h int
	var sample func(u, v int) bool

	switch axis {
	case "x", "X":
		w, h = g.NY, g.NZ
		sample = func(u, v int) bool {
			for x := 0; x < g.NX; x++ {
				if g.At(x, u, v) {
					return true
				}
			}
			return false
		}
	case "y", "Y":
		w, h = g.NX, g.NZ
		sample = func(u, v int) bool {
			for y := 0; y < g.NY; y++ {
				if g.At(u, y, v) {
					return true
				}
			}
			return false
		}
	case "z", "Z":
		w, h = g.NX, g.NY
		sample = func(u, v int) bool {
			for z := 0; z < g.NZ; z++ {
				if g.At(u, v, z) {
					return true
				}
			}
			return false
		}
	default:
		return nil, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	proj := &models.Slice{
		Data:         make([]float64, w*h),
		Width:        w,
		Height:       h,
		PixelSpacing: [2]float64{g.Pitch, g.Pitch},
	}
	for v := 0; v < h; v++ {
		for u := 0; u < w; u++ {
			if sample(u, v) {
				proj.Data[v*w+u] = 1
			}
		}
	}
	return proj, nil
}
