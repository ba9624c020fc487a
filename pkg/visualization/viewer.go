// Package visualization renders preview images of volumes and grids:
// single cross-sections, full slice sequences and maximum-intensity
// projections, all as 16-bit grayscale PNG.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"

	"anatomesh/internal/models"
)

// Viewer renders cross-sections of a reconstructed volume. Intensities
// are normalized over the volume's full scalar range once at
// construction.
type Viewer struct {
	vol    *models.Volume
	lo, hi float64
}

// NewViewer creates a viewer over the given volume.
func NewViewer(vol *models.Volume) *Viewer {
	lo, hi := vol.Range()
	return &Viewer{vol: vol, lo: lo, hi: hi}
}

// gray maps a scalar value into 16-bit grayscale over the viewer's
// range.
func (v *Viewer) gray(s float64) color.Gray16 {
	if v.hi == v.lo {
		return color.Gray16{}
	}
	t := (s - v.lo) / (v.hi - v.lo)
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	return color.Gray16{Y: uint16(t * 65535)}
}

// ExtractSlice extracts a 2D cross-section of the volume along the
// specified axis.
func (v *Viewer) ExtractSlice(axis string, position int) (image.Image, error) {
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}

	vol := v.vol
	switch axis {
	case "x", "X":
		if position >= vol.Width {
			return nil, fmt.Errorf("position %d exceeds width %d", position, vol.Width)
		}
		img := image.NewGray16(image.Rect(0, 0, vol.Depth, vol.Height))
		for y := 0; y < vol.Height; y++ {
			for z := 0; z < vol.Depth; z++ {
				img.SetGray16(z, y, v.gray(vol.At(position, y, z)))
			}
		}
		return img, nil

	case "y", "Y":
		if position >= vol.Height {
			return nil, fmt.Errorf("position %d exceeds height %d", position, vol.Height)
		}
		img := image.NewGray16(image.Rect(0, 0, vol.Width, vol.Depth))
		for z := 0; z < vol.Depth; z++ {
			for x := 0; x < vol.Width; x++ {
				img.SetGray16(x, z, v.gray(vol.At(x, position, z)))
			}
		}
		return img, nil

	case "z", "Z":
		if position >= vol.Depth {
			return nil, fmt.Errorf("position %d exceeds depth %d", position, vol.Depth)
		}
		img := image.NewGray16(image.Rect(0, 0, vol.Width, vol.Height))
		for y := 0; y < vol.Height; y++ {
			for x := 0; x < vol.Width; x++ {
				img.SetGray16(x, y, v.gray(vol.At(x, y, position)))
			}
		}
		return img, nil

	default:
		return nil, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}
}

// SaveSliceSequence extracts and saves every cross-section along the
// specified axis into outputDir.
func (v *Viewer) SaveSliceSequence(axis string, outputDir string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	var maxPos int
	switch axis {
	case "x", "X":
		maxPos = v.vol.Width
	case "y", "Y":
		maxPos = v.vol.Height
	case "z", "Z":
		maxPos = v.vol.Depth
	default:
		return fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	for pos := 0; pos < maxPos; pos++ {
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return err
		}
		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.png", axis, pos))
		if err := SavePNG(img, filename); err != nil {
			return err
		}
	}

	return nil
}

// SliceImage renders a 2D slice as 16-bit grayscale, normalized over
// the slice's own intensity range. Used for projection previews.
func SliceImage(s *models.Slice) image.Image {
	lo, hi := s.Data[0], s.Data[0]
	for _, v := range s.Data[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}

	img := image.NewGray16(image.Rect(0, 0, s.Width, s.Height))
	for y := 0; y < s.Height; y++ {
		for x := 0; x < s.Width; x++ {
			var g uint16
			if hi > lo {
				g = uint16((s.At(x, y) - lo) / (hi - lo) * 65535)
			}
			img.SetGray16(x, y, color.Gray16{Y: g})
		}
	}
	return img
}

// SavePNG writes an image as PNG.
func SavePNG(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return png.Encode(file, img)
}
