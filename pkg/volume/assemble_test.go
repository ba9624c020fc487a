package volume

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anatomesh/internal/models"
)

// uniformSlice builds a w x h slice filled with a constant value at the
// given position.
func uniformSlice(w, h int, spacing, position, value float64) *models.Slice {
	s := &models.Slice{
		Data:         make([]float64, w*h),
		Width:        w,
		Height:       h,
		PixelSpacing: [2]float64{spacing, spacing},
		Position:     position,
	}
	for i := range s.Data {
		s.Data[i] = value
	}
	return s
}

// TestAssembleOrdersByPosition verifies that slices are stacked by
// position regardless of input order.
func TestAssembleOrdersByPosition(t *testing.T) {
	slices := []*models.Slice{
		uniformSlice(4, 4, 1, 2.0, 3),
		uniformSlice(4, 4, 1, 0.0, 1),
		uniformSlice(4, 4, 1, 1.0, 2),
	}

	vol, err := Assemble(slices, Options{})
	require.NoError(t, err)

	assert.Equal(t, 4, vol.Width)
	assert.Equal(t, 4, vol.Height)
	assert.Equal(t, 3, vol.Depth)
	assert.Equal(t, [3]float64{1, 1, 1}, vol.Spacing)
	assert.Equal(t, 0.0, vol.Origin.Z)

	// Plane values must come out in position order.
	assert.Equal(t, 1.0, vol.At(0, 0, 0))
	assert.Equal(t, 2.0, vol.At(0, 0, 1))
	assert.Equal(t, 3.0, vol.At(0, 0, 2))
}

// TestAssembleErrors verifies the error taxonomy of the assembler.
func TestAssembleErrors(t *testing.T) {
	t.Run("too few slices", func(t *testing.T) {
		_, err := Assemble([]*models.Slice{uniformSlice(4, 4, 1, 0, 0)}, Options{})
		assert.ErrorIs(t, err, ErrInsufficientSlices)
	})

	t.Run("position not comparable", func(t *testing.T) {
		slices := []*models.Slice{
			uniformSlice(4, 4, 1, 0, 0),
			uniformSlice(4, 4, 1, math.NaN(), 0),
		}
		_, err := Assemble(slices, Options{})
		assert.ErrorIs(t, err, ErrUnorderedSliceStack)
	})

	t.Run("duplicate positions", func(t *testing.T) {
		slices := []*models.Slice{
			uniformSlice(4, 4, 1, 1, 0),
			uniformSlice(4, 4, 1, 1, 0),
		}
		_, err := Assemble(slices, Options{})
		assert.ErrorIs(t, err, ErrUnorderedSliceStack)
	})

	t.Run("mismatched extent", func(t *testing.T) {
		slices := []*models.Slice{
			uniformSlice(4, 4, 1, 0, 0),
			uniformSlice(8, 8, 1, 1, 0), // double the physical footprint
		}
		_, err := Assemble(slices, Options{})
		assert.ErrorIs(t, err, ErrInconsistentSliceGeometry)
	})

	t.Run("non-uniform spacing", func(t *testing.T) {
		slices := []*models.Slice{
			uniformSlice(4, 4, 1, 0, 0),
			uniformSlice(4, 4, 1, 1, 0),
			uniformSlice(4, 4, 1, 3, 0), // gap of 2 against mean 1.5
		}
		_, err := Assemble(slices, Options{})
		assert.ErrorIs(t, err, ErrNonUniformSpacing)
	})
}

// TestAssembleSpacingTolerance verifies that spacing jitter within the
// configured tolerance is accepted and averaged.
func TestAssembleSpacingTolerance(t *testing.T) {
	slices := []*models.Slice{
		uniformSlice(4, 4, 1, 0.000, 0),
		uniformSlice(4, 4, 1, 1.004, 0),
		uniformSlice(4, 4, 1, 2.000, 0),
	}

	vol, err := Assemble(slices, Options{})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, vol.Spacing[2], 0.01)

	// The same stack fails under a much tighter tolerance.
	_, err = Assemble(slices, Options{SpacingTolerance: 1e-6})
	assert.ErrorIs(t, err, ErrNonUniformSpacing)
}

// TestAssembleResamplesPixelGrid verifies that a slice with the same
// physical footprint on a finer pixel grid is resampled onto the
// reference grid.
func TestAssembleResamplesPixelGrid(t *testing.T) {
	// 4x4 pixels at spacing 1 and 8x8 pixels at spacing 0.5 both cover
	// 4x4 world units.
	fine := uniformSlice(8, 8, 0.5, 1, 7)
	slices := []*models.Slice{
		uniformSlice(4, 4, 1, 0, 7),
		fine,
		uniformSlice(4, 4, 1, 2, 7),
	}

	vol, err := Assemble(slices, Options{})
	require.NoError(t, err)
	assert.Equal(t, 4, vol.Width)
	assert.Equal(t, 3, vol.Depth)

	// A constant plane must survive resampling exactly.
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			assert.InDelta(t, 7.0, vol.At(x, y, 1), 1e-9)
		}
	}
}

// TestAssembleDoesNotMutateInput verifies that the caller's slice order
// is preserved.
func TestAssembleDoesNotMutateInput(t *testing.T) {
	slices := []*models.Slice{
		uniformSlice(4, 4, 1, 2, 0),
		uniformSlice(4, 4, 1, 0, 0),
		uniformSlice(4, 4, 1, 1, 0),
	}

	_, err := Assemble(slices, Options{})
	require.NoError(t, err)

	assert.Equal(t, 2.0, slices[0].Position)
	assert.Equal(t, 0.0, slices[1].Position)
	assert.Equal(t, 1.0, slices[2].Position)
}
