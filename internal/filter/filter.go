// Package filter convolves row-major sample grids with rectangular kernels.
//
// Windows near the border are clamped to the image instead of padded, and the
// weights of the dropped taps are not redistributed, so a unity-sum kernel
// attenuates responses along the edges.
package filter

import (
	"errors"
	"fmt"
	"math"

	"github.com/andresmejia3/harris/internal/workerpool"
)

// ErrInvalidKernel reports a kernel whose dimensions cannot be centred.
var ErrInvalidKernel = errors.New("invalid kernel")

// Sample is the set of pixel representations the engine accepts: raw 8-bit
// intensities and derived float64 values.
type Sample interface {
	~uint8 | ~float64
}

// ToFloat64 widens a sample to float64.
func ToFloat64[T Sample](v T) float64 {
	return float64(v)
}

// ToInt32 truncates a sample toward zero, saturating at the int32 range.
// NaN maps to 0.
func ToInt32[T Sample](v T) int32 {
	f := float64(v)
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt32:
		return math.MaxInt32
	case f <= math.MinInt32:
		return math.MinInt32
	}
	return int32(f)
}

// Kernel is a flat row-major weight matrix.
type Kernel struct {
	Weights []float64
	Width   int
	Height  int
}

// NewKernel checks the shape and returns the kernel.
func NewKernel(weights []float64, width, height int) (Kernel, error) {
	k := Kernel{Weights: weights, Width: width, Height: height}
	if err := Validate(k); err != nil {
		return Kernel{}, err
	}
	return k, nil
}

// MustKernel is NewKernel for package-level constants.
func MustKernel(weights []float64, width, height int) Kernel {
	k, err := NewKernel(weights, width, height)
	if err != nil {
		panic(err)
	}
	return k
}

// Uniform returns a box kernel whose weights sum to 1.
func Uniform(width, height int) Kernel {
	w := make([]float64, width*height)
	for i := range w {
		w[i] = 1.0 / float64(width*height)
	}
	return Kernel{Weights: w, Width: width, Height: height}
}

// Sum returns the total weight.
func (k Kernel) Sum() float64 {
	var s float64
	for _, w := range k.Weights {
		s += w
	}
	return s
}

// Validate rejects kernels with non-positive or even sides, or whose weight
// count does not match the declared shape.
func Validate(k Kernel) error {
	if k.Width <= 0 || k.Height <= 0 {
		return fmt.Errorf("%w: %dx%d has a non-positive side", ErrInvalidKernel, k.Width, k.Height)
	}
	if k.Width%2 == 0 || k.Height%2 == 0 {
		return fmt.Errorf("%w: %dx%d has an even side", ErrInvalidKernel, k.Width, k.Height)
	}
	if len(k.Weights) != k.Width*k.Height {
		return fmt.Errorf("%w: %d weights for a %dx%d kernel", ErrInvalidKernel, len(k.Weights), k.Width, k.Height)
	}
	return nil
}

// Apply convolves image with k and returns a new grid of the same length.
func Apply[T Sample](image []T, width, height int, k Kernel) []float64 {
	buf := make([]float64, len(image))
	if len(image) == 0 {
		return buf
	}
	ApplyRows(buf, image, width, height, k, 0, height)
	return buf
}

// ApplyParallel is Apply with rows split across pool. The result is identical
// to Apply because every pixel keeps its own summation order.
func ApplyParallel[T Sample](pool *workerpool.Pool, image []T, width, height int, k Kernel) []float64 {
	buf := make([]float64, len(image))
	if len(image) == 0 {
		return buf
	}
	pool.Rows(height, func(r0, r1 int) {
		ApplyRows(buf, image, width, height, k, r0, r1)
	})
	return buf
}

// ApplyRows writes output rows [r0, r1) into dst.
func ApplyRows[T Sample](dst []float64, image []T, width, height int, k Kernel, r0, r1 int) {
	bx := k.Width / 2
	by := k.Height / 2
	for r := r0; r < r1; r++ {
		startY := max(r-by, 0)
		stopY := min(r+by, height-1)
		for c := 0; c < width; c++ {
			startX := max(c-bx, 0)
			stopX := min(c+bx, width-1)

			var val float64
			for ix := startX; ix <= stopX; ix++ {
				kx := ix - c + bx
				for iy := startY; iy <= stopY; iy++ {
					ky := iy - r + by
					val += ToFloat64(image[ix+iy*width]) * k.Weights[kx+ky*k.Width]
				}
			}
			dst[c+r*width] = val
		}
	}
}
