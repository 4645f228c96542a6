// Package sobel computes first derivatives and derivative products over
// sample grids with fixed integer Sobel-style tables.
//
// The product directions (XX, YY, XY) multiply two linear responses per
// pixel. They are not convolutions of a squared image.
package sobel

import (
	"fmt"
	"math"
	"strings"

	"github.com/andresmejia3/harris/internal/filter"
	"github.com/andresmejia3/harris/internal/workerpool"
)

// Direction selects the derivative or product to compute.
type Direction int

const (
	X Direction = iota
	Y
	XX
	YY
	XY
)

var directionNames = [...]string{X: "x", Y: "y", XX: "xx", YY: "yy", XY: "xy"}

func (d Direction) String() string {
	if d < X || d > XY {
		return fmt.Sprintf("Direction(%d)", int(d))
	}
	return directionNames[d]
}

// ParseDirection is case-insensitive.
func ParseDirection(v string) (Direction, error) {
	for d, name := range directionNames {
		if strings.EqualFold(v, name) {
			return Direction(d), nil
		}
	}
	return X, fmt.Errorf("unknown direction %q (want x, y, xx, yy or xy)", v)
}

// Operator is an immutable kernel-size selection.
type Operator struct {
	size Size
}

// New returns an operator using the given table size.
func New(size Size) Operator {
	return Operator{size: size}
}

// Default returns the 3x3 operator.
func Default() Operator {
	return Operator{size: Size3}
}

// WithSize returns a copy of op using size.
func (op Operator) WithSize(size Size) Operator {
	op.size = size
	return op
}

// Size reports the configured table size.
func (op Operator) Size() Size {
	return op.size
}

// plan is a direction resolved against the operator's tables.
type plan struct {
	a, b    []int32
	product bool
	dim     int
}

func (op Operator) plan(dir Direction) plan {
	kx, ky := op.size.X(), op.size.Y()
	p := plan{dim: op.size.Dim()}
	switch dir {
	case X:
		p.a = kx
	case Y:
		p.a = ky
	case XX:
		p.a, p.b, p.product = kx, kx, true
	case YY:
		p.a, p.b, p.product = ky, ky, true
	case XY:
		p.a, p.b, p.product = kx, ky, true
	default:
		panic(fmt.Sprintf("sobel: invalid direction %d", int(dir)))
	}
	return p
}

// Apply returns the derivative (X, Y) or derivative product (XX, YY, XY) of
// image. Windows are clamped at the borders exactly like filter.Apply.
func Apply[T filter.Sample](op Operator, image []T, width, height int, dir Direction) []float64 {
	buf := make([]float64, len(image))
	if len(image) == 0 {
		return buf
	}
	ApplyRows(buf, op, image, width, height, dir, 0, height)
	return buf
}

// ApplyParallel is Apply with rows split across pool.
func ApplyParallel[T filter.Sample](pool *workerpool.Pool, op Operator, image []T, width, height int, dir Direction) []float64 {
	buf := make([]float64, len(image))
	if len(image) == 0 {
		return buf
	}
	pool.Rows(height, func(r0, r1 int) {
		ApplyRows(buf, op, image, width, height, dir, r0, r1)
	})
	return buf
}

// ApplyRows writes output rows [r0, r1) into dst.
func ApplyRows[T filter.Sample](dst []float64, op Operator, image []T, width, height int, dir Direction, r0, r1 int) {
	p := op.plan(dir)
	b := p.dim / 2
	for r := r0; r < r1; r++ {
		startY := max(r-b, 0)
		stopY := min(r+b, height-1)
		for c := 0; c < width; c++ {
			startX := max(c-b, 0)
			stopX := min(c+b, width-1)

			var valA, valB float64
			for ix := startX; ix <= stopX; ix++ {
				kx := ix + b - c
				for iy := startY; iy <= stopY; iy++ {
					ky := iy + b - r
					px := filter.ToInt32(image[ix+iy*width])
					ki := kx + ky*p.dim
					valA += float64(px * p.a[ki])
					if p.product {
						valB += float64(px * p.b[ki])
					}
				}
			}
			if p.product {
				dst[c+r*width] = valA * valB
			} else {
				dst[c+r*width] = valA
			}
		}
	}
}

// Gradients returns the X and Y derivatives of image, banded over pool.
// A nil pool runs sequentially.
func Gradients[T filter.Sample](pool *workerpool.Pool, op Operator, image []T, width, height int) (gx, gy []float64) {
	return ApplyParallel(pool, op, image, width, height, X), ApplyParallel(pool, op, image, width, height, Y)
}

// Magnitude returns sqrt(gx²+gy²) per pixel.
func Magnitude(gx, gy []float64) []float64 {
	out := make([]float64, len(gx))
	for i := range gx {
		out[i] = math.Hypot(gx[i], gy[i])
	}
	return out
}
