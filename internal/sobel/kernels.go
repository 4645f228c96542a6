package sobel

import "fmt"

// Size selects one of the fixed derivative tables.
type Size int

const (
	Size3 Size = iota
	Size5
)

var (
	x3 = []int32{-1, 0, 1, -2, 0, 2, -1, 0, 1}
	y3 = []int32{-1, -2, -1, 0, 0, 0, 1, 2, 1}

	// The 5x5 pair blends the derivative with a smoothing lobe; it is kept
	// verbatim rather than derived.
	x5 = []int32{
		2, 1, 0, -1, -2,
		2, 1, 0, -1, -2,
		4, 2, 0, -2, -4,
		2, 1, 0, -1, -2,
		2, 1, 0, -1, -2,
	}
	y5 = []int32{
		2, 2, 4, 2, 2,
		1, 1, 2, 1, 1,
		0, 0, 0, 0, 0,
		-1, -1, -2, -1, -1,
		-2, -2, -4, -2, -2,
	}
)

// Dim returns the side length of the table.
func (s Size) Dim() int {
	if s == Size5 {
		return 5
	}
	return 3
}

// X returns the horizontal gradient table, row-major.
func (s Size) X() []int32 {
	if s == Size5 {
		return x5
	}
	return x3
}

// Y returns the vertical gradient table, row-major.
func (s Size) Y() []int32 {
	if s == Size5 {
		return y5
	}
	return y3
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Dim(), s.Dim())
}

// ParseSize accepts 3, 5, "3x3" or "5x5".
func ParseSize(v string) (Size, error) {
	switch v {
	case "3", "3x3":
		return Size3, nil
	case "5", "5x5":
		return Size5, nil
	}
	return Size3, fmt.Errorf("unknown kernel size %q (want 3 or 5)", v)
}
