package harris

import (
	"errors"
	"math"
	"testing"

	"github.com/andresmejia3/harris/internal/filter"
	"github.com/andresmejia3/harris/internal/sobel"
	"github.com/andresmejia3/harris/internal/workerpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// square draws a bright axis-aligned square on a dark background.
func square(w, h, x0, y0, side int) []uint8 {
	img := make([]uint8, w*h)
	for y := y0; y < y0+side; y++ {
		for x := x0; x < x0+side; x++ {
			img[x+y*w] = 220
		}
	}
	return img
}

func TestCalculateHarrisMatrix(t *testing.T) {
	const w, h = 40, 32
	img := square(w, h, 12, 8, 14)

	got, err := CalculateHarrisMatrix(img, w, h)
	require.NoError(t, err)
	require.Len(t, got, w*h)

	set := 0
	for _, v := range got {
		require.Contains(t, []uint8{0, 255}, v)
		if v == 255 {
			set++
		}
	}
	assert.Positive(t, set)
	assert.Less(t, set, w*h, "a square is not all corners")
}

func TestDeterministic(t *testing.T) {
	const w, h = 33, 27
	img := square(w, h, 5, 7, 11)
	a, err := CalculateHarrisMatrix(img, w, h)
	require.NoError(t, err)
	b, err := CalculateHarrisMatrix(img, w, h)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestPoolMatchesSequential(t *testing.T) {
	pool := workerpool.New(4)
	defer pool.Close()

	const w, h = 48, 36
	img := square(w, h, 10, 9, 20)
	for i := range img {
		img[i] += uint8(i % 7)
	}

	for _, size := range []sobel.Size{sobel.Size3, sobel.Size5} {
		cfg := DefaultConfig()
		cfg.Size = size

		seq, err := New(cfg, nil)
		require.NoError(t, err)
		par, err := New(cfg, pool)
		require.NoError(t, err)

		want, err := seq.Run(img, w, h)
		require.NoError(t, err)
		got, err := par.Run(img, w, h)
		require.NoError(t, err)

		assert.Equal(t, want.Response, got.Response, size.String())
		assert.Equal(t, want.Corners, got.Corners, size.String())
		assert.Equal(t, want.Count, got.Count)
		assert.Equal(t, want.Max, got.Max)
	}
}

func TestFlatImageFlagsOnlyBorderBand(t *testing.T) {
	const w, h = 16, 16
	img := make([]uint8, w*h)
	for i := range img {
		img[i] = 128
	}
	p, err := New(DefaultConfig(), nil)
	require.NoError(t, err)

	res, err := p.Run(img, w, h)
	require.NoError(t, err)

	// Clamped windows lose weight at the border, so a flat image still has
	// gradients there. Gaussian (2) + derivative (1) + box (2) bounds how far
	// in they reach.
	const band = 5
	assert.Equal(t, 36, res.Count)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := res.Corners[x+y*w]
			d := min(x, y, w-1-x, h-1-y)
			if d >= band {
				assert.Zerof(t, v, "interior pixel (%d,%d) flagged", x, y)
				assert.Zerof(t, res.Response[x+y*w], "interior response at (%d,%d)", x, y)
			}
		}
	}
}

func TestCompatResponseNonNegative(t *testing.T) {
	const w, h = 30, 30
	img := make([]uint8, w*h)
	for i := range img {
		img[i] = uint8((i * 97) % 256)
	}
	p, err := New(DefaultConfig(), nil)
	require.NoError(t, err)
	res, err := p.Run(img, w, h)
	require.NoError(t, err)

	// Box-aggregated products satisfy Cauchy-Schwarz, so det and trace are
	// both non-negative up to rounding.
	for i, v := range res.Response {
		require.GreaterOrEqualf(t, v, -1e-6*res.Max, "pixel %d", i)
	}
}

func TestRunErrors(t *testing.T) {
	p, err := New(DefaultConfig(), nil)
	require.NoError(t, err)

	tests := []struct {
		name          string
		img           []uint8
		width, height int
	}{
		{"zero width", []uint8{}, 0, 4},
		{"zero height", []uint8{}, 4, 0},
		{"negative", []uint8{1}, -1, -1},
		{"short buffer", make([]uint8, 15), 4, 4},
		{"long buffer", make([]uint8, 17), 4, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := p.Run(tt.img, tt.width, tt.height)
			assert.Nil(t, res)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidDimensions))

			var se *StageError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, StageValidate, se.Stage)
			assert.Contains(t, err.Error(), "harris validate")
		})
	}

	_, err = CalculateHarrisMatrix(nil, 3, 3)
	assert.ErrorIs(t, err, ErrInvalidDimensions)
}

func TestNonMaximalSuppression(t *testing.T) {
	response := []float64{0, 1, 2, 6, 60, 10, 11, -5, 9.99}
	got, err := NonMaximalSuppression(response, 3, 3, 300, 32, 32)
	require.NoError(t, err)
	assert.Equal(t, []uint8{0, 0, 0, 0, 255, 0, 255, 0, 0}, got)

	t.Run("grid parameters are inert", func(t *testing.T) {
		other, err := NonMaximalSuppression(response, 3, 3, 1, 1, 1)
		require.NoError(t, err)
		assert.Equal(t, got, other)
		other, err = NonMaximalSuppression(response, 3, 3, 0, 0, 0)
		require.NoError(t, err)
		assert.Equal(t, got, other)
	})

	t.Run("idempotent on its own output", func(t *testing.T) {
		asFloat := make([]float64, len(got))
		for i, v := range got {
			asFloat[i] = float64(v)
		}
		again, err := NonMaximalSuppression(asFloat, 3, 3, 300, 32, 32)
		require.NoError(t, err)
		assert.Equal(t, got, again)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := NonMaximalSuppression(nil, 0, 0, 300, 32, 32)
		assert.ErrorIs(t, err, ErrEmptyResponse)
		var se *StageError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, StageThreshold, se.Stage)
	})

	t.Run("all NaN", func(t *testing.T) {
		_, err := NonMaximalSuppression([]float64{math.NaN(), math.NaN()}, 2, 1, 300, 32, 32)
		assert.ErrorIs(t, err, ErrEmptyResponse)
	})

	t.Run("NaN scores stay unset", func(t *testing.T) {
		out, err := NonMaximalSuppression([]float64{math.NaN(), 12, 1}, 3, 1, 300, 32, 32)
		require.NoError(t, err)
		assert.Equal(t, []uint8{0, 255, 0}, out)
	})
}

func TestThresholdDivisor(t *testing.T) {
	response := []float64{10, 4, 6, 1}
	got, err := Threshold(response, 2)
	require.NoError(t, err)
	assert.Equal(t, []uint8{255, 0, 255, 0}, got)
}

func TestScore(t *testing.T) {
	// ixx=4, ixy=1, iyy=3: det=11, trace=7.
	assert.InDelta(t, 11+0.05*49, Score(4, 1, 3, 0.05, FormulaCompat), 1e-12)
	assert.InDelta(t, 11-0.05*49, Score(4, 1, 3, 0.05, FormulaCanonical), 1e-12)
}

func TestCanonicalFormulaChangesResponse(t *testing.T) {
	const w, h = 40, 40
	img := square(w, h, 10, 10, 18)

	compat, err := New(DefaultConfig(), nil)
	require.NoError(t, err)
	cfg := DefaultConfig()
	cfg.Formula = FormulaCanonical
	canonical, err := New(cfg, nil)
	require.NoError(t, err)

	a, err := compat.Run(img, w, h)
	require.NoError(t, err)
	b, err := canonical.Run(img, w, h)
	require.NoError(t, err)
	assert.NotEqual(t, a.Response, b.Response)
	for i := range a.Response {
		assert.GreaterOrEqual(t, a.Response[i], b.Response[i])
	}
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	bad := []func(*Config){
		func(c *Config) { c.Size = sobel.Size(9) },
		func(c *Config) { c.K = math.NaN() },
		func(c *Config) { c.K = math.Inf(1) },
		func(c *Config) { c.ThresholdDivisor = 0 },
		func(c *Config) { c.ThresholdDivisor = -2 },
		func(c *Config) { c.ThresholdDivisor = math.NaN() },
	}
	for i, mutate := range bad {
		cfg := DefaultConfig()
		mutate(&cfg)
		assert.Error(t, cfg.Validate(), "case %d", i)
		_, err := New(cfg, nil)
		assert.Error(t, err, "case %d", i)
	}
}

func TestCornerList(t *testing.T) {
	res := &Result{
		Width:    3,
		Height:   2,
		Response: []float64{0, 9, 0, 0, 0, 7},
		Corners:  []uint8{0, 255, 0, 0, 0, 255},
	}
	assert.Equal(t, []Corner{{X: 1, Y: 0, Score: 9}, {X: 2, Y: 1, Score: 7}}, res.CornerList())
}

func TestKernelConstants(t *testing.T) {
	require.NoError(t, filter.Validate(GaussianKernel))
	require.NoError(t, filter.Validate(BoxKernel))
	assert.InDelta(t, 1.0, GaussianKernel.Sum(), 1e-12)
	assert.InDelta(t, 1.0, BoxKernel.Sum(), 1e-12)
	assert.InDelta(t, 41.0/273.0, GaussianKernel.Weights[12], 1e-15)
}

func TestParseFormula(t *testing.T) {
	f, err := ParseFormula("canonical")
	require.NoError(t, err)
	assert.Equal(t, FormulaCanonical, f)
	assert.Equal(t, "canonical", f.String())
	f, err = ParseFormula("")
	require.NoError(t, err)
	assert.Equal(t, FormulaCompat, f)
	_, err = ParseFormula("minus")
	assert.Error(t, err)
}
