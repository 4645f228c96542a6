// Package harris scores per-pixel cornerness with the Harris structure tensor
// and binarises the scores into a 0/255 corner map.
//
// Stages run strictly in order: Gaussian smoothing, derivative products,
// box aggregation of the tensor, scoring, then a global threshold against the
// maximum score. Each stage reads only the finished output of the one before.
package harris

import (
	"fmt"
	"math"
	"sync"

	"github.com/andresmejia3/harris/internal/filter"
	"github.com/andresmejia3/harris/internal/sobel"
	"github.com/andresmejia3/harris/internal/workerpool"
)

const (
	DefaultK                = 0.05
	DefaultThresholdDivisor = 6.0
	DefaultCorners          = 300
	DefaultGridX            = 32
	DefaultGridY            = 32
)

// GaussianKernel is the 5x5 pre-smoothing kernel, normalised by 273.
var GaussianKernel = filter.MustKernel(scale([]float64{
	1, 4, 7, 4, 1,
	4, 16, 26, 16, 4,
	7, 26, 41, 26, 7,
	4, 16, 26, 16, 4,
	1, 4, 7, 4, 1,
}, 1.0/273.0), 5, 5)

// BoxKernel aggregates tensor components over a 5x5 neighbourhood.
var BoxKernel = filter.MustKernel(filter.Uniform(5, 5).Weights, 5, 5)

func scale(w []float64, f float64) []float64 {
	for i := range w {
		w[i] *= f
	}
	return w
}

// Formula selects the sign of the trace term.
type Formula int

const (
	// FormulaCompat scores det + k·trace², matching the historical output.
	FormulaCompat Formula = iota
	// FormulaCanonical scores det - k·trace², the textbook Harris measure.
	// It flags a different set of pixels than FormulaCompat.
	FormulaCanonical
)

func (f Formula) String() string {
	if f == FormulaCanonical {
		return "canonical"
	}
	return "compat"
}

// ParseFormula accepts "compat" or "canonical".
func ParseFormula(v string) (Formula, error) {
	switch v {
	case "", "compat":
		return FormulaCompat, nil
	case "canonical":
		return FormulaCanonical, nil
	}
	return FormulaCompat, fmt.Errorf("unknown formula %q (want compat or canonical)", v)
}

// Config holds the detector parameters. The zero value is not usable; start
// from DefaultConfig.
type Config struct {
	Size             sobel.Size
	K                float64
	ThresholdDivisor float64
	Formula          Formula

	// NCorners, GridX and GridY are carried through to NonMaximalSuppression
	// but do not influence the map.
	NCorners int
	GridX    int
	GridY    int
}

// DefaultConfig reproduces the reference detector.
func DefaultConfig() Config {
	return Config{
		Size:             sobel.Size3,
		K:                DefaultK,
		ThresholdDivisor: DefaultThresholdDivisor,
		Formula:          FormulaCompat,
		NCorners:         DefaultCorners,
		GridX:            DefaultGridX,
		GridY:            DefaultGridY,
	}
}

// Validate rejects parameters the pipeline cannot run with.
func (c Config) Validate() error {
	if c.Size != sobel.Size3 && c.Size != sobel.Size5 {
		return fmt.Errorf("unsupported derivative size %d", int(c.Size))
	}
	if math.IsNaN(c.K) || math.IsInf(c.K, 0) {
		return fmt.Errorf("sensitivity k must be finite, got %v", c.K)
	}
	if !(c.ThresholdDivisor > 0) || math.IsInf(c.ThresholdDivisor, 0) {
		return fmt.Errorf("threshold divisor must be positive, got %v", c.ThresholdDivisor)
	}
	return nil
}

// Result is the outcome of one detection.
type Result struct {
	Width    int
	Height   int
	Response []float64
	Corners  []uint8
	Max      float64
	Count    int
}

// Corner is a pixel that passed the threshold.
type Corner struct {
	X     int     `json:"x"`
	Y     int     `json:"y"`
	Score float64 `json:"score"`
}

// Pipeline runs detections with a fixed configuration. It is safe for
// concurrent use; the pool, when set, is shared by every stage.
type Pipeline struct {
	cfg  Config
	pool *workerpool.Pool
}

// New returns a pipeline. pool may be nil for single-threaded execution.
func New(cfg Config, pool *workerpool.Pool) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Pipeline{cfg: cfg, pool: pool}, nil
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() Config {
	return p.cfg
}

// CalculateHarrisMatrix runs the default detector on an 8-bit grayscale image
// and returns the 0/255 corner map.
func CalculateHarrisMatrix(image []uint8, width, height int) ([]uint8, error) {
	p := &Pipeline{cfg: DefaultConfig()}
	res, err := p.Run(image, width, height)
	if err != nil {
		return nil, err
	}
	return res.Corners, nil
}

// Run executes every stage on image. No partial result is returned on error.
func (p *Pipeline) Run(image []uint8, width, height int) (*Result, error) {
	if err := ValidateImage(len(image), width, height); err != nil {
		return nil, stageErr(StageValidate, err)
	}

	smoothed := filter.ApplyParallel(p.pool, image, width, height, GaussianKernel)
	response := ResponseMatrix(smoothed, width, height, p.cfg, p.pool)

	corners, peak, err := threshold(response, p.cfg.ThresholdDivisor)
	if err != nil {
		return nil, stageErr(StageThreshold, err)
	}

	count := 0
	for _, v := range corners {
		if v == 255 {
			count++
		}
	}
	return &Result{
		Width:    width,
		Height:   height,
		Response: response,
		Corners:  corners,
		Max:      peak,
		Count:    count,
	}, nil
}

// ResponseMatrix turns a smoothed image into per-pixel cornerness scores.
func ResponseMatrix(smoothed []float64, width, height int, cfg Config, pool *workerpool.Pool) []float64 {
	op := sobel.New(cfg.Size)

	// The three products only read smoothed, so they run side by side.
	var ixx, ixy, iyy []float64
	var wg sync.WaitGroup
	wg.Go(func() {
		ixx = filter.ApplyParallel(pool, sobel.ApplyParallel(pool, op, smoothed, width, height, sobel.XX), width, height, BoxKernel)
	})
	wg.Go(func() {
		ixy = filter.ApplyParallel(pool, sobel.ApplyParallel(pool, op, smoothed, width, height, sobel.XY), width, height, BoxKernel)
	})
	wg.Go(func() {
		iyy = filter.ApplyParallel(pool, sobel.ApplyParallel(pool, op, smoothed, width, height, sobel.YY), width, height, BoxKernel)
	})
	wg.Wait()

	buf := make([]float64, len(smoothed))
	pool.Rows(height, func(r0, r1 int) {
		for i := r0 * width; i < r1*width; i++ {
			buf[i] = Score(ixx[i], ixy[i], iyy[i], cfg.K, cfg.Formula)
		}
	})
	return buf
}

// Score is the cornerness of one aggregated structure tensor.
func Score(ixx, ixy, iyy, k float64, f Formula) float64 {
	det := ixx*iyy - ixy*ixy
	trace := ixx + iyy
	if f == FormulaCanonical {
		return det - k*(trace*trace)
	}
	return det + k*(trace*trace)
}

// NonMaximalSuppression marks every score above max/6 with 255 and the rest
// with 0. Despite the name it is a global threshold: nCorners, gx and gy are
// accepted for compatibility and ignored.
func NonMaximalSuppression(response []float64, width, height, nCorners, gx, gy int) ([]uint8, error) {
	out, _, err := threshold(response, DefaultThresholdDivisor)
	if err != nil {
		return nil, stageErr(StageThreshold, err)
	}
	return out, nil
}

// Threshold marks every score above max/divisor with 255.
func Threshold(response []float64, divisor float64) ([]uint8, error) {
	out, _, err := threshold(response, divisor)
	return out, err
}

func threshold(response []float64, divisor float64) ([]uint8, float64, error) {
	peak, ok := maxScore(response)
	if !ok {
		return nil, 0, ErrEmptyResponse
	}
	cut := peak / divisor
	out := make([]uint8, len(response))
	for i, v := range response {
		if v > cut {
			out[i] = 255
		}
	}
	return out, peak, nil
}

// maxScore skips NaN; ok is false when nothing comparable is left.
func maxScore(response []float64) (float64, bool) {
	peak := math.Inf(-1)
	ok := false
	for _, v := range response {
		if math.IsNaN(v) {
			continue
		}
		if !ok || v > peak {
			peak = v
			ok = true
		}
	}
	return peak, ok
}

// CornerList returns the pixels set in res.Corners in row-major order.
func (res *Result) CornerList() []Corner {
	var out []Corner
	for i, v := range res.Corners {
		if v != 255 {
			continue
		}
		out = append(out, Corner{X: i % res.Width, Y: i / res.Width, Score: res.Response[i]})
	}
	return out
}
