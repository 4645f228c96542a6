package harris

import (
	"errors"
	"fmt"

	"github.com/andresmejia3/harris/internal/filter"
)

var (
	// ErrInvalidDimensions means a zero side or a buffer that is not width*height long.
	ErrInvalidDimensions = errors.New("invalid dimensions")
	// ErrInvalidKernel means a smoothing kernel cannot be centred.
	ErrInvalidKernel = filter.ErrInvalidKernel
	// ErrEmptyResponse means thresholding found no maximum to compare against.
	ErrEmptyResponse = errors.New("empty response")
)

// Stage names a step of the pipeline.
type Stage string

// The stencils are fixed and validated at package init, so only the input
// check and the threshold can fail at run time.
const (
	StageValidate  Stage = "validate"
	StageThreshold Stage = "threshold"
)

// StageError ties a failure to the stage that detected it.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("harris %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageErr(s Stage, err error) error {
	return &StageError{Stage: s, Err: err}
}

// ValidateImage checks that buf holds exactly width*height samples.
func ValidateImage(n, width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}
	if n != width*height {
		return fmt.Errorf("%w: %d samples for %dx%d", ErrInvalidDimensions, n, width, height)
	}
	return nil
}
