package worker

import (
	"context"
	"fmt"

	"github.com/andresmejia3/harris/internal/harris"
	"github.com/andresmejia3/harris/internal/imageio"
	"github.com/andresmejia3/harris/internal/types"
	"github.com/andresmejia3/harris/internal/utils"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Engine runs one detection at a time. Engines share a pipeline, and with
// it the row pool, so N engines never oversubscribe the machine.
type Engine struct {
	ID       int
	Pipeline *harris.Pipeline
	Log      *zap.Logger
}

// NewEngine returns an engine bound to p. log may be nil.
func NewEngine(id int, p *harris.Pipeline, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{ID: id, Pipeline: p, Log: log.With(zap.Int("engine", id))}
}

// Process decodes and scores a single image. Failures are reported on the
// result so a bad file never stalls the caller's reorder buffer.
func (e *Engine) Process(task types.ImageTask) types.DetectResult {
	out := types.DetectResult{Index: task.Index, Path: task.Path}

	id, err := utils.GenerateImageID(task.Path)
	if err != nil {
		out.Err = fmt.Errorf("failed to generate image ID: %w", err)
		return out
	}
	out.ImageID = id

	img, err := imageio.Load(task.Path)
	if err != nil {
		out.Err = err
		return out
	}

	res, err := e.Pipeline.Run(img.Pix, img.Width, img.Height)
	if err != nil {
		out.Err = err
		return out
	}
	out.Result = res

	e.Log.Debug("image processed",
		zap.String("path", task.Path),
		zap.Int("width", img.Width),
		zap.Int("height", img.Height),
		zap.Int("corners", res.Count),
		zap.Float64("max", res.Max))
	return out
}

// Run starts n engines reading from tasks until it is closed or ctx ends.
// results is not closed; the caller does that once Run returns.
func Run(ctx context.Context, n int, p *harris.Pipeline, log *zap.Logger, tasks <-chan types.ImageTask, results chan<- types.DetectResult) error {
	if n < 1 {
		n = 1
	}
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		e := NewEngine(i, p, log)
		g.Go(func() error {
			for {
				if err := ctx.Err(); err != nil {
					return err
				}
				select {
				case <-ctx.Done():
					return ctx.Err()
				case task, ok := <-tasks:
					if !ok {
						return nil
					}
					res := e.Process(task)
					if res.Err != nil {
						e.Log.Warn("image failed", zap.String("path", task.Path), zap.Error(res.Err))
					}
					select {
					case results <- res:
					case <-ctx.Done():
						return ctx.Err()
					}
				}
			}
		})
	}
	return g.Wait()
}
