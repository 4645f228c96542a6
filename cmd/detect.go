package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/andresmejia3/harris/internal/config"
	"github.com/andresmejia3/harris/internal/harris"
	"github.com/andresmejia3/harris/internal/imageio"
	"github.com/andresmejia3/harris/internal/report"
	"github.com/andresmejia3/harris/internal/store"
	"github.com/andresmejia3/harris/internal/types"
	"github.com/andresmejia3/harris/internal/utils"
	"github.com/andresmejia3/harris/internal/worker"
	"github.com/andresmejia3/harris/internal/workerpool"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var detectOpts Options

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Detect corners in an image, a directory or a glob",
	Long: `Runs the Harris detector and writes a 0/255 corner map per image.

A directory or glob starts a batch: images are spread over --engines
detection engines while each engine splits rows over --workers goroutines.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := mergeFlags(cmd, detectOpts, *Cfg)
		if err != nil {
			return err
		}
		return runDetect(cmd.Context(), detectOpts, cfg, DB, os.Stdout)
	},
}

func init() {
	addDetectorFlags(detectCmd, &detectOpts)
	detectCmd.Flags().StringVarP(&detectOpts.OutputDir, "output", "o", Cfg.Output.Dir, "Directory for corner maps")
	detectCmd.Flags().StringVarP(&detectOpts.Format, "format", "f", Cfg.Output.Format, "Corner map format: png, bmp, tiff, tif, jpg, jpeg")
	detectCmd.Flags().IntVarP(&detectOpts.NumEngines, "engines", "e", Cfg.Engines, "Number of images processed in parallel")
	detectCmd.Flags().BoolVar(&detectOpts.JSON, "json", false, "Print results as JSON on stdout")
	detectCmd.Flags().BoolVar(&detectOpts.Persist, "persist", false, "Store detections in PostgreSQL")
	detectCmd.Flags().BoolVar(&detectOpts.Chart, "chart", false, "Also write an HTML corner chart next to each map")

	detectCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(detectCmd)
}

// addDetectorFlags registers the flags shared by every command that runs the pipeline.
func addDetectorFlags(cmd *cobra.Command, opts *Options) {
	cmd.Flags().StringVarP(&opts.InputPath, "input", "i", "", "Image file, directory or glob")
	cmd.Flags().StringVarP(&opts.Size, "size", "s", Cfg.Detector.Size, "Derivative kernel size: 3 or 5")
	cmd.Flags().Float64Var(&opts.K, "k", Cfg.Detector.K, "Harris sensitivity")
	cmd.Flags().Float64VarP(&opts.Divisor, "divisor", "t", Cfg.Detector.ThresholdDivisor, "Keep scores above max/divisor")
	cmd.Flags().BoolVar(&opts.Canonical, "canonical", false, "Score with det - k*trace^2 instead of det + k*trace^2 (--canonical=false forces compat)")
	cmd.Flags().IntVarP(&opts.Workers, "workers", "w", Cfg.Workers, "Row workers per image (0 = GOMAXPROCS)")
}

// mergeFlags layers explicitly set flags over the file configuration.
func mergeFlags(cmd *cobra.Command, opts Options, cfg config.Config) (config.Config, error) {
	changed := cmd.Flags().Changed
	if changed("size") {
		cfg.Detector.Size = opts.Size
	}
	if changed("k") {
		cfg.Detector.K = opts.K
	}
	if changed("divisor") {
		cfg.Detector.ThresholdDivisor = opts.Divisor
	}
	if changed("canonical") {
		cfg.Detector.Formula = harris.FormulaCompat.String()
		if opts.Canonical {
			cfg.Detector.Formula = harris.FormulaCanonical.String()
		}
	}
	if changed("workers") {
		cfg.Workers = opts.Workers
	}
	if changed("engines") {
		cfg.Engines = opts.NumEngines
	}
	if changed("output") {
		cfg.Output.Dir = opts.OutputDir
	}
	if changed("format") {
		cfg.Output.Format = strings.ToLower(strings.TrimPrefix(opts.Format, "."))
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// runDetect orchestrates a detection run: input expansion, the engine pool,
// ordered aggregation, persistence and the final report.
func runDetect(ctx context.Context, opts Options, cfg config.Config, db *store.Store, stdout io.Writer) error {
	if opts.InputPath == "" {
		return fmt.Errorf("--input is required")
	}
	paths, err := utils.CollectImages(opts.InputPath)
	if err != nil {
		return err
	}
	hc, err := cfg.Harris()
	if err != nil {
		return err
	}

	pool := workerpool.New(cfg.Workers)
	defer pool.Close()
	pipeline, err := harris.New(hc, pool)
	if err != nil {
		return err
	}

	engines := min(cfg.Engines, len(paths))
	fmt.Fprintf(os.Stderr, "🖼️  Found %d image(s)\n", len(paths))
	fmt.Fprintf(os.Stderr, "⚙️  Spawning %d Detection Engine(s) x %d row worker(s)...\n", engines, pool.Size())
	Log.Debug("detect started",
		zap.String("input", opts.InputPath),
		zap.Stringer("size", hc.Size),
		zap.Float64("k", hc.K),
		zap.Float64("divisor", hc.ThresholdDivisor),
		zap.Stringer("formula", hc.Formula))

	bar := progressbar.NewOptions(len(paths),
		progressbar.OptionSetDescription("🔍 Harris Detecting"),
		progressbar.OptionSetWriter(os.Stderr), // Write bar to Stderr
		progressbar.OptionShowCount(),
		progressbar.OptionSetVisibility(len(paths) > 1),
	)

	tasks := make(chan types.ImageTask, engines)
	results := make(chan types.DetectResult, engines*2)
	g, gctx := errgroup.WithContext(ctx)

	// Producer
	g.Go(func() error {
		defer close(tasks)
		for i, path := range paths {
			select {
			case tasks <- types.ImageTask{Index: i, Path: path}:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	// Engine pool
	g.Go(func() error {
		defer close(results)
		return worker.Run(gctx, engines, pipeline, Log, tasks, results)
	})

	// Aggregator. Must run concurrently to prevent deadlock on results.
	var summaries []types.DetectionSummary
	failed := 0
	g.Go(func() error {
		return reorder(results, func(r types.DetectResult) error {
			bar.Add(1)
			s, err := handleResult(gctx, r, opts, cfg, hc, db)
			if err != nil {
				return err
			}
			if s.Error != "" {
				failed++
				fmt.Fprintf(os.Stderr, "\n⚠️  Skipped %s: %s\n", r.Path, s.Error)
			}
			summaries = append(summaries, s)
			return nil
		})
	})

	if err := g.Wait(); err != nil {
		return err
	}
	bar.Finish()

	if opts.JSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summaries); err != nil {
			return err
		}
	} else {
		printSummary(stdout, summaries)
	}

	fmt.Fprintf(os.Stderr, "\n🏁 Detection Complete. Processed %d image(s), %d failed.\n", len(paths), failed)
	if failed > 0 {
		return fmt.Errorf("%d of %d images failed", failed, len(paths))
	}
	return nil
}

// reorder hands results to fn in input order (engine 2 might finish before engine 1).
func reorder(results <-chan types.DetectResult, fn func(types.DetectResult) error) error {
	buffer := make(map[int]types.DetectResult)
	next := 0
	for res := range results {
		buffer[res.Index] = res
		for {
			r, ok := buffer[next]
			if !ok {
				break
			}
			delete(buffer, next)
			if err := fn(r); err != nil {
				return err
			}
			next++
		}
	}
	if len(buffer) > 0 {
		return fmt.Errorf("%d result(s) never became contiguous (next index %d)", len(buffer), next)
	}
	return nil
}

// handleResult writes the outputs of one image. A per-image failure is
// recorded in the summary; only output and database errors abort the run.
func handleResult(ctx context.Context, r types.DetectResult, opts Options, cfg config.Config, hc harris.Config, db *store.Store) (types.DetectionSummary, error) {
	s := types.DetectionSummary{Path: r.Path, ImageID: r.ImageID}
	if r.Err != nil {
		s.Error = r.Err.Error()
		return s, nil
	}
	res := r.Result
	s.Width, s.Height = res.Width, res.Height
	s.MaxResponse = res.Max
	s.CornerCount = res.Count
	if opts.JSON {
		s.Corners = res.CornerList()
	}

	out := utils.OutputPath(cfg.Output.Dir, r.Path, cfg.Output.Format)
	if err := imageio.Save(out, res.Corners, res.Width, res.Height); err != nil {
		return s, fmt.Errorf("failed to write corner map for %s: %w", r.Path, err)
	}
	s.Output = out

	if opts.Chart {
		chartPath := strings.TrimSuffix(out, filepath.Ext(out)) + ".html"
		if err := writeChart(chartPath, res, filepath.Base(r.Path)); err != nil {
			return s, err
		}
	}

	if opts.Persist && db != nil {
		if err := db.EnsureImage(ctx, r.ImageID, r.Path, res.Width, res.Height); err != nil {
			return s, fmt.Errorf("failed to register image %s: %w", r.Path, err)
		}
		id, err := db.InsertDetection(ctx, r.ImageID, hc, res)
		if err != nil {
			return s, fmt.Errorf("failed to persist detection for %s: %w", r.Path, err)
		}
		s.DetectionID = id.String()
		Log.Debug("detection stored", zap.String("path", r.Path), zap.String("detection", s.DetectionID))
	}
	return s, nil
}

func writeChart(path string, res *harris.Result, title string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := report.CornerChart(f, res, title); err != nil {
		f.Close()
		return fmt.Errorf("failed to render chart %s: %w", path, err)
	}
	return f.Close()
}

func printSummary(out io.Writer, summaries []types.DetectionSummary) {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "IMAGE\tSIZE\tCORNERS\tMAX RESPONSE\tOUTPUT")
	fmt.Fprintln(w, "-----\t----\t-------\t------------\t------")
	for _, s := range summaries {
		if s.Error != "" {
			fmt.Fprintf(w, "%s\t-\t-\t-\tERROR: %s\n", s.Path, s.Error)
			continue
		}
		fmt.Fprintf(w, "%s\t%dx%d\t%d\t%.6g\t%s\n", s.Path, s.Width, s.Height, s.CornerCount, s.MaxResponse, s.Output)
	}
	w.Flush()
}
