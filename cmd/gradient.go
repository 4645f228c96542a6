package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/andresmejia3/harris/internal/config"
	"github.com/andresmejia3/harris/internal/imageio"
	"github.com/andresmejia3/harris/internal/sobel"
	"github.com/andresmejia3/harris/internal/workerpool"
	"github.com/spf13/cobra"
)

type gradientOptions struct {
	InputPath  string
	OutputPath string
	Direction  string
	Size       string
	Workers    int
}

var gradOpts gradientOptions

var gradientCmd = &cobra.Command{
	Use:   "gradient",
	Short: "Write a derivative image (x, y, xx, yy, xy or mag), rescaled to 0-255",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := gradientDefaults(cmd, gradOpts, *Cfg)
		out, err := runGradient(opts, Cfg.Output.Dir)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "✅ Wrote %s\n", out)
		return nil
	},
}

func init() {
	gradientCmd.Flags().StringVarP(&gradOpts.InputPath, "input", "i", "", "Image file")
	gradientCmd.Flags().StringVarP(&gradOpts.OutputPath, "output", "o", "", "Output file (default <output dir>/<name>_<direction>.png)")
	gradientCmd.Flags().StringVarP(&gradOpts.Direction, "direction", "d", "mag", "x, y, xx, yy, xy or mag")
	gradientCmd.Flags().StringVarP(&gradOpts.Size, "size", "s", "3", "Kernel size: 3 or 5 (default from config)")
	gradientCmd.Flags().IntVarP(&gradOpts.Workers, "workers", "w", 0, "Row workers, 0 = GOMAXPROCS (default from config)")

	gradientCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(gradientCmd)
}

// gradientDefaults fills size and workers from the config file unless the
// flags were given.
func gradientDefaults(cmd *cobra.Command, opts gradientOptions, cfg config.Config) gradientOptions {
	if !cmd.Flags().Changed("size") && cfg.Detector.Size != "" {
		opts.Size = cfg.Detector.Size
	}
	if !cmd.Flags().Changed("workers") {
		opts.Workers = cfg.Workers
	}
	return opts
}

// runGradient computes the requested derivative and returns the written path.
func runGradient(opts gradientOptions, outDir string) (string, error) {
	size, err := sobel.ParseSize(opts.Size)
	if err != nil {
		return "", err
	}
	dirName := strings.ToLower(opts.Direction)
	var dir sobel.Direction
	if dirName != "mag" {
		if dir, err = sobel.ParseDirection(dirName); err != nil {
			return "", err
		}
	}

	img, err := imageio.Load(opts.InputPath)
	if err != nil {
		return "", err
	}

	op := sobel.New(size)
	pool := workerpool.New(opts.Workers)
	defer pool.Close()

	var values []float64
	if dirName == "mag" {
		gx, gy := sobel.Gradients(pool, op, img.Pix, img.Width, img.Height)
		values = sobel.Magnitude(gx, gy)
	} else {
		values = sobel.ApplyParallel(pool, op, img.Pix, img.Width, img.Height, dir)
	}

	out := opts.OutputPath
	if out == "" {
		base := filepath.Base(opts.InputPath)
		base = strings.TrimSuffix(base, filepath.Ext(base))
		out = filepath.Join(outDir, fmt.Sprintf("%s_%s.png", base, dirName))
	}
	if err := imageio.Save(out, imageio.Rescale(values), img.Width, img.Height); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", out, err)
	}
	return out, nil
}
