package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/andresmejia3/harris/internal/config"
	"github.com/andresmejia3/harris/internal/harris"
	"github.com/andresmejia3/harris/internal/imageio"
	"github.com/andresmejia3/harris/internal/report"
	"github.com/andresmejia3/harris/internal/workerpool"
	"github.com/spf13/cobra"
)

var (
	statsOpts Options
	statsPlot string
	statsHTML string
	statsBins int
)

// statsReport is the JSON shape printed by `stats --json`.
type statsReport struct {
	Path        string         `json:"path"`
	Width       int            `json:"width"`
	Height      int            `json:"height"`
	Formula     string         `json:"formula"`
	Threshold   float64        `json:"threshold"`
	CornerCount int            `json:"corner_count"`
	Response    report.Summary `json:"response"`
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize the Harris response of an image",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := mergeFlags(cmd, statsOpts, *Cfg)
		if err != nil {
			return err
		}
		return runStats(statsOpts, cfg, statsPlot, statsHTML, statsBins, os.Stdout)
	},
}

func init() {
	addDetectorFlags(statsCmd, &statsOpts)
	statsCmd.Flags().StringVar(&statsPlot, "plot", "", "Write a response histogram (png, svg, pdf by extension)")
	statsCmd.Flags().StringVar(&statsHTML, "html", "", "Write an interactive corner chart")
	statsCmd.Flags().IntVar(&statsBins, "bins", 50, "Histogram bins")
	statsCmd.Flags().BoolVar(&statsOpts.JSON, "json", false, "Print the summary as JSON")

	statsCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(statsCmd)
}

func runStats(opts Options, cfg config.Config, plotPath, htmlPath string, bins int, stdout io.Writer) error {
	hc, err := cfg.Harris()
	if err != nil {
		return err
	}
	img, err := imageio.Load(opts.InputPath)
	if err != nil {
		return err
	}

	pool := workerpool.New(cfg.Workers)
	defer pool.Close()
	p, err := harris.New(hc, pool)
	if err != nil {
		return err
	}
	res, err := p.Run(img.Pix, img.Width, img.Height)
	if err != nil {
		return err
	}

	rep := statsReport{
		Path:        opts.InputPath,
		Width:       res.Width,
		Height:      res.Height,
		Formula:     hc.Formula.String(),
		Threshold:   res.Max / hc.ThresholdDivisor,
		CornerCount: res.Count,
		Response:    report.Summarize(res.Response),
	}

	if plotPath != "" {
		if err := report.Histogram(plotPath, res.Response, bins, filepath.Base(opts.InputPath)); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "📊 Histogram written to %s\n", plotPath)
	}
	if htmlPath != "" {
		if err := writeChart(htmlPath, res, filepath.Base(opts.InputPath)); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "📈 Corner chart written to %s\n", htmlPath)
	}

	if opts.JSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}

	s := rep.Response
	fmt.Fprintf(stdout, "Image:      %s (%dx%d)\n", rep.Path, rep.Width, rep.Height)
	fmt.Fprintf(stdout, "Formula:    %s\n", rep.Formula)
	fmt.Fprintf(stdout, "Corners:    %d (score > %.6g)\n", rep.CornerCount, rep.Threshold)
	fmt.Fprintf(stdout, "Range:      [%.6g, %.6g]\n", s.Min, s.Max)
	fmt.Fprintf(stdout, "Mean/StdDev: %.6g / %.6g\n", s.Mean, s.StdDev)
	fmt.Fprintf(stdout, "P50/P90/P99: %.6g / %.6g / %.6g\n", s.P50, s.P90, s.P99)
	fmt.Fprintf(stdout, "Positive:   %d of %d\n", s.Positive, s.Finite)
	return nil
}
