package cmd

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/andresmejia3/harris/internal/store"
	"github.com/spf13/cobra"
)

var listLimit int

var listCmd = &cobra.Command{
	Use:         "list",
	Short:       "List stored detections, newest first",
	Annotations: map[string]string{annotationDB: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		dets, err := DB.ListDetections(cmd.Context(), listLimit)
		if err != nil {
			return fmt.Errorf("failed to list detections: %w", err)
		}
		printDetections(os.Stdout, dets)
		return nil
	},
}

func init() {
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 50, "Maximum rows (0 = all)")
	rootCmd.AddCommand(listCmd)
}

func printDetections(out io.Writer, dets []store.Detection) {
	if len(dets) == 0 {
		fmt.Fprintln(out, "No detections found in database.")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tIMAGE\tSIZE\tKERNEL\tK\tFORMULA\tCORNERS\tMAX RESPONSE\tCREATED")
	fmt.Fprintln(w, "--\t-----\t----\t------\t-\t-------\t-------\t------------\t-------")

	for _, d := range dets {
		fmt.Fprintf(w, "%s\t%s\t%dx%d\t%dx%d\t%g\t%s\t%d\t%.6g\t%s\n",
			d.ID, d.Path, d.Width, d.Height, d.KernelSize, d.KernelSize, d.K, d.Formula,
			d.CornerCount, d.MaxResponse, d.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	w.Flush()
}
