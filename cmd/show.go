package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/andresmejia3/harris/internal/harris"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var showJSON bool

var showCmd = &cobra.Command{
	Use:         "show <detection-id>",
	Short:       "Print the corners of a stored detection",
	Args:        cobra.ExactArgs(1),
	Annotations: map[string]string{annotationDB: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid detection ID %q: %w", args[0], err)
		}
		corners, err := DB.DetectionCorners(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("failed to load corners: %w", err)
		}
		return printCorners(os.Stdout, corners, showJSON)
	},
}

func init() {
	showCmd.Flags().BoolVar(&showJSON, "json", false, "Print corners as JSON")
	rootCmd.AddCommand(showCmd)
}

func printCorners(out io.Writer, corners []harris.Corner, asJSON bool) error {
	if asJSON {
		if corners == nil {
			corners = []harris.Corner{}
		}
		return json.NewEncoder(out).Encode(corners)
	}
	if len(corners) == 0 {
		fmt.Fprintln(out, "No corners stored for this detection.")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "X\tY\tSCORE")
	for _, c := range corners {
		fmt.Fprintf(w, "%d\t%d\t%.6g\n", c.X, c.Y, c.Score)
	}
	return w.Flush()
}
