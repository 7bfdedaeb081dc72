package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/asyncdoggo/locker/internal/archiver"
)

var formatsCmd = &cobra.Command{
	Use:   "formats",
	Short: "List supported archive formats",
	Args:  cobra.NoArgs,
	RunE:  runFormats,
}

func init() {
	rootCmd.AddCommand(formatsCmd)
}

func runFormats(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FORMAT\tSUFFIX\tRESTORES AS")
	for _, f := range archiver.Formats() {
		layout := "folder contents"
		if f.Rooted() {
			layout = "<out>/<folder name>"
		}
		name := string(f)
		if cfg != nil && cfg.Archive.Format == name {
			name += " (default)"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", name, f.Suffix(), layout)
	}
	return w.Flush()
}
