package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/rasterfilter/internal/filter"
)

var filtersCmd = &cobra.Command{
	Use:   "filters",
	Short: "List the available filter kinds",
	RunE:  runFilters,
}

func init() {
	rootCmd.AddCommand(filtersCmd)
}

// kindUsage names the flag that parameterizes each filter kind.
func kindUsage(k filter.Kind) string {
	switch k {
	case filter.Brightness, filter.Contrast, filter.Saturation:
		return "--adjustment (-100..100)"
	case filter.HueRotate:
		return "--rotation (-360..360)"
	case filter.Grayscale, filter.Invert:
		return "(no parameters)"
	case filter.Sepia:
		return "--intensity (0..100)"
	case filter.Temperature:
		return "--temperature (-100..100)"
	case filter.Blur:
		return "--radius (0..100)"
	case filter.Sharpen:
		return "--strength (0..100)"
	}
	return ""
}

func runFilters(cmd *cobra.Command, args []string) error {
	for _, k := range filter.Kinds() {
		fmt.Fprintf(cmd.OutOrStdout(), "%-12s %s\n", k.String(), kindUsage(k))
	}
	return nil
}
