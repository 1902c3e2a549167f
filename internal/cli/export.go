package cli

import (
	"github.com/spf13/cobra"

	"trendwatch/internal/app"
)

var (
	exportSeries    string
	exportCountry   string
	exportPeaks     []string
	exportThreshold float64
	exportFrom      string
	exportTo        string
	exportPNGPath   string
	exportCSVPath   string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a series as CSV and/or PNG chart with episode markers",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ExportOptions{
			SeriesPath:  exportSeries,
			CountryCode: exportCountry,
			Peaks:       exportPeaks,
			Threshold:   exportThreshold,
			PNGPath:     exportPNGPath,
			CSVPath:     exportCSVPath,
		}

		if exportFrom != "" {
			from, err := parseDay(exportFrom)
			if err != nil {
				return err
			}
			opts.From = &from
		}

		if exportTo != "" {
			to, err := parseDay(exportTo)
			if err != nil {
				return err
			}
			opts.To = &to
		}

		return getApp().Export(cmd.Context(), opts)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportSeries, "series", "", "Daily series CSV (date,value)")
	exportCmd.Flags().StringVar(&exportCountry, "country", "", "Country code used as chart title")
	exportCmd.Flags().StringSliceVar(&exportPeaks, "peak", nil, "Peak dates to mark (YYYY-MM-DD)")
	exportCmd.Flags().Float64Var(&exportThreshold, "threshold", 0, "Threshold line; enables boundary markers")
	exportCmd.Flags().StringVar(&exportFrom, "from", "", "First day (YYYY-MM-DD, inclusive)")
	exportCmd.Flags().StringVar(&exportTo, "to", "", "Last day (YYYY-MM-DD, inclusive)")
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Path to write PNG chart")
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Path to write CSV data")
}
