package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"trendwatch/internal/app"
	"trendwatch/internal/series"
)

var (
	charSeries    string
	charCountry   string
	charPeaks     []string
	charThreshold float64
	charStrict    bool
	charOut       string
	charNoPublish bool
)

var characterizeCmd = &cobra.Command{
	Use:   "characterize",
	Short: "Measure spike boundaries and impact on a stitched series",
	RunE: func(cmd *cobra.Command, args []string) error {
		if charThreshold < 0 {
			return fmt.Errorf("--threshold must not be negative")
		}
		episodes, err := getApp().Characterize(cmd.Context(), app.CharacterizeOptions{
			SeriesPath:  charSeries,
			CountryCode: charCountry,
			Peaks:       charPeaks,
			Threshold:   charThreshold,
			Strict:      charStrict,
			OutPath:     charOut,
			NoPublish:   charNoPublish,
		})
		for _, ep := range episodes {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\tpeak %s\t%s → %s\timpact %s\tq%d\n",
				ep.CountryCode,
				ep.Info.Peak.Date.Format(series.DateLayout),
				ep.Start().Format(series.DateLayout),
				ep.End().Format(series.DateLayout),
				ep.Impact.StringFixed(1),
				ep.Quartile,
			)
		}
		return err
	},
}

func init() {
	characterizeCmd.Flags().StringVar(&charSeries, "series", "", "Stitched daily series CSV (date,value)")
	characterizeCmd.Flags().StringVar(&charCountry, "country", "", "ISO country code of the series")
	characterizeCmd.Flags().StringSliceVar(&charPeaks, "peak", nil, "Peak dates (YYYY-MM-DD); defaults to the series maximum")
	characterizeCmd.Flags().Float64Var(&charThreshold, "threshold", 0, "Baseline threshold")
	characterizeCmd.Flags().BoolVar(&charStrict, "strict", false, "Abort on the first boundary consistency fault")
	characterizeCmd.Flags().StringVar(&charOut, "out", "", "Optional CSV path for the episodes")
	characterizeCmd.Flags().BoolVar(&charNoPublish, "no-publish", false, "Do not deliver episodes to the configured sinks")
}
