package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"trendwatch/internal/app"
)

var (
	fetchCountries     []string
	fetchCountriesFile string
	fetchTargets       string
	fetchDaily         bool
	fetchStart         string
	fetchEnd           string
	fetchWorkers       int
	fetchSkipExisting  bool
	fetchProgress      bool
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download fine and coarse window series",
	Long: `Download fine and coarse window series for every country.

Modes:
  default            plan windows from --start-month to --end-month
  --daily            refresh the most recent windows only
  --target-windows   recollect the rows of a missing-window ledger`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if fetchDaily && fetchTargets != "" {
			return errors.New("--daily and --target-windows are mutually exclusive")
		}
		return getApp().Fetch(cmd.Context(), app.FetchOptions{
			Countries:     fetchCountries,
			CountriesFile: fetchCountriesFile,
			TargetWindows: fetchTargets,
			Daily:         fetchDaily,
			StartMonth:    fetchStart,
			EndMonth:      fetchEnd,
			Workers:       fetchWorkers,
			SkipExisting:  fetchSkipExisting,
			Progress:      fetchProgress,
		})
	},
}

func init() {
	fetchCmd.Flags().StringSliceVar(&fetchCountries, "countries", nil, "Comma separated ISO country codes")
	fetchCmd.Flags().StringVar(&fetchCountriesFile, "countries-file", "", "CSV file with a country_code column")
	fetchCmd.Flags().StringVar(&fetchTargets, "target-windows", "", "Missing-window ledger to recollect")
	fetchCmd.Flags().BoolVar(&fetchDaily, "daily", false, "Only refresh the most recent windows")
	fetchCmd.Flags().StringVar(&fetchStart, "start-month", "", "First month (YYYY-MM, defaults to config)")
	fetchCmd.Flags().StringVar(&fetchEnd, "end-month", "", "Last month (YYYY-MM, defaults to the current month)")
	fetchCmd.Flags().IntVar(&fetchWorkers, "workers", 0, "Concurrent countries (defaults to config)")
	fetchCmd.Flags().BoolVar(&fetchSkipExisting, "skip-existing", false, "Skip windows whose artifacts already exist")
	fetchCmd.Flags().BoolVar(&fetchProgress, "progress", true, "Show a progress bar")
}
