package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"trendwatch/internal/app"
	"trendwatch/internal/series"
)

var (
	showLimit int
	showFrom  string
	showTo    string
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display stored episodes",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}

		opts := app.ShowOptions{
			Limit: showLimit,
		}
		if showFrom != "" {
			from, err := parseDay(showFrom)
			if err != nil {
				return err
			}
			opts.From = &from
		}
		if showTo != "" {
			if showFrom == "" {
				return fmt.Errorf("--to requires --from")
			}
			to, err := parseDay(showTo)
			if err != nil {
				return err
			}
			opts.To = &to
		}

		return getApp().Show(cmd.Context(), opts)
	},
}

func init() {
	showCmd.Flags().IntVar(&showLimit, "limit", 20, "Number of episodes to display")
	showCmd.Flags().StringVar(&showFrom, "from", "", "First episode start date (YYYY-MM-DD)")
	showCmd.Flags().StringVar(&showTo, "to", "", "Last episode start date (YYYY-MM-DD)")
}

func parseDay(raw string) (time.Time, error) {
	t, err := series.ParseDate(raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", raw, err)
	}
	return t, nil
}
