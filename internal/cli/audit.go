package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"trendwatch/internal/app"
)

var (
	auditCountries     []string
	auditCountriesFile string
	auditStart         string
	auditEnd           string
	auditWorkers       int
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "List planned windows without artifacts and append them to the ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		missing, err := getApp().Audit(cmd.Context(), app.AuditOptions{
			Countries:     auditCountries,
			CountriesFile: auditCountriesFile,
			StartMonth:    auditStart,
			EndMonth:      auditEnd,
			Workers:       auditWorkers,
		})
		if err != nil {
			return err
		}
		for _, m := range missing {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", m.CountryCode, m.Start, m.End)
		}
		return nil
	},
}

func init() {
	auditCmd.Flags().StringSliceVar(&auditCountries, "countries", nil, "Comma separated ISO country codes")
	auditCmd.Flags().StringVar(&auditCountriesFile, "countries-file", "", "CSV file with a country_code column")
	auditCmd.Flags().StringVar(&auditStart, "start-month", "", "First month (YYYY-MM, defaults to config)")
	auditCmd.Flags().StringVar(&auditEnd, "end-month", "", "Last month (YYYY-MM, defaults to the current month)")
	auditCmd.Flags().IntVar(&auditWorkers, "workers", 0, "Concurrent countries (defaults to config)")
}
