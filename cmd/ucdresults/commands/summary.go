package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var summaryJson *bool

func init() {
	summaryJson = summaryCmd.Flags().Bool("json", false, "Print the summary as json.")
	rootCmd.AddCommand(summaryCmd)
}

var summaryCmd = &cobra.Command{
	Use:   "summary [--json]",
	Short: "Lists the results summary without visiting any detail report.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := readConfig(cmd)
		if err != nil {
			return err
		}
		creds, err := cfg.credentials()
		if err != nil {
			return err
		}
		scraper, err := cfg.scraper()
		if err != nil {
			return err
		}

		rows, err := scraper.ScrapeSummary(cmd.Context(), creds)
		if err != nil {
			return fmt.Errorf("scrape summary: %w", err)
		}
		if *summaryJson {
			return writeJson("", rows)
		}
		printSummary(rows)
		return nil
	},
}
