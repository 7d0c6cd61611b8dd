package commands

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
)

var (
	scrapeJson *bool
	scrapeOut  *string
)

func init() {
	scrapeJson = scrapeCmd.Flags().Bool("json", false, "Print the results as json instead of tables.")
	scrapeOut = scrapeCmd.Flags().String("out", "", "Write the json results to a file, <dev_state>/ is expanded.")
	rootCmd.AddCommand(scrapeCmd)
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape [--json] [--out <path/to/results.json>]",
	Short: "Logs into the portal and scrapes every results report.",
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

		slog.Info("scraping using user", "username", creds.Username)

		t1 := time.Now()
		results, err := scraper.Scrape(cmd.Context(), creds)
		if err != nil {
			return fmt.Errorf("scrape results: %w", err)
		}
		slog.Info("scraping time", "seconds", time.Since(t1).Seconds(), "results", len(results))

		if *scrapeOut != "" {
			err = writeJson(*scrapeOut, results)
			if err != nil {
				return err
			}
		}
		if *scrapeJson {
			return writeJson("", results)
		}
		for _, r := range results {
			printResult(r)
		}
		return nil
	},
}
