package commands

import (
	"fmt"
	"ucdresults-backend/internal/components/telemetry"
	"ucdresults-backend/internal/scrapers/ucd"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(probeCmd)
}

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Checks that the portal welcome page is reachable and still links to the login form.",
	RunE: func(cmd *cobra.Command, args []string) error {
		prober := ucd.NewProber(ucd.DefaultPortal(), telemetry.SlogAPI{})
		result, err := prober.Probe(cmd.Context())
		if err != nil {
			return fmt.Errorf("portal probe failed: %w", err)
		}
		fmt.Printf("%s: status %d in %s\n", result.Url, result.StatusCode, result.Latency)
		return nil
	},
}
