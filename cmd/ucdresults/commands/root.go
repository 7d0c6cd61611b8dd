package commands

import (
	"context"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "ucdresults",
	Short:         "ucdresults is a CLI for scraping exam results from the ucd student portal.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var configPath *string

func init() {
	configPath = rootCmd.PersistentFlags().String("config", "config.json5", "The config file holding credentials and browser options.")
}

// ExecuteContext runs the command selected by the process arguments, ctx
// is cancelled on interrupt so running sessions still close their browser.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
