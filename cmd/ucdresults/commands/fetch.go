package commands

import (
	"fmt"
	"time"
	"ucdresults-backend/internal/scrapers/ucd"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"
)

var (
	fetchServer *string
	fetchJson   *bool
)

func init() {
	fetchServer = fetchCmd.Flags().String("server", "http://localhost:8000", "The base url of a running ucdresults-server.")
	fetchJson = fetchCmd.Flags().Bool("json", false, "Print the response as json.")
	rootCmd.AddCommand(fetchCmd)
}

type fetchResponse struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Error   string                 `json:"error"`
	All     []ucd.AggregatedResult `json:"all"`
}

var fetchCmd = &cobra.Command{
	Use:   "fetch [--server <url>] [--json]",
	Short: "Requests results through a running ucdresults-server instead of a local browser.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := readConfig(cmd)
		if err != nil {
			return err
		}
		creds, err := cfg.credentials()
		if err != nil {
			return err
		}

		client := resty.New()
		client.SetBaseURL(*fetchServer)
		client.SetTimeout(time.Minute * 5)
		// not instrumented, the request body carries the password

		var body fetchResponse
		res, err := client.R().
			SetContext(cmd.Context()).
			SetBody(map[string]string{
				"username": creds.Username,
				"password": creds.Password,
			}).
			SetResult(&body).
			SetError(&body).
			Post("/api/ucd/results")
		if err != nil {
			return fmt.Errorf("reach server: %w", err)
		}
		if !body.Success {
			return fmt.Errorf("server responded %d: %s: %s", res.StatusCode(), body.Message, body.Error)
		}

		if *fetchJson {
			return writeJson("", body.All)
		}
		for _, r := range body.All {
			printResult(r)
		}
		return nil
	},
}
