package commands

import (
	"fmt"
	"os"
	"ucdresults-backend/internal/browser/chrome"
	"ucdresults-backend/internal/components/telemetry"
	"ucdresults-backend/internal/scrapers/ucd"
	"ucdresults-backend/pkg/configutil"

	"github.com/spf13/cobra"
)

type Config struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	RemoteUrl string `json:"remote_url"`
	Headful   bool   `json:"headful"`
}

var (
	usernameFlag *string
	passwordFlag *string
	headfulFlag  *bool
)

func init() {
	usernameFlag = rootCmd.PersistentFlags().String("username", "", "The portal username, overrides UCD_USERNAME and the config file.")
	passwordFlag = rootCmd.PersistentFlags().String("password", "", "The portal password, overrides UCD_PASSWORD and the config file.")
	headfulFlag = rootCmd.PersistentFlags().Bool("headful", false, "Show the browser window while scraping.")
}

// readConfig layers the config file, then the environment, then flags.
func readConfig(cmd *cobra.Command) (Config, error) {
	cfg, err := configutil.ReadConfigOr(*configPath, Config{})
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if value := os.Getenv("UCD_USERNAME"); value != "" {
		cfg.Username = value
	}
	if value := os.Getenv("UCD_PASSWORD"); value != "" {
		cfg.Password = value
	}
	if cmd.Flags().Changed("username") {
		cfg.Username = *usernameFlag
	}
	if cmd.Flags().Changed("password") {
		cfg.Password = *passwordFlag
	}
	if *headfulFlag {
		cfg.Headful = true
	}
	return cfg, nil
}

func (c Config) credentials() (ucd.Credentials, error) {
	creds, err := ucd.Credentials{
		Username: c.Username,
		Password: c.Password,
	}.Validate()
	if err != nil {
		return ucd.Credentials{}, fmt.Errorf("set username and password with flags, UCD_USERNAME/UCD_PASSWORD or the config file: %w", err)
	}
	return creds, nil
}

func (c Config) scraper() (ucd.Scraper, error) {
	opts := chrome.DefaultOptions()
	opts.Headless = !c.Headful
	opts.RemoteUrl = c.RemoteUrl

	tel := telemetry.SlogAPI{}
	scraper, err := ucd.NewScraper(chrome.NewLauncher(opts, tel), ucd.DefaultOptions(), tel)
	if err != nil {
		return ucd.Scraper{}, fmt.Errorf("initialize scraper: %w", err)
	}
	return scraper, nil
}
