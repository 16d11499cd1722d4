package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mr1hm/go-weather-alerts/internal/version"
)

var (
	envFile string
	rootCmd = &cobra.Command{
		Use:   "weatheralerts",
		Short: "Active NWS weather alerts for configured zones.",
		Long: `weatheralerts validates NWS zone and county identifiers, polls the
weather.gov active alerts feed for each configured sensor, and serves the
normalized alerts over HTTP.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "The env file to read.")

	rootCmd.AddCommand(serveCmd, checkCmd)
}

func initConfig() {
	if err := godotenv.Load(envFile); err != nil {
		slog.Debug("failed to load env file", "error", err.Error())
	}
}
