package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mr1hm/go-weather-alerts/internal/config"
	"github.com/mr1hm/go-weather-alerts/internal/ingestion"
	"github.com/mr1hm/go-weather-alerts/internal/logging"
	"github.com/mr1hm/go-weather-alerts/internal/nws"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate and probe each configured sensor once",
	Long: `Check derives the zone and county codes for every entry in SENSORS and
probes the weather.gov feed for each zone. It prints one line per sensor and
exits non-zero if any sensor would fail setup.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		logger := logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

		client := nws.NewClient(nws.NewHTTPClient(cfg.NWS.RetryMax, logger), cfg.NWS.BaseURL, cfg.NWS.UserAgent)
		return check(cmd.Context(), cmd.OutOrStdout(), client, cfg)
	},
}

func check(ctx context.Context, out io.Writer, p ingestion.Prober, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}

	failed := 0
	for _, sc := range cfg.Sensors {
		input := fmt.Sprintf("%s:%s:%s", sc.State, sc.Zone, sc.County)

		ident, err := ingestion.Setup(ctx, p, sc, cfg.NWS.ProbeTimeout, nil)
		if err != nil {
			failed++
			verdict := "retry later"
			if !ingestion.Retryable(err) {
				verdict = "fix configuration"
			}
			fmt.Fprintf(out, "FAIL  %-16s %v (%s)\n", input, err, verdict)
			continue
		}
		fmt.Fprintf(out, "ok    %-16s %s\n", input, ident.FeedID)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d sensors failed", failed, len(cfg.Sensors))
	}
	return nil
}
