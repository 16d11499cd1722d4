package ingestion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mr1hm/go-weather-alerts/internal/config"
	"github.com/mr1hm/go-weather-alerts/internal/nws"
	"github.com/mr1hm/go-weather-alerts/internal/observability"
	"github.com/mr1hm/go-weather-alerts/internal/zone"
)

// ErrNotReady wraps every setup failure. Use Retryable to tell bad
// configuration apart from a feed that may come back.
var ErrNotReady = errors.New("sensor not ready")

// Prober is the subset of *nws.Client needed at setup.
type Prober interface {
	Probe(ctx context.Context, zoneCode string) error
}

// Setup validates the configured identifiers and probes the zone feed once.
// The county code is not probed separately.
func Setup(ctx context.Context, p Prober, cfg config.SensorConfig, timeout time.Duration, metrics *observability.Metrics) (zone.Identifier, error) {
	id, err := zone.New(cfg.State, cfg.Zone, cfg.County)
	if err != nil {
		return zone.Identifier{}, fmt.Errorf("%w: %w", ErrNotReady, err)
	}

	if timeout <= 0 {
		timeout = nws.ProbeTimeout
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err = p.Probe(probeCtx, id.ZoneCode)
	if metrics != nil {
		metrics.Probes.WithLabelValues(probeOutcome(err)).Inc()
	}
	if err != nil {
		return zone.Identifier{}, fmt.Errorf("%w: %w", ErrNotReady, err)
	}
	return id, nil
}

// Retryable reports whether a setup failure may succeed on a later attempt.
// Malformed state, zone or county input never will.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, zone.ErrInvalidState),
		errors.Is(err, zone.ErrInvalidZone),
		errors.Is(err, zone.ErrInvalidCounty):
		return false
	}
	return true
}

func probeOutcome(err error) string {
	switch {
	case err == nil:
		return observability.OutcomeSuccess
	case errors.Is(err, nws.ErrInvalidFeed):
		return observability.OutcomeInvalid
	case errors.Is(err, nws.ErrTimeout):
		return observability.OutcomeTimeout
	default:
		return observability.OutcomeError
	}
}
