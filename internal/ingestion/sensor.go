package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mr1hm/go-weather-alerts/internal/models"
	"github.com/mr1hm/go-weather-alerts/internal/nws"
	"github.com/mr1hm/go-weather-alerts/internal/observability"
	"github.com/mr1hm/go-weather-alerts/internal/zone"
)

// Fetcher is the subset of *nws.Client a sensor polls through.
type Fetcher interface {
	ActiveAlerts(ctx context.Context, feedID string) (*nws.AlertCollection, error)
}

type SensorOptions struct {
	Logger  *slog.Logger
	Metrics *observability.Metrics
	Clock   clockwork.Clock
	Timeout time.Duration // per poll, defaults to nws.PollTimeout
}

// Sensor owns one feed identifier and the latest snapshot for it. Reads are
// safe from any goroutine; Update is not meant to run concurrently with itself.
type Sensor struct {
	id      string
	name    string
	ident   zone.Identifier
	fetcher Fetcher
	logger  *slog.Logger
	metrics *observability.Metrics
	clock   clockwork.Clock
	timeout time.Duration

	snapshot  atomic.Pointer[models.Snapshot]
	available atomic.Bool
	polled    atomic.Bool
	busy      atomic.Bool
}

func NewSensor(name string, ident zone.Identifier, fetcher Fetcher, opts SensorOptions) *Sensor {
	if name == "" {
		name = models.DefaultName
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = nws.PollTimeout
	}

	return &Sensor{
		id:      SensorID(ident.FeedID),
		name:    name,
		ident:   ident,
		fetcher: fetcher,
		logger:  opts.Logger.With("feed_id", ident.FeedID),
		metrics: opts.Metrics,
		clock:   opts.Clock,
		timeout: opts.Timeout,
	}
}

// SensorID turns a feed identifier into a URL-safe sensor ID:
// "TXZ001,TXC005" becomes "txz001_txc005".
func SensorID(feedID string) string {
	return strings.ToLower(strings.ReplaceAll(feedID, ",", "_"))
}

func (s *Sensor) ID() string                  { return s.id }
func (s *Sensor) Name() string                { return s.name }
func (s *Sensor) Identifier() zone.Identifier { return s.ident }
func (s *Sensor) Available() bool             { return s.available.Load() }

// Snapshot returns the last successful poll result, or nil before one.
func (s *Sensor) Snapshot() *models.Snapshot {
	return s.snapshot.Load()
}

// Update polls the feed once. It always returns normally: failures are
// logged, counted and reflected in availability, and the previous snapshot
// is left in place. The returned snapshot is non-nil only on success.
func (s *Sensor) Update(ctx context.Context) (snap *models.Snapshot, ok bool) {
	start := s.clock.Now()
	outcome := observability.OutcomeError

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("poll panicked", "panic", fmt.Sprint(r))
			snap, ok = nil, false
			outcome = observability.OutcomeError
		}
		s.polled.Store(true)
		s.available.Store(ok)
		s.record(outcome, start, snap)
	}()

	pollCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	data, err := s.fetcher.ActiveAlerts(pollCtx, s.ident.FeedID)
	if err != nil {
		outcome = s.logFailure(err)
		return nil, false
	}

	alerts := Normalize(data)
	snap = &models.Snapshot{
		FeedID:    s.ident.FeedID,
		StateCode: s.ident.State,
		Count:     len(alerts),
		Alerts:    alerts,
		UpdatedAt: s.clock.Now().UTC(),
	}
	s.snapshot.Store(snap)
	outcome = observability.OutcomeSuccess

	s.logger.Debug("poll complete", "count", snap.Count)
	return snap, true
}

func (s *Sensor) logFailure(err error) string {
	var statusErr *nws.StatusError
	switch {
	case errors.As(err, &statusErr):
		s.logger.Warn("Possible API outage. Currently unable to download from weather.gov",
			"status_code", statusErr.Code)
		return observability.OutcomeStatus
	case errors.Is(err, nws.ErrTimeout):
		s.logger.Warn("timeout connecting to weather.gov", "timeout", s.timeout)
		return observability.OutcomeTimeout
	default:
		s.logger.Error("poll failed", "error", err)
		return observability.OutcomeError
	}
}

func (s *Sensor) record(outcome string, start time.Time, snap *models.Snapshot) {
	if s.metrics == nil {
		return
	}
	feed := s.ident.FeedID
	s.metrics.Polls.WithLabelValues(feed, outcome).Inc()
	s.metrics.PollDuration.WithLabelValues(feed).Observe(s.clock.Since(start).Seconds())
	if snap != nil {
		s.metrics.ActiveAlerts.WithLabelValues(feed).Set(float64(snap.Count))
		s.metrics.Available.WithLabelValues(feed).Set(1)
	} else {
		s.metrics.Available.WithLabelValues(feed).Set(0)
	}
}

// Entity is the published view: state is the alert count, "unavailable"
// after a failed poll, or "unknown" before the first poll. Attributes always
// come from the last good snapshot.
func (s *Sensor) Entity() models.Entity {
	e := models.Entity{
		ID:        s.id,
		Name:      s.name,
		State:     models.StateUnknown,
		Icon:      models.DefaultIcon,
		Available: s.available.Load(),
	}

	snap := s.snapshot.Load()
	if snap != nil {
		updated := snap.UpdatedAt
		e.UpdatedAt = &updated
		e.Attributes = &models.Attributes{
			Alerts:      snap.Alerts,
			Integration: models.Integration,
			State:       s.ident.State,
			Zone:        s.ident.FeedID,
		}
	}

	switch {
	case !s.polled.Load():
	case !e.Available:
		e.State = models.StateUnavailable
	case snap != nil:
		e.State = strconv.Itoa(snap.Count)
	}
	return e
}

// tryAcquire marks the sensor busy, reporting false if a poll is already
// queued or running.
func (s *Sensor) tryAcquire() bool {
	return s.busy.CompareAndSwap(false, true)
}

func (s *Sensor) release() {
	s.busy.Store(false)
}
