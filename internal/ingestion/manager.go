package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mr1hm/go-weather-alerts/internal/broadcast"
	"github.com/mr1hm/go-weather-alerts/internal/config"
	"github.com/mr1hm/go-weather-alerts/internal/models"
	"github.com/mr1hm/go-weather-alerts/internal/observability"
	"github.com/mr1hm/go-weather-alerts/internal/repository"
	"github.com/mr1hm/go-weather-alerts/internal/worker"
)

const maxSetupRetryInterval = 5 * time.Minute

// FeedClient is satisfied by *nws.Client and shared by every sensor.
type FeedClient interface {
	Fetcher
	Prober
}

// SnapshotPublisher receives every successful snapshot.
type SnapshotPublisher interface {
	Publish(ctx context.Context, snap *models.Snapshot) error
}

// Deps are the optional collaborators of a Manager. Nil sinks are skipped.
type Deps struct {
	Repo        repository.HistoryRepository
	Broadcaster *broadcast.Broadcaster
	Publisher   SnapshotPublisher
	Metrics     *observability.Metrics
	Logger      *slog.Logger
	Clock       clockwork.Clock
}

type Manager struct {
	cfg         *config.Config
	client      FeedClient
	repo        repository.HistoryRepository
	broadcaster *broadcast.Broadcaster
	publisher   SnapshotPublisher
	metrics     *observability.Metrics
	logger      *slog.Logger
	clock       clockwork.Clock
	pool        *worker.WorkerPool
	wg          sync.WaitGroup

	mu      sync.RWMutex
	sensors map[string]*Sensor
	order   []string
}

func NewManager(cfg *config.Config, client FeedClient, deps Deps) *Manager {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	return &Manager{
		cfg:         cfg,
		client:      client,
		repo:        deps.Repo,
		broadcaster: deps.Broadcaster,
		publisher:   deps.Publisher,
		metrics:     deps.Metrics,
		logger:      deps.Logger,
		clock:       deps.Clock,
		sensors:     make(map[string]*Sensor),
	}
}

func (m *Manager) Start(ctx context.Context) {
	processor := func(ctx context.Context, job worker.Job) error {
		s := job.(*Sensor)
		defer s.release()

		m.process(ctx, s)
		return nil
	}

	m.pool = worker.NewWorkerPool(m.cfg.Worker.Count, m.cfg.Worker.BufferSize, processor)
	m.pool.Start(ctx)

	for _, sc := range m.cfg.Sensors {
		m.wg.Add(1)
		go m.runSensor(ctx, sc)
	}
}

func (m *Manager) runSensor(ctx context.Context, sc config.SensorConfig) {
	defer m.wg.Done()

	s, ok := m.setup(ctx, sc)
	if !ok {
		return
	}

	// First poll runs before the sensor is visible so it never shows up empty.
	m.process(ctx, s)
	if err := m.register(s); err != nil {
		m.logger.Error("sensor not registered", "feed_id", s.Identifier().FeedID, "error", err)
		return
	}

	interval := m.cfg.NWS.PollInterval
	m.logger.Info("starting poller", "feed_id", s.Identifier().FeedID, "interval", interval)

	ticker := m.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("poller shutting down", "feed_id", s.Identifier().FeedID)
			return
		case <-ticker.Chan():
			m.schedule(ctx, s)
		}
	}
}

// setup retries with doubling backoff while the failure is retryable.
func (m *Manager) setup(ctx context.Context, sc config.SensorConfig) (*Sensor, bool) {
	delay := m.cfg.NWS.SetupRetryInterval
	logger := m.logger.With("state", sc.State, "zone", sc.Zone, "county", sc.County)

	for {
		ident, err := Setup(ctx, m.client, sc, m.cfg.NWS.ProbeTimeout, m.metrics)
		if err == nil {
			logger.Info("sensor set up", "feed_id", ident.FeedID)
			return NewSensor(sc.Name, ident, m.client, SensorOptions{
				Logger:  m.logger,
				Metrics: m.metrics,
				Clock:   m.clock,
				Timeout: m.cfg.NWS.PollTimeout,
			}), true
		}
		if !Retryable(err) {
			logger.Error("invalid sensor configuration", "error", err)
			return nil, false
		}
		if ctx.Err() != nil {
			return nil, false
		}

		logger.Warn("sensor not ready, retrying", "error", err, "retry_in", delay)
		select {
		case <-ctx.Done():
			return nil, false
		case <-m.clock.After(delay):
		}
		delay = min(delay*2, maxSetupRetryInterval)
	}
}

// schedule queues a poll unless the sensor's previous one is still pending.
func (m *Manager) schedule(ctx context.Context, s *Sensor) {
	if !s.tryAcquire() {
		m.logger.Debug("previous poll still running, skipping tick", "feed_id", s.Identifier().FeedID)
		if m.metrics != nil {
			m.metrics.SkippedTicks.Inc()
		}
		return
	}
	if !m.pool.Submit(ctx, s) {
		s.release()
	}
}

func (m *Manager) process(ctx context.Context, s *Sensor) {
	snap, ok := s.Update(ctx)
	if !ok {
		return
	}

	if m.repo != nil {
		if err := m.repo.RecordAlerts(ctx, snap); err != nil {
			m.sinkFailed("history", snap, err)
		}
	}
	if m.broadcaster != nil {
		m.broadcaster.Broadcast(snap)
	}
	if m.publisher != nil {
		if err := m.publisher.Publish(ctx, snap); err != nil {
			m.sinkFailed("kafka", snap, err)
		}
	}
}

func (m *Manager) sinkFailed(sink string, snap *models.Snapshot, err error) {
	m.logger.Error("error delivering snapshot", "sink", sink, "feed_id", snap.FeedID, "error", err)
	if m.metrics != nil {
		m.metrics.SinkErrors.WithLabelValues(sink).Inc()
	}
}

func (m *Manager) register(s *Sensor) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sensors[s.ID()]; exists {
		return fmt.Errorf("duplicate sensor for feed %s", s.Identifier().FeedID)
	}
	m.sensors[s.ID()] = s
	m.order = append(m.order, s.ID())
	return nil
}

// Sensors returns registered sensors in registration order.
func (m *Manager) Sensors() []*Sensor {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Sensor, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.sensors[id])
	}
	return out
}

func (m *Manager) Sensor(id string) (*Sensor, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sensors[id]
	return s, ok
}

func (m *Manager) Entities() []models.Entity {
	sensors := m.Sensors()
	out := make([]models.Entity, 0, len(sensors))
	for _, s := range sensors {
		out = append(out, s.Entity())
	}
	return out
}

func (m *Manager) Entity(id string) (models.Entity, bool) {
	s, ok := m.Sensor(id)
	if !ok {
		return models.Entity{}, false
	}
	return s.Entity(), true
}

// Snapshot reports whether the sensor exists and returns its last good
// snapshot, which is nil if no poll has succeeded yet.
func (m *Manager) Snapshot(id string) (*models.Snapshot, bool) {
	s, ok := m.Sensor(id)
	if !ok {
		return nil, false
	}
	return s.Snapshot(), true
}

// Ready reports whether every configured sensor has been registered.
func (m *Manager) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sensors) == len(m.cfg.Sensors)
}

// Stop waits for the pollers to exit, then drains the pool. Cancel the
// context passed to Start first.
func (m *Manager) Stop() {
	m.wg.Wait()
	if m.pool != nil {
		m.pool.Stop()
	}
	m.logger.Info("ingestion manager stopped")
}
