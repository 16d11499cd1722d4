package ingestion

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/mr1hm/go-weather-alerts/internal/broadcast"
	"github.com/mr1hm/go-weather-alerts/internal/config"
	"github.com/mr1hm/go-weather-alerts/internal/models"
	"github.com/mr1hm/go-weather-alerts/internal/nws"
	"github.com/mr1hm/go-weather-alerts/internal/observability"
	"github.com/mr1hm/go-weather-alerts/internal/repository"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// mockHistoryRepo implements repository.HistoryRepository for testing
type mockHistoryRepo struct {
	mu        sync.Mutex
	snapshots []*models.Snapshot
}

func (m *mockHistoryRepo) RecordAlerts(_ context.Context, snap *models.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots = append(m.snapshots, snap)
	return nil
}

func (m *mockHistoryRepo) GetByID(context.Context, string, string) (*repository.HistoryRecord, error) {
	return nil, nil
}

func (m *mockHistoryRepo) ListAlerts(context.Context, repository.Filter) ([]repository.HistoryRecord, error) {
	return nil, nil
}

func (m *mockHistoryRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.snapshots)
}

type mockPublisher struct {
	published atomic.Int32
	err       error
}

func (m *mockPublisher) Publish(context.Context, *models.Snapshot) error {
	m.published.Add(1)
	return m.err
}

// feedServer answers every request for a zone with the given body and
// counts requests per zone query value.
type feedServer struct {
	mu     sync.Mutex
	hits   map[string]int
	bodies map[string]string
}

func newFeedServer(t *testing.T, bodies map[string]string) (*feedServer, *nws.Client) {
	t.Helper()
	fs := &feedServer{hits: make(map[string]int), bodies: bodies}
	srv := httptest.NewServer(fs)
	t.Cleanup(srv.Close)
	return fs, nws.NewClient(srv.Client(), srv.URL, "test")
}

func (fs *feedServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	z := r.URL.Query().Get("zone")

	fs.mu.Lock()
	fs.hits[z]++
	body, ok := fs.bodies[z]
	fs.mu.Unlock()

	if !ok {
		body = `{"features": []}`
	}
	_, _ = w.Write([]byte(body))
}

func (fs *feedServer) count(z string) int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.hits[z]
}

func (fs *feedServer) setBody(z, body string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.bodies[z] = body
}

func testConfig(sensors ...config.SensorConfig) *config.Config {
	return &config.Config{
		Worker: config.WorkerConfig{
			Count:      2,
			BufferSize: 10,
		},
		NWS: config.NWSConfig{
			PollInterval:       time.Minute,
			PollTimeout:        time.Second,
			ProbeTimeout:       time.Second,
			SetupRetryInterval: 30 * time.Second,
		},
		Sensors: sensors,
	}
}

func TestManager_StartStop(t *testing.T) {
	_, client := newFeedServer(t, nil)
	mgr := NewManager(testConfig(), client, Deps{Logger: discardLogger()})

	ctx, cancel := context.WithCancel(context.Background())
	mgr.Start(ctx)

	assert.True(t, mgr.Ready(), "no sensors configured")

	cancel()
	mgr.Stop()
}

func TestManager_SetsUpAndPollsEachSensor(t *testing.T) {
	_, client := newFeedServer(t, map[string]string{
		"TXZ001,TXC005": `{"features": [{"properties": {"id": "A1"}}, {"properties": {"id": "A2"}}]}`,
	})
	cfg := testConfig(
		config.SensorConfig{Name: "Austin", State: "TX", Zone: "1", County: "5"},
		config.SensorConfig{State: "ok", Zone: "25"},
	)
	mgr := NewManager(cfg, client, Deps{Logger: discardLogger()})

	ctx, cancel := context.WithCancel(context.Background())
	mgr.Start(ctx)
	defer func() {
		cancel()
		mgr.Stop()
	}()

	require.Eventually(t, mgr.Ready, 2*time.Second, 10*time.Millisecond)

	austin, ok := mgr.Entity("txz001_txc005")
	require.True(t, ok)
	assert.Equal(t, "Austin", austin.Name)
	assert.Equal(t, "2", austin.State)
	assert.Equal(t, "A2", austin.Attributes.Alerts[0].ID)

	tulsa, ok := mgr.Entity("okz025")
	require.True(t, ok)
	assert.Equal(t, models.DefaultName, tulsa.Name)
	assert.Equal(t, "0", tulsa.State)
	assert.Equal(t, "OK", tulsa.Attributes.State)

	assert.Len(t, mgr.Entities(), 2)

	snap, ok := mgr.Snapshot("okz025")
	require.True(t, ok)
	assert.Equal(t, 0, snap.Count)

	_, ok = mgr.Entity("missing")
	assert.False(t, ok)
	_, ok = mgr.Snapshot("missing")
	assert.False(t, ok)
}

func TestManager_PollsOnEveryTick(t *testing.T) {
	fs, client := newFeedServer(t, nil)
	clock := clockwork.NewFakeClock()
	mgr := NewManager(testConfig(config.SensorConfig{State: "OK", Zone: "25"}), client,
		Deps{Logger: discardLogger(), Clock: clock})

	ctx, cancel := context.WithCancel(context.Background())
	mgr.Start(ctx)
	defer func() {
		cancel()
		mgr.Stop()
	}()

	require.Eventually(t, mgr.Ready, 2*time.Second, 10*time.Millisecond)
	// One probe plus the first poll.
	assert.Equal(t, 2, fs.count("OKZ025"))

	blockCtx, blockCancel := context.WithTimeout(ctx, 2*time.Second)
	defer blockCancel()
	require.NoError(t, clock.BlockUntilContext(blockCtx, 1))

	fs.setBody("OKZ025", `{"features": [{"properties": {"id": "B1"}}]}`)
	clock.Advance(time.Minute)

	require.Eventually(t, func() bool {
		e, _ := mgr.Entity("okz025")
		return e.State == "1"
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 3, fs.count("OKZ025"))
}

func TestManager_RetriesSetupUntilFeedIsValid(t *testing.T) {
	fs, client := newFeedServer(t, map[string]string{
		"TXZ001": `{"status": 404}`,
	})
	clock := clockwork.NewFakeClock()
	metrics := observability.NewMetricsForTesting()
	mgr := NewManager(testConfig(config.SensorConfig{State: "TX", Zone: "1"}), client,
		Deps{Logger: discardLogger(), Clock: clock, Metrics: metrics})

	ctx, cancel := context.WithCancel(context.Background())
	mgr.Start(ctx)
	defer func() {
		cancel()
		mgr.Stop()
	}()

	blockCtx, blockCancel := context.WithTimeout(ctx, 2*time.Second)
	defer blockCancel()
	require.NoError(t, clock.BlockUntilContext(blockCtx, 1))

	assert.False(t, mgr.Ready())
	assert.Equal(t, 1, fs.count("TXZ001"))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Probes.WithLabelValues(observability.OutcomeInvalid)))

	fs.setBody("TXZ001", `{"features": []}`)
	clock.Advance(30 * time.Second)

	require.Eventually(t, mgr.Ready, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Probes.WithLabelValues(observability.OutcomeSuccess)))
}

func TestManager_AbandonsInvalidConfiguration(t *testing.T) {
	fs, client := newFeedServer(t, nil)
	metrics := observability.NewMetricsForTesting()
	mgr := NewManager(testConfig(config.SensorConfig{State: "Texas", Zone: "1"}), client,
		Deps{Logger: discardLogger(), Metrics: metrics})

	ctx, cancel := context.WithCancel(context.Background())
	mgr.Start(ctx)

	// The poller goroutine exits by itself; Stop must not need the cancel.
	done := make(chan struct{})
	go func() {
		mgr.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("setup kept retrying an invalid configuration")
	}

	cancel()
	mgr.Stop()

	assert.False(t, mgr.Ready())
	assert.Empty(t, mgr.Entities())
	assert.Zero(t, fs.count("TXZ001"))
}

func TestManager_DeliversSnapshotsToSinks(t *testing.T) {
	_, client := newFeedServer(t, map[string]string{
		"TXZ001": `{"features": [{"properties": {"id": "A1"}}]}`,
	})
	repo := &mockHistoryRepo{}
	pub := &mockPublisher{err: errors.New("broker down")}
	b := broadcast.NewBroadcaster()
	metrics := observability.NewMetricsForTesting()

	subID, ch := b.Subscribe()
	defer b.Unsubscribe(subID)

	mgr := NewManager(testConfig(config.SensorConfig{State: "TX", Zone: "1"}), client, Deps{
		Repo:        repo,
		Broadcaster: b,
		Publisher:   pub,
		Metrics:     metrics,
		Logger:      discardLogger(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	mgr.Start(ctx)
	defer func() {
		cancel()
		mgr.Stop()
	}()

	select {
	case snap := <-ch:
		assert.Equal(t, "TXZ001", snap.FeedID)
		assert.Equal(t, 1, snap.Count)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for broadcast snapshot")
	}

	require.Eventually(t, mgr.Ready, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, repo.count())
	assert.Equal(t, int32(1), pub.published.Load())

	// A failing sink does not affect the sensor.
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SinkErrors.WithLabelValues("kafka")))
	e, _ := mgr.Entity("txz001")
	assert.True(t, e.Available)
	assert.Equal(t, "1", e.State)
}

func TestManager_SkipsTickWhilePollPending(t *testing.T) {
	_, client := newFeedServer(t, nil)
	metrics := observability.NewMetricsForTesting()
	mgr := NewManager(testConfig(), client, Deps{Logger: discardLogger(), Metrics: metrics})

	ctx, cancel := context.WithCancel(context.Background())
	mgr.Start(ctx)
	defer func() {
		cancel()
		mgr.Stop()
	}()

	s := newTestSensor(client, metrics)
	require.True(t, s.tryAcquire())

	mgr.schedule(ctx, s)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SkippedTicks))

	s.release()
	mgr.schedule(ctx, s)
	require.Eventually(t, func() bool { return s.Snapshot() != nil }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SkippedTicks))
}

func TestManager_GracefulShutdown(t *testing.T) {
	_, client := newFeedServer(t, nil)
	cfg := testConfig(
		config.SensorConfig{State: "TX", Zone: "1"},
		config.SensorConfig{State: "TX", Zone: "2"},
		config.SensorConfig{State: "TX", Zone: "3"},
	)
	mgr := NewManager(cfg, client, Deps{Logger: discardLogger()})

	ctx, cancel := context.WithCancel(context.Background())
	mgr.Start(ctx)

	cancel()

	done := make(chan struct{})
	go func() {
		mgr.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("manager.Stop() timed out - possible goroutine leak")
	}
}
