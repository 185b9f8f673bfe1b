package runner

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lookout-dev/lookout/internal/analytics"
	"github.com/lookout-dev/lookout/internal/engine"
	"github.com/lookout-dev/lookout/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

type fakePublisher struct {
	mu       sync.Mutex
	calls    int
	failures int  // first N calls fail
	zeroRows bool // report zero accepted rows instead of erroring
	records  []analytics.ProbeRecord
}

func (p *fakePublisher) Publish(_ context.Context, record analytics.ProbeRecord) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls++

	if p.calls <= p.failures {
		if p.zeroRows {
			return 0, nil
		}
		return 0, errors.New("ingest unavailable")
	}

	p.records = append(p.records, record)
	return 1, nil
}

type fakeUpdater struct {
	mu      sync.Mutex
	updates []engine.StatusUpdate
}

func (u *fakeUpdater) UpdateStatus(_ context.Context, update engine.StatusUpdate) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.updates = append(u.updates, update)
	return nil
}

type fakeCheckStore struct {
	mu     sync.Mutex
	checks []models.MonitorCheck
}

func (s *fakeCheckStore) Record(_ context.Context, check models.MonitorCheck) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks = append(s.checks, check)
	return nil
}

func httpMonitor(url string, status string) models.Monitor {
	monitor := models.Monitor{
		WorkspaceID: 3,
		Name:        "api",
		JobKind:     "http",
		Status:      status,
		Regions:     []string{"ams"},
		Config:      datatypes.JSON(`{"url":"` + url + `","method":"GET","timeout":5}`),
	}
	monitor.ID = 1
	return monitor
}

func TestRunTickHealthyTarget(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	publisher := &fakePublisher{}
	updater := &fakeUpdater{}
	checks := &fakeCheckStore{}
	r := New(publisher, updater, checks, zap.NewNop())

	monitor := httpMonitor(server.URL, models.MonitorStatusActive)

	require.NoError(t, r.RunTick(context.Background(), monitor, "ams", time.Now()))

	require.Len(t, publisher.records, 1)
	assert.Equal(t, models.MonitorStatusActive, publisher.records[0].Status)
	require.Len(t, updater.updates, 1, "every tick reports its classification")
	assert.Equal(t, models.MonitorStatusActive, updater.updates[0].Status)
	require.Len(t, checks.checks, 1)
	assert.Equal(t, "ams", checks.checks[0].Region)
}

func TestRunTickAssertionFailureBecomesErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	publisher := &fakePublisher{}
	updater := &fakeUpdater{}
	r := New(publisher, updater, &fakeCheckStore{}, zap.NewNop())

	monitor := httpMonitor(server.URL, models.MonitorStatusActive)
	monitor.Assertions = datatypes.JSON(`[{"kind":"status","compare":"eq","target":200}]`)

	require.NoError(t, r.RunTick(context.Background(), monitor, "ams", time.Now()),
		"an unhealthy target is a classification, not a tick failure")

	require.Len(t, publisher.records, 1)
	assert.Equal(t, models.MonitorStatusError, publisher.records[0].Status)
	assert.Contains(t, publisher.records[0].Message, "500")

	require.Len(t, updater.updates, 1)
	assert.Equal(t, models.MonitorStatusError, updater.updates[0].Status)
	assert.Equal(t, 500, updater.updates[0].StatusCode)
}

func TestRunTickUnreachableTargetClassifiesError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close() // connection refused from here on

	publisher := &fakePublisher{}
	updater := &fakeUpdater{}
	r := New(publisher, updater, &fakeCheckStore{}, zap.NewNop())

	monitor := httpMonitor(url, models.MonitorStatusActive)

	require.NoError(t, r.RunTick(context.Background(), monitor, "ams", time.Now()))

	require.Len(t, publisher.records, 1)
	assert.Equal(t, models.MonitorStatusError, publisher.records[0].Status)
	require.Len(t, updater.updates, 1)
}

func TestRunTickPublishRetriesExactlyOnce(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	publisher := &fakePublisher{failures: 1}
	r := New(publisher, &fakeUpdater{}, &fakeCheckStore{}, zap.NewNop())

	require.NoError(t, r.RunTick(context.Background(), httpMonitor(server.URL, models.MonitorStatusActive), "ams", time.Now()))
	assert.Equal(t, 2, publisher.calls, "one attempt plus one retry")
}

func TestRunTickPublishFailureAfterRetrySurfaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	publisher := &fakePublisher{failures: 2}
	updater := &fakeUpdater{}
	r := New(publisher, updater, &fakeCheckStore{}, zap.NewNop())

	err := r.RunTick(context.Background(), httpMonitor(server.URL, models.MonitorStatusActive), "ams", time.Now())
	require.Error(t, err)
	assert.Equal(t, 2, publisher.calls, "exactly two attempts, never more")
	assert.Empty(t, updater.updates, "failed ticks do not reach the status-update path")
}

func TestRunTickZeroAcceptedRowsIsAFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	publisher := &fakePublisher{failures: 2, zeroRows: true}
	r := New(publisher, &fakeUpdater{}, &fakeCheckStore{}, zap.NewNop())

	err := r.RunTick(context.Background(), httpMonitor(server.URL, models.MonitorStatusActive), "ams", time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "zero rows")
}

func TestRunTickDegradedThreshold(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(30 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	publisher := &fakePublisher{}
	updater := &fakeUpdater{}
	r := New(publisher, updater, &fakeCheckStore{}, zap.NewNop())

	monitor := httpMonitor(server.URL, models.MonitorStatusActive)
	monitor.DegradedAfterMs = 1

	require.NoError(t, r.RunTick(context.Background(), monitor, "ams", time.Now()))

	require.Len(t, updater.updates, 1)
	assert.Equal(t, models.MonitorStatusDegraded, updater.updates[0].Status)
	assert.Greater(t, updater.updates[0].LatencyMs, int64(0), "latency recorded with the transition")
}

func TestRunTickRecoveryAfterOutageReachesEngine(t *testing.T) {
	var failing atomic.Bool
	failing.Store(true)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if failing.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	publisher := &fakePublisher{}
	updater := &fakeUpdater{}
	r := New(publisher, updater, &fakeCheckStore{}, zap.NewNop())

	// The scheduler hands the runner the same monitor snapshot on every
	// tick; the snapshot still says active after the outage, and recovery
	// must reach the engine regardless.
	monitor := httpMonitor(server.URL, models.MonitorStatusActive)
	monitor.Assertions = datatypes.JSON(`[{"kind":"status","compare":"eq","target":200}]`)

	require.NoError(t, r.RunTick(context.Background(), monitor, "ams", time.Now()))

	failing.Store(false)

	require.NoError(t, r.RunTick(context.Background(), monitor, "ams", time.Now()))

	require.Len(t, updater.updates, 2)
	assert.Equal(t, models.MonitorStatusError, updater.updates[0].Status)
	assert.Equal(t, models.MonitorStatusActive, updater.updates[1].Status)
}

func TestRunTickRecordsLatencyOnFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	publisher := &fakePublisher{}
	r := New(publisher, &fakeUpdater{}, &fakeCheckStore{}, zap.NewNop())

	require.NoError(t, r.RunTick(context.Background(), httpMonitor(url, models.MonitorStatusActive), "ams", time.Now()))

	require.Len(t, publisher.records, 1)
	assert.GreaterOrEqual(t, publisher.records[0].LatencyMs, int64(0))
}
