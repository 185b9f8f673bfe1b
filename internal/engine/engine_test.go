package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/lookout-dev/lookout/internal/audit"
	"github.com/lookout-dev/lookout/internal/models"
	"github.com/lookout-dev/lookout/internal/notifications"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRegionStore struct {
	mu       sync.Mutex
	statuses map[uint]map[string]string
}

func newFakeRegionStore() *fakeRegionStore {
	return &fakeRegionStore{statuses: make(map[uint]map[string]string)}
}

func (s *fakeRegionStore) Upsert(_ context.Context, monitorID uint, region, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.statuses[monitorID] == nil {
		s.statuses[monitorID] = make(map[string]string)
	}

	s.statuses[monitorID][region] = status
	return nil
}

func (s *fakeRegionStore) CountByStatus(_ context.Context, monitorID uint, regions []string, status string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0

	for _, region := range regions {
		if s.statuses[monitorID][region] == status {
			count++
		}
	}

	return count, nil
}

type fakeIncidentStore struct {
	mu        sync.Mutex
	nextID    uint
	incidents []*models.Incident
}

func newFakeIncidentStore() *fakeIncidentStore {
	return &fakeIncidentStore{nextID: 1}
}

func (s *fakeIncidentStore) openLocked(monitorID uint) *models.Incident {
	for _, incident := range s.incidents {
		if incident.MonitorID == monitorID && incident.ResolvedAt == nil {
			return incident
		}
	}
	return nil
}

func (s *fakeIncidentStore) FindOpen(_ context.Context, monitorID uint) (*models.Incident, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.openLocked(monitorID), nil
}

func (s *fakeIncidentStore) Create(_ context.Context, monitorID, workspaceID uint, startedAt time.Time) (*models.Incident, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if open := s.openLocked(monitorID); open != nil {
		return open, false, nil
	}

	incident := &models.Incident{MonitorID: monitorID, WorkspaceID: workspaceID, StartedAt: startedAt}
	incident.ID = s.nextID
	s.nextID++
	s.incidents = append(s.incidents, incident)

	return incident, true, nil
}

func (s *fakeIncidentStore) Resolve(_ context.Context, incidentID uint, resolvedAt time.Time, autoResolved bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, incident := range s.incidents {
		if incident.ID == incidentID {
			if incident.ResolvedAt != nil {
				return false, nil
			}

			at := resolvedAt
			incident.ResolvedAt = &at
			incident.AutoResolved = autoResolved
			return true, nil
		}
	}

	return false, fmt.Errorf("incident %d not found", incidentID)
}

func (s *fakeIncidentStore) openCount(monitorID uint) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0

	for _, incident := range s.incidents {
		if incident.MonitorID == monitorID && incident.ResolvedAt == nil {
			count++
		}
	}

	return count
}

type fakeMonitorStore struct {
	mu       sync.Mutex
	monitors map[uint]*models.Monitor
	channels []models.NotificationChannel
}

func newFakeMonitorStore(monitors ...*models.Monitor) *fakeMonitorStore {
	s := &fakeMonitorStore{monitors: make(map[uint]*models.Monitor)}

	for _, monitor := range monitors {
		s.monitors[monitor.ID] = monitor
	}

	channel := models.NotificationChannel{Kind: "webhook"}
	channel.ID = 1
	s.channels = []models.NotificationChannel{channel}

	return s
}

func (s *fakeMonitorStore) Find(_ context.Context, id uint) (*models.Monitor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	monitor, ok := s.monitors[id]

	if !ok {
		return nil, fmt.Errorf("monitor %d not found", id)
	}

	copied := *monitor
	return &copied, nil
}

func (s *fakeMonitorStore) UpdateStatus(_ context.Context, id uint, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.monitors[id].Status = status
	return nil
}

func (s *fakeMonitorStore) Channels(context.Context, uint) ([]models.NotificationChannel, error) {
	return s.channels, nil
}

type dispatchCall struct {
	kind          string
	occurrenceID  string
	monitorStatus string
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []dispatchCall
}

func (n *fakeNotifier) Dispatch(_ context.Context, kind string, monitor models.Monitor, _ []models.NotificationChannel, nctx notifications.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, dispatchCall{kind: kind, occurrenceID: nctx.OccurrenceID, monitorStatus: monitor.Status})
	return nil
}

func testMonitor(id uint, regions ...string) *models.Monitor {
	monitor := &models.Monitor{
		WorkspaceID: 7,
		Name:        "api",
		JobKind:     "http",
		Status:      models.MonitorStatusActive,
		Regions:     regions,
	}
	monitor.ID = id
	return monitor
}

func testEngine(monitor *models.Monitor) (*Engine, *fakeRegionStore, *fakeIncidentStore, *fakeMonitorStore, *fakeNotifier) {
	regions := newFakeRegionStore()
	incidentStore := newFakeIncidentStore()
	monitors := newFakeMonitorStore(monitor)
	notifier := &fakeNotifier{}

	e := New(regions, incidentStore, monitors, notifier, audit.NopSink{}, nil, zap.NewNop())

	return e, regions, incidentStore, monitors, notifier
}

func tick(monitorID uint, region, status string) StatusUpdate {
	return StatusUpdate{
		MonitorID:     monitorID,
		Region:        region,
		Status:        status,
		CronTimestamp: time.Now().UnixMilli(),
	}
}

func TestSingleRegionErrorOpensIncidentImmediately(t *testing.T) {
	e, _, incidentStore, monitors, notifier := testEngine(testMonitor(1, "ams"))

	require.NoError(t, e.UpdateStatus(context.Background(), tick(1, "ams", models.MonitorStatusError)))

	assert.Equal(t, models.MonitorStatusError, monitors.monitors[1].Status)
	assert.Equal(t, 1, incidentStore.openCount(1))
	require.Len(t, notifier.calls, 1)
	assert.Equal(t, notifications.KindAlert, notifier.calls[0].kind)
}

func TestDispatchCarriesPostTransitionStatus(t *testing.T) {
	e, _, _, _, notifier := testEngine(testMonitor(1, "ams"))

	require.NoError(t, e.UpdateStatus(context.Background(), tick(1, "ams", models.MonitorStatusError)))
	require.NoError(t, e.UpdateStatus(context.Background(), tick(1, "ams", models.MonitorStatusActive)))

	require.Len(t, notifier.calls, 2)
	assert.Equal(t, models.MonitorStatusError, notifier.calls[0].monitorStatus,
		"alert payloads describe the status just entered")
	assert.Equal(t, models.MonitorStatusActive, notifier.calls[1].monitorStatus,
		"recovery payloads describe the status just entered")
}

func TestQuorumBoundaryFourRegions(t *testing.T) {
	e, _, incidentStore, monitors, notifier := testEngine(testMonitor(1, "ams", "iad", "syd", "gru"))

	// One region down: below quorum, no transition.
	require.NoError(t, e.UpdateStatus(context.Background(), tick(1, "ams", models.MonitorStatusError)))
	assert.Equal(t, models.MonitorStatusActive, monitors.monitors[1].Status)
	assert.Equal(t, 0, incidentStore.openCount(1))
	assert.Empty(t, notifier.calls)

	// Two of four: exactly half counts as reached.
	require.NoError(t, e.UpdateStatus(context.Background(), tick(1, "iad", models.MonitorStatusError)))
	assert.Equal(t, models.MonitorStatusError, monitors.monitors[1].Status)
	assert.Equal(t, 1, incidentStore.openCount(1))
	require.Len(t, notifier.calls, 1)
}

func TestOneOfThreeIsNotAMajority(t *testing.T) {
	e, _, incidentStore, monitors, _ := testEngine(testMonitor(1, "ams", "iad", "syd"))

	require.NoError(t, e.UpdateStatus(context.Background(), tick(1, "ams", models.MonitorStatusError)))

	assert.Equal(t, models.MonitorStatusActive, monitors.monitors[1].Status)
	assert.Equal(t, 0, incidentStore.openCount(1))
}

func TestRepeatedTickIsIdempotent(t *testing.T) {
	e, _, incidentStore, _, notifier := testEngine(testMonitor(1, "ams"))

	update := tick(1, "ams", models.MonitorStatusError)

	require.NoError(t, e.UpdateStatus(context.Background(), update))
	require.NoError(t, e.UpdateStatus(context.Background(), update))

	assert.Equal(t, 1, incidentStore.openCount(1))
	assert.Len(t, notifier.calls, 1, "re-confirming the current status dispatches nothing")
}

func TestErrorThenActiveResolvesTheSameIncident(t *testing.T) {
	e, _, incidentStore, monitors, notifier := testEngine(testMonitor(1, "ams"))

	require.NoError(t, e.UpdateStatus(context.Background(), tick(1, "ams", models.MonitorStatusError)))

	opened, err := incidentStore.FindOpen(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, opened)
	openedID := opened.ID

	require.NoError(t, e.UpdateStatus(context.Background(), tick(1, "ams", models.MonitorStatusActive)))

	assert.Equal(t, models.MonitorStatusActive, monitors.monitors[1].Status)
	assert.Equal(t, 0, incidentStore.openCount(1))

	require.Len(t, notifier.calls, 2)
	assert.Equal(t, notifications.KindRecovery, notifier.calls[1].kind)
	assert.Equal(t, fmt.Sprintf("%d", openedID), notifier.calls[1].occurrenceID,
		"recovery occurrence is the incident that was opened")

	resolved := incidentStore.incidents[0]
	require.NotNil(t, resolved.ResolvedAt)
	assert.True(t, resolved.AutoResolved)
}

func TestDegradedResolvesIncidentOnlyAfterError(t *testing.T) {
	e, _, incidentStore, monitors, notifier := testEngine(testMonitor(1, "ams"))

	// active -> degraded: warning tier, no incident involved.
	require.NoError(t, e.UpdateStatus(context.Background(), tick(1, "ams", models.MonitorStatusDegraded)))
	assert.Equal(t, models.MonitorStatusDegraded, monitors.monitors[1].Status)
	assert.Equal(t, 0, incidentStore.openCount(1))
	require.Len(t, notifier.calls, 1)
	assert.Equal(t, notifications.KindDegraded, notifier.calls[0].kind)

	// degraded -> error -> degraded: the incident opened by the error
	// quorum is closed on the way back down to the warning tier.
	require.NoError(t, e.UpdateStatus(context.Background(), tick(1, "ams", models.MonitorStatusError)))
	assert.Equal(t, 1, incidentStore.openCount(1))

	require.NoError(t, e.UpdateStatus(context.Background(), tick(1, "ams", models.MonitorStatusDegraded)))
	assert.Equal(t, 0, incidentStore.openCount(1))
	assert.True(t, incidentStore.incidents[0].AutoResolved)
}

func TestConcurrentErrorCallbacksCreateOneIncident(t *testing.T) {
	e, _, incidentStore, _, _ := testEngine(testMonitor(1, "ams", "iad"))

	update1 := tick(1, "ams", models.MonitorStatusError)
	update2 := tick(1, "iad", models.MonitorStatusError)

	var wg sync.WaitGroup

	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = e.UpdateStatus(context.Background(), update1)
		}()
		go func() {
			defer wg.Done()
			_ = e.UpdateStatus(context.Background(), update2)
		}()
	}

	wg.Wait()

	assert.Equal(t, 1, incidentStore.openCount(1),
		"at most one open incident per monitor under concurrent callbacks")
}

func TestUnconfiguredRegionIsANoOp(t *testing.T) {
	e, _, incidentStore, monitors, notifier := testEngine(testMonitor(1, "ams"))

	// A report from a region outside the configured set writes the region
	// row but never reaches quorum evaluation.
	require.NoError(t, e.UpdateStatus(context.Background(), tick(1, "syd", models.MonitorStatusError)))

	assert.Equal(t, models.MonitorStatusActive, monitors.monitors[1].Status)
	assert.Equal(t, 0, incidentStore.openCount(1))
	assert.Empty(t, notifier.calls)
}

func TestInvalidStatusRejected(t *testing.T) {
	e, _, _, _, _ := testEngine(testMonitor(1, "ams"))

	err := e.UpdateStatus(context.Background(), tick(1, "ams", "flaky"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid status")
}

func TestNeverTwoOpenIncidents(t *testing.T) {
	e, _, incidentStore, _, _ := testEngine(testMonitor(1, "ams"))

	statuses := []string{
		models.MonitorStatusError,
		models.MonitorStatusActive,
		models.MonitorStatusError,
		models.MonitorStatusDegraded,
		models.MonitorStatusError,
		models.MonitorStatusActive,
	}

	for _, s := range statuses {
		require.NoError(t, e.UpdateStatus(context.Background(), tick(1, "ams", s)))
		assert.LessOrEqual(t, incidentStore.openCount(1), 1)
	}

	assert.Len(t, incidentStore.incidents, 3, "each error quorum opened exactly one incident")
	assert.Equal(t, 0, incidentStore.openCount(1), "final recovery resolved the last incident")
}
