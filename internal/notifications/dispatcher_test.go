package notifications

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lookout-dev/lookout/internal/audit"
	"github.com/lookout-dev/lookout/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

type fakeTriggerStore struct {
	mu      sync.Mutex
	claimed map[string]bool
	err     error
}

func newFakeTriggerStore() *fakeTriggerStore {
	return &fakeTriggerStore{claimed: make(map[string]bool)}
}

func (s *fakeTriggerStore) Claim(_ context.Context, monitorID uint, occurrenceID string, channelID uint, kind string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := dedupKey(monitorID, occurrenceID, channelID, kind)

	if s.claimed[key] {
		return false, nil
	}

	s.claimed[key] = true
	return true, nil
}

type fakeCache struct {
	mu   sync.Mutex
	keys map[string]bool
	err  error
}

func newFakeCache() *fakeCache {
	return &fakeCache{keys: make(map[string]bool)}
}

func (c *fakeCache) SetIfAbsent(_ context.Context, key, _ string, _ time.Duration) (bool, error) {
	if c.err != nil {
		return false, c.err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.keys[key] {
		return false, nil
	}

	c.keys[key] = true
	return true, nil
}

type fakeSender struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (s *fakeSender) record(kind string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, kind)
	return s.err
}

func (s *fakeSender) SendAlert(context.Context, models.Monitor, models.NotificationChannel, Context) error {
	return s.record(KindAlert)
}

func (s *fakeSender) SendRecovery(context.Context, models.Monitor, models.NotificationChannel, Context) error {
	return s.record(KindRecovery)
}

func (s *fakeSender) SendDegraded(context.Context, models.Monitor, models.NotificationChannel, Context) error {
	return s.record(KindDegraded)
}

type fakeSink struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (s *fakeSink) Publish(_ context.Context, entry audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func testChannel(id uint) models.NotificationChannel {
	channel := models.NotificationChannel{Kind: "test", Config: datatypes.JSON(`{}`)}
	channel.ID = id
	return channel
}

func testSetup(sender *fakeSender) (*Dispatcher, *fakeTriggerStore, *fakeCache, *fakeSink) {
	triggers := newFakeTriggerStore()
	c := newFakeCache()
	sink := &fakeSink{}

	registry := NewRegistry()
	registry.Register("test", sender)

	return NewDispatcher(triggers, c, registry, sink, zap.NewNop()), triggers, c, sink
}

func TestDispatchDeliversOncePerChannel(t *testing.T) {
	sender := &fakeSender{}
	dispatcher, _, _, sink := testSetup(sender)

	monitor := models.Monitor{Name: "api"}
	monitor.ID = 1

	channels := []models.NotificationChannel{testChannel(10), testChannel(11)}
	nctx := Context{OccurrenceID: "incident-42", Region: "ams"}

	require.NoError(t, dispatcher.Dispatch(context.Background(), KindAlert, monitor, channels, nctx))
	assert.Len(t, sender.calls, 2)
	assert.Len(t, sink.entries, 2)

	// Replaying the same occurrence is a successful no-op.
	require.NoError(t, dispatcher.Dispatch(context.Background(), KindAlert, monitor, channels, nctx))
	assert.Len(t, sender.calls, 2, "duplicate occurrence must not resend")
	assert.Len(t, sink.entries, 2, "no-op replays are not audited")
}

func TestDispatchDurableGuardHoldsWithoutCache(t *testing.T) {
	sender := &fakeSender{}
	dispatcher, _, c, _ := testSetup(sender)
	c.err = errors.New("redis down")

	monitor := models.Monitor{Name: "api"}
	monitor.ID = 1
	channels := []models.NotificationChannel{testChannel(10)}
	nctx := Context{OccurrenceID: "incident-7"}

	require.NoError(t, dispatcher.Dispatch(context.Background(), KindRecovery, monitor, channels, nctx))
	require.NoError(t, dispatcher.Dispatch(context.Background(), KindRecovery, monitor, channels, nctx))

	assert.Len(t, sender.calls, 1, "trigger row alone must still dedup")
}

func TestDispatchSameOccurrenceDifferentKind(t *testing.T) {
	sender := &fakeSender{}
	dispatcher, _, _, _ := testSetup(sender)

	monitor := models.Monitor{Name: "api"}
	monitor.ID = 1
	channels := []models.NotificationChannel{testChannel(10)}
	nctx := Context{OccurrenceID: "incident-9"}

	require.NoError(t, dispatcher.Dispatch(context.Background(), KindAlert, monitor, channels, nctx))
	require.NoError(t, dispatcher.Dispatch(context.Background(), KindRecovery, monitor, channels, nctx))

	assert.Equal(t, []string{KindAlert, KindRecovery}, sender.calls,
		"kind is part of the dedup key")
}

func TestDispatchSendFailureKeepsClaimAndAudits(t *testing.T) {
	sender := &fakeSender{err: errors.New("provider unavailable")}
	dispatcher, triggers, _, sink := testSetup(sender)

	monitor := models.Monitor{Name: "api"}
	monitor.ID = 1
	channels := []models.NotificationChannel{testChannel(10)}
	nctx := Context{OccurrenceID: "incident-3"}

	err := dispatcher.Dispatch(context.Background(), KindAlert, monitor, channels, nctx)
	require.Error(t, err, "send failures surface to the caller")

	require.Len(t, sink.entries, 1, "failed sends are still audited")
	assert.Equal(t, false, sink.entries[0].Metadata["delivered"])

	// The claim is not rolled back; a retry does not storm the provider.
	sender.err = nil
	require.NoError(t, dispatcher.Dispatch(context.Background(), KindAlert, monitor, channels, nctx))
	assert.Len(t, sender.calls, 1)
	assert.Len(t, triggers.claimed, 1)
}

func TestDispatchConcurrentCallbacksDeliverOnce(t *testing.T) {
	sender := &fakeSender{}
	dispatcher, _, _, _ := testSetup(sender)

	monitor := models.Monitor{Name: "api"}
	monitor.ID = 1
	channels := []models.NotificationChannel{testChannel(10)}
	nctx := Context{OccurrenceID: "incident-11"}

	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = dispatcher.Dispatch(context.Background(), KindAlert, monitor, channels, nctx)
		}()
	}

	wg.Wait()
	assert.Len(t, sender.calls, 1, "exactly one delivery per channel per occurrence")
}

func TestDispatchUnknownProvider(t *testing.T) {
	dispatcher, _, _, sink := testSetup(&fakeSender{})

	monitor := models.Monitor{Name: "api"}
	monitor.ID = 1

	channel := models.NotificationChannel{Kind: "carrier-pigeon", Config: datatypes.JSON(`{}`)}
	channel.ID = 20

	err := dispatcher.Dispatch(context.Background(), KindAlert, monitor, []models.NotificationChannel{channel}, Context{OccurrenceID: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no provider registered")
	assert.Len(t, sink.entries, 1, "audited even when no provider exists")
}
