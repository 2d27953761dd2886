package delivery

import (
	"context"
	"sync"
	"testing"
	"time"

	"rescuelink/internal/config"
	"rescuelink/internal/models"
	"rescuelink/internal/repositories/memory"
	"rescuelink/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIngest struct {
	mu     sync.Mutex
	errs   []error
	calls  int
	alerts []AckStatus
}

func (f *fakeIngest) Submit(ctx context.Context, event *models.SOSEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.errs) == 0 {
		return nil
	}
	err := f.errs[0]
	f.errs = f.errs[1:]
	return err
}

func (f *fakeIngest) ActiveAlerts(ctx context.Context) ([]AckStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.alerts, nil
}

func (f *fakeIngest) submitCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeFallback struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeFallback) Notify(ctx context.Context, event *models.SOSEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event.ID)
	return nil
}

func (f *fakeFallback) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

type fakeNotifier struct {
	mu     sync.Mutex
	states []models.DeliveryState
}

func (f *fakeNotifier) EventStateChanged(event *models.SOSEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, event.DeliveryState)
}

func testWorkerConfig() *config.WorkerConfig {
	return &config.WorkerConfig{
		PollInterval:     time.Second,
		BatchSize:        16,
		MaxAttempts:      3,
		BackoffBase:      0, // immediate retries keep the test stepping
		BackoffCap:       0,
		BackoffJitter:    0,
		AckTimeout:       time.Minute,
		StaleSendTimeout: 5 * time.Second,
		SweepSchedule:    "@every 30s",
	}
}

func queuedEvent(id string) *models.SOSEvent {
	now := time.Now().Add(-time.Second)
	return &models.SOSEvent{
		ID:            id,
		UserID:        "user-1",
		EmergencyType: "Medical",
		Urgency:       models.UrgencyHigh,
		DeliveryState: models.DeliveryStateQueued,
		Profile: models.ProfileSnapshot{
			UserID: "user-1",
			Name:   "Dana Reyes",
			EmergencyContacts: []models.EmergencyContact{
				{Name: "Sam", Phone: "+15550001111", Relationship: "sibling"},
			},
		},
		NextAttemptAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func newTestWorker(events *memory.EventRepository, ledger *memory.LedgerRepository, client IngestClient, fallback FallbackNotifier) *Worker {
	return NewWorker(events, ledger, client, fallback, &fakeNotifier{}, testWorkerConfig(), logger.NewNop())
}

func TestWorkerDeliversOnFirstAttempt(t *testing.T) {
	events := memory.NewEventRepository(queuedEvent("evt-1"))
	ledger := memory.NewLedgerRepository()
	client := &fakeIngest{}
	fallback := &fakeFallback{}
	w := newTestWorker(events, ledger, client, fallback)

	w.DrainOnce(context.Background())

	stored, err := events.GetByID(context.Background(), "evt-1")
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryStateSent, stored.DeliveryState)
	assert.Equal(t, 1, stored.Attempts)
	assert.NotNil(t, stored.SentAt)
	assert.Nil(t, stored.SendingSince)
	assert.Equal(t, 1, client.submitCalls())
	assert.Zero(t, fallback.count())
}

func TestWorkerRetriesUntilNetworkRestored(t *testing.T) {
	events := memory.NewEventRepository(queuedEvent("evt-1"))
	ledger := memory.NewLedgerRepository()
	client := &fakeIngest{errs: []error{ErrTransientNetwork, ErrTimeout}}
	fallback := &fakeFallback{}
	w := newTestWorker(events, ledger, client, fallback)

	ctx := context.Background()
	w.DrainOnce(ctx)

	stored, err := events.GetByID(ctx, "evt-1")
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryStateFailed, stored.DeliveryState)
	assert.Equal(t, 1, stored.Attempts)
	assert.NotEmpty(t, stored.LastError)

	w.DrainOnce(ctx)
	w.DrainOnce(ctx)

	stored, err = events.GetByID(ctx, "evt-1")
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryStateSent, stored.DeliveryState)
	assert.Equal(t, 3, stored.Attempts)
	assert.Equal(t, 3, client.submitCalls())
	assert.Zero(t, fallback.count())
}

func TestWorkerAbandonsOnPermanentRejection(t *testing.T) {
	events := memory.NewEventRepository(queuedEvent("evt-1"))
	ledger := memory.NewLedgerRepository()
	client := &fakeIngest{errs: []error{ErrServerRejected}}
	fallback := &fakeFallback{}
	w := newTestWorker(events, ledger, client, fallback)

	ctx := context.Background()
	w.DrainOnce(ctx)

	stored, err := events.GetByID(ctx, "evt-1")
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryStateAbandoned, stored.DeliveryState)
	assert.Equal(t, 1, stored.Attempts)
	assert.NotNil(t, stored.AbandonedAt)
	assert.True(t, stored.FallbackNotified)
	assert.Equal(t, 1, fallback.count())

	// Terminal events never re-enter the loop.
	w.DrainOnce(ctx)
	assert.Equal(t, 1, client.submitCalls())
	assert.Equal(t, 1, fallback.count())
}

func TestWorkerAbandonsAfterAttemptsExhausted(t *testing.T) {
	events := memory.NewEventRepository(queuedEvent("evt-1"))
	ledger := memory.NewLedgerRepository()
	client := &fakeIngest{errs: []error{ErrTransientNetwork, ErrTransientNetwork, ErrTransientNetwork, ErrTransientNetwork}}
	fallback := &fakeFallback{}
	w := newTestWorker(events, ledger, client, fallback)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		w.DrainOnce(ctx)
	}

	stored, err := events.GetByID(ctx, "evt-1")
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryStateAbandoned, stored.DeliveryState)
	assert.Equal(t, 3, stored.Attempts)
	assert.Equal(t, 3, client.submitCalls())
	assert.Equal(t, 1, fallback.count(), "fallback must fire exactly once")
}

func TestWorkerShortCircuitsAcknowledgedEvent(t *testing.T) {
	events := memory.NewEventRepository(queuedEvent("evt-1"))
	ledger := memory.NewLedgerRepository()
	client := &fakeIngest{}
	fallback := &fakeFallback{}
	w := newTestWorker(events, ledger, client, fallback)

	ctx := context.Background()
	first, err := ledger.RecordAck(ctx, "evt-1", models.AckSourceDashboard)
	require.NoError(t, err)
	require.True(t, first)

	w.DrainOnce(ctx)

	stored, err := events.GetByID(ctx, "evt-1")
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryStateAcknowledged, stored.DeliveryState)
	assert.Zero(t, client.submitCalls(), "acknowledged events must not be re-sent")
}

func TestSweepRecyclesAckOverdueEvent(t *testing.T) {
	event := queuedEvent("evt-1")
	event.DeliveryState = models.DeliveryStateSent
	sentAt := time.Now().Add(-10 * time.Minute)
	event.SentAt = &sentAt
	event.Attempts = 1

	events := memory.NewEventRepository(event)
	ledger := memory.NewLedgerRepository()
	w := newTestWorker(events, ledger, &fakeIngest{}, &fakeFallback{})

	w.sweep(context.Background())

	stored, err := events.GetByID(context.Background(), "evt-1")
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryStateFailed, stored.DeliveryState)
	assert.Equal(t, "acknowledgment overdue", stored.LastError)
}

func TestSweepAbandonsAckOverdueAtMaxAttempts(t *testing.T) {
	event := queuedEvent("evt-1")
	event.DeliveryState = models.DeliveryStateSent
	sentAt := time.Now().Add(-10 * time.Minute)
	event.SentAt = &sentAt
	event.Attempts = 3

	events := memory.NewEventRepository(event)
	ledger := memory.NewLedgerRepository()
	fallback := &fakeFallback{}
	w := newTestWorker(events, ledger, &fakeIngest{}, fallback)

	w.sweep(context.Background())

	stored, err := events.GetByID(context.Background(), "evt-1")
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryStateAbandoned, stored.DeliveryState)
	assert.Equal(t, 1, fallback.count())
}

func TestSweepLeavesAcknowledgedSentEventAlone(t *testing.T) {
	event := queuedEvent("evt-1")
	event.DeliveryState = models.DeliveryStateSent
	sentAt := time.Now().Add(-10 * time.Minute)
	event.SentAt = &sentAt

	events := memory.NewEventRepository(event)
	ledger := memory.NewLedgerRepository()
	_, err := ledger.RecordAck(context.Background(), "evt-1", models.AckSourcePoll)
	require.NoError(t, err)

	w := newTestWorker(events, ledger, &fakeIngest{}, &fakeFallback{})
	w.sweep(context.Background())

	stored, err := events.GetByID(context.Background(), "evt-1")
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryStateSent, stored.DeliveryState)
}

func TestWorkerSurvivesRestartMidAttempt(t *testing.T) {
	// First process claims the event, then dies before the attempt lands.
	event := queuedEvent("evt-1")
	events := memory.NewEventRepository(event)
	ctx := context.Background()

	claimed, err := events.TransitionState(ctx, "evt-1", models.DeliveryStateQueued, models.DeliveryStateSending, map[string]interface{}{
		"attempts":      1,
		"sending_since": time.Now().Add(-time.Minute),
	})
	require.NoError(t, err)
	require.True(t, claimed)

	// Second process boots from the survivor's snapshot.
	restarted := memory.NewEventRepository(events.Snapshot()...)
	recovered, err := restarted.RecoverStaleSending(ctx, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, recovered)

	client := &fakeIngest{}
	w := newTestWorker(restarted, memory.NewLedgerRepository(), client, &fakeFallback{})
	w.DrainOnce(ctx)

	stored, err := restarted.GetByID(ctx, "evt-1")
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryStateSent, stored.DeliveryState)
	assert.Equal(t, 2, stored.Attempts)
}
