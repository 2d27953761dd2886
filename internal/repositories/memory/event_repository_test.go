package memory

import (
	"context"
	"testing"
	"time"

	"rescuelink/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storedEvent(id, userID string) *models.SOSEvent {
	now := time.Now()
	return &models.SOSEvent{
		ID:            id,
		UserID:        userID,
		EmergencyType: "Medical",
		Urgency:       models.UrgencyHigh,
		DeliveryState: models.DeliveryStateQueued,
		Profile:       models.ProfileSnapshot{UserID: userID, Name: "Dana Reyes"},
		NextAttemptAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestAppendIsIdempotentOnID(t *testing.T) {
	repo := NewEventRepository()
	ctx := context.Background()

	first, created, err := repo.Append(ctx, storedEvent("evt-1", "user-1"))
	require.NoError(t, err)
	assert.True(t, created)

	replay := storedEvent("evt-1", "user-1")
	replay.EmergencyType = "Fire" // replay with drifted payload still joins the original
	second, created, err := repo.Append(ctx, replay)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.EmergencyType, second.EmergencyType)
}

func TestTransitionStateIsCompareAndSwap(t *testing.T) {
	repo := NewEventRepository(storedEvent("evt-1", "user-1"))
	ctx := context.Background()

	ok, err := repo.TransitionState(ctx, "evt-1", models.DeliveryStateQueued, models.DeliveryStateSending, map[string]interface{}{
		"attempts":      1,
		"sending_since": time.Now(),
	})
	require.NoError(t, err)
	assert.True(t, ok)

	// A second actor expecting queued loses the race.
	ok, err = repo.TransitionState(ctx, "evt-1", models.DeliveryStateQueued, models.DeliveryStateSending, nil)
	require.NoError(t, err)
	assert.False(t, ok)

	stored, err := repo.GetByID(ctx, "evt-1")
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryStateSending, stored.DeliveryState)
	assert.Equal(t, 1, stored.Attempts)
	assert.NotNil(t, stored.SendingSince)
}

func TestGetActiveByUserSkipsTerminalAndArchived(t *testing.T) {
	repo := NewEventRepository()
	ctx := context.Background()

	done := storedEvent("evt-done", "user-1")
	done.DeliveryState = models.DeliveryStateAcknowledged
	_, _, err := repo.Append(ctx, done)
	require.NoError(t, err)

	active, err := repo.GetActiveByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Nil(t, active)

	_, _, err = repo.Append(ctx, storedEvent("evt-live", "user-1"))
	require.NoError(t, err)

	active, err = repo.GetActiveByUser(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "evt-live", active.ID)
}

func TestListPendingHonorsScheduleAndLimit(t *testing.T) {
	repo := NewEventRepository()
	ctx := context.Background()

	due := storedEvent("evt-due", "user-1")
	due.NextAttemptAt = time.Now().Add(-time.Minute)
	_, _, err := repo.Append(ctx, due)
	require.NoError(t, err)

	future := storedEvent("evt-future", "user-2")
	future.NextAttemptAt = time.Now().Add(time.Hour)
	_, _, err = repo.Append(ctx, future)
	require.NoError(t, err)

	sent := storedEvent("evt-sent", "user-3")
	sent.DeliveryState = models.DeliveryStateSent
	_, _, err = repo.Append(ctx, sent)
	require.NoError(t, err)

	pending, err := repo.ListPending(ctx, time.Now(), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "evt-due", pending[0].ID)

	pending, err = repo.ListPending(ctx, time.Now().Add(2*time.Hour), 1)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestMarkFallbackNotifiedFiresOnce(t *testing.T) {
	repo := NewEventRepository(storedEvent("evt-1", "user-1"))
	ctx := context.Background()

	first, err := repo.MarkFallbackNotified(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, first)

	again, err := repo.MarkFallbackNotified(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, again)
}

func TestRecoverStaleSending(t *testing.T) {
	stale := storedEvent("evt-stale", "user-1")
	stale.DeliveryState = models.DeliveryStateSending
	staleSince := time.Now().Add(-time.Minute)
	stale.SendingSince = &staleSince

	fresh := storedEvent("evt-fresh", "user-2")
	fresh.DeliveryState = models.DeliveryStateSending
	freshSince := time.Now()
	fresh.SendingSince = &freshSince

	repo := NewEventRepository(stale, fresh)
	recovered, err := repo.RecoverStaleSending(context.Background(), 30*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, recovered)

	stored, err := repo.GetByID(context.Background(), "evt-stale")
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryStateFailed, stored.DeliveryState)
	assert.Nil(t, stored.SendingSince)

	stored, err = repo.GetByID(context.Background(), "evt-fresh")
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryStateSending, stored.DeliveryState)
}

func TestSnapshotSeedsSurviveRestart(t *testing.T) {
	repo := NewEventRepository()
	ctx := context.Background()

	event := storedEvent("evt-1", "user-1")
	_, _, err := repo.Append(ctx, event)
	require.NoError(t, err)

	ok, err := repo.TransitionState(ctx, "evt-1", models.DeliveryStateQueued, models.DeliveryStateFailed, map[string]interface{}{
		"attempts":        4,
		"last_error":      "transient network error",
		"next_attempt_at": time.Now().Add(30 * time.Second),
	})
	require.NoError(t, err)
	require.True(t, ok)

	restarted := NewEventRepository(repo.Snapshot()...)
	stored, err := restarted.GetByID(ctx, "evt-1")
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryStateFailed, stored.DeliveryState)
	assert.Equal(t, 4, stored.Attempts)
	assert.Equal(t, "transient network error", stored.LastError)
}

func TestReadsReturnCopies(t *testing.T) {
	repo := NewEventRepository(storedEvent("evt-1", "user-1"))
	ctx := context.Background()

	read, err := repo.GetByID(ctx, "evt-1")
	require.NoError(t, err)
	read.DeliveryState = models.DeliveryStateAbandoned
	read.Profile.Name = "tampered"

	stored, err := repo.GetByID(ctx, "evt-1")
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryStateQueued, stored.DeliveryState)
	assert.Equal(t, "Dana Reyes", stored.Profile.Name)
}

func TestLedgerFirstAckWins(t *testing.T) {
	ledger := NewLedgerRepository()
	ctx := context.Background()

	first, err := ledger.RecordAck(ctx, "evt-1", models.AckSourceDashboard)
	require.NoError(t, err)
	assert.True(t, first)

	second, err := ledger.RecordAck(ctx, "evt-1", models.AckSourcePoll)
	require.NoError(t, err)
	assert.False(t, second)

	entry, err := ledger.GetEntry(ctx, "evt-1")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, models.AckSourceDashboard, entry.Source)

	acked, err := ledger.HasAcknowledged(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, acked)
	assert.Equal(t, 1, ledger.Len())
}
