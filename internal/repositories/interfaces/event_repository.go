package interfaces

import (
	"context"
	"time"

	"rescuelink/internal/models"
)

// EventRepository is the durable event store. A captured SOS must survive a
// process restart, so implementations persist before returning from Append.
type EventRepository interface {
	// Append stores the event. It is idempotent on the caller-supplied id:
	// when the id already exists nothing is written and the stored record is
	// returned with created=false.
	Append(ctx context.Context, event *models.SOSEvent) (stored *models.SOSEvent, created bool, err error)

	GetByID(ctx context.Context, id string) (*models.SOSEvent, error)

	// GetActiveByUser returns the user's non-terminal, non-archived event,
	// or nil when there is none. At most one such event exists per user.
	GetActiveByUser(ctx context.Context, userID string) (*models.SOSEvent, error)

	// ListPending returns events eligible for a delivery attempt: state
	// queued or failed with next_attempt_at at or before now.
	ListPending(ctx context.Context, now time.Time, limit int) ([]*models.SOSEvent, error)

	// ListActive returns all non-archived events for the dashboard
	// projection, newest first.
	ListActive(ctx context.Context) ([]*models.SOSEvent, error)

	// ListAckOverdue returns events stuck in sent longer than olderThan
	// without an acknowledgment.
	ListAckOverdue(ctx context.Context, olderThan time.Duration) ([]*models.SOSEvent, error)

	// TransitionState moves the event from -> to atomically, applying extra
	// field updates in the same write. Returns false when the event was not
	// in the expected state, which means another actor won the race.
	TransitionState(ctx context.Context, id string, from, to models.DeliveryState, updates map[string]interface{}) (bool, error)

	Update(ctx context.Context, id string, updates map[string]interface{}) error

	// MarkFallbackNotified flips the fallback flag exactly once. Returns
	// false when it was already set.
	MarkFallbackNotified(ctx context.Context, id string) (bool, error)

	// RecoverStaleSending sweeps sending records older than olderThan back
	// to failed so a crash mid-attempt cannot wedge an event. Returns the
	// number of recovered events.
	RecoverStaleSending(ctx context.Context, olderThan time.Duration) (int, error)

	AddAttachment(ctx context.Context, id string, attachment models.Attachment) error

	// Archive hides a terminal event from the dashboard without deleting it.
	Archive(ctx context.Context, id string) error
}
