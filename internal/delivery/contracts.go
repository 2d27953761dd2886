package delivery

import (
	"context"

	"rescuelink/internal/models"
)

// IngestClient is what the worker needs from the upstream ingest API.
// Submit returns nil only when the event was accepted; errors are classified
// against this package's taxonomy.
type IngestClient interface {
	Submit(ctx context.Context, event *models.SOSEvent) error
	ActiveAlerts(ctx context.Context) ([]AckStatus, error)
}

// AckStatus is one row of the ingest side's active feed, reduced to what the
// ack poller cares about.
type AckStatus struct {
	ID           string
	Acknowledged bool
}

// Acknowledger records an acknowledgment for an event. Implementations must
// be idempotent: acking an already-acknowledged or unknown event is not an
// error.
type Acknowledger interface {
	Acknowledge(ctx context.Context, eventID, source string) error
}

// FallbackNotifier fires the last-resort SMS fan-out after abandonment.
type FallbackNotifier interface {
	Notify(ctx context.Context, event *models.SOSEvent) error
}

// Notifier observes delivery state changes (dashboard stream, status push).
type Notifier interface {
	EventStateChanged(event *models.SOSEvent)
}
