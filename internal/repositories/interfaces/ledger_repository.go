package interfaces

import (
	"context"

	"rescuelink/internal/models"
)

// LedgerRepository is the append-only acknowledgment ledger. Presence of an
// entry means the ingest side confirmed receipt; the delivery worker checks
// it before every attempt and never re-sends an acknowledged event.
type LedgerRepository interface {
	// RecordAck appends an entry for the event. The first ack wins: returns
	// false when an entry already exists, without overwriting it.
	RecordAck(ctx context.Context, eventID, source string) (bool, error)

	HasAcknowledged(ctx context.Context, eventID string) (bool, error)

	GetEntry(ctx context.Context, eventID string) (*models.LedgerEntry, error)
}
