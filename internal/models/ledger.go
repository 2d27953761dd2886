package models

import "time"

// Ack channel sources recorded on the ledger entry.
const (
	AckSourceIngestResponse = "ingest_response"
	AckSourcePoll           = "poll"
	AckSourceDashboard      = "dashboard"
	AckSourceUserResolve    = "user_resolve"
)

// LedgerEntry marks that the ingest side confirmed receipt of an event.
// Append-only; the first ack wins and later duplicates are suppressed.
type LedgerEntry struct {
	EventID        string    `json:"event_id" bson:"event_id"`
	Source         string    `json:"source" bson:"source"`
	AcknowledgedAt time.Time `json:"acknowledged_at" bson:"acknowledged_at"`
}
