package models

import (
	"time"
)

type Urgency string

const (
	UrgencyCritical Urgency = "critical"
	UrgencyHigh     Urgency = "high"
	UrgencyMedium   Urgency = "medium"
	UrgencyLow      Urgency = "low"
)

func (u Urgency) Valid() bool {
	switch u {
	case UrgencyCritical, UrgencyHigh, UrgencyMedium, UrgencyLow:
		return true
	}
	return false
}

type DeliveryState string

const (
	DeliveryStateQueued       DeliveryState = "queued"
	DeliveryStateSending      DeliveryState = "sending"
	DeliveryStateSent         DeliveryState = "sent"
	DeliveryStateAcknowledged DeliveryState = "acknowledged"
	DeliveryStateFailed       DeliveryState = "failed"
	DeliveryStateAbandoned    DeliveryState = "abandoned"
)

// Terminal reports whether no further delivery work happens for this state.
func (s DeliveryState) Terminal() bool {
	return s == DeliveryStateAcknowledged || s == DeliveryStateAbandoned
}

var deliveryTransitions = map[DeliveryState][]DeliveryState{
	DeliveryStateQueued:  {DeliveryStateSending, DeliveryStateAcknowledged, DeliveryStateAbandoned},
	DeliveryStateSending: {DeliveryStateSent, DeliveryStateFailed, DeliveryStateAcknowledged, DeliveryStateAbandoned},
	DeliveryStateSent:    {DeliveryStateAcknowledged, DeliveryStateFailed, DeliveryStateAbandoned},
	DeliveryStateFailed:  {DeliveryStateSending, DeliveryStateAcknowledged, DeliveryStateAbandoned},
}

// CanTransition reports whether the delivery state machine allows from -> to.
func CanTransition(from, to DeliveryState) bool {
	for _, next := range deliveryTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// SOSEvent is one user-triggered emergency alert. The ID is generated at
// capture time and stays stable across retries; the upstream ingest API
// dedups on it.
type SOSEvent struct {
	ID               string          `json:"id" bson:"_id"`
	UserID           string          `json:"user_id" bson:"user_id" validate:"required"`
	EmergencyType    string          `json:"emergency_type" bson:"emergency_type"`
	Urgency          Urgency         `json:"urgency" bson:"urgency"`
	DeliveryState    DeliveryState   `json:"delivery_state" bson:"delivery_state"`
	Profile          ProfileSnapshot `json:"profile" bson:"profile"`
	Location         *Location       `json:"location" bson:"location"`
	Attempts         int             `json:"attempts" bson:"attempts"`
	LastError        string          `json:"last_error,omitempty" bson:"last_error,omitempty"`
	NextAttemptAt    time.Time       `json:"next_attempt_at" bson:"next_attempt_at"`
	SendingSince     *time.Time      `json:"sending_since,omitempty" bson:"sending_since,omitempty"`
	SentAt           *time.Time      `json:"sent_at,omitempty" bson:"sent_at,omitempty"`
	AcknowledgedAt   *time.Time      `json:"acknowledged_at,omitempty" bson:"acknowledged_at,omitempty"`
	AckSource        string          `json:"ack_source,omitempty" bson:"ack_source,omitempty"`
	AbandonedAt      *time.Time      `json:"abandoned_at,omitempty" bson:"abandoned_at,omitempty"`
	FallbackNotified bool            `json:"fallback_notified" bson:"fallback_notified"`
	Archived         bool            `json:"archived" bson:"archived"`
	Attachments      []Attachment    `json:"attachments,omitempty" bson:"attachments,omitempty"`
	CreatedAt        time.Time       `json:"created_at" bson:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at" bson:"updated_at"`
}

// Attachment is scene media (photo, audio) linked to an event after capture.
// Best effort only, never part of the delivery guarantee.
type Attachment struct {
	Key         string    `json:"key" bson:"key"`
	URL         string    `json:"url" bson:"url"`
	ContentType string    `json:"content_type" bson:"content_type"`
	Size        int64     `json:"size" bson:"size"`
	UploadedAt  time.Time `json:"uploaded_at" bson:"uploaded_at"`
}

// Active reports whether the event still needs delivery work or an ack.
func (e *SOSEvent) Active() bool {
	return !e.DeliveryState.Terminal() && !e.Archived
}
