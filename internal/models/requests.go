package models

// RaiseSOSRequest is the capture payload from the device. ID is optional: a
// client that captured offline supplies its own id so a replayed request
// cannot create a second event.
type RaiseSOSRequest struct {
	ID            string          `json:"id"`
	EmergencyType string          `json:"emergency_type"`
	Urgency       Urgency         `json:"urgency"`
	Profile       ProfileSnapshot `json:"profile" validate:"required"`
	Location      *Location       `json:"location"`
}

// RaiseSOSResponse tells the device which event now represents its
// activation, and whether this request created it or joined an existing one.
type RaiseSOSResponse struct {
	EventID       string        `json:"event_id"`
	DeliveryState DeliveryState `json:"delivery_state"`
	Created       bool          `json:"created"`
}
