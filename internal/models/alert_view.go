package models

import "time"

// AlertView is the read model served to the authority dashboard. It is
// recomputed from the store and ledger on every poll; nothing writes it back.
type AlertView struct {
	ID                string        `json:"id"`
	UserID            string        `json:"user_id"`
	UserName          string        `json:"user_name"`
	Age               int           `json:"age,omitempty"`
	BloodGroup        string        `json:"blood_group,omitempty"`
	MedicalConditions []string      `json:"medical_conditions,omitempty"`
	EmergencyContacts []string      `json:"emergency_contacts,omitempty"`
	Location          *Location     `json:"location"`
	Address           string        `json:"address,omitempty"`
	EmergencyType     string        `json:"emergency_type"`
	Urgency           Urgency       `json:"urgency"`
	DeliveryState     DeliveryState `json:"delivery_state"`
	Acknowledged      bool          `json:"acknowledged"`
	AckSource         string        `json:"ack_source,omitempty"`
	Attempts          int           `json:"attempts"`
	LastError         string        `json:"last_error,omitempty"`
	AgeOfEvent        time.Duration `json:"age_of_event"`
	CreatedAt         time.Time     `json:"created_at"`
}
