package models

// ProfileSnapshot is an immutable copy of the triggering user's medical
// profile, taken once at capture time. Later profile edits never touch an
// in-flight alert.
type ProfileSnapshot struct {
	UserID            string             `json:"user_id" bson:"user_id" validate:"required"`
	Name              string             `json:"name" bson:"name" validate:"required"`
	Age               int                `json:"age" bson:"age"`
	BloodGroup        string             `json:"blood_group" bson:"blood_group"`
	MedicalConditions []string           `json:"medical_conditions" bson:"medical_conditions"`
	EmergencyContacts []EmergencyContact `json:"emergency_contacts" bson:"emergency_contacts"`
	DeviceTokens      []DeviceToken      `json:"device_tokens,omitempty" bson:"device_tokens,omitempty"`
}

type EmergencyContact struct {
	Name         string `json:"name" bson:"name"`
	Phone        string `json:"phone" bson:"phone" validate:"required"`
	Relationship string `json:"relationship" bson:"relationship"`
}

// DeviceToken identifies a push target for status notifications back to the
// triggering device.
type DeviceToken struct {
	Platform string `json:"platform" bson:"platform"` // android, ios
	Token    string `json:"token" bson:"token"`
}

type Location struct {
	Latitude  float64 `json:"latitude" bson:"latitude"`
	Longitude float64 `json:"longitude" bson:"longitude"`
	Accuracy  float64 `json:"accuracy,omitempty" bson:"accuracy,omitempty"`
}
