package utils

import (
	"strings"

	"rescuelink/internal/models"
)

// ValidateProfileSnapshot normalizes the capture-time profile once, so the
// rest of the pipeline never sees loosely shaped data. Returns field errors
// keyed by field name; an empty map means valid.
func ValidateProfileSnapshot(profile *models.ProfileSnapshot) map[string]string {
	errors := make(map[string]string)

	profile.Name = strings.TrimSpace(profile.Name)
	if profile.Name == "" {
		errors["name"] = "name is required"
	}
	if profile.UserID == "" {
		errors["user_id"] = "user_id is required"
	}
	if profile.Age < 0 || profile.Age > 150 {
		errors["age"] = "age out of range"
	}

	profile.BloodGroup = strings.ToUpper(strings.TrimSpace(profile.BloodGroup))

	conditions := profile.MedicalConditions[:0]
	for _, condition := range profile.MedicalConditions {
		if c := strings.TrimSpace(condition); c != "" {
			conditions = append(conditions, c)
		}
	}
	profile.MedicalConditions = conditions

	contacts := profile.EmergencyContacts[:0]
	for i, contact := range profile.EmergencyContacts {
		contact.Phone = strings.TrimSpace(contact.Phone)
		if contact.Phone == "" {
			continue
		}
		if !IsValidPhone(contact.Phone) {
			errors["emergency_contacts"] = "contact " + contact.Phone + " is not a valid phone number"
			_ = i
			continue
		}
		contact.Phone = NormalizePhone(contact.Phone)
		contacts = append(contacts, contact)
	}
	profile.EmergencyContacts = contacts

	return errors
}

// ValidateLocation rejects coordinates outside the valid range but treats a
// nil location as fine: capture never blocks on a missing GPS fix.
func ValidateLocation(location *models.Location) map[string]string {
	errors := make(map[string]string)
	if location == nil {
		return errors
	}
	if location.Latitude < -90 || location.Latitude > 90 {
		errors["latitude"] = "latitude out of range"
	}
	if location.Longitude < -180 || location.Longitude > 180 {
		errors["longitude"] = "longitude out of range"
	}
	return errors
}
