package utils

import (
	"testing"

	"rescuelink/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestValidateProfileSnapshotNormalizes(t *testing.T) {
	profile := &models.ProfileSnapshot{
		UserID:            "user-1",
		Name:              "  Dana Reyes  ",
		Age:               34,
		BloodGroup:        " o+ ",
		MedicalConditions: []string{" asthma ", "", "  "},
		EmergencyContacts: []models.EmergencyContact{
			{Name: "Sam", Phone: "(555) 000-1111", Relationship: "sibling"},
			{Name: "Empty", Phone: "   "},
		},
	}

	errors := ValidateProfileSnapshot(profile)
	assert.Empty(t, errors)
	assert.Equal(t, "Dana Reyes", profile.Name)
	assert.Equal(t, "O+", profile.BloodGroup)
	assert.Equal(t, []string{"asthma"}, profile.MedicalConditions)
	// Blank contacts are dropped, kept numbers are normalized.
	assert.Len(t, profile.EmergencyContacts, 1)
	assert.Equal(t, "+5550001111", profile.EmergencyContacts[0].Phone)
}

func TestValidateProfileSnapshotRequiredFields(t *testing.T) {
	profile := &models.ProfileSnapshot{Age: 200}

	errors := ValidateProfileSnapshot(profile)
	assert.Contains(t, errors, "name")
	assert.Contains(t, errors, "user_id")
	assert.Contains(t, errors, "age")
}

func TestValidateProfileSnapshotBadContactPhone(t *testing.T) {
	profile := &models.ProfileSnapshot{
		UserID: "user-1",
		Name:   "Dana",
		EmergencyContacts: []models.EmergencyContact{
			{Name: "Bad", Phone: "not-a-number"},
		},
	}

	errors := ValidateProfileSnapshot(profile)
	assert.Contains(t, errors, "emergency_contacts")
}

func TestValidateLocation(t *testing.T) {
	assert.Empty(t, ValidateLocation(nil))
	assert.Empty(t, ValidateLocation(&models.Location{Latitude: 37.77, Longitude: -122.42}))

	errors := ValidateLocation(&models.Location{Latitude: 91, Longitude: -181})
	assert.Contains(t, errors, "latitude")
	assert.Contains(t, errors, "longitude")
}

func TestPhoneValidationAndNormalization(t *testing.T) {
	assert.True(t, IsValidPhone("+15550001111"))
	assert.True(t, IsValidPhone("(555) 000-1111"))
	assert.False(t, IsValidPhone("not-a-number"))
	assert.False(t, IsValidPhone("0"))

	assert.Equal(t, "+15550001111", NormalizePhone("+1 (555) 000-1111"))
	assert.Equal(t, "+5550001111", NormalizePhone("555 000 1111"))
}
