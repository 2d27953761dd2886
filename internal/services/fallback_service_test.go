package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"rescuelink/internal/config"
	"rescuelink/internal/models"
	"rescuelink/pkg/logger"
	"rescuelink/pkg/sms"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSMSProvider struct {
	mu   sync.Mutex
	sent []*sms.SMSRequest
}

func (f *fakeSMSProvider) SendSMS(ctx context.Context, req *sms.SMSRequest) (*sms.SMSResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, req)
	return &sms.SMSResponse{MessageID: "msg-1", Status: "sent"}, nil
}

func (f *fakeSMSProvider) SendBulkSMS(ctx context.Context, reqs []*sms.SMSRequest) ([]*sms.SMSResponse, error) {
	responses := make([]*sms.SMSResponse, 0, len(reqs))
	for _, req := range reqs {
		resp, _ := f.SendSMS(ctx, req)
		responses = append(responses, resp)
	}
	return responses, nil
}

func abandonedEvent() *models.SOSEvent {
	return &models.SOSEvent{
		ID:            "evt-1",
		UserID:        "user-1",
		EmergencyType: "Medical",
		Urgency:       models.UrgencyCritical,
		DeliveryState: models.DeliveryStateAbandoned,
		Profile: models.ProfileSnapshot{
			UserID:            "user-1",
			Name:              "Dana Reyes",
			Age:               34,
			BloodGroup:        "O+",
			MedicalConditions: []string{"asthma"},
			EmergencyContacts: []models.EmergencyContact{
				{Name: "Sam", Phone: "+15550001111", Relationship: "sibling"},
				{Name: "Ari", Phone: "+15550002222", Relationship: "friend"},
			},
		},
		Location:  &models.Location{Latitude: 37.77, Longitude: -122.42},
		CreatedAt: time.Now(),
	}
}

func TestFallbackFansOutToContactsAndDispatch(t *testing.T) {
	provider := &fakeSMSProvider{}
	svc := NewFallbackService(provider, &config.SMSConfig{
		DefaultFrom:    "RescueLink",
		DispatchNumber: "+15559990000",
	}, logger.NewNop())

	require.NoError(t, svc.Notify(context.Background(), abandonedEvent()))

	require.Len(t, provider.sent, 3)
	var recipients []string
	for _, req := range provider.sent {
		recipients = append(recipients, req.To)
		assert.Equal(t, "RescueLink", req.From)
	}
	assert.ElementsMatch(t, []string{"+15550001111", "+15550002222", "+15559990000"}, recipients)
}

func TestFallbackDedupsDispatchNumber(t *testing.T) {
	provider := &fakeSMSProvider{}
	svc := NewFallbackService(provider, &config.SMSConfig{
		DispatchNumber: "+15550001111", // same as a contact
	}, logger.NewNop())

	require.NoError(t, svc.Notify(context.Background(), abandonedEvent()))
	assert.Len(t, provider.sent, 2)
}

func TestFallbackFailsWithNoRecipients(t *testing.T) {
	provider := &fakeSMSProvider{}
	svc := NewFallbackService(provider, &config.SMSConfig{}, logger.NewNop())

	event := abandonedEvent()
	event.Profile.EmergencyContacts = nil

	assert.Error(t, svc.Notify(context.Background(), event))
	assert.Empty(t, provider.sent)
}

func TestFormatAlertSMSIncludesRescueDetails(t *testing.T) {
	message := FormatAlertSMS(abandonedEvent())

	assert.Contains(t, message, "RESCUELINK SOS ALERT")
	assert.Contains(t, message, "Name: Dana Reyes")
	assert.Contains(t, message, "Age: 34")
	assert.Contains(t, message, "Blood Group: O+")
	assert.Contains(t, message, "Medical: asthma")
	assert.Contains(t, message, "https://maps.google.com/?q=37.77")
	assert.Contains(t, message, "Urgency: CRITICAL")
	assert.Contains(t, message, "RESCUE NEEDED")
}

func TestFormatAlertSMSWithoutLocation(t *testing.T) {
	event := abandonedEvent()
	event.Location = nil

	message := FormatAlertSMS(event)
	assert.Contains(t, message, "Location: unknown")
}
