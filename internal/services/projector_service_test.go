package services

import (
	"context"
	"testing"
	"time"

	"rescuelink/internal/models"
	"rescuelink/internal/repositories/memory"
	"rescuelink/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticGeocoder struct {
	address string
}

func (g *staticGeocoder) ReverseGeocode(ctx context.Context, lat, lng float64) (string, error) {
	return g.address, nil
}

func seedEvent(id, userID string, state models.DeliveryState, createdAt time.Time) *models.SOSEvent {
	return &models.SOSEvent{
		ID:            id,
		UserID:        userID,
		EmergencyType: "Medical",
		Urgency:       models.UrgencyCritical,
		DeliveryState: state,
		Profile: models.ProfileSnapshot{
			UserID:            userID,
			Name:              "Dana Reyes",
			Age:               34,
			BloodGroup:        "O+",
			MedicalConditions: []string{"asthma"},
			EmergencyContacts: []models.EmergencyContact{
				{Name: "Sam", Phone: "+15550001111", Relationship: "sibling"},
			},
		},
		Location:      &models.Location{Latitude: 37.77, Longitude: -122.42},
		Attempts:      2,
		LastError:     "transient network error",
		NextAttemptAt: createdAt,
		CreatedAt:     createdAt,
		UpdatedAt:     createdAt,
	}
}

func TestActiveAlertsProjectsStoredEvents(t *testing.T) {
	now := time.Now()
	events := memory.NewEventRepository(
		seedEvent("evt-old", "user-1", models.DeliveryStateFailed, now.Add(-time.Hour)),
		seedEvent("evt-new", "user-2", models.DeliveryStateSent, now.Add(-time.Minute)),
	)
	ledger := memory.NewLedgerRepository()
	p := NewProjectorService(events, ledger, &staticGeocoder{address: "Market St, San Francisco"}, logger.NewNop())

	views, err := p.ActiveAlerts(context.Background())
	require.NoError(t, err)
	require.Len(t, views, 2)

	// Newest first.
	assert.Equal(t, "evt-new", views[0].ID)
	assert.Equal(t, "evt-old", views[1].ID)

	view := views[1]
	assert.Equal(t, "Dana Reyes", view.UserName)
	assert.Equal(t, "O+", view.BloodGroup)
	assert.Equal(t, []string{"asthma"}, view.MedicalConditions)
	assert.Equal(t, []string{"Sam (sibling): +15550001111"}, view.EmergencyContacts)
	assert.Equal(t, "Market St, San Francisco", view.Address)
	assert.Equal(t, models.DeliveryStateFailed, view.DeliveryState)
	assert.Equal(t, 2, view.Attempts)
	assert.False(t, view.Acknowledged)
	assert.GreaterOrEqual(t, view.AgeOfEvent, 59*time.Minute)
}

func TestActiveAlertsExcludesArchivedEvents(t *testing.T) {
	events := memory.NewEventRepository(seedEvent("evt-1", "user-1", models.DeliveryStateAcknowledged, time.Now()))
	require.NoError(t, events.Archive(context.Background(), "evt-1"))

	p := NewProjectorService(events, memory.NewLedgerRepository(), nil, logger.NewNop())
	views, err := p.ActiveAlerts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, views)
}

func TestAlertByIDReflectsLedgerAck(t *testing.T) {
	events := memory.NewEventRepository(seedEvent("evt-1", "user-1", models.DeliveryStateSent, time.Now()))
	ledger := memory.NewLedgerRepository()
	_, err := ledger.RecordAck(context.Background(), "evt-1", models.AckSourceDashboard)
	require.NoError(t, err)

	p := NewProjectorService(events, ledger, nil, logger.NewNop())
	view, err := p.AlertByID(context.Background(), "evt-1")
	require.NoError(t, err)
	assert.True(t, view.Acknowledged)
	assert.Equal(t, models.AckSourceDashboard, view.AckSource)
}

func TestProjectionToleratesMissingGeocoderAndLocation(t *testing.T) {
	event := seedEvent("evt-1", "user-1", models.DeliveryStateQueued, time.Now())
	event.Location = nil

	p := NewProjectorService(memory.NewEventRepository(event), memory.NewLedgerRepository(), nil, logger.NewNop())
	view, err := p.AlertByID(context.Background(), "evt-1")
	require.NoError(t, err)
	assert.Nil(t, view.Location)
	assert.Empty(t, view.Address)
}
