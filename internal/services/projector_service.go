package services

import (
	"context"
	"fmt"
	"time"

	"rescuelink/internal/models"
	"rescuelink/internal/repositories/interfaces"
	"rescuelink/pkg/logger"
	"rescuelink/pkg/maps"
)

const geocodeTimeout = 2 * time.Second

// ProjectorService builds the dashboard read model. Pure projection over the
// event store and ack ledger; it never writes back, so a view is always a
// consistent snapshot of a stored record.
type ProjectorService interface {
	ActiveAlerts(ctx context.Context) ([]*models.AlertView, error)
	AlertByID(ctx context.Context, eventID string) (*models.AlertView, error)
}

type projectorService struct {
	events   interfaces.EventRepository
	ledger   interfaces.LedgerRepository
	geocoder maps.Geocoder
	logger   *logger.Logger
}

// NewProjectorService builds the projector. geocoder may be nil; views then
// carry coordinates without an address.
func NewProjectorService(
	events interfaces.EventRepository,
	ledger interfaces.LedgerRepository,
	geocoder maps.Geocoder,
	log *logger.Logger,
) ProjectorService {
	return &projectorService{
		events:   events,
		ledger:   ledger,
		geocoder: geocoder,
		logger:   log.WithComponent("projector"),
	}
}

func (p *projectorService) ActiveAlerts(ctx context.Context) ([]*models.AlertView, error) {
	events, err := p.events.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active events: %w", err)
	}

	views := make([]*models.AlertView, 0, len(events))
	for _, event := range events {
		views = append(views, p.project(ctx, event))
	}
	return views, nil
}

func (p *projectorService) AlertByID(ctx context.Context, eventID string) (*models.AlertView, error) {
	event, err := p.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return p.project(ctx, event), nil
}

func (p *projectorService) project(ctx context.Context, event *models.SOSEvent) *models.AlertView {
	view := &models.AlertView{
		ID:                event.ID,
		UserID:            event.UserID,
		UserName:          event.Profile.Name,
		Age:               event.Profile.Age,
		BloodGroup:        event.Profile.BloodGroup,
		MedicalConditions: event.Profile.MedicalConditions,
		Location:          event.Location,
		EmergencyType:     event.EmergencyType,
		Urgency:           event.Urgency,
		DeliveryState:     event.DeliveryState,
		Attempts:          event.Attempts,
		LastError:         event.LastError,
		AgeOfEvent:        time.Since(event.CreatedAt),
		CreatedAt:         event.CreatedAt,
	}

	for _, contact := range event.Profile.EmergencyContacts {
		view.EmergencyContacts = append(view.EmergencyContacts,
			fmt.Sprintf("%s (%s): %s", contact.Name, contact.Relationship, contact.Phone))
	}

	if entry, err := p.ledger.GetEntry(ctx, event.ID); err == nil && entry != nil {
		view.Acknowledged = true
		view.AckSource = entry.Source
	}

	view.Address = p.resolveAddress(ctx, event.Location)
	return view
}

func (p *projectorService) resolveAddress(ctx context.Context, location *models.Location) string {
	if p.geocoder == nil || location == nil {
		return ""
	}
	geoCtx, cancel := context.WithTimeout(ctx, geocodeTimeout)
	defer cancel()

	address, err := p.geocoder.ReverseGeocode(geoCtx, location.Latitude, location.Longitude)
	if err != nil {
		p.logger.WithError(err).Debug("Reverse geocode failed")
		return ""
	}
	return address
}
