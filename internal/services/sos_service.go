package services

import (
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"rescuelink/internal/delivery"
	"rescuelink/internal/models"
	"rescuelink/internal/repositories/interfaces"
	"rescuelink/internal/utils"
	"rescuelink/pkg/logger"
	"rescuelink/pkg/storage"

	"github.com/google/uuid"
)

const defaultEmergencyType = "General Emergency"

// ValidationError carries field-level errors from a rejected capture request.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid request: %d field error(s)", len(e.Fields))
}

// SOSService owns the capture path: the one-tap trigger, user resolve, ack
// recording, and post-capture media. Capture must succeed whenever the local
// store can write, regardless of connectivity.
type SOSService interface {
	RaiseSOS(ctx context.Context, req *models.RaiseSOSRequest) (*models.RaiseSOSResponse, error)
	GetEvent(ctx context.Context, eventID string) (*models.SOSEvent, error)
	GetActiveByUser(ctx context.Context, userID string) (*models.SOSEvent, error)
	Resolve(ctx context.Context, eventID, userID string) error
	Acknowledge(ctx context.Context, eventID, source string) error
	AttachMedia(ctx context.Context, eventID string, reader io.Reader, filename, contentType string, size int64) (*models.Attachment, error)
}

type sosService struct {
	events   interfaces.EventRepository
	ledger   interfaces.LedgerRepository
	storage  storage.StorageProvider
	notifier delivery.Notifier
	logger   *logger.Logger
}

func NewSOSService(
	events interfaces.EventRepository,
	ledger interfaces.LedgerRepository,
	storageProvider storage.StorageProvider,
	notifier delivery.Notifier,
	log *logger.Logger,
) SOSService {
	return &sosService{
		events:   events,
		ledger:   ledger,
		storage:  storageProvider,
		notifier: notifier,
		logger:   log.WithComponent("sos_service"),
	}
}

// RaiseSOS captures an activation. Idempotent two ways: a replayed request
// with the same id joins the stored event, and a user with an event already
// in flight joins that one instead of opening a second incident.
func (s *sosService) RaiseSOS(ctx context.Context, req *models.RaiseSOSRequest) (*models.RaiseSOSResponse, error) {
	fieldErrors := utils.ValidateProfileSnapshot(&req.Profile)
	for field, msg := range utils.ValidateLocation(req.Location) {
		fieldErrors[field] = msg
	}
	if req.Urgency != "" && !req.Urgency.Valid() {
		fieldErrors["urgency"] = "urgency must be one of critical, high, medium, low"
	}
	if len(fieldErrors) > 0 {
		return nil, &ValidationError{Fields: fieldErrors}
	}

	if req.ID == "" {
		if active, err := s.events.GetActiveByUser(ctx, req.Profile.UserID); err != nil {
			return nil, fmt.Errorf("%w: %v", delivery.ErrStorageFailure, err)
		} else if active != nil {
			s.logger.WithUserID(req.Profile.UserID).WithEventID(active.ID).Info("Re-trigger joined active event")
			return &models.RaiseSOSResponse{
				EventID:       active.ID,
				DeliveryState: active.DeliveryState,
				Created:       false,
			}, nil
		}
	}

	now := time.Now()
	event := &models.SOSEvent{
		ID:            req.ID,
		UserID:        req.Profile.UserID,
		EmergencyType: req.EmergencyType,
		Urgency:       req.Urgency,
		DeliveryState: models.DeliveryStateQueued,
		Profile:       req.Profile,
		Location:      req.Location,
		NextAttemptAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.EmergencyType == "" {
		event.EmergencyType = defaultEmergencyType
	}
	if event.Urgency == "" {
		event.Urgency = models.UrgencyHigh
	}

	stored, created, err := s.events.Append(ctx, event)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", delivery.ErrStorageFailure, err)
	}
	if created {
		s.logger.WithEventID(stored.ID).WithUserID(stored.UserID).
			WithField("urgency", stored.Urgency).Info("SOS event captured")
		if s.notifier != nil {
			s.notifier.EventStateChanged(stored)
		}
	} else {
		s.logger.WithEventID(stored.ID).Info("Duplicate capture request, returning stored event")
	}

	return &models.RaiseSOSResponse{
		EventID:       stored.ID,
		DeliveryState: stored.DeliveryState,
		Created:       created,
	}, nil
}

func (s *sosService) GetEvent(ctx context.Context, eventID string) (*models.SOSEvent, error) {
	return s.events.GetByID(ctx, eventID)
}

func (s *sosService) GetActiveByUser(ctx context.Context, userID string) (*models.SOSEvent, error) {
	return s.events.GetActiveByUser(ctx, userID)
}

// Resolve lets the user stand down a false alarm. The event finishes as
// acknowledged via the ledger so the worker stops retrying, then archives
// off the dashboard.
func (s *sosService) Resolve(ctx context.Context, eventID, userID string) error {
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return err
	}
	if event.UserID != userID {
		return fmt.Errorf("event %s does not belong to user %s", eventID, userID)
	}

	if err := s.Acknowledge(ctx, eventID, models.AckSourceUserResolve); err != nil {
		return err
	}
	if err := s.events.Archive(ctx, eventID); err != nil {
		return fmt.Errorf("failed to archive resolved event: %w", err)
	}
	s.logger.WithEventID(eventID).WithUserID(userID).Info("Event resolved by user")
	return nil
}

// Acknowledge records an ack on the ledger and finalizes the event's state.
// The ledger write is the authority: first ack wins, and a duplicate from
// another channel is suppressed without error.
func (s *sosService) Acknowledge(ctx context.Context, eventID, source string) error {
	first, err := s.ledger.RecordAck(ctx, eventID, source)
	if err != nil {
		return fmt.Errorf("failed to record acknowledgment: %w", err)
	}
	if !first {
		s.logger.WithEventID(eventID).WithField("source", source).
			WithError(delivery.ErrDuplicateSuppressed).Debug("Acknowledgment suppressed")
	}

	// Whoever holds the ledger entry drives the state to acknowledged. The
	// CAS can lose to the worker mid-attempt, so reload and try again from
	// the state we actually see.
	for attempt := 0; attempt < 3; attempt++ {
		event, err := s.events.GetByID(ctx, eventID)
		if err != nil {
			return err
		}
		if event.DeliveryState.Terminal() {
			return nil
		}

		entry, err := s.ledger.GetEntry(ctx, eventID)
		if err != nil {
			return err
		}
		ok, err := s.events.TransitionState(ctx, eventID, event.DeliveryState, models.DeliveryStateAcknowledged, map[string]interface{}{
			"acknowledged_at": entry.AcknowledgedAt,
			"ack_source":      entry.Source,
			"sending_since":   nil,
		})
		if err != nil {
			return err
		}
		if ok {
			s.logger.LogStateChange(eventID, string(event.DeliveryState), string(models.DeliveryStateAcknowledged), event.Attempts)
			if s.notifier != nil {
				if updated, err := s.events.GetByID(ctx, eventID); err == nil {
					s.notifier.EventStateChanged(updated)
				}
			}
			return nil
		}
	}
	return fmt.Errorf("failed to finalize acknowledgment for event %s", eventID)
}

// AttachMedia uploads scene media and links it to the event. Best effort
// only; attachments ride alongside the alert and never gate delivery.
func (s *sosService) AttachMedia(ctx context.Context, eventID string, reader io.Reader, filename, contentType string, size int64) (*models.Attachment, error) {
	if _, err := s.events.GetByID(ctx, eventID); err != nil {
		return nil, err
	}

	key := fmt.Sprintf("sos/%s/%s%s", eventID, uuid.NewString(), path.Ext(filename))
	uploaded, err := s.storage.Upload(ctx, &storage.UploadRequest{
		Key:         key,
		Reader:      reader,
		ContentType: contentType,
		Size:        size,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload attachment: %w", err)
	}

	attachment := models.Attachment{
		Key:         uploaded.Key,
		URL:         uploaded.URL,
		ContentType: contentType,
		Size:        uploaded.Size,
		UploadedAt:  time.Now(),
	}
	if err := s.events.AddAttachment(ctx, eventID, attachment); err != nil {
		return nil, fmt.Errorf("failed to link attachment: %w", err)
	}
	s.logger.WithEventID(eventID).WithField("key", attachment.Key).Info("Attachment added")
	return &attachment, nil
}
