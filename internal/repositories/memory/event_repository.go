package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"rescuelink/internal/models"
	"rescuelink/internal/repositories/interfaces"
)

// EventRepository is an in-process event store used in tests and as a
// stand-in when no database is configured. Reads return copies, so callers
// never observe a record mid-mutation.
type EventRepository struct {
	mu     sync.RWMutex
	events map[string]*models.SOSEvent

	// WriteErr, when set, fails every write. Lets tests exercise the
	// storage-failure path.
	WriteErr error
}

// NewEventRepository builds a store, optionally seeded with existing records.
// Seeding with a previous store's Snapshot simulates a process restart.
func NewEventRepository(seed ...*models.SOSEvent) *EventRepository {
	r := &EventRepository{events: make(map[string]*models.SOSEvent)}
	for _, event := range seed {
		r.events[event.ID] = cloneEvent(event)
	}
	return r
}

var _ interfaces.EventRepository = (*EventRepository)(nil)

func (r *EventRepository) Append(ctx context.Context, event *models.SOSEvent) (*models.SOSEvent, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.WriteErr != nil {
		return nil, false, r.WriteErr
	}

	if existing, ok := r.events[event.ID]; ok {
		return cloneEvent(existing), false, nil
	}

	now := time.Now()
	event.CreatedAt = now
	event.UpdatedAt = now
	r.events[event.ID] = cloneEvent(event)
	return cloneEvent(event), true, nil
}

func (r *EventRepository) GetByID(ctx context.Context, id string) (*models.SOSEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	event, ok := r.events[id]
	if !ok {
		return nil, fmt.Errorf("event not found")
	}
	return cloneEvent(event), nil
}

func (r *EventRepository) GetActiveByUser(ctx context.Context, userID string) (*models.SOSEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest *models.SOSEvent
	for _, event := range r.events {
		if event.UserID != userID || !event.Active() {
			continue
		}
		if latest == nil || event.CreatedAt.After(latest.CreatedAt) {
			latest = event
		}
	}
	if latest == nil {
		return nil, nil
	}
	return cloneEvent(latest), nil
}

func (r *EventRepository) ListPending(ctx context.Context, now time.Time, limit int) ([]*models.SOSEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var pending []*models.SOSEvent
	for _, event := range r.events {
		if event.Archived {
			continue
		}
		if event.DeliveryState != models.DeliveryStateQueued && event.DeliveryState != models.DeliveryStateFailed {
			continue
		}
		if event.NextAttemptAt.After(now) {
			continue
		}
		pending = append(pending, cloneEvent(event))
	}

	sort.Slice(pending, func(i, j int) bool {
		return pending[i].NextAttemptAt.Before(pending[j].NextAttemptAt)
	})
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

func (r *EventRepository) ListActive(ctx context.Context) ([]*models.SOSEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var active []*models.SOSEvent
	for _, event := range r.events {
		if event.Archived {
			continue
		}
		active = append(active, cloneEvent(event))
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].CreatedAt.After(active[j].CreatedAt)
	})
	return active, nil
}

func (r *EventRepository) ListAckOverdue(ctx context.Context, olderThan time.Duration) ([]*models.SOSEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cutoff := time.Now().Add(-olderThan)
	var overdue []*models.SOSEvent
	for _, event := range r.events {
		if event.DeliveryState != models.DeliveryStateSent || event.SentAt == nil {
			continue
		}
		if event.SentAt.After(cutoff) {
			continue
		}
		overdue = append(overdue, cloneEvent(event))
	}
	return overdue, nil
}

func (r *EventRepository) TransitionState(ctx context.Context, id string, from, to models.DeliveryState, updates map[string]interface{}) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.WriteErr != nil {
		return false, r.WriteErr
	}
	if !models.CanTransition(from, to) {
		return false, fmt.Errorf("illegal transition %s->%s for event %s", from, to, id)
	}

	event, ok := r.events[id]
	if !ok || event.DeliveryState != from {
		return false, nil
	}

	event.DeliveryState = to
	event.UpdatedAt = time.Now()
	applyUpdates(event, updates)
	return true, nil
}

func (r *EventRepository) Update(ctx context.Context, id string, updates map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.WriteErr != nil {
		return r.WriteErr
	}

	event, ok := r.events[id]
	if !ok {
		return fmt.Errorf("event not found")
	}
	event.UpdatedAt = time.Now()
	applyUpdates(event, updates)
	return nil
}

func (r *EventRepository) MarkFallbackNotified(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	event, ok := r.events[id]
	if !ok || event.FallbackNotified {
		return false, nil
	}
	event.FallbackNotified = true
	event.UpdatedAt = time.Now()
	return true, nil
}

func (r *EventRepository) RecoverStaleSending(ctx context.Context, olderThan time.Duration) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-olderThan)
	recovered := 0
	for _, event := range r.events {
		if event.DeliveryState != models.DeliveryStateSending || event.SendingSince == nil {
			continue
		}
		if event.SendingSince.After(cutoff) {
			continue
		}
		event.DeliveryState = models.DeliveryStateFailed
		event.LastError = "attempt interrupted, recovered on sweep"
		event.NextAttemptAt = time.Now()
		event.SendingSince = nil
		event.UpdatedAt = time.Now()
		recovered++
	}
	return recovered, nil
}

func (r *EventRepository) AddAttachment(ctx context.Context, id string, attachment models.Attachment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	event, ok := r.events[id]
	if !ok {
		return fmt.Errorf("event not found")
	}
	event.Attachments = append(event.Attachments, attachment)
	event.UpdatedAt = time.Now()
	return nil
}

func (r *EventRepository) Archive(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	event, ok := r.events[id]
	if !ok {
		return fmt.Errorf("event not found")
	}
	event.Archived = true
	event.UpdatedAt = time.Now()
	return nil
}

// Snapshot returns a copy of every stored record, archived ones included.
func (r *EventRepository) Snapshot() []*models.SOSEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.SOSEvent, 0, len(r.events))
	for _, event := range r.events {
		out = append(out, cloneEvent(event))
	}
	return out
}

func applyUpdates(event *models.SOSEvent, updates map[string]interface{}) {
	for key, value := range updates {
		switch key {
		case "attempts":
			if v, ok := value.(int); ok {
				event.Attempts = v
			}
		case "last_error":
			if v, ok := value.(string); ok {
				event.LastError = v
			}
		case "next_attempt_at":
			if v, ok := value.(time.Time); ok {
				event.NextAttemptAt = v
			}
		case "sending_since":
			switch v := value.(type) {
			case time.Time:
				t := v
				event.SendingSince = &t
			case nil:
				event.SendingSince = nil
			}
		case "sent_at":
			if v, ok := value.(time.Time); ok {
				t := v
				event.SentAt = &t
			}
		case "acknowledged_at":
			if v, ok := value.(time.Time); ok {
				t := v
				event.AcknowledgedAt = &t
			}
		case "ack_source":
			if v, ok := value.(string); ok {
				event.AckSource = v
			}
		case "abandoned_at":
			if v, ok := value.(time.Time); ok {
				t := v
				event.AbandonedAt = &t
			}
		}
	}
}

func cloneEvent(event *models.SOSEvent) *models.SOSEvent {
	clone := *event
	if event.Location != nil {
		loc := *event.Location
		clone.Location = &loc
	}
	clone.Profile.MedicalConditions = append([]string(nil), event.Profile.MedicalConditions...)
	clone.Profile.EmergencyContacts = append([]models.EmergencyContact(nil), event.Profile.EmergencyContacts...)
	clone.Profile.DeviceTokens = append([]models.DeviceToken(nil), event.Profile.DeviceTokens...)
	clone.Attachments = append([]models.Attachment(nil), event.Attachments...)
	if event.SendingSince != nil {
		t := *event.SendingSince
		clone.SendingSince = &t
	}
	if event.SentAt != nil {
		t := *event.SentAt
		clone.SentAt = &t
	}
	if event.AcknowledgedAt != nil {
		t := *event.AcknowledgedAt
		clone.AcknowledgedAt = &t
	}
	if event.AbandonedAt != nil {
		t := *event.AbandonedAt
		clone.AbandonedAt = &t
	}
	return &clone
}
