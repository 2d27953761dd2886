package mongodb

import (
	"context"
	"fmt"
	"time"

	"rescuelink/internal/models"
	"rescuelink/internal/repositories/interfaces"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const activeEventCacheTTL = 10 * time.Minute

type eventRepository struct {
	collection *mongo.Collection
	cache      CacheService
}

func NewEventRepository(db *mongo.Database, cache CacheService) interfaces.EventRepository {
	return &eventRepository{
		collection: db.Collection("sos_events"),
		cache:      cache,
	}
}

func (r *eventRepository) Append(ctx context.Context, event *models.SOSEvent) (*models.SOSEvent, bool, error) {
	now := time.Now()
	event.CreatedAt = now
	event.UpdatedAt = now

	_, err := r.collection.InsertOne(ctx, event)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			existing, getErr := r.GetByID(ctx, event.ID)
			if getErr != nil {
				return nil, false, fmt.Errorf("failed to load existing event %s: %w", event.ID, getErr)
			}
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("failed to append event: %w", err)
	}

	if event.Active() {
		r.cacheActiveEvent(ctx, event)
	}

	return event, true, nil
}

func (r *eventRepository) GetByID(ctx context.Context, id string) (*models.SOSEvent, error) {
	var event models.SOSEvent
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&event)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("event not found")
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return &event, nil
}

func (r *eventRepository) GetActiveByUser(ctx context.Context, userID string) (*models.SOSEvent, error) {
	if event := r.activeEventFromCache(ctx, userID); event != nil {
		return event, nil
	}

	var event models.SOSEvent
	filter := bson.M{
		"user_id":        userID,
		"archived":       false,
		"delivery_state": bson.M{"$nin": terminalStates()},
	}
	err := r.collection.FindOne(ctx, filter, options.FindOne().SetSort(bson.M{"created_at": -1})).Decode(&event)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get active event for user: %w", err)
	}

	r.cacheActiveEvent(ctx, &event)
	return &event, nil
}

func (r *eventRepository) ListPending(ctx context.Context, now time.Time, limit int) ([]*models.SOSEvent, error) {
	filter := bson.M{
		"archived":       false,
		"delivery_state": bson.M{"$in": []models.DeliveryState{models.DeliveryStateQueued, models.DeliveryStateFailed}},
		"next_attempt_at": bson.M{"$lte": now},
	}

	opts := options.Find().SetSort(bson.M{"next_attempt_at": 1})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	return r.find(ctx, filter, opts)
}

func (r *eventRepository) ListActive(ctx context.Context) ([]*models.SOSEvent, error) {
	filter := bson.M{"archived": false}
	opts := options.Find().SetSort(bson.M{"created_at": -1})
	return r.find(ctx, filter, opts)
}

func (r *eventRepository) ListAckOverdue(ctx context.Context, olderThan time.Duration) ([]*models.SOSEvent, error) {
	cutoff := time.Now().Add(-olderThan)
	filter := bson.M{
		"delivery_state": models.DeliveryStateSent,
		"sent_at":        bson.M{"$lte": cutoff},
	}
	return r.find(ctx, filter, nil)
}

func (r *eventRepository) TransitionState(ctx context.Context, id string, from, to models.DeliveryState, updates map[string]interface{}) (bool, error) {
	if !models.CanTransition(from, to) {
		return false, fmt.Errorf("illegal transition %s->%s for event %s", from, to, id)
	}

	set := bson.M{
		"delivery_state": to,
		"updated_at":     time.Now(),
	}
	for k, v := range updates {
		set[k] = v
	}

	res, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": id, "delivery_state": from},
		bson.M{"$set": set},
	)
	if err != nil {
		return false, fmt.Errorf("failed to transition event %s %s->%s: %w", id, from, to, err)
	}
	if res.MatchedCount == 0 {
		return false, nil
	}

	if to.Terminal() {
		r.dropActiveEventCache(ctx, id)
	}
	return true, nil
}

func (r *eventRepository) Update(ctx context.Context, id string, updates map[string]interface{}) error {
	updates["updated_at"] = time.Now()

	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": updates})
	if err != nil {
		return fmt.Errorf("failed to update event: %w", err)
	}
	return nil
}

func (r *eventRepository) MarkFallbackNotified(ctx context.Context, id string) (bool, error) {
	res, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": id, "fallback_notified": false},
		bson.M{"$set": bson.M{"fallback_notified": true, "updated_at": time.Now()}},
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark fallback notified: %w", err)
	}
	return res.ModifiedCount > 0, nil
}

func (r *eventRepository) RecoverStaleSending(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)

	res, err := r.collection.UpdateMany(
		ctx,
		bson.M{
			"delivery_state": models.DeliveryStateSending,
			"sending_since":  bson.M{"$lte": cutoff},
		},
		bson.M{"$set": bson.M{
			"delivery_state":  models.DeliveryStateFailed,
			"last_error":      "attempt interrupted, recovered on sweep",
			"next_attempt_at": time.Now(),
			"updated_at":      time.Now(),
		}},
	)
	if err != nil {
		return 0, fmt.Errorf("failed to recover stale sending events: %w", err)
	}
	return int(res.ModifiedCount), nil
}

func (r *eventRepository) AddAttachment(ctx context.Context, id string, attachment models.Attachment) error {
	_, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": id},
		bson.M{
			"$push": bson.M{"attachments": attachment},
			"$set":  bson.M{"updated_at": time.Now()},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to add attachment: %w", err)
	}
	return nil
}

func (r *eventRepository) Archive(ctx context.Context, id string) error {
	_, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"archived": true, "updated_at": time.Now()}},
	)
	if err != nil {
		return fmt.Errorf("failed to archive event: %w", err)
	}

	r.dropActiveEventCache(ctx, id)
	return nil
}

func (r *eventRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*models.SOSEvent, error) {
	var cursor *mongo.Cursor
	var err error
	if opts != nil {
		cursor, err = r.collection.Find(ctx, filter, opts)
	} else {
		cursor, err = r.collection.Find(ctx, filter)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer cursor.Close(ctx)

	var events []*models.SOSEvent
	if err := cursor.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("failed to decode events: %w", err)
	}
	return events, nil
}

func terminalStates() []models.DeliveryState {
	return []models.DeliveryState{models.DeliveryStateAcknowledged, models.DeliveryStateAbandoned}
}

func (r *eventRepository) cacheActiveEvent(ctx context.Context, event *models.SOSEvent) {
	if r.cache == nil {
		return
	}
	r.cache.Set(ctx, activeEventKey(event.UserID), event, activeEventCacheTTL)
}

func (r *eventRepository) activeEventFromCache(ctx context.Context, userID string) *models.SOSEvent {
	if r.cache == nil {
		return nil
	}
	var event models.SOSEvent
	if err := r.cache.Get(ctx, activeEventKey(userID), &event); err != nil {
		return nil
	}
	if !event.Active() {
		return nil
	}
	return &event
}

func (r *eventRepository) dropActiveEventCache(ctx context.Context, id string) {
	if r.cache == nil {
		return
	}
	// The cache is keyed by user; look the event up to find the owner.
	event, err := r.GetByID(ctx, id)
	if err != nil {
		return
	}
	r.cache.Delete(ctx, activeEventKey(event.UserID))
}

func activeEventKey(userID string) string {
	return "sos:active:" + userID
}
