package mongodb

import (
	"context"
	"fmt"
	"time"

	"rescuelink/internal/models"
	"rescuelink/internal/repositories/interfaces"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const ackCacheTTL = 24 * time.Hour

type ledgerRepository struct {
	collection *mongo.Collection
	cache      CacheService
}

// NewLedgerRepository returns the mongo-backed ack ledger. The redis cache
// fronts HasAcknowledged so the worker's pre-send check stays off the
// database on the hot path.
func NewLedgerRepository(db *mongo.Database, cache CacheService) interfaces.LedgerRepository {
	return &ledgerRepository{
		collection: db.Collection("ack_ledger"),
		cache:      cache,
	}
}

func (r *ledgerRepository) RecordAck(ctx context.Context, eventID, source string) (bool, error) {
	entry := models.LedgerEntry{
		EventID:        eventID,
		Source:         source,
		AcknowledgedAt: time.Now(),
	}

	_, err := r.collection.InsertOne(ctx, entry)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to record ack: %w", err)
	}

	if r.cache != nil {
		r.cache.Set(ctx, ackKey(eventID), true, ackCacheTTL)
	}
	return true, nil
}

func (r *ledgerRepository) HasAcknowledged(ctx context.Context, eventID string) (bool, error) {
	if r.cache != nil {
		if ok, err := r.cache.Exists(ctx, ackKey(eventID)); err == nil && ok {
			return true, nil
		}
	}

	count, err := r.collection.CountDocuments(ctx, bson.M{"event_id": eventID})
	if err != nil {
		return false, fmt.Errorf("failed to check ack ledger: %w", err)
	}

	if count > 0 && r.cache != nil {
		r.cache.Set(ctx, ackKey(eventID), true, ackCacheTTL)
	}
	return count > 0, nil
}

func (r *ledgerRepository) GetEntry(ctx context.Context, eventID string) (*models.LedgerEntry, error) {
	var entry models.LedgerEntry
	err := r.collection.FindOne(ctx, bson.M{"event_id": eventID}).Decode(&entry)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get ledger entry: %w", err)
	}
	return &entry, nil
}

func ackKey(eventID string) string {
	return "sos:ack:" + eventID
}
