package memory

import (
	"context"
	"sync"
	"time"

	"rescuelink/internal/models"
	"rescuelink/internal/repositories/interfaces"
)

// LedgerRepository is the in-process ack ledger used in tests.
type LedgerRepository struct {
	mu      sync.RWMutex
	entries map[string]models.LedgerEntry
}

func NewLedgerRepository() *LedgerRepository {
	return &LedgerRepository{entries: make(map[string]models.LedgerEntry)}
}

var _ interfaces.LedgerRepository = (*LedgerRepository)(nil)

func (r *LedgerRepository) RecordAck(ctx context.Context, eventID, source string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[eventID]; ok {
		return false, nil
	}
	r.entries[eventID] = models.LedgerEntry{
		EventID:        eventID,
		Source:         source,
		AcknowledgedAt: time.Now(),
	}
	return true, nil
}

func (r *LedgerRepository) HasAcknowledged(ctx context.Context, eventID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.entries[eventID]
	return ok, nil
}

func (r *LedgerRepository) GetEntry(ctx context.Context, eventID string) (*models.LedgerEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[eventID]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

// Len reports how many acks have been recorded.
func (r *LedgerRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
