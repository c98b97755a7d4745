// Package memory provides in-process repositories for development and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/upb/llm-compare/models"
	"github.com/upb/llm-compare/repositories"
)

// NewRepositories creates a fresh set of in-memory repositories
func NewRepositories() *repositories.Repositories {
	return &repositories.Repositories{
		History:         NewHistoryRepository(),
		Credentials:     NewCredentialRepository(),
		DispatchRecords: NewDispatchRecordRepository(),
	}
}

// HistoryRepository keeps each user's history in a map
type HistoryRepository struct {
	mu      sync.RWMutex
	entries map[string][]models.ConversationEntry
}

// NewHistoryRepository creates an empty history repository
func NewHistoryRepository() *HistoryRepository {
	return &HistoryRepository{entries: make(map[string][]models.ConversationEntry)}
}

// Load returns a copy of the user's history
func (r *HistoryRepository) Load(ctx context.Context, userID string) ([]models.ConversationEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	stored := r.entries[userID]
	out := make([]models.ConversationEntry, len(stored))
	copy(out, stored)
	return out, nil
}

// Save replaces the user's history with a copy of entries
func (r *HistoryRepository) Save(ctx context.Context, userID string, entries []models.ConversationEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	stored := make([]models.ConversationEntry, len(entries))
	copy(stored, entries)

	r.mu.Lock()
	r.entries[userID] = stored
	r.mu.Unlock()
	return nil
}

// CredentialRepository keeps default keys in a map
type CredentialRepository struct {
	mu   sync.RWMutex
	keys map[models.ProviderID]string
}

// NewCredentialRepository creates an empty credential repository
func NewCredentialRepository() *CredentialRepository {
	return &CredentialRepository{keys: make(map[models.ProviderID]string)}
}

// LoadDefaultCredential returns the stored key for a provider
func (r *CredentialRepository) LoadDefaultCredential(ctx context.Context, provider models.ProviderID) (string, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	key, ok := r.keys[provider]
	return key, ok, nil
}

// SaveCredential stores or replaces the key for a provider
func (r *CredentialRepository) SaveCredential(ctx context.Context, provider models.ProviderID, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.keys[provider] = key
	return nil
}

// ListConfigured returns providers with a stored key, ordered by id
func (r *CredentialRepository) ListConfigured(ctx context.Context) ([]models.ProviderID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.ProviderID, 0, len(r.keys))
	for id := range r.keys {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// DispatchRecordRepository keeps dispatch records in insertion order
type DispatchRecordRepository struct {
	mu      sync.RWMutex
	records []*models.DispatchRecord
}

// NewDispatchRecordRepository creates an empty dispatch record repository
func NewDispatchRecordRepository() *DispatchRecordRepository {
	return &DispatchRecordRepository{}
}

// Insert appends a copy of record
func (r *DispatchRecordRepository) Insert(ctx context.Context, record *models.DispatchRecord) error {
	stored := *record

	r.mu.Lock()
	r.records = append(r.records, &stored)
	r.mu.Unlock()
	return nil
}

// ListByUser returns the user's most recent records, newest first
func (r *DispatchRecordRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*models.DispatchRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.DispatchRecord
	for i := len(r.records) - 1; i >= 0; i-- {
		if r.records[i].UserID == userID {
			record := *r.records[i]
			out = append(out, &record)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Len returns the number of stored records
func (r *DispatchRecordRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}
