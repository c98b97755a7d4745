// Package cache provides read-through decorators for the repositories.
package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/upb/llm-compare/models"
	"github.com/upb/llm-compare/repositories"
)

// entry is one cached history with its insertion time
type entry struct {
	history    []models.ConversationEntry
	insertedAt time.Time
	element    *list.Element
}

func (e *entry) isExpired(ttl time.Duration, now time.Time) bool {
	return now.Sub(e.insertedAt) > ttl
}

// version tracks the writes of one user while store operations are in flight
type version struct {
	gen  uint64
	refs int
}

// HistoryRepository is an LRU cache with TTL in front of another HistoryRepository.
// Saves write through to the backing store before the cache is updated.
// A store read or write only fills the cache when no other write for the
// same user started or finished while it was in flight.
type HistoryRepository struct {
	next   repositories.HistoryRepository
	logger *zap.Logger

	mu       sync.Mutex
	entries  map[string]*entry
	versions map[string]*version
	lru      *list.List
	maxSize int
	ttl     time.Duration
	hits    uint64
	misses  uint64
	now     func() time.Time
}

// Stats represents cache statistics
type Stats struct {
	Size    int     `json:"size"`
	MaxSize int     `json:"max_size"`
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// NewHistoryRepository wraps next with a cache of at most maxSize users
func NewHistoryRepository(next repositories.HistoryRepository, maxSize int, ttl time.Duration, logger *zap.Logger) *HistoryRepository {
	if maxSize < 1 {
		maxSize = 1
	}
	return &HistoryRepository{
		next:     next,
		logger:   logger,
		entries:  make(map[string]*entry),
		versions: make(map[string]*version),
		lru:      list.New(),
		maxSize:  maxSize,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Load returns the cached history or reads it from the backing store
func (c *HistoryRepository) Load(ctx context.Context, userID string) ([]models.ConversationEntry, error) {
	if history, ok := c.get(userID); ok {
		return history, nil
	}

	gen := c.begin(userID, false)
	history, err := c.next.Load(ctx, userID)
	c.finishLoad(userID, gen, history, err == nil)
	if err != nil {
		return nil, err
	}
	return history, nil
}

// Save writes through and then refreshes the cached copy.
// A failed or overlapping write evicts the user so the next Load rereads the store.
func (c *HistoryRepository) Save(ctx context.Context, userID string, history []models.ConversationEntry) error {
	gen := c.begin(userID, true)
	err := c.next.Save(ctx, userID, history)
	c.finishSave(userID, gen, history, err == nil)
	return err
}

// Invalidate drops the cached history of one user.
// Store reads already in flight for the user will not repopulate it.
func (c *HistoryRepository) Invalidate(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v, ok := c.versions[userID]; ok {
		v.gen++
	}
	c.remove(userID)
}

// begin registers a store operation for userID and returns the generation it observed.
// Writes advance the generation so that overlapping operations can tell.
func (c *HistoryRepository) begin(userID string, write bool) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.versions[userID]
	if !ok {
		v = &version{}
		c.versions[userID] = v
	}
	v.refs++
	if write {
		v.gen++
	}
	return v.gen
}

// finishLoad caches a store read unless a write for the user began since
func (c *HistoryRepository) finishLoad(userID string, gen uint64, history []models.ConversationEntry, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := c.versions[userID]
	if ok && v.gen == gen {
		c.set(userID, history)
	}
	c.release(userID, v)
}

// finishSave caches a written history unless another write overlapped it
func (c *HistoryRepository) finishSave(userID string, gen uint64, history []models.ConversationEntry, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := c.versions[userID]
	if ok && v.gen == gen {
		c.set(userID, history)
	} else {
		c.remove(userID)
	}
	v.gen++
	c.release(userID, v)
}

// release must be called with the lock held
func (c *HistoryRepository) release(userID string, v *version) {
	v.refs--
	if v.refs == 0 {
		delete(c.versions, userID)
	}
}

// CleanupExpired removes all expired entries and returns how many were dropped
func (c *HistoryRepository) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	expired := make([]string, 0)
	for userID, e := range c.entries {
		if e.isExpired(c.ttl, now) {
			expired = append(expired, userID)
		}
	}
	for _, userID := range expired {
		c.remove(userID)
	}
	return len(expired)
}

// StartCleanupWorker periodically drops expired entries until ctx is done
func (c *HistoryRepository) StartCleanupWorker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := c.CleanupExpired(); n > 0 {
				c.logger.Debug("expired cached histories removed", zap.Int("count", n))
			}
		case <-ctx.Done():
			return
		}
	}
}

// Stats returns cache statistics
func (c *HistoryRepository) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := Stats{
		Size:    c.lru.Len(),
		MaxSize: c.maxSize,
		Hits:    c.hits,
		Misses:  c.misses,
	}
	if total := c.hits + c.misses; total > 0 {
		stats.HitRate = float64(c.hits) / float64(total)
	}
	return stats
}

func (c *HistoryRepository) get(userID string) ([]models.ConversationEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, exists := c.entries[userID]
	if !exists || e.isExpired(c.ttl, c.now()) {
		c.misses++
		if exists {
			c.remove(userID)
		}
		return nil, false
	}

	c.lru.MoveToFront(e.element)
	c.hits++
	return clone(e.history), true
}

// set must be called with the lock held
func (c *HistoryRepository) set(userID string, history []models.ConversationEntry) {
	if e, exists := c.entries[userID]; exists {
		e.history = clone(history)
		e.insertedAt = c.now()
		c.lru.MoveToFront(e.element)
		return
	}

	if c.lru.Len() >= c.maxSize {
		c.evictLRU()
	}

	e := &entry{
		history:    clone(history),
		insertedAt: c.now(),
	}
	e.element = c.lru.PushFront(userID)
	c.entries[userID] = e
}

// remove must be called with the lock held
func (c *HistoryRepository) remove(userID string) {
	if e, exists := c.entries[userID]; exists {
		c.lru.Remove(e.element)
		delete(c.entries, userID)
	}
}

// evictLRU must be called with the lock held
func (c *HistoryRepository) evictLRU() {
	back := c.lru.Back()
	if back == nil {
		return
	}
	c.remove(back.Value.(string))
}

func clone(history []models.ConversationEntry) []models.ConversationEntry {
	out := make([]models.ConversationEntry, len(history))
	copy(out, history)
	return out
}
