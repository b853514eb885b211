package handler

import (
	"sync"
	"time"

	"github.com/set-night/visionchat/internal/domain"
)

// roomCache keeps the last room list shown to each Telegram user so paging
// through the keyboard does not refetch it.
type roomCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[int64]roomEntry
	now     func() time.Time
}

type roomEntry struct {
	rooms    []domain.Room
	cachedAt time.Time
}

func newRoomCache(ttl time.Duration) *roomCache {
	return &roomCache{ttl: ttl, entries: make(map[int64]roomEntry), now: time.Now}
}

func (c *roomCache) Get(userID int64) ([]domain.Room, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[userID]
	if !ok || c.now().Sub(e.cachedAt) > c.ttl {
		return nil, false
	}
	return e.rooms, true
}

func (c *roomCache) Set(userID int64, rooms []domain.Room) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Expired entries of other users go on every write.
	now := c.now()
	for id, e := range c.entries {
		if now.Sub(e.cachedAt) > c.ttl {
			delete(c.entries, id)
		}
	}
	c.entries[userID] = roomEntry{rooms: rooms, cachedAt: now}
}

func (c *roomCache) Invalidate(userID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, userID)
}
