package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDedupeCache_SeenWithinTTL(t *testing.T) {
	c := newDedupeCache(10 * time.Minute)

	assert.False(t, c.Seen("META@2025-03-03T15:00:00Z"))
	assert.True(t, c.Seen("META@2025-03-03T15:00:00Z"))
	assert.False(t, c.Seen("META@2025-03-03T15:01:00Z"))
}

func TestDedupeCache_ExpiryAllowsReprocessing(t *testing.T) {
	now := time.Date(2025, 3, 3, 15, 0, 0, 0, time.UTC)
	c := newDedupeCache(time.Minute)
	c.now = func() time.Time { return now }

	assert.False(t, c.Seen("key"))
	now = now.Add(30 * time.Second)
	assert.True(t, c.Seen("key"))
	now = now.Add(2 * time.Minute)
	assert.False(t, c.Seen("key"), "expired entries are forgotten")
}

func TestDedupeCache_SweepRemovesExpired(t *testing.T) {
	now := time.Date(2025, 3, 3, 15, 0, 0, 0, time.UTC)
	c := newDedupeCache(time.Minute)
	c.now = func() time.Time { return now }

	c.Seen("a")
	c.Seen("b")
	now = now.Add(5 * time.Minute)
	c.Seen("c")

	c.mu.Lock()
	defer c.mu.Unlock()
	assert.Len(t, c.seen, 1)
}
