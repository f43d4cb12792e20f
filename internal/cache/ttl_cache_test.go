package cache

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	riskdomain "github.com/splitnest/splitnest/internal/riskindex/domain"
	"github.com/stretchr/testify/assert"
)

func TestTTLCache(t *testing.T) {
	c := NewTTLCache[string, int]()

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set("a", 1, time.Minute)
	got, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, got)

	c.Delete("a")
	_, ok = c.Get("a")
	assert.False(t, ok)
}

func TestTTLCache_Expiry(t *testing.T) {
	c := NewTTLCache[string, int]()

	c.Set("a", 1, time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	_, ok := c.Get("a")
	assert.False(t, ok)

	// Non-positive TTLs never store.
	c.Set("b", 2, 0)
	_, ok = c.Get("b")
	assert.False(t, ok)
}

func TestStatusIndexCache(t *testing.T) {
	c := NewStatusIndexCache()
	houseID := snowflake.ID(42)

	_, ok := c.Get(houseID)
	assert.False(t, ok)

	row := &riskdomain.HouseStatusIndex{HouseID: houseID, Score: 51}
	c.Set(houseID, row)

	got, ok := c.Get(houseID)
	assert.True(t, ok)
	assert.Equal(t, 51, got.Score)

	c.Invalidate(houseID)
	_, ok = c.Get(houseID)
	assert.False(t, ok)
}
