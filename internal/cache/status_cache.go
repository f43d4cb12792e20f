package cache

import (
	"time"

	"github.com/bwmarrin/snowflake"
	riskdomain "github.com/splitnest/splitnest/internal/riskindex/domain"
)

// Allowance derivation reads the current status index on every advance
// check, so the row is cached briefly. Writers invalidate after commit.
const defaultStatusTTL = 45 * time.Second

// StatusIndexCache stores hot-path current-state rows keyed by house.
type StatusIndexCache interface {
	Get(houseID snowflake.ID) (*riskdomain.HouseStatusIndex, bool)
	Set(houseID snowflake.ID, row *riskdomain.HouseStatusIndex)
	Invalidate(houseID snowflake.ID)
}

type statusIndexCache struct {
	rows Cache[snowflake.ID, *riskdomain.HouseStatusIndex]
	ttl  time.Duration
}

func NewStatusIndexCache() StatusIndexCache {
	return &statusIndexCache{
		rows: NewTTLCache[snowflake.ID, *riskdomain.HouseStatusIndex](),
		ttl:  defaultStatusTTL,
	}
}

func (c *statusIndexCache) Get(houseID snowflake.ID) (*riskdomain.HouseStatusIndex, bool) {
	return c.rows.Get(houseID)
}

func (c *statusIndexCache) Set(houseID snowflake.ID, row *riskdomain.HouseStatusIndex) {
	if row == nil {
		return
	}
	c.rows.Set(houseID, row, c.ttl)
}

func (c *statusIndexCache) Invalidate(houseID snowflake.ID) {
	c.rows.Delete(houseID)
}
