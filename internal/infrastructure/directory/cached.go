// Package directory provides the user directories consulted by the gateway's
// user stage after token verification.
package directory

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/turtacn/edugate/internal/domain/models"
	"github.com/turtacn/edugate/internal/domain/service"
	"github.com/turtacn/edugate/pkg/constants"
	"github.com/turtacn/edugate/pkg/errors"
)

// CacheRecorder counts cache hits and misses. *monitoring.Metrics implements it.
type CacheRecorder interface {
	RecordCacheAccess(hit bool)
}

// Cached is a read-through in-memory cache in front of another directory.
// Missing users are cached too so a flood of unknown ids cannot reach the database.
type Cached struct {
	next     service.UserDirectory
	cache    *cache.Cache
	recorder CacheRecorder
}

type cachedEntry struct {
	user *models.User
	err  error
}

// NewCached wraps next with a cache whose entries live for ttl. recorder may be nil.
// A non-positive ttl falls back to constants.UserDirectoryCacheTTL.
func NewCached(next service.UserDirectory, ttl time.Duration, recorder CacheRecorder) *Cached {
	if ttl <= 0 {
		ttl = constants.UserDirectoryCacheTTL
	}
	return &Cached{
		next:     next,
		cache:    cache.New(ttl, 2*ttl),
		recorder: recorder,
	}
}

// GetUser implements service.UserDirectory.
func (c *Cached) GetUser(ctx context.Context, userID string) (*models.User, error) {
	if v, found := c.cache.Get(userID); found {
		c.record(true)
		entry := v.(cachedEntry)
		return entry.user, entry.err
	}
	c.record(false)

	user, err := c.next.GetUser(ctx, userID)
	if err == nil || errors.HasCode(err, errors.CodeNotFound) {
		c.cache.SetDefault(userID, cachedEntry{user: user, err: err})
	}
	return user, err
}

// Invalidate drops the cached entry of userID, e.g. after a deactivation.
func (c *Cached) Invalidate(userID string) {
	c.cache.Delete(userID)
}

func (c *Cached) record(hit bool) {
	if c.recorder != nil {
		c.recorder.RecordCacheAccess(hit)
	}
}
