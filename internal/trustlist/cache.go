package trustlist

import (
	"context"
	"sync"
	"time"

	"github.com/rugguard/rugguard-bot/internal/models"
	"github.com/sirupsen/logrus"
)

// Cache owns the trusted-account snapshot and its refresh lifecycle. A
// snapshot older than the TTL triggers a refresh on the next Get; at most
// one refresh is in flight at a time, and callers arriving during a refresh
// get the prior snapshot immediately instead of waiting on the fetch.
type Cache struct {
	source Source
	ttl    time.Duration

	mu         sync.Mutex
	current    models.TrustedAccountSet
	populated  bool
	refreshing bool

	now func() time.Time
}

// NewCache creates a cache that refreshes through source at most once per
// TTL window.
func NewCache(source Source, ttl time.Duration) *Cache {
	return &Cache{
		source: source,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Get returns the trusted-account snapshot, refreshing it first when it is
// stale. Refresh failures are non-fatal: the previous snapshot is returned
// unchanged, or an empty snapshot flagged unavailable if none exists yet.
func (c *Cache) Get(ctx context.Context) models.TrustedAccountSet {
	c.mu.Lock()

	if c.populated && c.now().Sub(c.current.FetchedAt) < c.ttl {
		set := c.current
		c.mu.Unlock()
		logrus.Debug("Using trusted list from cache")
		return set
	}

	if c.refreshing {
		// Another caller is already fetching; serve what we have rather
		// than blocking reply latency on the remote source.
		set := c.currentOrUnavailableLocked()
		c.mu.Unlock()
		return set
	}

	c.refreshing = true
	c.mu.Unlock()

	ids, err := c.source.Fetch(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.refreshing = false

	if err != nil {
		logrus.Warnf("Trusted list refresh failed, keeping previous snapshot: %v", err)
		return c.currentOrUnavailableLocked()
	}

	set := models.NewTrustedAccountSet(ids, c.now())
	if set.Len() == 0 {
		// An empty list is indistinguishable from a broken source and
		// must never replace a usable snapshot.
		logrus.Warn("Trusted list refresh produced an empty set, keeping previous snapshot")
		return c.currentOrUnavailableLocked()
	}

	c.current = set
	c.populated = true
	logrus.Infof("Refreshed trusted list: %d accounts", c.current.Len())
	return c.current
}

func (c *Cache) currentOrUnavailableLocked() models.TrustedAccountSet {
	if c.populated {
		return c.current
	}
	return models.UnavailableTrustedAccountSet()
}

// Warm refreshes the snapshot if it is stale. Used by the scheduler so the
// first trigger after a quiet period does not pay the fetch latency.
func (c *Cache) Warm(ctx context.Context) {
	c.Get(ctx)
}

// Age returns how old the current snapshot is, or false if none exists.
func (c *Cache) Age() (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.populated {
		return 0, false
	}
	return c.now().Sub(c.current.FetchedAt), true
}
