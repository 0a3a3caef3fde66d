package store

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/nasty-codes-software/resonance/internal/core"
	"github.com/nasty-codes-software/resonance/internal/domain"
)

// CachedIdentity is a cache-aside decorator over an IdentityStore. Every
// auth and message fan-out resolves profiles, so hot identities are kept in
// an LRU. Profiles are immutable after creation, which keeps the cache
// trivially consistent; the presence flags pass straight through.
type CachedIdentity struct {
	inner core.IdentityStore
	cache *lru.Cache[domain.UserID, *domain.User]
}

var _ core.IdentityStore = (*CachedIdentity)(nil)

func NewCachedIdentity(inner core.IdentityStore, size int) (*CachedIdentity, error) {
	cache, err := lru.New[domain.UserID, *domain.User](size)
	if err != nil {
		return nil, err
	}
	return &CachedIdentity{inner: inner, cache: cache}, nil
}

func (c *CachedIdentity) FindUser(id domain.UserID) (*domain.User, error) {
	if user, ok := c.cache.Get(id); ok {
		return user, nil
	}
	user, err := c.inner.FindUser(id)
	if err != nil {
		return nil, err
	}
	c.cache.Add(id, user)
	return user, nil
}

func (c *CachedIdentity) SetOnline(id domain.UserID) error  { return c.inner.SetOnline(id) }
func (c *CachedIdentity) SetOffline(id domain.UserID) error { return c.inner.SetOffline(id) }
