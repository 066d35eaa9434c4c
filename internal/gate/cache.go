// Package gate resolves device credentials to gates with a short-lived cache
// in front of the registry.
package gate

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"parking-gate-backend/internal/model"
	"parking-gate-backend/internal/store"
)

// CachedDirectory is a read-through cache over a GateDirectory.
// Unknown device keys are never cached, so a freshly registered gate is
// visible on the next detection.
type CachedDirectory struct {
	next  store.GateDirectory
	cache *cache.Cache
}

// NewCachedDirectory wraps next with a cache whose entries live for ttl.
func NewCachedDirectory(next store.GateDirectory, ttl time.Duration) *CachedDirectory {
	return &CachedDirectory{
		next:  next,
		cache: cache.New(ttl, 2*ttl),
	}
}

func (d *CachedDirectory) ResolveGate(ctx context.Context, deviceKey string) (model.GateDevice, error) {
	if v, found := d.cache.Get(deviceKey); found {
		return v.(model.GateDevice), nil
	}

	g, err := d.next.ResolveGate(ctx, deviceKey)
	if err != nil {
		return model.GateDevice{}, err
	}
	d.cache.SetDefault(deviceKey, g)
	return g, nil
}
