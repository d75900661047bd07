// flows.go -- Short-lived per-flow secrets keyed by state or request token.
package oauth

import (
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// flowCache holds secrets a started flow needs at its callback.
// Each entry can be taken at most once.
type flowCache struct {
	mu    sync.Mutex
	items *gocache.Cache
}

func newFlowCache(ttl time.Duration) *flowCache {
	return &flowCache{items: gocache.New(ttl, time.Minute)}
}

func (f *flowCache) put(key string, v any) { f.items.SetDefault(key, v) }

// take returns and removes the entry for key. Of two concurrent callers at
// most one gets it.
func (f *flowCache) take(key string) (any, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.items.Get(key)
	if ok {
		f.items.Delete(key)
	}
	return v, ok
}
