package session

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/simplelru"
	"golang.org/x/time/rate"

	"ledgerlink/internal/domain"
)

// helloLimiter rate limits new negotiations per source identity. Buckets
// live in an LRU so a flood of distinct sources cannot grow it unbounded.
type helloLimiter struct {
	mu    sync.Mutex
	cache *simplelru.LRU
	limit rate.Limit
	burst int
}

func newHelloLimiter(limit rate.Limit, burst, size int) (*helloLimiter, error) {
	cache, err := simplelru.NewLRU(size, nil)
	if err != nil {
		return nil, err
	}
	return &helloLimiter{cache: cache, limit: limit, burst: burst}, nil
}

func (l *helloLimiter) allow(source domain.HoldingIdentity, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	var lim *rate.Limiter
	if v, ok := l.cache.Get(source); ok {
		lim = v.(*rate.Limiter)
	} else {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.cache.Add(source, lim)
	}
	return lim.AllowN(now, 1)
}
