package rate

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	xrate "golang.org/x/time/rate"
)

// MemoryLimiter es un token bucket por key: max requests por window, con
// ráfaga de max. Los buckets inactivos se descartan tras 2*window.
type MemoryLimiter struct {
	max    int
	window time.Duration
	every  xrate.Limit

	mu      sync.Mutex
	buckets *gocache.Cache
	now     func() time.Time
}

func NewMemoryLimiter(max int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		max:     max,
		window:  window,
		every:   xrate.Every(window / time.Duration(max)),
		buckets: gocache.New(2*window, window),
		now:     time.Now,
	}
}

func (l *MemoryLimiter) bucket(key string) *xrate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if v, ok := l.buckets.Get(key); ok {
		l.buckets.SetDefault(key, v)
		return v.(*xrate.Limiter)
	}
	b := xrate.NewLimiter(l.every, l.max)
	l.buckets.SetDefault(key, b)
	return b
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	b := l.bucket(key)
	now := l.now()

	r := b.ReserveN(now, 1)
	if !r.OK() {
		return Result{Allowed: false, RetryAfter: l.window}, nil
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return Result{Allowed: false, RetryAfter: delay}, nil
	}
	remaining := int64(b.TokensAt(now))
	return Result{Allowed: true, Remaining: max(remaining, 0)}, nil
}
