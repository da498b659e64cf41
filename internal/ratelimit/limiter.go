// Package ratelimit provides the two throttles used while crawling: a
// per-worker delay limiter implementing the crawl_delay contract, and a
// per-domain token bucket that caps the aggregate request rate against any
// single host.
package ratelimit

import (
	"context"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// WorkerLimiter enforces crawl_delay for a single worker: no two fetches
// issued by the same worker are closer together than the configured delay.
// The delay is worker-local, so aggregate throughput scales with worker
// count; use DomainLimiter when per-host politeness at high worker counts
// matters.
type WorkerLimiter struct {
	limiter *rate.Limiter
}

// NewWorkerLimiter creates a limiter for one worker slot. delay <= 0
// disables throttling.
func NewWorkerLimiter(delay time.Duration) *WorkerLimiter {
	if delay <= 0 {
		return &WorkerLimiter{}
	}
	// Burst of one: the first fetch goes immediately, every later fetch
	// waits out the delay from the previous dispatch.
	return &WorkerLimiter{limiter: rate.NewLimiter(rate.Every(delay), 1)}
}

// Wait blocks until the worker may dispatch its next fetch or ctx is done.
func (w *WorkerLimiter) Wait(ctx context.Context) error {
	if w == nil || w.limiter == nil {
		return ctx.Err()
	}
	return w.limiter.Wait(ctx)
}

// DomainLimiter provides per-domain rate limiting so a burst of workers
// cannot overwhelm one host. It uses token buckets keyed by hostname.
type DomainLimiter struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	perHost  rate.Limit
	burst    int
}

// NewDomainLimiter creates a limiter allowing requestsPerSecond per host
// with the given burst capacity.
func NewDomainLimiter(requestsPerSecond float64, burst int) *DomainLimiter {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 5.0
	}
	if burst <= 0 {
		burst = 10
	}
	return &DomainLimiter{
		limiters: make(map[string]*rate.Limiter),
		perHost:  rate.Limit(requestsPerSecond),
		burst:    burst,
	}
}

// Wait blocks until a request to urlStr's host may proceed.
func (dl *DomainLimiter) Wait(ctx context.Context, urlStr string) error {
	if dl == nil {
		return nil
	}
	host := hostOf(urlStr)
	if host == "" {
		// Invalid URL, let it proceed (it will fail elsewhere).
		return nil
	}
	return dl.limiter(host).Wait(ctx)
}

// Allow reports whether a request to urlStr's host may proceed immediately.
func (dl *DomainLimiter) Allow(urlStr string) bool {
	host := hostOf(urlStr)
	if host == "" {
		return true
	}
	return dl.limiter(host).Allow()
}

func (dl *DomainLimiter) limiter(host string) *rate.Limiter {
	dl.mu.RLock()
	lim, ok := dl.limiters[host]
	dl.mu.RUnlock()
	if ok {
		return lim
	}

	dl.mu.Lock()
	defer dl.mu.Unlock()
	if lim, ok := dl.limiters[host]; ok {
		return lim
	}
	lim = rate.NewLimiter(dl.perHost, dl.burst)
	dl.limiters[host] = lim
	return lim
}

func hostOf(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil {
		return ""
	}
	return u.Host
}
