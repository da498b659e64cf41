package gateway

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/crawlkit/crawld/internal/cache"
	"github.com/crawlkit/crawld/internal/ratelimit"
	"github.com/crawlkit/crawld/pkg/models"
)

// DynamicGateway renders pages in headless Chrome. It is used when the
// request asks to wait for JavaScript; the rendered DOM is then parsed by
// the same extraction path as the static backend.
type DynamicGateway struct {
	poolMu   sync.Mutex
	pool     *BrowserPool
	sessions *semaphore.Weighted
	cache    cache.Cache
	limiter  *ratelimit.DomainLimiter
	cacheTTL time.Duration
}

// SetBrowserPool attaches a lazily created pool. Fetches before this call
// fall back to a one-shot allocator per render.
func (d *DynamicGateway) SetBrowserPool(pool *BrowserPool) {
	d.poolMu.Lock()
	d.pool = pool
	d.poolMu.Unlock()
}

func (d *DynamicGateway) browserPool() *BrowserPool {
	d.poolMu.Lock()
	defer d.poolMu.Unlock()
	return d.pool
}

// DynamicOptions configures the dynamic backend. MaxSessions bounds how
// many pages render concurrently regardless of pool size.
type DynamicOptions struct {
	Pool        *BrowserPool
	MaxSessions int64
	Cache       cache.Cache
	Limiter     *ratelimit.DomainLimiter
	CacheTTL    time.Duration
}

// NewDynamic builds the dynamic backend.
func NewDynamic(opts DynamicOptions) *DynamicGateway {
	maxSessions := opts.MaxSessions
	if maxSessions <= 0 {
		maxSessions = 3
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &DynamicGateway{
		pool:     opts.Pool,
		sessions: semaphore.NewWeighted(maxSessions),
		cache:    opts.Cache,
		limiter:  opts.Limiter,
		cacheTTL: ttl,
	}
}

// Name identifies the backend for logging.
func (d *DynamicGateway) Name() string { return "dynamic" }

// Fetch renders the page and extracts content from the final DOM.
func (d *DynamicGateway) Fetch(ctx context.Context, rawURL string, cfg models.RenderConfig) *models.FetchOutcome {
	start := time.Now()

	if d.cache != nil && cfg.CacheMode.ReadsCache() {
		if cached, ok := d.cache.Get(cache.Key(rawURL, cfg.OutputFormat)); ok {
			log.Debug().Str("url", rawURL).Msg("Cache hit")
			return cached
		}
	}

	if d.limiter != nil {
		if err := d.limiter.Wait(ctx, rawURL); err != nil {
			return failure(rawURL, err, time.Since(start))
		}
	}

	if err := d.sessions.Acquire(ctx, 1); err != nil {
		return failure(rawURL, err, time.Since(start))
	}
	defer d.sessions.Release(1)

	pageTimeout := cfg.JSTimeout
	if pageTimeout <= 0 {
		pageTimeout = 30 * time.Second
	}

	html, err := d.render(ctx, rawURL, cfg, pageTimeout)
	if err != nil {
		log.Debug().Str("url", rawURL).Err(err).Msg("Dynamic fetch failed")
		return failure(rawURL, err, time.Since(start))
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return failure(rawURL, fmt.Errorf("parse rendered DOM: %w", err), time.Since(start))
	}

	base, _ := url.Parse(rawURL)
	outcome := &models.FetchOutcome{
		URL:     rawURL,
		Success: true,
		Content: make(map[models.OutputFormat]string),
	}
	extractPage(doc, base, cfg, outcome)
	outcome.Elapsed = time.Since(start)

	log.Debug().
		Str("url", rawURL).
		Dur("elapsed", outcome.Elapsed).
		Int("links", len(outcome.Links)).
		Msg("Dynamic fetch completed")

	if d.cache != nil && cfg.CacheMode.WritesCache() {
		_ = d.cache.Set(cache.Key(rawURL, cfg.OutputFormat), outcome, d.cacheTTL)
	}
	return outcome
}

func (d *DynamicGateway) render(ctx context.Context, rawURL string, cfg models.RenderConfig, timeout time.Duration) (string, error) {
	var browserCtx context.Context

	if pool := d.browserPool(); pool != nil {
		bc, err := pool.Acquire(timeout)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrBrowserCrashed, err)
		}
		defer pool.Release(bc)
		browserCtx = bc.ctx
	} else {
		allocCtx, allocCancel := chromedp.NewExecAllocator(ctx,
			chromedp.NoFirstRun,
			chromedp.NoDefaultBrowserCheck,
			chromedp.Flag("headless", "new"),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
		)
		defer allocCancel()
		var cancel context.CancelFunc
		browserCtx, cancel = chromedp.NewContext(allocCtx)
		defer cancel()
	}

	runCtx, cancel := context.WithTimeout(browserCtx, timeout)
	defer cancel()

	// Propagate caller cancellation into the browser run.
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-runCtx.Done():
		}
	}()

	actions := []chromedp.Action{chromedp.Navigate(rawURL)}
	actions = append(actions, waitActions(cfg.WaitUntil)...)

	var html string
	actions = append(actions, chromedp.OuterHTML("html", &html))

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return "", context.DeadlineExceeded
		}
		return "", fmt.Errorf("%w: %v", ErrBrowserCrashed, err)
	}
	return html, nil
}

// waitActions maps the waitUntil setting to chromedp actions executed after
// navigation.
func waitActions(w models.WaitUntil) []chromedp.Action {
	switch w {
	case models.WaitCommit:
		return []chromedp.Action{enableLifecycleEvents()}
	case models.WaitFullLoad:
		return []chromedp.Action{waitReadyState("complete")}
	case models.WaitNetworkIdle:
		return []chromedp.Action{
			waitReadyState("complete"),
			chromedp.Sleep(500 * time.Millisecond),
		}
	default: // dom-ready
		return []chromedp.Action{waitReadyState("interactive")}
	}
}

// waitReadyState polls document.readyState until it reaches at least the
// wanted state.
func waitReadyState(want string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		for {
			var state string
			if err := chromedp.Evaluate("document.readyState", &state).Do(ctx); err != nil {
				return err
			}
			if state == "complete" || state == want {
				return nil
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(50 * time.Millisecond):
			}
		}
	})
}

// enableLifecycleEvents is kept alongside waitReadyState for frame-level
// waits; commit navigation needs page events enabled.
func enableLifecycleEvents() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := page.Enable().Do(ctx); err != nil {
			return err
		}
		return page.SetLifecycleEventsEnabled(true).Do(ctx)
	})
}
