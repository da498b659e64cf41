package gateway

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog/log"
)

// BrowserPool manages reusable headless Chrome contexts so dynamic fetches
// pay the browser startup cost once instead of per page.
type BrowserPool struct {
	size        int
	contexts    chan *browserContext
	allocCtx    context.Context
	allocCancel context.CancelFunc
	mu          sync.Mutex
	closed      bool
}

type browserContext struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// BrowserPoolOptions configures the pool.
type BrowserPoolOptions struct {
	Size           int
	Headless       bool
	UserAgent      string
	Proxy          string
	ChromePath     string
	ViewportWidth  int
	ViewportHeight int
}

// NewBrowserPool starts Size browser contexts sharing one allocator.
func NewBrowserPool(opts BrowserPoolOptions) (*BrowserPool, error) {
	if opts.Size <= 0 {
		opts.Size = 3
	}
	if opts.Size > 10 {
		opts.Size = 10
	}
	if opts.ViewportWidth <= 0 {
		opts.ViewportWidth = 1920
	}
	if opts.ViewportHeight <= 0 {
		opts.ViewportHeight = 1080
	}

	log.Debug().Int("size", opts.Size).Msg("Creating browser pool")

	allocOpts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-breakpad", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-hang-monitor", true),
		chromedp.Flag("disable-prompt-on-repost", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("window-size", fmt.Sprintf("%d,%d", opts.ViewportWidth, opts.ViewportHeight)),
		chromedp.Flag("disk-cache-size", "0"),
	}
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.Headless {
		allocOpts = append(allocOpts, chromedp.Flag("headless", "new"))
	}
	if opts.Proxy != "" {
		allocOpts = append(allocOpts, chromedp.ProxyServer(opts.Proxy))
	}
	path := opts.ChromePath
	if path == "" {
		path = findChrome()
	}
	if path != "" {
		allocOpts = append([]chromedp.ExecAllocatorOption{chromedp.ExecPath(path)}, allocOpts...)
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)

	pool := &BrowserPool{
		size:        opts.Size,
		contexts:    make(chan *browserContext, opts.Size),
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
	}

	for i := 0; i < opts.Size; i++ {
		ctx, cancel := chromedp.NewContext(allocCtx)
		pool.contexts <- &browserContext{ctx: ctx, cancel: cancel}
	}

	return pool, nil
}

// Acquire checks out a browser context, waiting up to timeout.
func (p *BrowserPool) Acquire(timeout time.Duration) (*browserContext, error) {
	select {
	case bc := <-p.contexts:
		return bc, nil
	case <-time.After(timeout):
		return nil, fmt.Errorf("browser pool: acquire timed out after %s", timeout)
	}
}

// Release returns a context to the pool. A crashed context is replaced with
// a fresh one.
func (p *BrowserPool) Release(bc *browserContext) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		bc.cancel()
		return
	}

	if bc.ctx.Err() != nil {
		bc.cancel()
		ctx, cancel := chromedp.NewContext(p.allocCtx)
		bc = &browserContext{ctx: ctx, cancel: cancel}
	}
	p.contexts <- bc
}

// Size returns the pool width.
func (p *BrowserPool) Size() int { return p.size }

// Close tears down every browser context and the shared allocator.
func (p *BrowserPool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	for i := 0; i < p.size; i++ {
		select {
		case bc := <-p.contexts:
			bc.cancel()
		case <-time.After(2 * time.Second):
		}
	}
	p.allocCancel()
	log.Debug().Msg("Browser pool closed")
	return nil
}

// findChrome locates a Chrome or Chromium binary on PATH.
func findChrome() string {
	candidates := []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser"}
	if runtime.GOOS == "darwin" {
		candidates = append([]string{"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome"}, candidates...)
	}
	for _, name := range candidates {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	return ""
}
