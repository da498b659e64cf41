// Package orchestrator drives crawl runs: it feeds a concurrency-bounded,
// rate-limited worker pool from the frontier, enforces the depth, page, and
// wall-clock budgets, aggregates outcomes, and decides termination.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/crawlkit/crawld/internal/frontier"
	"github.com/crawlkit/crawld/internal/gateway"
	"github.com/crawlkit/crawld/internal/ratelimit"
	"github.com/crawlkit/crawld/internal/urlutil"
	"github.com/crawlkit/crawld/pkg/models"
)

// ErrInvalidInput marks request validation failures surfaced before any
// fetch starts.
var ErrInvalidInput = errors.New("invalid input")

// Config holds the parameters of one crawl run. It is resolved by the
// caller from request values plus process defaults; the orchestrator never
// reads ambient configuration.
type Config struct {
	Seed            string
	MaxDepth        int
	MaxPages        int
	Workers         int
	Strategy        models.Strategy
	ExcludePatterns []string
	CrossDomain     bool
	CrawlDelay      time.Duration
	CrawlTimeout    time.Duration
	Render          models.RenderConfig

	// Scorer assigns best-first priorities to discovered links. Nil falls
	// back to the default heuristic.
	Scorer Scorer

	// OnOutcome, when set, is invoked after each page completes. Called
	// from worker goroutines without any run lock held.
	OnOutcome func(*models.FetchOutcome)
}

// Result is the aggregate of one completed or aborted run.
type Result struct {
	SeedURL        string
	Outcomes       []*models.FetchOutcome
	DiscoveredURLs []string
	PagesFetched   int
	Elapsed        time.Duration
	Reason         models.TerminationReason
	Aborted        bool
	Truncated      bool
}

// SeedOutcome returns the outcome of the seed fetch, or nil when the seed
// never completed.
func (r *Result) SeedOutcome() *models.FetchOutcome {
	for _, o := range r.Outcomes {
		if o.URL == r.SeedURL {
			return o
		}
	}
	return nil
}

// Metadata returns the seed page's metadata when available.
func (r *Result) Metadata() map[string]string {
	if seed := r.SeedOutcome(); seed != nil && seed.Metadata != nil {
		return seed.Metadata
	}
	return map[string]string{}
}

// Engine executes crawl runs against a fetch gateway. It holds no per-run
// state: two concurrent runs share nothing but the gateway.
type Engine struct {
	gateway gateway.Gateway
}

// NewEngine creates an orchestration engine.
func NewEngine(gw gateway.Gateway) *Engine {
	return &Engine{gateway: gw}
}

// run is the mutable state of one orchestration invocation. It is owned by
// Run for the duration of the request and shared with workers only under
// its mutex.
type run struct {
	mu   sync.Mutex
	cond *sync.Cond

	frontier   *frontier.Frontier
	rules      *urlutil.RuleSet
	cfg        Config
	seedURL    string
	discovered []string

	outcomes     []*models.FetchOutcome
	pagesFetched int
	inflight     int
	stopped      bool
	reason       models.TerminationReason
	aborted      bool
	truncated    bool
}

// Run executes a crawl from the seed URL until a termination predicate
// fires. It returns ErrInvalidInput for malformed requests; every other
// condition, including an aborted run, is reported through the Result.
func (e *Engine) Run(ctx context.Context, cfg Config) (*Result, error) {
	if err := urlutil.Validate(cfg.Seed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	seed, err := urlutil.Normalize(cfg.Seed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if cfg.MaxPages <= 0 {
		return nil, fmt.Errorf("%w: max_pages must be positive", ErrInvalidInput)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 5
	}
	if cfg.Scorer == nil {
		cfg.Scorer = DefaultScorer
	}

	rules, err := urlutil.NewRuleSet(seed, cfg.ExcludePatterns, cfg.CrossDomain)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	start := time.Now()

	runCtx := ctx
	var cancel context.CancelFunc
	if cfg.CrawlTimeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, cfg.CrawlTimeout)
		defer cancel()
	}

	r := &run{
		frontier: frontier.New(cfg.Strategy, cfg.MaxDepth, cfg.MaxPages),
		rules:    rules,
		cfg:      cfg,
		seedURL:  seed,
	}
	r.cond = sync.NewCond(&r.mu)

	// The seed always enters the frontier: the exclusion rules apply to
	// discovered links, not to the URL the caller explicitly asked for.
	r.frontier.Push(seed, 0, 0)

	log.Info().
		Str("seed", seed).
		Str("strategy", string(cfg.Strategy)).
		Int("max_pages", cfg.MaxPages).
		Int("max_depth", cfg.MaxDepth).
		Int("workers", cfg.Workers).
		Msg("Crawl run starting")

	// Wake blocked workers when the run context ends so cancellation is
	// observed promptly even with an empty-but-not-done frontier.
	watchDone := make(chan struct{})
	go func() {
		select {
		case <-runCtx.Done():
			r.mu.Lock()
			if !r.stopped {
				r.stopped = true
				if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
					r.reason = models.ReasonTimeout
				} else {
					r.reason = models.ReasonCancelled
					r.truncated = true
				}
			}
			r.cond.Broadcast()
			r.mu.Unlock()
		case <-watchDone:
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.worker(runCtx, r)
		}()
	}
	wg.Wait()
	close(watchDone)

	r.mu.Lock()
	defer r.mu.Unlock()
	result := &Result{
		SeedURL:        seed,
		Outcomes:       r.outcomes,
		DiscoveredURLs: r.discovered,
		PagesFetched:   r.pagesFetched,
		Elapsed:        time.Since(start),
		Reason:         r.reason,
		Aborted:        r.aborted,
		Truncated:      r.truncated,
	}

	log.Info().
		Str("seed", seed).
		Int("pages", result.PagesFetched).
		Str("reason", string(result.Reason)).
		Dur("elapsed", result.Elapsed).
		Msg("Crawl run finished")

	return result, nil
}

// worker pulls targets in strategy order and fetches them, observing its
// own crawl_delay between dispatches.
func (e *Engine) worker(ctx context.Context, r *run) {
	limiter := ratelimit.NewWorkerLimiter(r.cfg.CrawlDelay)

	for {
		target := r.next()
		if target == nil {
			return
		}

		if err := limiter.Wait(ctx); err != nil {
			r.abandon()
			return
		}

		outcome := e.gateway.Fetch(ctx, target.URL, r.cfg.Render)
		r.record(target, outcome)

		if r.cfg.OnOutcome != nil {
			r.cfg.OnOutcome(outcome)
		}
	}
}

// next blocks until a target is available, the run stops, or the frontier
// drains with no fetch in flight. Returning nil tells the worker to exit.
func (r *run) next() *frontier.Target {
	r.mu.Lock()
	defer r.mu.Unlock()

	for {
		if r.stopped {
			return nil
		}
		if t := r.frontier.Pop(); t != nil {
			r.inflight++
			return t
		}
		if r.inflight == 0 {
			r.stopped = true
			if r.reason == "" {
				r.reason = models.ReasonFrontierExhausted
			}
			r.cond.Broadcast()
			return nil
		}
		r.cond.Wait()
	}
}

// abandon releases a dequeued target that will never be fetched because the
// run was cancelled while the worker waited out its delay.
func (r *run) abandon() {
	r.mu.Lock()
	r.inflight--
	r.cond.Broadcast()
	r.mu.Unlock()
}

// record books one outcome: it bumps counters, applies the seed-failure
// abort rule, and expands accepted links back into the frontier. Insertion
// into the visited set and the frontier is atomic inside Push.
func (r *run) record(target *frontier.Target, outcome *models.FetchOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pagesFetched++
	r.outcomes = append(r.outcomes, outcome)

	isSeed := target.Depth == 0 && target.URL == r.seedURL
	switch {
	case isSeed && !outcome.Success:
		// A failed seed aborts the whole run; any other page failure is
		// merely recorded.
		r.stopped = true
		r.aborted = true
		r.reason = models.ReasonSeedFailed
	case outcome.Success && !r.stopped:
		r.expand(target, outcome)
	}

	if r.pagesFetched >= r.cfg.MaxPages && !r.stopped {
		r.stopped = true
		r.reason = models.ReasonMaxPages
	}

	r.inflight--
	r.cond.Broadcast()
}

// expand filters the page's discovered links and pushes survivors into the
// frontier at depth+1. External pages may be recorded as results, but their
// links are never followed.
func (r *run) expand(target *frontier.Target, outcome *models.FetchOutcome) {
	if !r.rules.Expandable(target.URL) {
		return
	}

	base, err := url.Parse(target.URL)
	if err != nil {
		return
	}

	for _, link := range outcome.Links {
		normalized, err := urlutil.Normalize(link, base)
		if err != nil {
			continue
		}
		if normalized == r.seedURL {
			continue
		}
		if !r.rules.Accept(normalized) {
			continue
		}

		var priority float64
		if r.cfg.Strategy == models.StrategyBestFirst {
			priority = r.cfg.Scorer(normalized, target.Depth+1)
		}
		if r.frontier.Push(normalized, target.Depth+1, priority) {
			r.discovered = append(r.discovered, normalized)
		}
	}
}
