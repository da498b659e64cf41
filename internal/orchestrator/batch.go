package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/crawlkit/crawld/internal/ratelimit"
	"github.com/crawlkit/crawld/internal/urlutil"
	"github.com/crawlkit/crawld/pkg/models"
)

// BatchConfig holds the parameters of one batch fetch: a fixed list of
// URLs, no frontier expansion, no filtering.
type BatchConfig struct {
	URLs       []string
	Workers    int
	CrawlDelay time.Duration
	Render     models.RenderConfig

	// OnOutcome, when set, is invoked after each URL completes. Called
	// from worker goroutines.
	OnOutcome func(*models.FetchOutcome)
}

// BatchResult aggregates per-URL outcomes. Results preserve input order and
// always have exactly one entry per requested URL, failures included.
type BatchResult struct {
	Outcomes  []*models.FetchOutcome
	Elapsed   time.Duration
	Processed int
}

// AverageTime returns the mean wall-clock seconds per URL.
func (b *BatchResult) AverageTime() float64 {
	if b.Processed == 0 {
		return 0
	}
	return models.RoundSeconds(time.Duration(int64(b.Elapsed) / int64(b.Processed)))
}

// AllSucceeded reports whether every URL fetched successfully.
func (b *BatchResult) AllSucceeded() bool {
	for _, o := range b.Outcomes {
		if o == nil || !o.Success {
			return false
		}
	}
	return len(b.Outcomes) > 0
}

// RunBatch fetches every URL in the list under the same worker pool width
// and per-worker delay as a deep crawl. One URL's failure never stops the
// rest.
func (e *Engine) RunBatch(ctx context.Context, cfg BatchConfig) (*BatchResult, error) {
	if len(cfg.URLs) == 0 {
		return nil, fmt.Errorf("%w: urls list is empty", ErrInvalidInput)
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 5
	}
	if workers > len(cfg.URLs) {
		workers = len(cfg.URLs)
	}

	start := time.Now()
	outcomes := make([]*models.FetchOutcome, len(cfg.URLs))
	jobs := make(chan int)

	log.Info().
		Int("urls", len(cfg.URLs)).
		Int("workers", workers).
		Msg("Batch fetch starting")

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			limiter := ratelimit.NewWorkerLimiter(cfg.CrawlDelay)

			for idx := range jobs {
				outcomes[idx] = e.fetchOne(ctx, limiter, cfg.URLs[idx], cfg.Render)
				if cfg.OnOutcome != nil {
					cfg.OnOutcome(outcomes[idx])
				}
			}
		}()
	}

	for idx := range cfg.URLs {
		select {
		case jobs <- idx:
		case <-ctx.Done():
		}
	}
	close(jobs)
	wg.Wait()

	// A cancelled run may leave slots unfilled; report them as failures so
	// every input URL has exactly one result.
	for idx, o := range outcomes {
		if o == nil {
			outcomes[idx] = &models.FetchOutcome{
				URL:      cfg.URLs[idx],
				Failure:  models.FailureNetwork,
				Error:    context.Canceled.Error(),
				Content:  map[models.OutputFormat]string{},
				Metadata: map[string]string{},
			}
		}
	}

	result := &BatchResult{
		Outcomes:  outcomes,
		Elapsed:   time.Since(start),
		Processed: len(cfg.URLs),
	}

	log.Info().
		Int("urls", result.Processed).
		Dur("elapsed", result.Elapsed).
		Bool("all_succeeded", result.AllSucceeded()).
		Msg("Batch fetch finished")

	return result, nil
}

func (e *Engine) fetchOne(ctx context.Context, limiter *ratelimit.WorkerLimiter, rawURL string, render models.RenderConfig) *models.FetchOutcome {
	start := time.Now()

	if err := urlutil.Validate(rawURL); err != nil {
		return &models.FetchOutcome{
			URL:      rawURL,
			Failure:  models.FailureNetwork,
			Error:    err.Error(),
			Elapsed:  time.Since(start),
			Content:  map[models.OutputFormat]string{},
			Metadata: map[string]string{},
		}
	}

	if err := limiter.Wait(ctx); err != nil {
		return &models.FetchOutcome{
			URL:      rawURL,
			Failure:  models.FailureNetwork,
			Error:    err.Error(),
			Elapsed:  time.Since(start),
			Content:  map[models.OutputFormat]string{},
			Metadata: map[string]string{},
		}
	}

	return e.gateway.Fetch(ctx, rawURL, render)
}
