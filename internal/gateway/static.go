package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"

	"github.com/crawlkit/crawld/internal/cache"
	"github.com/crawlkit/crawld/internal/ratelimit"
	"github.com/crawlkit/crawld/internal/retry"
	"github.com/crawlkit/crawld/pkg/models"
)

// StaticGateway fetches pages over plain HTTP and parses them with goquery.
// It is the fast path used whenever JavaScript rendering is not requested.
type StaticGateway struct {
	client    *http.Client
	cache     cache.Cache
	limiter   *ratelimit.DomainLimiter
	robots    *robotsAgent
	retryCfg  retry.Config
	userAgent string
	cacheTTL  time.Duration
}

// StaticOptions configures the static backend.
type StaticOptions struct {
	Client    *http.Client
	Cache     cache.Cache
	Limiter   *ratelimit.DomainLimiter
	UserAgent string
	Retry     retry.Config
	CacheTTL  time.Duration
	RobotsTTL time.Duration
}

// NewStatic builds the static HTTP backend.
func NewStatic(opts StaticOptions) *StaticGateway {
	client := opts.Client
	if client == nil {
		client = &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &StaticGateway{
		client:    client,
		cache:     opts.Cache,
		limiter:   opts.Limiter,
		robots:    newRobotsAgent(client, opts.UserAgent, opts.RobotsTTL),
		retryCfg:  opts.Retry,
		userAgent: opts.UserAgent,
		cacheTTL:  ttl,
	}
}

// Name identifies the backend for logging.
func (s *StaticGateway) Name() string { return "static" }

// Fetch retrieves one page. Failures are classified into the outcome and
// never surface as errors.
func (s *StaticGateway) Fetch(ctx context.Context, rawURL string, cfg models.RenderConfig) *models.FetchOutcome {
	start := time.Now()

	if s.cache != nil && cfg.CacheMode.ReadsCache() {
		if cached, ok := s.cache.Get(cache.Key(rawURL, cfg.OutputFormat)); ok {
			log.Debug().Str("url", rawURL).Msg("Cache hit")
			return cached
		}
	}

	target, err := url.Parse(rawURL)
	if err != nil {
		return failure(rawURL, fmt.Errorf("parse URL: %w", err), time.Since(start))
	}

	if cfg.RespectRobots && !s.robots.Allowed(ctx, target) {
		log.Debug().Str("url", rawURL).Msg("Blocked by robots.txt")
		return failure(rawURL, ErrRobotsDenied, time.Since(start))
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx, rawURL); err != nil {
			return failure(rawURL, err, time.Since(start))
		}
	}

	pageTimeout := cfg.JSTimeout
	if pageTimeout <= 0 {
		pageTimeout = 30 * time.Second
	}

	var outcome *models.FetchOutcome
	fetchErr := retry.Do(ctx, s.retryCfg, func() (bool, error) {
		reqCtx, cancel := context.WithTimeout(ctx, pageTimeout)
		defer cancel()

		resp, err := s.doRequest(reqCtx, rawURL, cfg)
		if err != nil {
			return true, err
		}
		defer resp.Body.Close()

		if s.retryCfg.RetryableStatus(resp.StatusCode) {
			return true, fmt.Errorf("%w %d", ErrHTTPStatus, resp.StatusCode)
		}

		parsed, err := s.consume(resp, cfg, rawURL)
		if err != nil {
			return false, err
		}
		outcome = parsed
		return false, nil
	})

	elapsed := time.Since(start)
	if fetchErr != nil {
		log.Debug().Str("url", rawURL).Err(fetchErr).Msg("Static fetch failed")
		return failure(rawURL, fetchErr, elapsed)
	}
	outcome.Elapsed = elapsed

	log.Debug().
		Str("url", rawURL).
		Int("status", outcome.StatusCode).
		Dur("elapsed", elapsed).
		Int("links", len(outcome.Links)).
		Msg("Static fetch completed")

	if s.cache != nil && cfg.CacheMode.WritesCache() {
		_ = s.cache.Set(cache.Key(rawURL, cfg.OutputFormat), outcome, s.cacheTTL)
	}
	return outcome
}

func (s *StaticGateway) doRequest(ctx context.Context, rawURL string, cfg models.RenderConfig) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	ua := cfg.UserAgent
	if ua == "" {
		ua = s.userAgent
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	for key, value := range cfg.Headers {
		req.Header.Set(key, value)
	}

	return s.client.Do(req)
}

// consume parses the response body into a successful outcome.
func (s *StaticGateway) consume(resp *http.Response, cfg models.RenderConfig, rawURL string) (*models.FetchOutcome, error) {
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w %d", ErrHTTPStatus, resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType != "" && !strings.Contains(contentType, "html") && !strings.Contains(contentType, "xml") {
		return nil, fmt.Errorf("%w: content-type %q", ErrNotHTML, contentType)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse HTML: %w", err)
	}

	outcome := &models.FetchOutcome{
		URL:        rawURL,
		StatusCode: resp.StatusCode,
		Success:    true,
		Content:    make(map[models.OutputFormat]string),
	}
	extractPage(doc, resp.Request.URL, cfg, outcome)
	return outcome, nil
}
