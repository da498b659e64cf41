package api

import (
	"fmt"
	"time"

	"github.com/crawlkit/crawld/internal/config"
	"github.com/crawlkit/crawld/internal/urlutil"
	"github.com/crawlkit/crawld/pkg/models"
)

// CrawlSubURLsRequest is the payload of POST /api/v1/crawl-suburls. Pointer
// fields distinguish "absent" from zero so defaults apply only when a field
// is omitted.
type CrawlSubURLsRequest struct {
	URL             string   `json:"url"`
	Depth           *int     `json:"depth,omitempty"`
	MaxPages        *int     `json:"max_pages,omitempty"`
	Strategy        *string  `json:"strategy,omitempty"`
	ExcludePatterns []string `json:"exclude_patterns,omitempty"`
	ExtractLinks    *bool    `json:"extract_links,omitempty"`
	ExtractImages   *bool    `json:"extract_images,omitempty"`
	OutputFormat    *string  `json:"output_format,omitempty"`
	WaitForJS       *bool    `json:"wait_for_js,omitempty"`
	JSTimeoutMS     *int     `json:"js_timeout,omitempty"`
	CrawlDelaySec   *float64 `json:"crawl_delay,omitempty"`
}

// CrawlURLsRequest is the payload of POST /api/v1/crawl-urls.
type CrawlURLsRequest struct {
	URLs          []string `json:"urls"`
	ExtractLinks  *bool    `json:"extract_links,omitempty"`
	ExtractImages *bool    `json:"extract_images,omitempty"`
	OutputFormat  *string  `json:"output_format,omitempty"`
	ContentType   *string  `json:"content_type,omitempty"`
	WaitForJS     *bool    `json:"wait_for_js,omitempty"`
	JSTimeoutMS   *int     `json:"js_timeout,omitempty"`
	CrawlDelaySec *float64 `json:"crawl_delay,omitempty"`
}

// CrawlSubURLsResponse mirrors the sub-URL discovery result shape.
type CrawlSubURLsResponse struct {
	TaskID               string            `json:"task_id"`
	Success              bool              `json:"success"`
	URL                  string            `json:"url"`
	SubURLs              []string          `json:"sub_urls"`
	Metadata             map[string]string `json:"metadata"`
	ExecutionTimeSeconds float64           `json:"execution_time_seconds"`
	URLsFound            int               `json:"urls_found"`
	CrawlDepth           int               `json:"crawl_depth"`
	MaxPages             int               `json:"max_pages"`
	Strategy             string            `json:"strategy"`
	Truncated            bool              `json:"truncated,omitempty"`
	Error                string            `json:"error,omitempty"`
}

// URLResult is one entry of a batch fetch response.
type URLResult struct {
	URL                  string            `json:"url"`
	Metadata             map[string]string `json:"metadata"`
	Content              any               `json:"content"`
	Success              bool              `json:"success"`
	ExecutionTimeSeconds float64           `json:"execution_time_seconds"`
	Error                string            `json:"error,omitempty"`
}

// CrawlURLsResponse mirrors the batch fetch result shape.
type CrawlURLsResponse struct {
	TaskID                    string      `json:"task_id"`
	Success                   bool        `json:"success"`
	Results                   []URLResult `json:"results"`
	TotalExecutionTimeSeconds float64     `json:"total_execution_time_seconds"`
	URLsProcessed             int         `json:"urls_processed"`
	AverageTimePerURL         float64     `json:"average_time_per_url"`
}

// HealthResponse reports service liveness.
type HealthResponse struct {
	Status       string  `json:"status"`
	Timestamp    float64 `json:"timestamp"`
	CrawlerReady bool    `json:"crawler_ready"`
}

// ConfigResponse groups the running configuration for introspection.
type ConfigResponse struct {
	Browser    map[string]any `json:"browser"`
	Crawling   map[string]any `json:"crawling"`
	Extraction map[string]any `json:"extraction"`
	Output     map[string]any `json:"output"`
}

// ErrorResponse is the structured failure body for rejected requests.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// subURLParams is a CrawlSubURLsRequest with defaults applied and ranges
// checked.
type subURLParams struct {
	URL             string
	Depth           int
	MaxPages        int
	Strategy        models.Strategy
	ExcludePatterns []string
	ExtractLinks    bool
	ExtractImages   bool
	OutputFormat    models.OutputFormat
	WaitForJS       bool
	JSTimeout       time.Duration
	CrawlDelay      time.Duration
}

// urlsParams is a CrawlURLsRequest with defaults applied and ranges checked.
type urlsParams struct {
	URLs          []string
	ExtractLinks  bool
	ExtractImages bool
	OutputFormat  models.OutputFormat
	ContentType   models.ContentType
	WaitForJS     bool
	JSTimeout     time.Duration
	CrawlDelay    time.Duration
}

func (r *CrawlSubURLsRequest) resolve(cfg *config.Config) (*subURLParams, error) {
	if r.URL == "" {
		return nil, fmt.Errorf("url is required")
	}
	if err := urlutil.Validate(r.URL); err != nil {
		return nil, err
	}

	p := &subURLParams{
		URL:             r.URL,
		Depth:           cfg.MaxDepth,
		MaxPages:        cfg.MaxPages,
		Strategy:        models.Strategy(cfg.Strategy),
		ExcludePatterns: r.ExcludePatterns,
		ExtractLinks:    true,
		ExtractImages:   true,
		OutputFormat:    models.OutputFormat(cfg.OutputFormat),
		WaitForJS:       cfg.WaitForJS,
		JSTimeout:       cfg.JSTimeout,
		CrawlDelay:      cfg.CrawlDelay,
	}

	if r.Depth != nil {
		p.Depth = *r.Depth
	}
	if p.Depth < config.MinDepth || p.Depth > config.MaxDepth {
		return nil, fmt.Errorf("depth must be between %d and %d", config.MinDepth, config.MaxDepth)
	}

	if r.MaxPages != nil {
		p.MaxPages = *r.MaxPages
	}
	if p.MaxPages < config.MinPages || p.MaxPages > config.MaxPages {
		return nil, fmt.Errorf("max_pages must be between %d and %d", config.MinPages, config.MaxPages)
	}

	if r.Strategy != nil {
		strategy, err := models.ParseStrategy(*r.Strategy)
		if err != nil {
			return nil, err
		}
		p.Strategy = strategy
	}

	if r.ExtractLinks != nil {
		p.ExtractLinks = *r.ExtractLinks
	}
	if r.ExtractImages != nil {
		p.ExtractImages = *r.ExtractImages
	}

	if r.OutputFormat != nil {
		format, err := models.ParseOutputFormat(*r.OutputFormat)
		if err != nil {
			return nil, err
		}
		p.OutputFormat = format
	}

	if r.WaitForJS != nil {
		p.WaitForJS = *r.WaitForJS
	}

	var err error
	if p.JSTimeout, err = resolveJSTimeout(r.JSTimeoutMS, cfg); err != nil {
		return nil, err
	}
	if p.CrawlDelay, err = resolveCrawlDelay(r.CrawlDelaySec, cfg); err != nil {
		return nil, err
	}

	return p, nil
}

func (r *CrawlURLsRequest) resolve(cfg *config.Config) (*urlsParams, error) {
	if len(r.URLs) == 0 {
		return nil, fmt.Errorf("urls is required and must not be empty")
	}

	p := &urlsParams{
		URLs:          r.URLs,
		ExtractLinks:  true,
		ExtractImages: true,
		OutputFormat:  models.OutputFormat(cfg.OutputFormat),
		ContentType:   models.ContentType(cfg.OutputFormat),
		WaitForJS:     cfg.WaitForJS,
		JSTimeout:     cfg.JSTimeout,
		CrawlDelay:    cfg.CrawlDelay,
	}

	if r.ExtractLinks != nil {
		p.ExtractLinks = *r.ExtractLinks
	}
	if r.ExtractImages != nil {
		p.ExtractImages = *r.ExtractImages
	}

	if r.OutputFormat != nil {
		format, err := models.ParseOutputFormat(*r.OutputFormat)
		if err != nil {
			return nil, err
		}
		p.OutputFormat = format
	}

	if r.ContentType != nil {
		ct, err := models.ParseContentType(*r.ContentType)
		if err != nil {
			return nil, err
		}
		p.ContentType = ct
	}
	// "all" needs markdown rendered alongside the free formats.
	if p.ContentType == models.ContentAll {
		p.OutputFormat = models.FormatMarkdown
	}

	if r.WaitForJS != nil {
		p.WaitForJS = *r.WaitForJS
	}

	var err error
	if p.JSTimeout, err = resolveJSTimeout(r.JSTimeoutMS, cfg); err != nil {
		return nil, err
	}
	if p.CrawlDelay, err = resolveCrawlDelay(r.CrawlDelaySec, cfg); err != nil {
		return nil, err
	}

	return p, nil
}

func resolveJSTimeout(ms *int, cfg *config.Config) (time.Duration, error) {
	if ms == nil {
		return cfg.JSTimeout, nil
	}
	d := time.Duration(*ms) * time.Millisecond
	if d < config.MinJSTimeout || d > config.MaxJSTimeout {
		return 0, fmt.Errorf("js_timeout must be between %d and %d milliseconds",
			config.MinJSTimeout.Milliseconds(), config.MaxJSTimeout.Milliseconds())
	}
	return d, nil
}

func resolveCrawlDelay(sec *float64, cfg *config.Config) (time.Duration, error) {
	if sec == nil {
		return cfg.CrawlDelay, nil
	}
	d := time.Duration(*sec * float64(time.Second))
	if d < config.MinCrawlDelay || d > config.MaxCrawlDelay {
		return 0, fmt.Errorf("crawl_delay must be between %.1f and %.1f seconds",
			config.MinCrawlDelay.Seconds(), config.MaxCrawlDelay.Seconds())
	}
	return d, nil
}
