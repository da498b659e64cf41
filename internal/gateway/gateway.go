// Package gateway is the narrow interface between the crawl engine and the
// page fetch/render backends. A fetch never returns a Go error to the
// caller: every failure is classified into a FetchOutcome and the
// orchestrator decides whether it matters for the run.
package gateway

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/crawlkit/crawld/pkg/models"
)

// Gateway wraps a single page fetch, bounded by the page-level timeout from
// the render configuration.
type Gateway interface {
	Fetch(ctx context.Context, url string, cfg models.RenderConfig) *models.FetchOutcome

	// Name identifies the backend for logging.
	Name() string
}

// Sentinel errors used by backends when classifying outcomes.
var (
	ErrRobotsDenied   = errors.New("denied by robots.txt")
	ErrNotHTML        = errors.New("response is not an HTML document")
	ErrBrowserCrashed = errors.New("browser session crashed")
	ErrHTTPStatus     = errors.New("http error status")
)

// Composite dispatches to the dynamic (headless browser) backend when the
// request asks for JavaScript rendering and falls back to the static HTTP
// backend otherwise.
type Composite struct {
	static  Gateway
	dynamic Gateway
}

// NewComposite builds the production gateway. dynamic may be nil, in which
// case every fetch is served statically.
func NewComposite(static, dynamic Gateway) *Composite {
	return &Composite{static: static, dynamic: dynamic}
}

// Name identifies the backend for logging.
func (c *Composite) Name() string { return "composite" }

// Fetch routes the request to the appropriate backend.
func (c *Composite) Fetch(ctx context.Context, url string, cfg models.RenderConfig) *models.FetchOutcome {
	if cfg.WaitForJS && c.dynamic != nil {
		return c.dynamic.Fetch(ctx, url, cfg)
	}
	return c.static.Fetch(ctx, url, cfg)
}

// failure builds a failed outcome with the classification derived from err.
func failure(url string, err error, elapsed time.Duration) *models.FetchOutcome {
	return &models.FetchOutcome{
		URL:      url,
		Success:  false,
		Failure:  classify(err),
		Error:    err.Error(),
		Elapsed:  elapsed,
		Content:  map[models.OutputFormat]string{},
		Metadata: map[string]string{},
	}
}

// classify maps a backend error onto the fetch failure taxonomy.
func classify(err error) models.FailureKind {
	switch {
	case err == nil:
		return models.FailureNone
	case errors.Is(err, ErrRobotsDenied), errors.Is(err, ErrNotHTML):
		return models.FailureExcluded
	case errors.Is(err, context.DeadlineExceeded):
		return models.FailureTimeout
	case errors.Is(err, ErrHTTPStatus):
		return models.FailureNetwork
	case errors.Is(err, ErrBrowserCrashed):
		return models.FailureRender
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return models.FailureTimeout
		}
		return models.FailureNetwork
	}

	// url.Error wrapping a timeout surfaces as a string in some transports.
	if strings.Contains(err.Error(), "context deadline exceeded") {
		return models.FailureTimeout
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return models.FailureNetwork
	}
	if strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "no such host") {
		return models.FailureNetwork
	}

	return models.FailureRender
}
