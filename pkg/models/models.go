// Package models defines the data types shared between the crawl engine,
// the fetch gateway, and the API layer.
package models

import (
	"fmt"
	"strings"
	"time"
)

// Strategy selects the frontier ordering discipline for a deep crawl.
type Strategy string

const (
	StrategyBFS       Strategy = "bfs"
	StrategyDFS       Strategy = "dfs"
	StrategyBestFirst Strategy = "best_first"
)

// ParseStrategy validates a strategy name. The empty string maps to the
// configured default, which callers resolve before reaching the engine.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(s)) {
	case StrategyBFS:
		return StrategyBFS, nil
	case StrategyDFS:
		return StrategyDFS, nil
	case StrategyBestFirst:
		return StrategyBestFirst, nil
	default:
		return "", fmt.Errorf("invalid strategy %q: must be bfs, dfs, or best_first", s)
	}
}

// OutputFormat is the rendered-content format returned by the gateway.
type OutputFormat string

const (
	FormatMarkdown OutputFormat = "markdown"
	FormatHTML     OutputFormat = "html"
	FormatText     OutputFormat = "text"
)

// ParseOutputFormat validates an output format name.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(s)) {
	case FormatMarkdown:
		return FormatMarkdown, nil
	case FormatHTML:
		return FormatHTML, nil
	case FormatText:
		return FormatText, nil
	default:
		return "", fmt.Errorf("invalid output format %q: must be markdown, html, or text", s)
	}
}

// ContentType selects which formats a batch fetch returns. "all" returns
// every format the gateway produced.
type ContentType string

const (
	ContentMarkdown ContentType = "markdown"
	ContentHTML     ContentType = "html"
	ContentText     ContentType = "text"
	ContentAll      ContentType = "all"
)

// ParseContentType validates a content type name.
func ParseContentType(s string) (ContentType, error) {
	switch ContentType(strings.ToLower(s)) {
	case ContentMarkdown, ContentHTML, ContentText, ContentAll:
		return ContentType(strings.ToLower(s)), nil
	default:
		return "", fmt.Errorf("invalid content type %q: must be markdown, html, text, or all", s)
	}
}

// WaitUntil controls how long the dynamic backend waits before snapshotting
// the page.
type WaitUntil string

const (
	WaitDOMReady    WaitUntil = "dom-ready"
	WaitFullLoad    WaitUntil = "full-load"
	WaitNetworkIdle WaitUntil = "network-idle"
	WaitCommit      WaitUntil = "commit"
)

// CacheMode controls how the gateway interacts with the response cache.
type CacheMode string

const (
	CacheEnabled   CacheMode = "enabled"
	CacheDisabled  CacheMode = "disabled"
	CacheReadOnly  CacheMode = "read-only"
	CacheWriteOnly CacheMode = "write-only"
	CacheBypass    CacheMode = "bypass"
)

// ReadsCache reports whether this mode consults the cache before fetching.
func (m CacheMode) ReadsCache() bool {
	return m == CacheEnabled || m == CacheReadOnly
}

// WritesCache reports whether this mode stores fetched pages.
func (m CacheMode) WritesCache() bool {
	return m == CacheEnabled || m == CacheWriteOnly
}

// RenderConfig is the gateway-facing fetch configuration. It is built by the
// engine from request parameters plus process defaults and is immutable for
// the duration of one run.
type RenderConfig struct {
	WaitUntil     WaitUntil
	JSTimeout     time.Duration
	OutputFormat  OutputFormat
	ExtractLinks  bool
	ExtractImages bool
	CacheMode     CacheMode
	RespectRobots bool
	WaitForJS     bool
	Headers       map[string]string
	UserAgent     string
}

// FailureKind classifies a per-page fetch failure.
type FailureKind string

const (
	FailureNone     FailureKind = ""
	FailureTimeout  FailureKind = "timeout"
	FailureNetwork  FailureKind = "network"
	FailureRender   FailureKind = "render"
	FailureExcluded FailureKind = "excluded"
)

// FetchOutcome is the result of one page fetch attempt. A failed fetch is a
// valid outcome, not an error: the orchestrator decides what a failure means
// for the run as a whole.
type FetchOutcome struct {
	URL        string
	StatusCode int

	// Content holds the rendered page keyed by format. The gateway always
	// fills the format requested by RenderConfig.OutputFormat and may fill
	// others when they come for free.
	Content map[OutputFormat]string

	Links    []string
	Images   []string
	Metadata map[string]string

	Success bool
	Failure FailureKind
	Error   string

	Elapsed time.Duration
}

// ContentFor returns the rendered content for the requested type. For
// ContentAll it returns every available format keyed by name.
func (o *FetchOutcome) ContentFor(ct ContentType) any {
	if o == nil || len(o.Content) == 0 {
		if ct == ContentAll {
			return map[string]string{}
		}
		return ""
	}
	if ct == ContentAll {
		all := make(map[string]string, len(o.Content))
		for format, body := range o.Content {
			all[string(format)] = body
		}
		return all
	}
	return o.Content[OutputFormat(ct)]
}

// TerminationReason records why a crawl run stopped.
type TerminationReason string

const (
	ReasonFrontierExhausted TerminationReason = "frontier-exhausted"
	ReasonMaxPages          TerminationReason = "max-pages"
	ReasonTimeout           TerminationReason = "timeout"
	ReasonCancelled         TerminationReason = "cancelled"
	ReasonSeedFailed        TerminationReason = "seed-failed"
)

// RoundSeconds converts a duration to seconds rounded to two decimals, the
// precision exposed in API responses.
func RoundSeconds(d time.Duration) float64 {
	return float64(int64(d.Seconds()*100+0.5)) / 100
}
