package config

import "time"

// Default constants for application configuration
const (
	DefaultLogLevel  = "info"
	DefaultJSONLog   = false
	DefaultUserAgent = "crawld/1.0 (https://github.com/crawlkit/crawld)"

	DefaultListenAddr = ":8000"

	// Crawl run defaults.
	DefaultStrategy     = "best_first"
	DefaultMaxDepth     = 5
	DefaultMaxPages     = 10
	DefaultWorkers      = 5
	DefaultCrawlDelay   = 1 * time.Second
	DefaultCrawlTimeout = 60 * time.Second
	DefaultJSTimeout    = 8 * time.Second
	DefaultOutputFormat = "markdown"
	DefaultWaitForJS    = true

	// Validation bounds for request parameters.
	MinDepth      = 1
	MaxDepth      = 5
	MinPages      = 1
	MaxPages      = 100
	MinJSTimeout  = 1 * time.Second
	MaxJSTimeout  = 60 * time.Second
	MinCrawlDelay = 100 * time.Millisecond
	MaxCrawlDelay = 10 * time.Second

	// Browser defaults.
	DefaultBrowserPoolSize    = 3
	DefaultMaxBrowserPoolSize = 10
	DefaultBrowserHeadless    = true
	DefaultMaxBrowserSessions = 3
	DefaultViewportWidth      = 1920
	DefaultViewportHeight     = 1080

	// Rate limiting defaults.
	DefaultStaticRateLimitRPS    = 5.0
	DefaultStaticRateLimitBurst  = 10
	DefaultDynamicRateLimitRPS   = 3.0
	DefaultDynamicRateLimitBurst = 5

	// Caching defaults.
	DefaultCacheTTL          = 5 * time.Minute
	DefaultCacheMaxSizeBytes = 100 * 1024 * 1024 // 100MB
	DefaultRobotsCacheTTL    = 30 * time.Minute

	DefaultRespectRobots = false
)
