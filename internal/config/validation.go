package config

import "fmt"

func validate(c *Config) error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen address must be set")
	}
	if c.MaxDepth < MinDepth || c.MaxDepth > MaxDepth {
		return fmt.Errorf("max depth must be between %d and %d", MinDepth, MaxDepth)
	}
	if c.MaxPages < MinPages || c.MaxPages > MaxPages {
		return fmt.Errorf("max pages must be between %d and %d", MinPages, MaxPages)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be > 0")
	}
	if c.CrawlDelay < MinCrawlDelay || c.CrawlDelay > MaxCrawlDelay {
		return fmt.Errorf("crawl delay must be between %s and %s", MinCrawlDelay, MaxCrawlDelay)
	}
	if c.CrawlTimeout <= 0 {
		return fmt.Errorf("crawl timeout must be > 0")
	}
	if c.JSTimeout < MinJSTimeout || c.JSTimeout > MaxJSTimeout {
		return fmt.Errorf("js timeout must be between %s and %s", MinJSTimeout, MaxJSTimeout)
	}
	if c.BrowserPoolSize <= 0 || c.BrowserPoolSize > DefaultMaxBrowserPoolSize {
		return fmt.Errorf("browser pool size must be between 1 and %d", DefaultMaxBrowserPoolSize)
	}
	if c.MaxBrowserSessions <= 0 {
		return fmt.Errorf("max browser sessions must be > 0")
	}
	if c.CacheMaxSizeBytes <= 0 {
		return fmt.Errorf("cache max size must be > 0")
	}
	return nil
}
