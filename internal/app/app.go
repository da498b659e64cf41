// Package app provides the core application initialization and lifecycle management.
package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/crawlkit/crawld/internal/cache"
	"github.com/crawlkit/crawld/internal/config"
	"github.com/crawlkit/crawld/internal/gateway"
	"github.com/crawlkit/crawld/internal/orchestrator"
	"github.com/crawlkit/crawld/internal/ratelimit"
)

// Application holds all application dependencies and manages their lifecycle.
//
// It is created once at startup and shared across all CLI commands and the
// API server. Use Close() to ensure proper resource cleanup on shutdown.
type Application struct {
	Config      *config.Config
	Logger      *zerolog.Logger
	Cache       cache.Cache
	RateLimiter *ratelimit.DomainLimiter
	HTTPClient  *http.Client
	Static      *gateway.StaticGateway
	Dynamic     *gateway.DynamicGateway
	Gateway     gateway.Gateway
	Engine      *orchestrator.Engine

	poolMu      sync.Mutex
	browserPool *gateway.BrowserPool
	startTime   time.Time
}

// New creates and initializes a new Application with all dependencies.
//
// The browser pool is not started here; it is created lazily the first time
// a JavaScript-rendered fetch is requested, so static-only workloads never
// pay the Chrome startup cost.
func New(ctx context.Context, cfg *config.Config) (*Application, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	logger := initLogger(cfg)

	memCache := cache.NewMemoryCache(cfg.CacheMaxSizeBytes)
	logger.Debug().
		Int64("max_size_bytes", cfg.CacheMaxSizeBytes).
		Msg("Memory cache initialized")

	limiter := ratelimit.NewDomainLimiter(cfg.StaticRateLimitRPS, cfg.StaticRateLimitBurst)
	logger.Debug().
		Float64("rps", cfg.StaticRateLimitRPS).
		Int("burst", cfg.StaticRateLimitBurst).
		Msg("Domain rate limiter initialized")

	httpClient := &http.Client{
		Timeout: cfg.JSTimeout + 30*time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	static := gateway.NewStatic(gateway.StaticOptions{
		Client:    httpClient,
		Cache:     memCache,
		Limiter:   limiter,
		UserAgent: cfg.UserAgent,
		CacheTTL:  cfg.CacheTTL,
		RobotsTTL: cfg.RobotsCacheTTL,
	})

	dynamic := gateway.NewDynamic(gateway.DynamicOptions{
		MaxSessions: int64(cfg.MaxBrowserSessions),
		Cache:       memCache,
		Limiter:     limiter,
		CacheTTL:    cfg.CacheTTL,
	})

	composite := gateway.NewComposite(static, dynamic)
	engine := orchestrator.NewEngine(composite)
	logger.Debug().Msg("Fetch gateways initialized")

	app := &Application{
		Config:      cfg,
		Logger:      &logger,
		Cache:       memCache,
		RateLimiter: limiter,
		HTTPClient:  httpClient,
		Static:      static,
		Dynamic:     dynamic,
		Gateway:     composite,
		Engine:      engine,
		startTime:   time.Now(),
	}

	logger.Info().Msg("Application initialized successfully")
	return app, nil
}

func initLogger(cfg *config.Config) zerolog.Logger {
	level := zerolog.InfoLevel
	switch cfg.LogLevel {
	case "debug":
		level = zerolog.DebugLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}
	zerolog.SetGlobalLevel(level)

	var logWriter io.Writer
	if cfg.JSONLog {
		logWriter = os.Stderr
	} else {
		logWriter = zerolog.NewConsoleWriter()
	}

	logger := log.Output(logWriter).With().Timestamp().Logger()
	log.Logger = logger

	logger.Debug().
		Str("level", cfg.LogLevel).
		Bool("json", cfg.JSONLog).
		Msg("Logger initialized")
	return logger
}

// EnsureBrowserPool lazily creates the browser pool if it has not already
// been initialized.
func (a *Application) EnsureBrowserPool(ctx context.Context) error {
	if a == nil {
		return fmt.Errorf("application is nil")
	}

	a.poolMu.Lock()
	defer a.poolMu.Unlock()

	if a.browserPool != nil {
		return nil
	}

	a.Logger.Debug().Msg("Initializing browser pool on demand")
	pool, err := gateway.NewBrowserPool(gateway.BrowserPoolOptions{
		Size:           a.Config.BrowserPoolSize,
		Headless:       a.Config.BrowserHeadless,
		UserAgent:      a.Config.UserAgent,
		ChromePath:     a.Config.ChromePath,
		ViewportWidth:  a.Config.ViewportWidth,
		ViewportHeight: a.Config.ViewportHeight,
	})
	if err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to create browser pool on demand")
		return err
	}

	a.browserPool = pool
	a.Dynamic.SetBrowserPool(pool)

	a.Logger.Info().Int("pool_size", pool.Size()).Msg("Browser pool initialized on demand")
	return nil
}

// BrowserReady reports whether the pool has been started.
func (a *Application) BrowserReady() bool {
	a.poolMu.Lock()
	defer a.poolMu.Unlock()
	return a.browserPool != nil
}

// Close gracefully shuts down the application and all its resources.
//
// Any errors during shutdown are logged but do not prevent other shutdown
// steps.
func (a *Application) Close(ctx context.Context) error {
	a.Logger.Info().Msg("Shutting down application")

	a.poolMu.Lock()
	if a.browserPool != nil {
		if err := a.browserPool.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Error closing browser pool")
		}
		a.browserPool = nil
	}
	a.poolMu.Unlock()

	if a.Cache != nil {
		a.Cache.Close()
	}

	if a.HTTPClient != nil {
		a.HTTPClient.CloseIdleConnections()
	}

	uptime := time.Since(a.startTime)
	a.Logger.Info().Dur("uptime", uptime).Msg("Application shutdown complete")
	return nil
}

// Uptime returns how long the application has been running.
func (a *Application) Uptime() time.Duration {
	return time.Since(a.startTime)
}
