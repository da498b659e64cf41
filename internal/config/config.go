package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration values
type Config struct {
	// Logging
	LogLevel string
	JSONLog  bool

	// API server
	ListenAddr string

	// Crawl run defaults, overridable per request
	Strategy     string
	MaxDepth     int
	MaxPages     int
	Workers      int
	CrawlDelay   time.Duration
	CrawlTimeout time.Duration
	JSTimeout    time.Duration
	OutputFormat string
	WaitForJS    bool

	// HTTP/Scraping
	UserAgent     string
	RespectRobots bool

	// Rate Limiting
	StaticRateLimitRPS    float64
	StaticRateLimitBurst  int
	DynamicRateLimitRPS   float64
	DynamicRateLimitBurst int

	// Browser Pool
	BrowserPoolSize    int
	BrowserHeadless    bool
	ChromePath         string
	MaxBrowserSessions int
	ViewportWidth      int
	ViewportHeight     int

	// Caching
	CacheTTL          time.Duration
	CacheMaxSizeBytes int64
	RobotsCacheTTL    time.Duration
}

// fileConfig is the YAML shape of an optional config file. Only the fields a
// file actually sets override the running config.
type fileConfig struct {
	LogLevel   *string `yaml:"log_level"`
	JSONLog    *bool   `yaml:"json_log"`
	ListenAddr *string `yaml:"listen_addr"`

	Crawl struct {
		Strategy     *string   `yaml:"strategy"`
		MaxDepth     *int      `yaml:"max_depth"`
		MaxPages     *int      `yaml:"max_pages"`
		Workers      *int      `yaml:"workers"`
		CrawlDelay   *Duration `yaml:"crawl_delay"`
		CrawlTimeout *Duration `yaml:"crawl_timeout"`
		JSTimeout    *Duration `yaml:"js_timeout"`
		OutputFormat *string   `yaml:"output_format"`
		WaitForJS    *bool     `yaml:"wait_for_js"`
	} `yaml:"crawl"`

	HTTP struct {
		UserAgent     *string `yaml:"user_agent"`
		RespectRobots *bool   `yaml:"respect_robots"`
	} `yaml:"http"`

	Browser struct {
		PoolSize    *int    `yaml:"pool_size"`
		Headless    *bool   `yaml:"headless"`
		ChromePath  *string `yaml:"chrome_path"`
		MaxSessions *int    `yaml:"max_sessions"`
	} `yaml:"browser"`

	Cache struct {
		TTL          *Duration `yaml:"ttl"`
		MaxSizeBytes *int64    `yaml:"max_size_bytes"`
	} `yaml:"cache"`
}

// Load builds a Config by combining defaults, an optional YAML config file,
// environment variables, and CLI flags, in increasing priority.
// Caller should pass the root *cobra.Command so flags can be read.
func Load(cmd *cobra.Command) (*Config, error) {
	cfg := &Config{
		LogLevel:              DefaultLogLevel,
		JSONLog:               DefaultJSONLog,
		ListenAddr:            DefaultListenAddr,
		Strategy:              DefaultStrategy,
		MaxDepth:              DefaultMaxDepth,
		MaxPages:              DefaultMaxPages,
		Workers:               DefaultWorkers,
		CrawlDelay:            DefaultCrawlDelay,
		CrawlTimeout:          DefaultCrawlTimeout,
		JSTimeout:             DefaultJSTimeout,
		OutputFormat:          DefaultOutputFormat,
		WaitForJS:             DefaultWaitForJS,
		UserAgent:             DefaultUserAgent,
		RespectRobots:         DefaultRespectRobots,
		StaticRateLimitRPS:    DefaultStaticRateLimitRPS,
		StaticRateLimitBurst:  DefaultStaticRateLimitBurst,
		DynamicRateLimitRPS:   DefaultDynamicRateLimitRPS,
		DynamicRateLimitBurst: DefaultDynamicRateLimitBurst,
		BrowserPoolSize:       DefaultBrowserPoolSize,
		BrowserHeadless:       DefaultBrowserHeadless,
		MaxBrowserSessions:    DefaultMaxBrowserSessions,
		ViewportWidth:         DefaultViewportWidth,
		ViewportHeight:        DefaultViewportHeight,
		CacheTTL:              DefaultCacheTTL,
		CacheMaxSizeBytes:     DefaultCacheMaxSizeBytes,
		RobotsCacheTTL:        DefaultRobotsCacheTTL,
	}

	path := os.Getenv("CRAWLD_CONFIG")
	if cmd != nil {
		if f := cmd.Flags().Lookup("config"); f != nil && f.Value.String() != "" {
			path = f.Value.String()
		}
	}
	if path != "" {
		if err := loadFile(cfg, path); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)
	applyFlags(cfg, cmd)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	setString(&cfg.LogLevel, fc.LogLevel)
	setBool(&cfg.JSONLog, fc.JSONLog)
	setString(&cfg.ListenAddr, fc.ListenAddr)

	setString(&cfg.Strategy, fc.Crawl.Strategy)
	setInt(&cfg.MaxDepth, fc.Crawl.MaxDepth)
	setInt(&cfg.MaxPages, fc.Crawl.MaxPages)
	setInt(&cfg.Workers, fc.Crawl.Workers)
	setDuration(&cfg.CrawlDelay, fc.Crawl.CrawlDelay)
	setDuration(&cfg.CrawlTimeout, fc.Crawl.CrawlTimeout)
	setDuration(&cfg.JSTimeout, fc.Crawl.JSTimeout)
	setString(&cfg.OutputFormat, fc.Crawl.OutputFormat)
	setBool(&cfg.WaitForJS, fc.Crawl.WaitForJS)

	setString(&cfg.UserAgent, fc.HTTP.UserAgent)
	setBool(&cfg.RespectRobots, fc.HTTP.RespectRobots)

	setInt(&cfg.BrowserPoolSize, fc.Browser.PoolSize)
	setBool(&cfg.BrowserHeadless, fc.Browser.Headless)
	setString(&cfg.ChromePath, fc.Browser.ChromePath)
	setInt(&cfg.MaxBrowserSessions, fc.Browser.MaxSessions)

	setDuration(&cfg.CacheTTL, fc.Cache.TTL)
	setInt64(&cfg.CacheMaxSizeBytes, fc.Cache.MaxSizeBytes)

	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("CRAWLD_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("CRAWLD_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("CRAWLD_USER_AGENT"); v != "" {
		cfg.UserAgent = v
	}
	if v := os.Getenv("CRAWLD_CHROME_PATH"); v != "" {
		cfg.ChromePath = v
	}
	if v := os.Getenv("CRAWLD_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Workers = n
		}
	}
}

func applyFlags(cfg *Config, cmd *cobra.Command) {
	if cmd == nil {
		return
	}
	if f := cmd.Flags().Lookup("user-agent"); f != nil {
		if s := f.Value.String(); s != "" {
			cfg.UserAgent = s
		}
	}
	if f := cmd.Flags().Lookup("listen"); f != nil {
		if s := f.Value.String(); s != "" {
			cfg.ListenAddr = s
		}
	}
	if f := cmd.Flags().Lookup("timeout"); f != nil {
		if s := f.Value.String(); s != "" {
			if d, err := time.ParseDuration(s); err == nil {
				cfg.CrawlTimeout = d
			}
		}
	}
	if f := cmd.Flags().Lookup("json"); f != nil {
		if f.Value.String() == "true" {
			cfg.JSONLog = true
		}
	}
	if f := cmd.Flags().Lookup("verbose"); f != nil {
		if f.Value.String() == "true" {
			cfg.LogLevel = "debug"
		}
	}
	if f := cmd.Flags().Lookup("quiet"); f != nil {
		if f.Value.String() == "true" {
			cfg.LogLevel = "error"
		}
	}
	if f := cmd.Flags().Lookup("headless"); f != nil && f.Changed {
		cfg.BrowserHeadless = f.Value.String() == "true"
	}
}

func setString(dst *string, src *string) {
	if src != nil && *src != "" {
		*dst = *src
	}
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func setInt64(dst *int64, src *int64) {
	if src != nil {
		*dst = *src
	}
}

func setDuration(dst *time.Duration, src *Duration) {
	if src != nil && !src.IsZero() {
		*dst = src.Duration
	}
}
