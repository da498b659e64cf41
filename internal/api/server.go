// Package api exposes the crawl engine over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/crawlkit/crawld/internal/config"
	"github.com/crawlkit/crawld/internal/orchestrator"
	"github.com/crawlkit/crawld/internal/reqctx"
	"github.com/crawlkit/crawld/pkg/models"
)

// Version is the service version reported by the root endpoint.
const Version = "0.1.0"

// Server routes crawl requests onto the orchestration engine. All endpoints
// are synchronous; the task_id in responses is a log correlation handle.
type Server struct {
	cfg    *config.Config
	engine *orchestrator.Engine
	mux    *http.ServeMux

	// ready reports whether the render backend can accept work. Nil means
	// always ready.
	ready func() bool
}

// NewServer wires handlers onto an HTTP mux.
func NewServer(cfg *config.Config, engine *orchestrator.Engine, ready func() bool) *Server {
	s := &Server{
		cfg:    cfg,
		engine: engine,
		mux:    http.NewServeMux(),
		ready:  ready,
	}
	s.routes()
	return s
}

// ServeHTTP satisfies the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/", s.handleRoot)
	s.mux.HandleFunc("/api/v1/crawl-suburls", s.handleCrawlSubURLs)
	s.mux.HandleFunc("/api/v1/crawl-urls", s.handleCrawlURLs)
	s.mux.HandleFunc("/api/v1/health", s.handleHealth)
	s.mux.HandleFunc("/api/v1/config", s.handleConfig)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"service": "crawld",
		"version": Version,
		"status":  "running",
		"health":  "/api/v1/health",
		"config":  "/api/v1/config",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	ready := true
	if s.ready != nil {
		ready = s.ready()
	}
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:       "healthy",
		Timestamp:    float64(time.Now().UnixNano()) / float64(time.Second),
		CrawlerReady: ready,
	})
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, ConfigResponse{
		Browser: map[string]any{
			"headless":        s.cfg.BrowserHeadless,
			"pool_size":       s.cfg.BrowserPoolSize,
			"max_sessions":    s.cfg.MaxBrowserSessions,
			"viewport_width":  s.cfg.ViewportWidth,
			"viewport_height": s.cfg.ViewportHeight,
			"user_agent":      s.cfg.UserAgent,
		},
		Crawling: map[string]any{
			"strategy":           s.cfg.Strategy,
			"max_depth":          s.cfg.MaxDepth,
			"max_pages":          s.cfg.MaxPages,
			"workers":            s.cfg.Workers,
			"delay":              s.cfg.CrawlDelay.Seconds(),
			"timeout":            s.cfg.CrawlTimeout.Seconds(),
			"respect_robots_txt": s.cfg.RespectRobots,
		},
		Extraction: map[string]any{
			"extract_links":  true,
			"extract_images": true,
		},
		Output: map[string]any{
			"format":      s.cfg.OutputFormat,
			"wait_for_js": s.cfg.WaitForJS,
			"js_timeout":  s.cfg.JSTimeout.Milliseconds(),
		},
	})
}

func (s *Server) handleCrawlSubURLs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var req CrawlSubURLsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid json payload: %w", err))
		return
	}

	params, err := req.resolve(s.cfg)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	ctx := reqctx.WithTaskContext(r.Context())
	tc := reqctx.GetTaskContext(ctx)

	log.Info().
		Str("task_id", tc.TaskID).
		Str("url", params.URL).
		Str("strategy", string(params.Strategy)).
		Int("depth", params.Depth).
		Int("max_pages", params.MaxPages).
		Msg("Sub-URL crawl starting")

	result, err := s.engine.Run(ctx, orchestrator.Config{
		Seed:            params.URL,
		MaxDepth:        params.Depth,
		MaxPages:        params.MaxPages,
		Workers:         s.cfg.Workers,
		Strategy:        params.Strategy,
		ExcludePatterns: params.ExcludePatterns,
		CrawlDelay:      params.CrawlDelay,
		CrawlTimeout:    s.cfg.CrawlTimeout,
		Render:          s.renderConfig(params.OutputFormat, params.ExtractLinks, params.ExtractImages, params.WaitForJS, params.JSTimeout),
	})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, orchestrator.ErrInvalidInput) {
			status = http.StatusBadRequest
		}
		log.Error().Str("task_id", tc.TaskID).Err(err).Msg("Sub-URL crawl rejected")
		writeError(w, status, reqctx.NewTaskError(ctx, err))
		return
	}

	resp := CrawlSubURLsResponse{
		TaskID:               tc.TaskID,
		Success:              !result.Aborted,
		URL:                  result.SeedURL,
		SubURLs:              result.DiscoveredURLs,
		Metadata:             result.Metadata(),
		ExecutionTimeSeconds: models.RoundSeconds(result.Elapsed),
		URLsFound:            len(result.DiscoveredURLs),
		CrawlDepth:           params.Depth,
		MaxPages:             params.MaxPages,
		Strategy:             string(params.Strategy),
		Truncated:            result.Truncated,
	}
	if resp.SubURLs == nil {
		resp.SubURLs = []string{}
	}
	if result.Aborted {
		if seed := result.SeedOutcome(); seed != nil {
			resp.Error = seed.Error
		}
	}

	log.Info().
		Str("task_id", tc.TaskID).
		Int("urls_found", resp.URLsFound).
		Int("pages_fetched", result.PagesFetched).
		Str("reason", string(result.Reason)).
		Dur("elapsed", result.Elapsed).
		Msg("Sub-URL crawl finished")

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCrawlURLs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var req CrawlURLsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid json payload: %w", err))
		return
	}

	params, err := req.resolve(s.cfg)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	ctx := reqctx.WithTaskContext(r.Context())
	tc := reqctx.GetTaskContext(ctx)

	log.Info().
		Str("task_id", tc.TaskID).
		Int("urls", len(params.URLs)).
		Str("content_type", string(params.ContentType)).
		Msg("Batch crawl starting")

	batch, err := s.engine.RunBatch(ctx, orchestrator.BatchConfig{
		URLs:       params.URLs,
		Workers:    s.cfg.Workers,
		CrawlDelay: params.CrawlDelay,
		Render:     s.renderConfig(params.OutputFormat, params.ExtractLinks, params.ExtractImages, params.WaitForJS, params.JSTimeout),
	})
	if err != nil {
		log.Error().Str("task_id", tc.TaskID).Err(err).Msg("Batch crawl rejected")
		writeError(w, http.StatusBadRequest, reqctx.NewTaskError(ctx, err))
		return
	}

	results := make([]URLResult, len(batch.Outcomes))
	for i, o := range batch.Outcomes {
		entry := URLResult{
			URL:                  o.URL,
			Metadata:             o.Metadata,
			Content:              o.ContentFor(params.ContentType),
			Success:              o.Success,
			ExecutionTimeSeconds: models.RoundSeconds(o.Elapsed),
		}
		if entry.Metadata == nil {
			entry.Metadata = map[string]string{}
		}
		if !o.Success {
			entry.Error = o.Error
		}
		results[i] = entry
	}

	resp := CrawlURLsResponse{
		TaskID:                    tc.TaskID,
		Success:                   batch.AllSucceeded(),
		Results:                   results,
		TotalExecutionTimeSeconds: models.RoundSeconds(batch.Elapsed),
		URLsProcessed:             batch.Processed,
		AverageTimePerURL:         batch.AverageTime(),
	}

	log.Info().
		Str("task_id", tc.TaskID).
		Int("urls_processed", resp.URLsProcessed).
		Bool("success", resp.Success).
		Dur("elapsed", batch.Elapsed).
		Msg("Batch crawl finished")

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) renderConfig(format models.OutputFormat, links, images, waitJS bool, jsTimeout time.Duration) models.RenderConfig {
	return models.RenderConfig{
		WaitUntil:     models.WaitDOMReady,
		JSTimeout:     jsTimeout,
		OutputFormat:  format,
		ExtractLinks:  links,
		ExtractImages: images,
		CacheMode:     models.CacheEnabled,
		RespectRobots: s.cfg.RespectRobots,
		WaitForJS:     waitJS,
		UserAgent:     s.cfg.UserAgent,
	}
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, ErrorResponse{Success: false, Error: err.Error()})
}
