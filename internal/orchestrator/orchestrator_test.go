package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/crawlkit/crawld/pkg/models"
)

// fakeGateway serves outcomes from a canned site graph and records fetch
// order. URLs absent from the graph fail with a network error.
type fakeGateway struct {
	mu    sync.Mutex
	pages map[string][]string // URL -> outbound links
	order []string
	delay time.Duration
}

func newFakeGateway(pages map[string][]string) *fakeGateway {
	return &fakeGateway{pages: pages}
}

func (g *fakeGateway) Name() string { return "fake" }

func (g *fakeGateway) Fetch(ctx context.Context, url string, cfg models.RenderConfig) *models.FetchOutcome {
	if g.delay > 0 {
		select {
		case <-time.After(g.delay):
		case <-ctx.Done():
		}
	}

	g.mu.Lock()
	g.order = append(g.order, url)
	links, ok := g.pages[url]
	g.mu.Unlock()

	if !ok {
		return &models.FetchOutcome{
			URL:     url,
			Failure: models.FailureNetwork,
			Error:   "connection refused",
		}
	}
	return &models.FetchOutcome{
		URL:        url,
		StatusCode: 200,
		Success:    true,
		Links:      links,
		Content:    map[models.OutputFormat]string{models.FormatText: "body of " + url},
		Metadata:   map[string]string{"title": "page " + url},
	}
}

func (g *fakeGateway) fetched() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

func baseConfig(seed string) Config {
	return Config{
		Seed:       seed,
		MaxDepth:   5,
		MaxPages:   50,
		Workers:    1,
		Strategy:   models.StrategyBFS,
		CrawlDelay: time.Millisecond,
	}
}

func TestRunBFSVisitsShallowFirst(t *testing.T) {
	gw := newFakeGateway(map[string][]string{
		"https://site.test/":  {"/a", "/b"},
		"https://site.test/a": {"/c"},
		"https://site.test/b": {},
		"https://site.test/c": {},
	})
	engine := NewEngine(gw)

	result, err := engine.Run(context.Background(), baseConfig("https://site.test/"))
	if err != nil {
		t.Fatal(err)
	}
	if result.Aborted {
		t.Fatal("run aborted unexpectedly")
	}
	if result.Reason != models.ReasonFrontierExhausted {
		t.Errorf("reason = %s, want %s", result.Reason, models.ReasonFrontierExhausted)
	}

	order := gw.fetched()
	if len(order) != 4 {
		t.Fatalf("fetched %d pages, want 4: %v", len(order), order)
	}
	// Depth 1 pages both precede the depth 2 page.
	pos := make(map[string]int, len(order))
	for i, u := range order {
		pos[u] = i
	}
	if pos["https://site.test/c"] < pos["https://site.test/a"] || pos["https://site.test/c"] < pos["https://site.test/b"] {
		t.Errorf("BFS fetched depth-2 page before depth-1 pages: %v", order)
	}
}

func TestRunDFSExpandsChildFirst(t *testing.T) {
	gw := newFakeGateway(map[string][]string{
		"https://site.test/":    {"/a", "/b"},
		"https://site.test/a":   {"/a/1"},
		"https://site.test/b":   {"/b/1"},
		"https://site.test/a/1": {},
		"https://site.test/b/1": {},
	})
	engine := NewEngine(gw)

	cfg := baseConfig("https://site.test/")
	cfg.Strategy = models.StrategyDFS
	result, err := engine.Run(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if result.Aborted {
		t.Fatal("run aborted unexpectedly")
	}

	order := gw.fetched()
	if len(order) < 3 {
		t.Fatalf("fetched %d pages, want at least 3: %v", len(order), order)
	}
	// With one worker the second fetch is a depth-1 child of the seed, and
	// the third dives into that child's subtree before its sibling.
	second := order[1]
	if second != "https://site.test/a" && second != "https://site.test/b" {
		t.Fatalf("second fetch = %s, want a seed child", second)
	}
	wantThird := second + "/1"
	if order[2] != wantThird {
		t.Errorf("third fetch = %s, want %s (child-first)", order[2], wantThird)
	}
}

func TestRunBestFirstFollowsScorer(t *testing.T) {
	gw := newFakeGateway(map[string][]string{
		"https://site.test/":     {"/skip", "/good"},
		"https://site.test/skip": {},
		"https://site.test/good": {},
	})
	engine := NewEngine(gw)

	cfg := baseConfig("https://site.test/")
	cfg.Strategy = models.StrategyBestFirst
	cfg.Scorer = func(link string, depth int) float64 {
		if link == "https://site.test/good" {
			return 1.0
		}
		return 0.0
	}
	if _, err := engine.Run(context.Background(), cfg); err != nil {
		t.Fatal(err)
	}

	order := gw.fetched()
	if len(order) != 3 {
		t.Fatalf("fetched %d pages, want 3: %v", len(order), order)
	}
	if order[1] != "https://site.test/good" {
		t.Errorf("second fetch = %s, want the highest-scored link", order[1])
	}
}

func TestRunMaxPagesBudget(t *testing.T) {
	gw := newFakeGateway(map[string][]string{
		"https://site.test/":  {"/a", "/b"},
		"https://site.test/a": {"/c"},
		"https://site.test/b": {},
		"https://site.test/c": {},
	})
	engine := NewEngine(gw)

	cfg := baseConfig("https://site.test/")
	cfg.MaxPages = 3
	result, err := engine.Run(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}

	if result.PagesFetched > 3 {
		t.Errorf("PagesFetched = %d, want <= 3", result.PagesFetched)
	}
	for _, u := range gw.fetched() {
		if u == "https://site.test/c" {
			t.Error("page beyond the budget was fetched")
		}
	}
	if result.Reason != models.ReasonMaxPages {
		t.Errorf("reason = %s, want %s", result.Reason, models.ReasonMaxPages)
	}
}

func TestRunNoDuplicateFetches(t *testing.T) {
	// Every page links back to every other page.
	gw := newFakeGateway(map[string][]string{
		"https://site.test/":  {"/a", "/b", "/"},
		"https://site.test/a": {"/b", "/", "/a"},
		"https://site.test/b": {"/a", "/", "/b"},
	})
	engine := NewEngine(gw)

	cfg := baseConfig("https://site.test/")
	cfg.Workers = 4
	result, err := engine.Run(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}

	seen := make(map[string]int)
	for _, o := range result.Outcomes {
		seen[o.URL]++
	}
	for u, n := range seen {
		if n > 1 {
			t.Errorf("URL %s fetched %d times", u, n)
		}
	}
}

func TestRunSeedFailureAborts(t *testing.T) {
	gw := newFakeGateway(map[string][]string{}) // seed not in graph: network error
	engine := NewEngine(gw)

	result, err := engine.Run(context.Background(), baseConfig("https://down.test/"))
	if err != nil {
		t.Fatal(err)
	}

	if !result.Aborted {
		t.Error("seed failure did not abort the run")
	}
	if result.Reason != models.ReasonSeedFailed {
		t.Errorf("reason = %s, want %s", result.Reason, models.ReasonSeedFailed)
	}
	if len(result.DiscoveredURLs) != 0 {
		t.Errorf("DiscoveredURLs = %v, want empty", result.DiscoveredURLs)
	}
}

func TestRunPageFailureTolerated(t *testing.T) {
	gw := newFakeGateway(map[string][]string{
		"https://site.test/":  {"/a", "/broken"},
		"https://site.test/a": {},
		// /broken absent: fails with a network error.
	})
	engine := NewEngine(gw)

	result, err := engine.Run(context.Background(), baseConfig("https://site.test/"))
	if err != nil {
		t.Fatal(err)
	}

	if result.Aborted {
		t.Error("non-seed failure aborted the run")
	}
	failures := 0
	for _, o := range result.Outcomes {
		if !o.Success {
			failures++
			if o.Failure != models.FailureNetwork {
				t.Errorf("failure kind = %s, want %s", o.Failure, models.FailureNetwork)
			}
		}
	}
	if failures != 1 {
		t.Errorf("recorded %d failures, want 1", failures)
	}
}

func TestRunExcludePatterns(t *testing.T) {
	gw := newFakeGateway(map[string][]string{
		"https://site.test/":     {"/docs", "/report.pdf"},
		"https://site.test/docs": {},
	})
	engine := NewEngine(gw)

	cfg := baseConfig("https://site.test/")
	cfg.ExcludePatterns = []string{`.*\.pdf$`}
	result, err := engine.Run(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}

	for _, u := range result.DiscoveredURLs {
		if u == "https://site.test/report.pdf" {
			t.Error("excluded URL appeared in discovered list")
		}
	}
	for _, u := range gw.fetched() {
		if u == "https://site.test/report.pdf" {
			t.Error("excluded URL was fetched")
		}
	}
}

func TestRunExternalLinksNotExpanded(t *testing.T) {
	gw := newFakeGateway(map[string][]string{
		"https://site.test/":       {"https://other.org/page"},
		"https://other.org/page":   {"https://other.org/deeper"},
		"https://other.org/deeper": {},
	})
	engine := NewEngine(gw)

	result, err := engine.Run(context.Background(), baseConfig("https://site.test/"))
	if err != nil {
		t.Fatal(err)
	}

	// The external page is a valid result but its own links are ignored.
	foundExternal := false
	for _, u := range result.DiscoveredURLs {
		if u == "https://other.org/page" {
			foundExternal = true
		}
		if u == "https://other.org/deeper" {
			t.Error("link discovered through an external page")
		}
	}
	if !foundExternal {
		t.Error("external link missing from discovered list")
	}
}

func TestRunTimeoutReturnsPartial(t *testing.T) {
	pages := map[string][]string{"https://site.test/": nil}
	var links []string
	for i := 0; i < 30; i++ {
		u := fmt.Sprintf("/page%d", i)
		links = append(links, u)
		pages["https://site.test"+u] = nil
	}
	pages["https://site.test/"] = links

	gw := newFakeGateway(pages)
	gw.delay = 30 * time.Millisecond
	engine := NewEngine(gw)

	cfg := baseConfig("https://site.test/")
	cfg.CrawlTimeout = 100 * time.Millisecond
	result, err := engine.Run(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}

	if result.Reason != models.ReasonTimeout {
		t.Errorf("reason = %s, want %s", result.Reason, models.ReasonTimeout)
	}
	if result.PagesFetched >= 31 {
		t.Errorf("timeout did not bound the run: %d pages", result.PagesFetched)
	}
	if result.PagesFetched == 0 {
		t.Error("partial results discarded on timeout")
	}
}

func TestRunCancellationTruncates(t *testing.T) {
	pages := map[string][]string{}
	var links []string
	for i := 0; i < 30; i++ {
		u := fmt.Sprintf("/page%d", i)
		links = append(links, u)
		pages["https://site.test"+u] = nil
	}
	pages["https://site.test/"] = links

	gw := newFakeGateway(pages)
	gw.delay = 20 * time.Millisecond
	engine := NewEngine(gw)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(60 * time.Millisecond)
		cancel()
	}()

	result, err := engine.Run(ctx, baseConfig("https://site.test/"))
	if err != nil {
		t.Fatal(err)
	}
	if result.Reason != models.ReasonCancelled {
		t.Errorf("reason = %s, want %s", result.Reason, models.ReasonCancelled)
	}
	if !result.Truncated {
		t.Error("cancelled run not flagged truncated")
	}
}

func TestRunInvalidInput(t *testing.T) {
	engine := NewEngine(newFakeGateway(nil))

	tests := []struct {
		name string
		cfg  Config
	}{
		{"bad scheme", Config{Seed: "ftp://site.test", MaxPages: 5, Strategy: models.StrategyBFS}},
		{"empty seed", Config{Seed: "", MaxPages: 5, Strategy: models.StrategyBFS}},
		{"zero max pages", Config{Seed: "https://site.test", MaxPages: 0, Strategy: models.StrategyBFS}},
		{"bad exclude regex", Config{Seed: "https://site.test", MaxPages: 5, Strategy: models.StrategyBFS, ExcludePatterns: []string{"["}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.Run(context.Background(), tt.cfg)
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("err = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestRunIsolatedState(t *testing.T) {
	gw := newFakeGateway(map[string][]string{
		"https://site.test/":  {"/a"},
		"https://site.test/a": {},
	})
	engine := NewEngine(gw)

	// Two identical runs must both fetch everything: no shared visited set.
	for i := 0; i < 2; i++ {
		result, err := engine.Run(context.Background(), baseConfig("https://site.test/"))
		if err != nil {
			t.Fatal(err)
		}
		if result.PagesFetched != 2 {
			t.Errorf("run %d fetched %d pages, want 2", i, result.PagesFetched)
		}
	}
}
