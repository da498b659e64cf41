package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/crawlkit/crawld/pkg/models"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want models.FailureKind
	}{
		{"nil", nil, models.FailureNone},
		{"robots denied", ErrRobotsDenied, models.FailureExcluded},
		{"not html", fmt.Errorf("%w: content-type %q", ErrNotHTML, "application/pdf"), models.FailureExcluded},
		{"deadline", context.DeadlineExceeded, models.FailureTimeout},
		{"wrapped deadline", fmt.Errorf("fetch: %w", context.DeadlineExceeded), models.FailureTimeout},
		{"http status", fmt.Errorf("%w 404", ErrHTTPStatus), models.FailureNetwork},
		{"browser crash", ErrBrowserCrashed, models.FailureRender},
		{"op error", &net.OpError{Op: "dial", Err: errors.New("refused")}, models.FailureNetwork},
		{"refused string", errors.New("dial tcp: connection refused"), models.FailureNetwork},
		{"no such host", errors.New("lookup nowhere.invalid: no such host"), models.FailureNetwork},
		{"unknown", errors.New("something else entirely"), models.FailureRender},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classify(tt.err); got != tt.want {
				t.Errorf("classify(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}

func TestFailureOutcome(t *testing.T) {
	outcome := failure("https://example.com/", ErrRobotsDenied, 42*time.Millisecond)
	if outcome.Success {
		t.Error("failure outcome marked successful")
	}
	if outcome.Failure != models.FailureExcluded {
		t.Errorf("Failure = %q, want %q", outcome.Failure, models.FailureExcluded)
	}
	if outcome.Error == "" {
		t.Error("Error message empty")
	}
	if outcome.Content == nil || outcome.Metadata == nil {
		t.Error("failure outcome has nil maps")
	}
}

type stubGateway struct {
	name string
}

func (s *stubGateway) Name() string { return s.name }

func (s *stubGateway) Fetch(ctx context.Context, url string, cfg models.RenderConfig) *models.FetchOutcome {
	return &models.FetchOutcome{URL: url, Success: true, Metadata: map[string]string{"backend": s.name}}
}

func TestCompositeRouting(t *testing.T) {
	static := &stubGateway{name: "static"}
	dynamic := &stubGateway{name: "dynamic"}
	gw := NewComposite(static, dynamic)

	cfg := models.RenderConfig{WaitForJS: true}
	if got := gw.Fetch(context.Background(), "https://example.com/", cfg).Metadata["backend"]; got != "dynamic" {
		t.Errorf("WaitForJS routed to %q, want dynamic", got)
	}

	cfg.WaitForJS = false
	if got := gw.Fetch(context.Background(), "https://example.com/", cfg).Metadata["backend"]; got != "static" {
		t.Errorf("plain fetch routed to %q, want static", got)
	}
}

func TestCompositeNilDynamicFallsBack(t *testing.T) {
	static := &stubGateway{name: "static"}
	gw := NewComposite(static, nil)

	cfg := models.RenderConfig{WaitForJS: true}
	if got := gw.Fetch(context.Background(), "https://example.com/", cfg).Metadata["backend"]; got != "static" {
		t.Errorf("fetch without a browser routed to %q, want static", got)
	}
}

func TestConvertMarkdown(t *testing.T) {
	html := `<html><body>
	  <h1>Title</h1>
	  <p>Read the <a href="/docs/guide">guide</a>.</p>
	  <pre><code>go test ./...</code></pre>
	</body></html>`

	got, err := convertMarkdown(html, "https://example.com/start")
	if err != nil {
		t.Fatalf("convertMarkdown() error = %v", err)
	}
	if !strings.Contains(got, "# Title") {
		t.Errorf("markdown missing heading: %q", got)
	}
	if !strings.Contains(got, "[guide](https://example.com/docs/guide)") {
		t.Errorf("relative link not resolved: %q", got)
	}
	if !strings.Contains(got, "go test ./...") {
		t.Errorf("code block lost: %q", got)
	}
}

func TestConvertMarkdownKeepsLinkTitle(t *testing.T) {
	html := `<p><a href="https://example.com/a" title="the a page">a</a></p>`
	got, err := convertMarkdown(html, "https://example.com/")
	if err != nil {
		t.Fatalf("convertMarkdown() error = %v", err)
	}
	if !strings.Contains(got, `"the a page"`) {
		t.Errorf("link title dropped: %q", got)
	}
}
