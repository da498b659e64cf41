package orchestrator

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/crawlkit/crawld/pkg/models"
)

func TestRunBatchAllSucceed(t *testing.T) {
	gw := newFakeGateway(map[string][]string{
		"https://a.test/": {},
		"https://b.test/": {},
		"https://c.test/": {},
	})
	engine := NewEngine(gw)

	urls := []string{"https://a.test/", "https://b.test/", "https://c.test/"}
	batch, err := engine.RunBatch(context.Background(), BatchConfig{
		URLs:       urls,
		Workers:    2,
		CrawlDelay: time.Millisecond,
	})
	if err != nil {
		t.Fatal(err)
	}

	if batch.Processed != 3 {
		t.Errorf("Processed = %d, want 3", batch.Processed)
	}
	if len(batch.Outcomes) != 3 {
		t.Fatalf("len(Outcomes) = %d, want 3", len(batch.Outcomes))
	}
	if !batch.AllSucceeded() {
		t.Error("AllSucceeded() = false for an all-success batch")
	}
	// Results preserve input order regardless of worker scheduling.
	for i, o := range batch.Outcomes {
		if o.URL != urls[i] {
			t.Errorf("Outcomes[%d].URL = %s, want %s", i, o.URL, urls[i])
		}
	}
}

func TestRunBatchPartialFailure(t *testing.T) {
	gw := newFakeGateway(map[string][]string{
		"https://a.test/": {},
		"https://c.test/": {},
		// b.test absent: network error.
	})
	engine := NewEngine(gw)

	urls := []string{"https://a.test/", "https://b.test/", "https://c.test/"}
	batch, err := engine.RunBatch(context.Background(), BatchConfig{
		URLs:       urls,
		Workers:    3,
		CrawlDelay: time.Millisecond,
	})
	if err != nil {
		t.Fatal(err)
	}

	if batch.Processed != len(urls) {
		t.Errorf("Processed = %d, want %d", batch.Processed, len(urls))
	}
	successes := 0
	for _, o := range batch.Outcomes {
		if o.Success {
			successes++
		}
	}
	if successes != 2 {
		t.Errorf("successes = %d, want 2", successes)
	}
	if batch.AllSucceeded() {
		t.Error("AllSucceeded() = true despite a failure")
	}
	if batch.Outcomes[1].Success {
		t.Error("failed URL reported success")
	}
}

func TestRunBatchInvalidURLStillCounted(t *testing.T) {
	gw := newFakeGateway(map[string][]string{
		"https://a.test/": {},
	})
	engine := NewEngine(gw)

	urls := []string{"https://a.test/", "not a url", "ftp://b.test/"}
	batch, err := engine.RunBatch(context.Background(), BatchConfig{
		URLs:       urls,
		Workers:    2,
		CrawlDelay: time.Millisecond,
	})
	if err != nil {
		t.Fatal(err)
	}

	if batch.Processed != 3 || len(batch.Outcomes) != 3 {
		t.Fatalf("Processed = %d, len(Outcomes) = %d, want 3 and 3", batch.Processed, len(batch.Outcomes))
	}
	for i := 1; i < 3; i++ {
		if batch.Outcomes[i].Success {
			t.Errorf("invalid URL %q reported success", urls[i])
		}
		if batch.Outcomes[i].Error == "" {
			t.Errorf("invalid URL %q has no error message", urls[i])
		}
	}
}

func TestRunBatchEmptyInput(t *testing.T) {
	engine := NewEngine(newFakeGateway(nil))
	if _, err := engine.RunBatch(context.Background(), BatchConfig{}); err == nil {
		t.Error("empty batch accepted")
	}
}

func TestRunBatchOnOutcome(t *testing.T) {
	gw := newFakeGateway(map[string][]string{
		"https://a.test/": {},
		"https://b.test/": {},
	})
	engine := NewEngine(gw)

	var calls atomic.Int64
	_, err := engine.RunBatch(context.Background(), BatchConfig{
		URLs:       []string{"https://a.test/", "https://b.test/"},
		Workers:    2,
		CrawlDelay: time.Millisecond,
		OnOutcome:  func(*models.FetchOutcome) { calls.Add(1) },
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("OnOutcome called %d times, want 2", got)
	}
}

func TestBatchResultAverageTime(t *testing.T) {
	b := &BatchResult{Elapsed: 3 * time.Second, Processed: 2}
	if got := b.AverageTime(); got != 1.5 {
		t.Errorf("AverageTime() = %v, want 1.5", got)
	}
	empty := &BatchResult{}
	if got := empty.AverageTime(); got != 0 {
		t.Errorf("AverageTime() on empty batch = %v, want 0", got)
	}
}
