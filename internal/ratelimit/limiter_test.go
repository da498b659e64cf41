package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestWorkerLimiterSpacesDispatches(t *testing.T) {
	lim := NewWorkerLimiter(50 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := lim.Wait(ctx); err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
	}
	elapsed := time.Since(start)

	// First dispatch is immediate, the next two wait out the delay.
	if elapsed < 90*time.Millisecond {
		t.Errorf("3 waits took %v, want >= ~100ms", elapsed)
	}
}

func TestWorkerLimiterZeroDelay(t *testing.T) {
	lim := NewWorkerLimiter(0)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 100; i++ {
		if err := lim.Wait(ctx); err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("disabled limiter took %v, want no throttling", elapsed)
	}
}

func TestWorkerLimiterContextCancel(t *testing.T) {
	lim := NewWorkerLimiter(10 * time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	// Consume the initial token, then the next wait must observe cancellation.
	if err := lim.Wait(ctx); err != nil {
		t.Fatalf("first Wait() error = %v", err)
	}
	if err := lim.Wait(ctx); err == nil {
		t.Error("second Wait() = nil, want context error")
	}
}

func TestWorkerLimiterNilReceiver(t *testing.T) {
	var lim *WorkerLimiter
	if err := lim.Wait(context.Background()); err != nil {
		t.Errorf("nil limiter Wait() = %v, want nil", err)
	}
}

func TestDomainLimiterPerHostIsolation(t *testing.T) {
	dl := NewDomainLimiter(1.0, 1)

	if !dl.Allow("https://a.example.com/page") {
		t.Fatal("first request to a.example.com denied")
	}
	if dl.Allow("https://a.example.com/other") {
		t.Error("second immediate request to a.example.com allowed, want denied")
	}
	// A different host has its own bucket.
	if !dl.Allow("https://b.example.com/page") {
		t.Error("first request to b.example.com denied")
	}
}

func TestDomainLimiterBurst(t *testing.T) {
	dl := NewDomainLimiter(1.0, 3)
	for i := 0; i < 3; i++ {
		if !dl.Allow("https://example.com/") {
			t.Fatalf("request %d within burst denied", i+1)
		}
	}
	if dl.Allow("https://example.com/") {
		t.Error("request past burst allowed, want denied")
	}
}

func TestDomainLimiterInvalidURL(t *testing.T) {
	dl := NewDomainLimiter(1.0, 1)
	if !dl.Allow("://not a url") {
		t.Error("invalid URL denied, want pass-through")
	}
	if err := dl.Wait(context.Background(), "://not a url"); err != nil {
		t.Errorf("Wait() on invalid URL = %v, want nil", err)
	}
}

func TestDomainLimiterWaitHonorsContext(t *testing.T) {
	dl := NewDomainLimiter(0.1, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := dl.Wait(ctx, "https://example.com/"); err != nil {
		t.Fatalf("first Wait() error = %v", err)
	}
	if err := dl.Wait(ctx, "https://example.com/"); err == nil {
		t.Error("second Wait() = nil, want context error")
	}
}
