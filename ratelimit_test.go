package main

import (
	"context"
	"testing"
	"time"
)

func TestRateLimiterAllowsFirstRequestImmediately(t *testing.T) {
	rl := newRateLimiter(1, testLogger())

	start := time.Now()
	if err := rl.Wait(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Fatalf("first request should not be throttled, waited %v", elapsed)
	}
}

func TestRateLimiterWaitHonorsCancellation(t *testing.T) {
	// 1 req/hour: the second request would wait essentially forever, so
	// cancellation must cut the wait short.
	rl := newRateLimiter(1.0/3600, testLogger())
	if err := rl.Wait(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- rl.Wait(ctx)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err == nil {
			t.Fatalf("expected error after cancellation")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Wait did not return after cancellation")
	}
}
