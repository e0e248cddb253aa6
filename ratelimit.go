package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter wraps rate.Limiter for throttling status and config
// requests, so a wildcard status sweep over many folders does not
// hammer the Syncthing API.
type RateLimiter struct {
	limiter *rate.Limiter
	logger  *slog.Logger
}

// newRateLimiter creates a new rate limiter
// rps is requests per second
func newRateLimiter(rps float64, logger *slog.Logger) *RateLimiter {
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		logger:  logger,
	}
}

// Wait blocks until rate limit allows another request or ctx is done
func (r *RateLimiter) Wait(ctx context.Context) error {
	reservation := r.limiter.Reserve()
	if !reservation.OK() {
		return errors.New("rate limiter cannot satisfy request")
	}

	delay := reservation.Delay()
	if delay <= 0 {
		return nil
	}
	r.logger.Debug("Rate limiter: waiting before request", "delay_ms", delay.Milliseconds())

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		reservation.Cancel()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
