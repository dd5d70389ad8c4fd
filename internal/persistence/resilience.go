package persistence

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/aristath/siteplan/internal/scheduler"
)

// RetryConfig configures exponential backoff for writes that hit a busy database.
type RetryConfig struct {
	InitialInterval     time.Duration // Initial retry interval (default 50ms)
	MaxInterval         time.Duration // Maximum retry interval (default 1s)
	MaxElapsedTime      time.Duration // Maximum total retry time (default 10s)
	Multiplier          float64       // Backoff multiplier (default 2.0)
	RandomizationFactor float64       // Jitter factor (default 0.5)
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialInterval:     50 * time.Millisecond,
		MaxInterval:         time.Second,
		MaxElapsedTime:      10 * time.Second,
		Multiplier:          2.0,
		RandomizationFactor: 0.5,
	}
}

// breakers holds one circuit breaker per write kind, so a database that
// keeps failing commits is not hammered by every caller.
type breakers struct {
	mu sync.Mutex
	m  map[string]*gobreaker.CircuitBreaker
}

func newBreakers() *breakers {
	return &breakers{m: make(map[string]*gobreaker.CircuitBreaker)}
}

func (b *breakers) get(name string) *gobreaker.CircuitBreaker {
	b.mu.Lock()
	defer b.mu.Unlock()

	if cb, ok := b.m[name]; ok {
		return cb
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Printf("Store breaker %q: %s -> %s", name, from, to)
		},
		IsSuccessful: func(err error) bool {
			// Caller mistakes and cancellation say nothing about database health
			return err == nil ||
				errors.Is(err, context.Canceled) ||
				errors.Is(err, context.DeadlineExceeded) ||
				errors.Is(err, scheduler.ErrTaskNotFound) ||
				errors.Is(err, ErrProjectNotFound)
		},
	})
	b.m[name] = cb
	return cb
}

// isBusy reports whether err is SQLite lock contention worth retrying.
func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "SQLITE_LOCKED") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}

// withRetry runs op through the named breaker, retrying busy errors with
// exponential backoff. Any other error stops immediately.
func (s *SQLiteStore) withRetry(ctx context.Context, name string, op func() error) error {
	cb := s.cb.get(name)

	operation := func() error {
		// Check context first - fail fast if cancelled
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}

		_, err := cb.Execute(func() (interface{}, error) {
			return nil, op()
		})
		if err == nil {
			return nil
		}

		// Circuit is open - don't retry
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return backoff.Permanent(err)
		}
		if isBusy(err) {
			log.Printf("WARNING: %s: database busy, retrying", name)
			return err
		}
		return backoff.Permanent(err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.retry.InitialInterval
	policy.MaxInterval = s.retry.MaxInterval
	policy.MaxElapsedTime = s.retry.MaxElapsedTime
	policy.Multiplier = s.retry.Multiplier
	policy.RandomizationFactor = s.retry.RandomizationFactor

	return backoff.Retry(operation, backoff.WithContext(policy, ctx))
}
