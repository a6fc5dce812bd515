package store

import (
	"context"
	"sync"
	"time"

	"github.com/layer-3/recaptcha/ports"
)

// evictEvery is the number of RecordFailure calls between sweeps of finished windows
const evictEvery = 256

type failureWindow struct {
	count     int64
	expiresAt time.Time
}

// MemoryLimiter is an in-memory implementation of the AttemptLimiter interface.
// Counts live in fixed windows starting at the first failure.
type MemoryLimiter struct {
	failures map[string]failureWindow
	mu       sync.Mutex
	now      func() time.Time
	calls    int
}

// NewMemoryLimiter creates a new in-memory limiter
func NewMemoryLimiter() ports.AttemptLimiter {
	return newMemoryLimiter(time.Now)
}

func newMemoryLimiter(now func() time.Time) *MemoryLimiter {
	return &MemoryLimiter{
		failures: make(map[string]failureWindow),
		now:      now,
	}
}

// RecordFailure counts a failure for key
func (s *MemoryLimiter) RecordFailure(ctx context.Context, key string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	w, exists := s.failures[key]
	if !exists || !now.Before(w.expiresAt) {
		w = failureWindow{expiresAt: now.Add(window)}
	}
	w.count++
	s.failures[key] = w

	s.calls++
	if s.calls%evictEvery == 0 {
		s.evictExpired(now)
	}

	return w.count, nil
}

// Failures returns the failures recorded for key in its current window
func (s *MemoryLimiter) Failures(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, exists := s.failures[key]
	if !exists || !s.now().Before(w.expiresAt) {
		return 0, nil
	}

	return w.count, nil
}

// evictExpired drops finished windows; callers hold the lock
func (s *MemoryLimiter) evictExpired(now time.Time) {
	for key, w := range s.failures {
		if !now.Before(w.expiresAt) {
			delete(s.failures, key)
		}
	}
}
