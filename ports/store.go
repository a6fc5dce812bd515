package ports

import (
	"context"
	"time"
)

// AttemptLimiter counts failed verifications per key
type AttemptLimiter interface {
	// RecordFailure adds a failure to key and returns the count within window
	RecordFailure(ctx context.Context, key string, window time.Duration) (int64, error)
	// Failures returns the number of failures currently recorded for key
	Failures(ctx context.Context, key string) (int64, error)
}
