package ports

import "time"

// ErrorSink receives the message shown to the user when a field fails validation
type ErrorSink interface {
	AddError(message string)
}

// Metrics records verification outcomes
type Metrics interface {
	ObserveVerification(outcome string, duration time.Duration)
}
