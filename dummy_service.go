package recaptcha

import (
	"context"
)

// DummyService accepts every answer without contacting the network.
// Use it to switch verification off in tests and local development.
type DummyService struct{}

// NewDummyService creates a new DummyService
func NewDummyService() *DummyService {
	return &DummyService{}
}

// Verify always reports a valid answer
func (d *DummyService) Verify(ctx context.Context, challenge, response string) (Response, error) {
	return NewResponse("", true, ""), nil
}

// ChallengeURL returns an empty URL, there is no widget to render
func (d *DummyService) ChallengeURL(errorCode string) (string, error) {
	return "", nil
}

// NoscriptURL returns an empty URL, there is no widget to render
func (d *DummyService) NoscriptURL(errorCode string) (string, error) {
	return "", nil
}

// WithRemoteIP returns the same dummy, the address is never used
func (d *DummyService) WithRemoteIP(ip string) Client {
	return d
}
