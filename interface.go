package recaptcha

import (
	"context"
)

// Client represents the public interface for verifying CAPTCHA submissions
type Client interface {
	// Verify asks the verification host whether response solves challenge
	Verify(ctx context.Context, challenge, response string) (Response, error)

	// ChallengeURL returns the script URL of the challenge widget
	ChallengeURL(errorCode string) (string, error)

	// NoscriptURL returns the iframe URL used when scripts are disabled
	NoscriptURL(errorCode string) (string, error)

	// WithRemoteIP returns a client reporting ip as the submitter's address
	WithRemoteIP(ip string) Client
}
