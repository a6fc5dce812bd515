package retry

import (
	"context"
	"errors"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/cenkalti/backoff/v4"
	"github.com/layer-3/recaptcha"
)

// BackoffClient retries verifications that failed with recaptcha.ErrTransport.
// Configuration and protocol errors are returned immediately.
type BackoffClient struct {
	next            recaptcha.Client
	maxRetries      uint64
	initialInterval time.Duration
	logger          watermill.LoggerAdapter
}

// NewBackoffClient wraps next with exponential backoff retries
func NewBackoffClient(next recaptcha.Client, maxRetries uint64, initialInterval time.Duration, logger watermill.LoggerAdapter) recaptcha.Client {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	return &BackoffClient{
		next:            next,
		maxRetries:      maxRetries,
		initialInterval: initialInterval,
		logger:          logger,
	}
}

// Verify calls the wrapped client until it succeeds, fails permanently or runs out of retries
func (b *BackoffClient) Verify(ctx context.Context, challenge, response string) (recaptcha.Response, error) {
	var res recaptcha.Response

	operation := func() error {
		var err error
		res, err = b.next.Verify(ctx, challenge, response)
		if err != nil && !errors.Is(err, recaptcha.ErrTransport) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		b.logger.Info("Retrying verification", watermill.LogFields{
			"error": err.Error(),
			"wait":  wait.String(),
		})
	}

	if err := backoff.RetryNotify(operation, b.policy(ctx), notify); err != nil {
		return recaptcha.Response{}, err
	}

	return res, nil
}

func (b *BackoffClient) policy(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	if b.initialInterval > 0 {
		eb.InitialInterval = b.initialInterval
	}
	eb.MaxElapsedTime = 0
	eb.Reset()

	return backoff.WithContext(backoff.WithMaxRetries(eb, b.maxRetries), ctx)
}

// ChallengeURL delegates to the wrapped client
func (b *BackoffClient) ChallengeURL(errorCode string) (string, error) {
	return b.next.ChallengeURL(errorCode)
}

// NoscriptURL delegates to the wrapped client
func (b *BackoffClient) NoscriptURL(errorCode string) (string, error) {
	return b.next.NoscriptURL(errorCode)
}

// WithRemoteIP wraps the scoped client with the same retry policy
func (b *BackoffClient) WithRemoteIP(ip string) recaptcha.Client {
	return NewBackoffClient(b.next.WithRemoteIP(ip), b.maxRetries, b.initialInterval, b.logger)
}
