package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/google/uuid"
	"github.com/layer-3/recaptcha"
	"github.com/layer-3/recaptcha/core"
	"github.com/layer-3/recaptcha/ports"
)

// Outcome labels reported to ports.Metrics
const (
	OutcomeValid         = "valid"
	OutcomeInvalid       = "invalid"
	OutcomeRateLimited   = "rate_limited"
	OutcomeConfiguration = "configuration_error"
	OutcomeTransport     = "transport_error"
	OutcomeProtocol      = "protocol_error"
)

// Config tunes the verification service
type Config struct {
	// ErrorText is reported to the error sink when a submission is rejected
	ErrorText string

	// MaxFailures is the number of failures allowed per remote ip within FailureWindow,
	// zero disables the limit
	MaxFailures   int64
	FailureWindow time.Duration

	// PassTTL is the lifetime of pass tokens
	PassTTL time.Duration
}

// DefaultErrorText is used when Config.ErrorText is empty
const DefaultErrorText = "The CAPTCHA was not solved correctly."

// VerificationService validates CAPTCHA submissions for the form pipeline
type VerificationService struct {
	client    recaptcha.Client
	limiter   ports.AttemptLimiter
	eventPub  ports.EventPublisher
	tokenizer ports.Tokenizer
	metrics   ports.Metrics
	logger    watermill.LoggerAdapter

	errorText     string
	maxFailures   int64
	failureWindow time.Duration
	passTTL       time.Duration
}

// NewVerificationService creates a new verification service.
// limiter, eventPub, tokenizer and metrics are optional and may be nil.
func NewVerificationService(
	client recaptcha.Client,
	limiter ports.AttemptLimiter,
	eventPub ports.EventPublisher,
	tokenizer ports.Tokenizer,
	metrics ports.Metrics,
	logger watermill.LoggerAdapter,
	cfg Config,
) *VerificationService {
	s := &VerificationService{
		client:        client,
		limiter:       limiter,
		eventPub:      eventPub,
		tokenizer:     tokenizer,
		metrics:       metrics,
		logger:        logger,
		errorText:     cfg.ErrorText,
		maxFailures:   cfg.MaxFailures,
		failureWindow: cfg.FailureWindow,
		passTTL:       cfg.PassTTL,
	}

	if s.logger == nil {
		s.logger = watermill.NopLogger{}
	}
	if s.errorText == "" {
		s.errorText = DefaultErrorText
	}
	if s.failureWindow <= 0 {
		s.failureWindow = 15 * time.Minute
	}
	if s.passTTL <= 0 {
		s.passTTL = 5 * time.Minute
	}

	return s
}

// Validate verifies a submission and reports the error text to sink when it is rejected.
//
// Rejected answers are not errors: the returned Outcome carries the invalid Response.
// Configuration and transport errors are returned as is. Protocol errors are logged,
// reported to sink and returned.
func (s *VerificationService) Validate(ctx context.Context, sub core.Submission, sink ports.ErrorSink) (*core.Outcome, error) {
	start := time.Now()

	if s.limiter != nil && s.maxFailures > 0 && sub.RemoteIP != "" {
		failures, err := s.limiter.Failures(ctx, sub.RemoteIP)
		if err != nil {
			// Fail open, the verification host still judges the answer
			s.logger.Error("Failed to read failure count", err, watermill.LogFields{"remote_ip": sub.RemoteIP})
		} else if failures >= s.maxFailures {
			s.report(sink)
			s.observe(OutcomeRateLimited, start)
			return nil, core.ErrTooManyAttempts
		}
	}

	client := s.client
	if sub.RemoteIP != "" {
		client = client.WithRemoteIP(sub.RemoteIP)
	}

	res, err := client.Verify(ctx, sub.Challenge, sub.Response)
	if err != nil {
		switch {
		case errors.Is(err, recaptcha.ErrConfiguration):
			s.observe(OutcomeConfiguration, start)
		case errors.Is(err, recaptcha.ErrProtocol):
			s.logger.Error("Verification host answered unexpectedly", err, watermill.LogFields{"remote_ip": sub.RemoteIP})
			s.report(sink)
			s.observe(OutcomeProtocol, start)
		default:
			s.observe(OutcomeTransport, start)
		}
		return nil, fmt.Errorf("verification failed: %w", err)
	}

	if res.IsValid() {
		s.observe(OutcomeValid, start)
	} else {
		s.recordFailure(ctx, sub.RemoteIP)
		s.report(sink)
		s.observe(OutcomeInvalid, start)
	}

	s.publish(ctx, sub, res)

	outcome := &core.Outcome{Response: res}
	if res.IsValid() {
		token, err := s.issuePass(sub)
		if err != nil {
			return nil, err
		}
		outcome.PassToken = token
	}

	return outcome, nil
}

// ValidatePass checks a pass token issued by Validate.
// A pass bound to an address is only accepted from remoteIP equal to it.
func (s *VerificationService) ValidatePass(ctx context.Context, token, remoteIP string) (*core.Pass, error) {
	if s.tokenizer == nil || token == "" {
		return nil, core.ErrInvalidPass
	}

	pass, err := s.tokenizer.TokenToPass(token)
	if err != nil {
		return nil, err
	}

	if time.Now().After(pass.ExpiresAt) {
		return nil, core.ErrPassExpired
	}

	if pass.RemoteIP != "" && pass.RemoteIP != remoteIP {
		return nil, fmt.Errorf("%w: issued to another address", core.ErrInvalidPass)
	}

	return pass, nil
}

// WidgetURLs returns the script and noscript sources of the challenge widget
func (s *VerificationService) WidgetURLs(errorCode string) (script string, noscript string, err error) {
	script, err = s.client.ChallengeURL(errorCode)
	if err != nil {
		return "", "", err
	}

	noscript, err = s.client.NoscriptURL(errorCode)
	if err != nil {
		return "", "", err
	}

	return script, noscript, nil
}

func (s *VerificationService) issuePass(sub core.Submission) (string, error) {
	if s.tokenizer == nil {
		return "", nil
	}

	now := time.Now()
	token, err := s.tokenizer.PassToToken(&core.Pass{
		ID:        uuid.New().String(),
		Challenge: sub.Challenge,
		RemoteIP:  sub.RemoteIP,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.passTTL),
	})
	if err != nil {
		return "", fmt.Errorf("failed to issue pass: %w", err)
	}

	return token, nil
}

func (s *VerificationService) recordFailure(ctx context.Context, remoteIP string) {
	if s.limiter == nil || s.maxFailures <= 0 || remoteIP == "" {
		return
	}

	if _, err := s.limiter.RecordFailure(ctx, remoteIP, s.failureWindow); err != nil {
		s.logger.Error("Failed to record failure", err, watermill.LogFields{"remote_ip": remoteIP})
	}
}

func (s *VerificationService) publish(ctx context.Context, sub core.Submission, res recaptcha.Response) {
	if s.eventPub == nil {
		return
	}

	event := core.VerificationEvent{
		ID:         uuid.New().String(),
		RemoteIP:   sub.RemoteIP,
		Challenge:  sub.Challenge,
		Valid:      res.IsValid(),
		ErrorCode:  res.ErrorCode(),
		OccurredAt: time.Now().UTC(),
	}

	// The verification already happened, a lost event must not fail it
	if err := s.eventPub.PublishVerification(ctx, event); err != nil {
		s.logger.Error("Failed to publish verification event", err, watermill.LogFields{"event_id": event.ID})
	}
}

func (s *VerificationService) report(sink ports.ErrorSink) {
	if sink != nil {
		sink.AddError(s.errorText)
	}
}

func (s *VerificationService) observe(outcome string, start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveVerification(outcome, time.Since(start))
	}
}
