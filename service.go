package recaptcha

import (
	"context"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/watermill"
)

const (
	// APIServer is the plaintext base URL of the widget API
	APIServer = "http://www.google.com/recaptcha/api"

	// APISecureServer is the TLS base URL of the widget API
	APISecureServer = "https://www.google.com/recaptcha/api"

	// VerifyServer is the host answering verification requests
	VerifyServer = "www.google.com"

	// VerifyPath is the path of the verification endpoint
	VerifyPath = "/recaptcha/api/verify"

	// DefaultVerifyPort is the port verification requests are sent to
	DefaultVerifyPort = 80

	// DefaultDialTimeout bounds establishing the connection
	DefaultDialTimeout = 10 * time.Second

	// DefaultReadTimeout bounds writing the request and reading the reply
	DefaultReadTimeout = 30 * time.Second
)

// Dialer opens connections to the verification host
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Config holds the keys and endpoint settings of a Service
type Config struct {
	PrivateKey string
	PublicKey  string

	// UseSSL selects the TLS widget server. Verification is always sent in plaintext.
	UseSSL bool

	// RemoteIP is the default submitter address, see Service.WithRemoteIP
	RemoteIP string

	VerifyServer string
	VerifyPort   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration

	Dialer Dialer
	Logger watermill.LoggerAdapter
}

// Service verifies answers against the reCAPTCHA verification host.
// It holds no mutable state and is safe for concurrent use.
type Service struct {
	privateKey   string
	publicKey    string
	useSSL       bool
	remoteIP     string
	verifyServer string
	verifyPort   int
	dialTimeout  time.Duration
	readTimeout  time.Duration
	dialer       Dialer
	logger       watermill.LoggerAdapter
}

// NewService creates a new Service, filling unset endpoint settings with defaults.
// Keys are checked when they are used, not here.
func NewService(cfg Config) *Service {
	s := &Service{
		privateKey:   cfg.PrivateKey,
		publicKey:    cfg.PublicKey,
		useSSL:       cfg.UseSSL,
		remoteIP:     cfg.RemoteIP,
		verifyServer: cfg.VerifyServer,
		verifyPort:   cfg.VerifyPort,
		dialTimeout:  cfg.DialTimeout,
		readTimeout:  cfg.ReadTimeout,
		dialer:       cfg.Dialer,
		logger:       cfg.Logger,
	}

	if s.verifyServer == "" {
		s.verifyServer = VerifyServer
	}
	if s.verifyPort == 0 {
		s.verifyPort = DefaultVerifyPort
	}
	if s.dialTimeout <= 0 {
		s.dialTimeout = DefaultDialTimeout
	}
	if s.readTimeout <= 0 {
		s.readTimeout = DefaultReadTimeout
	}
	if s.dialer == nil {
		s.dialer = &net.Dialer{}
	}
	if s.logger == nil {
		s.logger = watermill.NopLogger{}
	}

	return s
}

// WithRemoteIP returns a copy of the service reporting ip as the submitter's address
func (s *Service) WithRemoteIP(ip string) Client {
	c := *s
	c.remoteIP = ip
	return &c
}

// Verify checks whether response is the correct answer to challenge.
//
// A missing challenge or response is not an error: it yields an invalid Response
// without contacting the network. Missing keys fail with ErrConfiguration,
// connection problems with ErrTransport and malformed replies with ErrProtocol.
func (s *Service) Verify(ctx context.Context, challenge, response string) (Response, error) {
	if s.privateKey == "" {
		return Response{}, ErrMissingPrivateKey
	}
	if s.remoteIP == "" {
		return Response{}, ErrMissingRemoteIP
	}

	// discard spam submissions
	if challenge == "" || response == "" {
		return NewResponse(challenge, false, ErrorIncorrectSolution), nil
	}

	fields := watermill.LogFields{
		"remote_ip": s.remoteIP,
		"host":      s.verifyServer,
	}
	s.logger.Debug("Sending verification request", fields)

	body, err := s.httpPost(ctx, VerifyPath, []formField{
		{"privatekey", s.privateKey},
		{"remoteip", s.remoteIP},
		{"challenge", challenge},
		{"response", response},
	})
	if err != nil {
		s.logger.Error("Verification request failed", err, fields)
		return Response{}, err
	}

	result, err := parseAnswer(challenge, body)
	if err != nil {
		s.logger.Error("Unexpected verification answer", err, fields.Add(watermill.LogFields{"body": body}))
		return Response{}, err
	}

	s.logger.Debug("Verification answered", fields.Add(watermill.LogFields{
		"valid":      result.IsValid(),
		"error_code": result.ErrorCode(),
	}))

	return result, nil
}

// ChallengeURL returns the script source of the challenge widget
func (s *Service) ChallengeURL(errorCode string) (string, error) {
	return s.widgetURL("/challenge", errorCode)
}

// NoscriptURL returns the iframe source of the challenge widget
func (s *Service) NoscriptURL(errorCode string) (string, error) {
	return s.widgetURL("/noscript", errorCode)
}

func (s *Service) widgetURL(path, errorCode string) (string, error) {
	if s.publicKey == "" {
		return "", ErrMissingPublicKey
	}

	var b strings.Builder
	b.WriteString(s.server())
	b.WriteString(path)
	b.WriteString("?k=")
	b.WriteString(url.QueryEscape(s.publicKey))
	if errorCode != "" {
		b.WriteString("&error=")
		b.WriteString(url.QueryEscape(errorCode))
	}

	return b.String(), nil
}

func (s *Service) server() string {
	if s.useSSL {
		return APISecureServer
	}
	return APIServer
}
