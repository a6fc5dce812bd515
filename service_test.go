package recaptcha

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedRequest struct {
	method        string
	path          string
	proto         string
	host          string
	contentType   string
	userAgent     string
	contentLength int64
	rawBody       string
	form          url.Values
}

// fakeHost is a minimal verification host answering every request with reply
type fakeHost struct {
	listener net.Listener
	reply    string
	requests chan capturedRequest
	hits     atomic.Int32
}

func startFakeHost(t *testing.T, reply string) *fakeHost {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	h := &fakeHost{
		listener: ln,
		reply:    reply,
		requests: make(chan capturedRequest, 64),
	}
	go h.serve()
	t.Cleanup(func() { ln.Close() })

	return h
}

func (h *fakeHost) serve() {
	for {
		conn, err := h.listener.Accept()
		if err != nil {
			return
		}
		go h.handle(conn)
	}
}

func (h *fakeHost) handle(conn net.Conn) {
	defer conn.Close()
	h.hits.Add(1)

	req, err := http.ReadRequest(bufio.NewReader(conn))
	if err != nil {
		return
	}
	body, _ := io.ReadAll(req.Body)
	form, _ := url.ParseQuery(string(body))

	h.requests <- capturedRequest{
		method:        req.Method,
		path:          req.URL.Path,
		proto:         req.Proto,
		host:          req.Host,
		contentType:   req.Header.Get("Content-Type"),
		userAgent:     req.Header.Get("User-Agent"),
		contentLength: req.ContentLength,
		rawBody:       string(body),
		form:          form,
	}

	_, _ = io.WriteString(conn, h.reply)
}

func (h *fakeHost) port() int {
	return h.listener.Addr().(*net.TCPAddr).Port
}

func (h *fakeHost) lastRequest(t *testing.T) capturedRequest {
	t.Helper()
	select {
	case r := <-h.requests:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("verification host received no request")
		return capturedRequest{}
	}
}

func httpReply(body string) string {
	return "HTTP/1.0 200 OK\r\nContent-Type: text/plain\r\n\r\n" + body
}

func newTestService(port int, opts ...func(*Config)) *Service {
	cfg := Config{
		PrivateKey:   "private-key",
		PublicKey:    "public-key",
		RemoteIP:     "10.0.0.1",
		VerifyServer: "127.0.0.1",
		VerifyPort:   port,
		DialTimeout:  time.Second,
		ReadTimeout:  2 * time.Second,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return NewService(cfg)
}

type dialerFunc func(ctx context.Context, network, address string) (net.Conn, error)

func (f dialerFunc) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	return f(ctx, network, address)
}

// failingDialer fails the test when a connection is attempted
func failingDialer(t *testing.T) Dialer {
	return dialerFunc(func(ctx context.Context, network, address string) (net.Conn, error) {
		t.Errorf("unexpected dial to %s", address)
		return nil, fmt.Errorf("dial not allowed")
	})
}

type trackingConn struct {
	net.Conn
	closed atomic.Bool
}

func (c *trackingConn) Close() error {
	c.closed.Store(true)
	return c.Conn.Close()
}

func TestNewServiceDefaults(t *testing.T) {
	s := NewService(Config{PrivateKey: "k"})

	assert.Equal(t, VerifyServer, s.verifyServer)
	assert.Equal(t, DefaultVerifyPort, s.verifyPort)
	assert.Equal(t, DefaultDialTimeout, s.dialTimeout)
	assert.Equal(t, DefaultReadTimeout, s.readTimeout)
	assert.NotNil(t, s.dialer)
	assert.NotNil(t, s.logger)
}

func TestVerifyShortCircuitsIncompleteSubmissions(t *testing.T) {
	cases := []struct {
		name      string
		challenge string
		response  string
	}{
		{"both empty", "", ""},
		{"empty challenge", "", "answer"},
		{"empty response", "challenge", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestService(0, func(c *Config) { c.Dialer = failingDialer(t) })

			res, err := s.Verify(context.Background(), tc.challenge, tc.response)
			require.NoError(t, err)
			assert.False(t, res.IsValid())
			assert.Equal(t, ErrorIncorrectSolution, res.ErrorCode())
			assert.Equal(t, tc.challenge, res.Challenge())
		})
	}
}

func TestVerifyValidAnswer(t *testing.T) {
	host := startFakeHost(t, httpReply("true\n"))
	s := newTestService(host.port())

	res, err := s.Verify(context.Background(), "challenge-token", "two words")
	require.NoError(t, err)
	assert.True(t, res.IsValid())
	assert.Empty(t, res.ErrorCode())
	assert.Equal(t, "challenge-token", res.Challenge())
}

func TestVerifyInvalidAnswer(t *testing.T) {
	host := startFakeHost(t, httpReply("false\nincorrect-captcha-sol\n"))
	s := newTestService(host.port())

	res, err := s.Verify(context.Background(), "challenge-token", "wrong")
	require.NoError(t, err)
	assert.False(t, res.IsValid())
	assert.Equal(t, "incorrect-captcha-sol", res.ErrorCode())
	assert.Equal(t, "challenge-token", res.Challenge())
}

func TestVerifyTrimsAnswerLines(t *testing.T) {
	host := startFakeHost(t, httpReply("  true \r\n"))
	s := newTestService(host.port())

	res, err := s.Verify(context.Background(), "c", "r")
	require.NoError(t, err)
	assert.True(t, res.IsValid())
}

func TestVerifyAnswerIsCaseSensitive(t *testing.T) {
	host := startFakeHost(t, httpReply("TRUE\ninvalid-request-cookie\n"))
	s := newTestService(host.port())

	res, err := s.Verify(context.Background(), "c", "r")
	require.NoError(t, err)
	assert.False(t, res.IsValid())
	assert.Equal(t, "invalid-request-cookie", res.ErrorCode())
}

func TestVerifyRequestFraming(t *testing.T) {
	host := startFakeHost(t, httpReply("true\n"))
	s := newTestService(host.port())

	_, err := s.Verify(context.Background(), "the-challenge", "the-response")
	require.NoError(t, err)

	req := host.lastRequest(t)
	assert.Equal(t, http.MethodPost, req.method)
	assert.Equal(t, VerifyPath, req.path)
	assert.Equal(t, "HTTP/1.0", req.proto)
	assert.Equal(t, "127.0.0.1", req.host)
	assert.Equal(t, "application/x-www-form-urlencoded", req.contentType)
	assert.Equal(t, userAgent, req.userAgent)
	assert.Equal(t, int64(len(req.rawBody)), req.contentLength)
	assert.Equal(t,
		"privatekey=private-key&remoteip=10.0.0.1&challenge=the-challenge&response=the-response",
		req.rawBody)
}

func TestVerifyFormEncodingRoundTrips(t *testing.T) {
	host := startFakeHost(t, httpReply("true\n"))
	s := newTestService(host.port(), func(c *Config) {
		c.PrivateKey = "key=with&separators"
	})

	challenge := "a&b=c d"
	response := "100% + sure & = ok"

	_, err := s.Verify(context.Background(), challenge, response)
	require.NoError(t, err)

	req := host.lastRequest(t)
	assert.Equal(t, "key=with&separators", req.form.Get("privatekey"))
	assert.Equal(t, "10.0.0.1", req.form.Get("remoteip"))
	assert.Equal(t, challenge, req.form.Get("challenge"))
	assert.Equal(t, response, req.form.Get("response"))
	assert.Len(t, req.form, 4)
}

func TestVerifyRequiresPrivateKey(t *testing.T) {
	s := newTestService(0, func(c *Config) {
		c.PrivateKey = ""
		c.Dialer = failingDialer(t)
	})

	_, err := s.Verify(context.Background(), "c", "r")
	require.ErrorIs(t, err, ErrMissingPrivateKey)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestVerifyRequiresRemoteIP(t *testing.T) {
	s := newTestService(0, func(c *Config) {
		c.RemoteIP = ""
		c.Dialer = failingDialer(t)
	})

	_, err := s.Verify(context.Background(), "c", "r")
	require.ErrorIs(t, err, ErrMissingRemoteIP)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestVerifyConfigurationCheckedBeforeShortCircuit(t *testing.T) {
	s := newTestService(0, func(c *Config) {
		c.PrivateKey = ""
		c.Dialer = failingDialer(t)
	})

	_, err := s.Verify(context.Background(), "", "")
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestVerifyDialTimeout(t *testing.T) {
	blocking := dialerFunc(func(ctx context.Context, network, address string) (net.Conn, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	s := newTestService(80, func(c *Config) {
		c.Dialer = blocking
		c.DialTimeout = 50 * time.Millisecond
	})

	start := time.Now()
	_, err := s.Verify(context.Background(), "c", "r")
	elapsed := time.Since(start)

	require.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, elapsed, 2*time.Second)
}

func TestVerifyConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	s := newTestService(port)

	_, err = s.Verify(context.Background(), "c", "r")
	assert.ErrorIs(t, err, ErrTransport)
}

func TestVerifyReadTimeout(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	var (
		mu    sync.Mutex
		conns []net.Conn
	)
	t.Cleanup(func() {
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			c.Close()
		}
	})
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			// never answer, never close
			mu.Lock()
			conns = append(conns, conn)
			mu.Unlock()
		}
	}()

	s := newTestService(ln.Addr().(*net.TCPAddr).Port, func(c *Config) {
		c.ReadTimeout = 100 * time.Millisecond
	})

	start := time.Now()
	_, err = s.Verify(context.Background(), "c", "r")
	require.ErrorIs(t, err, ErrTransport)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestVerifyProtocolErrors(t *testing.T) {
	cases := []struct {
		name  string
		reply string
		want  error
	}{
		{"no separator", "HTTP/1.0 200 OK\r\nContent-Type: text/plain\r\n", ErrMissingSeparator},
		{"empty reply", "", ErrMissingSeparator},
		{"false without code", httpReply("false"), ErrMissingErrorCode},
		{"false with blank code", httpReply("false\n\n"), ErrMissingErrorCode},
		{"empty body", httpReply(""), ErrMissingErrorCode},
		{"server error", "HTTP/1.0 500 Internal Server Error\r\n\r\ntrue\n", ErrProtocol},
		{"garbage status", "hello\r\n\r\ntrue\n", ErrProtocol},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			host := startFakeHost(t, tc.reply)
			s := newTestService(host.port())

			res, err := s.Verify(context.Background(), "c", "r")
			require.ErrorIs(t, err, tc.want)
			assert.ErrorIs(t, err, ErrProtocol)
			assert.Equal(t, Response{}, res)
		})
	}
}

func TestVerifyClosesConnection(t *testing.T) {
	for _, reply := range []string{httpReply("true\n"), httpReply("false")} {
		host := startFakeHost(t, reply)

		var tracked *trackingConn
		dialer := dialerFunc(func(ctx context.Context, network, address string) (net.Conn, error) {
			conn, err := (&net.Dialer{}).DialContext(ctx, network, address)
			if err != nil {
				return nil, err
			}
			tracked = &trackingConn{Conn: conn}
			return tracked, nil
		})
		s := newTestService(host.port(), func(c *Config) { c.Dialer = dialer })

		_, _ = s.Verify(context.Background(), "c", "r")

		require.NotNil(t, tracked)
		assert.True(t, tracked.closed.Load())
	}
}

func TestVerifyConcurrentCallers(t *testing.T) {
	host := startFakeHost(t, httpReply("true\n"))
	s := newTestService(host.port())

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := s.Verify(context.Background(), fmt.Sprintf("challenge-%d", i), "r")
			if err == nil && !res.IsValid() {
				err = fmt.Errorf("challenge-%d not valid", i)
			}
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(20), host.hits.Load())
}

func TestWithRemoteIP(t *testing.T) {
	host := startFakeHost(t, httpReply("true\n"))
	s := newTestService(host.port())

	scoped := s.WithRemoteIP("192.168.1.7")
	_, err := scoped.Verify(context.Background(), "c", "r")
	require.NoError(t, err)

	assert.Equal(t, "192.168.1.7", host.lastRequest(t).form.Get("remoteip"))
	assert.Equal(t, "10.0.0.1", s.remoteIP)
}

func TestChallengeURL(t *testing.T) {
	plain := NewService(Config{PublicKey: "pub key"})
	secure := NewService(Config{PublicKey: "pub", UseSSL: true})

	u, err := plain.ChallengeURL("")
	require.NoError(t, err)
	assert.Equal(t, "http://www.google.com/recaptcha/api/challenge?k=pub+key", u)

	u, err = secure.ChallengeURL("incorrect-captcha-sol")
	require.NoError(t, err)
	assert.Equal(t, "https://www.google.com/recaptcha/api/challenge?k=pub&error=incorrect-captcha-sol", u)

	u, err = secure.NoscriptURL("")
	require.NoError(t, err)
	assert.Equal(t, "https://www.google.com/recaptcha/api/noscript?k=pub", u)
}

func TestChallengeURLRequiresPublicKey(t *testing.T) {
	s := NewService(Config{PrivateKey: "priv"})

	_, err := s.ChallengeURL("")
	assert.ErrorIs(t, err, ErrMissingPublicKey)

	_, err = s.NoscriptURL("x")
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestUseSSLDoesNotAffectVerifyTransport(t *testing.T) {
	host := startFakeHost(t, httpReply("true\n"))
	s := newTestService(host.port(), func(c *Config) { c.UseSSL = true })

	res, err := s.Verify(context.Background(), "c", "r")
	require.NoError(t, err)
	assert.True(t, res.IsValid())
}
