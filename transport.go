package recaptcha

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// userAgent identifies this client to the verification host
const userAgent = "reCAPTCHA/Go"

// maxResponseSize caps how much of the reply is buffered
const maxResponseSize = 64 << 10

type formField struct {
	key   string
	value string
}

// encodeForm joins fields as key=value pairs separated by '&', escaping the raw values
func encodeForm(fields []formField) string {
	pairs := make([]string, 0, len(fields))
	for _, f := range fields {
		pairs = append(pairs, f.key+"="+url.QueryEscape(f.value))
	}
	return strings.Join(pairs, "&")
}

// httpPost submits fields to the verification host over a dedicated connection
// and returns the body of the reply.
func (s *Service) httpPost(ctx context.Context, path string, fields []formField) (string, error) {
	req := encodeForm(fields)

	var b strings.Builder
	b.WriteString("POST " + path + " HTTP/1.0\r\n")
	b.WriteString("Host: " + s.verifyServer + "\r\n")
	b.WriteString("Content-Type: application/x-www-form-urlencoded\r\n")
	b.WriteString("Content-Length: " + strconv.Itoa(len(req)) + "\r\n")
	b.WriteString("User-Agent: " + userAgent + "\r\n")
	b.WriteString("\r\n")
	b.WriteString(req)

	addr := net.JoinHostPort(s.verifyServer, strconv.Itoa(s.verifyPort))

	dialCtx, cancel := context.WithTimeout(ctx, s.dialTimeout)
	defer cancel()

	conn, err := s.dialer.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return "", fmt.Errorf("%w: could not open socket to %s: %w", ErrTransport, addr, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(s.readTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return "", fmt.Errorf("%w: set deadline: %w", ErrTransport, err)
	}

	if _, err := io.WriteString(conn, b.String()); err != nil {
		return "", fmt.Errorf("%w: write request: %w", ErrTransport, err)
	}

	raw, err := io.ReadAll(io.LimitReader(conn, maxResponseSize))
	if err != nil {
		return "", fmt.Errorf("%w: read response: %w", ErrTransport, err)
	}

	header, body, ok := strings.Cut(string(raw), "\r\n\r\n")
	if !ok {
		return "", ErrMissingSeparator
	}

	if err := checkStatus(header); err != nil {
		return "", err
	}

	return body, nil
}

// checkStatus accepts only a "HTTP/x.y 200" status line
func checkStatus(header string) error {
	statusLine, _, _ := strings.Cut(header, "\r\n")
	parts := strings.Fields(statusLine)
	if len(parts) < 2 || !strings.HasPrefix(parts[0], "HTTP/") {
		return fmt.Errorf("%w: malformed status line %q", ErrProtocol, statusLine)
	}
	if parts[1] != "200" {
		return fmt.Errorf("%w: unexpected status %s", ErrProtocol, parts[1])
	}
	return nil
}

// parseAnswer maps the two-line body ("true" or "false\n<code>") to a Response
func parseAnswer(challenge, body string) (Response, error) {
	answers := strings.Split(body, "\n")

	if strings.TrimSpace(answers[0]) == "true" {
		return NewResponse(challenge, true, ""), nil
	}

	if len(answers) < 2 {
		return Response{}, ErrMissingErrorCode
	}
	code := strings.TrimSpace(answers[1])
	if code == "" {
		return Response{}, ErrMissingErrorCode
	}

	return NewResponse(challenge, false, code), nil
}
