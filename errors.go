package recaptcha

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration is the class of errors caused by missing keys or addresses.
	// These must not be retried.
	ErrConfiguration = errors.New("recaptcha: configuration error")

	// ErrTransport is the class of connection-level failures (dial, write, read)
	ErrTransport = errors.New("recaptcha: transport error")

	// ErrProtocol is returned when the verification host answers with an unexpected shape
	ErrProtocol = errors.New("recaptcha: protocol error")
)

var (
	// ErrMissingPrivateKey is returned when Verify is called without a private key
	ErrMissingPrivateKey = fmt.Errorf("%w: private key is required, get one at https://www.google.com/recaptcha/admin/create", ErrConfiguration)

	// ErrMissingPublicKey is returned when a widget URL is requested without a public key
	ErrMissingPublicKey = fmt.Errorf("%w: public key is required, get one at https://www.google.com/recaptcha/admin/create", ErrConfiguration)

	// ErrMissingRemoteIP is returned when no remote address is known for the caller
	ErrMissingRemoteIP = fmt.Errorf("%w: remote ip is required", ErrConfiguration)

	// ErrMissingSeparator is returned when the reply has no header/body boundary
	ErrMissingSeparator = fmt.Errorf("%w: missing header/body separator", ErrProtocol)

	// ErrMissingErrorCode is returned when a negative answer carries no error code line
	ErrMissingErrorCode = fmt.Errorf("%w: negative answer without error code", ErrProtocol)
)
