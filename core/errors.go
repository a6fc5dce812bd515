package core

import "errors"

var (
	ErrTooManyAttempts = errors.New("too many failed attempts")
	ErrInvalidPass     = errors.New("invalid pass")
	ErrPassExpired     = errors.New("pass has expired")
)
