package config

import (
	"fmt"
	"os"
)

// Source describes a backend that can provide secret values
type Source interface {
	Get(key string) (string, error)
	Name() string
}

// NewSource returns the secret source called name ("env" or "vault")
func NewSource(name string) (Source, error) {
	switch name {
	case "env":
		return NewEnvSource(), nil
	case "vault":
		return NewVaultSource()
	default:
		return nil, fmt.Errorf("unknown secret provider: %s", name)
	}
}

// EnvSource loads values from environment variables
type EnvSource struct{}

func NewEnvSource() *EnvSource {
	return &EnvSource{}
}

func (e *EnvSource) Name() string {
	return "env"
}

func (e *EnvSource) Get(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("env %s not set", key)
	}
	return val, nil
}
