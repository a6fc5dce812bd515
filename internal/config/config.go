package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything cmd/recaptcha needs to wire the service
type Config struct {
	Recaptcha RecaptchaConfig
	Guard     GuardConfig
	Server    ServerConfig
	Redis     RedisConfig
}

// RecaptchaConfig holds the keys and endpoint of the verification host
type RecaptchaConfig struct {
	PrivateKey   string
	PublicKey    string
	UseSSL       bool
	Disabled     bool
	RemoteIP     string
	VerifyServer string
	VerifyPort   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	RetryMax     uint64
	RetryBackoff time.Duration
}

// GuardConfig holds the form validation settings
type GuardConfig struct {
	ErrorText     string
	MaxFailures   int64
	FailureWindow time.Duration
	PassTTL       time.Duration
	PassKeyFile   string
	WidgetTheme   string
	WidgetLang    string
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Addr  string
	Debug bool

	// TrustedProxies lists the proxies whose X-Forwarded-For is believed,
	// empty means the socket address is always the client ip
	TrustedProxies []string
}

// RedisConfig holds the Redis connection, empty URL means in-process adapters
type RedisConfig struct {
	URL string
}

// LoadFromEnv loads configuration from the environment.
// Explicit environment variables win over values from a .env file.
// Secrets are resolved through the provider named by SECRET_PROVIDER.
func LoadFromEnv() (*Config, error) {
	for _, envPath := range []string{".env", "../.env", "../../.env"} {
		if err := godotenv.Load(envPath); err == nil {
			break
		}
	}

	source, err := NewSource(strings.ToLower(getEnvOrDefault("SECRET_PROVIDER", "env")))
	if err != nil {
		return nil, err
	}

	return load(source)
}

func load(source Source) (*Config, error) {
	cfg := &Config{
		Recaptcha: RecaptchaConfig{
			PublicKey:    os.Getenv("RECAPTCHA_PUBLIC_KEY"),
			UseSSL:       getEnvAsBool("RECAPTCHA_USE_SSL", false),
			Disabled:     getEnvAsBool("RECAPTCHA_DISABLED", false),
			RemoteIP:     os.Getenv("RECAPTCHA_REMOTE_IP"),
			VerifyServer: getEnvOrDefault("RECAPTCHA_VERIFY_SERVER", "www.google.com"),
			VerifyPort:   getEnvAsInt("RECAPTCHA_VERIFY_PORT", 80),
			DialTimeout:  getEnvAsDuration("RECAPTCHA_DIAL_TIMEOUT", 10*time.Second),
			ReadTimeout:  getEnvAsDuration("RECAPTCHA_READ_TIMEOUT", 30*time.Second),
			RetryMax:     uint64(getEnvAsInt("RECAPTCHA_RETRY_MAX", 0)),
			RetryBackoff: getEnvAsDuration("RECAPTCHA_RETRY_BACKOFF", 200*time.Millisecond),
		},
		Guard: GuardConfig{
			ErrorText:     os.Getenv("RECAPTCHA_ERROR_TEXT"),
			MaxFailures:   int64(getEnvAsInt("RECAPTCHA_MAX_FAILURES", 10)),
			FailureWindow: getEnvAsDuration("RECAPTCHA_FAILURE_WINDOW", 15*time.Minute),
			PassTTL:       getEnvAsDuration("RECAPTCHA_PASS_TTL", 5*time.Minute),
			PassKeyFile:   os.Getenv("RECAPTCHA_PASS_KEY_FILE"),
			WidgetTheme:   os.Getenv("RECAPTCHA_WIDGET_THEME"),
			WidgetLang:    os.Getenv("RECAPTCHA_WIDGET_LANG"),
		},
		Server: ServerConfig{
			Addr:  getEnvOrDefault("HTTP_ADDR", ":9000"),
			Debug: getEnvAsBool("DEBUG", false),

			TrustedProxies: getEnvAsList("TRUSTED_PROXIES"),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
	}

	if cfg.Recaptcha.Disabled {
		return cfg, nil
	}

	privateKey, err := source.Get("RECAPTCHA_PRIVATE_KEY")
	if err != nil {
		return nil, fmt.Errorf("failed to load private key from %s: %w", source.Name(), err)
	}
	cfg.Recaptcha.PrivateKey = privateKey

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	var list []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			list = append(list, item)
		}
	}
	return list
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
