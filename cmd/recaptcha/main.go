package main

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"log"
	"os"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/golang-jwt/jwt/v5"
	"github.com/layer-3/recaptcha"
	"github.com/layer-3/recaptcha/adapters/events"
	"github.com/layer-3/recaptcha/adapters/metrics"
	"github.com/layer-3/recaptcha/adapters/retry"
	"github.com/layer-3/recaptcha/adapters/store"
	"github.com/layer-3/recaptcha/adapters/tokenizer"
	"github.com/layer-3/recaptcha/internal/config"
	"github.com/layer-3/recaptcha/ports"
	"github.com/layer-3/recaptcha/service"
	"github.com/layer-3/recaptcha/transport/http"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := watermill.NewStdLogger(cfg.Server.Debug, false)

	var client recaptcha.Client
	if cfg.Recaptcha.Disabled {
		logger.Info("CAPTCHA verification disabled, every submission passes", nil)
		client = recaptcha.NewDummyService()
	} else {
		client = recaptcha.NewService(recaptcha.Config{
			PrivateKey:   cfg.Recaptcha.PrivateKey,
			PublicKey:    cfg.Recaptcha.PublicKey,
			UseSSL:       cfg.Recaptcha.UseSSL,
			RemoteIP:     cfg.Recaptcha.RemoteIP,
			VerifyServer: cfg.Recaptcha.VerifyServer,
			VerifyPort:   cfg.Recaptcha.VerifyPort,
			DialTimeout:  cfg.Recaptcha.DialTimeout,
			ReadTimeout:  cfg.Recaptcha.ReadTimeout,
			Logger:       logger,
		})
		if cfg.Recaptcha.RetryMax > 0 {
			client = retry.NewBackoffClient(client, cfg.Recaptcha.RetryMax, cfg.Recaptcha.RetryBackoff, logger)
		}
	}

	// Redis backs the limiter and the event stream when configured
	var limiter ports.AttemptLimiter
	var publisher message.Publisher
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			log.Fatalf("Failed to parse Redis URL: %v", err)
		}
		redisClient := redis.NewClient(opts)

		publisher, err = redisstream.NewPublisher(
			redisstream.PublisherConfig{
				Client: redisClient,
			},
			logger,
		)
		if err != nil {
			log.Fatalf("Failed to create Redis publisher: %v", err)
		}
		limiter = store.NewRedisLimiter(redisClient)
	} else {
		publisher = gochannel.NewGoChannel(gochannel.Config{}, logger)
		limiter = store.NewMemoryLimiter()
	}
	defer publisher.Close()

	passKey, err := loadPassKey(cfg.Guard.PassKeyFile)
	if err != nil {
		log.Fatalf("Failed to load pass signing key: %v", err)
	}

	registry := prometheus.NewRegistry()
	verificationMetrics, err := metrics.NewPrometheusMetrics(registry)
	if err != nil {
		log.Fatalf("Failed to register metrics: %v", err)
	}

	verificationService := service.NewVerificationService(
		client,
		limiter,
		events.NewWatermillPublisher(publisher),
		tokenizer.NewJWTTokenizer(passKey),
		verificationMetrics,
		logger,
		service.Config{
			ErrorText:     cfg.Guard.ErrorText,
			MaxFailures:   cfg.Guard.MaxFailures,
			FailureWindow: cfg.Guard.FailureWindow,
			PassTTL:       cfg.Guard.PassTTL,
		},
	)

	// Setup Gin router
	router, err := http.SetupRouter(
		verificationService,
		http.WidgetOptions{Theme: cfg.Guard.WidgetTheme, Lang: cfg.Guard.WidgetLang},
		cfg.Server.TrustedProxies,
		promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	)
	if err != nil {
		log.Fatalf("Failed to setup router: %v", err)
	}

	// Start server
	if err := router.Run(cfg.Server.Addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// loadPassKey reads a PEM encoded EC key, or generates one when path is empty.
// Generated keys do not survive a restart, so passes issued before it become invalid.
func loadPassKey(path string) (*ecdsa.PrivateKey, error) {
	if path == "" {
		return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	}

	pemBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return jwt.ParseECPrivateKeyFromPEM(pemBytes)
}
