package http

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/recaptcha/service"
)

// SetupRouter sets up the Gin router.
// Only trustedProxies may set the client ip through forwarding headers, nil trusts none.
// metricsHandler is mounted on /metrics when not nil.
func SetupRouter(svc *service.VerificationService, widget WidgetOptions, trustedProxies []string, metricsHandler http.Handler) (*gin.Engine, error) {
	router := gin.Default()

	// The client ip keys the failure limiter and is sent to the verification host
	if len(trustedProxies) == 0 {
		trustedProxies = nil
	}
	if err := router.SetTrustedProxies(trustedProxies); err != nil {
		return nil, fmt.Errorf("invalid trusted proxies: %w", err)
	}

	handlers := NewVerifyHandlers(svc, widget)

	captcha := router.Group("/recaptcha")
	{
		captcha.POST("/verify", handlers.Verify)
		captcha.GET("/widget", handlers.Widget)
	}

	api := router.Group("/api")
	{
		api.POST("/submit", RequireCaptcha(svc), handlers.Submit)
		api.GET("/verified", RequirePass(svc), handlers.Verified)
	}

	if metricsHandler != nil {
		router.GET("/metrics", gin.WrapH(metricsHandler))
	}

	return router, nil
}
