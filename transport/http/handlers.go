package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/recaptcha"
	"github.com/layer-3/recaptcha/core"
	"github.com/layer-3/recaptcha/service"
)

// WidgetOptions is the client-side configuration of the challenge widget
type WidgetOptions struct {
	Theme              string            `json:"theme,omitempty"`
	Lang               string            `json:"lang,omitempty"`
	TabIndex           int               `json:"tabindex,omitempty"`
	CustomTranslations map[string]string `json:"custom_translations,omitempty"`
}

// VerifyHandlers contains HTTP handlers for verification endpoints
type VerifyHandlers struct {
	service *service.VerificationService
	widget  WidgetOptions
}

// NewVerifyHandlers creates new verification handlers
func NewVerifyHandlers(svc *service.VerificationService, widget WidgetOptions) *VerifyHandlers {
	return &VerifyHandlers{
		service: svc,
		widget:  widget,
	}
}

// Verify handles a posted challenge/response pair
func (h *VerifyHandlers) Verify(c *gin.Context) {
	var errs service.ErrorList

	outcome, err := h.service.Validate(c.Request.Context(), submissionFrom(c), &errs)
	if err != nil {
		status, msg := errorStatus(err)
		c.JSON(status, gin.H{"error": msg, "errors": errs})
		return
	}

	if !outcome.Response.IsValid() {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"valid":      false,
			"challenge":  outcome.Response.Challenge(),
			"error_code": outcome.Response.ErrorCode(),
			"errors":     errs,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"valid":      true,
		"challenge":  outcome.Response.Challenge(),
		"pass_token": outcome.PassToken,
	})
}

// Widget returns the sources of the challenge widget for the rendering side
func (h *VerifyHandlers) Widget(c *gin.Context) {
	script, noscript, err := h.service.WidgetURLs(c.Query("error"))
	if err != nil {
		status, msg := errorStatus(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"script_src":   script,
		"noscript_src": noscript,
		"options":      h.widget,
	})
}

// Submit is a sample form endpoint guarded by RequireCaptcha
func (h *VerifyHandlers) Submit(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message":    "Form accepted",
		"pass_token": c.GetString(passTokenKey),
	})
}

// Verified reports the pass checked by RequirePass
func (h *VerifyHandlers) Verified(c *gin.Context) {
	pass, exists := c.Get(passKey)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Pass not found in context"})
		return
	}

	p := pass.(*core.Pass)
	c.JSON(http.StatusOK, gin.H{
		"verified":   true,
		"challenge":  p.Challenge,
		"expires_at": p.ExpiresAt,
	})
}

func submissionFrom(c *gin.Context) core.Submission {
	return core.Submission{
		Challenge: c.PostForm(core.ChallengeField),
		Response:  c.PostForm(core.ResponseField),
		RemoteIP:  c.ClientIP(),
	}
}

// errorStatus maps verification errors to a status code and a client-safe message
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrTooManyAttempts):
		return http.StatusTooManyRequests, "Too many failed attempts"
	case errors.Is(err, core.ErrPassExpired):
		return http.StatusUnauthorized, "Pass expired"
	case errors.Is(err, core.ErrInvalidPass):
		return http.StatusUnauthorized, "Invalid pass"
	case errors.Is(err, recaptcha.ErrConfiguration):
		return http.StatusInternalServerError, "CAPTCHA is not configured"
	case errors.Is(err, recaptcha.ErrTransport), errors.Is(err, recaptcha.ErrProtocol):
		return http.StatusBadGateway, "CAPTCHA verification unavailable"
	default:
		return http.StatusInternalServerError, "CAPTCHA verification failed"
	}
}
