package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/recaptcha/service"
)

// PassHeader carries a pass token issued by the verify endpoint
const PassHeader = "X-Recaptcha-Pass"

const (
	passTokenKey = "recaptchaPassToken"
	passKey      = "recaptchaPass"
)

// RequireCaptcha creates middleware that validates the posted challenge/response pair
func RequireCaptcha(svc *service.VerificationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var errs service.ErrorList

		outcome, err := svc.Validate(c.Request.Context(), submissionFrom(c), &errs)
		if err != nil {
			status, msg := errorStatus(err)
			c.AbortWithStatusJSON(status, gin.H{"error": msg, "errors": errs})
			return
		}

		if !outcome.Response.IsValid() {
			c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{
				"error_code": outcome.Response.ErrorCode(),
				"errors":     errs,
			})
			return
		}

		c.Set(passTokenKey, outcome.PassToken)

		c.Next()
	}
}

// RequirePass creates middleware that accepts requests carrying a valid pass token
// presented from the address it was issued to
func RequirePass(svc *service.VerificationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader(PassHeader)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing pass"})
			return
		}

		pass, err := svc.ValidatePass(c.Request.Context(), token, c.ClientIP())
		if err != nil {
			status, msg := errorStatus(err)
			c.AbortWithStatusJSON(status, gin.H{"error": msg})
			return
		}

		c.Set(passKey, pass)

		c.Next()
	}
}
