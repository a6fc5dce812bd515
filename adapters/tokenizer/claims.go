package tokenizer

import "github.com/golang-jwt/jwt/v5"

// PassClaims combines standard claims with the solved challenge
type PassClaims struct {
	jwt.RegisteredClaims
	Challenge string `json:"chl,omitempty"`
	RemoteIP  string `json:"ip,omitempty"`
}
