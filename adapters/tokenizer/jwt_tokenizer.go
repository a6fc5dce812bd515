package tokenizer

import (
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/layer-3/recaptcha/core"
	"github.com/layer-3/recaptcha/ports"
)

const AudiencePass = "recaptcha:pass"

// JWTTokenizer implements the Tokenizer interface using ES256 signed JWTs
type JWTTokenizer struct {
	signKey *ecdsa.PrivateKey
}

// NewJWTTokenizer creates a new JWT tokenizer
func NewJWTTokenizer(signKey *ecdsa.PrivateKey) ports.Tokenizer {
	return &JWTTokenizer{signKey: signKey}
}

// PassToToken converts a Pass to a JWT token
func (j *JWTTokenizer) PassToToken(pass *core.Pass) (string, error) {
	claims := PassClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        pass.ID,
			ExpiresAt: jwt.NewNumericDate(pass.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(pass.IssuedAt),
			Audience:  jwt.ClaimStrings{AudiencePass},
		},
		Challenge: pass.Challenge,
		RemoteIP:  pass.RemoteIP,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)

	signedToken, err := token.SignedString(j.signKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign pass token: %w", err)
	}

	return signedToken, nil
}

// TokenToPass parses a JWT token and returns the Pass it carries
func (j *JWTTokenizer) TokenToPass(tokenStr string) (*core.Pass, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &PassClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return &j.signKey.PublicKey, nil
	}, jwt.WithAudience(AudiencePass), jwt.WithExpirationRequired())

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, core.ErrPassExpired
		}
		return nil, fmt.Errorf("%w: %w", core.ErrInvalidPass, err)
	}

	if !token.Valid {
		return nil, core.ErrInvalidPass
	}

	claims, ok := token.Claims.(*PassClaims)
	if !ok {
		return nil, core.ErrInvalidPass
	}

	return &core.Pass{
		ID:        claims.ID,
		Challenge: claims.Challenge,
		RemoteIP:  claims.RemoteIP,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
