// Package auth signs and verifies the bearer tokens guarding the
// operator API's mutating endpoints.
//
// Tokens are JWS over HS256 with a shared secret. Read endpoints stay
// open; only approve and promote require a token.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

var ErrInvalidToken = errors.New("invalid token")

// OperatorClaim names who asked for the operation.
type OperatorClaim struct {
	jwt.RegisteredClaims

	Operator string `json:"operator"`
}

// NewJWS signs claim and returns a JWS token string.
func NewJWS(secret []byte, operator string, ttl time.Duration) (string, error) {
	now := time.Now()
	claim := OperatorClaim{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Operator: operator,
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claim)
	return tok.SignedString(secret)
}

// VerifyJWS verifies a JWS token string and returns its claim.
//
// Malformed, mis-signed and expired tokens all unwrap to
// ErrInvalidToken.
func VerifyJWS(secret []byte, token string) (*OperatorClaim, error) {
	claim := &OperatorClaim{}
	_, err := jwt.ParseWithClaims(
		token, claim,
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %s", t.Method.Alg())
			}
			return secret, nil
		},
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenMalformed) ||
			errors.Is(err, jwt.ErrSignatureInvalid) ||
			errors.Is(err, jwt.ErrTokenExpired) {
			return nil, errors.Join(ErrInvalidToken, err)
		}
		return nil, err
	}
	return claim, nil
}

const claimContextKey = "modelyard-operator-claim"

// Middleware extracts and verifies the Bearer token, then stores the
// claim in the request context for handlers.
func Middleware(secret []byte) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			token, found := strings.CutPrefix(header, "Bearer ")
			if !found || token == "" {
				return echo.NewHTTPError(401, "bearer token required")
			}
			claim, err := VerifyJWS(secret, token)
			if err != nil {
				if errors.Is(err, ErrInvalidToken) {
					return echo.NewHTTPError(401, "invalid token")
				}
				return err
			}
			c.Set(claimContextKey, claim)
			return next(c)
		}
	}
}

// ClaimFrom returns the verified claim Middleware stored, if any.
func ClaimFrom(c echo.Context) (*OperatorClaim, bool) {
	claim, ok := c.Get(claimContextKey).(*OperatorClaim)
	return claim, ok
}
