// Package middleware holds the echo middleware: bearer token
// authentication, Redis token-bucket rate limiting and request logging.
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/user-auth-service/internal/utils"
)

// Rejection reasons recorded under ContextKeyRejectReason. They are never
// sent to the client.
const (
	ReasonMissingHeader   = "missing_header"
	ReasonMalformedHeader = "malformed_header"
	ReasonExpired         = "expired"
	ReasonMalformedToken  = "malformed_token"
)

const bearerPrefix = "Bearer "

// JWTAuth validates the Bearer token on each request. On success the
// verified claims are attached to both the echo context (ContextKeyClaims,
// ContextKeyUserID) and the request context (ClaimsFromContext). It never
// loads the user record. Every rejection gets the same 401 body; the
// specific reason is kept on the echo context for the request logger.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			if auth == "" {
				return reject(c, ReasonMissingHeader)
			}
			// scheme is case-sensitive, exactly one space
			if !strings.HasPrefix(auth, bearerPrefix) {
				return reject(c, ReasonMalformedHeader)
			}
			raw := strings.TrimPrefix(auth, bearerPrefix)
			if raw == "" || strings.ContainsAny(raw, " \t") {
				return reject(c, ReasonMalformedHeader)
			}

			claims, err := utils.VerifyToken(raw, secret)
			if err != nil {
				if errors.Is(err, utils.ErrTokenExpired) {
					return reject(c, ReasonExpired)
				}
				return reject(c, ReasonMalformedToken)
			}

			c.Set(ContextKeyClaims, claims)
			c.Set(ContextKeyUserID, claims.Subject)
			c.SetRequest(c.Request().WithContext(WithClaims(c.Request().Context(), claims)))
			return next(c)
		}
	}
}

func reject(c echo.Context, reason string) error {
	c.Set(ContextKeyRejectReason, reason)
	c.Response().Header().Set(echo.HeaderWWWAuthenticate, `Bearer realm="api"`)
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
}
