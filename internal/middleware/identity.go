package middleware

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/user-auth-service/internal/utils"
)

// Echo context keys set by JWTAuth.
const (
	ContextKeyUserID       = "user_id"
	ContextKeyClaims       = "claims"
	ContextKeyRejectReason = "auth_reject_reason"
)

type claimsCtxKey struct{}

// WithClaims returns a copy of ctx carrying cl.
func WithClaims(ctx context.Context, cl utils.Claims) context.Context {
	return context.WithValue(ctx, claimsCtxKey{}, cl)
}

// ClaimsFromContext returns the verified claims attached by JWTAuth.
func ClaimsFromContext(ctx context.Context) (utils.Claims, bool) {
	cl, ok := ctx.Value(claimsCtxKey{}).(utils.Claims)
	return cl, ok
}

// UserID returns the authenticated subject, or "" when the request was not
// authenticated.
func UserID(c echo.Context) string {
	if s, ok := c.Get(ContextKeyUserID).(string); ok {
		return s
	}
	return ""
}

// RejectReason returns why JWTAuth rejected the request, if it did.
func RejectReason(c echo.Context) string {
	s, _ := c.Get(ContextKeyRejectReason).(string)
	return s
}
