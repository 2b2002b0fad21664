package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/user-auth-service/internal/utils"
)

const secret = "mw-secret"

func mustToken(t *testing.T, sub, key, ttl string) string {
	t.Helper()
	tok, err := utils.IssueToken(sub, key, ttl)
	require.NoError(t, err)
	return tok
}

func runJWT(t *testing.T, header string) (*httptest.ResponseRecorder, echo.Context, bool) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
	if header != "" {
		req.Header.Set(echo.HeaderAuthorization, header)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	called := false
	h := JWTAuth(secret)(func(c echo.Context) error {
		called = true
		cl, ok := ClaimsFromContext(c.Request().Context())
		require.True(t, ok)
		assert.Equal(t, cl.Subject, UserID(c))
		_, ok = c.Get(ContextKeyClaims).(utils.Claims)
		assert.True(t, ok)
		return c.String(http.StatusOK, cl.Subject)
	})
	require.NoError(t, h(c))
	return rec, c, called
}

func TestJWTAuth_Valid(t *testing.T) {
	rec, c, called := runJWT(t, "Bearer "+mustToken(t, "u-1", secret, "1h"))

	assert.True(t, called)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u-1", rec.Body.String())
	assert.Empty(t, RejectReason(c))
}

func TestJWTAuth_Rejections(t *testing.T) {
	valid := mustToken(t, "u-1", secret, "1h")

	cases := []struct {
		name, header, reason string
	}{
		{"missing header", "", ReasonMissingHeader},
		{"lowercase scheme", "bearer " + valid, ReasonMalformedHeader},
		{"no space", "Bearer" + valid, ReasonMalformedHeader},
		{"basic auth", "Basic dXNlcjpwYXNz", ReasonMalformedHeader},
		{"empty token", "Bearer ", ReasonMalformedHeader},
		{"double space", "Bearer  " + valid, ReasonMalformedHeader},
		{"expired", "Bearer " + mustToken(t, "u-1", secret, "-1m"), ReasonExpired},
		{"wrong secret", "Bearer " + mustToken(t, "u-1", "other", "1h"), ReasonMalformedToken},
		{"garbage", "Bearer not.a.jwt", ReasonMalformedToken},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, c, called := runJWT(t, tc.header)

			assert.False(t, called)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.JSONEq(t, `{"error":"unauthorized"}`, rec.Body.String())
			assert.Equal(t, tc.reason, RejectReason(c))
			assert.Empty(t, UserID(c))
			assert.NotEmpty(t, rec.Header().Get(echo.HeaderWWWAuthenticate))
		})
	}
}
