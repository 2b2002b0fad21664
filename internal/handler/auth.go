// Package handler contains the HTTP handlers of the auth API.
package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/user-auth-service/internal/model"
	"github.com/iliyamo/user-auth-service/internal/service"
)

const requestTimeout = 5 * time.Second

// TokenCookieName is the cookie set alongside the login response body.
const TokenCookieName = "token"

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Svc          service.AuthService
	Log          *zap.Logger
	CookieMaxAge time.Duration
	SecureCookie bool
}

func NewAuthHandler(svc service.AuthService, log *zap.Logger, cookieMaxAge time.Duration, secureCookie bool) *AuthHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthHandler{Svc: svc, Log: log, CookieMaxAge: cookieMaxAge, SecureCookie: secureCookie}
}

// ----- DTOs -----

type registerReq struct {
	Email       string  `json:"email" validate:"required,email,max=255"`
	Password    string  `json:"password" validate:"required,password"`
	DisplayName *string `json:"display_name" validate:"omitempty,max=255"`
	Name        *string `json:"name" validate:"omitempty,max=255"` // older clients
}

type loginReq struct {
	Email          *string `json:"email"`
	Password       string  `json:"password"`
	ExternalID     *string `json:"external_id"`
	TelegramUserID *string `json:"telegram_user_id"`
}

type passwordLogin struct {
	Email    string `json:"email" validate:"email"`
	Password string `json:"password" validate:"required"`
}

type tokenResp struct {
	Token string `json:"token"`
}

// Register: POST /auth/register. The optional external id comes from the
// query string as external_id (or telegram_user_id).
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := c.Validate(&req); err != nil {
		return errorResponse(c, h.Log, err)
	}

	displayName := req.DisplayName
	if displayName == nil {
		displayName = req.Name
	}
	in := service.RegisterInput{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: displayName,
		ExternalID:  externalIDParam(c),
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	fu, err := h.Svc.Register(ctx, in)
	if err != nil {
		return errorResponse(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, fu)
}

// Login: POST /auth/login. Email and password take precedence; the
// external id is only tried when no email was sent.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	var (
		u   *model.User
		err error
	)
	switch email, ext := trimmed(req.Email), firstNonEmpty(req.ExternalID, req.TelegramUserID); {
	case email != "":
		pl := passwordLogin{Email: strings.ToLower(email), Password: req.Password}
		if err := c.Validate(&pl); err != nil {
			return errorResponse(c, h.Log, err)
		}
		u, err = h.Svc.AuthenticateByPassword(ctx, pl.Email, pl.Password)
	case ext != "":
		u, err = h.Svc.AuthenticateByExternalID(ctx, ext)
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email or external_id is required"})
	}
	if err != nil {
		return errorResponse(c, h.Log, err)
	}

	tok, err := h.Svc.IssueToken(u)
	if err != nil {
		return errorResponse(c, h.Log, err)
	}

	c.SetCookie(&http.Cookie{
		Name:     TokenCookieName,
		Value:    tok,
		Path:     "/",
		MaxAge:   int(h.CookieMaxAge / time.Second),
		HttpOnly: true,
		Secure:   h.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	return c.JSON(http.StatusOK, tokenResp{Token: tok})
}

func externalIDParam(c echo.Context) *string {
	for _, name := range []string{"external_id", "telegram_user_id"} {
		if v := strings.TrimSpace(c.QueryParam(name)); v != "" {
			return &v
		}
	}
	return nil
}

func trimmed(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

func firstNonEmpty(ps ...*string) string {
	for _, p := range ps {
		if v := trimmed(p); v != "" {
			return v
		}
	}
	return ""
}
