package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/user-auth-service/internal/middleware"
	"github.com/iliyamo/user-auth-service/internal/service"
)

// UserHandler serves the authenticated user's own resources.
type UserHandler struct {
	Svc service.AuthService
	Log *zap.Logger
}

func NewUserHandler(svc service.AuthService, log *zap.Logger) *UserHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &UserHandler{Svc: svc, Log: log}
}

// Me: GET /users/me. Must sit behind middleware.JWTAuth.
func (h *UserHandler) Me(c echo.Context) error {
	uid := middleware.UserID(c)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	fu, err := h.Svc.GetProfile(ctx, uid)
	if err != nil {
		return errorResponse(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, fu)
}
