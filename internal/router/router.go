// Package router assembles the echo instance and registers the API routes.
package router

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/iliyamo/user-auth-service/internal/handler"
	"github.com/iliyamo/user-auth-service/internal/middleware"
)

// Deps are the collaborators New wires into routes.
type Deps struct {
	Auth              *handler.AuthHandler
	Users             *handler.UserHandler
	DB                handler.Pinger
	JWTSecret         string
	RateLimit         echo.MiddlewareFunc // nil disables throttling
	LoginRateLimit    echo.MiddlewareFunc // extra bucket on POST /auth/login; nil disables
	Log               *zap.Logger
	MinPasswordLength int
}

// New returns an echo instance with the shared middleware chain, the
// validator, the JSON error handler and every route registered.
func New(d Deps) *echo.Echo {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator(d.MinPasswordLength)
	e.HTTPErrorHandler = handler.HTTPErrorHandler(log)

	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(log))
	e.Use(echomw.Recover())
	e.Use(echomw.BodyLimit("64K"))

	RegisterRoutes(e, d.DB)
	RegisterAuth(e, d.Auth, d.RateLimit, d.LoginRateLimit)
	RegisterUsers(e, d.Users, d.JWTSecret)
	return e
}

// RegisterRoutes registers routes that do not require authentication.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health(db))
}

// RegisterAuth registers the credential endpoints. limiter, when non-nil,
// throttles both of them; loginLimiter adds a second bucket to login only.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, limiter, loginLimiter echo.MiddlewareFunc) {
	var mws, loginMws []echo.MiddlewareFunc
	if limiter != nil {
		mws = append(mws, limiter)
	}
	if loginLimiter != nil {
		loginMws = append(loginMws, loginLimiter)
	}
	g := e.Group("/auth", mws...)
	g.POST("/register", a.Register)
	g.POST("/login", a.Login, loginMws...)
}

// RegisterUsers registers routes that require a valid bearer token.
func RegisterUsers(e *echo.Echo, u *handler.UserHandler, jwtSecret string) {
	g := e.Group("/users", middleware.JWTAuth(jwtSecret))
	g.GET("/me", u.Me)
}
