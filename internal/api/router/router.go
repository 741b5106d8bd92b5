package router

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/latchguard/go-lock-agent/internal/api"
	"github.com/latchguard/go-lock-agent/internal/api/handlers"
	"github.com/latchguard/go-lock-agent/internal/auth"
)

// Init builds the echo instance, the route groups and attaches all handlers.
func Init(s *api.Server) {
	s.Echo = echo.New()
	s.Echo.HideBanner = true
	s.Echo.HidePort = true

	s.Echo.Use(middleware.Recover())
	s.Echo.Use(middleware.RequestID())
	s.Echo.Use(requestLogger())

	s.Router = &api.Router{
		Root:       s.Echo.Group(""),
		Management: s.Echo.Group("/-"),
		APIV1Locks: s.Echo.Group("/api/v1/locks",
			auth.Middleware(s.Tokens, auth.ScopeLocks)),
		APIV1Credentials: s.Echo.Group("/api/v1/credentials",
			auth.Middleware(s.Tokens, auth.ScopeCredentials)),
	}

	s.Router.Management.GET("/healthy", func(c echo.Context) error {
		if !s.Ready() {
			return c.String(503, "not ready")
		}
		return c.String(200, "ready")
	})
	s.Router.Management.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	s.Router.Routes = handlers.AttachAllRoutes(s)
}

func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogMethod: true,
		LogError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Info().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Err(v.Error).
				Msg("Request")
			return nil
		},
	})
}
