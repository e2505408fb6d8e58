// Package webserver hosts the echo HTTP server and its three surfaces:
// the tenant API (per-tenant bearer keys), the connector-facing internal
// API and the admin API (shared secrets).
package webserver

import (
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/talkgrid/waplane/config"
	"go.uber.org/zap"
)

type serverValidator struct {
	validate *validator.Validate
}

func (v *serverValidator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}

// Registrar mounts a route group. The api packages implement it.
type Registrar interface {
	Register(g *echo.Group)
}

// Server wraps the echo instance and its route groups.
type Server struct {
	cfg  *config.AppConfig
	echo *echo.Echo
}

// New builds the server and mounts the three surfaces. Missing shared
// secrets are a configuration error surfaced at startup, never at request
// time.
func New(cfg *config.AppConfig, tenantAuth echo.MiddlewareFunc, tenant, internal, admin Registrar) (*Server, error) {
	if cfg.Web.InternalSecret == "" {
		return nil, fmt.Errorf("internal api secret is not configured")
	}
	if cfg.Web.AdminSecret == "" {
		return nil, fmt.Errorf("admin api secret is not configured")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = &serverValidator{validate: validator.New()}
	e.Use(middleware.Recover())
	e.Use(ZapLogger())

	tenantGroup := e.Group("/api", tenantAuth)
	tenant.Register(tenantGroup)

	internalGroup := e.Group("/internal", SecretAuth("X-Internal-Token", cfg.Web.InternalSecret))
	internal.Register(internalGroup)

	adminGroup := e.Group("/admin", SecretAuth("X-Admin-Token", cfg.Web.AdminSecret))
	admin.Register(adminGroup)

	return &Server{cfg: cfg, echo: e}, nil
}

// Echo exposes the underlying echo instance (used by tests).
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Start blocks serving HTTP until the listener fails or is shut down.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Web.Host, s.cfg.Web.Port)
	zap.L().Info("webserver listening", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// ZapLogger logs one line per request through the global zap logger.
func ZapLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			req := c.Request()
			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			zap.L().Debug("http request",
				zap.String("method", req.Method),
				zap.String("path", req.URL.Path),
				zap.Int("status", status))
			return err
		}
	}
}

// NotFoundJSON is the shared 404 body for read paths.
func NotFoundJSON(c echo.Context, message string) error {
	return Fail(c, http.StatusNotFound, "NOT_FOUND", message)
}
