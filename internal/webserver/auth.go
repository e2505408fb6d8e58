package webserver

import (
	"errors"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/talkgrid/waplane/internal/registry"
	"github.com/talkgrid/waplane/pkg/common"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TenantAuth authenticates "Authorization: Bearer <api key>" against the
// tenant registry and stores the tenant on the context. Requests failing
// auth are rejected before any handler side effect.
func TenantAuth(tenants registry.TenantRepository) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
				return Unauthorized(c)
			}
			tenant, err := tenants.GetByApiKey(c.Request().Context(), parts[1])
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return Unauthorized(c)
			} else if err != nil {
				zap.L().Error("tenant auth lookup failed", zap.Error(err))
				return Unauthorized(c)
			}
			SetTenant(c, tenant)
			return next(c)
		}
	}
}

// SecretAuth compares a shared-secret header in constant time.
func SecretAuth(header, secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !common.SecureEqual(c.Request().Header.Get(header), secret) {
				return Unauthorized(c)
			}
			return next(c)
		}
	}
}
