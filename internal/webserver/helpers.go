package webserver

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/talkgrid/waplane/internal/domain"
)

const tenantContextKey = "waplane.tenant"

// OK writes the payload as-is with status 200.
func OK(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, data)
}

// Fail writes the shared failure envelope. Internal details are logged
// server-side by callers, never leaked here.
func Fail(c echo.Context, status int, code, message string) error {
	return c.JSON(status, map[string]interface{}{
		"code":  code,
		"error": message,
	})
}

// Unauthorized is the shared 401 body used by every auth middleware.
func Unauthorized(c echo.Context) error {
	return Fail(c, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid credential")
}

// ParseIDParam parses a numeric path parameter.
func ParseIDParam(c echo.Context, name string) (int64, error) {
	return strconv.ParseInt(c.Param(name), 10, 64)
}

// SetTenant stores the authenticated tenant on the request context.
func SetTenant(c echo.Context, t *domain.Tenant) {
	c.Set(tenantContextKey, t)
}

// GetTenant returns the authenticated tenant stored by the auth middleware.
func GetTenant(c echo.Context) *domain.Tenant {
	t, _ := c.Get(tenantContextKey).(*domain.Tenant)
	return t
}
