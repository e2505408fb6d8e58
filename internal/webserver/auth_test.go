package webserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talkgrid/waplane/internal/domain"
	"github.com/talkgrid/waplane/internal/registry"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTenants(t *testing.T) registry.TenantRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(domain.Tables...))
	reg := registry.New(db)
	require.NoError(t, reg.Tenants.Create(context.Background(), &domain.Tenant{
		ID: 1, Name: "acme", ApiKey: "key-acme",
	}))
	return reg.Tenants
}

func TestTenantAuth(t *testing.T) {
	tenants := setupTenants(t)
	e := echo.New()
	called := false
	handler := TenantAuth(tenants)(func(c echo.Context) error {
		called = true
		tenant := GetTenant(c)
		require.NotNil(t, tenant)
		assert.Equal(t, "acme", tenant.Name)
		return OK(c, map[string]string{"ok": "1"})
	})

	do := func(authorization string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/instances", nil)
		if authorization != "" {
			req.Header.Set(echo.HeaderAuthorization, authorization)
		}
		rec := httptest.NewRecorder()
		_ = handler(e.NewContext(req, rec))
		return rec.Code
	}

	assert.Equal(t, http.StatusUnauthorized, do(""))
	assert.Equal(t, http.StatusUnauthorized, do("Bearer"))
	assert.Equal(t, http.StatusUnauthorized, do("Bearer wrong-key"))
	assert.Equal(t, http.StatusUnauthorized, do("Basic key-acme"))
	assert.False(t, called, "handler must not run before auth passes")

	assert.Equal(t, http.StatusOK, do("Bearer key-acme"))
	assert.True(t, called)
}

func TestSecretAuth(t *testing.T) {
	e := echo.New()
	called := false
	handler := SecretAuth("X-Internal-Token", "s3cret")(func(c echo.Context) error {
		called = true
		return c.NoContent(http.StatusOK)
	})

	do := func(token string) int {
		req := httptest.NewRequest(http.MethodGet, "/internal/state/1/snapshot", nil)
		if token != "" {
			req.Header.Set("X-Internal-Token", token)
		}
		rec := httptest.NewRecorder()
		_ = handler(e.NewContext(req, rec))
		return rec.Code
	}

	assert.Equal(t, http.StatusUnauthorized, do(""))
	assert.Equal(t, http.StatusUnauthorized, do("wrong"))
	assert.False(t, called)
	assert.Equal(t, http.StatusOK, do("s3cret"))
	assert.True(t, called)
}

func TestNewRequiresSecrets(t *testing.T) {
	cfg := newTestConfig()
	cfg.Web.InternalSecret = ""
	_, err := New(cfg, passAuth(), nopRegistrar{}, nopRegistrar{}, nopRegistrar{})
	assert.Error(t, err)

	cfg = newTestConfig()
	cfg.Web.AdminSecret = ""
	_, err = New(cfg, passAuth(), nopRegistrar{}, nopRegistrar{}, nopRegistrar{})
	assert.Error(t, err)

	cfg = newTestConfig()
	srv, err := New(cfg, passAuth(), nopRegistrar{}, nopRegistrar{}, nopRegistrar{})
	require.NoError(t, err)
	assert.NotNil(t, srv.Echo())
}
