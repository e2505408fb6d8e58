package internalapi

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talkgrid/waplane/config"
	"github.com/talkgrid/waplane/internal/domain"
	"github.com/talkgrid/waplane/internal/registry"
	"github.com/talkgrid/waplane/internal/webserver"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type nopRegistrar struct{}

func (nopRegistrar) Register(g *echo.Group) {}

func setupServer(t *testing.T) (*echo.Echo, *registry.Registry) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(domain.Tables...))
	reg := registry.New(db)

	cfg := new(config.AppConfig)
	*cfg = *config.DefaultAppConfig
	cfg.Web.InternalSecret = "internal-secret"
	cfg.Web.AdminSecret = "admin-secret"

	srv, err := webserver.New(cfg, func(next echo.HandlerFunc) echo.HandlerFunc { return next },
		nopRegistrar{}, New(reg), nopRegistrar{})
	require.NoError(t, err)
	return srv.Echo(), reg
}

func do(e *echo.Echo, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("X-Internal-Token", "internal-secret")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestSnapshotRoundtrip(t *testing.T) {
	e, reg := setupServer(t)
	require.NoError(t, reg.Instances.Create(context.Background(), &domain.Instance{
		ID: 100, TenantId: 1, Phone: "111", Provider: domain.ProviderWhatsmeow,
	}))

	// no snapshot yet: the connector starts fresh
	rec := do(e, http.MethodGet, "/internal/state/100/snapshot", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	snap := []byte{0x00, 0x01, 0xff, 's', 'e', 's', 's'}
	rec = do(e, http.MethodPost, "/internal/state/100/snapshot", snap)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(e, http.MethodGet, "/internal/state/100/snapshot", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, echo.MIMEOctetStream, rec.Header().Get(echo.HeaderContentType))
	assert.Equal(t, snap, rec.Body.Bytes())

	// overwrite wins
	rec = do(e, http.MethodPost, "/internal/state/100/snapshot", []byte("v2"))
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(e, http.MethodGet, "/internal/state/100/snapshot", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []byte("v2"), rec.Body.Bytes())
}

func TestNamedStateKeys(t *testing.T) {
	e, reg := setupServer(t)
	require.NoError(t, reg.Instances.Create(context.Background(), &domain.Instance{
		ID: 100, TenantId: 1, Phone: "111", Provider: domain.ProviderWhatsmeow,
	}))

	rec := do(e, http.MethodPost, "/internal/state/100/prefs", []byte(`{"lang":"en"}`))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(e, http.MethodGet, "/internal/state/100/prefs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `{"lang":"en"}`, rec.Body.String())

	// the snapshot key is untouched
	rec = do(e, http.MethodGet, "/internal/state/100/snapshot", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStateUnknownInstance(t *testing.T) {
	e, _ := setupServer(t)

	rec := do(e, http.MethodGet, "/internal/state/999/snapshot", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(e, http.MethodPost, "/internal/state/999/snapshot", []byte("x"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStateRequiresSecret(t *testing.T) {
	e, _ := setupServer(t)

	req := httptest.NewRequest(http.MethodGet, "/internal/state/100/snapshot", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
