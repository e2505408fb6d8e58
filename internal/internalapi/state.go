// Package internalapi is the connector-facing state store. Connectors call
// it on startup (restore) and shutdown (backup) with the shared internal
// secret, never a tenant credential.
package internalapi

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/talkgrid/waplane/internal/domain"
	"github.com/talkgrid/waplane/internal/registry"
	"github.com/talkgrid/waplane/internal/webserver"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Handler carries the internal API dependencies.
type Handler struct {
	reg *registry.Registry
}

// New builds the internal API handler.
func New(reg *registry.Registry) *Handler {
	return &Handler{reg: reg}
}

// Register mounts the state routes on the secret-authenticated group.
func (h *Handler) Register(g *echo.Group) {
	g.GET("/state/:id/snapshot", h.getSnapshot)
	g.POST("/state/:id/snapshot", h.putSnapshot)
	g.GET("/state/:id/:key", h.getState)
	g.POST("/state/:id/:key", h.putState)
}

func (h *Handler) instanceID(c echo.Context) (int64, error) {
	id, err := webserver.ParseIDParam(c, "id")
	if err != nil {
		return 0, webserver.Fail(c, http.StatusBadRequest, "INVALID_ID", "invalid instance id")
	}
	if _, err := h.reg.Instances.GetByID(c.Request().Context(), id); errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, webserver.NotFoundJSON(c, "instance not found")
	} else if err != nil {
		return 0, webserver.Fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "failed to query instance")
	}
	return id, nil
}

// get returns the stored value raw. A missing key is a 404 the connector
// treats as "start fresh".
func (h *Handler) get(c echo.Context, key string) error {
	id, err := h.instanceID(c)
	if id == 0 {
		return err
	}
	st, err := h.reg.States.Get(c.Request().Context(), id, key)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return webserver.NotFoundJSON(c, "state not found")
	} else if err != nil {
		zap.L().Error("state read failed", zap.Int64("instance_id", id), zap.String("key", key), zap.Error(err))
		return webserver.Fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "failed to read state")
	}
	return c.Blob(http.StatusOK, echo.MIMEOctetStream, st.Value)
}

// put upserts the raw request body under (instance, key).
func (h *Handler) put(c echo.Context, key string) error {
	id, err := h.instanceID(c)
	if id == 0 {
		return err
	}
	value, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return webserver.Fail(c, http.StatusBadRequest, "INVALID_BODY", "unable to read request body")
	}
	if err := h.reg.States.Upsert(c.Request().Context(), id, key, value); err != nil {
		zap.L().Error("state write failed", zap.Int64("instance_id", id), zap.String("key", key), zap.Error(err))
		return webserver.Fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "failed to store state")
	}
	return webserver.OK(c, map[string]interface{}{"stored": true, "bytes": len(value)})
}

func (h *Handler) getSnapshot(c echo.Context) error {
	return h.get(c, domain.SnapshotKey)
}

func (h *Handler) putSnapshot(c echo.Context) error {
	return h.put(c, domain.SnapshotKey)
}

func (h *Handler) getState(c echo.Context) error {
	return h.get(c, c.Param("key"))
}

func (h *Handler) putState(c echo.Context) error {
	return h.put(c, c.Param("key"))
}
