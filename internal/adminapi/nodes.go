// Package adminapi is the operator surface: worker node and tenant records
// plus prometheus metrics, behind the admin shared secret.
package adminapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/talkgrid/waplane/internal/domain"
	"github.com/talkgrid/waplane/internal/orchestrator"
	"github.com/talkgrid/waplane/internal/registry"
	"github.com/talkgrid/waplane/internal/webserver"
	"github.com/talkgrid/waplane/pkg/common"
	"github.com/talkgrid/waplane/pkg/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Handler carries the admin API dependencies.
type Handler struct {
	reg  *registry.Registry
	orch *orchestrator.Orchestrator
}

// New builds the admin API handler.
func New(reg *registry.Registry, orch *orchestrator.Orchestrator) *Handler {
	return &Handler{reg: reg, orch: orch}
}

// Register mounts the admin routes on the secret-authenticated group.
func (h *Handler) Register(g *echo.Group) {
	g.GET("/nodes", h.listNodes)
	g.POST("/nodes", h.createNode)
	g.GET("/nodes/:id", h.getNode)
	g.PUT("/nodes/:id", h.updateNode)
	g.DELETE("/nodes/:id", h.deleteNode)

	g.GET("/tenants", h.listTenants)
	g.POST("/tenants", h.createTenant)
	g.DELETE("/tenants/:id", h.deleteTenant)

	g.GET("/metrics", metrics.Handler())
}

type nodePayload struct {
	Name           string `json:"name" validate:"required,min=1,max=100"`
	EngineAddr     string `json:"engine_addr" validate:"required,min=1,max=300"`
	PublicHost     string `json:"public_host" validate:"required,min=1,max=300"`
	IngressEnabled bool   `json:"ingress_enabled"`
	Tags           string `json:"tags" validate:"omitempty,max=200"`
	Remark         string `json:"remark" validate:"omitempty,max=500"`
}

func (h *Handler) listNodes(c echo.Context) error {
	nodes, err := h.reg.Nodes.List(c.Request().Context())
	if err != nil {
		return webserver.Fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "failed to query nodes")
	}
	return webserver.OK(c, nodes)
}

func (h *Handler) createNode(c echo.Context) error {
	var payload nodePayload
	if err := c.Bind(&payload); err != nil {
		return webserver.Fail(c, http.StatusBadRequest, "INVALID_REQUEST", "unable to parse node parameters")
	}
	if err := c.Validate(&payload); err != nil {
		return webserver.Fail(c, http.StatusBadRequest, "VALIDATION_FAILED", err.Error())
	}
	node := domain.Node{
		ID:             common.UUIDint64(),
		Name:           strings.TrimSpace(payload.Name),
		EngineAddr:     strings.TrimSpace(payload.EngineAddr),
		PublicHost:     strings.TrimSpace(payload.PublicHost),
		IngressEnabled: payload.IngressEnabled,
		Tags:           payload.Tags,
		Remark:         payload.Remark,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	if err := h.reg.Nodes.Create(c.Request().Context(), &node); err != nil {
		zap.L().Error("create node failed", zap.String("name", node.Name), zap.Error(err))
		return webserver.Fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "failed to create node")
	}
	return webserver.OK(c, node)
}

func (h *Handler) getNode(c echo.Context) error {
	id, err := webserver.ParseIDParam(c, "id")
	if err != nil {
		return webserver.Fail(c, http.StatusBadRequest, "INVALID_ID", "invalid node id")
	}
	node, err := h.reg.Nodes.GetByID(c.Request().Context(), id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return webserver.NotFoundJSON(c, "node not found")
	} else if err != nil {
		return webserver.Fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "failed to query node")
	}
	return webserver.OK(c, node)
}

func (h *Handler) updateNode(c echo.Context) error {
	id, err := webserver.ParseIDParam(c, "id")
	if err != nil {
		return webserver.Fail(c, http.StatusBadRequest, "INVALID_ID", "invalid node id")
	}
	node, err := h.reg.Nodes.GetByID(c.Request().Context(), id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return webserver.NotFoundJSON(c, "node not found")
	} else if err != nil {
		return webserver.Fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "failed to query node")
	}
	var payload nodePayload
	if err := c.Bind(&payload); err != nil {
		return webserver.Fail(c, http.StatusBadRequest, "INVALID_REQUEST", "unable to parse node parameters")
	}
	if err := c.Validate(&payload); err != nil {
		return webserver.Fail(c, http.StatusBadRequest, "VALIDATION_FAILED", err.Error())
	}
	node.Name = strings.TrimSpace(payload.Name)
	node.EngineAddr = strings.TrimSpace(payload.EngineAddr)
	node.PublicHost = strings.TrimSpace(payload.PublicHost)
	node.IngressEnabled = payload.IngressEnabled
	node.Tags = payload.Tags
	node.Remark = payload.Remark
	node.UpdatedAt = time.Now()
	if err := h.reg.Nodes.Update(c.Request().Context(), node); err != nil {
		return webserver.Fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "failed to update node")
	}
	return webserver.OK(c, node)
}

// deleteNode refuses while any instance references the node: deletion never
// cascades to running containers.
func (h *Handler) deleteNode(c echo.Context) error {
	id, err := webserver.ParseIDParam(c, "id")
	if err != nil {
		return webserver.Fail(c, http.StatusBadRequest, "INVALID_ID", "invalid node id")
	}
	if _, err := h.reg.Nodes.GetByID(c.Request().Context(), id); errors.Is(err, gorm.ErrRecordNotFound) {
		return webserver.NotFoundJSON(c, "node not found")
	} else if err != nil {
		return webserver.Fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "failed to query node")
	}
	err = h.reg.Nodes.Delete(c.Request().Context(), id)
	if errors.Is(err, registry.ErrNodeInUse) {
		return webserver.Fail(c, http.StatusConflict, "NODE_IN_USE", "node has instances and cannot be deleted")
	} else if err != nil {
		zap.L().Error("delete node failed", zap.Int64("node_id", id), zap.Error(err))
		return webserver.Fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "failed to delete node")
	}
	return c.NoContent(http.StatusNoContent)
}

type tenantPayload struct {
	Name   string `json:"name" validate:"required,min=1,max=100"`
	Remark string `json:"remark" validate:"omitempty,max=500"`
}

func (h *Handler) listTenants(c echo.Context) error {
	tenants, err := h.reg.Tenants.List(c.Request().Context())
	if err != nil {
		return webserver.Fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "failed to query tenants")
	}
	return webserver.OK(c, tenants)
}

// createTenant issues the tenant's opaque bearer key. The key is returned
// once here and only stored server-side afterwards.
func (h *Handler) createTenant(c echo.Context) error {
	var payload tenantPayload
	if err := c.Bind(&payload); err != nil {
		return webserver.Fail(c, http.StatusBadRequest, "INVALID_REQUEST", "unable to parse tenant parameters")
	}
	if err := c.Validate(&payload); err != nil {
		return webserver.Fail(c, http.StatusBadRequest, "VALIDATION_FAILED", err.Error())
	}
	tenant := domain.Tenant{
		ID:        common.UUIDint64(),
		Name:      strings.TrimSpace(payload.Name),
		ApiKey:    common.UUID(),
		Remark:    payload.Remark,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := h.reg.Tenants.Create(c.Request().Context(), &tenant); err != nil {
		zap.L().Error("create tenant failed", zap.String("name", tenant.Name), zap.Error(err))
		return webserver.Fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "failed to create tenant")
	}
	return webserver.OK(c, tenant)
}

// deleteTenant cascades to the tenant's instances through the orchestrator
// so containers are torn down, not orphaned.
func (h *Handler) deleteTenant(c echo.Context) error {
	id, err := webserver.ParseIDParam(c, "id")
	if err != nil {
		return webserver.Fail(c, http.StatusBadRequest, "INVALID_ID", "invalid tenant id")
	}
	if _, err := h.reg.Tenants.GetByID(c.Request().Context(), id); errors.Is(err, gorm.ErrRecordNotFound) {
		return webserver.NotFoundJSON(c, "tenant not found")
	} else if err != nil {
		return webserver.Fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "failed to query tenant")
	}
	if err := h.orch.DeleteTenant(c.Request().Context(), id); err != nil {
		zap.L().Error("delete tenant failed", zap.Int64("tenant_id", id), zap.Error(err))
		return webserver.Fail(c, http.StatusInternalServerError, "TEARDOWN_FAILED", "tenant teardown failed")
	}
	return c.NoContent(http.StatusNoContent)
}
