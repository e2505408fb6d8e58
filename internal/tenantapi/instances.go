// Package tenantapi implements the tenant-facing REST surface. Every
// operation is scoped to the tenant authenticated by the bearer key.
package tenantapi

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/talkgrid/waplane/internal/domain"
	"github.com/talkgrid/waplane/internal/orchestrator"
	"github.com/talkgrid/waplane/internal/proxy"
	"github.com/talkgrid/waplane/internal/registry"
	"github.com/talkgrid/waplane/internal/webserver"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Handler carries the tenant API dependencies.
type Handler struct {
	reg  *registry.Registry
	orch *orchestrator.Orchestrator
	fwd  *proxy.Forwarder
}

// New builds the tenant API handler.
func New(reg *registry.Registry, orch *orchestrator.Orchestrator, fwd *proxy.Forwarder) *Handler {
	return &Handler{reg: reg, orch: orch, fwd: fwd}
}

// Register mounts the tenant routes on the authenticated group.
func (h *Handler) Register(g *echo.Group) {
	g.POST("/instances", h.createInstance)
	g.GET("/instances", h.listInstances)
	g.GET("/instances/:id", h.getInstance)
	g.DELETE("/instances/:id", h.deleteInstance)
	g.POST("/instances/:id/migrate", h.migrateInstance)
	g.GET("/instances/:id/qr", h.getPairingCode)
	g.POST("/instances/:id/send", h.sendMessage)
}

type resourcesPayload struct {
	CPU    string `json:"cpu" validate:"omitempty,max=16"`
	Memory string `json:"memory" validate:"omitempty,max=16"`
}

type createInstancePayload struct {
	Name      string           `json:"name" validate:"omitempty,max=100"`
	Phone     string           `json:"phone" validate:"required,min=5,max=20"`
	Provider  string           `json:"provider" validate:"required"`
	Webhook   string           `json:"webhook" validate:"omitempty,url"`
	Resources resourcesPayload `json:"resources"`
}

func (h *Handler) createInstance(c echo.Context) error {
	var payload createInstancePayload
	if err := c.Bind(&payload); err != nil {
		return webserver.Fail(c, http.StatusBadRequest, "INVALID_REQUEST", "unable to parse instance parameters")
	}
	if err := c.Validate(&payload); err != nil {
		return webserver.Fail(c, http.StatusBadRequest, "VALIDATION_FAILED", err.Error())
	}

	tenant := webserver.GetTenant(c)
	inst, err := h.orch.CreateInstance(c.Request().Context(), tenant, orchestrator.CreateRequest{
		Name:       payload.Name,
		Phone:      payload.Phone,
		Provider:   domain.Provider(payload.Provider),
		WebhookURL: payload.Webhook,
		CPULimit:   payload.Resources.CPU,
		MemLimit:   payload.Resources.Memory,
	})
	switch {
	case errors.Is(err, orchestrator.ErrNoCapacity):
		return webserver.Fail(c, http.StatusServiceUnavailable, "NO_CAPACITY", "no worker node available")
	case errors.Is(err, orchestrator.ErrInvalidProvider):
		return webserver.Fail(c, http.StatusBadRequest, "INVALID_PROVIDER", "unknown connector provider")
	case errors.Is(err, orchestrator.ErrPhoneExists):
		return webserver.Fail(c, http.StatusConflict, "PHONE_EXISTS", "an instance already exists for this phone number")
	case err != nil:
		zap.L().Error("create instance failed", zap.Int64("tenant_id", tenant.ID), zap.Error(err))
		return webserver.Fail(c, http.StatusInternalServerError, "PROVISION_FAILED", "instance provisioning failed")
	}
	return webserver.OK(c, inst)
}

func (h *Handler) listInstances(c echo.Context) error {
	tenant := webserver.GetTenant(c)
	insts, err := h.reg.Instances.ListByTenant(c.Request().Context(), tenant.ID)
	if err != nil {
		zap.L().Error("list instances failed", zap.Int64("tenant_id", tenant.ID), zap.Error(err))
		return webserver.Fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "failed to list instances")
	}
	return webserver.OK(c, insts)
}

// ownedInstance resolves the :id parameter against the authenticated
// tenant. A foreign or missing instance is indistinguishable: 404.
func (h *Handler) ownedInstance(c echo.Context) (*domain.Instance, error) {
	id, err := webserver.ParseIDParam(c, "id")
	if err != nil {
		return nil, webserver.Fail(c, http.StatusBadRequest, "INVALID_ID", "invalid instance id")
	}
	tenant := webserver.GetTenant(c)
	inst, err := h.reg.Instances.GetOwned(c.Request().Context(), id, tenant.ID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, webserver.NotFoundJSON(c, "instance not found")
	} else if err != nil {
		zap.L().Error("instance lookup failed", zap.Int64("instance_id", id), zap.Error(err))
		return nil, webserver.Fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "failed to query instance")
	}
	return inst, nil
}

func (h *Handler) getInstance(c echo.Context) error {
	inst, err := h.ownedInstance(c)
	if inst == nil {
		return err
	}
	return webserver.OK(c, inst)
}

func (h *Handler) deleteInstance(c echo.Context) error {
	inst, err := h.ownedInstance(c)
	if inst == nil {
		return err
	}
	tenant := webserver.GetTenant(c)
	if err := h.orch.DeleteInstance(c.Request().Context(), inst.ID, tenant.ID); err != nil {
		zap.L().Error("delete instance failed", zap.Int64("instance_id", inst.ID), zap.Error(err))
		return webserver.Fail(c, http.StatusInternalServerError, "TEARDOWN_FAILED", "instance teardown failed")
	}
	return c.NoContent(http.StatusNoContent)
}

type migratePayload struct {
	// TargetNode is informational for now; the destination is selected
	// automatically.
	TargetNode int64 `json:"target_node,string"`
}

func (h *Handler) migrateInstance(c echo.Context) error {
	inst, err := h.ownedInstance(c)
	if inst == nil {
		return err
	}
	var payload migratePayload
	_ = c.Bind(&payload)

	tenant := webserver.GetTenant(c)
	migrated, err := h.orch.MigrateInstance(c.Request().Context(), inst.ID, tenant.ID)
	switch {
	case errors.Is(err, orchestrator.ErrNoMigrationTarget):
		return webserver.Fail(c, http.StatusServiceUnavailable, "NO_DESTINATION", "no migration destination available")
	case err != nil:
		zap.L().Error("migrate instance failed", zap.Int64("instance_id", inst.ID), zap.Error(err))
		return webserver.Fail(c, http.StatusInternalServerError, "MIGRATION_FAILED", "instance migration failed")
	}
	return webserver.OK(c, map[string]interface{}{
		"status":   "ok",
		"instance": migrated,
	})
}

// forward relays a request to the connector behind the instance. The
// connector's own responses pass through verbatim; only a transport
// failure to the node is a 503 here.
func (h *Handler) forward(c echo.Context, path, method string) error {
	inst, err := h.ownedInstance(c)
	if inst == nil {
		return err
	}
	node, err := h.reg.Nodes.GetByID(c.Request().Context(), inst.NodeId)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return webserver.NotFoundJSON(c, "hosting node not found")
	} else if err != nil {
		return webserver.Fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "failed to query node")
	}

	var body []byte
	if method == http.MethodPost {
		body, _ = io.ReadAll(c.Request().Body)
	}
	res, err := h.fwd.Forward(c.Request().Context(), node, inst.ID, path, method, body)
	if errors.Is(err, proxy.ErrUpstreamUnreachable) {
		return webserver.Fail(c, http.StatusServiceUnavailable, "UPSTREAM_UNREACHABLE", "instance endpoint unreachable")
	} else if err != nil {
		zap.L().Error("proxy forward failed", zap.Int64("instance_id", inst.ID), zap.Error(err))
		return webserver.Fail(c, http.StatusInternalServerError, "PROXY_ERROR", "failed to reach instance")
	}
	contentType := res.ContentType
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}
	return c.Blob(res.Status, contentType, res.Body)
}

func (h *Handler) getPairingCode(c echo.Context) error {
	return h.forward(c, "qr", http.MethodGet)
}

func (h *Handler) sendMessage(c echo.Context) error {
	return h.forward(c, "send", http.MethodPost)
}
