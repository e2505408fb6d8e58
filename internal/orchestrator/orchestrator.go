// Package orchestrator drives instance placement and the lifecycle state
// machine: creating -> running|error, running -> migrating -> running|error.
// Status is always written before the container operation it brackets, so a
// crash mid-flight leaves an inspectable row instead of a silently stale
// "running".
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/talkgrid/waplane/internal/domain"
	"github.com/talkgrid/waplane/internal/lifecycle"
	"github.com/talkgrid/waplane/internal/registry"
	"github.com/talkgrid/waplane/pkg/common"
	"github.com/talkgrid/waplane/pkg/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrNoCapacity means no node exists to place a new instance on.
	ErrNoCapacity = errors.New("no node capacity available")
	// ErrNoMigrationTarget means no node other than the current one
	// exists; single-node deployments cannot migrate.
	ErrNoMigrationTarget = errors.New("no migration destination available")
	// ErrPhoneExists means the tenant already has an instance for the
	// phone number.
	ErrPhoneExists = errors.New("phone number already has an instance")
	// ErrInvalidProvider rejects providers outside the enumeration before
	// any row is written.
	ErrInvalidProvider = errors.New("invalid connector provider")
)

// CreateRequest is the validated tenant input for a new instance.
type CreateRequest struct {
	Name       string
	Phone      string
	Provider   domain.Provider
	WebhookURL string
	CPULimit   string
	MemLimit   string
}

// Orchestrator coordinates the registry and the lifecycle manager.
type Orchestrator struct {
	reg *registry.Registry
	lm  *lifecycle.Manager
}

// New builds an orchestrator.
func New(reg *registry.Registry, lm *lifecycle.Manager) *Orchestrator {
	return &Orchestrator{reg: reg, lm: lm}
}

// CreateInstance places a new instance on the first available node and
// provisions its container. On provisioning failure the row is kept in
// status "error" for operator visibility and the error is surfaced.
func (o *Orchestrator) CreateInstance(ctx context.Context, tenant *domain.Tenant, req CreateRequest) (*domain.Instance, error) {
	req.Phone = strings.TrimSpace(req.Phone)
	if req.Phone == "" {
		return nil, fmt.Errorf("phone is required")
	}
	if !req.Provider.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidProvider, req.Provider)
	}
	if count, err := o.reg.Instances.CountByTenantPhone(ctx, tenant.ID, req.Phone); err != nil {
		return nil, err
	} else if count > 0 {
		return nil, ErrPhoneExists
	}

	node, err := o.reg.Nodes.FirstAvailable(ctx, 0)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoCapacity
	} else if err != nil {
		return nil, err
	}

	inst := &domain.Instance{
		ID:         common.UUIDint64(),
		TenantId:   tenant.ID,
		NodeId:     node.ID,
		Name:       req.Name,
		Phone:      req.Phone,
		Provider:   req.Provider,
		WebhookURL: req.WebhookURL,
		Status:     domain.InstanceStatusCreating,
		CPULimit:   req.CPULimit,
		MemLimit:   req.MemLimit,
	}
	if err := o.reg.Instances.Create(ctx, inst); err != nil {
		return nil, err
	}

	if _, err := o.lm.CreateAndStart(ctx, inst, node); err != nil {
		zap.L().Error("instance provisioning failed",
			zap.Int64("instance_id", inst.ID),
			zap.Int64("node_id", node.ID),
			zap.Error(err))
		if uerr := o.reg.Instances.UpdateStatus(ctx, inst.ID, domain.InstanceStatusError); uerr != nil {
			zap.L().Error("failed to mark instance error", zap.Int64("instance_id", inst.ID), zap.Error(uerr))
		}
		metrics.InstancesCreated.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("provision instance %d: %w", inst.ID, err)
	}

	if err := o.reg.Instances.UpdateStatus(ctx, inst.ID, domain.InstanceStatusRunning); err != nil {
		return nil, err
	}
	inst.Status = domain.InstanceStatusRunning
	metrics.InstancesCreated.WithLabelValues("ok").Inc()
	zap.L().Info("instance running",
		zap.Int64("instance_id", inst.ID),
		zap.Int64("tenant_id", tenant.ID),
		zap.Int64("node_id", node.ID))
	return inst, nil
}

// MigrateInstance relocates a running instance to another node. The
// orchestrator never moves session bytes itself: stopping the source
// container triggers the connector's snapshot upload, starting the
// destination container triggers its download.
func (o *Orchestrator) MigrateInstance(ctx context.Context, instanceID, tenantID int64) (*domain.Instance, error) {
	inst, err := o.reg.Instances.GetOwned(ctx, instanceID, tenantID)
	if err != nil {
		return nil, err
	}
	src, err := o.reg.Nodes.GetByID(ctx, inst.NodeId)
	if err != nil {
		return nil, fmt.Errorf("source node %d: %w", inst.NodeId, err)
	}
	dst, err := o.reg.Nodes.FirstAvailable(ctx, inst.NodeId)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoMigrationTarget
	} else if err != nil {
		return nil, err
	}

	if err := o.reg.Instances.UpdateStatus(ctx, inst.ID, domain.InstanceStatusMigrating); err != nil {
		return nil, err
	}

	fail := func(step string, err error) (*domain.Instance, error) {
		zap.L().Error("migration failed",
			zap.Int64("instance_id", inst.ID),
			zap.String("step", step),
			zap.Int64("src_node", src.ID),
			zap.Int64("dst_node", dst.ID),
			zap.Error(err))
		if uerr := o.reg.Instances.UpdateStatus(ctx, inst.ID, domain.InstanceStatusError); uerr != nil {
			zap.L().Error("failed to mark instance error", zap.Int64("instance_id", inst.ID), zap.Error(uerr))
		}
		metrics.Migrations.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("migrate instance %d (%s): %w", inst.ID, step, err)
	}

	// Source teardown brackets the connector's snapshot upload.
	if err := o.lm.StopAndRemove(ctx, inst.ID, src); err != nil {
		return fail("stop source", err)
	}
	// Destination startup restores the snapshot on its own.
	if _, err := o.lm.CreateAndStart(ctx, inst, dst); err != nil {
		return fail("start destination", err)
	}
	if err := o.reg.Instances.UpdatePlacement(ctx, inst.ID, dst.ID, domain.InstanceStatusRunning); err != nil {
		return fail("update registry", err)
	}

	inst.NodeId = dst.ID
	inst.Status = domain.InstanceStatusRunning
	metrics.Migrations.WithLabelValues("ok").Inc()
	zap.L().Info("instance migrated",
		zap.Int64("instance_id", inst.ID),
		zap.Int64("src_node", src.ID),
		zap.Int64("dst_node", dst.ID))
	return inst, nil
}

// DeleteInstance tears down the container then removes the row and its
// state entries. An instance whose node no longer exists is treated as
// orphaned: the record is deleted without engine calls.
func (o *Orchestrator) DeleteInstance(ctx context.Context, instanceID, tenantID int64) error {
	inst, err := o.reg.Instances.GetOwned(ctx, instanceID, tenantID)
	if err != nil {
		return err
	}
	return o.removeInstance(ctx, inst)
}

func (o *Orchestrator) removeInstance(ctx context.Context, inst *domain.Instance) error {
	if inst.NodeId != 0 {
		node, err := o.reg.Nodes.GetByID(ctx, inst.NodeId)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			zap.L().Warn("instance node missing, deleting record only",
				zap.Int64("instance_id", inst.ID), zap.Int64("node_id", inst.NodeId))
		case err != nil:
			return err
		default:
			if err := o.lm.StopAndRemove(ctx, inst.ID, node); err != nil {
				return fmt.Errorf("teardown instance %d: %w", inst.ID, err)
			}
		}
	}
	if err := o.reg.Instances.Delete(ctx, inst.ID); err != nil {
		return err
	}
	metrics.InstancesDeleted.Inc()
	zap.L().Info("instance deleted", zap.Int64("instance_id", inst.ID))
	return nil
}

// DeleteTenant removes a tenant and cascades to its instances through the
// normal teardown path.
func (o *Orchestrator) DeleteTenant(ctx context.Context, tenantID int64) error {
	insts, err := o.reg.Instances.ListByTenant(ctx, tenantID)
	if err != nil {
		return err
	}
	for i := range insts {
		if err := o.removeInstance(ctx, &insts[i]); err != nil {
			return err
		}
	}
	return o.reg.Tenants.Delete(ctx, tenantID)
}
