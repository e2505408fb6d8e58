// Package registry is the only component that reads or writes Tenant, Node,
// Instance and InstanceState rows. Everything above it works with validated
// rows, never raw queries.
package registry

import (
	"context"
	"errors"
	"time"

	"github.com/talkgrid/waplane/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNodeInUse is returned when deleting a node that still hosts instances.
// Node deletion never cascades: losing track of running containers is worse
// than a blocked delete.
var ErrNodeInUse = errors.New("node has referencing instances")

// TenantRepository handles tenant rows.
type TenantRepository interface {
	Create(ctx context.Context, t *domain.Tenant) error
	GetByID(ctx context.Context, id int64) (*domain.Tenant, error)
	GetByApiKey(ctx context.Context, key string) (*domain.Tenant, error)
	List(ctx context.Context) ([]domain.Tenant, error)
	Delete(ctx context.Context, id int64) error
}

// NodeRepository handles worker node rows.
type NodeRepository interface {
	Create(ctx context.Context, n *domain.Node) error
	Update(ctx context.Context, n *domain.Node) error
	GetByID(ctx context.Context, id int64) (*domain.Node, error)
	List(ctx context.Context) ([]domain.Node, error)

	// FirstAvailable picks the placement target: the first node by id,
	// excluding excludeID when non-zero. gorm.ErrRecordNotFound means no
	// capacity (or no migration destination).
	FirstAvailable(ctx context.Context, excludeID int64) (*domain.Node, error)

	// Delete refuses with ErrNodeInUse while instances reference the node.
	Delete(ctx context.Context, id int64) error

	// UpdateProbe records the outcome of a node probe.
	UpdateProbe(ctx context.Context, id int64, status string, latencyMs int) error
}

// InstanceRepository handles instance rows. Tenant-scoped getters enforce
// ownership in the query itself.
type InstanceRepository interface {
	Create(ctx context.Context, inst *domain.Instance) error
	GetByID(ctx context.Context, id int64) (*domain.Instance, error)
	GetOwned(ctx context.Context, id, tenantID int64) (*domain.Instance, error)
	ListByTenant(ctx context.Context, tenantID int64) ([]domain.Instance, error)
	ListByNode(ctx context.Context, nodeID int64) ([]domain.Instance, error)
	CountByTenantPhone(ctx context.Context, tenantID int64, phone string) (int64, error)
	UpdateStatus(ctx context.Context, id int64, status string) error
	UpdatePlacement(ctx context.Context, id, nodeID int64, status string) error

	// Delete removes the row and cascades its state entries.
	Delete(ctx context.Context, id int64) error
}

// StateRepository handles the opaque per-instance state blobs.
type StateRepository interface {
	Get(ctx context.Context, instanceID int64, key string) (*domain.InstanceState, error)
	Upsert(ctx context.Context, instanceID int64, key string, value []byte) error
	DeleteByInstance(ctx context.Context, instanceID int64) error
}

// Registry bundles the gorm repositories over one database handle.
type Registry struct {
	Tenants   TenantRepository
	Nodes     NodeRepository
	Instances InstanceRepository
	States    StateRepository
}

// New builds the repository set.
func New(db *gorm.DB) *Registry {
	return &Registry{
		Tenants:   &gormTenantRepository{db: db},
		Nodes:     &gormNodeRepository{db: db},
		Instances: &gormInstanceRepository{db: db},
		States:    &gormStateRepository{db: db},
	}
}

type gormTenantRepository struct {
	db *gorm.DB
}

func (r *gormTenantRepository) Create(ctx context.Context, t *domain.Tenant) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *gormTenantRepository) GetByID(ctx context.Context, id int64) (*domain.Tenant, error) {
	var t domain.Tenant
	err := r.db.WithContext(ctx).First(&t, id).Error
	return &t, err
}

func (r *gormTenantRepository) GetByApiKey(ctx context.Context, key string) (*domain.Tenant, error) {
	var t domain.Tenant
	err := r.db.WithContext(ctx).Where("api_key = ?", key).First(&t).Error
	return &t, err
}

func (r *gormTenantRepository) List(ctx context.Context) ([]domain.Tenant, error) {
	var ts []domain.Tenant
	err := r.db.WithContext(ctx).Order("id").Find(&ts).Error
	return ts, err
}

func (r *gormTenantRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&domain.Tenant{}, id).Error
}

type gormNodeRepository struct {
	db *gorm.DB
}

func (r *gormNodeRepository) Create(ctx context.Context, n *domain.Node) error {
	return r.db.WithContext(ctx).Create(n).Error
}

func (r *gormNodeRepository) Update(ctx context.Context, n *domain.Node) error {
	return r.db.WithContext(ctx).Save(n).Error
}

func (r *gormNodeRepository) GetByID(ctx context.Context, id int64) (*domain.Node, error) {
	var n domain.Node
	err := r.db.WithContext(ctx).First(&n, id).Error
	return &n, err
}

func (r *gormNodeRepository) List(ctx context.Context) ([]domain.Node, error) {
	var ns []domain.Node
	err := r.db.WithContext(ctx).Order("id").Find(&ns).Error
	return ns, err
}

func (r *gormNodeRepository) FirstAvailable(ctx context.Context, excludeID int64) (*domain.Node, error) {
	var n domain.Node
	q := r.db.WithContext(ctx).Order("id")
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	err := q.First(&n).Error
	return &n, err
}

func (r *gormNodeRepository) Delete(ctx context.Context, id int64) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.Instance{}).
		Where("node_id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrNodeInUse
	}
	return r.db.WithContext(ctx).Delete(&domain.Node{}, id).Error
}

func (r *gormNodeRepository) UpdateProbe(ctx context.Context, id int64, status string, latencyMs int) error {
	return r.db.WithContext(ctx).
		Model(&domain.Node{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        status,
			"latency":       latencyMs,
			"last_probe_at": time.Now(),
		}).Error
}

type gormInstanceRepository struct {
	db *gorm.DB
}

func (r *gormInstanceRepository) Create(ctx context.Context, inst *domain.Instance) error {
	return r.db.WithContext(ctx).Create(inst).Error
}

func (r *gormInstanceRepository) GetByID(ctx context.Context, id int64) (*domain.Instance, error) {
	var inst domain.Instance
	err := r.db.WithContext(ctx).First(&inst, id).Error
	return &inst, err
}

func (r *gormInstanceRepository) GetOwned(ctx context.Context, id, tenantID int64) (*domain.Instance, error) {
	var inst domain.Instance
	err := r.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		First(&inst).Error
	return &inst, err
}

func (r *gormInstanceRepository) ListByTenant(ctx context.Context, tenantID int64) ([]domain.Instance, error) {
	var insts []domain.Instance
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("id").
		Find(&insts).Error
	return insts, err
}

func (r *gormInstanceRepository) ListByNode(ctx context.Context, nodeID int64) ([]domain.Instance, error) {
	var insts []domain.Instance
	err := r.db.WithContext(ctx).
		Where("node_id = ?", nodeID).
		Order("id").
		Find(&insts).Error
	return insts, err
}

func (r *gormInstanceRepository) CountByTenantPhone(ctx context.Context, tenantID int64, phone string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Instance{}).
		Where("tenant_id = ? AND phone = ?", tenantID, phone).
		Count(&count).Error
	return count, err
}

func (r *gormInstanceRepository) UpdateStatus(ctx context.Context, id int64, status string) error {
	return r.db.WithContext(ctx).Model(&domain.Instance{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *gormInstanceRepository) UpdatePlacement(ctx context.Context, id, nodeID int64, status string) error {
	return r.db.WithContext(ctx).Model(&domain.Instance{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"node_id": nodeID,
			"status":  status,
		}).Error
}

func (r *gormInstanceRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("instance_id = ?", id).Delete(&domain.InstanceState{}).Error; err != nil {
			return err
		}
		return tx.Delete(&domain.Instance{}, id).Error
	})
}

type gormStateRepository struct {
	db *gorm.DB
}

func (r *gormStateRepository) Get(ctx context.Context, instanceID int64, key string) (*domain.InstanceState, error) {
	var st domain.InstanceState
	err := r.db.WithContext(ctx).
		Where("instance_id = ? AND state_key = ?", instanceID, key).
		First(&st).Error
	return &st, err
}

func (r *gormStateRepository) Upsert(ctx context.Context, instanceID int64, key string, value []byte) error {
	st := domain.InstanceState{
		InstanceId: instanceID,
		Key:        key,
		Value:      value,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "instance_id"}, {Name: "state_key"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"value": value, "updated_at": time.Now()}),
	}).Create(&st).Error
}

func (r *gormStateRepository) DeleteByInstance(ctx context.Context, instanceID int64) error {
	return r.db.WithContext(ctx).
		Where("instance_id = ?", instanceID).
		Delete(&domain.InstanceState{}).Error
}
