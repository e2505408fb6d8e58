package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talkgrid/waplane/internal/domain"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB creates an in-memory SQLite database for testing
func setupTestDB(t *testing.T) *Registry {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(domain.Tables...))
	return New(db)
}

func TestTenantByApiKey(t *testing.T) {
	reg := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, reg.Tenants.Create(ctx, &domain.Tenant{
		ID: 1, Name: "acme", ApiKey: "key-acme",
	}))

	tenant, err := reg.Tenants.GetByApiKey(ctx, "key-acme")
	require.NoError(t, err)
	assert.Equal(t, "acme", tenant.Name)

	_, err = reg.Tenants.GetByApiKey(ctx, "wrong")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestNodeDeleteRefusesWhileReferenced(t *testing.T) {
	reg := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, reg.Nodes.Create(ctx, &domain.Node{ID: 10, Name: "node-a", EngineAddr: "tcp://a:2375"}))
	require.NoError(t, reg.Instances.Create(ctx, &domain.Instance{
		ID: 100, TenantId: 1, NodeId: 10, Phone: "111", Provider: domain.ProviderWhatsmeow,
	}))

	err := reg.Nodes.Delete(ctx, 10)
	assert.ErrorIs(t, err, ErrNodeInUse)

	// node survives the refused delete
	_, err = reg.Nodes.GetByID(ctx, 10)
	require.NoError(t, err)

	require.NoError(t, reg.Instances.Delete(ctx, 100))
	require.NoError(t, reg.Nodes.Delete(ctx, 10))
	_, err = reg.Nodes.GetByID(ctx, 10)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestFirstAvailable(t *testing.T) {
	reg := setupTestDB(t)
	ctx := context.Background()

	_, err := reg.Nodes.FirstAvailable(ctx, 0)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	require.NoError(t, reg.Nodes.Create(ctx, &domain.Node{ID: 1, Name: "node-a"}))
	require.NoError(t, reg.Nodes.Create(ctx, &domain.Node{ID: 2, Name: "node-b"}))

	node, err := reg.Nodes.FirstAvailable(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), node.ID)

	node, err = reg.Nodes.FirstAvailable(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), node.ID)

	require.NoError(t, reg.Nodes.Delete(ctx, 2))
	_, err = reg.Nodes.FirstAvailable(ctx, 1)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestInstanceOwnership(t *testing.T) {
	reg := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, reg.Instances.Create(ctx, &domain.Instance{
		ID: 100, TenantId: 1, NodeId: 10, Phone: "111", Provider: domain.ProviderWhatsmeow,
	}))

	inst, err := reg.Instances.GetOwned(ctx, 100, 1)
	require.NoError(t, err)
	assert.Equal(t, "111", inst.Phone)

	// a foreign tenant sees not-found, not forbidden
	_, err = reg.Instances.GetOwned(ctx, 100, 2)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	insts, err := reg.Instances.ListByTenant(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, insts, 0)
}

func TestCountByTenantPhone(t *testing.T) {
	reg := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, reg.Instances.Create(ctx, &domain.Instance{
		ID: 100, TenantId: 1, Phone: "111", Provider: domain.ProviderWhatsmeow,
	}))

	count, err := reg.Instances.CountByTenantPhone(ctx, 1, "111")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// same phone under another tenant is free
	count, err = reg.Instances.CountByTenantPhone(ctx, 2, "111")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestUpdateStatusAndPlacement(t *testing.T) {
	reg := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, reg.Instances.Create(ctx, &domain.Instance{
		ID: 100, TenantId: 1, NodeId: 10, Phone: "111",
		Provider: domain.ProviderWhatsmeow, Status: domain.InstanceStatusCreating,
	}))

	require.NoError(t, reg.Instances.UpdateStatus(ctx, 100, domain.InstanceStatusRunning))
	inst, err := reg.Instances.GetByID(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, domain.InstanceStatusRunning, inst.Status)

	require.NoError(t, reg.Instances.UpdatePlacement(ctx, 100, 20, domain.InstanceStatusRunning))
	inst, err = reg.Instances.GetByID(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(20), inst.NodeId)
}

func TestStateUpsertRoundtrip(t *testing.T) {
	reg := setupTestDB(t)
	ctx := context.Background()

	_, err := reg.States.Get(ctx, 100, domain.SnapshotKey)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	payload := []byte{0x00, 0x01, 0xff, 0xfe, 'w', 'a'}
	require.NoError(t, reg.States.Upsert(ctx, 100, domain.SnapshotKey, payload))

	st, err := reg.States.Get(ctx, 100, domain.SnapshotKey)
	require.NoError(t, err)
	assert.Equal(t, payload, st.Value)

	// overwrite, not append
	next := []byte("v2")
	require.NoError(t, reg.States.Upsert(ctx, 100, domain.SnapshotKey, next))
	st, err = reg.States.Get(ctx, 100, domain.SnapshotKey)
	require.NoError(t, err)
	assert.Equal(t, next, st.Value)

	// other keys are independent
	require.NoError(t, reg.States.Upsert(ctx, 100, "prefs", []byte("x")))
	st, err = reg.States.Get(ctx, 100, domain.SnapshotKey)
	require.NoError(t, err)
	assert.Equal(t, next, st.Value)
}

func TestInstanceDeleteCascadesState(t *testing.T) {
	reg := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, reg.Instances.Create(ctx, &domain.Instance{
		ID: 100, TenantId: 1, Phone: "111", Provider: domain.ProviderWhatsmeow,
	}))
	require.NoError(t, reg.States.Upsert(ctx, 100, domain.SnapshotKey, []byte("snap")))

	require.NoError(t, reg.Instances.Delete(ctx, 100))

	_, err := reg.Instances.GetByID(ctx, 100)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	_, err = reg.States.Get(ctx, 100, domain.SnapshotKey)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestUpdateProbe(t *testing.T) {
	reg := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, reg.Nodes.Create(ctx, &domain.Node{ID: 1, Name: "node-a"}))
	require.NoError(t, reg.Nodes.UpdateProbe(ctx, 1, domain.NodeStatusOK, 12))

	node, err := reg.Nodes.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.NodeStatusOK, node.Status)
	assert.Equal(t, 12, node.Latency)
	assert.False(t, node.LastProbeAt.IsZero())
}
