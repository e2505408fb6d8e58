// Package lifecycle turns an Instance plus a target Node into concrete
// container-engine operations: building the creation spec and sequencing
// create/start and stop/remove with idempotent already-absent handling.
package lifecycle

import (
	"context"
	"fmt"
	"strconv"

	"github.com/talkgrid/waplane/internal/domain"
	"github.com/talkgrid/waplane/internal/engine"
	"go.uber.org/zap"
)

const (
	// InstanceLabel marks a container as belonging to an instance. All
	// container lookups filter on it; container names are display only.
	InstanceLabel = "instance-id"

	// ConnectorPort is the port the connector process listens on inside
	// its container.
	ConnectorPort = 8080

	// DefaultStopGraceSeconds bounds the connector's shutdown window, in
	// which it uploads its session snapshot.
	DefaultStopGraceSeconds = 10
)

// Manager builds container specs and drives them through the engine client.
type Manager struct {
	// CallbackURL is the control-plane base URL connectors use to reach
	// the internal state API.
	CallbackURL string
	// InternalSecret is the shared secret connectors present on that API.
	InternalSecret string
	// StopGraceSeconds overrides the default stop grace period when > 0.
	StopGraceSeconds int

	// newClient is swappable in tests.
	newClient func(addr string) (*engine.Client, error)
}

// NewManager returns a lifecycle manager advertising the given callback URL
// and internal secret to connector containers.
func NewManager(callbackURL, internalSecret string) *Manager {
	return &Manager{
		CallbackURL:    callbackURL,
		InternalSecret: internalSecret,
		newClient:      engine.New,
	}
}

func (m *Manager) client(node *domain.Node) (*engine.Client, error) {
	newClient := m.newClient
	if newClient == nil {
		newClient = engine.New
	}
	return newClient(node.EngineAddr)
}

func (m *Manager) grace() int {
	if m.StopGraceSeconds > 0 {
		return m.StopGraceSeconds
	}
	return DefaultStopGraceSeconds
}

// ContainerName derives the deterministic container name for an instance.
// The sanitized display name is a readability suffix; identity lives in the
// instance-id label.
func ContainerName(inst *domain.Instance) string {
	name := fmt.Sprintf("waplane-%d", inst.ID)
	if suffix := SanitizeName(inst.Name); suffix != "" {
		name += "-" + suffix
	}
	return name
}

// buildSpec assembles the full creation spec for an instance on a node.
func (m *Manager) buildSpec(inst *domain.Instance, node *domain.Node, image string) engine.CreateSpec {
	id := strconv.FormatInt(inst.ID, 10)
	env := []string{
		"INSTANCE_ID=" + id,
		"CONTROL_PLANE_URL=" + m.CallbackURL,
		"INTERNAL_TOKEN=" + m.InternalSecret,
		"WEBHOOK_URL=" + inst.WebhookURL,
		fmt.Sprintf("PORT=%d", ConnectorPort),
		fmt.Sprintf("CPU_LIMIT=%d", cpuHint(inst.CPULimit)),
	}
	labels := map[string]string{
		InstanceLabel: id,
	}
	if node.IngressEnabled {
		router := "waplane-" + id
		prefix := "/instances/" + id
		labels["traefik.enable"] = "true"
		labels["traefik.http.routers."+router+".rule"] =
			fmt.Sprintf("Host(`%s`) && PathPrefix(`%s`)", node.PublicHost, prefix)
		labels["traefik.http.routers."+router+".middlewares"] = router + "-strip"
		labels["traefik.http.middlewares."+router+"-strip.stripprefix.prefixes"] = prefix
		labels["traefik.http.services."+router+".loadbalancer.server.port"] = strconv.Itoa(ConnectorPort)
	}
	return engine.CreateSpec{
		Image:  image,
		Env:    env,
		Labels: labels,
		HostConfig: engine.HostConfig{
			NanoCpus:      ParseCPU(inst.CPULimit),
			Memory:        ParseMemory(inst.MemLimit),
			RestartPolicy: engine.RestartPolicy{Name: "unless-stopped"},
		},
	}
}

// CreateAndStart provisions the connector container for an instance on the
// given node and returns the inspected detail of the running container.
func (m *Manager) CreateAndStart(ctx context.Context, inst *domain.Instance, node *domain.Node) (*engine.ContainerDetail, error) {
	image, err := ImageFor(inst.Provider)
	if err != nil {
		return nil, err
	}
	cli, err := m.client(node)
	if err != nil {
		return nil, err
	}

	// Pull only when the exact reference is absent locally.
	images, err := cli.ListImages(ctx, image)
	if err != nil {
		return nil, err
	}
	if len(images) == 0 {
		zap.L().Info("pulling connector image",
			zap.String("image", image), zap.String("node", node.Name))
		if err := cli.PullImage(ctx, image); err != nil {
			return nil, err
		}
	}

	spec := m.buildSpec(inst, node, image)
	id, err := cli.CreateContainer(ctx, ContainerName(inst), spec)
	if err != nil {
		return nil, err
	}
	if err := cli.StartContainer(ctx, id); err != nil {
		return nil, err
	}
	zap.L().Info("connector container started",
		zap.Int64("instance_id", inst.ID),
		zap.String("node", node.Name),
		zap.String("container_id", id))
	return cli.InspectContainer(ctx, id)
}

// FindContainer locates the container carrying the instance-id label on a
// node, including stopped ones. More than one match is an anomaly from a
// failed partial cleanup: log it and pick the first so lifecycle operations
// stay progressable.
func (m *Manager) FindContainer(ctx context.Context, instanceID int64, node *domain.Node) (*engine.ContainerSummary, error) {
	cli, err := m.client(node)
	if err != nil {
		return nil, err
	}
	filter := fmt.Sprintf("%s=%d", InstanceLabel, instanceID)
	list, err := cli.ListContainers(ctx, filter, true)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	if len(list) > 1 {
		zap.L().Warn("multiple containers match instance label, using first",
			zap.Int64("instance_id", instanceID),
			zap.String("node", node.Name),
			zap.Int("count", len(list)))
	}
	return &list[0], nil
}

// StopAndRemove tears down the instance's container on a node. A missing
// container is a no-op so retries and half-finished previous attempts are
// safe. The stop grace period gives the connector time to upload its
// shutdown snapshot.
func (m *Manager) StopAndRemove(ctx context.Context, instanceID int64, node *domain.Node) error {
	found, err := m.FindContainer(ctx, instanceID, node)
	if err != nil {
		return err
	}
	if found == nil {
		return nil
	}
	cli, err := m.client(node)
	if err != nil {
		return err
	}
	if err := cli.StopContainer(ctx, found.Id, m.grace()); err != nil {
		return err
	}
	if err := cli.RemoveContainer(ctx, found.Id); err != nil {
		return err
	}
	zap.L().Info("connector container removed",
		zap.Int64("instance_id", instanceID),
		zap.String("node", node.Name),
		zap.String("container_id", found.Id))
	return nil
}
