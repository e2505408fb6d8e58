package lifecycle

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/talkgrid/waplane/internal/domain"
)

func TestParseMemory(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"512m", 512 * 1024 * 1024},
		{"2g", 2 * 1024 * 1024 * 1024},
		{"256k", 256 * 1024},
		{"512M", 512 * 1024 * 1024},
		{"1G", 1024 * 1024 * 1024},
		{"1048576", 1048576},
		{" 512m ", 512 * 1024 * 1024},
		{"", 0},
		{"abc", 0},
		{"-5m", 0},
		{"1.5g", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseMemory(tt.in), "input %q", tt.in)
	}
}

func TestParseCPU(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"1", 1e9},
		{"0.5", 5e8},
		{"2", 2e9},
		{"0.25", 25e7},
		{"", 0},
		{"abc", 0},
		{"-1", 0},
		{"0", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseCPU(tt.in), "input %q", tt.in)
	}
}

func TestCpuHint(t *testing.T) {
	assert.Equal(t, 1, cpuHint(""))
	assert.Equal(t, 1, cpuHint("0.5"))
	assert.Equal(t, 1, cpuHint("1"))
	assert.Equal(t, 2, cpuHint("1.5"))
	assert.Equal(t, 2, cpuHint("2"))
	assert.Equal(t, 4, cpuHint("3.1"))
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Support Line", "support-line"},
		{"support--line", "support-line"},
		{"  billing  ", "billing"},
		{"UPPER.case_01", "upper.case_01"},
		{"!!!", ""},
		{"a!!!b", "a-b"},
		{"", ""},
	}
	for _, tt := range tests {
		got := SanitizeName(tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
		// idempotent
		assert.Equal(t, got, SanitizeName(got))
		// alphabet
		for _, r := range got {
			valid := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '.' || r == '-'
			assert.True(t, valid, "character %q in %q", r, got)
		}
		assert.NotContains(t, got, "--")
	}
}

func TestContainerName(t *testing.T) {
	inst := &domain.Instance{ID: 42, Name: "Support Line"}
	assert.Equal(t, "waplane-42-support-line", ContainerName(inst))

	inst = &domain.Instance{ID: 42}
	assert.Equal(t, "waplane-42", ContainerName(inst))

	inst = &domain.Instance{ID: 42, Name: "!!!"}
	assert.Equal(t, "waplane-42", ContainerName(inst))
}

func TestImageFor(t *testing.T) {
	for _, p := range domain.Providers {
		image, err := ImageFor(p)
		assert.NoError(t, err)
		assert.True(t, strings.Contains(image, string(p)), "image %q for provider %q", image, p)
	}
	_, err := ImageFor(domain.Provider("telegram"))
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestBuildSpec(t *testing.T) {
	m := NewManager("http://cp.internal:1899", "s3cret")
	inst := &domain.Instance{
		ID:         7,
		Name:       "main",
		Provider:   domain.ProviderWhatsmeow,
		WebhookURL: "https://hooks.example.com/wa",
		CPULimit:   "0.5",
		MemLimit:   "512m",
	}
	node := &domain.Node{ID: 1, Name: "node-a", PublicHost: "node-a.example.com"}

	spec := m.buildSpec(inst, node, "ghcr.io/talkgrid/waplane-connector-whatsmeow:latest")
	assert.Equal(t, "7", spec.Labels[InstanceLabel])
	assert.Contains(t, spec.Env, "INSTANCE_ID=7")
	assert.Contains(t, spec.Env, "CONTROL_PLANE_URL=http://cp.internal:1899")
	assert.Contains(t, spec.Env, "INTERNAL_TOKEN=s3cret")
	assert.Contains(t, spec.Env, "WEBHOOK_URL=https://hooks.example.com/wa")
	assert.Contains(t, spec.Env, "PORT=8080")
	assert.Equal(t, int64(5e8), spec.HostConfig.NanoCpus)
	assert.Equal(t, int64(512*1024*1024), spec.HostConfig.Memory)
	assert.Equal(t, "unless-stopped", spec.HostConfig.RestartPolicy.Name)

	// no ingress labels unless the node opts in
	assert.NotContains(t, spec.Labels, "traefik.enable")

	node.IngressEnabled = true
	spec = m.buildSpec(inst, node, "ghcr.io/talkgrid/waplane-connector-whatsmeow:latest")
	assert.Equal(t, "true", spec.Labels["traefik.enable"])
	assert.Equal(t, "8080", spec.Labels["traefik.http.services.waplane-7.loadbalancer.server.port"])
	assert.Contains(t, spec.Labels["traefik.http.routers.waplane-7.rule"], "/instances/7")
}
