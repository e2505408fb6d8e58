package domain

import "time"

// Node probe outcomes.
const (
	NodeStatusOK          = "ok"
	NodeStatusUnreachable = "unreachable"
)

// Node is a worker machine reachable through a container-engine API.
type Node struct {
	ID             int64     `json:"id,string" form:"id"`                      // Primary key ID
	Name           string    `gorm:"uniqueIndex" json:"name" form:"name"`      // Unique node name
	EngineAddr     string    `json:"engine_addr" form:"engine_addr"`           // unix:///var/run/docker.sock or tcp://host:port
	PublicHost     string    `json:"public_host" form:"public_host"`           // Publicly reachable host used by the proxy
	IngressEnabled bool      `json:"ingress_enabled" form:"ingress_enabled"`   // Node participates in shared reverse-proxy ingress
	Status         string    `json:"status" form:"status"`                     // Probe status (ok/unreachable)
	Latency        int       `json:"latency" form:"latency"`                   // Engine API latency in milliseconds
	LastProbeAt    time.Time `json:"last_probe_at"`                            // Last probe time
	Tags           string    `json:"tags" form:"tags"`                         // Tags
	Remark         string    `json:"remark" form:"remark"`                     // Remark
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName Specify table name
func (Node) TableName() string {
	return "node"
}
