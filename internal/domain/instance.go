package domain

import "time"

// Provider is the connector implementation kind selected per instance.
type Provider string

const (
	ProviderWhatsmeow Provider = "whatsmeow"
	ProviderBaileys   Provider = "baileys"
	ProviderWAWebJS   Provider = "wawebjs"
	ProviderWABA      Provider = "waba"
)

// Providers lists every supported connector provider.
var Providers = []Provider{ProviderWhatsmeow, ProviderBaileys, ProviderWAWebJS, ProviderWABA}

// Valid reports whether p is a member of the closed provider enumeration.
func (p Provider) Valid() bool {
	switch p {
	case ProviderWhatsmeow, ProviderBaileys, ProviderWAWebJS, ProviderWABA:
		return true
	}
	return false
}

// Instance lifecycle statuses. Transitions are driven exclusively by the
// orchestrator: creating -> running|error, running -> migrating,
// migrating -> running|error.
const (
	InstanceStatusCreating  = "creating"
	InstanceStatusRunning   = "running"
	InstanceStatusMigrating = "migrating"
	InstanceStatusError     = "error"
)

// Instance is one tenant's one phone-number connector, running as exactly
// one container at a time on its hosting node.
type Instance struct {
	ID         int64     `json:"id,string" form:"id"`                                  // Primary key ID
	TenantId   int64     `gorm:"index;uniqueIndex:uk_tenant_phone" json:"tenant_id,string"` // Owning tenant
	NodeId     int64     `gorm:"index" json:"node_id,string"`                          // Hosting node
	Name       string    `json:"name" form:"name"`                                     // Optional display name
	Phone      string    `gorm:"uniqueIndex:uk_tenant_phone" json:"phone" form:"phone"` // Phone number, unique per tenant
	Provider   Provider  `json:"provider" form:"provider"`                             // Connector provider type
	WebhookURL string    `json:"webhook_url" form:"webhook_url"`                       // Optional event webhook
	Status     string    `json:"status"`                                               // Lifecycle status
	CPULimit   string    `json:"cpu_limit" form:"cpu_limit"`                           // Fractional cores, e.g. "0.5"
	MemLimit   string    `json:"mem_limit" form:"mem_limit"`                           // Unit-suffixed, e.g. "512m"
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName Specify table name
func (Instance) TableName() string {
	return "instance"
}

// SnapshotKey is the reserved state key holding the connector's full
// serialized session backup.
const SnapshotKey = "session_snapshot"

// InstanceState is an opaque binary value written by the connector process
// through the internal state API, keyed by (instance id, key).
type InstanceState struct {
	ID         int64     `json:"id,string"`
	InstanceId int64     `gorm:"index;uniqueIndex:uk_instance_key" json:"instance_id,string"`
	Key        string    `gorm:"column:state_key;uniqueIndex:uk_instance_key" json:"key"`
	Value      []byte    `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName Specify table name
func (InstanceState) TableName() string {
	return "instance_state"
}
