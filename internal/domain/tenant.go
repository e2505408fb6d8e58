package domain

import "time"

// Tenant is an API customer. Every instance belongs to exactly one tenant
// and all tenant-facing operations are scoped by the tenant's API key.
type Tenant struct {
	ID        int64     `json:"id,string" form:"id"`
	Name      string    `json:"name" form:"name"`
	ApiKey    string    `gorm:"uniqueIndex" json:"api_key"` // opaque bearer credential
	Remark    string    `json:"remark" form:"remark"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName Specify table name
func (Tenant) TableName() string {
	return "tenant"
}
