package app

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/talkgrid/waplane/config"
	"github.com/talkgrid/waplane/internal/registry"
	"gorm.io/gorm"
)

// DBProvider provides database access
type DBProvider interface {
	DB() *gorm.DB
}

// ConfigProvider provides application configuration
type ConfigProvider interface {
	Config() *config.AppConfig
}

// RegistryProvider provides repository access
type RegistryProvider interface {
	Registry() *registry.Registry
}

// SchedulerProvider provides task scheduling capability
type SchedulerProvider interface {
	Scheduler() *cron.Cron
}

// AppContext combines all provider interfaces for full application context
// Services should depend on specific providers or this combined interface
type AppContext interface {
	DBProvider
	ConfigProvider
	RegistryProvider
	SchedulerProvider

	// Application lifecycle methods
	MigrateDB(track bool) error
	InitDb()
	DropAll()
	// ProbeNodes pings every node engine immediately, outside the schedule
	ProbeNodes(ctx context.Context)
}
