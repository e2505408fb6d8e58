package app

import (
	"errors"
	"time"

	"github.com/talkgrid/waplane/internal/domain"
	"github.com/talkgrid/waplane/pkg/common"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// checkDefaultTenant seeds a first tenant when the table is empty so a fresh
// deployment is usable without the admin API. The configured tenant secret
// becomes its bearer key; without one a random key is generated and logged
// once.
func (a *Application) checkDefaultTenant() {
	var count int64
	if err := a.gormDB.Model(&domain.Tenant{}).Count(&count).Error; err != nil {
		zap.L().Error("failed to count tenants", zap.Error(err))
		return
	}
	if count > 0 {
		return
	}

	apiKey := a.appConfig.Web.TenantSecret
	generated := false
	if apiKey == "" {
		apiKey = common.UUID()
		generated = true
	}

	tenant := domain.Tenant{
		ID:        common.UUIDint64(),
		Name:      "default",
		ApiKey:    apiKey,
		Remark:    "Initial tenant",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	err := a.gormDB.Create(&tenant).Error
	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return
	case err != nil:
		zap.L().Error("failed to create default tenant", zap.Error(err))
		return
	}

	if generated {
		zap.L().Info("initialized default tenant with generated api key",
			zap.String("api_key", apiKey))
	} else {
		zap.L().Info("initialized default tenant")
	}
}
