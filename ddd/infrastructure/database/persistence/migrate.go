package persistence

import (
	"fmt"

	"gorm.io/gorm"

	"transcode-orchestrator/ddd/infrastructure/database/po"
)

// AutoMigrate 创建或更新编排引擎使用的表
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(po.AllModels()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
