// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"transcode-orchestrator/ddd/domain/vo"
	"transcode-orchestrator/ddd/infrastructure/database/persistence"
	"transcode-orchestrator/ddd/infrastructure/database/po"
)

// NewDB opens a migrated in-memory sqlite database that lives for the test.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// every connection to :memory: is a separate database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, persistence.AutoMigrate(db))
	return db
}

// SeedVideo inserts a video row the way the catalog service would.
func SeedVideo(t *testing.T, db *gorm.DB, videoUUID string, state vo.VideoState, inputFilename string) {
	t.Helper()
	now := time.Now()
	require.NoError(t, db.Create(&po.VideoPO{
		VideoUUID:       videoUUID,
		State:           state.String(),
		InputFilename:   inputFilename,
		PreviewFilename: "preview.jpg",
		CreatedAt:       now,
		UpdatedAt:       now,
	}).Error)
}

// VideoState reads the stored state of a video.
func VideoState(t *testing.T, db *gorm.DB, videoUUID string) vo.VideoState {
	t.Helper()
	var v po.VideoPO
	require.NoError(t, db.Where("video_uuid = ?", videoUUID).First(&v).Error)
	return vo.VideoState(v.State)
}
