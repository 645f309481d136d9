// Package testutil holds helpers shared by package tests.
package testutil

import (
	"testing"
	"time"

	"github.com/reelhub/backend/internal/database"
	"github.com/reelhub/backend/internal/models"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewDB opens an in-memory SQLite database with every model migrated.
// The pool is pinned to one connection because each SQLite :memory:
// connection is a separate database.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

// CreateUser inserts a user with the given username.
func CreateUser(t testing.TB, db *gorm.DB, username string) *models.User {
	t.Helper()
	user := &models.User{
		Email:       username + "@example.com",
		Username:    username,
		DisplayName: username,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// CreateVideo inserts a live public video owned by userID.
func CreateVideo(t testing.TB, db *gorm.DB, userID, title string) *models.Video {
	t.Helper()
	video := &models.Video{
		UserID:      userID,
		Title:       title,
		VideoURL:    "https://cdn.example.com/videos/" + title + ".mp4",
		IsPublic:    true,
		Status:      models.VideoStatusLive,
		PublishedAt: time.Now().UTC(),
	}
	require.NoError(t, db.Create(video).Error)
	return video
}
